package domain

// RemoteStatus is one room's entry in a status batch returned by the
// platform. Code is undecoded; everything else is informational and is
// forwarded to notification subscribers.
type RemoteStatus struct {
	Code        int
	DisplayName string
	Title       string
	AreaName    string
	Tags        []string
	CoverURL    string
	Online      int64
}
