package client

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
)

// statusBatchRequest is the body of get_status_info_by_uids.
type statusBatchRequest struct {
	UIDs []int64 `json:"uids"`
}

// statusBatchResponse is the envelope returned by get_status_info_by_uids.
// Data is a JSON object keyed by decimal id, or an empty array when none
// of the requested ids resolved.
type statusBatchResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// RoomInfo is a single room entry of the batch response.
type RoomInfo struct {
	Title            string      `json:"title"`
	RoomID           int64       `json:"room_id"`
	UID              int64       `json:"uid"`
	Online           int64       `json:"online"`
	LiveTime         int64       `json:"live_time"`
	LiveStatus       int         `json:"live_status"`
	ShortID          int64       `json:"short_id"`
	Area             int         `json:"area"`
	AreaName         string      `json:"area_name"`
	AreaV2ID         int         `json:"area_v2_id"`
	AreaV2Name       string      `json:"area_v2_name"`
	AreaV2ParentName string      `json:"area_v2_parent_name"`
	Uname            string      `json:"uname"`
	Face             OptionalURL `json:"face"`
	TagName          CommaList   `json:"tag_name"`
	Tags             CommaList   `json:"tags"`
	CoverFromUser    OptionalURL `json:"cover_from_user"`
	Keyframe         OptionalURL `json:"keyframe"`
}

// CommaList decodes the platform's comma-joined string lists.
type CommaList []string

// UnmarshalJSON accepts "a,b,c" and the empty string.
func (c *CommaList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	*c = CommaList{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			*c = append(*c, item)
		}
	}
	return nil
}

// MarshalJSON re-joins the list with commas.
func (c CommaList) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.Join(c, ","))
}

// OptionalURL decodes a URL field that the platform sends as an empty
// string when unset. Values that do not parse as absolute URLs decode to
// a nil URL rather than an error; they are informational only.
type OptionalURL struct {
	URL *url.URL
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *OptionalURL) UnmarshalJSON(data []byte) error {
	u.URL = nil
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}

	parsed, err := url.Parse(s)
	if err != nil || !parsed.IsAbs() {
		return nil
	}
	u.URL = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (u OptionalURL) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// String returns the URL or the empty string when unset.
func (u OptionalURL) String() string {
	if u.URL == nil {
		return ""
	}
	return u.URL.String()
}
