package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownStatus is returned when a raw platform code maps to no LiveStatus.
var ErrUnknownStatus = errors.New("unknown live status code")

// LiveStatus is the broadcast state of a room. The numeric values are the
// platform's own codes and are persisted as-is.
type LiveStatus int

const (
	LiveStatusOffline LiveStatus = 0
	LiveStatusLive    LiveStatus = 1
	LiveStatusReplay  LiveStatus = 2
)

// ParseLiveStatus decodes a raw platform status code.
func ParseLiveStatus(code int) (LiveStatus, error) {
	switch s := LiveStatus(code); s {
	case LiveStatusOffline, LiveStatusLive, LiveStatusReplay:
		return s, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownStatus, code)
	}
}

// Valid reports whether s is one of the three known states.
func (s LiveStatus) Valid() bool {
	_, err := ParseLiveStatus(int(s))
	return err == nil
}

func (s LiveStatus) String() string {
	switch s {
	case LiveStatusOffline:
		return "offline"
	case LiveStatusLive:
		return "live"
	case LiveStatusReplay:
		return "replay"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// MarshalText encodes the status by name for JSON and logs.
func (s LiveStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStatus, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name produced by MarshalText.
func (s *LiveStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "offline":
		*s = LiveStatusOffline
	case "live":
		*s = LiveStatusLive
	case "replay":
		*s = LiveStatusReplay
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStatus, text)
	}
	return nil
}

// Transition is the before/after pair observed by one reconciliation.
type Transition struct {
	Previous LiveStatus `json:"previous"`
	Current  LiveStatus `json:"current"`
}

// Changed reports whether the reconciliation altered the persisted status.
func (t Transition) Changed() bool {
	return t.Previous != t.Current
}
