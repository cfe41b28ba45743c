package pubsub

import (
	"fmt"
	"time"
)

// Channel naming conventions for live status notifications.
const (
	// ChannelRoomStatus carries status transitions of one tracked room.
	ChannelRoomStatus = "live:room:%d:status"
)

// Event types.
const (
	EventRoomStatusChanged = "room.status_changed"
)

// RoomStatusChannel returns the channel name for a room's status events.
func RoomStatusChannel(roomID int64) string {
	return fmt.Sprintf(ChannelRoomStatus, roomID)
}

// RoomStatusChangedPayload is published when a room's persisted status changes.
type RoomStatusChangedPayload struct {
	RoomID      int64     `json:"room_id"`
	Previous    string    `json:"previous"`
	Current     string    `json:"current"`
	DisplayName string    `json:"display_name,omitempty"`
	Title       string    `json:"title,omitempty"`
	AreaName    string    `json:"area_name,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CoverURL    string    `json:"cover_url,omitempty"`
	Online      int64     `json:"online"`
	ChangedAt   time.Time `json:"changed_at"`
}
