package domain

import (
	"time"
)

// RoomRecord is the persisted state of one tracked room.
type RoomRecord struct {
	LocalID         uint       `json:"local_id"`
	RoomID          int64      `json:"room_id"`
	Status          LiveStatus `json:"status"`
	LastRefreshedAt *time.Time `json:"last_refreshed_at,omitempty"`
	DisplayName     string     `json:"display_name,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// IsStale reports whether the record is due for a recheck at now.
// A record that was never refreshed is always stale.
func (r *RoomRecord) IsStale(now time.Time, threshold time.Duration) bool {
	if r.LastRefreshedAt == nil {
		return true
	}
	return r.LastRefreshedAt.Before(now.Add(-threshold))
}

// RoomModel is the GORM model for the rooms table.
type RoomModel struct {
	ID              uint       `gorm:"primaryKey;autoIncrement"`
	RoomID          int64      `gorm:"column:room_id;uniqueIndex;not null"`
	Status          int        `gorm:"column:status;not null;default:0"`
	LastRefreshedAt *time.Time `gorm:"column:last_refreshed_at;index"`
	DisplayName     string     `gorm:"column:display_name;type:varchar(100)"`
	CreatedAt       time.Time  `gorm:"autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for RoomModel.
func (RoomModel) TableName() string {
	return "rooms"
}

// ToDomain converts RoomModel to a RoomRecord.
func (m *RoomModel) ToDomain() *RoomRecord {
	return &RoomRecord{
		LocalID:         m.ID,
		RoomID:          m.RoomID,
		Status:          LiveStatus(m.Status),
		LastRefreshedAt: m.LastRefreshedAt,
		DisplayName:     m.DisplayName,
		CreatedAt:       m.CreatedAt,
	}
}
