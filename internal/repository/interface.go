package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Avimitin/bili-live-notify-bot/internal/domain"
)

//go:generate mockgen -destination=mocks/mock_repository.go -package=mocks -source=interface.go RoomRepository

var (
	// ErrRoomNotFound is returned when no record exists for a room id.
	// The store never creates rooms implicitly.
	ErrRoomNotFound = errors.New("room not found")

	// ErrStoreUnavailable wraps transport and connectivity failures.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// RoomRepository defines persistence operations for tracked rooms.
// Implementations must be safe for concurrent use.
type RoomRepository interface {
	// GetStale returns the ids of every room whose last refresh is older
	// than now minus threshold, or that was never refreshed.
	GetStale(ctx context.Context, threshold time.Duration) ([]int64, error)

	// CompareAndSet atomically stores status for roomID, advances its
	// refresh timestamp and returns the before/after pair.
	CompareAndSet(ctx context.Context, roomID int64, status domain.LiveStatus) (domain.Transition, error)

	// GetByRoomID returns the stored record of a room.
	GetByRoomID(ctx context.Context, roomID int64) (*domain.RoomRecord, error)

	// Register starts tracking roomID. It reports false when the room was
	// already tracked.
	Register(ctx context.Context, roomID int64, displayName string) (bool, error)
}
