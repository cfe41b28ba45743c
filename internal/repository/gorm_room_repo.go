package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Avimitin/bili-live-notify-bot/internal/domain"
	"github.com/Avimitin/bili-live-notify-bot/pkg/log"
)

// Option configures a GormRoomRepository.
type Option func(*GormRoomRepository)

// WithClock overrides the time source used for refresh timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *GormRoomRepository) {
		r.now = now
	}
}

// GormRoomRepository implements RoomRepository using GORM.
// The underlying *gorm.DB is a connection pool shared by all callers.
type GormRoomRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormRoomRepository creates a new GORM-backed room repository.
func NewGormRoomRepository(db *gorm.DB, opts ...Option) *GormRoomRepository {
	r := &GormRoomRepository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetStale returns stale room ids ordered by their surrogate key.
func (r *GormRoomRepository) GetStale(ctx context.Context, threshold time.Duration) ([]int64, error) {
	l := log.Ctx(ctx)

	cutoff := r.now().UTC().Add(-threshold)

	var ids []int64
	err := r.db.WithContext(ctx).Model(&domain.RoomModel{}).
		Where("last_refreshed_at IS NULL OR last_refreshed_at < ?", cutoff).
		Order("id ASC").
		Pluck("room_id", &ids).Error
	if err != nil {
		if !isContextErr(err) {
			l.Error().Err(err).Dur("threshold", threshold).Msg("failed to load stale rooms")
		}
		return nil, classify(err)
	}
	return ids, nil
}

// CompareAndSet locks the room row, writes the new status and refresh time
// in the same transaction, and reports the previous status.
func (r *GormRoomRepository) CompareAndSet(ctx context.Context, roomID int64, status domain.LiveStatus) (domain.Transition, error) {
	l := log.Ctx(ctx)

	if !status.Valid() {
		return domain.Transition{}, fmt.Errorf("%w: %d", domain.ErrUnknownStatus, int(status))
	}

	var tr domain.Transition
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model domain.RoomModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("room_id = ?", roomID).
			Take(&model).Error
		if err != nil {
			return err
		}

		refreshedAt := r.now().UTC()
		if model.LastRefreshedAt != nil && model.LastRefreshedAt.After(refreshedAt) {
			refreshedAt = *model.LastRefreshedAt
		}

		err = tx.Model(&domain.RoomModel{}).
			Where("id = ?", model.ID).
			Updates(map[string]interface{}{
				"status":            int(status),
				"last_refreshed_at": refreshedAt,
			}).Error
		if err != nil {
			return err
		}

		tr = domain.Transition{Previous: domain.LiveStatus(model.Status), Current: status}
		return nil
	})
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) && !isContextErr(err) {
			l.Error().Err(err).Int64(log.FieldRoomID, roomID).Msg("failed to reconcile room status")
		}
		return domain.Transition{}, classify(err)
	}

	return tr, nil
}

// GetByRoomID retrieves a room by its platform id.
func (r *GormRoomRepository) GetByRoomID(ctx context.Context, roomID int64) (*domain.RoomRecord, error) {
	var model domain.RoomModel
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Take(&model).Error
	if err != nil {
		return nil, classify(err)
	}
	return model.ToDomain(), nil
}

// Register inserts a never-refreshed offline record for roomID.
func (r *GormRoomRepository) Register(ctx context.Context, roomID int64, displayName string) (bool, error) {
	l := log.Ctx(ctx)

	model := domain.RoomModel{
		RoomID:      roomID,
		Status:      int(domain.LiveStatusOffline),
		DisplayName: displayName,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "room_id"}}, DoNothing: true}).
		Create(&model)
	if result.Error != nil {
		l.Error().Err(result.Error).Int64(log.FieldRoomID, roomID).Msg("failed to register room")
		return false, classify(result.Error)
	}

	created := result.RowsAffected > 0
	if created {
		l.Debug().Int64(log.FieldRoomID, roomID).Msg("room registered")
	}
	return created, nil
}

// classify maps driver errors onto the repository's sentinel errors.
// Context errors belong to the caller and pass through unwrapped.
func classify(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRoomNotFound
	}
	if isContextErr(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Ensure interface is satisfied at compile time.
var _ RoomRepository = (*GormRoomRepository)(nil)
