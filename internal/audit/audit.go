package audit

import (
	"context"

	"github.com/Avimitin/bili-live-notify-bot/internal/domain"
	"github.com/Avimitin/bili-live-notify-bot/pkg/log"
)

// Audit actions for the status sync service.
const (
	ActionRoomRegistered = "room.register"
	ActionStatusChanged  = "room.status_change"
	ActionPassTriggered  = "sync.pass_trigger"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, roomID int64, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Int64(log.FieldRoomID, roomID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(FieldDetail, detail).
		Msg(msg)
}

// LogTransition records a persisted status change of a room.
func LogTransition(ctx context.Context, roomID int64, tr domain.Transition) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, ActionStatusChanged).
		Int64(log.FieldRoomID, roomID).
		Stringer(log.FieldPrevStatus, tr.Previous).
		Stringer(log.FieldLiveStatus, tr.Current).
		Msg("room status changed")
}
