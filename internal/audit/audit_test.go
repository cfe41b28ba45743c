package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Avimitin/bili-live-notify-bot/internal/domain"
	"github.com/Avimitin/bili-live-notify-bot/pkg/log"
)

func TestLogTransition(t *testing.T) {
	var buf bytes.Buffer
	ctx := log.WithLogger(context.Background(), zerolog.New(&buf))

	LogTransition(ctx, 42, domain.Transition{Previous: domain.LiveStatusOffline, Current: domain.LiveStatusLive})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, log.LogTypeAudit, entry[log.FieldLogType])
	assert.Equal(t, ActionStatusChanged, entry[FieldAction])
	assert.Equal(t, float64(42), entry[log.FieldRoomID])
	assert.Equal(t, "offline", entry[log.FieldPrevStatus])
	assert.Equal(t, "live", entry[log.FieldLiveStatus])
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	ctx := log.WithLogger(context.Background(), zerolog.New(&buf))

	Log(ctx, ActionRoomRegistered, 7, "room registered")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, ActionRoomRegistered, entry[FieldAction])
	assert.Equal(t, "room registered", entry["message"])
}
