package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Avimitin/bili-live-notify-bot/internal/archive"
	"github.com/Avimitin/bili-live-notify-bot/internal/audit"
	"github.com/Avimitin/bili-live-notify-bot/internal/domain"
	"github.com/Avimitin/bili-live-notify-bot/internal/reconciler"
	"github.com/Avimitin/bili-live-notify-bot/internal/repository"
	"github.com/Avimitin/bili-live-notify-bot/pkg/log"
	"github.com/Avimitin/bili-live-notify-bot/pkg/response"
)

// PassRunner runs sync passes on demand.
type PassRunner interface {
	RunOnce(ctx context.Context) (*reconciler.Report, error)
	LastReport() *reconciler.Report
}

// ReportStore looks up archived pass reports.
type ReportStore interface {
	Load(ctx context.Context, passID string) (*reconciler.Report, error)
}

// RoomResponse is a stored room plus its staleness under the default
// threshold.
type RoomResponse struct {
	*domain.RoomRecord
	Stale bool `json:"stale"`
}

// StaleRoomsResponse lists the rooms a pass would select now.
type StaleRoomsResponse struct {
	Threshold string  `json:"threshold"`
	RoomIDs   []int64 `json:"room_ids"`
}

// Handler handles operator HTTP requests.
type Handler struct {
	repo             repository.RoomRepository
	runner           PassRunner
	reports          ReportStore
	defaultThreshold time.Duration
}

// NewHandler creates a new HTTP handler. defaultThreshold is used by the
// stale listing when the request gives none. reports may be nil when
// archiving is disabled.
func NewHandler(repo repository.RoomRepository, runner PassRunner, reports ReportStore, defaultThreshold time.Duration) *Handler {
	return &Handler{
		repo:             repo,
		runner:           runner,
		reports:          reports,
		defaultThreshold: defaultThreshold,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api/v1")
	{
		api.GET("/rooms/:room_id", h.GetRoom)

		sync := api.Group("/sync")
		{
			sync.GET("/stale", h.ListStale)
			sync.POST("/passes", h.TriggerPass)
			sync.GET("/passes/:pass_id", h.GetPass)
		}
	}
}

// HealthCheck reports liveness.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetRoom returns the stored record of one room.
func (h *Handler) GetRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	roomID, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "room_id must be an integer")
		return
	}

	room, err := h.repo.GetByRoomID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			response.NotFound(c, "room not found")
			return
		}
		l.Error().Err(err).Int64(log.FieldRoomID, roomID).Msg("failed to get room")
		response.ServiceUnavailable(c, "failed to get room")
		return
	}

	response.Success(c, RoomResponse{RoomRecord: room, Stale: room.IsStale(time.Now(), h.defaultThreshold)})
}

// ListStale returns the ids a pass would select with the given threshold.
func (h *Handler) ListStale(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	threshold := h.defaultThreshold
	if raw := c.Query("threshold"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			response.BadRequest(c, "threshold must be a positive duration such as 90s")
			return
		}
		threshold = d
	}

	ids, err := h.repo.GetStale(ctx, threshold)
	if err != nil {
		l.Error().Err(err).Dur("threshold", threshold).Msg("failed to list stale rooms")
		response.ServiceUnavailable(c, "failed to list stale rooms")
		return
	}
	if ids == nil {
		ids = []int64{}
	}

	response.Success(c, StaleRoomsResponse{Threshold: threshold.String(), RoomIDs: ids})
}

// TriggerPass runs one sync pass and returns its report.
func (h *Handler) TriggerPass(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	audit.LogWithDetail(ctx, audit.ActionPassTriggered, c.ClientIP(), "manual sync pass requested")

	report, err := h.runner.RunOnce(ctx)
	if err != nil {
		if errors.Is(err, reconciler.ErrPassInProgress) {
			response.Conflict(c, "a sync pass is already running")
			return
		}
		l.Error().Err(err).Msg("manual sync pass failed")
		response.ErrorWithData(c, http.StatusServiceUnavailable, "PASS_ABORTED", "sync pass aborted", report)
		return
	}

	response.Success(c, report)
}

// GetPass returns a pass report. The id "last" names the most recent pass
// of this process; other ids are looked up in the report archive.
func (h *Handler) GetPass(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	passID := c.Param("pass_id")
	if passID == "last" {
		report := h.runner.LastReport()
		if report == nil {
			response.NotFound(c, "no sync pass has run yet")
			return
		}
		response.Success(c, report)
		return
	}

	if _, err := uuid.Parse(passID); err != nil {
		response.BadRequest(c, "pass_id must be a uuid or \"last\"")
		return
	}
	if h.reports == nil {
		response.NotFound(c, "report archive is disabled")
		return
	}

	report, err := h.reports.Load(ctx, passID)
	if err != nil {
		if errors.Is(err, archive.ErrReportNotFound) {
			response.NotFound(c, "pass report not found")
			return
		}
		l.Error().Err(err).Str(log.FieldPassID, passID).Msg("failed to load pass report")
		response.InternalError(c, "failed to load pass report")
		return
	}

	response.Success(c, report)
}
