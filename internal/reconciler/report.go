package reconciler

import (
	"slices"
	"sync"
	"time"

	"github.com/Avimitin/bili-live-notify-bot/internal/domain"
)

// Change is a room whose persisted status differed before and after
// reconciliation.
type Change struct {
	RoomID   int64               `json:"room_id"`
	Previous domain.LiveStatus   `json:"previous"`
	Current  domain.LiveStatus   `json:"current"`
	Remote   domain.RemoteStatus `json:"-"`
}

// BatchFailure records a chunk whose remote fetch failed. Its rooms stay
// stale and are selected again by the next pass.
type BatchFailure struct {
	RoomIDs []int64 `json:"room_ids"`
	Reason  string  `json:"reason"`
	Err     error   `json:"-"`
}

// RoomFailure records a room skipped by reconciliation.
type RoomFailure struct {
	RoomID int64  `json:"room_id"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// Report is the outcome of one sync pass.
//
// Interrupted is set only when the pass context was cancelled before every
// planned batch started. A pass aborted by a store failure leaves it false
// and returns the failure as an error instead.
type Report struct {
	PassID           string           `json:"pass_id"`
	StartedAt        time.Time        `json:"started_at"`
	FinishedAt       time.Time        `json:"finished_at"`
	StaleRooms       int              `json:"stale_rooms"`
	Batches          int              `json:"batches"`
	BatchesAttempted int              `json:"batches_attempted"`
	Changes          map[int64]Change `json:"changes"`
	FetchFailures    []BatchFailure   `json:"fetch_failures,omitempty"`
	DecodeFailures   []RoomFailure    `json:"decode_failures,omitempty"`
	NotFound         []RoomFailure    `json:"not_found,omitempty"`
	Interrupted      bool             `json:"interrupted"`
}

// ChangedRoomIDs returns the changed-room set in ascending order.
func (r *Report) ChangedRoomIDs() []int64 {
	ids := make([]int64, 0, len(r.Changes))
	for id := range r.Changes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ChangeList returns the changes ordered by room id.
func (r *Report) ChangeList() []Change {
	out := make([]Change, 0, len(r.Changes))
	for _, id := range r.ChangedRoomIDs() {
		out = append(out, r.Changes[id])
	}
	return out
}

// Duration is the wall time of the pass.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// collector accumulates results from concurrently processed chunks.
type collector struct {
	mu     sync.Mutex
	report Report
}

func newCollector(passID string, startedAt time.Time) *collector {
	return &collector{report: Report{
		PassID:    passID,
		StartedAt: startedAt,
		Changes:   make(map[int64]Change),
	}}
}

func (c *collector) planned(stale, batches int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.StaleRooms = stale
	c.report.Batches = batches
}

func (c *collector) attempted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.BatchesAttempted++
}

func (c *collector) skippedBatches() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.report.BatchesAttempted < c.report.Batches
}

func (c *collector) changed(roomID int64, tr domain.Transition, remote domain.RemoteStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.Changes[roomID] = Change{
		RoomID:   roomID,
		Previous: tr.Previous,
		Current:  tr.Current,
		Remote:   remote,
	}
}

func (c *collector) batchFailed(ids []int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.FetchFailures = append(c.report.FetchFailures, BatchFailure{
		RoomIDs: slices.Clone(ids),
		Reason:  err.Error(),
		Err:     err,
	})
}

func (c *collector) decodeFailed(roomID int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.DecodeFailures = append(c.report.DecodeFailures, RoomFailure{RoomID: roomID, Reason: err.Error(), Err: err})
}

func (c *collector) notFound(roomID int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.NotFound = append(c.report.NotFound, RoomFailure{RoomID: roomID, Reason: err.Error(), Err: err})
}

func (c *collector) finish(finishedAt time.Time, interrupted bool) *Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.report
	r.FinishedAt = finishedAt
	r.Interrupted = interrupted
	return &r
}
