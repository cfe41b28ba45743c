// Package archive keeps pass reports in object storage for later lookup.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/Avimitin/bili-live-notify-bot/internal/reconciler"
	"github.com/Avimitin/bili-live-notify-bot/pkg/storage"
)

// ErrReportNotFound is returned by Load for an unknown pass id.
var ErrReportNotFound = errors.New("pass report not found")

const contentTypeJSON = "application/json"

// ReportArchive stores one JSON object per pass under prefix.
type ReportArchive struct {
	store  storage.Storage
	prefix string
}

// NewReportArchive creates a new ReportArchive.
func NewReportArchive(store storage.Storage, prefix string) *ReportArchive {
	return &ReportArchive{store: store, prefix: prefix}
}

func (a *ReportArchive) key(passID string) string {
	return path.Join(a.prefix, "passes", passID+".json")
}

// Archive writes the report.
func (a *ReportArchive) Archive(ctx context.Context, report *reconciler.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return a.store.Write(ctx, a.key(report.PassID), bytes.NewReader(data), int64(len(data)), contentTypeJSON)
}

// Load reads an archived report back.
func (a *ReportArchive) Load(ctx context.Context, passID string) (*reconciler.Report, error) {
	rc, err := a.store.Read(ctx, a.key(passID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrReportNotFound, passID)
		}
		return nil, err
	}
	defer rc.Close()

	var report reconciler.Report
	if err := json.NewDecoder(rc).Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", passID, err)
	}
	return &report, nil
}

var _ reconciler.Archiver = (*ReportArchive)(nil)
