// Package client talks to the streaming platform's public live API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Avimitin/bili-live-notify-bot/internal/domain"
	"github.com/Avimitin/bili-live-notify-bot/pkg/log"
)

const (
	// DefaultBaseURL is the public live API host.
	DefaultBaseURL = "https://api.live.bilibili.com"

	// DefaultTimeout bounds one batch request.
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "bili-live-notify-bot/1.0"

	statusBatchPath = "/room/v1/Room/get_status_info_by_uids"

	maxResponseSize = 8 * 1024 * 1024
)

var (
	// ErrBadResponse is returned when the platform answers with a payload
	// that cannot be decoded.
	ErrBadResponse = errors.New("bad platform response")

	// ErrIncompleteBatch is returned when the platform omits requested ids.
	ErrIncompleteBatch = errors.New("platform response is missing requested rooms")
)

// APIError is a non-zero code in the platform envelope.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform error %d: %s", e.Code, e.Message)
}

// Config holds platform client settings.
type Config struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// PlatformClient fetches live status for batches of rooms.
type PlatformClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewPlatformClient creates a new platform client. Zero config values fall
// back to the package defaults.
func NewPlatformClient(cfg Config) *PlatformClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	return &PlatformClient{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// FetchStatuses returns the status of every requested room, or an error
// when any part of the batch could not be resolved.
func (c *PlatformClient) FetchStatuses(ctx context.Context, ids []int64) (map[int64]domain.RemoteStatus, error) {
	l := log.Ctx(ctx)

	if len(ids) == 0 {
		return map[int64]domain.RemoteStatus{}, nil
	}

	body, err := json.Marshal(statusBatchRequest{UIDs: ids})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+statusBatchPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch room statuses: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http status %d", ErrBadResponse, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	rooms, err := decodeStatusBatch(raw)
	if err != nil {
		return nil, err
	}

	result := make(map[int64]domain.RemoteStatus, len(ids))
	for _, id := range ids {
		info, ok := rooms[id]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrIncompleteBatch, id)
		}
		result[id] = info.toRemoteStatus()
	}

	l.Debug().Int(log.FieldBatchSize, len(ids)).Msg("fetched room statuses")
	return result, nil
}

func decodeStatusBatch(raw []byte) (map[int64]RoomInfo, error) {
	var envelope statusBatchResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	if envelope.Code != 0 {
		return nil, &APIError{Code: envelope.Code, Message: envelope.Message}
	}

	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte("[]")) {
		return map[int64]RoomInfo{}, nil
	}

	var byKey map[string]RoomInfo
	if err := json.Unmarshal(data, &byKey); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}

	rooms := make(map[int64]RoomInfo, len(byKey))
	for key, info := range byKey {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: room key %q", ErrBadResponse, key)
		}
		rooms[id] = info
	}
	return rooms, nil
}

func (r RoomInfo) toRemoteStatus() domain.RemoteStatus {
	tags := []string(r.TagName)
	if len(tags) == 0 {
		tags = []string(r.Tags)
	}

	area := r.AreaV2Name
	if area == "" {
		area = r.AreaName
	}

	return domain.RemoteStatus{
		Code:        r.LiveStatus,
		DisplayName: r.Uname,
		Title:       r.Title,
		AreaName:    area,
		Tags:        tags,
		CoverURL:    r.CoverFromUser.String(),
		Online:      r.Online,
	}
}
