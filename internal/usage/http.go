package usage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RemoteError is a non-2xx response from the dashboard stats endpoint.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("usage update failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx). Client errors are
// considered permanent.
func (e *RemoteError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// HTTPStore forwards increments to the dashboard backend's user-stats
// endpoint instead of the local database. Reads go to the same endpoint.
type HTTPStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPStore(baseURL, token string, logger *slog.Logger) *HTTPStore {
	return &HTTPStore{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type statsPayload struct {
	VideosProcessed int64 `json:"videosProcessed,omitempty"`
	ClipsCreated    int64 `json:"clipsCreated,omitempty"`
}

func (s *HTTPStore) Increment(ctx context.Context, userID string, d Delta) error {
	if d.VideosProcessed == 0 && d.ClipsCreated == 0 {
		return nil
	}

	body, err := json.Marshal(statsPayload{
		VideosProcessed: d.VideosProcessed,
		ClipsCreated:    d.ClipsCreated,
	})
	if err != nil {
		return fmt.Errorf("marshal stats payload: %w", err)
	}

	url := fmt.Sprintf("%s/api/user-stats", s.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(req, userID)

	s.logger.Info("forwarding usage increment",
		"url", url,
		"user_id", userID,
		"videos", d.VideosProcessed,
		"clips", d.ClipsCreated,
	)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		tail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &RemoteError{StatusCode: resp.StatusCode, Body: string(tail)}
	}
	return nil
}

func (s *HTTPStore) Get(ctx context.Context, userID string) (Counters, error) {
	url := fmt.Sprintf("%s/api/user-stats", s.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Counters{}, fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(req, userID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Counters{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		tail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Counters{}, &RemoteError{StatusCode: resp.StatusCode, Body: string(tail)}
	}

	var remote struct {
		VideosProcessed int64 `json:"videosProcessed"`
		ClipsCreated    int64 `json:"clipsCreated"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&remote); err != nil {
		return Counters{}, fmt.Errorf("decode stats response: %w", err)
	}
	return Counters{
		VideosProcessed: remote.VideosProcessed,
		ClipsCreated:    remote.ClipsCreated,
	}, nil
}

func (s *HTTPStore) setHeaders(req *http.Request, userID string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("X-Clipmark-Request-Id", uuid.NewString()[:8])
	req.Header.Set("X-Clipmark-User-Id", userID)
}
