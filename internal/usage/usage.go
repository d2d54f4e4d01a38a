// Package usage tracks per-user processing counters. The extraction
// pipeline only ever emits increments; failures here are logged and never
// roll back a result already delivered to the user.
package usage

import "context"

// Counters are the monotonically increasing per-user totals.
type Counters struct {
	VideosProcessed int64 `json:"videos_processed"`
	ClipsCreated    int64 `json:"clips_created"`
}

// Delta is one fire-and-forget increment request.
type Delta struct {
	VideosProcessed int64
	ClipsCreated    int64
}

// Store is the usage-counter collaborator interface.
type Store interface {
	Increment(ctx context.Context, userID string, d Delta) error
	Get(ctx context.Context, userID string) (Counters, error)
}
