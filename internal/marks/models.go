package marks

import (
	"fmt"

	"github.com/google/uuid"
)

// Timestamp is a user-marked time range of interest within the loaded
// video. EndTime is nil while the mark is still open (recording).
type Timestamp struct {
	ID        string   `json:"id"`
	StartTime float64  `json:"start_time"`
	EndTime   *float64 `json:"end_time,omitempty"`
	Label     string   `json:"label"`
}

// Closed reports whether the mark has an end time.
func (t Timestamp) Closed() bool {
	return t.EndTime != nil
}

// Duration returns end-start for closed marks and 0 for open ones.
func (t Timestamp) Duration() float64 {
	if t.EndTime == nil {
		return 0
	}
	return *t.EndTime - t.StartTime
}

// NewID returns a fresh opaque timestamp identifier.
func NewID() string {
	return uuid.NewString()
}

func defaultLabel(position int) string {
	return fmt.Sprintf("Timestamp %d", position)
}
