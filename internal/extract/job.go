package extract

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of one capture job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusCapturing Status = "capturing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Job is one queued unit of work turning a closed timestamp into a
// downloadable clip. The range and output name are copied at submission
// time so later edits to the timestamp do not affect a queued job.
type Job struct {
	ID         string  `json:"id"`
	Video      string  `json:"video"`
	Label      string  `json:"label,omitempty"`
	Start      float64 `json:"start_time"`
	End        float64 `json:"end_time"`
	OutputName string  `json:"output_name"`
	Status     Status  `json:"status"`
	Progress   int     `json:"progress"`
	Error      string  `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newJobID() string {
	return uuid.NewString()
}
