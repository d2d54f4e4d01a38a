package api

import (
	"time"

	"github.com/clipmark/clipmark-agent/internal/extract"
	"github.com/clipmark/clipmark-agent/internal/marks"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
	AgentID string `json:"agent_id"`
}

type StatusResponse struct {
	State          string               `json:"state"`
	Video          string               `json:"video,omitempty"`
	TimestampCount int                  `json:"timestamp_count"`
	ActiveMark     bool                 `json:"active_mark"`
	Profile        string               `json:"profile"`
	Queue          *QueueStatusResponse `json:"queue,omitempty"`
	Capture        *CaptureStatus       `json:"capture,omitempty"`
}

type QueueStatusResponse struct {
	Running   bool `json:"running"`
	Completed int  `json:"completed"`
	Failed    int  `json:"failed"`
	Cancelled int  `json:"cancelled"`
	Total     int  `json:"total"`
}

type CaptureStatus struct {
	CaptureStream bool   `json:"capture_stream"`
	MP4           bool   `json:"mp4"`
	LastProbeAt   string `json:"last_probe_at,omitempty"`
}

type LoadVideoRequest struct {
	Name string `json:"name"`
}

type LoadVideoResponse struct {
	Video string `json:"video"`
}

type MarkTimeRequest struct {
	Time float64 `json:"time"`
}

type StartMarkResponse struct {
	ID string `json:"id"`
}

type RelabelRequest struct {
	Label string `json:"label"`
}

type TimestampResponse struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	StartTime float64  `json:"start_time"`
	EndTime   *float64 `json:"end_time,omitempty"`
	Duration  *float64 `json:"duration,omitempty"`
}

type TimestampsResponse struct {
	Video      string              `json:"video"`
	ActiveID   string              `json:"active_id,omitempty"`
	Timestamps []TimestampResponse `json:"timestamps"`
}

type ExtractRequest struct {
	TimestampID string `json:"timestamp_id"`
	Container   string `json:"container,omitempty"`
}

type BatchExtractRequest struct {
	Container string `json:"container,omitempty"`
}

type ExtractResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type ProgressResponse struct {
	Running   bool          `json:"running"`
	Completed int           `json:"completed"`
	Total     int           `json:"total"`
	Jobs      []JobResponse `json:"jobs"`
}

type JobResponse struct {
	ID         string  `json:"id"`
	Video      string  `json:"video"`
	Label      string  `json:"label,omitempty"`
	OutputName string  `json:"output_name"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Status     string  `json:"status"`
	Progress   int     `json:"progress"`
	Error      string  `json:"error,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type UsageResponse struct {
	VideosProcessed int64 `json:"videos_processed"`
	ClipsCreated    int64 `json:"clips_created"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func TimestampToResponse(ts marks.Timestamp) TimestampResponse {
	resp := TimestampResponse{
		ID:        ts.ID,
		Label:     ts.Label,
		StartTime: ts.StartTime,
		EndTime:   ts.EndTime,
	}
	if ts.Closed() {
		d := ts.Duration()
		resp.Duration = &d
	}
	return resp
}

func JobToResponse(j extract.Job) JobResponse {
	return JobResponse{
		ID:         j.ID,
		Video:      j.Video,
		Label:      j.Label,
		OutputName: j.OutputName,
		Start:      j.Start,
		End:        j.End,
		Status:     string(j.Status),
		Progress:   j.Progress,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  j.UpdatedAt.Format(time.RFC3339),
	}
}

func JobsToResponse(jobs []extract.Job) []JobResponse {
	out := make([]JobResponse, len(jobs))
	for i, j := range jobs {
		out[i] = JobToResponse(j)
	}
	return out
}
