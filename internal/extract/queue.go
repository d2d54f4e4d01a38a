// Package extract drains capture jobs through a capture session exactly
// one at a time. The playback element and its capture primitives are not
// safely parallelizable, so sequencing here is a correctness requirement,
// not a scheduling nicety.
package extract

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/clipmark/clipmark-agent/internal/capture"
	"github.com/clipmark/clipmark-agent/internal/export"
	"github.com/clipmark/clipmark-agent/internal/marks"
	"github.com/clipmark/clipmark-agent/internal/usage"
)

// ErrEmptyBatch is returned when a submission carries no closed ranges.
var ErrEmptyBatch = errors.New("no closed timestamps to extract")

// ErrBusy is returned when a drain is already in progress.
var ErrBusy = errors.New("an extraction run is already in progress")

// Capturer is the capture session seen by the queue.
type Capturer interface {
	Capture(ctx context.Context, req capture.Request) (*capture.Result, error)
}

// Saver receives each finished clip as a one-way (filename, data) handoff.
type Saver interface {
	Save(filename string, data []byte) error
}

// History optionally records terminal jobs for later inspection.
type History interface {
	Record(ctx context.Context, job Job) error
}

// Summary is the aggregate outcome of one drain.
type Summary struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	Total     int `json:"total"`
}

// Queue sequences capture jobs. One batch is held at a time; submitting a
// new batch replaces a finished one.
type Queue struct {
	capturer Capturer
	saver    Saver
	usage    usage.Store
	history  History
	logger   *slog.Logger

	// pause is the breather between jobs, giving the runtime a chance to
	// reclaim the previous recorder and stream before the next acquire.
	pause time.Duration

	mu        sync.Mutex
	jobs      []*Job
	container string
	running   bool
	// pending holds the slot between an accepted submission and its
	// drain starting, so a second submission cannot replace a batch
	// that was already acknowledged.
	pending   bool
	cancelled bool
	cancelRun context.CancelFunc
}

// Options carries the queue's collaborators. Usage and History may be nil.
type Options struct {
	Capturer Capturer
	Saver    Saver
	Usage    usage.Store
	History  History
	Logger   *slog.Logger
	JobPause time.Duration
}

func NewQueue(opts Options) *Queue {
	return &Queue{
		capturer: opts.Capturer,
		saver:    opts.Saver,
		usage:    opts.Usage,
		history:  opts.History,
		logger:   opts.Logger,
		pause:    opts.JobPause,
	}
}

// Submit builds a fresh batch from closed timestamps. Output names are
// derived here, from the current video name and the job's position among
// the closed ranges, and never recomputed at run time. An accepted batch
// reserves the queue until its drain starts; submitting again before then
// fails with ErrBusy instead of discarding it.
func (q *Queue) Submit(video, container string, ranges []marks.Timestamp) ([]Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running || q.pending {
		return nil, ErrBusy
	}

	var jobs []*Job
	now := time.Now()
	for _, ts := range ranges {
		if ts.EndTime == nil {
			continue
		}
		jobs = append(jobs, &Job{
			ID:         newJobID(),
			Video:      video,
			Label:      ts.Label,
			Start:      ts.StartTime,
			End:        *ts.EndTime,
			OutputName: export.ClipFileName(video, len(jobs)+1, ts.StartTime, *ts.EndTime),
			Status:     StatusQueued,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	if len(jobs) == 0 {
		return nil, ErrEmptyBatch
	}

	if container == "" {
		container = "mp4"
	}
	q.jobs = jobs
	q.container = container
	q.cancelled = false
	q.pending = true
	return q.snapshotLocked(), nil
}

// SubmitOne builds a single-job batch for one closed timestamp, keeping
// the mark's position among the closed marks in the output name.
func (q *Queue) SubmitOne(video, container string, ts marks.Timestamp, position int) ([]Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running || q.pending {
		return nil, ErrBusy
	}
	if ts.EndTime == nil {
		return nil, ErrEmptyBatch
	}

	now := time.Now()
	q.jobs = []*Job{{
		ID:         newJobID(),
		Video:      video,
		Label:      ts.Label,
		Start:      ts.StartTime,
		End:        *ts.EndTime,
		OutputName: export.ClipFileName(video, position, ts.StartTime, *ts.EndTime),
		Status:     StatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}}
	if container == "" {
		container = "mp4"
	}
	q.container = container
	q.cancelled = false
	q.pending = true
	return q.snapshotLocked(), nil
}

// Run drains the submitted batch strictly in submission order and returns
// the aggregate outcome. A CaptureUnsupported failure fails every
// remaining queued job with the same cause and stops the drain, since the
// capability gap applies to each of them identically. Other capture
// failures are contained to their job.
func (q *Queue) Run(ctx context.Context, userID string) (Summary, error) {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return Summary{}, ErrBusy
	}
	if len(q.jobs) == 0 {
		q.mu.Unlock()
		return Summary{}, ErrEmptyBatch
	}
	runCtx, cancel := context.WithCancel(ctx)
	q.running = true
	q.pending = false
	q.cancelRun = cancel
	jobs := q.jobs
	container := q.container
	q.mu.Unlock()

	// Queued rows land in history before any capture starts, so a crash
	// mid-drain leaves non-terminal rows behind for the startup repair.
	for _, job := range jobs {
		q.recordJob(*job)
	}

	defer func() {
		cancel()
		q.mu.Lock()
		q.running = false
		q.cancelRun = nil
		q.mu.Unlock()
	}()

	aborted := false
	for i, job := range jobs {
		if q.isCancelled() || runCtx.Err() != nil {
			aborted = true
			break
		}

		q.setStatus(job, StatusCapturing, "")
		q.logger.Info("capturing clip",
			"job_id", job.ID,
			"output", job.OutputName,
			"start", job.Start,
			"end", job.End,
		)

		res, err := q.capturer.Capture(runCtx, capture.Request{
			Start:     job.Start,
			End:       job.End,
			Container: container,
		})

		switch {
		case err != nil && (errors.Is(err, context.Canceled) || runCtx.Err() != nil):
			// Cancellation observed mid-window: the in-flight job is
			// cancelled, remaining jobs stay queued and never start.
			q.setStatus(job, StatusCancelled, "")
			q.logger.Info("extraction cancelled", "job_id", job.ID)
			aborted = true

		case err != nil && errors.Is(err, capture.ErrCaptureUnsupported):
			q.setStatus(job, StatusFailed, err.Error())
			for _, rest := range jobs[i+1:] {
				q.setStatus(rest, StatusFailed, err.Error())
			}
			q.logger.Error("capture unsupported, stopping queue", "job_id", job.ID, "error", err)
			aborted = true

		case err != nil:
			q.setStatus(job, StatusFailed, err.Error())
			q.logger.Warn("clip capture failed", "job_id", job.ID, "error", err)

		default:
			filename := export.SanitizeName(job.OutputName, 160) + "." + res.Ext
			if err := q.saver.Save(filename, res.Data); err != nil {
				q.setStatus(job, StatusFailed, "save clip: "+err.Error())
				q.logger.Error("failed to save clip", "job_id", job.ID, "error", err)
			} else {
				job.Progress = 100
				q.setStatus(job, StatusCompleted, "")
				q.logger.Info("clip saved", "job_id", job.ID, "filename", filename)
			}
		}

		if aborted {
			break
		}

		if i < len(jobs)-1 {
			if !q.sleep(runCtx, q.pause) {
				aborted = true
				// Loop re-checks cancellation before the next job; the
				// remaining jobs stay queued.
			}
		}
	}

	summary := q.Summary()

	if !aborted && summary.Completed > 0 {
		q.emitUsage(userID, summary.Completed)
	}

	q.logger.Info("extraction run finished",
		"completed", summary.Completed,
		"failed", summary.Failed,
		"cancelled", summary.Cancelled,
		"total", summary.Total,
	)
	return summary, nil
}

// Cancel requests a cooperative stop. It takes effect at the next checked
// boundary: the in-flight record window or the inter-job pause.
func (q *Queue) Cancel() {
	q.mu.Lock()
	q.cancelled = true
	cancel := q.cancelRun
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	q.logger.Info("extraction cancel requested")
}

// RetryFailed replaces the batch with fresh jobs for the failed ones
// only. Cancelled jobs were an explicit user intent and are not
// resurrected.
func (q *Queue) RetryFailed() ([]Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running || q.pending {
		return nil, ErrBusy
	}

	var retries []*Job
	now := time.Now()
	for _, job := range q.jobs {
		if job.Status != StatusFailed {
			continue
		}
		retries = append(retries, &Job{
			ID:         newJobID(),
			Video:      job.Video,
			Label:      job.Label,
			Start:      job.Start,
			End:        job.End,
			OutputName: job.OutputName,
			Status:     StatusQueued,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	if len(retries) == 0 {
		return nil, ErrEmptyBatch
	}

	q.jobs = retries
	q.cancelled = false
	q.pending = true
	return q.snapshotLocked(), nil
}

// Progress reports jobs that reached completed against the batch size.
// The completed count never decreases during a drain.
func (q *Queue) Progress() (completed, total int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, job := range q.jobs {
		if job.Status == StatusCompleted {
			completed++
		}
	}
	return completed, len(q.jobs)
}

// Summary tallies the batch by terminal state.
func (q *Queue) Summary() Summary {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Summary{Total: len(q.jobs)}
	for _, job := range q.jobs {
		switch job.Status {
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		case StatusCancelled:
			s.Cancelled++
		}
	}
	return s
}

// Jobs returns a snapshot of the current batch.
func (q *Queue) Jobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// Running reports whether a drain is in progress.
func (q *Queue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

func (q *Queue) snapshotLocked() []Job {
	out := make([]Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		out = append(out, *job)
	}
	return out
}

func (q *Queue) isCancelled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cancelled
}

func (q *Queue) setStatus(job *Job, status Status, errMsg string) {
	q.mu.Lock()
	job.Status = status
	job.Error = errMsg
	job.UpdatedAt = time.Now()
	snapshot := *job
	q.mu.Unlock()

	q.recordJob(snapshot)
}

// sleep waits for d or until the run is cancelled. Returns false when the
// wait was short-circuited.
func (q *Queue) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (q *Queue) emitUsage(userID string, clips int) {
	if q.usage == nil {
		return
	}
	// One aggregate event per drain, not one per clip; counter failures
	// never affect the clips already delivered.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := q.usage.Increment(ctx, userID, usage.Delta{ClipsCreated: int64(clips)}); err != nil {
		q.logger.Warn("failed to record clip usage", "user_id", userID, "error", err)
	}
}

func (q *Queue) recordJob(job Job) {
	if q.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := q.history.Record(ctx, job); err != nil {
		q.logger.Warn("failed to record job history", "job_id", job.ID, "error", err)
	}
}
