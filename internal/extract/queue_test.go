package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/clipmark/clipmark-agent/internal/capture"
	"github.com/clipmark/clipmark-agent/internal/marks"
	"github.com/clipmark/clipmark-agent/internal/usage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCapturer struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, ctx context.Context, req capture.Request) (*capture.Result, error)
}

func (f *fakeCapturer) Capture(ctx context.Context, req capture.Request) (*capture.Result, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	if f.fn != nil {
		return f.fn(call, ctx, req)
	}
	return &capture.Result{
		Data:     []byte(fmt.Sprintf("clip-%d", call)),
		MimeType: capture.MimeMP4,
		Ext:      "mp4",
	}, nil
}

type memSaver struct {
	mu    sync.Mutex
	order []string
	files map[string][]byte
	err   error
}

func newMemSaver() *memSaver {
	return &memSaver{files: make(map[string][]byte)}
}

func (s *memSaver) Save(filename string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.order = append(s.order, filename)
	s.files[filename] = data
	return nil
}

type memHistory struct {
	mu      sync.Mutex
	records []Job
}

func (h *memHistory) Record(ctx context.Context, job Job) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, job)
	return nil
}

func (h *memHistory) statuses(jobID string) []Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Status
	for _, rec := range h.records {
		if rec.ID == jobID {
			out = append(out, rec.Status)
		}
	}
	return out
}

func closedRange(start, end float64) marks.Timestamp {
	return marks.Timestamp{ID: marks.NewID(), StartTime: start, EndTime: &end}
}

func newTestQueue(cap Capturer, saver Saver, store usage.Store) *Queue {
	return NewQueue(Options{
		Capturer: cap,
		Saver:    saver,
		Usage:    store,
		Logger:   testLogger(),
		JobPause: 0,
	})
}

func TestSubmitDerivesOutputNames(t *testing.T) {
	q := newTestQueue(&fakeCapturer{}, newMemSaver(), nil)

	jobs, err := q.Submit("demo", "mp4", []marks.Timestamp{
		closedRange(0, 2),
		closedRange(5, 7),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].OutputName != "demo_jump_1_0.0s-2.0s" {
		t.Errorf("job 1 output = %q", jobs[0].OutputName)
	}
	if jobs[1].OutputName != "demo_jump_2_5.0s-7.0s" {
		t.Errorf("job 2 output = %q", jobs[1].OutputName)
	}
}

func TestSubmitSkipsOpenTimestamps(t *testing.T) {
	q := newTestQueue(&fakeCapturer{}, newMemSaver(), nil)

	jobs, err := q.Submit("demo", "mp4", []marks.Timestamp{
		{ID: marks.NewID(), StartTime: 1},
		closedRange(3, 4),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected open timestamp skipped, got %d jobs", len(jobs))
	}
	if jobs[0].OutputName != "demo_jump_1_3.0s-4.0s" {
		t.Errorf("output = %q", jobs[0].OutputName)
	}
}

func TestSubmitEmptyBatch(t *testing.T) {
	q := newTestQueue(&fakeCapturer{}, newMemSaver(), nil)

	if _, err := q.Submit("demo", "mp4", nil); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("expected ErrEmptyBatch, got %v", err)
	}
	open := []marks.Timestamp{{ID: marks.NewID(), StartTime: 1}}
	if _, err := q.Submit("demo", "mp4", open); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("expected ErrEmptyBatch for open-only batch, got %v", err)
	}
}

func TestRunDrainsInOrder(t *testing.T) {
	saver := newMemSaver()
	store := usage.NewMemoryStore()
	q := newTestQueue(&fakeCapturer{}, saver, store)

	if _, err := q.Submit("demo", "mp4", []marks.Timestamp{
		closedRange(0, 2),
		closedRange(5, 7),
		closedRange(10, 11.5),
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	summary, err := q.Run(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Completed != 3 || summary.Failed != 0 || summary.Cancelled != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	want := []string{
		"demo_jump_1_0.0s-2.0s.mp4",
		"demo_jump_2_5.0s-7.0s.mp4",
		"demo_jump_3_10.0s-11.5s.mp4",
	}
	if len(saver.order) != len(want) {
		t.Fatalf("saved %d clips, want %d", len(saver.order), len(want))
	}
	for i, name := range want {
		if saver.order[i] != name {
			t.Errorf("clip %d saved as %q, want %q", i+1, saver.order[i], name)
		}
	}

	counters, _ := store.Get(context.Background(), "user-1")
	if counters.ClipsCreated != 3 {
		t.Errorf("clips created = %d, want 3", counters.ClipsCreated)
	}

	done, total := q.Progress()
	if done != 3 || total != 3 {
		t.Errorf("progress = %d/%d, want 3/3", done, total)
	}
}

func TestRunContainsCaptureFailure(t *testing.T) {
	cap := &fakeCapturer{fn: func(call int, ctx context.Context, req capture.Request) (*capture.Result, error) {
		if call == 2 {
			return nil, fmt.Errorf("%w: recorder error", capture.ErrCaptureFailed)
		}
		return &capture.Result{Data: []byte("clip"), MimeType: capture.MimeMP4, Ext: "mp4"}, nil
	}}
	store := usage.NewMemoryStore()
	q := newTestQueue(cap, newMemSaver(), store)

	if _, err := q.Submit("demo", "mp4", []marks.Timestamp{
		closedRange(0, 1), closedRange(2, 3), closedRange(4, 5),
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	summary, err := q.Run(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Completed != 2 || summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	jobs := q.Jobs()
	if jobs[0].Status != StatusCompleted || jobs[1].Status != StatusFailed || jobs[2].Status != StatusCompleted {
		t.Errorf("statuses = %s/%s/%s", jobs[0].Status, jobs[1].Status, jobs[2].Status)
	}
	if jobs[1].Error == "" {
		t.Error("failed job should carry an error message")
	}

	counters, _ := store.Get(context.Background(), "user-1")
	if counters.ClipsCreated != 2 {
		t.Errorf("clips created = %d, want 2", counters.ClipsCreated)
	}
}

func TestRunUnsupportedFailsRemaining(t *testing.T) {
	cap := &fakeCapturer{fn: func(call int, ctx context.Context, req capture.Request) (*capture.Result, error) {
		return nil, capture.ErrCaptureUnsupported
	}}
	store := usage.NewMemoryStore()
	q := newTestQueue(cap, newMemSaver(), store)

	if _, err := q.Submit("demo", "mp4", []marks.Timestamp{
		closedRange(0, 1), closedRange(2, 3), closedRange(4, 5),
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	summary, err := q.Run(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Failed != 3 {
		t.Fatalf("summary = %+v, want all 3 failed", summary)
	}
	if cap.calls != 1 {
		t.Errorf("capture attempted %d times, want 1", cap.calls)
	}

	jobs := q.Jobs()
	cause := jobs[0].Error
	for i, job := range jobs {
		if job.Status != StatusFailed {
			t.Errorf("job %d status = %s", i+1, job.Status)
		}
		if job.Error != cause {
			t.Errorf("job %d error = %q, want shared cause %q", i+1, job.Error, cause)
		}
	}

	counters, _ := store.Get(context.Background(), "user-1")
	if counters.ClipsCreated != 0 {
		t.Errorf("clips created = %d, want 0", counters.ClipsCreated)
	}
}

func TestCancelDuringSecondJob(t *testing.T) {
	var q *Queue
	cap := &fakeCapturer{}
	cap.fn = func(call int, ctx context.Context, req capture.Request) (*capture.Result, error) {
		if call == 2 {
			q.Cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &capture.Result{Data: []byte("clip"), MimeType: capture.MimeMP4, Ext: "mp4"}, nil
	}
	store := usage.NewMemoryStore()
	q = newTestQueue(cap, newMemSaver(), store)

	ranges := make([]marks.Timestamp, 0, 5)
	for i := 0; i < 5; i++ {
		ranges = append(ranges, closedRange(float64(i*10), float64(i*10+2)))
	}
	if _, err := q.Submit("demo", "mp4", ranges); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	summary, err := q.Run(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Completed != 1 || summary.Cancelled != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	jobs := q.Jobs()
	if jobs[0].Status != StatusCompleted {
		t.Errorf("job 1 status = %s, want completed", jobs[0].Status)
	}
	if jobs[1].Status != StatusCancelled {
		t.Errorf("job 2 status = %s, want cancelled", jobs[1].Status)
	}
	for i := 2; i < 5; i++ {
		if jobs[i].Status != StatusQueued {
			t.Errorf("job %d status = %s, want queued", i+1, jobs[i].Status)
		}
	}

	counters, _ := store.Get(context.Background(), "user-1")
	if counters.ClipsCreated != 0 {
		t.Errorf("clips created = %d, want 0 after cancel", counters.ClipsCreated)
	}
}

func TestRetryFailedSkipsCancelled(t *testing.T) {
	var q *Queue
	cap := &fakeCapturer{}
	cap.fn = func(call int, ctx context.Context, req capture.Request) (*capture.Result, error) {
		switch call {
		case 1, 2:
			return nil, fmt.Errorf("%w: flaky recorder", capture.ErrCaptureFailed)
		default:
			q.Cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		}
	}
	q = newTestQueue(cap, newMemSaver(), nil)

	first, err := q.Submit("demo", "mp4", []marks.Timestamp{
		closedRange(0, 1), closedRange(2, 3), closedRange(4, 5),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := q.Run(context.Background(), "user-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	retries, err := q.RetryFailed()
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if len(retries) != 2 {
		t.Fatalf("retried %d jobs, want 2", len(retries))
	}
	for i, job := range retries {
		if job.Status != StatusQueued {
			t.Errorf("retry %d status = %s", i+1, job.Status)
		}
		if job.OutputName != first[i].OutputName {
			t.Errorf("retry %d output = %q, want %q", i+1, job.OutputName, first[i].OutputName)
		}
		if job.ID == first[i].ID {
			t.Errorf("retry %d reused job ID %s", i+1, job.ID)
		}
	}
}

func TestRetryFailedWithNoFailures(t *testing.T) {
	q := newTestQueue(&fakeCapturer{}, newMemSaver(), nil)

	if _, err := q.Submit("demo", "mp4", []marks.Timestamp{closedRange(0, 1)}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := q.Run(context.Background(), "user-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := q.RetryFailed(); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestRunWhileRunningReturnsBusy(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	cap := &fakeCapturer{fn: func(call int, ctx context.Context, req capture.Request) (*capture.Result, error) {
		close(started)
		<-release
		return &capture.Result{Data: []byte("clip"), MimeType: capture.MimeMP4, Ext: "mp4"}, nil
	}}
	q := newTestQueue(cap, newMemSaver(), nil)

	if _, err := q.Submit("demo", "mp4", []marks.Timestamp{closedRange(0, 1)}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := q.Run(context.Background(), "user-1")
		done <- err
	}()
	<-started

	if !q.Running() {
		t.Error("Running() = false during drain")
	}
	if _, err := q.Run(context.Background(), "user-1"); !errors.Is(err, ErrBusy) {
		t.Errorf("concurrent Run: expected ErrBusy, got %v", err)
	}
	if _, err := q.Submit("demo", "mp4", []marks.Timestamp{closedRange(0, 1)}); !errors.Is(err, ErrBusy) {
		t.Errorf("Submit during drain: expected ErrBusy, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if q.Running() {
		t.Error("Running() = true after drain")
	}
}

func TestRunRecordsStatusTransitions(t *testing.T) {
	history := &memHistory{}
	q := NewQueue(Options{
		Capturer: &fakeCapturer{},
		Saver:    newMemSaver(),
		History:  history,
		Logger:   testLogger(),
		JobPause: 0,
	})

	jobs, err := q.Submit("demo", "mp4", []marks.Timestamp{closedRange(0, 2)})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := q.Run(context.Background(), "user-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []Status{StatusQueued, StatusCapturing, StatusCompleted}
	got := history.statuses(jobs[0].ID)
	if len(got) != len(want) {
		t.Fatalf("recorded statuses = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("recorded statuses = %v, want %v", got, want)
		}
	}
}

func TestSubmitReservesQueueUntilRunStarts(t *testing.T) {
	q := newTestQueue(&fakeCapturer{}, newMemSaver(), nil)

	first, err := q.Submit("demo", "mp4", []marks.Timestamp{closedRange(0, 2)})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// The accepted batch must survive until its drain runs.
	if _, err := q.Submit("demo", "mp4", []marks.Timestamp{closedRange(5, 7)}); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Submit before Run: expected ErrBusy, got %v", err)
	}
	if _, err := q.RetryFailed(); !errors.Is(err, ErrBusy) {
		t.Fatalf("RetryFailed before Run: expected ErrBusy, got %v", err)
	}

	jobs := q.Jobs()
	if len(jobs) != 1 || jobs[0].ID != first[0].ID {
		t.Fatalf("batch replaced before Run: %+v", jobs)
	}

	if _, err := q.Run(context.Background(), "user-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := q.Submit("demo", "mp4", []marks.Timestamp{closedRange(5, 7)}); err != nil {
		t.Fatalf("Submit after drain: %v", err)
	}
}

func TestSaveFailureMarksJobFailed(t *testing.T) {
	saver := newMemSaver()
	saver.err = fmt.Errorf("disk full")
	q := newTestQueue(&fakeCapturer{}, saver, nil)

	if _, err := q.Submit("demo", "mp4", []marks.Timestamp{closedRange(0, 1)}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	summary, err := q.Run(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Failed != 1 || summary.Completed != 0 {
		t.Fatalf("summary = %+v", summary)
	}
}
