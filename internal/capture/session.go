package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Request is one capture of [Start, End) seconds of the loaded video.
// Container is the preferred output ("mp4" or "webm"); mp4 is used only
// when the recorder backend advertises support, otherwise webm.
type Request struct {
	Start     float64
	End       float64
	Container string
}

// Result is the assembled clip produced by one successful session.
type Result struct {
	Data     []byte
	MimeType string
	Ext      string
}

// Session drives one playback-windowed capture at a time. Sessions run
// strictly sequentially against the single media source; the queue above
// enforces that.
type Session struct {
	media     MediaSource
	recorders RecorderFactory
	profile   Profile
	logger    *slog.Logger
}

func NewSession(media MediaSource, recorders RecorderFactory, profile Profile, logger *slog.Logger) *Session {
	return &Session{
		media:     media,
		recorders: recorders,
		profile:   profile,
		logger:    logger,
	}
}

// Capture runs the full seek/acquire/record/assemble protocol for one
// range. The recording window is wall-clock driven: the recorder stops
// after End-Start seconds of scheduling, not when the media reports
// reaching End, so long clips can drift slightly against the declared
// range. ErrCaptureUnsupported passes through untouched; every other
// failure wraps ErrCaptureFailed. Cancellation via ctx stops the recorder
// early and returns the context error with no partial result.
func (s *Session) Capture(ctx context.Context, req Request) (*Result, error) {
	if req.End < req.Start {
		return nil, fmt.Errorf("%w: invalid range %.2fs-%.2fs", ErrCaptureFailed, req.Start, req.End)
	}

	if err := s.media.Seek(req.Start); err != nil {
		return nil, fmt.Errorf("%w: seek to %.2fs: %w", ErrCaptureFailed, req.Start, err)
	}

	stream, err := s.media.CaptureStream()
	if err != nil {
		if errors.Is(err, ErrCaptureUnsupported) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: acquire stream: %w", ErrCaptureFailed, err)
	}

	var chunks [][]byte
	defer func() {
		// Drop stream and chunk buffer before the next session starts;
		// capture resources are heavy and sessions run back to back.
		stream.Close()
		chunks = nil
	}()

	if c := s.profile.ConstraintsFor(stream.Size()); c != nil {
		if err := stream.ApplyConstraints(*c); err != nil {
			// Quality degradation must never block extraction.
			s.logger.Warn("failed to apply track constraints",
				"profile", s.profile.Name, "error", err)
		}
	}

	mimeType := MimeWebM
	if req.Container == "mp4" && s.recorders.Supports(MimeMP4) {
		mimeType = MimeMP4
	}

	rec, err := s.recorders.NewRecorder(stream, RecorderOptions{
		MimeType:           mimeType,
		VideoBitsPerSecond: s.profile.MaxBitrate,
		OnChunk: func(chunk []byte) {
			chunks = append(chunks, chunk)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create recorder: %w", ErrCaptureFailed, err)
	}

	if err := rec.Start(s.profile.ChunkInterval); err != nil {
		return nil, fmt.Errorf("%w: start recorder: %w", ErrCaptureFailed, err)
	}

	if err := s.media.Play(); err != nil {
		rec.Stop()
		return nil, fmt.Errorf("%w: start playback: %w", ErrCaptureFailed, err)
	}

	window := time.Duration((req.End - req.Start) * float64(time.Second))
	timer := time.NewTimer(window)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		rec.Stop()
		s.media.Pause()
		return nil, ctx.Err()
	case <-timer.C:
	}

	if err := rec.Stop(); err != nil {
		s.media.Pause()
		return nil, fmt.Errorf("%w: stop recorder: %w", ErrCaptureFailed, err)
	}
	if err := s.media.Pause(); err != nil {
		s.logger.Warn("failed to pause playback after capture", "error", err)
	}

	return &Result{
		Data:     bytes.Join(chunks, nil),
		MimeType: mimeType,
		Ext:      ContainerExt(mimeType),
	}, nil
}
