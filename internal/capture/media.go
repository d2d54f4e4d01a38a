// Package capture turns one time range of a playing video into an
// encoded media blob. The playback element, its capture stream and the
// chunked recorder are injectable so the pipeline runs against fakes in
// tests and against a stub in environments with no capture runtime.
package capture

import (
	"errors"
	"time"
)

// ErrCaptureUnsupported means the runtime offers no stream-capture
// capability at all. It is terminal for the whole feature and must not be
// retried, unlike per-session capture failures.
var ErrCaptureUnsupported = errors.New("video capture is not supported in this environment")

// ErrCaptureFailed marks a transient, single-session failure. The cause
// is attached via wrapping; resubmitting a fresh session for the same
// range is a valid retry.
var ErrCaptureFailed = errors.New("clip capture failed")

// Supported MIME types and their container extensions.
const (
	MimeMP4  = "video/mp4"
	MimeWebM = "video/webm"
)

// ContainerExt maps a capture MIME type to a file extension.
func ContainerExt(mimeType string) string {
	if mimeType == MimeMP4 {
		return "mp4"
	}
	return "webm"
}

// MediaSource is one playable, already-loaded video element. A running
// session owns it exclusively; nothing else may seek, play or pause it
// until the session releases its stream.
type MediaSource interface {
	Seek(seconds float64) error
	Play() error
	Pause() error

	// CaptureStream obtains a live stream of the rendered output.
	// Returns ErrCaptureUnsupported when the runtime has no capture
	// capability.
	CaptureStream() (Stream, error)
}

// Stream is one live capture stream. Close releases the underlying
// device/encoder resources and must be called on every session exit path.
type Stream interface {
	// Size reports the source video track dimensions.
	Size() (width, height int)

	// ApplyConstraints requests track caps. Best-effort: callers log and
	// swallow failures rather than abort the capture.
	ApplyConstraints(c Constraints) error

	Close() error
}

// RecorderOptions parameterize one recorder over a stream.
type RecorderOptions struct {
	MimeType           string
	VideoBitsPerSecond int

	// OnChunk receives encoded chunks as they are emitted. Calls are
	// sequential; the final chunk is delivered before Stop returns.
	OnChunk func(chunk []byte)
}

// Recorder encodes a stream into timed chunks.
type Recorder interface {
	Start(timeslice time.Duration) error
	Stop() error
}

// RecorderFactory constructs recorders and advertises container support.
type RecorderFactory interface {
	Supports(mimeType string) bool
	NewRecorder(s Stream, opts RecorderOptions) (Recorder, error)
}
