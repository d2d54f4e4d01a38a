package capture

import (
	"log/slog"
	"time"
)

// StubMediaSource stands in when no playback runtime is attached. Seek,
// play and pause succeed silently; acquiring a stream reports the
// capability gap so extraction degrades the same way an unsupported
// browser does.
type StubMediaSource struct {
	logger *slog.Logger
}

func NewStubMediaSource(logger *slog.Logger) *StubMediaSource {
	return &StubMediaSource{logger: logger}
}

func (m *StubMediaSource) Seek(seconds float64) error {
	m.logger.Debug("media stub: seek requested", "seconds", seconds)
	return nil
}

func (m *StubMediaSource) Play() error {
	m.logger.Debug("media stub: play requested")
	return nil
}

func (m *StubMediaSource) Pause() error {
	m.logger.Debug("media stub: pause requested")
	return nil
}

func (m *StubMediaSource) CaptureStream() (Stream, error) {
	m.logger.Info("media stub: stream capture requested (no capture runtime attached)")
	return nil, ErrCaptureUnsupported
}

// StubRecorderFactory advertises no container support and cannot build
// recorders.
type StubRecorderFactory struct {
	logger *slog.Logger
}

func NewStubRecorderFactory(logger *slog.Logger) *StubRecorderFactory {
	return &StubRecorderFactory{logger: logger}
}

func (f *StubRecorderFactory) Supports(mimeType string) bool {
	return false
}

func (f *StubRecorderFactory) NewRecorder(s Stream, opts RecorderOptions) (Recorder, error) {
	f.logger.Info("recorder stub: recorder requested", "mime_type", opts.MimeType)
	return nil, ErrCaptureUnsupported
}

// Capabilities reports what the attached capture backend can do, probed
// once at startup and surfaced on the status endpoint.
type Capabilities struct {
	CaptureStream bool      `json:"capture_stream"`
	MP4           bool      `json:"mp4"`
	ProbedAt      time.Time `json:"probed_at"`
}

// Probe acquires and immediately releases a stream to detect whether the
// backend supports capture, and asks the recorder factory about mp4.
func Probe(media MediaSource, recorders RecorderFactory) Capabilities {
	caps := Capabilities{
		MP4:      recorders.Supports(MimeMP4),
		ProbedAt: time.Now(),
	}

	stream, err := media.CaptureStream()
	if err == nil {
		stream.Close()
		caps.CaptureStream = true
	}
	return caps
}
