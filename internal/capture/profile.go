package capture

import "time"

// Profile is a named preset of resource constraints applied during
// capture. Profiles are immutable values; picking a different one has no
// effect on a session already past its constraint step.
type Profile struct {
	Name string

	// Track caps. Zero means no cap.
	MaxWidth     int
	MaxHeight    int
	MaxFrameRate int

	// Encoder bitrate cap in bits per second. Zero leaves the encoder
	// default in place.
	MaxBitrate int

	// Caps apply only when the source is wider than this. Zero applies
	// them unconditionally.
	MinSourceWidth int

	// ChunkInterval is the recorder timeslice. Larger intervals trade
	// responsiveness for less per-chunk overhead.
	ChunkInterval time.Duration
}

// Constraints is the track-level cap tuple handed to ApplyConstraints.
type Constraints struct {
	Width     int
	Height    int
	FrameRate int
}

var profiles = map[string]Profile{
	"quality": {
		Name:          "quality",
		ChunkInterval: 500 * time.Millisecond,
	},
	"balanced": {
		Name:           "balanced",
		MaxWidth:       1280,
		MaxHeight:      720,
		MaxFrameRate:   30,
		MaxBitrate:     1_000_000,
		MinSourceWidth: 1920,
		ChunkInterval:  time.Second,
	},
	"performance": {
		Name:          "performance",
		MaxWidth:      640,
		MaxHeight:     360,
		MaxFrameRate:  15,
		MaxBitrate:    500_000,
		ChunkInterval: 2 * time.Second,
	},
}

// Resolve maps a preset name to its profile.
func Resolve(name string) (Profile, bool) {
	p, ok := profiles[name]
	return p, ok
}

// ConstraintsFor returns the caps to request for a stream of the given
// source size, or nil when the profile leaves the track untouched.
func (p Profile) ConstraintsFor(srcWidth, srcHeight int) *Constraints {
	if p.MaxWidth == 0 && p.MaxHeight == 0 && p.MaxFrameRate == 0 {
		return nil
	}
	if p.MinSourceWidth > 0 && srcWidth <= p.MinSourceWidth {
		return nil
	}
	return &Constraints{
		Width:     p.MaxWidth,
		Height:    p.MaxHeight,
		FrameRate: p.MaxFrameRate,
	}
}
