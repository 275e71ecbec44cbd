// Package video provides frame access to video files. Decoding is delegated to ffmpeg;
// MemorySource serves pre-decoded frames.
package video

import (
	"context"
	"image"
	"sort"

	visionerr "github.com/heimdex/heimdex-vision/internal/errors"
)

// FrameSource yields decoded frames by timestamp.
type FrameSource interface {
	FPS() float64
	Duration() float64
	Width() int
	Height() int
	// Frame returns the frame displayed at t seconds.
	Frame(ctx context.Context, t float64) (image.Image, error)
	Close() error
}

// Info is the probed stream metadata of a video.
type Info struct {
	FPS      float64 `json:"fps"`
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Codec    string  `json:"codec,omitempty"`
}

// Validate rejects streams without a usable frame rate or duration.
func (i Info) Validate() error {
	if i.FPS <= 0 {
		return visionerr.InvalidVideo("frame rate must be positive, got %v", i.FPS)
	}
	if i.Duration <= 0 {
		return visionerr.InvalidVideo("duration must be positive, got %v", i.Duration)
	}
	return nil
}

// TimedFrame is a frame that becomes visible at At seconds.
type TimedFrame struct {
	At    float64
	Image image.Image
}

// MemorySource is a FrameSource over in-memory frames.
type MemorySource struct {
	info   Info
	frames []TimedFrame
}

var _ FrameSource = (*MemorySource)(nil)

// NewMemorySource builds a source from frames. Each frame is shown from its At until the next
// frame's At. The first frame also covers any time before it.
func NewMemorySource(fps, duration float64, frames []TimedFrame) (*MemorySource, error) {
	if len(frames) == 0 {
		return nil, visionerr.InvalidVideo("memory source needs at least one frame")
	}
	sorted := make([]TimedFrame, len(frames))
	copy(sorted, frames)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At < sorted[j].At })

	b := sorted[0].Image.Bounds()
	info := Info{FPS: fps, Duration: duration, Width: b.Dx(), Height: b.Dy()}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return &MemorySource{info: info, frames: sorted}, nil
}

func (m *MemorySource) FPS() float64      { return m.info.FPS }
func (m *MemorySource) Duration() float64 { return m.info.Duration }
func (m *MemorySource) Width() int        { return m.info.Width }
func (m *MemorySource) Height() int       { return m.info.Height }
func (m *MemorySource) Close() error      { return nil }

func (m *MemorySource) Frame(ctx context.Context, t float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t < 0 || t > m.info.Duration {
		return nil, visionerr.Errorf(visionerr.CodeFrameSourceFailure, "timestamp %.3f outside [0, %.3f]", t, m.info.Duration)
	}
	// last frame whose At <= t
	i := sort.Search(len(m.frames), func(i int) bool { return m.frames[i].At > t })
	if i == 0 {
		return m.frames[0].Image, nil
	}
	return m.frames[i-1].Image, nil
}
