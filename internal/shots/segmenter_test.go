package shots_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimdex/heimdex-vision/internal/embedding"
	visionerr "github.com/heimdex/heimdex-vision/internal/errors"
	"github.com/heimdex/heimdex-vision/internal/shots"
	"github.com/heimdex/heimdex-vision/internal/vecmath"
	"github.com/heimdex/heimdex-vision/internal/video"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func solid(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 32, 18))
	for y := 0; y < 18; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func memSource(t *testing.T, fps, duration float64, frames ...video.TimedFrame) *video.MemorySource {
	t.Helper()
	src, err := video.NewMemorySource(fps, duration, frames)
	require.NoError(t, err)
	return src
}

func TestSegment_DetectsHardCut(t *testing.T) {
	src := memSource(t, 10, 6,
		video.TimedFrame{At: 0, Image: solid(color.Black)},
		video.TimedFrame{At: 3, Image: solid(color.White)},
	)
	seg := shots.NewSegmenter(nil, quietLogger())

	var progressed bool
	got, err := seg.Segment(context.Background(), src, shots.Options{
		VideoID:  "vid-1",
		Progress: func(float64) { progressed = true },
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, progressed)

	first, second := got[0], got[1]
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, 1, second.Index)
	assert.InDelta(t, 0, first.StartTime, 1e-9)
	assert.InDelta(t, 3, first.EndTime, 1e-9)
	assert.InDelta(t, 3, second.StartTime, 1e-9)
	assert.InDelta(t, 6, second.EndTime, 1e-9)
	assert.InDelta(t, 1.5, first.KeyframeTime, 1e-9)

	for _, s := range got {
		assert.Equal(t, "vid-1", s.VideoID)
		assert.NotEmpty(t, s.ID)
		assert.Equal(t, shots.MovementStatic, s.MovementType)
		assert.Equal(t, "medium", s.ShotSize)
		assert.Equal(t, []string{"medium", "short_shot", "static"}, s.Tags)
		assert.Nil(t, s.KeyframeFeature)
		assert.NotNil(t, s.Composition)
	}
}

func TestSegment_DropsShortSpans(t *testing.T) {
	src := memSource(t, 10, 6,
		video.TimedFrame{At: 0, Image: solid(color.Black)},
		video.TimedFrame{At: 3, Image: solid(color.White)},
		video.TimedFrame{At: 3.3, Image: solid(color.Black)},
	)
	seg := shots.NewSegmenter(nil, quietLogger())

	got, err := seg.Segment(context.Background(), src, shots.Options{SampleRate: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)

	// the 0.3s white flash is dropped, leaving a gap
	assert.InDelta(t, 3, got[0].EndTime, 1e-6)
	assert.InDelta(t, 3.3, got[1].StartTime, 1e-6)
	for i, s := range got {
		assert.Equal(t, i, s.Index)
		assert.Less(t, s.StartTime, s.EndTime)
		assert.GreaterOrEqual(t, s.Duration, shots.MinShotDuration)
	}
}

func TestSegment_SingleShotWithEmbedding(t *testing.T) {
	src := memSource(t, 24, 12, video.TimedFrame{At: 0, Image: solid(color.RGBA{R: 200, G: 40, B: 40, A: 255})})
	seg := shots.NewSegmenter(embedding.NewStubProvider(16), quietLogger())

	got, err := seg.Segment(context.Background(), src, shots.Options{
		SceneContext: "A tense dialogue scene",
		ExtraTags:    []string{"night", "static"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)

	s := got[0]
	assert.InDelta(t, 12, s.Duration, 1e-9)
	assert.Len(t, s.KeyframeFeature, 16)
	assert.Equal(t, []string{"long_shot", "medium", "night", "static"}, s.Tags)
	assert.Equal(t, []string{"conversation"}, s.UsageSituations)
	assert.Equal(t, "A tense dialogue scene", s.SceneDescription)
}

type failingProvider struct{}

func (failingProvider) Embed(context.Context, image.Image) (vecmath.FeatureVector, error) {
	return nil, visionerr.New(visionerr.CodeEmbeddingUpstream, "model offline")
}
func (failingProvider) Model() string  { return "broken" }
func (failingProvider) Dimension() int { return 4 }

func TestSegment_EmbeddingFailureKeepsShot(t *testing.T) {
	src := memSource(t, 10, 4, video.TimedFrame{At: 0, Image: solid(color.Gray{Y: 90})})
	seg := shots.NewSegmenter(failingProvider{}, quietLogger())

	got, err := seg.Segment(context.Background(), src, shots.Options{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].KeyframeFeature)
}

type fakeSource struct {
	fps, duration float64
	err           error
}

func (f fakeSource) FPS() float64      { return f.fps }
func (f fakeSource) Duration() float64 { return f.duration }
func (f fakeSource) Width() int        { return 32 }
func (f fakeSource) Height() int       { return 18 }
func (f fakeSource) Close() error      { return nil }
func (f fakeSource) Frame(context.Context, float64) (image.Image, error) {
	if f.err != nil {
		return nil, f.err
	}
	return solid(color.Black), nil
}

func TestSegment_InvalidVideo(t *testing.T) {
	seg := shots.NewSegmenter(nil, quietLogger())
	ctx := context.Background()

	_, err := seg.Segment(ctx, fakeSource{fps: 0, duration: 10}, shots.Options{})
	assert.True(t, visionerr.HasCode(err, visionerr.CodeInvalidVideo))

	_, err = seg.Segment(ctx, fakeSource{fps: 30, duration: 0}, shots.Options{})
	assert.True(t, visionerr.HasCode(err, visionerr.CodeInvalidVideo))
	assert.True(t, visionerr.IsInvalidInput(err))

	_, err = seg.Segment(ctx, fakeSource{fps: 30, duration: 5}, shots.Options{DiffThreshold: 1.5})
	assert.True(t, visionerr.IsInvalidInput(err))
}

func TestSegment_FrameFailureAborts(t *testing.T) {
	seg := shots.NewSegmenter(nil, quietLogger())
	_, err := seg.Segment(context.Background(), fakeSource{fps: 30, duration: 5, err: errors.New("decoder crashed")}, shots.Options{})
	require.Error(t, err)
	assert.True(t, visionerr.HasCode(err, visionerr.CodeFrameSourceFailure))
}

func TestSegment_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	seg := shots.NewSegmenter(nil, quietLogger())
	_, err := seg.Segment(ctx, fakeSource{fps: 30, duration: 5}, shots.Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassifyMovement(t *testing.T) {
	assert.Equal(t, shots.MovementStatic, shots.ClassifyMovement(0.01))
	assert.Equal(t, shots.MovementSlow, shots.ClassifyMovement(0.05))
	assert.Equal(t, shots.MovementPan, shots.ClassifyMovement(0.2))
	assert.Equal(t, shots.MovementFast, shots.ClassifyMovement(0.3))
}

func TestDurationTag(t *testing.T) {
	assert.Equal(t, "quick_cut", shots.DurationTag(1.9))
	assert.Equal(t, "short_shot", shots.DurationTag(2))
	assert.Equal(t, "medium_shot", shots.DurationTag(9.99))
	assert.Equal(t, "long_shot", shots.DurationTag(10))
}

func TestUsageSituations(t *testing.T) {
	assert.Equal(t, []string{"character_focus", "dialogue", "emotional_moment"},
		shots.UsageSituations(shots.MovementStatic, "close_up", ""))
	assert.Equal(t, []string{"establishing_shot", "location_reveal", "transition"},
		shots.UsageSituations(shots.MovementPan, "wide", ""))
	assert.Equal(t, []string{"action_scene", "action_sequence", "chase", "dynamic_moment"},
		shots.UsageSituations(shots.MovementFast, "medium", "Big ACTION finale"))
	assert.Empty(t, shots.UsageSituations(shots.MovementSlow, "medium", ""))
}
