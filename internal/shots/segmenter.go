package shots

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-vision/internal/embedding"
	visionerr "github.com/heimdex/heimdex-vision/internal/errors"
	"github.com/heimdex/heimdex-vision/internal/frames"
	"github.com/heimdex/heimdex-vision/internal/metrics"
	"github.com/heimdex/heimdex-vision/internal/video"
)

// DefaultDiffThreshold is the frame difference above which a shot boundary is declared.
const DefaultDiffThreshold = 0.3

const movementSamples = 5

// Options controls a segmentation run.
type Options struct {
	VideoID string
	// DiffThreshold in [0, 1]; zero means DefaultDiffThreshold.
	DiffThreshold float64
	// SampleRate is detection samples per second; zero samples every max(1, int(fps/2)) frames.
	SampleRate float64
	// SceneContext seeds scene descriptions and usage situations.
	SceneContext string
	// ExtraTags are added to every shot.
	ExtraTags []string
	// SkipEmbeddings disables keyframe embedding even when a provider is configured.
	SkipEmbeddings bool
	// Progress, when set, receives the fraction of the timeline scanned.
	Progress func(done float64)
}

// Segmenter walks a video timeline and cuts it into shots.
type Segmenter struct {
	provider embedding.Provider
	logger   *slog.Logger
	now      func() time.Time
}

// NewSegmenter builds a segmenter. provider may be nil, in which case shots carry no feature.
func NewSegmenter(provider embedding.Provider, logger *slog.Logger) *Segmenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Segmenter{
		provider: provider,
		logger:   logger.With("component", "segmenter"),
		now:      time.Now,
	}
}

// Segment detects shot boundaries in src and analyses each surviving shot. The run is sequential;
// any frame read failure aborts it. A failed keyframe embedding is logged and the shot kept.
func (s *Segmenter) Segment(ctx context.Context, src video.FrameSource, opts Options) ([]*Shot, error) {
	start := time.Now()
	defer metrics.ObserveOperation("segment", start)

	fps, duration := src.FPS(), src.Duration()
	if fps <= 0 || math.IsNaN(fps) {
		return nil, visionerr.InvalidVideo("frame rate must be positive, got %v", fps)
	}
	if duration <= 0 || math.IsNaN(duration) {
		return nil, visionerr.InvalidVideo("duration must be positive, got %v", duration)
	}
	threshold := opts.DiffThreshold
	if threshold == 0 {
		threshold = DefaultDiffThreshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, visionerr.InvalidInput("diff threshold must be in [0, 1], got %v", threshold)
	}
	if opts.SampleRate < 0 {
		return nil, visionerr.InvalidInput("sample rate must not be negative, got %v", opts.SampleRate)
	}

	logger := s.logger.With("video_id", opts.VideoID)
	boundaries, err := s.detectBoundaries(ctx, src, sampleStep(fps, opts.SampleRate), threshold, opts.Progress)
	if err != nil {
		return nil, err
	}

	var shots []*Shot
	dropped := 0
	for i := 0; i+1 < len(boundaries); i++ {
		begin, end := boundaries[i], boundaries[i+1]
		if end-begin < MinShotDuration {
			dropped++
			continue
		}
		shot, err := s.analyzeShot(ctx, src, begin, end, opts, logger)
		if err != nil {
			return nil, err
		}
		shot.Index = len(shots)
		shots = append(shots, shot)
	}

	metrics.ShotsSegmentedTotal.Add(float64(len(shots)))
	metrics.ShotsDroppedTotal.Add(float64(dropped))
	logger.Info("video segmented",
		"shots", len(shots),
		"dropped", dropped,
		"boundaries", len(boundaries),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return shots, nil
}

func sampleStep(fps, sampleRate float64) float64 {
	if sampleRate > 0 {
		return 1 / sampleRate
	}
	interval := max(1, int(fps/2))
	return float64(interval) / fps
}

// detectBoundaries returns [0, cuts..., duration].
func (s *Segmenter) detectBoundaries(ctx context.Context, src video.FrameSource, step, threshold float64, progress func(float64)) ([]float64, error) {
	duration := src.Duration()
	boundaries := []float64{0}

	var prev *frames.Gray
	for i := 0; ; i++ {
		t := float64(i) * step
		if t >= duration {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := readFrame(ctx, src, t)
		if err != nil {
			return nil, err
		}
		g := frames.ToGray(frames.Prepare(img))
		if prev != nil && frames.GrayDiff(prev, g) > threshold {
			boundaries = append(boundaries, t)
		}
		prev = g
		if progress != nil {
			progress(t / duration)
		}
	}
	return append(boundaries, duration), nil
}

func (s *Segmenter) analyzeShot(ctx context.Context, src video.FrameSource, begin, end float64, opts Options, logger *slog.Logger) (*Shot, error) {
	length := end - begin
	keyTime := begin + length/2
	keyframe, err := readFrame(ctx, src, keyTime)
	if err != nil {
		return nil, err
	}

	meanDiff, err := movement(ctx, src, begin, end)
	if err != nil {
		return nil, err
	}
	moveType := ClassifyMovement(meanDiff)

	shotComp := frames.ShotComposition(keyframe)
	comp := frames.Analyze(keyframe)

	tags := append([]string{moveType, shotComp.ShotSize, DurationTag(length)}, opts.ExtraTags...)

	shot := &Shot{
		ID:                uuid.New().String(),
		VideoID:           opts.VideoID,
		StartTime:         begin,
		EndTime:           end,
		Duration:          length,
		KeyframeTime:      keyTime,
		MovementType:      moveType,
		MovementIntensity: math.Min(math.Max(meanDiff, 0), 1),
		ShotSize:          shotComp.ShotSize,
		ShotAngle:         shotComp.ShotAngle,
		Framing:           shotComp.Framing,
		Composition:       &comp,
		Tags:              uniqueSorted(tags),
		UsageSituations:   UsageSituations(moveType, shotComp.ShotSize, opts.SceneContext),
		SceneDescription:  opts.SceneContext,
		CreatedAt:         s.now().UTC(),
	}

	if s.provider != nil && !opts.SkipEmbeddings {
		v, err := s.provider.Embed(ctx, keyframe)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			metrics.EmbeddingFailuresTotal.Inc()
			logger.Warn("keyframe embedding failed",
				"start", begin,
				"keyframe_time", keyTime,
				"error", err,
			)
		} else {
			shot.KeyframeFeature = v
		}
	}
	return shot, nil
}

// movement averages the frame differences between evenly spaced samples of the shot's own frames.
// The last sample is the final frame before end.
func movement(ctx context.Context, src video.FrameSource, begin, end float64) (float64, error) {
	last := math.Max(begin, end-1/src.FPS())
	var prev *frames.Gray
	var sum float64
	n := 0
	for i := 0; i < movementSamples; i++ {
		t := begin + (last-begin)*float64(i)/float64(movementSamples-1)
		img, err := readFrame(ctx, src, t)
		if err != nil {
			return 0, err
		}
		g := frames.ToGray(frames.Prepare(img))
		if prev != nil {
			sum += frames.GrayDiff(prev, g)
			n++
		}
		prev = g
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

// readFrame clamps t to the last decodable instant and wraps uncoded failures.
func readFrame(ctx context.Context, src video.FrameSource, t float64) (image.Image, error) {
	last := src.Duration() - 1/src.FPS()
	if t > last {
		t = math.Max(last, 0)
	}
	img, err := src.Frame(ctx, t)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if visionerr.CodeOf(err) != "" {
			return nil, err
		}
		return nil, visionerr.Wrap(err, visionerr.CodeFrameSourceFailure, fmt.Sprintf("read frame at %.3fs", t))
	}
	return img, nil
}
