// Package anomaly scores test vectors against the statistics of a reference set.
package anomaly

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	visionerr "github.com/heimdex/heimdex-vision/internal/errors"
	"github.com/heimdex/heimdex-vision/internal/vecmath"
)

const (
	DefaultScoreThreshold    = 2.0
	DefaultCentroidThreshold = 0.5

	epsilon = 1e-8
)

// Verdict is the anomaly assessment of one test vector.
type Verdict struct {
	Score              float64 `json:"anomaly_score"`
	CentroidSimilarity float64 `json:"centroid_similarity"`
	IsAnomaly          bool    `json:"is_anomaly"`
	Confidence         float64 `json:"confidence"`
}

// Reference holds the per-dimension statistics of a reference set.
type Reference struct {
	Mean vecmath.FeatureVector
	Std  vecmath.FeatureVector
	Size int
}

// NewReference computes reference statistics. At least two vectors are required.
func NewReference(vectors []vecmath.FeatureVector) (*Reference, error) {
	if len(vectors) < 2 {
		return nil, visionerr.New(visionerr.CodeInsufficientReferenceData,
			"at least 2 reference vectors are required",
			visionerr.Field("reference_count", len(vectors)))
	}

	mean, err := vecmath.Centroid(vectors)
	if err != nil {
		return nil, err
	}
	std, err := vecmath.StdDev(vectors, mean)
	if err != nil {
		return nil, err
	}
	return &Reference{Mean: mean, Std: std, Size: len(vectors)}, nil
}

// Detector flags test vectors that are far from a reference distribution.
type Detector struct {
	// ScoreThreshold is the mean z-score above which a vector is anomalous.
	ScoreThreshold float64
	// CentroidThreshold is the cosine to the reference mean below which a vector is anomalous.
	CentroidThreshold float64
}

// NewDetector returns a Detector with the default thresholds.
func NewDetector() Detector {
	return Detector{
		ScoreThreshold:    DefaultScoreThreshold,
		CentroidThreshold: DefaultCentroidThreshold,
	}
}

// Score evaluates a single vector against ref.
func (d Detector) Score(ref *Reference, v vecmath.FeatureVector) (Verdict, error) {
	if len(v) != len(ref.Mean) {
		return Verdict{}, visionerr.DimensionMismatch(len(ref.Mean), len(v))
	}

	var zsum float64
	for i, x := range v {
		zsum += math.Abs(float64(x)-float64(ref.Mean[i])) / (float64(ref.Std[i]) + epsilon)
	}
	score := zsum / float64(len(v))

	centroidSim, err := vecmath.CosineSimilarity(v, ref.Mean)
	if err != nil {
		return Verdict{}, err
	}

	return Verdict{
		Score:              score,
		CentroidSimilarity: centroidSim,
		IsAnomaly:          score > d.ScoreThreshold || centroidSim < d.CentroidThreshold,
		Confidence:         vecmath.Clamp(score/3.0, 0, 1),
	}, nil
}

// Detect scores every test vector against the reference set. Verdicts follow input order.
func (d Detector) Detect(ctx context.Context, reference, test []vecmath.FeatureVector) ([]Verdict, error) {
	ref, err := NewReference(reference)
	if err != nil {
		return nil, err
	}
	if len(test) == 0 {
		return nil, visionerr.InvalidInput("at least 1 test vector is required")
	}

	verdicts := make([]Verdict, len(test))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range test {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			verdict, err := d.Score(ref, v)
			if err != nil {
				return err
			}
			verdicts[i] = verdict
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return verdicts, nil
}

// Detect runs the default Detector.
func Detect(ctx context.Context, reference, test []vecmath.FeatureVector) ([]Verdict, error) {
	return NewDetector().Detect(ctx, reference, test)
}
