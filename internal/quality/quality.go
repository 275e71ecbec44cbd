// Package quality scores how informative an embedding is from its component statistics.
// The score is a heuristic proxy, not a learned aesthetics model.
package quality

import (
	"math"
	"sort"

	"github.com/heimdex/heimdex-vision/internal/vecmath"
)

const epsilon = 1e-8

// Report is the quality analysis of one feature vector.
type Report struct {
	Score          float64 `json:"quality_score"`
	DiversityScore float64 `json:"diversity_score"`
	Mean           float64 `json:"feature_mean"`
	Std            float64 `json:"feature_std"`
	Max            float64 `json:"feature_max"`
	Min            float64 `json:"feature_min"`
}

// Passes reports whether the score meets threshold.
func (r Report) Passes(threshold float64) bool {
	return r.Score >= threshold
}

// Analyze computes the quality report for v.
// score = clamp(0.6*diversity + 0.4*magnitude, 0, 1) where diversity = std/(|mean|+eps)
// and magnitude = ||v||/len(v).
func Analyze(v vecmath.FeatureVector) (Report, error) {
	stats, err := vecmath.Describe(v)
	if err != nil {
		return Report{}, err
	}

	diversity := stats.Std / (math.Abs(stats.Mean) + epsilon)
	magnitude := vecmath.Norm(v) / float64(len(v))
	score := vecmath.Clamp(0.6*diversity+0.4*magnitude, 0, 1)

	return Report{
		Score:          score,
		DiversityScore: diversity,
		Mean:           stats.Mean,
		Std:            stats.Std,
		Max:            stats.Max,
		Min:            stats.Min,
	}, nil
}

// Summary aggregates the scores of a batch.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean_quality"`
	Std    float64 `json:"std_quality"`
	Min    float64 `json:"min_quality"`
	Max    float64 `json:"max_quality"`
	Median float64 `json:"median_quality"`
}

// Summarize returns batch statistics over the report scores. An empty batch yields a zero Summary.
func Summarize(reports []Report) Summary {
	if len(reports) == 0 {
		return Summary{}
	}

	scores := make([]float64, len(reports))
	var sum float64
	for i, r := range reports {
		scores[i] = r.Score
		sum += r.Score
	}
	sort.Float64s(scores)

	n := float64(len(scores))
	mean := sum / n
	var ss float64
	for _, s := range scores {
		ss += (s - mean) * (s - mean)
	}

	median := scores[len(scores)/2]
	if len(scores)%2 == 0 {
		median = (scores[len(scores)/2-1] + scores[len(scores)/2]) / 2
	}

	return Summary{
		Count:  len(scores),
		Mean:   mean,
		Std:    math.Sqrt(ss / n),
		Min:    scores[0],
		Max:    scores[len(scores)-1],
		Median: median,
	}
}
