// Package similarity compares feature vectors: pairwise metrics, N×N matrices, ranking and
// threshold grouping. Thresholds are always explicit arguments.
package similarity

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	visionerr "github.com/heimdex/heimdex-vision/internal/errors"
	"github.com/heimdex/heimdex-vision/internal/vecmath"
)

// Result holds the similarity metrics between two vectors.
type Result struct {
	Cosine     float64 `json:"cosine_similarity"`
	Euclidean  float64 `json:"euclidean_distance"`
	Percentage float64 `json:"similarity_percentage"`
}

// Percentage maps a cosine in [-1, 1] onto [0, 100].
func Percentage(cosine float64) float64 {
	return (cosine + 1) * 50
}

// Pairwise compares a and b.
func Pairwise(a, b vecmath.FeatureVector) (Result, error) {
	cos, err := vecmath.CosineSimilarity(a, b)
	if err != nil {
		return Result{}, err
	}
	dist, err := vecmath.EuclideanDistance(a, b)
	if err != nil {
		return Result{}, err
	}
	return Result{Cosine: cos, Euclidean: dist, Percentage: Percentage(cos)}, nil
}

// Matrix returns the symmetric N×N grid of similarity percentages with a diagonal of 100.
// Batches larger than maxBatch are rejected; maxBatch <= 0 disables the cap.
func Matrix(ctx context.Context, vectors []vecmath.FeatureVector, maxBatch int) ([][]float64, error) {
	if maxBatch > 0 && len(vectors) > maxBatch {
		return nil, visionerr.BatchTooLarge(len(vectors), maxBatch)
	}
	if _, err := vecmath.CheckDims(vectors); err != nil {
		return nil, err
	}

	n := len(vectors)
	grid := make([][]float64, n)
	for i := range grid {
		grid[i] = make([]float64, n)
		grid[i][i] = 100.0
	}

	// Each row i owns cells (i, j>i) and mirrors them to (j, i); no two rows write the same cell.
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for j := i + 1; j < n; j++ {
				cos, err := vecmath.CosineSimilarity(vectors[i], vectors[j])
				if err != nil {
					return err
				}
				p := Percentage(cos)
				grid[i][j] = p
				grid[j][i] = p
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return grid, nil
}

// Ranked is one candidate's position in a ranking.
type Ranked struct {
	Index int `json:"index"`
	Result
}

// Rank orders candidates by descending similarity to reference. Ties keep input order.
func Rank(reference vecmath.FeatureVector, candidates []vecmath.FeatureVector) ([]Ranked, error) {
	out := make([]Ranked, len(candidates))
	for i, c := range candidates {
		res, err := Pairwise(reference, c)
		if err != nil {
			return nil, err
		}
		out[i] = Ranked{Index: i, Result: res}
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Percentage > out[b].Percentage
	})
	return out, nil
}

// TopK is Rank truncated to the k best candidates. k <= 0 returns the full ranking.
func TopK(reference vecmath.FeatureVector, candidates []vecmath.FeatureVector, k int) ([]Ranked, error) {
	ranked, err := Rank(reference, candidates)
	if err != nil {
		return nil, err
	}
	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

// Group is one partition produced by ThresholdGroup.
type Group struct {
	Opener  int   `json:"opener"`
	Members []int `json:"members"`
}

// ThresholdGroup partitions indices by similarity to a group opener.
//
// Indices are scanned in order. An unassigned index opens a new group, and every later
// unassigned index whose percentage against the opener meets threshold joins it. Members
// are never compared with each other, so the grouping is not transitive.
func ThresholdGroup(vectors []vecmath.FeatureVector, threshold float64) ([]Group, error) {
	if threshold < 0 || threshold > 100 {
		return nil, visionerr.InvalidInput("threshold %.2f outside [0, 100]", threshold)
	}
	if _, err := vecmath.CheckDims(vectors); err != nil {
		return nil, err
	}

	assigned := make([]bool, len(vectors))
	var groups []Group
	for i := range vectors {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		group := Group{Opener: i, Members: []int{i}}

		for j := i + 1; j < len(vectors); j++ {
			if assigned[j] {
				continue
			}
			cos, err := vecmath.CosineSimilarity(vectors[i], vectors[j])
			if err != nil {
				return nil, err
			}
			if Percentage(cos) >= threshold {
				assigned[j] = true
				group.Members = append(group.Members, j)
			}
		}
		groups = append(groups, group)
	}
	return groups, nil
}
