// Package cluster groups feature vectors with seeded k-means.
package cluster

import (
	"context"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"

	visionerr "github.com/heimdex/heimdex-vision/internal/errors"
	"github.com/heimdex/heimdex-vision/internal/vecmath"
)

const (
	DefaultSeed     = 42
	DefaultRestarts = 10
	DefaultMaxIter  = 300
)

// Options controls a clustering run. Zero values select the defaults.
type Options struct {
	K        int
	Seed     int64
	Restarts int
	MaxIter  int
}

// Assignment describes one cluster.
type Assignment struct {
	Label       int                   `json:"cluster_id"`
	Centroid    vecmath.FeatureVector `json:"centroid"`
	MemberCount int                   `json:"size"`
	// Inertia is the mean euclidean distance of the members to the centroid.
	Inertia float64 `json:"inertia"`
	Members []int   `json:"member_indices"`
}

// Result is the outcome of Cluster. Labels[i] is the cluster of input i.
type Result struct {
	K        int          `json:"n_clusters"`
	Labels   []int        `json:"labels"`
	Clusters []Assignment `json:"clusters"`
	// TotalInertia is the sum of squared distances to the assigned centroids.
	TotalInertia float64 `json:"total_inertia"`
}

// DefaultK picks clamp(n/10, 2, 10).
func DefaultK(n int) int {
	k := n / 10
	if k < 2 {
		k = 2
	}
	if k > 10 {
		k = 10
	}
	return k
}

// Cluster partitions vectors into k groups. Runs are reproducible for a given seed.
func Cluster(ctx context.Context, vectors []vecmath.FeatureVector, opts Options) (*Result, error) {
	n := len(vectors)
	if n < 2 {
		return nil, visionerr.New(visionerr.CodeInsufficientData,
			"at least 2 vectors are required for clustering",
			visionerr.Field("count", n))
	}
	if _, err := vecmath.CheckDims(vectors); err != nil {
		return nil, err
	}

	k := opts.K
	if k == 0 {
		k = DefaultK(n)
	}
	if k < 1 || k > n {
		return nil, visionerr.InvalidInput("k=%d must be between 1 and %d", k, n)
	}

	seed := opts.Seed
	if seed == 0 {
		seed = DefaultSeed
	}
	restarts := opts.Restarts
	if restarts <= 0 {
		restarts = DefaultRestarts
	}
	maxIter := opts.MaxIter
	if maxIter <= 0 {
		maxIter = DefaultMaxIter
	}

	runs := make([]*run, restarts)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < restarts; i++ {
		g.Go(func() error {
			r, err := lloyd(gctx, vectors, k, maxIter, rand.New(rand.NewSource(seed+int64(i))))
			if err != nil {
				return err
			}
			runs[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := runs[0]
	for _, r := range runs[1:] {
		if r.sse < best.sse {
			best = r
		}
	}
	return best.result(vectors), nil
}

type run struct {
	labels    []int
	centroids []vecmath.FeatureVector
	sse       float64
}

func lloyd(ctx context.Context, data []vecmath.FeatureVector, k, maxIter int, rng *rand.Rand) (*run, error) {
	centroids := seedPlusPlus(data, k, rng)
	labels := make([]int, len(data))
	for i := range labels {
		labels[i] = -1
	}

	for iter := 0; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// E-step
		next := make([]int, len(data))
		for i, v := range data {
			next[i] = nearest(v, centroids)
		}
		fillEmpty(data, next, centroids, k)

		changed := false
		for i := range next {
			if next[i] != labels[i] {
				changed = true
				break
			}
		}
		labels = next
		if !changed {
			break
		}

		// M-step
		centroids = means(data, labels, k, centroids)
	}

	centroids = means(data, labels, k, centroids)
	var sse float64
	for i, v := range data {
		sse += vecmath.SquaredDistance(v, centroids[labels[i]])
	}
	return &run{labels: labels, centroids: centroids, sse: sse}, nil
}

// seedPlusPlus picks initial centroids with D² weighting.
func seedPlusPlus(data []vecmath.FeatureVector, k int, rng *rand.Rand) []vecmath.FeatureVector {
	n := len(data)
	chosen := make([]bool, n)
	centroids := make([]vecmath.FeatureVector, 0, k)

	first := rng.Intn(n)
	chosen[first] = true
	centroids = append(centroids, data[first].Clone())

	dist := make([]float64, n)
	for i, v := range data {
		dist[i] = vecmath.SquaredDistance(v, centroids[0])
	}

	for len(centroids) < k {
		var total float64
		for i, d := range dist {
			if !chosen[i] {
				total += d
			}
		}

		pick := -1
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range dist {
				if chosen[i] {
					continue
				}
				target -= d
				if target <= 0 {
					pick = i
					break
				}
			}
		}
		if pick == -1 {
			// Remaining points coincide with chosen centroids; take any unchosen one.
			free := make([]int, 0, n)
			for i := range data {
				if !chosen[i] {
					free = append(free, i)
				}
			}
			pick = free[rng.Intn(len(free))]
		}

		chosen[pick] = true
		c := data[pick].Clone()
		centroids = append(centroids, c)
		for i, v := range data {
			if d := vecmath.SquaredDistance(v, c); d < dist[i] {
				dist[i] = d
			}
		}
	}
	return centroids
}

func nearest(v vecmath.FeatureVector, centroids []vecmath.FeatureVector) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := vecmath.SquaredDistance(v, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// fillEmpty gives every empty cluster the point farthest from its current centroid,
// taken from a cluster that can spare one.
func fillEmpty(data []vecmath.FeatureVector, labels []int, centroids []vecmath.FeatureVector, k int) {
	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}

	for c := 0; c < k; c++ {
		if counts[c] > 0 {
			continue
		}
		far, farDist := -1, -1.0
		for i, v := range data {
			if counts[labels[i]] < 2 {
				continue
			}
			if d := vecmath.SquaredDistance(v, centroids[labels[i]]); d > farDist {
				far, farDist = i, d
			}
		}
		if far == -1 {
			return
		}
		counts[labels[far]]--
		labels[far] = c
		counts[c]++
		centroids[c] = data[far].Clone()
	}
}

func means(data []vecmath.FeatureVector, labels []int, k int, prev []vecmath.FeatureVector) []vecmath.FeatureVector {
	dim := len(data[0])
	sums := make([][]float64, k)
	counts := make([]int, k)
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	for i, v := range data {
		l := labels[i]
		counts[l]++
		for d, x := range v {
			sums[l][d] += float64(x)
		}
	}

	out := make([]vecmath.FeatureVector, k)
	for c := range out {
		if counts[c] == 0 {
			out[c] = prev[c]
			continue
		}
		centroid := make(vecmath.FeatureVector, dim)
		for d := range centroid {
			centroid[d] = float32(sums[c][d] / float64(counts[c]))
		}
		out[c] = centroid
	}
	return out
}

func (r *run) result(data []vecmath.FeatureVector) *Result {
	k := len(r.centroids)
	clusters := make([]Assignment, k)
	for c := range clusters {
		clusters[c] = Assignment{Label: c, Centroid: r.centroids[c], Members: []int{}}
	}

	for i, l := range r.labels {
		clusters[l].Members = append(clusters[l].Members, i)
		clusters[l].MemberCount++
		d, _ := vecmath.EuclideanDistance(data[i], r.centroids[l])
		clusters[l].Inertia += d
	}
	for c := range clusters {
		if clusters[c].MemberCount > 0 {
			clusters[c].Inertia /= float64(clusters[c].MemberCount)
		}
	}

	return &Result{
		K:            k,
		Labels:       r.labels,
		Clusters:     clusters,
		TotalInertia: r.sse,
	}
}
