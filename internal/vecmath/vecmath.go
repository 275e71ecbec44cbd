// Package vecmath implements the elementary vector operations used by the analytics packages.
// All functions are pure and safe for concurrent use.
package vecmath

import (
	"math"

	"github.com/viterin/vek/vek32"

	visionerr "github.com/heimdex/heimdex-vision/internal/errors"
)

// FeatureVector is a fixed-length embedding of visual content.
type FeatureVector []float32

// Dim returns the vector length.
func (v FeatureVector) Dim() int {
	return len(v)
}

// Clone returns a copy that does not share the backing array.
func (v FeatureVector) Clone() FeatureVector {
	if v == nil {
		return nil
	}
	out := make(FeatureVector, len(v))
	copy(out, v)
	return out
}

// CosineSimilarity returns the cosine of the angle between a and b, clamped to [-1, 1].
// A zero vector has similarity 0 with everything.
func CosineSimilarity(a, b FeatureVector) (float64, error) {
	if len(a) != len(b) {
		return 0, visionerr.DimensionMismatch(len(a), len(b))
	}
	if len(a) == 0 {
		return 0, nil
	}

	na := float64(vek32.Norm(a))
	nb := float64(vek32.Norm(b))
	if na == 0 || nb == 0 {
		return 0, nil
	}

	cos := float64(vek32.Dot(a, b)) / (na * nb)
	return Clamp(cos, -1, 1), nil
}

// EuclideanDistance returns the L2 distance between a and b.
func EuclideanDistance(a, b FeatureVector) (float64, error) {
	if len(a) != len(b) {
		return 0, visionerr.DimensionMismatch(len(a), len(b))
	}
	if len(a) == 0 {
		return 0, nil
	}
	return float64(vek32.Distance(a, b)), nil
}

// SquaredDistance is EuclideanDistance squared. Callers guarantee equal lengths.
func SquaredDistance(a, b FeatureVector) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// Norm returns the L2 norm of v.
func Norm(v FeatureVector) float64 {
	if len(v) == 0 {
		return 0
	}
	return float64(vek32.Norm(v))
}

// CheckDims verifies every vector shares the length of the first one and returns it.
func CheckDims(vs []FeatureVector) (int, error) {
	if len(vs) == 0 {
		return 0, nil
	}
	dim := len(vs[0])
	for _, v := range vs[1:] {
		if len(v) != dim {
			return 0, visionerr.DimensionMismatch(dim, len(v))
		}
	}
	return dim, nil
}

// Centroid returns the elementwise mean of vs.
func Centroid(vs []FeatureVector) (FeatureVector, error) {
	if len(vs) == 0 {
		return nil, visionerr.InvalidInput("centroid of an empty set")
	}
	dim, err := CheckDims(vs)
	if err != nil {
		return nil, err
	}

	sum := make([]float64, dim)
	for _, v := range vs {
		for i, x := range v {
			sum[i] += float64(x)
		}
	}

	out := make(FeatureVector, dim)
	n := float64(len(vs))
	for i := range sum {
		out[i] = float32(sum[i] / n)
	}
	return out, nil
}

// StdDev returns the population standard deviation per dimension around mean.
func StdDev(vs []FeatureVector, mean FeatureVector) (FeatureVector, error) {
	if len(vs) == 0 {
		return nil, visionerr.InvalidInput("std of an empty set")
	}
	if _, err := CheckDims(append([]FeatureVector{mean}, vs...)); err != nil {
		return nil, err
	}

	acc := make([]float64, len(mean))
	for _, v := range vs {
		for i, x := range v {
			d := float64(x) - float64(mean[i])
			acc[i] += d * d
		}
	}

	out := make(FeatureVector, len(mean))
	n := float64(len(vs))
	for i := range acc {
		out[i] = float32(math.Sqrt(acc[i] / n))
	}
	return out, nil
}

// Stats holds the scalar statistics of one vector's components.
type Stats struct {
	Mean float64
	Std  float64
	Max  float64
	Min  float64
}

// Describe computes component statistics of a non-empty vector.
func Describe(v FeatureVector) (Stats, error) {
	if len(v) == 0 {
		return Stats{}, visionerr.InvalidInput("empty feature vector")
	}

	mean := float64(vek32.Mean(v))
	var ss float64
	for _, x := range v {
		d := float64(x) - mean
		ss += d * d
	}

	return Stats{
		Mean: mean,
		Std:  math.Sqrt(ss / float64(len(v))),
		Max:  float64(vek32.Max(v)),
		Min:  float64(vek32.Min(v)),
	}, nil
}

// Clamp bounds x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
