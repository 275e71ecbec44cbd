package embedding

import (
	"context"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/heimdex/heimdex-vision/internal/vecmath"
)

// StubProvider derives a deterministic vector from a thumbnail of the image. Visually similar
// images get similar vectors, which is enough for offline use and tests.
type StubProvider struct {
	dim int
}

var _ Provider = (*StubProvider)(nil)

func NewStubProvider(dim int) *StubProvider {
	if dim <= 0 {
		dim = 384
	}
	return &StubProvider{dim: dim}
}

func (s *StubProvider) Model() string  { return "stub" }
func (s *StubProvider) Dimension() int { return s.dim }

func (s *StubProvider) Embed(ctx context.Context, img image.Image) (vecmath.FeatureVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cells := (s.dim + 2) / 3
	side := int(math.Ceil(math.Sqrt(float64(cells))))
	thumb := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.ApproxBiLinear.Scale(thumb, thumb.Bounds(), img, img.Bounds(), draw.Src, nil)

	v := make(vecmath.FeatureVector, s.dim)
	for i := range v {
		v[i] = float32(thumb.Pix[(i/3)*4+i%3])/255 + 0.01
	}
	return v, nil
}
