// Package frames holds the per-frame pixel heuristics: frame differencing, composition
// (rule of thirds, symmetry, depth of field, colour, edges) and image metrics. Every
// function is deterministic and free of shared state.
package frames

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// MaxAnalysisSize bounds the long side of frames before pixel statistics are computed.
const MaxAnalysisSize = 640

// Gray is a luminance plane with values in [0, 255].
type Gray struct {
	W, H int
	Pix  []float64
}

func (g *Gray) at(x, y int) float64 {
	return g.Pix[y*g.W+x]
}

// ToGray converts img to luminance using the Rec. 601 weights.
func ToGray(img image.Image) *Gray {
	b := img.Bounds()
	g := &Gray{W: b.Dx(), H: b.Dy(), Pix: make([]float64, b.Dx()*b.Dy())}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, gg, bb, _ := img.At(x, y).RGBA()
			g.Pix[i] = 0.299*float64(r>>8) + 0.587*float64(gg>>8) + 0.114*float64(bb>>8)
			i++
		}
	}
	return g
}

// Prepare downsamples img so its long side is at most MaxAnalysisSize.
func Prepare(img image.Image) image.Image {
	b := img.Bounds()
	long := max(b.Dx(), b.Dy())
	if long <= MaxAnalysisSize {
		return img
	}
	scale := float64(MaxAnalysisSize) / float64(long)
	w := max(1, int(math.Round(float64(b.Dx())*scale)))
	h := max(1, int(math.Round(float64(b.Dy())*scale)))
	return resize(img, w, h)
}

func resize(img image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// FrameDiff returns the mean absolute grayscale difference of a and b scaled to [0, 1].
// Frames of different sizes are compared at the smaller size.
func FrameDiff(a, b image.Image) float64 {
	a, b = Prepare(a), Prepare(b)
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		w, h := min(ab.Dx(), bb.Dx()), min(ab.Dy(), bb.Dy())
		a, b = resize(a, w, h), resize(b, w, h)
	}
	return GrayDiff(ToGray(a), ToGray(b))
}

// GrayDiff is FrameDiff over planes of identical size. Mismatched planes report full difference.
func GrayDiff(a, b *Gray) float64 {
	if a.W != b.W || a.H != b.H {
		return 1
	}
	if len(a.Pix) == 0 {
		return 0
	}
	var sum float64
	for i := range a.Pix {
		sum += math.Abs(a.Pix[i] - b.Pix[i])
	}
	return sum / float64(len(a.Pix)) / 255.0
}

func meanVar(vals []float64) (float64, float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	var ss float64
	for _, v := range vals {
		ss += (v - mean) * (v - mean)
	}
	return mean, ss / float64(len(vals))
}
