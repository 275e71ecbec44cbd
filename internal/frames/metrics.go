package frames

import (
	"image"
	"math"
)

// Metrics are the technical image quality measurements of a frame.
type Metrics struct {
	Sharpness        float64 `json:"sharpness"`
	SharpnessScore   float64 `json:"sharpness_score"`
	LightingQuality  float64 `json:"lighting_quality"`
	CompositionScore float64 `json:"composition_score"`
	OverallQuality   float64 `json:"overall_quality"`
}

// ImageMetrics measures sharpness, exposure and central detail of frame.
// Luma below 50 or at or above 200 counts against lighting quality.
func ImageMetrics(frame image.Image) Metrics {
	g := ToGray(Prepare(frame))
	if len(g.Pix) == 0 {
		return Metrics{}
	}

	sharp := laplacianVariance(g)

	extreme := 0
	for _, p := range g.Pix {
		if l := math.Floor(p); l < 50 || l >= 200 {
			extreme++
		}
	}
	lighting := 1 - float64(extreme)/float64(len(g.Pix))

	tw, th := g.W/3, g.H/3
	center := make([]float64, 0, tw*th)
	for y := th; y < 2*th; y++ {
		for x := tw; x < 2*tw; x++ {
			center = append(center, g.at(x, y))
		}
	}
	_, v := meanVar(center)
	comp := math.Sqrt(v) / 255

	return Metrics{
		Sharpness:        sharp,
		SharpnessScore:   math.Min(sharp/1000, 1),
		LightingQuality:  lighting,
		CompositionScore: comp,
		OverallQuality:   clamp01(sharp/10000*0.4 + lighting*0.4 + comp*0.2),
	}
}

func clamp01(x float64) float64 {
	return math.Min(math.Max(x, 0), 1)
}
