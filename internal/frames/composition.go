package frames

import (
	"image"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Depth of field classes.
const (
	DepthShallow = "shallow"
	DepthMedium  = "medium"
	DepthDeep    = "deep"
)

// Edge density classes.
const (
	DetailLow    = "low"
	DetailMedium = "medium"
	DetailHigh   = "high"
)

// Symmetry holds mirrored-half similarity scores in [0, 1].
type Symmetry struct {
	Horizontal float64 `json:"horizontal_symmetry"`
	Vertical   float64 `json:"vertical_symmetry"`
	Overall    float64 `json:"overall_symmetry"`
}

// Color summarises the hue distribution on the 0-180 hue scale.
type Color struct {
	Diversity     float64 `json:"color_diversity"`
	DominantHue   int     `json:"dominant_hue"`
	WarmBalance   float64 `json:"color_balance"`
	WarmCoolRatio float64 `json:"warm_cool_ratio"`
}

// Composition is the enhanced composition analysis of one frame.
type Composition struct {
	AspectRatio  float64  `json:"aspect_ratio"`
	RuleOfThirds float64  `json:"rule_of_thirds_score"`
	Symmetry     Symmetry `json:"symmetry_score"`
	DepthOfField string   `json:"depth_of_field"`
	Color        Color    `json:"color_analysis"`
	EdgeDensity  string   `json:"edge_density"`
	EdgeRatio    float64  `json:"edge_ratio"`
	Balance      float64  `json:"composition_balance"`
}

// Analyze computes the composition of frame.
func Analyze(frame image.Image) Composition {
	b := frame.Bounds()
	img := Prepare(frame)
	g := ToGray(img)

	edges := edgeCount(g)
	density := edgeDensityClass(g, edges)
	c := Composition{
		AspectRatio:  aspectRatio(b),
		RuleOfThirds: ruleOfThirds(g),
		Symmetry:     symmetry(g),
		DepthOfField: depthOfField(g, edges),
		Color:        colorAnalysis(img),
		EdgeDensity:  density,
	}
	if n := g.W * g.H; n > 0 {
		c.EdgeRatio = float64(edges) / float64(n)
	}
	c.Balance = balance(c.RuleOfThirds, c.Symmetry.Overall, density)
	return c
}

func aspectRatio(b image.Rectangle) float64 {
	if b.Dy() == 0 {
		return 0
	}
	return float64(b.Dx()) / float64(b.Dy())
}

// ruleOfThirds sums the pixel variance of 20×20 windows at the four thirds intersections.
func ruleOfThirds(g *Gray) float64 {
	tw, th := g.W/3, g.H/3
	points := [][2]int{{tw, th}, {2 * tw, th}, {tw, 2 * th}, {2 * tw, 2 * th}}

	var total float64
	for _, p := range points {
		x1, x2 := max(0, p[0]-10), min(g.W, p[0]+10)
		y1, y2 := max(0, p[1]-10), min(g.H, p[1]+10)
		region := make([]float64, 0, (x2-x1)*(y2-y1))
		for y := y1; y < y2; y++ {
			for x := x1; x < x2; x++ {
				region = append(region, g.at(x, y))
			}
		}
		_, v := meanVar(region)
		total += v
	}
	return math.Min(total/10000, 1)
}

func symmetry(g *Gray) Symmetry {
	var s Symmetry

	// top half against the flipped bottom half
	if half := g.H / 2; half > 0 {
		var sum float64
		for y := 0; y < half; y++ {
			for x := 0; x < g.W; x++ {
				sum += math.Abs(g.at(x, y) - g.at(x, g.H-1-y))
			}
		}
		s.Horizontal = math.Max(0, 1-sum/float64(half*g.W)/255)
	} else {
		s.Horizontal = 1
	}

	// left half against the flipped right half
	if half := g.W / 2; half > 0 {
		var sum float64
		for y := 0; y < g.H; y++ {
			for x := 0; x < half; x++ {
				sum += math.Abs(g.at(x, y) - g.at(g.W-1-x, y))
			}
		}
		s.Vertical = math.Max(0, 1-sum/float64(half*g.H)/255)
	} else {
		s.Vertical = 1
	}

	s.Overall = (s.Horizontal + s.Vertical) / 2
	return s
}

// depthOfField compares the edges that survive a 15×15 blur with those of the original.
// Many edges lost to blur means the frame held crisp detail.
func depthOfField(g *Gray, edges int) string {
	blurred := edgeCount(boxBlur(g, 15))
	ratio := float64(edges) / (float64(blurred) + 1e-8)
	switch {
	case ratio > 1.5:
		return DepthShallow
	case ratio > 1.1:
		return DepthMedium
	default:
		return DepthDeep
	}
}

func edgeDensityClass(g *Gray, edges int) string {
	n := g.W * g.H
	if n == 0 {
		return DetailLow
	}
	density := float64(edges) / float64(n)
	switch {
	case density > 0.1:
		return DetailHigh
	case density > 0.05:
		return DetailMedium
	default:
		return DetailLow
	}
}

// colorAnalysis works on the 0-180 hue scale; warm hues are below 30 or above 150.
func colorAnalysis(img image.Image) Color {
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return Color{}
	}

	var hist [180]int
	hues := make([]float64, 0, total)
	warm, cool := 0, 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c, _ := colorful.MakeColor(img.At(x, y))
			h, _, _ := c.Hsv()
			h180 := math.Floor(h / 2)
			if h180 >= 180 {
				h180 = 179
			}
			hues = append(hues, h180)
			hist[int(h180)]++
			if h180 < 30 || h180 > 150 {
				warm++
			} else {
				cool++
			}
		}
	}

	dominant := 0
	for i, n := range hist {
		if n > hist[dominant] {
			dominant = i
		}
	}
	_, v := meanVar(hues)

	return Color{
		Diversity:     math.Min(math.Sqrt(v)/60, 1),
		DominantHue:   dominant,
		WarmBalance:   float64(warm) / float64(total),
		WarmCoolRatio: float64(warm) / (float64(cool) + 1e-8),
	}
}

func balance(rot, sym float64, density string) float64 {
	weight := 0.7
	switch density {
	case DetailMedium:
		weight = 0.5
	case DetailHigh:
		weight = 0.3
	}
	return clamp01(rot*0.4 + sym*0.3 + weight*0.3)
}
