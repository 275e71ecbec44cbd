package frames

import "math"

// edgeThreshold is the Sobel gradient magnitude at which a pixel counts as an edge.
const edgeThreshold = 150.0

// edgeCount returns the number of edge pixels in g.
func edgeCount(g *Gray) int {
	if g.W < 3 || g.H < 3 {
		return 0
	}
	count := 0
	for y := 1; y < g.H-1; y++ {
		for x := 1; x < g.W-1; x++ {
			gx := -g.at(x-1, y-1) - 2*g.at(x-1, y) - g.at(x-1, y+1) +
				g.at(x+1, y-1) + 2*g.at(x+1, y) + g.at(x+1, y+1)
			gy := -g.at(x-1, y-1) - 2*g.at(x, y-1) - g.at(x+1, y-1) +
				g.at(x-1, y+1) + 2*g.at(x, y+1) + g.at(x+1, y+1)
			if math.Hypot(gx, gy) >= edgeThreshold {
				count++
			}
		}
	}
	return count
}

// boxBlur applies a size×size mean filter with edge clamping, as two separable passes.
func boxBlur(g *Gray, size int) *Gray {
	r := size / 2
	tmp := make([]float64, len(g.Pix))
	out := &Gray{W: g.W, H: g.H, Pix: make([]float64, len(g.Pix))}

	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			var sum float64
			for k := -r; k <= r; k++ {
				sum += g.at(clampInt(x+k, 0, g.W-1), y)
			}
			tmp[y*g.W+x] = sum / float64(2*r+1)
		}
	}
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			var sum float64
			for k := -r; k <= r; k++ {
				sum += tmp[clampInt(y+k, 0, g.H-1)*g.W+x]
			}
			out.Pix[y*g.W+x] = sum / float64(2*r+1)
		}
	}
	return out
}

// laplacianVariance is the variance of the 4-neighbour Laplacian response, a sharpness proxy.
func laplacianVariance(g *Gray) float64 {
	if g.W < 3 || g.H < 3 {
		return 0
	}
	resp := make([]float64, 0, (g.W-2)*(g.H-2))
	for y := 1; y < g.H-1; y++ {
		for x := 1; x < g.W-1; x++ {
			resp = append(resp, g.at(x-1, y)+g.at(x+1, y)+g.at(x, y-1)+g.at(x, y+1)-4*g.at(x, y))
		}
	}
	_, v := meanVar(resp)
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
