// Package embedding obtains visual feature vectors for images from an external model.
package embedding

import (
	"context"
	"image"

	"github.com/heimdex/heimdex-vision/internal/vecmath"
)

// Provider turns an image into a feature vector.
type Provider interface {
	Embed(ctx context.Context, img image.Image) (vecmath.FeatureVector, error)
	// Model names the model that produced the vectors.
	Model() string
	// Dimension is the length of every vector this provider returns.
	Dimension() int
}
