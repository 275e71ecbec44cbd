package embedding

import (
	"context"
	"encoding/binary"
	"image"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/heimdex/heimdex-vision/internal/metrics"
	"github.com/heimdex/heimdex-vision/internal/vecmath"
)

// Cache defaults.
const (
	DefaultCacheSize = 1000
	DefaultCacheTTL  = time.Hour
)

// CachingProvider memoises another provider by image content.
type CachingProvider struct {
	next  Provider
	cache *expirable.LRU[uint64, vecmath.FeatureVector]
}

var _ Provider = (*CachingProvider)(nil)

// NewCachingProvider wraps next with an expiring LRU. Non-positive size or ttl fall back to the defaults.
func NewCachingProvider(next Provider, size int, ttl time.Duration) *CachingProvider {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachingProvider{
		next:  next,
		cache: expirable.NewLRU[uint64, vecmath.FeatureVector](size, nil, ttl),
	}
}

func (c *CachingProvider) Model() string  { return c.next.Model() }
func (c *CachingProvider) Dimension() int { return c.next.Dimension() }

// Len is the number of cached vectors.
func (c *CachingProvider) Len() int { return c.cache.Len() }

func (c *CachingProvider) Embed(ctx context.Context, img image.Image) (vecmath.FeatureVector, error) {
	key := ImageKey(img)
	if v, ok := c.cache.Get(key); ok {
		metrics.FeatureCacheHitsTotal.Inc()
		return v.Clone(), nil
	}
	metrics.FeatureCacheMissesTotal.Inc()

	v, err := c.next.Embed(ctx, img)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, v.Clone())
	return v, nil
}

// ImageKey hashes the dimensions and RGBA pixels of img.
func ImageKey(img image.Image) uint64 {
	b := img.Bounds()
	h := xxhash.New()

	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(b.Dx()))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(b.Dy()))
	_, _ = h.Write(hdr[:])

	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == 4*b.Dx() {
		_, _ = h.Write(rgba.Pix[:4*b.Dx()*b.Dy()])
		return h.Sum64()
	}

	row := make([]byte, 0, 4*b.Dx())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row = row[:0]
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			row = append(row, byte(r>>8), byte(g>>8), byte(bl>>8), byte(a>>8))
		}
		_, _ = h.Write(row)
	}
	return h.Sum64()
}
