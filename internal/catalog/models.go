package catalog

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-vision/internal/vecmath"
)

// MediaAsset is an uploaded still image and, once extracted, its embedding.
type MediaAsset struct {
	ID                string                `json:"id"`
	Filename          string                `json:"filename"`
	ContentType       string                `json:"content_type"`
	Size              int64                 `json:"size"`
	Width             int                   `json:"width"`
	Height            int                   `json:"height"`
	StoragePath       string                `json:"-"`
	Features          vecmath.FeatureVector `json:"features,omitempty"`
	FeaturesExtracted bool                  `json:"features_extracted"`
	FeatureModel      string                `json:"feature_model,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
}

// Video is a registered video file on local disk.
type Video struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Filename  string    `json:"filename"`
	FPS       float64   `json:"fps"`
	Duration  float64   `json:"duration"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	JobTypeSegment         = "segment"
	JobTypeExtractFeatures = "extract_features"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

type Job struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	VideoID   string    `json:"video_id,omitempty"`
	AssetID   string    `json:"asset_id,omitempty"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Done reports whether the job reached a terminal status.
func (j *Job) Done() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

type ConfigEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".avi":  true,
	".webm": true,
}

// ImageContentTypes maps accepted upload types to the extension used on disk.
var ImageContentTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

func NewID() string {
	return uuid.NewString()
}

func IsVideoFile(filename string) bool {
	return VideoExtensions[strings.ToLower(filepath.Ext(filename))]
}

// IsImageContentType reports whether uploads of contentType are accepted.
func IsImageContentType(contentType string) bool {
	_, ok := ImageContentTypes[normalizeContentType(contentType)]
	return ok
}

func normalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
