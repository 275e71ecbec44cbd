// Package shots segments videos into shots, persists them and recommends shots for a scene.
package shots

import (
	"time"

	"github.com/heimdex/heimdex-vision/internal/frames"
	"github.com/heimdex/heimdex-vision/internal/vecmath"
)

// Camera movement classes.
const (
	MovementStatic = "static"
	MovementSlow   = "slow_pan"
	MovementPan    = "pan"
	MovementFast   = "fast_movement"
)

// MinShotDuration is the shortest span kept as a shot. Shorter spans are dropped, leaving a gap.
const MinShotDuration = 0.5

// Shot is a contiguous segment of a video between two detected boundaries.
type Shot struct {
	ID                string                `json:"id"`
	VideoID           string                `json:"video_id"`
	Index             int                   `json:"index"`
	StartTime         float64               `json:"start_time"`
	EndTime           float64               `json:"end_time"`
	Duration          float64               `json:"duration"`
	KeyframeTime      float64               `json:"keyframe_time"`
	MovementType      string                `json:"movement_type"`
	MovementIntensity float64               `json:"movement_intensity"`
	ShotSize          string                `json:"shot_size"`
	ShotAngle         string                `json:"shot_angle"`
	Framing           string                `json:"framing"`
	Composition       *frames.Composition   `json:"composition,omitempty"`
	KeyframeFeature   vecmath.FeatureVector `json:"keyframe_feature,omitempty"`
	Tags              []string              `json:"tags"`
	UsageSituations   []string              `json:"usage_situations"`
	EmotionalTone     string                `json:"emotional_tone,omitempty"`
	SceneDescription  string                `json:"scene_description,omitempty"`
	NarrativeFunction string                `json:"narrative_function,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
}

// HasTag reports whether the shot carries tag.
func (s *Shot) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Annotation carries the editable fields of a shot. Nil fields are left unchanged.
type Annotation struct {
	EmotionalTone     *string  `json:"emotional_tone,omitempty"`
	SceneDescription  *string  `json:"scene_description,omitempty"`
	NarrativeFunction *string  `json:"narrative_function,omitempty"`
	Tags              []string `json:"tags,omitempty"`
}

// ClassifyMovement maps a mean intra-shot frame difference to a movement class.
func ClassifyMovement(meanDiff float64) string {
	switch {
	case meanDiff < 0.05:
		return MovementStatic
	case meanDiff < 0.15:
		return MovementSlow
	case meanDiff < 0.3:
		return MovementPan
	default:
		return MovementFast
	}
}

// DurationTag buckets a shot length in seconds.
func DurationTag(d float64) string {
	switch {
	case d < 2:
		return "quick_cut"
	case d < 5:
		return "short_shot"
	case d < 10:
		return "medium_shot"
	default:
		return "long_shot"
	}
}
