package frames

import "image"

// Shot sizes.
const (
	ShotWide    = "wide"
	ShotMedium  = "medium"
	ShotCloseUp = "close_up"
)

// ShotComp is the coarse shot composition of a keyframe.
type ShotComp struct {
	ShotSize    string  `json:"shot_size"`
	ShotAngle   string  `json:"shot_angle"`
	Framing     string  `json:"framing"`
	AspectRatio float64 `json:"aspect_ratio"`
}

// ShotComposition classifies shot size from the frame's aspect ratio.
// Angle and framing are fixed until a subject detector is available.
func ShotComposition(frame image.Image) ShotComp {
	ar := aspectRatio(frame.Bounds())
	size := ShotCloseUp
	switch {
	case ar > 2.0:
		size = ShotWide
	case ar > 1.5:
		size = ShotMedium
	}
	return ShotComp{
		ShotSize:    size,
		ShotAngle:   "eye_level",
		Framing:     "standard",
		AspectRatio: ar,
	}
}
