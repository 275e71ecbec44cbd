package export

import (
	"fmt"
	"math"

	"github.com/heimdex/heimdex-vision/internal/shots"
)

// Selection narrows the shots of a video to export. The zero value keeps every shot.
type Selection struct {
	ShotIDs []string
	Tags    []string
}

// ClipsFromShots turns timeline-ordered shots into EDL clips. Requested shot ids that are not
// among list are returned in unknown.
func ClipsFromShots(mediaPath, videoName string, list []*shots.Shot, sel Selection) (clips []Clip, unknown []string) {
	wanted := make(map[string]bool, len(sel.ShotIDs))
	for _, id := range sel.ShotIDs {
		wanted[id] = false
	}

	base := SanitizeName(videoName, 120)
	for _, s := range list {
		if len(wanted) > 0 {
			if _, ok := wanted[s.ID]; !ok {
				continue
			}
			wanted[s.ID] = true
		}
		if len(sel.Tags) > 0 && !hasAnyTag(s, sel.Tags) {
			continue
		}
		clips = append(clips, Clip{
			ShotID:    s.ID,
			ClipName:  clipName(base, s.Index),
			MediaPath: mediaPath,
			StartMs:   secondsToMs(s.StartTime),
			EndMs:     secondsToMs(s.EndTime),
			Tags:      s.Tags,
		})
	}

	unknown = []string{}
	for _, id := range sel.ShotIDs {
		if !wanted[id] {
			unknown = append(unknown, id)
		}
	}
	return clips, unknown
}

func hasAnyTag(s *shots.Shot, tags []string) bool {
	for _, t := range tags {
		if s.HasTag(t) {
			return true
		}
	}
	return false
}

func clipName(base string, index int) string {
	if base == "" {
		return fmt.Sprintf("shot %03d", index+1)
	}
	return fmt.Sprintf("%s shot %03d", base, index+1)
}

func secondsToMs(s float64) int {
	return int(math.Round(s * 1000))
}
