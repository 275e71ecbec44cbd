package shots

import (
	"sort"
	"strings"

	"github.com/heimdex/heimdex-vision/internal/frames"
)

// UsageSituations suggests editorial uses for a shot from its movement, size and scene context.
func UsageSituations(movement, shotSize, sceneContext string) []string {
	set := map[string]struct{}{}
	add := func(ss ...string) {
		for _, s := range ss {
			set[s] = struct{}{}
		}
	}

	switch {
	case movement == MovementStatic && shotSize == frames.ShotCloseUp:
		add("dialogue", "emotional_moment", "character_focus")
	case movement == MovementPan && shotSize == frames.ShotWide:
		add("establishing_shot", "location_reveal", "transition")
	case movement == MovementFast:
		add("action_sequence", "chase", "dynamic_moment")
	}

	ctx := strings.ToLower(sceneContext)
	if strings.Contains(ctx, "dialogue") {
		add("conversation")
	}
	if strings.Contains(ctx, "action") {
		add("action_scene")
	}

	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func uniqueSorted(tags []string) []string {
	set := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := set[t]; ok {
			continue
		}
		set[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
