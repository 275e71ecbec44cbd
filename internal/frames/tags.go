package frames

import "sort"

// Tags returns the sorted, de-duplicated composition tags for a frame.
func Tags(shot ShotComp, c Composition) []string {
	set := map[string]struct{}{
		shot.ShotSize:             {},
		shot.Framing:              {},
		"dof_" + c.DepthOfField:   {},
		"detail_" + c.EdgeDensity: {},
	}
	add := func(t string) { set[t] = struct{}{} }

	if c.RuleOfThirds > 0.6 {
		add("rule_of_thirds")
	}
	switch {
	case c.Symmetry.Overall > 0.7:
		add("symmetrical")
	case c.Symmetry.Overall < 0.3:
		add("asymmetrical")
	}
	switch {
	case c.Color.WarmBalance > 0.6:
		add("warm_tones")
	case c.Color.WarmBalance < 0.4:
		add("cool_tones")
	}
	switch {
	case c.Color.Diversity > 0.7:
		add("colorful")
	case c.Color.Diversity < 0.3:
		add("monochromatic")
	}
	switch {
	case c.Balance > 0.7:
		add("well_balanced")
	case c.Balance < 0.4:
		add("dynamic_composition")
	}

	tags := make([]string, 0, len(set))
	for t := range set {
		if t != "" {
			tags = append(tags, t)
		}
	}
	sort.Strings(tags)
	return tags
}
