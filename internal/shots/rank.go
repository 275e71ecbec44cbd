package shots

import (
	"sort"
	"strings"
)

// Query describes the scene a shot is wanted for.
type Query struct {
	Text string   `json:"scene_description"`
	Tone string   `json:"emotional_tone"`
	Tags []string `json:"desired_tags"`
}

// Scored is a shot with its relevance score.
type Scored struct {
	Shot      *Shot   `json:"shot"`
	Relevance float64 `json:"relevance_score"`
}

// Relevance scores shot against q: 10 per shared tag, 20 for a tone match and 5 per word
// shared between the query text and the shot's scene description.
func Relevance(shot *Shot, q Query) float64 {
	var score float64

	if len(q.Tags) > 0 && len(shot.Tags) > 0 {
		have := make(map[string]struct{}, len(shot.Tags))
		for _, t := range shot.Tags {
			have[t] = struct{}{}
		}
		seen := make(map[string]struct{}, len(q.Tags))
		for _, t := range q.Tags {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			if _, ok := have[t]; ok {
				score += 10
			}
		}
	}

	if q.Tone != "" && shot.EmotionalTone == q.Tone {
		score += 20
	}

	if q.Text != "" && shot.SceneDescription != "" {
		words := wordSet(shot.SceneDescription)
		for w := range wordSet(q.Text) {
			if _, ok := words[w]; ok {
				score += 5
			}
		}
	}
	return score
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Rank orders shots by descending relevance, keeping input order among equal scores.
// limit <= 0 returns every shot.
func Rank(shots []*Shot, q Query, limit int) []Scored {
	out := make([]Scored, len(shots))
	for i, s := range shots {
		out[i] = Scored{Shot: s, Relevance: Relevance(s, q)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Suggest narrows shots to the query's tone and to shots sharing any desired tag, then ranks them.
func Suggest(shots []*Shot, q Query, limit int) []Scored {
	filtered := make([]*Shot, 0, len(shots))
	for _, s := range shots {
		if q.Tone != "" && s.EmotionalTone != q.Tone {
			continue
		}
		if len(q.Tags) > 0 && !anyTag(s, q.Tags) {
			continue
		}
		filtered = append(filtered, s)
	}
	return Rank(filtered, q, limit)
}

func anyTag(s *Shot, tags []string) bool {
	for _, t := range tags {
		if s.HasTag(t) {
			return true
		}
	}
	return false
}
