package shots_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimdex/heimdex-vision/internal/shots"
)

func libraryShots() []*shots.Shot {
	return []*shots.Shot{
		{ID: "a", Tags: []string{"static", "close_up"}, EmotionalTone: "tense", SceneDescription: "two people argue in a kitchen"},
		{ID: "b", Tags: []string{"pan", "wide"}, EmotionalTone: "calm", SceneDescription: "sunrise over the city"},
		{ID: "c", Tags: []string{"static", "wide"}, EmotionalTone: "tense", SceneDescription: "Kitchen at night"},
		{ID: "d", Tags: []string{"fast_movement"}},
	}
}

func TestRelevance(t *testing.T) {
	s := libraryShots()[0]
	q := shots.Query{Text: "Argue in the KITCHEN", Tone: "tense", Tags: []string{"static", "close_up", "static"}}
	// two tags, tone, "argue" "in" "kitchen"
	assert.Equal(t, 20.0+20.0+15.0, shots.Relevance(s, q))
	assert.Equal(t, 0.0, shots.Relevance(s, shots.Query{}))
}

func TestRank_DescendingAndStable(t *testing.T) {
	lib := libraryShots()
	ranked := shots.Rank(lib, shots.Query{Tags: []string{"wide"}}, 0)
	require.Len(t, ranked, 4)

	ids := []string{}
	for _, r := range ranked {
		ids = append(ids, r.Shot.ID)
	}
	// b and c tie at 10 and keep input order, then a and d tie at 0
	assert.Equal(t, []string{"b", "c", "a", "d"}, ids)
	assert.Equal(t, 10.0, ranked[0].Relevance)

	assert.Len(t, shots.Rank(lib, shots.Query{}, 2), 2)
	assert.Empty(t, shots.Rank(nil, shots.Query{}, 5))
}

func TestSuggest_FiltersToneAndTags(t *testing.T) {
	lib := libraryShots()

	got := shots.Suggest(lib, shots.Query{Tone: "tense", Tags: []string{"wide"}, Text: "kitchen"}, 10)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].Shot.ID)
	assert.Equal(t, 10.0+20.0+5.0, got[0].Relevance)

	all := shots.Suggest(lib, shots.Query{Text: "kitchen"}, 0)
	require.Len(t, all, 4)
	assert.Equal(t, "a", all[0].Shot.ID)

	assert.Empty(t, shots.Suggest(lib, shots.Query{Tone: "joyful"}, 10))
}
