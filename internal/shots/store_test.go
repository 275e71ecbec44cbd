package shots_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimdex/heimdex-vision/internal/db"
	visionerr "github.com/heimdex/heimdex-vision/internal/errors"
	"github.com/heimdex/heimdex-vision/internal/frames"
	"github.com/heimdex/heimdex-vision/internal/shots"
	"github.com/heimdex/heimdex-vision/internal/vecmath"
)

func newStore(t *testing.T, videoIDs ...string) *shots.SQLiteStore {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	for _, id := range videoIDs {
		_, err := database.Conn().Exec(
			`INSERT INTO videos (id, path, filename, created_at) VALUES (?, ?, ?, datetime('now'))`,
			id, "/media/"+id+".mp4", id+".mp4")
		require.NoError(t, err)
	}
	return shots.NewSQLiteStore(database.Conn())
}

func sampleShot(id, videoID string, index int, movement string, tags ...string) *shots.Shot {
	return &shots.Shot{
		ID:                id,
		VideoID:           videoID,
		Index:             index,
		StartTime:         float64(index) * 2,
		EndTime:           float64(index)*2 + 2,
		Duration:          2,
		KeyframeTime:      float64(index)*2 + 1,
		MovementType:      movement,
		MovementIntensity: 0.02,
		ShotSize:          "medium",
		ShotAngle:         "eye_level",
		Framing:           "standard",
		Tags:              tags,
		UsageSituations:   []string{},
		CreatedAt:         time.Date(2026, 1, 2, 3, 4, 5, index, time.UTC),
	}
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	store := newStore(t, "v1")
	ctx := context.Background()

	s := sampleShot("s1", "v1", 0, shots.MovementStatic, "static", "medium")
	s.KeyframeFeature = vecmath.FeatureVector{0.5, 0.25}
	s.Composition = &frames.Composition{RuleOfThirds: 0.4, DepthOfField: frames.DepthDeep}
	s.SceneDescription = "opening"
	require.NoError(t, store.SaveShots(ctx, []*shots.Shot{s}))

	got, err := store.GetShot(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.VideoID)
	assert.Equal(t, vecmath.FeatureVector{0.5, 0.25}, got.KeyframeFeature)
	assert.Equal(t, []string{"static", "medium"}, got.Tags)
	require.NotNil(t, got.Composition)
	assert.Equal(t, frames.DepthDeep, got.Composition.DepthOfField)
	assert.Equal(t, "opening", got.SceneDescription)
	assert.True(t, s.CreatedAt.Equal(got.CreatedAt))

	_, err = store.GetShot(ctx, "missing")
	assert.True(t, visionerr.IsNotFound(err))
}

func TestSQLiteStore_ReplaceAndList(t *testing.T) {
	store := newStore(t, "v1")
	ctx := context.Background()

	require.NoError(t, store.SaveShots(ctx, []*shots.Shot{sampleShot("old", "v1", 0, shots.MovementPan)}))
	require.NoError(t, store.ReplaceVideoShots(ctx, "v1", []*shots.Shot{
		sampleShot("n2", "", 1, shots.MovementStatic),
		sampleShot("n1", "", 0, shots.MovementStatic),
	}))

	list, err := store.ListByVideo(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n1", list[0].ID)
	assert.Equal(t, "n2", list[1].ID)
	assert.Nil(t, list[0].KeyframeFeature)

	n, err := store.DeleteByVideo(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteStore_QueryFiltersAndPaginates(t *testing.T) {
	store := newStore(t, "v1", "v2")
	ctx := context.Background()

	var batch []*shots.Shot
	for i := 0; i < 5; i++ {
		batch = append(batch, sampleShot("a"+string(rune('0'+i)), "v1", i, shots.MovementStatic, "static", "night"))
	}
	batch = append(batch, sampleShot("b0", "v2", 0, shots.MovementPan, "pan", "wide"))
	require.NoError(t, store.SaveShots(ctx, batch))

	page, err := store.Query(ctx, shots.Filter{MovementType: shots.MovementStatic, Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Shots, 2)
	assert.Equal(t, "a2", page.Shots[0].ID)

	page, err = store.Query(ctx, shots.Filter{Tags: []string{"wide", "unknown"}})
	require.NoError(t, err)
	require.Len(t, page.Shots, 1)
	assert.Equal(t, "b0", page.Shots[0].ID)
	assert.Equal(t, shots.DefaultPageSize, page.PageSize)

	page, err = store.Query(ctx, shots.Filter{Tone: "melancholy"})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.NotNil(t, page.Shots)

	_, err = store.Query(ctx, shots.Filter{PageSize: shots.MaxPageSize + 1})
	assert.True(t, visionerr.IsInvalidInput(err))
}

func TestSQLiteStore_Annotate(t *testing.T) {
	store := newStore(t, "v1")
	ctx := context.Background()
	require.NoError(t, store.SaveShots(ctx, []*shots.Shot{sampleShot("s1", "v1", 0, shots.MovementStatic, "static")}))

	tone, narrative := "tense", "climax"
	got, err := store.Annotate(ctx, "s1", shots.Annotation{
		EmotionalTone:     &tone,
		NarrativeFunction: &narrative,
		Tags:              []string{"static", "hero", "hero"},
	})
	require.NoError(t, err)
	assert.Equal(t, "tense", got.EmotionalTone)
	assert.Equal(t, "climax", got.NarrativeFunction)
	assert.Equal(t, []string{"hero", "static"}, got.Tags)

	page, err := store.Query(ctx, shots.Filter{Tone: "tense"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	_, err = store.Annotate(ctx, "missing", shots.Annotation{EmotionalTone: &tone})
	assert.True(t, visionerr.IsNotFound(err))
}
