package shots

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	visionerr "github.com/heimdex/heimdex-vision/internal/errors"
	"github.com/heimdex/heimdex-vision/internal/frames"
	"github.com/heimdex/heimdex-vision/internal/vecmath"
)

// Default and maximum library page sizes.
const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Filter selects shots from the library. Empty fields match everything; Tags match any.
type Filter struct {
	VideoID      string
	MovementType string
	Tone         string
	Tags         []string
	Page         int
	PageSize     int
}

// Page is one page of library results.
type Page struct {
	Shots      []*Shot `json:"shots"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	Total      int     `json:"total_shots"`
	TotalPages int     `json:"total_pages"`
}

// Store persists shots.
type Store interface {
	SaveShots(ctx context.Context, shots []*Shot) error
	// ReplaceVideoShots atomically swaps every shot of videoID for shots.
	ReplaceVideoShots(ctx context.Context, videoID string, shots []*Shot) error
	GetShot(ctx context.Context, id string) (*Shot, error)
	ListByVideo(ctx context.Context, videoID string) ([]*Shot, error)
	Query(ctx context.Context, f Filter) (*Page, error)
	Annotate(ctx context.Context, id string, a Annotation) (*Shot, error)
	DeleteByVideo(ctx context.Context, videoID string) (int, error)
}

// SQLiteStore is the Store over the daemon database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const shotColumns = `id, video_id, shot_index, start_time, end_time, duration, keyframe_time,
	movement_type, movement_intensity, shot_size, shot_angle, framing, composition,
	keyframe_feature, tags, usage_situations, emotional_tone, scene_description,
	narrative_function, created_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) SaveShots(ctx context.Context, shots []*Shot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbErr(err, "begin save shots")
	}
	defer tx.Rollback()

	for _, shot := range shots {
		if err := insertShot(ctx, tx, shot); err != nil {
			return err
		}
	}
	return dbErr(tx.Commit(), "commit shots")
}

func (s *SQLiteStore) ReplaceVideoShots(ctx context.Context, videoID string, shots []*Shot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbErr(err, "begin replace shots")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM shots WHERE video_id = ?", videoID); err != nil {
		return dbErr(err, "delete shots")
	}
	for _, shot := range shots {
		shot.VideoID = videoID
		if err := insertShot(ctx, tx, shot); err != nil {
			return err
		}
	}
	return dbErr(tx.Commit(), "commit shots")
}

func insertShot(ctx context.Context, ex execer, shot *Shot) error {
	comp, err := marshalNullable(shot.Composition, shot.Composition == nil)
	if err != nil {
		return err
	}
	feature, err := marshalNullable(shot.KeyframeFeature, len(shot.KeyframeFeature) == 0)
	if err != nil {
		return err
	}
	tags, err := marshalList(shot.Tags)
	if err != nil {
		return err
	}
	usage, err := marshalList(shot.UsageSituations)
	if err != nil {
		return err
	}
	if shot.CreatedAt.IsZero() {
		shot.CreatedAt = time.Now().UTC()
	}

	_, err = ex.ExecContext(ctx, `INSERT INTO shots (`+shotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		shot.ID, shot.VideoID, shot.Index, shot.StartTime, shot.EndTime, shot.Duration, shot.KeyframeTime,
		shot.MovementType, shot.MovementIntensity, shot.ShotSize, shot.ShotAngle, shot.Framing, comp,
		feature, tags, usage, nullString(shot.EmotionalTone), nullString(shot.SceneDescription),
		nullString(shot.NarrativeFunction), shot.CreatedAt.UTC().Format(timeLayout))
	return dbErr(err, "insert shot")
}

func (s *SQLiteStore) GetShot(ctx context.Context, id string) (*Shot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+shotColumns+` FROM shots WHERE id = ?`, id)
	if err != nil {
		return nil, dbErr(err, "get shot")
	}
	defer rows.Close()

	list, err := scanShots(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, visionerr.NotFound("shot", id)
	}
	return list[0], nil
}

func (s *SQLiteStore) ListByVideo(ctx context.Context, videoID string) ([]*Shot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+shotColumns+` FROM shots WHERE video_id = ? ORDER BY shot_index`, videoID)
	if err != nil {
		return nil, dbErr(err, "list shots")
	}
	defer rows.Close()
	return scanShots(rows)
}

func (s *SQLiteStore) Query(ctx context.Context, f Filter) (*Page, error) {
	page, size := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		return nil, visionerr.InvalidInput("page size %d exceeds maximum %d", size, MaxPageSize)
	}

	var where []string
	var args []any
	if f.VideoID != "" {
		where = append(where, "video_id = ?")
		args = append(args, f.VideoID)
	}
	if f.MovementType != "" {
		where = append(where, "movement_type = ?")
		args = append(args, f.MovementType)
	}
	if f.Tone != "" {
		where = append(where, "emotional_tone = ?")
		args = append(args, f.Tone)
	}
	if tags := nonEmpty(f.Tags); len(tags) > 0 {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(shots.tags) WHERE json_each.value IN ("+placeholders(len(tags))+"))")
		for _, t := range tags {
			args = append(args, t)
		}
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM shots"+clause, args...).Scan(&total); err != nil {
		return nil, dbErr(err, "count shots")
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+shotColumns+" FROM shots"+clause+" ORDER BY created_at, video_id, shot_index LIMIT ? OFFSET ?",
		append(args, size, (page-1)*size)...)
	if err != nil {
		return nil, dbErr(err, "query shots")
	}
	defer rows.Close()

	list, err := scanShots(rows)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*Shot{}
	}
	return &Page{
		Shots:      list,
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: (total + size - 1) / size,
	}, nil
}

func (s *SQLiteStore) Annotate(ctx context.Context, id string, a Annotation) (*Shot, error) {
	var sets []string
	var args []any
	if a.EmotionalTone != nil {
		sets = append(sets, "emotional_tone = ?")
		args = append(args, nullString(*a.EmotionalTone))
	}
	if a.SceneDescription != nil {
		sets = append(sets, "scene_description = ?")
		args = append(args, nullString(*a.SceneDescription))
	}
	if a.NarrativeFunction != nil {
		sets = append(sets, "narrative_function = ?")
		args = append(args, nullString(*a.NarrativeFunction))
	}
	if a.Tags != nil {
		tags, err := marshalList(uniqueSorted(a.Tags))
		if err != nil {
			return nil, err
		}
		sets = append(sets, "tags = ?")
		args = append(args, tags)
	}
	if len(sets) == 0 {
		return s.GetShot(ctx, id)
	}

	res, err := s.db.ExecContext(ctx, "UPDATE shots SET "+strings.Join(sets, ", ")+" WHERE id = ?", append(args, id)...)
	if err != nil {
		return nil, dbErr(err, "annotate shot")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, visionerr.NotFound("shot", id)
	}
	return s.GetShot(ctx, id)
}

func (s *SQLiteStore) DeleteByVideo(ctx context.Context, videoID string) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM shots WHERE video_id = ?", videoID)
	if err != nil {
		return 0, dbErr(err, "delete shots")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func scanShots(rows *sql.Rows) ([]*Shot, error) {
	var list []*Shot
	for rows.Next() {
		var sh Shot
		var comp, feature, tone, desc, narrative sql.NullString
		var tags, usage, createdAt string

		if err := rows.Scan(&sh.ID, &sh.VideoID, &sh.Index, &sh.StartTime, &sh.EndTime, &sh.Duration,
			&sh.KeyframeTime, &sh.MovementType, &sh.MovementIntensity, &sh.ShotSize, &sh.ShotAngle,
			&sh.Framing, &comp, &feature, &tags, &usage, &tone, &desc, &narrative, &createdAt); err != nil {
			return nil, dbErr(err, "scan shot")
		}
		if comp.Valid {
			var c frames.Composition
			if err := json.Unmarshal([]byte(comp.String), &c); err != nil {
				return nil, dbErr(err, "decode composition")
			}
			sh.Composition = &c
		}
		if feature.Valid {
			var v vecmath.FeatureVector
			if err := json.Unmarshal([]byte(feature.String), &v); err != nil {
				return nil, dbErr(err, "decode keyframe feature")
			}
			sh.KeyframeFeature = v
		}
		if err := json.Unmarshal([]byte(tags), &sh.Tags); err != nil {
			return nil, dbErr(err, "decode tags")
		}
		if err := json.Unmarshal([]byte(usage), &sh.UsageSituations); err != nil {
			return nil, dbErr(err, "decode usage situations")
		}
		sh.EmotionalTone = tone.String
		sh.SceneDescription = desc.String
		sh.NarrativeFunction = narrative.String
		sh.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		list = append(list, &sh)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err, "iterate shots")
	}
	return list, nil
}

func marshalNullable(v any, null bool) (sql.NullString, error) {
	if null {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, visionerr.Wrap(err, visionerr.CodeStoreDatabase, "encode column")
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func marshalList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", visionerr.Wrap(err, visionerr.CodeStoreDatabase, "encode list")
	}
	return string(b), nil
}

func nonEmpty(ss []string) []string {
	out := ss[:0:0]
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func dbErr(err error, op string) error {
	if err == nil {
		return nil
	}
	return visionerr.Wrap(err, visionerr.CodeStoreDatabase, op)
}
