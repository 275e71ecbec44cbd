package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/heimdex/heimdex-vision/internal/vecmath"
)

type Repository interface {
	CreateAsset(ctx context.Context, asset *MediaAsset) error
	GetAsset(ctx context.Context, id string) (*MediaAsset, error)
	GetAssets(ctx context.Context, ids []string) (map[string]*MediaAsset, error)
	ListAssets(ctx context.Context, limit int) ([]*MediaAsset, error)
	DeleteAsset(ctx context.Context, id string) error
	UpdateAssetFeatures(ctx context.Context, id string, features vecmath.FeatureVector, model string) error
	CountAssets(ctx context.Context) (int, error)

	UpsertVideo(ctx context.Context, video *Video) error
	GetVideo(ctx context.Context, id string) (*Video, error)
	GetVideoByPath(ctx context.Context, path string) (*Video, error)
	ListVideos(ctx context.Context) ([]*Video, error)
	DeleteVideo(ctx context.Context, id string) error

	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	ListPendingJobs(ctx context.Context) ([]*Job, error)
	HasActiveJob(ctx context.Context, jobType, videoID, assetID string) (bool, error)
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateJobProgress(ctx context.Context, id string, progress int) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

// timeLayout is fixed width so that stored timestamps order lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ Repository = (*SQLiteRepository)(nil)

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

const assetColumns = `id, filename, content_type, size, width, height, storage_path,
	features, features_extracted, feature_model, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) CreateAsset(ctx context.Context, a *MediaAsset) error {
	features, err := encodeFeatures(a.Features)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO assets (`+assetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Filename, a.ContentType, a.Size, a.Width, a.Height, a.StoragePath,
		features, boolToInt(a.FeaturesExtracted), nullString(a.FeatureModel), formatTime(a.CreatedAt))
	return err
}

func (r *SQLiteRepository) GetAsset(ctx context.Context, id string) (*MediaAsset, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	a, err := scanAsset(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// GetAssets loads the assets named by ids. Unknown ids are absent from the map.
func (r *SQLiteRepository) GetAssets(ctx context.Context, ids []string) (map[string]*MediaAsset, error) {
	out := make(map[string]*MediaAsset, len(ids))
	for _, id := range ids {
		if _, seen := out[id]; seen {
			continue
		}
		a, err := r.GetAsset(ctx, id)
		if err != nil {
			return nil, err
		}
		if a != nil {
			out[id] = a
		}
	}
	return out, nil
}

func (r *SQLiteRepository) ListAssets(ctx context.Context, limit int) ([]*MediaAsset, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+assetColumns+` FROM assets ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []*MediaAsset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func scanAsset(row rowScanner) (*MediaAsset, error) {
	var a MediaAsset
	var features, model sql.NullString
	var extracted int
	var createdAt string

	err := row.Scan(&a.ID, &a.Filename, &a.ContentType, &a.Size, &a.Width, &a.Height, &a.StoragePath,
		&features, &extracted, &model, &createdAt)
	if err != nil {
		return nil, err
	}
	if features.Valid && features.String != "" {
		if err := json.Unmarshal([]byte(features.String), &a.Features); err != nil {
			return nil, err
		}
	}
	a.FeaturesExtracted = extracted != 0
	a.FeatureModel = model.String
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}

func (r *SQLiteRepository) DeleteAsset(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM jobs WHERE asset_id = ? AND status = ?", id, JobStatusPending); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, "DELETE FROM assets WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) UpdateAssetFeatures(ctx context.Context, id string, features vecmath.FeatureVector, model string) error {
	encoded, err := encodeFeatures(features)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE assets SET features = ?, features_extracted = ?, feature_model = ? WHERE id = ?
	`, encoded, boolToInt(encoded.Valid), nullString(model), id)
	return err
}

func (r *SQLiteRepository) CountAssets(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assets").Scan(&count)
	return count, err
}

func encodeFeatures(v vecmath.FeatureVector) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

const videoColumns = `id, path, filename, fps, duration, width, height, created_at`

// UpsertVideo inserts v or refreshes the probe fields of the video already registered at v.Path.
// On conflict v.ID and v.CreatedAt are replaced by the stored values.
func (r *SQLiteRepository) UpsertVideo(ctx context.Context, v *Video) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO videos (`+videoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			filename = excluded.filename,
			fps = excluded.fps,
			duration = excluded.duration,
			width = excluded.width,
			height = excluded.height
	`, v.ID, v.Path, v.Filename, v.FPS, v.Duration, v.Width, v.Height, formatTime(v.CreatedAt))
	if err != nil {
		return err
	}
	stored, err := r.GetVideoByPath(ctx, v.Path)
	if err != nil {
		return err
	}
	if stored != nil {
		v.ID = stored.ID
		v.CreatedAt = stored.CreatedAt
	}
	return nil
}

func (r *SQLiteRepository) GetVideo(ctx context.Context, id string) (*Video, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	v, err := scanVideo(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return v, err
}

func (r *SQLiteRepository) GetVideoByPath(ctx context.Context, path string) (*Video, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE path = ?`, path)
	v, err := scanVideo(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return v, err
}

func (r *SQLiteRepository) ListVideos(ctx context.Context) ([]*Video, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+videoColumns+` FROM videos ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func scanVideo(row rowScanner) (*Video, error) {
	var v Video
	var createdAt string
	if err := row.Scan(&v.ID, &v.Path, &v.Filename, &v.FPS, &v.Duration, &v.Width, &v.Height, &createdAt); err != nil {
		return nil, err
	}
	v.CreatedAt = parseTime(createdAt)
	return &v, nil
}

// DeleteVideo removes the video; its shots go with it through the foreign key cascade.
func (r *SQLiteRepository) DeleteVideo(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM jobs WHERE video_id = ? AND status = ?", id, JobStatusPending); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, "DELETE FROM videos WHERE id = ?", id)
	return err
}

const jobColumns = `id, type, status, video_id, asset_id, progress, error, created_at, updated_at`

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Type, j.Status, nullString(j.VideoID), nullString(j.AssetID),
		j.Progress, nullString(j.Error),
		formatTime(j.CreatedAt), formatTime(j.UpdatedAt))
	return err
}

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var videoID, assetID, errMsg sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(&j.ID, &j.Type, &j.Status, &videoID, &assetID, &j.Progress, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	j.VideoID = videoID.String
	j.AssetID = assetID.String
	j.Error = errMsg.String
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	return &j, nil
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

func (r *SQLiteRepository) ListPendingJobs(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at ASC, rowid ASC
	`, JobStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// HasActiveJob reports whether a pending or running job of jobType exists for the target.
func (r *SQLiteRepository) HasActiveJob(ctx context.Context, jobType, videoID, assetID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM jobs
		WHERE type = ? AND status IN (?, ?)
		  AND IFNULL(video_id, '') = ? AND IFNULL(asset_id, '') = ?
	`, jobType, JobStatusPending, JobStatusRunning, videoID, assetID).Scan(&count)
	return count > 0, err
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), formatTime(r.now()), id)
	return err
}

func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET progress = ?, updated_at = ? WHERE id = ?
	`, progress, formatTime(r.now()), id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
