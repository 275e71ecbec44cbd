package catalog

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "golang.org/x/image/webp"

	"github.com/heimdex/heimdex-vision/internal/embedding"
	visionerr "github.com/heimdex/heimdex-vision/internal/errors"
	"github.com/heimdex/heimdex-vision/internal/shots"
	"github.com/heimdex/heimdex-vision/internal/video"
)

// ProbeFunc reads the stream metadata of a video file.
type ProbeFunc func(ctx context.Context, path string) (*video.Info, error)

// OpenFunc opens a frame source over a video file.
type OpenFunc func(ctx context.Context, path string) (video.FrameSource, error)

// Options wires the collaborators of a Service. Nil functions disable the matching operations.
type Options struct {
	MediaDir      string
	Provider      embedding.Provider
	Probe         ProbeFunc
	Open          OpenFunc
	DiffThreshold float64
}

// FFmpegOptions returns Options whose probe and open functions use tools.
func FFmpegOptions(tools video.Tools) Options {
	return Options{
		Probe: tools.Probe,
		Open: func(ctx context.Context, path string) (video.FrameSource, error) {
			src, err := video.Open(ctx, tools, path)
			if err != nil {
				return nil, err
			}
			return src, nil
		},
	}
}

type Service struct {
	repo      Repository
	shots     shots.Store
	provider  embedding.Provider
	segmenter *shots.Segmenter
	probe     ProbeFunc
	open      OpenFunc
	mediaDir  string
	diff      float64
	logger    *slog.Logger
}

func NewService(repo Repository, store shots.Store, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		shots:     store,
		provider:  opts.Provider,
		segmenter: shots.NewSegmenter(opts.Provider, logger),
		probe:     opts.Probe,
		open:      opts.Open,
		mediaDir:  opts.MediaDir,
		diff:      opts.DiffThreshold,
		logger:    logger.With("component", "catalog"),
	}
}

// Shots exposes the shot store backing the catalog.
func (s *Service) Shots() shots.Store {
	return s.shots
}

// RegisterVideo probes the file at path, records it and enqueues a segment job.
// Registering a known path refreshes its metadata and reuses its id.
func (s *Service) RegisterVideo(ctx context.Context, path string) (*Video, *Job, error) {
	if s.probe == nil {
		return nil, nil, visionerr.New(visionerr.CodeFrameSourceFailure, "video probing is not configured")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, visionerr.InvalidInput("invalid path: %v", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, nil, visionerr.InvalidInput("path does not exist: %s", absPath)
	}
	if info.IsDir() {
		return nil, nil, visionerr.InvalidInput("path is a directory: %s", absPath)
	}
	if !IsVideoFile(absPath) {
		return nil, nil, visionerr.InvalidVideo("unsupported video extension: %s", filepath.Ext(absPath))
	}

	meta, err := s.probe(ctx, absPath)
	if err != nil {
		return nil, nil, err
	}
	if err := meta.Validate(); err != nil {
		return nil, nil, err
	}

	v := &Video{
		ID:        NewID(),
		Path:      absPath,
		Filename:  filepath.Base(absPath),
		FPS:       meta.FPS,
		Duration:  meta.Duration,
		Width:     meta.Width,
		Height:    meta.Height,
		CreatedAt: time.Now(),
	}
	if err := s.repo.UpsertVideo(ctx, v); err != nil {
		return nil, nil, storeErr(err, "upsert video")
	}

	job, err := s.enqueue(ctx, JobTypeSegment, v.ID, "")
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("video registered", "video_id", v.ID, "duration", v.Duration, "fps", v.FPS)
	return v, job, nil
}

func (s *Service) GetVideo(ctx context.Context, id string) (*Video, error) {
	v, err := s.repo.GetVideo(ctx, id)
	if err != nil {
		return nil, storeErr(err, "get video")
	}
	if v == nil {
		return nil, visionerr.NotFound("video", id)
	}
	return v, nil
}

func (s *Service) ListVideos(ctx context.Context) ([]*Video, error) {
	videos, err := s.repo.ListVideos(ctx)
	if err != nil {
		return nil, storeErr(err, "list videos")
	}
	return videos, nil
}

func (s *Service) DeleteVideo(ctx context.Context, id string) error {
	if _, err := s.GetVideo(ctx, id); err != nil {
		return err
	}
	return storeErr(s.repo.DeleteVideo(ctx, id), "delete video")
}

// UploadAsset stores an image upload under the media directory and enqueues feature extraction.
func (s *Service) UploadAsset(ctx context.Context, filename, contentType string, data []byte) (*MediaAsset, *Job, error) {
	if len(data) == 0 {
		return nil, nil, visionerr.InvalidInput("empty upload")
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	contentType = normalizeContentType(contentType)
	ext, ok := ImageContentTypes[contentType]
	if !ok {
		return nil, nil, visionerr.InvalidInput("unsupported content type %q", contentType)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, nil, visionerr.InvalidInput("cannot decode image: %v", err)
	}
	if s.mediaDir == "" {
		return nil, nil, visionerr.New(visionerr.CodeServerInternal, "media directory is not configured")
	}
	if err := os.MkdirAll(s.mediaDir, 0755); err != nil {
		return nil, nil, visionerr.Wrap(err, visionerr.CodeServerInternal, "create media directory")
	}

	id := NewID()
	storagePath := filepath.Join(s.mediaDir, id+ext)
	if err := os.WriteFile(storagePath, data, 0644); err != nil {
		return nil, nil, visionerr.Wrap(err, visionerr.CodeServerInternal, "write upload")
	}

	if filename == "" {
		filename = id + ext
	}
	asset := &MediaAsset{
		ID:          id,
		Filename:    filepath.Base(filename),
		ContentType: contentType,
		Size:        int64(len(data)),
		Width:       cfg.Width,
		Height:      cfg.Height,
		StoragePath: storagePath,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.CreateAsset(ctx, asset); err != nil {
		os.Remove(storagePath)
		return nil, nil, storeErr(err, "create asset")
	}

	job, err := s.enqueue(ctx, JobTypeExtractFeatures, "", asset.ID)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("asset uploaded", "asset_id", asset.ID, "content_type", contentType, "size", asset.Size)
	return asset, job, nil
}

func (s *Service) GetAsset(ctx context.Context, id string) (*MediaAsset, error) {
	a, err := s.repo.GetAsset(ctx, id)
	if err != nil {
		return nil, storeErr(err, "get asset")
	}
	if a == nil {
		return nil, visionerr.NotFound("asset", id)
	}
	return a, nil
}

func (s *Service) ListAssets(ctx context.Context, limit int) ([]*MediaAsset, error) {
	assets, err := s.repo.ListAssets(ctx, limit)
	if err != nil {
		return nil, storeErr(err, "list assets")
	}
	return assets, nil
}

// DeleteAsset removes the asset record and its stored file.
func (s *Service) DeleteAsset(ctx context.Context, id string) error {
	a, err := s.GetAsset(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteAsset(ctx, id); err != nil {
		return storeErr(err, "delete asset")
	}
	if err := os.Remove(a.StoragePath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove asset file", "asset_id", id, "error", err)
	}
	return nil
}

// ExtractFeatures embeds the stored image of an asset and records the vector.
func (s *Service) ExtractFeatures(ctx context.Context, id string) (*MediaAsset, error) {
	if s.provider == nil {
		return nil, visionerr.New(visionerr.CodeEmbeddingUpstream, "no embedding provider configured")
	}
	a, err := s.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}

	img, err := loadImage(a.StoragePath)
	if err != nil {
		return nil, err
	}
	vec, err := s.provider.Embed(ctx, img)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateAssetFeatures(ctx, a.ID, vec, s.provider.Model()); err != nil {
		return nil, storeErr(err, "update asset features")
	}

	a.Features = vec
	a.FeaturesExtracted = true
	a.FeatureModel = s.provider.Model()
	s.logger.Info("features extracted", "asset_id", a.ID, "dimension", len(vec), "model", a.FeatureModel)
	return a, nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, visionerr.Wrap(err, visionerr.CodeServerInternal, "open asset file")
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, visionerr.InvalidInput("cannot decode stored image: %v", err)
	}
	return img, nil
}

// SegmentVideo runs shot segmentation synchronously and replaces the stored shots of the video.
func (s *Service) SegmentVideo(ctx context.Context, videoID string, opts shots.Options) ([]*shots.Shot, error) {
	if s.open == nil {
		return nil, visionerr.New(visionerr.CodeFrameSourceFailure, "frame source is not configured")
	}
	v, err := s.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	src, err := s.open(ctx, v.Path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	opts.VideoID = v.ID
	if opts.DiffThreshold == 0 {
		opts.DiffThreshold = s.diff
	}
	result, err := s.segmenter.Segment(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	if err := s.shots.ReplaceVideoShots(ctx, v.ID, result); err != nil {
		return nil, err
	}
	return result, nil
}

// ExecuteSegment runs a segment job to completion, recording status and progress.
func (s *Service) ExecuteSegment(ctx context.Context, job *Job) error {
	s.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, "")
	s.logger.Info("starting segmentation", "job_id", job.ID, "video_id", job.VideoID)

	last := -1
	result, err := s.SegmentVideo(ctx, job.VideoID, shots.Options{
		Progress: func(done float64) {
			pct := int(done * 100)
			if pct > 99 {
				pct = 99
			}
			if pct > last {
				last = pct
				s.repo.UpdateJobProgress(ctx, job.ID, pct)
			}
		},
	})
	if err != nil {
		s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, err.Error())
		return err
	}

	s.repo.UpdateJobProgress(ctx, job.ID, 100)
	s.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
	s.logger.Info("segmentation completed", "job_id", job.ID, "video_id", job.VideoID, "shots", len(result))
	return nil
}

// ExecuteFeatureExtraction runs an extract_features job.
func (s *Service) ExecuteFeatureExtraction(ctx context.Context, job *Job) error {
	s.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, "")
	if _, err := s.ExtractFeatures(ctx, job.AssetID); err != nil {
		s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, err.Error())
		return err
	}
	s.repo.UpdateJobProgress(ctx, job.ID, 100)
	s.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
	return nil
}

func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	j, err := s.repo.GetJob(ctx, id)
	if err != nil {
		return nil, storeErr(err, "get job")
	}
	if j == nil {
		return nil, visionerr.NotFound("job", id)
	}
	return j, nil
}

func (s *Service) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	jobs, err := s.repo.ListJobs(ctx, limit)
	if err != nil {
		return nil, storeErr(err, "list jobs")
	}
	return jobs, nil
}

// enqueue creates a pending job unless an equivalent one is already queued or running.
func (s *Service) enqueue(ctx context.Context, jobType, videoID, assetID string) (*Job, error) {
	active, err := s.repo.HasActiveJob(ctx, jobType, videoID, assetID)
	if err != nil {
		return nil, storeErr(err, "check active jobs")
	}
	if active {
		s.logger.Debug("job already queued", "type", jobType, "video_id", videoID, "asset_id", assetID)
		return nil, nil
	}

	now := time.Now()
	job := &Job{
		ID:        NewID(),
		Type:      jobType,
		Status:    JobStatusPending,
		VideoID:   videoID,
		AssetID:   assetID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, storeErr(err, "create job")
	}
	s.logger.Info("job created", "job_id", job.ID, "type", jobType)
	return job, nil
}

func storeErr(err error, op string) error {
	if err == nil {
		return nil
	}
	return visionerr.Wrap(err, visionerr.CodeStoreDatabase, fmt.Sprintf("catalog: %s", op))
}
