package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/heimdex/heimdex-vision/internal/metrics"
	"github.com/heimdex/heimdex-vision/internal/video"
)

// DefaultPollInterval is how often the runner looks for pending jobs.
const DefaultPollInterval = 2 * time.Second

type Runner struct {
	service      *Service
	repo         Repository
	doctor       *video.Doctor
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool
}

// NewRunner builds a runner. doctor may be nil, in which case segment jobs run without a
// tool availability check.
func NewRunner(service *Service, repo Repository, doctor *video.Doctor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		service:      service,
		repo:         repo,
		doctor:       doctor,
		logger:       logger.With("component", "runner"),
		pollInterval: DefaultPollInterval,
	}
}

// SetPollInterval overrides the polling period. It must be called before Start.
func (r *Runner) SetPollInterval(d time.Duration) {
	if d > 0 {
		r.pollInterval = d
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("job runner started", "poll_interval", r.pollInterval)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.processNextJob(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("job runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("job runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// RunPending processes queued jobs until none remain or ctx is done. It returns the number of
// jobs handled.
func (r *Runner) RunPending(ctx context.Context) int {
	seen := make(map[string]bool)
	for ctx.Err() == nil {
		id := r.processNextJob(ctx)
		if id == "" || seen[id] {
			break
		}
		seen[id] = true
	}
	return len(seen)
}

// processNextJob runs the oldest pending job and returns its id, or "" when the queue is empty.
func (r *Runner) processNextJob(ctx context.Context) string {
	jobs, err := r.repo.ListPendingJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending jobs", "error", err)
		return ""
	}
	metrics.JobQueueDepth.Set(float64(len(jobs)))

	if len(jobs) == 0 {
		return ""
	}

	job := jobs[0]
	logger := r.logger.With("job_id", job.ID, "type", job.Type)
	logger.Info("processing job")

	switch job.Type {
	case JobTypeSegment:
		err = r.processSegmentJob(ctx, job)
	case JobTypeExtractFeatures:
		err = r.service.ExecuteFeatureExtraction(ctx, job)
	default:
		err = fmt.Errorf("unknown job type %q", job.Type)
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "unknown job type")
	}

	status := JobStatusCompleted
	if err != nil {
		status = JobStatusFailed
		logger.Error("job failed", "error", err)
	}
	metrics.JobsProcessedTotal.WithLabelValues(job.Type, status).Inc()
	return job.ID
}

func (r *Runner) processSegmentJob(ctx context.Context, job *Job) error {
	if r.doctor != nil {
		caps, err := r.doctor.Get(ctx)
		if err != nil {
			msg := fmt.Sprintf("doctor probe failed: %v", err)
			r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, msg)
			return fmt.Errorf("%s", msg)
		}
		if !caps.CanSegment() {
			r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "ffmpeg and ffprobe are required for segmentation")
			return fmt.Errorf("segmentation tools unavailable")
		}
	}
	return r.service.ExecuteSegment(ctx, job)
}

// GetActiveJobCount counts running jobs among the most recent ones.
func (r *Runner) GetActiveJobCount(ctx context.Context) int {
	jobs, err := r.repo.ListJobs(ctx, 100)
	if err != nil {
		return 0
	}
	count := 0
	for _, j := range jobs {
		if j.Status == JobStatusRunning {
			count++
		}
	}
	return count
}
