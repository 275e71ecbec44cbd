package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/heimdex/heimdex-vision/internal/catalog"
	visionerr "github.com/heimdex/heimdex-vision/internal/errors"
	"github.com/heimdex/heimdex-vision/internal/similarity"
)

// maxJSONBody bounds JSON request bodies. Vector batches can be large.
const maxJSONBody = 32 << 20

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSMiddleware(cfg.CORSOrigins))

	r.Get("/health", healthHandler(cfg))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Get("/config", configHandler(cfg))
		r.Post("/runner/pause", runnerHandler(cfg, true))
		r.Post("/runner/resume", runnerHandler(cfg, false))

		r.Post("/similarity", pairwiseHandler(cfg))
		r.Post("/similarity/matrix", matrixHandler(cfg))
		r.Post("/similarity/rank", rankHandler(cfg))
		r.Post("/similarity/group", groupHandler(cfg))
		r.Post("/quality", qualityHandler(cfg))
		r.Post("/anomalies", anomaliesHandler(cfg))
		r.Post("/clusters", clustersHandler(cfg))

		r.Post("/frames/composition", compositionHandler(cfg))
		r.Post("/frames/metrics", frameMetricsHandler(cfg))

		r.Get("/media", listMediaHandler(cfg))
		r.Post("/media", uploadMediaHandler(cfg))
		r.Get("/media/{id}", getMediaHandler(cfg))
		r.Delete("/media/{id}", deleteMediaHandler(cfg))
		r.Get("/media/{id}/file", mediaFileHandler(cfg))
		r.Post("/media/{id}/features", extractFeaturesHandler(cfg))

		r.Route("/assets", func(r chi.Router) {
			r.Post("/match", assetMatchHandler(cfg))
			r.Post("/search", assetSearchHandler(cfg))
			r.Post("/consistency", assetConsistencyHandler(cfg))
			r.Post("/characters", assetCharactersHandler(cfg))
			r.Post("/group", assetGroupHandler(cfg))
			r.Post("/quality", assetQualityHandler(cfg))
			r.Post("/anomalies", assetAnomaliesHandler(cfg))
			r.Post("/clusters", assetClustersHandler(cfg))
			r.Post("/shot-consistency", shotConsistencyHandler(cfg))
			r.Post("/reference-enforcement", enforcementHandler(cfg))
		})

		r.Get("/videos", listVideosHandler(cfg))
		r.Post("/videos", registerVideoHandler(cfg))
		r.Get("/videos/{id}", getVideoHandler(cfg))
		r.Delete("/videos/{id}", deleteVideoHandler(cfg))
		r.Get("/videos/{id}/shots", videoShotsHandler(cfg))
		r.Get("/videos/{id}/file", videoFileHandler(cfg))
		r.Post("/videos/{id}/export", exportHandler(cfg))

		r.Get("/shots", queryShotsHandler(cfg))
		r.Post("/shots/suggest", suggestShotsHandler(cfg))
		r.Get("/shots/{id}", getShotHandler(cfg))
		r.Patch("/shots/{id}", annotateShotHandler(cfg))

		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))
	})

	return r
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return visionerr.New(visionerr.CodeServerRequestInvalid, "request body is required")
		}
		return visionerr.Wrap(err, visionerr.CodeServerRequestInvalid, "invalid request body")
	}
	return nil
}

// checkBatch rejects batches above the configured maximum.
func checkBatch(cfg ServerConfig, n int) error {
	if cfg.Defaults.MaxBatchSize > 0 && n > cfg.Defaults.MaxBatchSize {
		return visionerr.BatchTooLarge(n, cfg.Defaults.MaxBatchSize)
	}
	return nil
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:   "ok",
			Version:  cfg.Version,
			UptimeS:  int64(time.Since(cfg.StartTime).Seconds()),
			DeviceID: cfg.DeviceID,
		}
		if cfg.Doctor != nil {
			if caps, err := cfg.Doctor.Get(r.Context()); err == nil && caps != nil {
				resp.Tools = &ToolsSummary{
					FFmpeg:     caps.FFmpeg.Available,
					FFprobe:    caps.FFprobe.Available,
					CanSegment: caps.CanSegment(),
				}
				if !caps.ProbedAt.IsZero() {
					resp.Tools.LastProbeAt = caps.ProbedAt.Format(time.RFC3339)
				}
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		assets, _ := cfg.Repository.CountAssets(ctx)
		videos, _ := cfg.Repository.ListVideos(ctx)
		jobs, _ := cfg.Repository.ListJobs(ctx, 10)

		state := "idle"
		var activeJob *JobResponse
		jobsRunning := 0
		lastError := ""

		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			state = "paused"
		}

		for _, j := range jobs {
			if j.Status == catalog.JobStatusRunning {
				state = "processing"
				resp := JobToResponse(j)
				activeJob = &resp
				jobsRunning++
			}
			if j.Status == catalog.JobStatusFailed && lastError == "" {
				lastError = j.Error
			}
		}

		if lastError != "" && state == "idle" {
			state = "error"
		}

		WriteJSON(w, http.StatusOK, StatusResponse{
			State:       state,
			LastError:   lastError,
			AssetsCount: assets,
			VideosCount: len(videos),
			JobsRunning: jobsRunning,
			ActiveJob:   activeJob,
		})
	}
}

func configHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, ConfigResponse{
			Defaults:                   cfg.Defaults,
			SameCharacterThreshold:     similarity.SameCharacterThreshold,
			ShotConsistentThreshold:    similarity.ShotConsistentThreshold,
			DefaultComplianceThreshold: similarity.DefaultComplianceThreshold,
			Version:                    cfg.Version,
		})
	}
}

func runnerHandler(cfg ServerConfig, pause bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Runner == nil {
			WriteError(w, http.StatusNotFound, "job runner not configured", CodeNotFound)
			return
		}
		if pause {
			cfg.Runner.Pause()
		} else {
			cfg.Runner.Resume()
		}
		WriteJSON(w, http.StatusOK, map[string]bool{"paused": cfg.Runner.IsPaused()})
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 50)
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		jobs, err := cfg.Service.ListJobs(r.Context(), limit)
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Service.GetJob(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}
