package api

import (
	"bytes"
	"image"
	"io"
	"net/http"
	"time"

	// Frame bodies may be PNG, JPEG or WebP.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/heimdex/heimdex-vision/internal/anomaly"
	"github.com/heimdex/heimdex-vision/internal/cluster"
	visionerr "github.com/heimdex/heimdex-vision/internal/errors"
	"github.com/heimdex/heimdex-vision/internal/frames"
	"github.com/heimdex/heimdex-vision/internal/metrics"
	"github.com/heimdex/heimdex-vision/internal/quality"
	"github.com/heimdex/heimdex-vision/internal/similarity"
)

func pairwiseHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PairwiseRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		res, err := similarity.Pairwise(req.A, req.B)
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		threshold := orDefault(req.Threshold, cfg.Defaults.SimilarityThreshold)
		level, explanation := similarity.CharacterLevel(res.Percentage)
		WriteJSON(w, http.StatusOK, PairwiseResponse{
			Result:          res,
			SameCharacter:   res.Percentage >= threshold,
			Threshold:       threshold,
			ConfidenceLevel: level,
			Explanation:     explanation,
		})
	}
}

func matrixHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VectorsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		grid, err := similarity.Matrix(r.Context(), req.Vectors, cfg.Defaults.MaxBatchSize)
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, MatrixResponse{Size: len(grid), Matrix: grid})
	}
}

func rankHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RankRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		if err := checkBatch(cfg, len(req.Candidates)); err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		ranked, err := similarity.TopK(req.Reference, req.Candidates, req.TopK)
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, RankResponse{Total: len(req.Candidates), Results: ranked})
	}
}

func groupHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GroupRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		if err := checkBatch(cfg, len(req.Vectors)); err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		threshold := orDefault(req.Threshold, cfg.Defaults.SimilarityThreshold)
		groups, err := similarity.ThresholdGroup(req.Vectors, threshold)
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		if groups == nil {
			groups = []similarity.Group{}
		}
		WriteJSON(w, http.StatusOK, GroupResponse{Threshold: threshold, Groups: groups})
	}
}

func qualityHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req QualityRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		if err := checkBatch(cfg, len(req.Vectors)); err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		threshold := orDefault(req.Threshold, cfg.Defaults.QualityThreshold)
		if threshold < 0 || threshold > 1 {
			writeErr(w, r, cfg.Logger, visionerr.InvalidInput("quality threshold %.2f outside [0, 1]", threshold))
			return
		}

		resp := QualityResponse{Threshold: threshold, Results: make([]VectorQuality, len(req.Vectors))}
		reports := make([]quality.Report, len(req.Vectors))
		for i, v := range req.Vectors {
			rep, err := quality.Analyze(v)
			if err != nil {
				writeErr(w, r, cfg.Logger, err)
				return
			}
			reports[i] = rep
			passes := rep.Passes(threshold)
			if passes {
				resp.Passing++
			}
			resp.Results[i] = VectorQuality{Index: i, Report: rep, Passes: passes}
		}
		resp.Summary = quality.Summarize(reports)
		WriteJSON(w, http.StatusOK, resp)
	}
}

func anomaliesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnomalyRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		if err := checkBatch(cfg, len(req.Test)); err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		det := anomaly.NewDetector()
		det.ScoreThreshold = orDefault(req.ScoreThreshold, det.ScoreThreshold)
		det.CentroidThreshold = orDefault(req.CentroidThreshold, det.CentroidThreshold)

		verdicts, err := det.Detect(r.Context(), req.Reference, req.Test)
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		resp := AnomalyResponse{Results: make([]VectorAnomaly, len(verdicts))}
		for i, v := range verdicts {
			if v.IsAnomaly {
				resp.AnomaliesDetected++
			}
			resp.Results[i] = VectorAnomaly{Index: i, Verdict: v}
		}
		if len(verdicts) > 0 {
			resp.AnomalyRate = float64(resp.AnomaliesDetected) / float64(len(verdicts))
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func clustersHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ClusterRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		if err := checkBatch(cfg, len(req.Vectors)); err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		res, err := cluster.Cluster(r.Context(), req.Vectors, cluster.Options{K: req.K, Seed: req.Seed})
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

// uploadLimit is the configured body cap, or 50 MiB when unset.
func uploadLimit(cfg ServerConfig) int64 {
	if cfg.Defaults.MaxUploadBytes > 0 {
		return cfg.Defaults.MaxUploadBytes
	}
	return 50 << 20
}

// readFrame decodes the request body as a single image.
func readFrame(w http.ResponseWriter, r *http.Request, limit int64) (image.Image, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return nil, visionerr.Wrap(err, visionerr.CodeServerRequestInvalid, "failed to read image body")
	}
	if len(data) == 0 {
		return nil, visionerr.InvalidInput("image body is empty")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, visionerr.Wrap(err, visionerr.CodeInvalidInput, "unsupported or corrupt image")
	}
	return img, nil
}

func compositionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer metrics.ObserveOperation("frame_composition", time.Now())
		img, err := readFrame(w, r, uploadLimit(cfg))
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		comp := frames.Analyze(img)
		shot := frames.ShotComposition(img)
		WriteJSON(w, http.StatusOK, CompositionResponse{
			Composition: comp,
			Shot:        shot,
			Tags:        frames.Tags(shot, comp),
		})
	}
}

func frameMetricsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer metrics.ObserveOperation("frame_metrics", time.Now())
		img, err := readFrame(w, r, uploadLimit(cfg))
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, frames.ImageMetrics(img))
	}
}
