package api

import (
	"bytes"
	"image/color"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	visionerr "github.com/heimdex/heimdex-vision/internal/errors"
)

func TestPairwiseHandler(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/similarity", map[string]any{
		"a": []float32{1, 0, 0},
		"b": []float32{1, 0, 0},
	})
	expectStatus(t, rr, http.StatusOK)

	var resp PairwiseResponse
	decodeJSONBody(t, rr, &resp)
	if math.Abs(resp.Percentage-100) > 1e-6 {
		t.Errorf("Percentage = %v, want 100", resp.Percentage)
	}
	if !resp.SameCharacter || resp.Threshold != 75 {
		t.Errorf("same/threshold = %v/%v, want true/75", resp.SameCharacter, resp.Threshold)
	}
	if resp.ConfidenceLevel == "" {
		t.Error("ConfidenceLevel is empty")
	}
}

func TestPairwiseHandler_DimensionMismatch(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/similarity", map[string]any{
		"a": []float32{1, 0, 0},
		"b": []float32{1, 0},
	})
	expectStatus(t, rr, http.StatusBadRequest)

	var body ErrorResponse
	decodeJSONBody(t, rr, &body)
	if body.Code != string(visionerr.CodeDimensionMismatch) {
		t.Errorf("code = %s, want %s", body.Code, visionerr.CodeDimensionMismatch)
	}
}

func TestPairwiseHandler_BadBody(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/similarity", []byte("{not json"))
	expectStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, http.MethodPost, "/v1/similarity", []byte(""))
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestMatrixHandler(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/similarity/matrix", map[string]any{
		"vectors": [][]float32{{1, 0}, {0, 1}, {1, 0}},
	})
	expectStatus(t, rr, http.StatusOK)

	var resp MatrixResponse
	decodeJSONBody(t, rr, &resp)
	if resp.Size != 3 {
		t.Fatalf("Size = %d, want 3", resp.Size)
	}
	if resp.Matrix[0][0] != 100 || math.Abs(resp.Matrix[0][2]-100) > 1e-6 {
		t.Errorf("matrix row 0 = %v", resp.Matrix[0])
	}
	if math.Abs(resp.Matrix[0][1]-50) > 1e-6 {
		t.Errorf("orthogonal cell = %v, want 50", resp.Matrix[0][1])
	}
}

func TestMatrixHandler_BatchTooLarge(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/similarity/matrix", map[string]any{
		"vectors": [][]float32{{1}, {1}, {1}, {1}, {1}},
	})
	expectStatus(t, rr, http.StatusBadRequest)

	var body ErrorResponse
	decodeJSONBody(t, rr, &body)
	if body.Code != string(visionerr.CodeBatchTooLarge) {
		t.Errorf("code = %s, want %s", body.Code, visionerr.CodeBatchTooLarge)
	}
}

func TestRankHandler(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/similarity/rank", map[string]any{
		"reference":  []float32{1, 0},
		"candidates": [][]float32{{-1, 0}, {1, 0}, {0, 1}},
		"top_k":      2,
	})
	expectStatus(t, rr, http.StatusOK)

	var resp RankResponse
	decodeJSONBody(t, rr, &resp)
	if resp.Total != 3 || len(resp.Results) != 2 {
		t.Fatalf("total/results = %d/%d, want 3/2", resp.Total, len(resp.Results))
	}
	if resp.Results[0].Index != 1 || resp.Results[1].Index != 2 {
		t.Errorf("order = %d,%d, want 1,2", resp.Results[0].Index, resp.Results[1].Index)
	}
}

func TestGroupHandler(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/similarity/group", map[string]any{
		"vectors":   [][]float32{{1, 0}, {0, 1}, {0.99, 0.01}},
		"threshold": 90,
	})
	expectStatus(t, rr, http.StatusOK)

	var resp GroupResponse
	decodeJSONBody(t, rr, &resp)
	if len(resp.Groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(resp.Groups))
	}
	if got := resp.Groups[0].Members; len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("first group members = %v, want [0 2]", got)
	}

	rr = env.do(t, http.MethodPost, "/v1/similarity/group", map[string]any{
		"vectors":   [][]float32{{1, 0}},
		"threshold": 150,
	})
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestQualityHandler(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/quality", map[string]any{
		"vectors": [][]float32{{0.1, 0.5, 0.9, 0.3}, {0.2, 0.2, 0.8, 0.4}},
	})
	expectStatus(t, rr, http.StatusOK)

	var resp QualityResponse
	decodeJSONBody(t, rr, &resp)
	if resp.Threshold != 0.5 {
		t.Errorf("Threshold = %v, want configured 0.5", resp.Threshold)
	}
	if len(resp.Results) != 2 || resp.Summary.Count != 2 {
		t.Errorf("results/summary = %d/%d, want 2/2", len(resp.Results), resp.Summary.Count)
	}

	rr = env.do(t, http.MethodPost, "/v1/quality", map[string]any{
		"vectors":   [][]float32{{1, 2}},
		"threshold": 2,
	})
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestAnomaliesHandler(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/anomalies", map[string]any{
		"reference": [][]float32{{0, 0}, {2, 0}},
		"test":      [][]float32{{10, 0}},
	})
	expectStatus(t, rr, http.StatusOK)

	var resp AnomalyResponse
	decodeJSONBody(t, rr, &resp)
	if resp.AnomaliesDetected != 1 {
		t.Fatalf("AnomaliesDetected = %d, want 1", resp.AnomaliesDetected)
	}
	if math.Abs(resp.Results[0].Score-4.5) > 1e-6 {
		t.Errorf("Score = %v, want 4.5", resp.Results[0].Score)
	}

	rr = env.do(t, http.MethodPost, "/v1/anomalies", map[string]any{
		"reference": [][]float32{{0, 0}},
		"test":      [][]float32{{10, 0}},
	})
	expectStatus(t, rr, http.StatusBadRequest)
	var body ErrorResponse
	decodeJSONBody(t, rr, &body)
	if body.Code != string(visionerr.CodeInsufficientReferenceData) {
		t.Errorf("code = %s, want %s", body.Code, visionerr.CodeInsufficientReferenceData)
	}
}

func TestClustersHandler(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/clusters", map[string]any{
		"vectors":    [][]float32{{0, 0}, {0.1, 0}, {10, 10}, {10.1, 10}},
		"n_clusters": 2,
		"seed":       7,
	})
	expectStatus(t, rr, http.StatusOK)

	var resp ClusterResponse
	decodeJSONBody(t, rr, &resp)
	if resp.K != 2 || len(resp.Labels) != 4 {
		t.Fatalf("K/labels = %d/%d, want 2/4", resp.K, len(resp.Labels))
	}
	if resp.Labels[0] != resp.Labels[1] || resp.Labels[2] != resp.Labels[3] || resp.Labels[0] == resp.Labels[2] {
		t.Errorf("labels = %v, want two pairs", resp.Labels)
	}
}

func TestCompositionHandler(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/frames/composition", pngBytes(t, solid(color.RGBA{200, 80, 40, 255})))
	expectStatus(t, rr, http.StatusOK)

	var resp CompositionResponse
	decodeJSONBody(t, rr, &resp)
	if math.Abs(resp.Composition.AspectRatio-32.0/18.0) > 0.01 {
		t.Errorf("AspectRatio = %v, want %v", resp.Composition.AspectRatio, 32.0/18.0)
	}
	if resp.Shot.ShotSize == "" {
		t.Error("ShotSize is empty")
	}
}

func TestFrameMetricsHandler_RejectsGarbage(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/frames/metrics", []byte("definitely not an image"))
	expectStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, http.MethodPost, "/v1/frames/metrics", pngBytes(t, solid(color.Gray{128})))
	expectStatus(t, rr, http.StatusOK)
}

func TestFrameMetricsHandler_TooLarge(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/frames/metrics", bytes.NewReader(make([]byte, 2<<20)))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}
