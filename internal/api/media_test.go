package api

import (
	"bytes"
	"context"
	"image/color"
	"net/http"
	"testing"

	"github.com/heimdex/heimdex-vision/internal/catalog"
	visionerr "github.com/heimdex/heimdex-vision/internal/errors"
)

func uploadAsset(t *testing.T, env *testEnv, name string, c color.Color) UploadResponse {
	t.Helper()
	rr := env.upload(t, name, "image/png", pngBytes(t, solid(c)))
	expectStatus(t, rr, http.StatusCreated)
	var resp UploadResponse
	decodeJSONBody(t, rr, &resp)
	return resp
}

func TestUploadMedia(t *testing.T) {
	env := newTestEnv(t)

	resp := uploadAsset(t, env, "hero.png", color.RGBA{200, 20, 20, 255})
	if resp.Asset.ID == "" || resp.JobID == "" {
		t.Fatalf("upload = %+v, want asset id and job id", resp)
	}
	if resp.Asset.Width != 32 || resp.Asset.Height != 18 {
		t.Errorf("dimensions = %dx%d, want 32x18", resp.Asset.Width, resp.Asset.Height)
	}
	if resp.Asset.FeaturesExtracted {
		t.Error("features should not be extracted before the job runs")
	}

	env.runner.RunPending(context.Background())

	rr := env.do(t, http.MethodGet, "/v1/media/"+resp.Asset.ID, nil)
	expectStatus(t, rr, http.StatusOK)
	var got AssetResponse
	decodeJSONBody(t, rr, &got)
	if !got.FeaturesExtracted || got.FeatureDimension != 12 {
		t.Errorf("after job: extracted=%v dim=%d, want true/12", got.FeaturesExtracted, got.FeatureDimension)
	}

	job, err := env.repo.GetJob(context.Background(), resp.JobID)
	if err != nil || job.Status != catalog.JobStatusCompleted {
		t.Errorf("job = %+v (%v), want completed", job, err)
	}
}

func TestUploadMedia_Sniffed(t *testing.T) {
	env := newTestEnv(t)

	rr := env.upload(t, "blob", "application/octet-stream", pngBytes(t, solid(color.White)))
	expectStatus(t, rr, http.StatusCreated)
	var resp UploadResponse
	decodeJSONBody(t, rr, &resp)
	if resp.Asset.ContentType != "image/png" {
		t.Errorf("ContentType = %q, want image/png", resp.Asset.ContentType)
	}
}

func TestUploadMedia_Rejects(t *testing.T) {
	env := newTestEnv(t)

	rr := env.upload(t, "notes.txt", "text/plain", []byte("hello"))
	expectStatus(t, rr, http.StatusBadRequest)

	rr = env.upload(t, "huge.png", "image/png", bytes.Repeat([]byte{1}, 2<<20))
	expectStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, http.MethodPost, "/v1/media", []byte("not multipart"))
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestMediaFile(t *testing.T) {
	env := newTestEnv(t)
	data := pngBytes(t, solid(color.Black))

	rr := env.upload(t, "black.png", "image/png", data)
	expectStatus(t, rr, http.StatusCreated)
	var resp UploadResponse
	decodeJSONBody(t, rr, &resp)

	rr = env.do(t, http.MethodGet, "/v1/media/"+resp.Asset.ID+"/file", nil)
	expectStatus(t, rr, http.StatusOK)
	if !bytes.Equal(rr.Body.Bytes(), data) {
		t.Errorf("file body differs from upload (%d vs %d bytes)", rr.Body.Len(), len(data))
	}
	if got := rr.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", got)
	}
}

func TestDeleteMedia(t *testing.T) {
	env := newTestEnv(t)
	resp := uploadAsset(t, env, "gone.png", color.White)

	rr := env.do(t, http.MethodDelete, "/v1/media/"+resp.Asset.ID, nil)
	expectStatus(t, rr, http.StatusNoContent)

	rr = env.do(t, http.MethodGet, "/v1/media/"+resp.Asset.ID, nil)
	expectStatus(t, rr, http.StatusNotFound)
	rr = env.do(t, http.MethodGet, "/v1/media/"+resp.Asset.ID+"/file", nil)
	expectStatus(t, rr, http.StatusNotFound)
}

func TestExtractFeaturesHandler(t *testing.T) {
	env := newTestEnv(t)
	resp := uploadAsset(t, env, "now.png", color.RGBA{10, 200, 10, 255})

	rr := env.do(t, http.MethodPost, "/v1/media/"+resp.Asset.ID+"/features", nil)
	expectStatus(t, rr, http.StatusOK)
	var got AssetResponse
	decodeJSONBody(t, rr, &got)
	if !got.FeaturesExtracted || got.FeatureModel != "stub" {
		t.Errorf("asset = %+v, want stub features", got)
	}

	rr = env.do(t, http.MethodPost, "/v1/media/missing/features", nil)
	expectStatus(t, rr, http.StatusNotFound)
}

func TestAssetAnalyses(t *testing.T) {
	env := newTestEnv(t)
	red := uploadAsset(t, env, "red.png", color.RGBA{220, 10, 10, 255}).Asset.ID
	red2 := uploadAsset(t, env, "red2.png", color.RGBA{220, 10, 10, 255}).Asset.ID
	blue := uploadAsset(t, env, "blue.png", color.RGBA{10, 10, 220, 255}).Asset.ID
	env.runner.RunPending(context.Background())

	t.Run("match", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/v1/assets/match", MatchRequest{ReferenceID: red, CandidateIDs: []string{blue, red2}})
		expectStatus(t, rr, http.StatusOK)
		var report catalog.MatchReport
		decodeJSONBody(t, rr, &report)
		if report.BestMatch == nil || report.BestMatch.AssetID != red2 {
			t.Errorf("BestMatch = %+v, want the identical upload", report.BestMatch)
		}
	})

	t.Run("consistency", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/v1/assets/consistency", ConsistencyRequest{AssetID1: red, AssetID2: red2})
		expectStatus(t, rr, http.StatusOK)
		var report catalog.ConsistencyReport
		decodeJSONBody(t, rr, &report)
		if !report.SameCharacter {
			t.Errorf("identical images not same character: %+v", report)
		}
	})

	t.Run("missing reference", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/v1/assets/match", MatchRequest{ReferenceID: "nope"})
		expectStatus(t, rr, http.StatusNotFound)
	})

	t.Run("reference required", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/v1/assets/characters", CharactersRequest{TestIDs: []string{red}})
		expectStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("batch limit", func(t *testing.T) {
		ids := []string{red, red2, blue, red, red2}
		rr := env.do(t, http.MethodPost, "/v1/assets/group", AssetGroupRequest{AssetIDs: ids})
		expectStatus(t, rr, http.StatusBadRequest)
		var body ErrorResponse
		decodeJSONBody(t, rr, &body)
		if body.Code != string(visionerr.CodeBatchTooLarge) {
			t.Errorf("code = %s, want %s", body.Code, visionerr.CodeBatchTooLarge)
		}
	})

	t.Run("enforcement", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/v1/assets/reference-enforcement",
			EnforcementRequest{MasterID: red, GeneratedIDs: []string{red2}})
		expectStatus(t, rr, http.StatusOK)
		var report catalog.EnforcementReport
		decodeJSONBody(t, rr, &report)
		if report.CompliantCount != 1 || report.Threshold != 80 {
			t.Errorf("compliant/threshold = %d/%v, want 1/80", report.CompliantCount, report.Threshold)
		}
	})
}
