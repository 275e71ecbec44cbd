package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/heimdex/heimdex-vision/internal/catalog"
	"github.com/heimdex/heimdex-vision/internal/db"
	"github.com/heimdex/heimdex-vision/internal/embedding"
	"github.com/heimdex/heimdex-vision/internal/shots"
	"github.com/heimdex/heimdex-vision/internal/video"
)

const testToken = "test-token"

type testEnv struct {
	handler http.Handler
	svc     *catalog.Service
	repo    catalog.Repository
	runner  *catalog.Runner
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func solid(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 32, 18))
	for y := 0; y < 18; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := catalog.NewRepository(database.Conn())
	if err := repo.SetConfig(context.Background(), AuthTokenKey, testToken); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}

	opts := catalog.Options{
		MediaDir: filepath.Join(t.TempDir(), "media"),
		Provider: embedding.NewStubProvider(12),
		Probe: func(ctx context.Context, path string) (*video.Info, error) {
			return &video.Info{FPS: 10, Duration: 6, Width: 32, Height: 18, Codec: "h264"}, nil
		},
		Open: func(ctx context.Context, path string) (video.FrameSource, error) {
			return video.NewMemorySource(10, 6, []video.TimedFrame{
				{At: 0, Image: solid(color.Black)},
				{At: 3, Image: solid(color.White)},
			})
		},
	}
	logger := quietLogger()
	svc := catalog.NewService(repo, shots.NewSQLiteStore(database.Conn()), opts, logger)
	runner := catalog.NewRunner(svc, repo, nil, logger)

	cfg := ServerConfig{
		CORSOrigins: []string{"http://localhost:3000", "https://*.app.heimdex.co"},
		Service:     svc,
		Repository:  repo,
		Runner:      runner,
		Defaults: Defaults{
			MaxBatchSize:        4,
			SimilarityThreshold: 75,
			QualityThreshold:    0.5,
			ShotDiffThreshold:   0.3,
			MaxUploadBytes:      1 << 20,
		},
		Logger:    logger,
		StartTime: time.Now(),
		DeviceID:  "device-1",
		Version:   "test",
	}
	return &testEnv{handler: NewRouter(cfg), svc: svc, repo: repo, runner: runner}
}

// do sends an authenticated request. A non-nil body that is not []byte is JSON encoded.
func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("json.Marshal() error = %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) upload(t *testing.T, filename, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart() error = %v", err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/media", &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dst); err != nil {
		t.Fatalf("failed to decode response: %v (body %q)", err, rr.Body.String())
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rr.Code, want, rr.Body.String())
	}
}

func touchVideo(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("not really a video"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}
