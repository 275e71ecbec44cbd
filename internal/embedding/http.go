package embedding

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	visionerr "github.com/heimdex/heimdex-vision/internal/errors"
	"github.com/heimdex/heimdex-vision/internal/metrics"
	"github.com/heimdex/heimdex-vision/internal/vecmath"
)

// UpstreamError is a non-2xx response from the inference service.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("embedding request failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors. Client errors are permanent.
func (e *UpstreamError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// HTTPConfig configures an HTTPProvider.
type HTTPConfig struct {
	BaseURL   string
	Token     string
	Model     string
	Dimension int
	Timeout   time.Duration
	Logger    *slog.Logger
}

// HTTPProvider posts PNG-encoded images to an inference service at {BaseURL}/embed.
type HTTPProvider struct {
	baseURL    string
	token      string
	model      string
	dimension  int
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Provider = (*HTTPProvider)(nil)

type embedRequest struct {
	Image string `json:"image"`
	Model string `json:"model,omitempty"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPProvider{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.Token,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With("component", "embedding"),
	}
}

func (p *HTTPProvider) Model() string  { return p.model }
func (p *HTTPProvider) Dimension() int { return p.dimension }

func (p *HTTPProvider) Embed(ctx context.Context, img image.Image) (vecmath.FeatureVector, error) {
	v, err := p.embed(ctx, img)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues("ok").Inc()
	return v, nil
}

func (p *HTTPProvider) embed(ctx context.Context, img image.Image) (vecmath.FeatureVector, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, visionerr.Wrap(err, visionerr.CodeInvalidInput, "encode image")
	}
	body, err := json.Marshal(embedRequest{
		Image: base64.StdEncoding.EncodeToString(buf.Bytes()),
		Model: p.model,
	})
	if err != nil {
		return nil, visionerr.Wrap(err, visionerr.CodeServerInternal, "marshal embed request")
	}

	url := p.baseURL + "/embed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, visionerr.Wrap(err, visionerr.CodeEmbeddingUpstream, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Heimdex-Request-Id", generateRequestID())
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, visionerr.Wrap(err, visionerr.CodeEmbeddingUpstream, "http request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, visionerr.Wrap(err, visionerr.CodeEmbeddingUpstream, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		upErr := &UpstreamError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 512)}
		return nil, visionerr.Wrap(upErr, visionerr.CodeEmbeddingUpstream, "embedding service error",
			visionerr.Field("status", resp.StatusCode), visionerr.Field("retryable", upErr.IsRetryable()))
	}

	var result embedResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, visionerr.Wrap(err, visionerr.CodeEmbeddingUpstream, "decode embed response")
	}
	if len(result.Embedding) == 0 {
		return nil, visionerr.New(visionerr.CodeEmbeddingUpstream, "embedding service returned an empty vector")
	}
	if p.dimension > 0 && len(result.Embedding) != p.dimension {
		return nil, visionerr.New(visionerr.CodeEmbeddingUpstream, "embedding has unexpected dimension",
			visionerr.Field("got", len(result.Embedding)), visionerr.Field("want", p.dimension))
	}

	p.logger.Debug("embedding computed",
		"model", result.Model,
		"dimension", len(result.Embedding),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return vecmath.FeatureVector(result.Embedding), nil
}

func generateRequestID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
