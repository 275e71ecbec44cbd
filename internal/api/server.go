package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/heimdex/heimdex-vision/internal/catalog"
	"github.com/heimdex/heimdex-vision/internal/config"
	"github.com/heimdex/heimdex-vision/internal/playback"
	"github.com/heimdex/heimdex-vision/internal/video"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// Defaults are the analysis parameters used when a request omits them.
type Defaults struct {
	MaxBatchSize        int     `json:"max_batch_size"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	QualityThreshold    float64 `json:"quality_threshold"`
	ShotDiffThreshold   float64 `json:"shot_diff_threshold"`
	MaxUploadBytes      int64   `json:"max_upload_bytes"`
	EmbeddingModel      string  `json:"embedding_model"`
	EmbeddingDimension  int     `json:"embedding_dimension"`
}

// DefaultsFrom reads the request defaults once from cfg.
func DefaultsFrom(cfg config.Config) Defaults {
	return Defaults{
		MaxBatchSize:        cfg.MaxBatchSize(),
		SimilarityThreshold: cfg.SimilarityThreshold(),
		QualityThreshold:    cfg.QualityThreshold(),
		ShotDiffThreshold:   cfg.ShotDiffThreshold(),
		MaxUploadBytes:      cfg.MaxUploadBytes(),
		EmbeddingModel:      cfg.EmbeddingModel(),
		EmbeddingDimension:  cfg.EmbeddingDimension(),
	}
}

type ServerConfig struct {
	Addr        string
	CORSOrigins []string
	Service     *catalog.Service
	Repository  catalog.Repository
	Runner      *catalog.Runner
	Doctor      *video.Doctor
	Playback    *playback.Server
	Defaults    Defaults
	Logger      *slog.Logger
	StartTime   time.Time
	DeviceID    string
	Version     string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       2 * time.Minute,
			// Media playback streams large bodies.
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
