// Package config provides configuration management for the vision daemon.
// Values come from HEIMDEX_* environment variables, optionally seeded from a .env file,
// with defaults for everything.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix prefixes every variable, e.g. HEIMDEX_PORT.
	EnvPrefix = "HEIMDEX"

	DefaultDataDir = ".heimdex-vision"

	// Database filename
	DBFilename = "heimdex-vision.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	Bind() string
	Addr() string
	LogLevel() string
	LogFile() string
	DataDir() string
	DBPath() string
	MediaDir() string
	CORSOrigins() []string

	MaxBatchSize() int
	SimilarityThreshold() float64
	QualityThreshold() float64
	ShotDiffThreshold() float64
	MaxUploadBytes() int64

	EmbeddingURL() string
	EmbeddingToken() string
	EmbeddingModel() string
	EmbeddingDimension() int
	EmbeddingTimeout() time.Duration
	FeatureCacheSize() int
	FeatureCacheTTL() time.Duration

	FFmpegPath() string
	FFprobePath() string
}

// Settings is the raw environment binding.
type Settings struct {
	Port        int      `envconfig:"PORT" default:"3012"`
	Bind        string   `envconfig:"BIND" default:"127.0.0.1"`
	LogLevel    string   `envconfig:"LOG_LEVEL" default:"info"`
	LogFile     string   `envconfig:"LOG_FILE"`
	DataDir     string   `envconfig:"DATA_DIR"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`

	MaxBatchSize        int     `envconfig:"MAX_BATCH_SIZE" default:"100"`
	SimilarityThreshold float64 `envconfig:"SIMILARITY_THRESHOLD" default:"75"`
	QualityThreshold    float64 `envconfig:"QUALITY_THRESHOLD" default:"0.7"`
	ShotDiffThreshold   float64 `envconfig:"SHOT_DIFF_THRESHOLD" default:"0.3"`
	MaxUploadBytes      int64   `envconfig:"MAX_UPLOAD_BYTES" default:"52428800"`

	EmbeddingURL       string        `envconfig:"EMBEDDING_URL"`
	EmbeddingToken     string        `envconfig:"EMBEDDING_TOKEN"`
	EmbeddingModel     string        `envconfig:"EMBEDDING_MODEL" default:"dinov3-vits16"`
	EmbeddingDimension int           `envconfig:"EMBEDDING_DIMENSION" default:"384"`
	EmbeddingTimeout   time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"30s"`
	FeatureCacheSize   int           `envconfig:"FEATURE_CACHE_SIZE" default:"1000"`
	FeatureCacheTTL    time.Duration `envconfig:"FEATURE_CACHE_TTL" default:"1h"`

	FFmpegPath  string `envconfig:"FFMPEG_PATH"`
	FFprobePath string `envconfig:"FFPROBE_PATH"`
}

// EnvConfig is the validated, read-only configuration.
type EnvConfig struct {
	s Settings
}

var _ Config = (*EnvConfig)(nil)

// New reads configuration from the environment only.
func New() (*EnvConfig, error) {
	return Load("")
}

// Load seeds the environment from envFile when it exists, then reads HEIMDEX_* variables.
// Variables already set in the environment win over the file.
func Load(envFile string) (*EnvConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var s Settings
	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if s.DataDir == "" {
		s.DataDir = defaultDataDir()
	}
	s.CORSOrigins = trimAll(s.CORSOrigins)

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &EnvConfig{s: s}, nil
}

// Validate checks ranges so bad values fail at startup.
func (s Settings) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid %s_PORT: port must be between 1 and 65535", EnvPrefix)
	}
	if s.MaxBatchSize <= 0 {
		return fmt.Errorf("invalid %s_MAX_BATCH_SIZE: must be positive", EnvPrefix)
	}
	if s.SimilarityThreshold < 0 || s.SimilarityThreshold > 100 {
		return fmt.Errorf("invalid %s_SIMILARITY_THRESHOLD: must be in [0, 100]", EnvPrefix)
	}
	if s.QualityThreshold < 0 || s.QualityThreshold > 1 {
		return fmt.Errorf("invalid %s_QUALITY_THRESHOLD: must be in [0, 1]", EnvPrefix)
	}
	if s.ShotDiffThreshold <= 0 || s.ShotDiffThreshold > 1 {
		return fmt.Errorf("invalid %s_SHOT_DIFF_THRESHOLD: must be in (0, 1]", EnvPrefix)
	}
	if s.MaxUploadBytes <= 0 {
		return fmt.Errorf("invalid %s_MAX_UPLOAD_BYTES: must be positive", EnvPrefix)
	}
	if s.EmbeddingDimension <= 0 {
		return fmt.Errorf("invalid %s_EMBEDDING_DIMENSION: must be positive", EnvPrefix)
	}
	return nil
}

// Settings returns a copy of the raw values.
func (c *EnvConfig) Settings() Settings { return c.s }

// Port returns the HTTP server port
func (c *EnvConfig) Port() int { return c.s.Port }

// Bind returns the listen address host
func (c *EnvConfig) Bind() string { return c.s.Bind }

// Addr is host:port for the HTTP listener.
func (c *EnvConfig) Addr() string { return fmt.Sprintf("%s:%d", c.s.Bind, c.s.Port) }

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string { return c.s.LogLevel }

// LogFile is an optional JSON log file path.
func (c *EnvConfig) LogFile() string { return c.s.LogFile }

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string { return c.s.DataDir }

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string { return filepath.Join(c.s.DataDir, DBFilename) }

// MediaDir holds uploaded asset blobs.
func (c *EnvConfig) MediaDir() string { return filepath.Join(c.s.DataDir, "media") }

func (c *EnvConfig) CORSOrigins() []string { return append([]string(nil), c.s.CORSOrigins...) }

func (c *EnvConfig) MaxBatchSize() int            { return c.s.MaxBatchSize }
func (c *EnvConfig) SimilarityThreshold() float64 { return c.s.SimilarityThreshold }
func (c *EnvConfig) QualityThreshold() float64    { return c.s.QualityThreshold }
func (c *EnvConfig) ShotDiffThreshold() float64   { return c.s.ShotDiffThreshold }
func (c *EnvConfig) MaxUploadBytes() int64        { return c.s.MaxUploadBytes }

// EmbeddingURL is the inference service base URL. Empty selects the offline stub provider.
func (c *EnvConfig) EmbeddingURL() string            { return c.s.EmbeddingURL }
func (c *EnvConfig) EmbeddingToken() string          { return c.s.EmbeddingToken }
func (c *EnvConfig) EmbeddingModel() string          { return c.s.EmbeddingModel }
func (c *EnvConfig) EmbeddingDimension() int         { return c.s.EmbeddingDimension }
func (c *EnvConfig) EmbeddingTimeout() time.Duration { return c.s.EmbeddingTimeout }
func (c *EnvConfig) FeatureCacheSize() int           { return c.s.FeatureCacheSize }
func (c *EnvConfig) FeatureCacheTTL() time.Duration  { return c.s.FeatureCacheTTL }

func (c *EnvConfig) FFmpegPath() string  { return c.s.FFmpegPath }
func (c *EnvConfig) FFprobePath() string { return c.s.FFprobePath }

func trimAll(ss []string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
