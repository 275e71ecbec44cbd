package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-vision/internal/config"
	"github.com/heimdex/heimdex-vision/internal/embedding"
)

type rootOptions struct {
	envFile string
}

// NewRootCmd builds the visiond command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "visiond",
		Short: "Heimdex vision daemon: visual similarity, quality and shot analysis",
		Long: `visiond serves the Heimdex vision API over HTTP.

It compares feature vectors, scores image quality, finds anomalies and clusters,
and cuts videos into tagged shots that can be queried and exported as EDL.
Configuration is read from HEIMDEX_* environment variables, optionally seeded
from an env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "env file loaded before reading HEIMDEX_* variables")

	root.AddCommand(
		newServeCmd(opts),
		newSegmentCmd(opts),
		newVersionCmd(),
	)
	return root
}

func (o *rootOptions) load() (*config.EnvConfig, error) {
	return config.Load(o.envFile)
}

// newProvider picks the HTTP embedding service when one is configured and wraps it in the
// feature cache.
func newProvider(cfg config.Config, logger *slog.Logger) embedding.Provider {
	var p embedding.Provider
	if cfg.EmbeddingURL() != "" {
		p = embedding.NewHTTPProvider(embedding.HTTPConfig{
			BaseURL:   cfg.EmbeddingURL(),
			Token:     cfg.EmbeddingToken(),
			Model:     cfg.EmbeddingModel(),
			Dimension: cfg.EmbeddingDimension(),
			Timeout:   cfg.EmbeddingTimeout(),
			Logger:    logger,
		})
		logger.Info("embedding service configured", "url", cfg.EmbeddingURL(), "model", cfg.EmbeddingModel())
	} else {
		p = embedding.NewStubProvider(cfg.EmbeddingDimension())
		logger.Warn("no embedding service configured, using stub features", "dimension", cfg.EmbeddingDimension())
	}
	return embedding.NewCachingProvider(p, cfg.FeatureCacheSize(), cfg.FeatureCacheTTL())
}
