package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-vision/internal/api"
	"github.com/heimdex/heimdex-vision/internal/catalog"
	"github.com/heimdex/heimdex-vision/internal/config"
	"github.com/heimdex/heimdex-vision/internal/db"
	"github.com/heimdex/heimdex-vision/internal/logging"
	"github.com/heimdex/heimdex-vision/internal/playback"
	"github.com/heimdex/heimdex-vision/internal/shots"
	"github.com/heimdex/heimdex-vision/internal/video"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the vision API server and job runner",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cmd, cfg)
		},
	}
}

func serve(ctx context.Context, cmd *cobra.Command, cfg *config.EnvConfig) error {
	startTime := time.Now()

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.MediaDir(), 0755); err != nil {
		return fmt.Errorf("failed to create media dir: %w", err)
	}

	logger, closeLog, err := logging.NewLoggerWithFile(cfg.LogLevel(), cfg.LogFile())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer closeLog.Close()
	logger.Info("starting heimdex vision", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := catalog.NewRepository(database.Conn())

	deviceID, err := ensureSecret(ctx, repo, "device_id", 16)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}
	authToken, err := ensureSecret(ctx, repo, "auth_token", 32)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	printBanner(cmd, cfg, authToken, deviceID)

	tools, err := video.ResolveTools(cfg.FFmpegPath(), cfg.FFprobePath(), logger)
	if err != nil {
		logger.Warn("ffmpeg tools unavailable, video segmentation disabled", "error", err)
	}
	doctor := video.NewDoctor(cfg.FFmpegPath(), cfg.FFprobePath(), logger)
	if caps, err := doctor.Refresh(ctx); err != nil {
		logger.Warn("initial doctor probe failed", "error", err)
	} else {
		logger.Info("video capabilities detected",
			"ffmpeg", caps.FFmpeg.Available,
			"ffprobe", caps.FFprobe.Available,
		)
	}

	opts := catalog.FFmpegOptions(tools)
	opts.MediaDir = cfg.MediaDir()
	opts.Provider = newProvider(cfg, logger)
	opts.DiffThreshold = cfg.ShotDiffThreshold()

	svc := catalog.NewService(repo, shots.NewSQLiteStore(database.Conn()), opts, logger)
	runner := catalog.NewRunner(svc, repo, doctor, logger)
	go runner.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Addr:        cfg.Addr(),
		CORSOrigins: cfg.CORSOrigins(),
		Service:     svc,
		Repository:  repo,
		Runner:      runner,
		Doctor:      doctor,
		Playback:    playback.NewServer(logger),
		Defaults:    api.DefaultsFrom(cfg),
		Logger:      logger,
		StartTime:   startTime,
		DeviceID:    deviceID,
		Version:     config.Version,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server error", "error", err)
			return err
		}
	}

	logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// ensureSecret returns the stored value for key, generating and persisting n random bytes as hex
// on first run.
func ensureSecret(ctx context.Context, repo catalog.Repository, key string, n int) (string, error) {
	existing, err := repo.GetConfig(ctx, key)
	if err == nil && existing != "" {
		return existing, nil
	}

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	value := hex.EncodeToString(buf)

	if err := repo.SetConfig(ctx, key, value); err != nil {
		return "", err
	}
	return value, nil
}

func printBanner(cmd *cobra.Command, cfg config.Config, authToken, deviceID string) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "╔═══════════════════════════════════════════════════════════╗")
	fmt.Fprintf(out, "║  HEIMDEX VISION %-41s ║\n", "v"+config.Version)
	fmt.Fprintln(out, "╠═══════════════════════════════════════════════════════════╣")
	fmt.Fprintf(out, "║  API URL:    %-45s ║\n", "http://"+cfg.Addr())
	fmt.Fprintf(out, "║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Fprintln(out, "╚═══════════════════════════════════════════════════════════╝")
	fmt.Fprintf(out, "  Auth Token: %s\n", authToken)
	fmt.Fprintln(out)
}
