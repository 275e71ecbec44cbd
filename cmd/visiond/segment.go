package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-vision/internal/logging"
	"github.com/heimdex/heimdex-vision/internal/shots"
	"github.com/heimdex/heimdex-vision/internal/video"
)

type segmentOptions struct {
	threshold    float64
	sampleRate   float64
	sceneContext string
	tags         []string
	noEmbeddings bool
}

func newSegmentCmd(root *rootOptions) *cobra.Command {
	opts := &segmentOptions{}
	cmd := &cobra.Command{
		Use:   "segment <video>",
		Short: "Cut a video file into shots and print them as JSON",
		Long: `segment runs shot detection on a local video without touching the catalog.
Logs go to stderr; the shot list is written to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger := logging.NewLoggerTo(cmd.ErrOrStderr(), cfg.LogLevel())

			tools, err := video.ResolveTools(cfg.FFmpegPath(), cfg.FFprobePath(), logger)
			if err != nil {
				return err
			}
			src, err := video.Open(cmd.Context(), tools, args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			threshold := opts.threshold
			if threshold == 0 {
				threshold = cfg.ShotDiffThreshold()
			}
			segmenter := shots.NewSegmenter(newProvider(cfg, logger), logger)
			list, err := segmenter.Segment(cmd.Context(), src, shots.Options{
				DiffThreshold:  threshold,
				SampleRate:     opts.sampleRate,
				SceneContext:   opts.sceneContext,
				ExtraTags:      opts.tags,
				SkipEmbeddings: opts.noEmbeddings,
			})
			if err != nil {
				return err
			}
			if list == nil {
				list = []*shots.Shot{}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&opts.threshold, "threshold", 0, "frame difference threshold in [0, 1] (default from HEIMDEX_SHOT_DIFF_THRESHOLD)")
	f.Float64Var(&opts.sampleRate, "sample-rate", 0, "detection samples per second (default: every fps/2 frames)")
	f.StringVar(&opts.sceneContext, "context", "", "scene context used for descriptions and usage situations")
	f.StringSliceVar(&opts.tags, "tag", nil, "extra tag added to every shot (repeatable)")
	f.BoolVar(&opts.noEmbeddings, "no-embeddings", false, "skip keyframe feature extraction")
	return cmd
}
