package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	visionerr "github.com/heimdex/heimdex-vision/internal/errors"
)

const maxStderrBytes = 8 * 1024

// Tools locates the ffmpeg binaries.
type Tools struct {
	FFmpegPath  string
	FFprobePath string
	// FrameTimeout bounds a single frame grab; zero means no bound beyond the caller's context.
	FrameTimeout time.Duration
	Logger       *slog.Logger
}

// ResolveTools finds ffmpeg and ffprobe, preferring the configured paths.
func ResolveTools(ffmpegPath, ffprobePath string, logger *slog.Logger) (Tools, error) {
	ff, err := resolveBinary(ffmpegPath, "ffmpeg")
	if err != nil {
		return Tools{}, err
	}
	fp, err := resolveBinary(ffprobePath, "ffprobe")
	if err != nil {
		return Tools{}, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return Tools{FFmpegPath: ff, FFprobePath: fp, Logger: logger}, nil
}

func resolveBinary(preferred, name string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured %s %q not found", name, preferred)
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	return p, nil
}

// FFmpegSource reads frames from a file on disk through ffmpeg.
type FFmpegSource struct {
	tools Tools
	path  string
	info  Info
	// tmp is removed on Close when the source owns a temporary copy.
	tmp bool
}

var _ FrameSource = (*FFmpegSource)(nil)

// Open probes path and returns a source for it. Unreadable or invalid media fails with InvalidVideo.
func Open(ctx context.Context, tools Tools, path string) (*FFmpegSource, error) {
	info, err := tools.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return &FFmpegSource{tools: tools, path: path, info: *info}, nil
}

// OpenBytes spools data to a temporary file and opens it.
func OpenBytes(ctx context.Context, tools Tools, data []byte) (*FFmpegSource, error) {
	if len(data) == 0 {
		return nil, visionerr.InvalidVideo("empty video payload")
	}
	f, err := os.CreateTemp("", "heimdex-video-*")
	if err != nil {
		return nil, visionerr.Wrap(err, visionerr.CodeInvalidVideo, "cannot spool video")
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return nil, visionerr.Wrap(err, visionerr.CodeInvalidVideo, "cannot spool video")
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return nil, visionerr.Wrap(err, visionerr.CodeInvalidVideo, "cannot spool video")
	}

	src, err := Open(ctx, tools, name)
	if err != nil {
		os.Remove(name)
		return nil, err
	}
	src.tmp = true
	return src, nil
}

func (s *FFmpegSource) FPS() float64      { return s.info.FPS }
func (s *FFmpegSource) Duration() float64 { return s.info.Duration }
func (s *FFmpegSource) Width() int        { return s.info.Width }
func (s *FFmpegSource) Height() int       { return s.info.Height }

// Info returns the probed metadata.
func (s *FFmpegSource) Info() Info { return s.info }

func (s *FFmpegSource) Close() error {
	if s.tmp {
		return os.Remove(s.path)
	}
	return nil
}

// Frame grabs a single PNG frame at t seconds.
func (s *FFmpegSource) Frame(ctx context.Context, t float64) (image.Image, error) {
	if s.tools.FrameTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.tools.FrameTimeout)
		defer cancel()
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", strconv.FormatFloat(t, 'f', 3, 64),
		"-i", s.path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	}
	out, stderr, err := s.tools.run(ctx, s.tools.FFmpegPath, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, visionerr.Wrap(err, visionerr.CodeFrameSourceFailure, "ffmpeg frame grab failed",
			visionerr.Field("time", t), visionerr.Field("stderr_tail", truncate(stderr, 512)))
	}
	if len(out) == 0 {
		return nil, visionerr.Errorf(visionerr.CodeFrameSourceFailure, "no frame at %.3fs", t)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, visionerr.Wrap(err, visionerr.CodeFrameSourceFailure, "cannot decode frame")
	}
	return img, nil
}

// Probe reads stream metadata with ffprobe.
func (t Tools) Probe(ctx context.Context, path string) (*Info, error) {
	if path == "" {
		return nil, visionerr.InvalidVideo("file path is required")
	}
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
	out, stderr, err := t.run(ctx, t.FFprobePath, args...)
	if err != nil {
		return nil, visionerr.Wrap(err, visionerr.CodeInvalidVideo, "ffprobe failed",
			visionerr.Field("stderr_tail", truncate(stderr, 512)))
	}
	return parseProbe(out)
}

func (t Tools) run(ctx context.Context, bin string, args ...string) ([]byte, string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderrBuf bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}

	start := time.Now()
	err := cmd.Run()
	if t.Logger != nil {
		t.Logger.Debug("media tool finished",
			"bin", bin,
			"duration_ms", time.Since(start).Milliseconds(),
			"ok", err == nil,
		)
	}
	return stdout.Bytes(), stderrBuf.String(), err
}

type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		Duration   string `json:"duration"`
	} `json:"streams"`
}

func parseProbe(data []byte) (*Info, error) {
	var probe probeResult
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, visionerr.Wrap(err, visionerr.CodeInvalidVideo, "cannot parse ffprobe output")
	}

	info := &Info{}
	if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	for _, st := range probe.Streams {
		if st.CodecType != "video" {
			continue
		}
		info.Width = st.Width
		info.Height = st.Height
		info.Codec = st.CodecName
		info.FPS = ParseFrameRate(st.RFrameRate)
		if info.Duration == 0 {
			if d, err := strconv.ParseFloat(st.Duration, 64); err == nil {
				info.Duration = d
			}
		}
		return info, nil
	}
	return nil, visionerr.InvalidVideo("no video stream found")
}

// ParseFrameRate parses ffprobe rates like "30000/1001" or "25".
func ParseFrameRate(s string) float64 {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter keeps only the last limit bytes written.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := make([]byte, lw.limit)
		copy(tail, b[len(b)-lw.limit:])
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
