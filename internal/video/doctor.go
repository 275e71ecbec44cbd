package video

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const defaultDoctorTTL = 5 * time.Minute

// ToolStatus is the availability of one media binary.
type ToolStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Capabilities reports which media tools the daemon can use.
type Capabilities struct {
	FFmpeg   ToolStatus `json:"ffmpeg"`
	FFprobe  ToolStatus `json:"ffprobe"`
	ProbedAt time.Time  `json:"probed_at"`
}

// CanSegment reports whether video segmentation jobs can run.
func (c *Capabilities) CanSegment() bool {
	return c.FFmpeg.Available && c.FFprobe.Available
}

// ProbeFunc runs the tool checks.
type ProbeFunc func(ctx context.Context) (*Capabilities, error)

// Doctor caches tool probe results for a TTL so health checks do not fork ffmpeg on every call.
type Doctor struct {
	probe  ProbeFunc
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

// NewDoctor builds a Doctor that probes the configured binaries.
func NewDoctor(ffmpegPath, ffprobePath string, logger *slog.Logger) *Doctor {
	return NewDoctorWithProbe(func(ctx context.Context) (*Capabilities, error) {
		return &Capabilities{
			FFmpeg:   checkTool(ctx, ffmpegPath, "ffmpeg"),
			FFprobe:  checkTool(ctx, ffprobePath, "ffprobe"),
			ProbedAt: time.Now(),
		}, nil
	}, logger)
}

// NewDoctorWithProbe builds a Doctor around a custom probe.
func NewDoctorWithProbe(probe ProbeFunc, logger *slog.Logger) *Doctor {
	return &Doctor{probe: probe, ttl: defaultDoctorTTL, logger: logger}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (d *Doctor) Get(ctx context.Context) (*Capabilities, error) {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps, nil
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

// Refresh forces a probe. A failed probe falls back to the stale cache when one exists.
func (d *Doctor) Refresh(ctx context.Context) (*Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps, err := d.probe(ctx)
	if err != nil {
		d.logger.Warn("media tool probe failed", "error", err)
		if d.cached != nil {
			return d.cached, nil
		}
		return nil, err
	}
	d.cached = caps
	return caps, nil
}

// Invalidate clears the cache.
func (d *Doctor) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}

func checkTool(ctx context.Context, preferred, name string) ToolStatus {
	path, err := resolveBinary(preferred, name)
	if err != nil {
		return ToolStatus{Error: err.Error()}
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, _, err := Tools{}.run(ctx, path, "-version")
	if err != nil {
		return ToolStatus{Path: path, Error: err.Error()}
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return ToolStatus{Available: true, Path: path, Version: versionField(line)}
}

// versionField extracts "6.1" from "ffmpeg version 6.1 Copyright ...".
func versionField(line string) string {
	f := strings.Fields(line)
	for i := 0; i+1 < len(f); i++ {
		if f[i] == "version" {
			return f[i+1]
		}
	}
	return ""
}
