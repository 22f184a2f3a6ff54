// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package prober

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/dispatchctl/internal/models"
)

const (
	defaultProbeTimeout          = 30 * time.Second
	probeKillGrace               = 5 * time.Second
	defaultBitrateSampleDuration = 10 * time.Second
)

// RunnerConfig configures how probes are invoked.
type RunnerConfig struct {
	BinaryPath            string        // ffprobe binary on PATH, defaults to "ffprobe"
	ProbeTimeout           time.Duration // defaults to 30s
	BitrateSampleDuration  time.Duration // defaults to 10s
}

func (c RunnerConfig) binary() string {
	if c.BinaryPath == "" {
		return "ffprobe"
	}
	return c.BinaryPath
}

func (c RunnerConfig) timeout() time.Duration {
	if c.ProbeTimeout <= 0 {
		return defaultProbeTimeout
	}
	return c.ProbeTimeout
}

func (c RunnerConfig) sampleDuration() time.Duration {
	if c.BitrateSampleDuration <= 0 {
		return defaultBitrateSampleDuration
	}
	return c.BitrateSampleDuration
}

// ffprobeOutput is the subset of `ffprobe -v error -of json
// -show_entries stream` output this runner reads.
type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Channels   int    `json:"channels"`
	RFrameRate string `json:"r_frame_rate"`
	BitRate    string `json:"bit_rate"`
}

type ffprobeFormat struct {
	BitRate string `json:"bit_rate"`
}

// Runner invokes the external probe binary and parses its result into a
// StreamStats measurement. It carries no state beyond config — all retry
// and classification bookkeeping lives above it in the dispatch loop.
type Runner struct {
	cfg RunnerConfig
}

func NewRunner(cfg RunnerConfig) *Runner {
	return &Runner{cfg: cfg}
}

// Probe runs one ffprobe attempt against streamURL with a wall-clock
// timeout plus a forced-kill grace period (spec.md §5 "Timeouts").
func (r *Runner) Probe(ctx context.Context, streamURL string) (models.StreamStats, error) {
	var stats models.StreamStats

	deadline := r.cfg.timeout() + probeKillGrace
	probeCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	args := []string{
		"-v", "error",
		"-of", "json",
		"-show_entries", "stream=codec_type,codec_name,width,height,channels,r_frame_rate,bit_rate:format=bit_rate",
		"-timeout", strconv.Itoa(int(r.cfg.timeout().Seconds() * 1e6)), // ffprobe -timeout is microseconds
		streamURL,
	}

	cmd := exec.CommandContext(probeCtx, r.cfg.binary(), args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if probeCtx.Err() != nil {
		cls := classify(probeCtx, 0, stderr.String(), probeCtx.Err())
		return stats, &ProbeError{Classification: cls, Cause: fmt.Errorf("probe timed out after %s", deadline)}
	}
	if runErr != nil {
		statusCode := exitStatusCode(stderr.String())
		cls := classify(probeCtx, statusCode, stderr.String(), runErr)
		return stats, &ProbeError{Classification: cls, Cause: fmt.Errorf("%s: %w (stderr: %s)", r.cfg.binary(), runErr, strings.TrimSpace(stderr.String()))}
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		return stats, &ProbeError{Classification: ClassPermanent, Cause: fmt.Errorf("parse ffprobe output: %w", err)}
	}

	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "video":
			stats.VideoCodec = s.CodecName
			stats.ResolutionWidth = s.Width
			stats.ResolutionHeight = s.Height
			stats.FrameRate = parseFrameRate(s.RFrameRate)
		case "audio":
			stats.AudioCodec = s.CodecName
			stats.AudioChannels = s.Channels
		}
	}

	if kbps, ok := parseBitrateKbps(parsed.Format.BitRate); ok {
		stats.BitrateKbps = kbps
	}

	stats.Status = models.ProbeOK
	return stats, nil
}

// MeasureThroughput samples the stream for the configured window and
// returns the observed megabits-per-second. A nil error with zero Mbps
// means ffmpeg reported no readable size= byte count (or no time elapsed),
// not a confirmed zero-bitrate stream. Probe does not call it.
func (r *Runner) MeasureThroughput(ctx context.Context, streamURL string) (float64, error) {
	sampleCtx, cancel := context.WithTimeout(ctx, r.cfg.sampleDuration()+probeKillGrace)
	defer cancel()

	args := []string{"-v", "error", "-t", fmt.Sprintf("%.0f", r.cfg.sampleDuration().Seconds()), "-f", "null", "-i", streamURL, "-"}
	cmd := exec.CommandContext(sampleCtx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil && sampleCtx.Err() == nil {
		cls := classify(sampleCtx, 0, stderr.String(), err)
		return 0, &ProbeError{Classification: cls, Cause: err}
	}
	elapsed := time.Since(start).Seconds()
	if elapsed <= 0 {
		return 0, nil
	}

	bytesRead := parseTotalSizeBytes(stderr.String())
	mbps := (float64(bytesRead) * 8) / (elapsed * 1_000_000)
	return mbps, nil
}

func parseFrameRate(raw string) float64 {
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

func parseBitrateKbps(raw string) (int, bool) {
	if raw == "" || raw == "N/A" {
		return 0, false
	}
	bps, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return bps / 1000, true
}

// exitStatusCode pulls an HTTP-style status code out of ffprobe's stderr
// when present (ffprobe surfaces the upstream's response line verbatim for
// HTTP sources).
func exitStatusCode(stderr string) int {
	lower := strings.ToLower(stderr)
	for _, code := range []int{404, 429, 500, 502, 503, 504} {
		if strings.Contains(lower, strconv.Itoa(code)) {
			return code
		}
	}
	return 0
}

// parseTotalSizeBytes extracts the cumulative "size=" field ffmpeg prints
// to stderr during a -f null throughput sample.
func parseTotalSizeBytes(stderr string) int64 {
	idx := strings.LastIndex(stderr, "size=")
	if idx < 0 {
		return 0
	}
	rest := strings.TrimSpace(stderr[idx+len("size="):])
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0
	}
	numeric := strings.TrimSuffix(fields[0], "kB")
	kb, err := strconv.ParseInt(numeric, 10, 64)
	if err != nil {
		return 0
	}
	return kb * 1024
}
