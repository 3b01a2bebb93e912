// Package media inspects source media and resolves files in the media library.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/jaisil18/tv-transmision-sub000/internal/logger"
)

// Timeout for FFprobe execution
const ffprobeTimeout = 30 * time.Second

// Fallback encode parameters used when a file cannot be inspected or is a still image
const (
	DefaultBitrateKbps = 2500
	DefaultFPS         = 30.0
)

// Common errors
var (
	ErrFFprobeNotFound = errors.New("ffprobe not found in PATH")
	ErrNoVideoStream   = errors.New("no video stream found")
	ErrTimeout         = errors.New("ffprobe execution timed out")
)

// FFprobeResult represents the top-level JSON output from FFprobe
type FFprobeResult struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream represents a video or audio stream
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"` // "video" or "audio"
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	Duration     string `json:"duration,omitempty"`
	BitRate      string `json:"bit_rate,omitempty"`
	RFrameRate   string `json:"r_frame_rate,omitempty"`
	AvgFrameRate string `json:"avg_frame_rate,omitempty"`
}

// Format represents the file format information
type Format struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// ProbeResult holds the encode-relevant properties of a source file
type ProbeResult struct {
	BitrateKbps     int     `json:"bitrateKbps"`
	FPS             float64 `json:"fps"`
	Width           int     `json:"width,omitempty"`
	Height          int     `json:"height,omitempty"`
	Resolution      string  `json:"resolution,omitempty"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
	Codec           string  `json:"codec,omitempty"`
	Defaulted       bool    `json:"defaulted"` // true when values are fallbacks, not measured
}

// DefaultProbeResult returns the fallback parameters
func DefaultProbeResult() ProbeResult {
	return ProbeResult{
		BitrateKbps: DefaultBitrateKbps,
		FPS:         DefaultFPS,
		Defaulted:   true,
	}
}

// Prober inspects source media. Inspect never fails; it falls back to defaults.
type Prober interface {
	Inspect(ctx context.Context, path string) ProbeResult
}

// commandRunner executes a binary and returns its stdout
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// FFprobe is a Prober backed by the ffprobe binary
type FFprobe struct {
	binary  string
	timeout time.Duration
	run     commandRunner
}

// NewFFprobe creates a prober invoking the given ffprobe binary
func NewFFprobe(binary string) *FFprobe {
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFprobe{
		binary:  binary,
		timeout: ffprobeTimeout,
		run:     execRunner,
	}
}

// CheckInstalled checks if the ffprobe binary is available
func (p *FFprobe) CheckInstalled() error {
	if _, err := exec.LookPath(p.binary); err != nil {
		return ErrFFprobeNotFound
	}
	return nil
}

// Inspect probes the file and returns defaults on any failure
func (p *FFprobe) Inspect(ctx context.Context, path string) ProbeResult {
	result, err := p.Probe(ctx, path)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("path", path).
			Int("bitrate_kbps", DefaultBitrateKbps).
			Float64("fps", DefaultFPS).
			Msg("Media probe failed, using default encode parameters")
		return DefaultProbeResult()
	}
	return result
}

// Probe executes ffprobe on the file and returns the measured properties
func (p *FFprobe) Probe(ctx context.Context, path string) (ProbeResult, error) {
	logger.Log.Debug().
		Str("path", path).
		Msg("Probing media file with FFprobe")

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	output, err := p.run(ctx,
		p.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProbeResult{}, ErrTimeout
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return ProbeResult{}, fmt.Errorf("ffprobe failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		if errors.Is(err, exec.ErrNotFound) {
			return ProbeResult{}, ErrFFprobeNotFound
		}
		return ProbeResult{}, fmt.Errorf("ffprobe failed: %w", err)
	}

	var raw FFprobeResult
	if err := json.Unmarshal(output, &raw); err != nil {
		return ProbeResult{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	result, err := extractProbeResult(&raw)
	if err != nil {
		return ProbeResult{}, err
	}

	logger.Log.Debug().
		Str("path", path).
		Int("bitrate_kbps", result.BitrateKbps).
		Float64("fps", result.FPS).
		Str("resolution", result.Resolution).
		Str("codec", result.Codec).
		Msg("Probed media file")

	return result, nil
}

// extractProbeResult converts FFprobeResult to ProbeResult. Values ffprobe
// omits are filled from the defaults.
func extractProbeResult(raw *FFprobeResult) (ProbeResult, error) {
	var video *Stream
	for i := range raw.Streams {
		if raw.Streams[i].CodecType == "video" {
			video = &raw.Streams[i]
			break
		}
	}
	if video == nil {
		return ProbeResult{}, ErrNoVideoStream
	}

	result := ProbeResult{
		Codec:  video.CodecName,
		Width:  video.Width,
		Height: video.Height,
	}
	if video.Width > 0 && video.Height > 0 {
		result.Resolution = fmt.Sprintf("%dx%d", video.Width, video.Height)
	}

	// avg_frame_rate is 0/0 for some containers; fall back to r_frame_rate
	result.FPS = parseFrameRate(video.AvgFrameRate)
	if result.FPS <= 0 {
		result.FPS = parseFrameRate(video.RFrameRate)
	}
	if result.FPS <= 0 {
		result.FPS = DefaultFPS
	}

	bps := parseInt(video.BitRate)
	if bps <= 0 {
		bps = parseInt(raw.Format.BitRate)
	}
	if bps > 0 {
		result.BitrateKbps = int(math.Round(float64(bps) / 1000))
	}
	if result.BitrateKbps <= 0 {
		result.BitrateKbps = DefaultBitrateKbps
	}

	result.DurationSeconds = parseFloat(video.Duration)
	if result.DurationSeconds <= 0 {
		result.DurationSeconds = parseFloat(raw.Format.Duration)
	}

	return result, nil
}

// parseFrameRate parses ffprobe rationals such as "30000/1001" or plain numbers
func parseFrameRate(value string) float64 {
	num, den, found := strings.Cut(value, "/")
	if !found {
		return parseFloat(value)
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(value string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func parseInt(value string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
