package streaming

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/jaisil18/tv-transmision-sub000/internal/logger"
)

// Timeout for encoder capability probing
const detectTimeout = 30 * time.Second

// HardwareAccel represents a hardware acceleration method for video encoding
type HardwareAccel string

// Hardware acceleration method constants
const (
	HardwareAccelNone         HardwareAccel = "none"
	HardwareAccelNVENC        HardwareAccel = "nvenc"
	HardwareAccelQSV          HardwareAccel = "qsv"
	HardwareAccelVAAPI        HardwareAccel = "vaapi"
	HardwareAccelVideoToolbox HardwareAccel = "videotoolbox"
	HardwareAccelAuto         HardwareAccel = "auto"
)

// String returns the string representation of the hardware acceleration method
func (h HardwareAccel) String() string {
	return string(h)
}

// IsValid checks if the hardware acceleration method is a known valid value
func (h HardwareAccel) IsValid() bool {
	switch h {
	case HardwareAccelNone, HardwareAccelNVENC, HardwareAccelQSV,
		HardwareAccelVAAPI, HardwareAccelVideoToolbox, HardwareAccelAuto:
		return true
	default:
		return false
	}
}

// Common errors
var (
	ErrFFmpegNotFound = errors.New("ffmpeg binary not found")
	ErrDetectTimeout  = errors.New("encoder detection timed out")
)

// CheckFFmpegInstalled checks if the encoder binary can be resolved
func CheckFFmpegInstalled(binary string) error {
	if _, err := exec.LookPath(binary); err != nil {
		return ErrFFmpegNotFound
	}
	return nil
}

// DetectHardwareEncoders asks the encoder binary which H.264 hardware encoders it has
func DetectHardwareEncoders(ctx context.Context, binary string) ([]HardwareAccel, error) {
	if err := CheckFFmpegInstalled(binary); err != nil {
		return nil, err
	}

	logger.Log.Debug().Str("binary", binary).Msg("Detecting available hardware encoders")

	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, binary, "-encoders", "-hide_banner").Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logger.Log.Error().Msg("Encoder detection timed out")
			return nil, ErrDetectTimeout
		}
		logger.Log.Error().Err(err).Msg("Encoder detection failed")
		return nil, fmt.Errorf("failed to detect encoders: %w", err)
	}

	encoders := parseHardwareEncoders(string(output))

	names := make([]string, len(encoders))
	for i, e := range encoders {
		names[i] = e.String()
	}
	logger.Log.Info().Strs("encoders", names).Msg("Detected hardware encoders")

	return encoders, nil
}

// parseHardwareEncoders extracts hardware encoder names from `-encoders` output
func parseHardwareEncoders(output string) []HardwareAccel {
	encoderMap := map[string]HardwareAccel{
		"h264_nvenc":        HardwareAccelNVENC,
		"h264_qsv":          HardwareAccelQSV,
		"h264_vaapi":        HardwareAccelVAAPI,
		"h264_videotoolbox": HardwareAccelVideoToolbox,
	}

	found := map[HardwareAccel]bool{HardwareAccelNone: true}
	encoders := []HardwareAccel{HardwareAccelNone}

	for _, line := range strings.Split(output, "\n") {
		// " V..... encodername description"
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "V") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		accel, ok := encoderMap[parts[1]]
		if !ok || found[accel] {
			continue
		}
		found[accel] = true
		encoders = append(encoders, accel)
	}
	return encoders
}

// SelectBestEncoder picks the preferred encoder from the detected list.
// Priority: nvenc > qsv > videotoolbox > vaapi > none
func SelectBestEncoder(available []HardwareAccel) HardwareAccel {
	priority := []HardwareAccel{
		HardwareAccelNVENC,
		HardwareAccelQSV,
		HardwareAccelVideoToolbox,
		HardwareAccelVAAPI,
	}

	for _, preferred := range priority {
		for _, encoder := range available {
			if encoder == preferred {
				return encoder
			}
		}
	}
	return HardwareAccelNone
}

// ResolveHardwareAccel turns the configured method into a concrete one.
// "auto" runs detection and falls back to software encoding when it fails.
func ResolveHardwareAccel(ctx context.Context, binary string, configured HardwareAccel) HardwareAccel {
	switch configured {
	case "", HardwareAccelNone:
		return HardwareAccelNone
	case HardwareAccelAuto:
	default:
		return configured
	}

	available, err := DetectHardwareEncoders(ctx, binary)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Hardware detection failed, using software encoding")
		return HardwareAccelNone
	}

	selected := SelectBestEncoder(available)
	logger.Log.Info().Str("selected", selected.String()).Msg("Auto-selected hardware encoder")
	return selected
}
