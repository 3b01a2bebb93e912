package streaming

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/jaisil18/tv-transmision-sub000/internal/models"
)

// Audio constants
const (
	audioBitrate    = 128
	audioChannels   = 2
	audioSampleRate = 44100
)

// HLS output layout
const (
	ManifestName    = "index.m3u8"
	segmentPattern  = "segment_%05d.ts"
	SegmentExt      = ".ts"
	hlsFlags        = "temp_file+omit_endlist+discont_start"
	defaultPreset   = "veryfast"
	pixelFormat     = "yuv420p"
	scThresholdNone = "0"
)

// Common errors
var (
	ErrInvalidHardwareAccel   = errors.New("invalid hardware acceleration method")
	ErrEmptyInputFile         = errors.New("input file cannot be empty")
	ErrEmptyOutput            = errors.New("output cannot be empty")
	ErrInvalidSegmentDuration = errors.New("segment duration must be positive")
	ErrInvalidPlaylistSize    = errors.New("playlist size must be positive")
)

// CommandParams contains everything needed to build an encoder command
type CommandParams struct {
	Variant         Variant
	InputFile       string
	Kind            models.MediaKind
	Encode          EncodeParams
	HardwareAccel   HardwareAccel
	EncodingPreset  string
	StreamURL       string // RTMP endpoint (stream variant)
	OutputDir       string // segment directory (hls variant)
	SegmentDuration int
	PlaylistSize    int
}

// FFmpegCommand represents a built FFmpeg command
type FFmpegCommand struct {
	Args []string // Command arguments (without "ffmpeg" itself)
}

// BuildCommand builds the encoder command for a session
func BuildCommand(params CommandParams) (*FFmpegCommand, error) {
	if err := validateCommandParams(params); err != nil {
		return nil, err
	}

	args := make([]string, 0, 48)
	args = append(args, "-hide_banner", "-nostdin", "-loglevel", "info", "-stats")
	args = append(args, buildInputArgs(params)...)
	args = append(args, buildVideoEncodeArgs(params.HardwareAccel, presetOrDefault(params.EncodingPreset))...)
	args = append(args, buildRateArgs(params)...)
	args = append(args, buildAudioEncodeArgs()...)

	switch params.Variant {
	case VariantStream:
		args = append(args, "-f", "flv", params.StreamURL)
	case VariantHLS:
		args = append(args, buildHLSArgs(params)...)
		args = append(args, filepath.Join(params.OutputDir, ManifestName))
	}

	return &FFmpegCommand{Args: args}, nil
}

func validateCommandParams(params CommandParams) error {
	if _, err := ParseVariant(string(params.Variant)); err != nil {
		return err
	}
	if !params.HardwareAccel.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidHardwareAccel, params.HardwareAccel)
	}
	if params.InputFile == "" {
		return ErrEmptyInputFile
	}

	switch params.Variant {
	case VariantStream:
		if params.StreamURL == "" {
			return ErrEmptyOutput
		}
	case VariantHLS:
		if params.OutputDir == "" {
			return ErrEmptyOutput
		}
		if params.SegmentDuration <= 0 {
			return ErrInvalidSegmentDuration
		}
		if params.PlaylistSize <= 0 {
			return ErrInvalidPlaylistSize
		}
	}
	return nil
}

func presetOrDefault(preset string) string {
	if preset == "" {
		return defaultPreset
	}
	return preset
}

// buildInputArgs builds input arguments. Stills loop a single frame with a
// silent audio track; videos loop the file indefinitely.
func buildInputArgs(params CommandParams) []string {
	fps := formatFPS(params.Encode.FPS)

	if params.Kind == models.MediaImage {
		return []string{
			"-re",
			"-loop", "1",
			"-framerate", fps,
			"-i", params.InputFile,
			"-f", "lavfi",
			"-i", fmt.Sprintf("anullsrc=channel_layout=stereo:sample_rate=%d", audioSampleRate),
			"-map", "0:v:0",
			"-map", "1:a:0",
		}
	}

	return []string{
		"-re",
		"-stream_loop", "-1",
		"-i", params.InputFile,
		"-map", "0:v:0",
		"-map", "0:a:0?",
	}
}

// mapToNVENCPreset maps software encoding presets to NVENC preset values
func mapToNVENCPreset(softwarePreset string) string {
	switch softwarePreset {
	case "ultrafast":
		return "p1"
	case "veryfast":
		return "p2"
	case "fast":
		return "p3"
	case "medium":
		return "p4"
	case "slow":
		return "p5"
	default:
		return "p1"
	}
}

// buildVideoEncodeArgs builds video encoding arguments based on hardware acceleration
func buildVideoEncodeArgs(hwaccel HardwareAccel, preset string) []string {
	switch hwaccel {
	case HardwareAccelNVENC:
		return []string{"-c:v", "h264_nvenc", "-preset", mapToNVENCPreset(preset)}
	case HardwareAccelQSV:
		return []string{"-c:v", "h264_qsv", "-preset", preset}
	case HardwareAccelVAAPI:
		return []string{"-c:v", "h264_vaapi"}
	case HardwareAccelVideoToolbox:
		return []string{"-c:v", "h264_videotoolbox"}
	default:
		return []string{"-c:v", "libx264", "-preset", preset, "-tune", "zerolatency"}
	}
}

// buildRateArgs builds frame rate, keyframe, and bitrate arguments
func buildRateArgs(params CommandParams) []string {
	enc := params.Encode
	gop := strconv.Itoa(enc.GOPSize)

	args := []string{
		"-pix_fmt", pixelFormat,
		"-r", formatFPS(enc.FPS),
		"-g", gop,
		"-keyint_min", gop,
		"-sc_threshold", scThresholdNone,
		"-b:v", strconv.Itoa(enc.BitrateKbps) + "k",
		"-maxrate", strconv.Itoa(enc.MaxrateKbps) + "k",
		"-bufsize", strconv.Itoa(enc.BufsizeKbps) + "k",
	}
	if enc.Resolution != "" {
		args = append(args, "-s", enc.Resolution)
	}
	return args
}

// buildAudioEncodeArgs builds audio encoding arguments
func buildAudioEncodeArgs() []string {
	return []string{
		"-c:a", "aac",
		"-b:a", strconv.Itoa(audioBitrate) + "k",
		"-ac", strconv.Itoa(audioChannels),
		"-ar", strconv.Itoa(audioSampleRate),
	}
}

// buildHLSArgs builds HLS-specific output arguments. Segment numbers start
// from the epoch so a replaced session never reuses an earlier file name.
func buildHLSArgs(params CommandParams) []string {
	return []string{
		"-f", "hls",
		"-hls_time", strconv.Itoa(params.SegmentDuration),
		"-hls_list_size", strconv.Itoa(params.PlaylistSize),
		"-hls_flags", hlsFlags,
		"-hls_start_number_source", "epoch",
		"-hls_segment_filename", filepath.Join(params.OutputDir, segmentPattern),
	}
}

func formatFPS(fps float64) string {
	if fps <= 0 {
		fps = 30
	}
	return strconv.FormatFloat(fps, 'f', -1, 64)
}
