package streaming

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jaisil18/tv-transmision-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseParams(variant Variant) CommandParams {
	return CommandParams{
		Variant:         variant,
		InputFile:       "/media/promo.mp4",
		Kind:            models.MediaVideo,
		Encode:          EncodeParams{BitrateKbps: 2500, MaxrateKbps: 3000, BufsizeKbps: 5000, FPS: 30, GOPSize: 30},
		HardwareAccel:   HardwareAccelNone,
		EncodingPreset:  "veryfast",
		StreamURL:       "rtmp://127.0.0.1:1935/live/s1",
		OutputDir:       "/data/hls/s1",
		SegmentDuration: 2,
		PlaylistSize:    10,
	}
}

// argValue returns the argument following flag, or "" if absent
func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestBuildCommand_StreamVariant(t *testing.T) {
	cmd, err := BuildCommand(baseParams(VariantStream))
	require.NoError(t, err)
	args := cmd.Args

	assert.Equal(t, "-1", argValue(args, "-stream_loop"))
	assert.Equal(t, "/media/promo.mp4", argValue(args, "-i"))
	assert.Equal(t, "libx264", argValue(args, "-c:v"))
	assert.Equal(t, "30", argValue(args, "-g"))
	assert.Equal(t, "2500k", argValue(args, "-b:v"))
	assert.Equal(t, "3000k", argValue(args, "-maxrate"))
	assert.Equal(t, "5000k", argValue(args, "-bufsize"))
	assert.Equal(t, "flv", argValue(args, "-f"))
	assert.Equal(t, "rtmp://127.0.0.1:1935/live/s1", args[len(args)-1])

	// -stream_loop must precede the input
	assert.Less(t, indexOf(args, "-stream_loop"), indexOf(args, "-i"))
}

func TestBuildCommand_HLSVariant(t *testing.T) {
	cmd, err := BuildCommand(baseParams(VariantHLS))
	require.NoError(t, err)
	args := cmd.Args

	assert.Equal(t, "hls", args[indexOf(args, "-hls_time")-1])
	assert.Equal(t, "2", argValue(args, "-hls_time"))
	assert.Equal(t, "10", argValue(args, "-hls_list_size"))
	assert.Equal(t, filepath.Join("/data/hls/s1", "segment_%05d.ts"), argValue(args, "-hls_segment_filename"))
	assert.Equal(t, filepath.Join("/data/hls/s1", ManifestName), args[len(args)-1])
	assert.NotContains(t, argValue(args, "-hls_flags"), "delete_segments", "segments are pruned by the collector")
}

func TestBuildCommand_ImageInput(t *testing.T) {
	params := baseParams(VariantHLS)
	params.Kind = models.MediaImage
	params.InputFile = "/media/poster.png"

	cmd, err := BuildCommand(params)
	require.NoError(t, err)
	args := cmd.Args

	assert.Equal(t, "1", argValue(args, "-loop"))
	assert.Equal(t, "30", argValue(args, "-framerate"))
	assert.Equal(t, "lavfi", argValue(args, "-f"))
	assert.Equal(t, -1, indexOf(args, "-stream_loop"))
	assert.True(t, strings.HasPrefix(args[indexOf(args, "lavfi")+2], "anullsrc"))
}

func TestBuildCommand_Resolution(t *testing.T) {
	params := baseParams(VariantStream)
	params.Encode.Resolution = "1280x720"

	cmd, err := BuildCommand(params)
	require.NoError(t, err)
	assert.Equal(t, "1280x720", argValue(cmd.Args, "-s"))
}

func TestBuildCommand_HardwareEncoders(t *testing.T) {
	tests := []struct {
		accel  HardwareAccel
		codec  string
		preset string
	}{
		{HardwareAccelNone, "libx264", "veryfast"},
		{HardwareAccelNVENC, "h264_nvenc", "p2"},
		{HardwareAccelQSV, "h264_qsv", "veryfast"},
		{HardwareAccelVAAPI, "h264_vaapi", ""},
		{HardwareAccelVideoToolbox, "h264_videotoolbox", ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.accel), func(t *testing.T) {
			params := baseParams(VariantStream)
			params.HardwareAccel = tt.accel

			cmd, err := BuildCommand(params)
			require.NoError(t, err)
			assert.Equal(t, tt.codec, argValue(cmd.Args, "-c:v"))
			assert.Equal(t, tt.preset, argValue(cmd.Args, "-preset"))
		})
	}
}

func TestBuildCommand_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *CommandParams)
		wantErr error
	}{
		{"empty input", func(p *CommandParams) { p.InputFile = "" }, ErrEmptyInputFile},
		{"bad accel", func(p *CommandParams) { p.HardwareAccel = "cuda" }, ErrInvalidHardwareAccel},
		{"hls without dir", func(p *CommandParams) { p.OutputDir = "" }, ErrEmptyOutput},
		{"zero segment duration", func(p *CommandParams) { p.SegmentDuration = 0 }, ErrInvalidSegmentDuration},
		{"zero playlist size", func(p *CommandParams) { p.PlaylistSize = 0 }, ErrInvalidPlaylistSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := baseParams(VariantHLS)
			tt.mutate(&params)

			_, err := BuildCommand(params)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	params := baseParams(VariantStream)
	params.StreamURL = ""
	_, err := BuildCommand(params)
	assert.ErrorIs(t, err, ErrEmptyOutput)
}

func indexOf(args []string, value string) int {
	for i, a := range args {
		if a == value {
			return i
		}
	}
	return -1
}
