package streaming

import (
	"testing"
	"time"

	"github.com/jaisil18/tv-transmision-sub000/internal/media"
	"github.com/jaisil18/tv-transmision-sub000/internal/models"
	"github.com/stretchr/testify/assert"
)

func threeItems() []models.PlaylistItem {
	return []models.PlaylistItem{
		{ID: "i0", URL: "a.mp4", Type: models.MediaVideo},
		{ID: "i1", URL: "b.png", Type: models.MediaImage},
		{ID: "i2", URL: "c.mp4", Type: models.MediaVideo},
	}
}

func TestSelectCurrentContent_Scenarios(t *testing.T) {
	interval := 30 * time.Second

	tests := []struct {
		epochMs int64
		want    int
	}{
		{0, 0},
		{29999, 0},
		{30000, 1},
		{95000, 0},  // floor(95000/30000)=3, 3 mod 3 = 0
		{125000, 1}, // floor(125000/30000)=4, 4 mod 3 = 1
		{150000, 2},
	}

	for _, tt := range tests {
		index, ok := SelectCurrentContent(threeItems(), time.UnixMilli(tt.epochMs), interval)
		assert.True(t, ok)
		assert.Equal(t, tt.want, index, "epoch %d", tt.epochMs)
	}
}

func TestSelectCurrentContent_AgreesAcrossCallers(t *testing.T) {
	now := time.UnixMilli(1_700_000_123_456)
	items := threeItems()

	a, _ := SelectCurrentContent(items, now, 30*time.Second)
	b, _ := SelectCurrentContent(append([]models.PlaylistItem(nil), items...), now, 30*time.Second)
	assert.Equal(t, a, b)
}

func TestSelectCurrentContent_Empty(t *testing.T) {
	_, ok := SelectCurrentContent(nil, time.Now(), 30*time.Second)
	assert.False(t, ok)

	_, ok = SelectCurrentContent(threeItems(), time.Now(), 0)
	assert.False(t, ok)
}

func TestNextRotationBoundary(t *testing.T) {
	got := NextRotationBoundary(time.UnixMilli(95000), 30*time.Second)
	assert.Equal(t, int64(120000), got.UnixMilli())

	got = NextRotationBoundary(time.UnixMilli(120000), 30*time.Second)
	assert.Equal(t, int64(150000), got.UnixMilli())
}

func TestDeriveParams(t *testing.T) {
	tests := []struct {
		name  string
		probe media.ProbeResult
		want  EncodeParams
	}{
		{
			name:  "defaults",
			probe: media.DefaultProbeResult(),
			want:  EncodeParams{BitrateKbps: 2500, MaxrateKbps: 3000, BufsizeKbps: 5000, FPS: 30, GOPSize: 30, Defaulted: true},
		},
		{
			name:  "ntsc frame rate rounds",
			probe: media.ProbeResult{BitrateKbps: 4000, FPS: 29.97, Resolution: "1920x1080"},
			want:  EncodeParams{BitrateKbps: 4000, MaxrateKbps: 4800, BufsizeKbps: 8000, FPS: 29.97, GOPSize: 30, Resolution: "1920x1080"},
		},
		{
			name:  "low frame rate uses minimum gop",
			probe: media.ProbeResult{BitrateKbps: 1000, FPS: 10},
			want:  EncodeParams{BitrateKbps: 1000, MaxrateKbps: 1200, BufsizeKbps: 2000, FPS: 10, GOPSize: 15},
		},
		{
			name:  "zero values fall back",
			probe: media.ProbeResult{},
			want:  EncodeParams{BitrateKbps: 2500, MaxrateKbps: 3000, BufsizeKbps: 5000, FPS: 30, GOPSize: 30},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveParams(tt.probe))
		})
	}
}
