package streaming

import (
	"math"

	"github.com/jaisil18/tv-transmision-sub000/internal/media"
)

// Encode parameter derivation constants
const (
	minGOPSize        = 15
	maxrateMultiplier = 1.2
	bufsizeMultiplier = 2
)

// EncodeParams are the encoder settings derived from the source media
type EncodeParams struct {
	BitrateKbps int     `json:"bitrateKbps"`
	MaxrateKbps int     `json:"maxrateKbps"`
	BufsizeKbps int     `json:"bufsizeKbps"`
	FPS         float64 `json:"fps"`
	GOPSize     int     `json:"gopSize"`
	Resolution  string  `json:"resolution,omitempty"`
	Defaulted   bool    `json:"defaulted"`
}

// DeriveParams computes GOP = max(round(fps), 15), maxrate = 1.2x bitrate,
// and bufsize = 2x bitrate from a probe result.
func DeriveParams(probe media.ProbeResult) EncodeParams {
	bitrate := probe.BitrateKbps
	if bitrate <= 0 {
		bitrate = media.DefaultBitrateKbps
	}
	fps := probe.FPS
	if fps <= 0 {
		fps = media.DefaultFPS
	}

	gop := int(math.Round(fps))
	if gop < minGOPSize {
		gop = minGOPSize
	}

	return EncodeParams{
		BitrateKbps: bitrate,
		MaxrateKbps: int(math.Round(float64(bitrate) * maxrateMultiplier)),
		BufsizeKbps: bitrate * bufsizeMultiplier,
		FPS:         fps,
		GOPSize:     gop,
		Resolution:  probe.Resolution,
		Defaulted:   probe.Defaulted,
	}
}
