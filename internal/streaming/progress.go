package streaming

import (
	"regexp"
	"strconv"
)

// Progress is a snapshot of encoder throughput
type Progress struct {
	Frame       int64   `json:"frame"`
	FPS         float64 `json:"fps"`
	BitrateKbps float64 `json:"bitrateKbps"`
}

// ProgressParser extracts progress from encoder diagnostic lines. Lines it
// cannot read are ignored.
type ProgressParser interface {
	Parse(line string) (Progress, bool)
}

var progressPattern = regexp.MustCompile(`frame=\s*(\d+)\s+fps=\s*([\d.]+).*?bitrate=\s*([\d.]+)kbits/s`)

// StatsParser reads the periodic `-stats` line
type StatsParser struct{}

// Parse implements ProgressParser
func (StatsParser) Parse(line string) (Progress, bool) {
	m := progressPattern.FindStringSubmatch(line)
	if m == nil {
		return Progress{}, false
	}

	frame, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return Progress{}, false
	}
	fps, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Progress{}, false
	}
	bitrate, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Progress{}, false
	}

	return Progress{Frame: frame, FPS: fps, BitrateKbps: bitrate}, true
}
