package streaming

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Eyevinn/hls-m3u8/m3u8"
)

// ErrNotMediaPlaylist is returned when the manifest is a master playlist
var ErrNotMediaPlaylist = errors.New("manifest is not a media playlist")

// ManifestInfo summarizes the rolling playlist an HLS session is writing
type ManifestInfo struct {
	MediaSequence  uint64   `json:"mediaSequence"`
	TargetDuration uint     `json:"targetDuration"`
	SegmentCount   int      `json:"segmentCount"`
	Segments       []string `json:"segments"`
}

// ReadManifest decodes dir/index.m3u8
func ReadManifest(dir string) (*ManifestInfo, error) {
	f, err := os.Open(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	playlist, listType, err := m3u8.DecodeFrom(f, false)
	if err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if listType != m3u8.MEDIA {
		return nil, ErrNotMediaPlaylist
	}

	media, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok {
		return nil, ErrNotMediaPlaylist
	}

	info := &ManifestInfo{
		MediaSequence:  media.SeqNo,
		TargetDuration: media.TargetDuration,
		Segments:       make([]string, 0, media.Count()),
	}
	for _, seg := range media.Segments {
		if seg == nil {
			continue
		}
		info.Segments = append(info.Segments, seg.URI)
	}
	info.SegmentCount = len(info.Segments)
	return info, nil
}
