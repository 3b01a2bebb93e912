package streaming

import (
	"time"

	"github.com/jaisil18/tv-transmision-sub000/internal/models"
)

// SelectCurrentContent returns the index of the item on air at now:
// floor(now / interval) mod len(items). It depends only on the clock, the
// interval, and the playlist length, so independent encoders agree without
// coordination. The item currently playing does not influence the choice,
// and changing the interval or the playlist length mid-cycle can jump the index.
func SelectCurrentContent(items []models.PlaylistItem, now time.Time, interval time.Duration) (int, bool) {
	if len(items) == 0 || interval <= 0 {
		return 0, false
	}
	bucket := now.UnixMilli() / interval.Milliseconds()
	index := bucket % int64(len(items))
	if index < 0 {
		index += int64(len(items))
	}
	return int(index), true
}

// NextRotationBoundary returns the start of the bucket after the one containing now
func NextRotationBoundary(now time.Time, interval time.Duration) time.Time {
	ms := interval.Milliseconds()
	if ms <= 0 {
		return now
	}
	next := (now.UnixMilli()/ms + 1) * ms
	return time.UnixMilli(next)
}
