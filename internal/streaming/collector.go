package streaming

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jaisil18/tv-transmision-sub000/internal/logger"
	"github.com/jaisil18/tv-transmision-sub000/internal/metrics"
)

// ActiveFunc reports whether screenID has a live HLS session
type ActiveFunc func(screenID string) bool

// SweepStats summarizes one collector pass
type SweepStats struct {
	Deleted     int
	Failed      int
	DirsRemoved int
}

// SegmentCollector deletes HLS segments older than the retention window.
// Each screen directory is swept independently; failed deletes are retried
// on the next pass.
type SegmentCollector struct {
	root      string
	retention time.Duration
	active    ActiveFunc
	metrics   *metrics.Metrics
	now       func() time.Time
	log       zerolog.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewSegmentCollector creates a collector for the segment root directory
func NewSegmentCollector(root string, retention time.Duration, active ActiveFunc, m *metrics.Metrics) *SegmentCollector {
	if active == nil {
		active = func(string) bool { return false }
	}
	return &SegmentCollector{
		root:      root,
		retention: retention,
		active:    active,
		metrics:   m,
		now:       time.Now,
		log:       logger.Component("collector"),
	}
}

// Start begins sweeping every interval
func (c *SegmentCollector) Start(interval time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running || interval <= 0 {
		return
	}
	c.running = true
	c.stopChan = make(chan struct{})
	c.done = make(chan struct{})

	go c.loop(interval, c.stopChan, c.done)

	c.log.Info().
		Str("root", c.root).
		Dur("interval", interval).
		Dur("retention", c.retention).
		Msg("Segment collector started")
}

// Stop halts the sweep loop and waits for an in-flight pass
func (c *SegmentCollector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopChan)
	done := c.done
	c.mu.Unlock()

	<-done
	c.log.Info().Msg("Segment collector stopped")
}

func (c *SegmentCollector) loop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Sweep runs one pass over every screen directory
func (c *SegmentCollector) Sweep() SweepStats {
	var stats SweepStats

	entries, err := os.ReadDir(c.root)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.log.Warn().Err(err).Str("root", c.root).Msg("Failed to read segment root")
		}
		return stats
	}

	cutoff := c.now().Add(-c.retention)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		screenID := entry.Name()
		c.sweepDir(screenID, filepath.Join(c.root, screenID), cutoff, &stats)
	}

	c.metrics.AddSegmentsDeleted(stats.Deleted)

	if stats.Deleted > 0 || stats.Failed > 0 || stats.DirsRemoved > 0 {
		c.log.Debug().
			Int("deleted", stats.Deleted).
			Int("failed", stats.Failed).
			Int("dirs_removed", stats.DirsRemoved).
			Msg("Segment sweep completed")
	}
	return stats
}

func (c *SegmentCollector) sweepDir(screenID, dir string, cutoff time.Time, stats *SweepStats) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		c.log.Warn().Err(err).Str("dir", dir).Msg("Failed to read segment directory")
		return
	}

	remaining := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), SegmentExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed by the encoder or another sweep
			continue
		}
		if !info.ModTime().Before(cutoff) {
			remaining++
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			remaining++
			stats.Failed++
			c.log.Warn().Err(err).Str("segment", path).Msg("Failed to delete expired segment, will retry")
			continue
		}
		stats.Deleted++
	}

	if remaining == 0 && !c.active(screenID) {
		if err := os.RemoveAll(dir); err != nil {
			c.log.Warn().Err(err).Str("dir", dir).Msg("Failed to remove idle segment directory")
			return
		}
		stats.DirsRemoved++
		c.log.Info().Str("screen_id", screenID).Msg("Removed idle segment directory")
	}
}

// cleanupSegments removes a screen's segment directory
func cleanupSegments(outputDir string) error {
	if err := os.RemoveAll(outputDir); err != nil {
		return err
	}
	logger.Log.Info().Str("output_dir", outputDir).Msg("Segments cleaned up")
	return nil
}
