// Package liveness recomputes screen status from heartbeat timestamps. The
// Reconciler is the only code that writes Screen.Status.
package liveness

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jaisil18/tv-transmision-sub000/internal/apperr"
	"github.com/jaisil18/tv-transmision-sub000/internal/logger"
	"github.com/jaisil18/tv-transmision-sub000/internal/metrics"
	"github.com/jaisil18/tv-transmision-sub000/internal/models"
)

// Timeout for a single sweep's registry update
const sweepTimeout = 30 * time.Second

// ErrAlreadyRunning is returned by Start when the sweep loop is active
var ErrAlreadyRunning = errors.New("reconciler already running")

// ScreenStore is the screen registry as used by the reconciler
type ScreenStore interface {
	Update(ctx context.Context, fn func([]models.Screen) ([]models.Screen, bool, error)) ([]models.Screen, error)
}

// Notifier announces content changes on the presence bus
type Notifier interface {
	NotifyContentUpdated(screenID string) int
}

// SweepResult summarizes one reconciler pass
type SweepResult struct {
	Checked  int      `json:"checked"`
	Promoted []string `json:"promoted"`
	Demoted  []string `json:"demoted"`
}

// Changed reports whether any screen status changed
func (r SweepResult) Changed() bool {
	return len(r.Promoted) > 0 || len(r.Demoted) > 0
}

// Reconciler periodically demotes screens whose last heartbeat is older than
// the timeout, and promotes screens on heartbeat.
type Reconciler struct {
	screens  ScreenStore
	notifier Notifier
	timeout  time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
	log      zerolog.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a reconciler. notifier may be nil.
func New(screens ScreenStore, notifier Notifier, timeout time.Duration, m *metrics.Metrics) *Reconciler {
	return &Reconciler{
		screens:  screens,
		notifier: notifier,
		timeout:  timeout,
		metrics:  m,
		now:      time.Now,
		log:      logger.Component("liveness"),
	}
}

// desiredStatus is active when the last heartbeat is within the timeout
func (r *Reconciler) desiredStatus(screen models.Screen, now time.Time) models.ScreenStatus {
	elapsed := now.Sub(screen.LastSeenTime())
	if elapsed < r.timeout {
		return models.ScreenActive
	}
	return models.ScreenInactive
}

// Start runs a sweep every period until Stop
func (r *Reconciler) Start(period time.Duration) error {
	if period <= 0 {
		return apperr.Validation("liveness.start", "sweep period must be positive")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrAlreadyRunning
	}
	r.running = true
	r.stopChan = make(chan struct{})
	r.done = make(chan struct{})

	go r.run(period, r.stopChan, r.done)

	r.log.Info().
		Dur("period", period).
		Dur("timeout", r.timeout).
		Msg("Liveness reconciler started")
	return nil
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	stop, done := r.stopChan, r.done
	r.mu.Unlock()

	close(stop)
	<-done

	r.log.Info().Msg("Liveness reconciler stopped")
}

func (r *Reconciler) run(period time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
			if _, err := r.ForceCheck(ctx); err != nil {
				r.log.Error().
					Err(err).
					Msg("Liveness sweep failed")
			}
			cancel()
		}
	}
}

// ForceCheck runs one sweep synchronously. All changed screens are
// persisted in a single registry write followed by one global
// content-updated broadcast.
func (r *Reconciler) ForceCheck(ctx context.Context) (SweepResult, error) {
	now := r.now()
	var result SweepResult

	_, err := r.screens.Update(ctx, func(screens []models.Screen) ([]models.Screen, bool, error) {
		result = SweepResult{Checked: len(screens)}
		for i := range screens {
			desired := r.desiredStatus(screens[i], now)
			if desired == screens[i].Status {
				continue
			}
			screens[i].Status = desired
			if desired == models.ScreenActive {
				result.Promoted = append(result.Promoted, screens[i].ID)
			} else {
				result.Demoted = append(result.Demoted, screens[i].ID)
			}
		}
		return screens, result.Changed(), nil
	})
	if err != nil {
		return SweepResult{}, err
	}

	r.metrics.IncSweeps()
	r.metrics.AddStatusChanges(string(models.ScreenActive), len(result.Promoted))
	r.metrics.AddStatusChanges(string(models.ScreenInactive), len(result.Demoted))

	if !result.Changed() {
		r.log.Debug().
			Int("checked", result.Checked).
			Msg("Liveness sweep found no status changes")
		return result, nil
	}

	r.log.Info().
		Int("checked", result.Checked).
		Strs("promoted", result.Promoted).
		Strs("demoted", result.Demoted).
		Msg("Liveness sweep updated screen status")

	if r.notifier != nil {
		r.notifier.NotifyContentUpdated("")
	}

	return result, nil
}

// RecordHeartbeat persists lastSeen for the screen and recomputes its status
// in the same serialized update, promoting an inactive screen immediately.
func (r *Reconciler) RecordHeartbeat(ctx context.Context, screenID string, at time.Time) error {
	promoted := false
	found := false

	_, err := r.screens.Update(ctx, func(screens []models.Screen) ([]models.Screen, bool, error) {
		for i := range screens {
			if screens[i].ID != screenID {
				continue
			}
			found = true
			if ms := at.UnixMilli(); ms > screens[i].LastSeen {
				screens[i].LastSeen = ms
			}
			desired := r.desiredStatus(screens[i], at)
			promoted = desired == models.ScreenActive && screens[i].Status != models.ScreenActive
			screens[i].Status = desired
			return screens, true, nil
		}
		return screens, false, nil
	})
	if err != nil {
		return err
	}
	if !found {
		return apperr.NotFound("liveness.heartbeat", screenID, "screen not registered")
	}

	if promoted {
		r.metrics.AddStatusChanges(string(models.ScreenActive), 1)
		r.log.Info().
			Str("screen_id", screenID).
			Msg("Screen promoted to active on heartbeat")
		if r.notifier != nil {
			r.notifier.NotifyContentUpdated(screenID)
		}
	}

	return nil
}
