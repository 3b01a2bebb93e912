package liveness

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jaisil18/tv-transmision-sub000/internal/apperr"
	"github.com/jaisil18/tv-transmision-sub000/internal/models"
	"github.com/jaisil18/tv-transmision-sub000/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 5 * time.Minute

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *recordingNotifier) NotifyContentUpdated(screenID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, screenID)
	return 0
}

func (n *recordingNotifier) snapshot() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

func screen(id string, status models.ScreenStatus, lastSeen time.Time) models.Screen {
	s := models.NewScreen(id, id)
	s.Status = status
	s.LastSeen = lastSeen.UnixMilli()
	return s
}

func setup(t *testing.T, now time.Time, screens ...models.Screen) (*Reconciler, *store.ScreenRegistry, *recordingNotifier) {
	t.Helper()
	reg := store.NewScreenRegistry(filepath.Join(t.TempDir(), "screens.json"))
	require.NoError(t, reg.Write(context.Background(), screens))

	notifier := &recordingNotifier{}
	r := New(reg, notifier, testTimeout, nil)
	r.now = func() time.Time { return now }
	return r, reg, notifier
}

func TestForceCheck_DemotesStaleScreen(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	r, reg, notifier := setup(t, now,
		screen("S", models.ScreenActive, now.Add(-310*time.Second)),
		screen("fresh", models.ScreenActive, now.Add(-10*time.Second)),
	)

	result, err := r.ForceCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Checked)
	assert.Equal(t, []string{"S"}, result.Demoted)
	assert.Empty(t, result.Promoted)

	stale, err := reg.Get(context.Background(), "S")
	require.NoError(t, err)
	assert.Equal(t, models.ScreenInactive, stale.Status)

	fresh, err := reg.Get(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, models.ScreenActive, fresh.Status)

	assert.Equal(t, []string{""}, notifier.snapshot(), "one global content-updated per sweep")
}

func TestForceCheck_SingleBroadcastForManyChanges(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	old := now.Add(-time.Hour)
	r, _, notifier := setup(t, now,
		screen("a", models.ScreenActive, old),
		screen("b", models.ScreenActive, old),
		screen("c", models.ScreenInactive, now.Add(-time.Second)),
	)

	result, err := r.ForceCheck(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, result.Demoted)
	assert.Equal(t, []string{"c"}, result.Promoted)
	assert.Len(t, notifier.snapshot(), 1)
}

func TestForceCheck_NoChangesNoBroadcast(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	r, _, notifier := setup(t, now,
		screen("a", models.ScreenActive, now.Add(-time.Minute)),
		screen("b", models.ScreenInactive, now.Add(-time.Hour)),
	)

	result, err := r.ForceCheck(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Changed())
	assert.Empty(t, notifier.snapshot())
}

func TestForceCheck_BoundaryIsInactive(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	r, _, _ := setup(t, now, screen("edge", models.ScreenActive, now.Add(-testTimeout)))

	result, err := r.ForceCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"edge"}, result.Demoted)
}

func TestDemotedScreenStaysInactiveUntilHeartbeat(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	r, reg, notifier := setup(t, now, screen("S", models.ScreenActive, now.Add(-10*time.Minute)))
	ctx := context.Background()

	_, err := r.ForceCheck(ctx)
	require.NoError(t, err)

	// Further sweeps keep it inactive
	result, err := r.ForceCheck(ctx)
	require.NoError(t, err)
	assert.False(t, result.Changed())

	require.NoError(t, r.RecordHeartbeat(ctx, "S", now))

	s, err := reg.Get(ctx, "S")
	require.NoError(t, err)
	assert.Equal(t, models.ScreenActive, s.Status)
	assert.Equal(t, now.UnixMilli(), s.LastSeen)
	assert.Equal(t, []string{"", "S"}, notifier.snapshot(), "promotion is announced for the screen")
}

func TestRecordHeartbeat_ActiveScreenOnlyUpdatesLastSeen(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	r, reg, notifier := setup(t, now, screen("S", models.ScreenActive, now.Add(-time.Minute)))
	ctx := context.Background()

	require.NoError(t, r.RecordHeartbeat(ctx, "S", now))

	s, err := reg.Get(ctx, "S")
	require.NoError(t, err)
	assert.Equal(t, now.UnixMilli(), s.LastSeen)
	assert.Empty(t, notifier.snapshot())
}

func TestRecordHeartbeat_UnknownScreen(t *testing.T) {
	now := time.Now()
	r, _, _ := setup(t, now)

	err := r.RecordHeartbeat(context.Background(), "ghost", now)
	assert.True(t, apperr.IsNotFound(err))
}

func TestStartStop(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	r, reg, notifier := setup(t, now, screen("S", models.ScreenActive, now.Add(-time.Hour)))

	assert.Error(t, r.Start(0))
	require.NoError(t, r.Start(20*time.Millisecond))
	assert.ErrorIs(t, r.Start(20*time.Millisecond), ErrAlreadyRunning)

	assert.Eventually(t, func() bool {
		s, err := reg.Get(context.Background(), "S")
		return err == nil && s.Status == models.ScreenInactive
	}, 2*time.Second, 10*time.Millisecond)

	r.Stop()
	r.Stop()
	assert.NotEmpty(t, notifier.snapshot())
}
