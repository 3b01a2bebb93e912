package streaming

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jaisil18/tv-transmision-sub000/internal/apperr"
	"github.com/jaisil18/tv-transmision-sub000/internal/config"
	"github.com/jaisil18/tv-transmision-sub000/internal/logger"
	"github.com/jaisil18/tv-transmision-sub000/internal/media"
	"github.com/jaisil18/tv-transmision-sub000/internal/metrics"
	"github.com/jaisil18/tv-transmision-sub000/internal/models"
	"github.com/jaisil18/tv-transmision-sub000/internal/presence"
)

// reconcileTimeout bounds one event-driven reconcile pass
const reconcileTimeout = 2 * time.Minute

// ScreenSource reads the screen registry
type ScreenSource interface {
	Read(ctx context.Context) ([]models.Screen, error)
	Get(ctx context.Context, id string) (models.Screen, error)
}

// PlaylistSource finds the playlist assigned to a screen
type PlaylistSource interface {
	ForScreen(ctx context.Context, screenID string) (*models.Playlist, error)
}

// ContentLibrary maps playlist items to files on disk
type ContentLibrary interface {
	Resolve(relativePath string) (string, error)
	FolderItems(folder string) ([]models.PlaylistItem, error)
}

// Deps are the collaborators of a Manager. Launcher, Parser, and Now are
// optional.
type Deps struct {
	Screens   ScreenSource
	Playlists PlaylistSource
	Library   ContentLibrary
	Prober    media.Prober
	Launcher  Launcher
	Parser    ProgressParser
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// pendingWork accumulates reconcile requests between event loop passes
type pendingWork struct {
	all     bool
	screens map[string]struct{}
}

// Manager owns every encoder session and keeps them aligned with the
// screen registry, playlist assignments, and wall-clock rotation.
type Manager struct {
	cfg       config.StreamingConfig
	screens   ScreenSource
	playlists PlaylistSource
	library   ContentLibrary
	prober    media.Prober
	launcher  Launcher
	parser    ProgressParser
	metrics   *metrics.Metrics
	collector *SegmentCollector
	now       func() time.Time

	autoVariants []Variant
	hwaccel      HardwareAccel

	sessions *sessionRegistry

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	pendingMu sync.Mutex
	pending   pendingWork
	wake      chan struct{}

	mu        sync.RWMutex
	started   bool
	stopped   bool
	stopChan  chan struct{}
	loopDone  chan struct{}
	supervise sync.WaitGroup
}

// NewManager creates a pipeline manager
func NewManager(cfg config.StreamingConfig, deps Deps) *Manager {
	launcher := deps.Launcher
	if launcher == nil {
		launcher = NewExecLauncher(cfg.FFmpegPath)
	}
	parser := deps.Parser
	if parser == nil {
		parser = StatsParser{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	variants := make([]Variant, 0, len(cfg.AutoStartVariants))
	for _, v := range cfg.AutoStartVariants {
		if variant, err := ParseVariant(v); err == nil {
			variants = append(variants, variant)
		}
	}

	m := &Manager{
		cfg:          cfg,
		screens:      deps.Screens,
		playlists:    deps.Playlists,
		library:      deps.Library,
		prober:       deps.Prober,
		launcher:     launcher,
		parser:       parser,
		metrics:      deps.Metrics,
		now:          now,
		autoVariants: variants,
		hwaccel:      HardwareAccel(cfg.HardwareAccel),
		sessions:     newSessionRegistry(),
		locks:        make(map[string]*sync.Mutex),
		wake:         make(chan struct{}, 1),
		stopChan:     make(chan struct{}),
		loopDone:     make(chan struct{}),
	}
	if m.hwaccel == "" {
		m.hwaccel = HardwareAccelNone
	}
	m.collector = NewSegmentCollector(cfg.SegmentPath, cfg.SegmentRetention(), m.hlsActive, deps.Metrics)
	return m
}

// SessionCount returns the number of tracked sessions
func (m *Manager) SessionCount() int {
	return m.sessions.Len()
}

// Start resolves the hardware encoder and launches the collector, the
// event loop, and the rotation timer. With AutoStart set every active
// screen is brought up on the first loop pass.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrManagerStopped
	}
	if m.started {
		return nil
	}
	m.started = true

	m.hwaccel = ResolveHardwareAccel(ctx, m.cfg.FFmpegPath, m.hwaccel)
	m.collector.Start(m.cfg.CleanupInterval)

	go m.run()

	if m.cfg.AutoStart {
		m.enqueue(true, nil)
	}

	logger.Log.Info().
		Dur("rotation_interval", m.cfg.RotationInterval()).
		Str("hardware_accel", m.hwaccel.String()).
		Bool("auto_start", m.cfg.AutoStart).
		Msg("Pipeline manager started")

	return nil
}

// Stop halts background work and terminates every session in parallel
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	started := m.started
	m.mu.Unlock()

	logger.Log.Info().Msg("Stopping pipeline manager...")

	close(m.stopChan)
	if started {
		<-m.loopDone
	}
	m.collector.Stop()

	sessions := m.sessions.List()
	var g errgroup.Group
	for _, s := range sessions {
		g.Go(func() error {
			_, err := m.StopSession(context.Background(), s.screenID, s.variant)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		logger.Log.Error().Err(err).Msg("Failed to stop session during shutdown")
	}
	m.supervise.Wait()

	logger.Log.Info().Int("stopped_sessions", len(sessions)).Msg("Pipeline manager stopped")
}

func (m *Manager) isStopped() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stopped
}

// screenLock serializes create, replace, and stop for one screen
func (m *Manager) screenLock(screenID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[screenID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[screenID] = l
	}
	return l
}

// CreateOrReplaceSession starts the encoder for screenID and variant,
// replacing any session already running for that pair.
func (m *Manager) CreateOrReplaceSession(ctx context.Context, screenID string, variant Variant) (SessionStatus, error) {
	if m.isStopped() {
		return SessionStatus{}, ErrManagerStopped
	}
	if _, err := ParseVariant(string(variant)); err != nil {
		return SessionStatus{}, err
	}

	lock := m.screenLock(screenID)
	lock.Lock()
	defer lock.Unlock()

	return m.createLocked(ctx, screenID, variant)
}

func (m *Manager) createLocked(ctx context.Context, screenID string, variant Variant) (SessionStatus, error) {
	const op = "streaming.create"
	key := sessionKey{screenID: screenID, variant: variant}

	screen, err := m.screens.Get(ctx, screenID)
	if err != nil {
		return SessionStatus{}, err
	}
	if screen.Status != models.ScreenActive {
		return SessionStatus{}, apperr.Validation(op, "screen "+screenID+" is inactive")
	}

	item, index, err := m.selectContent(ctx, screenID)
	if err != nil {
		if apperr.IsNotFound(err) {
			// nothing to play: an existing session must not outlive its content
			m.stopLocked(key, true)
		}
		return SessionStatus{}, err
	}

	sourcePath, err := m.library.Resolve(item.URL)
	if err != nil {
		return SessionStatus{}, err
	}

	probe := media.DefaultProbeResult()
	if item.Type == models.MediaVideo && m.prober != nil {
		probe = m.prober.Inspect(ctx, sourcePath)
	}
	params := DeriveParams(probe)

	var outputDir string
	if variant == VariantHLS {
		outputDir = filepath.Join(m.cfg.SegmentPath, screenID)
		if err := checkDiskSpace(m.cfg.SegmentPath, m.cfg.MinFreeDiskMB); err != nil {
			m.metrics.IncLaunch(string(variant), "failure")
			return SessionStatus{}, apperr.PipelineLaunch(op, key.String(), "insufficient disk space", err)
		}
	}

	if _, ok := m.sessions.Get(key); ok {
		m.stopLocked(key, false)
	}

	session := newSession(screenID, variant, item, index)
	session.sourcePath = sourcePath
	session.params = params
	session.outputDir = outputDir
	m.sessions.Set(key, session)
	if err := session.transition(StatusStarting); err != nil {
		m.sessions.Delete(key, session)
		return SessionStatus{}, err
	}

	cmd, err := BuildCommand(CommandParams{
		Variant:         variant,
		InputFile:       sourcePath,
		Kind:            item.Type,
		Encode:          params,
		HardwareAccel:   m.hwaccel,
		EncodingPreset:  m.cfg.EncodingPreset,
		StreamURL:       strings.TrimSuffix(m.cfg.RTMPBaseURL, "/") + "/" + screenID,
		OutputDir:       outputDir,
		SegmentDuration: m.cfg.SegmentDuration,
		PlaylistSize:    m.cfg.PlaylistSize,
	})
	if err == nil && outputDir != "" {
		err = os.MkdirAll(outputDir, 0755)
	}
	if err != nil {
		return m.launchFailed(session, err)
	}

	proc, err := m.launcher.Launch(ctx, cmd.Args, m.outputHandler(session))
	if err != nil {
		return m.launchFailed(session, err)
	}

	session.attach(proc, m.now())
	m.metrics.IncLaunch(string(variant), "success")

	m.supervise.Add(1)
	go m.superviseSession(session, proc)

	logger.Log.Info().
		Str("screen_id", screenID).
		Str("variant", string(variant)).
		Str("content_id", item.ID).
		Int("content_index", index).
		Int("pid", proc.PID()).
		Int("bitrate_kbps", params.BitrateKbps).
		Float64("fps", params.FPS).
		Bool("probe_defaulted", params.Defaulted).
		Msg("Pipeline session started")

	return session.Snapshot(), nil
}

func (m *Manager) launchFailed(session *Session, cause error) (SessionStatus, error) {
	session.fail(cause)
	m.metrics.IncLaunch(string(session.variant), "failure")

	key := sessionKey{screenID: session.screenID, variant: session.variant}
	logger.Log.Error().
		Err(cause).
		Str("screen_id", session.screenID).
		Str("variant", string(session.variant)).
		Msg("Failed to launch encoder")

	return session.Snapshot(), apperr.PipelineLaunch("streaming.launch", key.String(), "encoder launch failed", cause)
}

// outputHandler routes encoder diagnostics to the log and progress telemetry
func (m *Manager) outputHandler(session *Session) func(string) {
	return func(line string) {
		if p, ok := m.parser.Parse(line); ok {
			session.setProgress(p)
			return
		}
		if containsError(line) {
			logger.Log.Error().
				Str("screen_id", session.screenID).
				Str("variant", string(session.variant)).
				Str("output", line).
				Msg("Encoder error")
			return
		}
		logger.Log.Debug().
			Str("screen_id", session.screenID).
			Str("output", line).
			Msg("Encoder output")
	}
}

// superviseSession reaps the process. Crashes leave the session in error
// and are not restarted.
func (m *Manager) superviseSession(session *Session, proc Process) {
	defer m.supervise.Done()

	err := proc.Wait()
	status := session.exitedWith(err)

	event := logger.Log.Info()
	if status == StatusError {
		event = logger.Log.Error().Err(err)
	}
	event.
		Str("screen_id", session.screenID).
		Str("variant", string(session.variant)).
		Int("pid", proc.PID()).
		Str("status", status.String()).
		Msg("Encoder process exited")
}

// StopSession terminates the session for screenID and variant and removes
// its segments. Stopping a missing session is a no-op.
func (m *Manager) StopSession(_ context.Context, screenID string, variant Variant) (SessionStatus, error) {
	if _, err := ParseVariant(string(variant)); err != nil {
		return SessionStatus{}, err
	}

	lock := m.screenLock(screenID)
	lock.Lock()
	defer lock.Unlock()

	return m.stopLocked(sessionKey{screenID: screenID, variant: variant}, true), nil
}

// StopScreen stops every variant for screenID
func (m *Manager) StopScreen(ctx context.Context, screenID string) []SessionStatus {
	out := make([]SessionStatus, 0, len(Variants))
	for _, v := range Variants {
		st, _ := m.StopSession(ctx, screenID, v)
		out = append(out, st)
	}
	return out
}

func (m *Manager) stopLocked(key sessionKey, cleanup bool) SessionStatus {
	session, ok := m.sessions.Get(key)
	if !ok {
		return stoppedStatus(key.screenID, key.variant)
	}

	if proc := session.requestStop(); proc != nil {
		if err := terminateProcess(proc, session.exited, m.cfg.StopTimeout); err != nil {
			logger.Log.Warn().Err(err).Str("session", key.String()).Msg("Failed to terminate encoder process")
		}
	}
	_ = session.transition(StatusStopped)
	m.sessions.Delete(key, session)

	if cleanup && session.outputDir != "" {
		if err := cleanupSegments(session.outputDir); err != nil {
			logger.Log.Warn().Err(err).Str("output_dir", session.outputDir).Msg("Failed to cleanup segments")
		}
	}

	logger.Log.Info().Str("session", key.String()).Bool("cleanup", cleanup).Msg("Pipeline session stopped")
	return session.Snapshot()
}

// Status returns the session for screenID and variant
func (m *Manager) Status(screenID string, variant Variant) (SessionStatus, error) {
	session, ok := m.sessions.Get(sessionKey{screenID: screenID, variant: variant})
	if !ok {
		return SessionStatus{}, apperr.NotFound("streaming.status", screenID+"/"+string(variant), "no session")
	}
	st := session.Snapshot()
	if variant == VariantHLS && st.OutputDir != "" {
		if info, err := ReadManifest(st.OutputDir); err == nil {
			st.Manifest = info
		}
	}
	return st, nil
}

// ScreenStatus returns every session for screenID
func (m *Manager) ScreenStatus(screenID string) []SessionStatus {
	out := make([]SessionStatus, 0, len(Variants))
	for _, v := range Variants {
		if st, err := m.Status(screenID, v); err == nil {
			out = append(out, st)
		}
	}
	return out
}

// List returns every session ordered by screen then variant
func (m *Manager) List() []SessionStatus {
	sessions := m.sessions.List()
	out := make([]SessionStatus, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	return out
}

// SegmentDir returns the HLS output directory for screenID
func (m *Manager) SegmentDir(screenID string) string {
	return filepath.Join(m.cfg.SegmentPath, screenID)
}

// UpdateMetrics refreshes the session gauges
func (m *Manager) UpdateMetrics() {
	type gaugeKey struct {
		variant Variant
		status  PipelineStatus
	}
	counts := make(map[gaugeKey]int)
	for _, s := range m.sessions.List() {
		counts[gaugeKey{variant: s.variant, status: s.Status()}]++
	}
	m.metrics.ResetSessions()
	for k, n := range counts {
		m.metrics.SetSessions(string(k.variant), k.status.String(), n)
	}
}

// hlsActive reports whether screenID has a running HLS session
func (m *Manager) hlsActive(screenID string) bool {
	s, ok := m.sessions.Get(sessionKey{screenID: screenID, variant: VariantHLS})
	return ok && s.Status().IsRunning()
}

// selectContent picks the item on air for screenID from its active playlist
func (m *Manager) selectContent(ctx context.Context, screenID string) (models.PlaylistItem, int, error) {
	items, err := m.contentFor(ctx, screenID)
	if err != nil {
		return models.PlaylistItem{}, 0, err
	}
	index, ok := SelectCurrentContent(items, m.now(), m.cfg.RotationInterval())
	if !ok {
		return models.PlaylistItem{}, 0, apperr.NotFound("streaming.content", screenID, "playlist has no items")
	}
	return items[index], index, nil
}

func (m *Manager) contentFor(ctx context.Context, screenID string) ([]models.PlaylistItem, error) {
	playlist, err := m.playlists.ForScreen(ctx, screenID)
	if err != nil {
		return nil, err
	}
	if playlist == nil {
		return nil, apperr.NotFound("streaming.content", screenID, "no active playlist assigned")
	}
	if playlist.IsFolderBound() {
		return m.library.FolderItems(*playlist.Folder)
	}
	return playlist.Items, nil
}

// HandleEvent queues the reconcile work implied by a presence event. It
// never blocks the broadcaster.
func (m *Manager) HandleEvent(event presence.Event) {
	switch event.Type {
	case presence.EventContentUpdated:
		if event.Global() {
			m.enqueue(true, nil)
		} else {
			m.enqueue(false, []string{event.ScreenID})
		}
	case presence.EventPlaylistUpdate:
		m.enqueue(false, event.ScreenIDs)
	case presence.EventFilesUploaded:
		m.enqueue(true, nil)
	}
}

func (m *Manager) enqueue(all bool, screenIDs []string) {
	m.pendingMu.Lock()
	if all {
		m.pending.all = true
	}
	for _, id := range screenIDs {
		if id == "" {
			continue
		}
		if m.pending.screens == nil {
			m.pending.screens = make(map[string]struct{})
		}
		m.pending.screens[id] = struct{}{}
	}
	m.pendingMu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) takePending() pendingWork {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	work := m.pending
	m.pending = pendingWork{}
	return work
}

// run is the event loop. Rotation boundaries reconcile every screen so
// sessions follow the wall-clock schedule.
func (m *Manager) run() {
	defer close(m.loopDone)

	timer := time.NewTimer(m.untilNextRotation())
	defer timer.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-m.wake:
			m.process(m.takePending())
		case <-timer.C:
			m.process(pendingWork{all: true})
			timer.Reset(m.untilNextRotation())
		}
	}
}

func (m *Manager) untilNextRotation() time.Duration {
	now := m.now()
	d := NextRotationBoundary(now, m.cfg.RotationInterval()).Sub(now)
	if d <= 0 {
		d = time.Millisecond
	}
	return d
}

func (m *Manager) process(work pendingWork) {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	if len(work.screens) > 0 {
		ids := make([]string, 0, len(work.screens))
		for id := range work.screens {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			m.RecreateScreen(ctx, id)
		}
	}
	if work.all {
		if err := m.ReconcileAll(ctx); err != nil {
			logger.Log.Error().Err(err).Msg("Pipeline reconcile failed")
		}
	}
}

// variantsFor returns the variants to keep running for screenID: those
// already present, plus the auto-start variants when AutoStart is set.
func (m *Manager) variantsFor(screenID string) []Variant {
	var out []Variant
	for _, v := range Variants {
		_, exists := m.sessions.Get(sessionKey{screenID: screenID, variant: v})
		if exists || (m.cfg.AutoStart && containsVariant(m.autoVariants, v)) {
			out = append(out, v)
		}
	}
	return out
}

// RecreateScreen restarts every session of screenID on its current
// content, or stops them if the screen is inactive or gone.
func (m *Manager) RecreateScreen(ctx context.Context, screenID string) {
	screen, err := m.screens.Get(ctx, screenID)
	if err != nil {
		if apperr.IsNotFound(err) {
			m.StopScreen(ctx, screenID)
			return
		}
		logger.Log.Error().Err(err).Str("screen_id", screenID).Msg("Failed to read screen")
		return
	}
	if screen.Status != models.ScreenActive {
		m.StopScreen(ctx, screenID)
		return
	}

	for _, v := range m.variantsFor(screenID) {
		if _, err := m.CreateOrReplaceSession(ctx, screenID, v); err != nil {
			logReconcileError(err, screenID, v)
		}
	}
}

// ReconcileAll aligns every session with the registry: inactive or deleted
// screens are stopped, and sessions whose selected item changed are
// replaced. Sessions in error stay down until their content changes.
func (m *Manager) ReconcileAll(ctx context.Context) error {
	if m.isStopped() {
		return ErrManagerStopped
	}

	screens, err := m.screens.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read screens: %w", err)
	}

	known := make(map[string]bool, len(screens))
	for _, screen := range screens {
		known[screen.ID] = true
		if screen.Status != models.ScreenActive {
			m.stopIfRunning(ctx, screen.ID)
			continue
		}
		m.reconcileScreen(ctx, screen.ID)
	}

	for _, s := range m.sessions.List() {
		if !known[s.screenID] {
			if _, err := m.StopSession(ctx, s.screenID, s.variant); err != nil {
				logger.Log.Warn().Err(err).Str("screen_id", s.screenID).Msg("Failed to stop orphaned session")
			}
		}
	}
	return nil
}

func (m *Manager) stopIfRunning(ctx context.Context, screenID string) {
	for _, v := range Variants {
		if _, ok := m.sessions.Get(sessionKey{screenID: screenID, variant: v}); ok {
			_, _ = m.StopSession(ctx, screenID, v)
		}
	}
}

func (m *Manager) reconcileScreen(ctx context.Context, screenID string) {
	variants := m.variantsFor(screenID)
	if len(variants) == 0 {
		return
	}

	item, _, err := m.selectContent(ctx, screenID)
	if err != nil {
		if apperr.IsNotFound(err) {
			m.stopIfRunning(ctx, screenID)
			return
		}
		logger.Log.Error().Err(err).Str("screen_id", screenID).Msg("Failed to resolve content")
		return
	}

	for _, v := range variants {
		if s, ok := m.sessions.Get(sessionKey{screenID: screenID, variant: v}); ok {
			st := s.Status()
			sameContent := s.ContentID() == item.ID
			if sameContent && (st.IsRunning() || st == StatusError) {
				continue
			}
		}
		if _, err := m.CreateOrReplaceSession(ctx, screenID, v); err != nil {
			logReconcileError(err, screenID, v)
		}
	}
}

func logReconcileError(err error, screenID string, variant Variant) {
	event := logger.Log.Error()
	if apperr.IsNotFound(err) || errors.Is(err, ErrManagerStopped) {
		event = logger.Log.Warn()
	}
	event.Err(err).Str("screen_id", screenID).Str("variant", string(variant)).Msg("Failed to reconcile session")
}

func containsVariant(list []Variant, v Variant) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
