package streaming

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jaisil18/tv-transmision-sub000/internal/logger"
	"github.com/jaisil18/tv-transmision-sub000/internal/models"
)

// Session is the live pipeline for one screen and variant
type Session struct {
	mu sync.RWMutex

	id           string
	screenID     string
	variant      Variant
	status       PipelineStatus
	process      Process
	content      models.PlaylistItem
	contentIndex int
	sourcePath   string
	params       EncodeParams
	outputDir    string
	startTime    time.Time
	endTime      time.Time
	progress     Progress
	lastError    string

	stopRequested bool
	exited        chan struct{} // closed once the process has been reaped
}

func newSession(screenID string, variant Variant, content models.PlaylistItem, index int) *Session {
	return &Session{
		id:           uuid.NewString(),
		screenID:     screenID,
		variant:      variant,
		status:       StatusIdle,
		content:      content,
		contentIndex: index,
		exited:       make(chan struct{}),
	}
}

// transition moves the session to next if the state machine allows it.
// Re-entering the current status is a no-op, so a stop racing the
// supervisor's own stopped transition is not an error.
func (s *Session) transition(next PipelineStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(next)
}

func (s *Session) transitionLocked(next PipelineStatus) error {
	if s.status == next {
		return nil
	}
	if !s.status.CanTransitionTo(next) {
		err := fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, s.status, next)
		logger.Log.Warn().
			Err(err).
			Str("session_id", s.id).
			Str("screen_id", s.screenID).
			Str("variant", string(s.variant)).
			Msg("Rejected pipeline state transition")
		return err
	}
	s.status = next
	if next == StatusError || next == StatusStopped {
		s.endTime = time.Now()
	}
	return nil
}

// fail records err and moves the session to error
func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastError = err.Error()
	}
	_ = s.transitionLocked(StatusError)
}

// attach binds a spawned process and marks the session streaming
func (s *Session) attach(proc Process, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.process = proc
	s.startTime = at
	_ = s.transitionLocked(StatusStreaming)
}

// exitedWith settles the session after its process has been reaped. A
// requested stop or a clean exit ends in stopped; anything else is a crash.
func (s *Session) exitedWith(err error) PipelineStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	close(s.exited)

	if s.stopRequested || err == nil {
		_ = s.transitionLocked(StatusStopped)
	} else {
		s.lastError = err.Error()
		_ = s.transitionLocked(StatusError)
	}
	return s.status
}

// requestStop marks the session as being stopped and returns its process
func (s *Session) requestStop() Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopRequested = true
	return s.process
}

func (s *Session) setProgress(p Progress) {
	s.mu.Lock()
	s.progress = p
	s.mu.Unlock()
}

// Status returns the current status
func (s *Session) Status() PipelineStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// ContentID returns the id of the item being encoded
func (s *Session) ContentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.content.ID
}

// SessionStatus is the externally visible view of a session
type SessionStatus struct {
	ID            string               `json:"sessionId,omitempty"`
	ScreenID      string               `json:"screenId"`
	Variant       Variant              `json:"variant"`
	Status        PipelineStatus       `json:"status"`
	PID           int                  `json:"pid,omitempty"`
	Content       *models.PlaylistItem `json:"currentContent,omitempty"`
	ContentIndex  int                  `json:"contentIndex"`
	SourcePath    string               `json:"sourcePath,omitempty"`
	StartTime     *time.Time           `json:"startTime,omitempty"`
	UptimeSeconds int64                `json:"uptimeSeconds"`
	Encode        EncodeParams         `json:"encode"`
	Progress      Progress             `json:"progress"`
	LastError     string               `json:"lastError,omitempty"`
	OutputDir     string               `json:"outputDir,omitempty"`
	Manifest      *ManifestInfo        `json:"manifest,omitempty"`
}

// Snapshot copies the session into a SessionStatus
func (s *Session) Snapshot() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content := s.content
	st := SessionStatus{
		ID:           s.id,
		ScreenID:     s.screenID,
		Variant:      s.variant,
		Status:       s.status,
		Content:      &content,
		ContentIndex: s.contentIndex,
		SourcePath:   s.sourcePath,
		Encode:       s.params,
		Progress:     s.progress,
		LastError:    s.lastError,
		OutputDir:    s.outputDir,
	}
	if s.process != nil && s.status.IsRunning() {
		st.PID = s.process.PID()
	}
	if !s.startTime.IsZero() {
		start := s.startTime
		st.StartTime = &start
		end := time.Now()
		if !s.endTime.IsZero() {
			end = s.endTime
		}
		st.UptimeSeconds = int64(end.Sub(start).Seconds())
	}
	return st
}

// stoppedStatus is reported for a session that does not exist
func stoppedStatus(screenID string, variant Variant) SessionStatus {
	return SessionStatus{ScreenID: screenID, Variant: variant, Status: StatusStopped}
}

// sessionRegistry holds at most one session per screen and variant
type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[sessionKey]*Session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[sessionKey]*Session)}
}

func (r *sessionRegistry) Get(key sessionKey) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[key]
	return s, ok
}

func (r *sessionRegistry) Set(key sessionKey, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[key] = s
}

// Delete removes key only if it still maps to s
func (r *sessionRegistry) Delete(key sessionKey, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[key] == s {
		delete(r.sessions, key)
	}
}

// List returns all sessions ordered by screen then variant
func (r *sessionRegistry) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].screenID != out[j].screenID {
			return out[i].screenID < out[j].screenID
		}
		return out[i].variant < out[j].variant
	})
	return out
}

// Len returns the number of tracked sessions, including those in error
func (r *sessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
