// Package streaming runs one encoder process per screen and delivery variant,
// selecting content from wall-clock time and pruning expired HLS segments.
package streaming

import (
	"errors"
	"fmt"

	"github.com/jaisil18/tv-transmision-sub000/internal/apperr"
)

// PipelineStatus represents the lifecycle state of a pipeline session
type PipelineStatus string

// Pipeline status constants
const (
	StatusIdle      PipelineStatus = "idle"      // Session created, encoder not launched
	StatusStarting  PipelineStatus = "starting"  // Encoder process launching
	StatusStreaming PipelineStatus = "streaming" // Encoder running
	StatusError     PipelineStatus = "error"     // Launch failed or encoder crashed
	StatusStopped   PipelineStatus = "stopped"   // Stopped on request or exited normally
)

// Common errors
var (
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrManagerStopped         = errors.New("pipeline manager has been stopped")
)

// String returns the string representation of the status
func (s PipelineStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a known valid value
func (s PipelineStatus) IsValid() bool {
	switch s {
	case StatusIdle, StatusStarting, StatusStreaming, StatusError, StatusStopped:
		return true
	default:
		return false
	}
}

// transitions is the pipeline state machine
var transitions = map[PipelineStatus][]PipelineStatus{
	StatusIdle:      {StatusStarting},
	StatusStarting:  {StatusStreaming, StatusError, StatusStopped},
	StatusStreaming: {StatusError, StatusStopped},
	StatusError:     {StatusStopped},
	StatusStopped:   {},
}

// CanTransitionTo checks if a transition from the current status to next is valid
func (s PipelineStatus) CanTransitionTo(next PipelineStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsRunning reports whether an encoder process may be alive in this status
func (s PipelineStatus) IsRunning() bool {
	return s == StatusStarting || s == StatusStreaming
}

// Variant is a delivery output of the pipeline
type Variant string

// Delivery variants
const (
	VariantStream Variant = "stream" // persistent low-latency RTMP output
	VariantHLS    Variant = "hls"    // segmented HTTP delivery
)

// Variants lists every delivery variant
var Variants = []Variant{VariantStream, VariantHLS}

// ParseVariant validates a variant name
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantStream, VariantHLS:
		return Variant(s), nil
	default:
		return "", apperr.Validation("streaming.variant", fmt.Sprintf("unknown variant %q (must be stream or hls)", s))
	}
}

// sessionKey identifies the single live session per screen and variant
type sessionKey struct {
	screenID string
	variant  Variant
}

func (k sessionKey) String() string {
	return k.screenID + "/" + string(k.variant)
}
