package streaming

import (
	"testing"

	"github.com/jaisil18/tv-transmision-sub000/internal/apperr"
)

func TestPipelineStatus_IsValid(t *testing.T) {
	tests := []struct {
		name   string
		status PipelineStatus
		want   bool
	}{
		{"idle is valid", StatusIdle, true},
		{"starting is valid", StatusStarting, true},
		{"streaming is valid", StatusStreaming, true},
		{"error is valid", StatusError, true},
		{"stopped is valid", StatusStopped, true},
		{"invalid status", PipelineStatus("invalid"), false},
		{"empty status", PipelineStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.want {
				t.Errorf("PipelineStatus.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPipelineStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name     string
		from     PipelineStatus
		to       PipelineStatus
		expected bool
	}{
		// From Idle
		{"idle to starting", StatusIdle, StatusStarting, true},
		{"idle to streaming", StatusIdle, StatusStreaming, false},
		{"idle to stopped", StatusIdle, StatusStopped, false},

		// From Starting
		{"starting to streaming", StatusStarting, StatusStreaming, true},
		{"starting to error", StatusStarting, StatusError, true},
		{"starting to stopped", StatusStarting, StatusStopped, true},
		{"starting to idle", StatusStarting, StatusIdle, false},

		// From Streaming
		{"streaming to error", StatusStreaming, StatusError, true},
		{"streaming to stopped", StatusStreaming, StatusStopped, true},
		{"streaming to starting", StatusStreaming, StatusStarting, false},
		{"streaming to streaming", StatusStreaming, StatusStreaming, false},

		// From Error
		{"error to stopped", StatusError, StatusStopped, true},
		{"error to starting", StatusError, StatusStarting, false},

		// From Stopped
		{"stopped to starting", StatusStopped, StatusStarting, false},
		{"stopped to stopped", StatusStopped, StatusStopped, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.expected {
				t.Errorf("PipelineStatus.CanTransitionTo() from %s to %s = %v, want %v",
					tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestParseVariant(t *testing.T) {
	for _, v := range Variants {
		got, err := ParseVariant(string(v))
		if err != nil || got != v {
			t.Errorf("ParseVariant(%q) = %v, %v", v, got, err)
		}
	}

	if _, err := ParseVariant("dash"); !apperr.IsValidation(err) {
		t.Errorf("ParseVariant(dash) error = %v, want validation error", err)
	}
}
