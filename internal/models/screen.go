package models

import (
	"encoding/json"
	"time"
)

// Screen is a display endpoint registered by the admin layer.
// LastSeen is epoch milliseconds.
type Screen struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Status         ScreenStatus `json:"status"`
	LastSeen       int64        `json:"lastSeen"`
	Muted          bool         `json:"muted"`
	IsRepeating    bool         `json:"isRepeating"`
	CurrentContent *string      `json:"currentContent,omitempty"`
	CreatedAt      *time.Time   `json:"createdAt,omitempty"`
}

// NewScreen creates an inactive screen with the default playback flags
func NewScreen(id, name string) Screen {
	now := time.Now().UTC()
	return Screen{
		ID:          id,
		Name:        name,
		Status:      ScreenInactive,
		Muted:       true,
		IsRepeating: true,
		CreatedAt:   &now,
	}
}

// UnmarshalJSON applies the muted/isRepeating defaults when the fields are absent
func (s *Screen) UnmarshalJSON(data []byte) error {
	type alias Screen
	decoded := alias{
		Muted:       true,
		IsRepeating: true,
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	if !decoded.Status.IsValid() {
		decoded.Status = ScreenInactive
	}
	*s = Screen(decoded)
	return nil
}

// LastSeenTime returns LastSeen as a time.Time
func (s Screen) LastSeenTime() time.Time {
	return time.UnixMilli(s.LastSeen)
}
