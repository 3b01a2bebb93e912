// Package presence implements the websocket presence bus: screens and
// administrators hold one duplex connection each, screens report heartbeats,
// and the server fans out directed and broadcast events.
package presence

import (
	"fmt"

	"github.com/jaisil18/tv-transmision-sub000/internal/apperr"
)

// Role tags what holds a presence connection
type Role string

// Connection roles
const (
	RoleScreen Role = "screen"
	RoleAdmin  Role = "admin"
)

// ParseRole validates a role selector supplied at connect time
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleScreen, RoleAdmin:
		return Role(s), nil
	default:
		return "", apperr.Validation("presence.accept", fmt.Sprintf("unknown connection type %q (must be screen or admin)", s))
	}
}

// EventKind identifies a server-to-client message
type EventKind string

// Server-to-client message kinds
const (
	EventConnected      EventKind = "connected"
	EventHeartbeat      EventKind = "heartbeat"
	EventPong           EventKind = "pong"
	EventContentUpdated EventKind = "content-updated"
	EventFilesUploaded  EventKind = "files-uploaded"
	EventPlaylistUpdate EventKind = "playlist-updated"
	EventRefresh        EventKind = "refresh"
	EventNavigate       EventKind = "navigate"
	EventMute           EventKind = "mute"
	EventMosaicToggle   EventKind = "mosaic-toggle"
	EventMosaicShow     EventKind = "mosaic-show"
	EventMosaicHide     EventKind = "mosaic-hide"
)

// IsCommand reports whether the kind is a directed screen command
func (k EventKind) IsCommand() bool {
	switch k {
	case EventRefresh, EventNavigate, EventMute, EventMosaicToggle, EventMosaicShow, EventMosaicHide:
		return true
	}
	return false
}

// Navigation directions
const (
	DirectionNext     = "next"
	DirectionPrevious = "previous"
)

// Event is a server-to-client message. Only the fields relevant to Type are set.
type Event struct {
	Type       EventKind `json:"type"`
	Timestamp  int64     `json:"timestamp"`
	ClientID   string    `json:"clientId,omitempty"`
	ScreenID   string    `json:"screenId,omitempty"`
	ScreenIDs  []string  `json:"screenIds,omitempty"`
	PlaylistID string    `json:"playlistId,omitempty"`
	Files      []string  `json:"files,omitempty"`
	Direction  string    `json:"direction,omitempty"`
	Muted      *bool     `json:"muted,omitempty"`
}

// Global reports whether a content-updated event applies to every screen
func (e Event) Global() bool {
	return e.Type == EventContentUpdated && e.ScreenID == ""
}

// clientMessage is a client-to-server message
type clientMessage struct {
	Type string `json:"type"`
}

// Client-to-server message kinds
const (
	clientHeartbeat = "heartbeat"
	clientPing      = "ping"
)

// CommandPayload carries the kind-specific fields of a directed command
type CommandPayload struct {
	Direction string `json:"direction,omitempty"`
	Muted     *bool  `json:"muted,omitempty"`
}

// validateCommand checks that kind is a command and payload has its required fields
func validateCommand(kind EventKind, payload CommandPayload) error {
	if !kind.IsCommand() {
		return apperr.Validation("presence.command", fmt.Sprintf("unknown command %q", kind))
	}
	switch kind {
	case EventNavigate:
		if payload.Direction != DirectionNext && payload.Direction != DirectionPrevious {
			return apperr.Validation("presence.command", "navigate requires direction next or previous")
		}
	case EventMute:
		if payload.Muted == nil {
			return apperr.Validation("presence.command", "mute requires a muted flag")
		}
	}
	return nil
}
