package models

// ScreenStatus is the liveness state of a screen
type ScreenStatus string

// Screen status constants
const (
	ScreenActive   ScreenStatus = "active"
	ScreenInactive ScreenStatus = "inactive"
)

// IsValid checks if the status is a known value
func (s ScreenStatus) IsValid() bool {
	return s == ScreenActive || s == ScreenInactive
}

// MediaKind distinguishes still images from videos in a playlist
type MediaKind string

// Media kind constants
const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)
