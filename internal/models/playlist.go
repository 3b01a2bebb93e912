package models

import "time"

// PlaylistItem is one media reference in a playlist rotation
type PlaylistItem struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	URL             string    `json:"url"`
	Type            MediaKind `json:"type"`
	DurationSeconds *int      `json:"duration,omitempty"`
}

// Playlist is an ordered rotation assigned to one or more screens.
// When Folder is set, items are derived from the folder contents instead of Items.
type Playlist struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Items     []PlaylistItem `json:"items"`
	Screens   []string       `json:"screens"`
	Folder    *string        `json:"folder,omitempty"`
	IsActive  bool           `json:"isActive"`
	CreatedAt *time.Time     `json:"createdAt,omitempty"`
	UpdatedAt *time.Time     `json:"updatedAt,omitempty"`
}

// HasScreen reports whether the playlist is assigned to the screen
func (p Playlist) HasScreen(screenID string) bool {
	for _, id := range p.Screens {
		if id == screenID {
			return true
		}
	}
	return false
}

// IsFolderBound reports whether membership comes from a media folder
func (p Playlist) IsFolderBound() bool {
	return p.Folder != nil && *p.Folder != ""
}
