package store

import (
	"context"

	"github.com/jaisil18/tv-transmision-sub000/internal/apperr"
	"github.com/jaisil18/tv-transmision-sub000/internal/models"
)

// ScreenRegistry is the persisted list of screens
type ScreenRegistry struct {
	doc *Document[[]models.Screen]
}

// NewScreenRegistry creates a screen registry backed by the document at path
func NewScreenRegistry(path string) *ScreenRegistry {
	return &ScreenRegistry{
		doc: NewDocument(path, func() []models.Screen { return []models.Screen{} }),
	}
}

// Path returns the backing document path
func (r *ScreenRegistry) Path() string {
	return r.doc.Path()
}

// Read returns all screens
func (r *ScreenRegistry) Read(ctx context.Context) ([]models.Screen, error) {
	screens, err := r.doc.Read(ctx)
	if screens == nil {
		screens = []models.Screen{}
	}
	return screens, err
}

// Write replaces the whole registry
func (r *ScreenRegistry) Write(ctx context.Context, screens []models.Screen) error {
	if screens == nil {
		screens = []models.Screen{}
	}
	return r.doc.Write(ctx, screens)
}

// Update performs a serialized read-modify-write of the registry
func (r *ScreenRegistry) Update(ctx context.Context, fn func([]models.Screen) ([]models.Screen, bool, error)) ([]models.Screen, error) {
	return r.doc.Update(ctx, func(screens []models.Screen) ([]models.Screen, bool, error) {
		if screens == nil {
			screens = []models.Screen{}
		}
		return fn(screens)
	})
}

// Get returns the screen with the given id
func (r *ScreenRegistry) Get(ctx context.Context, id string) (models.Screen, error) {
	screens, err := r.Read(ctx)
	if err != nil {
		return models.Screen{}, err
	}
	for _, s := range screens {
		if s.ID == id {
			return s, nil
		}
	}
	return models.Screen{}, apperr.NotFound("screens.get", id, "screen not registered")
}

// Exists reports whether a screen with the given id is registered
func (r *ScreenRegistry) Exists(ctx context.Context, id string) (bool, error) {
	if _, err := r.Get(ctx, id); err != nil {
		if apperr.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// PlaylistRegistry is the persisted list of playlists
type PlaylistRegistry struct {
	doc *Document[[]models.Playlist]
}

// NewPlaylistRegistry creates a playlist registry backed by the document at path
func NewPlaylistRegistry(path string) *PlaylistRegistry {
	return &PlaylistRegistry{
		doc: NewDocument(path, func() []models.Playlist { return []models.Playlist{} }),
	}
}

// Path returns the backing document path
func (r *PlaylistRegistry) Path() string {
	return r.doc.Path()
}

// Read returns all playlists
func (r *PlaylistRegistry) Read(ctx context.Context) ([]models.Playlist, error) {
	playlists, err := r.doc.Read(ctx)
	if playlists == nil {
		playlists = []models.Playlist{}
	}
	return playlists, err
}

// Write replaces the whole registry
func (r *PlaylistRegistry) Write(ctx context.Context, playlists []models.Playlist) error {
	if playlists == nil {
		playlists = []models.Playlist{}
	}
	return r.doc.Write(ctx, playlists)
}

// Get returns the playlist with the given id
func (r *PlaylistRegistry) Get(ctx context.Context, id string) (models.Playlist, error) {
	playlists, err := r.Read(ctx)
	if err != nil {
		return models.Playlist{}, err
	}
	for _, p := range playlists {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Playlist{}, apperr.NotFound("playlists.get", id, "playlist not found")
}

// ForScreen returns the first active playlist assigned to the screen, or nil
func (r *PlaylistRegistry) ForScreen(ctx context.Context, screenID string) (*models.Playlist, error) {
	playlists, err := r.Read(ctx)
	if err != nil {
		return nil, err
	}
	for i := range playlists {
		if playlists[i].IsActive && playlists[i].HasScreen(screenID) {
			p := playlists[i]
			return &p, nil
		}
	}
	return nil, nil
}
