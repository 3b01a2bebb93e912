package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jaisil18/tv-transmision-sub000/internal/apperr"
	"github.com/jaisil18/tv-transmision-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScreenRegistry_GetAndExists(t *testing.T) {
	ctx := context.Background()
	reg := NewScreenRegistry(filepath.Join(t.TempDir(), "screens.json"))

	require.NoError(t, reg.Write(ctx, []models.Screen{
		models.NewScreen("s1", "Lobby"),
		models.NewScreen("s2", "Cafeteria"),
	}))

	screen, err := reg.Get(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, "Cafeteria", screen.Name)

	_, err = reg.Get(ctx, "missing")
	assert.True(t, apperr.IsNotFound(err))

	ok, err := reg.Exists(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reg.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScreenRegistry_NullDocumentReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screens.json")
	require.NoError(t, os.WriteFile(path, []byte("null"), 0644))

	screens, err := NewScreenRegistry(path).Read(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, screens)
	assert.Empty(t, screens)
}

func TestScreenRegistry_UpdatePersists(t *testing.T) {
	ctx := context.Background()
	reg := NewScreenRegistry(filepath.Join(t.TempDir(), "screens.json"))

	_, err := reg.Update(ctx, func(screens []models.Screen) ([]models.Screen, bool, error) {
		return append(screens, models.NewScreen("s1", "Lobby")), true, nil
	})
	require.NoError(t, err)

	screens, err := reg.Read(ctx)
	require.NoError(t, err)
	require.Len(t, screens, 1)
	assert.Equal(t, "s1", screens[0].ID)
}

func TestPlaylistRegistry_ForScreen(t *testing.T) {
	ctx := context.Background()
	reg := NewPlaylistRegistry(filepath.Join(t.TempDir(), "playlists.json"))

	require.NoError(t, reg.Write(ctx, []models.Playlist{
		{ID: "p0", Name: "Old", Screens: []string{"s1"}, IsActive: false},
		{ID: "p1", Name: "Morning", Screens: []string{"s1", "s2"}, IsActive: true},
		{ID: "p2", Name: "Evening", Screens: []string{"s1"}, IsActive: true},
	}))

	playlist, err := reg.ForScreen(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, playlist)
	assert.Equal(t, "p1", playlist.ID)

	playlist, err = reg.ForScreen(ctx, "s3")
	require.NoError(t, err)
	assert.Nil(t, playlist)

	_, err = reg.Get(ctx, "nope")
	assert.True(t, apperr.IsNotFound(err))
}
