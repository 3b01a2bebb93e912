package media

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jaisil18/tv-transmision-sub000/internal/apperr"
	"github.com/jaisil18/tv-transmision-sub000/internal/models"
)

// Library resolves playlist references to files under a root directory
type Library struct {
	root string
}

// NewLibrary creates a library rooted at root
func NewLibrary(root string) *Library {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = filepath.Clean(root)
	}
	return &Library{root: abs}
}

// Root returns the absolute library root
func (l *Library) Root() string {
	return l.root
}

// Resolve maps a library-relative path to an absolute path of an existing
// regular file. Paths escaping the root and missing files are NotFound.
func (l *Library) Resolve(relativePath string) (string, error) {
	abs, err := l.join(relativePath)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperr.NotFound("media.resolve", relativePath, "source file does not exist")
		}
		return "", apperr.Storage("media.resolve", abs, err)
	}
	if info.IsDir() {
		return "", apperr.NotFound("media.resolve", relativePath, "path is a directory, not a file")
	}

	return abs, nil
}

// ListFolder returns the playable files directly inside folder, sorted by name
func (l *Library) ListFolder(folder string) ([]models.MediaFile, error) {
	dir, err := l.join(folder)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.NotFound("media.list", folder, "folder does not exist")
		}
		return nil, apperr.Storage("media.list", dir, err)
	}

	files := make([]models.MediaFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		kind, ok := models.KindForFile(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info
			continue
		}
		files = append(files, models.MediaFile{
			Name:         entry.Name(),
			RelativePath: filepath.ToSlash(filepath.Join(strings.Trim(folder, "/"), entry.Name())),
			Kind:         kind,
			Size:         info.Size(),
			ModTime:      info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// FolderItems derives playlist items from the files in folder
func (l *Library) FolderItems(folder string) ([]models.PlaylistItem, error) {
	files, err := l.ListFolder(folder)
	if err != nil {
		return nil, err
	}

	items := make([]models.PlaylistItem, 0, len(files))
	for _, f := range files {
		items = append(items, models.PlaylistItem{
			ID:   f.RelativePath,
			Name: f.Name,
			URL:  f.RelativePath,
			Type: f.Kind,
		})
	}
	return items, nil
}

// join cleans a library-relative path and rejects anything outside the root
func (l *Library) join(relativePath string) (string, error) {
	cleaned := filepath.Clean("/" + filepath.FromSlash(strings.TrimSpace(relativePath)))
	abs := filepath.Join(l.root, cleaned)

	rel, err := filepath.Rel(l.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", apperr.NotFound("media.resolve", relativePath, "path is outside the media library")
	}
	return abs, nil
}
