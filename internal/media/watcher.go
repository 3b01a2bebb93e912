package media

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jaisil18/tv-transmision-sub000/internal/logger"
	"github.com/jaisil18/tv-transmision-sub000/internal/models"
)

const (
	debounceWindow      = 500 * time.Millisecond
	settleDelay         = 100 * time.Millisecond
	defaultPollInterval = 2 * time.Second
)

// ChangeFunc receives the library-relative paths of new or rewritten media files
type ChangeFunc func(paths []string)

// Watcher reports new media files in the library using fsnotify, falling back
// to directory polling when inotify is unavailable.
type Watcher struct {
	root         string
	onChange     ChangeFunc
	pollInterval time.Duration

	fsw      *fsnotify.Watcher
	stopChan chan struct{}
	done     chan struct{}

	mu      sync.Mutex
	pending map[string]time.Time // relative path -> first seen
	started bool
	stopped bool
}

// NewWatcher creates a watcher for the library
func NewWatcher(library *Library, onChange ChangeFunc) *Watcher {
	return &Watcher{
		root:         library.Root(),
		onChange:     onChange,
		pollInterval: defaultPollInterval,
		stopChan:     make(chan struct{}),
		done:         make(chan struct{}),
		pending:      make(map[string]time.Time),
	}
}

// Start begins watching. The library root is created if missing.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return errors.New("watcher has been stopped")
	}
	if w.started {
		return nil
	}

	if err := os.MkdirAll(w.root, 0755); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("root", w.root).
			Msg("Failed to create fsnotify watcher, falling back to polling")
	} else {
		w.fsw = fsw
		if err := w.addTree(w.root); err != nil {
			logger.Log.Warn().
				Err(err).
				Str("root", w.root).
				Msg("Failed to watch media library, falling back to polling")
			_ = fsw.Close()
			w.fsw = nil
		}
	}

	w.started = true
	go w.run()

	logger.Log.Info().
		Str("root", w.root).
		Bool("using_fsnotify", w.fsw != nil).
		Msg("Media library watcher started")

	return nil
}

// Stop stops the watcher and waits for its goroutine
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped || !w.started {
		w.stopped = true
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.stopChan)
	if w.fsw != nil {
		if err := w.fsw.Close(); err != nil {
			logger.Log.Warn().Err(err).Msg("Error closing fsnotify watcher")
		}
	}
	<-w.done
}

func (w *Watcher) run() {
	defer close(w.done)
	if w.fsw != nil {
		w.watch()
		return
	}
	w.poll()
}

// addTree registers dir and every subdirectory with fsnotify
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) watch() {
	ticker := time.NewTicker(debounceWindow)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := w.addTree(event.Name); err != nil {
					logger.Log.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch new media folder")
				}
				continue
			}
			w.mark(event.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Log.Warn().
				Err(err).
				Msg("fsnotify error, continuing")
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	seen := make(map[string]time.Time)
	w.scan(seen, false)

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.scan(seen, true)
			w.flush()
		}
	}
}

// scan walks the library and marks files that are new or modified since the last scan
func (w *Watcher) scan(seen map[string]time.Time, notify bool) {
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if prev, ok := seen[path]; ok && !info.ModTime().After(prev) {
			return nil
		}
		seen[path] = info.ModTime()
		if notify {
			w.mark(path)
		}
		return nil
	})
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("root", w.root).
			Msg("Failed to scan media library during polling")
	}
}

func (w *Watcher) mark(path string) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return
	}
	if _, ok := models.KindForFile(name); !ok {
		return
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return
	}

	w.mu.Lock()
	if _, exists := w.pending[rel]; !exists {
		w.pending[rel] = time.Now()
	}
	w.mu.Unlock()
}

// flush reports pending files that have settled and still exist
func (w *Watcher) flush() {
	w.mu.Lock()
	var ready []string
	for rel, firstSeen := range w.pending {
		// Give the writer time to finish
		if time.Since(firstSeen) < settleDelay {
			continue
		}
		delete(w.pending, rel)
		if _, err := os.Stat(filepath.Join(w.root, rel)); err != nil {
			continue
		}
		ready = append(ready, filepath.ToSlash(rel))
	}
	w.mu.Unlock()

	if len(ready) == 0 || w.onChange == nil {
		return
	}
	sort.Strings(ready)

	logger.Log.Info().
		Strs("files", ready).
		Msg("New media files detected")
	w.onChange(ready)
}
