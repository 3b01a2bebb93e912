// Package store persists whole JSON documents (screen and playlist registries)
// with default-value self-healing on missing or corrupt files.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/jaisil18/tv-transmision-sub000/internal/apperr"
	"github.com/jaisil18/tv-transmision-sub000/internal/logger"
)

const (
	dirPerm        = 0755
	filePerm       = 0644
	lockSuffix     = ".lock"
	lockRetryDelay = 25 * time.Millisecond
)

// ReadDocument parses the JSON document at path. A missing, empty, or
// unparseable file is overwritten with defaultValue, which is returned.
// Any other read error is a StorageFailure and leaves the file untouched.
func ReadDocument[T any](path string, defaultValue T) (T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Log.Error().
				Err(err).
				Str("path", path).
				Msg("Failed to read document")
			return defaultValue, apperr.Storage("store.read", path, err)
		}

		logger.Log.Info().
			Str("path", path).
			Msg("Document missing, writing default value")
		return defaultValue, WriteDocument(path, defaultValue)
	}

	var value T
	if len(bytes.TrimSpace(data)) == 0 {
		err = errors.New("empty document")
	} else {
		err = json.Unmarshal(data, &value)
	}
	if err != nil {
		// Replacing the file discards whatever was there. Keep a log line with the
		// size so a genuinely corrupted registry can at least be noticed.
		logger.Log.Warn().
			Err(err).
			Str("path", path).
			Int("bytes", len(data)).
			Msg("Document unreadable, replacing with default value")
		return defaultValue, WriteDocument(path, defaultValue)
	}

	return value, nil
}

// WriteDocument ensures the parent directory exists and replaces the file
// with the JSON encoding of value.
func WriteDocument[T any](path string, value T) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return apperr.Storage("store.encode", path, err)
	}
	data = append(data, '\n')

	if err := writeFileAtomic(path, data); err != nil {
		logger.Log.Error().
			Err(err).
			Str("path", path).
			Msg("Failed to write document")
		return apperr.Storage("store.write", path, err)
	}

	return nil
}

// writeFileAtomic writes data to a temp file in the target directory and renames it into place
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	defer func() {
		if tempFile != nil {
			_ = tempFile.Close()
			_ = os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, filePerm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	tempFile = nil

	return nil
}

// Document serializes access to one JSON document. Mutations inside the
// process go through a mutex and mutations across processes through an
// advisory lock file next to the document.
type Document[T any] struct {
	path         string
	defaultValue func() T
	mu           sync.Mutex
	lock         *flock.Flock
}

// NewDocument creates a document handle. defaultValue is called for every
// self-heal so callers never share a default instance.
func NewDocument[T any](path string, defaultValue func() T) *Document[T] {
	return &Document[T]{
		path:         path,
		defaultValue: defaultValue,
		lock:         flock.New(path + lockSuffix),
	}
}

// Path returns the document's file path
func (d *Document[T]) Path() string {
	return d.path
}

// Read returns the current document value
func (d *Document[T]) Read(ctx context.Context) (T, error) {
	var value T
	err := d.withLock(ctx, func() error {
		var readErr error
		value, readErr = ReadDocument(d.path, d.defaultValue())
		return readErr
	})
	return value, err
}

// Write replaces the document with value
func (d *Document[T]) Write(ctx context.Context, value T) error {
	return d.withLock(ctx, func() error {
		return WriteDocument(d.path, value)
	})
}

// Update performs a serialized read-modify-write. fn receives the current
// value and returns the new value and whether it changed; unchanged values
// are not written back.
func (d *Document[T]) Update(ctx context.Context, fn func(T) (T, bool, error)) (T, error) {
	var result T
	err := d.withLock(ctx, func() error {
		current, err := ReadDocument(d.path, d.defaultValue())
		if err != nil {
			return err
		}

		next, changed, err := fn(current)
		if err != nil {
			return err
		}
		result = next
		if !changed {
			return nil
		}

		return WriteDocument(d.path, next)
	})
	return result, err
}

// withLock runs fn while holding both the in-process and the file lock
func (d *Document[T]) withLock(ctx context.Context, fn func() error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(d.path), dirPerm); err != nil {
		return apperr.Storage("store.lock", d.path, err)
	}

	locked, err := d.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return apperr.Storage("store.lock", d.path, err)
	}
	if !locked {
		return apperr.Storage("store.lock", d.path, errors.New("lock not acquired"))
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			logger.Log.Warn().
				Err(err).
				Str("path", d.path).
				Msg("Failed to release document lock")
		}
	}()

	return fn()
}
