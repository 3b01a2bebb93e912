package models

import (
	"path/filepath"
	"strings"
	"time"
)

var (
	imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".bmp": true}
	videoExtensions = map[string]bool{".mp4": true, ".mov": true, ".mkv": true, ".webm": true, ".avi": true, ".m4v": true}
)

// MediaFile describes a file found in the media library
type MediaFile struct {
	Name         string    `json:"name"`
	RelativePath string    `json:"path"`
	Kind         MediaKind `json:"type"`
	Size         int64     `json:"size"`
	ModTime      time.Time `json:"modifiedAt"`
}

// KindForFile returns the media kind implied by a file extension
func KindForFile(name string) (MediaKind, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case imageExtensions[ext]:
		return MediaImage, true
	case videoExtensions[ext]:
		return MediaVideo, true
	default:
		return "", false
	}
}
