// Package imagestore persists uploaded diagram images to a filesystem
// root, sniffing the real media type from file contents rather than
// trusting the caller-supplied Content-Type. Ported from original_source's
// AnalysisRepository._save_image / AnalysisController._guess_content_type.
package imagestore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// Store writes and reads image blobs under a root directory, one file per
// analysis ID.
type Store struct {
	root string
}

// New creates a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{root: dir}, nil
}

// SniffMediaType inspects the leading bytes of content and returns its real
// MIME type, defaulting to image/png when no signature matches (mirroring
// the original's fallback default).
func SniffMediaType(content []byte) string {
	switch {
	case bytes.HasPrefix(content, []byte("\x89PNG\r\n\x1a\n")):
		return "image/png"
	case len(content) >= 12 && bytes.Equal(content[8:12], []byte("WEBP")):
		return "image/webp"
	case len(content) >= 2 && content[0] == 0xFF && content[1] == 0xD8:
		return "image/jpeg"
	case bytes.HasPrefix(content, []byte("GIF87a")), bytes.HasPrefix(content, []byte("GIF89a")):
		return "image/gif"
	default:
		return "image/png"
	}
}

var extByMediaType = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// Save writes content under id, naming the file by the sniffed media type,
// and returns the path written plus the sniffed media type.
func (s *Store) Save(id string, content []byte) (path string, mediaType string, err error) {
	mediaType = SniffMediaType(content)
	ext, ok := extByMediaType[mediaType]
	if !ok {
		ext = "png"
	}
	path = filepath.Join(s.root, id+"."+ext)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", "", fmt.Errorf("write image: %w", err)
	}
	return path, mediaType, nil
}

// Read loads the image bytes at path.
func (s *Store) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Delete removes the image file at path, ignoring a missing file.
func (s *Store) Delete(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}
