package imagestore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSniffMediaType(t *testing.T) {
	cases := []struct {
		name    string
		content []byte
		want    string
	}{
		{"png", []byte("\x89PNG\r\n\x1a\nrest"), "image/png"},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "image/jpeg"},
		{"webp", append([]byte("RIFF0000"), []byte("WEBPVP8 ")...), "image/webp"},
		{"gif", []byte("GIF89a..."), "image/gif"},
		{"unknown defaults to png", []byte("not an image"), "image/png"},
	}
	for _, c := range cases {
		if got := SniffMediaType(c.content); got != c.want {
			t.Errorf("%s: SniffMediaType() = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestStoreSaveReadDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	content := []byte("\x89PNG\r\n\x1a\nfakepixels")
	path, mediaType, err := store.Save("abc123", content)
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if mediaType != "image/png" {
		t.Errorf("expected image/png, got %s", mediaType)
	}
	if filepath.Ext(path) != ".png" {
		t.Errorf("expected .png extension, got %s", path)
	}

	got, err := store.Read(path)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if string(got) != string(content) {
		t.Error("read content does not match saved content")
	}

	if err := store.Delete(path); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected file to be removed")
	}
}
