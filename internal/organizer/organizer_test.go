package organizer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCategory(t *testing.T) {
	tests := []struct {
		filename string
		expected string
	}{
		{"movie.mp4", "Videos"},
		{"song.mp3", "Music"},
		{"archive.zip", "Archives"},
		{"doc.pdf", "Documents"},
		{"setup.exe", "Software"},
		{"random.xyz", "Others"},
		{"image.jpg", "Images"},
	}

	for _, tt := range tests {
		if got := Category(tt.filename); got != tt.expected {
			t.Errorf("Category(%s) = %s, want %s", tt.filename, got, tt.expected)
		}
	}
}

func TestMoveRelocatesIntoCategoryFolder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "movie.mp4")
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	o := New(true)
	moved, err := o.Move(path)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}

	want := filepath.Join(dir, "Videos", "movie.mp4")
	if moved != want {
		t.Errorf("moved = %q, want %q", moved, want)
	}
	if _, err := os.Stat(moved); err != nil {
		t.Errorf("expected file at %q: %v", moved, err)
	}
}

func TestMoveDisabledIsNoOp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "movie.mp4")
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	o := New(false)
	moved, err := o.Move(path)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if moved != path {
		t.Errorf("moved = %q, want unchanged %q", moved, path)
	}
}

func TestMoveAvoidsCollision(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.mp3")
	if err := os.WriteFile(path, []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "Music"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Music", "song.mp3"), []byte("b"), 0644); err != nil {
		t.Fatal(err)
	}

	o := New(true)
	moved, err := o.Move(path)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	want := filepath.Join(dir, "Music", "song (2).mp3")
	if moved != want {
		t.Errorf("moved = %q, want %q", moved, want)
	}
}
