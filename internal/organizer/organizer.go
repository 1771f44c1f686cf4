// Package organizer sorts completed downloads into category
// subfolders (Images, Videos, Music, ...) so a download directory
// doesn't become a flat pile of unrelated files.
package organizer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fluxdl/internal/dlerror"
)

// Category classifies a filename by extension.
func Category(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".svg":
		return "Images"
	case ".mp4", ".mkv", ".mov", ".avi", ".webm", ".wmv":
		return "Videos"
	case ".mp3", ".wav", ".flac", ".aac", ".ogg", ".m4a":
		return "Music"
	case ".zip", ".rar", ".7z", ".tar", ".gz", ".iso":
		return "Archives"
	case ".pdf", ".docx", ".xlsx", ".pptx", ".txt", ".md":
		return "Documents"
	case ".exe", ".msi", ".dmg", ".pkg", ".deb":
		return "Software"
	default:
		return "Others"
	}
}

// Organizer moves finished downloads into a category subfolder beneath
// their own directory. It can be disabled entirely, in which case Move
// is a no-op returning the original path.
type Organizer struct {
	enabled bool
}

func New(enabled bool) *Organizer {
	return &Organizer{enabled: enabled}
}

// Move relocates the file at path into a category subfolder of its
// parent directory, returning the final path. If a file already
// occupies the target name, a " (n)" suffix is appended before the
// extension, same as the collision handling download starts use.
func (o *Organizer) Move(path string) (string, error) {
	if !o.enabled {
		return path, nil
	}

	filename := filepath.Base(path)
	category := Category(filename)
	targetDir := filepath.Join(filepath.Dir(path), category)

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return path, dlerror.Wrap(dlerror.FileSystem, "failed to create category directory", err)
	}

	target := findAvailablePath(filepath.Join(targetDir, filename))
	if err := os.Rename(path, target); err != nil {
		return path, dlerror.Wrap(dlerror.FileSystem, "failed to move file into category directory", err)
	}
	return target, nil
}

func findAvailablePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	ext := filepath.Ext(path)
	dir := filepath.Dir(path)
	nameOnly := strings.TrimSuffix(filepath.Base(path), ext)

	for i := 2; i < 1000; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", nameOnly, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
	return filepath.Join(dir, fmt.Sprintf("%s_overflow%s", nameOnly, ext))
}
