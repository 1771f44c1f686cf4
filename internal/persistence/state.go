// Package persistence saves, loads, and deletes the per-download
// state file next to its partial output file.
package persistence

import (
	"encoding/json"
	"os"

	"fluxdl/internal/dlerror"
	"fluxdl/internal/model"
)

// StateFilePath returns "<filepath>.state".
func StateFilePath(filepath string) string {
	return filepath + ".state"
}

// Save serializes metadata as pretty JSON and writes it to its state
// path. Callers invoke this on every lifecycle transition a restart
// must observe: pause, stop, resume-begin, fail.
func Save(metadata *model.Metadata) error {
	path := StateFilePath(metadata.Filepath)

	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return dlerror.Wrap(dlerror.Serialization, "failed to serialize download metadata", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return dlerror.Wrap(dlerror.FileSystem, "failed to write state file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return dlerror.Wrap(dlerror.FileSystem, "failed to replace state file", err)
	}
	return nil
}

// Load reads and deserializes the state file for filepath. Returns a
// StateNotFound error if the path does not exist.
func Load(filepath string) (*model.Metadata, error) {
	path := StateFilePath(filepath)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dlerror.Wrap(dlerror.StateNotFound, path, err)
		}
		return nil, dlerror.Wrap(dlerror.FileSystem, "failed to read state file", err)
	}

	var metadata model.Metadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, dlerror.Wrap(dlerror.Serialization, "failed to deserialize download metadata", err)
	}
	return &metadata, nil
}

// Delete removes the state file for filepath. Absence is not an
// error: used on cancel and on successful completion.
func Delete(filepath string) error {
	path := StateFilePath(filepath)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return dlerror.Wrap(dlerror.FileSystem, "failed to delete state file", err)
	}
	return nil
}

// Exists reports whether a state file is present for filepath.
func Exists(filepath string) bool {
	_, err := os.Stat(StateFilePath(filepath))
	return err == nil
}
