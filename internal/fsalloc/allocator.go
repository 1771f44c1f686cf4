// Package fsalloc preallocates the sparse output file a download
// streams its chunks into.
package fsalloc

import (
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"

	"fluxdl/internal/dlerror"
)

// diskSpaceBuffer is kept free beyond the download's own size so a
// large download doesn't leave the volume at zero free space.
const diskSpaceBuffer = 100 * 1024 * 1024

// Allocator creates the sparse output file for a download.
type Allocator struct{}

func New() *Allocator { return &Allocator{} }

// Allocate creates path and sets its length to size by writing a
// single terminating byte at offset size-1, without writing the
// intermediate zeros. It runs synchronously and must complete before
// any worker opens the file. Returns a FileSystem error if the
// directory is absent, unwritable, or too small.
func (a *Allocator) Allocate(path string, size int64) error {
	if size <= 0 {
		return dlerror.New(dlerror.Config, "cannot allocate a file of non-positive size")
	}

	if err := a.checkDiskSpace(path, size); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); err != nil {
		return dlerror.Wrap(dlerror.FileSystem, "target directory does not exist", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return dlerror.Wrap(dlerror.FileSystem, "failed to create output file", err)
	}
	defer f.Close()

	if _, err := f.Seek(size-1, 0); err != nil {
		return dlerror.Wrap(dlerror.FileSystem, "failed to seek to preallocation offset", err)
	}
	if _, err := f.Write([]byte{0}); err != nil {
		return dlerror.Wrap(dlerror.FileSystem, "failed to write terminating byte", err)
	}

	return nil
}

func (a *Allocator) checkDiskSpace(path string, required int64) error {
	dir := filepath.Dir(path)
	usage, err := disk.Usage(dir)
	if err != nil {
		// The directory may not exist yet; the Allocate caller's own
		// Stat check surfaces that more specifically.
		return nil
	}
	if int64(usage.Free) < required+diskSpaceBuffer {
		return dlerror.New(dlerror.FileSystem, "insufficient free disk space for this download")
	}
	return nil
}
