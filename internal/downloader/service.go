// Package downloader is the command surface: it wires the engine,
// registry, persistence, and HTTP probing behind the operations a
// caller actually invokes (inspect a URL, start, pause, resume, stop,
// cancel). The control server and CLI both sit on top of this package
// rather than touching the engine directly.
package downloader

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"fluxdl/internal/dlerror"
	"fluxdl/internal/engine"
	"fluxdl/internal/httpclient"
	"fluxdl/internal/model"
	"fluxdl/internal/persistence"
	"fluxdl/internal/registry"
	"fluxdl/internal/storage"
)

// DefaultThreadCount matches the reference implementation's default
// when a caller doesn't specify one.
const DefaultThreadCount = 8

type Service struct {
	logger   *slog.Logger
	engine   *engine.Engine
	registry *registry.Registry
	store    *storage.Store
}

func New(logger *slog.Logger, eng *engine.Engine, reg *registry.Registry, store *storage.Store) *Service {
	return &Service{logger: logger, engine: eng, registry: reg, store: store}
}

// Details describes a URL before a download is started.
type Details struct {
	Filename string
	Size     int64
}

// Inspect probes a URL for its size and suggested filename without
// starting a download.
func (s *Service) Inspect(url string) (Details, error) {
	fd, err := httpclient.Probe(httpclient.NewProbeClient(), url)
	if err != nil {
		return Details{}, err
	}
	return Details{Filename: fd.Filename, Size: fd.Size}, nil
}

// StartOptions is the caller-facing request to begin a new download.
type StartOptions struct {
	URL            string
	DestDir        string
	CustomFilename string
	ThreadCount    int
}

// Start probes the URL, resolves a collision-free destination path,
// and hands the rest off to the engine.
func (s *Service) Start(opts StartOptions) (*model.Metadata, error) {
	fd, err := httpclient.Probe(httpclient.NewProbeClient(), opts.URL)
	if err != nil {
		return nil, err
	}

	filename := opts.CustomFilename
	if filename == "" {
		filename = fd.Filename
	}
	filename = httpclient.Sanitize(filename)

	threadCount := opts.ThreadCount
	if threadCount < 1 {
		threadCount = DefaultThreadCount
	}

	dest := uniquePath(filepath.Join(opts.DestDir, filename))

	return s.engine.Start(engine.StartOptions{
		URL:         opts.URL,
		Filepath:    dest,
		TotalSize:   fd.Size,
		ThreadCount: threadCount,
	})
}

func (s *Service) Pause(id string) error  { return s.engine.Pause(id) }
func (s *Service) Resume(id string) error { return s.engine.Resume(id) }
func (s *Service) Stop(id string) error   { return s.engine.Stop(id) }

// Cancel stops the download, deletes its state file, and removes its
// partial output file.
func (s *Service) Cancel(id string) error {
	metadata, ok := s.registry.Metadata(id)
	if !ok {
		return dlerror.New(dlerror.Config, "unknown download id "+id)
	}
	if err := s.engine.Cancel(id); err != nil {
		return err
	}
	s.registry.Remove(id)
	if err := os.Remove(metadata.Filepath); err != nil && !os.IsNotExist(err) {
		return dlerror.Wrap(dlerror.FileSystem, "failed to remove partial file", err)
	}
	return nil
}

// List returns every download the registry currently knows about.
func (s *Service) List() []*model.Metadata {
	return s.registry.List()
}

// HostDiagnostics returns the engine's read-only per-host latency and
// success/error bookkeeping, for observability only.
func (s *Service) HostDiagnostics() map[string]engine.HostStats {
	return s.engine.HostDiagnostics()
}

// RecoverAll loads persisted state for each of the given output paths
// and re-registers it as Paused, ready for an explicit Resume. It does
// not restart workers on its own: a process restart should not
// silently resume network activity.
func (s *Service) RecoverAll(paths []string) {
	for _, path := range paths {
		metadata, err := persistence.Load(path)
		if err != nil {
			if dlerror.KindOf(err) != dlerror.StateNotFound {
				s.logger.Warn("failed to load persisted state", "path", path, "error", err)
			}
			continue
		}
		if metadata.State.IsActive() {
			metadata.Pause()
		}
		control := model.NewControlBlock()
		control.SetCompletedChunks(metadata.CompletedChunks)
		control.DownloadedBytes.Store(metadata.DownloadedBytes)
		s.registry.Register(metadata, control)
	}
}

// uniquePath appends " (2)", " (3)", ... before the extension until it
// finds a path that doesn't already exist, so a new download never
// silently overwrites a finished one.
func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 2; ; i++ {
		candidate := base + " (" + strconv.Itoa(i) + ")" + ext
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
