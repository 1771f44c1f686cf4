// Package engine runs the concurrent chunked download itself: the
// worker pool, the monitor, adaptive retry, and the completion gate.
// It owns no long-lived registry state of its own; the registry and
// persistence packages hold that, so the engine can be handed a
// download, run it to a terminal state, and forget about it.
package engine

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"fluxdl/internal/dlerror"
	"fluxdl/internal/events"
	"fluxdl/internal/fsalloc"
	"fluxdl/internal/httpclient"
	"fluxdl/internal/model"
	"fluxdl/internal/persistence"
	"fluxdl/internal/registry"
)

// Engine starts, resumes, and controls downloads. One Engine is
// shared by every download in the process.
type Engine struct {
	logger    *slog.Logger
	registry  *registry.Registry
	sink      events.Sink
	allocator *fsalloc.Allocator
	hosts     *HostTracker

	runsMu sync.Mutex
	runs   map[string]chan struct{} // download id -> monitor-stop channel
}

func New(logger *slog.Logger, reg *registry.Registry, sink events.Sink) *Engine {
	return &Engine{
		logger:    logger,
		registry:  reg,
		sink:      sink,
		allocator: fsalloc.New(),
		hosts:     NewHostTracker(),
		runs:      make(map[string]chan struct{}),
	}
}

// HostDiagnostics returns a read-only snapshot of per-host latency and
// success/error counters accumulated across every download this Engine
// has run. It never feeds back into worker scheduling.
func (e *Engine) HostDiagnostics() map[string]HostStats {
	return e.hosts.Snapshot()
}

// StartOptions configures a brand new download.
type StartOptions struct {
	URL         string
	Filepath    string
	TotalSize   int64
	ThreadCount int
}

// Start allocates the output file, registers fresh metadata and a
// control block, and launches the worker pool. It returns immediately
// once workers are launched; the caller observes progress via events
// or by polling the registry.
func (e *Engine) Start(opts StartOptions) (*model.Metadata, error) {
	if opts.ThreadCount < 1 {
		opts.ThreadCount = 1
	}

	if err := e.allocator.Allocate(opts.Filepath, opts.TotalSize); err != nil {
		return nil, err
	}

	chunkSize := model.ChunkSize(opts.TotalSize)
	totalChunks := model.TotalChunks(opts.TotalSize, chunkSize)
	incomplete := make([]int64, totalChunks)
	for i := range incomplete {
		incomplete[i] = int64(i)
	}

	id := uuid.New().String()
	metadata := model.New(id, opts.URL, opts.Filepath, opts.TotalSize, opts.ThreadCount, incomplete)
	metadata.State = model.Active
	control := model.NewControlBlock()

	e.registry.Register(metadata, control)
	if err := persistence.Save(metadata); err != nil {
		e.logger.Warn("failed to persist initial state", "id", id, "error", err)
	}

	e.run(metadata, control, chunkSize, totalChunks)
	return metadata, nil
}

// Resume restarts a paused or stopped download from its persisted
// state, bumping the control block's generation so any lingering
// workers from a prior run recognize themselves as stale and exit.
func (e *Engine) Resume(id string) error {
	metadata, ok := e.registry.Metadata(id)
	if !ok {
		return dlerror.New(dlerror.Config, "unknown download id "+id)
	}
	if !metadata.State.CanResume() {
		return dlerror.New(dlerror.Config, "download is not in a resumable state: "+string(metadata.State))
	}

	control, ok := e.registry.Control(id)
	if !ok {
		control = model.NewControlBlock()
		e.registry.Register(metadata, control)
	}
	control.SetCompletedChunks(metadata.CompletedChunks)
	control.DownloadedBytes.Store(metadata.DownloadedBytes)
	control.Generation.Add(1)
	control.Signal.Store(model.SignalRun)

	metadata = metadata.Clone()
	metadata.Resume()
	e.registry.UpdateMetadata(id, metadata)

	chunkSize := model.ChunkSize(metadata.TotalSize)
	totalChunks := model.TotalChunks(metadata.TotalSize, chunkSize)
	e.run(metadata, control, chunkSize, totalChunks)
	return nil
}

// Pause signals workers to stop and persists resumable state.
//
// Pause/Stop/Cancel are not atomic with respect to in-flight workers:
// a worker mid-read finishes its current loop iteration before
// observing the new signal, matching the reference engine's behavior.
// The metadata saved here reflects whatever completed_chunks the
// control block has accumulated at the moment of the call, not a
// synchronized snapshot after every worker has actually exited.
func (e *Engine) Pause(id string) error {
	return e.stopWith(id, model.SignalPause, (*model.Metadata).Pause)
}

// Stop behaves like Pause but marks the download Stopped rather than
// Paused; both states are resumable, the distinction is presentational.
func (e *Engine) Stop(id string) error {
	return e.stopWith(id, model.SignalStop, (*model.Metadata).Stop)
}

// Cancel signals workers to stop, deletes the persisted state file,
// and marks the download Cancelled. The partial output file is left
// in place; callers that want it removed do so themselves.
func (e *Engine) Cancel(id string) error {
	if err := e.stopWith(id, model.SignalCancel, (*model.Metadata).Cancel); err != nil {
		return err
	}
	metadata, ok := e.registry.Metadata(id)
	if ok {
		if err := persistence.Delete(metadata.Filepath); err != nil {
			e.logger.Warn("failed to delete state file on cancel", "id", id, "error", err)
		}
	}
	return nil
}

func (e *Engine) stopWith(id string, signal uint32, transition func(*model.Metadata)) error {
	control, ok := e.registry.Control(id)
	if !ok {
		return dlerror.New(dlerror.Config, "unknown download id "+id)
	}
	metadata, ok := e.registry.Metadata(id)
	if !ok {
		return dlerror.New(dlerror.Config, "unknown download id "+id)
	}

	control.Signal.Store(signal)
	e.stopMonitor(id)

	updated := metadata.Clone()
	updated.DownloadedBytes = control.DownloadedBytes.Load()
	updated.CompletedChunks = control.CompletedChunks()

	chunkSize := model.ChunkSize(updated.TotalSize)
	totalChunks := model.TotalChunks(updated.TotalSize, chunkSize)
	updated.IncompleteChunks = remainingChunks(totalChunks, updated.CompletedChunks)

	transition(updated)
	e.registry.UpdateMetadata(id, updated)

	if err := persistence.Save(updated); err != nil {
		return err
	}
	return nil
}

// remainingChunks returns every chunk index in [0, totalChunks) not
// present in completed, so a paused or stopped download's persisted
// IncompleteChunks never includes a chunk that's already landed — a
// stale full list here would have Resume re-lease and re-download
// chunks that finished before the pause, duplicating their entries in
// completed_chunks and inflating downloaded_bytes past total_size.
func remainingChunks(totalChunks int64, completed []int64) []int64 {
	done := make(map[int64]bool, len(completed))
	for _, idx := range completed {
		done[idx] = true
	}
	out := make([]int64, 0, totalChunks-int64(len(completed)))
	for i := int64(0); i < totalChunks; i++ {
		if !done[i] {
			out = append(out, i)
		}
	}
	return out
}

// run launches the worker pool and monitor for a download that is
// either starting fresh or resuming, then watches for completion in
// the background.
func (e *Engine) run(metadata *model.Metadata, control *model.ControlBlock, chunkSize, totalChunks int64) {
	generation := control.Generation.Load()
	client := httpclient.NewWorkerClient(metadata.ThreadCount)
	queue := model.NewChunkQueue(metadata.IncompleteChunks)
	retries := model.NewRetryCounts()

	stop := make(chan struct{})
	e.runsMu.Lock()
	e.runs[metadata.ID] = stop
	e.runsMu.Unlock()
	go runMonitor(stop, metadata.ID, control, e.registry)

	var wg sync.WaitGroup
	for i := 0; i < metadata.ThreadCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j := &job{
				downloadID:  metadata.ID,
				url:         metadata.URL,
				filepath:    metadata.Filepath,
				chunkSize:   chunkSize,
				totalSize:   metadata.TotalSize,
				totalChunks: totalChunks,
				generation:  generation,
				client:      client,
				queue:       queue,
				retries:     retries,
				control:     control,
				sink:        e.sink,
				hosts:       e.hosts,
			}
			if err := runWorker(j); err != nil {
				e.logger.Error("worker exited with error", "id", metadata.ID, "error", err)
			}
		}()
	}

	go func() {
		wg.Wait()
		e.finish(metadata.ID, control, totalChunks)
	}()
}

func (e *Engine) stopMonitor(id string) {
	e.runsMu.Lock()
	stop, ok := e.runs[id]
	if ok {
		delete(e.runs, id)
	}
	e.runsMu.Unlock()
	if ok {
		close(stop)
	}
}

// finish runs once every worker for a run has returned. If the
// control signal is still "run", every chunk drained on its own and
// the download is verified and marked complete; otherwise a pause,
// stop, or cancel interrupted it and finish leaves state as already
// persisted by that command.
func (e *Engine) finish(id string, control *model.ControlBlock, totalChunks int64) {
	e.stopMonitor(id)

	if !control.ShouldContinue() {
		return
	}

	metadata, ok := e.registry.Metadata(id)
	if !ok {
		return
	}

	downloadedBytes := control.DownloadedBytes.Load()
	completedCount := int64(control.CompletedCount())

	updated := metadata.Clone()
	updated.DownloadedBytes = downloadedBytes
	updated.CompletedChunks = control.CompletedChunks()

	if err := verifyComplete(downloadedBytes, metadata.TotalSize, completedCount, totalChunks); err != nil {
		updated.Fail(err.Error())
		e.registry.UpdateMetadata(id, updated)
		persistence.Save(updated)
		e.sink.Emit(events.Event{DownloadID: id, Kind: events.State, Status: string(updated.State)})
		return
	}

	updated.Complete()
	e.registry.UpdateMetadata(id, updated)
	if err := persistence.Delete(updated.Filepath); err != nil {
		e.logger.Warn("failed to delete state file on completion", "id", id, "error", err)
	}
	e.sink.Emit(events.Event{DownloadID: id, Kind: events.State, Status: string(updated.State)})
	e.registry.Remove(id)
}
