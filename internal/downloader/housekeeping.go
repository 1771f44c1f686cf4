package downloader

import (
	"log/slog"

	"fluxdl/internal/events"
	"fluxdl/internal/model"
	"fluxdl/internal/organizer"
	"fluxdl/internal/registry"
	"fluxdl/internal/stats"
	"fluxdl/internal/storage"
)

// HistorySink listens for terminal-state events and performs the
// best-effort side effects a completed or failed download triggers:
// mirroring it into the history table, rolling it into the daily/
// lifetime byte totals, and handing finished files to the organizer.
// None of this feeds back into the engine; a failure here is logged
// and swallowed rather than surfaced to the download itself.
type HistorySink struct {
	logger    *slog.Logger
	registry  *registry.Registry
	store     *storage.Store
	stats     *stats.Manager
	organizer *organizer.Organizer
}

func NewHistorySink(logger *slog.Logger, reg *registry.Registry, store *storage.Store, statsManager *stats.Manager, org *organizer.Organizer) *HistorySink {
	return &HistorySink{logger: logger, registry: reg, store: store, stats: statsManager, organizer: org}
}

func (h *HistorySink) Emit(e events.Event) {
	if e.Kind != events.State {
		return
	}
	state := model.LifecycleState(e.Status)
	if !state.IsTerminal() {
		return
	}

	metadata, ok := h.registry.Metadata(e.DownloadID)
	if !ok {
		return
	}

	if err := h.store.RecordHistory(metadata); err != nil {
		h.logger.Warn("failed to record download history", "id", e.DownloadID, "error", err)
	}

	if state != model.Completed {
		return
	}

	if err := h.stats.TrackCompletedFile(metadata.DownloadedBytes); err != nil {
		h.logger.Warn("failed to update stats", "id", e.DownloadID, "error", err)
	}

	if newPath, err := h.organizer.Move(metadata.Filepath); err != nil {
		h.logger.Warn("failed to organize completed file", "id", e.DownloadID, "error", err)
	} else if newPath != metadata.Filepath {
		h.logger.Info("organized completed download", "id", e.DownloadID, "path", newPath)
	}
}
