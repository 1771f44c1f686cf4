package engine

import (
	"time"

	"fluxdl/internal/model"
	"fluxdl/internal/registry"
)

// runMonitor periodically mirrors the control block's live byte
// counter into the registry's metadata so readers (the control
// server, CLI progress output) see up-to-date numbers without
// touching the hot path themselves. It never syncs completed_chunks
// on this interval to avoid lock contention; that list is synced once
// at pause/stop/cancel time instead.
func runMonitor(done <-chan struct{}, id string, control *model.ControlBlock, reg *registry.Registry) {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !control.ShouldContinue() {
				return
			}
			metadata, ok := reg.Metadata(id)
			if !ok {
				return
			}
			clone := metadata.Clone()
			clone.DownloadedBytes = control.DownloadedBytes.Load()
			reg.UpdateMetadata(id, clone)
		}
	}
}
