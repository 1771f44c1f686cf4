// Command fluxdl runs the download engine as a long-lived background
// process: a loopback control server and an IPC bridge front the same
// command surface, so a CLI script, a browser extension, or a future
// UI can all drive it without linking against the engine directly.
package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"fluxdl/internal/apiserver"
	"fluxdl/internal/config"
	"fluxdl/internal/downloader"
	"fluxdl/internal/engine"
	"fluxdl/internal/events"
	"fluxdl/internal/ipcbridge"
	"fluxdl/internal/lifecycle"
	"fluxdl/internal/logger"
	"fluxdl/internal/organizer"
	"fluxdl/internal/registry"
	"fluxdl/internal/stats"
	"fluxdl/internal/storage"
)

func main() {
	dataDir, err := defaultDataDir()
	if err != nil {
		println("failed to resolve data directory:", err.Error())
		os.Exit(1)
	}

	logBroadcaster := logger.NewLogBroadcaster()
	log, err := logger.NewWithSink(dataDir, os.Stdout, logBroadcaster)
	if err != nil {
		println("failed to initialize logger:", err.Error())
		os.Exit(1)
	}

	store, err := storage.Open(dataDir)
	if err != nil {
		log.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	cfg := config.NewManager(store)
	reg := registry.New()
	eventBus := events.NewBroadcaster()
	statsManager := stats.NewManager(store)
	org := organizer.New(cfg.OrganizeDownloads())
	history := downloader.NewHistorySink(log, reg, store, statsManager, org)
	sink := events.Multi{Sinks: []events.Sink{events.NewLogSink(log), eventBus, history}}

	eng := engine.New(log, reg, sink)
	downloads := downloader.New(log, eng, reg, store)

	recoverExisting(downloads, dataDir, log)

	server := apiserver.New(downloads, cfg, statsManager, store, eventBus, logBroadcaster, log, dataDir)
	if err := server.Start(); err != nil {
		log.Error("control server failed to start", "error", err)
	}
	defer server.Close()

	bridge := ipcbridge.New(log, func(req ipcbridge.DownloadRequest) {
		if _, err := downloads.Start(downloader.StartOptions{
			URL:            req.URL,
			DestDir:        cfg.DefaultDestDir(),
			CustomFilename: req.Filename,
			ThreadCount:    cfg.DefaultThreadCount(),
		}); err != nil {
			log.Error("failed to start download from ipc request", "url", req.URL, "error", err)
		}
	})
	if err := bridge.Start(); err != nil {
		log.Error("ipc bridge failed to start", "error", err)
	}

	log.Info("fluxdl ready", "data_dir", dataDir, "control_port", cfg.ControlServerPort())

	lifecycle.WaitForSignal(func() {
		log.Info("shutting down")
		_ = bridge.Stop()
	})
}

func defaultDataDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "fluxdl"), nil
}

// recoverExisting scans <dataDir>/downloads for leftover ".state" files
// from a previous run and re-registers them as Paused, ready for an
// explicit resume. It never restarts network activity on its own. Only
// that directory is scanned: downloads saved under the configured
// DefaultDestDir (empty unless set, meaning the working directory) or
// any other directory are not recovered.
func recoverExisting(downloads *downloader.Service, dataDir string, log *slog.Logger) {
	downloadDir := filepath.Join(dataDir, "downloads")
	if err := os.MkdirAll(downloadDir, 0755); err != nil {
		log.Warn("failed to create default download directory", "error", err)
		return
	}

	entries, err := os.ReadDir(downloadDir)
	if err != nil {
		log.Warn("failed to scan download directory for recovery", "error", err)
		return
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".state") {
			continue
		}
		original := strings.TrimSuffix(entry.Name(), ".state")
		paths = append(paths, filepath.Join(downloadDir, original))
	}
	downloads.RecoverAll(paths)
}
