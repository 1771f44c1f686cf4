// Package apiserver is the loopback HTTP control surface: a local
// automation script, the CLI's own status view, or a companion UI can
// drive downloads through it without linking against the engine
// directly. It never listens on anything but 127.0.0.1.
package apiserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fluxdl/internal/config"
	"fluxdl/internal/dlerror"
	"fluxdl/internal/downloader"
	"fluxdl/internal/events"
	"fluxdl/internal/logger"
	"fluxdl/internal/netdiag"
	"fluxdl/internal/stats"
	"fluxdl/internal/storage"
	"fluxdl/internal/updater"
)

// appVersion and the update-check repository are fixed at build time.
// There's no version file in this repo yet, so these are the values
// the update check compares against.
const (
	appVersion  = "1.0.0"
	updateOwner = "fluxdl"
	updateRepo  = "fluxdl"
)

// Server is the loopback control server. It is only reachable from the
// machine it runs on: the listener binds 127.0.0.1 explicitly and every
// handler double-checks the remote address as well, in case something
// upstream (a misconfigured proxy, a container NAT) nudges a request
// through.
type Server struct {
	downloads *downloader.Service
	cfg       *config.Manager
	stats     *stats.Manager
	store     *storage.Store
	events    *events.Broadcaster
	logs      *logger.LogBroadcaster
	logger    *slog.Logger
	audit     *AuditLogger
	router    *chi.Mux
}

// New builds a control server. dataDir is where the access log file is
// kept, independent of cfg's own settings store.
func New(downloads *downloader.Service, cfg *config.Manager, statsManager *stats.Manager, store *storage.Store, eventBus *events.Broadcaster, logBus *logger.LogBroadcaster, log *slog.Logger, dataDir string) *Server {
	s := &Server{
		downloads: downloads,
		cfg:       cfg,
		stats:     statsManager,
		store:     store,
		events:    eventBus,
		logs:      logBus,
		logger:    log,
		audit:     NewAuditLogger(log, dataDir),
		router:    chi.NewRouter(),
	}
	s.routes()
	return s
}

// Start binds the loopback listener and serves in the background. The
// returned error only reflects a bind failure; once serving starts,
// failures are logged rather than propagated since nothing is left to
// hand them to.
func (s *Server) Start() error {
	port := s.cfg.ControlServerPort()
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return dlerror.Wrap(dlerror.Network, "control server failed to bind "+addr, err)
	}

	s.logger.Info("control server listening", "addr", addr)
	go func() {
		if err := http.Serve(ln, s.router); err != nil {
			s.logger.Error("control server stopped", "error", err)
		}
	}()
	return nil
}

// Close flushes the audit log. It does not stop the listener: the
// server is meant to run for the lifetime of the process.
func (s *Server) Close() error {
	return s.audit.Close()
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(s.localhostOnly)
	s.router.Use(s.tokenAuth)
	s.router.Use(s.auditLog)

	s.router.Get("/v1/status", s.handleStatus)
	s.router.Post("/v1/downloads", s.handleStartDownload)
	s.router.Get("/v1/downloads", s.handleListDownloads)
	s.router.Get("/v1/downloads/{id}", s.handleGetDownload)
	s.router.Post("/v1/downloads/{id}/control", s.handleControlDownload)
	s.router.Get("/v1/events", s.handleEventStream)
	s.router.Get("/v1/logs", s.handleLogStream)
	s.router.Get("/v1/diagnostics/hosts", s.handleHostDiagnostics)
	s.router.Get("/v1/stats", s.handleStats)
	s.router.Post("/v1/diagnostics/speedtest", s.handleSpeedTest)
	s.router.Get("/v1/updates", s.handleCheckUpdate)
}

func (s *Server) localhostOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if host != "127.0.0.1" && host != "::1" {
			s.audit.Log(host, r.UserAgent(), requestAction(r), http.StatusForbidden, "external access denied")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) tokenAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Fluxdl-Token")
		if token == "" || token != s.cfg.ControlServerToken() {
			s.audit.Log(remoteHost(r), r.UserAgent(), requestAction(r), http.StatusUnauthorized, "invalid token")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// auditLog runs last in the middleware chain, recording a success entry
// for every request that clears the localhost and token checks. It
// wraps the ResponseWriter to capture the status the handler actually
// wrote.
func (s *Server) auditLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.audit.Log(remoteHost(r), r.UserAgent(), requestAction(r), rec.status, "authorized")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func requestAction(r *http.Request) string {
	return r.Method + " " + r.URL.Path
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	list := s.downloads.List()

	var totalBytes int64
	for _, m := range list {
		totalBytes += m.DownloadedBytes
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "running",
		"count":            len(list),
		"downloaded_bytes": totalBytes,
		"downloaded_human": humanize.Bytes(uint64(totalBytes)),
	})
}

type startRequest struct {
	URL         string `json:"url"`
	DestDir     string `json:"dest_dir"`
	Filename    string `json:"filename"`
	ThreadCount int    `json:"thread_count"`
}

func (s *Server) handleStartDownload(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if req.DestDir == "" {
		req.DestDir = s.cfg.DefaultDestDir()
	}
	if req.ThreadCount == 0 {
		req.ThreadCount = s.cfg.DefaultThreadCount()
	}

	metadata, err := s.downloads.Start(downloader.StartOptions{
		URL:            req.URL,
		DestDir:        req.DestDir,
		CustomFilename: req.Filename,
		ThreadCount:    req.ThreadCount,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, metadata)
}

func (s *Server) handleListDownloads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.downloads.List())
}

func (s *Server) handleGetDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, m := range s.downloads.List() {
		if m.ID == id {
			writeJSON(w, http.StatusOK, m)
			return
		}
	}
	http.Error(w, "not found", http.StatusNotFound)
}

type controlRequest struct {
	Action string `json:"action"` // pause, resume, stop, cancel
}

func (s *Server) handleControlDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	var err error
	switch req.Action {
	case "pause":
		err = s.downloads.Pause(id)
	case "resume":
		err = s.downloads.Resume(id)
	case "stop":
		err = s.downloads.Stop(id)
	case "cancel":
		err = s.downloads.Cancel(id)
	default:
		http.Error(w, "unknown action "+req.Action, http.StatusBadRequest)
		return
	}

	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleHostDiagnostics surfaces the engine's read-only per-host
// latency and success/error bookkeeping. It's diagnostic only: nothing
// reads this back into the engine, and thread_count stays whatever the
// operator set.
func (s *Server) handleHostDiagnostics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.downloads.HostDiagnostics())
}

// handleStats reports lifetime/daily byte totals, current aggregate
// speed, and disk usage on the configured default download directory.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.stats.Snapshot(s.cfg.DefaultDestDir())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// handleSpeedTest runs an on-demand network speed test and persists
// the result, independent of any running download.
func (s *Server) handleSpeedTest(w http.ResponseWriter, r *http.Request) {
	result, err := netdiag.Run(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if err := netdiag.Record(s.store, result); err != nil {
		s.logger.Warn("failed to record speed test result", "error", err)
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCheckUpdate reports whether a newer release is available.
func (s *Server) handleCheckUpdate(w http.ResponseWriter, r *http.Request) {
	release, err := updater.CheckForUpdate(appVersion, updateOwner, updateRepo)
	if err != nil {
		writeError(w, err)
		return
	}
	if release == nil {
		writeJSON(w, http.StatusOK, map[string]any{"up_to_date": true, "current_version": appVersion})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"up_to_date": false, "current_version": appVersion, "latest": release})
}

// handleEventStream is an SSE endpoint streaming progress and
// lifecycle events as they're emitted by the engine.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch, unsubscribe := s.events.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(e)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// handleLogStream is an SSE endpoint for live log tailing, used by a
// companion UI instead of tailing the JSON log file on disk.
func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch, unsubscribe := s.logs.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case line, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(line)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch dlerror.KindOf(err) {
	case dlerror.Config, dlerror.Parse:
		status = http.StatusBadRequest
	case dlerror.StateNotFound:
		status = http.StatusNotFound
	}
	http.Error(w, dlerror.FriendlyMessage(err), status)
}
