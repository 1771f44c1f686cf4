package apiserver

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"fluxdl/internal/config"
	"fluxdl/internal/downloader"
	"fluxdl/internal/engine"
	"fluxdl/internal/events"
	"fluxdl/internal/logger"
	"fluxdl/internal/registry"
	"fluxdl/internal/stats"
	"fluxdl/internal/storage"
)

func testServer(t *testing.T) (*Server, *config.Manager) {
	t.Helper()

	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.NewManager(store)
	reg := registry.New()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	eng := engine.New(log, reg, events.NewLogSink(log))
	svc := downloader.New(log, eng, reg, store)
	statsManager := stats.NewManager(store)

	s := New(svc, cfg, statsManager, store, events.NewBroadcaster(), logger.NewLogBroadcaster(), log, t.TempDir())
	return s, cfg
}

func TestStatusRequiresToken(t *testing.T) {
	s, _ := testServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/status")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestStatusSucceedsWithValidToken(t *testing.T) {
	s, cfg := testServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/status", nil)
	req.Header.Set("X-Fluxdl-Token", cfg.ControlServerToken())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "running" {
		t.Errorf("status field = %v, want running", body["status"])
	}
}

func TestStartDownloadRejectsBadBody(t *testing.T) {
	s, cfg := testServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/downloads", bytes.NewBufferString("not json"))
	req.Header.Set("X-Fluxdl-Token", cfg.ControlServerToken())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestControlUnknownActionRejected(t *testing.T) {
	s, cfg := testServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	body, _ := json.Marshal(controlRequest{Action: "explode"})
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/downloads/missing-id/control", bytes.NewReader(body))
	req.Header.Set("X-Fluxdl-Token", cfg.ControlServerToken())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestEventStreamDeliversEmittedEvent(t *testing.T) {
	s, cfg := testServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	client := &http.Client{Timeout: 2 * time.Second}
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/events", nil)
	req.Header.Set("X-Fluxdl-Token", cfg.ControlServerToken())

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		s.events.Emit(events.Event{DownloadID: "abc", Kind: events.Progress, Bytes: 42})
	}()

	buf := make([]byte, 512)
	n, err := resp.Body.Read(buf)
	if err != nil && n == 0 {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Contains(buf[:n], []byte("abc")) {
		t.Errorf("expected streamed event to contain download id, got %q", buf[:n])
	}
}
