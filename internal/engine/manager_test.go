package engine

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fluxdl/internal/events"
	"fluxdl/internal/model"
	"fluxdl/internal/registry"
)

// terminalCapture is a test-only events.Sink that snapshots a
// download's metadata the instant it reaches a terminal state. finish()
// emits the terminal State event before it removes a completed
// download's registry entry, so reading the registry synchronously
// from Emit is race-free — unlike polling the registry afterward, which
// can never observe a Completed download once finish() has removed it.
type terminalCapture struct {
	reg  *registry.Registry
	done chan *model.Metadata
}

func newTerminalCapture(reg *registry.Registry) *terminalCapture {
	return &terminalCapture{reg: reg, done: make(chan *model.Metadata, 1)}
}

func (c *terminalCapture) Emit(e events.Event) {
	if e.Kind != events.State {
		return
	}
	if !model.LifecycleState(e.Status).IsTerminal() {
		return
	}
	metadata, ok := c.reg.Metadata(e.DownloadID)
	if !ok {
		return
	}
	select {
	case c.done <- metadata.Clone():
	default:
	}
}

func testEngine(t *testing.T) (*Engine, *registry.Registry, *terminalCapture) {
	t.Helper()
	reg := registry.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	capture := newTerminalCapture(reg)
	sink := events.Multi{Sinks: []events.Sink{events.NewLogSink(logger), capture}}
	return New(logger, reg, sink), reg, capture
}

func waitForTerminal(t *testing.T, capture *terminalCapture, timeout time.Duration) *model.Metadata {
	t.Helper()
	select {
	case metadata := <-capture.done:
		return metadata
	case <-time.After(timeout):
		t.Fatal("timed out waiting for download to reach a terminal state")
		return nil
	}
}

func TestStartDownloadsSmallFileToCompletion(t *testing.T) {
	content := bytes.Repeat([]byte("engine-test-payload-"), 1000)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "file.bin", time.Time{}, bytes.NewReader(content))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "file.bin")

	eng, reg, capture := testEngine(t)
	metadata, err := eng.Start(StartOptions{
		URL:         srv.URL,
		Filepath:    dest,
		TotalSize:   int64(len(content)),
		ThreadCount: 4,
	})
	require.NoError(t, err)

	final := waitForTerminal(t, capture, 5*time.Second)
	require.Equal(t, model.Completed, final.State)
	require.EqualValues(t, len(content), final.DownloadedBytes)

	_, ok := reg.Metadata(metadata.ID)
	require.False(t, ok, "registry entry should be removed after successful completion")

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.True(t, bytes.Equal(content, got))
}

func TestPauseThenResumeCompletesDownload(t *testing.T) {
	content := bytes.Repeat([]byte("x"), 2*1024*1024) // forces multiple 512KiB chunks

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		http.ServeContent(w, r, "file.bin", time.Time{}, bytes.NewReader(content))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "file.bin")

	eng, reg, capture := testEngine(t)
	metadata, err := eng.Start(StartOptions{
		URL:         srv.URL,
		Filepath:    dest,
		TotalSize:   int64(len(content)),
		ThreadCount: 2,
	})
	require.NoError(t, err)

	// 2 threads against 4 chunks (2MiB / 512KiB tier) and a 100ms
	// per-request server delay means the first round of 2 chunks lands
	// around t=100ms and the second around t=200ms; pausing at 150ms
	// reliably lands mid-flight, with some chunks already completed and
	// some still in progress — exercising the path a pause-before-
	// anything-finishes test would miss entirely.
	time.Sleep(150 * time.Millisecond)
	require.NoError(t, eng.Pause(metadata.ID))

	paused, ok := reg.Metadata(metadata.ID)
	require.True(t, ok)
	require.Equal(t, model.Paused, paused.State)
	require.NotEmpty(t, paused.CompletedChunks, "expected at least one chunk completed before pause")

	for _, idx := range paused.CompletedChunks {
		require.NotContains(t, paused.IncompleteChunks, idx, "a completed chunk must not also be listed incomplete")
	}

	require.NoError(t, eng.Resume(metadata.ID))
	final := waitForTerminal(t, capture, 5*time.Second)
	require.Equal(t, model.Completed, final.State)
	require.EqualValues(t, len(content), final.DownloadedBytes)

	counts := make(map[int64]int)
	for _, idx := range final.CompletedChunks {
		counts[idx]++
	}
	for idx, n := range counts {
		require.Equalf(t, 1, n, "chunk %d appears %d times in completed_chunks, want 1", idx, n)
	}

	_, ok = reg.Metadata(metadata.ID)
	require.False(t, ok, "registry entry should be removed after successful completion")
}
