// Package netdiag runs an on-demand network speed test against the
// nearest public speedtest.net server, for the same reason a user
// checks their raw connection speed before blaming a slow download on
// the engine: it isolates throughput from anything fluxdl itself does.
package netdiag

import (
	"context"
	"fmt"
	"time"

	"github.com/showwin/speedtest-go/speedtest"

	"fluxdl/internal/dlerror"
	"fluxdl/internal/storage"
)

// Result is one completed speed test run.
type Result struct {
	DownloadMbps   float64
	UploadMbps     float64
	PingMs         int64
	ServerName     string
	ServerLocation string
	ISP            string
	Timestamp      time.Time
}

// Run executes a full ping/download/upload test against the closest
// available server, bounded by ctx.
func Run(ctx context.Context) (*Result, error) {
	user, err := speedtest.FetchUserInfo()
	if err != nil {
		return nil, dlerror.Wrap(dlerror.Network, "no internet connection", err)
	}

	servers, err := speedtest.FetchServers()
	if err != nil {
		return nil, dlerror.Wrap(dlerror.Network, "failed to fetch speed test servers", err)
	}

	targets, err := servers.FindServer(nil)
	if err != nil || len(targets) == 0 {
		return nil, dlerror.New(dlerror.Network, "no speed test servers available")
	}
	server := targets[0]

	if err := server.PingTestContext(ctx, nil); err != nil {
		return nil, dlerror.Wrap(dlerror.Network, "ping test failed", err)
	}
	if err := server.DownloadTestContext(ctx); err != nil {
		return nil, dlerror.Wrap(dlerror.Network, "download test failed", err)
	}
	if err := server.UploadTestContext(ctx); err != nil {
		return nil, dlerror.Wrap(dlerror.Network, "upload test failed", err)
	}

	return &Result{
		DownloadMbps:   float64(server.DLSpeed) / 1000 / 1000 * 8,
		UploadMbps:     float64(server.ULSpeed) / 1000 / 1000 * 8,
		PingMs:         server.Latency.Milliseconds(),
		ServerName:     server.Name,
		ServerLocation: fmt.Sprintf("%s, %s", server.Name, server.Country),
		ISP:            user.Isp,
		Timestamp:      time.Now().UTC(),
	}, nil
}

// Record persists a Result to the speed test history table.
func Record(store *storage.Store, r *Result) error {
	return store.RecordSpeedTest(storage.SpeedTestHistory{
		DownloadMbps:   r.DownloadMbps,
		UploadMbps:     r.UploadMbps,
		PingMs:         r.PingMs,
		ISP:            r.ISP,
		ServerName:     r.ServerName,
		ServerLocation: r.ServerLocation,
		Timestamp:      r.Timestamp.Unix(),
	})
}
