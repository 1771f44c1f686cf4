// Package stats tracks lifetime and daily download totals and reports
// free disk space on the volume downloads land on.
package stats

import (
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"fluxdl/internal/storage"
)

const bytesPerGB = 1024 * 1024 * 1024

// DiskUsage describes free/used space on a download destination's
// volume.
type DiskUsage struct {
	UsedGB  float64 `json:"used_gb"`
	FreeGB  float64 `json:"free_gb"`
	TotalGB float64 `json:"total_gb"`
	Percent float64 `json:"percent"`
}

// Snapshot is the aggregate statistics view a dashboard would render.
type Snapshot struct {
	LifetimeBytes int64            `json:"lifetime_bytes"`
	LifetimeFiles int64            `json:"lifetime_files"`
	DailyHistory  map[string]int64 `json:"daily_history"`
	DiskUsage     DiskUsage        `json:"disk_usage"`
	CurrentSpeed  int64            `json:"current_speed_bps"`
}

// Manager aggregates per-download byte counts into the daily/lifetime
// totals kept in the store, and reports the last aggregate transfer
// speed handed to SetCurrentSpeed.
type Manager struct {
	store        *storage.Store
	currentSpeed int64 // atomic, bytes/sec across all active downloads
}

func NewManager(store *storage.Store) *Manager {
	return &Manager{store: store}
}

// SetCurrentSpeed records the instantaneous aggregate download speed.
// No component in this module calls it, so CurrentSpeed reports 0
// until a caller does.
func (m *Manager) SetCurrentSpeed(bytesPerSec int64) {
	atomic.StoreInt64(&m.currentSpeed, bytesPerSec)
}

func (m *Manager) CurrentSpeed() int64 {
	return atomic.LoadInt64(&m.currentSpeed)
}

// TrackCompletedFile records bytes downloaded and increments today's
// file count. It returns the store's error; the caller logs it rather
// than failing the download it's recording.
func (m *Manager) TrackCompletedFile(bytes int64) error {
	today := time.Now().UTC().Format("2006-01-02")
	return m.store.IncrementDailyStat(today, bytes, 1)
}

// DailyHistory returns the last n days of daily byte totals, keyed by
// date.
func (m *Manager) DailyHistory(days int) (map[string]int64, error) {
	since := time.Now().UTC().AddDate(0, 0, -days).Format("2006-01-02")
	rows, err := m.store.ListDailyStats(since)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Date] = row.Bytes
	}
	return out, nil
}

// DiskUsageFor reports free/used space on the volume containing path.
func DiskUsageFor(path string) DiskUsage {
	volume := filepath.VolumeName(path)
	switch {
	case volume != "":
		volume += string(filepath.Separator)
	case path != "":
		volume = path
	default:
		volume = "/"
	}

	usage, err := disk.Usage(volume)
	if err != nil {
		return DiskUsage{}
	}
	return DiskUsage{
		UsedGB:  float64(usage.Used) / bytesPerGB,
		FreeGB:  float64(usage.Free) / bytesPerGB,
		TotalGB: float64(usage.Total) / bytesPerGB,
		Percent: usage.UsedPercent,
	}
}

// Snapshot assembles the full statistics view for a given download
// destination directory.
func (m *Manager) Snapshot(destDir string) (Snapshot, error) {
	bytesTotal, filesTotal, err := m.store.LifetimeTotals()
	if err != nil {
		return Snapshot{}, err
	}
	daily, err := m.DailyHistory(7)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		LifetimeBytes: bytesTotal,
		LifetimeFiles: filesTotal,
		DailyHistory:  daily,
		DiskUsage:     DiskUsageFor(destDir),
		CurrentSpeed:  m.CurrentSpeed(),
	}, nil
}
