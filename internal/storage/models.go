// Package storage mirrors finished and historical download state into
// a local sqlite database, independent of the per-download .state
// files the engine itself reads and writes. Nothing here gates an
// active download; it is a best-effort record for history, stats, and
// settings lookups.
package storage

import "gorm.io/gorm"

// HistoryEntry is a row for a download that reached a terminal state
// (completed, failed, or cancelled).
type HistoryEntry struct {
	ID              string `gorm:"primaryKey"`
	URL             string
	Filepath        string
	Filename        string
	Category        string `gorm:"index"`
	TotalSize       int64
	DownloadedBytes int64
	State           string `gorm:"index"`
	ErrorMessage    string
	CreatedAt       int64 // unix seconds
	FinishedAt      int64 // unix seconds

	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (HistoryEntry) TableName() string { return "history_entries" }

// DownloadLocation stores a saved destination directory with a nickname.
type DownloadLocation struct {
	Path     string `gorm:"primaryKey"`
	Nickname string
}

func (DownloadLocation) TableName() string { return "download_locations" }

// DailyStat accumulates bytes and files-completed per calendar day
// ("YYYY-MM-DD"), used to render lifetime/daily throughput stats.
type DailyStat struct {
	Date  string `gorm:"primaryKey"`
	Bytes int64  `gorm:"default:0"`
	Files int64  `gorm:"default:0"`
}

func (DailyStat) TableName() string { return "daily_stats" }

// AppSetting is a generic key/value row for persisted configuration
// that doesn't warrant its own table.
type AppSetting struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

func (AppSetting) TableName() string { return "app_settings" }

// SpeedTestHistory records a past network diagnostic run.
type SpeedTestHistory struct {
	ID             uint `gorm:"primaryKey"`
	DownloadMbps   float64
	UploadMbps     float64
	PingMs         int64
	JitterMs       int64
	ISP            string
	ServerName     string
	ServerLocation string
	Timestamp      int64 // unix seconds
}

func (SpeedTestHistory) TableName() string { return "speed_test_history" }
