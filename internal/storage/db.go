package storage

import (
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"fluxdl/internal/dlerror"
	"fluxdl/internal/model"
)

// Store wraps a gorm/sqlite handle for the history, settings, and
// stats tables. Engine hot-path state never lives here.
type Store struct {
	db *gorm.DB
}

// Open creates (if needed) and migrates the sqlite database at
// <dataDir>/fluxdl.db.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, dlerror.Wrap(dlerror.FileSystem, "failed to create data directory", err)
	}

	dbPath := filepath.Join(dataDir, "fluxdl.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, dlerror.Wrap(dlerror.FileSystem, "failed to open database", err)
	}

	if err := db.AutoMigrate(
		&HistoryEntry{},
		&DownloadLocation{},
		&DailyStat{},
		&AppSetting{},
		&SpeedTestHistory{},
	); err != nil {
		return nil, dlerror.Wrap(dlerror.FileSystem, "failed to migrate database", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordHistory upserts a terminal-state snapshot of metadata. Errors
// are FileSystem-kind; callers should log and continue rather than
// fail the download over a history-mirror write.
func (s *Store) RecordHistory(metadata *model.Metadata) error {
	var finishedAt int64
	switch {
	case metadata.CompletedAt != nil:
		finishedAt = metadata.CompletedAt.Unix()
	case metadata.StoppedAt != nil:
		finishedAt = metadata.StoppedAt.Unix()
	}

	entry := HistoryEntry{
		ID:              metadata.ID,
		URL:             metadata.URL,
		Filepath:        metadata.Filepath,
		Filename:        filepath.Base(metadata.Filepath),
		TotalSize:       metadata.TotalSize,
		DownloadedBytes: metadata.DownloadedBytes,
		State:           string(metadata.State),
		ErrorMessage:    metadata.ErrorMessage,
		CreatedAt:       metadata.CreatedAt.Unix(),
		FinishedAt:      finishedAt,
	}

	if err := s.db.Save(&entry).Error; err != nil {
		return dlerror.Wrap(dlerror.FileSystem, "failed to record download history", err)
	}
	return nil
}

func (s *Store) ListHistory(limit int) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	q := s.db.Order("finished_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, dlerror.Wrap(dlerror.FileSystem, "failed to list download history", err)
	}
	return entries, nil
}

func (s *Store) DeleteHistory(id string) error {
	if err := s.db.Delete(&HistoryEntry{}, "id = ?", id).Error; err != nil {
		return dlerror.Wrap(dlerror.FileSystem, "failed to delete history entry", err)
	}
	return nil
}

// IncrementDailyStat adds bytes and files (0 or 1) to today's row,
// creating it if absent.
func (s *Store) IncrementDailyStat(date string, bytes int64, files int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var stat DailyStat
		err := tx.First(&stat, "date = ?", date).Error
		if err == gorm.ErrRecordNotFound {
			stat = DailyStat{Date: date}
		} else if err != nil {
			return err
		}
		stat.Bytes += bytes
		stat.Files += files
		return tx.Save(&stat).Error
	})
}

func (s *Store) ListDailyStats(since string) ([]DailyStat, error) {
	var stats []DailyStat
	if err := s.db.Where("date >= ?", since).Order("date asc").Find(&stats).Error; err != nil {
		return nil, dlerror.Wrap(dlerror.FileSystem, "failed to list daily stats", err)
	}
	return stats, nil
}

// LifetimeTotals sums bytes and files across every daily stat row.
func (s *Store) LifetimeTotals() (bytes int64, files int64, err error) {
	var stats []DailyStat
	if err := s.db.Find(&stats).Error; err != nil {
		return 0, 0, dlerror.Wrap(dlerror.FileSystem, "failed to sum lifetime stats", err)
	}
	for _, stat := range stats {
		bytes += stat.Bytes
		files += stat.Files
	}
	return bytes, files, nil
}

func (s *Store) SaveLocation(loc DownloadLocation) error {
	return s.db.Save(&loc).Error
}

func (s *Store) ListLocations() ([]DownloadLocation, error) {
	var locs []DownloadLocation
	if err := s.db.Find(&locs).Error; err != nil {
		return nil, dlerror.Wrap(dlerror.FileSystem, "failed to list download locations", err)
	}
	return locs, nil
}

func (s *Store) GetSetting(key string) (string, bool, error) {
	var setting AppSetting
	err := s.db.First(&setting, "key = ?", key).Error
	if err == gorm.ErrRecordNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, dlerror.Wrap(dlerror.FileSystem, "failed to read setting", err)
	}
	return setting.Value, true, nil
}

func (s *Store) SetSetting(key, value string) error {
	setting := AppSetting{Key: key, Value: value}
	if err := s.db.Save(&setting).Error; err != nil {
		return dlerror.Wrap(dlerror.FileSystem, "failed to write setting", err)
	}
	return nil
}

func (s *Store) RecordSpeedTest(entry SpeedTestHistory) error {
	if err := s.db.Create(&entry).Error; err != nil {
		return dlerror.Wrap(dlerror.FileSystem, "failed to record speed test", err)
	}
	return nil
}

func (s *Store) ListSpeedTests(limit int) ([]SpeedTestHistory, error) {
	var entries []SpeedTestHistory
	q := s.db.Order("timestamp desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, dlerror.Wrap(dlerror.FileSystem, "failed to list speed tests", err)
	}
	return entries, nil
}
