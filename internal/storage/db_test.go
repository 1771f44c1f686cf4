package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"fluxdl/internal/model"
)

func TestRecordAndListHistory(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	metadata := model.New("id-1", "https://example.com/a.zip", "/downloads/a.zip", 2048, 4, nil)
	metadata.DownloadedBytes = 2048
	metadata.Complete()

	require.NoError(t, store.RecordHistory(metadata))

	entries, err := store.ListHistory(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "id-1", entries[0].ID)
	require.Equal(t, "completed", entries[0].State)

	require.NoError(t, store.DeleteHistory("id-1"))
	entries, err = store.ListHistory(10)
	require.NoError(t, err)
	require.Len(t, entries, 0)
}

func TestIncrementDailyStat(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.IncrementDailyStat("2026-07-31", 1000, 1))
	require.NoError(t, store.IncrementDailyStat("2026-07-31", 500, 0))

	stats, err := store.ListDailyStats("2026-01-01")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	require.EqualValues(t, 1500, stats[0].Bytes)
	require.EqualValues(t, 1, stats[0].Files)
}

func TestSettingsRoundTrip(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.GetSetting("max_threads")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.SetSetting("max_threads", "8"))
	value, ok, err := store.GetSetting("max_threads")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "8", value)
}

func TestLocationsUpsert(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveLocation(DownloadLocation{Path: "/downloads/games", Nickname: "Gaming Drive"}))
	require.NoError(t, store.SaveLocation(DownloadLocation{Path: "/downloads/games", Nickname: "SSD Games"}))

	locs, err := store.ListLocations()
	require.NoError(t, err)
	require.Len(t, locs, 1)
	require.Equal(t, "SSD Games", locs[0].Nickname)
}
