package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageswarm/internal/report"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	return s, path
}

func TestStore_SaveGet(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	item := &HistoryItem{
		Config:  RunConfig{TargetURL: "https://www.example.com/", Users: 10, MaxHops: 3},
		Summary: report.Summary{Total: 10, Successful: 9, Failed: 1, SuccessRate: 90, MeanLoadTimeMs: 812.5},
	}
	require.NoError(t, s.Save(item))
	assert.NotEmpty(t, item.ID)
	assert.False(t, item.Timestamp.IsZero())

	got, err := s.Get(item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Config, got.Config)
	assert.Equal(t, 9, got.Summary.Successful)
	assert.InDelta(t, 812.5, got.Summary.MeanLoadTimeMs, 1e-9)
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListNewestFirst(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.Save(&HistoryItem{Config: RunConfig{Users: i}}))
		time.Sleep(2 * time.Millisecond)
	}

	items, err := s.List()
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, 3, items[0].Config.Users)
	assert.Equal(t, 2, items[1].Config.Users)
	assert.Equal(t, 1, items[2].Config.Users)
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	s, path := openTemp(t)
	item := &HistoryItem{Config: RunConfig{TargetURL: "http://localhost:8080/"}}
	require.NoError(t, s.Save(item))
	require.NoError(t, s.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	items, err := s.List()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, item.ID, items[0].ID)
}

func TestStore_EmptyList(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	items, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, items)
}
