package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageswarm/internal/report"
	"pageswarm/internal/storage"
)

func TestRows(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	items := []storage.HistoryItem{{
		ID:        "0195a1b2-0000-7000-8000-000000000001",
		Timestamp: ts,
		Config:    storage.RunConfig{TargetURL: "https://www.example.com/", Users: 10},
		Summary:   report.Summary{SuccessRate: 90, MeanLoadTimeMs: 812.456, P99LoadTimeMs: 1430},
	}}

	rows := Rows(items)
	require.Len(t, rows, 1)
	assert.Equal(t, "2026-03-14 09:26:53", rows[0][0])
	assert.Equal(t, "https://www.example.com/", rows[0][1])
	assert.Equal(t, "10", rows[0][2])
	assert.Equal(t, "90.0%", rows[0][3])
	assert.Equal(t, "812.46", rows[0][4])
	assert.Equal(t, "1430", rows[0][5])
	assert.Equal(t, items[0].ID, rows[0][6])
}

func TestView_Empty(t *testing.T) {
	assert.Contains(t, NewModel(nil).View(), "No runs recorded yet.")
}

func TestDetail(t *testing.T) {
	item := storage.HistoryItem{
		ID:        "0195a1b2-0000-7000-8000-000000000002",
		Timestamp: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Duration:  42 * time.Second,
		Config: storage.RunConfig{
			TargetURL:         "https://shop.test/",
			Users:             3,
			MaxHops:           2,
			NavigationTimeout: 30 * time.Second,
			Seed:              11,
			OutputDir:         "/tmp/results",
		},
		Summary: report.Summarize(nil),
	}

	out := Detail(item)
	assert.Contains(t, out, item.ID)
	assert.Contains(t, out, "2026-03-14 09:26:53 (took 42s)")
	assert.Contains(t, out, "Seed           : 11")
	assert.Contains(t, out, "/tmp/results")
	assert.Contains(t, out, "===== LOAD TEST SUMMARY =====")
	assert.Contains(t, out, "https://shop.test/")
}
