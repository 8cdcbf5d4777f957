package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageswarm/internal/runner"
)

func snapshot(done, total int, last runner.Result) SnapshotMsg {
	s := runner.Snapshot{Total: total, Done: done, Last: last}
	if last.Success {
		s.Success = done
	} else {
		s.Fail = done
	}
	return SnapshotMsg(s)
}

func TestModel_QuitsWhenAllReported(t *testing.T) {
	m := NewModel("https://www.example.com/", 2, make(runner.UpdateChan, 1), nil)

	next, _ := m.Update(snapshot(1, 2, runner.Result{UserID: 2, Success: true, LoadTime: 640 * time.Millisecond}))
	m = next.(Model)
	assert.False(t, m.Finished)
	require.Len(t, m.Recent, 1)
	assert.Equal(t, []uint64{640}, m.LoadLine.Data)

	next, cmd := m.Update(snapshot(2, 2, runner.Result{UserID: 1, Error: "boom"}))
	m = next.(Model)
	assert.True(t, m.Finished)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, 1, m.Recent[0].UserID)
	assert.Len(t, m.LoadLine.Data, 1)
}

func TestModel_RecentIsBounded(t *testing.T) {
	m := NewModel("u", 100, make(runner.UpdateChan, 1), nil)
	for i := 1; i <= 20; i++ {
		next, _ := m.Update(snapshot(i, 100, runner.Result{UserID: i, Success: true}))
		m = next.(Model)
	}
	require.Len(t, m.Recent, recentSize)
	assert.Equal(t, 20, m.Recent[0].UserID)
}

func TestModel_AbortOnQuit(t *testing.T) {
	aborted := 0
	m := NewModel("u", 3, make(runner.UpdateChan, 1), func() { aborted++ })

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = next.(Model)
	assert.True(t, m.Aborted)
	assert.Equal(t, 1, aborted)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestModel_ViewShowsCounters(t *testing.T) {
	m := NewModel("https://shop.test/", 4, make(runner.UpdateChan, 1), nil)
	next, _ := m.Update(snapshot(1, 4, runner.Result{UserID: 3, Success: true, LoadTime: 812 * time.Millisecond, Profile: "UK - Firefox"}))

	out := next.(Model).View()
	assert.Contains(t, out, "https://shop.test/")
	assert.Contains(t, out, "1 / 4")
	assert.Contains(t, out, "812ms")
	assert.Contains(t, out, "UK - Firefox")
}

func TestResultLine(t *testing.T) {
	ok := ResultLine(runner.Result{UserID: 3, Success: true, LoadTime: 812 * time.Millisecond, Profile: "UK - Firefox"})
	assert.Contains(t, ok, "User 3:")
	assert.Contains(t, ok, "SUCCESS")
	assert.Contains(t, ok, "(812ms) [Profile: UK - Firefox]")

	bad := ResultLine(runner.Result{UserID: 4, Error: "navigation timeout: 30000 ms exceeded", Profile: "Default"})
	assert.Contains(t, bad, "FAILED")
	assert.Contains(t, bad, "(navigation timeout: 30000 ms exceeded) [Profile: Default]")
}
