// Package tui renders a live dashboard while sessions run.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pageswarm/internal/runner"
	"pageswarm/internal/tui/components"
	"pageswarm/internal/tui/styles"
)

const (
	tickInterval = 500 * time.Millisecond
	recentSize   = 8
)

type tickMsg time.Time

// SnapshotMsg carries one runner snapshot into the program.
type SnapshotMsg runner.Snapshot

type Model struct {
	Target  string
	Total   int
	Updates runner.UpdateChan
	// Abort is called once when the user quits before every session reported.
	Abort func()

	Stats    runner.Snapshot
	Recent   []runner.Result
	Progress progress.Model
	LoadLine components.Sparkline

	StartTime time.Time
	Aborted   bool
	Finished  bool

	Width  int
	Height int
}

func NewModel(target string, total int, updates runner.UpdateChan, abort func()) Model {
	return Model{
		Target:  target,
		Total:   total,
		Updates: updates,
		Abort:   abort,
		Progress: progress.New(
			progress.WithGradient(string(styles.ColorPrimary), string(styles.ColorSecondary)),
			progress.WithWidth(60),
		),
		LoadLine:  components.NewSparkline(40, "Initial load (ms)", styles.Warn),
		StartTime: time.Now(),
	}
}

func waitForUpdate(sub runner.UpdateChan) tea.Cmd {
	return func() tea.Msg {
		return SnapshotMsg(<-sub)
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.Updates), tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = max(msg.Width-10, 10)
		m.LoadLine.Width = max(msg.Width/2-4, 10)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.Aborted = true
			if m.Abort != nil {
				m.Abort()
			}
			return m, tea.Quit
		}

	case SnapshotMsg:
		m.Stats = runner.Snapshot(msg)
		if m.Stats.Last.Success {
			m.LoadLine.Add(uint64(m.Stats.Last.LoadTimeMs()))
		}
		m.Recent = append([]runner.Result{m.Stats.Last}, m.Recent...)
		if len(m.Recent) > recentSize {
			m.Recent = m.Recent[:recentSize]
		}

		pct := 0.0
		if m.Total > 0 {
			pct = float64(m.Stats.Done) / float64(m.Total)
		}
		cmd := m.Progress.SetPercent(pct)

		if m.Stats.Done >= m.Total {
			m.Finished = true
			return m, tea.Quit
		}
		return m, tea.Batch(cmd, waitForUpdate(m.Updates))

	case tickMsg:
		// Keeps the elapsed clock moving between results.
		return m, tickCmd()

	case progress.FrameMsg:
		pm, cmd := m.Progress.Update(msg)
		m.Progress = pm.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	elapsed := time.Since(m.StartTime).Round(time.Second)
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		styles.Title.Render("Browsing "+m.Target),
		lipgloss.NewStyle().MarginLeft(2).Foreground(styles.ColorSubtle).Render(elapsed.String()),
	)
	s.WriteString(header)
	s.WriteString("\n\n")
	s.WriteString(m.Progress.View())
	s.WriteString("\n\n")

	failStyle := styles.Text
	if m.Stats.Fail > 0 {
		failStyle = styles.Error
	}
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		card("Done", styles.Value.Render(fmt.Sprintf("%d / %d", m.Stats.Done, m.Total))),
		card("Active", styles.Active.Render(fmt.Sprintf("%d", m.Stats.Active))),
		card("Success", styles.Success.Render(fmt.Sprintf("%d", m.Stats.Success))),
		card("Failed", failStyle.Render(fmt.Sprintf("%d", m.Stats.Fail))),
		card("Avg load", styles.Text.Render(fmt.Sprintf("%.0f ms", m.Stats.MeanLoadTimeMs))),
	))
	s.WriteString("\n")
	s.WriteString(styles.Box.Render(m.LoadLine.View()))
	s.WriteString("\n\n")

	if len(m.Recent) > 0 {
		s.WriteString(styles.Subtle.Render("Recent sessions"))
		s.WriteString("\n")
		for _, r := range m.Recent {
			s.WriteString(ResultLine(r))
			s.WriteString("\n")
		}
	}

	s.WriteString("\n")
	s.WriteString(styles.RenderKey("q", "abort run"))
	return s.String()
}

// ResultLine is the one-line report of a finished session.
func ResultLine(r runner.Result) string {
	if r.Success {
		return fmt.Sprintf("User %d: %s (%dms) [Profile: %s]", r.UserID, styles.Outcome(true), r.LoadTimeMs(), r.Profile)
	}
	return fmt.Sprintf("User %d: %s (%s) [Profile: %s]", r.UserID, styles.Outcome(false), r.Error, r.Profile)
}

func card(title, value string) string {
	return styles.Box.Width(16).Align(lipgloss.Center).Render(
		fmt.Sprintf("%s\n%s", styles.Subtle.Render(title), value),
	)
}
