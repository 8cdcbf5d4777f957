// Package history renders saved runs as a table.
package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pageswarm/internal/report"
	"pageswarm/internal/storage"
	"pageswarm/internal/tui/styles"
)

type Model struct {
	Items []storage.HistoryItem
	Table table.Model

	Width  int
	Height int
}

func NewModel(items []storage.HistoryItem) Model {
	columns := []table.Column{
		{Title: "Time", Width: 20},
		{Title: "URL", Width: 36},
		{Title: "Users", Width: 7},
		{Title: "Success", Width: 9},
		{Title: "Avg (ms)", Width: 10},
		{Title: "P99 (ms)", Width: 10},
		{Title: "ID", Width: 36},
	}

	height := len(items) + 1
	if height > 20 {
		height = 20
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.ColorBorder).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.ColorPrimary)
	s.Selected = s.Selected.
		Foreground(styles.ColorBg).
		Background(styles.ColorPrimary).
		Bold(true)
	t.SetStyles(s)

	m := Model{Items: items, Table: t}
	m.Table.SetRows(Rows(items))
	return m
}

// Rows flattens history items into table rows, in the given order.
func Rows(items []storage.HistoryItem) []table.Row {
	rows := make([]table.Row, len(items))
	for i, item := range items {
		rows[i] = table.Row{
			item.Timestamp.Format(time.DateTime),
			item.Config.TargetURL,
			fmt.Sprintf("%d", item.Config.Users),
			fmt.Sprintf("%.1f%%", item.Summary.SuccessRate),
			fmt.Sprintf("%.2f", item.Summary.MeanLoadTimeMs),
			fmt.Sprintf("%d", item.Summary.P99LoadTimeMs),
			item.ID,
		}
	}
	return rows
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Table.SetWidth(msg.Width - 4)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	}

	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if len(m.Items) == 0 {
		return styles.Subtle.Render("No runs recorded yet.") + "\n"
	}
	return styles.Box.Render(m.Table.View()) + "\n"
}

// Detail renders one saved run: its settings followed by the summary block.
func Detail(item storage.HistoryItem) string {
	var b strings.Builder
	c := item.Config
	fmt.Fprintf(&b, "Run %s\n", styles.Value.Render(item.ID))
	fmt.Fprintf(&b, "Started        : %s (took %s)\n", item.Timestamp.Format(time.DateTime), item.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Users          : %d\n", c.Users)
	fmt.Fprintf(&b, "Timeout        : %s\n", c.NavigationTimeout)
	fmt.Fprintf(&b, "Max hops       : %d\n", c.MaxHops)
	fmt.Fprintf(&b, "Profiles       : %t\n", c.SimulateProfiles)
	fmt.Fprintf(&b, "Seed           : %d\n", c.Seed)
	fmt.Fprintf(&b, "Results        : %s\n", c.OutputDir)
	b.WriteString(report.RenderSummary(c.TargetURL, item.Summary))
	return b.String()
}
