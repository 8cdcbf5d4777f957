package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestSparkline_WindowAndScale(t *testing.T) {
	s := NewSparkline(3, "Load (ms)", lipgloss.NewStyle())
	for _, v := range []uint64{900, 100, 200, 400} {
		s.Add(v)
	}

	assert.Equal(t, []uint64{100, 200, 400}, s.Data)
	assert.Equal(t, uint64(400), s.Max)

	lines := strings.Split(s.View(), "\n")
	assert.Equal(t, "Load (ms)", lines[0])
	assert.Equal(t, "▂▄█", lines[1])
}

func TestSparkline_PadsAndHandlesZero(t *testing.T) {
	s := NewSparkline(4, "x", lipgloss.NewStyle())
	s.Add(0)
	lines := strings.Split(s.View(), "\n")
	assert.Equal(t, "    ", lines[1])

	assert.Empty(t, Sparkline{}.View())
}
