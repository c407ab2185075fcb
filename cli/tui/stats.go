package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/sift/sample"
)

// refreshInterval is how often the view re-reads the stats handle.
const refreshInterval = 250 * time.Millisecond

// keyMap defines the key bindings for the stats view.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
}

type tickMsg time.Time

// workloadDoneMsg signals that the observed workload has finished.
type workloadDoneMsg struct{}

// StatsModel is a Bubble Tea model rendering live engine counters.
type StatsModel struct {
	stats *sample.Stats
	done  <-chan struct{}

	snap     sample.Snapshot
	width    int
	quitting bool
}

// NewStatsModel creates a stats model reading from the given handle.
// When done closes, the view takes a final snapshot and quits.
func NewStatsModel(stats *sample.Stats, done <-chan struct{}) StatsModel {
	return StatsModel{stats: stats, done: done}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.waitDone())
}

func (m StatsModel) tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m StatsModel) waitDone() tea.Cmd {
	if m.done == nil {
		return nil
	}
	done := m.done
	return func() tea.Msg {
		<-done
		return workloadDoneMsg{}
	}
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		m.snap = m.stats.Snapshot()
		return m, m.tick()

	case workloadDoneMsg:
		m.snap = m.stats.Snapshot()
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Sampling Statistics"))
	b.WriteString("\n\n")

	boxes := []string{
		m.renderStatBox("Received", m.snap.Received, lipgloss.Color("#3B82F6")),
		m.renderStatBox("Sampled", m.snap.Sampled, successColor),
		m.renderStatBox("Dropped", m.snap.Dropped, errorColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n")

	if m.snap.Received > 0 {
		ratio := float64(m.snap.Dropped) / float64(m.snap.Received) * 100
		style := HelpStyle
		if ratio > 50 {
			style = style.Foreground(warningColor)
		}
		b.WriteString(style.Render(fmt.Sprintf("drop rate %.1f%%", ratio)))
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render("Press q or Ctrl+C to quit"))
	return b.String()
}

func (m StatsModel) renderStatBox(label string, value uint64, color lipgloss.Color) string {
	content := lipgloss.NewStyle().Bold(true).Foreground(color).Render(fmt.Sprintf("%d", value)) +
		"\n" + HelpStyle.MarginTop(0).Render(label)
	return BoxStyle.Render(content)
}

// Run starts the stats TUI and blocks until it quits.
func Run(stats *sample.Stats, done <-chan struct{}) error {
	p := tea.NewProgram(NewStatsModel(stats, done))
	_, err := p.Run()
	return err
}
