package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"squeeze/internal/batch"
)

// Model renders batch progress from the store's update stream.
type Model struct {
	updates     <-chan batch.Update
	started     time.Time
	width       int
	quality     int
	stats       batch.Stats
	rows        []row
	byID        map[string]int
	quitting    bool
	interrupted bool
}

type row struct {
	id     string
	name   string
	status batch.Status
}

type doneMsg struct{}

type updateMsg batch.Update

// maxRows caps the per-file list; the totals line always covers everything.
const maxRows = 12

func NewModel(updates <-chan batch.Update, quality int) Model {
	return Model{updates: updates, started: time.Now(), quality: quality, byID: map[string]int{}}
}

func (m Model) Init() tea.Cmd {
	return listenForUpdates(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		m.apply(batch.Update(msg))
		return m, listenForUpdates(m.updates)
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.quitting = true
			m.interrupted = true
			return m, tea.Quit
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	default:
		return m, nil
	}
}

// Interrupted reports whether the user asked to stop the run.
func (m Model) Interrupted() bool {
	return m.interrupted
}

func (m *Model) apply(u batch.Update) {
	m.stats = u.Stats
	switch u.Kind {
	case batch.UpdateAdded:
		m.byID[u.ID] = len(m.rows)
		m.rows = append(m.rows, row{id: u.ID, name: u.Name, status: u.Status})
	case batch.UpdateStatus:
		if i, ok := m.byID[u.ID]; ok {
			m.rows[i].status = u.Status
		}
	case batch.UpdateRemoved:
		i, ok := m.byID[u.ID]
		if !ok {
			return
		}
		m.rows = append(m.rows[:i], m.rows[i+1:]...)
		delete(m.byID, u.ID)
		for j := i; j < len(m.rows); j++ {
			m.byID[m.rows[j].id] = j
		}
	case batch.UpdateReset:
		m.rows = nil
		m.byID = map[string]int{}
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	barWidth := 40
	if m.width > 0 {
		barWidth = int(math.Min(60, float64(m.width-10)))
		if barWidth < 20 {
			barWidth = 20
		}
	}

	settled := m.stats.Ready + m.stats.Errored
	ratio := 0.0
	if m.stats.Count > 0 {
		ratio = float64(settled) / float64(m.stats.Count)
	}

	elapsed := time.Since(m.started).Round(time.Millisecond)

	lines := []string{
		titleStyle.Render(fmt.Sprintf("squeeze  Q%d", m.quality)),
		labelStyle.Render(fmt.Sprintf("Images: %d/%d", settled, m.stats.Count)) + dimStyle.Render(fmt.Sprintf("  errors:%d", m.stats.Errored)),
		labelStyle.Render(fmt.Sprintf("Size: %s -> %s (-%.1f%%)",
			FormatKB(m.stats.OriginalTotalKB), FormatKB(m.stats.CompressedTotalKB), m.stats.ReductionPercent)),
		dimStyle.Render(fmt.Sprintf("Elapsed: %s", elapsed)),
		barStyle.Render(renderBar(barWidth, ratio)),
	}

	shown := m.rows
	if len(shown) > maxRows {
		shown = shown[len(shown)-maxRows:]
	}
	for _, r := range shown {
		lines = append(lines, fmt.Sprintf("  %s %s", statusStyle(r.status).Render(statusGlyph(r.status)), labelStyle.Render(r.name)))
	}

	return strings.Join(lines, "\n")
}

func listenForUpdates(updates <-chan batch.Update) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return updateMsg(update)
	}
}

func renderBar(width int, ratio float64) string {
	filled := int(math.Round(ratio * float64(width)))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

func statusGlyph(s batch.Status) string {
	switch s {
	case batch.StatusLoading:
		return "…"
	case batch.StatusCompressing:
		return "~"
	case batch.StatusReady:
		return "✓"
	case batch.StatusErrored:
		return "✗"
	default:
		return "?"
	}
}

func statusStyle(s batch.Status) lipgloss.Style {
	switch s {
	case batch.StatusReady:
		return lipgloss.NewStyle().Foreground(ColorSuccess)
	case batch.StatusErrored:
		return lipgloss.NewStyle().Foreground(ColorError)
	case batch.StatusCompressing:
		return lipgloss.NewStyle().Foreground(ColorWarn)
	default:
		return dimStyle
	}
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)
