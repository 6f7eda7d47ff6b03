package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stratumhq/sluice/types"
)

// JobStats aggregates committed manifests for the stats view.
type JobStats struct {
	Total     int   `json:"total"`
	Committed int   `json:"committed"`
	Partial   int   `json:"partial"`
	Failed    int   `json:"failed"`
	Rows      int64 `json:"rows"`

	// Recent holds the newest manifests, newest first.
	Recent []types.DatasetManifest `json:"recent"`
}

// BuildJobStats folds a manifest history into aggregate counts.
func BuildJobStats(manifests []types.DatasetManifest) *JobStats {
	stats := &JobStats{Total: len(manifests)}
	for _, m := range manifests {
		stats.Rows += m.RowCount
		switch m.Status {
		case types.StatusCommitted:
			stats.Committed++
		case types.StatusPartialFailure:
			stats.Partial++
		case types.StatusFailed:
			stats.Failed++
		}
	}
	limit := 10
	if len(manifests) < limit {
		limit = len(manifests)
	}
	stats.Recent = manifests[:limit]
	return stats
}

// StatsModel is a Bubble Tea model for stats views.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{viewType: viewType, data: data}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

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

	var content string
	switch m.viewType {
	case "stats_jobs":
		content = m.renderJobStats()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatsModel) renderJobStats() string {
	data, ok := m.data.(*JobStats)
	if !ok {
		return "Invalid data type for stats_jobs"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Extraction Statistics"))
	b.WriteString("\n\n")

	boxes := []string{
		m.renderStatBox("Runs", data.Total, highlightColor),
		m.renderStatBox("Committed", data.Committed, successColor),
		m.renderStatBox("Partial", data.Partial, warningColor),
		m.renderStatBox("Failed", data.Failed, errorColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Total Rows:"),
		ValueStyle.Render(fmt.Sprintf("%d", data.Rows))))

	if len(data.Recent) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Recent Runs"))
		b.WriteString("\n")
		for _, r := range data.Recent {
			line := fmt.Sprintf("%s  %s  %d rows  %s",
				r.ExtractedAt.Format("2006-01-02 15:04"),
				r.JobName,
				r.RowCount,
				StateStyle(string(r.Status)).Render(string(r.Status)))
			b.WriteString(line + "\n")
		}
	}

	return b.String()
}

func (m StatsModel) renderStatBox(label string, value int, color lipgloss.Color) string {
	box := StatLabelStyle.Render(label) + "\n" +
		StatValueStyle.Render(fmt.Sprintf("%d", value))
	return StatBoxStyle.BorderForeground(color).Render(box)
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	model := NewStatsModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
