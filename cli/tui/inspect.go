package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stratumhq/sluice/types"
)

// InspectModel is a Bubble Tea model for inspect views.
type InspectModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{viewType: viewType, data: data}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "inspect_job":
		content = m.renderJobManifest()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m InspectModel) renderJobManifest() string {
	data, ok := m.data.(*types.DatasetManifest)
	if !ok {
		return "Invalid data type for inspect_job"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Dataset Manifest"))
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render(label), ValueStyle.Render(value)))
	}
	row("Job:", data.JobName)
	row("Run ID:", data.RunID)
	row("Extracted:", data.ExtractedAt.Format("2006-01-02 15:04:05"))
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Status:"),
		StateStyle(string(data.Status)).Render(string(data.Status))))
	row("Rows:", fmt.Sprintf("%d", data.RowCount))
	row("Batches:", fmt.Sprintf("%d", data.BatchCount))
	row("Bytes:", fmt.Sprintf("%d", data.ByteSize))
	row("Window:", fmt.Sprintf("%s .. %s", data.WindowStart, data.WindowEnd))
	row("Output:", data.OutputFile)
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Validation:"),
		StateStyle(string(data.Validation.Overall)).Render(string(data.Validation.Overall))))

	for _, res := range data.Validation.Results {
		if res.Passed {
			continue
		}
		finding := fmt.Sprintf("  [%s] %s: %s", res.Severity, res.RuleKind, res.Message)
		switch res.Severity {
		case types.SeverityCritical:
			b.WriteString(ErrorStyle.Render(finding) + "\n")
		default:
			b.WriteString(WarningStyle.Render(finding) + "\n")
		}
	}

	return BoxStyle.Render(b.String())
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	model := NewInspectModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
