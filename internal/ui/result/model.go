package result

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nhle/subnotify/internal/keys"
	"github.com/nhle/subnotify/internal/ledger"
	"github.com/nhle/subnotify/internal/model"
	"github.com/nhle/subnotify/internal/report"
	"github.com/nhle/subnotify/internal/theme"
	"github.com/nhle/subnotify/internal/workflow"
)

// ExportMsg asks for the ledger to be written as a report file.
type ExportMsg struct {
	Format report.Format
}

// ResetMsg asks for a new batch.
type ResetMsg struct{}

// Model is the Result stage view.
type Model struct {
	keys     *keys.KeyMap
	snap     workflow.Snapshot
	viewport viewport.Model

	exportForm   *huh.Form
	exportFormat string

	width, height int
}

// New creates the result view.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{
		keys:         k,
		viewport:     viewport.New(width-4, height-6),
		exportFormat: string(report.FormatMarkdown),
		width:        width,
		height:       height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Capturing reports whether the export form owns the keyboard.
func (m Model) Capturing() bool {
	return m.exportForm != nil
}

// SetSnapshot refreshes the results table.
func (m *Model) SetSnapshot(s workflow.Snapshot) {
	m.snap = s
	m.viewport.SetContent(m.renderTable())
}

// Update handles messages for the result view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.exportForm != nil {
		return m.updateExportForm(msg)
	}

	if kmsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(kmsg, m.keys.ExportReport):
			return m.startExportForm()
		case key.Matches(kmsg, m.keys.Reset):
			return m, func() tea.Msg { return ResetMsg{} }
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) startExportForm() (Model, tea.Cmd) {
	m.exportForm = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Export report").
				Description("Written to the export directory").
				Options(
					huh.NewOption("Markdown (.md)", string(report.FormatMarkdown)),
					huh.NewOption("CSV (.csv)", string(report.FormatCSV)),
					huh.NewOption("Plain text (.txt)", string(report.FormatText)),
				).
				Value(&m.exportFormat),
		),
	).WithWidth(m.formWidth())
	return m, m.exportForm.Init()
}

func (m Model) updateExportForm(msg tea.Msg) (Model, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok && key.Matches(kmsg, m.keys.Back) {
		m.exportForm = nil
		return m, nil
	}

	mdl, cmd := m.exportForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.exportForm = f
	}

	switch m.exportForm.State {
	case huh.StateCompleted:
		m.exportForm = nil
		format := report.Format(m.exportFormat)
		return m, func() tea.Msg { return ExportMsg{Format: format} }
	case huh.StateAborted:
		m.exportForm = nil
		return m, nil
	}
	return m, cmd
}

// View renders the result view.
func (m Model) View() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	if m.exportForm != nil {
		return style.Render(m.exportForm.View())
	}

	l := m.snap.Ledger()
	if l == nil {
		return style.Render("")
	}

	header := theme.TitleStyle.Render("Dispatch results")
	if m.snap.Transport.IsMock() {
		header += theme.MockBannerStyle.Render("mock run, nothing was sent")
	}

	return style.Render(lipgloss.JoinVertical(lipgloss.Left,
		header,
		renderSummary(l.Summary()),
		"",
		m.viewport.View(),
	))
}

func renderSummary(s ledger.Summary) string {
	return lipgloss.JoinHorizontal(lipgloss.Top,
		fmt.Sprintf("%d total ", s.Total),
		theme.StatusStyle(model.StatusSuccess).Render(fmt.Sprintf("%d sent", s.Success)),
		theme.StatusStyle(model.StatusFailed).Render(fmt.Sprintf("%d failed", s.Failed)),
		theme.StatusStyle(model.StatusNoEmail).Render(fmt.Sprintf("%d missing email", s.NoEmail)),
	)
}

func (m Model) renderTable() string {
	l := m.snap.Ledger()
	if l == nil || l.Len() == 0 {
		return theme.HelpStyle.Render("The service reported no outcomes.")
	}
	results := l.Results()

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers("Teacher", "Status", "Message").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(results) {
				return theme.StatusStyle(results[row].Status)
			}
			return cellStyle
		})

	for _, r := range results {
		t.Row(r.TeacherName, report.StatusLabel(r.Status), r.Describe())
	}
	return t.Render()
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width - 4
	m.viewport.Height = height - 6
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}
