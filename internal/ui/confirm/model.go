package confirm

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/subnotify/internal/theme"
	"github.com/nhle/subnotify/internal/workflow"
)

// ConfirmedMsg is emitted when the user agrees to send.
type ConfirmedMsg struct {
	Prompt workflow.Prompt
}

// CancelledMsg is emitted when the user declines or backs out.
type CancelledMsg struct{}

// Model asks the user to confirm a dispatch.
type Model struct {
	form   *huh.Form
	prompt workflow.Prompt
	agree  bool

	width, height int
}

// New creates the confirmation view.
func New(width, height int) Model {
	return Model{width: width, height: height}
}

// Start builds a fresh form for p. The default answer is no.
func (m *Model) Start(p workflow.Prompt) tea.Cmd {
	m.prompt = p
	m.agree = false

	desc := ""
	if len(p.Problems) > 0 {
		desc = "Check the email settings first:\n  - " + strings.Join(p.Problems, "\n  - ")
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(p.Text()).
				Description(desc).
				Affirmative("Send").
				Negative("Cancel").
				Value(&m.agree),
		),
	).WithWidth(m.formWidth())
	return m.form.Init()
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the confirmation form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}
	if kmsg, ok := msg.(tea.KeyMsg); ok && kmsg.String() == "esc" {
		m.form = nil
		return m, func() tea.Msg { return CancelledMsg{} }
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.form = nil
		if m.agree {
			p := m.prompt
			return m, func() tea.Msg { return ConfirmedMsg{Prompt: p} }
		}
		return m, func() tea.Msg { return CancelledMsg{} }
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return CancelledMsg{} }
	}
	return m, cmd
}

// View renders the confirmation form.
func (m Model) View() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	if m.form == nil {
		return style.Render("")
	}

	var b strings.Builder
	b.WriteString(theme.TitleStyle.Render("Send notifications"))
	b.WriteString("\n")
	if m.prompt.Mock {
		b.WriteString(theme.MockBannerStyle.Render("MOCK MODE: no real email will be sent"))
		b.WriteString("\n\n")
	}
	b.WriteString(m.form.View())
	return style.Render(b.String())
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
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
