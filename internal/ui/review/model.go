package review

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/subnotify/internal/compose"
	"github.com/nhle/subnotify/internal/keys"
	"github.com/nhle/subnotify/internal/model"
	"github.com/nhle/subnotify/internal/preview"
	"github.com/nhle/subnotify/internal/theme"
	"github.com/nhle/subnotify/internal/workflow"
)

// ToggleExpandMsg asks for a teacher's rows to be expanded or collapsed.
type ToggleExpandMsg struct {
	Name string
}

// EmailEditedMsg carries a corrected address. An empty Address clears it.
type EmailEditedMsg struct {
	Name    string
	Address string
}

// ExportEMLMsg asks for a teacher's message to be saved as an .eml file.
type ExportEMLMsg struct {
	Name string
}

// DispatchMsg asks for the dispatch confirmation.
type DispatchMsg struct{}

// RestartMsg asks to go back to the Upload stage.
type RestartMsg struct{}

type mode int

const (
	modeList mode = iota
	modeEditEmail
	modeMessage
)

// Model is the Preview stage view.
type Model struct {
	keys   *keys.KeyMap
	snap   workflow.Snapshot
	list   list.Model
	filter preview.Filter
	mode   mode

	editForm *huh.Form
	editName string
	editAddr string

	message viewport.Model

	width, height int
}

// New creates the review view.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height/2)
	l.Title = "Teachers"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.Styles.Title = theme.HeaderStyle

	return Model{
		keys:    k,
		list:    l,
		message: viewport.New(width-4, height-4),
		width:   width,
		height:  height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Capturing reports whether a form or the message pane owns the keyboard.
func (m Model) Capturing() bool {
	return m.mode != modeList
}

// SetSnapshot rebuilds the list from the snapshot, keeping the cursor on
// the same teacher when it is still visible.
func (m *Model) SetSnapshot(s workflow.Snapshot) tea.Cmd {
	m.snap = s
	return m.rebuild()
}

func (m *Model) rebuild() tea.Cmd {
	selected, _ := m.selected()

	ds := m.snap.Dataset()
	var visible []model.PreviewItem
	if ds != nil {
		visible = ds.Visible(m.filter)
	}

	items := make([]list.Item, len(visible))
	cursor := 0
	for i, it := range visible {
		items[i] = TeacherItem{Item: it, Expanded: ds.IsExpanded(it.TeacherName)}
		if it.TeacherName == selected.TeacherName {
			cursor = i
		}
	}
	cmd := m.list.SetItems(items)
	m.list.Select(cursor)
	m.list.Title = fmt.Sprintf("Teachers (%s)", m.filter)
	return cmd
}

func (m Model) selected() (model.PreviewItem, bool) {
	ti, ok := m.list.SelectedItem().(TeacherItem)
	if !ok {
		return model.PreviewItem{}, false
	}
	return ti.Item, true
}

// Update handles messages for the review view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch m.mode {
	case modeEditEmail:
		return m.updateEditForm(msg)
	case modeMessage:
		return m.updateMessage(msg)
	}

	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	item, hasItem := m.selected()

	switch {
	case key.Matches(kmsg, m.keys.Select):
		if !hasItem {
			return m, nil
		}
		return m, func() tea.Msg { return ToggleExpandMsg{Name: item.TeacherName} }

	case key.Matches(kmsg, m.keys.CycleFilter):
		m.filter = m.filter.Next()
		return m, m.rebuild()

	case key.Matches(kmsg, m.keys.EditEmail):
		if !hasItem || m.snap.Busy() {
			return m, nil
		}
		return m.startEditForm(item)

	case key.Matches(kmsg, m.keys.PreviewEmail):
		if !hasItem {
			return m, nil
		}
		m.mode = modeMessage
		m.message.SetContent(m.renderMessage(item))
		m.message.GotoTop()
		return m, nil

	case key.Matches(kmsg, m.keys.ExportEML):
		if !hasItem {
			return m, nil
		}
		return m, func() tea.Msg { return ExportEMLMsg{Name: item.TeacherName} }

	case key.Matches(kmsg, m.keys.Dispatch):
		if !m.snap.CanDispatch() {
			return m, nil
		}
		return m, func() tea.Msg { return DispatchMsg{} }

	case key.Matches(kmsg, m.keys.Restart):
		if m.snap.Busy() {
			return m, nil
		}
		return m, func() tea.Msg { return RestartMsg{} }
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// --- Email edit ---

func (m Model) startEditForm(item model.PreviewItem) (Model, tea.Cmd) {
	m.mode = modeEditEmail
	m.editName = item.TeacherName
	m.editAddr = item.Address()
	m.editForm = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email for "+item.TeacherName).
				Description("Leave empty to skip this teacher").
				Placeholder("teacher@school.edu").
				Value(&m.editAddr).
				Validate(validateAddress),
		),
	).WithWidth(m.formWidth())
	return m, m.editForm.Init()
}

func (m Model) updateEditForm(msg tea.Msg) (Model, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok && key.Matches(kmsg, m.keys.Back) {
		m.mode = modeList
		m.editForm = nil
		return m, nil
	}

	mdl, cmd := m.editForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.editForm = f
	}

	switch m.editForm.State {
	case huh.StateCompleted:
		m.mode = modeList
		m.editForm = nil
		name, addr := m.editName, strings.TrimSpace(m.editAddr)
		return m, func() tea.Msg { return EmailEditedMsg{Name: name, Address: addr} }
	case huh.StateAborted:
		m.mode = modeList
		m.editForm = nil
		return m, nil
	}
	return m, cmd
}

func validateAddress(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return errors.New("not a valid email address")
	}
	return nil
}

// --- Message preview ---

func (m Model) updateMessage(msg tea.Msg) (Model, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok {
		if key.Matches(kmsg, m.keys.Back) || key.Matches(kmsg, m.keys.PreviewEmail) {
			m.mode = modeList
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.message, cmd = m.message.Update(msg)
	return m, cmd
}

func (m Model) renderMessage(item model.PreviewItem) string {
	cfg := m.snap.Transport
	var b strings.Builder

	to := item.Address()
	if to == "" {
		to = theme.MissingEmailStyle.Render("(missing email, will be skipped)")
	}
	from := cfg.SenderUser
	if from == "" {
		from = theme.DimmedStyle.Render("(sender not set)")
	}

	fmt.Fprintf(&b, "From:    %s %s\n", cfg.SenderDisplayName, from)
	fmt.Fprintf(&b, "To:      %s\n", to)
	fmt.Fprintf(&b, "Subject: %s\n\n", compose.Subject(item.TeacherName))
	b.WriteString(compose.Body(item, cfg.SenderDisplayName))
	return b.String()
}

// --- View ---

// View renders the review view.
func (m Model) View() string {
	style := lipgloss.NewStyle().
		Padding(0, 1).
		Width(m.width).
		Height(m.height)

	switch m.mode {
	case modeEditEmail:
		return style.Padding(1, 2).Render(m.editForm.View())
	case modeMessage:
		return theme.DetailPanelStyle.
			Width(m.width - 4).
			Height(m.height - 2).
			Render(m.message.View())
	}

	ds := m.snap.Dataset()
	if ds == nil {
		return style.Render("")
	}

	stats := ds.Stats()
	summary := fmt.Sprintf("%d teacher(s)  %d ready  ", stats.Total, stats.Ready())
	missing := fmt.Sprintf("%d missing email", stats.Missing)
	if stats.Missing > 0 {
		missing = theme.MissingEmailStyle.Render(missing)
	}

	modeLabel := theme.ModeStyle(m.snap.Transport.Mode).Render(m.snap.Transport.Mode.Label())

	parts := []string{
		lipgloss.JoinHorizontal(lipgloss.Top, summary, missing, "   ", modeLabel),
		"",
	}

	if len(m.list.Items()) == 0 {
		parts = append(parts, theme.HelpStyle.Render("No teacher matches the "+m.filter.String()+" filter."))
	} else {
		parts = append(parts, m.list.View())
	}

	if name, ok := ds.Expanded(); ok {
		if item, found := ds.Find(name); found {
			parts = append(parts, "",
				lipgloss.NewStyle().Bold(true).Render(compose.Subject(item.TeacherName)),
				rowsTable(item.DataRows, m.width-4),
			)
		}
	}

	if m.snap.InFlight == workflow.OpDispatch {
		parts = append(parts, "", theme.HelpStyle.Render("Sending..."))
	}

	return style.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	listHeight := height / 2
	if listHeight < 5 {
		listHeight = 5
	}
	m.list.SetSize(width-2, listHeight)
	m.message.Width = width - 8
	m.message.Height = height - 6
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
