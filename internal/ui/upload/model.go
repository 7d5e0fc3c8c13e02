package upload

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/subnotify/internal/keys"
	"github.com/nhle/subnotify/internal/slots"
	"github.com/nhle/subnotify/internal/theme"
	"github.com/nhle/subnotify/internal/workflow"
)

// SlotChosenMsg is emitted when a file has been picked for a slot.
type SlotChosenMsg struct {
	Slot slots.Name
	Path string
}

// AnalyzeMsg asks for both files to be sent to the Analysis Service.
type AnalyzeMsg struct{}

// Model is the Upload stage view: two file slots and the analyze action.
type Model struct {
	keys *keys.KeyMap
	snap workflow.Snapshot

	picker  *huh.Form
	picking slots.Name
	path    string
	dir     string

	width, height int
}

// New creates the upload view. Pickers start in the working directory.
func New(k *keys.KeyMap, width, height int) Model {
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	return Model{
		keys:   k,
		dir:    dir,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Picking reports whether a file picker currently owns the keyboard.
func (m Model) Picking() bool {
	return m.picker != nil
}

// SetSnapshot refreshes the slots shown by the view.
func (m *Model) SetSnapshot(s workflow.Snapshot) {
	m.snap = s
}

// Update handles messages for the upload view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.picker != nil {
		return m.updatePicker(msg)
	}

	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(kmsg, m.keys.PickTeacher):
		return m.startPicker(slots.Teacher)
	case key.Matches(kmsg, m.keys.PickSub):
		return m.startPicker(slots.Sub)
	case key.Matches(kmsg, m.keys.Analyze):
		if !m.snap.CanPreview() {
			return m, nil
		}
		return m, func() tea.Msg { return AnalyzeMsg{} }
	}
	return m, nil
}

func (m Model) startPicker(slot slots.Name) (Model, tea.Cmd) {
	if m.snap.Busy() {
		return m, nil
	}
	m.picking = slot
	m.path = ""
	m.picker = huh.NewForm(
		huh.NewGroup(
			huh.NewFilePicker().
				Title(slot.Label()).
				Description("Pick an Excel workbook ("+strings.Join(slots.AcceptTypes, ", ")+")").
				CurrentDirectory(m.dir).
				AllowedTypes(slots.AcceptTypes).
				FileAllowed(true).
				DirAllowed(false).
				ShowSize(true).
				Picking(true).
				Height(m.pickerHeight()).
				Value(&m.path),
		),
	).WithWidth(m.formWidth()).WithShowHelp(true)
	return m, m.picker.Init()
}

func (m Model) updatePicker(msg tea.Msg) (Model, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok && key.Matches(kmsg, m.keys.Back) {
		m.picker = nil
		return m, nil
	}

	mdl, cmd := m.picker.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.picker = f
	}

	switch m.picker.State {
	case huh.StateCompleted:
		m.picker = nil
		if m.path == "" {
			return m, nil
		}
		slot, path := m.picking, m.path
		return m, func() tea.Msg { return SlotChosenMsg{Slot: slot, Path: path} }
	case huh.StateAborted:
		m.picker = nil
		return m, nil
	}
	return m, cmd
}

// View renders the upload view.
func (m Model) View() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	if m.picker != nil {
		return style.Render(m.picker.View())
	}

	var b strings.Builder
	b.WriteString(theme.TitleStyle.Render("Upload spreadsheets"))
	b.WriteString("\n")
	b.WriteString(theme.DimmedStyle.Render(
		"Choose this week's teacher email roster and substitution notices.",
	))
	b.WriteString("\n\n")

	b.WriteString(renderSlot(slots.Teacher, m.snap.Teacher, m.keys.PickTeacher))
	b.WriteString("\n")
	b.WriteString(renderSlot(slots.Sub, m.snap.Sub, m.keys.PickSub))
	b.WriteString("\n\n")

	if up, ok := m.snap.State.(workflow.Upload); ok && up.Retained != nil {
		stats := up.Retained.Stats()
		b.WriteString(theme.DimmedStyle.Render(fmt.Sprintf(
			"Previous preview kept: %d teacher(s), %d missing email. Analyze again to replace it.",
			stats.Total, stats.Missing,
		)))
		b.WriteString("\n\n")
	}

	switch {
	case m.snap.InFlight == workflow.OpPreview:
		b.WriteString(theme.HelpStyle.Render("Analyzing..."))
	case m.snap.CanPreview():
		b.WriteString(theme.HelpStyle.Render(fmt.Sprintf(
			"%s %s", m.keys.Analyze.Help().Key, m.keys.Analyze.Help().Desc,
		)))
	}

	return style.Render(b.String())
}

func renderSlot(slot slots.Name, blob *slots.Blob, binding key.Binding) string {
	label := lipgloss.NewStyle().Bold(true).Width(24).Render(slot.Label())
	hint := theme.DimmedStyle.Render("[" + binding.Help().Key + "]")

	if blob == nil {
		empty := theme.MissingEmailStyle.Render("no file selected")
		return theme.ListItemStyle.Render(fmt.Sprintf("%s %s  %s", hint, label, empty))
	}
	file := lipgloss.NewStyle().Foreground(theme.ColorGreen).Render(blob.Name)
	size := theme.DimmedStyle.Render("(" + blob.HumanSize() + ")")
	return theme.ListItemStyle.Render(fmt.Sprintf("%s %s  %s %s", hint, label, file, size))
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

func (m Model) pickerHeight() int {
	h := m.height - 8
	if h < 5 {
		h = 5
	}
	return h
}
