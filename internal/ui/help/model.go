package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/subnotify/internal/keys"
	"github.com/nhle/subnotify/internal/theme"
)

// Guide explains the spreadsheets and the Gmail sender setup.
var Guide = []Section{
	{
		Title: "Teacher email roster (.xlsx)",
		Lines: []string{
			"Columns: teacher name (or Name), email (or Email).",
			"Example: Wang Xiaoming | wang@school.edu",
		},
	},
	{
		Title: "Substitution notices (.xlsx)",
		Lines: []string{
			"Columns: date, period, class, course, original teacher,",
			"substitute teacher, leave type, original date, original period.",
			"Original date and period are only filled in for swapped lessons.",
		},
	},
	{
		Title: "Sending with Gmail",
		Lines: []string{
			"Gmail needs a 16-letter app password, not the login password:",
			"1. Sign in at https://myaccount.google.com/ and open Security.",
			"2. Make sure 2-Step Verification is on.",
			"3. Search for \"App passwords\" and open it.",
			"4. Choose \"Other\", enter a name such as \"school notices\", then Generate.",
			"5. Paste the 16 letters into the sender password field.",
		},
	},
	{
		Title: "Mock mode",
		Lines: []string{
			"Mock mode rehearses a batch end to end; no email leaves the service.",
		},
	},
}

// Section is one titled block of the guide.
type Section struct {
	Title string
	Lines []string
}

// Model is the help overlay view.
type Model struct {
	keys     *keys.KeyMap
	help     help.Model
	viewport viewport.Model
	width    int
	height   int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	m := Model{
		keys:     keys,
		help:     h,
		viewport: viewport.New(width-8, height-6),
		width:    width,
		height:   height,
	}
	m.refresh()
	return m
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update scrolls the overlay.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the help overlay.
func (m Model) View() string {
	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(m.viewport.View())
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 8
	m.viewport.Width = width - 8
	m.viewport.Height = height - 6
	m.refresh()
}

func (m *Model) refresh() {
	m.help.ShowAll = true

	var b strings.Builder
	b.WriteString(theme.TitleStyle.Render("Keyboard Shortcuts"))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n\n")

	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue)
	for _, s := range Guide {
		b.WriteString(sectionStyle.Render(s.Title))
		b.WriteString("\n")
		for _, line := range s.Lines {
			b.WriteString("  " + line + "\n")
		}
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
}
