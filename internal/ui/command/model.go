package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/subnotify/internal/theme"
)

// Command describes one palette entry.
type Command struct {
	Name    string
	Aliases []string
	// Args lists the accepted argument values. Empty means no argument.
	Args []string
	Desc string
}

// Commands is the palette, in display order.
var Commands = []Command{
	{Name: "analyze", Aliases: []string{"preview"}, Desc: "send both files for analysis"},
	{Name: "send", Aliases: []string{"dispatch"}, Desc: "send the notices to eligible teachers"},
	{Name: "back", Aliases: []string{"restart"}, Desc: "return to the upload step, keeping the files"},
	{Name: "reset", Aliases: []string{"new"}, Desc: "start a new batch"},
	{Name: "settings", Aliases: []string{"config"}, Desc: "edit the sending settings"},
	{Name: "verify", Desc: "test the mail server login"},
	{Name: "mode", Args: []string{"mock", "gmail", "custom"}, Desc: "switch the sending mode"},
	{Name: "export", Args: []string{"md", "csv", "txt"}, Desc: "write the result report"},
	{Name: "history", Desc: "show sent batches"},
	{Name: "help", Desc: "show keys and the spreadsheet guide"},
	{Name: "quit", Aliases: []string{"q"}, Desc: "exit"},
}

// Lookup finds a command by name or alias.
func Lookup(word string) (Command, bool) {
	for _, c := range Commands {
		if c.Name == word {
			return c, true
		}
		for _, a := range c.Aliases {
			if a == word {
				return c, true
			}
		}
	}
	return Command{}, false
}

// Parse checks input against the palette and returns it in canonical
// form: the command name followed by its argument, if any.
func Parse(input string) (string, error) {
	fields := strings.Fields(strings.ToLower(input))
	if len(fields) == 0 {
		return "", errors.New("empty command")
	}
	c, ok := Lookup(fields[0])
	if !ok {
		return "", fmt.Errorf("unknown command %q", fields[0])
	}

	if len(c.Args) == 0 {
		if len(fields) > 1 {
			return "", fmt.Errorf("%s takes no argument", c.Name)
		}
		return c.Name, nil
	}

	want := strings.Join(c.Args, ", ")
	if len(fields) != 2 {
		return "", fmt.Errorf("%s needs one of %s", c.Name, want)
	}
	for _, a := range c.Args {
		if a == fields[1] {
			return c.Name + " " + a, nil
		}
	}
	return "", fmt.Errorf("%s %q: expected one of %s", c.Name, fields[1], want)
}

// suggestions expands every command and argument for tab completion.
func suggestions() []string {
	var out []string
	for _, c := range Commands {
		if len(c.Args) == 0 {
			out = append(out, c.Name)
			continue
		}
		for _, a := range c.Args {
			out = append(out, c.Name+" "+a)
		}
	}
	return out
}

// CommandMsg carries a parsed command in canonical form.
type CommandMsg string

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	err    error
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "analyze, send, mode gmail, export csv..."
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.SetSuggestions(suggestions())
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Err returns the last parse error shown under the input.
func (m Model) Err() error {
	return m.err
}

// Update handles messages for the command palette. Input that does not
// parse stays in the field with the error shown below it.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok {
		if kmsg.String() == "enter" {
			if strings.TrimSpace(m.input.Value()) == "" {
				return m, nil
			}
			parsed, err := Parse(m.input.Value())
			if err != nil {
				m.err = err
				return m, nil
			}
			m.err = nil
			m.input.Reset()
			return m, func() tea.Msg { return CommandMsg(parsed) }
		}
		m.err = nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the input and the commands matching what has been typed.
func (m Model) View() string {
	title := theme.TitleStyle.MarginBottom(1).Render("Command")

	lines := []string{title, m.input.View(), ""}
	if m.err != nil {
		lines = append(lines, lipgloss.NewStyle().Foreground(theme.ColorRed).Render(m.err.Error()), "")
	}
	lines = append(lines, m.matches()...)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// matches lists the commands whose name starts with the typed word.
func (m Model) matches() []string {
	typed := strings.Fields(strings.ToLower(m.input.Value()))
	prefix := ""
	if len(typed) > 0 {
		prefix = typed[0]
	}

	nameStyle := lipgloss.NewStyle().Foreground(theme.ColorBlue).Width(26)
	var out []string
	for _, c := range Commands {
		if !strings.HasPrefix(c.Name, prefix) {
			continue
		}
		usage := c.Name
		if len(c.Args) > 0 {
			usage += " <" + strings.Join(c.Args, "|") + ">"
		}
		out = append(out, nameStyle.Render(usage)+" "+theme.HelpStyle.Render(c.Desc))
	}
	if limit := m.height - 8; limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	m.err = nil
	return m.input.Focus()
}
