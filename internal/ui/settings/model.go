package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/subnotify/internal/keys"
	"github.com/nhle/subnotify/internal/theme"
	"github.com/nhle/subnotify/internal/transport"
)

// VerifyTimeout bounds a connection test.
var VerifyTimeout = 15 * time.Second

// SettingsMode represents the current state of the settings view.
type SettingsMode int

const (
	ModeSummary      SettingsMode = iota // Show current settings
	ModeForm                             // Editing
	ModeVerifying                        // Testing connection
	ModeVerifyResult                     // Show test result
)

// DoneMsg signals the settings view should close.
type DoneMsg struct{}

// SubmittedMsg carries the edited settings.
type SubmittedMsg struct {
	Submission Submission
}

// VerifyResultMsg carries the result of a connection test.
type VerifyResultMsg struct {
	Address string
	Err     error
}

// Submission is the content of a completed settings form.
type Submission struct {
	Mode        transport.Mode
	Host        string
	Port        string
	User        string
	Password    string
	DisplayName string
	Remember    bool
}

// Apply writes s onto c. The mode preset is applied first; host and port
// are only taken from the form in custom mode.
func (s Submission) Apply(c *transport.Config) error {
	if err := c.SetMode(s.Mode); err != nil {
		return err
	}
	if !c.HostLocked() {
		if err := c.SetField(transport.FieldHost, strings.TrimSpace(s.Host)); err != nil {
			return err
		}
		if err := c.SetField(transport.FieldPort, s.Port); err != nil {
			return err
		}
	}
	fields := []struct{ key, value string }{
		{transport.FieldSenderUser, strings.TrimSpace(s.User)},
		{transport.FieldSenderPassword, s.Password},
		{transport.FieldSenderDisplayName, strings.TrimSpace(s.DisplayName)},
	}
	for _, f := range fields {
		if err := c.SetField(f.key, f.value); err != nil {
			return err
		}
	}
	return nil
}

// Model is the Bubble Tea model for the email settings panel.
type Model struct {
	mode    SettingsMode
	current transport.Config

	form *huh.Form

	// Form field values (huh binds to these)
	formMode        string
	formHost        string
	formPort        string
	formUser        string
	formPassword    string
	formDisplayName string
	formRemember    bool

	verifyAddr string
	verifyErr  error
	spinner    spinner.Model

	statusMsg string

	keys          *keys.KeyMap
	width, height int
}

// New creates a new settings view model.
func New(k *keys.KeyMap, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		mode:    ModeSummary,
		keys:    k,
		spinner: sp,
		width:   width,
		height:  height,
	}
}

// Open shows the summary of cfg. remember preselects the keyring option.
func (m *Model) Open(cfg transport.Config, remember bool) {
	m.mode = ModeSummary
	m.current = cfg
	m.formRemember = remember
	m.statusMsg = ""
}

// SetStatus shows a transient message under the summary.
func (m *Model) SetStatus(s string) {
	m.statusMsg = s
}

// Capturing reports whether the form owns the keyboard.
func (m Model) Capturing() bool {
	return m.mode == ModeForm
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case VerifyResultMsg:
		if m.mode != ModeVerifying {
			return m, nil
		}
		m.verifyAddr = msg.Address
		m.verifyErr = msg.Err
		m.mode = ModeVerifyResult
		return m, nil

	case spinner.TickMsg:
		if m.mode == ModeVerifying {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	if m.mode == ModeForm {
		return m.updateForm(msg)
	}
	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case ModeSummary:
		return m.handleSummaryKeys(msg)
	case ModeForm:
		if key.Matches(msg, m.keys.Back) {
			m.mode = ModeSummary
			m.form = nil
			return m, nil
		}
		return m.updateForm(msg)
	case ModeVerifying:
		// Only allow escape during the test
		if key.Matches(msg, m.keys.Back) {
			m.mode = ModeSummary
			return m, nil
		}
	case ModeVerifyResult:
		switch {
		case msg.String() == "enter", key.Matches(msg, m.keys.Back):
			m.mode = ModeSummary
			m.verifyErr = nil
			return m, nil
		case msg.String() == "r" && m.verifyErr != nil:
			return m.startVerify()
		}
	}
	return m, nil
}

func (m Model) handleSummaryKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return DoneMsg{} }
	case msg.String() == "e" || msg.String() == "enter":
		return m.startForm()
	case key.Matches(msg, m.keys.Verify):
		return m.startVerify()
	}
	return m, nil
}

// --- Form ---

func (m Model) startForm() (Model, tea.Cmd) {
	m.resetFormFields()
	m.mode = ModeForm
	m.statusMsg = ""
	m.form = m.buildForm()
	return m, m.form.Init()
}

func (m *Model) buildForm() *huh.Form {
	options := make([]huh.Option[string], len(transport.Modes))
	for i, mode := range transport.Modes {
		options[i] = huh.NewOption(mode.Label(), string(mode))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Sending mode").
				Description("Mock rehearses a batch without sending anything").
				Options(options...).
				Value(&m.formMode),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("SMTP Host").
				Description("SMTP server hostname").
				Placeholder("smtp.example.com").
				Value(&m.formHost).
				Validate(validateRequired("SMTP Host")),
			huh.NewInput().
				Title("SMTP Port").
				Description("SMTP server port (e.g., 587)").
				Placeholder("587").
				Value(&m.formPort).
				Validate(validatePort),
		).WithHideFunc(func() bool {
			return transport.Mode(m.formMode) != transport.ModeCustom
		}),
		huh.NewGroup(
			huh.NewInput().
				Title("Sender account").
				Description("Email address used to sign in and send").
				Placeholder("office@school.edu").
				Value(&m.formUser),
			huh.NewInput().
				Title("Sender password").
				DescriptionFunc(func() string {
					if transport.Mode(m.formMode) == transport.ModeGmail {
						return "Gmail app password (16 letters, see help)"
					}
					return "SMTP password"
				}, &m.formMode).
				EchoMode(huh.EchoModePassword).
				Value(&m.formPassword),
			huh.NewInput().
				Title("Sender display name").
				Placeholder("Academic Affairs Office").
				Value(&m.formDisplayName),
			huh.NewConfirm().
				Title("Remember these settings").
				Description("Save defaults to the config file and the password to the system keyring").
				Affirmative("Yes").
				Negative("No").
				Value(&m.formRemember),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		sub := m.submission()
		m.form = nil
		m.mode = ModeSummary
		return m, func() tea.Msg { return SubmittedMsg{Submission: sub} }
	case huh.StateAborted:
		m.form = nil
		m.mode = ModeSummary
		return m, nil
	}
	return m, cmd
}

func (m Model) submission() Submission {
	return Submission{
		Mode:        transport.Mode(m.formMode),
		Host:        m.formHost,
		Port:        m.formPort,
		User:        m.formUser,
		Password:    m.formPassword,
		DisplayName: m.formDisplayName,
		Remember:    m.formRemember,
	}
}

func (m *Model) resetFormFields() {
	c := m.current
	m.formMode = string(c.Mode)
	m.formHost = c.Host
	if c.HostLocked() {
		m.formHost = ""
	}
	m.formPort = strconv.Itoa(c.Port)
	m.formUser = c.SenderUser
	m.formPassword = c.SenderPassword
	m.formDisplayName = c.SenderDisplayName
}

// --- Connection test ---

func (m Model) startVerify() (Model, tea.Cmd) {
	cmd := m.Verify()
	return m, cmd
}

// Verify starts a connection test of the current settings.
func (m *Model) Verify() tea.Cmd {
	m.mode = ModeVerifying
	return tea.Batch(m.spinner.Tick, verify(m.current))
}

func verify(cfg transport.Config) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), VerifyTimeout)
		defer cancel()
		w := cfg.Wire()
		return VerifyResultMsg{
			Address: fmt.Sprintf("%s:%d", w.Server, w.Port),
			Err:     transport.Verify(ctx, cfg),
		}
	}
}

// --- View ---

// View renders the settings UI based on the current mode.
func (m Model) View() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	switch m.mode {
	case ModeForm:
		if m.form == nil {
			return style.Render("")
		}
		return style.Render(m.form.View())
	case ModeVerifying:
		return style.Render(fmt.Sprintf(
			"%s Testing connection...\n\nPress esc to cancel.",
			m.spinner.View(),
		))
	case ModeVerifyResult:
		return style.Render(m.viewVerifyResult())
	default:
		return style.Render(m.viewSummary())
	}
}

func (m Model) viewSummary() string {
	var b strings.Builder
	c := m.current
	w := c.Wire()

	b.WriteString(theme.TitleStyle.Render("Email Settings"))
	b.WriteString("\n\n")

	password := theme.MissingEmailStyle.Render("not set")
	if c.SenderPassword != "" {
		password = "********"
	}
	server := fmt.Sprintf("%s:%d", w.Server, w.Port)
	if c.HostLocked() {
		server += theme.DimmedStyle.Render("  (fixed by mode)")
	}

	rows := [][2]string{
		{"Mode", theme.ModeStyle(c.Mode).Render(c.Mode.Label())},
		{"Server", server},
		{"Sender", orDash(c.SenderUser)},
		{"Password", password},
		{"Display name", orDash(c.SenderDisplayName)},
	}
	labelStyle := lipgloss.NewStyle().Width(14).Foreground(theme.ColorGray)
	for _, r := range rows {
		b.WriteString(theme.ListItemStyle.Render(labelStyle.Render(r[0]) + r[1]))
		b.WriteString("\n")
	}

	if problems := c.Problems(); len(problems) > 0 {
		b.WriteString("\n")
		warn := lipgloss.NewStyle().Foreground(theme.ColorYellow)
		for _, p := range problems {
			b.WriteString(warn.Render("! " + p))
			b.WriteString("\n")
		}
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().
			Foreground(theme.ColorYellow).
			Italic(true).
			Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	b.WriteString(theme.HelpStyle.Render("e edit | v test connection | esc back"))
	return b.String()
}

func (m Model) viewVerifyResult() string {
	if m.verifyErr != nil {
		errStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorRed)
		return errStyle.Render("Connection failed") + "\n\n" +
			m.verifyErr.Error() + "\n\n" +
			theme.DimmedStyle.Render("r retry | enter/esc back")
	}

	okStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorGreen)
	detail := "Connected to " + m.verifyAddr
	if m.current.IsMock() {
		detail = "Mock mode needs no connection."
	}
	return okStyle.Render("Connection successful") + "\n\n" +
		detail + "\n\n" +
		theme.DimmedStyle.Render("enter/esc back")
}

// --- Helpers ---

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

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validatePort(s string) error {
	if transport.CoercePort(s) <= 0 {
		return fmt.Errorf("port must be a positive number")
	}
	return nil
}
