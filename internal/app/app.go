package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/subnotify/internal/compose"
	"github.com/nhle/subnotify/internal/keys"
	"github.com/nhle/subnotify/internal/ledger"
	"github.com/nhle/subnotify/internal/model"
	"github.com/nhle/subnotify/internal/report"
	"github.com/nhle/subnotify/internal/slots"
	"github.com/nhle/subnotify/internal/theme"
	"github.com/nhle/subnotify/internal/transport"
	"github.com/nhle/subnotify/internal/ui"
	"github.com/nhle/subnotify/internal/ui/command"
	"github.com/nhle/subnotify/internal/ui/confirm"
	helpview "github.com/nhle/subnotify/internal/ui/help"
	"github.com/nhle/subnotify/internal/ui/history"
	"github.com/nhle/subnotify/internal/ui/result"
	"github.com/nhle/subnotify/internal/ui/review"
	"github.com/nhle/subnotify/internal/ui/settings"
	"github.com/nhle/subnotify/internal/ui/upload"
	"github.com/nhle/subnotify/internal/workflow"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewUpload ViewState = iota
	ViewReview
	ViewResult
	ViewSettings
	ViewConfirm
	ViewHistory
	ViewHelp
	ViewCommand
)

// isStage reports whether v follows the workflow stage.
func (v ViewState) isStage() bool {
	return v == ViewUpload || v == ViewReview || v == ViewResult
}

// stageView returns the view that renders stage s.
func stageView(s workflow.Stage) ViewState {
	switch s {
	case workflow.StagePreview:
		return ViewReview
	case workflow.StageResult:
		return ViewResult
	default:
		return ViewUpload
	}
}

// Options are the collaborators of the root model.
type Options struct {
	Machine    *workflow.Machine
	History    history.Reader
	Config     *model.AppConfig
	ConfigPath string
	Logger     *slog.Logger

	// Remember stores the sender password. Nil disables remembering.
	Remember func(user, password string) error
}

// Model is the root Bubble Tea model that routes between the stage views
// and the overlays, and runs workflow actions as commands.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap

	machine  *workflow.Machine
	snap     workflow.Snapshot
	cfg      *model.AppConfig
	cfgPath  string
	log      *slog.Logger
	remember func(user, password string) error

	// ctx is cancelled when the program quits so in-flight requests stop.
	ctx    context.Context
	cancel context.CancelFunc

	uploadView   upload.Model
	reviewView   review.Model
	resultView   result.Model
	settingsView settings.Model
	confirmView  confirm.Model
	historyView  history.Model
	helpView     helpview.Model
	commandView  command.Model

	spinner spinner.Model
	pending workflow.Op
	notice  string
	ready   bool
}

// New creates the root application model.
func New(opts Options) Model {
	k := keys.DefaultKeyMap()
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = &model.AppConfig{}
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.MockBannerStyle

	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		currentView:  ViewUpload,
		keys:         k,
		machine:      opts.Machine,
		cfg:          cfg,
		cfgPath:      opts.ConfigPath,
		log:          log,
		remember:     opts.Remember,
		ctx:          ctx,
		cancel:       cancel,
		uploadView:   upload.New(k, 80, 24),
		reviewView:   review.New(k, 80, 24),
		resultView:   result.New(k, 80, 24),
		settingsView: settings.New(k, 80, 24),
		confirmView:  confirm.New(80, 24),
		historyView:  history.New(opts.History, k, 80, 24),
		helpView:     helpview.New(k, 80, 24),
		commandView:  command.New(80, 24),
		spinner:      sp,
	}
	m.sync()
	return m
}

// Init sets the window title.
func (m Model) Init() tea.Cmd {
	return tea.SetWindowTitle("subnotify")
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.uploadView.SetSize(contentWidth, contentHeight)
		m.reviewView.SetSize(contentWidth, contentHeight)
		m.resultView.SetSize(contentWidth, contentHeight)
		m.settingsView.SetSize(contentWidth, contentHeight)
		m.confirmView.SetSize(contentWidth, contentHeight)
		m.historyView.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case spinner.TickMsg:
		var cmds []tea.Cmd
		if m.pending != workflow.OpNone {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
		var cmd tea.Cmd
		m.settingsView, cmd = m.settingsView.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	// --- Upload ---

	case upload.SlotChosenMsg:
		return m, loadSlot(msg.Slot, msg.Path)

	case slotLoadedMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("Could not read %s: %v", msg.slot.Label(), msg.err)
			m.log.Warn("reading slot file", "slot", msg.slot, "error", msg.err)
			return m, nil
		}
		m.refuse(m.machine.SetSlot(msg.slot, msg.blob))
		return m, m.sync()

	case upload.AnalyzeMsg:
		return m.startPreview()

	case previewDoneMsg:
		m.pending = workflow.OpNone
		m.refuse(msg.err)
		return m, m.sync()

	// --- Review ---

	case review.ToggleExpandMsg:
		m.refuse(m.machine.ToggleExpand(msg.Name))
		return m, m.sync()

	case review.EmailEditedMsg:
		if err := m.machine.SetEmail(msg.Name, msg.Address); err != nil {
			m.notice = fmt.Sprintf("Email not changed: %v", err)
		} else {
			m.notice = ""
		}
		return m, m.sync()

	case review.ExportEMLMsg:
		ds := m.snap.Dataset()
		if ds == nil {
			return m, nil
		}
		item, ok := ds.Find(msg.Name)
		if !ok {
			return m, nil
		}
		return m, exportEML(m.exportDir(), item, m.snap.Transport)

	case review.DispatchMsg:
		return m.openConfirm()

	case review.RestartMsg:
		m.refuse(m.machine.Restart())
		return m, m.sync()

	case confirm.ConfirmedMsg:
		m.currentView = stageView(m.snap.Stage())
		return m.startDispatch(msg.Prompt)

	case confirm.CancelledMsg:
		m.currentView = stageView(m.snap.Stage())
		m.log.Info("dispatch cancelled")
		return m, nil

	case dispatchDoneMsg:
		m.pending = workflow.OpNone
		if errors.Is(msg.err, workflow.ErrDeclined) {
			m.notice = "The preview changed before sending; review it and send again."
		} else {
			m.refuse(msg.err)
		}
		return m, m.sync()

	// --- Result ---

	case result.ExportMsg:
		l := m.snap.Ledger()
		if l == nil {
			m.notice = "Nothing to export until a batch has been sent"
			return m, nil
		}
		return m, exportReport(m.exportDir(), l.Clone(), msg.Format)

	case result.ResetMsg:
		m.refuse(m.machine.Reset())
		return m, m.sync()

	case exportedMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("Export failed: %v", msg.err)
			m.log.Error("export failed", "error", msg.err)
			return m, nil
		}
		m.notice = "Saved " + msg.path
		m.log.Info("exported", "path", msg.path)
		return m, nil

	// --- Settings ---

	case settings.SubmittedMsg:
		return m.applySettings(msg.Submission)

	case settingsSavedMsg:
		if msg.err != nil {
			m.settingsView.SetStatus(fmt.Sprintf("Applied, but not remembered: %v", msg.err))
			m.log.Error("saving settings", "error", msg.err)
			return m, nil
		}
		m.settingsView.SetStatus("Settings applied and remembered")
		return m, nil

	case settings.DoneMsg:
		m.currentView = stageView(m.snap.Stage())
		return m, nil

	// --- History ---

	case history.CloseMsg:
		m.currentView = stageView(m.snap.Stage())
		return m, nil

	case command.CommandMsg:
		m.currentView = m.back()
		return m, m.executeCommand(string(msg))

	case tea.KeyMsg:
		// ctrl+c always quits, even while a form has focus.
		if msg.String() == "ctrl+c" {
			m.cancel()
			return m, tea.Quit
		}
		if m.capturing() {
			break
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.currentView.isStage() {
				m.cancel()
				return m, tea.Quit
			}

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.back()
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case key.Matches(msg, m.keys.Command):
			if m.currentView == ViewCommand {
				m.currentView = m.back()
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewCommand
			return m, m.commandView.Focus()

		case key.Matches(msg, m.keys.Dismiss):
			m.machine.DismissError()
			m.notice = ""
			return m, m.sync()

		case key.Matches(msg, m.keys.Back):
			if m.currentView == ViewHelp || m.currentView == ViewCommand {
				m.currentView = m.back()
				return m, nil
			}

		case key.Matches(msg, m.keys.Settings):
			if m.currentView.isStage() {
				return m.openSettings()
			}

		case key.Matches(msg, m.keys.History):
			if m.currentView.isStage() {
				m.previousView = m.currentView
				m.currentView = ViewHistory
				return m, m.historyView.Init()
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewUpload:
		m.uploadView, cmd = m.uploadView.Update(msg)
	case ViewReview:
		m.reviewView, cmd = m.reviewView.Update(msg)
	case ViewResult:
		m.resultView, cmd = m.resultView.Update(msg)
	case ViewSettings:
		m.settingsView, cmd = m.settingsView.Update(msg)
	case ViewConfirm:
		m.confirmView, cmd = m.confirmView.Update(msg)
	case ViewHistory:
		m.historyView, cmd = m.historyView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// capturing reports whether the active view needs every key, so global
// shortcuts must not fire.
func (m Model) capturing() bool {
	switch m.currentView {
	case ViewUpload:
		return m.uploadView.Picking()
	case ViewReview:
		return m.reviewView.Capturing()
	case ViewResult:
		return m.resultView.Capturing()
	case ViewSettings:
		return m.settingsView.Capturing()
	case ViewConfirm, ViewCommand:
		return true
	default:
		return false
	}
}

// back returns the view to show after closing an overlay.
func (m Model) back() ViewState {
	if m.previousView.isStage() {
		return stageView(m.snap.Stage())
	}
	return m.previousView
}

// sync takes a fresh snapshot and pushes it to the stage views. A stage
// view is swapped when the stage changed underneath it. A request started
// by this model counts as in flight until its done message arrives.
func (m *Model) sync() tea.Cmd {
	if m.machine == nil {
		return nil
	}
	m.snap = m.machine.Snapshot()
	if m.pending != workflow.OpNone {
		m.snap.InFlight = m.pending
	}
	m.uploadView.SetSnapshot(m.snap)
	cmd := m.reviewView.SetSnapshot(m.snap)
	m.resultView.SetSnapshot(m.snap)
	if m.currentView.isStage() {
		m.currentView = stageView(m.snap.Stage())
	}
	return cmd
}

// refuse shows why an action was not taken. Workflow errors are already
// part of the snapshot and shown in the banner.
func (m *Model) refuse(err error) {
	if err == nil {
		m.notice = ""
		return
	}
	if _, ok := workflow.AsError(err); ok {
		m.notice = ""
		return
	}
	m.notice = err.Error()
}

// --- Workflow commands ---

type slotLoadedMsg struct {
	slot slots.Name
	blob *slots.Blob
	err  error
}

type previewDoneMsg struct {
	err error
}

type dispatchDoneMsg struct {
	err error
}

type exportedMsg struct {
	path string
	err  error
}

type settingsSavedMsg struct {
	err error
}

func loadSlot(slot slots.Name, path string) tea.Cmd {
	return func() tea.Msg {
		blob, err := slots.Open(path)
		return slotLoadedMsg{slot: slot, blob: blob, err: err}
	}
}

func (m Model) startPreview() (tea.Model, tea.Cmd) {
	if m.pending != workflow.OpNone {
		m.notice = workflow.ErrBusy.Error()
		return m, nil
	}
	m.pending = workflow.OpPreview
	m.notice = ""
	syncCmd := m.sync()
	machine, ctx := m.machine, m.ctx
	return m, tea.Batch(
		syncCmd,
		m.spinner.Tick,
		func() tea.Msg {
			return previewDoneMsg{err: machine.RequestPreview(ctx)}
		},
	)
}

func (m Model) openConfirm() (tea.Model, tea.Cmd) {
	p, err := m.machine.DispatchPrompt()
	if err != nil {
		m.refuse(err)
		return m, nil
	}
	if p.Eligible == 0 {
		m.notice = workflow.ErrNothingEligible.Error()
		return m, nil
	}
	m.previousView = m.currentView
	m.currentView = ViewConfirm
	return m, m.confirmView.Start(p)
}

// startDispatch sends the batch the user agreed to. The machine checks the
// prompt again and declines if the eligible count moved in between.
func (m Model) startDispatch(agreed workflow.Prompt) (tea.Model, tea.Cmd) {
	if m.pending != workflow.OpNone {
		m.notice = workflow.ErrBusy.Error()
		return m, nil
	}
	m.pending = workflow.OpDispatch
	m.notice = ""
	syncCmd := m.sync()
	machine, ctx := m.machine, m.ctx
	return m, tea.Batch(
		syncCmd,
		m.spinner.Tick,
		func() tea.Msg {
			err := machine.RequestDispatch(ctx, func(p workflow.Prompt) bool {
				return p.Eligible == agreed.Eligible && p.Total == agreed.Total
			})
			return dispatchDoneMsg{err: err}
		},
	)
}

func (m Model) exportDir() string {
	if m.cfg.Export.Dir == "" {
		return "."
	}
	return m.cfg.Export.Dir
}

func exportEML(dir string, item model.PreviewItem, cfg transport.Config) tea.Cmd {
	return func() tea.Msg {
		path, err := compose.ExportEML(dir, item, cfg)
		return exportedMsg{path: path, err: err}
	}
}

func exportReport(dir string, l *ledger.Ledger, f report.Format) tea.Cmd {
	return func() tea.Msg {
		path, err := report.Export(dir, l, f, time.Now())
		return exportedMsg{path: path, err: err}
	}
}

// --- Settings ---

func (m Model) openSettings() (tea.Model, tea.Cmd) {
	m.previousView = m.currentView
	m.currentView = ViewSettings
	m.settingsView.Open(m.machine.Transport(), m.cfg.Transport.RememberPassword)
	return m, nil
}

func (m Model) applySettings(sub settings.Submission) (tea.Model, tea.Cmd) {
	if err := m.machine.ConfigureTransport(sub.Apply); err != nil {
		m.settingsView.SetStatus(fmt.Sprintf("Settings not applied: %v", err))
		return m, nil
	}
	cur := m.machine.Transport()
	m.log.Info("settings applied", "mode", cur.Mode, "host", cur.Host, "port", cur.Port, "remember", sub.Remember)
	m.settingsView.Open(cur, sub.Remember)
	m.settingsView.SetStatus("Settings applied")
	m.sync()

	if !sub.Remember {
		return m, nil
	}

	m.cfg.Transport = model.TransportDefaults{
		Mode:              string(cur.Mode),
		Host:              cur.Host,
		Port:              cur.Port,
		SenderUser:        cur.SenderUser,
		SenderDisplayName: cur.SenderDisplayName,
		RememberPassword:  true,
	}
	cfg, path, rememberFn := *m.cfg, m.cfgPath, m.remember
	return m, func() tea.Msg {
		if path != "" {
			if err := model.SaveConfig(path, &cfg); err != nil {
				return settingsSavedMsg{err: err}
			}
		}
		if rememberFn != nil && cur.SenderUser != "" && cur.SenderPassword != "" {
			if err := rememberFn(cur.SenderUser, cur.SenderPassword); err != nil {
				return settingsSavedMsg{err: err}
			}
		}
		return settingsSavedMsg{}
	}
}

// --- View ---

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Substitution Notices", m.stageStatus())
	banner := m.layout.RenderBanner(theme.ErrorBannerStyle, m.bannerText())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, banner, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewUpload:
		return m.uploadView.View()
	case ViewReview:
		return m.reviewView.View()
	case ViewResult:
		return m.resultView.View()
	case ViewSettings:
		return m.settingsView.View()
	case ViewConfirm:
		return m.confirmView.View()
	case ViewHistory:
		return m.historyView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// stageStatus returns the header status: stage, progress and mode.
func (m Model) stageStatus() string {
	parts := []string{m.snap.Stage().String()}
	if m.pending != workflow.OpNone {
		parts = append(parts, m.spinner.View()+" "+m.pending.String())
	}
	mode := string(m.snap.Transport.Mode)
	if m.snap.Transport.IsMock() {
		mode = "MOCK"
	}
	parts = append(parts, mode)
	return strings.Join(parts, " | ")
}

func (m Model) bannerText() string {
	if m.snap.Err == nil {
		return ""
	}
	return m.snap.Err.Message + "  (ctrl+x to dismiss)"
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	// Show a pending notice prominently when present.
	if m.notice != "" && m.currentView.isStage() {
		return m.notice
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back | j/k scroll"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewSettings:
		return "e edit | v test connection | esc back"
	case ViewConfirm:
		return "←/→ choose | enter confirm | esc cancel"
	case ViewHistory:
		return "enter open batch | esc back"
	case ViewReview:
		return "enter expand | e edit email | tab filter | p preview | x save .eml | d send | b back | ? help"
	case ViewResult:
		return "x export report | n new batch | h history | ? help"
	default:
		return "t roster | s notices | a analyze | c settings | h history | ? help | q quit"
	}
}

// executeCommand runs a palette command in the canonical form produced by
// command.Parse.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	fields := strings.Fields(strings.ToLower(cmd))
	if len(fields) == 0 {
		return nil
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case "analyze":
		return msgCmd(upload.AnalyzeMsg{})
	case "send":
		return msgCmd(review.DispatchMsg{})
	case "back":
		return msgCmd(review.RestartMsg{})
	case "reset":
		return msgCmd(result.ResetMsg{})
	case "settings":
		m.previousView = stageView(m.snap.Stage())
		m.currentView = ViewSettings
		m.settingsView.Open(m.machine.Transport(), m.cfg.Transport.RememberPassword)
		return nil
	case "verify":
		m.previousView = stageView(m.snap.Stage())
		m.currentView = ViewSettings
		m.settingsView.Open(m.machine.Transport(), m.cfg.Transport.RememberPassword)
		return m.settingsView.Verify()
	case "mode":
		mode, err := transport.ParseMode(arg)
		if err != nil {
			m.notice = err.Error()
			return nil
		}
		if err := m.machine.ConfigureTransport(func(c *transport.Config) error {
			return c.SetMode(mode)
		}); err != nil {
			m.notice = err.Error()
			return nil
		}
		m.notice = "Sending mode: " + mode.Label()
		return m.sync()
	case "export":
		format, err := report.ParseFormat(arg)
		if err != nil {
			m.notice = err.Error()
			return nil
		}
		return msgCmd(result.ExportMsg{Format: format})
	case "history":
		m.previousView = stageView(m.snap.Stage())
		m.currentView = ViewHistory
		return m.historyView.Init()
	case "help":
		m.previousView = stageView(m.snap.Stage())
		m.currentView = ViewHelp
		return nil
	case "quit":
		m.cancel()
		return tea.Quit
	default:
		m.notice = fmt.Sprintf("Unknown command %q", cmd)
		return nil
	}
}

func msgCmd(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}
