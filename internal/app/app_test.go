package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/subnotify/internal/model"
	"github.com/nhle/subnotify/internal/slots"
	"github.com/nhle/subnotify/internal/transport"
	"github.com/nhle/subnotify/internal/ui/review"
	"github.com/nhle/subnotify/internal/ui/upload"
	"github.com/nhle/subnotify/internal/ui/settings"
	"github.com/nhle/subnotify/internal/workflow"
	"github.com/nhle/subnotify/tests/testutil"
)

func newTestModel(t *testing.T, opts Options) Model {
	t.Helper()
	if opts.Machine == nil {
		opts.Machine = workflow.New(workflow.Deps{Transport: transport.Default("Office")})
	}
	m := New(opts)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(Model)
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestStageView(t *testing.T) {
	tests := []struct {
		stage workflow.Stage
		want  ViewState
	}{
		{workflow.StageUpload, ViewUpload},
		{workflow.StagePreview, ViewReview},
		{workflow.StageResult, ViewResult},
	}
	for _, tt := range tests {
		if got := stageView(tt.stage); got != tt.want {
			t.Errorf("stageView(%v) = %v, want %v", tt.stage, got, tt.want)
		}
	}
}

func TestNewStartsOnUpload(t *testing.T) {
	m := newTestModel(t, Options{})
	if m.currentView != ViewUpload {
		t.Fatalf("expected upload view, got %v", m.currentView)
	}
	if !strings.Contains(m.View(), "Substitution Notices") {
		t.Error("expected header in view")
	}
}

func TestHelpToggle(t *testing.T) {
	m := newTestModel(t, Options{})

	updated, _ := m.Update(runeKey('?'))
	m = updated.(Model)
	if m.currentView != ViewHelp {
		t.Fatalf("expected help view, got %v", m.currentView)
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = updated.(Model)
	if m.currentView != ViewUpload {
		t.Fatalf("expected upload view after esc, got %v", m.currentView)
	}
}

func TestCtrlCQuits(t *testing.T) {
	m := newTestModel(t, Options{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if m.ctx.Err() == nil {
		t.Error("expected context to be cancelled")
	}
}

func TestDispatchRefusedOutsidePreview(t *testing.T) {
	m := newTestModel(t, Options{})
	updated, _ := m.Update(review.DispatchMsg{})
	m = updated.(Model)
	if m.currentView != ViewUpload {
		t.Errorf("expected to stay on upload, got %v", m.currentView)
	}
}

func TestExecuteCommandMode(t *testing.T) {
	m := newTestModel(t, Options{})

	m.executeCommand("mode gmail")
	cur := m.machine.Transport()
	if cur.Mode != transport.ModeGmail {
		t.Errorf("expected gmail mode, got %q", cur.Mode)
	}
	if cur.Host != transport.GmailHost {
		t.Errorf("expected host %q, got %q", transport.GmailHost, cur.Host)
	}
	if !strings.Contains(m.notice, "Gmail") {
		t.Errorf("expected notice naming the mode, got %q", m.notice)
	}

	m.executeCommand("mode carrier-pigeon")
	if m.machine.Transport().Mode != transport.ModeGmail {
		t.Error("an unknown mode must not change the transport")
	}
	if m.notice == "" {
		t.Error("expected notice for unknown mode")
	}
}

func TestExecuteCommandUnknown(t *testing.T) {
	m := newTestModel(t, Options{})
	if cmd := m.executeCommand("frobnicate"); cmd != nil {
		t.Error("expected no command")
	}
	if !strings.Contains(m.notice, "Unknown command") {
		t.Errorf("unexpected notice %q", m.notice)
	}
}

func TestExecuteCommandOverlays(t *testing.T) {
	m := newTestModel(t, Options{})

	m.executeCommand("history")
	if m.currentView != ViewHistory {
		t.Errorf("expected history view, got %v", m.currentView)
	}

	m.currentView = ViewUpload
	m.executeCommand("settings")
	if m.currentView != ViewSettings {
		t.Errorf("expected settings view, got %v", m.currentView)
	}
}

func TestApplySettingsWithoutRemember(t *testing.T) {
	called := false
	m := newTestModel(t, Options{
		Remember: func(user, password string) error {
			called = true
			return nil
		},
	})

	updated, cmd := m.Update(settings.SubmittedMsg{Submission: settings.Submission{
		Mode:        transport.ModeCustom,
		Host:        "smtp.school.example",
		Port:        "2525",
		User:        "office@school.example",
		Password:    "secret",
		DisplayName: "Front Office",
	}})
	m = updated.(Model)
	if cmd != nil {
		t.Error("expected no save command when not remembering")
	}
	if called {
		t.Error("remember must not be called")
	}

	cur := m.machine.Transport()
	if cur.Host != "smtp.school.example" || cur.Port != 2525 {
		t.Errorf("unexpected server %s:%d", cur.Host, cur.Port)
	}
	if cur.SenderDisplayName != "Front Office" {
		t.Errorf("unexpected display name %q", cur.SenderDisplayName)
	}
}

func TestApplySettingsRemember(t *testing.T) {
	var gotUser, gotPassword string
	t.Setenv("SUBNOTIFY_API_URL", "")
	t.Setenv("API_URL", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := model.LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	m := newTestModel(t, Options{
		Config:     cfg,
		ConfigPath: path,
		Remember: func(user, password string) error {
			gotUser, gotPassword = user, password
			return nil
		},
	})

	_, cmd := m.Update(settings.SubmittedMsg{Submission: settings.Submission{
		Mode:     transport.ModeGmail,
		User:     "office@gmail.com",
		Password: "abcdabcdabcdabcd",
		Remember: true,
	}})
	if cmd == nil {
		t.Fatal("expected save command")
	}
	got := cmd()
	msg, ok := got.(settingsSavedMsg)
	if !ok {
		t.Fatalf("expected settingsSavedMsg, got %T", got)
	}
	if msg.err != nil {
		t.Fatalf("saving settings: %v", msg.err)
	}
	if gotUser != "office@gmail.com" || gotPassword != "abcdabcdabcdabcd" {
		t.Errorf("remember got %q/%q", gotUser, gotPassword)
	}

	loaded, err := model.LoadConfig(path)
	if err != nil {
		t.Fatalf("loading saved config: %v", err)
	}
	if loaded.Transport.Mode != "gmail" {
		t.Errorf("expected saved mode gmail, got %q", loaded.Transport.Mode)
	}
	if loaded.Transport.SenderUser != "office@gmail.com" {
		t.Errorf("expected saved user, got %q", loaded.Transport.SenderUser)
	}
}

func TestHistoryReadsJournal(t *testing.T) {
	j := testutil.NewTestJournal(t)
	m := newTestModel(t, Options{History: j})

	updated, cmd := m.Update(runeKey('h'))
	m = updated.(Model)
	if m.currentView != ViewHistory {
		t.Fatalf("expected history view, got %v", m.currentView)
	}
	if cmd == nil {
		t.Fatal("expected load command")
	}
	updated, _ = m.Update(cmd())
	m = updated.(Model)
	if !strings.Contains(m.View(), "No batches sent yet") {
		t.Error("expected empty history message")
	}
}

// blockingAnalyzer holds Preview until release is closed.
type blockingAnalyzer struct {
	started chan struct{}
	release chan struct{}
}

func (a *blockingAnalyzer) Preview(ctx context.Context, teacher, sub *slots.Blob) ([]model.PreviewItem, error) {
	close(a.started)
	<-a.release
	return []model.PreviewItem{{
		TeacherName: "Wang",
		Email:       model.StringPtr("w@school.edu"),
		DataRows:    []model.NotificationRow{{Date: "2024-03-04", Period: "2", Class: "701"}},
	}}, nil
}

// runBatch runs every command of a batch in its own goroutine and
// forwards the messages.
func runBatch(cmd tea.Cmd) <-chan tea.Msg {
	out := make(chan tea.Msg, 8)
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		out <- msg
		return out
	}
	for _, c := range batch {
		if c == nil {
			continue
		}
		go func(c tea.Cmd) { out <- c() }(c)
	}
	return out
}

func TestControlsDisabledWhilePreviewInFlight(t *testing.T) {
	a := &blockingAnalyzer{started: make(chan struct{}), release: make(chan struct{})}
	machine := workflow.New(workflow.Deps{Analyzer: a, Transport: transport.Default("Office")})
	for _, name := range slots.Names {
		if err := machine.SetSlot(name, &slots.Blob{Name: string(name) + ".xlsx", Size: 1, Data: []byte("x")}); err != nil {
			t.Fatalf("SetSlot %s: %v", name, err)
		}
	}
	m := newTestModel(t, Options{Machine: machine})

	updated, cmd := m.Update(upload.AnalyzeMsg{})
	m = updated.(Model)
	if cmd == nil {
		t.Fatal("expected preview command")
	}
	msgs := runBatch(cmd)

	select {
	case <-a.started:
	case <-time.After(2 * time.Second):
		t.Fatal("analyzer was not called")
	}

	if !m.snap.Busy() || m.snap.CanPreview() {
		t.Error("views should see the request in flight")
	}

	updated, _ = m.Update(runeKey('t'))
	m = updated.(Model)
	if m.uploadView.Picking() {
		t.Error("file picker opened while a request is in flight")
	}

	if _, cmd := m.Update(runeKey('a')); cmd != nil {
		t.Error("analyze key should do nothing while a request is in flight")
	}

	updated, _ = m.Update(upload.AnalyzeMsg{})
	m = updated.(Model)
	if m.notice != workflow.ErrBusy.Error() {
		t.Errorf("notice = %q, want busy notice", m.notice)
	}

	close(a.release)
	var done tea.Msg
	timeout := time.After(2 * time.Second)
	for done == nil {
		select {
		case msg := <-msgs:
			if _, ok := msg.(previewDoneMsg); ok {
				done = msg
			}
		case <-timeout:
			t.Fatal("preview did not finish")
		}
	}

	updated, _ = m.Update(done)
	m = updated.(Model)
	if m.currentView != ViewReview {
		t.Fatalf("expected review view, got %v", m.currentView)
	}
	if m.snap.Busy() {
		t.Error("snapshot should be idle after the preview finished")
	}
}
