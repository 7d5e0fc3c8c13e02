// Package workflow drives a batch from file selection through review to
// the dispatch report. The Machine is safe for concurrent use: the UI
// calls it from command goroutines while rendering from snapshots.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/nhle/subnotify/internal/journal"
	"github.com/nhle/subnotify/internal/ledger"
	"github.com/nhle/subnotify/internal/model"
	"github.com/nhle/subnotify/internal/preview"
	"github.com/nhle/subnotify/internal/slots"
	"github.com/nhle/subnotify/internal/transport"
)

// Analyzer groups the two spreadsheets into per-teacher notifications.
type Analyzer interface {
	Preview(ctx context.Context, teacher, sub *slots.Blob) ([]model.PreviewItem, error)
}

// Dispatcher sends the notifications and reports one outcome per item.
type Dispatcher interface {
	Send(ctx context.Context, cfg transport.Wire, items []model.PreviewItem) ([]model.DispatchResult, error)
}

// Recorder keeps a history of dispatched batches.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) (journal.Batch, error)
}

// Deps are the collaborators of a Machine. Journal and Logger are optional.
type Deps struct {
	Analyzer   Analyzer
	Dispatcher Dispatcher
	Journal    Recorder
	Logger     *slog.Logger
	Transport  transport.Config
}

// Prompt is what the user confirms before a dispatch.
type Prompt struct {
	Eligible int
	Total    int
	Mock     bool
	Problems []string
}

// Text returns the confirmation question.
func (p Prompt) Text() string {
	text := fmt.Sprintf("About to send %d notification email(s). Continue?", p.Eligible)
	if skipped := p.Total - p.Eligible; skipped > 0 {
		text += fmt.Sprintf("\n%d teacher(s) without an email will be skipped.", skipped)
	}
	if p.Mock {
		text += "\nMock mode: no real email will be sent."
	}
	return text
}

// Machine is the Upload → Preview → Result state machine.
type Machine struct {
	analyzer   Analyzer
	dispatcher Dispatcher
	journal    Recorder
	log        *slog.Logger

	// guard admits at most one service call at a time.
	guard *semaphore.Weighted

	mu        sync.Mutex
	state     State
	slots     *slots.Manager
	transport transport.Config
	inFlight  Op
	err       *Error
}

// New creates a Machine in the Upload stage with empty slots.
func New(deps Deps) *Machine {
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Machine{
		analyzer:   deps.Analyzer,
		dispatcher: deps.Dispatcher,
		journal:    deps.Journal,
		log:        log,
		guard:      semaphore.NewWeighted(1),
		state:      Upload{},
		slots:      slots.New(),
		transport:  deps.Transport,
	}
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:     m.state.clone(),
		Teacher:   m.slots.Get(slots.Teacher),
		Sub:       m.slots.Get(slots.Sub),
		Transport: m.transport,
		InFlight:  m.inFlight,
		Err:       m.err,
	}
}

// Stage returns the current stage.
func (m *Machine) Stage() Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Stage()
}

// Busy reports whether a service call is in flight.
func (m *Machine) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight != OpNone
}

// Err returns the current error, or nil.
func (m *Machine) Err() *Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// DismissError clears the current error.
func (m *Machine) DismissError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = nil
}

// Transport returns the current transport settings.
func (m *Machine) Transport() transport.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transport
}

// ConfigureTransport applies fn to a copy of the transport settings and
// keeps the result only when fn succeeds.
func (m *Machine) ConfigureTransport(fn func(*transport.Config) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight != OpNone {
		return ErrBusy
	}
	cfg := m.transport
	if err := fn(&cfg); err != nil {
		return err
	}
	m.transport = cfg
	m.log.Debug("transport configured", "mode", cfg.Mode, "host", cfg.Host, "port", cfg.Port)
	return nil
}

// SetSlot fills or clears a file slot. Only available in Upload.
func (m *Machine) SetSlot(name slots.Name, blob *slots.Blob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require(StageUpload); err != nil {
		return err
	}
	if err := m.slots.Set(name, blob); err != nil {
		return err
	}
	if blob != nil {
		m.log.Info("file selected", "slot", name, "file", blob.Name, "bytes", blob.Size)
	}
	return nil
}

// ToggleExpand expands or collapses a teacher in the Preview stage.
func (m *Machine) ToggleExpand(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require(StagePreview); err != nil {
		return err
	}
	m.state.(Preview).Dataset.ToggleExpand(name)
	return nil
}

// SetEmail fills in or corrects a teacher's address in the Preview stage.
func (m *Machine) SetEmail(name, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require(StagePreview); err != nil {
		return err
	}
	if err := m.state.(Preview).Dataset.SetEmail(name, address); err != nil {
		return err
	}
	m.log.Info("email edited", "teacher", name, "cleared", address == "")
	return nil
}

// RequestPreview sends both files to the Analysis Service. On success the
// dataset is replaced and the stage becomes Preview. Failures stay in
// Upload with the error set.
func (m *Machine) RequestPreview(ctx context.Context) error {
	if !m.guard.TryAcquire(1) {
		return ErrBusy
	}
	defer m.guard.Release(1)

	m.mu.Lock()
	if err := m.require(StageUpload); err != nil {
		m.mu.Unlock()
		return err
	}
	m.err = nil
	if !m.slots.AllFilled() {
		m.err = &Error{Kind: KindValidation, Op: OpPreview, Message: MsgSlotsMissing}
		err, missing := m.err, m.slots.Missing()
		m.mu.Unlock()
		m.log.Warn("preview refused", "missing", missing)
		return err
	}
	teacher, sub := m.slots.Get(slots.Teacher), m.slots.Get(slots.Sub)
	m.inFlight = OpPreview
	m.mu.Unlock()
	defer m.settle()

	m.log.Info("requesting preview", "teacher_file", teacher.Name, "sub_file", sub.Name)
	items, err := m.analyzer.Preview(ctx, teacher, sub)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.err = classifyPreview(err)
		m.log.Error("preview failed", "kind", m.err.Kind, "error", err)
		return m.err
	}

	ds := preview.New()
	if err := ds.Load(items); err != nil {
		m.err = &Error{Kind: KindTransport, Op: OpPreview, Message: MsgPreviewFailed, Err: err}
		m.log.Error("preview rejected", "error", err)
		return m.err
	}

	m.state = Preview{Dataset: ds}
	stats := ds.Stats()
	m.log.Info("preview loaded", "teachers", stats.Total, "missing_email", stats.Missing)
	return nil
}

// Restart returns from Preview to Upload. Slots are kept and the dataset
// is retained until a new preview succeeds or the workflow is reset.
func (m *Machine) Restart() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require(StagePreview); err != nil {
		return err
	}
	m.err = nil
	m.state = Upload{Retained: m.state.(Preview).Dataset}
	m.log.Info("returned to upload")
	return nil
}

// DispatchPrompt describes the confirmation for the current dataset.
func (m *Machine) DispatchPrompt() (Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require(StagePreview); err != nil {
		return Prompt{}, err
	}
	return m.prompt(), nil
}

// RequestDispatch asks confirm and, when it agrees, sends the whole
// dataset with the transport settings to the Dispatch Service. On success
// the ledger is replaced and the stage becomes Result.
func (m *Machine) RequestDispatch(ctx context.Context, confirm func(Prompt) bool) error {
	if !m.guard.TryAcquire(1) {
		return ErrBusy
	}
	defer m.guard.Release(1)

	m.mu.Lock()
	if err := m.require(StagePreview); err != nil {
		m.mu.Unlock()
		return err
	}
	p := m.prompt()
	m.mu.Unlock()

	if p.Eligible == 0 {
		return ErrNothingEligible
	}
	if confirm != nil && !confirm(p) {
		m.log.Info("dispatch declined", "eligible", p.Eligible)
		return ErrDeclined
	}

	m.mu.Lock()
	if err := m.require(StagePreview); err != nil {
		m.mu.Unlock()
		return err
	}
	ds := m.state.(Preview).Dataset
	items := ds.Items()
	cfg := m.transport
	m.err = nil
	m.inFlight = OpDispatch
	m.mu.Unlock()
	defer m.settle()

	wire := cfg.Wire()
	m.log.Info("dispatching",
		"notifications", len(items),
		"eligible", p.Eligible,
		"mode", wire.Mode,
		"host", wire.Server,
	)
	results, err := m.dispatcher.Send(ctx, wire, items)
	if err != nil {
		m.mu.Lock()
		m.err = classifyDispatch(err)
		werr := m.err
		m.mu.Unlock()
		m.log.Error("dispatch failed", "kind", werr.Kind, "error", err)
		return werr
	}

	if len(results) != len(items) {
		m.log.Warn("dispatch result count mismatch", "sent", len(items), "results", len(results))
	}

	l := ledger.New()
	l.Load(results)

	m.mu.Lock()
	m.state = Result{Dataset: ds, Ledger: l}
	m.mu.Unlock()

	s := l.Summary()
	m.log.Info("dispatch complete", "success", s.Success, "failed", s.Failed, "no_email", s.NoEmail)

	if m.journal != nil {
		batch, err := m.journal.Record(ctx, journal.Entry{Config: wire, Items: items, Results: results})
		if err != nil {
			m.log.Error("recording batch", "error", err)
		} else {
			m.log.Debug("batch recorded", "batch", batch.ID)
		}
	}
	return nil
}

// Reset returns from Result to Upload, clearing the slots, dataset,
// ledger and error. Transport settings are kept.
func (m *Machine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require(StageResult); err != nil {
		return err
	}
	m.slots.Clear()
	m.state = Upload{}
	m.err = nil
	m.log.Info("workflow reset")
	return nil
}

// require checks the stage and that no call is in flight. m.mu must be held.
func (m *Machine) require(stage Stage) error {
	if m.inFlight != OpNone {
		return ErrBusy
	}
	if got := m.state.Stage(); got != stage {
		return fmt.Errorf("%w: in %s, need %s", ErrInvalidTransition, got, stage)
	}
	return nil
}

// prompt builds the dispatch confirmation. m.mu must be held.
func (m *Machine) prompt() Prompt {
	ds := m.state.(Preview).Dataset
	stats := ds.Stats()
	return Prompt{
		Eligible: stats.Ready(),
		Total:    stats.Total,
		Mock:     m.transport.IsMock(),
		Problems: m.transport.Problems(),
	}
}

func (m *Machine) settle() {
	m.mu.Lock()
	m.inFlight = OpNone
	m.mu.Unlock()
}
