package workflow

import (
	"github.com/nhle/subnotify/internal/ledger"
	"github.com/nhle/subnotify/internal/preview"
	"github.com/nhle/subnotify/internal/slots"
	"github.com/nhle/subnotify/internal/transport"
)

// Stage is the step of the workflow the user is on.
type Stage int

const (
	StageUpload Stage = iota
	StagePreview
	StageResult
)

func (s Stage) String() string {
	switch s {
	case StageUpload:
		return "upload"
	case StagePreview:
		return "preview"
	case StageResult:
		return "result"
	default:
		return "unknown"
	}
}

// State is the stage together with the data that only exists in it.
// It is one of Upload, Preview or Result.
type State interface {
	Stage() Stage
	clone() State
}

// Upload is the file selection stage. Retained holds the dataset of a
// preview the user backed out of; it is dropped when a new preview
// succeeds or the workflow is reset.
type Upload struct {
	Retained *preview.Dataset
}

// Preview is the review stage.
type Preview struct {
	Dataset *preview.Dataset
}

// Result is the outcome stage. Dataset is what was dispatched.
type Result struct {
	Dataset *preview.Dataset
	Ledger  *ledger.Ledger
}

func (Upload) Stage() Stage  { return StageUpload }
func (Preview) Stage() Stage { return StagePreview }
func (Result) Stage() Stage  { return StageResult }

func (s Upload) clone() State  { return Upload{Retained: s.Retained.Clone()} }
func (s Preview) clone() State { return Preview{Dataset: s.Dataset.Clone()} }
func (s Result) clone() State {
	return Result{Dataset: s.Dataset.Clone(), Ledger: s.Ledger.Clone()}
}

// Op identifies the service call in flight.
type Op int

const (
	OpNone Op = iota
	OpPreview
	OpDispatch
)

func (o Op) String() string {
	switch o {
	case OpPreview:
		return "analyzing"
	case OpDispatch:
		return "sending"
	default:
		return "idle"
	}
}

// Snapshot is a point-in-time copy of the machine for rendering.
type Snapshot struct {
	State     State
	Teacher   *slots.Blob
	Sub       *slots.Blob
	Transport transport.Config
	InFlight  Op
	Err       *Error
}

// Stage returns the snapshot's stage.
func (s Snapshot) Stage() Stage {
	return s.State.Stage()
}

// Busy reports whether a service call was in flight.
func (s Snapshot) Busy() bool {
	return s.InFlight != OpNone
}

// Dataset returns the dataset of the Preview or Result stage.
func (s Snapshot) Dataset() *preview.Dataset {
	switch st := s.State.(type) {
	case Preview:
		return st.Dataset
	case Result:
		return st.Dataset
	default:
		return nil
	}
}

// Ledger returns the ledger of the Result stage.
func (s Snapshot) Ledger() *ledger.Ledger {
	if st, ok := s.State.(Result); ok {
		return st.Ledger
	}
	return nil
}

// CanPreview reports whether the preview request would be attempted.
func (s Snapshot) CanPreview() bool {
	return s.Stage() == StageUpload && !s.Busy()
}

// CanDispatch reports whether the dispatch control should be enabled.
func (s Snapshot) CanDispatch() bool {
	ds := s.Dataset()
	return s.Stage() == StagePreview && !s.Busy() && ds != nil && ds.Stats().Ready() > 0
}
