package workflow

import (
	"errors"
	"fmt"

	"github.com/nhle/subnotify/internal/service"
)

// Sentinel errors returned by Machine actions. They describe why an action
// was refused and never replace the displayed error.
var (
	ErrBusy              = errors.New("a request is already in progress")
	ErrInvalidTransition = errors.New("action not available in this stage")
	ErrNothingEligible   = errors.New("no recipient has an email address")
	ErrDeclined          = errors.New("dispatch declined")
)

// Messages shown when a service gives no usable explanation.
const (
	MsgSlotsMissing   = "Both the teacher email roster and the substitution notices are required"
	MsgPreviewFailed  = "Analysis failed, please check the spreadsheet format"
	MsgDispatchFailed = "An error occurred while sending notifications"
)

// Kind classifies an Error.
type Kind int

const (
	// KindValidation is a precondition failure detected locally.
	KindValidation Kind = iota
	// KindServiceDetail is a non-2xx response carrying a detail message.
	KindServiceDetail
	// KindServiceGeneric is a non-2xx response without a usable detail.
	KindServiceGeneric
	// KindTransport is a network failure or an undecodable response.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindServiceDetail, KindServiceGeneric:
		return "service"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is the single user-visible error of the workflow. Message is what
// the user reads; Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Op      Op
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var wfErr *Error
	if errors.As(err, &wfErr) {
		return wfErr, true
	}
	return nil, false
}

// classifyPreview maps an Analysis Service failure to an Error. A detail
// message from the service is shown verbatim.
func classifyPreview(err error) *Error {
	if statusErr, ok := service.AsStatusError(err); ok {
		if statusErr.Detail != "" {
			return &Error{Kind: KindServiceDetail, Op: OpPreview, Message: statusErr.Detail, Err: err}
		}
		return &Error{Kind: KindServiceGeneric, Op: OpPreview, Message: MsgPreviewFailed, Err: err}
	}
	return &Error{Kind: KindTransport, Op: OpPreview, Message: MsgPreviewFailed, Err: err}
}

// classifyDispatch maps a Dispatch Service failure to an Error. Details
// from the service are not shown.
func classifyDispatch(err error) *Error {
	if _, ok := service.AsStatusError(err); ok {
		return &Error{Kind: KindServiceGeneric, Op: OpDispatch, Message: MsgDispatchFailed, Err: err}
	}
	return &Error{Kind: KindTransport, Op: OpDispatch, Message: MsgDispatchFailed, Err: err}
}
