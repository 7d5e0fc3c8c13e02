package model

import "strings"

// NotificationRow is a single schedule change produced by the Analysis
// Service. Rows are never modified after they are received.
type NotificationRow struct {
	Date            string `json:"date"`
	Period          string `json:"period"`
	Class           string `json:"cls"`
	Course          string `json:"course"`
	Type            string `json:"type"`
	OriginalTeacher string `json:"original_teacher"`
	SubTeacher      string `json:"sub_teacher"`

	// OriginalDate and OriginalPeriod are only set for swapped lessons.
	OriginalDate   *string `json:"original_date"`
	OriginalPeriod *string `json:"original_period"`
}

// IsSwap reports whether the row moves a lesson from another slot.
func (r NotificationRow) IsSwap() bool {
	return deref(r.OriginalDate) != "" || deref(r.OriginalPeriod) != ""
}

// OriginalSlot renders the original date and period as "date(period)",
// or "-" when the row is not a swap.
func (r NotificationRow) OriginalSlot() string {
	if !r.IsSwap() {
		return "-"
	}
	return deref(r.OriginalDate) + "(" + deref(r.OriginalPeriod) + ")"
}

// PreviewItem groups every notification row addressed to one teacher.
type PreviewItem struct {
	// TeacherName is unique within a preview dataset.
	TeacherName string `json:"teacher_name"`

	// Email is nil when the roster has no address for the teacher.
	Email *string `json:"email"`

	DataRows []NotificationRow `json:"data_rows"`
}

// HasEmail reports whether the item carries a usable address. Null,
// missing and empty values all count as absent.
func (p PreviewItem) HasEmail() bool {
	return p.Email != nil && *p.Email != ""
}

// Address returns the email address or "" when absent.
func (p PreviewItem) Address() string {
	return deref(p.Email)
}

// Clone returns a copy that shares no slices or pointers with p.
func (p PreviewItem) Clone() PreviewItem {
	c := p
	if p.Email != nil {
		e := *p.Email
		c.Email = &e
	}
	c.DataRows = make([]NotificationRow, len(p.DataRows))
	copy(c.DataRows, p.DataRows)
	return c
}

// DispatchStatus is the outcome kind reported for one recipient.
type DispatchStatus string

const (
	StatusSuccess DispatchStatus = "success"
	StatusFailed  DispatchStatus = "failed"
	StatusNoEmail DispatchStatus = "no_email"
)

// DispatchStatuses lists every outcome kind in report order.
var DispatchStatuses = []DispatchStatus{StatusSuccess, StatusFailed, StatusNoEmail}

// DispatchResult is the Dispatch Service outcome for one PreviewItem.
type DispatchResult struct {
	TeacherName string         `json:"teacher_name"`
	Status      DispatchStatus `json:"status"`
	Message     string         `json:"message,omitempty"`
}

// Describe returns the human-readable outcome line shown in reports.
func (r DispatchResult) Describe() string {
	switch {
	case r.Status == StatusNoEmail:
		return "missing email"
	case strings.TrimSpace(r.Message) != "":
		return r.Message
	case r.Status == StatusSuccess:
		return "sent"
	default:
		return string(r.Status)
	}
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
