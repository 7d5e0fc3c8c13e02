// Package ledger keeps the per-recipient outcomes of the last dispatch.
package ledger

import "github.com/nhle/subnotify/internal/model"

// Summary counts outcomes by status.
type Summary struct {
	Total   int
	Success int
	Failed  int
	NoEmail int
}

// Ledger is the list of DispatchResults returned by one dispatch.
type Ledger struct {
	results []model.DispatchResult
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Load replaces the ledger contents with a copy of results.
func (l *Ledger) Load(results []model.DispatchResult) {
	l.results = append([]model.DispatchResult(nil), results...)
}

// Len returns the number of outcomes.
func (l *Ledger) Len() int {
	return len(l.results)
}

// Results returns a copy of the outcomes in service order.
func (l *Ledger) Results() []model.DispatchResult {
	return append([]model.DispatchResult(nil), l.results...)
}

// CountByStatus counts outcomes with the given status.
func (l *Ledger) CountByStatus(status model.DispatchStatus) int {
	n := 0
	for _, r := range l.results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// Summary counts every status at once.
func (l *Ledger) Summary() Summary {
	return Summary{
		Total:   len(l.results),
		Success: l.CountByStatus(model.StatusSuccess),
		Failed:  l.CountByStatus(model.StatusFailed),
		NoEmail: l.CountByStatus(model.StatusNoEmail),
	}
}

// Clone returns a copy of l.
func (l *Ledger) Clone() *Ledger {
	if l == nil {
		return nil
	}
	return &Ledger{results: l.Results()}
}
