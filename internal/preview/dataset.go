// Package preview holds the per-teacher notification groups returned by
// the Analysis Service, in the order they are reviewed.
package preview

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/subnotify/internal/model"
)

var (
	// ErrDuplicateTeacher is returned by Load when two items share a name.
	ErrDuplicateTeacher = errors.New("duplicate teacher in preview")
	// ErrNoRows is returned by Load for an item without notification rows.
	ErrNoRows = errors.New("preview item has no notification rows")
	// ErrUnknownTeacher is returned by SetEmail for a name not in the set.
	ErrUnknownTeacher = errors.New("teacher not in preview")
	// ErrInvalidAddress is returned by SetEmail for a malformed address.
	ErrInvalidAddress = errors.New("invalid email address")
)

// Filter narrows the visible items.
type Filter int

const (
	FilterAll Filter = iota
	FilterMissing
	FilterReady
)

// Filters lists every filter in cycling order.
var Filters = []Filter{FilterAll, FilterMissing, FilterReady}

func (f Filter) String() string {
	switch f {
	case FilterMissing:
		return "missing email"
	case FilterReady:
		return "ready"
	default:
		return "all"
	}
}

// Next returns the filter after f, wrapping around.
func (f Filter) Next() Filter {
	return Filters[(int(f)+1)%len(Filters)]
}

// Stats are the aggregate counts shown above the list.
type Stats struct {
	Total   int
	Missing int
}

// Ready is the number of items that can be dispatched.
func (s Stats) Ready() int {
	return s.Total - s.Missing
}

// Dataset is an ordered set of PreviewItems. Items without an email come
// first; within each group the service order is kept. At most one item is
// expanded at a time.
type Dataset struct {
	items    []model.PreviewItem
	expanded *string
}

// New returns an empty dataset.
func New() *Dataset {
	return &Dataset{}
}

// Load replaces the contents with a copy of items, sorted so that items
// without an email come first. The expansion is collapsed.
func (d *Dataset) Load(items []model.PreviewItem) error {
	seen := make(map[string]struct{}, len(items))
	loaded := make([]model.PreviewItem, 0, len(items))
	for _, item := range items {
		if _, dup := seen[item.TeacherName]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateTeacher, item.TeacherName)
		}
		seen[item.TeacherName] = struct{}{}
		if len(item.DataRows) == 0 {
			return fmt.Errorf("%w: %q", ErrNoRows, item.TeacherName)
		}
		loaded = append(loaded, item.Clone())
	}

	slices.SortStableFunc(loaded, func(a, b model.PreviewItem) int {
		switch {
		case !a.HasEmail() && b.HasEmail():
			return -1
		case a.HasEmail() && !b.HasEmail():
			return 1
		default:
			return 0
		}
	})

	d.items = loaded
	d.expanded = nil
	return nil
}

// Len returns the number of items.
func (d *Dataset) Len() int {
	return len(d.items)
}

// Items returns a copy of every item in display order.
func (d *Dataset) Items() []model.PreviewItem {
	return cloneAll(d.items)
}

// Find returns the item for name.
func (d *Dataset) Find(name string) (model.PreviewItem, bool) {
	i := d.index(name)
	if i < 0 {
		return model.PreviewItem{}, false
	}
	return d.items[i].Clone(), true
}

// Stats counts all items and those without an email.
func (d *Dataset) Stats() Stats {
	s := Stats{Total: len(d.items)}
	for _, item := range d.items {
		if !item.HasEmail() {
			s.Missing++
		}
	}
	return s
}

// ToggleExpand expands name, or collapses it when it is already expanded.
// Expanding one item collapses any other. Unknown names are ignored.
func (d *Dataset) ToggleExpand(name string) {
	if d.index(name) < 0 {
		return
	}
	if d.expanded != nil && *d.expanded == name {
		d.expanded = nil
		return
	}
	d.expanded = &name
}

// Expanded returns the expanded teacher name, if any.
func (d *Dataset) Expanded() (string, bool) {
	if d.expanded == nil {
		return "", false
	}
	return *d.expanded, true
}

// IsExpanded reports whether name is the expanded item.
func (d *Dataset) IsExpanded(name string) bool {
	return d.expanded != nil && *d.expanded == name
}

// EligibleForDispatch returns the items that have an email.
func (d *Dataset) EligibleForDispatch() []model.PreviewItem {
	var eligible []model.PreviewItem
	for _, item := range d.items {
		if item.HasEmail() {
			eligible = append(eligible, item.Clone())
		}
	}
	return eligible
}

// Visible returns the items matching f in display order.
func (d *Dataset) Visible(f Filter) []model.PreviewItem {
	var visible []model.PreviewItem
	for _, item := range d.items {
		switch {
		case f == FilterMissing && item.HasEmail():
			continue
		case f == FilterReady && !item.HasEmail():
			continue
		}
		visible = append(visible, item.Clone())
	}
	return visible
}

// SetEmail fills in or corrects the address for name. An empty address
// clears it. The item keeps its position.
func (d *Dataset) SetEmail(name, address string) error {
	i := d.index(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownTeacher, name)
	}

	address = strings.TrimSpace(address)
	if address == "" {
		d.items[i].Email = nil
		return nil
	}

	addr, err := mail.ParseAddress(address)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidAddress, address, err)
	}
	d.items[i].Email = model.StringPtr(addr.Address)
	return nil
}

// Clone returns a deep copy of d.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	c := &Dataset{items: cloneAll(d.items)}
	if d.expanded != nil {
		name := *d.expanded
		c.expanded = &name
	}
	return c
}

func (d *Dataset) index(name string) int {
	return slices.IndexFunc(d.items, func(item model.PreviewItem) bool {
		return item.TeacherName == name
	})
}

func cloneAll(items []model.PreviewItem) []model.PreviewItem {
	out := make([]model.PreviewItem, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}
