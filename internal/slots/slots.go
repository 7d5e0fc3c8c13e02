// Package slots holds the two spreadsheets a batch is built from. Each
// named slot is either empty or holds exactly one file.
package slots

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// Name identifies a file slot.
type Name string

const (
	// Teacher holds the teacher email roster.
	Teacher Name = "teacher"
	// Sub holds the substitution notices.
	Sub Name = "sub"
)

// Names lists every slot in display order.
var Names = []Name{Teacher, Sub}

// AcceptTypes are the extensions offered by file pickers. They are a hint
// only; the Analysis Service is the judge of file content.
var AcceptTypes = []string{".xlsx", ".xls"}

// ErrUnknownSlot is returned for a slot name other than Teacher or Sub.
var ErrUnknownSlot = errors.New("unknown file slot")

// Label returns the human-readable title of the slot.
func (n Name) Label() string {
	switch n {
	case Teacher:
		return "Teacher email roster"
	case Sub:
		return "Substitution notices"
	default:
		return string(n)
	}
}

// Blob is an opaque file selected by the user.
type Blob struct {
	Name string
	Size int64
	Data []byte
}

// HumanSize formats the blob size for display.
func (b *Blob) HumanSize() string {
	return humanize.Bytes(uint64(b.Size))
}

// Open reads the file at path into a Blob.
func Open(path string) (*Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return &Blob{
		Name: filepath.Base(path),
		Size: int64(len(data)),
		Data: data,
	}, nil
}

// Manager holds at most one blob per named slot.
type Manager struct {
	teacher *Blob
	sub     *Blob
}

// New creates a Manager with both slots empty.
func New() *Manager {
	return &Manager{}
}

// Set overwrites the slot. A nil blob clears it.
func (m *Manager) Set(name Name, blob *Blob) error {
	switch name {
	case Teacher:
		m.teacher = blob
	case Sub:
		m.sub = blob
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSlot, name)
	}
	return nil
}

// Get returns the blob in the slot, or nil when it is empty.
func (m *Manager) Get(name Name) *Blob {
	switch name {
	case Teacher:
		return m.teacher
	case Sub:
		return m.sub
	default:
		return nil
	}
}

// AllFilled reports whether every slot holds a blob.
func (m *Manager) AllFilled() bool {
	return m.teacher != nil && m.sub != nil
}

// Missing returns the names of the empty slots in display order.
func (m *Manager) Missing() []Name {
	var missing []Name
	for _, n := range Names {
		if m.Get(n) == nil {
			missing = append(missing, n)
		}
	}
	return missing
}

// Clear empties both slots.
func (m *Manager) Clear() {
	m.teacher = nil
	m.sub = nil
}
