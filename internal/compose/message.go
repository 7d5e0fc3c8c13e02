// Package compose renders the notification a teacher receives, both as a
// terminal preview and as an RFC 5322 message for export.
package compose

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/nhle/subnotify/internal/model"
	"github.com/nhle/subnotify/internal/transport"
)

// Footer closes every notification.
const Footer = "This message was sent automatically. Please do not reply."

// Subject returns the subject line for a teacher's notification.
func Subject(teacherName string) string {
	return fmt.Sprintf("[Substitution Notice] %s", teacherName)
}

// Table renders the schedule changes as a plain-text table.
func Table(rows []model.NotificationRow) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Date", "Period", "Class", "Course", "Type", "Original slot", "Original / Substitute"})
	for _, r := range rows {
		tw.AppendRow(table.Row{
			r.Date,
			r.Period,
			r.Class,
			r.Course,
			r.Type,
			r.OriginalSlot(),
			r.OriginalTeacher + " / " + r.SubTeacher,
		})
	}
	return tw.Render()
}

// Body renders the full text of a teacher's notification.
func Body(item model.PreviewItem, senderName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", item.TeacherName)
	b.WriteString("Please review the following changes to your schedule:\n\n")
	b.WriteString(Table(item.DataRows))
	b.WriteString("\n\n")
	b.WriteString(Footer)
	b.WriteString("\n")
	if senderName != "" {
		b.WriteString(senderName)
		b.WriteString("\n")
	}
	return b.String()
}

// WriteEML writes item as a single-part text message addressed from the
// transport sender.
func WriteEML(w io.Writer, item model.PreviewItem, cfg transport.Config, now time.Time) error {
	var h mail.Header
	h.SetDate(now)
	h.SetSubject(Subject(item.TeacherName))
	if cfg.SenderUser != "" {
		h.SetAddressList("From", []*mail.Address{{Name: cfg.SenderDisplayName, Address: cfg.SenderUser}})
	}
	if item.HasEmail() {
		h.SetAddressList("To", []*mail.Address{{Name: item.TeacherName, Address: item.Address()}})
	}
	if err := h.GenerateMessageID(); err != nil {
		return fmt.Errorf("generating message id: %w", err)
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	mw, err := mail.CreateSingleInlineWriter(w, h)
	if err != nil {
		return fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(mw, Body(item, cfg.SenderDisplayName)); err != nil {
		mw.Close()
		return fmt.Errorf("writing message body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("closing message: %w", err)
	}
	return nil
}

// ExportEML writes item to <dir>/<teacher>.eml and returns the path.
func ExportEML(dir string, item model.PreviewItem, cfg transport.Config) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName(item.TeacherName)+".eml")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	if err := WriteEML(f, item, cfg, time.Now()); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}
	return path, nil
}

// FileName makes name safe to use as a file name.
func FileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "notification"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, name)
}
