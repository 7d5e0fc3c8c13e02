// Package report exports dispatch outcomes for filing or sharing.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/nhle/subnotify/internal/ledger"
	"github.com/nhle/subnotify/internal/model"
)

// Format selects the export encoding.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatCSV      Format = "csv"
	FormatText     Format = "txt"
)

// ParseFormat accepts md, csv or txt.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatMarkdown, FormatCSV, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want md, csv or txt)", s)
	}
}

// StatusLabel is the human-readable outcome name.
func StatusLabel(s model.DispatchStatus) string {
	switch s {
	case model.StatusSuccess:
		return "Sent"
	case model.StatusFailed:
		return "Failed"
	case model.StatusNoEmail:
		return "Missing email"
	default:
		return string(s)
	}
}

func writer(l *ledger.Ledger) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Teacher", "Status", "Message"})
	for i, r := range l.Results() {
		tw.AppendRow(table.Row{i + 1, r.TeacherName, StatusLabel(r.Status), r.Describe()})
	}
	s := l.Summary()
	tw.AppendFooter(table.Row{"", "Total", s.Total,
		fmt.Sprintf("%d sent, %d failed, %d missing email", s.Success, s.Failed, s.NoEmail)})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
	})
	return tw
}

// Render encodes the ledger in the given format.
func Render(l *ledger.Ledger, f Format) string {
	tw := writer(l)
	switch f {
	case FormatMarkdown:
		return tw.RenderMarkdown()
	case FormatCSV:
		return tw.RenderCSV()
	default:
		return tw.Render()
	}
}

// Export writes the ledger to dir as dispatch-<timestamp>.<format> and
// returns the path.
func Export(dir string, l *ledger.Ledger, f Format, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory %s: %w", dir, err)
	}
	name := fmt.Sprintf("dispatch-%s.%s", now.Format("20060102-150405"), f)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(Render(l, f)+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("writing report %s: %w", path, err)
	}
	return path, nil
}
