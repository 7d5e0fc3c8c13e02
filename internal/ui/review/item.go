package review

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nhle/subnotify/internal/model"
	"github.com/nhle/subnotify/internal/theme"
)

// TeacherItem wraps a model.PreviewItem so it can be used in a bubbles/list.
type TeacherItem struct {
	Item     model.PreviewItem
	Expanded bool
}

// FilterValue returns the string used for fuzzy filtering.
func (i TeacherItem) FilterValue() string { return i.Item.TeacherName }

// ItemDelegate renders one teacher per line.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single teacher line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ti, ok := item.(TeacherItem)
	if !ok {
		return
	}

	marker := "▸"
	if ti.Expanded {
		marker = "▾"
	}

	name := lipgloss.NewStyle().Width(20).Render(ti.Item.TeacherName)

	var email string
	if ti.Item.HasEmail() {
		email = lipgloss.NewStyle().Width(32).Render(ti.Item.Address())
	} else {
		email = theme.MissingEmailStyle.Width(32).Render("missing email")
	}

	count := theme.DimmedStyle.Render(fmt.Sprintf("%d change(s)", len(ti.Item.DataRows)))
	line := fmt.Sprintf("%s %s %s %s", marker, name, email, count)

	if index == m.Index() {
		fmt.Fprint(w, theme.SelectedItemStyle.Render(line))
		return
	}
	fmt.Fprint(w, theme.ListItemStyle.Render(line))
}

// rowsTable renders a teacher's schedule changes.
func rowsTable(rows []model.NotificationRow, width int) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	swapStyle := cellStyle.Foreground(theme.ColorMagenta)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers("Date", "Period", "Class", "Course", "Type", "Original slot", "Original / Substitute").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 5 && row >= 0 && row < len(rows) && rows[row].IsSwap() {
				return swapStyle
			}
			return cellStyle
		})
	if width > 0 {
		t = t.Width(width)
	}

	for _, r := range rows {
		t.Row(
			r.Date,
			r.Period,
			r.Class,
			r.Course,
			r.Type,
			r.OriginalSlot(),
			r.OriginalTeacher+" / "+r.SubTeacher,
		)
	}
	return t.Render()
}
