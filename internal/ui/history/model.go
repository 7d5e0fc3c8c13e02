package history

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/nhle/subnotify/internal/journal"
	"github.com/nhle/subnotify/internal/keys"
	"github.com/nhle/subnotify/internal/model"
	"github.com/nhle/subnotify/internal/theme"
	"github.com/nhle/subnotify/internal/transport"
)

// Limit caps how many batches are listed.
const Limit = 50

// Reader is the read side of the journal.
type Reader interface {
	Batches(ctx context.Context, limit int) ([]journal.Batch, error)
	Outcomes(ctx context.Context, batchID string) ([]journal.Outcome, error)
}

// CloseMsg signals the history view should close.
type CloseMsg struct{}

// batchesLoadedMsg is sent when batches have been read.
type batchesLoadedMsg struct {
	batches []journal.Batch
	err     error
}

// outcomesLoadedMsg is sent when a batch's outcomes have been read.
type outcomesLoadedMsg struct {
	batch    journal.Batch
	outcomes []journal.Outcome
	err      error
}

// BatchItem wraps a journal.Batch so it can be used in a bubbles/list.
type BatchItem struct {
	Batch journal.Batch
}

// FilterValue returns the string used for fuzzy filtering.
func (i BatchItem) FilterValue() string { return i.Batch.ID }

type batchDelegate struct{}

func (d batchDelegate) Height() int                             { return 1 }
func (d batchDelegate) Spacing() int                            { return 0 }
func (d batchDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d batchDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	bi, ok := item.(BatchItem)
	if !ok {
		return
	}
	b := bi.Batch

	when := lipgloss.NewStyle().Width(16).Render(humanize.Time(b.DispatchedAt))
	mode := theme.ModeStyle(transport.Mode(b.Mode)).Width(10).Render(b.Mode)
	counts := fmt.Sprintf("%d sent, %d failed, %d missing email", b.Success, b.Failed, b.NoEmail)
	line := fmt.Sprintf("%s %s %s", when, mode, counts)

	if index == m.Index() {
		fmt.Fprint(w, theme.SelectedItemStyle.Render(line))
		return
	}
	fmt.Fprint(w, theme.ListItemStyle.Render(line))
}

// Model lists the batches dispatched so far.
type Model struct {
	reader Reader
	keys   *keys.KeyMap
	list   list.Model

	detail   bool
	viewport viewport.Model

	statusMsg string

	width, height int
}

// New creates the history view. reader may be nil when no journal is open.
func New(r Reader, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, batchDelegate{}, width, height-2)
	l.Title = "Dispatch history"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.Styles.Title = theme.HeaderStyle

	return Model{
		reader:   r,
		keys:     k,
		list:     l,
		viewport: viewport.New(width-4, height-4),
		width:    width,
		height:   height,
	}
}

// Init loads the batches.
func (m Model) Init() tea.Cmd {
	return m.loadBatches()
}

// Update handles messages for the history view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case batchesLoadedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error loading history: %v", msg.err)
			return m, nil
		}
		m.statusMsg = ""
		items := make([]list.Item, len(msg.batches))
		for i, b := range msg.batches {
			items[i] = BatchItem{Batch: b}
		}
		return m, m.list.SetItems(items)

	case outcomesLoadedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error loading batch: %v", msg.err)
			return m, nil
		}
		m.detail = true
		m.viewport.SetContent(renderOutcomes(msg.batch, msg.outcomes))
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		if m.detail {
			if key.Matches(msg, m.keys.Back) {
				m.detail = false
				return m, nil
			}
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

		switch {
		case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.History):
			return m, func() tea.Msg { return CloseMsg{} }
		case msg.String() == "enter":
			bi, ok := m.list.SelectedItem().(BatchItem)
			if !ok {
				return m, nil
			}
			return m, m.loadOutcomes(bi.Batch)
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the history view.
func (m Model) View() string {
	style := lipgloss.NewStyle().
		Padding(0, 1).
		Width(m.width).
		Height(m.height)

	if m.detail {
		return theme.DetailPanelStyle.
			Width(m.width - 4).
			Height(m.height - 2).
			Render(m.viewport.View())
	}

	if m.statusMsg != "" {
		return style.Render(lipgloss.NewStyle().Foreground(theme.ColorRed).Render(m.statusMsg))
	}

	if len(m.list.Items()) == 0 {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No batches sent yet.")
	}
	return style.Render(m.list.View())
}

func renderOutcomes(b journal.Batch, outcomes []journal.Outcome) string {
	header := theme.TitleStyle.Render(fmt.Sprintf("Batch %s", b.ID[:min(8, len(b.ID))]))
	meta := theme.DimmedStyle.Render(fmt.Sprintf("%s  %s via %s  from %s",
		b.DispatchedAt.Local().Format("2006-01-02 15:04"), b.Mode, b.Server, b.SenderName))

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers("Teacher", "Email", "Changes", "Status", "Message").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue).Padding(0, 1)
			}
			if col == 3 && row >= 0 && row < len(outcomes) {
				return theme.StatusStyle(model.DispatchStatus(outcomes[row].Status))
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, o := range outcomes {
		email := o.Email
		if email == "" {
			email = "-"
		}
		t.Row(o.TeacherName, email, fmt.Sprint(o.RowCount), o.Status, o.Message)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, meta, "", t.Render())
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width-2, height-2)
	m.viewport.Width = width - 8
	m.viewport.Height = height - 6
}

func (m Model) loadBatches() tea.Cmd {
	r := m.reader
	return func() tea.Msg {
		if r == nil {
			return batchesLoadedMsg{}
		}
		batches, err := r.Batches(context.Background(), Limit)
		return batchesLoadedMsg{batches: batches, err: err}
	}
}

func (m Model) loadOutcomes(b journal.Batch) tea.Cmd {
	r := m.reader
	return func() tea.Msg {
		outcomes, err := r.Outcomes(context.Background(), b.ID)
		return outcomesLoadedMsg{batch: b, outcomes: outcomes, err: err}
	}
}
