package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Selection
	Select key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// Command palette
	Command key.Binding

	// Help toggle
	Help key.Binding

	// Upload
	PickTeacher key.Binding
	PickSub     key.Binding
	Analyze     key.Binding

	// Review
	EditEmail    key.Binding
	CycleFilter  key.Binding
	PreviewEmail key.Binding
	ExportEML    key.Binding
	Dispatch     key.Binding
	Restart      key.Binding

	// Result
	ExportReport key.Binding
	Reset        key.Binding

	// Panels
	Settings key.Binding
	History  key.Binding
	Verify   key.Binding
	Dismiss  key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "expand rows"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Command: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "command palette"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		PickTeacher: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "choose roster"),
		),
		PickSub: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "choose notices"),
		),
		Analyze: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "analyze & preview"),
		),
		EditEmail: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit email"),
		),
		CycleFilter: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "cycle filter"),
		),
		PreviewEmail: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "preview message"),
		),
		ExportEML: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "save .eml"),
		),
		Dispatch: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "send notifications"),
		),
		Restart: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "back to upload"),
		),
		ExportReport: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "export report"),
		),
		Reset: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new batch"),
		),
		Settings: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "email settings"),
		),
		History: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "history"),
		),
		Verify: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "test connection"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("ctrl+x", "dismiss error"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Select, k.Back,
		k.Quit, k.Help, k.Settings,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Back, k.Quit, k.Help, k.Command},
		{k.PickTeacher, k.PickSub, k.Analyze},
		{k.Select, k.EditEmail, k.CycleFilter, k.PreviewEmail, k.ExportEML, k.Dispatch, k.Restart},
		{k.ExportReport, k.Reset, k.Settings, k.Verify, k.History, k.Dismiss},
	}
}
