package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up          key.Binding
	Down        key.Binding
	Select      key.Binding
	Parent      key.Binding
	Search      key.Binding
	Recursive   key.Binding
	AllAdd      key.Binding
	AllRemove   key.Binding
	Clear       key.Binding
	Deselect    key.Binding
	SwitchFocus key.Binding
	Apply       key.Binding
	Refresh     key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter/space", "open or toggle"),
		),
		Parent: key.NewBinding(
			key.WithKeys("backspace", "h", "left"),
			key.WithHelp("h", "parent folder"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Recursive: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "recursive search"),
		),
		AllAdd: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "all to add"),
		),
		AllRemove: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "all to remove"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear selections"),
		),
		Deselect: key.NewBinding(
			key.WithKeys("d", "delete", "enter"),
			key.WithHelp("d", "drop pending item"),
		),
		SwitchFocus: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch pane"),
		),
		Apply: key.NewBinding(
			key.WithKeys("ctrl+s", "s"),
			key.WithHelp("s", "apply changes"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("R", "ctrl+r"),
			key.WithHelp("R", "refresh"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Parent, k.Search, k.SwitchFocus, k.Apply, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Parent},
		{k.Search, k.Recursive, k.Refresh},
		{k.AllAdd, k.AllRemove, k.Clear, k.Deselect},
		{k.SwitchFocus, k.Apply, k.Help, k.Quit},
	}
}
