// pattern: Functional Core

package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap implements help.KeyMap for the resolution screen.
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Choose  key.Binding
	Default key.Binding
	Finish  key.Binding
	Abort   key.Binding
	Help    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Choose: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "choose"),
		),
		Default: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "default"),
		),
		Finish: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "defaults for the rest"),
		),
		Abort: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "abort without changes"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Choose, k.Default, k.Help}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Choose},
		{k.Default, k.Finish, k.Abort, k.Help},
	}
}
