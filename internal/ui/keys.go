package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the key bindings of the scan progress view.
type KeyMap struct {
	Pause     key.Binding
	ForceQuit key.Binding
	Details   key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Pause: key.NewBinding(
			key.WithKeys("q", "esc"),
			key.WithHelp("q", "pause"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "pause"),
		),
		Details: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "directories"),
		),
	}
}

func (k KeyMap) hints() []key.Binding {
	return []key.Binding{k.Details, k.Pause}
}
