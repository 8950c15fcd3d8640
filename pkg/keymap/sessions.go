// Package keymap contains the key bindings for Canopy's TUIs.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
)

// SessionsKeyMap defines all key bindings for the sessions watch TUI.
type SessionsKeyMap struct {
	Up       key.Binding
	Down     key.Binding
	MoveUp   key.Binding
	MoveDown key.Binding
	Refresh  key.Binding
	Ack      key.Binding
	Help     key.Binding
	Quit     key.Binding
}

// NewSessionsKeyMap creates a SessionsKeyMap with default bindings.
func NewSessionsKeyMap() SessionsKeyMap {
	return SessionsKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		MoveUp: key.NewBinding(
			key.WithKeys("K", "shift+up"),
			key.WithHelp("K", "move session up"),
		),
		MoveDown: key.NewBinding(
			key.WithKeys("J", "shift+down"),
			key.WithHelp("J", "move session down"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh usage"),
		),
		Ack: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "acknowledge output"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns keybindings to be shown in the mini help view.
func (k SessionsKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Ack, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view.
func (k SessionsKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.MoveUp, k.MoveDown},
		{k.Refresh, k.Ack, k.Help, k.Quit},
	}
}
