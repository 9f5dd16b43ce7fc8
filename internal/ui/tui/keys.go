package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
)

type keyMap struct {
	Open   key.Binding
	Play   key.Binding
	Pause  key.Binding
	Stop   key.Binding
	Next   key.Binding
	Prev   key.Binding
	Faster key.Binding
	Slower key.Binding
	Quit   key.Binding
	Cancel key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Open:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open")),
		Play:   key.NewBinding(key.WithKeys(" ", "space", "enter"), key.WithHelp("space", "play")),
		Pause:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause")),
		Stop:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		Next:   key.NewBinding(key.WithKeys("n", "right"), key.WithHelp("n/→", "next")),
		Prev:   key.NewBinding(key.WithKeys("b", "left"), key.WithHelp("b/←", "prev")),
		Faster: key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "faster")),
		Slower: key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "slower")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

// scrollKeys limits the text panel to keys that do not clash with the controls.
func scrollKeys() viewport.KeyMap {
	return viewport.KeyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k")),
		Down:     key.NewBinding(key.WithKeys("down", "j")),
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
	}
}
