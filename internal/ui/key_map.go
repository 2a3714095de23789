package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the curation TUI.
type keyMap struct {
	reject key.Binding
	accept key.Binding
	retry  key.Binding
	save   key.Binding
	help   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		reject: key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "drop")),
		accept: key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "keep")),
		retry:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry fetch")),
		save:   key.NewBinding(key.WithKeys("q", "ctrl+s", "ctrl+c"), key.WithHelp("q/ctrl+s", "save & quit")),
		help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.reject, k.accept, k.save, k.help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.reject, k.accept},
		{k.retry, k.save, k.help},
	}
}
