package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	login   key.Binding
	logout  key.Binding
	refresh key.Binding
	setup   key.Binding
	links   key.Binding
	enter   key.Binding
	back    key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		login:   key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "log in")),
		logout:  key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "log out")),
		refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		setup:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "setup")),
		links:   key.NewBinding(key.WithKeys("enter", "tab"), key.WithHelp("enter", "open in spotify")),
		enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.login, k.logout, k.setup},
		{k.refresh, k.links, k.back},
		{k.quit},
	}
}
