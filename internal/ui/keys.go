package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	NextLocal     key.Binding
	PrevLocal     key.Binding
	NextRemote    key.Binding
	PrevRemote    key.Binding
	RefreshLocal  key.Binding
	RefreshRemote key.Binding
	ToggleList    key.Binding
	Quit          key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		NextLocal:     key.NewBinding(key.WithKeys("n", "]"), key.WithHelp("n", "next hunk")),
		PrevLocal:     key.NewBinding(key.WithKeys("p", "["), key.WithHelp("p", "prev hunk")),
		NextRemote:    key.NewBinding(key.WithKeys("N", "}"), key.WithHelp("N", "next remote")),
		PrevRemote:    key.NewBinding(key.WithKeys("P", "{"), key.WithHelp("P", "prev remote")),
		RefreshLocal:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		RefreshRemote: key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "refresh remote")),
		ToggleList:    key.NewBinding(key.WithKeys("l", "tab"), key.WithHelp("l", "list")),
		Quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextLocal, k.PrevLocal, k.NextRemote, k.PrevRemote, k.RefreshLocal, k.ToggleList, k.Quit}
}

// FullHelp implements help.KeyMap
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextLocal, k.PrevLocal, k.RefreshLocal},
		{k.NextRemote, k.PrevRemote, k.RefreshRemote},
		{k.ToggleList, k.Quit},
	}
}
