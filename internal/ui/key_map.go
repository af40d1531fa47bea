package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	toggle  key.Binding
	export  key.Binding
	delete  key.Binding
	sort    key.Binding
	imports key.Binding
	cancel  key.Binding
	refresh key.Binding
	back    key.Binding
	yes     key.Binding
	no      key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		toggle:  key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select")),
		export:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export")),
		delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		sort:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort by year")),
		imports: key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "import")),
		cancel:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cancel")),
		refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		back:    key.NewBinding(key.WithKeys("esc", "enter"), key.WithHelp("esc", "back")),
		yes:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:      key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "no")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.toggle, k.export, k.delete},
		{k.sort, k.imports, k.refresh},
		{k.cancel, k.back, k.quit},
	}
}
