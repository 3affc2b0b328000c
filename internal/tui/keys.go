package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit      key.Binding
	Back      key.Binding
	Open      key.Binding
	Add       key.Binding
	Delete    key.Binding
	Confirm   key.Binding
	Sort      key.Binding
	Order     key.Binding
	Reload    key.Binding
	Plan      key.Binding
	Up        key.Binding
	Down      key.Binding
	Refresh   key.Binding
	Reprocess key.Binding
	EditURL   key.Binding
	Status    key.Binding
	Generate  key.Binding
	Save      key.Binding
	Load      key.Binding
	Current   key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		Back:      key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "back")),
		Open:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Add:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add offer")),
		Delete:    key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "delete")),
		Confirm:   key.NewBinding(key.WithKeys("y", "Y")),
		Sort:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort")),
		Order:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "order")),
		Reload:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Plan:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "plan")),
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "prev field")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next field")),
		Refresh:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "refresh field")),
		Reprocess: key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reprocess")),
		EditURL:   key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "edit url")),
		Status:    key.NewBinding(key.WithKeys("1", "2", "3", "4"), key.WithHelp("1-4", "unopened/opened/deposited/received")),
		Generate:  key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "generate")),
		Save:      key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "save")),
		Load:      key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "load saved")),
		Current:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "current")),
	}
}

func helpLine(bindings ...key.Binding) string {
	out := ""
	for _, b := range bindings {
		h := b.Help()
		if h.Key == "" {
			continue
		}
		if out != "" {
			out += " · "
		}
		out += h.Key + " " + h.Desc
	}
	return out
}
