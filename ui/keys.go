package ui

import "github.com/charmbracelet/bubbles/key"

type readKeyMap struct {
	Toggle   key.Binding
	Next     key.Binding
	Previous key.Binding
	Stop     key.Binding
	Random   key.Binding
	Voice    key.Binding
	Paste    key.Binding
	Edit     key.Binding
	Dark     key.Binding
	Wider    key.Binding
	Narrower key.Binding
	Up       key.Binding
	Down     key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func (k readKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Next, k.Previous, k.Voice, k.Random, k.Help, k.Quit}
}

func (k readKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Next, k.Previous, k.Stop},
		{k.Random, k.Voice, k.Paste, k.Edit},
		{k.Dark, k.Wider, k.Narrower},
		{k.Up, k.Down, k.Help, k.Quit},
	}
}

var readKeys = readKeyMap{
	Toggle:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
	Next:     key.NewBinding(key.WithKeys("n", "right"), key.WithHelp("n/→", "next take")),
	Previous: key.NewBinding(key.WithKeys("p", "left"), key.WithHelp("p/←", "previous take")),
	Stop:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
	Random:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "random text")),
	Voice:    key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "voices")),
	Paste:    key.NewBinding(key.WithKeys("ctrl+v"), key.WithHelp("ctrl+v", "paste")),
	Edit:     key.NewBinding(key.WithKeys("e", "esc"), key.WithHelp("e", "edit text")),
	Dark:     key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "dark mode")),
	Wider:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "wider")),
	Narrower: key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "narrower")),
	Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "scroll up")),
	Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "scroll down")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type editKeyMap struct {
	Read     key.Binding
	Paste    key.Binding
	Random   key.Binding
	Voice    key.Binding
	External key.Binding
	Back     key.Binding
	Quit     key.Binding
}

func (k editKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Read, k.Paste, k.Random, k.Voice, k.External, k.Back, k.Quit}
}

func (k editKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var editKeys = editKeyMap{
	Read:     key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "read aloud")),
	Paste:    key.NewBinding(key.WithKeys("ctrl+v"), key.WithHelp("ctrl+v", "paste")),
	Random:   key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "random text")),
	Voice:    key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "voices")),
	External: key.NewBinding(key.WithKeys("ctrl+e"), key.WithHelp("ctrl+e", "$EDITOR")),
	Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back to reading")),
	Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
}

type pickerKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Choose key.Binding
	Custom key.Binding
	Close  key.Binding
}

func (k pickerKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Choose, k.Custom, k.Close}
}

func (k pickerKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var pickerKeys = pickerKeyMap{
	Up:     key.NewBinding(key.WithKeys("up", "ctrl+p"), key.WithHelp("↑", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "ctrl+n"), key.WithHelp("↓", "down")),
	Choose: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "choose")),
	Custom: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "voice id")),
	Close:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
}
