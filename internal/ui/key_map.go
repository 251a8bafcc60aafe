package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up        key.Binding
	down      key.Binding
	enter     key.Binding
	back      key.Binding
	nextTab   key.Binding
	prevTab   key.Binding
	playPause key.Binding
	next      key.Binding
	previous  key.Binding
	volUp     key.Binding
	volDown   key.Binding
	seekFwd   key.Binding
	seekBack  key.Binding
	like      key.Binding
	search    key.Binding
	devices   key.Binding
	help      key.Binding
	quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play/select")),
		back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		nextTab:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next screen")),
		prevTab:   key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev screen")),
		playPause: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		next:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next track")),
		previous:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "previous track")),
		volUp:     key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "volume up")),
		volDown:   key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "volume down")),
		seekFwd:   key.NewBinding(key.WithKeys(">", "."), key.WithHelp(">", "seek +5s")),
		seekBack:  key.NewBinding(key.WithKeys("<", ","), key.WithHelp("<", "seek -5s")),
		like:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "like/unlike")),
		search:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		devices:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "devices")),
		help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.playPause, k.like, k.devices, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter, k.back},
		{k.nextTab, k.prevTab, k.search, k.devices},
		{k.playPause, k.next, k.previous, k.like},
		{k.volUp, k.volDown, k.seekFwd, k.seekBack},
		{k.help, k.quit},
	}
}
