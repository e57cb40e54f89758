// SPDX-License-Identifier: MIT
package tui

import "github.com/charmbracelet/bubbles/key"

type consoleKeys struct {
	Slot      key.Binding
	Record    key.Binding
	Play      key.Binding
	Filter    key.Binding
	Stop      key.Binding
	LowDown   key.Binding
	LowUp     key.Binding
	HighDown  key.Binding
	HighUp    key.Binding
	TapsDown  key.Binding
	TapsUp    key.Binding
	BaseDown  key.Binding
	BaseUp    key.Binding
	FocusLow  key.Binding
	FocusHigh key.Binding
	Earlier   key.Binding
	Later     key.Binding
	Export    key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func newConsoleKeys() consoleKeys {
	return consoleKeys{
		Slot:      key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("1-4", "slot")),
		Record:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "record")),
		Play:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "play")),
		Filter:    key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter")),
		Stop:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		LowDown:   key.NewBinding(key.WithKeys("["), key.WithHelp("[", "low -")),
		LowUp:     key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "low +")),
		HighDown:  key.NewBinding(key.WithKeys("{"), key.WithHelp("{", "high -")),
		HighUp:    key.NewBinding(key.WithKeys("}"), key.WithHelp("}", "high +")),
		TapsDown:  key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "taps -")),
		TapsUp:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "taps +")),
		BaseDown:  key.NewBinding(key.WithKeys(","), key.WithHelp(",", "base -")),
		BaseUp:    key.NewBinding(key.WithKeys("."), key.WithHelp(".", "base +")),
		FocusLow:  key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "focus hz -")),
		FocusHigh: key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "focus hz +")),
		Earlier:   key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "focus time -")),
		Later:     key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "focus time +")),
		Export:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export slot")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k consoleKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Slot, k.Record, k.Play, k.Filter, k.Stop, k.Export, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k consoleKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Slot, k.Record, k.Play, k.Stop},
		{k.Filter, k.LowDown, k.LowUp, k.HighDown, k.HighUp},
		{k.TapsDown, k.TapsUp, k.BaseDown, k.BaseUp},
		{k.FocusLow, k.FocusHigh, k.Earlier, k.Later},
		{k.Export, k.Help, k.Quit},
	}
}
