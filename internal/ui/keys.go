package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the bindings active while the chat input is not focused.
type keyMap struct {
	Quit           key.Binding
	BrightnessUp   key.Binding
	BrightnessDown key.Binding
	IdleInhibitor  key.Binding
	NightLight     key.Binding
	CycleTheme     key.Binding
	FocusInput     key.Binding
	ScrollUp       key.Binding
	ScrollDown     key.Binding
}

// inputKeyMap defines the bindings active while typing.
type inputKeyMap struct {
	Submit key.Binding
	Blur   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "quit"),
		),
		BrightnessUp: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "brighter"),
		),
		BrightnessDown: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "dimmer"),
		),
		IdleInhibitor: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "idle inhibitor"),
		),
		NightLight: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "night light"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "theme"),
		),
		FocusInput: key.NewBinding(
			key.WithKeys("tab", "enter"),
			key.WithHelp("tab", "chat"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("up", "k", "pgup"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("down", "j", "pgdown"),
		),
	}
}

func defaultInputKeyMap() inputKeyMap {
	return inputKeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Blur: key.NewBinding(
			key.WithKeys("esc", "tab"),
			key.WithHelp("esc", "back"),
		),
	}
}

// helpLine renders the footer hint for the current focus.
func (k keyMap) helpLine() string {
	return joinHelp(k.BrightnessUp, k.BrightnessDown, k.IdleInhibitor, k.NightLight, k.CycleTheme, k.FocusInput, k.Quit)
}

func (k inputKeyMap) helpLine() string {
	return joinHelp(k.Submit, k.Blur)
}

func joinHelp(bindings ...key.Binding) string {
	out := ""
	for _, b := range bindings {
		h := b.Help()
		if h.Key == "" {
			continue
		}
		if out != "" {
			out += "  "
		}
		out += h.Key + " " + h.Desc
	}
	return out
}
