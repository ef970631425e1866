package ui

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/lumen/internal/chatrooms"
	"github.com/five82/lumen/internal/prefs"
)

func sized(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

func press(m Model, k tea.KeyMsg) (Model, tea.Cmd) {
	next, cmd := m.Update(k)
	return next.(Model), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelQuit(t *testing.T) {
	m := sized(t, New(Options{}))
	_, cmd := press(m, runes("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q should quit")
	}
}

func TestModelTypingAndBadCommand(t *testing.T) {
	m := sized(t, New(Options{}))
	m, _ = press(m, tea.KeyMsg{Type: tea.KeyTab})
	if !m.typing {
		t.Fatal("tab should focus the input")
	}

	// "q" is text while typing
	m, _ = press(m, runes("/bogus q"))
	if got := m.input.Value(); got != "/bogus q" {
		t.Fatalf("input = %q", got)
	}
	m, cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatal("bad command should not run")
	}
	if !strings.Contains(m.status, "unknown command") {
		t.Fatalf("status = %q", m.status)
	}

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.typing {
		t.Fatal("esc should leave the input")
	}
}

func TestModelMessageWithoutChat(t *testing.T) {
	m := sized(t, New(Options{}))
	m, _ = press(m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = press(m, runes("hello"))
	m, cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected send command")
	}
	if m.input.Value() != "" {
		t.Fatal("input should clear after submit")
	}
	next, _ := m.Update(cmd())
	m = next.(Model)
	if !strings.Contains(m.status, "chat is disabled") {
		t.Fatalf("status = %q", m.status)
	}
}

func TestModelNoBacklight(t *testing.T) {
	m := sized(t, New(Options{}))
	_, cmd := press(m, runes("+"))
	next, _ := m.Update(cmd())
	if got := next.(Model).status; got != "no backlight device" {
		t.Fatalf("status = %q", got)
	}
}

func TestModelChatErrorToast(t *testing.T) {
	m := sized(t, New(Options{}))
	now := time.Now()
	v := viewState{themeName: "dark", hasChat: true, taken: now}
	v.chat = chatrooms.Snapshot{}
	v.chat.LastError = "connection refused"

	next, _ := m.Update(stateMsg(v))
	m = next.(Model)
	if !strings.Contains(m.View(), "connection refused") {
		t.Fatal("toast not rendered")
	}
}

func TestModelCycleThemeWithoutSettings(t *testing.T) {
	m := sized(t, New(Options{}))
	m, _ = press(m, runes("t"))
	if m.theme.Name != "light" {
		t.Fatalf("theme = %q", m.theme.Name)
	}
}

func TestModelCycleThemeWritesSettings(t *testing.T) {
	store, err := prefs.Open(filepath.Join(t.TempDir(), "config.json"), prefs.ShellDefaults())
	if err != nil {
		t.Fatal(err)
	}
	m := sized(t, New(Options{Settings: store}))
	if m.theme.Name != "dark" {
		t.Fatalf("initial theme = %q", m.theme.Name)
	}

	m, cmd := press(m, runes("t"))
	if m.theme.Name != "dark" {
		t.Fatal("theme should change only after the write is read back")
	}
	if done, ok := cmd().(actionDoneMsg); !ok || done.err != nil {
		t.Fatalf("cycle theme result = %+v", done)
	}

	values, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if values["theme"] != "light" {
		t.Fatalf("stored theme = %v", values["theme"])
	}
	next, _ := m.Update(stateMsg(m.readState()))
	if got := next.(Model).theme.Name; got != "light" {
		t.Fatalf("theme after read back = %q", got)
	}
}
