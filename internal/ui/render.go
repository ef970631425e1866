package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/five82/lumen/internal/battery"
	"github.com/five82/lumen/internal/chatrooms"
	"github.com/five82/lumen/internal/state"
	"github.com/five82/lumen/internal/toggle"
)

// viewState is everything the header and chat pane draw, read from the
// services in one go.
type viewState struct {
	brightness    float64
	hasBrightness bool
	battery       battery.Reading
	hasBattery    bool
	idle          toggle.State
	night         toggle.State
	themeName     string
	chat          chatrooms.Snapshot
	hasChat       bool
	taken         time.Time
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(v*100)))
}

func formatBattery(r battery.Reading) string {
	s := fmt.Sprintf("%d%%", int(math.Round(r.Percent)))
	if r.Charging {
		s += " charging"
	}
	return s
}

func formatToggle(s toggle.State) string {
	switch s {
	case toggle.Enabled:
		return "on"
	case toggle.Disabled:
		return "off"
	default:
		return "?"
	}
}

func describePhase(snap chatrooms.Snapshot) string {
	switch snap.Phase {
	case chatrooms.PhaseLoggedIn:
		return fmt.Sprintf("%s@%s", snap.Username, snap.Room)
	case chatrooms.PhaseRoomReady:
		return "room " + snap.Room
	case chatrooms.PhaseServerReady:
		return snap.Address
	default:
		return snap.Phase.String()
	}
}

// renderHeader draws the one-line status bar.
func renderHeader(v viewState, st Styles, width int) string {
	parts := []string{st.AccentText.Render("lumen")}

	if v.hasBrightness {
		parts = append(parts, "brightness "+formatPercent(v.brightness))
	}
	if v.hasBattery {
		text := "battery " + formatBattery(v.battery)
		style := st.Text
		switch {
		case v.battery.Charging:
			style = st.SuccessText
		case v.battery.Percent <= 5:
			style = st.DangerText
		case v.battery.Percent <= 20:
			style = st.WarningText
		}
		parts = append(parts, style.Render(text))
	} else {
		parts = append(parts, st.MutedText.Render("battery ?"))
	}
	parts = append(parts,
		"idle "+formatToggle(v.idle),
		"night "+formatToggle(v.night),
		"theme "+v.themeName,
	)
	if v.hasChat {
		chat := "chat " + describePhase(v.chat)
		if v.chat.IsOffline() {
			parts = append(parts, st.DangerText.Render(chat+" (offline)"))
		} else {
			parts = append(parts, st.InfoText.Render(chat))
		}
	}

	return st.Header.Width(width).Render(strings.Join(parts, "  "))
}

// formatMessage renders one chat line with its age relative to now.
func formatMessage(m state.Message, now time.Time) string {
	var b strings.Builder
	if t := m.ParsedTime(); !t.IsZero() {
		b.WriteString("[")
		b.WriteString(humanize.RelTime(t, now, "ago", "from now"))
		b.WriteString("] ")
	}
	name := m.Username
	if name == "" {
		name = "?"
	}
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(m.Text)
	return b.String()
}

// renderMessages renders the log oldest first, one line per message.
func renderMessages(msgs []state.Message, now time.Time, st Styles, self string) string {
	if len(msgs) == 0 {
		return st.MutedText.Render("No messages yet.")
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		line := formatMessage(m, now)
		if self != "" && m.Username == self {
			line = st.AccentText.Render(line)
		} else {
			line = st.Text.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// renderFooter shows a toast when one is active, otherwise the status note
// and key help.
func renderFooter(toast, status, help string, st Styles, width int) string {
	if toast != "" {
		return st.Toast.Width(width).Render(toast)
	}
	text := help
	if status != "" {
		text = status + "  |  " + help
	}
	return st.Footer.Width(width).Render(text)
}
