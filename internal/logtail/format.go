package logtail

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Attr is one key=value pair from a log line.
type Attr struct {
	Key   string
	Value string
}

// Entry is a log line written by slog's text handler.
type Entry struct {
	Time    string
	Level   string
	Message string
	Attrs   []Attr
}

// ParseLine splits a slog text line into its fields. It reports false for
// lines that do not start with time= and level=.
func ParseLine(line string) (Entry, bool) {
	attrs, ok := splitAttrs(line)
	if !ok || len(attrs) < 2 || attrs[0].Key != "time" || attrs[1].Key != "level" {
		return Entry{}, false
	}
	e := Entry{Time: attrs[0].Value, Level: attrs[1].Value}
	rest := attrs[2:]
	if len(rest) > 0 && rest[0].Key == "msg" {
		e.Message = rest[0].Value
		rest = rest[1:]
	}
	e.Attrs = rest
	return e, true
}

func splitAttrs(line string) ([]Attr, bool) {
	var out []Attr
	s := strings.TrimSpace(line)
	for s != "" {
		eq := strings.IndexByte(s, '=')
		if eq <= 0 || strings.ContainsAny(s[:eq], " \t\"") {
			return nil, false
		}
		key := s[:eq]
		s = s[eq+1:]

		var value string
		if strings.HasPrefix(s, `"`) {
			quoted, err := strconv.QuotedPrefix(s)
			if err != nil {
				return nil, false
			}
			value, _ = strconv.Unquote(quoted)
			s = s[len(quoted):]
		} else {
			end := strings.IndexByte(s, ' ')
			if end < 0 {
				end = len(s)
			}
			value = s[:end]
			s = s[end:]
		}
		out = append(out, Attr{Key: key, Value: value})
		s = strings.TrimLeft(s, " ")
	}
	return out, true
}

var (
	timeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#87AFFF"))
	levelStyle = map[string]lipgloss.Style{
		"DEBUG": lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB")).Bold(true),
		"INFO":  lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD75F")).Bold(true),
		"WARN":  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")).Bold(true),
		"ERROR": lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
	}
)

// ColorizeLine renders a slog text line with the time dimmed, the level
// colored and attribute keys highlighted. Other lines are returned unchanged.
func ColorizeLine(line string) string {
	e, ok := ParseLine(line)
	if !ok {
		return line
	}
	var b strings.Builder
	b.WriteString(timeStyle.Render(shortTime(e.Time)))
	b.WriteByte(' ')
	if style, ok := levelStyle[e.Level]; ok {
		b.WriteString(style.Render(e.Level))
	} else {
		b.WriteString(e.Level)
	}
	if e.Message != "" {
		b.WriteByte(' ')
		b.WriteString(e.Message)
	}
	for _, a := range e.Attrs {
		b.WriteByte(' ')
		b.WriteString(keyStyle.Render(a.Key + "="))
		b.WriteString(a.Value)
	}
	return b.String()
}

// ColorizeLines applies ColorizeLine to every line.
func ColorizeLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = ColorizeLine(line)
	}
	return out
}

// shortTime drops the date and sub-second part of an RFC 3339 timestamp.
func shortTime(ts string) string {
	if i := strings.IndexByte(ts, 'T'); i >= 0 && len(ts) >= i+9 {
		return ts[i+1 : i+9]
	}
	return ts
}
