package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestRead(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}

	if err := os.WriteFile(logPath, []byte(content.String()), 0644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{
			name:     "read all (0)",
			maxLines: 0,
			expected: expectedAll,
		},
		{
			name:     "read all (negative)",
			maxLines: -1,
			expected: expectedAll,
		},
		{
			name:     "read partial (5)",
			maxLines: 5,
			expected: expectedAll[5:],
		},
		{
			name:     "read exactly all (10)",
			maxLines: 10,
			expected: expectedAll,
		},
		{
			name:     "read more than exists (20)",
			maxLines: 20,
			expected: expectedAll,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Read() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRead_LongLogKeepsNewestLines(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "long.log")
	var content strings.Builder
	for i := 1; i <= 1000; i++ {
		fmt.Fprintf(&content, "Line %d\n", i)
	}
	if err := os.WriteFile(logPath, []byte(content.String()), 0644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	got, err := Read(logPath, 3)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	want := []string{"Line 998", "Line 999", "Line 1000"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Read() = %v, want %v", got, want)
	}

	all, err := Read(logPath, 0)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(all) != 1000 || all[0] != "Line 1" || all[999] != "Line 1000" {
		t.Errorf("Read(0) returned %d lines, want all 1000 in order", len(all))
	}
}

func TestRead_MissingFile(t *testing.T) {
	got, err := Read(filepath.Join(t.TempDir(), "nope.log"), 5)
	if err != nil || got != nil {
		t.Fatalf("Read() = %v, %v; want nil, nil", got, err)
	}
}

func TestParseLine(t *testing.T) {
	line := `time=2025-10-08T21:01:05.123+02:00 level=WARN msg="chatrooms call failed" component=chatrooms error="execute request: connection refused"`
	e, ok := ParseLine(line)
	if !ok {
		t.Fatalf("ParseLine(%q) failed", line)
	}
	if e.Level != "WARN" || e.Message != "chatrooms call failed" {
		t.Fatalf("entry = %+v", e)
	}
	want := []Attr{
		{Key: "component", Value: "chatrooms"},
		{Key: "error", Value: "execute request: connection refused"},
	}
	if !reflect.DeepEqual(e.Attrs, want) {
		t.Fatalf("attrs = %+v, want %+v", e.Attrs, want)
	}

	for _, bad := range []string{"", "plain text line", `level=INFO time=x`, `time=x level="unterminated`} {
		if _, ok := ParseLine(bad); ok {
			t.Errorf("ParseLine(%q) succeeded, want failure", bad)
		}
	}
}

func TestColorizeLine(t *testing.T) {
	if got := ColorizeLine("panic: boom"); got != "panic: boom" {
		t.Fatalf("ColorizeLine(unparsed) = %q, want unchanged", got)
	}

	got := ColorizeLine(`time=2025-10-08T21:01:05.123+02:00 level=INFO msg="server ready" version=1.0`)
	for _, part := range []string{"21:01:05", "INFO", "server ready", "version=", "1.0"} {
		if !strings.Contains(got, part) {
			t.Errorf("ColorizeLine() = %q, want it to contain %q", got, part)
		}
	}
	if strings.Contains(got, "2025-10-08") {
		t.Errorf("ColorizeLine() = %q, want the date dropped", got)
	}
}

func TestColorizeLines(t *testing.T) {
	input := []string{"a", `time=2025-10-08T21:01:05Z level=DEBUG msg=tick`, "b"}
	got := ColorizeLines(input)
	if len(got) != len(input) {
		t.Fatalf("ColorizeLines() returned %d lines, want %d", len(got), len(input))
	}
	if got[0] != "a" || got[2] != "b" {
		t.Fatalf("ColorizeLines() = %q", got)
	}
}
