// Package logtail reads and colorizes lumen's log file.
//
// # Overview
//
// lumen writes its log with slog's text handler. This package reads the last
// N lines of that file for `lumen --tail` and renders them with lipgloss so
// levels and attribute keys stand out.
//
// # Reading Log Files
//
// Read uses a ring buffer of size maxLines:
//
//	1. Allocate ring buffer of size maxLines
//	2. For each line in file:
//	   - Store line at current index
//	   - Increment index (wrapping at maxLines)
//	   - Track total lines seen
//	3. If total < maxLines:
//	   - Return first 'count' entries from buffer
//	4. If total >= maxLines:
//	   - Return buffer starting from current index (oldest line)
//
// A non-positive maxLines returns the whole file. A missing file returns
// nil, nil.
//
// # Colorization
//
// ParseLine understands the slog text format:
//
//	time=2025-10-08T21:01:05.123+02:00 level=INFO msg="server ready" address=chat.local
//
// Quoted values are unquoted. ColorizeLine shortens the timestamp to the
// time of day, colors the level and highlights attribute keys. Lines that do
// not parse, such as panic traces, are returned unchanged. When stdout is
// not a terminal lipgloss renders without color codes.
package logtail
