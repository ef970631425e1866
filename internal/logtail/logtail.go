package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"os"
)

// maxLineBytes bounds a single log line.
const maxLineBytes = 1 << 20

// Read returns the last maxLines lines of the log at path, or every line when
// maxLines is zero or negative. A missing file reads as an empty log.
func Read(path string, maxLines int) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(nil, maxLineBytes)
	for sc.Scan() {
		lines = append(lines, sc.Text())
		// Keep the window bounded on long logs; shift only once it doubles.
		if maxLines > 0 && len(lines) >= 2*maxLines {
			lines = append(lines[:0], lines[len(lines)-maxLines:]...)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return lines, nil
}
