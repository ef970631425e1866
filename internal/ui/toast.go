package ui

import "time"

const toastDuration = 5 * time.Second

// toastLog shows each distinct error string once. The same string shows
// again only after a different one, or no error, was observed in between.
type toastLog struct {
	last    string
	current string
	shownAt time.Time
}

// observe records the latest error and reports whether it raised a toast.
func (t *toastLog) observe(lastError string, now time.Time) bool {
	if lastError == t.last {
		return false
	}
	t.last = lastError
	if lastError == "" {
		return false
	}
	t.current = lastError
	t.shownAt = now
	return true
}

// active returns the toast still on screen at now.
func (t *toastLog) active(now time.Time) (string, bool) {
	if t.current == "" || now.Sub(t.shownAt) >= toastDuration {
		return "", false
	}
	return t.current, true
}
