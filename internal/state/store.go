package state

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// Message is one chat message as kept in the log.
type Message struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp string `json:"time"`
}

// ParsedTime returns the timestamp as time.Time when possible.
func (m Message) ParsedTime() time.Time {
	return parseTime(m.Timestamp)
}

// Snapshot represents the chat session data available to consumers.
type Snapshot struct {
	Messages            []Message
	LoginSuccess        bool
	LastError           string
	LastUpdated         time.Time
	ConsecutiveFailures int // Number of consecutive failed remote calls
}

// IsOffline returns true when the server has been unreachable for multiple calls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// LastID returns the id of the newest message, or 0 when the log is empty.
func (s Snapshot) LastID() int64 {
	if len(s.Messages) == 0 {
		return 0
	}
	return s.Messages[len(s.Messages)-1].ID
}

// Store coordinates concurrent updates to the message log.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Reset clears the log and the login flag. The last error is kept so the
// reason for a reset stays visible.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Messages = nil
	s.snapshot.LoginSuccess = false
	s.snapshot.LastUpdated = time.Now()
}

// Append adds fetched messages whose ids are above the current last id, in
// ascending id order. Duplicates and stale ids are dropped. It returns the
// messages actually appended.
func (s *Store) Append(batch []Message) []Message {
	if len(batch) == 0 {
		return nil
	}
	sorted := cloneMessages(batch)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	s.mu.Lock()
	defer s.mu.Unlock()

	last := s.snapshot.LastID()
	var added []Message
	for _, m := range sorted {
		if m.ID <= last {
			continue
		}
		s.snapshot.Messages = append(s.snapshot.Messages, m)
		added = append(added, m)
		last = m.ID
	}
	if len(added) > 0 {
		s.snapshot.LastUpdated = time.Now()
	}
	return added
}

// AppendEchoed adds a message echoed back by the server after a send. The
// server reports id -1 when it did not assign one; the message then takes
// the previous last id (0 for an empty log) and is appended even though the
// id repeats. An echo carrying a real id at or below the last id is already
// in the log from a fetch and is dropped. The bool reports whether the
// message was appended.
func (s *Store) AppendEchoed(m Message) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	last := s.snapshot.LastID()
	if m.ID == -1 {
		m.ID = last
	} else if m.ID <= last {
		return m, false
	}
	s.snapshot.Messages = append(s.snapshot.Messages, m)
	s.snapshot.LastUpdated = time.Now()
	return m, true
}

// LastID returns the id of the newest message, or 0 when empty.
func (s *Store) LastID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.LastID()
}

// SetLoggedIn records the login state.
func (s *Store) SetLoggedIn(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.LoginSuccess = ok
	s.snapshot.LastUpdated = time.Now()
}

// RecordError stores a failure message. When the failure came from the
// transport rather than the server the consecutive failure count grows.
func (s *Store) RecordError(msg string, transport bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.LastError = msg
	s.snapshot.LastUpdated = time.Now()
	if transport {
		s.snapshot.ConsecutiveFailures++
	} else {
		s.snapshot.ConsecutiveFailures = 0
	}
}

// ClearError drops the last error and resets the failure count.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.LastError = ""
	s.snapshot.ConsecutiveFailures = 0
}

// MarkReachable resets the failure count after a successful call without
// clearing the last error.
func (s *Store) MarkReachable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.ConsecutiveFailures = 0
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Messages = cloneMessages(s.snapshot.Messages)
	return snap
}

func cloneMessages(items []Message) []Message {
	if len(items) == 0 {
		return nil
	}
	dup := make([]Message, len(items))
	copy(dup, items)
	return dup
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t
		}
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(secs, 0)
	}
	return time.Time{}
}
