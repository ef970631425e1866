package state

import (
	"reflect"
	"testing"
	"time"
)

func ids(msgs []Message) []int64 {
	out := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestStore_AppendDropsDuplicateIDs(t *testing.T) {
	var s Store

	s.Append([]Message{{ID: 1}, {ID: 2}})
	added := s.Append([]Message{{ID: 2}, {ID: 3}})

	if got := ids(added); !reflect.DeepEqual(got, []int64{3}) {
		t.Fatalf("added ids = %v, want [3]", got)
	}
	if got := ids(s.Snapshot().Messages); !reflect.DeepEqual(got, []int64{1, 2, 3}) {
		t.Fatalf("log ids = %v, want [1 2 3]", got)
	}
}

func TestStore_AppendSortsAndDropsStale(t *testing.T) {
	var s Store
	s.Append([]Message{{ID: 5}})
	s.Append([]Message{{ID: 9}, {ID: 4}, {ID: 7}, {ID: 7}})

	if got := ids(s.Snapshot().Messages); !reflect.DeepEqual(got, []int64{5, 7, 9}) {
		t.Fatalf("log ids = %v, want [5 7 9]", got)
	}
	if s.LastID() != 9 {
		t.Fatalf("LastID = %d, want 9", s.LastID())
	}
}

func TestStore_AppendEchoedMinusOne(t *testing.T) {
	t.Run("empty log", func(t *testing.T) {
		var s Store
		m, ok := s.AppendEchoed(Message{ID: -1, Text: "hi"})
		if !ok || m.ID != 0 {
			t.Fatalf("echoed id = %d, want 0", m.ID)
		}
	})

	t.Run("after existing messages", func(t *testing.T) {
		var s Store
		s.Append([]Message{{ID: 3}, {ID: 8}})
		m, ok := s.AppendEchoed(Message{ID: -1, Text: "hi"})
		if !ok || m.ID != 8 {
			t.Fatalf("echoed id = %d, want 8", m.ID)
		}
		if got := ids(s.Snapshot().Messages); !reflect.DeepEqual(got, []int64{3, 8, 8}) {
			t.Fatalf("log ids = %v, want [3 8 8]", got)
		}
	})

	t.Run("server-assigned id kept", func(t *testing.T) {
		var s Store
		s.Append([]Message{{ID: 3}})
		if m, ok := s.AppendEchoed(Message{ID: 4}); !ok || m.ID != 4 {
			t.Fatalf("echoed id = %d, %v, want 4, true", m.ID, ok)
		}
	})

	t.Run("already fetched id dropped", func(t *testing.T) {
		var s Store
		s.Append([]Message{{ID: 1}, {ID: 2}, {ID: 3}})
		for _, id := range []int64{3, 2} {
			if _, ok := s.AppendEchoed(Message{ID: id}); ok {
				t.Fatalf("echo with id %d appended, want dropped", id)
			}
		}
		if got := ids(s.Snapshot().Messages); !reflect.DeepEqual(got, []int64{1, 2, 3}) {
			t.Fatalf("log ids = %v, want [1 2 3]", got)
		}
	})
}

func TestStore_ResetClearsLogAndLogin(t *testing.T) {
	var s Store
	s.Append([]Message{{ID: 1}})
	s.SetLoggedIn(true)
	s.RecordError("room changed", false)

	s.Reset()
	snap := s.Snapshot()
	if len(snap.Messages) != 0 || snap.LoginSuccess {
		t.Fatalf("snapshot after Reset = %#v, want empty log and logged out", snap)
	}
	if snap.LastError != "room changed" {
		t.Fatalf("LastError = %q, want it kept", snap.LastError)
	}
}

func TestStore_SnapshotClone(t *testing.T) {
	var s Store
	s.Append([]Message{{ID: 1, Text: "a"}})

	snap := s.Snapshot()
	snap.Messages[0].Text = "changed"
	if s.Snapshot().Messages[0].Text != "a" {
		t.Fatalf("Snapshot should clone messages")
	}
}

func TestStore_ConsecutiveFailures(t *testing.T) {
	var s Store

	before := time.Now()
	s.RecordError("dial tcp: refused", true)
	if snap := s.Snapshot(); snap.IsOffline() || snap.LastUpdated.Before(before) {
		t.Fatalf("snapshot after one failure = %#v, want online and updated", snap)
	}
	s.RecordError("dial tcp: refused", true)
	if !s.Snapshot().IsOffline() {
		t.Fatal("IsOffline() = false, want true with 2 failures")
	}

	s.RecordError("wrong password", false)
	if s.Snapshot().IsOffline() {
		t.Fatal("IsOffline() = true after a server answer, want false")
	}

	s.RecordError("dial tcp: refused", true)
	s.MarkReachable()
	if s.Snapshot().ConsecutiveFailures != 0 {
		t.Fatalf("ConsecutiveFailures = %d after MarkReachable, want 0", s.Snapshot().ConsecutiveFailures)
	}

	s.ClearError()
	if snap := s.Snapshot(); snap.LastError != "" || snap.ConsecutiveFailures != 0 {
		t.Fatalf("snapshot after ClearError = %#v", snap)
	}
}

func TestMessage_ParsedTime(t *testing.T) {
	if got := (Message{Timestamp: "2024-05-01T10:00:00Z"}).ParsedTime(); got.IsZero() {
		t.Fatalf("RFC3339 timestamp not parsed")
	}
	if got := (Message{Timestamp: "1700000000"}).ParsedTime(); got.Unix() != 1700000000 {
		t.Fatalf("unix timestamp parsed as %v", got)
	}
	if got := (Message{Timestamp: "yesterday"}).ParsedTime(); !got.IsZero() {
		t.Fatalf("garbage timestamp parsed as %v", got)
	}
}
