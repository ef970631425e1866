// Package state holds the chatrooms message log shared between the session
// and its consumers.
//
// # Overview
//
// The chatrooms session fetches new messages on a fixed cadence and appends
// them here; the UI reads snapshots on its own schedule. The Store is the
// coordination point between the two.
//
//	Producer (session):             Consumer (UI):
//	┌──────────────────────┐       ┌──────────────────┐
//	│ FetchNew()           │       │                  │
//	│   store.Append()     │──────→│ store.Snapshot() │
//	│ SendMessage()        │(mutex)│   render log     │
//	│   store.AppendEchoed │       │                  │
//	└──────────────────────┘       └──────────────────┘
//
// # Ordering
//
// Messages are ordered by id. Append accepts only ids strictly above the
// current last id and drops the rest, so overlapping fetch batches never
// produce duplicates:
//
//	store.Append([{id:1},{id:2}])
//	store.Append([{id:2},{id:3}])
//	→ log ids [1 2 3]
//
// # Echoed Messages
//
// A sent message comes back from the server and is appended with
// AppendEchoed. The server answers id -1 when it did not assign one; the
// message then reuses the previous last id, or 0 for an empty log. This
// mirrors the server's behaviour and is kept verbatim, which means an echoed
// message can share its id with the message before it. The next fetch asks
// for ids after that value, so nothing is fetched twice. An echo with a real
// id the log already holds, because a fetch got there first, is dropped.
//
// # Errors
//
// LastError carries the most recent failure as a plain string for display.
// ConsecutiveFailures counts transport failures only; any answer from the
// server resets it. IsOffline reports two or more in a row.
//
// # Concurrency
//
// Store uses a sync.RWMutex and is ready to use as a zero value. Snapshot
// returns deep copies so callers can keep them without locking.
package state
