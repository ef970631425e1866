// Package chatrooms provides a client and session for a chatrooms server.
//
// # Overview
//
// A chatrooms server hosts rooms identified by a key. Users log into a room
// with a username and password, post messages, and poll for messages newer
// than the last one they have seen. This package wraps the HTTP API and
// drives the connection lifecycle on top of it.
//
// # Architecture
//
//   - client.go: HTTP client and envelope decoding
//   - types.go: payloads mirroring the server schema
//   - session.go: lifecycle state machine, fetch loop and persistence
//
// # Wire Format
//
// Every response is an envelope:
//
//	{"code": 200, "data": {...}, "type": "..."}
//
// A data object carrying "success": false is turned into a *ProtocolError.
// Requests name the room in a "room" header; credentials travel in the JSON
// body, also for GET endpoints.
//
//   - GET  /info: server version
//   - GET  /get_room, POST /create_room
//   - GET  /check_user, POST /create_user
//   - POST /send_message
//   - GET  /get_last_messages with {"after_message": id}
//
// # Session Lifecycle
//
//	NoServer ──SetServerAddress──→ ServerChecking ──version ok──→ ServerReady
//	                                     │                            │
//	                                     └──version differs──→ VersionMismatch
//	ServerReady ──SetRoom/CreateRoom──→ RoomReady ──Login/CreateUser──→ LoggedIn
//
// Changing the server or room resets the message log and the login. While
// logged in the session registers a fetch entry on the poll registry; a fetch
// still running when the next tick arrives causes that tick to be skipped
// rather than issuing a second request.
//
// # Errors
//
// Failed calls never panic or tear down the session. The error text lands in
// the snapshot's LastError and listeners are notified. Transport failures
// count toward IsOffline; protocol errors do not.
//
// # Persistence
//
// With Options.Persist set, the server address, room key and username are
// written to a small settings file after each successful step, and Restore
// replays them at startup. Passwords are never written.
package chatrooms
