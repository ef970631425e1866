// Package ui provides the Bubble Tea TUI for lumen.
//
// # Layout
//
// The screen is four stacked parts:
//
//   - header: brightness, battery, idle inhibitor, night light, theme and
//     chat state on one line
//   - chat pane: a scrolling viewport with the room's messages, oldest
//     first, each prefixed with its age
//   - input line: messages and slash commands
//   - footer: the last action's result and key help, or a toast
//
// # Data Flow
//
// The model never owns service state. On every tick it reads a viewState
// from the services it was given (any of which may be nil) and redraws.
// Actions such as brightness changes, toggles and chat commands run as
// tea.Cmds and report back through actionDoneMsg, which triggers an extra
// read so the result shows without waiting for the next tick.
//
// Cycling the theme writes the "theme" key to the settings file. The new
// theme takes effect when the settings watch reads the file back, the same
// path an external edit of the file takes.
//
// # Chat Commands
//
//	/server host[:port]      connect and check the server version
//	/room KEY                join a room
//	/newroom                 create a room and join it
//	/login USER PASSWORD     log in and start fetching messages
//	/register USER PASSWORD  create an account
//	/logout                  stop fetching and forget the password
//
// Any other line is sent as a message; a leading "//" sends a literal "/".
//
// # Toasts
//
// Each distinct chat error is shown once as a toast for a few seconds. The
// same error only toasts again after it cleared or another error replaced
// it, so a server that stays down does not flash on every failed fetch.
package ui
