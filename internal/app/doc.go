// Package app is the composition root for lumen.
//
// # Overview
//
// This package builds every service exactly once, connects them, and hands
// them to either the TUI or the headless loop. No package keeps a global
// instance; everything a consumer needs arrives through Services or
// ui.Options.
//
// # Startup
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       │
//	       ├─────> config.Load()        Read lumen.toml
//	       ├─────> NewServices()        Settings, chat file, session,
//	       │                            backlight, battery, toggles
//	       ├─────> Services.Start()     File watches, polls, chat restore
//	       └─────> ui.Run()             TUI (blocks)
//	               or <-ctx.Done()      headless, after sd_notify READY=1
//
// # Polling
//
// registerPolls puts the battery, both toggles and (when present) the
// backlight on the poll registry, each at its configured interval. The chat
// session registers its own fetch entry once logged in. A tick that finds
// the previous fetch of the same entry still running is skipped.
//
// # Shutdown
//
// Services.Close stops the chat fetch loop, closes the registry (waiting for
// running fetches), cancels the file watches and waits for them to return.
//
// # Error Handling
//
// Fatal errors (returned from Run):
//   - lumen.toml cannot be parsed or holds invalid values
//   - the settings or chat session file cannot be created
//   - a configured backlight device cannot be used
//
// Everything else is logged and retried on the next tick: failed battery or
// toggle reads, an unreachable chatrooms server, a missing notification
// daemon. A machine without a backlight simply runs without one.
//
// # Settings From the Command Line
//
// SetSetting backs `lumen --set key=value`. It writes the key, then waits
// for its own file watch to read the file back, so the printed value is the
// one every other reader will see.
package app
