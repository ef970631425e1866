// Package config loads lumen.toml.
//
// # Overview
//
// lumen.toml describes where lumen keeps its files and how each service
// talks to the system: which backlight device and write method to use, where
// battery readings come from, which scripts drive the toggles, and which
// chatrooms server to restore on start. The user-facing shell settings
// (theme, clock format, toggles) are not here; they live in the JSON file
// owned by package prefs.
//
// # Configuration Discovery
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/lumen/lumen.toml
//  3. If the file doesn't exist, use Default()
//  4. Fields that are missing or empty keep their defaults
//
// # TOML Format
//
//	[paths]
//	settings = "~/.config/lumen/config.json"
//	chat_session = "~/.local/state/lumen/chatrooms.json"
//	log_file = "~/.local/state/lumen/lumen.log"
//
//	[backlight]
//	device = ""            # first device under /sys/class/backlight
//	method = "command"     # or "logind"
//	set_command = ["brightnessctl", "set", "{percent}%", "-q"]
//	poll_seconds = 2
//
//	[battery]
//	source = "sysfs"       # or "upower"
//	device = "BAT0"
//	poll_seconds = 5
//	thresholds = [20, 15, 5]
//
//	[toggles]
//	poll_seconds = 5
//	idle_inhibitor_status = ["lumen-idle-inhibitor", "status"]
//	idle_inhibitor_toggle = ["lumen-idle-inhibitor", "toggle"]
//	night_light_status = ["lumen-night-light", "status"]
//	night_light_toggle = ["lumen-night-light", "toggle"]
//
//	[chatrooms]
//	server = ""
//
// Paths support tilde expansion and are returned absolute.
//
// # Error Handling
//
// Load returns errors for:
//   - Path expansion failures (e.g., cannot determine home directory)
//   - File read errors (except os.ErrNotExist, which triggers defaults)
//   - TOML parsing errors
//   - Values outside their vocabulary (unknown method or source, thresholds
//     outside 1..100)
//
// A missing file is NOT an error. lumen runs without any configuration.
package config
