package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config is the parsed lumen.toml with defaults applied and paths expanded.
type Config struct {
	Paths     Paths
	Backlight Backlight
	Battery   Battery
	Toggles   Toggles
	Chatrooms Chatrooms
}

// Paths locates the files lumen owns.
type Paths struct {
	Settings    string
	ChatSession string
	LogFile     string
}

// Backlight configures the brightness service.
type Backlight struct {
	Device       string
	Method       string
	SetCommand   []string
	PollInterval time.Duration
}

// Battery configures the battery monitor.
type Battery struct {
	Source       string
	Device       string
	PollInterval time.Duration
	Thresholds   []int
}

// Toggles configures the script-backed switches.
type Toggles struct {
	PollInterval        time.Duration
	IdleInhibitorStatus []string
	IdleInhibitorToggle []string
	NightLightStatus    []string
	NightLightToggle    []string
}

// Chatrooms configures the chat session.
type Chatrooms struct {
	Server string
}

const (
	defaultConfigPath      = "~/.config/lumen/lumen.toml"
	defaultSettingsPath    = "~/.config/lumen/config.json"
	defaultChatSessionPath = "~/.local/state/lumen/chatrooms.json"
	defaultLogFile         = "~/.local/state/lumen/lumen.log"

	defaultBacklightPoll = 2 * time.Second
	defaultBatteryPoll   = 5 * time.Second
	defaultTogglePoll    = 5 * time.Second
)

var (
	defaultSetCommand          = []string{"brightnessctl", "set", "{percent}%", "-q"}
	defaultThresholds          = []int{20, 15, 5}
	defaultIdleInhibitorStatus = []string{"lumen-idle-inhibitor", "status"}
	defaultIdleInhibitorToggle = []string{"lumen-idle-inhibitor", "toggle"}
	defaultNightLightStatus    = []string{"lumen-night-light", "status"}
	defaultNightLightToggle    = []string{"lumen-night-light", "toggle"}
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Paths: Paths{
			Settings:    mustExpand(defaultSettingsPath),
			ChatSession: mustExpand(defaultChatSessionPath),
			LogFile:     mustExpand(defaultLogFile),
		},
		Backlight: Backlight{
			Method:       "command",
			SetCommand:   slices.Clone(defaultSetCommand),
			PollInterval: defaultBacklightPoll,
		},
		Battery: Battery{
			Source:       "sysfs",
			Device:       "BAT0",
			PollInterval: defaultBatteryPoll,
			Thresholds:   slices.Clone(defaultThresholds),
		},
		Toggles: Toggles{
			PollInterval:        defaultTogglePoll,
			IdleInhibitorStatus: slices.Clone(defaultIdleInhibitorStatus),
			IdleInhibitorToggle: slices.Clone(defaultIdleInhibitorToggle),
			NightLightStatus:    slices.Clone(defaultNightLightStatus),
			NightLightToggle:    slices.Clone(defaultNightLightToggle),
		},
	}
}

type rawConfig struct {
	Paths struct {
		Settings    string `toml:"settings"`
		ChatSession string `toml:"chat_session"`
		LogFile     string `toml:"log_file"`
	} `toml:"paths"`
	Backlight struct {
		Device      string   `toml:"device"`
		Method      string   `toml:"method"`
		SetCommand  []string `toml:"set_command"`
		PollSeconds int      `toml:"poll_seconds"`
	} `toml:"backlight"`
	Battery struct {
		Source      string `toml:"source"`
		Device      string `toml:"device"`
		PollSeconds int    `toml:"poll_seconds"`
		Thresholds  []int  `toml:"thresholds"`
	} `toml:"battery"`
	Toggles struct {
		PollSeconds         int      `toml:"poll_seconds"`
		IdleInhibitorStatus []string `toml:"idle_inhibitor_status"`
		IdleInhibitorToggle []string `toml:"idle_inhibitor_toggle"`
		NightLightStatus    []string `toml:"night_light_status"`
		NightLightToggle    []string `toml:"night_light_toggle"`
	} `toml:"toggles"`
	Chatrooms struct {
		Server string `toml:"server"`
	} `toml:"chatrooms"`
}

// Load locates and parses lumen.toml, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := applyPath(&cfg.Paths.Settings, raw.Paths.Settings); err != nil {
		return Config{}, err
	}
	if err := applyPath(&cfg.Paths.ChatSession, raw.Paths.ChatSession); err != nil {
		return Config{}, err
	}
	if err := applyPath(&cfg.Paths.LogFile, raw.Paths.LogFile); err != nil {
		return Config{}, err
	}

	cfg.Backlight.Device = strings.TrimSpace(raw.Backlight.Device)
	applyString(&cfg.Backlight.Method, raw.Backlight.Method)
	applyArgv(&cfg.Backlight.SetCommand, raw.Backlight.SetCommand)
	applySeconds(&cfg.Backlight.PollInterval, raw.Backlight.PollSeconds)

	applyString(&cfg.Battery.Source, raw.Battery.Source)
	if device := strings.TrimSpace(raw.Battery.Device); device != "" {
		cfg.Battery.Device = device
	}
	applySeconds(&cfg.Battery.PollInterval, raw.Battery.PollSeconds)
	if len(raw.Battery.Thresholds) > 0 {
		cfg.Battery.Thresholds = slices.Clone(raw.Battery.Thresholds)
	}

	applySeconds(&cfg.Toggles.PollInterval, raw.Toggles.PollSeconds)
	applyArgv(&cfg.Toggles.IdleInhibitorStatus, raw.Toggles.IdleInhibitorStatus)
	applyArgv(&cfg.Toggles.IdleInhibitorToggle, raw.Toggles.IdleInhibitorToggle)
	applyArgv(&cfg.Toggles.NightLightStatus, raw.Toggles.NightLightStatus)
	applyArgv(&cfg.Toggles.NightLightToggle, raw.Toggles.NightLightToggle)

	cfg.Chatrooms.Server = strings.TrimSpace(raw.Chatrooms.Server)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports values outside their allowed vocabulary.
func (c Config) Validate() error {
	switch c.Backlight.Method {
	case "command", "logind":
	default:
		return fmt.Errorf("invalid config: backlight.method %q (want command or logind)", c.Backlight.Method)
	}
	switch c.Battery.Source {
	case "sysfs", "upower":
	default:
		return fmt.Errorf("invalid config: battery.source %q (want sysfs or upower)", c.Battery.Source)
	}
	for _, level := range c.Battery.Thresholds {
		if level <= 0 || level > 100 {
			return fmt.Errorf("invalid config: battery threshold %d outside 1..100", level)
		}
	}
	return nil
}

// DefaultPath returns the default lumen.toml location, expanded.
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
}

func applyPath(dst *string, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	expanded, err := expandPath(raw)
	if err != nil {
		return err
	}
	*dst = expanded
	return nil
}

func applyString(dst *string, raw string) {
	if v := strings.ToLower(strings.TrimSpace(raw)); v != "" {
		*dst = v
	}
}

func applyArgv(dst *[]string, raw []string) {
	if len(raw) > 0 && strings.TrimSpace(raw[0]) != "" {
		*dst = slices.Clone(raw)
	}
}

func applySeconds(dst *time.Duration, seconds int) {
	if seconds > 0 {
		*dst = time.Duration(seconds) * time.Second
	}
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
