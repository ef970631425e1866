// Package toggle mirrors on/off switches backed by external scripts, such as
// the idle inhibitor and the night light.
package toggle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/five82/lumen/internal/mirror"
	"github.com/five82/lumen/internal/prefs"
)

// State is the parsed output of a status script.
type State int

const (
	Unknown State = iota
	Enabled
	Disabled
)

func (s State) String() string {
	switch s {
	case Enabled:
		return "enabled"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// ParseState accepts exactly "enabled" or "disabled", ignoring surrounding
// whitespace and case.
func ParseState(out string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(out)) {
	case "enabled":
		return Enabled, nil
	case "disabled":
		return Disabled, nil
	default:
		return Unknown, &mirror.ParseError{Input: out, Want: `"enabled" or "disabled"`}
	}
}

// Config describes one toggle.
type Config struct {
	// Name is also the settings key the state is mirrored into.
	Name   string
	Status mirror.Command
	Toggle mirror.Command
	// Settings is optional.
	Settings *prefs.Store
	Logger   *slog.Logger
}

// Toggle is a script-backed boolean switch.
type Toggle struct {
	name     string
	settings *prefs.Store
	logger   *slog.Logger
	prop     *mirror.Property[State]
}

// New builds a Toggle. Its state is Unknown until the first Refresh.
func New(cfg Config) *Toggle {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("toggle", cfg.Name)

	flip := cfg.Toggle
	t := &Toggle{
		name:     cfg.Name,
		settings: cfg.Settings,
		logger:   logger,
		prop: mirror.New(mirror.Config[State]{
			Name:   cfg.Name,
			Source: mirror.CommandSource(cfg.Status, ParseState),
			Writer: mirror.WriterFunc[State](func(ctx context.Context, _ State) error {
				return flip.Run(ctx)
			}),
			Logger: logger,
		}),
	}
	if t.settings != nil {
		t.prop.OnChange(t.syncSettings)
	}
	return t
}

// Name returns the toggle's name.
func (t *Toggle) Name() string { return t.name }

// Refresh runs the status script once.
func (t *Toggle) Refresh(ctx context.Context) bool {
	return t.prop.Refresh(ctx)
}

// Toggle runs the toggle script and then re-reads the status, waiting for a
// poll read that is already running. confirmed is false when that re-read
// failed and State still holds the value from before the toggle.
func (t *Toggle) Toggle(ctx context.Context) (confirmed bool, err error) {
	if err := t.prop.Write(ctx, t.State()); err != nil {
		return false, fmt.Errorf("toggle %s: %w", t.name, err)
	}
	if !t.prop.RefreshWait(ctx) {
		t.logger.Warn("status not confirmed after toggle")
		return false, nil
	}
	return true, nil
}

// State returns the last known state.
func (t *Toggle) State() State {
	s, _ := t.prop.Value()
	return s
}

// Enabled reports whether the last known state is Enabled.
func (t *Toggle) Enabled() bool {
	return t.State() == Enabled
}

// OnChange registers cb for every successful status read.
func (t *Toggle) OnChange(cb func(State)) (cancel func()) {
	return t.prop.OnChange(cb)
}

func (t *Toggle) syncSettings(s State) {
	if s == Unknown {
		return
	}
	want := s == Enabled
	if cur, ok := t.settings.Get(t.name); ok {
		if b, isBool := cur.(bool); isBool && b == want {
			return
		}
	}
	if err := t.settings.SetField(t.name, want); err != nil {
		t.logger.Warn("mirror toggle into settings", "error", err)
	}
}
