// Package prefs persists flat JSON settings files.
//
// A Store owns one file. Reads merge the file over a set of defaults so the
// in-memory map always carries every default key. Writes go to disk only:
// the store's own file watch reads the file back and announces the new map,
// so a value set through SetField becomes visible after that round-trip, not
// when SetField returns. Flush waits for the round-trip.
//
// Concurrent edits from other processes while a Save is in flight may be
// lost. The last writer wins; there is no locking.
package prefs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/tidwall/jsonc"

	"github.com/five82/lumen/internal/mirror"
)

// Values is a flat map of setting names to primitive values.
type Values map[string]any

// Clone returns a shallow copy.
func (v Values) Clone() Values {
	if v == nil {
		return Values{}
	}
	return maps.Clone(v)
}

// Merge returns {...defaults, ...stored}.
func Merge(defaults, stored Values) Values {
	out := defaults.Clone()
	for k, v := range stored {
		out[k] = v
	}
	return out
}

// ShellDefaults are the keys of the shell settings file.
func ShellDefaults() Values {
	return Values{
		"theme":             "dark",
		"bar_position":      "top",
		"clock_format":      "15:04",
		"weather_location":  "",
		"wallpaper":         "",
		"show_battery":      true,
		"show_workspaces":   true,
		"do_not_disturb":    false,
		"night_light":       false,
		"idle_inhibitor":    false,
		"chatrooms_enabled": true,
	}
}

const defaultPrefsPath = "~/.config/lumen/config.json"

// DefaultPath returns the default settings file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store mirrors one JSON settings file.
type Store struct {
	path     string
	defaults Values
	logger   *slog.Logger
	prop     *mirror.Property[Values]

	// mu orders Save against the start of Load so Flush can tell whether a
	// completed load observed the latest save.
	mu        sync.Mutex
	saveSeq   uint64
	loadedSeq uint64
	loaded    chan struct{}

	loadMu sync.Mutex
}

// Open resolves path, writes defaults when the file is absent, empty or
// unparseable, and loads it once.
func Open(path string, defaults Values, opts ...Option) (*Store, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	s := &Store{
		path:     resolved,
		defaults: defaults.Clone(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		loaded:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("settings", resolved)
	s.prop = mirror.New(mirror.Config[Values]{Name: "settings " + filepath.Base(resolved), Logger: s.logger})

	if err := s.ensureFile(); err != nil {
		return nil, err
	}
	if _, err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the resolved file path.
func (s *Store) Path() string { return s.path }

// Defaults returns a copy of the defaults.
func (s *Store) Defaults() Values { return s.defaults.Clone() }

func (s *Store) ensureFile() error {
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.logger.Info("settings file missing, writing defaults")
	case err != nil:
		return fmt.Errorf("read settings: %w", err)
	case len(bytes.TrimSpace(data)) == 0:
		s.logger.Info("settings file empty, writing defaults")
	default:
		if _, perr := parse(data); perr == nil {
			return nil
		}
		s.logger.Warn("settings file corrupt, replacing with defaults")
	}
	return s.Save(s.defaults)
}

// Load reads the file, merges it over the defaults, replaces the in-memory
// map and notifies listeners. On failure the previous map is kept.
func (s *Store) Load() (Values, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.mu.Lock()
	seq := s.saveSeq
	s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		rerr := &mirror.ReadError{Source: s.path, Err: err}
		s.logger.Warn("settings read failed, keeping previous values", "error", rerr)
		return nil, rerr
	}
	stored, err := parse(data)
	if err != nil {
		rerr := &mirror.ReadError{Source: s.path, Err: err}
		s.logger.Warn("settings parse failed, keeping previous values", "error", rerr)
		return nil, rerr
	}

	merged := Merge(s.defaults, stored)
	s.prop.Publish(merged)

	s.mu.Lock()
	if seq > s.loadedSeq {
		s.loadedSeq = seq
	}
	close(s.loaded)
	s.loaded = make(chan struct{})
	s.mu.Unlock()

	return merged.Clone(), nil
}

func parse(data []byte) (Values, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("settings file is empty")
	}
	var stored Values
	if err := json.Unmarshal(jsonc.ToJSON(trimmed), &stored); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	if stored == nil {
		return nil, fmt.Errorf("settings file is not a JSON object")
	}
	return stored, nil
}

// Save serializes values and writes them to disk. The in-memory map is not
// updated; that happens when the write is read back.
func (s *Store) Save(values Values) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return &mirror.WriteError{Target: s.path, Err: fmt.Errorf("create settings dir: %w", err)}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		werr := &mirror.WriteError{Target: s.path, Err: err}
		s.logger.Error("settings write failed", "error", werr)
		return werr
	}
	s.saveSeq++
	return nil
}

// SetField writes {...current, key: value}.
func (s *Store) SetField(key string, value any) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("setting name is empty")
	}
	next := s.Config()
	next[key] = value
	return s.Save(next)
}

// SetFieldString parses raw according to the kind of the key's default and
// writes it. Keys without a default are stored as strings.
func (s *Store) SetFieldString(key, raw string) error {
	value, err := s.ParseValue(key, raw)
	if err != nil {
		return err
	}
	return s.SetField(key, value)
}

// ParseValue converts raw to the type of the key's default.
func (s *Store) ParseValue(key, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch s.defaults[key].(type) {
	case bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, &mirror.ParseError{Input: raw, Want: "true or false"}
		}
		return b, nil
	case float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &mirror.ParseError{Input: raw, Want: "a number"}
		}
		return f, nil
	default:
		return raw, nil
	}
}

// Config returns a copy of the current merged settings.
func (s *Store) Config() Values {
	v, ok := s.prop.Value()
	if !ok {
		return s.defaults.Clone()
	}
	return v.Clone()
}

// Get returns the current value of key.
func (s *Store) Get(key string) (any, bool) {
	v, ok := s.Config()[key]
	return v, ok
}

// Bool returns key as a bool, false when missing or not a bool.
func (s *Store) Bool(key string) bool {
	v, _ := s.Get(key)
	b, _ := v.(bool)
	return b
}

// String returns key as a string, empty when missing or not a string.
func (s *Store) String(key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)
	return str
}

// OnChange registers cb for every successful load. Listeners must not
// modify the map they receive.
func (s *Store) OnChange(cb func(Values)) (cancel func()) {
	return s.prop.OnChange(cb)
}

// Flush blocks until a load that started after the latest Save has
// completed. Something must be loading the file (normally Watch), otherwise
// Flush waits until ctx is done.
func (s *Store) Flush(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.loadedSeq >= s.saveSeq {
			s.mu.Unlock()
			return nil
		}
		ch := s.loaded
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return fmt.Errorf("flush settings: %w", ctx.Err())
		}
	}
}

// Watch reloads the file whenever it changes on disk, including changes made
// by Save. It blocks until ctx is cancelled.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: editors and atomic writers replace the file.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}
	// Catch anything written between Open and the watch starting.
	_, _ = s.Load()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			_, _ = s.Load()
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("settings watch error", "error", werr)
		}
	}
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPrefsPath)
	}
	return expandPath(path)
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
