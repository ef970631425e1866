// Package backlight mirrors the screen brightness exposed by sysfs.
//
// Reads come from /sys/class/backlight/<device>/{brightness,max_brightness}
// and are normalized to [0,1]. Writes go through an external command such as
// brightnessctl, or through systemd-logind's Session.SetBrightness for
// unprivileged users. A successful write schedules a re-read; a file watch
// picks up changes made by other tools.
package backlight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/godbus/dbus/v5"

	"github.com/five82/lumen/internal/mirror"
)

// DefaultRoot is the sysfs backlight class directory.
const DefaultRoot = "/sys/class/backlight"

const (
	MethodCommand = "command"
	MethodLogind  = "logind"
)

// ErrNoDevice is returned when no backlight device exists.
var ErrNoDevice = errors.New("no backlight device found")

// Config configures a Service.
type Config struct {
	Root   string
	Device string
	// Method is MethodCommand (default) or MethodLogind.
	Method string
	// SetCommand is the argv for MethodCommand. "{percent}" is replaced with
	// the target percentage and "{raw}" with the raw device value.
	SetCommand []string
	Logger     *slog.Logger
}

// Service mirrors one backlight device.
type Service struct {
	device string
	dir    string
	logger *slog.Logger
	prop   *mirror.Property[float64]
}

// Discover returns the first device under root, in name order.
func Discover(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoDevice
		}
		return "", fmt.Errorf("list %s: %w", root, err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return "", ErrNoDevice
	}
	sort.Strings(names)
	return names[0], nil
}

// New resolves the device and builds the service. No read happens yet.
func New(cfg Config) (*Service, error) {
	root := cfg.Root
	if root == "" {
		root = DefaultRoot
	}
	device := strings.TrimSpace(cfg.Device)
	if device == "" {
		found, err := Discover(root)
		if err != nil {
			return nil, err
		}
		device = found
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Service{
		device: device,
		dir:    filepath.Join(root, device),
		logger: logger.With("backlight", device),
	}

	var writer mirror.Writer[float64]
	switch cfg.Method {
	case "", MethodCommand:
		if len(cfg.SetCommand) == 0 {
			return nil, fmt.Errorf("backlight method %q needs a set command", MethodCommand)
		}
		argv := append([]string(nil), cfg.SetCommand...)
		writer = mirror.WriterFunc[float64](func(ctx context.Context, v float64) error {
			return s.runSetCommand(ctx, argv, v)
		})
	case MethodLogind:
		writer = mirror.WriterFunc[float64](s.setViaLogind)
	default:
		return nil, fmt.Errorf("unknown backlight method %q", cfg.Method)
	}

	s.prop = mirror.New(mirror.Config[float64]{
		Name:              "backlight " + device,
		Source:            mirror.SourceFunc[float64](func(context.Context) (float64, error) { return s.read() }),
		Writer:            writer,
		RefreshAfterWrite: true,
		Logger:            s.logger,
	})
	return s, nil
}

// Device returns the device name.
func (s *Service) Device() string { return s.device }

// Value returns the last normalized brightness.
func (s *Service) Value() (float64, bool) { return s.prop.Value() }

// Refresh reads the device once.
func (s *Service) Refresh(ctx context.Context) bool { return s.prop.Refresh(ctx) }

// OnChange registers cb for every successful read.
func (s *Service) OnChange(cb func(float64)) (cancel func()) { return s.prop.OnChange(cb) }

// Set writes v, clamped to [0,1].
func (s *Service) Set(ctx context.Context, v float64) error {
	return s.prop.Write(ctx, Clamp(v))
}

// Adjust moves the brightness by delta from the last known value.
func (s *Service) Adjust(ctx context.Context, delta float64) error {
	cur, ok := s.prop.Value()
	if !ok {
		return fmt.Errorf("backlight %s: brightness not read yet", s.device)
	}
	return s.Set(ctx, cur+delta)
}

// Watch refreshes whenever the brightness file changes. It blocks until ctx
// is cancelled.
func (s *Service) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	target := filepath.Join(s.dir, "brightness")
	if err := watcher.Add(target); err != nil {
		return fmt.Errorf("watch %s: %w", target, err)
	}
	s.prop.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// A change seen during a running read needs a read of its own.
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				s.prop.RefreshWait(ctx)
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("backlight watch error", "error", werr)
		}
	}
}

// Clamp limits v to [0,1].
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return min(max(v, 0), 1)
}

// Normalize converts raw sysfs values to [0,1].
func Normalize(cur, maxRaw uint64) (float64, error) {
	if maxRaw == 0 {
		return 0, fmt.Errorf("max_brightness is zero")
	}
	return Clamp(float64(cur) / float64(maxRaw)), nil
}

// ExpandArgs substitutes the brightness placeholders in argv.
func ExpandArgs(argv []string, v float64, maxRaw uint64) []string {
	percent := strconv.Itoa(int(math.Round(Clamp(v) * 100)))
	raw := strconv.FormatUint(uint64(math.Round(Clamp(v)*float64(maxRaw))), 10)
	out := make([]string, len(argv))
	for i, arg := range argv {
		arg = strings.ReplaceAll(arg, "{percent}", percent)
		out[i] = strings.ReplaceAll(arg, "{raw}", raw)
	}
	return out
}

func (s *Service) read() (float64, error) {
	maxRaw, err := readUint(filepath.Join(s.dir, "max_brightness"))
	if err != nil {
		return 0, err
	}
	cur, err := readUint(filepath.Join(s.dir, "brightness"))
	if err != nil {
		return 0, err
	}
	return Normalize(cur, maxRaw)
}

func (s *Service) runSetCommand(ctx context.Context, argv []string, v float64) error {
	maxRaw, err := readUint(filepath.Join(s.dir, "max_brightness"))
	if err != nil {
		return err
	}
	return mirror.NewCommand(ExpandArgs(argv, v, maxRaw)).Run(ctx)
}

func (s *Service) setViaLogind(ctx context.Context, v float64) error {
	maxRaw, err := readUint(filepath.Join(s.dir, "max_brightness"))
	if err != nil {
		return err
	}
	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("connect system bus: %w", err)
	}
	raw := uint32(math.Round(Clamp(v) * float64(maxRaw)))
	obj := conn.Object("org.freedesktop.login1", "/org/freedesktop/login1/session/self")
	call := obj.CallWithContext(ctx, "org.freedesktop.login1.Session.SetBrightness", 0, "backlight", s.device, raw)
	if call.Err != nil {
		return fmt.Errorf("logind SetBrightness: %w", call.Err)
	}
	return nil
}

func readUint(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, &mirror.ParseError{Input: strings.TrimSpace(string(data)), Want: "an unsigned integer"}
	}
	return v, nil
}
