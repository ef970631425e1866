package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/five82/lumen/internal/backlight"
	"github.com/five82/lumen/internal/battery"
	"github.com/five82/lumen/internal/chatrooms"
	"github.com/five82/lumen/internal/config"
	"github.com/five82/lumen/internal/mirror"
	"github.com/five82/lumen/internal/notify"
	"github.com/five82/lumen/internal/poll"
	"github.com/five82/lumen/internal/prefs"
	"github.com/five82/lumen/internal/toggle"
	"github.com/five82/lumen/internal/ui"
)

// Options configure the lumen application.
type Options struct {
	// Config is the loaded lumen.toml.
	Config       config.Config
	RefreshEvery int // seconds; zero uses the UI default
	Headless     bool
	Logger       *slog.Logger
}

// Services holds one instance of every service. It is built once in Run
// and passed to consumers.
type Services struct {
	Config        config.Config
	Settings      *prefs.Store
	ChatFile      *prefs.Store
	Registry      *poll.Registry
	Session       *chatrooms.Session
	Backlight     *backlight.Service // nil when the machine has no backlight
	Battery       *battery.Service
	IdleInhibitor *toggle.Toggle
	NightLight    *toggle.Toggle
	Notifier      *notify.DBus

	logger   *slog.Logger
	cancel   context.CancelFunc
	watchers sync.WaitGroup
}

// Run boots lumen until the context is cancelled or the user quits.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	svc, err := NewServices(ctx, opts.Config, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Start(ctx); err != nil {
		return err
	}

	if opts.Headless {
		if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
			logger.Warn("sd_notify failed", "error", err)
		} else if sent {
			logger.Debug("sd_notify ready sent")
		}
		logger.Info("lumen running headless")
		<-ctx.Done()
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
		return nil
	}

	return ui.Run(ui.Options{
		Context:       ctx,
		Settings:      svc.Settings,
		Session:       svc.Session,
		Backlight:     svc.Backlight,
		Battery:       svc.Battery,
		IdleInhibitor: svc.IdleInhibitor,
		NightLight:    svc.NightLight,
		RefreshEvery:  time.Duration(opts.RefreshEvery) * time.Second,
	})
}

// NewServices constructs every service from cfg. Nothing is polled or
// watched until Start.
func NewServices(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Services{
		Config:   cfg,
		Registry: poll.NewRegistry(ctx, logger.With("component", "poll")),
		Notifier: &notify.DBus{AppName: "lumen"},
		logger:   logger,
	}

	settings, err := prefs.Open(cfg.Paths.Settings, prefs.ShellDefaults(), prefs.WithLogger(logger))
	if err != nil {
		s.Registry.Close()
		return nil, fmt.Errorf("open settings: %w", err)
	}
	s.Settings = settings

	chatFile, err := prefs.Open(cfg.Paths.ChatSession, chatrooms.SessionDefaults(), prefs.WithLogger(logger))
	if err != nil {
		s.Registry.Close()
		return nil, fmt.Errorf("open chat session file: %w", err)
	}
	s.ChatFile = chatFile

	s.Session = chatrooms.NewSession(chatrooms.Options{
		Registry: s.Registry,
		Persist:  chatFile,
		Logger:   logger,
	})

	bl, err := backlight.New(backlight.Config{
		Device:     cfg.Backlight.Device,
		Method:     cfg.Backlight.Method,
		SetCommand: cfg.Backlight.SetCommand,
		Logger:     logger,
	})
	switch {
	case errors.Is(err, backlight.ErrNoDevice):
		logger.Info("no backlight device, brightness disabled")
	case err != nil:
		s.Registry.Close()
		return nil, fmt.Errorf("init backlight: %w", err)
	default:
		s.Backlight = bl
	}

	var source mirror.Source[battery.Reading]
	if cfg.Battery.Source == "upower" {
		source = battery.UPowerSource()
	} else {
		source = battery.SysfsSource("", cfg.Battery.Device)
	}
	monitor := battery.NewMonitor(battery.ThresholdsFromLevels(cfg.Battery.Thresholds), s.Notifier, logger)
	s.Battery = battery.NewService(source, monitor, logger)

	s.IdleInhibitor = toggle.New(toggle.Config{
		Name:     "idle_inhibitor",
		Status:   mirror.NewCommand(cfg.Toggles.IdleInhibitorStatus),
		Toggle:   mirror.NewCommand(cfg.Toggles.IdleInhibitorToggle),
		Settings: settings,
		Logger:   logger,
	})
	s.NightLight = toggle.New(toggle.Config{
		Name:     "night_light",
		Status:   mirror.NewCommand(cfg.Toggles.NightLightStatus),
		Toggle:   mirror.NewCommand(cfg.Toggles.NightLightToggle),
		Settings: settings,
		Logger:   logger,
	})
	return s, nil
}

// Start launches the file watches, registers the polls and restores the
// chat session.
func (s *Services) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.watch(ctx, "settings", s.Settings.Watch)
	s.watch(ctx, "chat session file", s.ChatFile.Watch)
	if s.Backlight != nil {
		s.watch(ctx, "backlight", s.Backlight.Watch)
	}

	if err := registerPolls(s); err != nil {
		return err
	}

	if s.Settings.Bool("chatrooms_enabled") {
		s.watchers.Add(1)
		go func() {
			defer s.watchers.Done()
			s.startChat(ctx)
		}()
	}
	return nil
}

func (s *Services) startChat(ctx context.Context) {
	saved := s.ChatFile.String("ip")
	if saved == "" && s.Config.Chatrooms.Server != "" {
		if err := s.Session.SetServerAddress(ctx, s.Config.Chatrooms.Server); err != nil {
			s.logger.Warn("connect configured chatrooms server", "error", err)
		}
		return
	}
	if err := s.Session.Restore(ctx); err != nil {
		s.logger.Warn("restore chat session", "error", err)
	}
}

func (s *Services) watch(ctx context.Context, name string, fn func(context.Context) error) {
	s.watchers.Add(1)
	go func() {
		defer s.watchers.Done()
		if err := fn(ctx); err != nil {
			s.logger.Warn("watch stopped", "watch", name, "error", err)
		}
	}()
}

// Close stops every poll and watch and waits for them.
func (s *Services) Close() {
	if s.Session != nil {
		s.Session.Close()
	}
	s.Registry.Close()
	if s.cancel != nil {
		s.cancel()
	}
	s.watchers.Wait()
	if err := s.Notifier.Close(); err != nil {
		s.logger.Debug("close notifier", "error", err)
	}
}

// SetSetting writes one settings key, waits for the file watch to read it
// back and returns the confirmed value.
func SetSetting(ctx context.Context, cfg config.Config, key, raw string, logger *slog.Logger) (any, error) {
	settings, err := prefs.Open(cfg.Paths.Settings, prefs.ShellDefaults(), prefs.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = settings.Watch(watchCtx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	if err := settings.SetFieldString(key, raw); err != nil {
		return nil, err
	}
	flushCtx, stop := context.WithTimeout(ctx, 5*time.Second)
	defer stop()
	if err := settings.Flush(flushCtx); err != nil {
		return nil, err
	}
	v, _ := settings.Get(key)
	return v, nil
}
