package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/five82/lumen/internal/app"
	"github.com/five82/lumen/internal/config"
	"github.com/five82/lumen/internal/logtail"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("lumen", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to lumen.toml (default ~/.config/lumen/lumen.toml)")
	headless := flags.Bool("headless", false, "run the services without the TUI (for systemd)")
	refreshSeconds := flags.Int("refresh", 0, "TUI refresh interval in seconds (default 1)")
	logOutput := flags.String("log-output", "", "write logs to this file (default: the configured log file, stderr when headless)")
	debug := flags.Bool("debug", false, "enable debug logging")
	set := flags.String("set", "", "write one settings key as key=value and print the stored value")
	tail := flags.Int("tail", 0, "print the last N lines of the log file and exit (0 prints all of it)")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "lumen: %v\n", err)
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lumen: %v\n", err)
		return 1
	}

	if flags.Changed("tail") {
		if *tail < 0 {
			fmt.Fprintln(os.Stderr, "lumen: --tail expects a count of zero or more")
			return 2
		}
		return printTail(cfg.Paths.LogFile, *tail)
	}

	logger, closeLog, err := newLogger(cfg, *logOutput, *headless, *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lumen: %v\n", err)
		return 1
	}
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *set != "" {
		key, raw, ok := strings.Cut(*set, "=")
		if !ok {
			fmt.Fprintln(os.Stderr, "lumen: --set expects key=value")
			return 2
		}
		value, err := app.SetSetting(ctx, cfg, key, raw, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "lumen: %v\n", err)
			return 1
		}
		fmt.Printf("%s = %v\n", strings.TrimSpace(key), value)
		return 0
	}

	opts := app.Options{
		Config:   cfg,
		Headless: *headless,
		Logger:   logger,
	}
	if refresh := *refreshSeconds; refresh > 0 {
		opts.RefreshEvery = refresh
	}

	if err := app.Run(ctx, opts); err != nil {
		logger.Error("lumen exited", "error", err)
		fmt.Fprintf(os.Stderr, "lumen: %v\n", err)
		return 1
	}
	return 0
}

// newLogger writes text logs to the chosen file. The TUI owns the terminal,
// so stderr is only used when running headless.
func newLogger(cfg config.Config, output string, headless, debug bool) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	closeFn := func() {}
	path := output
	if path == "" && !headless {
		path = cfg.Paths.LogFile
	}
	if path != "" && path != "-" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closeFn, nil
}

func printTail(path string, n int) int {
	lines, err := logtail.Read(path, n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lumen: %v\n", err)
		return 1
	}
	for _, line := range logtail.ColorizeLines(lines) {
		fmt.Println(line)
	}
	return 0
}
