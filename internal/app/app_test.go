package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/five82/lumen/internal/config"
)

func writeConfig(t *testing.T) (configPath, settingsPath string) {
	t.Helper()
	dir := t.TempDir()
	settingsPath = filepath.Join(dir, "settings", "config.json")
	configPath = filepath.Join(dir, "lumen.toml")
	body := fmt.Sprintf(`
[paths]
settings = %q
chat_session = %q
log_file = %q

[battery]
device = "NOBAT"

[toggles]
idle_inhibitor_status = ["echo", "enabled"]
night_light_status = ["echo", "disabled"]
`, settingsPath, filepath.Join(dir, "chat.json"), filepath.Join(dir, "lumen.log"))
	if err := os.WriteFile(configPath, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return configPath, settingsPath
}

func loadConfig(t *testing.T, path string) config.Config {
	t.Helper()
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	return cfg
}

func TestSetSetting_RoundTrips(t *testing.T) {
	configPath, settingsPath := writeConfig(t)
	cfg := loadConfig(t, configPath)
	ctx := context.Background()

	got, err := SetSetting(ctx, cfg, "show_battery", "false", nil)
	if err != nil {
		t.Fatalf("SetSetting returned error: %v", err)
	}
	if got != false {
		t.Fatalf("show_battery = %v, want false", got)
	}

	got, err = SetSetting(ctx, cfg, "theme", "light", nil)
	if err != nil {
		t.Fatalf("SetSetting returned error: %v", err)
	}
	if got != "light" {
		t.Fatalf("theme = %v, want light", got)
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("settings file is empty")
	}
}

func TestSetSetting_RejectsBadBool(t *testing.T) {
	configPath, _ := writeConfig(t)
	if _, err := SetSetting(context.Background(), loadConfig(t, configPath), "show_battery", "maybe", nil); err == nil {
		t.Fatal("expected parse error for non-boolean value")
	}
}

func TestServices_StartPollsAndMirrorsToggles(t *testing.T) {
	configPath, _ := writeConfig(t)
	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := NewServices(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("NewServices returned error: %v", err)
	}
	if err := svc.Start(ctx); err != nil {
		svc.Close()
		t.Fatalf("Start returned error: %v", err)
	}
	defer svc.Close()

	want := 3
	if svc.Backlight != nil {
		want = 4
	}
	if got := svc.Registry.Len(); got != want {
		t.Fatalf("registered polls = %d, want %d", got, want)
	}

	deadline := time.Now().Add(3 * time.Second)
	for !svc.IdleInhibitor.Enabled() || !svc.Settings.Bool("idle_inhibitor") {
		if time.Now().After(deadline) {
			t.Fatalf("idle inhibitor = %v, setting = %v; want both enabled",
				svc.IdleInhibitor.State(), svc.Settings.Bool("idle_inhibitor"))
		}
		time.Sleep(10 * time.Millisecond)
	}
}
