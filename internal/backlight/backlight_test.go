package backlight

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func fakeDevice(t *testing.T, name, cur, maxRaw string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "brightness"), []byte(cur+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "max_brightness"), []byte(maxRaw+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return root
}

func TestDiscover(t *testing.T) {
	root := fakeDevice(t, "intel_backlight", "1", "2")
	if err := os.MkdirAll(filepath.Join(root, "zz_other"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	got, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if got != "intel_backlight" {
		t.Fatalf("Discover = %q, want intel_backlight", got)
	}

	if _, err := Discover(filepath.Join(root, "missing")); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("Discover(missing) error = %v, want ErrNoDevice", err)
	}
}

func TestNormalizeAndClamp(t *testing.T) {
	if v, err := Normalize(120, 240); err != nil || v != 0.5 {
		t.Fatalf("Normalize(120, 240) = %v, %v; want 0.5", v, err)
	}
	if v, _ := Normalize(300, 240); v != 1 {
		t.Fatalf("Normalize(300, 240) = %v, want 1", v)
	}
	if _, err := Normalize(1, 0); err == nil {
		t.Fatal("Normalize with zero max returned nil error")
	}

	tests := map[float64]float64{-0.2: 0, 0.3: 0.3, 1.7: 1, math.NaN(): 0}
	for in, want := range tests {
		if got := Clamp(in); got != want {
			t.Errorf("Clamp(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestExpandArgs(t *testing.T) {
	argv := []string{"brightnessctl", "set", "{percent}%", "-q"}
	got := ExpandArgs(argv, 0.456, 1000)
	want := []string{"brightnessctl", "set", "46%", "-q"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExpandArgs = %v, want %v", got, want)
	}

	got = ExpandArgs([]string{"set", "{raw}"}, 2, 240)
	if got[1] != "240" {
		t.Fatalf("raw = %q, want clamped 240", got[1])
	}
	if argv[2] != "{percent}%" {
		t.Fatal("ExpandArgs modified its input")
	}
}

func TestService_ReadAndSet(t *testing.T) {
	root := fakeDevice(t, "acpi_video0", "60", "240")
	brightness := filepath.Join(root, "acpi_video0", "brightness")

	svc, err := New(Config{
		Root:       root,
		SetCommand: []string{"sh", "-c", `echo "$1" > "$2"`, "set", "{raw}", brightness},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if svc.Device() != "acpi_video0" {
		t.Fatalf("Device = %q, want acpi_video0", svc.Device())
	}

	ctx := context.Background()
	if !svc.Refresh(ctx) {
		t.Fatal("Refresh returned false")
	}
	if v, _ := svc.Value(); v != 0.25 {
		t.Fatalf("Value = %v, want 0.25", v)
	}

	if err := svc.Set(ctx, 1.5); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for {
		if v, _ := svc.Value(); v == 1 {
			break
		}
		if time.Now().After(deadline) {
			v, _ := svc.Value()
			t.Fatalf("Value after Set(1.5) = %v, want 1", v)
		}
		time.Sleep(5 * time.Millisecond)
	}

	data, err := os.ReadFile(brightness)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "240\n" {
		t.Fatalf("brightness file = %q, want 240", data)
	}
}

func TestService_ReadFailureKeepsValue(t *testing.T) {
	root := fakeDevice(t, "dev", "100", "200")
	svc, err := New(Config{Root: root, SetCommand: []string{"true"}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := context.Background()
	if !svc.Refresh(ctx) {
		t.Fatal("Refresh returned false")
	}
	if err := os.WriteFile(filepath.Join(root, "dev", "brightness"), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if svc.Refresh(ctx) {
		t.Fatal("Refresh of garbage returned true")
	}
	if v, _ := svc.Value(); v != 0.5 {
		t.Fatalf("Value = %v, want stale 0.5", v)
	}
}

func TestNew_RejectsUnknownMethod(t *testing.T) {
	root := fakeDevice(t, "dev", "1", "2")
	if _, err := New(Config{Root: root, Method: "ioctl"}); err == nil {
		t.Fatal("expected error for unknown method")
	}
	if _, err := New(Config{Root: root, Method: MethodCommand}); err == nil {
		t.Fatal("expected error for command method without a command")
	}
}
