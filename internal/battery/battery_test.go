package battery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/five82/lumen/internal/mirror"
	"github.com/five82/lumen/internal/notify"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (r *recordingNotifier) Send(ctx context.Context, n notify.Notification) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return uint32(len(r.sent)), r.err
}

func twoLevels() []Threshold {
	return []Threshold{
		{Level: 15, Title: "Very low battery"},
		{Level: 5, Title: "Critical battery"},
	}
}

func TestMonitor_DischargeSequence(t *testing.T) {
	tests := []struct {
		name     string
		charging map[int]bool // index into percents
		want     []float64    // threshold fired per reading, 0 when none
	}{
		{
			name: "discharging throughout",
			want: []float64{0, 15, 0, 5, 0},
		},
		{
			name:     "charging at 16",
			charging: map[int]bool{4: true},
			want:     []float64{0, 15, 0, 5, 0},
		},
	}
	percents := []float64{20, 14, 6, 4, 16}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &recordingNotifier{}
			m := NewMonitor(twoLevels(), n, nil)
			for i, pct := range percents {
				th, fired := m.Check(context.Background(), Reading{Percent: pct, Charging: tt.charging[i]})
				got := 0.0
				if fired {
					got = th.Level
				}
				if got != tt.want[i] {
					t.Fatalf("reading %v: fired %v, want %v", pct, got, tt.want[i])
				}
			}
			if len(n.sent) != 2 {
				t.Fatalf("notifications = %d, want 2", len(n.sent))
			}
			if n.sent[0].Urgency != notify.UrgencyCritical {
				t.Fatalf("urgency = %d, want critical", n.sent[0].Urgency)
			}

			// The next drop to 14 fires again only if the latch was cleared.
			_, fired := m.Check(context.Background(), Reading{Percent: 14})
			if fired != tt.charging[4] {
				t.Fatalf("refire at 14 = %v, want %v", fired, tt.charging[4])
			}
		})
	}
}

func TestMonitor_SkippedThresholdsFireMostSevere(t *testing.T) {
	m := NewMonitor(DefaultThresholds(), nil, nil)
	th, fired := m.Check(context.Background(), Reading{Percent: 3})
	if !fired || th.Level != 5 || th.Title != "Critical battery" {
		t.Fatalf("Check(3) = %+v, %v; want critical", th, fired)
	}
	for _, pct := range []float64{4, 10, 18} {
		if _, fired := m.Check(context.Background(), Reading{Percent: pct}); fired {
			t.Fatalf("Check(%v) fired after critical was latched", pct)
		}
	}
	if latched, ok := m.Latched(); !ok || latched.Level != 5 {
		t.Fatalf("Latched = %+v, %v; want 5", latched, ok)
	}
}

func TestMonitor_ChargingClearsLatch(t *testing.T) {
	m := NewMonitor(twoLevels(), nil, nil)
	ctx := context.Background()
	if _, fired := m.Check(ctx, Reading{Percent: 10}); !fired {
		t.Fatal("Check(10) did not fire")
	}
	if _, fired := m.Check(ctx, Reading{Percent: 10, Charging: true}); fired {
		t.Fatal("Check while charging fired")
	}
	if _, ok := m.Latched(); ok {
		t.Fatal("latch not cleared by charging")
	}
	if _, fired := m.Check(ctx, Reading{Percent: 10}); !fired {
		t.Fatal("Check(10) after charging did not fire")
	}
}

func TestMonitor_NotifierFailureStillLatches(t *testing.T) {
	n := &recordingNotifier{err: errors.New("no bus")}
	m := NewMonitor(twoLevels(), n, nil)
	if _, fired := m.Check(context.Background(), Reading{Percent: 12}); !fired {
		t.Fatal("Check(12) did not report the threshold")
	}
	if _, fired := m.Check(context.Background(), Reading{Percent: 11}); fired {
		t.Fatal("Check(11) fired twice")
	}
}

func TestParseSysfs(t *testing.T) {
	tests := []struct {
		capacity, status string
		want             Reading
		wantErr          bool
	}{
		{capacity: "57\n", status: "Discharging\n", want: Reading{Percent: 57}},
		{capacity: "80", status: "Charging", want: Reading{Percent: 80, Charging: true}},
		{capacity: "100", status: "Full", want: Reading{Percent: 100, Charging: true}},
		{capacity: "90", status: "Not charging", want: Reading{Percent: 90}},
		{capacity: "abc", status: "Full", wantErr: true},
		{capacity: "130", status: "Full", wantErr: true},
		{capacity: "50", status: "Exploding", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseSysfs(tt.capacity, tt.status)
		if tt.wantErr {
			var perr *mirror.ParseError
			if !errors.As(err, &perr) {
				t.Errorf("ParseSysfs(%q, %q) error = %v, want *mirror.ParseError", tt.capacity, tt.status, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseSysfs(%q, %q) = %+v, %v; want %+v", tt.capacity, tt.status, got, err, tt.want)
		}
	}
}

func TestParseUPower(t *testing.T) {
	if r := ParseUPower(42.5, 2); r.Charging || r.Percent != 42.5 {
		t.Fatalf("ParseUPower(42.5, discharging) = %+v", r)
	}
	for _, state := range []uint32{1, 4} {
		if !ParseUPower(99, state).Charging {
			t.Fatalf("state %d should count as charging", state)
		}
	}
}

func TestService_FeedsMonitor(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "BAT0")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	write := func(capacity, status string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, "capacity"), []byte(capacity), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "status"), []byte(status), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	n := &recordingNotifier{}
	svc := NewService(SysfsSource(root, "BAT0"), NewMonitor(twoLevels(), n, nil), nil)
	ctx := context.Background()

	write("40\n", "Discharging\n")
	if !svc.Refresh(ctx) {
		t.Fatal("Refresh returned false")
	}
	write("14\n", "Discharging\n")
	svc.Refresh(ctx)
	write("13\n", "Discharging\n")
	svc.Refresh(ctx)

	if len(n.sent) != 1 || n.sent[0].Summary != "Very low battery" {
		t.Fatalf("sent = %+v, want one very low warning", n.sent)
	}
	if r, _ := svc.Value(); r.Percent != 13 {
		t.Fatalf("Value = %+v, want 13%%", r)
	}
}
