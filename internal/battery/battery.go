// Package battery watches the battery charge and raises a desktop
// notification when it falls past a warning threshold.
//
// Each threshold fires at most once per discharge cycle. A drop past several
// thresholds between two checks announces only the most severe one. The
// latch clears when the battery starts charging; climbing back above a
// threshold while still discharging does not clear it.
package battery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/five82/lumen/internal/mirror"
	"github.com/five82/lumen/internal/notify"
)

// Reading is one observation of the battery.
type Reading struct {
	Percent  float64
	Charging bool
}

// Threshold is a warning level with the notification it raises.
type Threshold struct {
	Level float64
	Title string
	Body  string
}

var defaultTitles = map[int]string{
	20: "Low battery",
	15: "Very low battery",
	5:  "Critical battery",
}

// DefaultThresholds returns the stock 20/15/5 warnings.
func DefaultThresholds() []Threshold {
	return ThresholdsFromLevels([]int{20, 15, 5})
}

// ThresholdsFromLevels builds thresholds for the given percentages, using the
// stock titles where one exists.
func ThresholdsFromLevels(levels []int) []Threshold {
	out := make([]Threshold, 0, len(levels))
	for _, level := range levels {
		title, ok := defaultTitles[level]
		if !ok {
			title = "Low battery"
		}
		out = append(out, Threshold{
			Level: float64(level),
			Title: title,
			Body:  fmt.Sprintf("Battery is at %d%% or less. Plug in the charger.", level),
		})
	}
	return out
}

// Notifier delivers a warning. *notify.DBus satisfies it.
type Notifier interface {
	Send(ctx context.Context, n notify.Notification) (uint32, error)
}

// Monitor holds the warning latch.
type Monitor struct {
	notifier Notifier
	logger   *slog.Logger

	mu         sync.Mutex
	thresholds []Threshold
	latched    int
}

// NewMonitor sorts thresholds most severe first. notifier may be nil, in
// which case Check only reports.
func NewMonitor(thresholds []Threshold, notifier Notifier, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	sorted := append([]Threshold(nil), thresholds...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })
	return &Monitor{
		notifier:   notifier,
		logger:     logger.With("component", "battery"),
		thresholds: sorted,
		latched:    -1,
	}
}

// Check evaluates r and returns the threshold it announced, if any.
func (m *Monitor) Check(ctx context.Context, r Reading) (Threshold, bool) {
	th, fire := m.evaluate(r)
	if !fire {
		return Threshold{}, false
	}
	m.logger.Info("battery threshold reached", "percent", r.Percent, "threshold", th.Level)
	if m.notifier != nil {
		n := notify.Notification{
			Summary: th.Title,
			Body:    th.Body,
			Icon:    "battery-caution",
			Urgency: notify.UrgencyCritical,
			Timeout: -1,
		}
		if _, err := m.notifier.Send(ctx, n); err != nil {
			m.logger.Warn("battery notification failed", "error", err)
		}
	}
	return th, true
}

// Observe is a Property listener wrapper around Check.
func (m *Monitor) Observe(r Reading) {
	m.Check(context.Background(), r)
}

// Latched returns the most severe threshold announced in this discharge
// cycle.
func (m *Monitor) Latched() (Threshold, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latched < 0 {
		return Threshold{}, false
	}
	return m.thresholds[m.latched], true
}

func (m *Monitor) evaluate(r Reading) (Threshold, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.Charging {
		m.latched = -1
		return Threshold{}, false
	}
	for i, th := range m.thresholds {
		if r.Percent > th.Level {
			continue
		}
		if m.latched >= 0 && i >= m.latched {
			return Threshold{}, false
		}
		m.latched = i
		return th, true
	}
	return Threshold{}, false
}

// Service mirrors the battery reading and feeds it to a Monitor.
type Service struct {
	prop    *mirror.Property[Reading]
	monitor *Monitor
}

// NewService wires source into a property with monitor as a listener.
func NewService(source mirror.Source[Reading], monitor *Monitor, logger *slog.Logger) *Service {
	prop := mirror.New(mirror.Config[Reading]{Name: "battery", Source: source, Logger: logger})
	if monitor != nil {
		prop.OnChange(monitor.Observe)
	}
	return &Service{prop: prop, monitor: monitor}
}

// Refresh reads the source once.
func (s *Service) Refresh(ctx context.Context) bool { return s.prop.Refresh(ctx) }

// Value returns the last reading.
func (s *Service) Value() (Reading, bool) { return s.prop.Value() }

// OnChange registers cb for every successful read.
func (s *Service) OnChange(cb func(Reading)) (cancel func()) { return s.prop.OnChange(cb) }

// Monitor returns the warning monitor.
func (s *Service) Monitor() *Monitor { return s.monitor }
