package app

import (
	"context"
	"fmt"
	"time"
)

// refresher is satisfied by every mirrored service.
type refresher interface {
	Refresh(ctx context.Context) bool
}

type pollEntry struct {
	name     string
	interval time.Duration
	target   refresher
}

// registerPolls puts every polled service on the registry. Read failures are
// logged by the services themselves, so each fetch reports success.
func registerPolls(s *Services) error {
	entries := []pollEntry{
		{name: "battery", interval: s.Config.Battery.PollInterval, target: s.Battery},
		{name: "toggle.idle_inhibitor", interval: s.Config.Toggles.PollInterval, target: s.IdleInhibitor},
		{name: "toggle.night_light", interval: s.Config.Toggles.PollInterval, target: s.NightLight},
	}
	// The file watch misses changes on some drivers; poll as a fallback.
	if s.Backlight != nil {
		entries = append(entries, pollEntry{name: "backlight", interval: s.Config.Backlight.PollInterval, target: s.Backlight})
	}

	for _, e := range entries {
		target := e.target
		if _, err := s.Registry.Register(e.name, e.interval, func(ctx context.Context) error {
			target.Refresh(ctx)
			return nil
		}); err != nil {
			return fmt.Errorf("register %s poll: %w", e.name, err)
		}
	}
	return nil
}
