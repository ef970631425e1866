// Package poll runs named fetch functions at fixed intervals.
//
// Every registration gets its own ticker; ticks are not aligned across
// entries. A tick that arrives while the previous fetch of the same entry is
// still running is skipped, never queued. Fetch errors and panics are logged
// and treated as "no update this tick".
package poll

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidInterval is returned for non-positive intervals.
	ErrInvalidInterval = errors.New("poll interval must be positive")
	// ErrClosed is returned when registering on a closed registry.
	ErrClosed = errors.New("poll registry closed")
)

// FetchFunc performs one poll. It must be safe to skip.
type FetchFunc func(ctx context.Context) error

// Stats counts what happened to an entry's ticks.
type Stats struct {
	Runs     uint64
	Skipped  uint64
	Failures uint64
}

// Registry owns every running poll entry.
type Registry struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu      sync.Mutex
	entries map[uuid.UUID]*entry
	closed  bool
	wg      sync.WaitGroup
}

// NewRegistry returns a registry whose entries stop when ctx is cancelled or
// Close is called.
func NewRegistry(ctx context.Context, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Registry{
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
		entries: make(map[uuid.UUID]*entry),
	}
}

// Handle identifies one registration.
type Handle struct {
	id    uuid.UUID
	name  string
	reg   *Registry
	entry *entry
}

// ID returns the registration id.
func (h *Handle) ID() uuid.UUID { return h.id }

// Name returns the name given at registration.
func (h *Handle) Name() string { return h.name }

// Dispose stops the entry. It is safe to call more than once.
func (h *Handle) Dispose() {
	if h == nil {
		return
	}
	h.reg.Unregister(h)
}

// Stats returns a copy of the entry's counters.
func (h *Handle) Stats() Stats {
	return Stats{
		Runs:     h.entry.runs.Load(),
		Skipped:  h.entry.skipped.Load(),
		Failures: h.entry.failures.Load(),
	}
}

type entry struct {
	name     string
	interval time.Duration
	fetch    FetchFunc
	cancel   context.CancelFunc
	done     chan struct{}
	inflight atomic.Bool
	fetches  sync.WaitGroup

	runs     atomic.Uint64
	skipped  atomic.Uint64
	failures atomic.Uint64
}

// Register starts polling fetch every interval. The first fetch runs
// immediately.
func (r *Registry) Register(name string, interval time.Duration, fetch FetchFunc) (*Handle, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("register %s: %w", name, ErrInvalidInterval)
	}
	if fetch == nil {
		return nil, fmt.Errorf("register %s: fetch is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.ctx.Err() != nil {
		return nil, fmt.Errorf("register %s: %w", name, ErrClosed)
	}

	ctx, cancel := context.WithCancel(r.ctx)
	e := &entry{
		name:     name,
		interval: interval,
		fetch:    fetch,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	id := uuid.New()
	r.entries[id] = e

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.loop(ctx, e)
	}()

	r.logger.Debug("poll registered", "name", name, "interval", interval, "id", id)
	return &Handle{id: id, name: name, reg: r, entry: e}, nil
}

// Unregister stops the entry behind h and waits for its loop to exit. It
// reports whether the entry was still registered.
func (r *Registry) Unregister(h *Handle) bool {
	if h == nil {
		return false
	}
	r.mu.Lock()
	e, ok := r.entries[h.id]
	if ok {
		delete(r.entries, h.id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	e.cancel()
	<-e.done
	r.logger.Debug("poll unregistered", "name", e.name, "id", h.id)
	return true
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close stops every entry and waits for running fetches to return.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	r.entries = make(map[uuid.UUID]*entry)
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

func (r *Registry) loop(ctx context.Context, e *entry) {
	defer close(e.done)
	defer e.fetches.Wait()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		r.tick(ctx, e)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Registry) tick(ctx context.Context, e *entry) {
	if !e.inflight.CompareAndSwap(false, true) {
		e.skipped.Add(1)
		r.logger.Debug("poll tick skipped, fetch still running", "name", e.name)
		return
	}
	e.fetches.Add(1)
	go func() {
		defer e.fetches.Done()
		defer e.inflight.Store(false)
		defer func() {
			if rec := recover(); rec != nil {
				e.failures.Add(1)
				r.logger.Error("poll fetch panicked", "name", e.name, "panic", rec)
			}
		}()

		e.runs.Add(1)
		if err := e.fetch(ctx); err != nil {
			e.failures.Add(1)
			if ctx.Err() == nil {
				r.logger.Warn("poll fetch failed", "name", e.name, "error", err)
			}
		}
	}()
}
