// Package mirror caches values that live outside the process.
//
// A Property reads from a Source, keeps the last successful value and
// announces every successful read to its listeners. Reads that fail are
// logged and leave the cached value untouched, so a property may go stale
// until the next successful read. Listeners are not deduplicated against the
// previous value: consumers rely on every read being re-announced.
package mirror

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// inflightWait is how often RefreshWait checks for a running read to finish.
const inflightWait = 10 * time.Millisecond

// Config configures a Property.
type Config[T any] struct {
	// Name identifies the property in logs and errors.
	Name   string
	Source Source[T]
	// Writer is optional. Without it Write returns ErrReadOnly.
	Writer Writer[T]
	// RefreshAfterWrite schedules a read after each successful Write.
	// Properties whose writes are observed by a file watch leave this off.
	RefreshAfterWrite bool
	Logger            *slog.Logger
}

// Property mirrors one external value.
type Property[T any] struct {
	name              string
	source            Source[T]
	writer            Writer[T]
	refreshAfterWrite bool
	logger            *slog.Logger

	mu     sync.RWMutex
	value  T
	loaded bool

	listenersMu sync.Mutex
	listeners   map[uint64]func(T)
	nextID      uint64

	inflight atomic.Bool
}

// New builds a Property. No read happens until Refresh or Publish is called.
func New[T any](cfg Config[T]) *Property[T] {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Property[T]{
		name:              cfg.Name,
		source:            cfg.Source,
		writer:            cfg.Writer,
		refreshAfterWrite: cfg.RefreshAfterWrite,
		logger:            logger.With("property", cfg.Name),
		listeners:         make(map[uint64]func(T)),
	}
}

// Name returns the property's name.
func (p *Property[T]) Name() string { return p.name }

// Value returns the cached value and whether any read has succeeded yet.
func (p *Property[T]) Value() (T, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value, p.loaded
}

// Refresh reads the source once. It returns false when the read failed or
// when another read was already in flight; in both cases nothing changes.
func (p *Property[T]) Refresh(ctx context.Context) bool {
	if p.source == nil {
		return false
	}
	if !p.inflight.CompareAndSwap(false, true) {
		p.logger.Debug("read skipped, previous read still in flight")
		return false
	}
	defer p.inflight.Store(false)
	return p.read(ctx)
}

// RefreshWait is Refresh for callers that need a read started after their
// own change, such as a write. It waits for a read already in flight to
// finish instead of skipping, then reads. It returns false when the read
// failed or ctx ended while waiting.
func (p *Property[T]) RefreshWait(ctx context.Context) bool {
	if p.source == nil {
		return false
	}
	for !p.inflight.CompareAndSwap(false, true) {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(inflightWait):
		}
	}
	defer p.inflight.Store(false)
	return p.read(ctx)
}

func (p *Property[T]) read(ctx context.Context) bool {
	v, err := p.source.Read(ctx)
	if err != nil {
		p.logger.Warn("read failed, keeping stale value", "error", &ReadError{Source: p.name, Err: err})
		return false
	}
	p.Publish(v)
	return true
}

// Publish stores a value obtained elsewhere, typically by an event-driven
// watcher, and notifies every listener.
func (p *Property[T]) Publish(v T) {
	p.mu.Lock()
	p.value = v
	p.loaded = true
	p.mu.Unlock()

	p.listenersMu.Lock()
	callbacks := make([]func(T), 0, len(p.listeners))
	for _, cb := range p.listeners {
		callbacks = append(callbacks, cb)
	}
	p.listenersMu.Unlock()

	for _, cb := range callbacks {
		cb(v)
	}
}

// Write pushes v to the external target. The cached value is not touched:
// confirmation arrives through a later read.
func (p *Property[T]) Write(ctx context.Context, v T) error {
	if p.writer == nil {
		return ErrReadOnly
	}
	if err := p.writer.Write(ctx, v); err != nil {
		werr := &WriteError{Target: p.name, Err: err}
		p.logger.Error("write failed", "error", werr)
		return werr
	}
	if p.refreshAfterWrite {
		go p.Refresh(context.WithoutCancel(ctx))
	}
	return nil
}

// OnChange registers cb for every successful read. The returned function
// removes the listener.
func (p *Property[T]) OnChange(cb func(T)) (cancel func()) {
	p.listenersMu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = cb
	p.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.listenersMu.Lock()
			delete(p.listeners, id)
			p.listenersMu.Unlock()
		})
	}
}

// Listeners returns the number of registered listeners.
func (p *Property[T]) Listeners() int {
	p.listenersMu.Lock()
	defer p.listenersMu.Unlock()
	return len(p.listeners)
}
