package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Aman-CERP/catindex/internal/logging"
)

// Handler receives a decoded event.
type Handler func(ctx context.Context, ev Event)

// Observer is notified of every envelope the bus sees.
type Observer interface {
	EventReceived(name string, valid bool)
}

// Bus dispatches events by name to subscribers. Invalid envelopes are
// logged, counted and dropped; they never reach a handler.
type Bus struct {
	logger   *slog.Logger
	observer Observer

	mu       sync.RWMutex
	handlers map[string][]Handler

	published atomic.Uint64
	invalid   atomic.Uint64
}

// NewBus creates a bus. A nil logger discards output.
func NewBus(logger *slog.Logger, observer Observer) *Bus {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Bus{
		logger:   logger,
		observer: observer,
		handlers: make(map[string][]Handler),
	}
}

// Subscribe registers h for the named events.
func (b *Bus) Subscribe(h Handler, names ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, name := range names {
		name = NormalizeName(name)
		b.handlers[name] = append(b.handlers[name], h)
	}
}

// Publish decodes env and delivers it. It reports whether the envelope
// was a valid event.
func (b *Bus) Publish(ctx context.Context, env Envelope) bool {
	ev, err := env.Decode()
	if err != nil {
		b.invalid.Add(1)
		b.notify(NormalizeName(env.Name), false)
		b.logger.Warn("event_ignored",
			slog.String("event", env.Name),
			slog.String("error", err.Error()))
		return false
	}
	b.Dispatch(ctx, ev)
	return true
}

// Dispatch delivers an already typed event.
func (b *Bus) Dispatch(ctx context.Context, ev Event) {
	b.published.Add(1)
	b.notify(ev.Name(), true)

	b.mu.RLock()
	hs := b.handlers[ev.Name()]
	b.mu.RUnlock()

	if len(hs) == 0 {
		b.logger.Debug("event_unhandled", slog.String("event", ev.Name()))
		return
	}
	for _, h := range hs {
		h(ctx, ev)
	}
}

func (b *Bus) notify(name string, valid bool) {
	if b.observer != nil {
		b.observer.EventReceived(name, valid)
	}
}

// Published returns the number of valid events dispatched.
func (b *Bus) Published() uint64 {
	return b.published.Load()
}

// Invalid returns the number of envelopes rejected.
func (b *Bus) Invalid() uint64 {
	return b.invalid.Load()
}
