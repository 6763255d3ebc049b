package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Handler receives published events. A returned error is logged.
type Handler func(ctx context.Context, ev Event) error

type subscription struct {
	id      int
	name    string
	handler Handler
}

// Bus delivers each event synchronously to every subscriber in
// registration order. A subscriber that fails or panics is logged and the
// remaining subscribers still run; Publish never reports their failures.
type Bus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	subs   []subscription
	nextID int
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe registers h under name and returns a function that removes it.
func (b *Bus) Subscribe(name string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, name: name, handler: h})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers ev to the subscribers registered at the time of the call.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if err := deliver(ctx, s, ev); err != nil {
			b.logger.Warn("events: subscriber failed",
				slog.String("subscriber", s.name),
				slog.String("event", string(ev.Type)),
				slog.String("error", err.Error()))
		}
	}
}

func deliver(ctx context.Context, s subscription, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.handler(ctx, ev)
}

// LogSubscriber logs every event at debug level, tool failures at warn.
func LogSubscriber(logger *slog.Logger) Handler {
	return func(ctx context.Context, ev Event) error {
		level := slog.LevelDebug
		if ev.Type == ToolFailed {
			level = slog.LevelWarn
		}
		logger.LogAttrs(ctx, level, "event",
			slog.String("id", ev.ID),
			slog.String("type", string(ev.Type)),
			slog.String("subject", ev.Subject),
			slog.Any("data", ev.Data))
		return nil
	}
}
