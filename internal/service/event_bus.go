package service

import (
	"context"
	"fmt"
	"sync"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"
	"wildlife-governance/pkg/apperror"

	"github.com/rs/zerolog"
)

const (
	defaultEventPage = 100
	maxEventPage     = 500
)

// EventBus delivers committed events to in-process subscribers and serves
// the persisted outbox as a feed.
type EventBus struct {
	events ports.EventRepository
	log    zerolog.Logger

	mu          sync.RWMutex
	subscribers []ports.EventSubscriber
}

// NewEventBus creates an EventBus reading the feed from events.
func NewEventBus(events ports.EventRepository, log zerolog.Logger) *EventBus {
	return &EventBus{events: events, log: log}
}

// Subscribe registers sub for every event published after the call.
func (b *EventBus) Subscribe(sub ports.EventSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)
}

// Publish hands each event to every subscriber in order. A failing
// subscriber is logged and skipped; the events are already durable.
func (b *EventBus) Publish(ctx context.Context, events ...domain.Event) {
	b.mu.RLock()
	subs := make([]ports.EventSubscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, ev := range events {
		for _, sub := range subs {
			if err := sub.Handle(ctx, ev); err != nil {
				b.log.Warn().
					Err(err).
					Str("subscriber", sub.Name()).
					Str("event_type", string(ev.Type)).
					Int64("seq", ev.Seq).
					Msg("event subscriber failed")
			}
		}
	}
}

// ListEvents returns up to limit events with Seq greater than afterSeq.
func (b *EventBus) ListEvents(ctx context.Context, afterSeq int64, limit int) ([]domain.Event, error) {
	if afterSeq < 0 {
		afterSeq = 0
	}
	if limit <= 0 {
		limit = defaultEventPage
	}
	if limit > maxEventPage {
		limit = maxEventPage
	}
	events, err := b.events.ListAfter(ctx, afterSeq, limit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list events: %w", err))
	}
	return events, nil
}

var (
	_ ports.EventPublisher = (*EventBus)(nil)
	_ ports.EventFeed      = (*EventBus)(nil)
)
