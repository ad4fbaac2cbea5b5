package audit

import (
	"context"
	"time"
)

// Store is an append-only event sink.
type Store interface {
	Append(ctx context.Context, event Event) error
	List(ctx context.Context) ([]Event, error)
}

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily. An optional
// secondary sink (the Kafka producer) receives every event best-effort.
type Publisher struct {
	store Store
	sink  Sink
}

// Sink is a secondary, best-effort destination for events.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

func NewPublisher(store Store, sink Sink) *Publisher {
	return &Publisher{store: store, sink: sink}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	if p.sink != nil {
		// Sink failures must not fail the domain operation; the durable
		// record already exists in the store.
		_ = p.sink.Publish(ctx, event)
	}
	return nil
}

func (p *Publisher) List(ctx context.Context) ([]Event, error) {
	return p.store.List(ctx)
}
