// Package membroker is an in-process fake of pkg/broker.Broker used by
// unit tests for the ingest supervisor and correlator, so their
// acknowledge-after-publish and poison-routing behavior can be asserted
// without a live NATS server.
package membroker

import (
	"context"
	"sync"

	"github.com/mcpsentinel/sentinel-core/pkg/broker"
)

type subscription struct {
	handler  broker.Handler
	prefetch int
}

// Broker is a single-process, synchronous fake: Publish immediately
// dispatches to any subscribers of that subject. It is not durable
// across restarts — tests that need durable-cursor semantics construct
// a new Broker and re-deliver manually.
type Broker struct {
	mu   sync.Mutex
	subs map[string][]*subscription

	Published []Published
	failNext  map[string]error
}

type Published struct {
	Subject string
	Data    []byte
}

func New() *Broker {
	return &Broker{subs: make(map[string][]*subscription), failNext: make(map[string]error)}
}

// FailNextPublish makes the next Publish to subject return err, to
// exercise the ingest supervisor's nak-and-retry path.
func (b *Broker) FailNextPublish(subject string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext[subject] = err
}

func (b *Broker) Publish(ctx context.Context, subject string, data []byte) error {
	b.mu.Lock()
	if err, ok := b.failNext[subject]; ok {
		delete(b.failNext, subject)
		b.mu.Unlock()
		return err
	}
	b.Published = append(b.Published, Published{Subject: subject, Data: append([]byte(nil), data...)})
	subs := append([]*subscription(nil), b.subs[subject]...)
	b.mu.Unlock()

	for _, s := range subs {
		msg := broker.Message{
			Subject: subject,
			Data:    data,
			Ack:     func() error { return nil },
			Nak:     func(...int) error { return nil },
		}
		if err := s.handler(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (b *Broker) Subscribe(ctx context.Context, subject, durableName string, prefetch int, handler broker.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[subject] = append(b.subs[subject], &subscription{handler: handler, prefetch: prefetch})
	return nil
}

func (b *Broker) Close() error { return nil }

// Deliver synthesizes an inbound message on subject as if it arrived
// from an external producer, invoking every subscriber's handler.
func (b *Broker) Deliver(ctx context.Context, subject string, data []byte) []error {
	b.mu.Lock()
	subs := append([]*subscription(nil), b.subs[subject]...)
	b.mu.Unlock()

	var errs []error
	for _, s := range subs {
		acked := false
		nakked := false
		msg := broker.Message{
			Subject: subject,
			Data:    data,
			Ack:     func() error { acked = true; return nil },
			Nak:     func(...int) error { nakked = true; return nil },
		}
		if err := s.handler(ctx, msg); err != nil {
			errs = append(errs, err)
		}
		_ = acked
		_ = nakked
	}
	return errs
}
