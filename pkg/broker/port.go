// Package broker defines the durable message-bus port the stream ingest
// supervisor and correlator depend on, with a NATS JetStream
// implementation in pkg/broker/natsbroker.
package broker

import "context"

// Message is one delivery from a durable consumer. Ack/Nak are provided
// by the broker implementation and must be called exactly once per
// message by the caller.
type Message struct {
	Subject string
	Data    []byte

	Ack func() error
	Nak func(delay ...int) error
}

// Handler processes one inbound message. Returning an error does not by
// itself Nak the message — the supervisor decides ack/nak policy based
// on the error's classification (poison vs transient).
type Handler func(ctx context.Context, msg Message) error

// Broker is the durable pub/sub port used by the ingest supervisor and
// the correlator. Implementations must provide at-least-once delivery
// with a durable cursor that survives consumer restarts without
// replaying from the beginning.
type Broker interface {
	// Publish sends data to subject and blocks until the broker confirms
	// durability, so a caller only acks its inbound message after the
	// outbound publish is itself safe.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe creates (or resumes) a durable consumer group on
	// subject with the given prefetch limit, invoking handler for each
	// delivered message until ctx is cancelled.
	Subscribe(ctx context.Context, subject, durableName string, prefetch int, handler Handler) error

	// Close releases the broker connection.
	Close() error
}
