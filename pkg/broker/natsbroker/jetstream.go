// Package natsbroker implements pkg/broker.Broker over NATS JetStream,
// using durable consumers so unacknowledged messages are redelivered
// after a process restart rather than lost. Delivery is at-least-once:
// a message handled but not yet acked when the process stops is
// delivered again.
package natsbroker

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/mcpsentinel/sentinel-core/pkg/broker"
)

// ReconnectBackoff is the exponential backoff schedule for broker
// reconnects: base 500ms, cap 30s, jittered to avoid a reconnect storm
// against a recovering broker.
type ReconnectBackoff struct {
	Base time.Duration
	Cap  time.Duration
}

var DefaultBackoff = ReconnectBackoff{Base: 500 * time.Millisecond, Cap: 30 * time.Second}

func (b ReconnectBackoff) delay(attempt int) time.Duration {
	d := b.Base * time.Duration(1<<uint(attempt))
	if d > b.Cap || d <= 0 {
		d = b.Cap
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 2))
	return d/2 + jitter
}

// Client wraps a NATS JetStream connection and satisfies broker.Broker.
type Client struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	log  *logrus.Entry
}

// Connect dials url and establishes a JetStream context, retrying with
// DefaultBackoff until ctx is cancelled.
func Connect(ctx context.Context, url string, log *logrus.Entry) (*Client, error) {
	var conn *nats.Conn
	var err error

	for attempt := 0; ; attempt++ {
		conn, err = nats.Connect(url,
			nats.MaxReconnects(-1),
			nats.ReconnectWait(DefaultBackoff.Base),
			nats.DisconnectErrHandler(func(_ *nats.Conn, e error) {
				if e != nil {
					log.WithError(e).Warn("broker connection lost, reconnecting")
				}
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				log.Info("broker reconnected, resuming from durable cursor")
			}),
		)
		if err == nil {
			break
		}
		log.WithError(err).WithField("attempt", attempt).Warn("broker connect failed, backing off")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(DefaultBackoff.delay(attempt)):
		}
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	return &Client{conn: conn, js: js, log: log}, nil
}

func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	_, err := c.js.Publish(subject, data, nats.Context(ctx))
	return err
}

// Subscribe creates a durable pull consumer on subject and dispatches
// deliveries to handler until ctx is cancelled. The client never acks
// or naks on its own: handler calls Ack or Nak on the Message it
// receives, and an error returned by handler is only logged.
func (c *Client) Subscribe(ctx context.Context, subject, durableName string, prefetch int, handler broker.Handler) error {
	sub, err := c.js.PullSubscribe(subject, durableName, nats.PullMaxWaiting(prefetch))
	if err != nil {
		return fmt.Errorf("pull subscribe %s: %w", subject, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msgs, err := sub.Fetch(prefetch, nats.MaxWait(2*time.Second))
			if err != nil {
				if err != nats.ErrTimeout && err != context.DeadlineExceeded {
					c.log.WithError(err).WithField("subject", subject).Warn("fetch failed, retrying")
				}
				continue
			}

			for _, m := range msgs {
				msg := m
				wrapped := broker.Message{
					Subject: msg.Subject,
					Data:    msg.Data,
					Ack:     msg.Ack,
					Nak: func(delay ...int) error {
						if len(delay) > 0 {
							return msg.NakWithDelay(time.Duration(delay[0]) * time.Millisecond)
						}
						return msg.Nak()
					},
				}
				if err := handler(ctx, wrapped); err != nil {
					c.log.WithError(err).WithField("subject", subject).Error("handler returned error after ack/nak decision")
				}
			}
		}
	}()

	return nil
}

func (c *Client) Close() error {
	c.conn.Drain()
	return nil
}
