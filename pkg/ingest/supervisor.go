// Package ingest is the stream ingest supervisor: it subscribes to the
// three raw evidence subjects, parses and rule-enriches each record,
// and republishes the result to the matching enriched.<source_kind>
// subject for the correlator to consume. Malformed input is poison —
// it is dead-lettered and never retried; a sustained poison rate opens
// a per-source circuit breaker (sony/gobreaker) that short-circuits
// further parsing until a cooldown elapses, so a broken upstream
// producer cannot busy-loop the pipeline. Transient broker failures
// are tracked independently of that circuit — see publish below.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/mcpsentinel/sentinel-core/pkg/broker"
	"github.com/mcpsentinel/sentinel-core/pkg/evidence"
	apperrors "github.com/mcpsentinel/sentinel-core/internal/errors"
	"github.com/mcpsentinel/sentinel-core/pkg/metrics"
	"github.com/mcpsentinel/sentinel-core/pkg/rules"
)

// route pairs one source's inbound subject with its enriched and
// dead-letter destinations.
type route struct {
	sourceKind string
	inbound    string
	enriched   string
	deadletter string
}

var routes = []route{
	{sourceKind: "endpoint", inbound: "endpoint.events", enriched: "enriched.endpoint", deadletter: "deadletter.endpoint"},
	{sourceKind: "network", inbound: "network.events", enriched: "enriched.network", deadletter: "deadletter.network"},
	{sourceKind: "gateway", inbound: "gateway.events", enriched: "enriched.gateway", deadletter: "deadletter.gateway"},
}

// Config is the subset of process configuration the supervisor needs.
type Config struct {
	Prefetch            int
	PoisonRateThreshold  int
	PoisonRateWindow     time.Duration
	QuarantineCooldown   time.Duration
}

// Supervisor owns one durable subscription per evidence source and the
// circuit breaker guarding each.
type Supervisor struct {
	broker broker.Broker
	engine *rules.Engine
	cfg    Config
	log    *logrus.Entry

	breakers map[string]*gobreaker.CircuitBreaker
}

func New(b broker.Broker, engine *rules.Engine, cfg Config, log *logrus.Entry) *Supervisor {
	s := &Supervisor{
		broker:   b,
		engine:   engine,
		cfg:      cfg,
		log:      log,
		breakers: make(map[string]*gobreaker.CircuitBreaker, len(routes)),
	}
	for _, r := range routes {
		s.breakers[r.sourceKind] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "ingest-" + r.sourceKind,
			MaxRequests: 1,
			Interval:    cfg.PoisonRateWindow,
			Timeout:     cfg.QuarantineCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.TotalFailures >= uint32(cfg.PoisonRateThreshold)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.WithFields(logrus.Fields{"breaker": name, "from": from, "to": to}).Warn("ingest circuit state change")
			},
		})
	}
	return s
}

// Start subscribes every route's durable consumer. It returns once all
// subscriptions are established; delivery happens on the broker's own
// goroutines for the lifetime of ctx.
func (s *Supervisor) Start(ctx context.Context) error {
	for _, r := range routes {
		r := r
		metrics.SetQuarantineCircuit(r.sourceKind, false)
		handler := func(ctx context.Context, msg broker.Message) error {
			return s.handle(ctx, r, msg)
		}
		if err := s.broker.Subscribe(ctx, r.inbound, "sentinel-ingest-"+r.sourceKind, s.cfg.Prefetch, handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", r.inbound, err)
		}
	}
	return nil
}

// handle runs the poison-classified parse/enrich stage through the
// per-source circuit breaker, then republishes outside of it. Only
// poison counts toward the breaker's failure threshold — a publish
// failure is a transient_broker condition handled by nak-and-retry in
// publish, never by the breaker, so a flaky broker connection alone
// can never quarantine a source that has produced zero bad records.
func (s *Supervisor) handle(ctx context.Context, r route, msg broker.Message) error {
	breaker := s.breakers[r.sourceKind]

	result, err := breaker.Execute(func() (any, error) {
		return s.parseAndEnrich(ctx, r, msg)
	})

	if err == gobreaker.ErrOpenState {
		metrics.SetQuarantineCircuit(r.sourceKind, true)
		metrics.RecordPoison(r.sourceKind, "circuit_open")
		_ = s.broker.Publish(ctx, r.deadletter, msg.Data)
		return msg.Ack()
	}
	if breaker.State() == gobreaker.StateClosed {
		metrics.SetQuarantineCircuit(r.sourceKind, false)
	}
	if err != nil {
		// Poison is already dead-lettered and acked inside
		// parseAndEnrich; this return only feeds the breaker's count.
		return err
	}

	return s.publish(ctx, r, msg, result.([]byte))
}

// parseAndEnrich parses and rule-enriches one message, returning the
// marshalled enriched event. It acks and dead-letters a poison input
// (schema violation, or a marshal failure on our own canonical type)
// rather than ever retrying it; its error return exists only to drive
// the caller's circuit breaker.
func (s *Supervisor) parseAndEnrich(ctx context.Context, r route, msg broker.Message) ([]byte, error) {
	rec, err := evidence.ParseBySubject(r.inbound, msg.Data)
	if err != nil {
		reason := "schema_violation"
		if pe, ok := err.(*evidence.ParseError); ok {
			reason = string(pe.Kind)
		}
		metrics.RecordPoison(r.sourceKind, reason)
		s.log.WithError(err).WithField("subject", r.inbound).Warn("poison message, dead-lettering")
		_ = s.broker.Publish(ctx, r.deadletter, msg.Data)
		if ackErr := msg.Ack(); ackErr != nil {
			return nil, ackErr
		}
		return nil, err
	}

	enriched := s.engine.Apply(*rec)

	data, err := enriched.Marshal()
	if err != nil {
		// A marshal failure on our own canonical type is a programming
		// error, not a poison input; dead-letter and ack rather than
		// retry forever on data we can never encode.
		metrics.RecordPoison(r.sourceKind, "marshal_error")
		_ = s.broker.Publish(ctx, r.deadletter, msg.Data)
		_ = msg.Ack()
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "marshal enriched event")
	}

	return data, nil
}

// publish republishes an already-enriched payload, outside the
// quarantine circuit. A failure here is transient_broker: nak so the
// broker redelivers, without counting against the poison threshold.
func (s *Supervisor) publish(ctx context.Context, r route, msg broker.Message, data []byte) error {
	if err := s.broker.Publish(ctx, r.enriched, data); err != nil {
		if nakErr := msg.Nak(); nakErr != nil {
			s.log.WithError(nakErr).Warn("nak failed after publish error")
		}
		return apperrors.Wrap(err, apperrors.ErrorTypeTransientBroker, "publish enriched event")
	}

	return msg.Ack()
}
