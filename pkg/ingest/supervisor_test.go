package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/mcpsentinel/sentinel-core/pkg/broker/membroker"
	"github.com/mcpsentinel/sentinel-core/pkg/rules"
)

var errFakePublish = errors.New("fake broker publish failure")

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return logrus.NewEntry(l)
}

func testConfig() Config {
	return Config{
		Prefetch:            10,
		PoisonRateThreshold: 3,
		PoisonRateWindow:    time.Minute,
		QuarantineCooldown:  time.Minute,
	}
}

const suricataFrame = `{
	"flow_id": "f-1",
	"event_type": "flow",
	"timestamp": "2026-01-01T00:00:00Z",
	"src_ip": "10.0.0.1",
	"dest_ip": "10.0.0.2",
	"dest_port": 3000,
	"proto": "tcp"
}`

func TestSupervisor_ValidMessagePublishesEnrichedAndAcks(t *testing.T) {
	b := membroker.New()
	engine := rules.NewEngine()
	sup := New(b, engine, testConfig(), testLog())

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	errs := b.Deliver(context.Background(), "network.events", []byte(suricataFrame))
	if len(errs) != 0 {
		t.Fatalf("unexpected handler errors: %v", errs)
	}

	var found bool
	for _, p := range b.Published {
		if p.Subject == "enriched.network" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected an enriched.network publish")
	}
}

func TestSupervisor_PoisonMessageIsDeadLetteredNotRetried(t *testing.T) {
	b := membroker.New()
	engine := rules.NewEngine()
	sup := New(b, engine, testConfig(), testLog())

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	errs := b.Deliver(context.Background(), "network.events", []byte("not json"))
	if len(errs) == 0 {
		t.Fatal("expected handler to report the poison classification to the caller")
	}

	var found bool
	for _, p := range b.Published {
		if p.Subject == "deadletter.network" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected poison message to be dead-lettered")
	}
}

func TestSupervisor_TransientPublishFailureDoesNotOpenCircuit(t *testing.T) {
	b := membroker.New()
	engine := rules.NewEngine()
	cfg := testConfig()
	cfg.PoisonRateThreshold = 2
	sup := New(b, engine, cfg, testLog())

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 0; i < 3; i++ {
		b.FailNextPublish("enriched.network", errFakePublish)
		errs := b.Deliver(context.Background(), "network.events", []byte(suricataFrame))
		if len(errs) == 0 {
			t.Fatal("expected a transient_broker error to be reported")
		}
	}

	breaker := sup.breakers["network"]
	if breaker.State() == gobreaker.StateOpen {
		t.Fatal("transient publish failures must never open the quarantine circuit")
	}

	for _, p := range b.Published {
		if p.Subject == "deadletter.network" {
			t.Fatal("a transient publish failure must not be routed to dead-letter")
		}
	}
}

func TestSupervisor_CircuitOpensAfterSustainedPoisonRate(t *testing.T) {
	b := membroker.New()
	engine := rules.NewEngine()
	cfg := testConfig()
	cfg.PoisonRateThreshold = 2
	sup := New(b, engine, cfg, testLog())

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 0; i < 3; i++ {
		b.Deliver(context.Background(), "network.events", []byte("not json"))
	}

	deadletters := 0
	for _, p := range b.Published {
		if p.Subject == "deadletter.network" {
			deadletters++
		}
	}
	if deadletters != 3 {
		t.Fatalf("expected all 3 poison messages dead-lettered (2 parsed + 1 short-circuited), got %d", deadletters)
	}
	if sup.breakers["network"].State() != gobreaker.StateOpen {
		t.Fatal("expected the quarantine circuit to be open after a sustained poison rate")
	}
}
