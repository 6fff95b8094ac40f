package correlator_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/mcpsentinel/sentinel-core/pkg/broker/membroker"
	"github.com/mcpsentinel/sentinel-core/pkg/correlator"
	"github.com/mcpsentinel/sentinel-core/pkg/evidence"
	"github.com/mcpsentinel/sentinel-core/pkg/judge"
	"github.com/mcpsentinel/sentinel-core/pkg/registry"
)

func TestCorrelator(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Correlator Suite")
}

func testLog() *logrus.Entry {
	return logrus.NewEntry(logrus.New())
}

func testConfig() correlator.Config {
	return correlator.Config{Quiescence: 20 * time.Millisecond, HardCeiling: time.Second, MaxParallel: 2}
}

type fakeStore struct {
	mu     sync.Mutex
	writes []correlator.DetectionOutcome
}

func (s *fakeStore) Write(ctx context.Context, o correlator.DetectionOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, o)
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

func (s *fakeStore) at(i int) correlator.DetectionOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[i]
}

type fakeRegistry struct {
	match *registry.Match
	err   error
}

func (r *fakeRegistry) Find(ctx context.Context, compositeID, hostIDHash string, port int, manifestHash string) (*registry.Match, error) {
	return r.match, r.err
}

type fakeProvider struct {
	resp string
}

func (p *fakeProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return p.resp, nil
}

type hookFunc func(ctx context.Context, o correlator.DetectionOutcome) error

func (f hookFunc) Notify(ctx context.Context, o correlator.DetectionOutcome) error { return f(ctx, o) }

func mustPolicy() *correlator.PolicyEvaluator {
	p, err := correlator.NewPolicyEvaluator(context.Background())
	Expect(err).ToNot(HaveOccurred())
	return p
}

func wireEvent(compositeID, sourceKind, evidenceType string, score int) evidence.WireEvent {
	return evidence.WireEvent{
		EventID:           sourceKind + "-1",
		SourceKind:        sourceKind,
		Timestamp:         time.Now().UTC(),
		HostIdentifier:    "host-1",
		EvidenceType:      evidenceType,
		ScoreContribution: score,
		CompositeID:       compositeID,
		Details:           map[string]any{},
	}
}

func publish(b *membroker.Broker, subject string, w evidence.WireEvent) {
	data, err := json.Marshal(w)
	Expect(err).ToNot(HaveOccurred())
	b.Deliver(context.Background(), subject, data)
}

func eventuallyWrote(store *fakeStore, n int) {
	Eventually(store.count, 2*time.Second, 5*time.Millisecond).Should(BeNumerically(">=", n))
}

var _ = Describe("Correlator", func() {
	var (
		b     *membroker.Broker
		store *fakeStore
	)

	BeforeEach(func() {
		b = membroker.New()
		store = &fakeStore{}
	})

	Describe("scenario S3: a lone gateway event", func() {
		It("closes authorized with no judge invocation", func() {
			c := correlator.New(b, nil, &fakeRegistry{}, mustPolicy(), store, nil, testConfig(), testLog())
			Expect(c.Start(context.Background())).To(Succeed())

			publish(b, "enriched.gateway", wireEvent("cid-gw", "gateway", "gateway", 3))
			eventuallyWrote(store, 1)

			got := store.at(0)
			Expect(got.Score).To(Equal(3))
			Expect(got.Classification).To(Equal(correlator.ClassAuthorized))
		})
	})

	Describe("scenario S1: a lone endpoint/file event", func() {
		It("invokes the judge and adds the verdict contribution to the raw weight", func() {
			provider := &fakeProvider{resp: "CLASSIFICATION: AUTHORIZED\nCONFIDENCE: 90\nREASONING: known deploy tool"}
			w := judge.NewWorker(provider, nil, time.Hour, time.Second)
			c := correlator.New(b, w, &fakeRegistry{}, mustPolicy(), store, nil, testConfig(), testLog())
			Expect(c.Start(context.Background())).To(Succeed())

			publish(b, "enriched.endpoint", wireEvent("cid-ep", "endpoint", "file", 11))
			eventuallyWrote(store, 1)

			got := store.at(0)
			Expect(got.JudgeAvailable).To(BeTrue())
			Expect(got.Score).To(Equal(11), "authorized verdict contributes 0, leaving the endpoint weight untouched")
			Expect(got.Classification).To(Equal(correlator.ClassUnauthorized))
		})
	})

	Describe("registry match", func() {
		It("applies the -6 penalty and can drop a detection across a threshold", func() {
			reg := &fakeRegistry{match: &registry.Match{CompositeID: "cid-reg"}}
			c := correlator.New(b, nil, reg, mustPolicy(), store, nil, testConfig(), testLog())
			Expect(c.Start(context.Background())).To(Succeed())

			publish(b, "enriched.endpoint", wireEvent("cid-reg", "endpoint", "process", 11))
			eventuallyWrote(store, 1)

			got := store.at(0)
			Expect(got.RegistryMatched).To(BeTrue())
			Expect(got.Score).To(Equal(5))
			Expect(got.Classification).To(Equal(correlator.ClassSuspect))
		})
	})

	Describe("multi-source corroboration", func() {
		It("aggregates events under one composite identity and skips the judge gate", func() {
			provider := &fakeProvider{resp: "CLASSIFICATION: UNAUTHORIZED\nCONFIDENCE: 90\nREASONING: x"}
			w := judge.NewWorker(provider, nil, time.Hour, time.Second)
			c := correlator.New(b, w, &fakeRegistry{}, mustPolicy(), store, nil, testConfig(), testLog())
			Expect(c.Start(context.Background())).To(Succeed())

			publish(b, "enriched.endpoint", wireEvent("cid-multi", "endpoint", "file", 11))
			publish(b, "enriched.network", wireEvent("cid-multi", "network", "network", 3))
			eventuallyWrote(store, 1)

			got := store.at(0)
			Expect(got.JudgeAvailable).To(BeFalse(), "judge gate requires single-source endpoint/file-only evidence")
			Expect(got.Score).To(Equal(14))
		})
	})

	Describe("detection hook", func() {
		It("is notified exactly once per finalized group", func() {
			var mu sync.Mutex
			var notified []correlator.DetectionOutcome
			hook := hookFunc(func(ctx context.Context, o correlator.DetectionOutcome) error {
				mu.Lock()
				defer mu.Unlock()
				notified = append(notified, o)
				return nil
			})

			c := correlator.New(b, nil, &fakeRegistry{}, mustPolicy(), store, hook, testConfig(), testLog())
			Expect(c.Start(context.Background())).To(Succeed())

			publish(b, "enriched.gateway", wireEvent("cid-hook", "gateway", "gateway", 3))
			eventuallyWrote(store, 1)

			mu.Lock()
			defer mu.Unlock()
			Expect(notified).To(HaveLen(1))
		})
	})

	Describe("Flush", func() {
		It("finalizes open groups immediately without waiting for quiescence", func() {
			cfg := correlator.Config{Quiescence: time.Hour, HardCeiling: time.Hour, MaxParallel: 2}
			c := correlator.New(b, nil, &fakeRegistry{}, mustPolicy(), store, nil, cfg, testLog())
			Expect(c.Start(context.Background())).To(Succeed())

			publish(b, "enriched.gateway", wireEvent("cid-flush", "gateway", "gateway", 3))
			c.Flush(context.Background())

			Expect(store.count()).To(Equal(1))
		})
	})
})
