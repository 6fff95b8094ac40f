package correlator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "github.com/mcpsentinel/sentinel-core/internal/errors"
	"github.com/mcpsentinel/sentinel-core/pkg/broker"
	"github.com/mcpsentinel/sentinel-core/pkg/evidence"
	"github.com/mcpsentinel/sentinel-core/pkg/judge"
	"github.com/mcpsentinel/sentinel-core/pkg/metrics"
	"github.com/mcpsentinel/sentinel-core/pkg/registry"
)

// enrichedSubjects are the three subjects the ingest supervisor
// publishes enriched events to; the correlator subscribes to all of
// them under one durable consumer group each.
var enrichedSubjects = []string{"enriched.endpoint", "enriched.network", "enriched.gateway"}

const (
	detectionsSubject    = "detections.finalised"
	judgeVerdictsSubject = "gateway.classification.judge"
)

// Config is the correlator's tunable aggregation-window behavior.
type Config struct {
	Quiescence  time.Duration
	HardCeiling time.Duration
	MaxParallel int
}

// Correlator aggregates enriched events sharing a composite identity
// into CorrelationGroups, scores each group at close, optionally gates
// a judge inference, cross-references the registry, evaluates the
// verdict policy, and emits a DetectionOutcome.
type Correlator struct {
	broker   broker.Broker
	judge    *judge.Worker
	registry registry.Lookup
	policy   *PolicyEvaluator
	store    Store
	hook     Hook
	cfg      Config
	log      *logrus.Entry

	mu     sync.Mutex
	groups map[string]*groupState
}

type groupState struct {
	group *CorrelationGroup

	quiescence *time.Timer
	hardCeil   *time.Timer
	closeOnce  sync.Once
}

func New(b broker.Broker, w *judge.Worker, reg registry.Lookup, policy *PolicyEvaluator, store Store, hook Hook, cfg Config, log *logrus.Entry) *Correlator {
	if hook == nil {
		hook = NoopHook{}
	}
	return &Correlator{
		broker:   b,
		judge:    w,
		registry: reg,
		policy:   policy,
		store:    store,
		hook:     hook,
		cfg:      cfg,
		log:      log,
		groups:   make(map[string]*groupState),
	}
}

// Start subscribes to every enriched-event subject. Delivery happens on
// the broker's own goroutines for the lifetime of ctx.
func (c *Correlator) Start(ctx context.Context) error {
	for _, subject := range enrichedSubjects {
		subject := subject
		handler := func(ctx context.Context, msg broker.Message) error {
			return c.handle(ctx, msg)
		}
		if err := c.broker.Subscribe(ctx, subject, "sentinel-correlator", c.cfg.MaxParallel, handler); err != nil {
			return err
		}
	}
	return nil
}

func (c *Correlator) handle(ctx context.Context, msg broker.Message) error {
	w, err := evidence.DecodeWireEvent(msg.Data)
	if err != nil {
		return msg.Ack()
	}

	c.admit(ctx, w)
	return msg.Ack()
}

// admit appends w to its composite identity's group, opening a new
// group (and its timers) on first observation.
func (c *Correlator) admit(ctx context.Context, w evidence.WireEvent) {
	now := time.Now()

	c.mu.Lock()
	gs, ok := c.groups[w.CompositeID]
	if !ok {
		gs = &groupState{group: newGroup(w.CompositeID, now)}
		c.groups[w.CompositeID] = gs
		gs.hardCeil = time.AfterFunc(c.cfg.HardCeiling, func() { c.closeGroup(context.Background(), w.CompositeID) })
	}
	gs.group.addEvent(w, now)
	if gs.quiescence != nil {
		gs.quiescence.Stop()
	}
	gs.quiescence = time.AfterFunc(c.cfg.Quiescence, func() { c.closeGroup(context.Background(), w.CompositeID) })
	c.mu.Unlock()
}

// closeGroup finalizes the group for compositeID, if it is still open.
// A group may be targeted by both its quiescence and hard-ceiling
// timers; closeOnce guarantees exactly one finalization runs.
func (c *Correlator) closeGroup(ctx context.Context, compositeID string) {
	c.mu.Lock()
	gs, ok := c.groups[compositeID]
	if ok {
		delete(c.groups, compositeID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	gs.closeOnce.Do(func() {
		gs.quiescence.Stop()
		gs.hardCeil.Stop()
		c.finalize(ctx, gs.group)
	})
}

// Flush closes every open group immediately, used at shutdown so no
// in-progress aggregation is lost.
func (c *Correlator) Flush(ctx context.Context) {
	c.mu.Lock()
	ids := make([]string, 0, len(c.groups))
	for id := range c.groups {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		c.closeGroup(ctx, id)
	}
}

// finalize computes the aggregate score, gates and applies a judge
// inference, applies the registry penalty, evaluates the verdict
// policy, writes the outcome, and publishes it.
func (c *Correlator) finalize(ctx context.Context, g *CorrelationGroup) {
	score := 0
	var matchedRules []evidence.MatchedRule
	for _, ev := range g.MemberEvents {
		score += ev.ScoreContribution + ev.ScoreBonus
		matchedRules = append(matchedRules, ev.MatchedRules...)
	}

	judgeAvailable := false
	if c.judge != nil && g.isSingleSourceEndpointFileOnly() {
		req := c.buildJudgeRequest(g)
		result := c.judge.Classify(ctx, req)
		score += result.ScoreContribution
		judgeAvailable = true
		g.JudgeRequested = true
		c.publishJudgeVerdict(ctx, g, result)
	}

	registryMatched := c.lookupRegistry(ctx, g)
	if registryMatched {
		score += registry.RegistryPenalty
	}

	classification, err := c.policy.Classify(ctx, score)
	if err != nil {
		c.log.WithError(err).Error("verdict policy evaluation failed")
		classification = ClassSuspect
	}

	outcome := DetectionOutcome{
		DetectionID:     uuid.NewString(),
		CompositeID:     g.CompositeID,
		Timestamp:       time.Now().UTC(),
		WindowOpenTS:    g.CreatedAt,
		HostIDHash:      evidence.HashHostID(hostIdentifierOf(g)),
		Score:           score,
		Classification:  classification,
		Evidence:        g.MemberEvents,
		RegistryMatched: registryMatched,
		JudgeAvailable:  judgeAvailable,
		MatchedRules:    matchedRules,
	}

	if c.store != nil {
		const storeWriteAttempts = 3
		var err error
		for attempt := 0; attempt < storeWriteAttempts; attempt++ {
			if attempt > 0 {
				select {
				case <-ctx.Done():
				case <-time.After((100 * time.Millisecond) << uint(attempt-1)):
				}
			}
			if err = c.store.Write(ctx, outcome); err == nil {
				break
			}
		}
		if err != nil {
			metrics.RecordStoreWriteError()
			c.log.WithError(err).WithField("composite_id", g.CompositeID).Error("detection outcome write failed after retries")
		}
	}

	if err := c.publishOutcome(ctx, outcome); err != nil {
		c.log.WithError(err).WithField("composite_id", g.CompositeID).Error("detection outcome publish failed")
	}
	metrics.RecordDetectionFinalized(classification)

	if err := c.hook.Notify(ctx, outcome); err != nil {
		c.log.WithError(err).WithField("composite_id", g.CompositeID).Warn("detection hook notify failed")
	}
}

func (c *Correlator) buildJudgeRequest(g *CorrelationGroup) judge.Request {
	items := make([]judge.EvidenceItem, 0, len(g.MemberEvents))
	for _, ev := range g.MemberEvents {
		item := judge.EvidenceItem{
			Type:    ev.EvidenceType,
			Source:  ev.SourceKind,
			Snippet: ev.Snippet,
		}
		if path, ok := ev.Details["file_path"].(string); ok {
			item.FilePath = path
		}
		if name, ok := ev.Details["process_name"].(string); ok {
			item.ProcessName = name
		}
		items = append(items, item)
	}
	return judge.Request{
		HostIDHash: evidence.HashHostID(hostIdentifierOf(g)),
		Timestamp:  g.LastSeen.UTC().Format(time.RFC3339),
		Evidence:   items,
	}
}

func (c *Correlator) lookupRegistry(ctx context.Context, g *CorrelationGroup) bool {
	if c.registry == nil || len(g.MemberEvents) == 0 {
		return false
	}
	first := g.MemberEvents[0]
	port := 0
	if p, ok := first.Details["port"].(float64); ok {
		port = int(p)
	}
	manifestHash, _ := first.Details["manifest_hash"].(string)

	match, err := c.registry.Find(ctx, g.CompositeID, evidence.HashHostID(hostIdentifierOf(g)), port, manifestHash)
	if err != nil {
		metrics.RecordRegistryUnavailable()
		c.log.WithError(err).WithField("composite_id", g.CompositeID).Warn("registry lookup failed, treating as unmatched")
		return false
	}
	return match != nil
}

func (c *Correlator) publishOutcome(ctx context.Context, outcome DetectionOutcome) error {
	data, err := marshalOutcome(outcome)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "marshal detection outcome")
	}
	return c.broker.Publish(ctx, detectionsSubject, data)
}

func (c *Correlator) publishJudgeVerdict(ctx context.Context, g *CorrelationGroup, result judge.Result) {
	data, err := marshalJudgeVerdict(g, result)
	if err != nil {
		c.log.WithError(err).Warn("marshal judge verdict failed")
		return
	}
	if err := c.broker.Publish(ctx, judgeVerdictsSubject, data); err != nil {
		c.log.WithError(err).Warn("publish judge verdict failed")
	}
}

func hostIdentifierOf(g *CorrelationGroup) string {
	if len(g.MemberEvents) == 0 {
		return ""
	}
	return g.MemberEvents[0].HostIdentifier
}
