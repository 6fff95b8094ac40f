package rules

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mcpsentinel/sentinel-core/pkg/evidence"
	"gopkg.in/yaml.v3"
)

// Engine evaluates the rule corpus against evidence records and applies
// enrichment. A single Engine is shared by every worker in the ingest
// pool; reloads install a new immutable snapshot atomically so readers
// never observe a torn mix of old and new rules.
type Engine struct {
	snapshot atomic.Pointer[Corpus]
	lookup   *fieldLookup
	regexes  sync.Map // compiled regex cache, keyed by pattern string
}

// NewEngine builds an Engine with an empty corpus; call Load before
// Apply is meaningful.
func NewEngine() *Engine {
	e := &Engine{lookup: newFieldLookup()}
	e.snapshot.Store(&Corpus{})
	return e
}

// Load reads and parses a YAML rule corpus from path and installs it as
// the new active snapshot, atomically. A malformed corpus leaves the
// previous snapshot in effect and returns an error (fatal_config if this
// is the initial startup load).
func (e *Engine) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rule corpus %s: %w", path, err)
	}
	var corpus Corpus
	if err := yaml.Unmarshal(data, &corpus); err != nil {
		return fmt.Errorf("parse rule corpus %s: %w", path, err)
	}
	for i, r := range corpus.Rules {
		if r.ID == "" {
			return fmt.Errorf("rule corpus %s: rule at index %d missing id", path, i)
		}
	}
	e.snapshot.Store(&corpus)
	return nil
}

// RuleCount reports how many rules are active, mainly for lifecycle
// logging around a reload.
func (e *Engine) RuleCount() int {
	return len(e.snapshot.Load().Rules)
}

// Apply iterates the active rule corpus in declaration order against
// rec and returns the resulting EnrichedEvent. It always returns a
// value — no match means an empty MatchedRules slice and
// EnrichmentApplied=false, never an error.
func (e *Engine) Apply(rec evidence.EvidenceRecord) evidence.EnrichedEvent {
	enriched := evidence.EnrichedEvent{
		EvidenceRecord: rec,
		Enrichment:     make(map[string]any),
	}

	tree := e.buildTree(rec)
	corpus := e.snapshot.Load()

	for _, rule := range corpus.Rules {
		if e.ruleMatches(rule, tree) {
			enriched.MatchedRules = append(enriched.MatchedRules, evidence.MatchedRule{
				RuleID:   rule.ID,
				Name:     rule.Name,
				Severity: string(rule.Severity),
				Tags:     rule.Tags,
			})
			e.mergeEnrichment(&enriched, rule.Enrichment)
		}
	}

	enriched.EnrichmentApplied = len(enriched.MatchedRules) > 0
	return enriched
}

// mergeEnrichment shallow-merges a rule's enrichment map onto the
// event, refusing to overwrite the protected required fields and
// accumulating score_bonus across rules rather than overwriting it.
func (e *Engine) mergeEnrichment(enriched *evidence.EnrichedEvent, enrichment map[string]any) {
	for k, v := range enrichment {
		if evidence.IsProtectedField(k) {
			continue
		}
		if k == "score_bonus" {
			if n, ok := toInt(v); ok {
				enriched.ScoreBonus += n
			}
			continue
		}
		enriched.Enrichment[k] = v
	}
}

func (e *Engine) buildTree(rec evidence.EvidenceRecord) map[string]any {
	tree := map[string]any{
		"event_id":           rec.EventID,
		"source_kind":        string(rec.SourceKind),
		"source_label":       rec.SourceLabel,
		"ts":                 rec.Timestamp,
		"host_identifier":    rec.HostIdentifier,
		"evidence_type":      string(rec.EvidenceType),
		"score_contribution": rec.ScoreContribution,
	}
	if rec.Details != nil {
		tree["details"] = rec.Details.AsMap()
	}
	for k, v := range rec.Extra {
		if _, exists := tree[k]; !exists {
			tree[k] = v
		}
	}
	return tree
}

func (e *Engine) ruleMatches(rule Rule, tree map[string]any) bool {
	for _, cond := range rule.Conditions {
		if !e.evaluateCondition(cond, tree) {
			return false
		}
	}
	return true
}

func (e *Engine) evaluateCondition(cond Condition, tree map[string]any) bool {
	fieldValue, err := e.lookup.lookup(tree, cond.Field)
	if err != nil || fieldValue == nil {
		return false
	}

	switch cond.Operator {
	case OpEquals:
		return looseEqual(fieldValue, cond.Value)
	case OpNotEquals:
		return !looseEqual(fieldValue, cond.Value)
	case OpContains:
		needle := fmt.Sprint(cond.Value)
		return needle != "" && strings.Contains(fmt.Sprint(fieldValue), needle)
	case OpRegex:
		return e.matchRegex(fmt.Sprint(cond.Value), fmt.Sprint(fieldValue))
	case OpIn:
		return inSlice(fieldValue, cond.Value)
	case OpGT, OpLT, OpGTE, OpLTE:
		return compareNumeric(cond.Operator, fieldValue, cond.Value)
	default:
		return false
	}
}

func (e *Engine) matchRegex(pattern, value string) bool {
	compiled, ok := e.regexes.Load(pattern)
	if !ok {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		compiled, _ = e.regexes.LoadOrStore(pattern, re)
	}
	return compiled.(*regexp.Regexp).MatchString(value)
}

func looseEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func inSlice(needle, haystack any) bool {
	items, ok := haystack.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if looseEqual(needle, item) {
			return true
		}
	}
	return false
}

// compareNumeric fails false on type mismatch rather than raising, so
// one malformed field in a rule condition can't take down evaluation
// of the rest of the corpus.
func compareNumeric(op Operator, a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return false
	}
	switch op {
	case OpGT:
		return af > bf
	case OpLT:
		return af < bf
	case OpGTE:
		return af >= bf
	case OpLTE:
		return af <= bf
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}
