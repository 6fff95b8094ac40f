package correlator

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

// verdictPolicy is the embedded Rego module that maps a final score to
// a classification. It keeps the verdict thresholds together in one
// Rego module rather than an inline Go if/else chain; the module is a
// constant compiled into the binary, so changing a threshold means
// rebuilding it.
const verdictPolicy = `
package sentinel.verdict

default classification = "authorized"

classification = "unauthorized" if {
	input.score >= 9
}

classification = "suspect" if {
	input.score >= 5
	input.score <= 8
}
`

// PolicyEvaluator evaluates the verdict-threshold policy against a
// final score. A prepared query is compiled once and reused for every
// correlation-group close.
type PolicyEvaluator struct {
	query rego.PreparedEvalQuery
}

func NewPolicyEvaluator(ctx context.Context) (*PolicyEvaluator, error) {
	query, err := rego.New(
		rego.Query("data.sentinel.verdict.classification"),
		rego.Module("verdict.rego", verdictPolicy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare verdict policy: %w", err)
	}
	return &PolicyEvaluator{query: query}, nil
}

// Classify returns the verdict for score per the compiled policy.
func (p *PolicyEvaluator) Classify(ctx context.Context, score int) (string, error) {
	results, err := p.query.Eval(ctx, rego.EvalInput(map[string]any{"score": score}))
	if err != nil {
		return "", fmt.Errorf("evaluate verdict policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return "", fmt.Errorf("verdict policy produced no result for score %d", score)
	}
	classification, ok := results[0].Expressions[0].Value.(string)
	if !ok {
		return "", fmt.Errorf("verdict policy returned a non-string classification")
	}
	return classification, nil
}
