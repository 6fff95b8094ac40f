package rules

import (
	"fmt"
	"strings"
	"sync"

	"github.com/itchyny/gojq"
)

// fieldLookup compiles and caches gojq queries for dotted field paths,
// so the rule engine's condition evaluator never uses reflection over
// Go struct fields — it walks the same untyped tree a JSON document
// would produce, per the "small interpreter... rather than reflection"
// design note.
type fieldLookup struct {
	mu    sync.RWMutex
	cache map[string]*gojq.Code
}

func newFieldLookup() *fieldLookup {
	return &fieldLookup{cache: make(map[string]*gojq.Code)}
}

// lookup evaluates dottedPath (e.g. "details.dest_port") against tree
// and returns the first value, or nil if any intermediate node is
// absent. An absent node makes the condition false, not an error — a
// rule referencing an optional field must not break on records that
// never populate it.
func (l *fieldLookup) lookup(tree map[string]any, dottedPath string) (any, error) {
	code, err := l.compile(dottedPath)
	if err != nil {
		return nil, err
	}

	iter := code.Run(tree)
	v, ok := iter.Next()
	if !ok {
		return nil, nil
	}
	if err, ok := v.(error); ok {
		// gojq reports a missing key on a non-object as an error in some
		// query shapes; treat that the same as "absent" rather than
		// propagating it, matching spec's "returns nil for absent
		// intermediate nodes" contract.
		_ = err
		return nil, nil
	}
	return v, nil
}

func (l *fieldLookup) compile(dottedPath string) (*gojq.Code, error) {
	l.mu.RLock()
	code, ok := l.cache[dottedPath]
	l.mu.RUnlock()
	if ok {
		return code, nil
	}

	var query strings.Builder
	for _, segment := range strings.Split(dottedPath, ".") {
		query.WriteString(".")
		query.WriteString(segment)
		query.WriteString("?")
	}
	parsed, err := gojq.Parse(query.String())
	if err != nil {
		return nil, fmt.Errorf("invalid field path %q: %w", dottedPath, err)
	}
	compiled, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("cannot compile field path %q: %w", dottedPath, err)
	}

	l.mu.Lock()
	l.cache[dottedPath] = compiled
	l.mu.Unlock()
	return compiled, nil
}
