package judge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeProvider struct {
	calls       int32
	inflight    int32
	maxInflight int32
	delay       time.Duration
	resp        string
	err         error
}

func (f *fakeProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	n := atomic.AddInt32(&f.inflight, 1)
	defer atomic.AddInt32(&f.inflight, -1)
	for {
		m := atomic.LoadInt32(&f.maxInflight)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxInflight, m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return "", f.err
	}
	return f.resp, nil
}

type memCache struct {
	mu sync.Mutex
	m  map[string]Result
}

func newMemCache() *memCache { return &memCache{m: make(map[string]Result)} }

func (c *memCache) Get(ctx context.Context, key string) (Result, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.m[key]
	return r, ok, nil
}

func (c *memCache) Set(ctx context.Context, key string, result Result, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = result
	return nil
}

func TestWorker_Classify_CachesResult(t *testing.T) {
	p := &fakeProvider{resp: "CLASSIFICATION: authorized\nCONFIDENCE: 90\nREASONING: known tool"}
	cache := newMemCache()
	w := NewWorker(p, cache, time.Hour, time.Second)

	req := Request{HostIDHash: "h1", Evidence: []EvidenceItem{{Type: "file"}}}

	first := w.Classify(context.Background(), req)
	if first.Classification != VerdictAuthorized {
		t.Fatalf("expected authorized, got %s", first.Classification)
	}

	second := w.Classify(context.Background(), req)
	if !second.CacheHit {
		t.Fatal("expected second identical request to be served from cache")
	}
	if atomic.LoadInt32(&p.calls) != 1 {
		t.Fatalf("expected exactly one provider call, got %d", p.calls)
	}
}

func TestWorker_Classify_DeadlineFallsBack(t *testing.T) {
	p := &fakeProvider{delay: 200 * time.Millisecond, resp: "CLASSIFICATION: unauthorized\nCONFIDENCE: 99"}
	w := NewWorker(p, nil, time.Hour, 20*time.Millisecond)

	req := Request{HostIDHash: "slow"}
	result := w.Classify(context.Background(), req)

	if result.Classification != VerdictSuspect || result.Confidence != 0 {
		t.Fatalf("expected fallback verdict on timeout, got %+v", result)
	}
}

func TestWorker_Classify_ProviderErrorFallsBack(t *testing.T) {
	p := &fakeProvider{err: errors.New("provider unreachable")}
	w := NewWorker(p, nil, time.Hour, time.Second)

	result := w.Classify(context.Background(), Request{HostIDHash: "err"})
	if result.Classification != VerdictSuspect {
		t.Fatalf("expected fallback verdict on provider error, got %+v", result)
	}
}

func TestWorker_BatchClassify_RespectsParallelismAndReturnsAll(t *testing.T) {
	p := &fakeProvider{delay: 10 * time.Millisecond, resp: "CLASSIFICATION: suspect\nCONFIDENCE: 40"}
	w := NewWorker(p, newMemCache(), time.Hour, time.Second)

	reqs := make([]Request, 5)
	for i := range reqs {
		reqs[i] = Request{HostIDHash: string(rune('a' + i))}
	}

	results := w.BatchClassify(context.Background(), reqs, 2)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Classification != VerdictSuspect {
			t.Fatalf("result %d: expected suspect, got %s", i, r.Classification)
		}
	}
	if got := atomic.LoadInt32(&p.maxInflight); got > 2 {
		t.Fatalf("expected at most 2 concurrent provider calls, got %d", got)
	}
}
