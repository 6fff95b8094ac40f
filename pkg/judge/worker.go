package judge

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mcpsentinel/sentinel-core/pkg/judge/provider"
	"github.com/mcpsentinel/sentinel-core/pkg/metrics"
)

// Worker classifies detections via an LLM provider, behind a cache and
// a singleflight group so concurrent requests for the same evidence
// collapse into one provider call, and a hard deadline so a slow
// provider never stalls the correlator beyond the classification
// budget.
type Worker struct {
	provider provider.Provider
	cache    Cache
	cacheTTL time.Duration
	deadline time.Duration
	group    singleflight.Group
}

func NewWorker(p provider.Provider, cache Cache, cacheTTL, deadline time.Duration) *Worker {
	return &Worker{provider: p, cache: cache, cacheTTL: cacheTTL, deadline: deadline}
}

// Classify returns a cached result if present, otherwise invokes the
// provider (coalescing concurrent identical requests) subject to the
// hard deadline. A deadline breach returns FallbackResult rather than
// an error — the correlator always gets a usable verdict.
func (w *Worker) Classify(ctx context.Context, req Request) Result {
	key := req.CacheKey()

	if w.cache != nil {
		if cached, hit, err := w.cache.Get(ctx, key); err == nil && hit {
			metrics.RecordCacheHit()
			cached.CacheHit = true
			cached.InferenceTimeMS = 0
			return cached
		}
		metrics.RecordCacheMiss()
	}

	deadlineCtx, cancel := context.WithTimeout(ctx, w.deadline)
	defer cancel()

	type outcome struct {
		result Result
		err    error
	}
	resultCh := make(chan outcome, 1)

	go func() {
		v, err, _ := w.group.Do(key, func() (any, error) {
			start := time.Now()
			raw, err := w.provider.Complete(context.Background(), SystemPrompt, BuildPrompt(req))
			if err != nil {
				return Result{}, err
			}
			result := ParseResponse(raw)
			result.InferenceTimeMS = time.Since(start).Milliseconds()
			if w.cache != nil {
				_ = w.cache.Set(context.Background(), key, result, w.cacheTTL)
			}
			return result, nil
		})
		if err != nil {
			resultCh <- outcome{err: err}
			return
		}
		resultCh <- outcome{result: v.(Result)}
	}()

	select {
	case o := <-resultCh:
		if o.err != nil {
			return FallbackResult()
		}
		return o.result
	case <-deadlineCtx.Done():
		metrics.RecordJudgeTimeout()
		return FallbackResult()
	}
}

// BatchClassify classifies every request with up to maxParallel
// concurrent in-flight calls. The original classifier processes
// batches sequentially despite accepting a max_parallel argument; this
// worker honors the parameter for real, since the pipeline can only
// meet its per-group latency budget under load if independent
// detections are judged concurrently.
func (w *Worker) BatchClassify(ctx context.Context, reqs []Request, maxParallel int) []Result {
	if maxParallel < 1 {
		maxParallel = 1
	}
	results := make([]Result, len(reqs))

	sem := make(chan struct{}, maxParallel)
	var wg sync.WaitGroup
	for i, req := range reqs {
		i, req := i, req
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = w.Classify(ctx, req)
		}()
	}
	wg.Wait()
	return results
}
