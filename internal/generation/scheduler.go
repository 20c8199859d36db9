package generation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/llm"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/shared/metrics"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/shared/telemetry"
)

// DefaultConcurrency is the pool size used when the caller passes zero.
const DefaultConcurrency = 5

// Scheduler turns a batch of N work items into exactly N results under a
// concurrency cap, the shared rate budget and the retry policy. One
// scheduler is built in bootstrap and shared by the API (dev-mode inline
// processing) and the queue worker.
type Scheduler struct {
	backend        llm.Client
	budget         *Budget
	retry          RetryPolicy
	attemptTimeout time.Duration

	// Both are swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewScheduler wires a scheduler. backend and budget must be non-nil; the
// retry policy's zero fields fall back to defaults.
func NewScheduler(backend llm.Client, budget *Budget, retry RetryPolicy, attemptTimeout time.Duration) (*Scheduler, error) {
	if backend == nil {
		return nil, fmt.Errorf("generation: backend is required")
	}
	if budget == nil {
		return nil, fmt.Errorf("generation: budget is required")
	}
	return &Scheduler{
		backend:        backend,
		budget:         budget,
		retry:          retry,
		attemptTimeout: attemptTimeout,
		sleep:          sleepCtx,
		now:            time.Now,
	}, nil
}

// RunBatch executes items under at most concurrency simultaneous backend
// calls, finishing by deadline. The returned results slice has exactly
// len(items) entries, slot i holding the result for the item with Index i,
// regardless of completion order. Items that could not produce content by
// the deadline, or whose retries ran out, come back as placeholders; a batch
// with placeholders is still a successful call. The only errors are invalid
// arguments.
//
// concurrency == 1 runs the batch fully sequentially through the same path;
// a zero deadline means no overall limit beyond ctx.
func (s *Scheduler) RunBatch(ctx context.Context, items []WorkItem, concurrency int, deadline time.Time) (BatchResult, error) {
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	if concurrency < 0 {
		return BatchResult{}, fmt.Errorf("generation: concurrency must be positive, got %d", concurrency)
	}
	if err := validateIndexes(items); err != nil {
		return BatchResult{}, err
	}

	start := s.now()
	if len(items) == 0 {
		return BatchResult{Results: []WorkResult{}}, nil
	}

	if !deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	metrics.IncBatchStarted()
	telemetry.Info("generation.batch.started", map[string]any{
		"items":       len(items),
		"concurrency": concurrency,
	})

	results := make([]WorkResult, len(items))
	queue := make(chan WorkItem)

	if concurrency > len(items) {
		concurrency = len(items)
	}

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := &worker{
				backend:        s.backend,
				budget:         s.budget,
				retry:          s.retry,
				attemptTimeout: s.attemptTimeout,
				sleep:          s.sleep,
				now:            s.now,
			}
			for item := range queue {
				results[item.Index] = s.runItem(ctx, w, item)
			}
		}()
	}

	for _, item := range items {
		queue <- item
	}
	close(queue)
	wg.Wait()

	br := summarize(results, s.now().Sub(start))

	metrics.IncBatchCompleted()
	metrics.ObserveBatchDurationMs(float64(br.Elapsed.Milliseconds()))
	telemetry.Info("generation.batch.completed", map[string]any{
		"items":        len(items),
		"succeeded":    br.Succeeded,
		"placeholders": br.Placeholders,
		"failed":       br.Failed,
		"elapsed_ms":   br.Elapsed.Milliseconds(),
	})
	return br, nil
}

// runItem shields the pool from panics inside the backend adapter: a
// panicking slot becomes a Failed result at its index instead of taking the
// whole batch down.
func (s *Scheduler) runItem(ctx context.Context, w *worker, item WorkItem) (res WorkResult) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.Error("generation.item.panic", map[string]any{
				"index": item.Index,
				"post":  item.Request.PostNumber,
				"panic": fmt.Sprint(r),
			})
			res = WorkResult{
				Index:      item.Index,
				PostNumber: item.Request.PostNumber,
				Status:     StatusFailed,
				ErrorKind:  "panic",
				Err:        fmt.Sprintf("generation panicked: %v", r),
			}
		}
	}()
	return w.execute(ctx, item)
}

func summarize(results []WorkResult, elapsed time.Duration) BatchResult {
	br := BatchResult{Results: results, Elapsed: elapsed}
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			br.Succeeded++
			metrics.IncItemSucceeded()
		case StatusPlaceholder:
			br.Placeholders++
			metrics.IncItemPlaceholder()
		default:
			br.Failed++
			metrics.IncItemFailed()
		}
	}
	return br
}

// validateIndexes requires item indexes to be exactly 0..N-1 in any order so
// every result has one slot and every slot one result.
func validateIndexes(items []WorkItem) error {
	seen := make([]bool, len(items))
	for _, item := range items {
		if item.Index < 0 || item.Index >= len(items) {
			return fmt.Errorf("generation: item index %d out of range for batch of %d", item.Index, len(items))
		}
		if seen[item.Index] {
			return fmt.Errorf("generation: duplicate item index %d", item.Index)
		}
		seen[item.Index] = true
	}
	return nil
}
