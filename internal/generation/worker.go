package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/llm"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/shared/metrics"
)

// worker runs one batch slot at a time. All fields are shared with the other
// workers of the pool; per-item state stays on the stack of execute.
type worker struct {
	backend        llm.Client
	budget         *Budget
	retry          RetryPolicy
	attemptTimeout time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
	now            func() time.Time
}

// execute drives one WorkItem to a terminal result. It never returns an
// error: exhausted retries, permanent failures and a passed deadline all end
// in a placeholder result so the batch stays complete.
func (w *worker) execute(ctx context.Context, item WorkItem) WorkResult {
	start := w.now()
	attempt := 0

	var lastErr error
	for {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		res, ok := w.reserve(ctx, llm.EstimateTokens(item.Request))
		if !ok {
			lastErr = ctx.Err()
			break
		}

		attempt++
		gen, err := w.callBackend(ctx, item.Request)
		if err == nil {
			res.Commit(gen.TotalTokens)
			elapsed := w.now().Sub(start)
			metrics.ObserveItemDurationMs(float64(elapsed.Milliseconds()))
			return WorkResult{
				Index:      item.Index,
				PostNumber: item.Request.PostNumber,
				Status:     StatusSuccess,
				Content:    gen.Content,
				Model:      gen.Model,
				TokensUsed: gen.TotalTokens,
				Attempts:   attempt,
				Duration:   elapsed,
			}
		}

		// A failed call still consumed a request slot; only the token
		// estimate is given back.
		res.Commit(0)
		lastErr = err

		retry, backoff := w.retry.ShouldRetry(attempt, err)
		if !retry {
			break
		}
		metrics.IncGenerationRetry()
		if err := w.sleep(ctx, backoff); err != nil {
			break
		}
	}

	elapsed := w.now().Sub(start)
	metrics.ObserveItemDurationMs(float64(elapsed.Milliseconds()))
	return placeholderResult(item, attempt, elapsed, lastErr)
}

// reserve blocks until the budget grants capacity or the batch deadline
// passes. Wait hints from a saturated window are slept out in full.
func (w *worker) reserve(ctx context.Context, estimatedTokens int) (*Reservation, bool) {
	for {
		if ctx.Err() != nil {
			return nil, false
		}
		res, wait := w.budget.TryReserve(estimatedTokens)
		if res != nil {
			return res, true
		}
		metrics.IncBudgetWait()
		if wait <= 0 {
			wait = 50 * time.Millisecond
		}
		if err := w.sleep(ctx, wait); err != nil {
			return nil, false
		}
	}
}

func (w *worker) callBackend(ctx context.Context, req llm.Request) (llm.Generation, error) {
	if w.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.attemptTimeout)
		defer cancel()
	}
	return w.backend.Generate(ctx, req)
}

func placeholderResult(item WorkItem, attempts int, elapsed time.Duration, cause error) WorkResult {
	r := WorkResult{
		Index:      item.Index,
		PostNumber: item.Request.PostNumber,
		Status:     StatusPlaceholder,
		Content:    placeholderContent(item.Request),
		Attempts:   attempts,
		Duration:   elapsed,
	}
	if cause != nil {
		r.ErrorKind = llm.KindOf(cause)
		r.Err = cause.Error()
	}
	return r
}

func placeholderContent(req llm.Request) string {
	topic := req.Topic
	if topic == "" {
		topic = "untitled"
	}
	return fmt.Sprintf("%s %s post %d: %s", PlaceholderMarker, req.Channel, req.PostNumber, topic)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
