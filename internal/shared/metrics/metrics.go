package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	batchStartedTotal   atomic.Uint64
	batchCompletedTotal atomic.Uint64

	itemSucceededTotal   atomic.Uint64
	itemPlaceholderTotal atomic.Uint64
	itemFailedTotal      atomic.Uint64

	revisionRequestedTotal atomic.Uint64
	revisionBlockedTotal   atomic.Uint64
	upsellOfferedTotal     atomic.Uint64
	upsellAcceptedTotal    atomic.Uint64

	budgetWaitTotal      atomic.Uint64
	generationRetryTotal atomic.Uint64

	jobsReceivedTotal  atomic.Uint64
	jobsCompletedTotal atomic.Uint64
	jobsFailedTotal    atomic.Uint64
	jobsDroppedTotal   atomic.Uint64

	batchDuration = newHistogram([]float64{500, 1000, 2500, 5000, 10000, 30000, 60000, 120000, 300000})
	itemDuration  = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000})
)

// IncBatchStarted increments the batch started counter.
func IncBatchStarted() {
	batchStartedTotal.Add(1)
}

// IncBatchCompleted increments the batch completed counter.
func IncBatchCompleted() {
	batchCompletedTotal.Add(1)
}

// IncItemSucceeded increments the per-item success counter.
func IncItemSucceeded() {
	itemSucceededTotal.Add(1)
}

// IncItemPlaceholder increments the per-item placeholder counter.
func IncItemPlaceholder() {
	itemPlaceholderTotal.Add(1)
}

// IncItemFailed increments the per-item failure counter.
func IncItemFailed() {
	itemFailedTotal.Add(1)
}

// IncRevisionRequested increments the revision requested counter.
func IncRevisionRequested() {
	revisionRequestedTotal.Add(1)
}

// IncRevisionBlocked increments the revision blocked counter.
func IncRevisionBlocked() {
	revisionBlockedTotal.Add(1)
}

// IncUpsellOffered increments the upsell offered counter.
func IncUpsellOffered() {
	upsellOfferedTotal.Add(1)
}

// IncUpsellAccepted increments the upsell accepted counter.
func IncUpsellAccepted() {
	upsellAcceptedTotal.Add(1)
}

// IncBudgetWait increments the rate budget wait counter.
func IncBudgetWait() {
	budgetWaitTotal.Add(1)
}

// IncGenerationRetry increments the generation retry counter.
func IncGenerationRetry() {
	generationRetryTotal.Add(1)
}

// IncJobReceived increments the worker job received counter.
func IncJobReceived() {
	jobsReceivedTotal.Add(1)
}

// IncJobCompleted increments the worker job completed counter.
func IncJobCompleted() {
	jobsCompletedTotal.Add(1)
}

// IncJobFailed increments the worker job failed counter.
func IncJobFailed() {
	jobsFailedTotal.Add(1)
}

// IncJobDropped increments the counter of jobs deleted as unprocessable.
func IncJobDropped() {
	jobsDroppedTotal.Add(1)
}

// ObserveBatchDurationMs records a whole-batch duration in milliseconds.
func ObserveBatchDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	batchDuration.Observe(value)
}

// ObserveItemDurationMs records a single item duration in milliseconds.
func ObserveItemDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	itemDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "generation_batch_started_total", "Total generation batches started", batchStartedTotal.Load())
	writeCounter(&buf, "generation_batch_completed_total", "Total generation batches completed", batchCompletedTotal.Load())
	writeCounter(&buf, "generation_item_succeeded_total", "Total batch items generated successfully", itemSucceededTotal.Load())
	writeCounter(&buf, "generation_item_placeholder_total", "Total batch items that fell back to placeholders", itemPlaceholderTotal.Load())
	writeCounter(&buf, "generation_item_failed_total", "Total batch items that produced no content", itemFailedTotal.Load())
	writeCounter(&buf, "revision_requested_total", "Total revision requests accepted", revisionRequestedTotal.Load())
	writeCounter(&buf, "revision_blocked_total", "Total revision requests blocked by scope", revisionBlockedTotal.Load())
	writeCounter(&buf, "upsell_offered_total", "Total upsell offers surfaced", upsellOfferedTotal.Load())
	writeCounter(&buf, "upsell_accepted_total", "Total upsell offers accepted", upsellAcceptedTotal.Load())
	writeCounter(&buf, "rate_budget_wait_total", "Total waits imposed by the rate budget", budgetWaitTotal.Load())
	writeCounter(&buf, "generation_retry_total", "Total generation attempt retries", generationRetryTotal.Load())
	writeCounter(&buf, "worker_jobs_received_total", "Total queue jobs received by the worker", jobsReceivedTotal.Load())
	writeCounter(&buf, "worker_jobs_completed_total", "Total queue jobs completed", jobsCompletedTotal.Load())
	writeCounter(&buf, "worker_jobs_failed_total", "Total queue jobs that failed processing", jobsFailedTotal.Load())
	writeCounter(&buf, "worker_jobs_dropped_total", "Total queue jobs deleted as unprocessable", jobsDroppedTotal.Load())
	writeHistogram(&buf, "generation_batch_duration_ms", "Generation batch duration in milliseconds", batchDuration.Snapshot())
	writeHistogram(&buf, "generation_item_duration_ms", "Generation item duration in milliseconds", itemDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
