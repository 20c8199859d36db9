package generation

import (
	"time"

	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/llm"
)

// WorkItem is one slot in a generation batch. Index is the zero-based batch
// position; the post number the slot targets travels in the request payload.
type WorkItem struct {
	Index   int
	Request llm.Request
}

// ResultStatus describes how a batch slot ended.
type ResultStatus string

const (
	StatusSuccess     ResultStatus = "success"
	StatusPlaceholder ResultStatus = "placeholder"
	StatusFailed      ResultStatus = "failed"
)

// PlaceholderMarker prefixes synthesized content so review tooling and the
// quality gate can find slots that still need regeneration.
const PlaceholderMarker = "[NEEDS REGENERATION]"

// WorkResult is the outcome for a single batch slot. Every slot gets exactly
// one result regardless of how its attempts ended.
type WorkResult struct {
	Index      int
	PostNumber int
	Status     ResultStatus
	Content    string
	Model      string
	TokensUsed int
	Attempts   int
	ErrorKind  string
	Err        string
	Duration   time.Duration
}

// BatchResult aggregates a whole batch run. Partial failure is not an error:
// callers inspect the counts.
type BatchResult struct {
	Results      []WorkResult
	Succeeded    int
	Placeholders int
	Failed       int
	Elapsed      time.Duration
}
