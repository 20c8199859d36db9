package revisions

import (
	"errors"
	"time"
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Failure codes persisted on failed revisions.
const (
	ErrCodeEnqueueFailed = "enqueue_failed"
	ErrCodeAllItemsLost  = "all_items_failed"
)

// ErrNotFound indicates a revision does not exist.
var ErrNotFound = errors.New("revision not found")

// ErrValidation marks rejected revision input; handlers map it to a 400.
var ErrValidation = errors.New("invalid revision request")

// Revision is one accepted round of regeneration for a subset of a
// project's posts. AttemptNumber is the 1-based ordinal handed out by the
// scope engine at authorization.
type Revision struct {
	ID            string     `json:"id"`
	ProjectID     string     `json:"projectId"`
	AttemptNumber int        `json:"attemptNumber"`
	Feedback      string     `json:"feedback,omitempty"`
	PostNumbers   []int      `json:"postNumbers"`
	Status        string     `json:"status"`
	Succeeded     int        `json:"succeeded"`
	Placeholders  int        `json:"placeholders"`
	Failed        int        `json:"failed"`
	ErrorCode     string     `json:"errorCode,omitempty"`
	ErrorDetail   string     `json:"errorDetail,omitempty"`
	ArtifactKey   string     `json:"artifactKey,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// FinishUpdate carries a revision's terminal state.
type FinishUpdate struct {
	ID           string
	Status       string
	Succeeded    int
	Placeholders int
	Failed       int
	ErrorCode    string
	ErrorDetail  string
	ArtifactKey  string
	CompletedAt  time.Time
}
