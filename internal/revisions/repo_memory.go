package revisions

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores revisions in memory for dev mode and tests.
type MemoryRepo struct {
	mu   sync.RWMutex
	rows map[string]Revision
}

// NewMemoryRepo constructs an empty in-memory repo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[string]Revision)}
}

func (r *MemoryRepo) Create(ctx context.Context, rev Revision) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[rev.ID] = rev
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Revision, error) {
	if err := ctx.Err(); err != nil {
		return Revision{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rev, ok := r.rows[id]
	if !ok {
		return Revision{}, ErrNotFound
	}
	return rev, nil
}

func (r *MemoryRepo) ListByProject(ctx context.Context, projectID string) ([]Revision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Revision
	for _, rev := range r.rows {
		if rev.ProjectID == projectID {
			out = append(out, rev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].AttemptNumber > out[j].AttemptNumber
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepo) MarkRunning(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rev, ok := r.rows[id]
	if !ok {
		return ErrNotFound
	}
	rev.Status = StatusRunning
	started := at
	rev.StartedAt = &started
	r.rows[id] = rev
	return nil
}

func (r *MemoryRepo) Finish(ctx context.Context, update FinishUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rev, ok := r.rows[update.ID]
	if !ok {
		return ErrNotFound
	}
	rev.Status = update.Status
	rev.Succeeded = update.Succeeded
	rev.Placeholders = update.Placeholders
	rev.Failed = update.Failed
	rev.ErrorCode = update.ErrorCode
	rev.ErrorDetail = update.ErrorDetail
	rev.ArtifactKey = update.ArtifactKey
	completed := update.CompletedAt
	rev.CompletedAt = &completed
	r.rows[update.ID] = rev
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
