package posts

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores posts in memory for dev mode and tests.
type MemoryRepo struct {
	mu   sync.RWMutex
	rows map[string]map[int]Post // project id -> number -> post
}

// NewMemoryRepo constructs an empty in-memory repo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[string]map[int]Post)}
}

func (r *MemoryRepo) CreateBatch(ctx context.Context, items []Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range items {
		byNumber, ok := r.rows[p.ProjectID]
		if !ok {
			byNumber = make(map[int]Post)
			r.rows[p.ProjectID] = byNumber
		}
		byNumber[p.Number] = p
	}
	return nil
}

func (r *MemoryRepo) ListByProject(ctx context.Context, projectID string) ([]Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	byNumber := r.rows[projectID]
	out := make([]Post, 0, len(byNumber))
	for _, p := range byNumber {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *MemoryRepo) GetByNumbers(ctx context.Context, projectID string, numbers []int) ([]Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	byNumber := r.rows[projectID]
	out := make([]Post, 0, len(numbers))
	for _, n := range numbers {
		p, ok := byNumber[n]
		if !ok {
			return nil, ErrNotFound
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *MemoryRepo) ApplyContent(ctx context.Context, update ContentUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	byNumber := r.rows[update.ProjectID]
	p, ok := byNumber[update.Number]
	if !ok {
		return ErrNotFound
	}
	p.Content = update.Content
	p.Status = update.Status
	p.FlagReasons = update.FlagReasons
	p.TokensUsed = update.TokensUsed
	generatedAt := update.GeneratedAt
	p.GeneratedAt = &generatedAt
	p.UpdatedAt = time.Now().UTC()
	byNumber[update.Number] = p
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
