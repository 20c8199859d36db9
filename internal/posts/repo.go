package posts

import (
	"context"
	"errors"
)

// ErrNotFound indicates a post does not exist.
var ErrNotFound = errors.New("post not found")

// Repo provides access to planned posts.
type Repo interface {
	CreateBatch(ctx context.Context, items []Post) error
	ListByProject(ctx context.Context, projectID string) ([]Post, error)
	GetByNumbers(ctx context.Context, projectID string, numbers []int) ([]Post, error)
	ApplyContent(ctx context.Context, update ContentUpdate) error
}
