package revisions

import (
	"context"
	"time"
)

// Repo provides access to revision records.
type Repo interface {
	Create(ctx context.Context, rev Revision) error
	GetByID(ctx context.Context, id string) (Revision, error)
	ListByProject(ctx context.Context, projectID string) ([]Revision, error)
	MarkRunning(ctx context.Context, id string, at time.Time) error
	Finish(ctx context.Context, update FinishUpdate) error
}
