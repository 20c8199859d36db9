package projects

import "context"

// Repo provides access to project records.
type Repo interface {
	Create(ctx context.Context, p Project) error
	GetByID(ctx context.Context, id string) (Project, error)
	UpdateStatus(ctx context.Context, id, status string) error
}
