package projects

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/posts"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/scope"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/shared/telemetry"
)

// Service creates and reads projects. Creating a project also creates its
// scope row and its planned posts, so every project is immediately eligible
// for generation and quota-gated revisions.
type Service struct {
	Repo                    Repo
	Posts                   posts.Repo
	Scope                   *scope.Engine
	DefaultAllowedRevisions int
}

// CreateInput is the payload for a new project.
type CreateInput struct {
	ClientName   string
	BriefSummary string
	Plan         []PlanItem
}

// Create validates the plan and persists project, posts and scope.
func (s *Service) Create(ctx context.Context, in CreateInput) (Project, []posts.Post, error) {
	if strings.TrimSpace(in.ClientName) == "" {
		return Project{}, nil, fmt.Errorf("%w: client name is required", ErrValidation)
	}
	if len(in.Plan) == 0 {
		return Project{}, nil, fmt.Errorf("%w: content plan is required", ErrValidation)
	}
	for i, item := range in.Plan {
		if strings.TrimSpace(item.Channel) == "" || strings.TrimSpace(item.Topic) == "" {
			return Project{}, nil, fmt.Errorf("%w: plan item %d needs channel and topic", ErrValidation, i+1)
		}
	}

	now := time.Now().UTC()
	p := Project{
		ID:           uuid.NewString(),
		ClientName:   strings.TrimSpace(in.ClientName),
		BriefSummary: strings.TrimSpace(in.BriefSummary),
		Status:       StatusDraft,
		PostCount:    len(in.Plan),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	planned := make([]posts.Post, len(in.Plan))
	for i, item := range in.Plan {
		planned[i] = posts.Post{
			ID:         uuid.NewString(),
			ProjectID:  p.ID,
			Number:     i + 1,
			Channel:    strings.ToLower(strings.TrimSpace(item.Channel)),
			Topic:      strings.TrimSpace(item.Topic),
			TemplateID: strings.TrimSpace(item.TemplateID),
			Status:     posts.StatusPlanned,
			UpdatedAt:  now,
		}
	}

	if err := s.Repo.Create(ctx, p); err != nil {
		return Project{}, nil, err
	}
	if err := s.Posts.CreateBatch(ctx, planned); err != nil {
		return Project{}, nil, err
	}
	allowed := s.DefaultAllowedRevisions
	if allowed <= 0 {
		allowed = 5
	}
	if err := s.Scope.Create(ctx, p.ID, allowed); err != nil {
		return Project{}, nil, err
	}

	telemetry.Info("project.created", map[string]any{
		"project_id": p.ID,
		"posts":      p.PostCount,
	})
	return p, planned, nil
}

// Get returns a project by id.
func (s *Service) Get(ctx context.Context, id string) (Project, error) {
	return s.Repo.GetByID(ctx, id)
}

// ListPosts returns the project's posts in plan order.
func (s *Service) ListPosts(ctx context.Context, projectID string) ([]posts.Post, error) {
	if _, err := s.Repo.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.Posts.ListByProject(ctx, projectID)
}
