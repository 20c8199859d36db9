package revisions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/generation"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/llm"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/posts"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/projects"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/qa"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/queue"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/scope"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/shared/metrics"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/shared/storage/object"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/shared/telemetry"
)

// Service owns the revision lifecycle: quota-gated acceptance, dispatch to
// the queue (or a background goroutine in dev mode), and batch processing.
// Initial generation shares the processing path but skips scope entirely.
type Service struct {
	Repo      Repo
	Projects  projects.Repo
	Posts     posts.Repo
	Scope     *scope.Engine
	Scheduler *generation.Scheduler
	Gate      *qa.Gate
	Store     object.ObjectStore
	Queue     queue.Client

	Concurrency  int
	BatchTimeout time.Duration

	// Now is swapped in tests.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RequestInput is one operator revision request.
type RequestInput struct {
	ProjectID   string
	PostNumbers []int
	Feedback    string
}

// Request authorizes, records and dispatches one revision. A blocked quota
// is not an error: the zero Revision and the decision come back for the
// handler to turn into an upsell offer. The scope unit is released if the
// revision cannot be dispatched, so aborted requests never leak quota.
func (s *Service) Request(ctx context.Context, in RequestInput) (Revision, scope.Decision, error) {
	if len(in.PostNumbers) == 0 {
		return Revision{}, scope.Decision{}, fmt.Errorf("%w: post numbers are required", ErrValidation)
	}
	seen := make(map[int]bool, len(in.PostNumbers))
	for _, n := range in.PostNumbers {
		if n <= 0 {
			return Revision{}, scope.Decision{}, fmt.Errorf("%w: post number %d out of range", ErrValidation, n)
		}
		if seen[n] {
			return Revision{}, scope.Decision{}, fmt.Errorf("%w: duplicate post number %d", ErrValidation, n)
		}
		seen[n] = true
	}

	if _, err := s.Projects.GetByID(ctx, in.ProjectID); err != nil {
		return Revision{}, scope.Decision{}, err
	}
	// Validate targets before touching the quota so a bad request never
	// burns a revision unit.
	if _, err := s.Posts.GetByNumbers(ctx, in.ProjectID, in.PostNumbers); err != nil {
		if errors.Is(err, posts.ErrNotFound) {
			return Revision{}, scope.Decision{}, fmt.Errorf("%w: unknown post number", ErrValidation)
		}
		return Revision{}, scope.Decision{}, err
	}

	dec, err := s.Scope.Authorize(ctx, in.ProjectID)
	if err != nil {
		return Revision{}, scope.Decision{}, err
	}
	if !dec.Allowed {
		metrics.IncRevisionBlocked()
		if dec.OfferedNow {
			metrics.IncUpsellOffered()
		}
		return Revision{}, dec, nil
	}

	numbers := append([]int(nil), in.PostNumbers...)
	sort.Ints(numbers)
	rev := Revision{
		ID:            uuid.NewString(),
		ProjectID:     in.ProjectID,
		AttemptNumber: dec.AttemptNumber,
		Feedback:      in.Feedback,
		PostNumbers:   numbers,
		Status:        StatusPending,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.Repo.Create(ctx, rev); err != nil {
		if relErr := s.Scope.Release(ctx, in.ProjectID); relErr != nil {
			telemetry.Error("revision.release_failed", map[string]any{
				"project_id": in.ProjectID,
				"error":      relErr.Error(),
			})
		}
		return Revision{}, scope.Decision{}, err
	}

	msg := queue.Message{
		Kind:       queue.KindRevision,
		ProjectID:  in.ProjectID,
		RevisionID: rev.ID,
		RequestID:  uuid.NewString(),
		EnqueuedAt: s.now().UTC().Format(time.RFC3339),
		Version:    1,
	}
	if err := s.dispatch(ctx, msg); err != nil {
		finish := FinishUpdate{
			ID:          rev.ID,
			Status:      StatusFailed,
			ErrorCode:   ErrCodeEnqueueFailed,
			ErrorDetail: err.Error(),
			CompletedAt: s.now().UTC(),
		}
		if finErr := s.Repo.Finish(ctx, finish); finErr != nil {
			telemetry.Error("revision.finish_failed", map[string]any{"revision_id": rev.ID, "error": finErr.Error()})
		}
		if relErr := s.Scope.Release(ctx, in.ProjectID); relErr != nil {
			telemetry.Error("revision.release_failed", map[string]any{"project_id": in.ProjectID, "error": relErr.Error()})
		}
		return Revision{}, scope.Decision{}, fmt.Errorf("dispatch revision: %w", err)
	}

	metrics.IncRevisionRequested()
	telemetry.Info("revision.accepted", map[string]any{
		"revision_id": rev.ID,
		"project_id":  in.ProjectID,
		"attempt":     rev.AttemptNumber,
		"posts":       len(numbers),
	})
	return rev, dec, nil
}

// StartInitial dispatches the first full-plan generation batch. Not scope
// gated: the initial batch is part of the engagement, revisions are not.
func (s *Service) StartInitial(ctx context.Context, projectID string) (string, error) {
	if _, err := s.Projects.GetByID(ctx, projectID); err != nil {
		return "", err
	}
	if err := s.Projects.UpdateStatus(ctx, projectID, projects.StatusGenerating); err != nil {
		return "", err
	}

	msg := queue.Message{
		Kind:       queue.KindInitial,
		ProjectID:  projectID,
		RequestID:  uuid.NewString(),
		EnqueuedAt: s.now().UTC().Format(time.RFC3339),
		Version:    1,
	}
	if err := s.dispatch(ctx, msg); err != nil {
		return "", fmt.Errorf("dispatch initial batch: %w", err)
	}
	return msg.RequestID, nil
}

// Get returns a revision by id.
func (s *Service) Get(ctx context.Context, id string) (Revision, error) {
	return s.Repo.GetByID(ctx, id)
}

// ListByProject returns a project's revisions, newest first.
func (s *Service) ListByProject(ctx context.Context, projectID string) ([]Revision, error) {
	if _, err := s.Projects.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.Repo.ListByProject(ctx, projectID)
}

// dispatch enqueues when a queue is configured, otherwise processes in a
// background goroutine so dev mode works without SQS.
func (s *Service) dispatch(ctx context.Context, msg queue.Message) error {
	if s.Queue != nil {
		return s.Queue.Send(ctx, msg)
	}
	go func() {
		timeout := s.BatchTimeout
		if timeout <= 0 {
			timeout = 10 * time.Minute
		}
		bg, cancel := context.WithTimeout(context.Background(), timeout+time.Minute)
		defer cancel()
		if err := s.Process(bg, msg); err != nil {
			telemetry.Error("revision.inline_process_failed", map[string]any{
				"project_id":  msg.ProjectID,
				"revision_id": msg.RevisionID,
				"error":       err.Error(),
			})
		}
	}()
	return nil
}

// Process is the worker entry point for one job message.
func (s *Service) Process(ctx context.Context, msg queue.Message) error {
	switch msg.Kind {
	case queue.KindInitial:
		return s.processInitial(ctx, msg)
	case queue.KindRevision:
		return s.processRevision(ctx, msg)
	default:
		return fmt.Errorf("unknown job kind %q", msg.Kind)
	}
}

func (s *Service) processInitial(ctx context.Context, msg queue.Message) error {
	project, err := s.Projects.GetByID(ctx, msg.ProjectID)
	if err != nil {
		return err
	}
	targets, err := s.Posts.ListByProject(ctx, msg.ProjectID)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("project %s has no planned posts", msg.ProjectID)
	}

	br, findings, err := s.runBatch(ctx, project, targets, "")
	if err != nil {
		return err
	}
	if err := s.applyResults(ctx, project.ID, br, findings); err != nil {
		return err
	}
	if _, err := s.archive(ctx, project.ID, "initial-"+msg.RequestID, msg, br, findings); err != nil {
		telemetry.Error("batch.archive_failed", map[string]any{"project_id": project.ID, "error": err.Error()})
	}

	if err := s.Projects.UpdateStatus(ctx, project.ID, projects.StatusReady); err != nil {
		return err
	}
	return nil
}

func (s *Service) processRevision(ctx context.Context, msg queue.Message) error {
	rev, err := s.Repo.GetByID(ctx, msg.RevisionID)
	if err != nil {
		return err
	}
	// Redelivered messages for finished revisions are dropped; running ones
	// are retried in place (the first delivery may have died mid-batch).
	if rev.Status == StatusCompleted || rev.Status == StatusFailed {
		telemetry.Info("revision.already_finished", map[string]any{"revision_id": rev.ID, "status": rev.Status})
		return nil
	}

	project, err := s.Projects.GetByID(ctx, rev.ProjectID)
	if err != nil {
		return err
	}
	targets, err := s.Posts.GetByNumbers(ctx, rev.ProjectID, rev.PostNumbers)
	if err != nil {
		return err
	}

	if err := s.Repo.MarkRunning(ctx, rev.ID, s.now().UTC()); err != nil {
		return err
	}

	br, findings, err := s.runBatch(ctx, project, targets, rev.Feedback)
	if err != nil {
		return err
	}
	if err := s.applyResults(ctx, project.ID, br, findings); err != nil {
		return err
	}
	artifactKey, err := s.archive(ctx, project.ID, rev.ID, msg, br, findings)
	if err != nil {
		telemetry.Error("batch.archive_failed", map[string]any{"revision_id": rev.ID, "error": err.Error()})
		artifactKey = ""
	}

	finish := FinishUpdate{
		ID:           rev.ID,
		Status:       StatusCompleted,
		Succeeded:    br.Succeeded,
		Placeholders: br.Placeholders,
		Failed:       br.Failed,
		ArtifactKey:  artifactKey,
		CompletedAt:  s.now().UTC(),
	}
	if br.Succeeded == 0 {
		finish.Status = StatusFailed
		finish.ErrorCode = ErrCodeAllItemsLost
	}
	if err := s.Repo.Finish(ctx, finish); err != nil {
		return err
	}

	// The batch ran; the reserved unit is spent whether or not the content
	// turned out usable.
	if err := s.Scope.Commit(ctx, rev.ProjectID); err != nil {
		telemetry.Error("scope.commit_failed", map[string]any{"project_id": rev.ProjectID, "error": err.Error()})
	}

	telemetry.Info("revision.finished", map[string]any{
		"revision_id":  rev.ID,
		"status":       finish.Status,
		"succeeded":    br.Succeeded,
		"placeholders": br.Placeholders,
		"failed":       br.Failed,
	})
	return nil
}

// runBatch turns the target posts into work items, runs the scheduler and
// gates the output. Results are indexed by position in targets.
func (s *Service) runBatch(ctx context.Context, project projects.Project, targets []posts.Post, feedback string) (generation.BatchResult, []qa.Finding, error) {
	items := make([]generation.WorkItem, len(targets))
	gateItems := make([]qa.Item, len(targets))
	for i, p := range targets {
		items[i] = generation.WorkItem{
			Index: i,
			Request: llm.Request{
				ProjectID:  project.ID,
				PostNumber: p.Number,
				Channel:    p.Channel,
				Topic:      p.Topic,
				TemplateID: p.TemplateID,
				Brief:      project.BriefSummary,
				Feedback:   feedback,
				Previous:   p.Content,
			},
		}
		gateItems[i] = qa.Item{PostNumber: p.Number, Channel: p.Channel}
	}

	deadline := time.Time{}
	if s.BatchTimeout > 0 {
		deadline = s.now().Add(s.BatchTimeout)
	}
	br, err := s.Scheduler.RunBatch(ctx, items, s.Concurrency, deadline)
	if err != nil {
		return generation.BatchResult{}, nil, err
	}
	return br, s.Gate.Evaluate(gateItems, br.Results), nil
}

// applyResults writes each slot's outcome onto its post. Placeholders and
// failures land as placeholder posts so reviewers see every slot; gate
// failures on real content mark the post flagged with the reasons.
func (s *Service) applyResults(ctx context.Context, projectID string, br generation.BatchResult, findings []qa.Finding) error {
	now := s.now().UTC()
	for i, r := range br.Results {
		update := posts.ContentUpdate{
			ProjectID:   projectID,
			Number:      r.PostNumber,
			Content:     r.Content,
			TokensUsed:  r.TokensUsed,
			GeneratedAt: now,
		}
		switch {
		case r.Status != generation.StatusSuccess:
			update.Status = posts.StatusPlaceholder
			update.FlagReasons = findings[i].Reasons
		case !findings[i].Passed:
			update.Status = posts.StatusFlagged
			update.FlagReasons = findings[i].Reasons
		default:
			update.Status = posts.StatusGenerated
		}
		if err := s.Posts.ApplyContent(ctx, update); err != nil {
			return fmt.Errorf("apply result for post %d: %w", r.PostNumber, err)
		}
	}
	return nil
}

// batchArtifact is the JSON handoff archived for the deliverable assembler.
type batchArtifact struct {
	ProjectID    string                  `json:"projectId"`
	RevisionID   string                  `json:"revisionId,omitempty"`
	Kind         string                  `json:"kind"`
	RequestID    string                  `json:"requestId"`
	Succeeded    int                     `json:"succeeded"`
	Placeholders int                     `json:"placeholders"`
	Failed       int                     `json:"failed"`
	ElapsedMs    int64                   `json:"elapsedMs"`
	Results      []generation.WorkResult `json:"results"`
	Findings     []qa.Finding            `json:"findings"`
	ArchivedAt   time.Time               `json:"archivedAt"`
}

func (s *Service) archive(ctx context.Context, projectID, runID string, msg queue.Message, br generation.BatchResult, findings []qa.Finding) (string, error) {
	if s.Store == nil {
		return "", nil
	}
	artifact := batchArtifact{
		ProjectID:    projectID,
		RevisionID:   msg.RevisionID,
		Kind:         msg.Kind,
		RequestID:    msg.RequestID,
		Succeeded:    br.Succeeded,
		Placeholders: br.Placeholders,
		Failed:       br.Failed,
		ElapsedMs:    br.Elapsed.Milliseconds(),
		Results:      br.Results,
		Findings:     findings,
		ArchivedAt:   s.now().UTC(),
	}
	payload, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode batch artifact: %w", err)
	}

	key := fmt.Sprintf("projects/%s/batches/%s.json", projectID, runID)
	if _, err := s.Store.Put(ctx, key, "application/json", bytes.NewReader(payload)); err != nil {
		return "", fmt.Errorf("store batch artifact: %w", err)
	}
	return key, nil
}
