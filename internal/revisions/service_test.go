package revisions

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/generation"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/llm"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/posts"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/projects"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/qa"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/queue"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/scope"
)

type captureQueue struct {
	mu   sync.Mutex
	sent []queue.Message
	fail error
}

func (q *captureQueue) Send(ctx context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fail != nil {
		return q.fail
	}
	q.sent = append(q.sent, msg)
	return nil
}

func (q *captureQueue) last(t *testing.T) queue.Message {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.sent) == 0 {
		t.Fatal("no message enqueued")
	}
	return q.sent[len(q.sent)-1]
}

type memObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *memObjectStore) Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[key] = data
	return int64(len(data)), nil
}

func (s *memObjectStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type fixture struct {
	svc     *Service
	queue   *captureQueue
	store   *memObjectStore
	project projects.Project
}

func newFixture(t *testing.T, backend llm.Client, allowedRevisions int) *fixture {
	t.Helper()

	projectRepo := projects.NewMemoryRepo()
	postRepo := posts.NewMemoryRepo()
	engine := scope.NewEngine(scope.NewMemoryStore())

	project := projects.Project{
		ID:           "proj-1",
		ClientName:   "Acme Outdoors",
		BriefSummary: "Family-run outfitter launching a spring campaign for hiking gear.",
		Status:       projects.StatusDraft,
		PostCount:    3,
		CreatedAt:    time.Now().UTC(),
	}
	ctx := context.Background()
	if err := projectRepo.Create(ctx, project); err != nil {
		t.Fatalf("create project: %v", err)
	}
	batch := []posts.Post{
		{ID: "post-1", ProjectID: project.ID, Number: 1, Channel: "blog", Topic: "Spring trail checklist", TemplateID: "tpl-blog", Status: posts.StatusPlanned},
		{ID: "post-2", ProjectID: project.ID, Number: 2, Channel: "email", Topic: "Gear sale announcement", TemplateID: "tpl-email", Status: posts.StatusPlanned},
		{ID: "post-3", ProjectID: project.ID, Number: 3, Channel: "social", Topic: "Customer photo contest", TemplateID: "tpl-social", Status: posts.StatusPlanned},
	}
	if err := postRepo.CreateBatch(ctx, batch); err != nil {
		t.Fatalf("create posts: %v", err)
	}
	if err := engine.Create(ctx, project.ID, allowedRevisions); err != nil {
		t.Fatalf("create scope: %v", err)
	}

	budget := generation.NewBudget(generation.BudgetConfig{
		RequestLimit: 1000,
		TokenLimit:   10_000_000,
		Window:       time.Minute,
	})
	sched, err := generation.NewScheduler(backend, budget, generation.NewRetryPolicy(1, time.Millisecond, time.Millisecond), time.Second)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	q := &captureQueue{}
	store := &memObjectStore{}
	svc := &Service{
		Repo:         NewMemoryRepo(),
		Projects:     projectRepo,
		Posts:        postRepo,
		Scope:        engine,
		Scheduler:    sched,
		Gate:         qa.NewGate(10),
		Store:        store,
		Queue:        q,
		Concurrency:  2,
		BatchTimeout: 5 * time.Second,
	}
	return &fixture{svc: svc, queue: q, store: store, project: project}
}

func TestRequestDispatchesRevision(t *testing.T) {
	f := newFixture(t, llm.CannedClient{}, 5)
	ctx := context.Background()

	rev, dec, err := f.svc.Request(ctx, RequestInput{
		ProjectID:   f.project.ID,
		PostNumbers: []int{2, 1},
		Feedback:    "shorter intro",
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if !dec.Allowed {
		t.Fatal("expected revision to be allowed")
	}
	if rev.AttemptNumber != 1 {
		t.Fatalf("attempt = %d, want 1", rev.AttemptNumber)
	}
	if rev.Status != StatusPending {
		t.Fatalf("status = %q, want pending", rev.Status)
	}
	if got := rev.PostNumbers; len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("post numbers = %v, want sorted [1 2]", got)
	}

	msg := f.queue.last(t)
	if msg.Kind != queue.KindRevision || msg.RevisionID != rev.ID || msg.ProjectID != f.project.ID {
		t.Fatalf("unexpected message %+v", msg)
	}

	sc, err := f.svc.Scope.Get(ctx, f.project.ID)
	if err != nil {
		t.Fatalf("get scope: %v", err)
	}
	if sc.UsedRevisions != 1 || sc.PendingRevisions != 1 {
		t.Fatalf("scope used=%d pending=%d, want 1/1", sc.UsedRevisions, sc.PendingRevisions)
	}
}

func TestRequestRejectsBadInput(t *testing.T) {
	f := newFixture(t, llm.CannedClient{}, 5)
	ctx := context.Background()

	cases := []struct {
		name    string
		numbers []int
	}{
		{"empty", nil},
		{"duplicate", []int{1, 1}},
		{"zero", []int{0}},
		{"unknown", []int{1, 9}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := f.svc.Request(ctx, RequestInput{ProjectID: f.project.ID, PostNumbers: tc.numbers})
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}

	sc, err := f.svc.Scope.Get(ctx, f.project.ID)
	if err != nil {
		t.Fatalf("get scope: %v", err)
	}
	if sc.UsedRevisions != 0 {
		t.Fatalf("used = %d after rejected requests, want 0", sc.UsedRevisions)
	}
}

func TestRequestBlockedSurfacesUpsell(t *testing.T) {
	f := newFixture(t, llm.CannedClient{}, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, _, err := f.svc.Request(ctx, RequestInput{ProjectID: f.project.ID, PostNumbers: []int{1}}); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}

	rev, dec, err := f.svc.Request(ctx, RequestInput{ProjectID: f.project.ID, PostNumbers: []int{1}})
	if err != nil {
		t.Fatalf("blocked request: %v", err)
	}
	if dec.Allowed {
		t.Fatal("expected quota to be exhausted")
	}
	if !dec.UpsellOffered || !dec.OfferedNow {
		t.Fatalf("decision = %+v, want first upsell offer", dec)
	}
	if rev.ID != "" {
		t.Fatal("blocked request must not create a revision")
	}

	_, dec2, err := f.svc.Request(ctx, RequestInput{ProjectID: f.project.ID, PostNumbers: []int{1}})
	if err != nil {
		t.Fatalf("second blocked request: %v", err)
	}
	if dec2.OfferedNow {
		t.Fatal("offer must be recorded only once")
	}
}

func TestRequestEnqueueFailureReleasesScope(t *testing.T) {
	f := newFixture(t, llm.CannedClient{}, 5)
	f.queue.fail = errors.New("sqs unavailable")
	ctx := context.Background()

	_, _, err := f.svc.Request(ctx, RequestInput{ProjectID: f.project.ID, PostNumbers: []int{1}})
	if err == nil {
		t.Fatal("expected dispatch error")
	}

	sc, scErr := f.svc.Scope.Get(ctx, f.project.ID)
	if scErr != nil {
		t.Fatalf("get scope: %v", scErr)
	}
	if sc.UsedRevisions != 0 || sc.PendingRevisions != 0 {
		t.Fatalf("scope used=%d pending=%d after failed dispatch, want 0/0", sc.UsedRevisions, sc.PendingRevisions)
	}

	revs, listErr := f.svc.Repo.ListByProject(ctx, f.project.ID)
	if listErr != nil {
		t.Fatalf("list revisions: %v", listErr)
	}
	if len(revs) != 1 {
		t.Fatalf("revisions = %d, want the failed record kept", len(revs))
	}
	if revs[0].Status != StatusFailed || revs[0].ErrorCode != ErrCodeEnqueueFailed {
		t.Fatalf("revision = %+v, want failed/enqueue_failed", revs[0])
	}
}

func TestProcessRevisionUpdatesPostsAndCommitsScope(t *testing.T) {
	f := newFixture(t, llm.CannedClient{}, 5)
	ctx := context.Background()

	rev, _, err := f.svc.Request(ctx, RequestInput{
		ProjectID:   f.project.ID,
		PostNumbers: []int{1, 3},
		Feedback:    "add a call to action",
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	if err := f.svc.Process(ctx, f.queue.last(t)); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, err := f.svc.Repo.GetByID(ctx, rev.ID)
	if err != nil {
		t.Fatalf("get revision: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	if got.Succeeded != 2 || got.Placeholders != 0 || got.Failed != 0 {
		t.Fatalf("counts = %d/%d/%d, want 2/0/0", got.Succeeded, got.Placeholders, got.Failed)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Fatal("timestamps not recorded")
	}
	if got.ArtifactKey == "" {
		t.Fatal("artifact key not recorded")
	}
	if _, ok := f.store.objects[got.ArtifactKey]; !ok {
		t.Fatalf("artifact %q not stored", got.ArtifactKey)
	}

	updated, err := f.svc.Posts.GetByNumbers(ctx, f.project.ID, []int{1, 3})
	if err != nil {
		t.Fatalf("get posts: %v", err)
	}
	for _, p := range updated {
		if p.Status != posts.StatusGenerated {
			t.Fatalf("post %d status = %q, want generated", p.Number, p.Status)
		}
		if !strings.Contains(p.Content, "Revised per feedback") {
			t.Fatalf("post %d content missing revision feedback: %q", p.Number, p.Content)
		}
	}

	sc, err := f.svc.Scope.Get(ctx, f.project.ID)
	if err != nil {
		t.Fatalf("get scope: %v", err)
	}
	if sc.UsedRevisions != 1 || sc.PendingRevisions != 0 {
		t.Fatalf("scope used=%d pending=%d after commit, want 1/0", sc.UsedRevisions, sc.PendingRevisions)
	}
}

func TestProcessRevisionAllFailed(t *testing.T) {
	f := newFixture(t, llm.PlaceholderClient{}, 5)
	ctx := context.Background()

	rev, _, err := f.svc.Request(ctx, RequestInput{ProjectID: f.project.ID, PostNumbers: []int{1, 2, 3}})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := f.svc.Process(ctx, f.queue.last(t)); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, err := f.svc.Repo.GetByID(ctx, rev.ID)
	if err != nil {
		t.Fatalf("get revision: %v", err)
	}
	if got.Status != StatusFailed || got.ErrorCode != ErrCodeAllItemsLost {
		t.Fatalf("revision = %q/%q, want failed/all_items_failed", got.Status, got.ErrorCode)
	}
	if got.Placeholders != 3 {
		t.Fatalf("placeholders = %d, want 3", got.Placeholders)
	}

	updated, err := f.svc.Posts.ListByProject(ctx, f.project.ID)
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	for _, p := range updated {
		if p.Status != posts.StatusPlaceholder {
			t.Fatalf("post %d status = %q, want placeholder", p.Number, p.Status)
		}
		if !strings.Contains(p.Content, generation.PlaceholderMarker) {
			t.Fatalf("post %d content missing marker: %q", p.Number, p.Content)
		}
	}

	// The unit is spent even when the batch produced nothing usable.
	sc, err := f.svc.Scope.Get(ctx, f.project.ID)
	if err != nil {
		t.Fatalf("get scope: %v", err)
	}
	if sc.UsedRevisions != 1 || sc.PendingRevisions != 0 {
		t.Fatalf("scope used=%d pending=%d, want 1/0", sc.UsedRevisions, sc.PendingRevisions)
	}
}

func TestProcessInitialGeneratesWholePlan(t *testing.T) {
	f := newFixture(t, llm.CannedClient{}, 5)
	ctx := context.Background()

	jobID, err := f.svc.StartInitial(ctx, f.project.ID)
	if err != nil {
		t.Fatalf("start initial: %v", err)
	}
	if jobID == "" {
		t.Fatal("empty job id")
	}

	project, err := f.svc.Projects.GetByID(ctx, f.project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if project.Status != projects.StatusGenerating {
		t.Fatalf("status = %q before processing, want generating", project.Status)
	}

	msg := f.queue.last(t)
	if msg.Kind != queue.KindInitial || msg.RevisionID != "" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if err := f.svc.Process(ctx, msg); err != nil {
		t.Fatalf("process: %v", err)
	}

	project, err = f.svc.Projects.GetByID(ctx, f.project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if project.Status != projects.StatusReady {
		t.Fatalf("status = %q, want ready", project.Status)
	}

	updated, err := f.svc.Posts.ListByProject(ctx, f.project.ID)
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(updated) != 3 {
		t.Fatalf("posts = %d, want 3", len(updated))
	}
	for _, p := range updated {
		if p.Status != posts.StatusGenerated {
			t.Fatalf("post %d status = %q, want generated", p.Number, p.Status)
		}
		if p.TokensUsed == 0 {
			t.Fatalf("post %d has no token usage", p.Number)
		}
	}

	// Initial generation never touches the revision quota.
	sc, err := f.svc.Scope.Get(ctx, f.project.ID)
	if err != nil {
		t.Fatalf("get scope: %v", err)
	}
	if sc.UsedRevisions != 0 {
		t.Fatalf("used = %d after initial batch, want 0", sc.UsedRevisions)
	}
}

func TestProcessSkipsFinishedRevision(t *testing.T) {
	f := newFixture(t, llm.CannedClient{}, 5)
	ctx := context.Background()

	rev, _, err := f.svc.Request(ctx, RequestInput{ProjectID: f.project.ID, PostNumbers: []int{1}})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	msg := f.queue.last(t)
	if err := f.svc.Process(ctx, msg); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	before, err := f.svc.Posts.GetByNumbers(ctx, f.project.ID, []int{1})
	if err != nil {
		t.Fatalf("get post: %v", err)
	}

	// Redelivery of a finished revision is a no-op.
	if err := f.svc.Process(ctx, msg); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	got, err := f.svc.Repo.GetByID(ctx, rev.ID)
	if err != nil {
		t.Fatalf("get revision: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	after, err := f.svc.Posts.GetByNumbers(ctx, f.project.ID, []int{1})
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if after[0].GeneratedAt == nil || before[0].GeneratedAt == nil {
		t.Fatal("generatedAt not set")
	}
	if !after[0].GeneratedAt.Equal(*before[0].GeneratedAt) {
		t.Fatal("redelivery must not rewrite the post")
	}
}

func TestProcessUnknownKind(t *testing.T) {
	f := newFixture(t, llm.CannedClient{}, 5)
	if err := f.svc.Process(context.Background(), queue.Message{Kind: "compact"}); err == nil {
		t.Fatal("expected error for unknown job kind")
	}
}
