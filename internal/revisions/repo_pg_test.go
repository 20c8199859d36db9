package revisions

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	createdAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO revisions`).
		WithArgs("rev-1", "proj-1", 2, "tighten the intro", `[1,3]`, StatusPending, createdAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), Revision{
		ID:            "rev-1",
		ProjectID:     "proj-1",
		AttemptNumber: 2,
		Feedback:      "tighten the intro",
		PostNumbers:   []int{1, 3},
		Status:        StatusPending,
		CreatedAt:     createdAt,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	createdAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	startedAt := createdAt.Add(time.Second)
	completedAt := createdAt.Add(time.Minute)

	rows := sqlmock.NewRows([]string{
		"id", "project_id", "attempt_number", "feedback", "post_numbers", "status",
		"succeeded", "placeholders", "failed", "error_code", "error_detail", "artifact_key",
		"created_at", "started_at", "completed_at",
	}).AddRow(
		"rev-1", "proj-1", 2, "tighten the intro", `[1,3]`, StatusCompleted,
		2, 0, 0, nil, nil, "projects/proj-1/batches/rev-1.json",
		createdAt, startedAt, completedAt,
	)
	mock.ExpectQuery(`SELECT .+ FROM revisions WHERE id = \$1`).
		WithArgs("rev-1").
		WillReturnRows(rows)

	rev, err := repo.GetByID(context.Background(), "rev-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if rev.Status != StatusCompleted || rev.Succeeded != 2 {
		t.Fatalf("revision = %+v", rev)
	}
	if len(rev.PostNumbers) != 2 || rev.PostNumbers[0] != 1 || rev.PostNumbers[1] != 3 {
		t.Fatalf("post numbers = %v", rev.PostNumbers)
	}
	if rev.StartedAt == nil || !rev.StartedAt.Equal(startedAt) {
		t.Fatalf("startedAt = %v", rev.StartedAt)
	}
	if rev.ArtifactKey == "" {
		t.Fatal("artifact key not decoded")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM revisions WHERE id = \$1`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := repo.GetByID(context.Background(), "nope"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoFinishNullsEmptyStrings(t *testing.T) {
	repo, mock := newMockRepo(t)
	completedAt := time.Date(2026, 8, 1, 12, 5, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE revisions`).
		WithArgs("rev-1", StatusCompleted, 3, 1, 0, nil, nil, "projects/proj-1/batches/rev-1.json", completedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Finish(context.Background(), FinishUpdate{
		ID:           "rev-1",
		Status:       StatusCompleted,
		Succeeded:    3,
		Placeholders: 1,
		ArtifactKey:  "projects/proj-1/batches/rev-1.json",
		CompletedAt:  completedAt,
	})
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoMarkRunningMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE revisions SET status = \$2, started_at = \$3`).
		WithArgs("nope", StatusRunning, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.MarkRunning(context.Background(), "nope", time.Now().UTC()); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
