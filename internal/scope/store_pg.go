package scope

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PGStore implements Store with atomic conditional updates. Every quota
// transition is a single UPDATE whose WHERE clause carries the guard, so
// enforcement holds under concurrent operators without explicit locks.
type PGStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed scope store.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{DB: db}
}

func (s *PGStore) Create(ctx context.Context, projectID string, allowedRevisions int) error {
	const query = `
INSERT INTO revision_scope (project_id, allowed_revisions)
VALUES ($1, $2)
ON CONFLICT (project_id) DO NOTHING`
	if _, err := s.DB.ExecContext(ctx, query, projectID, allowedRevisions); err != nil {
		return classifyPG(fmt.Errorf("create revision scope: %w", err))
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, projectID string) (Scope, error) {
	const query = `
SELECT project_id, allowed_revisions, used_revisions, pending_revisions, upsell_offered, upsell_accepted, updated_at
FROM revision_scope WHERE project_id = $1`
	var sc Scope
	err := s.DB.QueryRowContext(ctx, query, projectID).Scan(
		&sc.ProjectID,
		&sc.AllowedRevisions,
		&sc.UsedRevisions,
		&sc.PendingRevisions,
		&sc.UpsellOffered,
		&sc.UpsellAccepted,
		&sc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Scope{}, ErrNotFound
		}
		return Scope{}, classifyPG(fmt.Errorf("get revision scope: %w", err))
	}
	return sc, nil
}

func (s *PGStore) TryReserve(ctx context.Context, projectID string) (Scope, bool, error) {
	const query = `
UPDATE revision_scope
SET used_revisions = used_revisions + 1,
    pending_revisions = pending_revisions + 1,
    updated_at = now()
WHERE project_id = $1 AND used_revisions < allowed_revisions
RETURNING project_id, allowed_revisions, used_revisions, pending_revisions, upsell_offered, upsell_accepted, updated_at`
	var sc Scope
	err := s.DB.QueryRowContext(ctx, query, projectID).Scan(
		&sc.ProjectID,
		&sc.AllowedRevisions,
		&sc.UsedRevisions,
		&sc.PendingRevisions,
		&sc.UpsellOffered,
		&sc.UpsellAccepted,
		&sc.UpdatedAt,
	)
	if err == nil {
		return sc, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Scope{}, false, classifyPG(fmt.Errorf("reserve revision: %w", err))
	}

	// The guard refused: either the quota is exhausted or the row does not
	// exist. Get distinguishes the two.
	sc, err = s.Get(ctx, projectID)
	if err != nil {
		return Scope{}, false, err
	}
	return sc, false, nil
}

func (s *PGStore) MarkUpsellOffered(ctx context.Context, projectID string) (bool, error) {
	const query = `
UPDATE revision_scope SET upsell_offered = TRUE, updated_at = now()
WHERE project_id = $1 AND upsell_offered = FALSE`
	res, err := s.DB.ExecContext(ctx, query, projectID)
	if err != nil {
		return false, classifyPG(fmt.Errorf("mark upsell offered: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark upsell offered rows: %w", err)
	}
	return affected == 1, nil
}

func (s *PGStore) AddAllowed(ctx context.Context, projectID string, n int) (Scope, error) {
	const query = `
UPDATE revision_scope
SET allowed_revisions = allowed_revisions + $2,
    upsell_accepted = TRUE,
    updated_at = now()
WHERE project_id = $1
RETURNING project_id, allowed_revisions, used_revisions, pending_revisions, upsell_offered, upsell_accepted, updated_at`
	var sc Scope
	err := s.DB.QueryRowContext(ctx, query, projectID, n).Scan(
		&sc.ProjectID,
		&sc.AllowedRevisions,
		&sc.UsedRevisions,
		&sc.PendingRevisions,
		&sc.UpsellOffered,
		&sc.UpsellAccepted,
		&sc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Scope{}, ErrNotFound
		}
		return Scope{}, classifyPG(fmt.Errorf("accept upsell: %w", err))
	}
	return sc, nil
}

func (s *PGStore) ReleasePending(ctx context.Context, projectID string) error {
	const query = `
UPDATE revision_scope
SET used_revisions = used_revisions - 1,
    pending_revisions = pending_revisions - 1,
    updated_at = now()
WHERE project_id = $1 AND pending_revisions > 0`
	return s.guardedExec(ctx, query, projectID, "release revision")
}

func (s *PGStore) CommitPending(ctx context.Context, projectID string) error {
	const query = `
UPDATE revision_scope
SET pending_revisions = pending_revisions - 1,
    updated_at = now()
WHERE project_id = $1 AND pending_revisions > 0`
	return s.guardedExec(ctx, query, projectID, "commit revision")
}

func (s *PGStore) guardedExec(ctx context.Context, query, projectID, op string) error {
	res, err := s.DB.ExecContext(ctx, query, projectID)
	if err != nil {
		return classifyPG(fmt.Errorf("%s: %w", op, err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if affected == 0 {
		return ErrNoPending
	}
	return nil
}

// classifyPG tags serialization failures and deadlocks as retryable
// conflicts so the engine can retry the conditional update.
func classifyPG(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	return err
}

var _ Store = (*PGStore)(nil)
