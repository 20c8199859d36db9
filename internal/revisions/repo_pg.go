package revisions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const revisionColumns = `id, project_id, attempt_number, feedback, post_numbers, status, succeeded, placeholders, failed, error_code, error_detail, artifact_key, created_at, started_at, completed_at`

func (r *PGRepo) Create(ctx context.Context, rev Revision) error {
	numbers, err := json.Marshal(rev.PostNumbers)
	if err != nil {
		return fmt.Errorf("encode post numbers: %w", err)
	}
	const query = `
INSERT INTO revisions (id, project_id, attempt_number, feedback, post_numbers, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = r.DB.ExecContext(ctx, query,
		rev.ID, rev.ProjectID, rev.AttemptNumber, rev.Feedback, string(numbers), rev.Status, rev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}
	return nil
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Revision, error) {
	query := fmt.Sprintf(`SELECT %s FROM revisions WHERE id = $1`, revisionColumns)
	row := r.DB.QueryRowContext(ctx, query, id)
	rev, err := scanRevision(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Revision{}, ErrNotFound
		}
		return Revision{}, fmt.Errorf("get revision: %w", err)
	}
	return rev, nil
}

func (r *PGRepo) ListByProject(ctx context.Context, projectID string) ([]Revision, error) {
	query := fmt.Sprintf(`SELECT %s FROM revisions WHERE project_id = $1 ORDER BY created_at DESC`, revisionColumns)
	rows, err := r.DB.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Revision
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

func (r *PGRepo) MarkRunning(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE revisions SET status = $2, started_at = $3 WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, id, StatusRunning, at)
	if err != nil {
		return fmt.Errorf("mark revision running: %w", err)
	}
	return requireRow(res)
}

func (r *PGRepo) Finish(ctx context.Context, update FinishUpdate) error {
	const query = `
UPDATE revisions
SET status = $2, succeeded = $3, placeholders = $4, failed = $5,
    error_code = $6, error_detail = $7, artifact_key = $8, completed_at = $9
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query,
		update.ID, update.Status, update.Succeeded, update.Placeholders, update.Failed,
		nullString(update.ErrorCode), nullString(update.ErrorDetail), nullString(update.ArtifactKey),
		update.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("finish revision: %w", err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRevision(row rowScanner) (Revision, error) {
	var (
		rev         Revision
		numbers     string
		errorCode   sql.NullString
		errorDetail sql.NullString
		artifactKey sql.NullString
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(
		&rev.ID, &rev.ProjectID, &rev.AttemptNumber, &rev.Feedback, &numbers, &rev.Status,
		&rev.Succeeded, &rev.Placeholders, &rev.Failed,
		&errorCode, &errorDetail, &artifactKey, &rev.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return Revision{}, err
	}
	if numbers != "" {
		if err := json.Unmarshal([]byte(numbers), &rev.PostNumbers); err != nil {
			return Revision{}, fmt.Errorf("decode post numbers: %w", err)
		}
	}
	rev.ErrorCode = errorCode.String
	rev.ErrorDetail = errorDetail.String
	rev.ArtifactKey = artifactKey.String
	if startedAt.Valid {
		t := startedAt.Time
		rev.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		rev.CompletedAt = &t
	}
	return rev, nil
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Repo = (*PGRepo)(nil)
