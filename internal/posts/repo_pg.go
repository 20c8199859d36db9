package posts

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const postColumns = `id, project_id, number, channel, topic, template_id, content, status, flag_reasons, tokens_used, generated_at, updated_at`

func (r *PGRepo) CreateBatch(ctx context.Context, items []Post) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const query = `
INSERT INTO posts (id, project_id, number, channel, topic, template_id, content, status, tokens_used, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	for _, p := range items {
		if _, err := tx.ExecContext(ctx, query,
			p.ID, p.ProjectID, p.Number, p.Channel, p.Topic, p.TemplateID,
			p.Content, p.Status, p.TokensUsed, time.Now().UTC(),
		); err != nil {
			return fmt.Errorf("insert post %d: %w", p.Number, err)
		}
	}
	return tx.Commit()
}

func (r *PGRepo) ListByProject(ctx context.Context, projectID string) ([]Post, error) {
	query := fmt.Sprintf(`SELECT %s FROM posts WHERE project_id = $1 ORDER BY number`, postColumns)
	rows, err := r.DB.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPosts(rows)
}

func (r *PGRepo) GetByNumbers(ctx context.Context, projectID string, numbers []int) ([]Post, error) {
	if len(numbers) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(numbers))
	args := make([]any, 0, len(numbers)+1)
	args = append(args, projectID)
	for i, n := range numbers {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, n)
	}
	query := fmt.Sprintf(`SELECT %s FROM posts WHERE project_id = $1 AND number IN (%s) ORDER BY number`,
		postColumns, strings.Join(placeholders, ", "))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out, err := scanPosts(rows)
	if err != nil {
		return nil, err
	}
	if len(out) != len(numbers) {
		return nil, ErrNotFound
	}
	return out, nil
}

func (r *PGRepo) ApplyContent(ctx context.Context, update ContentUpdate) error {
	reasons, err := marshalReasons(update.FlagReasons)
	if err != nil {
		return err
	}
	const query = `
UPDATE posts
SET content = $3, status = $4, flag_reasons = $5, tokens_used = $6, generated_at = $7, updated_at = now()
WHERE project_id = $1 AND number = $2`
	res, err := r.DB.ExecContext(ctx, query,
		update.ProjectID, update.Number, update.Content, update.Status,
		reasons, update.TokensUsed, update.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("update post %d: %w", update.Number, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPosts(rows *sql.Rows) ([]Post, error) {
	var out []Post
	for rows.Next() {
		var (
			p           Post
			reasons     sql.NullString
			generatedAt sql.NullTime
		)
		if err := rows.Scan(
			&p.ID, &p.ProjectID, &p.Number, &p.Channel, &p.Topic, &p.TemplateID,
			&p.Content, &p.Status, &reasons, &p.TokensUsed, &generatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if reasons.Valid && reasons.String != "" {
			if err := json.Unmarshal([]byte(reasons.String), &p.FlagReasons); err != nil {
				return nil, fmt.Errorf("decode flag reasons for post %d: %w", p.Number, err)
			}
		}
		if generatedAt.Valid {
			t := generatedAt.Time
			p.GeneratedAt = &t
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func marshalReasons(reasons []string) (any, error) {
	if len(reasons) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal(reasons)
	if err != nil {
		return nil, fmt.Errorf("encode flag reasons: %w", err)
	}
	return string(payload), nil
}

var _ Repo = (*PGRepo)(nil)
