package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/anonrelay/internal/domain/model"
)

// SubmissionRepo is the append-only ledger table. The id column is a
// BIGSERIAL, so identifiers grow monotonically and are never reused.
type SubmissionRepo struct {
	pool *pgxpool.Pool
}

func NewSubmissionRepo(pool *pgxpool.Pool) *SubmissionRepo {
	return &SubmissionRepo{pool: pool}
}

func (r *SubmissionRepo) Append(ctx context.Context, senderID int64, senderHandle, text string, createdAt time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if senderID <= 0 {
		return 0, fmt.Errorf("invalid sender id")
	}

	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO submissions (sender_id, sender_handle, text, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id
`, senderID, senderHandle, text, createdAt.UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("append submission: %w", err)
	}

	return id, nil
}

func (r *SubmissionRepo) FindByID(ctx context.Context, id int64) (model.Submission, bool, error) {
	if r.pool == nil {
		return model.Submission{}, false, fmt.Errorf("postgres pool is nil")
	}

	var submission model.Submission
	err := r.pool.QueryRow(ctx, `
SELECT id, sender_id, sender_handle, text, created_at
FROM submissions
WHERE id = $1
`, id).Scan(
		&submission.ID,
		&submission.SenderID,
		&submission.SenderHandle,
		&submission.Text,
		&submission.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Submission{}, false, nil
		}
		return model.Submission{}, false, fmt.Errorf("find submission: %w", err)
	}

	return submission, true, nil
}
