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

// DisclosureRepo stores payment-gated disclosure rows keyed by the opaque
// payload token. Status moves pending -> completed and never back.
type DisclosureRepo struct {
	pool *pgxpool.Pool
}

func NewDisclosureRepo(pool *pgxpool.Pool) *DisclosureRepo {
	return &DisclosureRepo{pool: pool}
}

// CreatePending replaces any earlier unpaid token for the same requester and
// submission: each new invoice supersedes the previous one, so stale pending
// rows are purged in the same transaction that inserts the fresh token.
func (r *DisclosureRepo) CreatePending(ctx context.Context, d model.Disclosure) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if d.Payload == "" || d.RequesterID <= 0 || d.SubmissionID <= 0 {
		return fmt.Errorf("invalid disclosure row")
	}

	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
DELETE FROM disclosures
WHERE requester_id = $1
  AND submission_id = $2
  AND status = $3
`, d.RequesterID, d.SubmissionID, model.DisclosureStatusPending); err != nil {
			return fmt.Errorf("purge stale pending disclosures: %w", err)
		}

		if _, err := tx.Exec(ctx, `
INSERT INTO disclosures (payload, requester_id, submission_id, status, created_at)
VALUES ($1, $2, $3, $4, $5)
`, d.Payload, d.RequesterID, d.SubmissionID, model.DisclosureStatusPending, d.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("insert pending disclosure: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("create pending disclosure: %w", err)
	}

	return nil
}

func (r *DisclosureRepo) FindByPayload(ctx context.Context, payload string) (model.Disclosure, bool, error) {
	if r.pool == nil {
		return model.Disclosure{}, false, fmt.Errorf("postgres pool is nil")
	}

	d, err := scanDisclosureRow(r.pool.QueryRow(ctx, `
SELECT payload, requester_id, submission_id, status, charge_id, created_at, completed_at
FROM disclosures
WHERE payload = $1
`, payload))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Disclosure{}, false, nil
		}
		return model.Disclosure{}, false, fmt.Errorf("find disclosure by payload: %w", err)
	}

	return d, true, nil
}

func (r *DisclosureRepo) FindCompleted(ctx context.Context, requesterID, submissionID int64) (model.Disclosure, bool, error) {
	if r.pool == nil {
		return model.Disclosure{}, false, fmt.Errorf("postgres pool is nil")
	}

	d, err := scanDisclosureRow(r.pool.QueryRow(ctx, `
SELECT payload, requester_id, submission_id, status, charge_id, created_at, completed_at
FROM disclosures
WHERE requester_id = $1
  AND submission_id = $2
  AND status = $3
LIMIT 1
`, requesterID, submissionID, model.DisclosureStatusCompleted))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Disclosure{}, false, nil
		}
		return model.Disclosure{}, false, fmt.Errorf("find completed disclosure: %w", err)
	}

	return d, true, nil
}

// CompleteIfPending is the single-winner transition: the status predicate in
// the WHERE clause makes concurrent confirmations race on one UPDATE, and
// only the caller whose update matched gets true.
func (r *DisclosureRepo) CompleteIfPending(ctx context.Context, payload, chargeID string, completedAt time.Time) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE disclosures
SET status = $3,
    charge_id = $4,
    completed_at = $5
WHERE payload = $1
  AND status = $2
`, payload, model.DisclosureStatusPending, model.DisclosureStatusCompleted, chargeID, completedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("complete disclosure: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func scanDisclosureRow(row pgx.Row) (model.Disclosure, error) {
	var d model.Disclosure
	var chargeID *string
	if err := row.Scan(
		&d.Payload,
		&d.RequesterID,
		&d.SubmissionID,
		&d.Status,
		&chargeID,
		&d.CreatedAt,
		&d.CompletedAt,
	); err != nil {
		return model.Disclosure{}, err
	}
	if chargeID != nil {
		d.ChargeID = *chargeID
	}
	return d, nil
}
