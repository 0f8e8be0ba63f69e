package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/anonrelay/internal/domain/model"
)

// BanRepo keeps at most one ban row per sender. A NULL until column is a
// permanent ban.
type BanRepo struct {
	pool *pgxpool.Pool
}

func NewBanRepo(pool *pgxpool.Pool) *BanRepo {
	return &BanRepo{pool: pool}
}

func (r *BanRepo) Get(ctx context.Context, senderID int64) (model.Ban, bool, error) {
	if r.pool == nil {
		return model.Ban{}, false, fmt.Errorf("postgres pool is nil")
	}

	var ban model.Ban
	err := r.pool.QueryRow(ctx, `
SELECT sender_id, until, reason, created_at
FROM bans
WHERE sender_id = $1
`, senderID).Scan(&ban.SenderID, &ban.Until, &ban.Reason, &ban.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Ban{}, false, nil
		}
		return model.Ban{}, false, fmt.Errorf("find ban: %w", err)
	}

	return ban, true, nil
}

func (r *BanRepo) Upsert(ctx context.Context, ban model.Ban) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if ban.SenderID <= 0 {
		return fmt.Errorf("invalid sender id")
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO bans (sender_id, until, reason, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (sender_id) DO UPDATE
SET until = EXCLUDED.until,
    reason = EXCLUDED.reason,
    created_at = EXCLUDED.created_at
`, ban.SenderID, ban.Until, ban.Reason, ban.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("upsert ban: %w", err)
	}

	return nil
}

// DeleteIfPresent reports whether this caller removed the row, which lets
// racing expiry paths agree on a single winner.
func (r *BanRepo) DeleteIfPresent(ctx context.Context, senderID int64) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
DELETE FROM bans
WHERE sender_id = $1
`, senderID)
	if err != nil {
		return false, fmt.Errorf("delete ban: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
