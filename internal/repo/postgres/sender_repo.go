package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/anonrelay/internal/domain/model"
)

// SenderRepo is the directory of everyone who has ever talked to the bot.
// Broadcast fan-out reads it in full.
type SenderRepo struct {
	pool *pgxpool.Pool
}

func NewSenderRepo(pool *pgxpool.Pool) *SenderRepo {
	return &SenderRepo{pool: pool}
}

func (r *SenderRepo) Upsert(ctx context.Context, sender model.Sender) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if sender.ID <= 0 {
		return fmt.Errorf("invalid sender id")
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO senders (id, handle, first_seen)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE
SET handle = EXCLUDED.handle
`, sender.ID, sender.Handle, sender.FirstSeen.UTC()); err != nil {
		return fmt.Errorf("upsert sender: %w", err)
	}

	return nil
}

func (r *SenderRepo) ListIDs(ctx context.Context) ([]int64, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id
FROM senders
ORDER BY first_seen
`)
	if err != nil {
		return nil, fmt.Errorf("list senders: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan sender id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate senders: %w", err)
	}

	return ids, nil
}
