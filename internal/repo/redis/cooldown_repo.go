package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type CooldownRepo struct {
	client *goredis.Client
}

func NewCooldownRepo(client *goredis.Client) *CooldownRepo {
	return &CooldownRepo{client: client}
}

// Start (re)arms the cooldown key for the full window. Calling it again
// before expiry resets the window, matching the "accepted submission resets
// the cooldown" rule.
func (r *CooldownRepo) Start(ctx context.Context, key string, window time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if key == "" || window <= 0 {
		return fmt.Errorf("invalid cooldown payload")
	}

	if err := r.client.Set(ctx, key, time.Now().UTC().Unix(), window).Err(); err != nil {
		return fmt.Errorf("set cooldown key: %w", err)
	}
	return nil
}

// Remaining reports the time left on the cooldown key, zero when absent.
func (r *CooldownRepo) Remaining(ctx context.Context, key string) (time.Duration, error) {
	if r.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}
	if key == "" {
		return 0, fmt.Errorf("cooldown key is required")
	}

	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("read cooldown ttl: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	return ttl, nil
}
