package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

type CooldownStore interface {
	Start(ctx context.Context, key string, window time.Duration) error
	Remaining(ctx context.Context, key string) (time.Duration, error)
}

// Limiter enforces the one-submission-per-window rule per sender. State lives
// in redis with a TTL equal to the window, so a restart only shortens
// effective cooldowns, never blocks anyone longer than configured.
type Limiter struct {
	store  CooldownStore
	window time.Duration
}

func NewLimiter(store CooldownStore, window time.Duration) *Limiter {
	if window < 0 {
		window = 0
	}
	return &Limiter{store: store, window: window}
}

// OnCooldown reports whether the sender must wait, and for how many seconds.
// A sender with no recorded submission is never on cooldown.
func (l *Limiter) OnCooldown(ctx context.Context, senderID int64) (int64, bool, error) {
	if senderID <= 0 {
		return 0, false, fmt.Errorf("invalid sender id")
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("cooldown store is nil")
	}
	if l.window == 0 {
		return 0, false, nil
	}

	remaining, err := l.store.Remaining(ctx, cooldownKey(senderID))
	if err != nil {
		return 0, false, err
	}
	if remaining <= 0 {
		return 0, false, nil
	}

	return ceilSeconds(remaining), true, nil
}

// Record marks an accepted submission, resetting the sender's window.
func (l *Limiter) Record(ctx context.Context, senderID int64) error {
	if senderID <= 0 {
		return fmt.Errorf("invalid sender id")
	}
	if l.store == nil {
		return fmt.Errorf("cooldown store is nil")
	}
	if l.window == 0 {
		return nil
	}

	return l.store.Start(ctx, cooldownKey(senderID), l.window)
}

func cooldownKey(senderID int64) string {
	return "cooldown:relay:" + strconv.FormatInt(senderID, 10)
}

func ceilSeconds(d time.Duration) int64 {
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	if sec <= 0 {
		sec = 1
	}
	return sec
}
