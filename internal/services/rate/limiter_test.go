package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	redrepo "github.com/ivankudzin/anonrelay/internal/repo/redis"
)

func TestFirstSubmissionIsNeverOnCooldown(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	limiter := NewLimiter(redrepo.NewCooldownRepo(client), time.Hour)

	retryAfter, blocked, err := limiter.OnCooldown(context.Background(), 42)
	if err != nil {
		t.Fatalf("on cooldown: %v", err)
	}
	if blocked || retryAfter != 0 {
		t.Fatalf("fresh sender must not be on cooldown: blocked=%v retry_after=%d", blocked, retryAfter)
	}
}

func TestCooldownWindowBoundaries(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	window := time.Hour
	limiter := NewLimiter(redrepo.NewCooldownRepo(client), window)
	ctx := context.Background()
	senderID := int64(7)

	if err := limiter.Record(ctx, senderID); err != nil {
		t.Fatalf("record accepted: %v", err)
	}

	mr.FastForward(window - time.Second)
	retryAfter, blocked, err := limiter.OnCooldown(ctx, senderID)
	if err != nil {
		t.Fatalf("on cooldown just before expiry: %v", err)
	}
	if !blocked {
		t.Fatalf("expected cooldown one second before the window ends")
	}
	if retryAfter <= 0 {
		t.Fatalf("expected positive retry_after, got %d", retryAfter)
	}

	mr.FastForward(2 * time.Second)
	retryAfter, blocked, err = limiter.OnCooldown(ctx, senderID)
	if err != nil {
		t.Fatalf("on cooldown after expiry: %v", err)
	}
	if blocked || retryAfter != 0 {
		t.Fatalf("cooldown should have expired: blocked=%v retry_after=%d", blocked, retryAfter)
	}
}

func TestRecordResetsTheWindow(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	limiter := NewLimiter(redrepo.NewCooldownRepo(client), time.Hour)
	ctx := context.Background()
	senderID := int64(9)

	if err := limiter.Record(ctx, senderID); err != nil {
		t.Fatalf("first record: %v", err)
	}
	mr.FastForward(30 * time.Minute)
	if err := limiter.Record(ctx, senderID); err != nil {
		t.Fatalf("second record: %v", err)
	}

	mr.FastForward(45 * time.Minute)
	_, blocked, err := limiter.OnCooldown(ctx, senderID)
	if err != nil {
		t.Fatalf("on cooldown: %v", err)
	}
	if !blocked {
		t.Fatalf("second record should have reset the window")
	}
}

func TestZeroWindowDisablesCooldown(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	limiter := NewLimiter(redrepo.NewCooldownRepo(client), 0)
	ctx := context.Background()

	if err := limiter.Record(ctx, 1); err != nil {
		t.Fatalf("record with zero window: %v", err)
	}
	_, blocked, err := limiter.OnCooldown(ctx, 1)
	if err != nil {
		t.Fatalf("on cooldown with zero window: %v", err)
	}
	if blocked {
		t.Fatalf("zero window must disable the cooldown entirely")
	}
}

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}

	client := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})

	return mr, client
}
