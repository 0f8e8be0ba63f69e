package bans

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/ivankudzin/anonrelay/internal/domain/model"
)

// ErrStorage marks ban reads/writes that failed at the persistence layer.
// Callers must not report a ban or unban as applied when they see it.
var ErrStorage = errors.New("ban storage failure")

type Repo interface {
	Get(ctx context.Context, senderID int64) (model.Ban, bool, error)
	Upsert(ctx context.Context, ban model.Ban) error
	// DeleteIfPresent removes the row and reports whether this caller
	// performed the deletion. Concurrent callers get at most one true.
	DeleteIfPresent(ctx context.Context, senderID int64) (bool, error)
}

// Notifier delivers ban lifecycle messages. Delivery is best effort; the
// implementation logs failures instead of propagating them.
type Notifier interface {
	NotifyBanned(ctx context.Context, ban model.Ban)
	NotifyUnbanned(ctx context.Context, senderID int64, reason string)
}

type Scheduler interface {
	At(at time.Time, fn func(context.Context))
}

// Service is the authoritative ban registry. Expiry is produced by two
// racing paths, the lazy check inside IsBanned and the deferred task
// registered by Apply; both funnel into ExpireIfPresent, whose
// compare-and-delete guarantees at most one unban notification per ban.
type Service struct {
	repo     Repo
	notifier Notifier
	sched    Scheduler
	clock    clock.Clock
	logger   *zap.Logger
}

func NewService(repo Repo, notifier Notifier, sched Scheduler, clk clock.Clock, logger *zap.Logger) *Service {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		sched:    sched,
		clock:    clk,
		logger:   logger,
	}
}

// IsBanned reports whether the sender is banned at now. Not a pure query:
// observing an expired row deletes it and emits the unban notification.
func (s *Service) IsBanned(ctx context.Context, senderID int64, now time.Time) (bool, error) {
	if senderID <= 0 {
		return false, fmt.Errorf("invalid sender id")
	}
	if s.repo == nil {
		return false, fmt.Errorf("ban repo is nil")
	}

	ban, found, err := s.repo.Get(ctx, senderID)
	if err != nil {
		return false, storageErr("get ban", err)
	}
	if !found {
		return false, nil
	}
	if ban.ActiveAt(now) {
		return true, nil
	}

	if _, err := s.ExpireIfPresent(ctx, senderID); err != nil {
		s.logger.Warn("purge expired ban", zap.Error(err), zap.Int64("sender_id", senderID))
	}
	return false, nil
}

// Apply inserts or replaces the sender's ban, notifies, and registers the
// deferred unban for finite bans. Nothing is notified or scheduled when the
// store write fails.
func (s *Service) Apply(ctx context.Context, ban model.Ban) error {
	if ban.SenderID <= 0 {
		return fmt.Errorf("invalid sender id")
	}
	if s.repo == nil {
		return fmt.Errorf("ban repo is nil")
	}
	if ban.CreatedAt.IsZero() {
		ban.CreatedAt = s.clock.Now().UTC()
	}

	if err := s.repo.Upsert(ctx, ban); err != nil {
		return storageErr("upsert ban", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyBanned(ctx, ban)
	}

	if ban.Until != nil && s.sched != nil {
		senderID := ban.SenderID
		s.sched.At(*ban.Until, func(taskCtx context.Context) {
			if _, err := s.ExpireIfPresent(taskCtx, senderID); err != nil {
				s.logger.Warn("deferred unban", zap.Error(err), zap.Int64("sender_id", senderID))
			}
		})
	}

	return nil
}

// Remove is the administrative unban: the row is deleted regardless of
// expiry, and the notification carries the administrative reason. A pending
// deferred task for the same ban later finds no row and stays silent.
func (s *Service) Remove(ctx context.Context, senderID int64, reason string) error {
	if senderID <= 0 {
		return fmt.Errorf("invalid sender id")
	}
	if s.repo == nil {
		return fmt.Errorf("ban repo is nil")
	}

	deleted, err := s.repo.DeleteIfPresent(ctx, senderID)
	if err != nil {
		return storageErr("delete ban", err)
	}
	if deleted && s.notifier != nil {
		s.notifier.NotifyUnbanned(ctx, senderID, reason)
	}

	return nil
}

// ExpireIfPresent purges the sender's ban if it has actually expired,
// notifying with the ban's own reason. It is a no-op when the row is absent
// or still active, which makes the lazy path, the deferred task, and a
// re-ban that replaced the row all safe to race.
func (s *Service) ExpireIfPresent(ctx context.Context, senderID int64) (bool, error) {
	if senderID <= 0 {
		return false, fmt.Errorf("invalid sender id")
	}
	if s.repo == nil {
		return false, fmt.Errorf("ban repo is nil")
	}

	ban, found, err := s.repo.Get(ctx, senderID)
	if err != nil {
		return false, storageErr("get ban", err)
	}
	if !found {
		return false, nil
	}
	if ban.ActiveAt(s.clock.Now()) {
		return false, nil
	}

	deleted, err := s.repo.DeleteIfPresent(ctx, senderID)
	if err != nil {
		return false, storageErr("delete expired ban", err)
	}
	if deleted && s.notifier != nil {
		s.notifier.NotifyUnbanned(ctx, senderID, ban.Reason)
	}

	return deleted, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}
