package disclosure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivankudzin/anonrelay/internal/domain/model"
	"github.com/ivankudzin/anonrelay/internal/services/ledger"
)

var (
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrUnknownPayload     = errors.New("unknown payment payload")
)

type Repo interface {
	CreatePending(ctx context.Context, d model.Disclosure) error
	FindByPayload(ctx context.Context, payload string) (model.Disclosure, bool, error)
	FindCompleted(ctx context.Context, requesterID, submissionID int64) (model.Disclosure, bool, error)
	// CompleteIfPending flips the row to completed and reports whether this
	// caller performed the transition. Concurrent callers get at most one true.
	CompleteIfPending(ctx context.Context, payload, chargeID string, completedAt time.Time) (bool, error)
}

type Submissions interface {
	Lookup(ctx context.Context, id int64) (model.Submission, error)
}

// PaymentRequest is what the caller presents to the payment gateway. The
// payload is an opaque token; the (requester, submission) pair it unlocks
// lives only in the disclosures row keyed by it.
type PaymentRequest struct {
	Amount   int64
	Currency string
	Payload  string
}

// Outcome of a disclosure request: either the unmasked submission or a
// payment request, never both.
type Outcome struct {
	Revealed   bool
	Submission model.Submission
	Payment    PaymentRequest
}

// Service withholds sender identity until a committed completed-payment
// record exists for the (requester, submission) pair. An issued invoice
// alone reveals nothing.
type Service struct {
	repo        Repo
	submissions Submissions
	amount      int64
	currency    string
	logger      *zap.Logger
}

func NewService(repo Repo, submissions Submissions, amount int64, currency string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:        repo,
		submissions: submissions,
		amount:      amount,
		currency:    currency,
		logger:      logger,
	}
}

func (s *Service) RequestDisclosure(ctx context.Context, requesterID, submissionID int64, now time.Time) (Outcome, error) {
	if requesterID <= 0 {
		return Outcome{}, fmt.Errorf("invalid requester id")
	}
	if s.repo == nil || s.submissions == nil {
		return Outcome{}, fmt.Errorf("disclosure service not wired")
	}

	submission, err := s.submissions.Lookup(ctx, submissionID)
	if err != nil {
		if errors.Is(err, ledger.ErrSubmissionNotFound) {
			return Outcome{}, ErrSubmissionNotFound
		}
		return Outcome{}, fmt.Errorf("lookup submission: %w", err)
	}

	completed, found, err := s.repo.FindCompleted(ctx, requesterID, submissionID)
	if err != nil {
		return Outcome{}, fmt.Errorf("find completed disclosure: %w", err)
	}
	if found && completed.Completed() {
		return Outcome{Revealed: true, Submission: submission}, nil
	}

	pending := model.Disclosure{
		Payload:      uuid.NewString(),
		RequesterID:  requesterID,
		SubmissionID: submissionID,
		Status:       model.DisclosureStatusPending,
		CreatedAt:    now.UTC(),
	}
	if err := s.repo.CreatePending(ctx, pending); err != nil {
		return Outcome{}, fmt.Errorf("create pending disclosure: %w", err)
	}

	return Outcome{
		Payment: PaymentRequest{
			Amount:   s.amount,
			Currency: s.currency,
			Payload:  pending.Payload,
		},
	}, nil
}

// ConfirmPayment transitions the payload's row pending -> completed and
// records the provider charge id. Replayed confirmations and confirmations
// racing each other settle on the already-completed row and report it back,
// so the payer never sees a duplicate as a failure.
func (s *Service) ConfirmPayment(ctx context.Context, payload, chargeID string, now time.Time) (model.Disclosure, error) {
	if payload == "" {
		return model.Disclosure{}, ErrUnknownPayload
	}
	if s.repo == nil {
		return model.Disclosure{}, fmt.Errorf("disclosure service not wired")
	}

	transitioned, err := s.repo.CompleteIfPending(ctx, payload, chargeID, now.UTC())
	if err != nil {
		return model.Disclosure{}, fmt.Errorf("complete disclosure: %w", err)
	}
	if !transitioned {
		existing, found, err := s.repo.FindByPayload(ctx, payload)
		if err != nil {
			return model.Disclosure{}, fmt.Errorf("find disclosure: %w", err)
		}
		if !found {
			return model.Disclosure{}, ErrUnknownPayload
		}
		s.logger.Info("duplicate payment confirmation",
			zap.String("payload", payload),
			zap.String("charge_id", chargeID),
		)
		return existing, nil
	}

	updated, found, err := s.repo.FindByPayload(ctx, payload)
	if err != nil {
		return model.Disclosure{}, fmt.Errorf("find disclosure: %w", err)
	}
	if !found {
		return model.Disclosure{}, ErrUnknownPayload
	}
	return updated, nil
}
