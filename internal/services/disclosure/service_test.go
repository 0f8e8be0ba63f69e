package disclosure

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ivankudzin/anonrelay/internal/domain/model"
	"github.com/ivankudzin/anonrelay/internal/services/ledger"
)

func TestRequestDisclosureUnknownSubmission(t *testing.T) {
	svc := NewService(newFakeDisclosureRepo(), &fakeSubmissions{}, 100000, "RUB", nil)

	_, err := svc.RequestDisclosure(context.Background(), 7, 42, time.Now())
	if !errors.Is(err, ErrSubmissionNotFound) {
		t.Fatalf("expected ErrSubmissionNotFound, got %v", err)
	}
}

func TestRequestDisclosureIssuesPaymentNeverIdentity(t *testing.T) {
	repo := newFakeDisclosureRepo()
	subs := &fakeSubmissions{rows: map[int64]model.Submission{
		42: {ID: 42, SenderID: 500, SenderHandle: "alice", Text: "secret"},
	}}
	svc := NewService(repo, subs, 100000, "RUB", nil)

	out, err := svc.RequestDisclosure(context.Background(), 7, 42, time.Now())
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if out.Revealed {
		t.Fatalf("unpaid request must not reveal identity")
	}
	if out.Payment.Amount != 100000 || out.Payment.Currency != "RUB" || out.Payment.Payload == "" {
		t.Fatalf("unexpected payment request: %+v", out.Payment)
	}

	stored, found, _ := repo.FindByPayload(context.Background(), out.Payment.Payload)
	if !found || stored.Status != model.DisclosureStatusPending {
		t.Fatalf("expected pending row for payload, got %+v found=%v", stored, found)
	}

	// A second request before payment issues a fresh token, still no identity.
	again, err := svc.RequestDisclosure(context.Background(), 7, 42, time.Now())
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if again.Revealed || again.Payment.Payload == out.Payment.Payload {
		t.Fatalf("second unpaid request: revealed=%v payload reuse=%v",
			again.Revealed, again.Payment.Payload == out.Payment.Payload)
	}
}

func TestConfirmPaymentThenRequestReveals(t *testing.T) {
	repo := newFakeDisclosureRepo()
	subs := &fakeSubmissions{rows: map[int64]model.Submission{
		42: {ID: 42, SenderID: 500, SenderHandle: "alice", Text: "secret"},
	}}
	svc := NewService(repo, subs, 100000, "RUB", nil)
	ctx := context.Background()

	out, err := svc.RequestDisclosure(ctx, 7, 42, time.Now())
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	confirmed, err := svc.ConfirmPayment(ctx, out.Payment.Payload, "charge-abc", time.Now())
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !confirmed.Completed() || confirmed.ChargeID != "charge-abc" {
		t.Fatalf("expected completed row with charge id, got %+v", confirmed)
	}
	if confirmed.CompletedAt == nil {
		t.Fatalf("completed row must carry a completion time")
	}

	again, err := svc.RequestDisclosure(ctx, 7, 42, time.Now())
	if err != nil {
		t.Fatalf("request after payment: %v", err)
	}
	if !again.Revealed || again.Submission.SenderHandle != "alice" {
		t.Fatalf("paid request must reveal the submission, got %+v", again)
	}

	// Another requester has not paid and still gets an invoice.
	other, err := svc.RequestDisclosure(ctx, 8, 42, time.Now())
	if err != nil {
		t.Fatalf("other requester: %v", err)
	}
	if other.Revealed {
		t.Fatalf("payment is per requester, must not leak to others")
	}
}

func TestConfirmPaymentUnknownPayload(t *testing.T) {
	svc := NewService(newFakeDisclosureRepo(), &fakeSubmissions{}, 100000, "RUB", nil)

	_, err := svc.ConfirmPayment(context.Background(), "no-such-token", "charge", time.Now())
	if !errors.Is(err, ErrUnknownPayload) {
		t.Fatalf("expected ErrUnknownPayload, got %v", err)
	}
	_, err = svc.ConfirmPayment(context.Background(), "", "charge", time.Now())
	if !errors.Is(err, ErrUnknownPayload) {
		t.Fatalf("empty payload should be unknown, got %v", err)
	}
}

func TestConfirmPaymentDuplicateIsANoOp(t *testing.T) {
	repo := newFakeDisclosureRepo()
	subs := &fakeSubmissions{rows: map[int64]model.Submission{
		42: {ID: 42, SenderID: 500, SenderHandle: "alice"},
	}}
	svc := NewService(repo, subs, 100000, "RUB", nil)
	ctx := context.Background()

	out, err := svc.RequestDisclosure(ctx, 7, 42, time.Now())
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	first, err := svc.ConfirmPayment(ctx, out.Payment.Payload, "charge-1", time.Now())
	if err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	second, err := svc.ConfirmPayment(ctx, out.Payment.Payload, "charge-2", time.Now())
	if err != nil {
		t.Fatalf("replayed confirm must not fail: %v", err)
	}
	if second.ChargeID != first.ChargeID {
		t.Fatalf("replay must not overwrite the audit charge id: %q vs %q", second.ChargeID, first.ChargeID)
	}
	if repo.completions(out.Payment.Payload) != 1 {
		t.Fatalf("expected exactly one completed transition")
	}
}

func TestConcurrentConfirmTransitionsOnce(t *testing.T) {
	repo := newFakeDisclosureRepo()
	subs := &fakeSubmissions{rows: map[int64]model.Submission{
		42: {ID: 42, SenderID: 500},
	}}
	svc := NewService(repo, subs, 100000, "RUB", nil)
	ctx := context.Background()

	out, err := svc.RequestDisclosure(ctx, 7, 42, time.Now())
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.ConfirmPayment(ctx, out.Payment.Payload, "charge", time.Now()); err != nil {
				t.Errorf("concurrent confirm: %v", err)
			}
		}()
	}
	wg.Wait()

	if repo.completions(out.Payment.Payload) != 1 {
		t.Fatalf("racing confirmations must produce exactly one transition, got %d",
			repo.completions(out.Payment.Payload))
	}
}

type fakeDisclosureRepo struct {
	mu        sync.Mutex
	rows      map[string]model.Disclosure
	completed map[string]int
}

func newFakeDisclosureRepo() *fakeDisclosureRepo {
	return &fakeDisclosureRepo{
		rows:      make(map[string]model.Disclosure),
		completed: make(map[string]int),
	}
}

func (r *fakeDisclosureRepo) CreatePending(_ context.Context, d model.Disclosure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[d.Payload] = d
	return nil
}

func (r *fakeDisclosureRepo) FindByPayload(_ context.Context, payload string) (model.Disclosure, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.rows[payload]
	return d, ok, nil
}

func (r *fakeDisclosureRepo) FindCompleted(_ context.Context, requesterID, submissionID int64) (model.Disclosure, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.rows {
		if d.RequesterID == requesterID && d.SubmissionID == submissionID && d.Completed() {
			return d, true, nil
		}
	}
	return model.Disclosure{}, false, nil
}

func (r *fakeDisclosureRepo) CompleteIfPending(_ context.Context, payload, chargeID string, completedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.rows[payload]
	if !ok || d.Status != model.DisclosureStatusPending {
		return false, nil
	}
	d.Status = model.DisclosureStatusCompleted
	d.ChargeID = chargeID
	d.CompletedAt = &completedAt
	r.rows[payload] = d
	r.completed[payload]++
	return true, nil
}

func (r *fakeDisclosureRepo) completions(payload string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed[payload]
}

type fakeSubmissions struct {
	rows map[int64]model.Submission
}

func (s *fakeSubmissions) Lookup(_ context.Context, id int64) (model.Submission, error) {
	submission, ok := s.rows[id]
	if !ok {
		return model.Submission{}, ledger.ErrSubmissionNotFound
	}
	return submission, nil
}
