package opsapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ivankudzin/anonrelay/internal/domain/model"
	"github.com/ivankudzin/anonrelay/internal/services/disclosure"
)

func TestHealthz(t *testing.T) {
	handler := NewHandler(&fakeConfirmer{}, nil, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestPaymentWebhookConfirms(t *testing.T) {
	confirmer := &fakeConfirmer{known: map[string]bool{"token-1": true}}
	handler := NewHandler(confirmer, nil, nil)

	body := `{"payload": "token-1", "charge_id": "charge-abc"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if confirmer.lastPayload != "token-1" || confirmer.lastChargeID != "charge-abc" {
		t.Fatalf("confirmer got payload=%q charge=%q", confirmer.lastPayload, confirmer.lastChargeID)
	}
	if !strings.Contains(rec.Body.String(), model.DisclosureStatusCompleted) {
		t.Fatalf("response must report the row status, got %s", rec.Body.String())
	}
}

func TestPaymentWebhookUnknownPayload(t *testing.T) {
	handler := NewHandler(&fakeConfirmer{}, nil, nil)

	body := `{"payload": "no-such-token", "charge_id": "charge-abc"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body)))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPaymentWebhookRejectsMalformedBody(t *testing.T) {
	handler := NewHandler(&fakeConfirmer{}, nil, nil)

	for _, body := range []string{"{not json", `{"payload": "", "charge_id": "x"}`, `{"payload": "x", "charge_id": ""}`} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

type fakeConfirmer struct {
	known        map[string]bool
	lastPayload  string
	lastChargeID string
}

func (f *fakeConfirmer) ConfirmPayment(_ context.Context, payload, chargeID string, now time.Time) (model.Disclosure, error) {
	if !f.known[payload] {
		return model.Disclosure{}, disclosure.ErrUnknownPayload
	}
	f.lastPayload = payload
	f.lastChargeID = chargeID
	return model.Disclosure{
		Payload:     payload,
		Status:      model.DisclosureStatusCompleted,
		ChargeID:    chargeID,
		CompletedAt: &now,
	}, nil
}
