package opsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ivankudzin/anonrelay/internal/config"
	"github.com/ivankudzin/anonrelay/internal/domain/model"
	"github.com/ivankudzin/anonrelay/internal/services/disclosure"
)

// PaymentConfirmer is the disclosure service surface the webhook needs.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, payload, chargeID string, now time.Time) (model.Disclosure, error)
}

// App is the ops HTTP server: liveness plus the payment-provider webhook.
// Payment confirmations arriving here and via the Telegram update funnel
// into the same idempotent transition, so double delivery is harmless.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	server *http.Server
}

func New(cfg config.Config, logger *zap.Logger, confirmer PaymentConfirmer, clk clock.Clock) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if clk == nil {
		clk = clock.New()
	}

	server := &http.Server{
		Addr:         cfg.Ops.Addr,
		Handler:      NewHandler(confirmer, clk, logger),
		ReadTimeout:  cfg.Ops.ReadTimeout,
		WriteTimeout: cfg.Ops.WriteTimeout,
	}

	return &App{cfg: cfg, logger: logger, server: server}, nil
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("ops server started", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown ops server: %w", err)
		}
		a.logger.Info("ops server stopped")
		return nil
	case err := <-errCh:
		return err
	}
}

// NewHandler builds the ops route tree. Split from App so tests can hit the
// handler directly with httptest.
func NewHandler(confirmer PaymentConfirmer, clk clock.Clock, logger *zap.Logger) http.Handler {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/webhooks/payment", paymentWebhook(confirmer, clk, logger))
	return r
}

type paymentWebhookRequest struct {
	Payload  string `json:"payload"`
	ChargeID string `json:"charge_id"`
}

func paymentWebhook(confirmer PaymentConfirmer, clk clock.Clock, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if confirmer == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "payment confirmer is not configured"})
			return
		}

		var body paymentWebhookRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed json body"})
			return
		}
		body.Payload = strings.TrimSpace(body.Payload)
		body.ChargeID = strings.TrimSpace(body.ChargeID)
		if body.Payload == "" || body.ChargeID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payload and charge_id are required"})
			return
		}

		result, err := confirmer.ConfirmPayment(req.Context(), body.Payload, body.ChargeID, clk.Now())
		if err != nil {
			if errors.Is(err, disclosure.ErrUnknownPayload) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown payment payload"})
				return
			}
			logger.Error("confirm payment via webhook", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "payment confirmation failed"})
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"status":  result.Status,
			"payload": result.Payload,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
