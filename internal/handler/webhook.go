package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/mealplan/internal/billing"
	"github.com/dukerupert/mealplan/internal/metrics"
	"github.com/dukerupert/mealplan/internal/reconcile"
)

// Stripe caps event payloads well below this.
const maxWebhookBytes = 1 << 20

type eventHandler interface {
	Handle(ctx context.Context, ev billing.Event) reconcile.Outcome
}

type WebhookHandler struct {
	gateway    *billing.Gateway
	reconciler eventHandler
	logger     *slog.Logger
}

func NewWebhookHandler(g *billing.Gateway, rec eventHandler, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{gateway: g, reconciler: rec, logger: logger}
}

// HandleStripe handles POST /webhook. Verified events are always
// acknowledged; reconciliation problems are logged, not retried.
func (h *WebhookHandler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	eventType := "unknown"
	status := http.StatusOK
	defer func() {
		metrics.WebhookRequestsTotal.WithLabelValues(eventType, strconv.Itoa(status)).Inc()
		metrics.WebhookDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		status = http.StatusBadRequest
		writeError(w, status, "Could not read request body")
		return
	}

	ev, err := h.gateway.Parse(body, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, billing.ErrSecretNotConfigured):
		status = http.StatusInternalServerError
		h.logger.Error("webhook secret not configured")
		writeError(w, status, "Webhook not configured")
		return
	case errors.Is(err, billing.ErrInvalidSignature):
		status = http.StatusBadRequest
		h.logger.Warn("webhook signature rejected", "remote", r.RemoteAddr, "error", err)
		writeError(w, status, "Invalid signature")
		return
	case err != nil:
		status = http.StatusBadRequest
		h.logger.Warn("webhook event rejected", "error", err)
		writeError(w, status, err.Error())
		return
	}

	eventType = ev.Type
	outcome := h.reconciler.Handle(r.Context(), ev)
	h.logger.Debug("webhook processed", "event_id", ev.ID, "type", ev.Type, "outcome", outcome)

	writeJSON(w, status, map[string]string{"message": "Webhook received"})
}
