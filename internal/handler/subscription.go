package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/mealplan/internal/auth"
	"github.com/dukerupert/mealplan/internal/subscription"
)

type SubscriptionHandler struct {
	svc    *subscription.Service
	logger *slog.Logger
}

func NewSubscriptionHandler(svc *subscription.Service, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc, logger: logger}
}

// Plans handles GET /plans.
func (h *SubscriptionHandler) Plans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"plans": subscription.Plans()})
}

type checkoutRequest struct {
	PlanType string `json:"planType"`
	UserID   string `json:"userId"`
	Email    string `json:"email"`
}

// Checkout handles POST /checkout.
func (h *SubscriptionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PlanType == "" || req.UserID == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "Plan type, user ID, and email are required")
		return
	}

	url, err := h.svc.StartCheckout(r.Context(), req.UserID, req.Email, req.PlanType)
	switch {
	case errors.Is(err, subscription.ErrInvalidPlan):
		writeError(w, http.StatusBadRequest, "Invalid plan type")
		return
	case errors.Is(err, subscription.ErrPriceNotConfigured):
		writeError(w, http.StatusBadRequest, "Invalid price ID")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Unsubscribe handles POST /unsubscribe. Refusals are reported in the body
// of a 200 response, which is what existing clients check for.
func (h *SubscriptionHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusOK, "Unauthorized")
		return
	}

	sub, err := h.svc.Cancel(r.Context(), userID)
	switch {
	case errors.Is(err, subscription.ErrProfileNotFound):
		writeError(w, http.StatusOK, "No profile found")
		return
	case errors.Is(err, subscription.ErrNoSubscription):
		writeError(w, http.StatusOK, "No active subscription found")
		return
	case err != nil:
		h.logger.Error("unsubscribe", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"subscription": sub})
}

type changePlanRequest struct {
	NewPlan string `json:"newPlan"`
}

// ChangePlan handles POST /profile/change-plan.
func (h *SubscriptionHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req changePlanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := h.svc.ChangePlan(r.Context(), userID, req.NewPlan)
	switch {
	case errors.Is(err, subscription.ErrInvalidPlan):
		writeError(w, http.StatusBadRequest, "Invalid plan type")
		return
	case errors.Is(err, subscription.ErrPriceNotConfigured):
		writeError(w, http.StatusBadRequest, "Invalid price ID")
		return
	case errors.Is(err, subscription.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "No profile found")
		return
	case errors.Is(err, subscription.ErrNoSubscription):
		writeError(w, http.StatusBadRequest, "No active subscription found")
		return
	case err != nil:
		h.logger.Error("change plan", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"subscription": p})
}
