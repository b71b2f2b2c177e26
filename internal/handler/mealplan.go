package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/mealplan/internal/auth"
	"github.com/dukerupert/mealplan/internal/mealplan"
	"github.com/dukerupert/mealplan/internal/model"
	"github.com/dukerupert/mealplan/internal/store"
)

type MealPlanHandler struct {
	profiles *store.ProfileStore
	svc      *mealplan.Service
	logger   *slog.Logger
}

func NewMealPlanHandler(ps *store.ProfileStore, svc *mealplan.Service, logger *slog.Logger) *MealPlanHandler {
	return &MealPlanHandler{profiles: ps, svc: svc, logger: logger}
}

// Generate handles POST /generate-mealplan. Only users with an active
// subscription may generate plans.
func (h *MealPlanHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	p, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("get profile", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if p == nil || !p.SubscriptionActive {
		writeError(w, http.StatusForbidden, "An active subscription is required")
		return
	}

	var in model.MealPlanInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	plan, err := h.svc.Create(r.Context(), userID, in)
	if err != nil {
		h.logger.Error("generate meal plan", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate meal plan")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"mealPlan": plan})
}

// Latest handles GET /mealplan/latest.
func (h *MealPlanHandler) Latest(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	doc, err := h.svc.Latest(r.Context(), userID)
	if errors.Is(err, mealplan.ErrNoPlan) {
		writeError(w, http.StatusNotFound, "No meal plan found")
		return
	}
	if err != nil {
		h.logger.Error("load meal plan", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}
