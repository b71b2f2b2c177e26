package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/mealplan/internal/auth"
	"github.com/dukerupert/mealplan/internal/store"
)

type ProfileHandler struct {
	profiles *store.ProfileStore
	logger   *slog.Logger
}

func NewProfileHandler(ps *store.ProfileStore, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: ps, logger: logger}
}

// Create handles POST /create-profile. It is safe to call on every visit:
// an existing profile is left alone.
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.FromContext(r.Context())
	if u.Email == "" {
		writeError(w, http.StatusBadRequest, "Email not found")
		return
	}

	_, created, err := h.profiles.Create(r.Context(), u.ID, u.Name, u.Email)
	if err != nil {
		h.logger.Error("create profile", "user_id", u.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if !created {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Profile already exists"})
		return
	}

	h.logger.Info("profile created", "user_id", u.ID)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Profile created successfully"})
}

// SubscriptionStatus handles GET /subscription-status?userId=.
func (h *ProfileHandler) SubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "Missing user ID")
		return
	}

	p, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("get profile", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"subscriptionActive": p.SubscriptionActive})
}

// Mine handles GET /profile/subscription-status for the signed-in user.
func (h *ProfileHandler) Mine(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	p, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("get profile", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "No profile found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"subscription": p})
}
