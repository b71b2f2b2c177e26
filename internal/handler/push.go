package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/mealplan/internal/auth"
	"github.com/dukerupert/mealplan/internal/store"
)

type PushHandler struct {
	profiles  *store.ProfileStore
	pushStore *store.PushStore
	publicKey string
	logger    *slog.Logger
}

func NewPushHandler(profiles *store.ProfileStore, ps *store.PushStore, publicKey string, logger *slog.Logger) *PushHandler {
	return &PushHandler{profiles: profiles, pushStore: ps, publicKey: publicKey, logger: logger}
}

// subscribeRequest mirrors the browser's PushSubscription.toJSON().
type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
	DeviceName string `json:"deviceName"`
}

// Subscribe handles POST /push/subscribe
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req subscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint, keys.p256dh, and keys.auth are required")
		return
	}

	p, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("get profile", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "No profile found")
		return
	}

	sub, err := h.pushStore.Upsert(r.Context(), userID, req.Endpoint, req.Keys.P256dh, req.Keys.Auth, req.DeviceName)
	if err != nil {
		h.logger.Error("save push subscription", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

// VAPIDKey handles GET /push/vapid-key
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.publicKey == "" {
		writeError(w, http.StatusNotFound, "push notifications are not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": h.publicKey})
}
