package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/mealplan/internal/auth"
)

// Handler upgrades signed-in requests and streams that user's profile
// updates. originPatterns restricts which pages may open the socket.
func Handler(hub *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			logger.Warn("websocket accept", "user_id", userID, "error", err)
			return
		}
		defer conn.CloseNow()

		NewClient(hub, conn, userID).Run(r.Context())
	}
}
