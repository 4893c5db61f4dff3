package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/cadence/internal/auth"
)

// HandleWebSocket upgrades an authenticated request and streams the
// caller's change notifications until the connection closes. An empty
// originPatterns accepts same-origin requests only.
func HandleWebSocket(hub *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if userID == 0 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			logger.Warn("websocket accept", "error", err, "user_id", userID)
			return
		}
		defer conn.CloseNow()

		NewClient(hub, conn, userID).Run(r.Context())
	}
}
