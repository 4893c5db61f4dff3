package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/cadence/internal/auth"
	"github.com/dukerupert/cadence/internal/store"
)

// tokenQueryParam carries the bearer token on WebSocket upgrades, where
// browsers cannot set an Authorization header.
const tokenQueryParam = "access_token"

// RequireAuth verifies the bearer token, checks that its session is still
// live, and populates AuthContext. Failures get a JSON 401.
func RequireAuth(tokens *auth.Tokens, sessions *store.SessionStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				unauthorized(w)
				return
			}

			claims, err := tokens.Parse(raw)
			if err != nil {
				logger.Debug("rejected token", "error", err, "remote", RealIP(r))
				unauthorized(w)
				return
			}
			userID, err := claims.UserID()
			if err != nil {
				unauthorized(w)
				return
			}

			sess, err := sessions.GetByTokenID(r.Context(), claims.ID)
			if err != nil {
				logger.Error("load session", "error", err)
				writeJSONError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if sess == nil || sess.UserID != userID {
				unauthorized(w)
				return
			}

			ctx := auth.WithAuth(r.Context(), auth.AuthContext{UserID: sess.UserID, SessionID: sess.ID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get(tokenQueryParam)
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="cadence"`)
	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
