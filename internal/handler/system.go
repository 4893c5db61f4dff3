package handler

import (
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"
)

type SystemHandler struct {
	db      *sqlx.DB
	version string
	logger  *slog.Logger
}

func NewSystemHandler(db *sqlx.DB, version string, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{db: db, version: version, logger: logger}
}

// Health reports 503 when the database does not answer a ping.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		h.logger.Error("health check", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *SystemHandler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": h.version})
}
