package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/cadence/internal/apperr"
	"github.com/dukerupert/cadence/internal/auth"
	"github.com/dukerupert/cadence/internal/model"
	"github.com/dukerupert/cadence/internal/store"
)

type AuthHandler struct {
	users      *store.UserStore
	sessions   *store.SessionStore
	tokens     *auth.Tokens
	sessionTTL time.Duration
	base
}

func NewAuthHandler(us *store.UserStore, ss *store.SessionStore, tokens *auth.Tokens, sessionTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:      us,
		sessions:   ss,
		tokens:     tokens,
		sessionTTL: sessionTTL,
		base:       base{logger: logger},
	}
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=2,max=20"`
	Password string `json:"password" validate:"required,min=6,max=20"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.users.Create(r.Context(), req.Username, hash, strings.TrimSpace(req.Email))
	if errors.Is(err, apperr.ErrAlreadyExists) {
		writeJSON(w, http.StatusConflict, errorBody{Error: "username already taken", Code: "already_exists"})
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.users.GetByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if user == nil {
		h.badCredentials(w)
		return
	}
	ok, err := auth.CheckPassword(user.PasswordHash, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		h.badCredentials(w)
		return
	}

	sess, err := h.sessions.Create(r.Context(), user.ID, h.sessionTTL)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	token, err := h.tokens.Issue(user.ID, sess.TokenID, sess.CreatedAt, sess.ExpiresAt)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("user logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: sess.ExpiresAt, User: user})
}

// Logout revokes the session behind the presented token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), auth.SessionID(r.Context())); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if user == nil {
		h.fail(w, r, apperr.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) badCredentials(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid username or password"})
}
