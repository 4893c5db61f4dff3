package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/cadence/internal/auth"
	"github.com/dukerupert/cadence/internal/calendar"
	"github.com/dukerupert/cadence/internal/handler"
	"github.com/dukerupert/cadence/internal/metrics"
	"github.com/dukerupert/cadence/internal/middleware"
	"github.com/dukerupert/cadence/internal/sequence"
	"github.com/dukerupert/cadence/internal/stats"
	"github.com/dukerupert/cadence/internal/store"
	"github.com/dukerupert/cadence/internal/streak"
	"github.com/dukerupert/cadence/internal/todo"
	ws "github.com/dukerupert/cadence/internal/websocket"
)

// Options carries the settings the router needs from configuration.
type Options struct {
	Version        string
	Location       *time.Location
	Clock          calendar.Clock
	JWTSecret      string
	SessionTTL     time.Duration
	Retry          handler.RetryPolicy
	OriginPatterns []string
	// AuthRateLimit caps login and register attempts per client IP per minute.
	AuthRateLimit int
}

type Server struct {
	hub            *ws.Hub
	tokens         *auth.Tokens
	systemH        *handler.SystemHandler
	authH          *handler.AuthHandler
	todoH          *handler.TodoHandler
	collectionH    *handler.CollectionHandler
	checkInH       *handler.CheckInHandler
	sessionH       *handler.SessionHandler
	sessionStore   *store.SessionStore
	rateLimiter    *middleware.RateLimiter
	originPatterns []string
	authRateLimit  int
	logger         *slog.Logger
}

func New(db *sqlx.DB, opts Options, logger *slog.Logger) *Server {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.AuthRateLimit <= 0 {
		opts.AuthRateLimit = 10
	}

	hub := ws.NewHub(logger.With("component", "websocket"))
	tokens := auth.NewTokens(opts.JWTSecret)

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)

	streakSvc := streak.NewService(db, opts.Clock, opts.Location, logger)
	statsSvc := stats.NewService(db, streakSvc, opts.Clock, opts.Location, logger)
	seqSvc := sequence.NewService(db, opts.Clock, logger)
	todoSvc := todo.NewService(db, opts.Clock, logger)

	return &Server{
		hub:            hub,
		tokens:         tokens,
		systemH:        handler.NewSystemHandler(db, opts.Version, logger.With("component", "system")),
		authH:          handler.NewAuthHandler(userStore, sessionStore, tokens, opts.SessionTTL, logger.With("component", "auth")),
		todoH:          handler.NewTodoHandler(todoSvc, opts.Location, hub, opts.Retry, logger.With("component", "todo_handler")),
		collectionH:    handler.NewCollectionHandler(seqSvc, hub, opts.Retry, logger.With("component", "collection_handler")),
		checkInH:       handler.NewCheckInHandler(streakSvc, hub, logger.With("component", "checkin_handler")),
		sessionH:       handler.NewSessionHandler(statsSvc, hub, logger.With("component", "session_handler")),
		sessionStore:   sessionStore,
		rateLimiter:    middleware.NewRateLimiter(),
		originPatterns: opts.OriginPatterns,
		authRateLimit:  opts.AuthRateLimit,
		logger:         logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()
	public := routes{mux: outerMux}

	// Public routes (no auth required)
	public.handle("GET /health", s.systemH.Health)
	public.handle("GET /version", s.systemH.Version)
	public.mux.Handle("GET /metrics", middleware.Instrument("GET /metrics")(metrics.Handler()))
	public.handle("POST /auth/register", s.rateLimitedHandler(s.authH.Register))
	public.handle("POST /auth/login", s.rateLimitedHandler(s.authH.Login))

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(routes{mux: protectedMux})

	authMiddleware := middleware.RequireAuth(s.tokens, s.sessionStore, s.logger.With("component", "auth"))
	outerMux.Handle("/", authMiddleware(protectedMux))

	// Apply request logging middleware
	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, s.authRateLimit, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux routes) {
	// Auth routes that require authentication
	mux.handle("POST /auth/logout", s.authH.Logout)
	mux.handle("GET /auth/me", s.authH.Me)

	// To-do API routes
	mux.handle("GET /api/todos", s.todoH.List)
	mux.handle("POST /api/todos", s.todoH.Create)
	mux.handle("GET /api/todos/{id}", s.todoH.Get)
	mux.handle("PUT /api/todos/{id}", s.todoH.Update)
	mux.handle("DELETE /api/todos/{id}", s.todoH.Delete)
	mux.handle("POST /api/todos/{id}/toggle", s.todoH.Toggle)
	mux.handle("PUT /api/todos/{id}/focus-time", s.todoH.SetFocusTime)

	// Collection API routes
	mux.handle("GET /api/collections", s.collectionH.List)
	mux.handle("POST /api/collections", s.collectionH.Create)
	mux.handle("GET /api/collections/{id}", s.collectionH.Get)
	mux.handle("PUT /api/collections/{id}", s.collectionH.Update)
	mux.handle("DELETE /api/collections/{id}", s.collectionH.Delete)
	mux.handle("GET /api/collections/{id}/items", s.collectionH.Items)
	mux.handle("POST /api/collections/{id}/items", s.collectionH.AddItem)
	mux.handle("DELETE /api/collections/{id}/items/{item_id}", s.collectionH.DeleteItem)
	mux.handle("POST /api/collections/{id}/items/{item_id}/toggle", s.collectionH.ToggleItem)
	mux.handle("PUT /api/collections/{id}/items/{item_id}/focus-time", s.collectionH.SetItemFocusTime)

	// Sequencer routes
	mux.handle("POST /api/collections/{id}/sequence/start", s.collectionH.Start)
	mux.handle("POST /api/collections/{id}/sequence/next", s.collectionH.Next)
	mux.handle("POST /api/collections/{id}/sequence/stop", s.collectionH.Stop)
	mux.handle("GET /api/collections/{id}/sequence/current", s.collectionH.Current)

	// Check-in API routes
	mux.handle("POST /api/check-ins", s.checkInH.Create)
	mux.handle("GET /api/check-ins", s.checkInH.History)
	mux.handle("GET /api/check-ins/streak", s.checkInH.Streak)
	mux.handle("GET /api/check-ins/today", s.checkInH.Today)

	// Focus session and statistics routes
	mux.handle("POST /api/sessions", s.sessionH.Create)
	mux.handle("GET /api/sessions", s.sessionH.List)
	mux.handle("GET /api/sessions/daily", s.sessionH.Daily)
	mux.handle("GET /api/sessions/weekly", s.sessionH.Weekly)
	mux.handle("GET /api/sessions/monthly", s.sessionH.Monthly)
	mux.handle("GET /api/statistics", s.sessionH.Statistics)

	// WebSocket
	mux.handle("GET /ws", ws.HandleWebSocket(s.hub, s.originPatterns, s.logger.With("component", "websocket")))
}

// routes registers handlers under their pattern and labels their metrics
// with it.
type routes struct {
	mux *http.ServeMux
}

func (rt routes) handle(pattern string, h http.HandlerFunc) {
	rt.mux.Handle(pattern, middleware.Instrument(pattern)(h))
}
