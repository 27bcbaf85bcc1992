package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/taskquest/taskquest/internal/engine"
	"github.com/taskquest/taskquest/internal/handler"
	"github.com/taskquest/taskquest/internal/middleware"
	"github.com/taskquest/taskquest/internal/store"
	ws "github.com/taskquest/taskquest/internal/websocket"
)

type Server struct {
	db                *sql.DB
	hub               *ws.Hub
	engine            *engine.Engine
	authH             *handler.AuthHandler
	childH            *handler.ChildHandler
	taskH             *handler.TaskHandler
	rewardH           *handler.RewardHandler
	claimH            *handler.ClaimHandler
	notificationH     *handler.NotificationHandler
	activityH         *handler.ActivityHandler
	sessionStore      *store.SessionStore
	userStore         *store.UserStore
	notificationStore *store.NotificationStore
	rateLimiter       *middleware.RateLimiter
	logger            *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	taskStore := store.NewTaskStore(db)
	rewardStore := store.NewRewardStore(db)
	claimStore := store.NewClaimStore(db)
	notificationStore := store.NewNotificationStore(db)
	activityStore := store.NewActivityStore(db)

	eng := engine.New(db, logger.With("component", "engine"))

	return &Server{
		db:                db,
		hub:               hub,
		engine:            eng,
		authH:             handler.NewAuthHandler(userStore, sessionStore, logger.With("component", "auth")),
		childH:            handler.NewChildHandler(userStore, hub, logger.With("component", "child")),
		taskH:             handler.NewTaskHandler(taskStore, userStore, eng, hub, logger.With("component", "task")),
		rewardH:           handler.NewRewardHandler(rewardStore, userStore, claimStore, eng, hub, logger.With("component", "reward")),
		claimH:            handler.NewClaimHandler(claimStore, eng, hub, logger.With("component", "claim")),
		notificationH:     handler.NewNotificationHandler(notificationStore, eng, logger.With("component", "notification")),
		activityH:         handler.NewActivityHandler(activityStore, logger.With("component", "activity")),
		sessionStore:      sessionStore,
		userStore:         userStore,
		notificationStore: notificationStore,
		rateLimiter:       middleware.NewRateLimiter(),
		logger:            logger,
	}
}

// Engine returns the transition engine, for wiring the daily-reset sweeper.
func (s *Server) Engine() *engine.Engine {
	return s.engine
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// NotificationStore returns the notification store for cleanup tasks.
func (s *Server) NotificationStore() *store.NotificationStore {
	return s.notificationStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes behind RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)

	// Child account management
	mux.HandleFunc("GET /api/children", s.childH.List)
	mux.HandleFunc("POST /api/children", s.childH.Create)
	mux.HandleFunc("PUT /api/children/{id}", s.childH.Update)
	mux.HandleFunc("DELETE /api/children/{id}", s.childH.Delete)

	// Task API routes
	mux.HandleFunc("POST /api/tasks", s.taskH.Create)
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.HandleFunc("PUT /api/tasks/{id}", s.taskH.Update)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.taskH.Delete)
	mux.HandleFunc("POST /api/tasks/{id}/complete", s.taskH.Complete)

	// Reward API routes
	mux.HandleFunc("POST /api/rewards", s.rewardH.Create)
	mux.HandleFunc("GET /api/rewards", s.rewardH.List)
	mux.HandleFunc("PUT /api/rewards/{id}", s.rewardH.Update)
	mux.HandleFunc("DELETE /api/rewards/{id}", s.rewardH.Delete)
	mux.HandleFunc("POST /api/rewards/{id}/redeem", s.rewardH.Redeem)

	// Claim API routes
	mux.HandleFunc("GET /api/claims", s.claimH.List)
	mux.HandleFunc("GET /api/claims/{id}", s.claimH.Get)
	mux.HandleFunc("POST /api/claims/{id}/approve", s.claimH.Approve)
	mux.HandleFunc("POST /api/claims/{id}/deny", s.claimH.Deny)

	// Notification API routes
	mux.HandleFunc("GET /api/notifications", s.notificationH.List)
	mux.HandleFunc("POST /api/notifications/{id}/read", s.notificationH.MarkRead)

	// Activity feed
	mux.HandleFunc("GET /api/activities", s.activityH.List)

	// WebSocket for live sync
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}
