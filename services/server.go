package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/anvekars/mockmate/backend/models"
	"github.com/anvekars/mockmate/backend/repository"
	ws "github.com/anvekars/mockmate/backend/websocket"
)

// wsCloseAuthFailure is the close code sent when a websocket client
// fails authentication after the upgrade.
const wsCloseAuthFailure = 4001

// Server holds all server dependencies
type Server struct {
	config      *Config
	gormDB      *repository.GORMRepository
	rawDB       *gorm.DB
	redisClient *redis.Client

	authService       *AuthService
	interviewService  *InterviewService
	feedbackService   *FeedbackService
	eventLogger       *EventLogger
	questionGenerator *QuestionGenerator
	resumeParser      *ResumeParser
	storageService    *StorageService
	orchestrator      *Orchestrator

	authEndpoints      *AuthEndpoints
	interviewEndpoints *InterviewEndpoints
	feedbackEndpoints  *FeedbackEndpoints
	resumeEndpoints    *ResumeEndpoints

	wsHub    *ws.Hub
	upgrader websocket.Upgrader
}

// NewServer creates a new server instance
func NewServer(config *Config) *Server {
	return &Server{
		config: config,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, config.WebSocket.AllowedOrigins)
			},
		},
	}
}

// SetDatabase sets the database connection
func (s *Server) SetDatabase(db *repository.GORMRepository, rawDB *gorm.DB) {
	s.gormDB = db
	s.rawDB = rawDB
}

// InitializeServices initializes all server services
func (s *Server) InitializeServices() error {
	if s.config.Redis.URL != "" {
		opts, err := redis.ParseURL(s.config.Redis.URL)
		if err != nil {
			slog.Error("Invalid Redis URL, rate limiting will use the database", "error", err)
		} else {
			s.redisClient = redis.NewClient(opts)
			slog.Info("Redis client initialized")
		}
	}

	s.questionGenerator = NewQuestionGenerator(s.config.AI.GeminiAPIKey, s.config.AI.GeminiModel)
	s.resumeParser = NewResumeParser(s.config.AI.GeminiAPIKey, s.config.AI.GeminiModel)
	s.storageService = NewStorageService(s.config.Storage)

	if s.gormDB != nil {
		s.interviewService = NewInterviewService(s.gormDB, s.redisClient, s.config.Interview.DailyLimit)
		s.eventLogger = NewEventLogger(s.gormDB)
		generator := NewFeedbackGenerator(s.config.AI.GeminiAPIKey, s.config.AI.GeminiModel)
		s.feedbackService = NewFeedbackService(s.gormDB, generator)

		var newVoice func() VoiceClient
		if s.config.Realtime.Endpoint != "" && s.config.Realtime.APIKey != "" {
			realtimeCfg := s.config.Realtime
			newVoice = func() VoiceClient {
				return NewRealtimeClient(realtimeCfg)
			}
			slog.Info("Realtime voice configured", "deployment", realtimeCfg.Deployment)
		} else {
			slog.Warn("Realtime voice not configured, sessions will run text-only")
		}

		s.orchestrator = NewOrchestrator(
			s.config.Interview,
			s.interviewService,
			s.gormDB,
			s.eventLogger,
			s.questionGenerator,
			newVoice,
		)

		s.interviewEndpoints = NewInterviewEndpoints(s.interviewService, s.eventLogger, s.storageService)
		s.feedbackEndpoints = NewFeedbackEndpoints(s.feedbackService)
		s.resumeEndpoints = NewResumeEndpoints(s.gormDB, s.resumeParser, s.storageService)
		slog.Info("Interview services initialized")
	}

	if s.config.JWT.Secret != "" && s.gormDB != nil {
		s.authService = NewAuthService(s.gormDB, s.config.JWT.Secret)
		s.authEndpoints = NewAuthEndpoints(s.authService)
		slog.Info("Authentication service initialized")
	}

	s.wsHub = ws.NewHub()
	go s.wsHub.Run()

	return nil
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(s.config.WebSocket.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		if s.authEndpoints != nil {
			s.authEndpoints.RegisterRoutes(r)
		}

		// The session websocket authenticates itself so it can close
		// with a dedicated code instead of failing the HTTP upgrade.
		r.Get("/interviews/{sessionID}/ws", s.sessionWebSocketHandler)

		if s.authService != nil {
			r.Group(func(r chi.Router) {
				r.Use(s.authService.Middleware)
				if s.interviewEndpoints != nil {
					s.interviewEndpoints.RegisterRoutes(r)
				}
				if s.feedbackEndpoints != nil {
					s.feedbackEndpoints.RegisterRoutes(r)
				}
				if s.resumeEndpoints != nil {
					s.resumeEndpoints.RegisterRoutes(r)
				}
			})
		}
	})

	return r
}

// Start starts the HTTP server
func (s *Server) Start() {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: s.SetupRoutes(),
	}

	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

// CheckOrigin validates the origin of WebSocket connections to prevent
// CSRF attacks. An empty allowlist denies everything.
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	for _, allowed := range splitOrigins(allowedOriginsStr) {
		if allowed == origin {
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

func splitOrigins(allowedOriginsStr string) []string {
	parts := strings.Split(allowedOriginsStr, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "not configured"

	if s.rawDB != nil {
		if sqlDB, err := s.rawDB.DB(); err == nil {
			if err := sqlDB.Ping(); err != nil {
				dbStatus = "down"
				status = "degraded"
			} else {
				dbStatus = "up"
			}
		} else {
			dbStatus = "down"
			status = "degraded"
		}
	}

	sessions := 0
	if s.wsHub != nil {
		sessions = s.wsHub.ClientCount()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":%q,"database":%q,"active_sessions":%d}`, status, dbStatus, sessions)
}

// sessionWebSocketHandler upgrades the candidate connection and runs
// the interview session loop on it. Authentication failures close the
// socket with a dedicated code so the frontend can distinguish them
// from network errors.
func (s *Server) sessionWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err, "session_id", sessionID)
		return
	}

	user := s.authenticateWS(r)
	if user == nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(wsCloseAuthFailure, "authentication failed"))
		conn.Close()
		return
	}

	interview, err := s.interviewService.GetSession(r.Context(), sessionID, user.ID)
	if err != nil || interview.Status != models.StatusPending {
		msg := "session not found"
		if err == nil {
			msg = "session is " + interview.Status
		}
		// Written straight to the socket; the hub only tracks
		// connections that run a session.
		conn.WriteJSON(ws.ErrorMessage{Type: "error", Message: msg})
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
		return
	}

	slog.Info("Session WebSocket established", "user_id", user.ID, "session_id", sessionID)

	client := s.wsHub.RegisterClient(conn, user.ID, sessionID)
	go client.ReadPump()
	go client.WritePump()

	if err := s.orchestrator.Run(r.Context(), client, interview); err != nil {
		slog.Error("Session loop failed", "error", err, "session_id", sessionID)
	}

	// Give the final messages a moment to flush before tearing down.
	time.Sleep(250 * time.Millisecond)
	client.Shutdown()
	conn.Close()
}

// authenticateWS resolves the user from the access token cookie or,
// for clients that cannot set cookies on websocket requests, a token
// query parameter.
func (s *Server) authenticateWS(r *http.Request) *models.User {
	if s.authService == nil {
		return nil
	}

	token := s.authService.GetTokenFromCookie(r, "access_token")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return nil
	}

	user, err := s.authService.VerifyAccessToken(r.Context(), token)
	if err != nil {
		slog.Warn("WebSocket authentication failed", "error", err)
		return nil
	}
	return user
}
