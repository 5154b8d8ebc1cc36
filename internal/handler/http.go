package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/userpets/internal/domain"
	"github.com/userpets/internal/duel"
	"github.com/userpets/internal/websocket"
)

// UserIDHeader carries the acting user set by the host gateway
const UserIDHeader = websocket.UserIDHeader

// PetService is the pet API used by the handlers
type PetService interface {
	GetOrCreatePet(ctx context.Context, userID int64) (*domain.Pet, error)
	GetPetByUser(ctx context.Context, userID int64) (*domain.Pet, error)
	AwardExperience(ctx context.Context, userID, amount int64, touchActionTime bool) (bool, error)
	Status(p *domain.Pet) *domain.PetStatus
}

// ActivityService runs user actions and profile pushes
type ActivityService interface {
	PerformAction(ctx context.Context, userID int64, action string) (*domain.PetStatus, error)
	UpdateProfile(ctx context.Context, profile *domain.UserProfile) error
}

// DuelService is the duel API used by the handlers
type DuelService interface {
	Algorithms() []duel.Info
	CreateChallenge(ctx context.Context, challengerPetID, opponentPetID int64) domain.ChallengeResult
	AcceptChallenge(ctx context.Context, duelID, userID int64) domain.ChallengeResult
	RejectChallenge(ctx context.Context, duelID, userID int64) domain.ChallengeResult
	GetDuel(ctx context.Context, duelID int64) (*domain.Duel, error)
	ListUserDuels(ctx context.Context, userID int64, limit int) ([]domain.Duel, error)
	Record(ctx context.Context, userID int64) (*domain.DuelRecord, error)
}

// TutorialService is the tutorial API used by the handlers
type TutorialService interface {
	List(ctx context.Context, userID int64) ([]domain.TutorialProgress, error)
	Complete(ctx context.Context, userID int64, key string) (bool, error)
}

// Pinger reports whether a backing service is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the handler dependencies
type Services struct {
	Pets      PetService
	Activity  ActivityService
	Duels     DuelService
	Tutorials TutorialService
}

// Handler provides HTTP handlers for the pet API
type Handler struct {
	pets      PetService
	activity  ActivityService
	duels     DuelService
	tutorials TutorialService
	hub       *websocket.Hub
	checks    map[string]Pinger
	logger    *slog.Logger
}

// NewHandler creates a new HTTP handler. checks are consulted by /ready.
func NewHandler(svc Services, hub *websocket.Hub, checks map[string]Pinger, logger *slog.Logger) *Handler {
	return &Handler{
		pets:      svc.Pets,
		activity:  svc.Activity,
		duels:     svc.Duels,
		tutorials: svc.Tutorials,
		hub:       hub,
		checks:    checks,
		logger:    logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/pets/{userID}", func(r chi.Router) {
			r.Get("/", h.GetPet)
			r.Post("/actions", h.PerformAction)
			r.Post("/experience", h.AwardExperience)
			r.Get("/duels", h.ListPetDuels)
		})

		r.Route("/duels", func(r chi.Router) {
			r.Post("/", h.CreateChallenge)
			r.Get("/{duelID}", h.GetDuel)
			r.Post("/{duelID}/accept", h.AcceptChallenge)
			r.Post("/{duelID}/reject", h.RejectChallenge)
		})
		r.Get("/duel-algorithms", h.ListAlgorithms)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/tutorials", h.ListTutorials)
			r.Post("/tutorials/{key}/complete", h.CompleteTutorial)
			r.Put("/profile", h.UpdateProfile)
		})

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID, X-User-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data any) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, code string, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
		Code:    code,
	})
}

// writeServiceError maps a service error to its status code. Unknown errors
// are logged and hidden behind ErrInternalError.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	var cooldown *domain.CooldownError
	switch {
	case errors.As(err, &cooldown):
		h.writeJSON(w, http.StatusTooManyRequests, APIResponse{
			Success: false,
			Error:   err.Error(),
			Code:    "cooldown_active",
			Data:    map[string]int64{"cooldown_remaining": cooldown.RemainingSeconds()},
		})
	case errors.Is(err, domain.ErrPetNotFound):
		h.writeError(w, http.StatusNotFound, "pet_not_found", domain.ErrPetNotFound)
	case errors.Is(err, domain.ErrDuelNotFound):
		h.writeError(w, http.StatusNotFound, "duel_not_found", domain.ErrDuelNotFound)
	case errors.Is(err, domain.ErrTutorialNotFound):
		h.writeError(w, http.StatusNotFound, "tutorial_not_found", domain.ErrTutorialNotFound)
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, domain.ErrInvalidAction):
		h.writeError(w, http.StatusBadRequest, "invalid_action", err)
	case errors.Is(err, domain.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, "invalid_request", domain.ErrInvalidRequest)
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrNotDuelOpponent), errors.Is(err, domain.ErrUserDisabled):
		h.writeError(w, http.StatusForbidden, "forbidden", err)
	case errors.Is(err, domain.ErrPetConflict), errors.Is(err, domain.ErrDuelNotPending), errors.Is(err, domain.ErrDuelExists):
		h.writeError(w, http.StatusConflict, "conflict", err)
	default:
		h.logger.Error(msg, "error", err, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()))
		h.writeError(w, http.StatusInternalServerError, "internal_error", domain.ErrInternalError)
	}
}

// pathID parses a positive integer URL parameter
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// actingUser returns the user the gateway authenticated
func actingUser(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get(UserIDHeader), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// requireSelf checks that the acting user is the user in the path
func (h *Handler) requireSelf(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := pathID(r, "userID")
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid_request", domain.ErrInvalidRequest)
		return 0, false
	}
	acting, ok := actingUser(r)
	if !ok || acting != userID {
		h.writeError(w, http.StatusForbidden, "forbidden", domain.ErrForbidden)
		return 0, false
	}
	return userID, true
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.hub.GetStats())
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck pings every backing service
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	results := make(map[string]string, len(h.checks))
	ready := true
	for name, check := range h.checks {
		if err := check.Ping(r.Context()); err != nil {
			h.logger.Warn("readiness check failed", "dependency", name, "error", err)
			results[name] = "unavailable"
			ready = false
			continue
		}
		results[name] = "ok"
	}

	if !ready {
		h.writeJSON(w, http.StatusServiceUnavailable, APIResponse{
			Success: false,
			Data:    results,
			Error:   "not ready",
		})
		return
	}
	results["status"] = "ready"
	h.writeSuccess(w, results)
}
