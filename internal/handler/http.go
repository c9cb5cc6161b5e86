package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/geometry-runner/internal/domain"
	"github.com/geometry-runner/internal/game"
	"github.com/geometry-runner/internal/service"
	"github.com/geometry-runner/internal/session"
	"github.com/geometry-runner/internal/websocket"
)

// Handler provides HTTP handlers for the game API
type Handler struct {
	service  *service.GameService
	hub      *websocket.Hub
	sessions *session.Manager
	deviceKV func(deviceID string) game.KV
	logger   *slog.Logger
}

// NewHandler creates a new HTTP handler. deviceKV scopes local-best
// storage to one device; it may be nil when play connections are not
// served.
func NewHandler(svc *service.GameService, hub *websocket.Hub, sessions *session.Manager, deviceKV func(deviceID string) game.KV, logger *slog.Logger) *Handler {
	return &Handler{
		service:  svc,
		hub:      hub,
		sessions: sessions,
		deviceKV: deviceKV,
		logger:   logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// LoginRequest identifies a player by display name. A new name creates
// the player.
type LoginRequest struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
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

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// WebSocket endpoints
	r.Get("/ws/leaderboard", h.HandleLeaderboardSocket)
	r.Get("/ws/play", h.HandlePlaySocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Player operations
		r.Post("/players", h.Login)
		r.Route("/players/{playerID}", func(r chi.Router) {
			r.Get("/", h.GetPlayer)
			r.Get("/ranking", h.GetPlayerRanking)
			r.Get("/scores", h.GetPlayerScores)
		})

		// External run ingestion
		r.Post("/runs", h.SubmitRun)

		// Leaderboard reads
		r.Get("/leaderboard/top", h.GetTop)

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// HandleLeaderboardSocket upgrades spectator connections
func (h *Handler) HandleLeaderboardSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// HandlePlaySocket upgrades a play connection and starts a game
// session for the named player. The device query parameter scopes the
// local best; it defaults to the player id.
func (h *Handler) HandlePlaySocket(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	email := r.URL.Query().Get("email")

	player, err := h.service.ResolvePlayer(r.Context(), name, email)
	if err != nil {
		h.logger.Error("failed to resolve player for play connection", "name", name, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	deviceID := r.URL.Query().Get("device")
	if deviceID == "" {
		deviceID = player.ID
	}

	keeper := game.NewScoreKeeper(h.deviceKV(deviceID))
	if err := keeper.Load(r.Context()); err != nil {
		// A cold start with best 0 beats refusing the connection.
		h.logger.Warn("failed to load local best", "device", deviceID, "error", err)
	}

	websocket.ServePlay(h.sessions, player.ID, keeper, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
		"active_sessions":   h.sessions.Active(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck probes the durable store and reports readiness
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.CountScores(r.Context())
	if err != nil {
		h.logger.Error("readiness probe failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, domain.ErrInternalError)
		return
	}
	h.writeSuccess(w, map[string]interface{}{
		"status":     "ready",
		"score_rows": count,
	})
}

// Login resolves a display name to a player, creating it on first use
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	player, err := h.service.ResolvePlayer(r.Context(), req.Name, req.Email)
	if err != nil {
		if err == domain.ErrInvalidRequest {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		h.logger.Error("failed to resolve player", "name", req.Name, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, player)
}

// GetPlayer returns a player by ID
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	player, err := h.service.Player(r.Context(), playerID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get player", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, player)
}

// GetPlayerRanking returns a player's aggregated standing
func (h *Handler) GetPlayerRanking(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	ranking, err := h.service.RankingFor(r.Context(), playerID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get player ranking", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, ranking)
}

// GetPlayerScores returns a player's recent runs, newest first
func (h *Handler) GetPlayerScores(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	scores, err := h.service.PlayerScores(r.Context(), playerID, limit)
	if err != nil {
		if domain.IsNotFoundError(err) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get player scores", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, scores)
}

// SubmitRun ingests an externally produced run result
func (h *Handler) SubmitRun(w http.ResponseWriter, r *http.Request) {
	var event domain.RunEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if event.PlayerName == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	player, err := h.service.SubmitRun(r.Context(), event)
	if err != nil {
		if err == domain.ErrInvalidScore || err == domain.ErrInvalidRequest {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		h.logger.Error("failed to submit run", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, map[string]interface{}{
		"status":    "accepted",
		"player_id": player.ID,
	})
}

// GetTop returns the top N leaderboard entries
func (h *Handler) GetTop(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	entries, err := h.service.TopPlayers(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to get top players", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, entries)
}
