package handlers

import (
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/catalogai/catalog-engine/pkg/config"
	"github.com/catalogai/catalog-engine/pkg/database"
	"github.com/catalogai/catalog-engine/pkg/llm"
)

// readinessCacheTTL bounds how often dependency checks actually run;
// load balancers probe far more frequently than the database needs to hear
// about it.
const readinessCacheTTL = 60 * time.Second

// HealthResponse contains service status and uptime.
type HealthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// ReadinessResponse reports per-dependency readiness.
type ReadinessResponse struct {
	Ready    bool              `json:"ready"`
	Checks   map[string]string `json:"checks"`
	CachedAt time.Time         `json:"cached_at"`
}

// HealthHandler handles health, ping and readiness endpoints.
type HealthHandler struct {
	cfg       *config.Config
	db        *database.DB
	ai        llm.Client
	logger    *zap.Logger
	startTime time.Time

	mu         sync.Mutex
	lastResult *ReadinessResponse
	lastCheck  time.Time
}

// NewHealthHandler creates a new HealthHandler. Readiness covers whichever
// of db and ai are non-nil.
func NewHealthHandler(cfg *config.Config, db *database.DB, ai llm.Client, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		cfg:       cfg,
		db:        db,
		ai:        ai,
		logger:    logger,
		startTime: time.Now(),
	}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
	mux.HandleFunc("GET /readiness", h.Readiness)
}

// Health handles GET /health requests. Liveness only; never touches
// dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "catalog-engine",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}

// Readiness handles GET /readiness requests. Dependency checks are cached
// for readinessCacheTTL and only one caller refreshes at a time.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.lastResult == nil || time.Since(h.lastCheck) > readinessCacheTTL {
		h.lastResult = h.runChecks(r)
		h.lastCheck = time.Now()
	}
	result := h.lastResult
	h.mu.Unlock()

	status := http.StatusOK
	if !result.Ready {
		status = http.StatusServiceUnavailable
	}

	if err := WriteJSON(w, status, result); err != nil {
		h.logger.Error("Failed to encode readiness response", zap.Error(err))
	}
}

func (h *HealthHandler) runChecks(r *http.Request) *ReadinessResponse {
	result := &ReadinessResponse{
		Ready:    true,
		Checks:   make(map[string]string),
		CachedAt: time.Now(),
	}

	if h.db != nil {
		if err := h.db.Pool.Ping(r.Context()); err != nil {
			h.logger.Warn("Readiness database check failed", zap.Error(err))
			result.Ready = false
			result.Checks["database"] = "unavailable: " + err.Error()
		} else {
			result.Checks["database"] = "ok"
		}
	}

	if h.ai != nil {
		if err := h.ai.Ping(r.Context()); err != nil {
			h.logger.Warn("Readiness AI provider check failed", zap.Error(err))
			result.Ready = false
			result.Checks["ai_provider"] = "unavailable: " + err.Error()
		} else {
			result.Checks["ai_provider"] = "ok"
		}
	}

	return result
}
