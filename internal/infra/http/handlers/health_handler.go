package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const Version = "1.0.0"

type Pinger interface {
	Ping(ctx context.Context) error
}

type QueueHealth interface {
	Healthy() bool
}

type HealthHandler struct {
	Store              Pinger
	Queue              QueueHealth
	TelegramConfigured bool
	StartTime          time.Time
	Now                func() time.Time
}

type HealthResponse struct {
	Success      bool              `json:"success"`
	Message      string            `json:"message"`
	Status       string            `json:"status"`
	Version      string            `json:"version"`
	Uptime       string            `json:"uptime"`
	Timestamp    string            `json:"timestamp"`
	Dependencies map[string]string `json:"dependencies"`
	Routes       map[string]string `json:"routes"`
}

type ServiceHealthResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// NewHealthHandler takes nil store or queue to mean "not configured".
func NewHealthHandler(store Pinger, queue QueueHealth, telegramConfigured bool) *HealthHandler {
	return &HealthHandler{
		Store:              store,
		Queue:              queue,
		TelegramConfigured: telegramConfigured,
		StartTime:          time.Now(),
		Now:                time.Now,
	}
}

const (
	depHealthy       = "healthy"
	depConfigured    = "configured"
	depNotConfigured = "not configured"
)

// Handle serves the server-level health with dependency checks. Any
// dependency that is configured but failing makes the service degraded.
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	deps := map[string]string{
		"database": h.storeState(r.Context()),
		"rabbitmq": h.queueState(),
		"telegram": depNotConfigured,
	}
	if h.TelegramConfigured {
		deps["telegram"] = depConfigured
	}

	status, code := depHealthy, http.StatusOK
	for name, state := range deps {
		if state != depHealthy && state != depConfigured && state != depNotConfigured {
			zap.L().Warn("health: dependency degraded", zap.String("dependency", name), zap.String("state", state))
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}

	now := h.Now()
	writeJSON(w, code, HealthResponse{
		Success:      code == http.StatusOK,
		Message:      "Server is running",
		Status:       status,
		Version:      Version,
		Uptime:       now.Sub(h.StartTime).Round(time.Second).String(),
		Timestamp:    now.UTC().Format(time.RFC3339),
		Dependencies: deps,
		Routes:       endpointIndex,
	})
}

func (h *HealthHandler) storeState(ctx context.Context) string {
	if h.Store == nil {
		return depNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		zap.L().Warn("health: database ping failed", zap.Error(err))
		return "unhealthy"
	}
	return depHealthy
}

func (h *HealthHandler) queueState() string {
	switch {
	case h.Queue == nil:
		return depNotConfigured
	case h.Queue.Healthy():
		return depHealthy
	default:
		return "unhealthy"
	}
}

// HandleService is the lightweight liveness check mounted under the API
// prefixes.
func (h *HealthHandler) HandleService(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ServiceHealthResponse{
		Success:   true,
		Message:   "Analytics service is running",
		Timestamp: h.Now().UTC().Format(time.RFC3339),
	})
}
