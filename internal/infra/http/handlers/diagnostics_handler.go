package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var endpointIndex = map[string]string{
	"analytics":    "/api/analytics/event (POST)",
	"lead":         "/api/lead (POST)",
	"health":       "/api/analytics/health (GET)",
	"serverHealth": "/health (GET)",
}

// DiagnosticsHandler serves the informational endpoints used while wiring up
// the frontend.
type DiagnosticsHandler struct {
	Router chi.Routes
	Now    func() time.Time
}

func NewDiagnosticsHandler(router chi.Routes) *DiagnosticsHandler {
	return &DiagnosticsHandler{Router: router, Now: time.Now}
}

func (h *DiagnosticsHandler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "KVIZ Analytics API",
		"version":   Version,
		"endpoints": endpointIndex,
	})
}

func (h *DiagnosticsHandler) LeadRequiresPost(w http.ResponseWriter, r *http.Request) {
	requiresPost(w, "This endpoint requires POST method. Use POST /api/lead")
}

func (h *DiagnosticsHandler) EventRequiresPost(w http.ResponseWriter, r *http.Request) {
	requiresPost(w, "This endpoint requires POST method. Use POST /api/analytics/event")
}

func requiresPost(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        false,
		"message":        message,
		"method":         http.MethodGet,
		"requiredMethod": http.MethodPost,
	})
}

// Echo returns the posted JSON back.
func (h *DiagnosticsHandler) Echo(w http.ResponseWriter, r *http.Request) {
	var body any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		body = nil
	}
	zap.L().Info("test endpoint called", zap.Any("body", body))

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Test endpoint works",
		"receivedData": body,
		"timestamp":    h.Now().UTC().Format(time.RFC3339),
	})
}

// Routes lists every registered method and pattern.
func (h *DiagnosticsHandler) Routes(w http.ResponseWriter, r *http.Request) {
	var routes []string
	if h.Router != nil {
		err := chi.Walk(h.Router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
			routes = append(routes, method+" "+strings.TrimSuffix(route, "/*"))
			return nil
		})
		if err != nil {
			zap.L().Error("walk routes failed", zap.Error(err))
		}
	}
	sort.Strings(routes)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Registered routes",
		"routes":    routes,
		"timestamp": h.Now().UTC().Format(time.RFC3339),
	})
}
