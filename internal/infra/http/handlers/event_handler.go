package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/xavierca1/kviz-leads/internal/entity"
	"github.com/xavierca1/kviz-leads/internal/infra/http/middleware"
	"github.com/xavierca1/kviz-leads/internal/usecase"
)

type EventHandler struct {
	LogEventUC *usecase.LogEventUseCase
}

func NewEventHandler(uc *usecase.LogEventUseCase) *EventHandler {
	return &EventHandler{LogEventUC: uc}
}

func (h *EventHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var event entity.AnalyticsEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		zap.L().Warn("invalid analytics event", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, MessageResponse{Success: false, Message: "Failed to log event"})
		return
	}

	ip := middleware.ClientInfoFrom(r.Context()).IP
	if err := h.LogEventUC.Execute(r.Context(), event, ip); err != nil {
		zap.L().Warn("error logging analytics event", zap.String("event", event.Event), zap.Error(err))
		writeJSON(w, http.StatusBadRequest, MessageResponse{Success: false, Message: "Failed to log event"})
		return
	}

	middleware.RecordAnalyticsEvent()
	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Event logged successfully"})
}
