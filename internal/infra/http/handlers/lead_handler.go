package handlers

import (
	"encoding/json"
	"maps"
	"net/http"

	"go.uber.org/zap"

	"github.com/xavierca1/kviz-leads/internal/entity"
	"github.com/xavierca1/kviz-leads/internal/infra/http/middleware"
	"github.com/xavierca1/kviz-leads/internal/usecase"
)

type LeadHandler struct {
	IntakeUC *usecase.IntakeLeadUseCase
}

func NewLeadHandler(uc *usecase.IntakeLeadUseCase) *LeadHandler {
	return &LeadHandler{IntakeUC: uc}
}

type LeadResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	TelegramSent  bool   `json:"telegramSent"`
	SavedToMongo  bool   `json:"savedToMongo"`
	IsDuplicate   bool   `json:"isDuplicate"`
	IsIPDuplicate bool   `json:"isIPDuplicate"`
	Notification  string `json:"notification"`
}

type DuplicateLeadResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	IsDuplicate bool   `json:"isDuplicate"`
}

func (h *LeadHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var input usecase.IntakeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		middleware.RecordLeadIntake("invalid")
		writeJSON(w, http.StatusBadRequest, MessageResponse{Success: false, Message: "Invalid JSON"})
		return
	}

	info := middleware.ClientInfoFrom(r.Context())
	input.UserData = enrichUserData(input.UserData, info)

	zap.L().Info("received lead request",
		zap.Bool("has_lead", input.Lead != nil),
		zap.String("lead_name", entity.StringField(input.Lead, "name")),
		zap.String("ip", info.IP),
	)

	output, err := h.IntakeUC.Execute(r.Context(), input)
	if err != nil {
		if usecase.IsDomainError(err) {
			middleware.RecordLeadIntake("invalid")
			writeJSON(w, http.StatusBadRequest, MessageResponse{Success: false, Message: err.Error()})
			return
		}
		middleware.RecordLeadIntake("error")
		zap.L().Error("error processing lead", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, MessageResponse{Success: false, Message: "Failed to process lead"})
		return
	}

	middleware.RecordLeadIntake(string(output.Outcome))
	middleware.RecordLeadNotification(string(output.Notification))

	if output.DuplicatePhone() {
		writeJSON(w, http.StatusConflict, DuplicateLeadResponse{
			Success:     false,
			Message:     "Lead with this phone number already exists",
			IsDuplicate: true,
		})
		return
	}

	writeJSON(w, http.StatusOK, LeadResponse{
		Success:       true,
		Message:       "Lead processed successfully",
		TelegramSent:  output.NotificationSent(),
		SavedToMongo:  output.Saved,
		IsDuplicate:   false,
		IsIPDuplicate: output.DuplicateIP(),
		Notification:  string(output.Notification),
	})
}

// enrichUserData copies the client-reported user data and overwrites ip with
// the server-resolved address. Parsed device info is added when the client
// did not send its own.
func enrichUserData(userData map[string]any, info middleware.ClientInfo) map[string]any {
	out := make(map[string]any, len(userData)+2)
	maps.Copy(out, userData)
	out["ip"] = info.IP

	if info.UserAgent == "" {
		return out
	}
	if _, ok := out["userAgent"]; !ok {
		out["userAgent"] = info.UserAgent
	}
	if _, ok := out["device"]; !ok {
		out["device"] = map[string]any{
			"browser":        info.Browser,
			"browserVersion": info.BrowserVersion,
			"os":             info.OS,
			"mobile":         info.Mobile,
			"bot":            info.Bot,
		}
	}
	return out
}
