package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gleeworld/comms-gateway/internal/comms_service/app"
	"github.com/gleeworld/comms-gateway/internal/comms_service/domain"
	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware" // For GetReqID
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type CommunicationHandler struct {
	appService *app.CommsAppService
	validate   *validator.Validate
	logger     *slog.Logger
}

func NewCommunicationHandler(appService *app.CommsAppService, logger *slog.Logger) *CommunicationHandler {
	return &CommunicationHandler{
		appService: appService,
		validate:   validator.New(),
		logger:     logger.With("handler", "communication"),
	}
}

// RegisterRoutes registers communication routes with the given router.
func (h *CommunicationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/communications/send", h.handleSendCommunication)
	r.Get("/communications/{communicationID}", h.handleGetCommunication)
}

func (h *CommunicationHandler) handleSendCommunication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	var req SendCommunicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.ErrorContext(ctx, "Failed to decode send communication request", "error", err)
		h.jsonError(w, logger, "Invalid request payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		logger.WarnContext(ctx, "Send communication request failed validation", "error", err)
		h.jsonError(w, logger, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	senderID, err := uuid.Parse(req.SenderID)
	if err != nil {
		h.jsonError(w, logger, "Invalid sender_id format", http.StatusBadRequest)
		return
	}

	groups := make([]domain.RawGroupSelector, 0, len(req.RecipientGroups))
	for _, g := range req.RecipientGroups {
		groups = append(groups, domain.RawGroupSelector{ID: g.ID, Label: g.Label, Type: g.Type})
	}
	channels := make([]domain.Channel, 0, len(req.Channels))
	for _, c := range req.Channels {
		channels = append(channels, domain.Channel(c))
	}

	result, err := h.appService.SendCommunication(ctx, app.SendRequest{
		Title:           req.Title,
		Content:         req.Content,
		SenderID:        senderID,
		SenderName:      req.SenderName,
		Type:            req.Type,
		Priority:        req.Priority,
		RecipientGroups: groups,
		Channels:        channels,
		ScheduledFor:    req.ScheduledFor,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Send communication pipeline failed", "error", err)
		h.jsonError(w, logger, "Failed to send communication: "+err.Error(), http.StatusInternalServerError)
		return
	}

	response := SendCommunicationResponse{
		Success:         true,
		Message:         result.Message,
		CommunicationID: result.CommunicationID.String(),
		DeliverySummary: summaryDTO(result.Summary),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(response)
}

func (h *CommunicationHandler) handleGetCommunication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	commIDStr := chi.URLParam(r, "communicationID")
	commID, err := uuid.Parse(commIDStr)
	if err != nil {
		h.jsonError(w, logger, "Invalid communication ID format", http.StatusBadRequest)
		return
	}

	comm, err := h.appService.GetCommunication(ctx, commID)
	if err != nil {
		if errors.Is(err, domain.ErrCommunicationNotFound) {
			h.jsonError(w, logger, "Communication not found", http.StatusNotFound)
			return
		}
		logger.ErrorContext(ctx, "Failed to get communication", "error", err, "communication_id", commID)
		h.jsonError(w, logger, "Failed to retrieve communication", http.StatusInternalServerError)
		return
	}

	response := CommunicationStatusResponse{
		ID:              comm.ID.String(),
		Title:           comm.Title,
		SenderID:        comm.SenderID.String(),
		SenderName:      comm.SenderName,
		Type:            comm.Type,
		Priority:        comm.Priority,
		Status:          comm.Status,
		Channels:        comm.Channels,
		ScheduledFor:    comm.ScheduledFor,
		SentAt:          comm.SentAt,
		DeliverySummary: summaryDTO(comm.DeliverySummary),
		CreatedAt:       comm.CreatedAt,
		UpdatedAt:       comm.UpdatedAt,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (h *CommunicationHandler) jsonError(w http.ResponseWriter, logger *slog.Logger, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Success: false, Error: message}); err != nil {
		logger.Error("Failed to encode error response", "error", err)
	}
}
