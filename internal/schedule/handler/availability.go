package handler

import (
	"encoding/json"
	"net/http"

	"medsched/internal/schedule/service"
	httputil "medsched/pkg/http"
	"medsched/pkg/logger"
	"medsched/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type AvailabilityHandler struct {
	service service.ScheduleService
	log     *logger.Logger
}

func NewAvailabilityHandler(service service.ScheduleService, log *logger.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		service: service,
		log:     log,
	}
}

type replaceAvailabilityRequest struct {
	Rows []model.AvailabilityRow `json:"rows"`
}

func (h *AvailabilityHandler) Replace(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	resourceID := ps.ByName("id")

	var req replaceAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Replace", "error", writeErr)
		}
		return
	}

	if err := h.service.ReplaceRules(r.Context(), resourceID, req.Rows); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Replace", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, map[string]any{
		"resource_id": resourceID,
		"rows":        len(req.Rows),
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "Replace", "error", err)
	}
}

func (h *AvailabilityHandler) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	resourceID := ps.ByName("id")

	rows, err := h.service.Rows(r.Context(), resourceID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Get", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, rows); err != nil {
		h.log.Error("failed to write success response", "handler", "Get", "error", err)
	}
}

func (h *AvailabilityHandler) RegisterRoutes(router *httprouter.Router) {
	router.PUT("/api/v1/resources/:id/availability", h.Replace)
	router.GET("/api/v1/resources/:id/availability", h.Get)
}
