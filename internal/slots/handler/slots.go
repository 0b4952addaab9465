package handler

import (
	"net/http"
	"time"

	"medsched/internal/slots/service"
	"medsched/pkg/config"
	apperrors "medsched/pkg/errors"
	httputil "medsched/pkg/http"
	"medsched/pkg/logger"
	"medsched/pkg/timeutil"

	"github.com/julienschmidt/httprouter"
)

type SlotHandler struct {
	service service.SlotService
	cfg     *config.Config
	log     *logger.Logger
}

func NewSlotHandler(service service.SlotService, cfg *config.Config, log *logger.Logger) *SlotHandler {
	return &SlotHandler{
		service: service,
		cfg:     cfg,
		log:     log,
	}
}

type slotResponse struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (h *SlotHandler) Find(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	resourceID := ps.ByName("id")
	query := r.URL.Query()

	var q service.SlotQuery

	if s := query.Get("date_from"); s != "" {
		t, err := timeutil.ParseTimestamp(s, h.cfg.Location)
		if err != nil {
			h.writeError(w, "Find", apperrors.InvalidInput("invalid date_from parameter: "+s))
			return
		}
		q.From = &t
	}
	if s := query.Get("date_to"); s != "" {
		t, err := timeutil.ParseTimestamp(s, h.cfg.Location)
		if err != nil {
			h.writeError(w, "Find", apperrors.InvalidInput("invalid date_to parameter: "+s))
			return
		}
		// A bare date means the whole of that day.
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
			t = t.Add(24 * time.Hour)
		}
		q.To = &t
	}

	var err error
	if q.DurationMinutes, err = httputil.ExtractOptionalInt(r, "duration_minutes", 0); err != nil {
		h.writeError(w, "Find", err)
		return
	}
	if q.StepMinutes, err = httputil.ExtractOptionalInt(r, "step_minutes", 0); err != nil {
		h.writeError(w, "Find", err)
		return
	}
	if q.MaxResults, err = httputil.ExtractOptionalInt(r, "max_results", 0); err != nil {
		h.writeError(w, "Find", err)
		return
	}

	found, err := h.service.FindSlots(r.Context(), resourceID, q)
	if err != nil {
		h.writeError(w, "Find", err)
		return
	}

	out := make([]slotResponse, 0, len(found))
	for _, slot := range found {
		out = append(out, slotResponse{
			StartTime: slot.Start.Format(time.RFC3339),
			EndTime:   slot.End.Format(time.RFC3339),
		})
	}

	if err := httputil.WriteSuccess(w, out); err != nil {
		h.log.Error("failed to write success response", "handler", "Find", "error", err)
	}
}

func (h *SlotHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "error", writeErr)
	}
}

func (h *SlotHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/resources/:id/slots", h.Find)
}
