package jobcard

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/codigix/nobal-casting-sub005/internal/platform/httpx"
)

// Handler serves job card execution endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers job card routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}", h.get)
	r.Post("/{id}/time-logs", h.postTimeLog)
	r.Post("/{id}/rejections", h.postRejection)
	r.Post("/{id}/rejections/{rejectionID}/approve", h.approveRejection)
	r.Post("/{id}/challans", h.postChallan)
	r.Post("/{id}/status", h.postStatus)
	r.Post("/{id}/resync", h.postResync)
}

type timeLogRequest struct {
	DayNumber     int     `json:"day_number" validate:"gte=1"`
	Shift         string  `json:"shift" validate:"required"`
	CompletedQty  float64 `json:"completed_qty" validate:"gte=0"`
	RejectedQty   float64 `json:"rejected_qty" validate:"gte=0"`
	ScrapQty      float64 `json:"scrap_qty" validate:"gte=0"`
	TimeInMinutes float64 `json:"time_in_minutes" validate:"gte=0"`
	Operator      string  `json:"operator"`
}

type rejectionRequest struct {
	DayNumber   int     `json:"day_number" validate:"gte=1"`
	Shift       string  `json:"shift" validate:"required"`
	AcceptedQty float64 `json:"accepted_qty" validate:"gte=0"`
	RejectedQty float64 `json:"rejected_qty" validate:"gte=0"`
	ScrapQty    float64 `json:"scrap_qty" validate:"gte=0"`
	Reason      string  `json:"reason"`
}

type challanRequest struct {
	ChallanNo   string  `json:"challan_no" validate:"required"`
	ReceivedQty float64 `json:"received_qty" validate:"gte=0"`
	AcceptedQty float64 `json:"accepted_qty" validate:"gte=0"`
	RejectedQty float64 `json:"rejected_qty" validate:"gte=0"`
	ReceivedAt  string  `json:"received_at"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	card, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cardResponse(card))
}

func (h *Handler) postTimeLog(w http.ResponseWriter, r *http.Request) {
	var req timeLogRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	totals, err := h.service.RecordTimeLog(r.Context(), chi.URLParam(r, "id"), TimeLog{
		DayNumber:     req.DayNumber,
		Shift:         req.Shift,
		CompletedQty:  req.CompletedQty,
		RejectedQty:   req.RejectedQty,
		ScrapQty:      req.ScrapQty,
		TimeInMinutes: req.TimeInMinutes,
		Operator:      req.Operator,
	})
	if err != nil {
		h.logger.Error("record time log", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, totalsResponse(totals))
}

func (h *Handler) postRejection(w http.ResponseWriter, r *http.Request) {
	var req rejectionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	totals, err := h.service.RecordRejection(r.Context(), chi.URLParam(r, "id"), RejectionEntry{
		DayNumber:   req.DayNumber,
		Shift:       req.Shift,
		AcceptedQty: req.AcceptedQty,
		RejectedQty: req.RejectedQty,
		ScrapQty:    req.ScrapQty,
		Reason:      req.Reason,
	})
	if err != nil {
		h.logger.Error("record rejection", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, totalsResponse(totals))
}

func (h *Handler) approveRejection(w http.ResponseWriter, r *http.Request) {
	rejectionID, err := strconv.ParseInt(chi.URLParam(r, "rejectionID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "rejectionID must be an integer")
		return
	}
	totals, err := h.service.ApproveRejection(r.Context(), chi.URLParam(r, "id"), rejectionID)
	if err != nil {
		h.logger.Error("approve rejection", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, totalsResponse(totals))
}

func (h *Handler) postChallan(w http.ResponseWriter, r *http.Request) {
	var req challanRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	ch := InwardChallan{
		ChallanNo:   req.ChallanNo,
		ReceivedQty: req.ReceivedQty,
		AcceptedQty: req.AcceptedQty,
		RejectedQty: req.RejectedQty,
	}
	if req.ReceivedAt != "" {
		receivedAt, err := time.Parse(time.RFC3339, req.ReceivedAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "received_at must be RFC3339")
			return
		}
		ch.ReceivedAt = receivedAt
	}
	totals, err := h.service.RecordChallan(r.Context(), chi.URLParam(r, "id"), ch)
	if err != nil {
		h.logger.Error("record challan", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, totalsResponse(totals))
}

func (h *Handler) postStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	status, err := h.service.Transition(r.Context(), chi.URLParam(r, "id"), NormalizeStatus(req.Status))
	if err != nil {
		h.logger.Error("job card transition", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": string(status)})
}

func (h *Handler) postResync(w http.ResponseWriter, r *http.Request) {
	totals, err := h.service.Resync(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Error("job card resync", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, totalsResponse(totals))
}

func cardResponse(card JobCard) map[string]any {
	return map[string]any{
		"id":                 card.ID,
		"work_order_id":      card.WorkOrderID,
		"operation":          card.Operation,
		"operation_sequence": card.OperationSequence,
		"planned_qty":        card.PlannedQty,
		"produced_qty":       card.ProducedQty,
		"accepted_qty":       card.AcceptedQty,
		"rejected_qty":       card.RejectedQty,
		"scrap_qty":          card.ScrapQty,
		"operating_cost":     card.OperatingCost,
		"execution_mode":     string(card.Mode),
		"status":             string(card.Status),
	}
}

func totalsResponse(totals Totals) map[string]any {
	return map[string]any{
		"produced_qty": totals.Produced,
		"accepted_qty": totals.Accepted,
		"rejected_qty": totals.Rejected,
		"scrap_qty":    totals.Scrap,
	}
}
