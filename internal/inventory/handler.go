package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/codigix/nobal-casting-sub005/internal/masterdata/warehouses"
	"github.com/codigix/nobal-casting-sub005/internal/platform/httpx"
)

// Handler serves stock endpoints.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	warehouses *warehouses.Service
	validate   *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service, whSvc *warehouses.Service) *Handler {
	return &Handler{logger: logger, service: service, warehouses: whSvc, validate: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/balance", h.getBalance)
	r.Get("/ledger", h.getLedger)
	r.Post("/movements", h.postMovement)
	r.Post("/movements/{entryID}/reverse", h.reverseMovement)
}

type movementRequest struct {
	ItemCode     string   `json:"item_code" validate:"required"`
	Warehouse    string   `json:"warehouse" validate:"required"`
	Type         string   `json:"type" validate:"required"`
	QtyIn        float64  `json:"qty_in" validate:"gte=0"`
	QtyOut       float64  `json:"qty_out" validate:"gte=0"`
	Rate         *float64 `json:"rate,omitempty"`
	IncomingRate float64  `json:"incoming_rate" validate:"gte=0"`
	RefDoctype   string   `json:"ref_doctype"`
	RefID        string   `json:"ref_id"`
	Remarks      string   `json:"remarks"`
	Actor        string   `json:"actor"`
	PostedAt     string   `json:"posted_at"`
}

func (h *Handler) postMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	wh, err := h.warehouses.Resolve(r.Context(), req.Warehouse)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := MovementInput{
		ItemCode:     req.ItemCode,
		WarehouseID:  wh.ID,
		Type:         TransactionType(req.Type),
		QtyIn:        req.QtyIn,
		QtyOut:       req.QtyOut,
		Rate:         req.Rate,
		IncomingRate: req.IncomingRate,
		RefDoctype:   req.RefDoctype,
		RefID:        req.RefID,
		Remarks:      req.Remarks,
		Actor:        req.Actor,
	}
	if req.PostedAt != "" {
		postedAt, err := time.Parse(time.RFC3339, req.PostedAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "posted_at must be RFC3339")
			return
		}
		input.PostedAt = postedAt
	}
	entry, err := h.service.Post(r.Context(), input)
	if err != nil {
		h.logger.Error("post movement", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

type actorRequest struct {
	Actor string `json:"actor"`
}

func (h *Handler) reverseMovement(w http.ResponseWriter, r *http.Request) {
	entryID, err := strconv.ParseInt(chi.URLParam(r, "entryID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "entryID must be an integer")
		return
	}
	var req actorRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
			return
		}
	}
	entry, err := h.service.Reverse(r.Context(), entryID, req.Actor)
	if err != nil {
		h.logger.Error("reverse movement", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	itemCode := r.URL.Query().Get("item")
	whCode := r.URL.Query().Get("warehouse")
	if itemCode == "" || whCode == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item and warehouse query params required")
		return
	}
	wh, err := h.warehouses.Resolve(r.Context(), whCode)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bal, err := h.service.GetBalance(r.Context(), itemCode, wh.ID)
	if err != nil {
		h.logger.Error("get balance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"item_code":      bal.ItemCode,
		"warehouse":      wh.Code,
		"current_qty":    bal.CurrentQty,
		"reserved_qty":   bal.ReservedQty,
		"available_qty":  bal.AvailableQty(),
		"valuation_rate": bal.ValuationRate,
		"total_value":    bal.TotalValue,
	})
}

func (h *Handler) getLedger(w http.ResponseWriter, r *http.Request) {
	itemCode := r.URL.Query().Get("item")
	whCode := r.URL.Query().Get("warehouse")
	if itemCode == "" || whCode == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item and warehouse query params required")
		return
	}
	wh, err := h.warehouses.Resolve(r.Context(), whCode)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := LedgerFilter{ItemCode: itemCode, WarehouseID: wh.ID}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		filter.Limit = limit
	}
	if from := r.URL.Query().Get("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.From = t
		}
	}
	if to := r.URL.Query().Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = t
		}
	}
	entries, err := h.service.GetLedger(r.Context(), filter)
	if err != nil {
		h.logger.Error("get ledger", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}
