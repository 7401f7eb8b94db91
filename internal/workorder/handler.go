package workorder

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/codigix/nobal-casting-sub005/internal/platform/httpx"
)

// Handler serves work order endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers work order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Get("/{id}/items", h.listItems)
	r.Get("/{id}/operations", h.listOperations)
	r.Get("/{id}/allocations", h.listAllocations)
	r.Post("/{id}/allocate", h.allocate)
	r.Post("/{id}/finalize-materials", h.finalize)
}

type createRequest struct {
	ID            string  `json:"id"`
	ItemCode      string  `json:"item_code" validate:"required"`
	BOMID         int64   `json:"bom_id" validate:"required"`
	Quantity      float64 `json:"quantity" validate:"gt=0"`
	ParentID      string  `json:"parent_wo_id"`
	SalesOrderRef string  `json:"sales_order_ref"`
	Actor         string  `json:"actor"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	wo, err := h.service.Create(r.Context(), CreateInput{
		ID:            req.ID,
		ItemCode:      req.ItemCode,
		BOMID:         req.BOMID,
		Quantity:      req.Quantity,
		ParentID:      req.ParentID,
		SalesOrderRef: req.SalesOrderRef,
		Actor:         req.Actor,
	})
	if err != nil {
		h.logger.Error("create work order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, workOrderResponse(wo))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	wo, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, workOrderResponse(wo))
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) listOperations(w http.ResponseWriter, r *http.Request) {
	ops, err := h.service.ListOperations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"operations": ops})
}

func (h *Handler) listAllocations(w http.ResponseWriter, r *http.Request) {
	allocs, err := h.service.alloc.ListByWorkOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"allocations": allocs})
}

type actorRequest struct {
	Actor string `json:"actor"`
}

func (h *Handler) allocate(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	allocs, err := h.service.AllocateMaterials(r.Context(), chi.URLParam(r, "id"), req.Actor)
	if err != nil {
		h.logger.Error("allocate materials", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"allocations": allocs})
}

func (h *Handler) finalize(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	closeouts, err := h.service.FinalizeMaterials(r.Context(), chi.URLParam(r, "id"), req.Actor)
	if err != nil {
		h.logger.Error("finalize materials", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"closeouts": closeouts})
}

func workOrderResponse(wo WorkOrder) map[string]any {
	return map[string]any{
		"id":           wo.ID,
		"item_code":    wo.ItemCode,
		"bom_id":       wo.BOMID,
		"quantity":     wo.Quantity,
		"status":       string(wo.Status),
		"unit_cost":    wo.UnitCost,
		"total_cost":   wo.TotalCost,
		"parent_wo_id": wo.ParentID,
	}
}
