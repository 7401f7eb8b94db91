package masterdata

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/codigix/nobal-casting-sub005/internal/masterdata/items"
	"github.com/codigix/nobal-casting-sub005/internal/masterdata/warehouses"
	"github.com/codigix/nobal-casting-sub005/internal/platform/httpx"
)

// Handler serves read-only master data endpoints.
type Handler struct {
	logger     *slog.Logger
	items      *items.Service
	warehouses *warehouses.Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, itemSvc *items.Service, whSvc *warehouses.Service) *Handler {
	return &Handler{logger: logger, items: itemSvc, warehouses: whSvc}
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/items", h.listItems)
	r.Get("/items/{code}", h.showItem)
	r.Get("/warehouses", h.listWarehouses)
	r.Get("/warehouses/{code}", h.showWarehouse)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.items.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("list items", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": list})
}

func (h *Handler) showItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.items.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) listWarehouses(w http.ResponseWriter, r *http.Request) {
	list, err := h.warehouses.List(r.Context())
	if err != nil {
		h.logger.Error("list warehouses", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"warehouses": list})
}

func (h *Handler) showWarehouse(w http.ResponseWriter, r *http.Request) {
	wh, err := h.warehouses.Resolve(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, wh)
}
