package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/orders"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/redisx"
)

type OrdersHandler struct {
	Service  *orders.Service
	Cache    *redisx.OrderCache
	AdminKey string
	Log      *zap.Logger
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.getOrders)
	r.Group(func(r chi.Router) {
		r.Use(AdminOnly(h.AdminKey))
		r.Delete("/orders/{orderId}", h.deleteOrder)
		r.Patch("/orders/{orderId}/status", h.updateStatus)
	})
}

// createOrder is the buy-now path: the client submits the lines directly.
func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, err := h.Service.CreateOrder(ctx, req)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"order": o})
}

// getOrders serves a single order when ?id= is given and the full list
// (admin only) otherwise.
func (h *OrdersHandler) getOrders(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("id"); id != "" {
		h.getOrder(w, r, id)
		return
	}
	if !isAdmin(r, h.AdminKey) {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "admin key required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Service.ListOrders(ctx)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": list})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request, id string) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) cache, unless a later write superseded the document
	if doc, ok := h.Cache.Get(ctx, id); ok {
		writeJSON(w, http.StatusOK, map[string]json.RawMessage{"order": doc})
		return
	}

	// 2) database
	o, err := h.Service.GetOrder(ctx, id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if doc, err := json.Marshal(o); err == nil {
		h.Cache.Set(ctx, id, doc, o.Version)
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": o})
}

func (h *OrdersHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderId")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Service.DeleteOrder(ctx, id); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.Cache.Tombstone(ctx, id, time.Now())
	writeJSON(w, http.StatusOK, map[string]string{"message": "Order deleted successfully"})
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderId")
	var req orders.UpdateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.Cache.SetStatus(ctx, id, string(o.Status), o.Version, o.UpdatedAt)
	writeJSON(w, http.StatusOK, map[string]any{"order": o})
}
