package httpx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/apperr"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/cart"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/orders"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/validation"
)

const sessionHeader = "X-Session-ID"

type CartHandler struct {
	Storage cart.Storage
	Orders  *orders.Service
	Log     *zap.Logger
}

type cartView struct {
	Items    []cart.Item `json:"items"`
	Wishlist []int64     `json:"wishlist"`
	Total    int64       `json:"total"`
}

type lineRequest struct {
	ProductID int64             `json:"productId" validate:"gt=0"`
	Variants  map[string]string `json:"variants,omitempty"`
	Quantity  int               `json:"quantity"`
}

type checkoutRequest struct {
	UserID          *int64                     `json:"userId,omitempty"`
	CustomerInfo    orders.CustomerInfoRequest `json:"customerInfo"`
	PaymentMethod   string                     `json:"paymentMethod"`
	ShippingMethod  string                     `json:"shippingMethod,omitempty"`
	ShippingAddress string                     `json:"shippingAddress,omitempty"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.get)
		r.Post("/items", h.addItem)
		r.Patch("/items", h.setQuantity)
		r.Delete("/items", h.removeItem)
		r.Post("/wishlist/{productId}", h.toggleWishlist)
		r.Post("/checkout", h.checkout)
	})
}

func view(s *cart.Store) cartView {
	snap := s.Snapshot()
	if snap.Items == nil {
		snap.Items = []cart.Item{}
	}
	if snap.Wishlist == nil {
		snap.Wishlist = []int64{}
	}
	return cartView{Items: snap.Items, Wishlist: snap.Wishlist, Total: s.Total()}
}

// open hydrates the caller's cart from storage.
func (h *CartHandler) open(ctx context.Context, r *http.Request) (*cart.Store, error) {
	session := strings.TrimSpace(r.Header.Get(sessionHeader))
	if session == "" {
		return nil, apperr.NewValidationError(sessionHeader, "header is required")
	}
	s := cart.NewStore(session, h.Storage)
	if err := s.Hydrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	s, err := h.open(ctx, r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, view(s))
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var item cart.Item
	if err := decodeJSON(w, r, &item); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	s, err := h.open(ctx, r)
	if err == nil {
		err = s.Add(ctx, item)
	}
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, view(s))
}

func (h *CartHandler) decodeLine(w http.ResponseWriter, r *http.Request) (lineRequest, error) {
	var req lineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return req, err
	}
	return req, validation.Struct(&req)
}

func (h *CartHandler) setQuantity(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeLine(w, r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	s, err := h.open(ctx, r)
	if err == nil {
		err = s.SetQuantity(ctx, req.ProductID, req.Variants, req.Quantity)
	}
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, view(s))
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeLine(w, r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	s, err := h.open(ctx, r)
	if err == nil {
		err = s.Remove(ctx, req.ProductID, req.Variants)
	}
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, view(s))
}

func (h *CartHandler) toggleWishlist(w http.ResponseWriter, r *http.Request) {
	pid, err := pathID(r, "productId")
	if err != nil {
		writeError(w, r, h.Log, apperr.NewValidationError("productId", "must be a positive integer"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	s, err := h.open(ctx, r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	on, err := s.ToggleWishlist(ctx, pid)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"wishlisted": on, "wishlist": view(s).Wishlist})
}

// checkout turns the session cart into an order and empties the cart once
// the order is stored.
func (h *CartHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var body checkoutRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	s, err := h.open(ctx, r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	items := s.CheckoutItems()
	if len(items) == 0 {
		writeError(w, r, h.Log, apperr.NewValidationError("items", "cart is empty"))
		return
	}

	o, err := h.Orders.CreateOrder(ctx, orders.CreateOrderRequest{
		UserID:          body.UserID,
		Items:           items,
		CustomerInfo:    body.CustomerInfo,
		PaymentMethod:   body.PaymentMethod,
		ShippingMethod:  body.ShippingMethod,
		ShippingAddress: body.ShippingAddress,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if err := s.Clear(ctx); err != nil {
		// the order exists; a stale cart is only an annoyance
		orNop(h.Log).Warn("clear cart after checkout", zap.String("order_id", o.ID), zap.Error(err))
	}
	writeJSON(w, http.StatusCreated, map[string]any{"order": o})
}
