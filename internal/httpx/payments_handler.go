package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/payments"
)

type PaymentsHandler struct {
	Reconciler *payments.Reconciler
	Log        *zap.Logger
}

func (h *PaymentsHandler) Register(r chi.Router) {
	r.Post("/payments/notification", h.notification)
}

// notification acks with 2xx only once the state is settled; any error
// makes the gateway retry.
func (h *PaymentsHandler) notification(w http.ResponseWriter, r *http.Request) {
	n, err := payments.DecodeNotification(r.Body)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.Reconciler.Handle(ctx, n)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": res})
}
