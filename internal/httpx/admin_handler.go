package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/admin"
)

type AdminHandler struct {
	Stats    admin.StatsSource
	AdminKey string
	Log      *zap.Logger
}

func (h *AdminHandler) Register(r chi.Router) {
	r.With(AdminOnly(h.AdminKey)).Get("/admin/stats", h.stats)
}

func (h *AdminHandler) stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	s, err := h.Stats.Stats(ctx)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
