package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all budget routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/budgets", func(r chi.Router) {
		r.Get("/", h.HandleGetBudgets)
		r.Put("/", h.HandleUpsertBudget)
		r.Get("/progress", h.HandleGetProgress)
		r.Delete("/{categoryId}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleDeleteBudget(w, r, chi.URLParam(r, "categoryId"))
		})
	})
}
