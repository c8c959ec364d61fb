package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all category routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.HandleGetCategories)
		r.Post("/", h.HandleCreateCategory)
		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleDeleteCategory(w, r, chi.URLParam(r, "id"))
		})
	})
}
