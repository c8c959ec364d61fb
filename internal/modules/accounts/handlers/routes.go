package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all account routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.HandleGetAccounts)
		r.Post("/", h.HandleCreateAccount)
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetAccountByID(w, r, chi.URLParam(r, "id"))
		})
		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleDeactivateAccount(w, r, chi.URLParam(r, "id"))
		})
		r.Get("/{id}/transactions", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetAccountTransactions(w, r, chi.URLParam(r, "id"))
		})
	})
}
