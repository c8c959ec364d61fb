package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all recurring routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/recurring", func(r chi.Router) {
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.HandleGetTransactionRules)
			r.Post("/", h.HandleCreateTransactionRule)
			r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
				h.HandleDeactivateTransactionRule(w, r, chi.URLParam(r, "id"))
			})
			r.Post("/{id}/realize", func(w http.ResponseWriter, r *http.Request) {
				h.HandleRealizeTransaction(w, r, chi.URLParam(r, "id"))
			})
		})

		r.Route("/transfers", func(r chi.Router) {
			r.Get("/", h.HandleGetTransferRules)
			r.Post("/", h.HandleCreateTransferRule)
			r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
				h.HandleDeactivateTransferRule(w, r, chi.URLParam(r, "id"))
			})
			r.Post("/{id}/realize", func(w http.ResponseWriter, r *http.Request) {
				h.HandleRealizeTransfer(w, r, chi.URLParam(r, "id"))
			})
		})

		r.Post("/exceptions", h.HandleAddException)
		r.Get("/pastdue", h.HandleGetPastDue)
	})
}
