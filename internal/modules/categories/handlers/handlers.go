// Package handlers provides HTTP handlers for category operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/avelis/coinkeeper/internal/domain"
	"github.com/avelis/coinkeeper/internal/modules/categories"
)

// Handler handles category HTTP requests
type Handler struct {
	categories *categories.Repository
	log        zerolog.Logger
}

// NewHandler creates a new category handler
func NewHandler(categories *categories.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		categories: categories,
		log:        log.With().Str("handler", "categories").Logger(),
	}
}

// HandleGetCategories handles GET /api/categories
func (h *Handler) HandleGetCategories(w http.ResponseWriter, r *http.Request) {
	all, err := h.categories.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query categories")
		http.Error(w, "Failed to query categories", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"categories": all,
		"count":      len(all),
	}))
}

// HandleCreateCategory handles POST /api/categories
func (h *Handler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Category name is required", http.StatusBadRequest)
		return
	}

	category := domain.Category{
		ID:        uuid.New(),
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.categories.Add(category); err != nil {
		h.log.Error().Err(err).Msg("Failed to create category")
		http.Error(w, "Failed to create category", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(category))
}

// HandleDeleteCategory handles DELETE /api/categories/{id}
func (h *Handler) HandleDeleteCategory(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid category ID", http.StatusBadRequest)
		return
	}

	err = h.categories.Delete(id)
	if errors.Is(err, domain.ErrCategoryNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to delete category")
		http.Error(w, "Failed to delete category", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
