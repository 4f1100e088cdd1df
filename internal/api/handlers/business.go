package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"bizpulse/internal/core"
	"bizpulse/internal/types"
)

// BusinessStore reads and updates the caller's business.
type BusinessStore interface {
	BusinessLookup
	Update(ctx context.Context, userID, name, description string) (*types.Business, error)
}

// UpdateBusinessRequest is the request body for PUT /business.
type UpdateBusinessRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

// BusinessHandler serves the caller's business profile.
type BusinessHandler struct {
	store     BusinessStore
	validator *core.Validator
}

// NewBusinessHandler creates a BusinessHandler.
func NewBusinessHandler(store BusinessStore, v *core.Validator) *BusinessHandler {
	return &BusinessHandler{store: store, validator: v}
}

func (h *BusinessHandler) RegisterRoutes(r chi.Router) {
	r.Get("/business", h.HandleGet)
	r.Put("/business", h.HandleUpdate)
}

// HandleGet returns the caller's business.
func (h *BusinessHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	biz, err := h.store.GetByUserID(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Success(w, r, http.StatusOK, map[string]*types.Business{"business": biz})
}

// HandleUpdate renames the caller's business.
func (h *BusinessHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req UpdateBusinessRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	biz, err := h.store.Update(r.Context(), actor.ID, req.Name, req.Description)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Success(w, r, http.StatusOK, map[string]*types.Business{"business": biz})
}
