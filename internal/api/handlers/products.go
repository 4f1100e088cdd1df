package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bizpulse/internal/billing"
	"bizpulse/internal/core"
	"bizpulse/internal/types"
)

// ProductStore is the product persistence used by the handlers. Every
// method is scoped to a business.
type ProductStore interface {
	Create(ctx context.Context, p *types.Product) error
	GetByID(ctx context.Context, businessID, id string) (*types.Product, error)
	FindByName(ctx context.Context, businessID, name string) (*types.Product, error)
	List(ctx context.Context, businessID string, f types.ProductFilter) ([]*types.Product, error)
	Update(ctx context.Context, p *types.Product) error
	Delete(ctx context.Context, businessID, id string) error
}

// CreateProductRequest is the request body for POST /products. Price is
// rounded to cents before validation.
type CreateProductRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=2000"`
	Price       float64 `json:"price" validate:"gt=0"`
	Category    string  `json:"category" validate:"max=100"`
}

// UpdateProductRequest is the request body for PUT /products/{id}. Absent
// fields are left unchanged.
type UpdateProductRequest struct {
	Name        *string  `json:"name" validate:"omitnil,max=200"`
	Description *string  `json:"description" validate:"omitnil,max=2000"`
	Price       *float64 `json:"price" validate:"omitnil,gt=0"`
	Category    *string  `json:"category" validate:"omitnil,max=100"`
	IsActive    *bool    `json:"isActive"`
}

// ProductHandler serves the product catalog of the caller's business.
type ProductHandler struct {
	store      ProductStore
	businesses *BusinessResolver
	validator  *core.Validator
	clock      types.Clock
}

// NewProductHandler creates a ProductHandler.
func NewProductHandler(store ProductStore, businesses *BusinessResolver, v *core.Validator, clock types.Clock) *ProductHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &ProductHandler{store: store, businesses: businesses, validator: v, clock: clock}
}

func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
	})
}

// HandleList lists products filtered by ?category= and ?search=.
func (h *ProductHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	_, biz, err := h.businesses.Resolve(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	q := r.URL.Query()
	products, err := h.store.List(r.Context(), biz.ID, types.ProductFilter{
		Category: strings.TrimSpace(q.Get("category")),
		Search:   strings.TrimSpace(q.Get("search")),
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if products == nil {
		products = []*types.Product{}
	}
	core.Success(w, r, http.StatusOK, map[string][]*types.Product{"products": products})
}

// HandleCreate adds a product. Category defaults to "General".
func (h *ProductHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	_, biz, err := h.businesses.Resolve(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req CreateProductRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Price = billing.Round2(req.Price)
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	now := h.clock.Now()
	p := &types.Product{
		ID:          "prd_" + uuid.NewString(),
		BusinessID:  biz.ID,
		Name:        req.Name,
		Description: req.Description,
		Category:    categoryOrDefault(req.Category),
		Price:       req.Price,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.store.Create(r.Context(), p); err != nil {
		core.Error(w, r, err)
		return
	}
	core.Success(w, r, http.StatusCreated, map[string]*types.Product{"product": p})
}

// HandleUpdate applies a partial update to a product owned by the caller.
func (h *ProductHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	_, biz, err := h.businesses.Resolve(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req UpdateProductRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.Price != nil {
		rounded := billing.Round2(*req.Price)
		req.Price = &rounded
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	p, err := h.store.GetByID(r.Context(), biz.ID, chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Category != nil && strings.TrimSpace(*req.Category) != "" {
		p.Category = strings.TrimSpace(*req.Category)
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	p.UpdatedAt = h.clock.Now()

	if err := h.store.Update(r.Context(), p); err != nil {
		core.Error(w, r, err)
		return
	}
	core.Success(w, r, http.StatusOK, map[string]*types.Product{"product": p})
}

// HandleDelete removes a product. Its sales keep their snapshots.
func (h *ProductHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	_, biz, err := h.businesses.Resolve(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.store.Delete(r.Context(), biz.ID, chi.URLParam(r, "id")); err != nil {
		core.Error(w, r, err)
		return
	}
	core.Success(w, r, http.StatusOK, messageResponse{Success: true})
}

func categoryOrDefault(c string) string {
	c = strings.TrimSpace(c)
	if c == "" {
		return types.DefaultCategory
	}
	return c
}
