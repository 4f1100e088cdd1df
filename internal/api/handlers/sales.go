package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bizpulse/internal/billing"
	"bizpulse/internal/core"
	"bizpulse/internal/types"
)

// SaleStore is the sale persistence used by the handlers. Every method is
// scoped to a business.
type SaleStore interface {
	Create(ctx context.Context, s *types.Sale) error
	GetByID(ctx context.Context, businessID, id string) (*types.Sale, error)
	List(ctx context.Context, businessID string, f types.SaleFilter) ([]*types.Sale, int, error)
	Update(ctx context.Context, s *types.Sale) error
	Delete(ctx context.Context, businessID, id string) error
}

// CreateSaleRequest is the request body for POST /sales. UnitPrice falls
// back to the product price when absent or not positive.
type CreateSaleRequest struct {
	ProductID    string   `json:"productId" validate:"required"`
	Quantity     int      `json:"quantity" validate:"gt=0"`
	UnitPrice    *float64 `json:"unitPrice"`
	Date         string   `json:"date" validate:"calendar_date"`
	CustomerName string   `json:"customerName" validate:"max=200"`
}

// UpdateSaleRequest is the request body for PUT /sales/{id}. Absent fields
// keep their stored value.
type UpdateSaleRequest struct {
	ProductID    *string  `json:"productId"`
	Quantity     *int     `json:"quantity" validate:"omitnil,gt=0"`
	UnitPrice    *float64 `json:"unitPrice"`
	Date         string   `json:"date" validate:"calendar_date"`
	CustomerName *string  `json:"customerName" validate:"omitnil,max=200"`
}

// SaleHandler serves the sales ledger of the caller's business.
type SaleHandler struct {
	sales      SaleStore
	products   ProductStore
	businesses *BusinessResolver
	validator  *core.Validator
	clock      types.Clock
	logger     *slog.Logger
}

// NewSaleHandler creates a SaleHandler.
func NewSaleHandler(sales SaleStore, products ProductStore, businesses *BusinessResolver, v *core.Validator, clock types.Clock, logger *slog.Logger) *SaleHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SaleHandler{sales: sales, products: products, businesses: businesses, validator: v, clock: clock, logger: logger}
}

func (h *SaleHandler) RegisterRoutes(r chi.Router) {
	r.Route("/sales", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/export", h.HandleExport)
		r.Post("/import", h.HandleImport)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
	})
}

// saleFilterFromQuery reads productId, search, category, startDate,
// endDate, page and limit. Limit is capped at types.MaxPageSize.
func saleFilterFromQuery(r *http.Request) (types.SaleFilter, error) {
	q := r.URL.Query()
	f := types.SaleFilter{
		ProductID: strings.TrimSpace(q.Get("productId")),
		Search:    strings.TrimSpace(q.Get("search")),
		Category:  strings.TrimSpace(q.Get("category")),
		Page:      queryInt(r, "page", 1),
		Limit:     min(queryInt(r, "limit", types.DefaultPageSize), types.MaxPageSize),
	}
	if raw := q.Get("startDate"); raw != "" {
		t, err := parseCalendarDate(raw, false)
		if err != nil {
			return f, err
		}
		f.StartDate = &t
	}
	if raw := q.Get("endDate"); raw != "" {
		t, err := parseCalendarDate(raw, true)
		if err != nil {
			return f, err
		}
		f.EndDate = &t
	}
	return f, nil
}

// HandleList returns one page of sales, newest first.
func (h *SaleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	_, biz, err := h.businesses.Resolve(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	f, err := saleFilterFromQuery(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	sales, total, err := h.sales.List(r.Context(), biz.ID, f)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if sales == nil {
		sales = []*types.Sale{}
	}
	page := types.NewPagination(f.Page, f.Limit, total)
	core.SuccessWithMeta(w, r, http.StatusOK,
		map[string]any{"sales": sales, "pagination": page},
		&types.ResponseMeta{Pagination: &page},
	)
}

// HandleCreate records a sale, snapshotting the product name, category and
// price at the time of sale.
func (h *SaleHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	_, biz, err := h.businesses.Resolve(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req CreateSaleRequest
	if err := decodeAndValidate(w, r, h.validator, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	product, err := h.products.GetByID(r.Context(), biz.ID, req.ProductID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	date := h.clock.Now()
	if req.Date != "" {
		if date, err = parseCalendarDate(req.Date, false); err != nil {
			core.Error(w, r, err)
			return
		}
	}

	sale := newSale(biz.ID, product, req.Quantity, positiveOr(req.UnitPrice, product.Price), date, req.CustomerName, h.clock.Now())
	if err := h.sales.Create(r.Context(), sale); err != nil {
		core.Error(w, r, err)
		return
	}
	core.Success(w, r, http.StatusCreated, map[string]*types.Sale{"sale": sale})
}

// HandleUpdate edits a sale. The product snapshot is always refreshed; the
// unit price is the request's when positive, else the stored one, else the
// product's current price.
func (h *SaleHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	_, biz, err := h.businesses.Resolve(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req UpdateSaleRequest
	if err := decodeAndValidate(w, r, h.validator, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	sale, err := h.sales.GetByID(r.Context(), biz.ID, chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	productID := sale.ProductID
	if req.ProductID != nil && *req.ProductID != "" {
		productID = *req.ProductID
	}
	product, err := h.products.GetByID(r.Context(), biz.ID, productID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if req.Quantity != nil {
		sale.Quantity = *req.Quantity
	}
	fallback := sale.UnitPrice
	if fallback <= 0 {
		fallback = product.Price
	}
	sale.ProductID = product.ID
	sale.ProductName = product.Name
	sale.Category = categoryOrDefault(product.Category)
	sale.UnitPrice = positiveOr(req.UnitPrice, fallback)
	sale.Total = saleTotal(sale.Quantity, sale.UnitPrice)
	if req.Date != "" {
		if sale.Date, err = parseCalendarDate(req.Date, false); err != nil {
			core.Error(w, r, err)
			return
		}
	}
	if req.CustomerName != nil {
		sale.CustomerName = strings.TrimSpace(*req.CustomerName)
	}

	if err := h.sales.Update(r.Context(), sale); err != nil {
		core.Error(w, r, err)
		return
	}
	core.Success(w, r, http.StatusOK, map[string]*types.Sale{"sale": sale})
}

// HandleDelete removes a sale.
func (h *SaleHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	_, biz, err := h.businesses.Resolve(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.sales.Delete(r.Context(), biz.ID, chi.URLParam(r, "id")); err != nil {
		core.Error(w, r, err)
		return
	}
	core.Success(w, r, http.StatusOK, messageResponse{Success: true})
}

func newSale(businessID string, p *types.Product, quantity int, unitPrice float64, date time.Time, customer string, now time.Time) *types.Sale {
	return &types.Sale{
		ID:           "sal_" + uuid.NewString(),
		BusinessID:   businessID,
		ProductID:    p.ID,
		ProductName:  p.Name,
		Category:     categoryOrDefault(p.Category),
		Quantity:     quantity,
		UnitPrice:    unitPrice,
		Total:        saleTotal(quantity, unitPrice),
		CustomerName: strings.TrimSpace(customer),
		Date:         date,
		CreatedAt:    now,
	}
}

// positiveOr returns v rounded to cents when that is positive, else
// fallback.
func positiveOr(v *float64, fallback float64) float64 {
	if v != nil {
		if rounded := billing.Round2(*v); rounded > 0 {
			return rounded
		}
	}
	return billing.Round2(fallback)
}

// saleTotal is quantity times the cent-rounded unit price, so the stored
// total always equals quantity x stored unit price.
func saleTotal(quantity int, unitPrice float64) float64 {
	return billing.Round2(float64(quantity) * billing.Round2(unitPrice))
}
