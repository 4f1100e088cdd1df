package types

import "time"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Pagination describes a page of a list response.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPagination computes the page count for total items.
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// ResponseMeta contains non-blocking metadata returned with API responses.
type ResponseMeta struct {
	Warnings   []string    `json:"warnings,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// ProductFilter narrows a product listing. Search matches the name
// case-insensitively.
type ProductFilter struct {
	Category string
	Search   string
}

// SaleFilter narrows a sale listing. Zero values disable a criterion.
type SaleFilter struct {
	ProductID string
	Search    string
	Category  string
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
}

// Offset returns the row offset for the filter's page.
func (f SaleFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// UserFilter narrows the admin user listing.
type UserFilter struct {
	Search string
	Role   Role
	Limit  int
}
