package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"bizpulse/internal/core"
	"bizpulse/internal/types"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	salesSheet      = "Sales"

	maxImportBytes = 5 << 20
	maxImportRows  = 5000
)

var exportHeader = []any{"Product", "Quantity", "Unit Price", "Date", "Customer", "Category", "Total"}

// ImportRowError explains why a spreadsheet row was skipped. Row is 1-based
// as shown in a spreadsheet application.
type ImportRowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ImportResult summarizes a spreadsheet import.
type ImportResult struct {
	Created int              `json:"created"`
	Skipped int              `json:"skipped"`
	Errors  []ImportRowError `json:"errors"`
}

// HandleExport streams every sale matching the list filters as an XLSX
// workbook. Pagination parameters are ignored. The column layout is the
// one HandleImport reads back.
func (h *SaleHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
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
	f.Page, f.Limit = 0, 0

	sales, _, err := h.sales.List(r.Context(), biz.ID, f)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	book, err := buildSalesWorkbook(sales)
	if err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build export", err))
		return
	}
	defer book.Close()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="sales-%s.xlsx"`, h.clock.Now().Format("20060102")))
	w.WriteHeader(http.StatusOK)
	// Headers are already sent, so a failed write can only be logged.
	if err := book.Write(w); err != nil {
		h.logger.WarnContext(r.Context(), "sales export write failed",
			"business_id", biz.ID,
			"rows", len(sales),
			"error", err,
		)
	}
}

func buildSalesWorkbook(sales []*types.Sale) (*excelize.File, error) {
	book := excelize.NewFile()
	if err := book.SetSheetName("Sheet1", salesSheet); err != nil {
		book.Close()
		return nil, err
	}
	if err := book.SetSheetRow(salesSheet, "A1", &exportHeader); err != nil {
		book.Close()
		return nil, err
	}
	for i, s := range sales {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			book.Close()
			return nil, err
		}
		row := []any{s.ProductName, s.Quantity, s.UnitPrice, s.Date.UTC().Format(time.DateOnly), s.CustomerName, s.Category, s.Total}
		if err := book.SetSheetRow(salesSheet, cell, &row); err != nil {
			book.Close()
			return nil, err
		}
	}
	return book, nil
}

// HandleImport creates sales from an uploaded XLSX workbook (multipart
// field "file"). The first sheet is read; columns are product, quantity,
// unit price, date and customer, the last three optional. A header row is
// detected by its first cell and skipped. Rows naming an unknown product or
// carrying bad values are skipped and reported.
func (h *SaleHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	_, biz, err := h.businesses.Resolve(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	rows, err := readUploadedRows(w, r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	result := ImportResult{Errors: []ImportRowError{}}
	for i, row := range rows {
		if i == 0 && isHeaderRow(row) {
			continue
		}
		if isBlankRow(row) {
			continue
		}

		sale, reason, err := h.saleFromRow(r, biz.ID, row)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		if reason != "" {
			result.Skipped++
			result.Errors = append(result.Errors, ImportRowError{Row: i + 1, Reason: reason})
			continue
		}
		if err := h.sales.Create(r.Context(), sale); err != nil {
			core.Error(w, r, err)
			return
		}
		result.Created++
	}

	core.Success(w, r, http.StatusOK, result)
}

// saleFromRow builds a sale from one spreadsheet row. A non-empty reason
// means the row is skipped; an error aborts the import.
func (h *SaleHandler) saleFromRow(r *http.Request, businessID string, row []string) (*types.Sale, string, error) {
	name := cellAt(row, 0)
	if name == "" {
		return nil, "product is required", nil
	}
	quantity, err := strconv.Atoi(cellAt(row, 1))
	if err != nil || quantity <= 0 {
		return nil, "quantity must be a positive whole number", nil
	}

	var unitPrice *float64
	if raw := cellAt(row, 2); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return nil, "unit price must be a non-negative number", nil
		}
		unitPrice = &v
	}

	date := h.clock.Now()
	if raw := cellAt(row, 3); raw != "" {
		if date, err = parseCalendarDate(raw, false); err != nil {
			return nil, "date must be YYYY-MM-DD", nil
		}
	}

	product, err := h.products.FindByName(r.Context(), businessID, name)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundProduct {
			return nil, fmt.Sprintf("unknown product %q", name), nil
		}
		return nil, "", err
	}

	return newSale(businessID, product, quantity, positiveOr(unitPrice, product.Price), date, cellAt(row, 4), h.clock.Now()), "", nil
}

func readUploadedRows(w http.ResponseWriter, r *http.Request) ([][]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidFile, "An XLSX file is required in the \"file\" field", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidFile, "Failed to read uploaded file", err)
	}

	book, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidFile, "Uploaded file is not a valid XLSX workbook", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	it, err := book.Rows(sheets[0])
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidFile, "Failed to read worksheet", err)
	}
	defer it.Close()

	var rows [][]string
	for it.Next() {
		if len(rows) == maxImportRows {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidFile,
				fmt.Sprintf("Workbook exceeds %d rows", maxImportRows), nil,
				map[string]any{"max_rows": maxImportRows})
		}
		cols, err := it.Columns()
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeValidationInvalidFile, "Failed to read worksheet", err)
		}
		rows = append(rows, cols)
	}
	return rows, nil
}

func cellAt(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isHeaderRow(row []string) bool {
	return strings.EqualFold(cellAt(row, 0), "product")
}

func isBlankRow(row []string) bool {
	for i := range row {
		if cellAt(row, i) != "" {
			return false
		}
	}
	return true
}
