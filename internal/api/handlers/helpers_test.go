package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"bizpulse/internal/core"
	"bizpulse/internal/types"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func testClock() types.FixedClock { return types.FixedClock{T: testNow} }

func testValidator() *core.Validator { return core.NewValidator(nil) }

func testActor() types.Actor {
	return types.Actor{ID: "usr_1", Email: "owner@example.com", Role: types.RoleUser}
}

func testBusiness() *types.Business {
	return &types.Business{ID: "biz_1", UserID: "usr_1", Name: "Corner Cafe"}
}

// newRequest builds a request carrying actor when it has an id.
func newRequest(method, target string, body any, actor types.Actor) *http.Request {
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	case []byte:
		r = bytes.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	if actor.ID != "" {
		req = req.WithContext(types.WithActor(req.Context(), actor))
	}
	return req
}

// serve routes req through a chi router so URL params resolve.
func serve(register func(chi.Router), req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// decodeData unmarshals the data member of a success envelope into dst.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Data json.RawMessage     `json:"data"`
		Meta *types.ResponseMeta `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dst), string(env.Data))
}

// decodeError returns the error member of an error envelope.
func decodeError(t *testing.T, w *httptest.ResponseRecorder) core.ErrorDetail {
	t.Helper()
	var env core.APIErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Error
}

// --- fakes ---

type fakeBusinesses struct {
	biz *types.Business
	err error
}

func (f *fakeBusinesses) GetByUserID(_ context.Context, userID string) (*types.Business, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.biz == nil || f.biz.UserID != userID {
		return nil, types.NewAppError(types.ErrCodeNotFoundBusiness, "Business not found", nil)
	}
	return f.biz, nil
}

func (f *fakeBusinesses) Update(_ context.Context, userID, name, description string) (*types.Business, error) {
	if _, err := f.GetByUserID(context.Background(), userID); err != nil {
		return nil, err
	}
	f.biz.Name = name
	f.biz.Description = description
	return f.biz, nil
}

func testResolver() (*BusinessResolver, *fakeBusinesses) {
	b := &fakeBusinesses{biz: testBusiness()}
	return NewBusinessResolver(b), b
}

// memProducts is an in-memory ProductStore.
type memProducts struct {
	mu    sync.Mutex
	items map[string]*types.Product
}

func newMemProducts(products ...*types.Product) *memProducts {
	m := &memProducts{items: make(map[string]*types.Product)}
	for _, p := range products {
		m.items[p.ID] = p
	}
	return m
}

func (m *memProducts) Create(_ context.Context, p *types.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[p.ID] = p
	return nil
}

func (m *memProducts) GetByID(_ context.Context, businessID, id string) (*types.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok || p.BusinessID != businessID {
		return nil, types.NewAppError(types.ErrCodeNotFoundProduct, "Product not found", nil)
	}
	cp := *p
	return &cp, nil
}

func (m *memProducts) FindByName(_ context.Context, businessID, name string) (*types.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.items {
		if p.BusinessID == businessID && strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundProduct, "Product not found", nil)
}

func (m *memProducts) List(_ context.Context, businessID string, f types.ProductFilter) ([]*types.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.Product
	for _, p := range m.items {
		if p.BusinessID != businessID {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *types.Product) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *memProducts) Update(_ context.Context, p *types.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.items[p.ID]; !ok || cur.BusinessID != p.BusinessID {
		return types.NewAppError(types.ErrCodeNotFoundProduct, "Product not found", nil)
	}
	m.items[p.ID] = p
	return nil
}

func (m *memProducts) Delete(_ context.Context, businessID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.items[id]; !ok || p.BusinessID != businessID {
		return types.NewAppError(types.ErrCodeNotFoundProduct, "Product not found", nil)
	}
	delete(m.items, id)
	return nil
}

// memSales is an in-memory SaleStore. lastFilter records the most recent
// List filter.
type memSales struct {
	mu         sync.Mutex
	items      []*types.Sale
	lastFilter types.SaleFilter
}

func (m *memSales) Create(_ context.Context, s *types.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, s)
	return nil
}

func (m *memSales) GetByID(_ context.Context, businessID, id string) (*types.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.items {
		if s.ID == id && s.BusinessID == businessID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundSale, "Sale not found", nil)
}

func (m *memSales) List(_ context.Context, businessID string, f types.SaleFilter) ([]*types.Sale, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = f
	var matched []*types.Sale
	for _, s := range m.items {
		if s.BusinessID != businessID {
			continue
		}
		if f.ProductID != "" && s.ProductID != f.ProductID {
			continue
		}
		if f.StartDate != nil && s.Date.Before(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && s.Date.After(*f.EndDate) {
			continue
		}
		matched = append(matched, s)
	}
	slices.SortFunc(matched, func(a, b *types.Sale) int { return b.Date.Compare(a.Date) })
	total := len(matched)
	if f.Limit > 0 {
		start := min(f.Offset(), total)
		end := min(start+f.Limit, total)
		matched = matched[start:end]
	}
	return matched, total, nil
}

func (m *memSales) Update(_ context.Context, s *types.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cur := range m.items {
		if cur.ID == s.ID && cur.BusinessID == s.BusinessID {
			m.items[i] = s
			return nil
		}
	}
	return types.NewAppError(types.ErrCodeNotFoundSale, "Sale not found", nil)
}

func (m *memSales) Delete(_ context.Context, businessID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cur := range m.items {
		if cur.ID == id && cur.BusinessID == businessID {
			m.items = slices.Delete(m.items, i, i+1)
			return nil
		}
	}
	return types.NewAppError(types.ErrCodeNotFoundSale, "Sale not found", nil)
}

// mustField returns the raw JSON of one member of the data object.
func mustField(t *testing.T, w *httptest.ResponseRecorder, name string) string {
	t.Helper()
	var data map[string]json.RawMessage
	decodeData(t, w, &data)
	raw, ok := data[name]
	require.True(t, ok, "missing %q in %s", name, w.Body.String())
	return string(raw)
}
