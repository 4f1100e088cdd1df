package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizpulse/internal/types"
)

func TestBusinessHandler_Get(t *testing.T) {
	_, store := testResolver()
	h := NewBusinessHandler(store, testValidator())

	w := serve(h.RegisterRoutes, newRequest(http.MethodGet, "/business", nil, testActor()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out struct {
		Business types.Business `json:"business"`
	}
	decodeData(t, w, &out)
	assert.Equal(t, "biz_1", out.Business.ID)
	assert.Equal(t, "Corner Cafe", out.Business.Name)
}

func TestBusinessHandler_GetMissing(t *testing.T) {
	_, store := testResolver()
	store.biz = nil
	h := NewBusinessHandler(store, testValidator())

	w := serve(h.RegisterRoutes, newRequest(http.MethodGet, "/business", nil, testActor()))

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(types.ErrCodeNotFoundBusiness), decodeError(t, w).Code)
}

func TestBusinessHandler_Update(t *testing.T) {
	_, store := testResolver()
	h := NewBusinessHandler(store, testValidator())

	body := map[string]string{"name": "  Harbor Bakery ", "description": "Bread and coffee"}
	w := serve(h.RegisterRoutes, newRequest(http.MethodPut, "/business", body, testActor()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, "Harbor Bakery", store.biz.Name)
	assert.Equal(t, "Bread and coffee", store.biz.Description)
}

func TestBusinessHandler_UpdateRequiresName(t *testing.T) {
	_, store := testResolver()
	h := NewBusinessHandler(store, testValidator())

	w := serve(h.RegisterRoutes, newRequest(http.MethodPut, "/business", map[string]string{"name": "   "}, testActor()))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(types.ErrCodeValidationMissingField), decodeError(t, w).Code)
	assert.Equal(t, "Corner Cafe", store.biz.Name)
}

func TestBusinessHandler_Unauthenticated(t *testing.T) {
	_, store := testResolver()
	h := NewBusinessHandler(store, testValidator())

	w := serve(h.RegisterRoutes, newRequest(http.MethodGet, "/business", nil, types.Actor{}))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
