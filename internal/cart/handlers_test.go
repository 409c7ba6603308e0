package cart_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/gmeppo/eppo-proposals/internal/cart"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	h := &cart.Handler{Svc: newService(t, nil)}
	r := chi.NewRouter()
	r.Route("/api/v1/carts/{session}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Clear)
		r.Post("/items", h.AddItem)
		r.Patch("/items/{itemId}", h.UpdateItem)
		r.Delete("/items/{itemId}", h.RemoveItem)
		r.Get("/editing", h.Editing)
		r.Put("/editing", h.SetEditing)
		r.Delete("/editing", h.ClearEditing)
	})
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type viewBody struct {
	Data cart.View `json:"data"`
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) cart.View {
	t.Helper()
	var body viewBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Data
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestCartHandlersFlow(t *testing.T) {
	router := newRouter(t)

	rec := do(t, router, http.MethodPost, "/api/v1/carts/s1/items", `{"productId":"gel","quantity":90}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	view := decodeView(t, rec)
	require.Len(t, view.Lines, 1)
	require.Equal(t, 96, view.Lines[0].Quantity)
	require.False(t, view.Valid)
	lineID := view.Lines[0].ID

	rec = do(t, router, http.MethodPatch, "/api/v1/carts/s1/items/"+lineID, `{"quantity":460,"notes":"logo"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decodeView(t, rec)
	require.Equal(t, 480, view.Lines[0].Quantity)
	require.Equal(t, "logo", view.Lines[0].Notes)
	require.NotNil(t, view.Lines[0].Upsell)
	require.True(t, view.Valid)

	rec = do(t, router, http.MethodPatch, "/api/v1/carts/s1/items/"+lineID, `{"variantId":"xl"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decodeView(t, rec)
	require.Equal(t, "xl", view.Lines[0].VariantID)
	require.True(t, view.Lines[0].Price.Equal(dec("0.60")))

	rec = do(t, router, http.MethodGet, "/api/v1/carts/s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeView(t, rec).Lines, 1)

	rec = do(t, router, http.MethodDelete, "/api/v1/carts/s1/items/"+lineID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decodeView(t, rec).Lines)

	rec = do(t, router, http.MethodDelete, "/api/v1/carts/s1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCartHandlersErrors(t *testing.T) {
	router := newRouter(t)

	rec := do(t, router, http.MethodPost, "/api/v1/carts/s1/items", `{"quantity":3}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION_FAILED", errorCode(t, rec))

	rec = do(t, router, http.MethodPost, "/api/v1/carts/s1/items", `{"productId":"gel","extra":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/v1/carts/s1/items", `{"productId":"missing"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "PRODUCT_NOT_FOUND", errorCode(t, rec))

	rec = do(t, router, http.MethodPatch, "/api/v1/carts/s1/items/nope", `{"quantity":3}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPatch, "/api/v1/carts/s1/items/nope", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/carts/bad%20session", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartHandlersUpdateIsAtomic(t *testing.T) {
	router := newRouter(t)

	rec := do(t, router, http.MethodPost, "/api/v1/carts/s1/items", `{"productId":"gel","quantity":24}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	lineID := decodeView(t, rec).Lines[0].ID

	rec = do(t, router, http.MethodPatch, "/api/v1/carts/s1/items/"+lineID, `{"variantId":"nope","quantity":480,"notes":"logo"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/carts/s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeView(t, rec)
	require.Equal(t, 24, view.Lines[0].Quantity)
	require.Empty(t, view.Lines[0].Notes)
}

func TestCartEditingHandlers(t *testing.T) {
	router := newRouter(t)
	id := "5f0c1d5e-8c43-4d0f-9d3c-3f6f7f0b7a10"

	rec := do(t, router, http.MethodPut, "/api/v1/carts/s1/editing", `{"proposalId":"not-a-uuid"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPut, "/api/v1/carts/s1/editing", `{"proposalId":"`+id+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/carts/s1/editing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), id)

	rec = do(t, router, http.MethodDelete, "/api/v1/carts/s1/editing", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/carts/s1/editing", "")
	require.JSONEq(t, `{"data":{"proposalId":null}}`, rec.Body.String())
}
