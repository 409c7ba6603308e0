package proposal_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gmeppo/eppo-proposals/internal/cart"
	"github.com/gmeppo/eppo-proposals/internal/proposal"
)

func newRouter(f fixture) http.Handler {
	h := &proposal.Handler{Svc: f.svc}
	r := chi.NewRouter()
	r.Post("/api/v1/carts/{session}/proposal", h.Save)
	r.Post("/api/v1/carts/{session}/proposal/{id}/open", h.Open)
	r.Get("/api/v1/proposals", h.List)
	r.Get("/api/v1/proposals/{id}", h.Get)
	r.Get("/api/v1/proposals/{id}/html", h.HTML)
	r.Get("/api/v1/proposals/{id}/pdf", h.PDF)
	return r
}

func send(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestProposalHandlers(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)
	ctx := context.Background()

	rec := send(router, http.MethodPost, "/api/v1/carts/s1/proposal", `{"client":{"name":"Ana"}}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "EMPTY_CART")

	_, err := f.carts.AddItem(ctx, "s1", cart.AddItemInput{ProductID: "gel", Quantity: 120})
	require.NoError(t, err)

	rec = send(router, http.MethodPost, "/api/v1/carts/s1/proposal", `{"client":{"email":"bad"}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "VALIDATION_FAILED")

	rec = send(router, http.MethodPost, "/api/v1/carts/s1/proposal", `{"client":{"name":"Ana"},"discount":"-1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(router, http.MethodPost, "/api/v1/carts/s1/proposal", `{"client":{"name":"Ana"},"discount":"8"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Data proposal.View `json:"data"`
		Mode string        `json:"mode"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, proposal.ModeCreate, created.Mode)
	id := created.Data.ID.String()
	require.Equal(t, "/api/v1/proposals/"+id, rec.Header().Get("Location"))
	require.True(t, created.Data.Totals.Total.Equal(dec("48.4")))

	rec = send(router, http.MethodPost, "/api/v1/carts/s1/proposal", `{"client":{"name":"Ana"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = send(router, http.MethodGet, "/api/v1/proposals/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = send(router, http.MethodGet, "/api/v1/proposals/not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(router, http.MethodGet, "/api/v1/proposals/"+uuid.NewString(), "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = send(router, http.MethodGet, "/api/v1/proposals?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1", rec.Header().Get("X-Total-Count"))

	rec = send(router, http.MethodGet, "/api/v1/proposals/"+id+"/html", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	rec = send(router, http.MethodGet, "/api/v1/proposals/"+id+"/pdf", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.Equal(t, "%PDF-1.7 fake", rec.Body.String())

	rec = send(router, http.MethodPost, "/api/v1/carts/s9/proposal/"+id+"/open", "")
	require.Equal(t, http.StatusOK, rec.Code)
	c, err := f.carts.Get(ctx, "s9")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
}
