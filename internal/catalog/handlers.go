package catalog

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gmeppo/eppo-proposals/internal/common"
	"github.com/gmeppo/eppo-proposals/internal/pricing"
)

// Handler exposes public catalog endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// ProductView is the public product payload with the name resolved for the
// requested language.
type ProductView struct {
	Product
	Name string `json:"name"`
}

// CategoryView is the public category payload.
type CategoryView struct {
	Category
	Name string `json:"name"`
}

// Categories handles GET /api/v1/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	rows, err := h.service.ListCategories(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	lang := h.language(r)
	out := make([]CategoryView, 0, len(rows))
	for _, c := range rows {
		out = append(out, CategoryView{Category: c, Name: c.Name(lang)})
	}
	common.Data(w, http.StatusOK, out)
}

// Products handles GET /api/v1/products?category=&q=&page=&limit=.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	q := r.URL.Query()
	rows, err := h.service.ListProducts(r.Context(), ListFilter{Category: q.Get("category"), Query: q.Get("q")})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	page, perPage := common.ParsePagination(r, 50, 200)
	start := min(common.Offset(page, perPage), len(rows))
	end := min(start+perPage, len(rows))

	lang := h.language(r)
	out := make([]ProductView, 0, end-start)
	for _, p := range rows[start:end] {
		out = append(out, ProductView{Product: p, Name: p.Name(lang)})
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(len(rows)))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       out,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: len(rows)},
	})
}

// Product handles GET /api/v1/products/{id}.
func (h *Handler) Product(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	p, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, ProductView{Product: p, Name: p.Name(h.language(r))})
}

// Quote handles GET /api/v1/products/{id}/quote?qty=&variant=.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	rawQty := strings.TrimSpace(r.URL.Query().Get("qty"))
	qty := 1
	if rawQty != "" {
		parsed, err := strconv.Atoi(rawQty)
		if err != nil {
			common.WriteError(w, common.BadRequest("qty", "qty must be an integer", err))
			return
		}
		qty = parsed
	}
	if qty < 0 || qty > pricing.MaxQuantity {
		common.WriteError(w, common.BadRequest("qty", fmt.Sprintf("qty must be between 0 and %d", pricing.MaxQuantity), nil))
		return
	}
	quote, err := h.service.Quote(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("variant"), qty)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, quote)
}

// language picks ?lang=, then the first Accept-Language tag, then the service default.
func (h *Handler) language(r *http.Request) string {
	if lang := strings.TrimSpace(r.URL.Query().Get("lang")); lang != "" {
		return strings.ToLower(lang)
	}
	if header := r.Header.Get("Accept-Language"); header != "" {
		tag := strings.TrimSpace(strings.SplitN(strings.SplitN(header, ",", 2)[0], ";", 2)[0])
		if primary := strings.SplitN(tag, "-", 2)[0]; primary != "" && primary != "*" {
			return strings.ToLower(primary)
		}
	}
	return h.service.Language()
}
