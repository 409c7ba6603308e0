package proposal

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gmeppo/eppo-proposals/internal/cart"
	"github.com/gmeppo/eppo-proposals/internal/common"
	"github.com/gmeppo/eppo-proposals/internal/lock"
)

// Handler exposes proposal endpoints.
type Handler struct {
	Svc *Service
}

type saveRequest struct {
	Client   Client           `json:"client"`
	Discount *decimal.Decimal `json:"discount"`
}

// View is a proposal with its history rendered as readable lines.
type View struct {
	Proposal
	ChangeLog []string `json:"changeLog"`
}

func newView(p Proposal) View {
	log := []string{}
	for _, entry := range p.History {
		log = append(log, ChangeLog(entry.Changes)...)
	}
	return View{Proposal: p, ChangeLog: log}
}

// Save handles POST /api/v1/carts/{session}/proposal.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var payload saveRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	discount := decimal.Zero
	if payload.Discount != nil {
		discount = *payload.Discount
	}
	if discount.IsNegative() {
		common.WriteError(w, common.BadRequest("discount", "discount must not be negative", nil))
		return
	}
	p, mode, err := h.Svc.SaveFromCart(r.Context(), chi.URLParam(r, "session"), SaveInput{Client: payload.Client, Discount: discount})
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if mode == ModeCreate {
		status = http.StatusCreated
	}
	w.Header().Set("Location", "/api/v1/proposals/"+p.ID.String())
	common.JSON(w, status, map[string]any{"data": newView(p), "mode": mode})
}

// Open handles POST /api/v1/carts/{session}/proposal/{id}/open.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	p, err := h.Svc.Open(r.Context(), chi.URLParam(r, "session"), id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, newView(p))
}

// List handles GET /api/v1/proposals?page=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	page, perPage := common.ParsePagination(r, 20, 100)
	rows, total, err := h.Svc.List(r.Context(), perPage, common.Offset(page, perPage))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]View, 0, len(rows))
	for _, p := range rows {
		out = append(out, newView(p))
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       out,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}

// Get handles GET /api/v1/proposals/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	p, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, newView(p))
}

// HTML handles GET /api/v1/proposals/{id}/html.
func (h *Handler) HTML(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	body, err := h.Svc.HTML(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// PDF handles GET /api/v1/proposals/{id}/pdf.
func (h *Handler) PDF(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	body, err := h.Svc.PDF(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="proposal-`+id.String()[:8]+`.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "proposal service not configured", nil)
		return false
	}
	return true
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, common.BadRequest("id", "invalid proposal id", err))
		return uuid.UUID{}, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	if common.IsAppError(err) {
		common.WriteError(w, err)
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", err.Error(), nil)
	case errors.Is(err, ErrInvalidLines):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_QUANTITIES", err.Error(), nil)
	case errors.Is(err, cart.ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, lock.ErrNotConfigured), errors.Is(err, ErrPDFUnavailable):
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to process proposal", nil)
	}
}
