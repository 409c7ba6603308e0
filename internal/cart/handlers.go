package cart

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gmeppo/eppo-proposals/internal/catalog"
	"github.com/gmeppo/eppo-proposals/internal/common"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc *Service
}

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required,max=128"`
	VariantID string `json:"variantId" validate:"max=128"`
	Quantity  int    `json:"quantity" validate:"gte=0,lte=1000000"`
	Notes     string `json:"notes" validate:"max=2000"`
}

type updateItemRequest struct {
	Quantity  *int    `json:"quantity" validate:"omitempty,gte=0,lte=1000000"`
	VariantID *string `json:"variantId" validate:"omitempty,max=128"`
	Notes     *string `json:"notes" validate:"omitempty,max=2000"`
}

type editingRequest struct {
	ProposalID string `json:"proposalId" validate:"required,uuid"`
}

// Get handles GET /api/v1/carts/{session}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	view, err := h.Svc.View(r.Context(), chi.URLParam(r, "session"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

// AddItem handles POST /api/v1/carts/{session}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var payload addItemRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	session := chi.URLParam(r, "session")
	_, err := h.Svc.AddItem(r.Context(), session, AddItemInput{
		ProductID: payload.ProductID,
		VariantID: payload.VariantID,
		Quantity:  payload.Quantity,
		Notes:     payload.Notes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respondView(w, r, session, http.StatusCreated)
}

// UpdateItem handles PATCH /api/v1/carts/{session}/items/{itemId}. Variant,
// quantity and notes are applied together or not at all.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var payload updateItemRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	if payload.Quantity == nil && payload.VariantID == nil && payload.Notes == nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "nothing to update", nil)
		return
	}
	session := chi.URLParam(r, "session")
	_, err := h.Svc.UpdateLine(r.Context(), session, chi.URLParam(r, "itemId"), LineUpdate{
		VariantID: payload.VariantID,
		Quantity:  payload.Quantity,
		Notes:     payload.Notes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respondView(w, r, session, http.StatusOK)
}

// RemoveItem handles DELETE /api/v1/carts/{session}/items/{itemId}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	session := chi.URLParam(r, "session")
	if _, err := h.Svc.RemoveItem(r.Context(), session, chi.URLParam(r, "itemId")); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondView(w, r, session, http.StatusOK)
}

// Clear handles DELETE /api/v1/carts/{session}.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if err := h.Svc.Clear(r.Context(), chi.URLParam(r, "session")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Editing handles GET /api/v1/carts/{session}/editing.
func (h *Handler) Editing(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok, err := h.Svc.Editing(r.Context(), chi.URLParam(r, "session"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !ok {
		common.Data(w, http.StatusOK, map[string]any{"proposalId": nil})
		return
	}
	common.Data(w, http.StatusOK, map[string]any{"proposalId": id})
}

// SetEditing handles PUT /api/v1/carts/{session}/editing.
func (h *Handler) SetEditing(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var payload editingRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Svc.SetEditing(r.Context(), chi.URLParam(r, "session"), payload.ProposalID); err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{"proposalId": payload.ProposalID})
}

// ClearEditing handles DELETE /api/v1/carts/{session}/editing.
func (h *Handler) ClearEditing(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if err := h.Svc.ClearEditing(r.Context(), chi.URLParam(r, "session")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondView(w http.ResponseWriter, r *http.Request, session string, status int) {
	view, err := h.Svc.View(r.Context(), session)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, status, view)
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	if common.IsAppError(err) {
		common.WriteError(w, err)
		return
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, catalog.ErrProductNotFound):
		common.JSONError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrConflict):
		common.WriteError(w, common.Conflict(err.Error(), err))
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to process cart", nil)
	}
}
