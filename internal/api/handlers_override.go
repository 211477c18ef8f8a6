/**
 * @description
 * HTTP handlers for the handover override workflow: raising a request,
 * approving or rejecting it, and the approver-facing listings.
 */

package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chequevault/custody-service/internal/domain"
)

func (h *Handlers) overrideIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "overrideID")
	id, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid override ID")
		return uuid.Nil, false
	}
	return id, true
}

// CreateOverrideHandler raises a handover override request for a cheque.
func (h *Handlers) CreateOverrideHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	chequeID, ok := h.chequeIDParam(w, r)
	if !ok {
		return
	}

	var req domain.CreateOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	override, err := h.overrides.CreateOverrideRequest(r.Context(), chequeID, req.Reason, identity, RequestContextFrom(r))
	if err != nil {
		h.writeServiceError(w, "create_override", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, override)
}

// ApproveOverrideHandler settles a pending override as approved.
func (h *Handlers) ApproveOverrideHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	overrideID, ok := h.overrideIDParam(w, r)
	if !ok {
		return
	}

	override, err := h.overrides.ApproveOverride(r.Context(), overrideID, identity, RequestContextFrom(r))
	if err != nil {
		h.writeServiceError(w, "approve_override", err)
		return
	}
	h.writeJSON(w, http.StatusOK, override)
}

// RejectOverrideHandler settles a pending override as rejected.
func (h *Handlers) RejectOverrideHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	overrideID, ok := h.overrideIDParam(w, r)
	if !ok {
		return
	}

	var req domain.RejectOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	override, err := h.overrides.RejectOverride(r.Context(), overrideID, req.Reason, identity, RequestContextFrom(r))
	if err != nil {
		h.writeServiceError(w, "reject_override", err)
		return
	}
	h.writeJSON(w, http.StatusOK, override)
}

// GetOverrideHandler retrieves a single override request.
func (h *Handlers) GetOverrideHandler(w http.ResponseWriter, r *http.Request) {
	overrideID, ok := h.overrideIDParam(w, r)
	if !ok {
		return
	}
	override, err := h.overrides.GetOverrideByID(r.Context(), overrideID)
	if err != nil {
		h.writeServiceError(w, "get_override", err)
		return
	}
	h.writeJSON(w, http.StatusOK, override)
}

// ListPendingOverridesHandler lists outstanding overrides for approvers.
func (h *Handlers) ListPendingOverridesHandler(w http.ResponseWriter, r *http.Request) {
	overrides, err := h.overrides.GetPendingOverrides(r.Context(), queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		h.writeServiceError(w, "list_pending_overrides", err)
		return
	}
	if overrides == nil {
		overrides = []domain.HandoverOverride{}
	}
	h.writeJSON(w, http.StatusOK, overrides)
}

// ListOverridesByChequeHandler lists all overrides raised for a cheque.
func (h *Handlers) ListOverridesByChequeHandler(w http.ResponseWriter, r *http.Request) {
	chequeID, ok := h.chequeIDParam(w, r)
	if !ok {
		return
	}
	overrides, err := h.overrides.GetOverridesByCheque(r.Context(), chequeID)
	if err != nil {
		h.writeServiceError(w, "list_overrides_by_cheque", err)
		return
	}
	if overrides == nil {
		overrides = []domain.HandoverOverride{}
	}
	h.writeJSON(w, http.StatusOK, overrides)
}
