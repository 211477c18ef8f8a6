/**
 * @description
 * HTTP handlers for the cheque lifecycle endpoints. Handlers parse requests,
 * call the application services, and translate typed business errors into
 * HTTP statuses. Infrastructure faults become a uniform 500.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: Service logic, models, and errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chequevault/custody-service/internal/app"
	"github.com/chequevault/custody-service/internal/domain"
	"github.com/chequevault/custody-service/internal/store"
)

// Handlers holds the application services that the HTTP layer exposes.
type Handlers struct {
	cheques   *app.ChequeService
	otps      *app.OtpService
	overrides *app.OverrideService
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(cheques *app.ChequeService, otps *app.OtpService, overrides *app.OverrideService) *Handlers {
	return &Handlers{cheques: cheques, otps: otps, overrides: overrides}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
		}
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps typed business errors onto HTTP statuses; anything
// unrecognized is an infrastructure fault and maps to 500.
func (h *Handlers) writeServiceError(w http.ResponseWriter, endpoint string, err error) {
	var transitionErr *app.InvalidTransitionError
	var decidedErr *app.OverrideDecidedError

	switch {
	case errors.Is(err, app.ErrValidation):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrChequeNotFound),
		errors.Is(err, store.ErrOverrideNotFound),
		errors.Is(err, store.ErrHandoverNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrChequeNumberExists):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &transitionErr):
		h.writeError(w, http.StatusConflict, transitionErr.Error())
	case errors.As(err, &decidedErr):
		h.writeError(w, http.StatusConflict, decidedErr.Error())
	case errors.Is(err, app.ErrCancelIssuedCheque):
		h.writeError(w, http.StatusConflict, "Cannot cancel an already issued cheque")
	case errors.Is(err, app.ErrHandoverNotAuthorized):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrOverridePending):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrActiveOtpExists):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrInvalidOtpChannel):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrOtpRateLimited), errors.Is(err, app.ErrOtpThrottled):
		h.writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		log.Printf("level=error component=api endpoint=%s msg=\"unhandled service error\" err=%v", endpoint, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *Handlers) identity(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	identity, ok := GetIdentity(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get caller identity from context")
	}
	return identity, ok
}

func (h *Handlers) chequeIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "chequeID")
	id, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid cheque ID")
		return uuid.Nil, false
	}
	return id, true
}

// CreateChequeHandler registers a new cheque under custody.
func (h *Handlers) CreateChequeHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req domain.CreateChequeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cheque, err := h.cheques.CreateCheque(r.Context(), req, identity, RequestContextFrom(r))
	if err != nil {
		h.writeServiceError(w, "create_cheque", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, cheque)
}

// ListChequesHandler lists cheques visible to the caller's role.
func (h *Handlers) ListChequesHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	opts := domain.ChequeListOptions{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	cheques, err := h.cheques.ListCheques(r.Context(), identity, opts)
	if err != nil {
		h.writeServiceError(w, "list_cheques", err)
		return
	}
	if cheques == nil {
		cheques = []domain.Cheque{}
	}
	h.writeJSON(w, http.StatusOK, cheques)
}

// GetChequeHandler retrieves a single cheque.
func (h *Handlers) GetChequeHandler(w http.ResponseWriter, r *http.Request) {
	chequeID, ok := h.chequeIDParam(w, r)
	if !ok {
		return
	}
	cheque, err := h.cheques.GetChequeByID(r.Context(), chequeID)
	if err != nil {
		h.writeServiceError(w, "get_cheque", err)
		return
	}
	h.writeJSON(w, http.StatusOK, cheque)
}

// MarkReadyForDispatchHandler moves a SIGNED cheque into the dispatch queue.
func (h *Handlers) MarkReadyForDispatchHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	chequeID, ok := h.chequeIDParam(w, r)
	if !ok {
		return
	}
	cheque, err := h.cheques.MarkReadyForDispatch(r.Context(), chequeID, identity, RequestContextFrom(r))
	if err != nil {
		h.writeServiceError(w, "mark_ready_for_dispatch", err)
		return
	}
	h.writeJSON(w, http.StatusOK, cheque)
}

type forwardRequest struct {
	Notes string `json:"notes,omitempty"`
}

// ForwardToReceptionHandler records the accounts-to-reception custody transfer.
func (h *Handlers) ForwardToReceptionHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	chequeID, ok := h.chequeIDParam(w, r)
	if !ok {
		return
	}

	var req forwardRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	cheque, err := h.cheques.ForwardToReception(r.Context(), chequeID, req.Notes, identity, RequestContextFrom(r))
	if err != nil {
		h.writeServiceError(w, "forward_to_reception", err)
		return
	}
	h.writeJSON(w, http.StatusOK, cheque)
}

// CompleteHandoverHandler performs the final OTP- or override-authorized handover.
func (h *Handlers) CompleteHandoverHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	chequeID, ok := h.chequeIDParam(w, r)
	if !ok {
		return
	}

	var params domain.HandoverParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	record, err := h.cheques.CompleteHandover(r.Context(), chequeID, params, identity, RequestContextFrom(r))
	if err != nil {
		h.writeServiceError(w, "complete_handover", err)
		return
	}
	h.writeJSON(w, http.StatusOK, record)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// CancelChequeHandler cancels a non-issued cheque.
func (h *Handlers) CancelChequeHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	chequeID, ok := h.chequeIDParam(w, r)
	if !ok {
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cheque, err := h.cheques.CancelCheque(r.Context(), chequeID, req.Reason, identity, RequestContextFrom(r))
	if err != nil {
		h.writeServiceError(w, "cancel_cheque", err)
		return
	}
	h.writeJSON(w, http.StatusOK, cheque)
}

// GetAuditTrailHandler returns a cheque's audit entries in order.
func (h *Handlers) GetAuditTrailHandler(w http.ResponseWriter, r *http.Request) {
	chequeID, ok := h.chequeIDParam(w, r)
	if !ok {
		return
	}
	entries, err := h.cheques.GetAuditTrail(r.Context(), chequeID)
	if err != nil {
		h.writeServiceError(w, "get_audit_trail", err)
		return
	}
	if entries == nil {
		entries = []domain.AuditLogEntry{}
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// GetCustodyLogHandler returns a cheque's custody transfers in order.
func (h *Handlers) GetCustodyLogHandler(w http.ResponseWriter, r *http.Request) {
	chequeID, ok := h.chequeIDParam(w, r)
	if !ok {
		return
	}
	entries, err := h.cheques.GetCustodyLog(r.Context(), chequeID)
	if err != nil {
		h.writeServiceError(w, "get_custody_log", err)
		return
	}
	if entries == nil {
		entries = []domain.CustodyLogEntry{}
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// GetHandoverHandler returns the handover evidence for an issued cheque.
func (h *Handlers) GetHandoverHandler(w http.ResponseWriter, r *http.Request) {
	chequeID, ok := h.chequeIDParam(w, r)
	if !ok {
		return
	}
	record, err := h.cheques.GetHandoverRecord(r.Context(), chequeID)
	if err != nil {
		h.writeServiceError(w, "get_handover", err)
		return
	}
	h.writeJSON(w, http.StatusOK, record)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
