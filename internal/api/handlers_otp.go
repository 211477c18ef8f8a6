/**
 * @description
 * HTTP handlers for the OTP endpoints. Verification outcomes are rendered with
 * their full structure (remaining attempts, lock flag) so the UI can offer the
 * override workflow as a next step instead of hitting a dead end.
 */

package api

import (
	"encoding/json"
	"net/http"

	"github.com/chequevault/custody-service/internal/domain"
)

// GenerateOtpHandler issues a new OTP for a cheque and queues its delivery.
func (h *Handlers) GenerateOtpHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	chequeID, ok := h.chequeIDParam(w, r)
	if !ok {
		return
	}

	var req domain.GenerateOtpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Destination == "" {
		h.writeError(w, http.StatusBadRequest, "destination is required")
		return
	}

	result, err := h.otps.GenerateOtp(r.Context(), chequeID, req, identity, RequestContextFrom(r))
	if err != nil {
		h.writeServiceError(w, "generate_otp", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

// VerifyOtpHandler checks a submitted code. Business failures come back as a
// 200 with the structured result; only infra faults map to 500.
func (h *Handlers) VerifyOtpHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	chequeID, ok := h.chequeIDParam(w, r)
	if !ok {
		return
	}

	var req domain.VerifyOtpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Code == "" {
		h.writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	result, err := h.otps.VerifyOtp(r.Context(), chequeID, req.Code, identity, RequestContextFrom(r))
	if err != nil {
		h.writeServiceError(w, "verify_otp", err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}
