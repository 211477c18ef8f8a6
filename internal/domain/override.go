/**
 * @description
 * Domain models for the manual handover override path. An override is a
 * two-person-integrity escape hatch: one party requests the OTP bypass with a
 * mandatory reason, a second party approves or rejects it. Decided records are
 * terminal and immutable.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// OverrideStatus is the lifecycle state of a handover override request.
type OverrideStatus string

const (
	OverrideStatusPending  OverrideStatus = "PENDING"
	OverrideStatusApproved OverrideStatus = "APPROVED"
	OverrideStatusRejected OverrideStatus = "REJECTED"
)

// HandoverOverride is a request to bypass the OTP-verification gate for a
// specific cheque. Maps to the `handover_overrides` table.
type HandoverOverride struct {
	ID             uuid.UUID      `json:"id"`
	ChequeID       uuid.UUID      `json:"cheque_id"`
	RequesterID    uuid.UUID      `json:"requester_id"`
	Reason         string         `json:"reason"`
	Status         OverrideStatus `json:"status"`
	DecidedBy      *uuid.UUID     `json:"decided_by,omitempty"`
	DecidedAt      *time.Time     `json:"decided_at,omitempty"`
	RejectedReason *string        `json:"rejected_reason,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// CreateOverrideRequest is the DTO for override creation API requests.
type CreateOverrideRequest struct {
	Reason string `json:"reason"`
}

// RejectOverrideRequest is the DTO for override rejection API requests.
type RejectOverrideRequest struct {
	Reason string `json:"reason"`
}
