/**
 * @description
 * Append-only audit trail models. The audit log is the sole source of truth
 * for "what happened and when": Cheque and Otp rows are mutated in place, so
 * historical reconstruction must go through these entries.
 *
 * The Details payload is intentionally schema-less (heterogeneous per-action
 * shapes); the expected shape per action tag is pinned down by the service
 * tests rather than the type system.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction tags the kind of state-affecting action an audit entry records.
type AuditAction string

const (
	AuditChequeCreated        AuditAction = "CHEQUE_CREATED"
	AuditStatusChanged        AuditAction = "STATUS_CHANGED"
	AuditForwardedToReception AuditAction = "FORWARDED_TO_RECEPTION"
	AuditHandoverCompleted    AuditAction = "HANDOVER_COMPLETED"
	AuditChequeCancelled      AuditAction = "CHEQUE_CANCELLED"
	AuditOtpGenerated         AuditAction = "OTP_GENERATED"
	AuditOtpVerified          AuditAction = "OTP_VERIFIED"
	AuditOtpFailed            AuditAction = "OTP_FAILED"
	AuditOtpExpired           AuditAction = "OTP_EXPIRED"
	AuditOverrideRequested    AuditAction = "OVERRIDE_REQUESTED"
	AuditOverrideApproved     AuditAction = "OVERRIDE_APPROVED"
	AuditOverrideRejected     AuditAction = "OVERRIDE_REJECTED"
)

// AuditLogEntry is one append-only record of a state-affecting action.
// ChequeID is nil for events not scoped to a cheque; ActorID is nil for
// system actions such as the expiry sweep.
type AuditLogEntry struct {
	ID        uuid.UUID              `json:"id"`
	ChequeID  *uuid.UUID             `json:"cheque_id,omitempty"`
	Action    AuditAction            `json:"action"`
	ActorID   *uuid.UUID             `json:"actor_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestIP *string                `json:"request_ip,omitempty"`
	RequestUA *string                `json:"request_user_agent,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
