/**
 * @description
 * This file defines the core domain models for the cheque custody subsystem.
 * These structs represent the entities and DTOs used throughout the service's
 * business logic, database interactions, and API layers.
 *
 * @notes
 * - Status fields use closed string-typed enums so that invalid states are
 *   caught at the domain boundary instead of deep inside a query.
 * - Amounts are stored as `int64` in the smallest currency unit (kobo), which
 *   avoids floating-point inaccuracies with financial data.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChequeStatus is the custody lifecycle state of a physical cheque.
type ChequeStatus string

const (
	ChequeStatusSigned           ChequeStatus = "SIGNED"
	ChequeStatusReadyForDispatch ChequeStatus = "READY_FOR_DISPATCH"
	ChequeStatusWithReception    ChequeStatus = "WITH_RECEPTION"
	ChequeStatusIssued           ChequeStatus = "ISSUED"
	ChequeStatusCancelled        ChequeStatus = "CANCELLED"
)

// IsTerminal reports whether no further custody transition is possible.
func (s ChequeStatus) IsTerminal() bool {
	return s == ChequeStatusIssued || s == ChequeStatusCancelled
}

// Cheque represents a physical negotiable instrument under custody.
// This struct maps directly to the `cheques` table in the database.
type Cheque struct {
	ID            uuid.UUID    `json:"id"`
	ChequeNo      string       `json:"cheque_no"`
	Amount        int64        `json:"amount"` // in kobo
	BankName      string       `json:"bank_name"`
	Branch        string       `json:"branch"`
	PayerName     string       `json:"payer_name"`
	PayeeName     string       `json:"payee_name"`
	DueDate       time.Time    `json:"due_date"`
	InitiatorID   uuid.UUID    `json:"initiator_id"`
	AttachmentRef *string      `json:"attachment_ref,omitempty"`
	Status        ChequeStatus `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// CreateChequeRequest is the DTO for incoming cheque registration API requests.
type CreateChequeRequest struct {
	ChequeNo      string    `json:"cheque_no"`
	Amount        int64     `json:"amount"` // in kobo
	BankName      string    `json:"bank_name"`
	Branch        string    `json:"branch"`
	PayerName     string    `json:"payer_name"`
	PayeeName     string    `json:"payee_name"`
	DueDate       time.Time `json:"due_date"`
	AttachmentRef *string   `json:"attachment_ref,omitempty"`
}

// ChequeListOptions controls filtering, search, and pagination for cheque listings.
type ChequeListOptions struct {
	Statuses    []ChequeStatus
	InitiatorID *uuid.UUID
	Search      string
	Limit       int
	Offset      int
}

// CustodyRole identifies an organizational party that can hold a cheque.
type CustodyRole string

const (
	CustodyRoleAccounts  CustodyRole = "ACCOUNTS"
	CustodyRoleReception CustodyRole = "RECEPTION"
	CustodyRoleVendor    CustodyRole = "VENDOR"
)

// CustodyLogEntry is an append-only record of a physical custody transfer
// between organizational roles. Entries are never mutated or deleted.
type CustodyLogEntry struct {
	ID        uuid.UUID   `json:"id"`
	ChequeID  uuid.UUID   `json:"cheque_id"`
	FromRole  CustodyRole `json:"from_role"`
	ToRole    CustodyRole `json:"to_role"`
	Notes     string      `json:"notes,omitempty"`
	CreatedBy uuid.UUID   `json:"created_by"`
	CreatedAt time.Time   `json:"created_at"`
}

// HandoverRecord is the immutable evidence that a cheque was physically
// handed to a named recipient. Exactly one record is created per successful
// handover, in the same transaction as the cheque's transition to ISSUED.
type HandoverRecord struct {
	ID                 uuid.UUID  `json:"id"`
	ChequeID           uuid.UUID  `json:"cheque_id"`
	RecipientName      string     `json:"recipient_name"`
	IDDocumentType     string     `json:"id_document_type"`
	IDDocumentNumber   string     `json:"id_document_number"`
	PhotoRef           *string    `json:"photo_ref,omitempty"`
	SignatureRef       *string    `json:"signature_ref,omitempty"`
	HandedOverBy       uuid.UUID  `json:"handed_over_by"`
	IsOverride         bool       `json:"is_override"`
	OverrideApprovedBy *uuid.UUID `json:"override_approved_by,omitempty"`
	OverrideReason     *string    `json:"override_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// HandoverParams carries the evidence and authorization inputs for a handover.
type HandoverParams struct {
	RecipientName      string     `json:"recipient_name"`
	IDDocumentType     string     `json:"id_document_type"`
	IDDocumentNumber   string     `json:"id_document_number"`
	PhotoRef           *string    `json:"photo_ref,omitempty"`
	SignatureRef       *string    `json:"signature_ref,omitempty"`
	IsOverride         bool       `json:"is_override"`
	OverrideApprovedBy *uuid.UUID `json:"override_approved_by,omitempty"`
	OverrideReason     *string    `json:"override_reason,omitempty"`
}
