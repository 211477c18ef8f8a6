/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access operations required by the custody service. The interface decouples
 * the business logic from the PostgreSQL implementation so services can be
 * exercised against in-memory stubs in tests.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/chequevault/custody-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Cheque methods
	CreateCheque(ctx context.Context, cheque *domain.Cheque) error
	FindChequeByID(ctx context.Context, chequeID uuid.UUID) (*domain.Cheque, error)
	// UpdateChequeStatus flips status from `from` to `to` in a single guarded
	// statement. Returns ErrStatusConflict when the row is no longer in `from`,
	// which is how two racing transitions are serialized.
	UpdateChequeStatus(ctx context.Context, chequeID uuid.UUID, from, to domain.ChequeStatus) error
	ListCheques(ctx context.Context, opts domain.ChequeListOptions) ([]domain.Cheque, error)
	// CompleteHandoverAtomic performs the WITH_RECEPTION -> ISSUED transition,
	// the HandoverRecord insert, and the custody log append in one transaction.
	CompleteHandoverAtomic(ctx context.Context, chequeID uuid.UUID, record *domain.HandoverRecord, custody *domain.CustodyLogEntry) error
	FindHandoverByChequeID(ctx context.Context, chequeID uuid.UUID) (*domain.HandoverRecord, error)

	// OTP methods
	CreateOtp(ctx context.Context, otp *domain.Otp) error
	// FindActiveOtpByCheque returns the most recent PENDING or LOCKED OTP for
	// the cheque. LOCKED rows are included so verification can report the
	// lockout instead of "not found"; expiry is the caller's decision.
	FindActiveOtpByCheque(ctx context.Context, chequeID uuid.UUID) (*domain.Otp, error)
	// FindPendingOtpByCheque returns the most recent unexpired PENDING OTP only;
	// this backs the single-active-issuance invariant.
	FindPendingOtpByCheque(ctx context.Context, chequeID uuid.UUID, now time.Time) (*domain.Otp, error)
	FindUsedOtpByCheque(ctx context.Context, chequeID uuid.UUID) (*domain.Otp, error)
	CountOtpsCreatedSince(ctx context.Context, chequeID uuid.UUID, since time.Time) (int, error)
	MarkOtpUsed(ctx context.Context, otpID uuid.UUID, usedBy uuid.UUID, usedAt time.Time) error
	MarkOtpExpired(ctx context.Context, otpID uuid.UUID) error
	// RecordFailedOtpAttempt atomically increments the attempt counter and
	// applies the lockout when the new count reaches maxAttempts, returning the
	// updated row. Concurrent wrong guesses each consume a distinct attempt.
	RecordFailedOtpAttempt(ctx context.Context, otpID uuid.UUID, maxAttempts int) (*domain.Otp, error)
	ExpireOldOtps(ctx context.Context, now time.Time) ([]domain.Otp, error)

	// Override methods
	CreateOverride(ctx context.Context, override *domain.HandoverOverride) error
	GetOverrideByID(ctx context.Context, overrideID uuid.UUID) (*domain.HandoverOverride, error)
	FindPendingOverrideByCheque(ctx context.Context, chequeID uuid.UUID) (*domain.HandoverOverride, error)
	FindApprovedOverrideByCheque(ctx context.Context, chequeID uuid.UUID) (*domain.HandoverOverride, error)
	// DecideOverride settles a PENDING override exactly once; a second decision
	// loses the guarded update and gets ErrStatusConflict.
	DecideOverride(ctx context.Context, overrideID uuid.UUID, status domain.OverrideStatus, decidedBy uuid.UUID, rejectedReason *string, decidedAt time.Time) error
	ListPendingOverrides(ctx context.Context, limit, offset int) ([]domain.HandoverOverride, error)
	ListOverridesByCheque(ctx context.Context, chequeID uuid.UUID) ([]domain.HandoverOverride, error)

	// Append-only logs
	AppendCustodyLog(ctx context.Context, entry *domain.CustodyLogEntry) error
	ListCustodyLog(ctx context.Context, chequeID uuid.UUID) ([]domain.CustodyLogEntry, error)
	AppendAuditLog(ctx context.Context, entry *domain.AuditLogEntry) error
	ListAuditTrail(ctx context.Context, chequeID uuid.UUID) ([]domain.AuditLogEntry, error)
}
