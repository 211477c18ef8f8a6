/**
 * @description
 * PostgreSQL implementation of the `Repository` interface. Contains all SQL
 * for the cheques, otps, handover_records, handover_overrides, custody_log,
 * and audit_log tables.
 *
 * Key features:
 * - Every shared-record mutation is a guarded conditional UPDATE (status in
 *   the WHERE clause), so concurrent writers serialize at the database and
 *   the service never needs an in-process lock.
 * - OTP attempt increments and lockout happen in one statement, making
 *   concurrent wrong guesses race-safe.
 * - The handover transition, HandoverRecord insert, and custody append share
 *   a single transaction.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chequevault/custody-service/internal/domain"
)

var (
	ErrChequeNotFound     = errors.New("cheque not found")
	ErrChequeNumberExists = errors.New("cheque number already exists")
	ErrOtpNotFound        = errors.New("otp not found")
	ErrOverrideNotFound   = errors.New("override not found")
	ErrHandoverNotFound   = errors.New("handover record not found")
	// ErrStatusConflict means a guarded update matched zero rows: the record
	// left the expected state between read and write.
	ErrStatusConflict = errors.New("record is not in the expected status")
)

const uniqueViolationCode = "23505"

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateCheque inserts a new cheque row. A duplicate cheque number maps to
// ErrChequeNumberExists via the unique constraint on cheque_no.
func (r *PostgresRepository) CreateCheque(ctx context.Context, cheque *domain.Cheque) error {
	query := `
		INSERT INTO cheques (id, cheque_no, amount, bank_name, branch, payer_name, payee_name, due_date, initiator_id, attachment_ref, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
	`
	_, err := r.db.Exec(ctx, query,
		cheque.ID, cheque.ChequeNo, cheque.Amount, cheque.BankName, cheque.Branch,
		cheque.PayerName, cheque.PayeeName, cheque.DueDate, cheque.InitiatorID,
		cheque.AttachmentRef, cheque.Status, cheque.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrChequeNumberExists
		}
		return err
	}
	return nil
}

const chequeColumns = `id, cheque_no, amount, bank_name, branch, payer_name, payee_name, due_date, initiator_id, attachment_ref, status, created_at, updated_at`

func scanCheque(row pgx.Row) (*domain.Cheque, error) {
	var c domain.Cheque
	err := row.Scan(
		&c.ID, &c.ChequeNo, &c.Amount, &c.BankName, &c.Branch,
		&c.PayerName, &c.PayeeName, &c.DueDate, &c.InitiatorID,
		&c.AttachmentRef, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindChequeByID retrieves a cheque by its identifier.
func (r *PostgresRepository) FindChequeByID(ctx context.Context, chequeID uuid.UUID) (*domain.Cheque, error) {
	query := fmt.Sprintf(`SELECT %s FROM cheques WHERE id = $1`, chequeColumns)
	cheque, err := scanCheque(r.db.QueryRow(ctx, query, chequeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChequeNotFound
		}
		return nil, err
	}
	return cheque, nil
}

// UpdateChequeStatus performs the compare-and-swap status transition.
func (r *PostgresRepository) UpdateChequeStatus(ctx context.Context, chequeID uuid.UUID, from, to domain.ChequeStatus) error {
	query := `UPDATE cheques SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`
	tag, err := r.db.Exec(ctx, query, chequeID, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish "wrong state" from "no such cheque" for the caller.
		if _, findErr := r.FindChequeByID(ctx, chequeID); findErr != nil {
			return findErr
		}
		return ErrStatusConflict
	}
	return nil
}

// ListCheques returns cheques matching the filter options, newest first.
// Search matches cheque number, payer, payee, or bank as a case-insensitive
// substring.
func (r *PostgresRepository) ListCheques(ctx context.Context, opts domain.ChequeListOptions) ([]domain.Cheque, error) {
	query := fmt.Sprintf(`SELECT %s FROM cheques`, chequeColumns)
	conditions := []string{}
	args := []interface{}{}

	if len(opts.Statuses) > 0 {
		placeholders := make([]string, 0, len(opts.Statuses))
		for _, status := range opts.Statuses {
			args = append(args, status)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}
	if opts.InitiatorID != nil {
		args = append(args, *opts.InitiatorID)
		conditions = append(conditions, fmt.Sprintf("initiator_id = $%d", len(args)))
	}
	if strings.TrimSpace(opts.Search) != "" {
		args = append(args, "%"+strings.TrimSpace(opts.Search)+"%")
		p := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(cheque_no ILIKE $%d OR payer_name ILIKE $%d OR payee_name ILIKE $%d OR bank_name ILIKE $%d)", p, p, p, p))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cheques []domain.Cheque
	for rows.Next() {
		cheque, err := scanCheque(rows)
		if err != nil {
			return nil, err
		}
		cheques = append(cheques, *cheque)
	}
	return cheques, rows.Err()
}

// CompleteHandoverAtomic flips the cheque to ISSUED and records the handover
// evidence and custody transfer in one transaction. If the cheque is not in
// WITH_RECEPTION the whole transaction rolls back with ErrStatusConflict.
func (r *PostgresRepository) CompleteHandoverAtomic(ctx context.Context, chequeID uuid.UUID, record *domain.HandoverRecord, custody *domain.CustodyLogEntry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE cheques SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		chequeID, domain.ChequeStatusWithReception, domain.ChequeStatusIssued,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO handover_records (id, cheque_id, recipient_name, id_document_type, id_document_number, photo_ref, signature_ref, handed_over_by, is_override, override_approved_by, override_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		record.ID, record.ChequeID, record.RecipientName, record.IDDocumentType,
		record.IDDocumentNumber, record.PhotoRef, record.SignatureRef, record.HandedOverBy,
		record.IsOverride, record.OverrideApprovedBy, record.OverrideReason, record.CreatedAt,
	)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO custody_log (id, cheque_id, from_role, to_role, notes, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		custody.ID, custody.ChequeID, custody.FromRole, custody.ToRole,
		custody.Notes, custody.CreatedBy, custody.CreatedAt,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// FindHandoverByChequeID retrieves the handover record for a cheque.
func (r *PostgresRepository) FindHandoverByChequeID(ctx context.Context, chequeID uuid.UUID) (*domain.HandoverRecord, error) {
	var h domain.HandoverRecord
	query := `
		SELECT id, cheque_id, recipient_name, id_document_type, id_document_number, photo_ref, signature_ref, handed_over_by, is_override, override_approved_by, override_reason, created_at
		FROM handover_records WHERE cheque_id = $1
	`
	err := r.db.QueryRow(ctx, query, chequeID).Scan(
		&h.ID, &h.ChequeID, &h.RecipientName, &h.IDDocumentType, &h.IDDocumentNumber,
		&h.PhotoRef, &h.SignatureRef, &h.HandedOverBy, &h.IsOverride,
		&h.OverrideApprovedBy, &h.OverrideReason, &h.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHandoverNotFound
		}
		return nil, err
	}
	return &h, nil
}

const otpColumns = `id, cheque_id, code_hash, channel, destination, status, attempts, expires_at, used_by, used_at, request_ip, request_user_agent, created_at`

func scanOtp(row pgx.Row) (*domain.Otp, error) {
	var o domain.Otp
	err := row.Scan(
		&o.ID, &o.ChequeID, &o.CodeHash, &o.Channel, &o.Destination, &o.Status,
		&o.Attempts, &o.ExpiresAt, &o.UsedBy, &o.UsedAt, &o.RequestIP, &o.RequestUA, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOtp inserts a new OTP row.
func (r *PostgresRepository) CreateOtp(ctx context.Context, otp *domain.Otp) error {
	query := `
		INSERT INTO otps (id, cheque_id, code_hash, channel, destination, status, attempts, expires_at, request_ip, request_user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		otp.ID, otp.ChequeID, otp.CodeHash, otp.Channel, otp.Destination,
		otp.Status, otp.Attempts, otp.ExpiresAt, otp.RequestIP, otp.RequestUA, otp.CreatedAt,
	)
	return err
}

// FindActiveOtpByCheque returns the most recent PENDING or LOCKED OTP. Expiry
// is not filtered here; the service decides what a lapsed row means.
func (r *PostgresRepository) FindActiveOtpByCheque(ctx context.Context, chequeID uuid.UUID) (*domain.Otp, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM otps
		WHERE cheque_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC LIMIT 1`, otpColumns)
	otp, err := scanOtp(r.db.QueryRow(ctx, query, chequeID, domain.OtpStatusPending, domain.OtpStatusLocked))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOtpNotFound
		}
		return nil, err
	}
	return otp, nil
}

// FindPendingOtpByCheque returns the most recent unexpired PENDING OTP.
func (r *PostgresRepository) FindPendingOtpByCheque(ctx context.Context, chequeID uuid.UUID, now time.Time) (*domain.Otp, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM otps
		WHERE cheque_id = $1 AND status = $2 AND expires_at > $3
		ORDER BY created_at DESC LIMIT 1`, otpColumns)
	otp, err := scanOtp(r.db.QueryRow(ctx, query, chequeID, domain.OtpStatusPending, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOtpNotFound
		}
		return nil, err
	}
	return otp, nil
}

// FindUsedOtpByCheque returns the most recent USED OTP for a cheque. The
// handover precondition check relies on this.
func (r *PostgresRepository) FindUsedOtpByCheque(ctx context.Context, chequeID uuid.UUID) (*domain.Otp, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM otps
		WHERE cheque_id = $1 AND status = $2
		ORDER BY used_at DESC LIMIT 1`, otpColumns)
	otp, err := scanOtp(r.db.QueryRow(ctx, query, chequeID, domain.OtpStatusUsed))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOtpNotFound
		}
		return nil, err
	}
	return otp, nil
}

// CountOtpsCreatedSince counts OTP issuances for a cheque in a rolling window.
func (r *PostgresRepository) CountOtpsCreatedSince(ctx context.Context, chequeID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM otps WHERE cheque_id = $1 AND created_at > $2`,
		chequeID, since,
	).Scan(&count)
	return count, err
}

// MarkOtpUsed consumes a PENDING OTP exactly once.
func (r *PostgresRepository) MarkOtpUsed(ctx context.Context, otpID uuid.UUID, usedBy uuid.UUID, usedAt time.Time) error {
	query := `
		UPDATE otps SET status = $2, attempts = attempts + 1, used_by = $3, used_at = $4
		WHERE id = $1 AND status = $5
	`
	tag, err := r.db.Exec(ctx, query, otpID, domain.OtpStatusUsed, usedBy, usedAt, domain.OtpStatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// MarkOtpExpired transitions a PENDING OTP to EXPIRED (lazy expiry path).
func (r *PostgresRepository) MarkOtpExpired(ctx context.Context, otpID uuid.UUID) error {
	query := `UPDATE otps SET status = $2 WHERE id = $1 AND status = $3`
	tag, err := r.db.Exec(ctx, query, otpID, domain.OtpStatusExpired, domain.OtpStatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// RecordFailedOtpAttempt atomically increments the attempt counter and applies
// the lockout in the same statement, returning the updated row. Only PENDING
// rows consume attempts.
func (r *PostgresRepository) RecordFailedOtpAttempt(ctx context.Context, otpID uuid.UUID, maxAttempts int) (*domain.Otp, error) {
	query := fmt.Sprintf(`
		UPDATE otps
		SET
			attempts = attempts + 1,
			status = CASE WHEN attempts + 1 >= $2 THEN '%s' ELSE status END
		WHERE id = $1 AND status = '%s'
		RETURNING %s`, domain.OtpStatusLocked, domain.OtpStatusPending, otpColumns)
	otp, err := scanOtp(r.db.QueryRow(ctx, query, otpID, maxAttempts))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatusConflict
		}
		return nil, err
	}
	return otp, nil
}

// ExpireOldOtps bulk-transitions lapsed PENDING OTPs to EXPIRED and returns
// the affected rows. Idempotent: a second run with no intervening writes
// matches nothing.
func (r *PostgresRepository) ExpireOldOtps(ctx context.Context, now time.Time) ([]domain.Otp, error) {
	query := fmt.Sprintf(`
		UPDATE otps SET status = $1
		WHERE status = $2 AND expires_at <= $3
		RETURNING %s`, otpColumns)
	rows, err := r.db.Query(ctx, query, domain.OtpStatusExpired, domain.OtpStatusPending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []domain.Otp
	for rows.Next() {
		otp, err := scanOtp(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, *otp)
	}
	return expired, rows.Err()
}

const overrideColumns = `id, cheque_id, requester_id, reason, status, decided_by, decided_at, rejected_reason, created_at`

func scanOverride(row pgx.Row) (*domain.HandoverOverride, error) {
	var o domain.HandoverOverride
	err := row.Scan(
		&o.ID, &o.ChequeID, &o.RequesterID, &o.Reason, &o.Status,
		&o.DecidedBy, &o.DecidedAt, &o.RejectedReason, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOverride inserts a new handover override request.
func (r *PostgresRepository) CreateOverride(ctx context.Context, override *domain.HandoverOverride) error {
	query := `
		INSERT INTO handover_overrides (id, cheque_id, requester_id, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		override.ID, override.ChequeID, override.RequesterID,
		override.Reason, override.Status, override.CreatedAt,
	)
	return err
}

// GetOverrideByID retrieves an override by its identifier.
func (r *PostgresRepository) GetOverrideByID(ctx context.Context, overrideID uuid.UUID) (*domain.HandoverOverride, error) {
	query := fmt.Sprintf(`SELECT %s FROM handover_overrides WHERE id = $1`, overrideColumns)
	override, err := scanOverride(r.db.QueryRow(ctx, query, overrideID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOverrideNotFound
		}
		return nil, err
	}
	return override, nil
}

// FindPendingOverrideByCheque returns the outstanding override for a cheque, if any.
func (r *PostgresRepository) FindPendingOverrideByCheque(ctx context.Context, chequeID uuid.UUID) (*domain.HandoverOverride, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM handover_overrides
		WHERE cheque_id = $1 AND status = $2
		ORDER BY created_at DESC LIMIT 1`, overrideColumns)
	override, err := scanOverride(r.db.QueryRow(ctx, query, chequeID, domain.OverrideStatusPending))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOverrideNotFound
		}
		return nil, err
	}
	return override, nil
}

// FindApprovedOverrideByCheque returns the most recent approved override for a cheque.
func (r *PostgresRepository) FindApprovedOverrideByCheque(ctx context.Context, chequeID uuid.UUID) (*domain.HandoverOverride, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM handover_overrides
		WHERE cheque_id = $1 AND status = $2
		ORDER BY decided_at DESC LIMIT 1`, overrideColumns)
	override, err := scanOverride(r.db.QueryRow(ctx, query, chequeID, domain.OverrideStatusApproved))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOverrideNotFound
		}
		return nil, err
	}
	return override, nil
}

// DecideOverride settles a PENDING override. The status guard makes sure only
// one of two concurrent decisions wins.
func (r *PostgresRepository) DecideOverride(ctx context.Context, overrideID uuid.UUID, status domain.OverrideStatus, decidedBy uuid.UUID, rejectedReason *string, decidedAt time.Time) error {
	query := `
		UPDATE handover_overrides
		SET status = $2, decided_by = $3, decided_at = $4, rejected_reason = $5
		WHERE id = $1 AND status = $6
	`
	tag, err := r.db.Exec(ctx, query, overrideID, status, decidedBy, decidedAt, rejectedReason, domain.OverrideStatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, findErr := r.GetOverrideByID(ctx, overrideID); findErr != nil {
			return findErr
		}
		return ErrStatusConflict
	}
	return nil
}

// ListPendingOverrides returns outstanding override requests, oldest first so
// approvers work through the backlog in order.
func (r *PostgresRepository) ListPendingOverrides(ctx context.Context, limit, offset int) ([]domain.HandoverOverride, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`
		SELECT %s FROM handover_overrides
		WHERE status = $1
		ORDER BY created_at ASC LIMIT $2 OFFSET $3`, overrideColumns)
	rows, err := r.db.Query(ctx, query, domain.OverrideStatusPending, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []domain.HandoverOverride
	for rows.Next() {
		override, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, *override)
	}
	return overrides, rows.Err()
}

// ListOverridesByCheque returns all overrides ever raised for a cheque.
func (r *PostgresRepository) ListOverridesByCheque(ctx context.Context, chequeID uuid.UUID) ([]domain.HandoverOverride, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM handover_overrides
		WHERE cheque_id = $1
		ORDER BY created_at DESC`, overrideColumns)
	rows, err := r.db.Query(ctx, query, chequeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []domain.HandoverOverride
	for rows.Next() {
		override, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, *override)
	}
	return overrides, rows.Err()
}

// AppendCustodyLog appends a custody transfer entry.
func (r *PostgresRepository) AppendCustodyLog(ctx context.Context, entry *domain.CustodyLogEntry) error {
	query := `
		INSERT INTO custody_log (id, cheque_id, from_role, to_role, notes, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		entry.ID, entry.ChequeID, entry.FromRole, entry.ToRole,
		entry.Notes, entry.CreatedBy, entry.CreatedAt,
	)
	return err
}

// ListCustodyLog returns a cheque's custody transfers in creation order.
func (r *PostgresRepository) ListCustodyLog(ctx context.Context, chequeID uuid.UUID) ([]domain.CustodyLogEntry, error) {
	query := `
		SELECT id, cheque_id, from_role, to_role, notes, created_by, created_at
		FROM custody_log WHERE cheque_id = $1 ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, chequeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.CustodyLogEntry
	for rows.Next() {
		var e domain.CustodyLogEntry
		if err := rows.Scan(&e.ID, &e.ChequeID, &e.FromRole, &e.ToRole, &e.Notes, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AppendAuditLog appends an audit entry. The details payload is stored as JSONB.
func (r *PostgresRepository) AppendAuditLog(ctx context.Context, entry *domain.AuditLogEntry) error {
	var details []byte
	if entry.Details != nil {
		encoded, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
		details = encoded
	}
	query := `
		INSERT INTO audit_log (id, cheque_id, action, actor_id, details, request_ip, request_user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		entry.ID, entry.ChequeID, entry.Action, entry.ActorID,
		details, entry.RequestIP, entry.RequestUA, entry.CreatedAt,
	)
	return err
}

// ListAuditTrail returns a cheque's audit entries in creation order.
func (r *PostgresRepository) ListAuditTrail(ctx context.Context, chequeID uuid.UUID) ([]domain.AuditLogEntry, error) {
	query := `
		SELECT id, cheque_id, action, actor_id, details, request_ip, request_user_agent, created_at
		FROM audit_log WHERE cheque_id = $1 ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, chequeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AuditLogEntry
	for rows.Next() {
		var e domain.AuditLogEntry
		var details []byte
		if err := rows.Scan(&e.ID, &e.ChequeID, &e.Action, &e.ActorID, &details, &e.RequestIP, &e.RequestUA, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("failed to decode audit details: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
