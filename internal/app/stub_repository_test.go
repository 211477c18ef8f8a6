package app

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chequevault/custody-service/internal/domain"
	"github.com/chequevault/custody-service/internal/store"
)

// stubRepository is an in-memory store.Repository for exercising the services
// without a database. The guarded updates mirror the conditional semantics of
// the SQL implementation, including ErrStatusConflict on lost races.
type stubRepository struct {
	mu        sync.Mutex
	cheques   map[uuid.UUID]*domain.Cheque
	otps      map[uuid.UUID]*domain.Otp
	overrides map[uuid.UUID]*domain.HandoverOverride
	handovers map[uuid.UUID]*domain.HandoverRecord
	custody   []domain.CustodyLogEntry
	audits    []domain.AuditLogEntry
}

var _ store.Repository = (*stubRepository)(nil)

func newStubRepository() *stubRepository {
	return &stubRepository{
		cheques:   make(map[uuid.UUID]*domain.Cheque),
		otps:      make(map[uuid.UUID]*domain.Otp),
		overrides: make(map[uuid.UUID]*domain.HandoverOverride),
		handovers: make(map[uuid.UUID]*domain.HandoverRecord),
	}
}

// seedCheque inserts a cheque in the given status and returns a copy.
func (r *stubRepository) seedCheque(status domain.ChequeStatus) domain.Cheque {
	r.mu.Lock()
	defer r.mu.Unlock()
	cheque := domain.Cheque{
		ID:          uuid.New(),
		ChequeNo:    "CHQ-" + uuid.NewString()[:8],
		Amount:      2_500_000,
		BankName:    "First Bank",
		Branch:      "Marina",
		PayerName:   "Acme Ltd",
		PayeeName:   "Globex Supplies",
		DueDate:     time.Now().Add(72 * time.Hour),
		InitiatorID: uuid.New(),
		Status:      status,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	r.cheques[cheque.ID] = &cheque
	copied := cheque
	return copied
}

// auditActions returns the audit actions recorded for a cheque, in order.
func (r *stubRepository) auditActions(chequeID uuid.UUID) []domain.AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	var actions []domain.AuditAction
	for _, entry := range r.audits {
		if entry.ChequeID != nil && *entry.ChequeID == chequeID {
			actions = append(actions, entry.Action)
		}
	}
	return actions
}

func (r *stubRepository) CreateCheque(ctx context.Context, cheque *domain.Cheque) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.cheques {
		if existing.ChequeNo == cheque.ChequeNo {
			return store.ErrChequeNumberExists
		}
	}
	copied := *cheque
	r.cheques[cheque.ID] = &copied
	return nil
}

func (r *stubRepository) FindChequeByID(ctx context.Context, chequeID uuid.UUID) (*domain.Cheque, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cheque, ok := r.cheques[chequeID]
	if !ok {
		return nil, store.ErrChequeNotFound
	}
	copied := *cheque
	return &copied, nil
}

func (r *stubRepository) UpdateChequeStatus(ctx context.Context, chequeID uuid.UUID, from, to domain.ChequeStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cheque, ok := r.cheques[chequeID]
	if !ok {
		return store.ErrChequeNotFound
	}
	if cheque.Status != from {
		return store.ErrStatusConflict
	}
	cheque.Status = to
	cheque.UpdatedAt = time.Now()
	return nil
}

func (r *stubRepository) ListCheques(ctx context.Context, opts domain.ChequeListOptions) ([]domain.Cheque, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Cheque
	for _, cheque := range r.cheques {
		if len(opts.Statuses) > 0 {
			matched := false
			for _, status := range opts.Statuses {
				if cheque.Status == status {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		if opts.InitiatorID != nil && cheque.InitiatorID != *opts.InitiatorID {
			continue
		}
		if opts.Search != "" {
			needle := strings.ToLower(opts.Search)
			haystack := strings.ToLower(cheque.ChequeNo + " " + cheque.PayerName + " " + cheque.PayeeName + " " + cheque.BankName)
			if !strings.Contains(haystack, needle) {
				continue
			}
		}
		out = append(out, *cheque)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (r *stubRepository) CompleteHandoverAtomic(ctx context.Context, chequeID uuid.UUID, record *domain.HandoverRecord, custody *domain.CustodyLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cheque, ok := r.cheques[chequeID]
	if !ok {
		return store.ErrChequeNotFound
	}
	if cheque.Status != domain.ChequeStatusWithReception {
		return store.ErrStatusConflict
	}
	cheque.Status = domain.ChequeStatusIssued
	cheque.UpdatedAt = time.Now()
	copied := *record
	r.handovers[chequeID] = &copied
	r.custody = append(r.custody, *custody)
	return nil
}

func (r *stubRepository) FindHandoverByChequeID(ctx context.Context, chequeID uuid.UUID) (*domain.HandoverRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.handovers[chequeID]
	if !ok {
		return nil, store.ErrHandoverNotFound
	}
	copied := *record
	return &copied, nil
}

func (r *stubRepository) CreateOtp(ctx context.Context, otp *domain.Otp) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *otp
	r.otps[otp.ID] = &copied
	return nil
}

func (r *stubRepository) FindActiveOtpByCheque(ctx context.Context, chequeID uuid.UUID) (*domain.Otp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.Otp
	for _, otp := range r.otps {
		if otp.ChequeID != chequeID {
			continue
		}
		if otp.Status != domain.OtpStatusPending && otp.Status != domain.OtpStatusLocked {
			continue
		}
		if latest == nil || otp.CreatedAt.After(latest.CreatedAt) {
			latest = otp
		}
	}
	if latest == nil {
		return nil, store.ErrOtpNotFound
	}
	copied := *latest
	return &copied, nil
}

func (r *stubRepository) FindPendingOtpByCheque(ctx context.Context, chequeID uuid.UUID, now time.Time) (*domain.Otp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.Otp
	for _, otp := range r.otps {
		if otp.ChequeID != chequeID || otp.Status != domain.OtpStatusPending || !otp.ExpiresAt.After(now) {
			continue
		}
		if latest == nil || otp.CreatedAt.After(latest.CreatedAt) {
			latest = otp
		}
	}
	if latest == nil {
		return nil, store.ErrOtpNotFound
	}
	copied := *latest
	return &copied, nil
}

func (r *stubRepository) FindUsedOtpByCheque(ctx context.Context, chequeID uuid.UUID) (*domain.Otp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.Otp
	for _, otp := range r.otps {
		if otp.ChequeID != chequeID || otp.Status != domain.OtpStatusUsed {
			continue
		}
		if latest == nil || otp.CreatedAt.After(latest.CreatedAt) {
			latest = otp
		}
	}
	if latest == nil {
		return nil, store.ErrOtpNotFound
	}
	copied := *latest
	return &copied, nil
}

func (r *stubRepository) CountOtpsCreatedSince(ctx context.Context, chequeID uuid.UUID, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, otp := range r.otps {
		if otp.ChequeID == chequeID && otp.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (r *stubRepository) MarkOtpUsed(ctx context.Context, otpID uuid.UUID, usedBy uuid.UUID, usedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	otp, ok := r.otps[otpID]
	if !ok || otp.Status != domain.OtpStatusPending {
		return store.ErrStatusConflict
	}
	otp.Status = domain.OtpStatusUsed
	otp.Attempts++
	otp.UsedBy = &usedBy
	otp.UsedAt = &usedAt
	return nil
}

func (r *stubRepository) MarkOtpExpired(ctx context.Context, otpID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	otp, ok := r.otps[otpID]
	if !ok || otp.Status != domain.OtpStatusPending {
		return store.ErrStatusConflict
	}
	otp.Status = domain.OtpStatusExpired
	return nil
}

func (r *stubRepository) RecordFailedOtpAttempt(ctx context.Context, otpID uuid.UUID, maxAttempts int) (*domain.Otp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	otp, ok := r.otps[otpID]
	if !ok || otp.Status != domain.OtpStatusPending {
		return nil, store.ErrStatusConflict
	}
	otp.Attempts++
	if otp.Attempts >= maxAttempts {
		otp.Status = domain.OtpStatusLocked
	}
	copied := *otp
	return &copied, nil
}

func (r *stubRepository) ExpireOldOtps(ctx context.Context, now time.Time) ([]domain.Otp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []domain.Otp
	for _, otp := range r.otps {
		if otp.Status == domain.OtpStatusPending && !otp.ExpiresAt.After(now) {
			otp.Status = domain.OtpStatusExpired
			expired = append(expired, *otp)
		}
	}
	return expired, nil
}

func (r *stubRepository) CreateOverride(ctx context.Context, override *domain.HandoverOverride) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *override
	r.overrides[override.ID] = &copied
	return nil
}

func (r *stubRepository) GetOverrideByID(ctx context.Context, overrideID uuid.UUID) (*domain.HandoverOverride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	override, ok := r.overrides[overrideID]
	if !ok {
		return nil, store.ErrOverrideNotFound
	}
	copied := *override
	return &copied, nil
}

func (r *stubRepository) FindPendingOverrideByCheque(ctx context.Context, chequeID uuid.UUID) (*domain.HandoverOverride, error) {
	return r.findOverrideByStatus(chequeID, domain.OverrideStatusPending)
}

func (r *stubRepository) FindApprovedOverrideByCheque(ctx context.Context, chequeID uuid.UUID) (*domain.HandoverOverride, error) {
	return r.findOverrideByStatus(chequeID, domain.OverrideStatusApproved)
}

func (r *stubRepository) findOverrideByStatus(chequeID uuid.UUID, status domain.OverrideStatus) (*domain.HandoverOverride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.HandoverOverride
	for _, override := range r.overrides {
		if override.ChequeID != chequeID || override.Status != status {
			continue
		}
		if latest == nil || override.CreatedAt.After(latest.CreatedAt) {
			latest = override
		}
	}
	if latest == nil {
		return nil, store.ErrOverrideNotFound
	}
	copied := *latest
	return &copied, nil
}

func (r *stubRepository) DecideOverride(ctx context.Context, overrideID uuid.UUID, status domain.OverrideStatus, decidedBy uuid.UUID, rejectedReason *string, decidedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	override, ok := r.overrides[overrideID]
	if !ok {
		return store.ErrOverrideNotFound
	}
	if override.Status != domain.OverrideStatusPending {
		return store.ErrStatusConflict
	}
	override.Status = status
	override.DecidedBy = &decidedBy
	override.DecidedAt = &decidedAt
	override.RejectedReason = rejectedReason
	return nil
}

func (r *stubRepository) ListPendingOverrides(ctx context.Context, limit, offset int) ([]domain.HandoverOverride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.HandoverOverride
	for _, override := range r.overrides {
		if override.Status == domain.OverrideStatusPending {
			out = append(out, *override)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubRepository) ListOverridesByCheque(ctx context.Context, chequeID uuid.UUID) ([]domain.HandoverOverride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.HandoverOverride
	for _, override := range r.overrides {
		if override.ChequeID == chequeID {
			out = append(out, *override)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *stubRepository) AppendCustodyLog(ctx context.Context, entry *domain.CustodyLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custody = append(r.custody, *entry)
	return nil
}

func (r *stubRepository) ListCustodyLog(ctx context.Context, chequeID uuid.UUID) ([]domain.CustodyLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CustodyLogEntry
	for _, entry := range r.custody {
		if entry.ChequeID == chequeID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *stubRepository) AppendAuditLog(ctx context.Context, entry *domain.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, *entry)
	return nil
}

func (r *stubRepository) ListAuditTrail(ctx context.Context, chequeID uuid.UUID) ([]domain.AuditLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AuditLogEntry
	for _, entry := range r.audits {
		if entry.ChequeID != nil && *entry.ChequeID == chequeID {
			out = append(out, entry)
		}
	}
	return out, nil
}
