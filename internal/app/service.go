/**
 * @description
 * This file contains the cheque custody state machine. The ChequeService owns
 * what happens to a cheque: registration, the dispatch and reception
 * transitions, the final OTP- or override-authorized handover, and
 * cancellation. Every state flip is a guarded conditional update in the store,
 * and every successful mutation appends exactly one audit entry.
 *
 * The handover operation enforces its own authorization precondition: the
 * normal path requires a consumed (USED) OTP for the cheque, the override
 * path requires an APPROVED override. Whether the actor was allowed to invoke
 * the operation at all remains the HTTP layer's concern.
 *
 * @dependencies
 * - internal/domain, internal/store: Domain models and data access.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chequevault/custody-service/internal/domain"
	"github.com/chequevault/custody-service/internal/store"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrCancelIssuedCheque    = errors.New("cannot cancel an already issued cheque")
	ErrHandoverNotAuthorized = errors.New("handover requires a verified OTP or an approved override")
)

// InvalidTransitionError reports a custody transition attempted from a state
// the transition table does not allow. The current status is always named so
// the caller can surface it.
type InvalidTransitionError struct {
	Current   domain.ChequeStatus
	Attempted domain.ChequeStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: cheque is %s, cannot move to %s", e.Current, e.Attempted)
}

// ChequeService provides the cheque lifecycle business logic.
type ChequeService struct {
	repo store.Repository
	now  func() time.Time
}

// NewChequeService creates a new cheque service instance.
func NewChequeService(repo store.Repository) *ChequeService {
	return &ChequeService{repo: repo, now: time.Now}
}

// CreateCheque registers a new cheque in SIGNED state. The cheque number must
// be unique for the lifetime of the system.
func (s *ChequeService) CreateCheque(ctx context.Context, req domain.CreateChequeRequest, identity domain.Identity, reqCtx *domain.RequestContext) (*domain.Cheque, error) {
	if strings.TrimSpace(req.ChequeNo) == "" {
		return nil, fmt.Errorf("%w: cheque_no is required", ErrValidation)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if strings.TrimSpace(req.BankName) == "" {
		return nil, fmt.Errorf("%w: bank_name is required", ErrValidation)
	}
	if strings.TrimSpace(req.PayerName) == "" || strings.TrimSpace(req.PayeeName) == "" {
		return nil, fmt.Errorf("%w: payer_name and payee_name are required", ErrValidation)
	}
	if req.DueDate.IsZero() {
		return nil, fmt.Errorf("%w: due_date is required", ErrValidation)
	}

	now := s.now()
	cheque := &domain.Cheque{
		ID:            uuid.New(),
		ChequeNo:      strings.TrimSpace(req.ChequeNo),
		Amount:        req.Amount,
		BankName:      strings.TrimSpace(req.BankName),
		Branch:        strings.TrimSpace(req.Branch),
		PayerName:     strings.TrimSpace(req.PayerName),
		PayeeName:     strings.TrimSpace(req.PayeeName),
		DueDate:       req.DueDate,
		InitiatorID:   identity.ID,
		AttachmentRef: req.AttachmentRef,
		Status:        domain.ChequeStatusSigned,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreateCheque(ctx, cheque); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, &cheque.ID, domain.AuditChequeCreated, &identity.ID, map[string]interface{}{
		"cheque_no": cheque.ChequeNo,
		"amount":    cheque.Amount,
		"bank_name": cheque.BankName,
	}, reqCtx)

	log.Printf("level=info component=cheque_service msg=\"cheque created\" cheque_id=%s cheque_no=%s", cheque.ID, cheque.ChequeNo)
	return cheque, nil
}

// MarkReadyForDispatch moves a SIGNED cheque to READY_FOR_DISPATCH.
func (s *ChequeService) MarkReadyForDispatch(ctx context.Context, chequeID uuid.UUID, identity domain.Identity, reqCtx *domain.RequestContext) (*domain.Cheque, error) {
	cheque, err := s.transition(ctx, chequeID, domain.ChequeStatusSigned, domain.ChequeStatusReadyForDispatch)
	if err != nil {
		return nil, err
	}
	s.appendAudit(ctx, &chequeID, domain.AuditStatusChanged, &identity.ID, map[string]interface{}{
		"from": string(domain.ChequeStatusSigned),
		"to":   string(domain.ChequeStatusReadyForDispatch),
	}, reqCtx)
	return cheque, nil
}

// ForwardToReception moves a READY_FOR_DISPATCH cheque to WITH_RECEPTION and
// records the accounts-to-reception custody transfer.
func (s *ChequeService) ForwardToReception(ctx context.Context, chequeID uuid.UUID, notes string, identity domain.Identity, reqCtx *domain.RequestContext) (*domain.Cheque, error) {
	cheque, err := s.transition(ctx, chequeID, domain.ChequeStatusReadyForDispatch, domain.ChequeStatusWithReception)
	if err != nil {
		return nil, err
	}

	custody := &domain.CustodyLogEntry{
		ID:        uuid.New(),
		ChequeID:  chequeID,
		FromRole:  domain.CustodyRoleAccounts,
		ToRole:    domain.CustodyRoleReception,
		Notes:     notes,
		CreatedBy: identity.ID,
		CreatedAt: s.now(),
	}
	if err := s.repo.AppendCustodyLog(ctx, custody); err != nil {
		log.Printf("level=error component=cheque_service msg=\"custody append failed\" cheque_id=%s err=%v", chequeID, err)
	}

	s.appendAudit(ctx, &chequeID, domain.AuditForwardedToReception, &identity.ID, map[string]interface{}{
		"from_role": string(domain.CustodyRoleAccounts),
		"to_role":   string(domain.CustodyRoleReception),
	}, reqCtx)
	return cheque, nil
}

// CompleteHandover performs the terminal WITH_RECEPTION -> ISSUED transition.
// It requires either a consumed OTP for this cheque or, when IsOverride is
// set, an APPROVED override; the HandoverRecord captures which path was used.
func (s *ChequeService) CompleteHandover(ctx context.Context, chequeID uuid.UUID, params domain.HandoverParams, identity domain.Identity, reqCtx *domain.RequestContext) (*domain.HandoverRecord, error) {
	if strings.TrimSpace(params.RecipientName) == "" {
		return nil, fmt.Errorf("%w: recipient_name is required", ErrValidation)
	}
	if strings.TrimSpace(params.IDDocumentType) == "" || strings.TrimSpace(params.IDDocumentNumber) == "" {
		return nil, fmt.Errorf("%w: recipient identity document is required", ErrValidation)
	}

	cheque, err := s.repo.FindChequeByID(ctx, chequeID)
	if err != nil {
		return nil, err
	}
	if cheque.Status != domain.ChequeStatusWithReception {
		return nil, &InvalidTransitionError{Current: cheque.Status, Attempted: domain.ChequeStatusIssued}
	}

	var authDetail map[string]interface{}
	if params.IsOverride {
		override, err := s.repo.FindApprovedOverrideByCheque(ctx, chequeID)
		if err != nil {
			if errors.Is(err, store.ErrOverrideNotFound) {
				return nil, ErrHandoverNotAuthorized
			}
			return nil, err
		}
		approvedBy := override.DecidedBy
		params.OverrideApprovedBy = approvedBy
		if params.OverrideReason == nil {
			reason := override.Reason
			params.OverrideReason = &reason
		}
		authDetail = map[string]interface{}{
			"authorization": "override",
			"override_id":   override.ID.String(),
		}
	} else {
		otp, err := s.repo.FindUsedOtpByCheque(ctx, chequeID)
		if err != nil {
			if errors.Is(err, store.ErrOtpNotFound) {
				return nil, ErrHandoverNotAuthorized
			}
			return nil, err
		}
		authDetail = map[string]interface{}{
			"authorization": "otp",
			"otp_id":        otp.ID.String(),
		}
	}

	now := s.now()
	record := &domain.HandoverRecord{
		ID:                 uuid.New(),
		ChequeID:           chequeID,
		RecipientName:      strings.TrimSpace(params.RecipientName),
		IDDocumentType:     strings.TrimSpace(params.IDDocumentType),
		IDDocumentNumber:   strings.TrimSpace(params.IDDocumentNumber),
		PhotoRef:           params.PhotoRef,
		SignatureRef:       params.SignatureRef,
		HandedOverBy:       identity.ID,
		IsOverride:         params.IsOverride,
		OverrideApprovedBy: params.OverrideApprovedBy,
		OverrideReason:     params.OverrideReason,
		CreatedAt:          now,
	}
	custody := &domain.CustodyLogEntry{
		ID:        uuid.New(),
		ChequeID:  chequeID,
		FromRole:  domain.CustodyRoleReception,
		ToRole:    domain.CustodyRoleVendor,
		Notes:     fmt.Sprintf("handed over to %s", record.RecipientName),
		CreatedBy: identity.ID,
		CreatedAt: now,
	}

	if err := s.repo.CompleteHandoverAtomic(ctx, chequeID, record, custody); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			// A concurrent handover or cancellation won the race.
			current, findErr := s.repo.FindChequeByID(ctx, chequeID)
			if findErr != nil {
				return nil, findErr
			}
			return nil, &InvalidTransitionError{Current: current.Status, Attempted: domain.ChequeStatusIssued}
		}
		return nil, err
	}

	details := map[string]interface{}{
		"handover_id":    record.ID.String(),
		"recipient_name": record.RecipientName,
		"is_override":    record.IsOverride,
	}
	for k, v := range authDetail {
		details[k] = v
	}
	s.appendAudit(ctx, &chequeID, domain.AuditHandoverCompleted, &identity.ID, details, reqCtx)

	log.Printf("level=info component=cheque_service msg=\"handover completed\" cheque_id=%s is_override=%t", chequeID, record.IsOverride)
	return record, nil
}

// CancelCheque moves a cheque from any non-terminal state to CANCELLED.
// An ISSUED cheque can never be cancelled.
func (s *ChequeService) CancelCheque(ctx context.Context, chequeID uuid.UUID, reason string, identity domain.Identity, reqCtx *domain.RequestContext) (*domain.Cheque, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: cancellation reason is required", ErrValidation)
	}

	cheque, err := s.repo.FindChequeByID(ctx, chequeID)
	if err != nil {
		return nil, err
	}
	if cheque.Status == domain.ChequeStatusIssued {
		return nil, ErrCancelIssuedCheque
	}
	if cheque.Status == domain.ChequeStatusCancelled {
		return nil, &InvalidTransitionError{Current: cheque.Status, Attempted: domain.ChequeStatusCancelled}
	}

	previous := cheque.Status
	if err := s.repo.UpdateChequeStatus(ctx, chequeID, previous, domain.ChequeStatusCancelled); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			current, findErr := s.repo.FindChequeByID(ctx, chequeID)
			if findErr != nil {
				return nil, findErr
			}
			if current.Status == domain.ChequeStatusIssued {
				return nil, ErrCancelIssuedCheque
			}
			return nil, &InvalidTransitionError{Current: current.Status, Attempted: domain.ChequeStatusCancelled}
		}
		return nil, err
	}
	cheque.Status = domain.ChequeStatusCancelled

	s.appendAudit(ctx, &chequeID, domain.AuditChequeCancelled, &identity.ID, map[string]interface{}{
		"previous_status": string(previous),
		"reason":          reason,
	}, reqCtx)
	return cheque, nil
}

// GetChequeByID retrieves a single cheque.
func (s *ChequeService) GetChequeByID(ctx context.Context, chequeID uuid.UUID) (*domain.Cheque, error) {
	return s.repo.FindChequeByID(ctx, chequeID)
}

// ListCheques returns cheques visible to the caller's role: reception sees
// cheques awaiting handover, accounts sees the pre-dispatch pipeline, a
// requester sees only cheques they initiated, admin sees everything.
func (s *ChequeService) ListCheques(ctx context.Context, identity domain.Identity, opts domain.ChequeListOptions) ([]domain.Cheque, error) {
	switch identity.Role {
	case domain.RoleReception:
		opts.Statuses = []domain.ChequeStatus{domain.ChequeStatusWithReception}
	case domain.RoleAccounts:
		opts.Statuses = []domain.ChequeStatus{domain.ChequeStatusSigned, domain.ChequeStatusReadyForDispatch}
	case domain.RoleAdmin:
		// unrestricted
	default:
		id := identity.ID
		opts.InitiatorID = &id
	}
	return s.repo.ListCheques(ctx, opts)
}

// GetAuditTrail returns the ordered audit entries for a cheque.
func (s *ChequeService) GetAuditTrail(ctx context.Context, chequeID uuid.UUID) ([]domain.AuditLogEntry, error) {
	if _, err := s.repo.FindChequeByID(ctx, chequeID); err != nil {
		return nil, err
	}
	return s.repo.ListAuditTrail(ctx, chequeID)
}

// GetCustodyLog returns the ordered custody transfers for a cheque.
func (s *ChequeService) GetCustodyLog(ctx context.Context, chequeID uuid.UUID) ([]domain.CustodyLogEntry, error) {
	if _, err := s.repo.FindChequeByID(ctx, chequeID); err != nil {
		return nil, err
	}
	return s.repo.ListCustodyLog(ctx, chequeID)
}

// GetHandoverRecord returns the handover evidence for an issued cheque.
func (s *ChequeService) GetHandoverRecord(ctx context.Context, chequeID uuid.UUID) (*domain.HandoverRecord, error) {
	return s.repo.FindHandoverByChequeID(ctx, chequeID)
}

// transition performs a guarded single-step status flip, translating a CAS
// conflict into an InvalidTransitionError naming the actual current state.
func (s *ChequeService) transition(ctx context.Context, chequeID uuid.UUID, from, to domain.ChequeStatus) (*domain.Cheque, error) {
	cheque, err := s.repo.FindChequeByID(ctx, chequeID)
	if err != nil {
		return nil, err
	}
	if cheque.Status != from {
		return nil, &InvalidTransitionError{Current: cheque.Status, Attempted: to}
	}
	if err := s.repo.UpdateChequeStatus(ctx, chequeID, from, to); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			current, findErr := s.repo.FindChequeByID(ctx, chequeID)
			if findErr != nil {
				return nil, findErr
			}
			return nil, &InvalidTransitionError{Current: current.Status, Attempted: to}
		}
		return nil, err
	}
	cheque.Status = to
	cheque.UpdatedAt = s.now()
	return cheque, nil
}

func (s *ChequeService) appendAudit(ctx context.Context, chequeID *uuid.UUID, action domain.AuditAction, actorID *uuid.UUID, details map[string]interface{}, reqCtx *domain.RequestContext) {
	entry := &domain.AuditLogEntry{
		ID:        uuid.New(),
		ChequeID:  chequeID,
		Action:    action,
		ActorID:   actorID,
		Details:   details,
		RequestIP: reqCtx.IPPtr(),
		RequestUA: reqCtx.UAPtr(),
		CreatedAt: s.now(),
	}
	if err := s.repo.AppendAuditLog(ctx, entry); err != nil {
		log.Printf("level=error component=cheque_service msg=\"audit append failed\" action=%s err=%v", action, err)
	}
}
