/**
 * @description
 * Secondary authorization path for handovers that cannot clear the OTP gate
 * (locked codes, unreachable channels). An override is requested with a
 * mandatory reason, then approved or rejected exactly once by a second party.
 * Approval does not touch the cheque; the caller must still invoke the
 * handover explicitly.
 *
 * @dependencies
 * - internal/domain, internal/store: Domain models and data access.
 * - pkg/rabbitmq: Fire-and-forget approver notifications.
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
	"github.com/chequevault/custody-service/pkg/rabbitmq"
)

// ErrOverridePending means a cheque already has an outstanding override request.
var ErrOverridePending = errors.New("a pending override already exists for this cheque")

// OverrideDecidedError reports an approve/reject attempt against an override
// that has already reached a terminal decision.
type OverrideDecidedError struct {
	Status domain.OverrideStatus
}

func (e *OverrideDecidedError) Error() string {
	return fmt.Sprintf("override already %s", strings.ToLower(string(e.Status)))
}

// OverrideService manages handover override requests and decisions.
type OverrideService struct {
	repo     store.Repository
	producer rabbitmq.Publisher
	now      func() time.Time
}

// NewOverrideService creates a new override service instance.
func NewOverrideService(repo store.Repository, producer rabbitmq.Publisher) *OverrideService {
	return &OverrideService{repo: repo, producer: producer, now: time.Now}
}

// CreateOverrideRequest raises an override for a cheque. At most one PENDING
// override may exist per cheque at a time.
func (s *OverrideService) CreateOverrideRequest(ctx context.Context, chequeID uuid.UUID, reason string, identity domain.Identity, reqCtx *domain.RequestContext) (*domain.HandoverOverride, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: override reason is required", ErrValidation)
	}
	if _, err := s.repo.FindChequeByID(ctx, chequeID); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindPendingOverrideByCheque(ctx, chequeID); err == nil {
		return nil, ErrOverridePending
	} else if !errors.Is(err, store.ErrOverrideNotFound) {
		return nil, err
	}

	override := &domain.HandoverOverride{
		ID:          uuid.New(),
		ChequeID:    chequeID,
		RequesterID: identity.ID,
		Reason:      strings.TrimSpace(reason),
		Status:      domain.OverrideStatusPending,
		CreatedAt:   s.now(),
	}
	if err := s.repo.CreateOverride(ctx, override); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, &chequeID, domain.AuditOverrideRequested, &identity.ID, map[string]interface{}{
		"override_id": override.ID.String(),
		"reason":      override.Reason,
	}, reqCtx)
	s.notifyApprovers(ctx, override)

	return override, nil
}

// ApproveOverride settles a PENDING override as APPROVED. A decided override
// cannot be revisited.
func (s *OverrideService) ApproveOverride(ctx context.Context, overrideID uuid.UUID, identity domain.Identity, reqCtx *domain.RequestContext) (*domain.HandoverOverride, error) {
	return s.decide(ctx, overrideID, domain.OverrideStatusApproved, nil, identity, reqCtx)
}

// RejectOverride settles a PENDING override as REJECTED with a mandatory reason.
func (s *OverrideService) RejectOverride(ctx context.Context, overrideID uuid.UUID, rejectedReason string, identity domain.Identity, reqCtx *domain.RequestContext) (*domain.HandoverOverride, error) {
	if strings.TrimSpace(rejectedReason) == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}
	reason := strings.TrimSpace(rejectedReason)
	return s.decide(ctx, overrideID, domain.OverrideStatusRejected, &reason, identity, reqCtx)
}

// GetOverrideByID retrieves a single override request.
func (s *OverrideService) GetOverrideByID(ctx context.Context, overrideID uuid.UUID) (*domain.HandoverOverride, error) {
	return s.repo.GetOverrideByID(ctx, overrideID)
}

// GetPendingOverrides lists outstanding override requests for approvers.
func (s *OverrideService) GetPendingOverrides(ctx context.Context, limit, offset int) ([]domain.HandoverOverride, error) {
	return s.repo.ListPendingOverrides(ctx, limit, offset)
}

// GetOverridesByCheque lists all overrides raised for a cheque.
func (s *OverrideService) GetOverridesByCheque(ctx context.Context, chequeID uuid.UUID) ([]domain.HandoverOverride, error) {
	if _, err := s.repo.FindChequeByID(ctx, chequeID); err != nil {
		return nil, err
	}
	return s.repo.ListOverridesByCheque(ctx, chequeID)
}

func (s *OverrideService) decide(ctx context.Context, overrideID uuid.UUID, status domain.OverrideStatus, rejectedReason *string, identity domain.Identity, reqCtx *domain.RequestContext) (*domain.HandoverOverride, error) {
	override, err := s.repo.GetOverrideByID(ctx, overrideID)
	if err != nil {
		return nil, err
	}
	if override.Status != domain.OverrideStatusPending {
		return nil, &OverrideDecidedError{Status: override.Status}
	}

	decidedAt := s.now()
	if err := s.repo.DecideOverride(ctx, overrideID, status, identity.ID, rejectedReason, decidedAt); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			// Lost the race to a concurrent decision; report the winner's state.
			current, findErr := s.repo.GetOverrideByID(ctx, overrideID)
			if findErr != nil {
				return nil, findErr
			}
			return nil, &OverrideDecidedError{Status: current.Status}
		}
		return nil, err
	}

	override.Status = status
	deciderID := identity.ID
	override.DecidedBy = &deciderID
	override.DecidedAt = &decidedAt
	override.RejectedReason = rejectedReason

	action := domain.AuditOverrideApproved
	details := map[string]interface{}{"override_id": override.ID.String()}
	if status == domain.OverrideStatusRejected {
		action = domain.AuditOverrideRejected
		if rejectedReason != nil {
			details["rejected_reason"] = *rejectedReason
		}
	}
	s.appendAudit(ctx, &override.ChequeID, action, &identity.ID, details, reqCtx)

	log.Printf("level=info component=override_service msg=\"override decided\" override_id=%s status=%s decided_by=%s", override.ID, status, identity.ID)
	return override, nil
}

// notifyApprovers publishes the override-requested event. Failures are logged
// and never block the request itself.
func (s *OverrideService) notifyApprovers(ctx context.Context, override *domain.HandoverOverride) {
	if s.producer == nil {
		return
	}
	event := rabbitmq.OverrideRequestedEvent{
		OverrideID:  override.ID,
		ChequeID:    override.ChequeID,
		RequesterID: override.RequesterID,
		Reason:      override.Reason,
		Timestamp:   s.now().UTC(),
	}
	if err := s.producer.PublishOverrideRequested(ctx, event); err != nil {
		log.Printf("level=error component=override_service msg=\"override notification publish failed\" override_id=%s err=%v", override.ID, err)
	}
}

func (s *OverrideService) appendAudit(ctx context.Context, chequeID *uuid.UUID, action domain.AuditAction, actorID *uuid.UUID, details map[string]interface{}, reqCtx *domain.RequestContext) {
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
		log.Printf("level=error component=override_service msg=\"audit append failed\" action=%s err=%v", action, err)
	}
}
