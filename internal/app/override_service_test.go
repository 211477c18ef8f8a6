package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/chequevault/custody-service/internal/domain"
	"github.com/chequevault/custody-service/internal/store"
)

func newTestOverrideService(repo *stubRepository) (*OverrideService, *capturingPublisher) {
	publisher := &capturingPublisher{}
	return NewOverrideService(repo, publisher), publisher
}

func TestCreateOverrideRequest(t *testing.T) {
	repo := newStubRepository()
	svc, publisher := newTestOverrideService(repo)
	cheque := repo.seedCheque(domain.ChequeStatusWithReception)
	requester := testIdentity(domain.RoleReception)

	override, err := svc.CreateOverrideRequest(context.Background(), cheque.ID, "recipient phone unreachable", requester, testRequestContext())
	if err != nil {
		t.Fatalf("CreateOverrideRequest failed: %v", err)
	}
	if override.Status != domain.OverrideStatusPending {
		t.Errorf("expected PENDING, got %s", override.Status)
	}
	if override.RequesterID != requester.ID {
		t.Errorf("expected requester %s, got %s", requester.ID, override.RequesterID)
	}
	if len(publisher.overrideEvts) != 1 {
		t.Errorf("expected one approver notification, got %d", len(publisher.overrideEvts))
	}

	actions := repo.auditActions(cheque.ID)
	if len(actions) != 1 || actions[0] != domain.AuditOverrideRequested {
		t.Errorf("expected OVERRIDE_REQUESTED audit entry, got %v", actions)
	}
}

func TestCreateOverrideRequestValidation(t *testing.T) {
	repo := newStubRepository()
	svc, _ := newTestOverrideService(repo)
	cheque := repo.seedCheque(domain.ChequeStatusWithReception)
	requester := testIdentity(domain.RoleReception)

	if _, err := svc.CreateOverrideRequest(context.Background(), cheque.ID, "   ", requester, nil); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for empty reason, got %v", err)
	}
	if _, err := svc.CreateOverrideRequest(context.Background(), uuid.New(), "reason", requester, nil); !errors.Is(err, store.ErrChequeNotFound) {
		t.Errorf("expected ErrChequeNotFound, got %v", err)
	}
}

func TestCreateOverrideRequestPendingExclusivity(t *testing.T) {
	repo := newStubRepository()
	svc, _ := newTestOverrideService(repo)
	cheque := repo.seedCheque(domain.ChequeStatusWithReception)
	requester := testIdentity(domain.RoleReception)

	if _, err := svc.CreateOverrideRequest(context.Background(), cheque.ID, "otp locked", requester, nil); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if _, err := svc.CreateOverrideRequest(context.Background(), cheque.ID, "still locked", requester, nil); !errors.Is(err, ErrOverridePending) {
		t.Errorf("expected ErrOverridePending, got %v", err)
	}
}

func TestApproveOverride(t *testing.T) {
	repo := newStubRepository()
	svc, _ := newTestOverrideService(repo)
	cheque := repo.seedCheque(domain.ChequeStatusWithReception)
	requester := testIdentity(domain.RoleReception)
	approver := testIdentity(domain.RoleAdmin)

	override, err := svc.CreateOverrideRequest(context.Background(), cheque.ID, "otp locked", requester, nil)
	if err != nil {
		t.Fatalf("CreateOverrideRequest failed: %v", err)
	}

	approved, err := svc.ApproveOverride(context.Background(), override.ID, approver, nil)
	if err != nil {
		t.Fatalf("ApproveOverride failed: %v", err)
	}
	if approved.Status != domain.OverrideStatusApproved {
		t.Errorf("expected APPROVED, got %s", approved.Status)
	}
	if approved.DecidedBy == nil || *approved.DecidedBy != approver.ID {
		t.Errorf("expected decided_by %s, got %v", approver.ID, approved.DecidedBy)
	}
	if approved.DecidedAt == nil {
		t.Error("expected decided_at to be set")
	}

	// Approval alone does not move the cheque; the handover is still explicit.
	current, _ := repo.FindChequeByID(context.Background(), cheque.ID)
	if current.Status != domain.ChequeStatusWithReception {
		t.Errorf("approval must not change cheque status, got %s", current.Status)
	}
}

func TestRejectOverride(t *testing.T) {
	repo := newStubRepository()
	svc, _ := newTestOverrideService(repo)
	cheque := repo.seedCheque(domain.ChequeStatusWithReception)
	requester := testIdentity(domain.RoleReception)
	approver := testIdentity(domain.RoleAdmin)

	override, err := svc.CreateOverrideRequest(context.Background(), cheque.ID, "otp locked", requester, nil)
	if err != nil {
		t.Fatalf("CreateOverrideRequest failed: %v", err)
	}

	if _, err := svc.RejectOverride(context.Background(), override.ID, "  ", approver, nil); !errors.Is(err, ErrValidation) {
		t.Errorf("rejection without a reason must fail validation, got %v", err)
	}

	rejected, err := svc.RejectOverride(context.Background(), override.ID, "insufficient justification", approver, nil)
	if err != nil {
		t.Fatalf("RejectOverride failed: %v", err)
	}
	if rejected.Status != domain.OverrideStatusRejected {
		t.Errorf("expected REJECTED, got %s", rejected.Status)
	}
	if rejected.RejectedReason == nil || *rejected.RejectedReason != "insufficient justification" {
		t.Errorf("expected rejection reason persisted, got %v", rejected.RejectedReason)
	}
}

func TestOverrideDecidedExactlyOnce(t *testing.T) {
	repo := newStubRepository()
	svc, _ := newTestOverrideService(repo)
	cheque := repo.seedCheque(domain.ChequeStatusWithReception)
	requester := testIdentity(domain.RoleReception)
	approver := testIdentity(domain.RoleAdmin)

	override, err := svc.CreateOverrideRequest(context.Background(), cheque.ID, "otp locked", requester, nil)
	if err != nil {
		t.Fatalf("CreateOverrideRequest failed: %v", err)
	}
	if _, err := svc.ApproveOverride(context.Background(), override.ID, approver, nil); err != nil {
		t.Fatalf("ApproveOverride failed: %v", err)
	}

	var decidedErr *OverrideDecidedError
	if _, err := svc.ApproveOverride(context.Background(), override.ID, approver, nil); !errors.As(err, &decidedErr) {
		t.Fatalf("expected OverrideDecidedError on second approval, got %v", err)
	}
	if decidedErr.Status != domain.OverrideStatusApproved {
		t.Errorf("expected error to carry APPROVED, got %s", decidedErr.Status)
	}
	if _, err := svc.RejectOverride(context.Background(), override.ID, "changed my mind", approver, nil); !errors.As(err, &decidedErr) {
		t.Errorf("expected OverrideDecidedError on reject-after-approve, got %v", err)
	}
}

func TestDecideUnknownOverride(t *testing.T) {
	repo := newStubRepository()
	svc, _ := newTestOverrideService(repo)
	if _, err := svc.ApproveOverride(context.Background(), uuid.New(), testIdentity(domain.RoleAdmin), nil); !errors.Is(err, store.ErrOverrideNotFound) {
		t.Errorf("expected ErrOverrideNotFound, got %v", err)
	}
}

func TestResolvedOverrideAllowsNewRequest(t *testing.T) {
	repo := newStubRepository()
	svc, _ := newTestOverrideService(repo)
	cheque := repo.seedCheque(domain.ChequeStatusWithReception)
	requester := testIdentity(domain.RoleReception)
	approver := testIdentity(domain.RoleAdmin)

	first, err := svc.CreateOverrideRequest(context.Background(), cheque.ID, "otp locked", requester, nil)
	if err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if _, err := svc.RejectOverride(context.Background(), first.ID, "try the otp again", approver, nil); err != nil {
		t.Fatalf("RejectOverride failed: %v", err)
	}

	if _, err := svc.CreateOverrideRequest(context.Background(), cheque.ID, "otp still locked", requester, nil); err != nil {
		t.Errorf("a rejected override must not block a new request, got %v", err)
	}
}
