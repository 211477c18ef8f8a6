/**
 * @description
 * This file contains the OTP issuance and verification logic. The OtpService
 * issues single-use numeric codes bound to a cheque, verifies submissions with
 * attempt lockout, rate-limits issuance per cheque, and sweeps lapsed codes.
 *
 * Key features:
 * - Issuance is capped per cheque over a rolling window and refuses to clobber
 *   an OTP that is still live.
 * - Attempt counting and lockout are delegated to a single guarded UPDATE in
 *   the store, so concurrent guesses cannot share an attempt.
 * - Verification outcomes are returned as structured results; only
 *   infrastructure faults surface as errors.
 * - Delivery goes out as an event to the notification exchange; a send failure
 *   is logged, never fatal to issuance.
 *
 * @dependencies
 * - internal/domain, internal/store: Domain models and data access.
 * - pkg/rabbitmq: Outbound delivery events.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/chequevault/custody-service/internal/domain"
	"github.com/chequevault/custody-service/internal/store"
	"github.com/chequevault/custody-service/pkg/rabbitmq"
)

var (
	ErrInvalidOtpChannel = errors.New("invalid otp delivery channel")
	ErrOtpRateLimited    = errors.New("otp rate limit exceeded for this cheque")
	ErrActiveOtpExists   = errors.New("an active OTP already exists for this cheque")
	ErrOtpThrottled      = errors.New("too many otp requests, slow down")
)

// OtpConfig holds the tunable parameters of the OTP protocol.
type OtpConfig struct {
	Expiry         time.Duration // how long an issued code stays valid
	MaxAttempts    int           // failed verifications before lockout
	MaxPerWindow   int           // issuances per cheque per rolling window
	RateWindow     time.Duration // rolling issuance window
	DevMode        bool          // expose the plaintext code in issue results
	GeneratePerMin int           // per-destination endpoint throttle, 0 disables
	VerifyPerMin   int           // per-IP endpoint throttle, 0 disables
}

// OtpService issues, verifies, and expires one-time passcodes.
type OtpService struct {
	repo     store.Repository
	codec    *OtpCodec
	producer rabbitmq.Publisher
	limiter  *RedisRateLimiter
	cfg      OtpConfig
	now      func() time.Time
}

// NewOtpService creates a new OTP service instance.
func NewOtpService(repo store.Repository, codec *OtpCodec, producer rabbitmq.Publisher, cfg OtpConfig) *OtpService {
	if cfg.Expiry <= 0 {
		cfg.Expiry = 10 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.MaxPerWindow <= 0 {
		cfg.MaxPerWindow = 3
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = 24 * time.Hour
	}
	return &OtpService{
		repo:     repo,
		codec:    codec,
		producer: producer,
		cfg:      cfg,
		now:      time.Now,
	}
}

// ConfigureThrottle attaches the distributed endpoint throttle.
func (s *OtpService) ConfigureThrottle(limiter *RedisRateLimiter) {
	s.limiter = limiter
}

// GenerateOtp issues a new code for a cheque and publishes the delivery event.
// Failure modes, checked in order: invalid channel, unknown cheque, issuance
// cap for the rolling window, an OTP that is still live.
func (s *OtpService) GenerateOtp(ctx context.Context, chequeID uuid.UUID, req domain.GenerateOtpRequest, identity domain.Identity, reqCtx *domain.RequestContext) (*domain.GenerateOtpResult, error) {
	if !req.Channel.IsValid() {
		return nil, ErrInvalidOtpChannel
	}
	if err := s.consumeThrottle(ctx, "otp_generate", req.Destination, s.cfg.GeneratePerMin); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindChequeByID(ctx, chequeID); err != nil {
		return nil, err
	}

	now := s.now()
	issued, err := s.repo.CountOtpsCreatedSince(ctx, chequeID, now.Add(-s.cfg.RateWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to count otp issuances: %w", err)
	}
	if issued >= s.cfg.MaxPerWindow {
		log.Printf("level=warn component=otp_service msg=\"issuance rate limit hit\" cheque_id=%s issued=%d", chequeID, issued)
		return nil, ErrOtpRateLimited
	}

	// Refuse to silently invalidate a code that may already be in the
	// recipient's hands.
	if _, err := s.repo.FindPendingOtpByCheque(ctx, chequeID, now); err == nil {
		return nil, ErrActiveOtpExists
	} else if !errors.Is(err, store.ErrOtpNotFound) {
		return nil, err
	}

	code, err := s.codec.GenerateCode()
	if err != nil {
		return nil, err
	}

	otp := &domain.Otp{
		ID:          uuid.New(),
		ChequeID:    chequeID,
		CodeHash:    s.codec.HashCode(code),
		Channel:     req.Channel,
		Destination: req.Destination,
		Status:      domain.OtpStatusPending,
		ExpiresAt:   now.Add(s.cfg.Expiry),
		RequestIP:   reqCtx.IPPtr(),
		RequestUA:   reqCtx.UAPtr(),
		CreatedAt:   now,
	}
	if err := s.repo.CreateOtp(ctx, otp); err != nil {
		return nil, fmt.Errorf("failed to create otp record: %w", err)
	}

	s.appendAudit(ctx, &chequeID, domain.AuditOtpGenerated, &identity.ID, map[string]interface{}{
		"otp_id":      otp.ID.String(),
		"channel":     string(otp.Channel),
		"destination": otp.Destination,
		"expires_at":  otp.ExpiresAt.UTC().Format(time.RFC3339),
	}, reqCtx)

	s.sendOtp(ctx, otp, code)

	result := &domain.GenerateOtpResult{OtpID: otp.ID, ExpiresAt: otp.ExpiresAt}
	if s.cfg.DevMode {
		result.Code = code
	}
	return result, nil
}

// VerifyOtp checks a submitted code against the cheque's active OTP.
// Business outcomes (no active code, expired, locked, wrong code) come back in
// the result; the error return is reserved for infrastructure faults.
func (s *OtpService) VerifyOtp(ctx context.Context, chequeID uuid.UUID, submittedCode string, identity domain.Identity, reqCtx *domain.RequestContext) (*domain.VerifyOtpResult, error) {
	if err := s.consumeThrottle(ctx, "otp_verify", throttleSubject(reqCtx), s.cfg.VerifyPerMin); err != nil {
		return nil, err
	}

	now := s.now()
	otp, err := s.repo.FindActiveOtpByCheque(ctx, chequeID)
	if err != nil {
		if errors.Is(err, store.ErrOtpNotFound) {
			return &domain.VerifyOtpResult{
				Success: false,
				Error:   "No active OTP found or OTP has expired",
			}, nil
		}
		return nil, err
	}

	// A locked record consumes no further attempts; the caller should take the
	// override path.
	if otp.Status == domain.OtpStatusLocked {
		zero := 0
		return &domain.VerifyOtpResult{
			Success:           false,
			Locked:            true,
			RemainingAttempts: &zero,
			Error:             "OTP is locked after too many failed attempts; manual override required",
		}, nil
	}

	// Lazy expiry: the sweep may not have run yet.
	if !otp.ExpiresAt.After(now) {
		if err := s.repo.MarkOtpExpired(ctx, otp.ID); err != nil && !errors.Is(err, store.ErrStatusConflict) {
			return nil, err
		}
		s.appendAudit(ctx, &chequeID, domain.AuditOtpExpired, nil, map[string]interface{}{
			"otp_id": otp.ID.String(),
		}, reqCtx)
		return &domain.VerifyOtpResult{Success: false, Error: "OTP has expired"}, nil
	}

	if s.codec.Matches(submittedCode, otp.CodeHash) {
		if err := s.repo.MarkOtpUsed(ctx, otp.ID, identity.ID, now); err != nil {
			if errors.Is(err, store.ErrStatusConflict) {
				// Lost the race to a concurrent verification or lockout.
				return &domain.VerifyOtpResult{Success: false, Error: "OTP is no longer active"}, nil
			}
			return nil, err
		}
		s.appendAudit(ctx, &chequeID, domain.AuditOtpVerified, &identity.ID, map[string]interface{}{
			"otp_id": otp.ID.String(),
		}, reqCtx)
		return &domain.VerifyOtpResult{Success: true}, nil
	}

	updated, err := s.repo.RecordFailedOtpAttempt(ctx, otp.ID, s.cfg.MaxAttempts)
	if err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return &domain.VerifyOtpResult{Success: false, Error: "OTP is no longer active"}, nil
		}
		return nil, err
	}

	locked := updated.Status == domain.OtpStatusLocked
	remaining := s.cfg.MaxAttempts - updated.Attempts
	if remaining < 0 {
		remaining = 0
	}
	s.appendAudit(ctx, &chequeID, domain.AuditOtpFailed, &identity.ID, map[string]interface{}{
		"otp_id":   updated.ID.String(),
		"attempts": updated.Attempts,
		"locked":   locked,
	}, reqCtx)

	msg := "Invalid OTP code"
	if locked {
		msg = "OTP locked after too many failed attempts; manual override required"
	}
	return &domain.VerifyOtpResult{
		Success:           false,
		Error:             msg,
		RemainingAttempts: &remaining,
		Locked:            locked,
	}, nil
}

// ExpireOldOtps sweeps all lapsed PENDING OTPs and returns the count affected.
// Safe to run concurrently with verifications: the transition only touches
// rows whose expiry has already passed.
func (s *OtpService) ExpireOldOtps(ctx context.Context) (int, error) {
	expired, err := s.repo.ExpireOldOtps(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for i := range expired {
		otp := expired[i]
		s.appendAudit(ctx, &otp.ChequeID, domain.AuditOtpExpired, nil, map[string]interface{}{
			"otp_id": otp.ID.String(),
			"swept":  true,
		}, nil)
	}
	return len(expired), nil
}

// sendOtp hands the plaintext code to the notification channel. This is the
// only place outside dev mode where the code leaves the process.
func (s *OtpService) sendOtp(ctx context.Context, otp *domain.Otp, code string) {
	if s.producer == nil {
		log.Printf("level=warn component=otp_service msg=\"no notification producer configured; otp not delivered\" otp_id=%s", otp.ID)
		return
	}
	event := rabbitmq.OtpDeliveryEvent{
		OtpID:       otp.ID,
		ChequeID:    otp.ChequeID,
		Channel:     string(otp.Channel),
		Destination: otp.Destination,
		Message: fmt.Sprintf(
			"Your cheque handover code is %s. It expires in %d minutes. Do not share this code.",
			code, int(s.cfg.Expiry.Minutes()),
		),
		Timestamp: s.now().UTC(),
	}
	if err := s.producer.PublishOtpDelivery(ctx, event); err != nil {
		log.Printf("level=error component=otp_service msg=\"otp delivery publish failed\" otp_id=%s channel=%s err=%v", otp.ID, otp.Channel, err)
	}
}

func (s *OtpService) consumeThrottle(ctx context.Context, scope, subject string, perMinute int) error {
	if s.limiter == nil || perMinute <= 0 || subject == "" {
		return nil
	}
	count, _, err := s.limiter.ConsumeRateLimit(ctx, scope, subject, perMinute, time.Minute)
	if err != nil {
		// The throttle is hardening, not a correctness gate; degrade open.
		log.Printf("level=warn component=otp_service msg=\"throttle check failed; allowing request\" scope=%s err=%v", scope, err)
		return nil
	}
	if count > perMinute {
		return ErrOtpThrottled
	}
	return nil
}

func (s *OtpService) appendAudit(ctx context.Context, chequeID *uuid.UUID, action domain.AuditAction, actorID *uuid.UUID, details map[string]interface{}, reqCtx *domain.RequestContext) {
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
		log.Printf("level=error component=otp_service msg=\"audit append failed\" action=%s err=%v", action, err)
	}
}

func throttleSubject(reqCtx *domain.RequestContext) string {
	if reqCtx == nil {
		return ""
	}
	return reqCtx.IP
}
