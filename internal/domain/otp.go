/**
 * @description
 * Domain models for one-time passcodes. An Otp row stores only the keyed hash
 * of the numeric code, never the plaintext; attempts and lockout state live on
 * the row itself, so a fresh issuance implicitly resets the attempt budget.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// OtpStatus is the lifecycle state of a single OTP record.
type OtpStatus string

const (
	OtpStatusPending OtpStatus = "PENDING"
	OtpStatusUsed    OtpStatus = "USED"
	OtpStatusExpired OtpStatus = "EXPIRED"
	OtpStatusLocked  OtpStatus = "LOCKED"
)

// OtpChannel is the closed set of delivery channels for OTP codes.
type OtpChannel string

const (
	OtpChannelSMS      OtpChannel = "sms"
	OtpChannelWhatsApp OtpChannel = "whatsapp"
	OtpChannelEmail    OtpChannel = "email"
)

// IsValid reports whether the channel is one of the supported delivery channels.
func (c OtpChannel) IsValid() bool {
	switch c {
	case OtpChannelSMS, OtpChannelWhatsApp, OtpChannelEmail:
		return true
	}
	return false
}

// Otp is a single-use, time-boxed secret bound to one cheque and one delivery
// attempt. Maps to the `otps` table.
type Otp struct {
	ID          uuid.UUID  `json:"id"`
	ChequeID    uuid.UUID  `json:"cheque_id"`
	CodeHash    string     `json:"-"`
	Channel     OtpChannel `json:"channel"`
	Destination string     `json:"destination"`
	Status      OtpStatus  `json:"status"`
	Attempts    int        `json:"attempts"`
	ExpiresAt   time.Time  `json:"expires_at"`
	UsedBy      *uuid.UUID `json:"used_by,omitempty"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
	RequestIP   *string    `json:"request_ip,omitempty"`
	RequestUA   *string    `json:"request_user_agent,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// GenerateOtpRequest is the DTO for OTP issuance API requests.
type GenerateOtpRequest struct {
	Channel     OtpChannel `json:"channel"`
	Destination string     `json:"destination"`
}

// GenerateOtpResult is returned to the caller after a successful issuance.
// Code is populated only in non-production deployments; in production the
// plaintext travels exclusively to the notification channel.
type GenerateOtpResult struct {
	OtpID     uuid.UUID `json:"otp_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Code      string    `json:"code,omitempty"`
}

// VerifyOtpRequest is the DTO for OTP verification API requests.
type VerifyOtpRequest struct {
	Code string `json:"code"`
}

// VerifyOtpResult is the structured outcome of a verification attempt.
// Business failures are carried here rather than as errors so the caller can
// drive UX (remaining attempts, offer the override path on lockout).
type VerifyOtpResult struct {
	Success           bool   `json:"success"`
	Error             string `json:"error,omitempty"`
	RemainingAttempts *int   `json:"remaining_attempts,omitempty"`
	Locked            bool   `json:"locked,omitempty"`
}
