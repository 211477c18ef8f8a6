/**
 * @description
 * Caller identity and per-request metadata. Authentication itself happens
 * upstream (the API middleware validates the token); every mutating service
 * operation trusts the Identity it is handed.
 */

package domain

import "github.com/google/uuid"

// Known caller roles. Role names drive read scoping, not write authorization;
// write authorization is the HTTP layer's concern.
const (
	RoleAccounts  = "accounts"
	RoleReception = "reception"
	RoleRequester = "requester"
	RoleAdmin     = "admin"
)

// Identity is the authenticated caller passed into every mutating operation.
type Identity struct {
	ID   uuid.UUID `json:"id"`
	Role string    `json:"role"`
}

// RequestContext is the optional per-request metadata bag (caller IP and
// user agent) threaded through calls for audit purposes.
type RequestContext struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// IPPtr returns the IP as a nullable string for persistence.
func (rc *RequestContext) IPPtr() *string {
	if rc == nil || rc.IP == "" {
		return nil
	}
	ip := rc.IP
	return &ip
}

// UAPtr returns the user agent as a nullable string for persistence.
func (rc *RequestContext) UAPtr() *string {
	if rc == nil || rc.UserAgent == "" {
		return nil
	}
	ua := rc.UserAgent
	return &ua
}
