package audit

import (
	"context"
	"time"
)

// Event is emitted from the OAuth service to record a security-relevant
// action. It never carries secrets, codes or tokens.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	AthleteID string    `json:"athlete_id,omitempty"`
	ClientID  string    `json:"client_id,omitempty"`
	GrantType string    `json:"grant_type,omitempty"`
	Decision  string    `json:"decision,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	IP        string    `json:"ip,omitempty"`
}

type AuditEvent string

const (
	EventLoginSucceeded          AuditEvent = "login_succeeded"
	EventLoginFailed             AuditEvent = "login_failed"
	EventAuthorizationCodeIssued AuditEvent = "authorization_code_issued"
	EventAuthorizationDenied     AuditEvent = "authorization_denied"
	EventTokenIssued             AuditEvent = "token_issued"
	EventClientAuthFailed        AuditEvent = "client_auth_failed"
	EventGrantRejected           AuditEvent = "grant_rejected"
	EventClientCreated           AuditEvent = "client_created"
	EventClientDeleted           AuditEvent = "client_deleted"
)

// Store persists or forwards audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
