package models

import (
	"fmt"
	"time"

	id "stride/pkg/domain"
	dErrors "stride/pkg/domain-errors"
)

type TransactionStatus string

const (
	TransactionInitiated       TransactionStatus = "initiated"
	TransactionPendingDecision TransactionStatus = "pending_decision"
	TransactionApproved        TransactionStatus = "approved"
	TransactionDenied          TransactionStatus = "denied"
)

// legalTransitions lists, per status, the statuses it may move to.
var legalTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionInitiated:       {TransactionPendingDecision},
	TransactionPendingDecision: {TransactionApproved, TransactionDenied},
}

// Transaction is the durable state of one authorization request awaiting the
// athlete's decision. It is bound to the login session that opened it.
type Transaction struct {
	ID          id.TransactionID  `json:"id"`
	ClientID    id.ClientID       `json:"client_id"`
	RedirectURI string            `json:"redirect_uri"`
	State       string            `json:"state,omitempty"`
	AthleteID   id.AthleteID      `json:"athlete_id"`
	SessionID   id.SessionID      `json:"session_id"`
	Status      TransactionStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

func NewTransaction(client *Client, redirectURI, state string, athleteID id.AthleteID, sessionID id.SessionID, now time.Time, ttl time.Duration) *Transaction {
	return &Transaction{
		ID:          id.NewTransactionID(),
		ClientID:    client.ID,
		RedirectURI: redirectURI,
		State:       state,
		AthleteID:   athleteID,
		SessionID:   sessionID,
		Status:      TransactionInitiated,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

// Open moves a new transaction to pending_decision.
func (t *Transaction) Open() error {
	return t.transition(TransactionPendingDecision)
}

func (t *Transaction) Approve() error {
	return t.transition(TransactionApproved)
}

func (t *Transaction) Deny() error {
	return t.transition(TransactionDenied)
}

func (t *Transaction) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// OwnedBy reports whether the transaction was opened by this athlete in this
// login session.
func (t *Transaction) OwnedBy(athleteID id.AthleteID, sessionID id.SessionID) bool {
	return t.AthleteID == athleteID && t.SessionID == sessionID
}

func (t *Transaction) transition(to TransactionStatus) error {
	for _, allowed := range legalTransitions[t.Status] {
		if allowed == to {
			t.Status = to
			return nil
		}
	}
	return dErrors.New(dErrors.CodeInvariantViolation,
		fmt.Sprintf("illegal transaction transition %s -> %s", t.Status, to))
}
