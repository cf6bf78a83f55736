// Package domain holds the typed identifiers shared across the OAuth packages.
// Each identifier is a distinct UUID type so an athlete ID can never be passed
// where a client ID is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "stride/pkg/domain-errors"
)

type (
	ClientID      uuid.UUID
	AthleteID     uuid.UUID
	TransactionID uuid.UUID
	SessionID     uuid.UUID
)

func (id ClientID) String() string      { return uuid.UUID(id).String() }
func (id AthleteID) String() string     { return uuid.UUID(id).String() }
func (id TransactionID) String() string { return uuid.UUID(id).String() }
func (id SessionID) String() string     { return uuid.UUID(id).String() }

func (id ClientID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id AthleteID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id TransactionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

func NewClientID() ClientID           { return ClientID(uuid.New()) }
func NewAthleteID() AthleteID         { return AthleteID(uuid.New()) }
func NewTransactionID() TransactionID { return TransactionID(uuid.New()) }
func NewSessionID() SessionID         { return SessionID(uuid.New()) }

func ParseClientID(s string) (ClientID, error) {
	u, err := parse(s, "client ID")
	return ClientID(u), err
}

func ParseAthleteID(s string) (AthleteID, error) {
	u, err := parse(s, "athlete ID")
	return AthleteID(u), err
}

func ParseTransactionID(s string) (TransactionID, error) {
	u, err := parse(s, "transaction ID")
	return TransactionID(u), err
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := parse(s, "session ID")
	return SessionID(u), err
}

// parse rejects empty, malformed and nil UUIDs at trust boundaries.
func parse(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

// Text marshaling keeps the canonical UUID form in JSON and Redis payloads.

func (id ClientID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id AthleteID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id TransactionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id SessionID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }

func (id *ClientID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AthleteID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *TransactionID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SessionID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
