// Package verifier resolves raw credentials to an authenticated principal.
//
// Each Strategy handles one credential scheme. A rejection is returned as a
// coded domain error (invalid_client, invalid_grant or unauthorized); a
// storage failure is returned as internal_error or timeout so callers can
// tell "credentials are wrong" apart from "could not check credentials".
package verifier

import (
	"context"
	"errors"
	"fmt"

	"stride/internal/oauth/models"
	id "stride/pkg/domain"
	dErrors "stride/pkg/domain-errors"
	"stride/pkg/platform/sentinel"
)

type Scheme string

const (
	// SchemeLocal is resource-owner user name and password.
	SchemeLocal Scheme = "local"
	// SchemeBasic is client credentials from the Authorization: Basic header.
	SchemeBasic Scheme = "basic"
	// SchemeClientBody is client credentials from client_id/client_secret fields.
	SchemeClientBody Scheme = "client_body"
	// SchemeBearer is an access token from the Authorization: Bearer header.
	SchemeBearer Scheme = "bearer"
)

// Credentials as presented. Identifier is a client_id or user name; Secret is
// the matching client secret or password; Token is a bearer token.
type Credentials struct {
	Scheme     Scheme
	Identifier string
	Secret     string
	Token      string
}

// Principal is the authenticated identity. Which fields are set depends on
// the strategy: client strategies set Client, the owner strategy sets
// Athlete, and the bearer strategy sets Token, Client and (for tokens bound
// to an owner) Athlete.
type Principal struct {
	Client  *models.Client
	Athlete *models.Athlete
	Token   *models.AccessToken
}

type Strategy interface {
	Scheme() Scheme
	Verify(ctx context.Context, creds Credentials) (*Principal, error)
}

type ClientFinder interface {
	FindByClientID(ctx context.Context, clientID string) (*models.Client, error)
	FindByID(ctx context.Context, clientID id.ClientID) (*models.Client, error)
}

type AthleteFinder interface {
	FindByUserName(ctx context.Context, userName string) (*models.Athlete, error)
	FindByID(ctx context.Context, athleteID id.AthleteID) (*models.Athlete, error)
}

type TokenFinder interface {
	FindByToken(ctx context.Context, token string) (*models.AccessToken, error)
}

// SecretVerifier compares a presented secret with a stored hash.
type SecretVerifier interface {
	Verify(secret, hash string) bool
	VerifyDummy(secret string) bool
}

// Registry is an explicitly constructed set of strategies keyed by scheme.
type Registry struct {
	strategies map[Scheme]Strategy
}

func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[Scheme]Strategy, len(strategies))}
	for _, s := range strategies {
		r.strategies[s.Scheme()] = s
	}
	return r
}

// Verify dispatches creds to the strategy registered for creds.Scheme.
func (r *Registry) Verify(ctx context.Context, creds Credentials) (*Principal, error) {
	strategy, ok := r.strategies[creds.Scheme]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInternal, fmt.Sprintf("no verifier registered for scheme %q", creds.Scheme))
	}
	return strategy.Verify(ctx, creds)
}

// Has reports whether a strategy is registered for scheme.
func (r *Registry) Has(scheme Scheme) bool {
	_, ok := r.strategies[scheme]
	return ok
}

// lookupFailure separates "record absent" from infrastructure errors.
func lookupFailure(err error, rejection *dErrors.Error, what string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return rejection
	}
	return dErrors.FromStoreError(err, "failed to look up "+what)
}
