package verifier

import (
	"context"

	dErrors "stride/pkg/domain-errors"
)

var errTokenRejected = dErrors.New(dErrors.CodeUnauthorized, "invalid access token")

// Bearer authenticates resource requests by access token.
type Bearer struct {
	tokens   TokenFinder
	clients  ClientFinder
	athletes AthleteFinder
}

func NewBearer(tokens TokenFinder, clients ClientFinder, athletes AthleteFinder) *Bearer {
	return &Bearer{tokens: tokens, clients: clients, athletes: athletes}
}

func (*Bearer) Scheme() Scheme { return SchemeBearer }

// Verify resolves the token and the identities bound to it. A token whose
// client or athlete has since been deleted is rejected.
func (v *Bearer) Verify(ctx context.Context, creds Credentials) (*Principal, error) {
	if creds.Token == "" {
		return nil, errTokenRejected
	}
	tok, err := v.tokens.FindByToken(ctx, creds.Token)
	if err != nil {
		return nil, lookupFailure(err, errTokenRejected, "access token")
	}

	client, err := v.clients.FindByID(ctx, tok.ClientID)
	if err != nil {
		return nil, lookupFailure(err, errTokenRejected, "token client")
	}

	principal := &Principal{Token: tok, Client: client}
	if tok.AthleteID != nil {
		athlete, err := v.athletes.FindByID(ctx, *tok.AthleteID)
		if err != nil {
			return nil, lookupFailure(err, errTokenRejected, "token athlete")
		}
		principal.Athlete = athlete
	}
	return principal, nil
}
