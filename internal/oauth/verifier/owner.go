package verifier

import (
	"context"

	dErrors "stride/pkg/domain-errors"
)

// One rejection value for both "no such athlete" and "wrong password".
var errOwnerRejected = dErrors.New(dErrors.CodeInvalidGrant, "invalid resource owner credentials")

// Owner authenticates athletes by user name and password.
type Owner struct {
	athletes AthleteFinder
	hasher   SecretVerifier
}

func NewOwner(athletes AthleteFinder, hasher SecretVerifier) *Owner {
	return &Owner{athletes: athletes, hasher: hasher}
}

func (*Owner) Scheme() Scheme { return SchemeLocal }

func (v *Owner) Verify(ctx context.Context, creds Credentials) (*Principal, error) {
	if creds.Identifier == "" {
		v.hasher.VerifyDummy(creds.Secret)
		return nil, errOwnerRejected
	}
	athlete, err := v.athletes.FindByUserName(ctx, creds.Identifier)
	if err != nil {
		v.hasher.VerifyDummy(creds.Secret)
		return nil, lookupFailure(err, errOwnerRejected, "athlete")
	}
	if !v.hasher.Verify(creds.Secret, athlete.PasswordHash) {
		return nil, errOwnerRejected
	}
	return &Principal{Athlete: athlete}, nil
}
