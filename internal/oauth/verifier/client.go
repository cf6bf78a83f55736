package verifier

import (
	"context"

	dErrors "stride/pkg/domain-errors"
)

var errClientRejected = dErrors.New(dErrors.CodeInvalidClient, "client authentication failed")

// clientSecretCheck is the single implementation behind both client
// strategies, so the header and body transports cannot drift apart.
type clientSecretCheck struct {
	clients ClientFinder
	hasher  SecretVerifier
}

func (c clientSecretCheck) verify(ctx context.Context, creds Credentials) (*Principal, error) {
	if creds.Identifier == "" {
		return nil, errClientRejected
	}
	client, err := c.clients.FindByClientID(ctx, creds.Identifier)
	if err != nil {
		c.hasher.VerifyDummy(creds.Secret)
		return nil, lookupFailure(err, errClientRejected, "client")
	}
	if !c.hasher.Verify(creds.Secret, client.SecretHash) {
		return nil, errClientRejected
	}
	return &Principal{Client: client}, nil
}

// ClientBasic authenticates clients presenting HTTP Basic credentials.
type ClientBasic struct {
	check clientSecretCheck
}

func NewClientBasic(clients ClientFinder, hasher SecretVerifier) *ClientBasic {
	return &ClientBasic{check: clientSecretCheck{clients: clients, hasher: hasher}}
}

func (*ClientBasic) Scheme() Scheme { return SchemeBasic }

func (v *ClientBasic) Verify(ctx context.Context, creds Credentials) (*Principal, error) {
	return v.check.verify(ctx, creds)
}

// ClientBody authenticates clients presenting client_id and client_secret
// request fields.
type ClientBody struct {
	check clientSecretCheck
}

func NewClientBody(clients ClientFinder, hasher SecretVerifier) *ClientBody {
	return &ClientBody{check: clientSecretCheck{clients: clients, hasher: hasher}}
}

func (*ClientBody) Scheme() Scheme { return SchemeClientBody }

func (v *ClientBody) Verify(ctx context.Context, creds Credentials) (*Principal, error) {
	return v.check.verify(ctx, creds)
}
