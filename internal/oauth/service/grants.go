package service

import (
	"context"
	"errors"

	"stride/internal/oauth/models"
	"stride/internal/oauth/verifier"
	dErrors "stride/pkg/domain-errors"
	"stride/pkg/platform/sentinel"
	"stride/pkg/requestcontext"
)

// One rejection for every way a code can fail to match, so callers cannot
// discover which codes exist or whom they belong to.
var errCodeRejected = dErrors.New(dErrors.CodeInvalidGrant, "invalid authorization code")

// exchangeCode redeems an authorization code. The lookup, the binding checks,
// the conditional delete and the token insert run in one store transaction;
// the delete is the linearization point for concurrent exchanges.
func (s *Service) exchangeCode(ctx context.Context, client *models.Client, req *models.TokenRequest) (*models.AccessToken, error) {
	if req.Code == "" {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "code is required")
	}
	now := requestcontext.Now(ctx)

	var issued *models.AccessToken
	err := s.tx.RunInTx(ctx, func(ctx context.Context, stores TxStores) error {
		code, err := stores.Codes.FindByCode(ctx, req.Code)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return errCodeRejected
			}
			return dErrors.FromStoreError(err, "failed to load authorization code")
		}
		if !code.BoundTo(client.ID, req.RedirectURI) {
			return errCodeRejected
		}
		if code.IsExpired(now, s.cfg.AuthCodeTTL) {
			return errCodeRejected
		}

		if err := stores.Codes.Delete(ctx, req.Code); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return errCodeRejected
			}
			return dErrors.FromStoreError(err, "failed to consume authorization code")
		}

		athleteID := code.AthleteID
		issued, err = s.mintToken(ctx, stores.Tokens, client, &athleteID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}

// passwordGrant mints a token for an athlete who presented their own
// credentials through a trusted client.
func (s *Service) passwordGrant(ctx context.Context, client *models.Client, req *models.TokenRequest) (*models.AccessToken, error) {
	if req.Username == "" || req.Password == "" {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "username and password are required")
	}

	client, err := s.reverifyClient(ctx, client, req)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	principal, err := s.verifiers.Verify(storeCtx, verifier.Credentials{
		Scheme:     verifier.SchemeLocal,
		Identifier: req.Username,
		Secret:     req.Password,
	})
	if err != nil {
		return nil, err
	}

	athleteID := principal.Athlete.ID
	return s.mintToken(storeCtx, s.tokens, client, &athleteID)
}

// clientCredentialsGrant mints a token bound to the client alone.
func (s *Service) clientCredentialsGrant(ctx context.Context, client *models.Client, req *models.TokenRequest) (*models.AccessToken, error) {
	client, err := s.reverifyClient(ctx, client, req)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.mintToken(storeCtx, s.tokens, client, nil)
}
