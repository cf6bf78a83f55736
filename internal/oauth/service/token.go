package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"stride/internal/oauth/models"
	"stride/internal/oauth/verifier"
	id "stride/pkg/domain"
	dErrors "stride/pkg/domain-errors"
	"stride/pkg/platform/audit"
	"stride/pkg/platform/sentinel"
	"stride/pkg/requestcontext"
)

const (
	tokenTypeBearer   = "bearer"
	unknownGrantLabel = "unknown"
)

// grantHandler runs one grant type for an already authenticated client.
type grantHandler func(ctx context.Context, client *models.Client, req *models.TokenRequest) (*models.AccessToken, error)

var (
	errClientRequired   = dErrors.New(dErrors.CodeInvalidClient, "client authentication required")
	errUnsupportedGrant = dErrors.New(dErrors.CodeUnsupportedGrantType, "unsupported grant_type")
	errClientReverify   = dErrors.New(dErrors.CodeInvalidClient, "client authentication failed")
	errTokenCollision   = errors.New("access token collision")
)

// Token authenticates the calling client and dispatches to the grant named
// by req.GrantType. Client authentication failures short-circuit before any
// grant logic runs.
func (s *Service) Token(ctx context.Context, req models.TokenRequest) (result *models.TokenResult, err error) {
	start := time.Now()
	req.Normalize()

	grantType := models.GrantType(req.GrantType)
	handler, known := s.grants[grantType]
	label := string(grantType)
	if !known {
		label = unknownGrantLabel
	}

	ctx, span := s.startSpan(ctx, "oauth.Token", attribute.String("grant_type", label))
	defer func() {
		endSpan(span, err)
		s.metrics.ObserveTokenLatency(label, time.Since(start))
		if err != nil {
			s.metrics.IncrementGrantRejection(label, string(dErrors.CodeOf(err)))
		}
	}()

	client, err := s.authenticateClient(ctx, &req)
	if err != nil {
		if !dErrors.IsServerFault(dErrors.CodeOf(err)) {
			s.logAudit(ctx, audit.Event{
				Action:    string(audit.EventClientAuthFailed),
				ClientID:  presentedClientID(&req),
				GrantType: label,
			})
		}
		s.logFault(ctx, "client authentication failed", err)
		return nil, err
	}

	if !known {
		s.logAudit(ctx, audit.Event{
			Action:    string(audit.EventGrantRejected),
			ClientID:  client.ClientID,
			GrantType: label,
			Reason:    string(dErrors.CodeUnsupportedGrantType),
		})
		return nil, errUnsupportedGrant
	}

	tok, err := handler(ctx, client, &req)
	if err != nil {
		if dErrors.IsServerFault(dErrors.CodeOf(err)) {
			s.logFault(ctx, "token request failed", err)
		} else {
			s.logAudit(ctx, audit.Event{
				Action:    string(audit.EventGrantRejected),
				ClientID:  client.ClientID,
				GrantType: label,
				Reason:    string(dErrors.CodeOf(err)),
			})
		}
		return nil, err
	}

	s.metrics.IncrementTokensIssued(label)
	event := audit.Event{
		Action:    string(audit.EventTokenIssued),
		ClientID:  client.ClientID,
		GrantType: label,
	}
	if tok.AthleteID != nil {
		event.AthleteID = tok.AthleteID.String()
	}
	s.logAudit(ctx, event)

	return &models.TokenResult{AccessToken: tok.Token, TokenType: tokenTypeBearer}, nil
}

// authenticateClient verifies the client credentials carried by req. Header
// credentials take precedence over body credentials.
func (s *Service) authenticateClient(ctx context.Context, req *models.TokenRequest) (*models.Client, error) {
	presented := presentedCredentials(req)
	if presented == nil {
		return nil, errClientRequired
	}
	scheme := verifier.SchemeClientBody
	if presented == req.Basic {
		scheme = verifier.SchemeBasic
	}
	creds := verifier.Credentials{Scheme: scheme, Identifier: presented.ClientID, Secret: presented.ClientSecret}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	principal, err := s.verifiers.Verify(storeCtx, creds)
	if err != nil {
		return nil, err
	}
	return principal.Client, nil
}

// reverifyClient re-reads the client and checks the presented secret against
// its current hash, so a secret rotated or a client deleted since the
// dispatcher authenticated is not honored.
func (s *Service) reverifyClient(ctx context.Context, client *models.Client, req *models.TokenRequest) (*models.Client, error) {
	presented := presentedCredentials(req)
	if presented == nil {
		return nil, errClientReverify
	}
	current, err := s.findClientByID(ctx, client.ID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidClient) {
			return nil, errClientReverify
		}
		return nil, err
	}
	if current.ClientID != presented.ClientID || !s.hasher.Verify(presented.ClientSecret, current.SecretHash) {
		return nil, errClientReverify
	}
	return current, nil
}

// mintToken creates and persists an access token. A nil athleteID produces a
// client-only token.
func (s *Service) mintToken(ctx context.Context, tokens AccessTokenStore, client *models.Client, athleteID *id.AthleteID) (*models.AccessToken, error) {
	value, err := s.generator.NewAccessToken()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate access token")
	}
	now := requestcontext.Now(ctx)
	tok := &models.AccessToken{
		Token:     value,
		ClientID:  client.ID,
		AthleteID: athleteID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tokens.Create(ctx, tok); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(errTokenCollision, dErrors.CodeInternal, "failed to issue access token")
		}
		return nil, dErrors.FromStoreError(err, "failed to save access token")
	}
	return tok, nil
}

func presentedCredentials(req *models.TokenRequest) *models.ClientCredentials {
	if req.Basic != nil {
		return req.Basic
	}
	if req.Body != nil && req.Body.ClientID != "" {
		return req.Body
	}
	return nil
}

func presentedClientID(req *models.TokenRequest) string {
	if creds := presentedCredentials(req); creds != nil {
		return creds.ClientID
	}
	return ""
}
