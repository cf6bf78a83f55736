package service

import (
	"context"
	"errors"
	"net/url"

	"go.opentelemetry.io/otel/attribute"

	"stride/internal/oauth/models"
	id "stride/pkg/domain"
	dErrors "stride/pkg/domain-errors"
	"stride/pkg/platform/audit"
	"stride/pkg/platform/sentinel"
	"stride/pkg/requestcontext"
)

const (
	decisionApproved = "approved"
	decisionDenied   = "denied"
)

var errTransactionUnusable = dErrors.New(dErrors.CodeInvalidRequest, "authorization transaction not found")

// Authorize validates an authorization request from a logged-in athlete and
// opens a transaction awaiting their decision.
func (s *Service) Authorize(ctx context.Context, req models.AuthorizeRequest) (result *models.AuthorizeResult, err error) {
	ctx, span := s.startSpan(ctx, "oauth.Authorize", attribute.String("client_id", req.ClientID))
	defer func() { endSpan(span, err) }()

	if req.AthleteID.IsNil() || req.SessionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeLoginRequired, "login required")
	}
	if req.ClientID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "client_id is required")
	}

	client, err := s.findClientByClientID(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}

	redirectURI := req.RedirectURI
	if !models.IsAbsoluteURL(redirectURI) {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "redirect_uri must be an absolute URL")
	}
	if !client.AllowsRedirect(redirectURI) {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "redirect_uri is not registered for this client")
	}

	athlete, err := s.findAthlete(ctx, req.AthleteID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	txn := models.NewTransaction(client, redirectURI, req.State, athlete.ID, req.SessionID, now, s.cfg.TransactionTTL)
	if err := txn.Open(); err != nil {
		return nil, err
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.transactions.Save(storeCtx, txn); err != nil {
		s.logFault(ctx, "failed to save authorization transaction", err)
		return nil, dErrors.FromStoreError(err, "failed to save authorization transaction")
	}

	return &models.AuthorizeResult{
		TransactionID: txn.ID,
		Athlete:       athlete,
		Client:        client,
	}, nil
}

// Decide applies the athlete's decision to an open transaction. Exactly one
// decision is accepted per transaction; the redirect target is returned
// fully built for both outcomes.
func (s *Service) Decide(ctx context.Context, req models.DecisionRequest) (result *models.DecisionResult, err error) {
	ctx, span := s.startSpan(ctx, "oauth.Decide", attribute.Bool("approved", req.Approved))
	defer func() { endSpan(span, err) }()

	if req.AthleteID.IsNil() || req.SessionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeLoginRequired, "login required")
	}

	txn, err := s.loadTransaction(ctx, req.TransactionID, func(ctx context.Context, txID id.TransactionID) (*models.Transaction, error) {
		return s.transactions.Find(ctx, txID)
	})
	if err != nil {
		return nil, err
	}
	if txn.IsExpired(requestcontext.Now(ctx)) || !txn.OwnedBy(req.AthleteID, req.SessionID) {
		return nil, errTransactionUnusable
	}

	// Take is the linearization point: a concurrent decision on the same
	// transaction finds nothing to take.
	txn, err = s.loadTransaction(ctx, req.TransactionID, func(ctx context.Context, txID id.TransactionID) (*models.Transaction, error) {
		return s.transactions.Take(ctx, txID)
	})
	if err != nil {
		return nil, err
	}

	client, err := s.findClientByID(ctx, txn.ClientID)
	if err != nil {
		return nil, err
	}

	if !req.Approved {
		return s.deny(ctx, txn, client)
	}
	return s.approve(ctx, txn, client)
}

func (s *Service) approve(ctx context.Context, txn *models.Transaction, client *models.Client) (*models.DecisionResult, error) {
	if err := txn.Approve(); err != nil {
		s.logFault(ctx, "illegal transaction transition", err)
		return nil, err
	}
	code, err := s.issueCode(ctx, client, txn.AthleteID, txn.RedirectURI)
	if err != nil {
		return nil, err
	}
	redirect, err := buildRedirect(txn.RedirectURI, "code", code, txn.State)
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementDecision(decisionApproved)
	s.logAudit(ctx, audit.Event{
		Action:    string(audit.EventAuthorizationCodeIssued),
		AthleteID: txn.AthleteID.String(),
		ClientID:  client.ClientID,
		Decision:  decisionApproved,
	})
	return &models.DecisionResult{RedirectURI: redirect, Approved: true}, nil
}

func (s *Service) deny(ctx context.Context, txn *models.Transaction, client *models.Client) (*models.DecisionResult, error) {
	if err := txn.Deny(); err != nil {
		s.logFault(ctx, "illegal transaction transition", err)
		return nil, err
	}
	redirect, err := buildRedirect(txn.RedirectURI, "error", string(dErrors.CodeAccessDenied), txn.State)
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementDecision(decisionDenied)
	s.logAudit(ctx, audit.Event{
		Action:    string(audit.EventAuthorizationDenied),
		AthleteID: txn.AthleteID.String(),
		ClientID:  client.ClientID,
		Decision:  decisionDenied,
	})
	return &models.DecisionResult{RedirectURI: redirect, Approved: false}, nil
}

// issueCode mints and persists a code bound to client, athlete and redirect.
func (s *Service) issueCode(ctx context.Context, client *models.Client, athleteID id.AthleteID, redirectURI string) (string, error) {
	code, err := s.generator.NewCode()
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate authorization code")
		s.logFault(ctx, "failed to issue authorization code", err)
		return "", err
	}
	now := requestcontext.Now(ctx)
	authCode := &models.AuthorizationCode{
		Code:        code,
		ClientID:    client.ID,
		AthleteID:   athleteID,
		RedirectURI: redirectURI,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.codes.Create(storeCtx, authCode); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			err = dErrors.Wrap(err, dErrors.CodeInternal, "authorization code collision")
		} else {
			err = dErrors.FromStoreError(err, "failed to save authorization code")
		}
		s.logFault(ctx, "failed to issue authorization code", err)
		return "", err
	}
	return code, nil
}

func (s *Service) loadTransaction(
	ctx context.Context,
	txID id.TransactionID,
	load func(ctx context.Context, txID id.TransactionID) (*models.Transaction, error),
) (*models.Transaction, error) {
	if txID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "transaction_id is required")
	}
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	txn, err := load(storeCtx, txID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return nil, errTransactionUnusable
		}
		wrapped := dErrors.FromStoreError(err, "failed to load authorization transaction")
		s.logFault(ctx, "failed to load authorization transaction", wrapped)
		return nil, wrapped
	}
	return txn, nil
}

func (s *Service) findClientByClientID(ctx context.Context, clientID string) (*models.Client, error) {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	client, err := s.clients.FindByClientID(storeCtx, clientID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvalidClient, "unknown client")
		}
		return nil, dErrors.FromStoreError(err, "failed to load client")
	}
	return client, nil
}

func (s *Service) findClientByID(ctx context.Context, clientID id.ClientID) (*models.Client, error) {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	client, err := s.clients.FindByID(storeCtx, clientID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvalidClient, "unknown client")
		}
		return nil, dErrors.FromStoreError(err, "failed to load client")
	}
	return client, nil
}

func (s *Service) findAthlete(ctx context.Context, athleteID id.AthleteID) (*models.Athlete, error) {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	athlete, err := s.athletes.FindByID(storeCtx, athleteID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeLoginRequired, "login required")
		}
		return nil, dErrors.FromStoreError(err, "failed to load athlete")
	}
	return athlete, nil
}

// buildRedirect appends key=value and, when present, state to base while
// keeping any query the client registered.
func buildRedirect(base, key, value, state string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "stored redirect_uri is not a valid URL")
	}
	q := u.Query()
	q.Set(key, value)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
