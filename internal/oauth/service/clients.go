package service

import (
	"context"
	"errors"
	"strings"

	"stride/internal/oauth/models"
	id "stride/pkg/domain"
	dErrors "stride/pkg/domain-errors"
	"stride/pkg/platform/audit"
	"stride/pkg/platform/sentinel"
	"stride/pkg/requestcontext"
	"stride/pkg/secrets"
)

// RegisterClient validates and stores a new client. When no secret is
// supplied one is generated; the plaintext is returned once and only the
// hash is persisted.
func (s *Service) RegisterClient(ctx context.Context, req *models.RegisterClientRequest) (*models.RegisterClientResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	secret := req.ClientSecret
	if secret == "" {
		generated, err := secrets.Generate()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate client secret")
		}
		secret = generated
	}
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	client := &models.Client{
		ID:           id.NewClientID(),
		ClientID:     req.ClientID,
		SecretHash:   hash,
		RedirectURIs: req.RedirectURIs,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.clients.Create(storeCtx, client); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "client_id is already registered")
		}
		wrapped := dErrors.FromStoreError(err, "failed to create client")
		s.logFault(ctx, "client registration failed", wrapped)
		return nil, wrapped
	}

	s.logAudit(ctx, audit.Event{
		Action:   string(audit.EventClientCreated),
		ClientID: client.ClientID,
	})
	return &models.RegisterClientResult{Client: client, Secret: secret}, nil
}

func (s *Service) GetClient(ctx context.Context, clientID id.ClientID) (*models.Client, error) {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	client, err := s.clients.FindByID(storeCtx, clientID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "client not found")
		}
		return nil, dErrors.FromStoreError(err, "failed to load client")
	}
	return client, nil
}

// DeleteClient removes the client. Tokens already issued to it stop
// authenticating because bearer verification re-resolves the client.
func (s *Service) DeleteClient(ctx context.Context, clientID id.ClientID) error {
	client, err := s.GetClient(ctx, clientID)
	if err != nil {
		return err
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.clients.Delete(storeCtx, clientID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "client not found")
		}
		return dErrors.FromStoreError(err, "failed to delete client")
	}

	s.logAudit(ctx, audit.Event{
		Action:   string(audit.EventClientDeleted),
		ClientID: client.ClientID,
	})
	return nil
}

// CreateAthlete registers a resource owner with a hashed password.
func (s *Service) CreateAthlete(ctx context.Context, userName, password string) (*models.Athlete, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "user name is required")
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	athlete := &models.Athlete{
		ID:           id.NewAthleteID(),
		UserName:     userName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.athletes.Create(storeCtx, athlete); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "user name is already taken")
		}
		return nil, dErrors.FromStoreError(err, "failed to create athlete")
	}
	return athlete, nil
}
