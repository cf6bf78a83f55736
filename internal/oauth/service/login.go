package service

import (
	"context"
	"errors"
	"strings"

	"stride/internal/oauth/device"
	"stride/internal/oauth/models"
	"stride/internal/oauth/verifier"
	id "stride/pkg/domain"
	dErrors "stride/pkg/domain-errors"
	"stride/pkg/platform/audit"
	"stride/pkg/platform/sentinel"
	"stride/pkg/requestcontext"
)

var errSessionInvalid = dErrors.New(dErrors.CodeLoginRequired, "login required")

// Login verifies athlete credentials and opens a login session. Unknown user
// names and wrong passwords fail identically.
func (s *Service) Login(ctx context.Context, userName, password string) (*models.LoginSession, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" || password == "" {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "username and password are required")
	}

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	principal, err := s.verifiers.Verify(storeCtx, verifier.Credentials{
		Scheme:     verifier.SchemeLocal,
		Identifier: userName,
		Secret:     password,
	})
	if err != nil {
		if dErrors.IsServerFault(dErrors.CodeOf(err)) {
			s.logFault(ctx, "login failed", err)
		} else {
			s.logAudit(ctx, audit.Event{Action: string(audit.EventLoginFailed)})
		}
		return nil, err
	}

	now := requestcontext.Now(ctx)
	session := &models.LoginSession{
		ID:        id.NewSessionID(),
		AthleteID: principal.Athlete.ID,
		Device:    device.ParseUserAgent(requestcontext.UserAgent(ctx)),
		IP:        requestcontext.ClientIP(ctx),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	if err := s.sessions.Create(storeCtx, session); err != nil {
		wrapped := dErrors.FromStoreError(err, "failed to create login session")
		s.logFault(ctx, "login failed", wrapped)
		return nil, wrapped
	}

	s.logAudit(ctx, audit.Event{
		Action:    string(audit.EventLoginSucceeded),
		AthleteID: session.AthleteID.String(),
	})
	return session, nil
}

// ResolveSession returns the live session for sessionID. Missing and expired
// sessions both yield login_required.
func (s *Service) ResolveSession(ctx context.Context, sessionID id.SessionID) (*models.LoginSession, error) {
	if sessionID.IsNil() {
		return nil, errSessionInvalid
	}
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	session, err := s.sessions.Find(storeCtx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return nil, errSessionInvalid
		}
		return nil, dErrors.FromStoreError(err, "failed to load login session")
	}
	if session.IsExpired(requestcontext.Now(ctx)) {
		return nil, errSessionInvalid
	}
	return session, nil
}

// Logout ends the session. Ending an unknown session is not an error.
func (s *Service) Logout(ctx context.Context, sessionID id.SessionID) error {
	if sessionID.IsNil() {
		return nil
	}
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.sessions.Delete(storeCtx, sessionID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.FromStoreError(err, "failed to delete login session")
	}
	return nil
}

// AuthenticateBearer resolves an access token presented to a protected
// resource.
func (s *Service) AuthenticateBearer(ctx context.Context, token string) (*verifier.Principal, error) {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	principal, err := s.verifiers.Verify(storeCtx, verifier.Credentials{
		Scheme: verifier.SchemeBearer,
		Token:  token,
	})
	if err != nil {
		s.logFault(ctx, "bearer authentication failed", err)
		return nil, err
	}
	return principal, nil
}
