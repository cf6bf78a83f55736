package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"stride/internal/oauth/models"
	id "stride/pkg/domain"
	"stride/pkg/platform/sentinel"
)

type sessionStore interface {
	Create(ctx context.Context, sess *models.LoginSession) error
	Find(ctx context.Context, sessionID id.SessionID) (*models.LoginSession, error)
	Delete(ctx context.Context, sessionID id.SessionID) error
}

type SessionStoreSuite struct {
	suite.Suite
	newStore func(t *testing.T) sessionStore
	store    sessionStore
}

func TestInMemorySessionStore(t *testing.T) {
	suite.Run(t, &SessionStoreSuite{newStore: func(*testing.T) sessionStore { return NewInMemory() }})
}

func TestRedisSessionStore(t *testing.T) {
	suite.Run(t, &SessionStoreSuite{newStore: func(t *testing.T) sessionStore {
		mr := miniredis.RunT(t)
		return NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	}})
}

func (s *SessionStoreSuite) SetupTest() {
	s.store = s.newStore(s.T())
}

func newSession() *models.LoginSession {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.LoginSession{
		ID:        id.NewSessionID(),
		AthleteID: id.NewAthleteID(),
		Device:    "Firefox on Linux",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func (s *SessionStoreSuite) TestCreateFindDelete() {
	ctx := context.Background()
	sess := newSession()
	s.Require().NoError(s.store.Create(ctx, sess))

	found, err := s.store.Find(ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(sess.AthleteID, found.AthleteID)
	s.Equal("Firefox on Linux", found.Device)
	s.True(sess.ExpiresAt.Equal(found.ExpiresAt))

	s.Require().NoError(s.store.Delete(ctx, sess.ID))
	_, err = s.store.Find(ctx, sess.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	s.Require().ErrorIs(s.store.Delete(ctx, sess.ID), sentinel.ErrNotFound)
}

func (s *SessionStoreSuite) TestDuplicateIDConflicts() {
	ctx := context.Background()
	sess := newSession()
	s.Require().NoError(s.store.Create(ctx, sess))
	s.Require().ErrorIs(s.store.Create(ctx, sess), sentinel.ErrConflict)
}
