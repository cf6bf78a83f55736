package athlete

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"stride/internal/oauth/models"
	id "stride/pkg/domain"
	"stride/pkg/platform/sentinel"
)

type InMemoryAthleteStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestInMemoryAthleteStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryAthleteStoreSuite))
}

func (s *InMemoryAthleteStoreSuite) SetupTest() {
	s.store = NewInMemory()
}

func (s *InMemoryAthleteStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	alice := &models.Athlete{ID: id.NewAthleteID(), UserName: "alice", PasswordHash: "$2a$04$hash"}
	s.Require().NoError(s.store.Create(ctx, alice))

	byName, err := s.store.FindByUserName(ctx, "alice")
	s.Require().NoError(err)
	s.Equal(alice.ID, byName.ID)

	byID, err := s.store.FindByID(ctx, alice.ID)
	s.Require().NoError(err)
	s.Equal("alice", byID.UserName)
	s.False(byID.CreatedAt.IsZero())
}

func (s *InMemoryAthleteStoreSuite) TestDuplicateUserName() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, &models.Athlete{ID: id.NewAthleteID(), UserName: "alice"}))
	err := s.store.Create(ctx, &models.Athlete{ID: id.NewAthleteID(), UserName: "alice"})
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *InMemoryAthleteStoreSuite) TestNotFound() {
	ctx := context.Background()
	_, err := s.store.FindByUserName(ctx, "bob")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindByID(ctx, id.NewAthleteID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
