package rooms

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/wye/wye-server/internal/model"
	"github.com/wye/wye-server/internal/storage/memory"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	service *Service
	ctx     context.Context
	alice   *model.User
	bob     *model.User
	played  time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.service = New(s.storage)
	s.ctx = context.Background()
	s.alice = &model.User{ID: "alice", Email: "alice@wye.com", IsActive: true}
	s.bob = &model.User{ID: "bob", Email: "bob@wye.com", IsActive: true}
	s.played = time.Date(2012, 11, 23, 13, 32, 0, 0, time.UTC)
}

func (s *ServiceSuite) input(name string) CreateInput {
	return CreateInput{Name: name, PlayedAt: s.played, Duration: 20 * time.Minute, NumberOfHints: 0}
}

// Create tests

func (s *ServiceSuite) TestCreateSetsOwnerFromCaller() {
	rs, err := s.service.Create(s.ctx, s.alice, s.input("Escape room Youkidea"))
	s.Require().NoError(err)

	s.NotEmpty(rs.ID)
	s.Equal(s.alice.ID, rs.OwnerID)
	s.Equal("Escape room Youkidea", rs.Name)
	s.Equal(20*time.Minute, rs.Duration)
	s.Equal(0, rs.NumberOfHints)
	s.Equal(s.played, rs.PlayedAt)
}

func (s *ServiceSuite) TestCreateAllowsZeroDurationAndHints() {
	in := s.input("Quick")
	in.Duration = 0

	_, err := s.service.Create(s.ctx, s.alice, in)
	s.NoError(err)
}

func (s *ServiceSuite) TestCreateValidation() {
	cases := []struct {
		name   string
		mutate func(*CreateInput)
		field  string
	}{
		{"empty name", func(in *CreateInput) { in.Name = "" }, "name"},
		{"long name", func(in *CreateInput) { in.Name = strings.Repeat("x", 256) }, "name"},
		{"missing played at", func(in *CreateInput) { in.PlayedAt = time.Time{} }, "playedDatetime"},
		{"negative duration", func(in *CreateInput) { in.Duration = -time.Second }, "durationTime"},
		{"negative hints", func(in *CreateInput) { in.NumberOfHints = -1 }, "numberOfHints"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			in := s.input("Room")
			tc.mutate(&in)

			_, err := s.service.Create(s.ctx, s.alice, in)
			s.Require().ErrorIs(err, model.ErrValidation)

			var verr *model.ValidationError
			s.Require().True(errors.As(err, &verr))
			s.Equal(tc.field, verr.Fields[0].Field)
		})
	}

	list, err := s.service.ListForOwner(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Empty(list)
}

// ListForOwner tests

func (s *ServiceSuite) TestListIsScopedToOwner() {
	_, _ = s.service.Create(s.ctx, s.alice, s.input("Escape Room Toulouse"))
	_, _ = s.service.Create(s.ctx, s.bob, s.input("Bob's room"))
	_, _ = s.service.Create(s.ctx, s.alice, s.input("Escape room Youkidea"))

	alice, err := s.service.ListForOwner(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Require().Len(alice, 2)
	s.Equal("Escape Room Toulouse", alice[0].Name)
	s.Equal("Escape room Youkidea", alice[1].Name)
	for _, rs := range alice {
		s.Equal(s.alice.ID, rs.OwnerID)
	}

	bob, err := s.service.ListForOwner(s.ctx, s.bob)
	s.Require().NoError(err)
	s.Require().Len(bob, 1)
	s.Equal("Bob's room", bob[0].Name)
}

func (s *ServiceSuite) TestListEmptyIsNotNil() {
	list, err := s.service.ListForOwner(s.ctx, s.bob)
	s.Require().NoError(err)
	s.NotNil(list)
	s.Empty(list)
}
