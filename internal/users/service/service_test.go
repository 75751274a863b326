package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sphere/internal/users/models"
	"sphere/internal/users/store/memory"
	id "sphere/pkg/domain"
	dErrors "sphere/pkg/domain-errors"
	"sphere/pkg/platform/audit"
	"sphere/pkg/platform/audit/publisher"
	auditmemory "sphere/pkg/platform/audit/store/memory"
	"sphere/pkg/requestcontext"
)

const wallet = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

type UserServiceSuite struct {
	suite.Suite
	audit   *auditmemory.InMemoryStore
	service *Service
	ctx     context.Context
}

func TestUserServiceSuite(t *testing.T) {
	suite.Run(t, new(UserServiceSuite))
}

func (s *UserServiceSuite) SetupTest() {
	s.audit = auditmemory.NewInMemoryStore()
	s.service = New(memory.New(), WithAuditPublisher(publisher.NewPublisher(s.audit)))
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
}

func (s *UserServiceSuite) TestResolve() {
	s.Run("first sight creates the user", func() {
		res, err := s.service.Resolve(s.ctx, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
		s.Require().NoError(err)
		s.True(res.Created)
		s.Equal(wallet, res.User.WalletAddress)

		events, err := s.audit.ListByUser(context.Background(), res.User.ID)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventUserCreated), events[0].Action)
	})

	s.Run("case variants resolve to the same user", func() {
		first, err := s.service.Resolve(s.ctx, wallet)
		s.Require().NoError(err)
		second, err := s.service.Resolve(s.ctx, "0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED")
		s.Require().NoError(err)
		s.False(second.Created)
		s.Equal(first.User.ID, second.User.ID)
	})

	s.Run("malformed address", func() {
		_, err := s.service.Resolve(s.ctx, "not-a-wallet")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *UserServiceSuite) TestResolveConcurrent() {
	const goroutines = 16
	ids := make([]id.UserID, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.service.Resolve(s.ctx, wallet)
			if err == nil {
				ids[i] = res.User.ID
			}
		}(i)
	}
	wg.Wait()
	for _, got := range ids {
		s.Equal(ids[0], got)
	}
}

func (s *UserServiceSuite) TestGet() {
	res, err := s.service.Resolve(s.ctx, wallet)
	s.Require().NoError(err)

	user, err := s.service.Get(s.ctx, res.User.ID)
	s.Require().NoError(err)
	s.Equal(wallet, user.WalletAddress)

	_, err = s.service.Get(s.ctx, id.NewUserID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.service.Get(s.ctx, id.UserID{})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

type failingStore struct{}

func (failingStore) GetOrCreate(context.Context, *models.User) (*models.User, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) FindByID(context.Context, id.UserID) (*models.User, error) {
	return nil, errors.New("connection refused")
}

func (s *UserServiceSuite) TestStoreFailure() {
	svc := New(failingStore{})
	_, err := svc.Resolve(s.ctx, wallet)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	_, err = svc.Get(s.ctx, id.NewUserID())
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
