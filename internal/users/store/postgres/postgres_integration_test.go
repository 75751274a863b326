//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sphere/internal/users/models"
	"sphere/internal/users/store/postgres"
	id "sphere/pkg/domain"
	"sphere/pkg/platform/sentinel"
	"sphere/pkg/testutil/containers"
)

type UserStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestUserStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(UserStoreSuite))
}

func (s *UserStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *UserStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "likes", "rewards", "comments", "posts", "users")
	s.Require().NoError(err)
}

func (s *UserStoreSuite) candidate() *models.User {
	u, err := models.NewUser(id.NewUserID(), "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB", time.Now().UTC())
	s.Require().NoError(err)
	return u
}

func (s *UserStoreSuite) TestGetOrCreate() {
	ctx := context.Background()
	first := s.candidate()
	got, err := s.store.GetOrCreate(ctx, first)
	s.Require().NoError(err)
	s.Equal(first.ID, got.ID)

	got, err = s.store.GetOrCreate(ctx, s.candidate())
	s.Require().NoError(err)
	s.Equal(first.ID, got.ID)

	found, err := s.store.FindByID(ctx, first.ID)
	s.Require().NoError(err)
	s.Equal(first.WalletAddress, found.WalletAddress)

	_, err = s.store.FindByID(ctx, id.NewUserID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestGetOrCreateConcurrent verifies racing resolves converge on one row.
func (s *UserStoreSuite) TestGetOrCreateConcurrent() {
	ctx := context.Background()
	const goroutines = 10
	ids := make([]id.UserID, goroutines)
	candidates := make([]*models.User, goroutines)
	for i := range candidates {
		candidates[i] = s.candidate()
	}
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := s.store.GetOrCreate(ctx, candidates[i])
			if err == nil {
				ids[i] = u.ID
			}
		}(i)
	}
	wg.Wait()
	for _, got := range ids {
		s.Equal(ids[0], got)
	}

	var count int
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&count))
	s.Equal(1, count)
}
