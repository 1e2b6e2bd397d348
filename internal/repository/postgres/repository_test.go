package postgres

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/innkeep/loyalty/internal/config"
	"github.com/innkeep/loyalty/internal/domain/membership"
	"github.com/innkeep/loyalty/internal/domain/reward"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/innkeep/loyalty/internal/postgres"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/suite"
)

// Runs against a real database only when LOYALTY_TEST_POSTGRES_HOST is set.
type RepositorySuite struct {
	suite.Suite
	ctx         context.Context
	db          *postgres.DB
	memberships membership.Repository
	rewards     reward.Repository

	membershipIDs []string
	rewardIDs     []string
}

func TestRepository(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupSuite() {
	host := os.Getenv("LOYALTY_TEST_POSTGRES_HOST")
	if host == "" {
		s.T().Skip("LOYALTY_TEST_POSTGRES_HOST not set")
	}

	cfg := config.GetDefaultConfig()
	cfg.Postgres.Host = host
	if port, err := strconv.Atoi(os.Getenv("LOYALTY_TEST_POSTGRES_PORT")); err == nil {
		cfg.Postgres.Port = port
	}
	if user := os.Getenv("LOYALTY_TEST_POSTGRES_USER"); user != "" {
		cfg.Postgres.User = user
		cfg.Postgres.Password = os.Getenv("LOYALTY_TEST_POSTGRES_PASSWORD")
	}
	if name := os.Getenv("LOYALTY_TEST_POSTGRES_DBNAME"); name != "" {
		cfg.Postgres.DBName = name
	}
	cfg.Postgres.MaxOpenConns = 20

	log := logger.NewNoopLogger()
	db, err := postgres.NewDB(cfg, log)
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.Require().NoError(db.Migrate(s.ctx, false))

	s.db = db
	s.memberships = NewMembershipRepository(db, log)
	s.rewards = NewRewardRepository(db, log)
}

func (s *RepositorySuite) TearDownTest() {
	for _, id := range s.membershipIDs {
		_, err := s.db.ExecContext(s.ctx, `DELETE FROM loyalty_transactions WHERE membership_id = $1`, id)
		s.NoError(err)
		_, err = s.db.ExecContext(s.ctx, `DELETE FROM memberships WHERE id = $1`, id)
		s.NoError(err)
	}
	for _, id := range s.rewardIDs {
		_, err := s.db.ExecContext(s.ctx, `DELETE FROM rewards WHERE id = $1`, id)
		s.NoError(err)
	}
	s.membershipIDs = nil
	s.rewardIDs = nil
}

func (s *RepositorySuite) TearDownSuite() {
	if s.db != nil {
		s.NoError(s.db.Close())
	}
}

func (s *RepositorySuite) createMembership() *membership.Membership {
	m := membership.New(s.ctx, types.GenerateUUIDWithPrefix("guest"), types.Metadata{})
	s.Require().NoError(s.memberships.Create(s.ctx, m))
	s.membershipIDs = append(s.membershipIDs, m.ID)
	return m
}

func (s *RepositorySuite) createReward(stock int) *reward.Reward {
	rw := &reward.Reward{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REWARD),
		Name:           "Late checkout",
		PointsCost:     300,
		StockAvailable: lo.ToPtr(stock),
		RewardStatus:   types.RewardStatusActive,
		Metadata:       types.Metadata{},
		BaseModel:      types.GetDefaultBaseModel(s.ctx),
	}
	s.Require().NoError(s.rewards.Create(s.ctx, rw))
	s.rewardIDs = append(s.rewardIDs, rw.ID)
	return rw
}

func (s *RepositorySuite) TestDecrementStockUnderConcurrency() {
	rw := s.createReward(3)

	results := make(chan error, 10)
	var wg conc.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Go(func() {
			results <- s.db.WithTx(s.ctx, func(ctx context.Context) error {
				_, err := s.rewards.DecrementStock(ctx, rw.ID)
				return err
			})
		})
	}
	wg.Wait()
	close(results)

	var ok, outOfStock int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case ierr.Is(err, ierr.ErrOutOfStock):
			outOfStock++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(3, ok)
	s.Equal(7, outOfStock)

	got, err := s.rewards.Get(s.ctx, rw.ID)
	s.Require().NoError(err)
	s.Equal(0, lo.FromPtr(got.StockAvailable))
}

func (s *RepositorySuite) TestDecrementStockUnlimited() {
	rw := s.createReward(0)
	rw.StockAvailable = nil
	s.Require().NoError(s.rewards.Update(s.ctx, rw))

	_, err := s.rewards.DecrementStock(s.ctx, rw.ID)
	s.True(ierr.Is(err, ierr.ErrOutOfStock))
}

// Every read-modify-write holds the row lock, so no increment is lost.
func (s *RepositorySuite) TestGetForUpdateSerializesWriters() {
	m := s.createMembership()

	errs := make(chan error, 10)
	var wg conc.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Go(func() {
			errs <- s.db.WithTx(s.ctx, func(ctx context.Context) error {
				locked, err := s.memberships.GetForUpdate(ctx, m.ID)
				if err != nil {
					return err
				}
				// widen the window between read and write
				time.Sleep(10 * time.Millisecond)
				if err := locked.ApplyPoints(100); err != nil {
					return err
				}
				return s.memberships.Update(ctx, locked)
			})
		})
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err)
	}

	got, err := s.memberships.Get(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Equal(int64(1000), got.Points)
}

func (s *RepositorySuite) TestListExpiredCreditsPagesByCursor() {
	m := s.createMembership()
	asOf := time.Now().UTC()

	for i := 0; i < 3; i++ {
		expiresAt := asOf.Add(-time.Duration(3-i) * time.Hour)
		tx := &membership.Transaction{
			ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TRANSACTION),
			MembershipID:  m.ID,
			Type:          types.TransactionTypeEarn,
			Points:        100,
			BalanceAfter:  int64(100 * (i + 1)),
			Description:   "stay",
			PerformedBy:   types.DefaultUserID,
			ReferenceType: types.TransactionReferenceTypeManual,
			ExpiresAt:     &expiresAt,
			CreatedAt:     asOf,
		}
		s.Require().NoError(s.memberships.CreateTransaction(s.ctx, tx))
	}

	var seen []string
	var after *membership.CreditCursor
	for {
		batch, err := s.memberships.ListExpiredCredits(s.ctx, asOf, after, 2)
		s.Require().NoError(err)
		for _, tx := range batch {
			if tx.MembershipID == m.ID {
				seen = append(seen, tx.ID)
			}
		}
		if len(batch) < 2 {
			break
		}
		after = membership.CursorOf(batch[len(batch)-1])
	}

	s.Len(seen, 3)
	s.Len(lo.Uniq(seen), 3)
}
