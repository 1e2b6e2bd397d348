package service

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/innkeep/loyalty/internal/api/dto"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/testutil"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/suite"
)

type RewardServiceSuite struct {
	testutil.BaseServiceTestSuite
	service RewardService
}

func TestRewardService(t *testing.T) {
	suite.Run(t, new(RewardServiceSuite))
}

func (s *RewardServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewRewardService(newTestServiceParams(&s.BaseServiceTestSuite))
}

func (s *RewardServiceSuite) createReward(req dto.CreateRewardRequest) *dto.RewardResponse {
	if req.Name == "" {
		req.Name = "Late checkout"
	}
	rw, err := s.service.CreateReward(s.GetContext(), &req)
	s.Require().NoError(err)
	return rw
}

func (s *RewardServiceSuite) redeem(rewardID, guestID string, key *string) (*dto.RedeemRewardResponse, error) {
	return s.service.Redeem(s.GetContext(), rewardID, &dto.RedeemRewardRequest{
		GuestID:        guestID,
		IdempotencyKey: key,
	})
}

func (s *RewardServiceSuite) TestRedeem() {
	m := enrollWithPoints(&s.BaseServiceTestSuite, "guest-1", 2100)
	rw := s.createReward(dto.CreateRewardRequest{
		PointsCost:     500,
		StockAvailable: lo.ToPtr(3),
		ValidityDays:   30,
	})

	resp, err := s.redeem(rw.ID, "guest-1", nil)
	s.Require().NoError(err)
	s.Equal(int64(1600), resp.Balance)
	// the redemption pushed the balance below the gold threshold
	s.Equal(types.TierSilver, resp.Tier)
	s.Equal(2, lo.FromPtr(resp.RemainingStock))
	s.Equal(m.ID, resp.Redemption.MembershipID)
	s.Equal(int64(500), resp.Redemption.PointsSpent)
	s.NotEmpty(resp.Redemption.Code)
	s.NotEmpty(resp.Redemption.TransactionID)
	s.Require().NotNil(resp.Redemption.ExpiresAt)
	s.WithinDuration(resp.Redemption.CreatedAt.AddDate(0, 0, 30), *resp.Redemption.ExpiresAt, 0)

	txs, err := s.GetStores().MembershipRepo.ListTransactions(s.GetContext(), &types.TransactionFilter{
		QueryFilter:  types.NewNoLimitQueryFilter(),
		MembershipID: lo.ToPtr(m.ID),
		Types:        []types.TransactionType{types.TransactionTypeRedeem},
	})
	s.NoError(err)
	s.Require().Len(txs, 1)
	s.Equal(int64(-500), txs[0].Points)
	s.Equal(resp.Redemption.ID, txs[0].ReferenceID)
}

func (s *RewardServiceSuite) TestRedeemRejections() {
	enrollWithPoints(&s.BaseServiceTestSuite, "guest-poor", 400)
	enrollWithPoints(&s.BaseServiceTestSuite, "guest-rich", 10000)

	testCases := []struct {
		name     string
		guestID  string
		reward   dto.CreateRewardRequest
		setup    func(rewardID string)
		expected error
	}{
		{
			name:     "insufficient_balance",
			guestID:  "guest-poor",
			reward:   dto.CreateRewardRequest{PointsCost: 500},
			expected: ierr.ErrInsufficientBalance,
		},
		{
			name:     "tier_not_eligible",
			guestID:  "guest-poor",
			reward:   dto.CreateRewardRequest{PointsCost: 100, MinTierRequired: lo.ToPtr(types.TierGold)},
			expected: ierr.ErrTierNotEligible,
		},
		{
			name:     "inactive_reward",
			guestID:  "guest-rich",
			reward:   dto.CreateRewardRequest{PointsCost: 100, RewardStatus: lo.ToPtr(types.RewardStatusInactive)},
			expected: ierr.ErrRewardInactive,
		},
		{
			name:     "out_of_stock",
			guestID:  "guest-rich",
			reward:   dto.CreateRewardRequest{PointsCost: 100, StockAvailable: lo.ToPtr(0)},
			expected: ierr.ErrOutOfStock,
		},
		{
			name:    "redemption_limit",
			guestID: "guest-rich",
			reward:  dto.CreateRewardRequest{PointsCost: 100, MaxRedemptionsPerGuest: lo.ToPtr(1)},
			setup: func(rewardID string) {
				_, err := s.redeem(rewardID, "guest-rich", nil)
				s.Require().NoError(err)
			},
			expected: ierr.ErrRedemptionLimitReached,
		},
		{
			name:    "retired_reward",
			guestID: "guest-rich",
			reward:  dto.CreateRewardRequest{PointsCost: 100},
			setup: func(rewardID string) {
				s.Require().NoError(s.service.DeleteReward(s.GetContext(), rewardID))
			},
			expected: ierr.ErrRewardInactive,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			rw := s.createReward(tc.reward)
			if tc.setup != nil {
				tc.setup(rw.ID)
			}

			before, err := s.GetStores().MembershipRepo.GetByGuestID(s.GetContext(), tc.guestID)
			s.Require().NoError(err)

			_, err = s.redeem(rw.ID, tc.guestID, nil)
			s.Error(err)
			s.True(ierr.Is(err, tc.expected), "unexpected error: %v", err)

			after, err := s.GetStores().MembershipRepo.GetByGuestID(s.GetContext(), tc.guestID)
			s.Require().NoError(err)
			s.Equal(before.Points, after.Points)
		})
	}
}

func (s *RewardServiceSuite) TestRedeemUnknownGuest() {
	rw := s.createReward(dto.CreateRewardRequest{PointsCost: 100})

	_, err := s.redeem(rw.ID, "nobody", nil)
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *RewardServiceSuite) TestRedeemReplay() {
	enrollWithPoints(&s.BaseServiceTestSuite, "guest-replay", 1000)
	rw := s.createReward(dto.CreateRewardRequest{PointsCost: 300, StockAvailable: lo.ToPtr(5)})

	first, err := s.redeem(rw.ID, "guest-replay", keyPtr("order-7"))
	s.Require().NoError(err)

	second, err := s.redeem(rw.ID, "guest-replay", keyPtr("order-7"))
	s.Require().NoError(err)
	s.True(second.Replayed)
	s.Equal(first.Redemption.ID, second.Redemption.ID)
	s.Equal(int64(700), second.Balance)

	got, err := s.service.GetReward(s.GetContext(), rw.ID)
	s.NoError(err)
	s.Equal(4, lo.FromPtr(got.StockAvailable))
}

func (s *RewardServiceSuite) TestRedeemKeyOfAnotherRedemption() {
	enrollWithPoints(&s.BaseServiceTestSuite, "guest-alice", 1000)
	enrollWithPoints(&s.BaseServiceTestSuite, "guest-bob", 1000)
	spa := s.createReward(dto.CreateRewardRequest{PointsCost: 300})
	drink := s.createReward(dto.CreateRewardRequest{Name: "Welcome drink", PointsCost: 100})

	_, err := s.redeem(spa.ID, "guest-alice", keyPtr("k1"))
	s.Require().NoError(err)

	testCases := []struct {
		name     string
		rewardID string
		guestID  string
	}{
		{name: "other_guest", rewardID: spa.ID, guestID: "guest-bob"},
		{name: "other_reward", rewardID: drink.ID, guestID: "guest-alice"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			resp, err := s.redeem(tc.rewardID, tc.guestID, keyPtr("k1"))
			s.Nil(resp)
			s.Error(err)
			s.True(ierr.IsAlreadyExists(err))
		})
	}

	bob, err := s.GetStores().MembershipRepo.GetByGuestID(s.GetContext(), "guest-bob")
	s.Require().NoError(err)
	s.Equal(int64(1000), bob.Points)

	alice, err := s.GetStores().MembershipRepo.GetByGuestID(s.GetContext(), "guest-alice")
	s.Require().NoError(err)
	s.Equal(int64(700), alice.Points)
}

func (s *RewardServiceSuite) TestConcurrentRedemptionsRespectStock() {
	const guests = 10
	for i := 0; i < guests; i++ {
		enrollWithPoints(&s.BaseServiceTestSuite, fmt.Sprintf("guest-%d", i), 1000)
	}
	rw := s.createReward(dto.CreateRewardRequest{PointsCost: 200, StockAvailable: lo.ToPtr(3)})

	var succeeded, outOfStock atomic.Int32
	var wg conc.WaitGroup
	for i := 0; i < guests; i++ {
		guestID := fmt.Sprintf("guest-%d", i)
		wg.Go(func() {
			_, err := s.redeem(rw.ID, guestID, nil)
			switch {
			case err == nil:
				succeeded.Add(1)
			case ierr.Is(err, ierr.ErrOutOfStock):
				outOfStock.Add(1)
			}
		})
	}
	wg.Wait()

	s.Equal(int32(3), succeeded.Load())
	s.Equal(int32(guests-3), outOfStock.Load())

	got, err := s.service.GetReward(s.GetContext(), rw.ID)
	s.NoError(err)
	s.Equal(0, lo.FromPtr(got.StockAvailable))

	redemptions, err := s.service.ListRedemptions(s.GetContext(), &types.RedemptionFilter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		RewardID:    lo.ToPtr(rw.ID),
	})
	s.NoError(err)
	s.Len(redemptions.Items, 3)
}

func (s *RewardServiceSuite) TestConcurrentRedemptionsRespectBalance() {
	enrollWithPoints(&s.BaseServiceTestSuite, "guest-race", 600)
	rw := s.createReward(dto.CreateRewardRequest{PointsCost: 500})

	var succeeded, insufficient atomic.Int32
	var wg conc.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Go(func() {
			_, err := s.redeem(rw.ID, "guest-race", nil)
			switch {
			case err == nil:
				succeeded.Add(1)
			case ierr.Is(err, ierr.ErrInsufficientBalance):
				insufficient.Add(1)
			}
		})
	}
	wg.Wait()

	s.Equal(int32(1), succeeded.Load())
	s.Equal(int32(4), insufficient.Load())

	m, err := s.GetStores().MembershipRepo.GetByGuestID(s.GetContext(), "guest-race")
	s.NoError(err)
	s.Equal(int64(100), m.Points)
}

func (s *RewardServiceSuite) TestUpdateReward() {
	rw := s.createReward(dto.CreateRewardRequest{PointsCost: 100})

	updated, err := s.service.UpdateReward(s.GetContext(), rw.ID, &dto.UpdateRewardRequest{
		PointsCost:     lo.ToPtr(int64(250)),
		StockAvailable: lo.ToPtr(10),
	})
	s.NoError(err)
	s.Equal(int64(250), updated.PointsCost)
	s.Equal(10, lo.FromPtr(updated.StockAvailable))

	_, err = s.service.UpdateReward(s.GetContext(), "rwd_missing", &dto.UpdateRewardRequest{Name: lo.ToPtr("x")})
	s.True(ierr.IsNotFound(err))
}

func (s *RewardServiceSuite) TestCreateRewardValidation() {
	_, err := s.service.CreateReward(s.GetContext(), &dto.CreateRewardRequest{Name: "Spa"})
	s.Error(err)
	s.True(ierr.IsValidation(err))

	_, err = s.service.CreateReward(s.GetContext(), &dto.CreateRewardRequest{
		Name:            "Suite",
		PointsCost:      100,
		MinTierRequired: lo.ToPtr(types.Tier("diamond")),
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}
