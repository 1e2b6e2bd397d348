package service

import (
	"testing"

	"github.com/innkeep/loyalty/internal/api/dto"
	"github.com/innkeep/loyalty/internal/domain/rule"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/testutil"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type MembershipServiceSuite struct {
	testutil.BaseServiceTestSuite
	service MembershipService
}

func TestMembershipService(t *testing.T) {
	suite.Run(t, new(MembershipServiceSuite))
}

func (s *MembershipServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewMembershipService(newTestServiceParams(&s.BaseServiceTestSuite))
}

func (s *MembershipServiceSuite) TestEnroll() {
	m, err := s.service.Enroll(s.GetContext(), &dto.EnrollMembershipRequest{
		GuestID:  "guest-1",
		Metadata: types.Metadata{"source": "front_desk"},
	})
	s.Require().NoError(err)
	s.NotEmpty(m.ID)
	s.Equal(types.TierSilver, m.Tier)
	s.Equal(int64(0), m.Points)
	s.Equal(types.MembershipStatusActive, m.MembershipStatus)
	s.Equal("test-user", m.CreatedBy)

	_, err = s.service.Enroll(s.GetContext(), &dto.EnrollMembershipRequest{GuestID: "guest-1"})
	s.Error(err)
	s.True(ierr.IsAlreadyExists(err))

	_, err = s.service.Enroll(s.GetContext(), &dto.EnrollMembershipRequest{})
	s.True(ierr.IsValidation(err))

	byGuest, err := s.service.GetByGuestID(s.GetContext(), "guest-1")
	s.NoError(err)
	s.Equal(m.ID, byGuest.ID)
}

func (s *MembershipServiceSuite) TestList() {
	for _, id := range []string{"guest-a", "guest-b", "guest-c"} {
		enrollWithPoints(&s.BaseServiceTestSuite, id, 0)
	}
	enrollWithPoints(&s.BaseServiceTestSuite, "guest-gold", 2500)

	all, err := s.service.List(s.GetContext(), nil)
	s.NoError(err)
	s.Equal(4, all.Pagination.Total)

	gold, err := s.service.List(s.GetContext(), &types.MembershipFilter{
		QueryFilter: types.NewDefaultQueryFilter(),
		Tier:        lo.ToPtr(types.TierGold),
	})
	s.NoError(err)
	s.Require().Len(gold.Items, 1)
	s.Equal("guest-gold", gold.Items[0].GuestID)
}

func (s *MembershipServiceSuite) TestAdjustPoints() {
	m := enrollWithPoints(&s.BaseServiceTestSuite, "guest-adjust", 100)

	resp, err := s.service.AdjustPoints(s.GetContext(), m.ID, &dto.AdjustPointsRequest{
		Points:      -40,
		Description: "goodwill correction",
	})
	s.Require().NoError(err)
	s.Equal(int64(60), resp.Balance)
	s.Equal(types.TransactionTypeAdjustment, resp.Transaction.Type)
	s.Equal(types.TransactionReferenceTypeManual, resp.Transaction.ReferenceType)
	s.Equal("test-user", resp.Transaction.PerformedBy)

	_, err = s.service.AdjustPoints(s.GetContext(), m.ID, &dto.AdjustPointsRequest{Points: 0, Description: "noop"})
	s.True(ierr.IsValidation(err))
}

func (s *MembershipServiceSuite) TestUpdateStatus() {
	m := enrollWithPoints(&s.BaseServiceTestSuite, "guest-status", 500)

	resp, err := s.service.UpdateStatus(s.GetContext(), m.ID, &dto.UpdateMembershipStatusRequest{
		MembershipStatus: types.MembershipStatusInactive,
	})
	s.Require().NoError(err)
	s.Equal(types.MembershipStatusInactive, resp.MembershipStatus)
	// points survive deactivation
	s.Equal(int64(500), resp.Points)

	_, err = s.service.UpdateStatus(s.GetContext(), m.ID, &dto.UpdateMembershipStatusRequest{
		MembershipStatus: types.MembershipStatus("frozen"),
	})
	s.True(ierr.IsValidation(err))
}

func (s *MembershipServiceSuite) TestDeleteCascades() {
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	m := enrollWithPoints(&s.BaseServiceTestSuite, "guest-delete", 1000)

	rw, err := NewRewardService(params).CreateReward(s.GetContext(), &dto.CreateRewardRequest{Name: "Drink", PointsCost: 100})
	s.Require().NoError(err)
	_, err = NewRewardService(params).Redeem(s.GetContext(), rw.ID, &dto.RedeemRewardRequest{GuestID: "guest-delete"})
	s.Require().NoError(err)

	_, err = NewRuleService(params).CreateRule(s.GetContext(), &dto.CreateRuleRequest{
		Name:    "Stay",
		Trigger: types.RuleTriggerBookingCompleted,
		Action:  rule.NewRuleAction(rule.AwardPoints{Points: 10}),
	})
	s.Require().NoError(err)
	_, err = NewRuleService(params).ProcessEvent(s.GetContext(), bookingEvent("evt-del", "guest-delete", 100))
	s.Require().NoError(err)

	s.Require().NoError(s.service.Delete(s.GetContext(), m.ID))

	_, err = s.service.Get(s.GetContext(), m.ID)
	s.True(ierr.IsNotFound(err))

	txs, err := params.MembershipRepo.CountTransactions(s.GetContext(), &types.TransactionFilter{
		QueryFilter:  types.NewNoLimitQueryFilter(),
		MembershipID: lo.ToPtr(m.ID),
	})
	s.NoError(err)
	s.Zero(txs)

	redemptions, err := params.RewardRepo.CountRedemptions(s.GetContext(), &types.RedemptionFilter{
		QueryFilter:  types.NewNoLimitQueryFilter(),
		MembershipID: lo.ToPtr(m.ID),
	})
	s.NoError(err)
	s.Zero(redemptions)

	// the guest can enroll again
	_, err = s.service.Enroll(s.GetContext(), &dto.EnrollMembershipRequest{GuestID: "guest-delete"})
	s.NoError(err)

	s.True(ierr.IsNotFound(s.service.Delete(s.GetContext(), m.ID)))
}
