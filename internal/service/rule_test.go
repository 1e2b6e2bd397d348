package service

import (
	"testing"
	"time"

	"github.com/innkeep/loyalty/internal/api/dto"
	"github.com/innkeep/loyalty/internal/domain/rule"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/testutil"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type RuleServiceSuite struct {
	testutil.BaseServiceTestSuite
	service RuleService
}

func TestRuleService(t *testing.T) {
	suite.Run(t, new(RuleServiceSuite))
}

func (s *RuleServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewRuleService(newTestServiceParams(&s.BaseServiceTestSuite))
}

func (s *RuleServiceSuite) createRule(req dto.CreateRuleRequest) *dto.RuleResponse {
	if req.Name == "" {
		req.Name = "Stay bonus"
	}
	if req.Trigger == "" {
		req.Trigger = types.RuleTriggerBookingCompleted
	}
	rl, err := s.service.CreateRule(s.GetContext(), &req)
	s.Require().NoError(err)
	return rl
}

func bookingEvent(eventID, guestID string, amount int64) *rule.Event {
	return &rule.Event{
		EventID: eventID,
		Trigger: types.RuleTriggerBookingCompleted,
		GuestID: guestID,
		Payload: rule.EventPayload{
			BookingAmount: lo.ToPtr(decimal.NewFromInt(amount)),
		},
	}
}

func (s *RuleServiceSuite) balance(guestID string) int64 {
	m, err := s.GetStores().MembershipRepo.GetByGuestID(s.GetContext(), guestID)
	s.Require().NoError(err)
	return m.Points
}

func (s *RuleServiceSuite) TestBookingAmountCondition() {
	enrollWithPoints(&s.BaseServiceTestSuite, "guest-1", 0)
	rl := s.createRule(dto.CreateRuleRequest{
		Conditions: rule.Conditions{MinBookingAmount: lo.ToPtr(decimal.NewFromInt(200))},
		Action:     rule.NewRuleAction(rule.AwardPoints{Points: 100}),
	})

	resp, err := s.service.ProcessEvent(s.GetContext(), bookingEvent("evt-low", "guest-1", 150))
	s.Require().NoError(err)
	s.Require().Len(resp.Executions, 1)
	s.Equal(types.ExecutionStatusSkipped, resp.Executions[0].ExecutionStatus)
	s.Contains(resp.Executions[0].Reason, "below minimum")
	s.Equal(int64(0), resp.PointsAwarded)
	s.Equal(int64(0), s.balance("guest-1"))

	resp, err = s.service.ProcessEvent(s.GetContext(), bookingEvent("evt-high", "guest-1", 250))
	s.Require().NoError(err)
	s.Require().Len(resp.Executions, 1)
	exec := resp.Executions[0]
	s.Equal(types.ExecutionStatusSuccess, exec.ExecutionStatus)
	s.Equal(rl.ID, exec.RuleID)
	s.Equal(int64(100), exec.PointsAwarded)
	s.Require().NotNil(exec.TransactionID)
	s.Equal(int64(100), resp.Balance)

	txs, err := s.GetStores().MembershipRepo.ListTransactions(s.GetContext(), &types.TransactionFilter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		GuestID:     lo.ToPtr("guest-1"),
	})
	s.NoError(err)
	s.Require().Len(txs, 1)
	s.Equal(types.TransactionTypeEarn, txs[0].Type)
	s.Require().NotNil(txs[0].ExpiresAt)
	s.WithinDuration(time.Now().AddDate(0, 0, s.GetConfig().Loyalty.DefaultExpiryDays), *txs[0].ExpiresAt, time.Minute)

	stored, err := s.service.GetRule(s.GetContext(), rl.ID)
	s.NoError(err)
	s.Equal(int64(1), stored.ExecutionCount)
	s.NotNil(stored.LastExecutedAt)
}

func (s *RuleServiceSuite) TestExecutionCap() {
	enrollWithPoints(&s.BaseServiceTestSuite, "guest-cap", 0)
	s.createRule(dto.CreateRuleRequest{
		Trigger:              types.RuleTriggerFirstBooking,
		Action:               rule.NewRuleAction(rule.AwardPoints{Points: 500}),
		MaxExecutionsPerUser: lo.ToPtr(1),
	})

	for _, id := range []string{"evt-1", "evt-2"} {
		_, err := s.service.ProcessEvent(s.GetContext(), &rule.Event{
			EventID: id,
			Trigger: types.RuleTriggerFirstBooking,
			GuestID: "guest-cap",
		})
		s.Require().NoError(err)
	}

	s.Equal(int64(500), s.balance("guest-cap"))

	skipped, err := s.service.ListExecutions(s.GetContext(), &types.RuleExecutionFilter{
		QueryFilter:     types.NewDefaultQueryFilter(),
		GuestID:         lo.ToPtr("guest-cap"),
		ExecutionStatus: lo.ToPtr(types.ExecutionStatusSkipped),
	})
	s.NoError(err)
	s.Require().Len(skipped.Items, 1)
	s.Equal(reasonCapReached, skipped.Items[0].Reason)
	s.Equal("evt-2", skipped.Items[0].EventID)
}

func (s *RuleServiceSuite) TestEventReplay() {
	enrollWithPoints(&s.BaseServiceTestSuite, "guest-replay", 0)
	s.createRule(dto.CreateRuleRequest{
		Action: rule.NewRuleAction(rule.AwardPoints{Points: 100}),
	})

	first, err := s.service.ProcessEvent(s.GetContext(), bookingEvent("evt-dup", "guest-replay", 300))
	s.Require().NoError(err)
	s.Equal(int64(100), first.PointsAwarded)

	second, err := s.service.ProcessEvent(s.GetContext(), bookingEvent("evt-dup", "guest-replay", 300))
	s.Require().NoError(err)
	s.Equal(int64(0), second.PointsAwarded)
	s.Require().Len(second.Executions, 1)
	s.Equal(first.Executions[0].ID, second.Executions[0].ID)
	s.Equal(int64(100), second.Balance)

	// without an event id every delivery counts
	_, err = s.service.ProcessEvent(s.GetContext(), bookingEvent("", "guest-replay", 300))
	s.Require().NoError(err)
	s.Equal(int64(200), s.balance("guest-replay"))
}

func (s *RuleServiceSuite) TestMultiplyPoints() {
	enrollWithPoints(&s.BaseServiceTestSuite, "guest-multi", 0)
	s.createRule(dto.CreateRuleRequest{
		Action: rule.NewRuleAction(rule.MultiplyPoints{Multiplier: decimal.RequireFromString("1.5")}),
	})

	event := bookingEvent("evt-multi", "guest-multi", 300)
	event.Payload.BasePoints = lo.ToPtr(int64(301))
	resp, err := s.service.ProcessEvent(s.GetContext(), event)
	s.Require().NoError(err)
	s.Require().Len(resp.Executions, 1)
	s.Equal(types.ExecutionStatusSuccess, resp.Executions[0].ExecutionStatus)
	// 301 * 0.5 rounded down
	s.Equal(int64(150), resp.PointsAwarded)

	bonus, err := s.GetStores().MembershipRepo.ListTransactions(s.GetContext(), &types.TransactionFilter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		GuestID:     lo.ToPtr("guest-multi"),
		Types:       []types.TransactionType{types.TransactionTypeBonus},
	})
	s.NoError(err)
	s.Len(bonus, 1)

	resp, err = s.service.ProcessEvent(s.GetContext(), bookingEvent("evt-nobase", "guest-multi", 300))
	s.Require().NoError(err)
	s.Require().Len(resp.Executions, 1)
	s.Equal(types.ExecutionStatusFailed, resp.Executions[0].ExecutionStatus)
	s.Equal(reasonNoBasePoints, resp.Executions[0].Reason)
	s.Equal(int64(150), resp.Balance)
}

func (s *RuleServiceSuite) TestTierUpgradeAction() {
	m := enrollWithPoints(&s.BaseServiceTestSuite, "guest-vip", 100)
	s.createRule(dto.CreateRuleRequest{
		Trigger: types.RuleTriggerReferral,
		Action:  rule.NewRuleAction(rule.TierUpgrade{TargetTier: types.TierPlatinum}),
	})

	event := &rule.Event{EventID: "evt-ref", Trigger: types.RuleTriggerReferral, LoyaltyID: m.ID}
	resp, err := s.service.ProcessEvent(s.GetContext(), event)
	s.Require().NoError(err)
	s.Equal(types.TierPlatinum, resp.Tier)
	s.Equal(int64(100), resp.Balance)

	stored, err := s.GetStores().MembershipRepo.Get(s.GetContext(), m.ID)
	s.NoError(err)
	s.True(stored.TierOverride)
	s.Len(s.GetPublisher().Events(types.RuleTriggerTierUpgraded), 1)

	// already at the target tier
	event.EventID = "evt-ref-2"
	resp, err = s.service.ProcessEvent(s.GetContext(), event)
	s.Require().NoError(err)
	s.Equal(types.ExecutionStatusSkipped, resp.Executions[0].ExecutionStatus)
	s.Equal(reasonTierNotHigher, resp.Executions[0].Reason)
}

func (s *RuleServiceSuite) TestSendNotification() {
	enrollWithPoints(&s.BaseServiceTestSuite, "guest-birthday", 0)
	rl := s.createRule(dto.CreateRuleRequest{
		Trigger: types.RuleTriggerBirthday,
		Action:  rule.NewRuleAction(rule.SendNotification{Message: "Happy birthday"}),
	})

	_, err := s.service.ProcessEvent(s.GetContext(), &rule.Event{
		EventID: "evt-bday",
		Trigger: types.RuleTriggerBirthday,
		GuestID: "guest-birthday",
	})
	s.Require().NoError(err)

	notifications := s.GetPublisher().Notifications()
	s.Require().Len(notifications, 1)
	s.Equal("Happy birthday", notifications[0].Message)
	s.Equal(rl.ID, notifications[0].RuleID)
	s.Equal("guest-birthday", notifications[0].GuestID)
}

func (s *RuleServiceSuite) TestPriorityOrder() {
	enrollWithPoints(&s.BaseServiceTestSuite, "guest-prio", 0)
	low := s.createRule(dto.CreateRuleRequest{Name: "low", Priority: 1, Action: rule.NewRuleAction(rule.AwardPoints{Points: 10})})
	high := s.createRule(dto.CreateRuleRequest{Name: "high", Priority: 10, Action: rule.NewRuleAction(rule.AwardPoints{Points: 20})})
	s.createRule(dto.CreateRuleRequest{Name: "off", IsActive: lo.ToPtr(false), Action: rule.NewRuleAction(rule.AwardPoints{Points: 1000})})

	resp, err := s.service.ProcessEvent(s.GetContext(), bookingEvent("evt-prio", "guest-prio", 100))
	s.Require().NoError(err)
	s.Require().Len(resp.Executions, 2)
	s.Equal(high.ID, resp.Executions[0].RuleID)
	s.Equal(low.ID, resp.Executions[1].RuleID)
	s.Equal(int64(30), resp.Balance)
}

func (s *RuleServiceSuite) TestEventRejections() {
	enrollWithPoints(&s.BaseServiceTestSuite, "guest-ok", 0)
	suspended := enrollWithPoints(&s.BaseServiceTestSuite, "guest-suspended", 0)
	_, err := NewMembershipService(newTestServiceParams(&s.BaseServiceTestSuite)).UpdateStatus(s.GetContext(), suspended.ID,
		&dto.UpdateMembershipStatusRequest{MembershipStatus: types.MembershipStatusInactive})
	s.Require().NoError(err)

	_, err = s.service.ProcessEvent(s.GetContext(), bookingEvent("e1", "guest-unknown", 100))
	s.True(ierr.IsNotFound(err))

	_, err = s.service.ProcessEvent(s.GetContext(), bookingEvent("e2", "guest-suspended", 100))
	s.True(ierr.Is(err, ierr.ErrMemberInactive))

	_, err = s.service.ProcessEvent(s.GetContext(), &rule.Event{Trigger: "checkout", GuestID: "guest-ok"})
	s.True(ierr.IsValidation(err))

	_, err = s.service.ProcessEvent(s.GetContext(), &rule.Event{
		Trigger:   types.RuleTriggerBookingCompleted,
		GuestID:   "guest-ok",
		LoyaltyID: suspended.ID,
	})
	s.True(ierr.IsValidation(err))
}

func (s *RuleServiceSuite) TestDeleteRuleStopsExecution() {
	enrollWithPoints(&s.BaseServiceTestSuite, "guest-del", 0)
	rl := s.createRule(dto.CreateRuleRequest{Action: rule.NewRuleAction(rule.AwardPoints{Points: 10})})

	s.Require().NoError(s.service.DeleteRule(s.GetContext(), rl.ID))

	resp, err := s.service.ProcessEvent(s.GetContext(), bookingEvent("evt-del", "guest-del", 100))
	s.Require().NoError(err)
	s.Empty(resp.Executions)
}

func (s *RuleServiceSuite) TestDryRun() {
	enrollWithPoints(&s.BaseServiceTestSuite, "guest-dry", 1950)
	rl := s.createRule(dto.CreateRuleRequest{
		Conditions: rule.Conditions{MinBookingAmount: lo.ToPtr(decimal.NewFromInt(200))},
		Action:     rule.NewRuleAction(rule.AwardPoints{Points: 100}),
	})

	resp, err := s.service.TestRule(s.GetContext(), rl.ID, &dto.TestRuleRequest{
		GuestID: "guest-dry",
		Payload: rule.EventPayload{BookingAmount: lo.ToPtr(decimal.NewFromInt(500))},
	})
	s.Require().NoError(err)
	s.True(resp.WouldExecute)
	s.Equal(int64(100), resp.PointsWouldAward)
	s.Require().NotNil(resp.TierWouldBecome)
	s.Equal(types.TierGold, *resp.TierWouldBecome)

	resp, err = s.service.TestRule(s.GetContext(), rl.ID, &dto.TestRuleRequest{
		Payload: rule.EventPayload{BookingAmount: lo.ToPtr(decimal.NewFromInt(50))},
	})
	s.Require().NoError(err)
	s.False(resp.WouldExecute)
	s.False(resp.ConditionsMet)
	s.Equal(int64(0), resp.PointsWouldAward)

	// nothing was booked
	s.Equal(int64(1950), s.balance("guest-dry"))
	execs, err := s.service.ListExecutions(s.GetContext(), nil)
	s.NoError(err)
	s.Empty(execs.Items)
}

func (s *RuleServiceSuite) TestCreateRuleValidation() {
	_, err := s.service.CreateRule(s.GetContext(), &dto.CreateRuleRequest{
		Name:    "missing action",
		Trigger: types.RuleTriggerBookingCompleted,
	})
	s.True(ierr.IsValidation(err))

	_, err = s.service.CreateRule(s.GetContext(), &dto.CreateRuleRequest{
		Name:    "bad award",
		Trigger: types.RuleTriggerBookingCompleted,
		Action:  rule.NewRuleAction(rule.AwardPoints{Points: 0}),
	})
	s.True(ierr.IsValidation(err))
}
