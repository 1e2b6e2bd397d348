package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/innkeep/loyalty/internal/api/dto"
	"github.com/innkeep/loyalty/internal/domain/rule"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/publisher"
	"github.com/innkeep/loyalty/internal/pubsub/memory"
	pubsubRouter "github.com/innkeep/loyalty/internal/pubsub/router"
	"github.com/innkeep/loyalty/internal/testutil"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type EventServiceSuite struct {
	testutil.BaseServiceTestSuite
	service *eventService
}

func TestEventService(t *testing.T) {
	suite.Run(t, new(EventServiceSuite))
}

func (s *EventServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewEventService(newTestServiceParams(&s.BaseServiceTestSuite), nil).(*eventService)

	_, err := NewRuleService(newTestServiceParams(&s.BaseServiceTestSuite)).CreateRule(s.GetContext(), &dto.CreateRuleRequest{
		Name:       "Stay points",
		Trigger:    types.RuleTriggerBookingCompleted,
		Conditions: rule.Conditions{MinBookingAmount: lo.ToPtr(decimal.NewFromInt(100))},
		Action:     rule.NewRuleAction(rule.AwardPoints{Points: 100}),
	})
	s.Require().NoError(err)
}

func (s *EventServiceSuite) message(event *rule.Event) *message.Message {
	body, err := json.Marshal(event)
	s.Require().NoError(err)
	msg := message.NewMessage(event.EventID, body)
	msg.Metadata.Set(publisher.MetadataRequestID, "req-1")
	msg.Metadata.Set(publisher.MetadataUserID, "front-desk")
	return msg
}

func (s *EventServiceSuite) TestPublishEvent() {
	resp, err := s.service.PublishEvent(s.GetContext(), &dto.LoyaltyEventRequest{
		Trigger: types.RuleTriggerBookingCompleted,
		GuestID: "guest-1",
	})
	s.Require().NoError(err)
	s.NotEmpty(resp.EventID)

	published := s.GetPublisher().Events(types.RuleTriggerBookingCompleted)
	s.Require().Len(published, 1)
	s.Equal(resp.EventID, published[0].EventID)
	s.False(published[0].OccurredAt.IsZero())

	_, err = s.service.PublishEvent(s.GetContext(), &dto.LoyaltyEventRequest{Trigger: types.RuleTriggerBookingCompleted})
	s.True(ierr.IsValidation(err))
}

func (s *EventServiceSuite) TestProcessMessage() {
	enrollWithPoints(&s.BaseServiceTestSuite, "guest-msg", 0)

	event := bookingEvent("evt-msg", "guest-msg", 150)
	event.OccurredAt = s.GetNow()
	s.NoError(s.service.processMessage(s.message(event)))
	// redelivery is absorbed by the event id
	s.NoError(s.service.processMessage(s.message(event)))

	m, err := s.GetStores().MembershipRepo.GetByGuestID(s.GetContext(), "guest-msg")
	s.Require().NoError(err)
	s.Equal(int64(100), m.Points)

	txs, err := s.GetStores().MembershipRepo.ListTransactions(s.GetContext(), &types.TransactionFilter{
		QueryFilter:  types.NewNoLimitQueryFilter(),
		MembershipID: lo.ToPtr(m.ID),
	})
	s.Require().NoError(err)
	s.Require().Len(txs, 1)
	s.Equal(types.DefaultUserID, txs[0].PerformedBy)
}

func (s *EventServiceSuite) TestProcessMessageDropsPermanentFailures() {
	s.NoError(s.service.processMessage(message.NewMessage("bad", []byte("{not json"))))
	// unknown guests fail the same way on every delivery
	s.NoError(s.service.processMessage(s.message(bookingEvent("evt-ghost", "guest-ghost", 500))))
}

func (s *EventServiceSuite) TestRouterDelivery() {
	cfg := *s.GetConfig()
	ps := memory.NewPubSub(&cfg, s.GetLogger())
	defer ps.Close()

	params := newTestServiceParams(&s.BaseServiceTestSuite)
	params.Config = &cfg
	params.EventPublisher = publisher.NewEventPublisher(ps, &cfg, s.GetLogger())
	svc := NewEventService(params, ps)

	router, err := pubsubRouter.NewRouter(&cfg, s.GetLogger(), ps)
	s.Require().NoError(err)
	svc.RegisterHandler(router)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = router.Run(ctx)
	}()
	<-router.Running()
	defer router.Close()

	enrollWithPoints(&s.BaseServiceTestSuite, "guest-async", 0)
	_, err = svc.PublishEvent(s.GetContext(), &dto.LoyaltyEventRequest{
		EventID: "evt-async",
		Trigger: types.RuleTriggerBookingCompleted,
		GuestID: "guest-async",
		Payload: rule.EventPayload{BookingAmount: lo.ToPtr(decimal.NewFromInt(250))},
	})
	s.Require().NoError(err)

	s.Eventually(func() bool {
		m, err := s.GetStores().MembershipRepo.GetByGuestID(s.GetContext(), "guest-async")
		return err == nil && m.Points == 100
	}, 5*time.Second, 20*time.Millisecond)
}
