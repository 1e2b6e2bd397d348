package service

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/innkeep/loyalty/internal/api/dto"
	"github.com/innkeep/loyalty/internal/domain/rule"
	"github.com/innkeep/loyalty/internal/publisher"
	"github.com/innkeep/loyalty/internal/pubsub"
	pubsubRouter "github.com/innkeep/loyalty/internal/pubsub/router"
	"github.com/innkeep/loyalty/internal/types"
)

// EventService is the asynchronous entry point of the rule engine. Events are
// put on the events topic and applied by the consumer registered on the router.
type EventService interface {
	// PublishEvent validates the event and queues it for the rule engine
	PublishEvent(ctx context.Context, req *dto.LoyaltyEventRequest) (*dto.PublishEventResponse, error)

	// RegisterHandler subscribes the rule engine to the events topic
	RegisterHandler(router *pubsubRouter.Router)
}

type eventService struct {
	ServiceParams
	pubSub      pubsub.PubSub
	ruleService RuleService
}

func NewEventService(params ServiceParams, pubSub pubsub.PubSub) EventService {
	return &eventService{
		ServiceParams: params,
		pubSub:        pubSub,
		ruleService:   NewRuleService(params),
	}
}

func (s *eventService) PublishEvent(ctx context.Context, req *dto.LoyaltyEventRequest) (*dto.PublishEventResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	event := req.ToEvent()
	if event.EventID == "" {
		event.EventID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EVENT)
	}

	if err := s.EventPublisher.Publish(ctx, event); err != nil {
		return nil, err
	}

	return &dto.PublishEventResponse{EventID: event.EventID}, nil
}

func (s *eventService) RegisterHandler(router *pubsubRouter.Router) {
	if !s.Config.EventBus.Enabled {
		s.Logger.Warnw("event bus disabled, rule engine consumer not registered")
		return
	}

	router.AddNoPublishHandler(
		"loyalty_events_handler",
		s.Config.EventBus.EventsTopic,
		s.pubSub,
		s.processMessage,
	)

	s.Logger.Infow("registered loyalty events handler",
		"topic", s.Config.EventBus.EventsTopic,
		"pubsub", s.Config.EventBus.PubSub,
	)
}

// processMessage returns an error only for failures worth redelivering, every
// other failure is logged and the message acknowledged
func (s *eventService) processMessage(msg *message.Message) error {
	ctx := context.Background()
	if requestID := msg.Metadata.Get(publisher.MetadataRequestID); requestID != "" {
		ctx = types.SetRequestID(ctx, requestID)
	}
	if userID := msg.Metadata.Get(publisher.MetadataUserID); userID != "" {
		ctx = types.SetUserID(ctx, userID)
	}

	var event rule.Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		s.Logger.Errorw("failed to unmarshal loyalty event",
			"error", err,
			"message_uuid", msg.UUID,
		)
		return nil
	}

	s.Logger.Debugw("processing loyalty event from message queue",
		"message_uuid", msg.UUID,
		"event_id", event.EventID,
		"trigger", event.Trigger,
	)

	if _, err := s.ruleService.ProcessEvent(ctx, &event); err != nil {
		if pubsubRouter.ShouldRetry(s.Logger, err) {
			return err
		}
		s.Logger.Warnw("dropping loyalty event",
			"event_id", event.EventID,
			"trigger", event.Trigger,
			"error", err,
		)
	}
	return nil
}
