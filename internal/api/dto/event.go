package dto

import (
	"time"

	"github.com/innkeep/loyalty/internal/domain/rule"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/innkeep/loyalty/internal/validator"
)

// LoyaltyEventRequest is a domain event reported by a collaborator
type LoyaltyEventRequest struct {
	EventID    string            `json:"event_id,omitempty" validate:"omitempty,max=255"`
	Trigger    types.RuleTrigger `json:"trigger" validate:"required"`
	GuestID    string            `json:"guest_id,omitempty"`
	LoyaltyID  string            `json:"loyalty_id,omitempty"`
	Payload    rule.EventPayload `json:"payload"`
	OccurredAt *time.Time        `json:"occurred_at,omitempty"`
}

func (r *LoyaltyEventRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.ToEvent().Validate()
}

func (r *LoyaltyEventRequest) ToEvent() *rule.Event {
	occurredAt := time.Now().UTC()
	if r.OccurredAt != nil {
		occurredAt = r.OccurredAt.UTC()
	}
	return &rule.Event{
		EventID:    r.EventID,
		Trigger:    r.Trigger,
		GuestID:    r.GuestID,
		LoyaltyID:  r.LoyaltyID,
		Payload:    r.Payload,
		OccurredAt: occurredAt,
	}
}

// ProcessEventResponse lists one execution record per candidate rule, in priority order
type ProcessEventResponse struct {
	EventID       string                   `json:"event_id"`
	MembershipID  string                   `json:"membership_id"`
	Executions    []*RuleExecutionResponse `json:"executions"`
	PointsAwarded int64                    `json:"points_awarded"`
	Balance       int64                    `json:"balance"`
	Tier          types.Tier               `json:"tier"`
}

type PublishEventResponse struct {
	EventID string `json:"event_id"`
}
