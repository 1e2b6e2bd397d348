package rule

import (
	"time"

	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/shopspring/decimal"
)

// Event is a domain event emitted by a collaborator (bookings, feedback, ...)
// or by the loyalty service itself
type Event struct {
	EventID    string            `json:"event_id"`
	Trigger    types.RuleTrigger `json:"trigger"`
	GuestID    string            `json:"guest_id"`
	LoyaltyID  string            `json:"loyalty_id,omitempty"`
	Payload    EventPayload      `json:"payload"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// EventPayload holds the trigger specific values of an event
type EventPayload struct {
	BookingAmount   *decimal.Decimal `json:"booking_amount,omitempty"`
	FeedbackRating  *int             `json:"feedback_rating,omitempty"`
	BasePoints      *int64           `json:"base_points,omitempty"`
	ReferredGuestID string           `json:"referred_guest_id,omitempty"`
	Data            map[string]any   `json:"data,omitempty"`
}

func (e *Event) Validate() error {
	if e.Trigger == "" {
		return ierr.NewError("trigger is required").
			WithHint("Event trigger is required").
			Mark(ierr.ErrValidation)
	}
	if err := e.Trigger.Validate(); err != nil {
		return err
	}
	if e.GuestID == "" && e.LoyaltyID == "" {
		return ierr.NewError("guest_id or loyalty_id is required").
			WithHint("Event must identify the guest or the membership").
			Mark(ierr.ErrValidation)
	}
	if e.Payload.BookingAmount != nil && e.Payload.BookingAmount.IsNegative() {
		return ierr.NewError("booking_amount must not be negative").
			WithHint("Booking amount must be zero or more").
			Mark(ierr.ErrValidation)
	}
	if e.Payload.BasePoints != nil && *e.Payload.BasePoints < 0 {
		return ierr.NewError("base_points must not be negative").
			WithHint("Base points must be zero or more").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Input builds the condition input for a member at the given tier
func (e *Event) Input(tier types.Tier, now time.Time) EvaluationInput {
	return EvaluationInput{
		Trigger:        e.Trigger,
		Tier:           tier,
		BookingAmount:  e.Payload.BookingAmount,
		FeedbackRating: e.Payload.FeedbackRating,
		Now:            now,
	}
}
