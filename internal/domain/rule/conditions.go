package rule

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Conditions are AND-combined. Unset conditions always hold.
type Conditions struct {
	MinBookingAmount  *decimal.Decimal `json:"min_booking_amount,omitempty"`
	MinFeedbackRating *int             `json:"min_feedback_rating,omitempty"`
	TierRestrictions  []types.Tier     `json:"tier_restrictions,omitempty"`
	StartDate         *time.Time       `json:"start_date,omitempty"`
	EndDate           *time.Time       `json:"end_date,omitempty"`
}

const (
	ConditionMinBookingAmount  = "min_booking_amount"
	ConditionMinFeedbackRating = "min_feedback_rating"
	ConditionTierRestrictions  = "tier_restrictions"
	ConditionDateRange         = "date_range"
)

// EvaluationInput is what conditions are checked against
type EvaluationInput struct {
	Trigger        types.RuleTrigger
	Tier           types.Tier
	BookingAmount  *decimal.Decimal
	FeedbackRating *int
	Now            time.Time
}

// ConditionCheck is the outcome of a single condition
type ConditionCheck struct {
	Condition string `json:"condition"`
	Met       bool   `json:"met"`
	Reason    string `json:"reason,omitempty"`
}

// Evaluation is the outcome of all conditions of a rule
type Evaluation struct {
	Met    bool             `json:"met"`
	Checks []ConditionCheck `json:"checks"`
}

// Reason joins the reasons of the failed checks
func (e Evaluation) Reason() string {
	failed := lo.Filter(e.Checks, func(c ConditionCheck, _ int) bool { return !c.Met })
	reasons := lo.Map(failed, func(c ConditionCheck, _ int) string { return c.Reason })
	return strings.Join(reasons, "; ")
}

func (c Conditions) Validate() error {
	if c.MinBookingAmount != nil && c.MinBookingAmount.IsNegative() {
		return ierr.NewError("min_booking_amount must not be negative").
			WithHint("Minimum booking amount must be zero or more").
			Mark(ierr.ErrValidation)
	}
	if c.MinFeedbackRating != nil && (*c.MinFeedbackRating < 1 || *c.MinFeedbackRating > 5) {
		return ierr.NewError("min_feedback_rating must be between 1 and 5").
			WithHint("Minimum feedback rating must be between 1 and 5").
			Mark(ierr.ErrValidation)
	}
	for _, t := range c.TierRestrictions {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	if c.StartDate != nil && c.EndDate != nil && c.EndDate.Before(*c.StartDate) {
		return ierr.NewError("end_date must be after start_date").
			WithHint("Rule end date must be after its start date").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Evaluate checks every condition against in. Booking amount only applies to
// booking triggers and feedback rating only to feedback triggers.
func (c Conditions) Evaluate(in EvaluationInput) Evaluation {
	checks := make([]ConditionCheck, 0, 4)

	if c.MinBookingAmount != nil && in.Trigger.IsBookingRelated() {
		check := ConditionCheck{Condition: ConditionMinBookingAmount, Met: true}
		switch {
		case in.BookingAmount == nil:
			check.Met = false
			check.Reason = "booking amount missing from event"
		case in.BookingAmount.LessThan(*c.MinBookingAmount):
			check.Met = false
			check.Reason = fmt.Sprintf("booking amount %s is below minimum %s",
				in.BookingAmount.String(), c.MinBookingAmount.String())
		}
		checks = append(checks, check)
	}

	if c.MinFeedbackRating != nil && in.Trigger.IsFeedbackRelated() {
		check := ConditionCheck{Condition: ConditionMinFeedbackRating, Met: true}
		switch {
		case in.FeedbackRating == nil:
			check.Met = false
			check.Reason = "feedback rating missing from event"
		case *in.FeedbackRating < *c.MinFeedbackRating:
			check.Met = false
			check.Reason = fmt.Sprintf("feedback rating %d is below minimum %d",
				*in.FeedbackRating, *c.MinFeedbackRating)
		}
		checks = append(checks, check)
	}

	if len(c.TierRestrictions) > 0 {
		check := ConditionCheck{Condition: ConditionTierRestrictions, Met: true}
		if !lo.Contains(c.TierRestrictions, in.Tier) {
			check.Met = false
			check.Reason = fmt.Sprintf("tier %s is not in %v", in.Tier, c.TierRestrictions)
		}
		checks = append(checks, check)
	}

	if c.StartDate != nil || c.EndDate != nil {
		window := types.TimeRangeFilter{StartTime: c.StartDate, EndTime: c.EndDate}
		check := ConditionCheck{Condition: ConditionDateRange, Met: window.Contains(in.Now)}
		if !check.Met {
			check.Reason = "rule is outside its active date range"
		}
		checks = append(checks, check)
	}

	return Evaluation{
		Met:    lo.EveryBy(checks, func(c ConditionCheck) bool { return c.Met }),
		Checks: checks,
	}
}

// Scan implements the sql.Scanner interface for Conditions
func (c *Conditions) Scan(value interface{}) error {
	if value == nil {
		*c = Conditions{}
		return nil
	}

	bytes, err := types.JSONBytes(value)
	if err != nil {
		return err
	}

	var result Conditions
	err = json.Unmarshal(bytes, &result)
	*c = result
	return err
}

// Value implements the driver.Valuer interface for Conditions
func (c Conditions) Value() (driver.Value, error) {
	bytes, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}
