package types

import (
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/samber/lo"
)

// RuleTrigger is the name of the domain event a rule reacts to
type RuleTrigger string

const (
	RuleTriggerBookingCompleted  RuleTrigger = "booking_completed"
	RuleTriggerFirstBooking      RuleTrigger = "first_booking"
	RuleTriggerFeedbackSubmitted RuleTrigger = "feedback_submitted"
	RuleTriggerTierUpgraded      RuleTrigger = "tier_upgraded"
	RuleTriggerBirthday          RuleTrigger = "birthday"
	RuleTriggerReferral          RuleTrigger = "referral"
)

func (t RuleTrigger) Validate() error {
	allowedValues := []string{
		string(RuleTriggerBookingCompleted),
		string(RuleTriggerFirstBooking),
		string(RuleTriggerFeedbackSubmitted),
		string(RuleTriggerTierUpgraded),
		string(RuleTriggerBirthday),
		string(RuleTriggerReferral),
	}
	if !lo.Contains(allowedValues, string(t)) {
		return ierr.NewError("invalid rule trigger").
			WithHint("Invalid rule trigger").
			WithReportableDetails(map[string]any{
				"allowed": allowedValues,
				"trigger": t,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsBookingRelated reports whether events for this trigger carry a booking amount
func (t RuleTrigger) IsBookingRelated() bool {
	return t == RuleTriggerBookingCompleted || t == RuleTriggerFirstBooking
}

// IsFeedbackRelated reports whether events for this trigger carry a feedback rating
func (t RuleTrigger) IsFeedbackRelated() bool {
	return t == RuleTriggerFeedbackSubmitted
}

// RuleActionType is the tag of a rule action
type RuleActionType string

const (
	RuleActionTypeAwardPoints      RuleActionType = "award_points"
	RuleActionTypeMultiplyPoints   RuleActionType = "multiply_points"
	RuleActionTypeTierUpgrade      RuleActionType = "tier_upgrade"
	RuleActionTypeSendNotification RuleActionType = "send_notification"
)

func (t RuleActionType) Validate() error {
	allowedValues := []string{
		string(RuleActionTypeAwardPoints),
		string(RuleActionTypeMultiplyPoints),
		string(RuleActionTypeTierUpgrade),
		string(RuleActionTypeSendNotification),
	}
	if !lo.Contains(allowedValues, string(t)) {
		return ierr.NewError("invalid rule action type").
			WithHint("Invalid rule action type").
			WithReportableDetails(map[string]any{
				"allowed": allowedValues,
				"type":    t,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ExecutionStatus is the outcome of a single rule evaluation
type ExecutionStatus string

const (
	ExecutionStatusSuccess ExecutionStatus = "success"
	ExecutionStatusFailed  ExecutionStatus = "failed"
	ExecutionStatusSkipped ExecutionStatus = "skipped"
)

// RuleFilter represents the filter options for listing rules
type RuleFilter struct {
	*QueryFilter
	RuleIDs  []string     `json:"rule_ids,omitempty" form:"rule_ids"`
	Trigger  *RuleTrigger `json:"trigger,omitempty" form:"trigger"`
	IsActive *bool        `json:"is_active,omitempty" form:"is_active"`
}

func NewRuleFilter() *RuleFilter {
	return &RuleFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

func NewNoLimitRuleFilter() *RuleFilter {
	return &RuleFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

func (f RuleFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}
	if f.Trigger != nil {
		if err := f.Trigger.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GetLimit implements BaseFilter interface
func (f *RuleFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

// GetOffset implements BaseFilter interface
func (f *RuleFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return 0
	}
	return f.QueryFilter.GetOffset()
}

func (f *RuleFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return false
	}
	return f.QueryFilter.IsUnlimited()
}

// RuleExecutionFilter represents the filter options for rule execution records
type RuleExecutionFilter struct {
	*QueryFilter
	*TimeRangeFilter
	RuleID          *string          `json:"rule_id,omitempty" form:"rule_id"`
	GuestID         *string          `json:"guest_id,omitempty" form:"guest_id"`
	MembershipID    *string          `json:"membership_id,omitempty" form:"membership_id"`
	EventID         *string          `json:"event_id,omitempty" form:"event_id"`
	ExecutionStatus *ExecutionStatus `json:"execution_status,omitempty" form:"execution_status"`
}

func NewRuleExecutionFilter() *RuleExecutionFilter {
	return &RuleExecutionFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

func (f RuleExecutionFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}
	if f.TimeRangeFilter != nil {
		if err := f.TimeRangeFilter.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GetLimit implements BaseFilter interface
func (f *RuleExecutionFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

// GetOffset implements BaseFilter interface
func (f *RuleExecutionFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return 0
	}
	return f.QueryFilter.GetOffset()
}

func (f *RuleExecutionFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return false
	}
	return f.QueryFilter.IsUnlimited()
}
