package dto

import (
	"context"

	"github.com/innkeep/loyalty/internal/domain/rule"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/innkeep/loyalty/internal/validator"
	"github.com/samber/lo"
)

type CreateRuleRequest struct {
	Name                 string            `json:"name" validate:"required,max=255"`
	Description          string            `json:"description" validate:"max=2000"`
	Trigger              types.RuleTrigger `json:"trigger" validate:"required"`
	Conditions           rule.Conditions   `json:"conditions"`
	Action               rule.RuleAction   `json:"action"`
	IsActive             *bool             `json:"is_active,omitempty"`
	Priority             int               `json:"priority"`
	MaxExecutionsPerUser *int              `json:"max_executions_per_user,omitempty" validate:"omitempty,min=1"`
	ExpiryDays           *int              `json:"expiry_days,omitempty" validate:"omitempty,min=1"`
}

func (r *CreateRuleRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.Action.Action == nil {
		return ierr.NewError("action is required").
			WithHint("Rule action is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (r *CreateRuleRequest) ToRule(ctx context.Context) *rule.Rule {
	return &rule.Rule{
		ID:                   types.GenerateUUIDWithPrefix(types.UUID_PREFIX_RULE),
		Name:                 r.Name,
		Description:          r.Description,
		Trigger:              r.Trigger,
		Conditions:           r.Conditions,
		Action:               r.Action,
		IsActive:             lo.FromPtrOr(r.IsActive, true),
		Priority:             r.Priority,
		MaxExecutionsPerUser: r.MaxExecutionsPerUser,
		ExpiryDays:           r.ExpiryDays,
		BaseModel:            types.GetDefaultBaseModel(ctx),
	}
}

// UpdateRuleRequest changes only the fields that are set
type UpdateRuleRequest struct {
	Name                 *string            `json:"name,omitempty" validate:"omitempty,max=255"`
	Description          *string            `json:"description,omitempty" validate:"omitempty,max=2000"`
	Trigger              *types.RuleTrigger `json:"trigger,omitempty"`
	Conditions           *rule.Conditions   `json:"conditions,omitempty"`
	Action               *rule.RuleAction   `json:"action,omitempty"`
	IsActive             *bool              `json:"is_active,omitempty"`
	Priority             *int               `json:"priority,omitempty"`
	MaxExecutionsPerUser *int               `json:"max_executions_per_user,omitempty" validate:"omitempty,min=1"`
	ExpiryDays           *int               `json:"expiry_days,omitempty" validate:"omitempty,min=1"`
}

func (r *UpdateRuleRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// Apply copies the set fields onto rl, the result is validated by the caller
func (r *UpdateRuleRequest) Apply(rl *rule.Rule) {
	if r.Name != nil {
		rl.Name = *r.Name
	}
	if r.Description != nil {
		rl.Description = *r.Description
	}
	if r.Trigger != nil {
		rl.Trigger = *r.Trigger
	}
	if r.Conditions != nil {
		rl.Conditions = *r.Conditions
	}
	if r.Action != nil {
		rl.Action = *r.Action
	}
	if r.IsActive != nil {
		rl.IsActive = *r.IsActive
	}
	if r.Priority != nil {
		rl.Priority = *r.Priority
	}
	if r.MaxExecutionsPerUser != nil {
		rl.MaxExecutionsPerUser = r.MaxExecutionsPerUser
	}
	if r.ExpiryDays != nil {
		rl.ExpiryDays = r.ExpiryDays
	}
}

type RuleResponse struct {
	*rule.Rule
}

func NewRuleResponse(rl *rule.Rule) *RuleResponse {
	return &RuleResponse{Rule: rl}
}

// ListRulesResponse represents the response for listing rules
type ListRulesResponse = types.ListResponse[*RuleResponse]

// TestRuleRequest describes a hypothetical event. The member's tier comes from
// GuestID when set, otherwise from Tier, otherwise silver.
type TestRuleRequest struct {
	GuestID string            `json:"guest_id,omitempty"`
	Tier    *types.Tier       `json:"tier,omitempty"`
	Payload rule.EventPayload `json:"payload"`
}

func (r *TestRuleRequest) Validate() error {
	if r.Tier != nil {
		return r.Tier.Validate()
	}
	return nil
}

// TestRuleResponse reports what the rule would do, nothing is written
type TestRuleResponse struct {
	RuleID           string                `json:"rule_id"`
	ConditionsMet    bool                  `json:"conditions_met"`
	Checks           []rule.ConditionCheck `json:"checks"`
	WouldExecute     bool                  `json:"would_execute"`
	Reason           string                `json:"reason,omitempty"`
	ActionType       types.RuleActionType  `json:"action_type"`
	PointsWouldAward int64                 `json:"points_would_award"`
	TierWouldBecome  *types.Tier           `json:"tier_would_become,omitempty"`
	Message          string                `json:"message,omitempty"`
}

type RuleExecutionResponse struct {
	*rule.Execution
}

func NewRuleExecutionResponse(e *rule.Execution) *RuleExecutionResponse {
	return &RuleExecutionResponse{Execution: e}
}

// ListRuleExecutionsResponse represents the response for listing rule executions
type ListRuleExecutionsResponse = types.ListResponse[*RuleExecutionResponse]
