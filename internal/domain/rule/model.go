package rule

import (
	"context"
	"time"

	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/types"
)

// Rule is a trigger -> conditions -> action policy evaluated against domain events
type Rule struct {
	ID                   string            `db:"id" json:"id"`
	Name                 string            `db:"name" json:"name"`
	Description          string            `db:"description" json:"description"`
	Trigger              types.RuleTrigger `db:"trigger" json:"trigger"`
	Conditions           Conditions        `db:"conditions" json:"conditions"`
	Action               RuleAction        `db:"action" json:"action"`
	IsActive             bool              `db:"is_active" json:"is_active"`
	Priority             int               `db:"priority" json:"priority"`
	MaxExecutionsPerUser *int              `db:"max_executions_per_user" json:"max_executions_per_user,omitempty"`
	ExpiryDays           *int              `db:"expiry_days" json:"expiry_days,omitempty"`
	ExecutionCount       int64             `db:"execution_count" json:"execution_count"`
	LastExecutedAt       *time.Time        `db:"last_executed_at" json:"last_executed_at,omitempty"`
	types.BaseModel
}

func (r *Rule) TableName() string {
	return "loyalty_rules"
}

func (r *Rule) Validate() error {
	if r.Name == "" {
		return ierr.NewError("name is required").
			WithHint("Rule name is required").
			Mark(ierr.ErrValidation)
	}

	if r.Trigger == "" {
		return ierr.NewError("trigger is required").
			WithHint("Rule trigger is required").
			Mark(ierr.ErrValidation)
	}
	if err := r.Trigger.Validate(); err != nil {
		return err
	}

	if r.Action.Action == nil {
		return ierr.NewError("action is required").
			WithHint("Rule action is required").
			Mark(ierr.ErrValidation)
	}
	if err := r.Action.Validate(); err != nil {
		return err
	}

	if err := r.Conditions.Validate(); err != nil {
		return err
	}

	if r.MaxExecutionsPerUser != nil && *r.MaxExecutionsPerUser < 1 {
		return ierr.NewError("max_executions_per_user must be at least 1").
			WithHint("Max executions per user must be at least 1").
			Mark(ierr.ErrValidation)
	}

	if r.ExpiryDays != nil && *r.ExpiryDays < 1 {
		return ierr.NewError("expiry_days must be at least 1").
			WithHint("Expiry days must be at least 1").
			Mark(ierr.ErrValidation)
	}

	return nil
}

// ExpiresAt returns when points awarded at now by this rule expire. The rule's
// own ExpiryDays wins over defaultDays, zero days means no expiry.
func (r *Rule) ExpiresAt(now time.Time, defaultDays int) *time.Time {
	days := defaultDays
	if r.ExpiryDays != nil {
		days = *r.ExpiryDays
	}
	if days <= 0 {
		return nil
	}
	at := now.AddDate(0, 0, days)
	return &at
}

// Touch stamps the update audit fields
func (r *Rule) Touch(ctx context.Context) {
	r.UpdatedAt = time.Now().UTC()
	r.UpdatedBy = types.GetUserID(ctx)
}
