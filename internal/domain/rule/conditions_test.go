package rule

import (
	"testing"
	"time"

	"github.com/innkeep/loyalty/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestConditionsEvaluate(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	amount := func(s string) *decimal.Decimal { return lo.ToPtr(decimal.RequireFromString(s)) }

	tests := []struct {
		name       string
		conditions Conditions
		input      EvaluationInput
		wantMet    bool
		wantChecks int
	}{
		{
			name:       "no conditions always match",
			conditions: Conditions{},
			input:      EvaluationInput{Trigger: types.RuleTriggerBirthday, Tier: types.TierSilver, Now: now},
			wantMet:    true,
		},
		{
			name:       "booking amount below minimum",
			conditions: Conditions{MinBookingAmount: amount("100")},
			input:      EvaluationInput{Trigger: types.RuleTriggerBookingCompleted, BookingAmount: amount("50"), Now: now},
			wantMet:    false,
			wantChecks: 1,
		},
		{
			name:       "booking amount at minimum",
			conditions: Conditions{MinBookingAmount: amount("100")},
			input:      EvaluationInput{Trigger: types.RuleTriggerBookingCompleted, BookingAmount: amount("100"), Now: now},
			wantMet:    true,
			wantChecks: 1,
		},
		{
			name:       "booking amount ignored for non booking triggers",
			conditions: Conditions{MinBookingAmount: amount("100")},
			input:      EvaluationInput{Trigger: types.RuleTriggerFeedbackSubmitted, Now: now},
			wantMet:    true,
		},
		{
			name:       "missing booking amount does not match",
			conditions: Conditions{MinBookingAmount: amount("100")},
			input:      EvaluationInput{Trigger: types.RuleTriggerFirstBooking, Now: now},
			wantMet:    false,
			wantChecks: 1,
		},
		{
			name:       "feedback rating",
			conditions: Conditions{MinFeedbackRating: lo.ToPtr(4)},
			input:      EvaluationInput{Trigger: types.RuleTriggerFeedbackSubmitted, FeedbackRating: lo.ToPtr(3), Now: now},
			wantMet:    false,
			wantChecks: 1,
		},
		{
			name:       "tier restriction",
			conditions: Conditions{TierRestrictions: []types.Tier{types.TierGold, types.TierPlatinum}},
			input:      EvaluationInput{Trigger: types.RuleTriggerBirthday, Tier: types.TierSilver, Now: now},
			wantMet:    false,
			wantChecks: 1,
		},
		{
			name: "inside date range",
			conditions: Conditions{
				StartDate: lo.ToPtr(now.AddDate(0, -1, 0)),
				EndDate:   lo.ToPtr(now.AddDate(0, 1, 0)),
			},
			input:      EvaluationInput{Trigger: types.RuleTriggerReferral, Now: now},
			wantMet:    true,
			wantChecks: 1,
		},
		{
			name:       "after end date",
			conditions: Conditions{EndDate: lo.ToPtr(now.AddDate(0, 0, -1))},
			input:      EvaluationInput{Trigger: types.RuleTriggerReferral, Now: now},
			wantMet:    false,
			wantChecks: 1,
		},
		{
			name: "all conditions and-combined",
			conditions: Conditions{
				MinBookingAmount: amount("100"),
				TierRestrictions: []types.Tier{types.TierGold},
			},
			input: EvaluationInput{
				Trigger:       types.RuleTriggerBookingCompleted,
				Tier:          types.TierSilver,
				BookingAmount: amount("150"),
				Now:           now,
			},
			wantMet:    false,
			wantChecks: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.conditions.Evaluate(tt.input)
			assert.Equal(t, tt.wantMet, result.Met)
			assert.Len(t, result.Checks, tt.wantChecks)
			if !tt.wantMet {
				assert.NotEmpty(t, result.Reason())
			}
		})
	}
}

func TestRuleExpiresAt(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	r := &Rule{}
	assert.Nil(t, r.ExpiresAt(now, 0))
	assert.Equal(t, now.AddDate(0, 0, 365), *r.ExpiresAt(now, 365))

	r.ExpiryDays = lo.ToPtr(30)
	assert.Equal(t, now.AddDate(0, 0, 30), *r.ExpiresAt(now, 365))
}
