package rule

import (
	"encoding/json"
	"testing"

	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleActionUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Action
		wantErr bool
	}{
		{
			name:  "award points",
			input: `{"type":"award_points","points":50}`,
			want:  AwardPoints{Points: 50},
		},
		{
			name:  "multiply points",
			input: `{"type":"multiply_points","multiplier":"1.5"}`,
			want:  MultiplyPoints{Multiplier: decimal.RequireFromString("1.5")},
		},
		{
			name:  "tier upgrade",
			input: `{"type":"tier_upgrade","target_tier":"gold"}`,
			want:  TierUpgrade{TargetTier: types.TierGold},
		},
		{
			name:  "send notification",
			input: `{"type":"send_notification","message":"Welcome back"}`,
			want:  SendNotification{Message: "Welcome back"},
		},
		{
			name:    "missing parameter",
			input:   `{"type":"award_points"}`,
			wantErr: true,
		},
		{
			name:    "unknown type",
			input:   `{"type":"free_breakfast"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ra RuleAction
			err := json.Unmarshal([]byte(tt.input), &ra)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, ierr.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Type(), ra.Type())
			assert.Equal(t, tt.want, ra.Action)
		})
	}
}

func TestRuleActionMarshalKeepsTag(t *testing.T) {
	data, err := json.Marshal(NewRuleAction(TierUpgrade{TargetTier: types.TierPlatinum}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"tier_upgrade","target_tier":"platinum"}`, string(data))

	var back RuleAction
	require.NoError(t, back.Scan(data))
	assert.Equal(t, TierUpgrade{TargetTier: types.TierPlatinum}, back.Action)
}

func TestMultiplyPointsBonusFor(t *testing.T) {
	double := MultiplyPoints{Multiplier: decimal.NewFromInt(2)}
	assert.Equal(t, int64(100), double.BonusFor(100))

	oneAndHalf := MultiplyPoints{Multiplier: decimal.RequireFromString("1.5")}
	assert.Equal(t, int64(50), oneAndHalf.BonusFor(100))
	assert.Equal(t, int64(0), oneAndHalf.BonusFor(1), "rounds down")

	assert.Error(t, MultiplyPoints{Multiplier: decimal.NewFromInt(1)}.Validate())
}
