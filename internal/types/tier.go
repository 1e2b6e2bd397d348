package types

import (
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/samber/lo"
)

// Tier is a named loyalty level determined by a membership's point balance
type Tier string

const (
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

const (
	// TierGoldThreshold is the lowest balance that places a member in gold
	TierGoldThreshold int64 = 2000
	// TierPlatinumThreshold is the lowest balance that places a member in platinum
	TierPlatinumThreshold int64 = 5000
)

// Rank orders tiers so that silver < gold < platinum. Unknown tiers rank below silver.
func (t Tier) Rank() int {
	switch t {
	case TierSilver:
		return 1
	case TierGold:
		return 2
	case TierPlatinum:
		return 3
	default:
		return 0
	}
}

// IsAbove reports whether t ranks strictly higher than other
func (t Tier) IsAbove(other Tier) bool {
	return t.Rank() > other.Rank()
}

func (t Tier) Validate() error {
	allowedValues := []string{
		string(TierSilver),
		string(TierGold),
		string(TierPlatinum),
	}
	if !lo.Contains(allowedValues, string(t)) {
		return ierr.NewError("invalid tier").
			WithHint("Tier must be one of silver, gold or platinum").
			WithReportableDetails(map[string]any{
				"allowed": allowedValues,
				"tier":    t,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
