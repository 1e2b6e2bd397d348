package membership

import "github.com/innkeep/loyalty/internal/types"

// TierFor maps a point balance to the tier it earns.
// Threshold values belong to the higher tier.
func TierFor(points int64) types.Tier {
	switch {
	case points >= types.TierPlatinumThreshold:
		return types.TierPlatinum
	case points >= types.TierGoldThreshold:
		return types.TierGold
	default:
		return types.TierSilver
	}
}
