package reward

import (
	"context"
	"time"

	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/types"
)

// Reward is something a member can exchange points for
type Reward struct {
	ID                     string             `db:"id" json:"id"`
	Name                   string             `db:"name" json:"name"`
	Description            string             `db:"description" json:"description"`
	Category               string             `db:"category" json:"category"`
	PointsCost             int64              `db:"points_cost" json:"points_cost"`
	MinTierRequired        *types.Tier        `db:"min_tier_required" json:"min_tier_required,omitempty"`
	StockAvailable         *int               `db:"stock_available" json:"stock_available,omitempty"`
	MaxRedemptionsPerGuest *int               `db:"max_redemptions_per_guest" json:"max_redemptions_per_guest,omitempty"`
	ValidityDays           int                `db:"validity_days" json:"validity_days"`
	RewardStatus           types.RewardStatus `db:"reward_status" json:"reward_status"`
	Metadata               types.Metadata     `db:"metadata" json:"metadata"`
	types.BaseModel
}

func (r *Reward) TableName() string {
	return "rewards"
}

func (r *Reward) Validate() error {
	if r.Name == "" {
		return ierr.NewError("name is required").
			WithHint("Reward name is required").
			Mark(ierr.ErrValidation)
	}

	if r.PointsCost <= 0 {
		return ierr.NewError("points_cost must be greater than 0").
			WithHint("Points cost must be a positive value").
			WithReportableDetails(map[string]any{
				"points_cost": r.PointsCost,
			}).
			Mark(ierr.ErrValidation)
	}

	if r.MinTierRequired != nil {
		if err := r.MinTierRequired.Validate(); err != nil {
			return err
		}
	}

	if r.StockAvailable != nil && *r.StockAvailable < 0 {
		return ierr.NewError("stock_available must not be negative").
			WithHint("Stock available must be zero or more").
			Mark(ierr.ErrValidation)
	}

	if r.MaxRedemptionsPerGuest != nil && *r.MaxRedemptionsPerGuest < 1 {
		return ierr.NewError("max_redemptions_per_guest must be at least 1").
			WithHint("Max redemptions per guest must be at least 1").
			Mark(ierr.ErrValidation)
	}

	if r.ValidityDays < 0 {
		return ierr.NewError("validity_days must not be negative").
			WithHint("Validity days must be zero or more").
			Mark(ierr.ErrValidation)
	}

	return r.RewardStatus.Validate()
}

func (r *Reward) IsStockTracked() bool {
	return r.StockAvailable != nil
}

// CheckRedeemable runs the reward-side checks of a redemption in order:
// status, tier eligibility, stock.
func (r *Reward) CheckRedeemable(tier types.Tier) error {
	if r.RewardStatus != types.RewardStatusActive {
		return ierr.NewError("reward is inactive").
			WithHint("This reward is not currently available").
			WithReportableDetails(map[string]any{
				"reward_id": r.ID,
			}).
			Mark(ierr.ErrRewardInactive)
	}

	if r.MinTierRequired != nil && r.MinTierRequired.IsAbove(tier) {
		return ierr.NewError("tier not eligible for reward").
			WithHintf("This reward requires %s tier or above", *r.MinTierRequired).
			WithReportableDetails(map[string]any{
				"reward_id":     r.ID,
				"required_tier": *r.MinTierRequired,
				"current_tier":  tier,
			}).
			Mark(ierr.ErrTierNotEligible)
	}

	if r.IsStockTracked() && *r.StockAvailable <= 0 {
		return ErrOutOfStock(r.ID)
	}

	return nil
}

// ErrOutOfStock builds the error returned when a reward has no units left
func ErrOutOfStock(rewardID string) error {
	return ierr.NewError("reward out of stock").
		WithHint("This reward is out of stock").
		WithReportableDetails(map[string]any{
			"reward_id": rewardID,
		}).
		Mark(ierr.ErrOutOfStock)
}

// Touch stamps the update audit fields
func (r *Reward) Touch(ctx context.Context) {
	r.UpdatedAt = time.Now().UTC()
	r.UpdatedBy = types.GetUserID(ctx)
}
