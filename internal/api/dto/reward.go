package dto

import (
	"context"

	"github.com/innkeep/loyalty/internal/domain/reward"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/innkeep/loyalty/internal/validator"
	"github.com/samber/lo"
)

type CreateRewardRequest struct {
	Name                   string              `json:"name" validate:"required,max=255"`
	Description            string              `json:"description" validate:"max=2000"`
	Category               string              `json:"category" validate:"max=100"`
	PointsCost             int64               `json:"points_cost" validate:"required,gt=0"`
	MinTierRequired        *types.Tier         `json:"min_tier_required,omitempty"`
	StockAvailable         *int                `json:"stock_available,omitempty" validate:"omitempty,min=0"`
	MaxRedemptionsPerGuest *int                `json:"max_redemptions_per_guest,omitempty" validate:"omitempty,min=1"`
	ValidityDays           int                 `json:"validity_days" validate:"min=0"`
	RewardStatus           *types.RewardStatus `json:"reward_status,omitempty"`
	Metadata               types.Metadata      `json:"metadata,omitempty"`
}

func (r *CreateRewardRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.MinTierRequired != nil {
		if err := r.MinTierRequired.Validate(); err != nil {
			return err
		}
	}
	if r.RewardStatus != nil {
		return r.RewardStatus.Validate()
	}
	return nil
}

func (r *CreateRewardRequest) ToReward(ctx context.Context) *reward.Reward {
	return &reward.Reward{
		ID:                     types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REWARD),
		Name:                   r.Name,
		Description:            r.Description,
		Category:               r.Category,
		PointsCost:             r.PointsCost,
		MinTierRequired:        r.MinTierRequired,
		StockAvailable:         r.StockAvailable,
		MaxRedemptionsPerGuest: r.MaxRedemptionsPerGuest,
		ValidityDays:           r.ValidityDays,
		RewardStatus:           lo.FromPtrOr(r.RewardStatus, types.RewardStatusActive),
		Metadata:               r.Metadata,
		BaseModel:              types.GetDefaultBaseModel(ctx),
	}
}

// UpdateRewardRequest changes only the fields that are set
type UpdateRewardRequest struct {
	Name                   *string             `json:"name,omitempty" validate:"omitempty,max=255"`
	Description            *string             `json:"description,omitempty" validate:"omitempty,max=2000"`
	Category               *string             `json:"category,omitempty" validate:"omitempty,max=100"`
	PointsCost             *int64              `json:"points_cost,omitempty" validate:"omitempty,gt=0"`
	MinTierRequired        *types.Tier         `json:"min_tier_required,omitempty"`
	StockAvailable         *int                `json:"stock_available,omitempty" validate:"omitempty,min=0"`
	MaxRedemptionsPerGuest *int                `json:"max_redemptions_per_guest,omitempty" validate:"omitempty,min=1"`
	ValidityDays           *int                `json:"validity_days,omitempty" validate:"omitempty,min=0"`
	RewardStatus           *types.RewardStatus `json:"reward_status,omitempty"`
	Metadata               types.Metadata      `json:"metadata,omitempty"`
}

func (r *UpdateRewardRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// Apply copies the set fields onto rw, the result is validated by the caller
func (r *UpdateRewardRequest) Apply(rw *reward.Reward) {
	if r.Name != nil {
		rw.Name = *r.Name
	}
	if r.Description != nil {
		rw.Description = *r.Description
	}
	if r.Category != nil {
		rw.Category = *r.Category
	}
	if r.PointsCost != nil {
		rw.PointsCost = *r.PointsCost
	}
	if r.MinTierRequired != nil {
		rw.MinTierRequired = r.MinTierRequired
	}
	if r.StockAvailable != nil {
		rw.StockAvailable = r.StockAvailable
	}
	if r.MaxRedemptionsPerGuest != nil {
		rw.MaxRedemptionsPerGuest = r.MaxRedemptionsPerGuest
	}
	if r.ValidityDays != nil {
		rw.ValidityDays = *r.ValidityDays
	}
	if r.RewardStatus != nil {
		rw.RewardStatus = *r.RewardStatus
	}
	if r.Metadata != nil {
		rw.Metadata = r.Metadata
	}
}

type RewardResponse struct {
	*reward.Reward
}

func NewRewardResponse(rw *reward.Reward) *RewardResponse {
	return &RewardResponse{Reward: rw}
}

// ListRewardsResponse represents the response for listing rewards
type ListRewardsResponse = types.ListResponse[*RewardResponse]
