package dto

import (
	"github.com/innkeep/loyalty/internal/domain/reward"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/innkeep/loyalty/internal/validator"
)

type RedeemRewardRequest struct {
	GuestID        string  `json:"guest_id" validate:"required"`
	IdempotencyKey *string `json:"idempotency_key,omitempty" validate:"omitempty,max=255"`
}

func (r *RedeemRewardRequest) Validate() error {
	return validator.ValidateRequest(r)
}

type RedemptionResponse struct {
	*reward.Redemption
}

func NewRedemptionResponse(rd *reward.Redemption) *RedemptionResponse {
	return &RedemptionResponse{Redemption: rd}
}

// RedeemRewardResponse carries the member and reward state right after the redemption
type RedeemRewardResponse struct {
	Redemption *RedemptionResponse `json:"redemption"`
	Balance    int64               `json:"balance"`
	Tier       types.Tier          `json:"tier"`
	// RemainingStock is nil for rewards without stock tracking
	RemainingStock *int `json:"remaining_stock,omitempty"`
	// Replayed marks a repeated idempotency key: Redemption is the original one,
	// Balance and Tier are current and RemainingStock is left out
	Replayed bool `json:"replayed,omitempty"`
}

// ListRedemptionsResponse represents the response for listing redemptions
type ListRedemptionsResponse = types.ListResponse[*RedemptionResponse]
