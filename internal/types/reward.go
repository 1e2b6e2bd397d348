package types

import (
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/samber/lo"
)

// RewardStatus is the redeemability state of a reward
type RewardStatus string

const (
	RewardStatusActive   RewardStatus = "active"
	RewardStatusInactive RewardStatus = "inactive"
)

func (s RewardStatus) Validate() error {
	allowedValues := []string{
		string(RewardStatusActive),
		string(RewardStatusInactive),
	}
	if !lo.Contains(allowedValues, string(s)) {
		return ierr.NewError("invalid reward status").
			WithHint("Reward status must be active or inactive").
			WithReportableDetails(map[string]any{
				"allowed": allowedValues,
				"status":  s,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// RewardFilter represents the filter options for listing rewards
type RewardFilter struct {
	*QueryFilter
	RewardIDs    []string      `json:"reward_ids,omitempty" form:"reward_ids"`
	Category     *string       `json:"category,omitempty" form:"category"`
	RewardStatus *RewardStatus `json:"reward_status,omitempty" form:"reward_status"`
}

func NewRewardFilter() *RewardFilter {
	return &RewardFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

func (f RewardFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}
	if f.RewardStatus != nil {
		if err := f.RewardStatus.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GetLimit implements BaseFilter interface
func (f *RewardFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

// GetOffset implements BaseFilter interface
func (f *RewardFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return 0
	}
	return f.QueryFilter.GetOffset()
}

func (f *RewardFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return false
	}
	return f.QueryFilter.IsUnlimited()
}

// RedemptionFilter represents the filter options for listing redemptions
type RedemptionFilter struct {
	*QueryFilter
	*TimeRangeFilter
	MembershipID *string `json:"membership_id,omitempty" form:"membership_id"`
	GuestID      *string `json:"guest_id,omitempty" form:"guest_id"`
	RewardID     *string `json:"reward_id,omitempty" form:"reward_id"`
}

func NewRedemptionFilter() *RedemptionFilter {
	return &RedemptionFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

func (f RedemptionFilter) Validate() error {
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
func (f *RedemptionFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

// GetOffset implements BaseFilter interface
func (f *RedemptionFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return 0
	}
	return f.QueryFilter.GetOffset()
}

func (f *RedemptionFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return false
	}
	return f.QueryFilter.IsUnlimited()
}
