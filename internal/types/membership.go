package types

import (
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/samber/lo"
)

// MembershipStatus is the usability state of a membership
type MembershipStatus string

const (
	MembershipStatusActive   MembershipStatus = "active"
	MembershipStatusInactive MembershipStatus = "inactive"
)

func (s MembershipStatus) Validate() error {
	allowedValues := []string{
		string(MembershipStatusActive),
		string(MembershipStatusInactive),
	}
	if !lo.Contains(allowedValues, string(s)) {
		return ierr.NewError("invalid membership status").
			WithHint("Membership status must be active or inactive").
			WithReportableDetails(map[string]any{
				"allowed": allowedValues,
				"status":  s,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// MembershipFilter represents the filter options for listing memberships
type MembershipFilter struct {
	*QueryFilter
	GuestIDs         []string          `json:"guest_ids,omitempty" form:"guest_ids"`
	Tier             *Tier             `json:"tier,omitempty" form:"tier"`
	MembershipStatus *MembershipStatus `json:"membership_status,omitempty" form:"membership_status"`
}

func NewMembershipFilter() *MembershipFilter {
	return &MembershipFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

func NewNoLimitMembershipFilter() *MembershipFilter {
	return &MembershipFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

func (f MembershipFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}
	if f.Tier != nil {
		if err := f.Tier.Validate(); err != nil {
			return err
		}
	}
	if f.MembershipStatus != nil {
		if err := f.MembershipStatus.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GetLimit implements BaseFilter interface
func (f *MembershipFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

// GetOffset implements BaseFilter interface
func (f *MembershipFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return 0
	}
	return f.QueryFilter.GetOffset()
}

func (f *MembershipFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return false
	}
	return f.QueryFilter.IsUnlimited()
}
