package dto

import (
	"context"

	"github.com/innkeep/loyalty/internal/domain/membership"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/innkeep/loyalty/internal/validator"
)

type EnrollMembershipRequest struct {
	GuestID  string         `json:"guest_id" validate:"required,max=255"`
	Metadata types.Metadata `json:"metadata,omitempty"`
}

func (r *EnrollMembershipRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *EnrollMembershipRequest) ToMembership(ctx context.Context) *membership.Membership {
	return membership.New(ctx, r.GuestID, r.Metadata)
}

type UpdateMembershipStatusRequest struct {
	MembershipStatus types.MembershipStatus `json:"membership_status" validate:"required"`
}

func (r *UpdateMembershipStatusRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.MembershipStatus.Validate()
}

// AdjustPointsRequest is a manual correction by staff, positive or negative
type AdjustPointsRequest struct {
	Points         int64   `json:"points" validate:"required"`
	Description    string  `json:"description" validate:"required,max=500"`
	IdempotencyKey *string `json:"idempotency_key,omitempty" validate:"omitempty,max=255"`
}

func (r *AdjustPointsRequest) Validate() error {
	return validator.ValidateRequest(r)
}

type MembershipResponse struct {
	*membership.Membership
}

func NewMembershipResponse(m *membership.Membership) *MembershipResponse {
	return &MembershipResponse{Membership: m}
}

// ListMembershipsResponse represents the response for listing memberships
type ListMembershipsResponse = types.ListResponse[*MembershipResponse]
