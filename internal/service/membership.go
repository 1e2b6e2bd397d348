package service

import (
	"context"

	"github.com/innkeep/loyalty/internal/api/dto"
	"github.com/innkeep/loyalty/internal/domain/membership"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/samber/lo"
)

type MembershipService interface {
	Enroll(ctx context.Context, req *dto.EnrollMembershipRequest) (*dto.MembershipResponse, error)
	Get(ctx context.Context, id string) (*dto.MembershipResponse, error)
	GetByGuestID(ctx context.Context, guestID string) (*dto.MembershipResponse, error)
	List(ctx context.Context, filter *types.MembershipFilter) (*dto.ListMembershipsResponse, error)
	UpdateStatus(ctx context.Context, id string, req *dto.UpdateMembershipStatusRequest) (*dto.MembershipResponse, error)
	// Delete removes the membership and everything recorded against it
	Delete(ctx context.Context, id string) error
	// AdjustPoints is a manual correction recorded as an adjustment transaction
	AdjustPoints(ctx context.Context, id string, req *dto.AdjustPointsRequest) (*dto.TransactionResultResponse, error)
}

type membershipService struct {
	ServiceParams
}

func NewMembershipService(params ServiceParams) MembershipService {
	return &membershipService{
		ServiceParams: params,
	}
}

func (s *membershipService) Enroll(ctx context.Context, req *dto.EnrollMembershipRequest) (*dto.MembershipResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	m := req.ToMembership(ctx)
	if err := s.MembershipRepo.Create(ctx, m); err != nil {
		if ierr.IsAlreadyExists(err) {
			return nil, ierr.WithError(err).
				WithHintf("Guest %s is already enrolled", req.GuestID).
				WithReportableDetails(map[string]any{
					"guest_id": req.GuestID,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return nil, err
	}

	s.Logger.Infow("guest enrolled",
		"membership_id", m.ID,
		"guest_id", m.GuestID,
	)
	return dto.NewMembershipResponse(m), nil
}

func (s *membershipService) Get(ctx context.Context, id string) (*dto.MembershipResponse, error) {
	if id == "" {
		return nil, ierr.NewError("membership_id is required").
			WithHint("Membership ID is required").
			Mark(ierr.ErrValidation)
	}

	m, err := s.MembershipRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewMembershipResponse(m), nil
}

func (s *membershipService) GetByGuestID(ctx context.Context, guestID string) (*dto.MembershipResponse, error) {
	if guestID == "" {
		return nil, ierr.NewError("guest_id is required").
			WithHint("Guest ID is required").
			Mark(ierr.ErrValidation)
	}

	m, err := s.MembershipRepo.GetByGuestID(ctx, guestID)
	if err != nil {
		return nil, err
	}
	return dto.NewMembershipResponse(m), nil
}

func (s *membershipService) List(ctx context.Context, filter *types.MembershipFilter) (*dto.ListMembershipsResponse, error) {
	if filter == nil {
		filter = types.NewMembershipFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	if err := filter.Validate(); err != nil {
		return nil, err
	}

	memberships, err := s.MembershipRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	count, err := s.MembershipRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(memberships, func(m *membership.Membership, _ int) *dto.MembershipResponse {
		return dto.NewMembershipResponse(m)
	})

	resp := types.NewListResponse(items, count, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *membershipService) UpdateStatus(ctx context.Context, id string, req *dto.UpdateMembershipStatusRequest) (*dto.MembershipResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var m *membership.Membership
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		m, err = s.MembershipRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if m.MembershipStatus == req.MembershipStatus {
			return nil
		}

		m.MembershipStatus = req.MembershipStatus
		m.Touch(ctx)
		return s.MembershipRepo.Update(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("membership status updated",
		"membership_id", m.ID,
		"membership_status", m.MembershipStatus,
	)
	return dto.NewMembershipResponse(m), nil
}

func (s *membershipService) Delete(ctx context.Context, id string) error {
	if err := s.MembershipRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.Logger.Infow("membership deleted", "membership_id", id)
	return nil
}

func (s *membershipService) AdjustPoints(ctx context.Context, id string, req *dto.AdjustPointsRequest) (*dto.TransactionResultResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ledger := NewLedgerService(s.ServiceParams)
	return ledger.AppendTransaction(ctx, &dto.AppendTransactionRequest{
		MembershipID:   id,
		Type:           types.TransactionTypeAdjustment,
		Points:         req.Points,
		Description:    req.Description,
		PerformedBy:    types.GetUserID(ctx),
		ReferenceType:  types.TransactionReferenceTypeManual,
		IdempotencyKey: req.IdempotencyKey,
	})
}
