package service

import (
	"context"
	"fmt"
	"time"

	"github.com/innkeep/loyalty/internal/api/dto"
	"github.com/innkeep/loyalty/internal/domain/membership"
	"github.com/innkeep/loyalty/internal/domain/reward"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/idempotency"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/samber/lo"
)

type RewardService interface {
	CreateReward(ctx context.Context, req *dto.CreateRewardRequest) (*dto.RewardResponse, error)
	GetReward(ctx context.Context, id string) (*dto.RewardResponse, error)
	ListRewards(ctx context.Context, filter *types.RewardFilter) (*dto.ListRewardsResponse, error)
	UpdateReward(ctx context.Context, id string, req *dto.UpdateRewardRequest) (*dto.RewardResponse, error)
	// DeleteReward retires the reward, past redemptions keep pointing at it
	DeleteReward(ctx context.Context, id string) error

	// Redeem exchanges the guest's points for one unit of the reward
	Redeem(ctx context.Context, rewardID string, req *dto.RedeemRewardRequest) (*dto.RedeemRewardResponse, error)
	ListRedemptions(ctx context.Context, filter *types.RedemptionFilter) (*dto.ListRedemptionsResponse, error)
}

type rewardService struct {
	ServiceParams
	idempGen *idempotency.Generator
}

func NewRewardService(params ServiceParams) RewardService {
	return &rewardService{
		ServiceParams: params,
		idempGen:      idempotency.NewGenerator(),
	}
}

func (s *rewardService) CreateReward(ctx context.Context, req *dto.CreateRewardRequest) (*dto.RewardResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rw := req.ToReward(ctx)
	if err := rw.Validate(); err != nil {
		return nil, err
	}

	if err := s.RewardRepo.Create(ctx, rw); err != nil {
		return nil, err
	}

	s.Logger.Infow("reward created",
		"reward_id", rw.ID,
		"name", rw.Name,
		"points_cost", rw.PointsCost,
	)
	return dto.NewRewardResponse(rw), nil
}

func (s *rewardService) GetReward(ctx context.Context, id string) (*dto.RewardResponse, error) {
	if id == "" {
		return nil, ierr.NewError("reward_id is required").
			WithHint("Reward ID is required").
			Mark(ierr.ErrValidation)
	}

	rw, err := s.RewardRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewRewardResponse(rw), nil
}

func (s *rewardService) ListRewards(ctx context.Context, filter *types.RewardFilter) (*dto.ListRewardsResponse, error) {
	if filter == nil {
		filter = types.NewRewardFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	if err := filter.Validate(); err != nil {
		return nil, err
	}

	rewards, err := s.RewardRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	count, err := s.RewardRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(rewards, func(rw *reward.Reward, _ int) *dto.RewardResponse {
		return dto.NewRewardResponse(rw)
	})

	resp := types.NewListResponse(items, count, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *rewardService) UpdateReward(ctx context.Context, id string, req *dto.UpdateRewardRequest) (*dto.RewardResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var rw *reward.Reward
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		rw, err = s.RewardRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		req.Apply(rw)
		if err := rw.Validate(); err != nil {
			return err
		}

		rw.Touch(ctx)
		return s.RewardRepo.Update(ctx, rw)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("reward updated", "reward_id", rw.ID)
	return dto.NewRewardResponse(rw), nil
}

func (s *rewardService) DeleteReward(ctx context.Context, id string) error {
	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		rw, err := s.RewardRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		rw.RewardStatus = types.RewardStatusInactive
		rw.Status = types.StatusArchived
		rw.Touch(ctx)
		if err := s.RewardRepo.Update(ctx, rw); err != nil {
			return err
		}

		s.Logger.Infow("reward retired", "reward_id", id)
		return nil
	})
}

// Redeem runs every check and write under the membership and reward row locks,
// so of two concurrent redemptions racing for the last unit or the last points
// exactly one commits.
func (s *rewardService) Redeem(ctx context.Context, rewardID string, req *dto.RedeemRewardRequest) (*dto.RedeemRewardResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		m            *membership.Membership
		rw           *reward.Reward
		redemption   *reward.Redemption
		remaining    *int
		previousTier types.Tier
		replayed     bool
	)

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error

		m, err = s.MembershipRepo.GetByGuestIDForUpdate(ctx, req.GuestID)
		if err != nil {
			return err
		}
		if err := m.EnsureActive(); err != nil {
			return err
		}
		previousTier = m.Tier

		key := lo.FromPtr(req.IdempotencyKey)
		if key != "" {
			existing, err := s.RewardRepo.GetRedemptionByIdempotencyKey(ctx, key)
			if err == nil {
				if existing.MembershipID != m.ID || existing.RewardID != rewardID {
					return ierr.NewError("idempotency key already used").
						WithHint("This idempotency key was already used for another redemption").
						WithReportableDetails(map[string]any{
							"idempotency_key": key,
						}).
						Mark(ierr.ErrAlreadyExists)
				}
				redemption = existing
				replayed = true
				return nil
			}
			if !ierr.IsNotFound(err) {
				return err
			}
		}

		rw, err = s.RewardRepo.GetForUpdate(ctx, rewardID)
		if err != nil {
			return err
		}

		// status, tier eligibility, stock
		if err := rw.CheckRedeemable(m.Tier); err != nil {
			return err
		}

		if m.Points < rw.PointsCost {
			return ierr.NewError("insufficient points balance").
				WithHintf("Insufficient points: balance is %d, reward costs %d", m.Points, rw.PointsCost).
				WithReportableDetails(map[string]any{
					"membership_id": m.ID,
					"reward_id":     rw.ID,
					"balance":       m.Points,
					"points_cost":   rw.PointsCost,
				}).
				Mark(ierr.ErrInsufficientBalance)
		}

		if rw.MaxRedemptionsPerGuest != nil {
			filter := &types.RedemptionFilter{
				QueryFilter:  types.NewNoLimitQueryFilter(),
				MembershipID: lo.ToPtr(m.ID),
				RewardID:     lo.ToPtr(rw.ID),
			}
			count, err := s.RewardRepo.CountRedemptions(ctx, filter)
			if err != nil {
				return err
			}
			if count >= *rw.MaxRedemptionsPerGuest {
				return ierr.NewError("redemption limit reached").
					WithHintf("This reward can be redeemed at most %d times per guest", *rw.MaxRedemptionsPerGuest).
					WithReportableDetails(map[string]any{
						"membership_id": m.ID,
						"reward_id":     rw.ID,
						"redemptions":   count,
					}).
					Mark(ierr.ErrRedemptionLimitReached)
			}
		}

		if rw.IsStockTracked() {
			left, err := s.RewardRepo.DecrementStock(ctx, rw.ID)
			if err != nil {
				return err
			}
			remaining = lo.ToPtr(left)
		}

		now := time.Now().UTC()
		redemption = &reward.Redemption{
			ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REDEMPTION),
			MembershipID:   m.ID,
			GuestID:        m.GuestID,
			RewardID:       rw.ID,
			PointsSpent:    rw.PointsCost,
			Code:           types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_REDEMPTION),
			IdempotencyKey: req.IdempotencyKey,
			CreatedAt:      now,
			CreatedBy:      types.GetUserID(ctx),
		}
		if rw.ValidityDays > 0 {
			redemption.ExpiresAt = lo.ToPtr(now.AddDate(0, 0, rw.ValidityDays))
		}

		var ledgerKey *string
		if key != "" {
			ledgerKey = lo.ToPtr(s.idempGen.GenerateKey(idempotency.ScopeRedemption, map[string]interface{}{
				"idempotency_key": key,
			}))
		}

		tx, err := postTransaction(ctx, s.MembershipRepo, m, &posting{
			Type:           types.TransactionTypeRedeem,
			Points:         -rw.PointsCost,
			Description:    fmt.Sprintf("Redeemed %s", rw.Name),
			ReferenceType:  types.TransactionReferenceTypeRedemption,
			ReferenceID:    redemption.ID,
			IdempotencyKey: ledgerKey,
		})
		if err != nil {
			return err
		}
		redemption.TransactionID = tx.ID

		return s.RewardRepo.CreateRedemption(ctx, redemption)
	})
	if err != nil {
		s.Logger.Debugw("redemption rejected",
			"guest_id", req.GuestID,
			"reward_id", rewardID,
			"error", err,
		)
		return nil, err
	}

	if replayed {
		return &dto.RedeemRewardResponse{
			Redemption: dto.NewRedemptionResponse(redemption),
			Balance:    m.Points,
			Tier:       m.Tier,
			Replayed:   true,
		}, nil
	}

	s.Logger.Infow("reward redeemed",
		"redemption_id", redemption.ID,
		"membership_id", m.ID,
		"reward_id", rw.ID,
		"points_spent", redemption.PointsSpent,
		"balance", m.Points,
	)

	// a redemption only lowers the balance, the tier can only drop here
	if m.Tier != previousTier {
		s.Logger.Infow("tier changed after redemption",
			"membership_id", m.ID,
			"previous_tier", previousTier,
			"tier", m.Tier,
		)
	}

	return &dto.RedeemRewardResponse{
		Redemption:     dto.NewRedemptionResponse(redemption),
		Balance:        m.Points,
		Tier:           m.Tier,
		RemainingStock: remaining,
	}, nil
}

func (s *rewardService) ListRedemptions(ctx context.Context, filter *types.RedemptionFilter) (*dto.ListRedemptionsResponse, error) {
	if filter == nil {
		filter = types.NewRedemptionFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	if err := filter.Validate(); err != nil {
		return nil, err
	}

	redemptions, err := s.RewardRepo.ListRedemptions(ctx, filter)
	if err != nil {
		return nil, err
	}

	count, err := s.RewardRepo.CountRedemptions(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(redemptions, func(rd *reward.Redemption, _ int) *dto.RedemptionResponse {
		return dto.NewRedemptionResponse(rd)
	})

	resp := types.NewListResponse(items, count, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}
