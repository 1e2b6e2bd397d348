package memory

import (
	"cmp"
	"context"
	"strings"

	"github.com/innkeep/loyalty/internal/domain/reward"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/samber/lo"
)

type rewardRepository struct {
	store *Store
}

// NewRewardRepository creates a reward repository backed by the store
func NewRewardRepository(store *Store) reward.Repository {
	return &rewardRepository{store: store}
}

func rewardNotFound(id string) error {
	return ierr.NewError("reward not found").
		WithHint("Reward not found").
		WithReportableDetails(map[string]any{"reward_id": id}).
		Mark(ierr.ErrRewardNotFound)
}

func (r *rewardRepository) Create(ctx context.Context, rw *reward.Reward) error {
	return r.store.write(ctx, func(t tables) error {
		if _, ok := t.rewards[rw.ID]; ok {
			return ierr.NewError("reward already exists").
				WithHint("A reward with this id already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		t.rewards.put(rw.ID, rw)
		return nil
	})
}

func (r *rewardRepository) Get(ctx context.Context, id string) (*reward.Reward, error) {
	var (
		rw *reward.Reward
		ok bool
	)
	r.store.read(func(t tables) { rw, ok = t.rewards.get(id) })
	if !ok {
		return nil, rewardNotFound(id)
	}
	return rw, nil
}

func (r *rewardRepository) GetForUpdate(ctx context.Context, id string) (*reward.Reward, error) {
	return r.Get(ctx, id)
}

func (r *rewardRepository) List(ctx context.Context, filter *types.RewardFilter) ([]*reward.Reward, error) {
	var rows []*reward.Reward
	r.store.read(func(t tables) {
		rows = t.rewards.filter(rewardMatcher(filter), rewardOrder(filter))
	})
	return paginate(rows, filter.QueryFilter), nil
}

func (r *rewardRepository) Count(ctx context.Context, filter *types.RewardFilter) (int, error) {
	var rows []*reward.Reward
	r.store.read(func(t tables) { rows = t.rewards.filter(rewardMatcher(filter), nil) })
	return len(rows), nil
}

func rewardMatcher(filter *types.RewardFilter) func(*reward.Reward) bool {
	return func(rw *reward.Reward) bool {
		if filter == nil {
			return true
		}
		if !statusMatches(filter.QueryFilter, rw.Status) {
			return false
		}
		if len(filter.RewardIDs) > 0 && !lo.Contains(filter.RewardIDs, rw.ID) {
			return false
		}
		if filter.Category != nil && rw.Category != *filter.Category {
			return false
		}
		if filter.RewardStatus != nil && rw.RewardStatus != *filter.RewardStatus {
			return false
		}
		return true
	}
}

func rewardOrder(filter *types.RewardFilter) func(a, b *reward.Reward) bool {
	q := types.NewDefaultQueryFilter()
	if filter != nil && filter.QueryFilter != nil {
		q = filter.QueryFilter
	}
	return func(a, b *reward.Reward) bool {
		var c int
		switch q.GetSort() {
		case "points_cost":
			c = cmp.Compare(a.PointsCost, b.PointsCost)
		case "name":
			c = strings.Compare(a.Name, b.Name)
		case "updated_at":
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		return ordered(q.GetOrder(), c, a.ID, b.ID)
	}
}

func (r *rewardRepository) Update(ctx context.Context, rw *reward.Reward) error {
	return r.store.write(ctx, func(t tables) error {
		if _, ok := t.rewards[rw.ID]; !ok {
			return rewardNotFound(rw.ID)
		}
		t.rewards.put(rw.ID, rw)
		return nil
	})
}

func (r *rewardRepository) DecrementStock(ctx context.Context, id string) (int, error) {
	var remaining int
	err := r.store.write(ctx, func(t tables) error {
		rw, ok := t.rewards.get(id)
		if !ok {
			return rewardNotFound(id)
		}
		if rw.StockAvailable == nil || *rw.StockAvailable <= 0 {
			return reward.ErrOutOfStock(id)
		}
		remaining = *rw.StockAvailable - 1
		rw.StockAvailable = lo.ToPtr(remaining)
		t.rewards.put(id, rw)
		return nil
	})
	return remaining, err
}

func (r *rewardRepository) CreateRedemption(ctx context.Context, rd *reward.Redemption) error {
	return r.store.write(ctx, func(t tables) error {
		if _, ok := t.memberships[rd.MembershipID]; !ok {
			return memberNotFound("membership_id", rd.MembershipID)
		}
		if rd.IdempotencyKey != nil {
			for _, existing := range t.redemptions {
				if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *rd.IdempotencyKey {
					return ierr.NewError("redemption already exists").
						WithHint("A redemption with this idempotency key already exists").
						Mark(ierr.ErrAlreadyExists)
				}
			}
		}
		t.redemptions.put(rd.ID, rd)
		return nil
	})
}

func (r *rewardRepository) GetRedemptionByIdempotencyKey(ctx context.Context, key string) (*reward.Redemption, error) {
	var found []*reward.Redemption
	r.store.read(func(t tables) {
		found = t.redemptions.filter(func(rd *reward.Redemption) bool {
			return rd.IdempotencyKey != nil && *rd.IdempotencyKey == key
		}, nil)
	})
	if len(found) == 0 {
		return nil, ierr.NewError("redemption not found").
			WithHint("Redemption not found").
			WithReportableDetails(map[string]any{"idempotency_key": key}).
			Mark(ierr.ErrNotFound)
	}
	return found[0], nil
}

func (r *rewardRepository) ListRedemptions(ctx context.Context, filter *types.RedemptionFilter) ([]*reward.Redemption, error) {
	var rows []*reward.Redemption
	r.store.read(func(t tables) {
		rows = t.redemptions.filter(redemptionMatcher(filter), func(a, b *reward.Redemption) bool {
			return ordered(types.OrderDesc, a.CreatedAt.Compare(b.CreatedAt), a.ID, b.ID)
		})
	})
	return paginate(rows, filter.QueryFilter), nil
}

func (r *rewardRepository) CountRedemptions(ctx context.Context, filter *types.RedemptionFilter) (int, error) {
	var rows []*reward.Redemption
	r.store.read(func(t tables) { rows = t.redemptions.filter(redemptionMatcher(filter), nil) })
	return len(rows), nil
}

func redemptionMatcher(filter *types.RedemptionFilter) func(*reward.Redemption) bool {
	return func(rd *reward.Redemption) bool {
		if filter == nil {
			return true
		}
		if filter.MembershipID != nil && rd.MembershipID != *filter.MembershipID {
			return false
		}
		if filter.GuestID != nil && rd.GuestID != *filter.GuestID {
			return false
		}
		if filter.RewardID != nil && rd.RewardID != *filter.RewardID {
			return false
		}
		return filter.TimeRangeFilter.Contains(rd.CreatedAt)
	}
}
