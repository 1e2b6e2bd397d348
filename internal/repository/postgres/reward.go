package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/innkeep/loyalty/internal/domain/reward"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/innkeep/loyalty/internal/postgres"
	"github.com/innkeep/loyalty/internal/types"
)

type rewardRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewRewardRepository creates a new instance of reward repository
func NewRewardRepository(db *postgres.DB, logger *logger.Logger) reward.Repository {
	return &rewardRepository{
		db:     db,
		logger: logger,
	}
}

func (r *rewardRepository) Create(ctx context.Context, rw *reward.Reward) error {
	query := `
		INSERT INTO rewards (
			id, name, description, category, points_cost, min_tier_required, stock_available,
			max_redemptions_per_guest, validity_days, reward_status, metadata,
			status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :name, :description, :category, :points_cost, :min_tier_required, :stock_available,
			:max_redemptions_per_guest, :validity_days, :reward_status, :metadata,
			:status, :created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating reward", "reward_id", rw.ID, "name", rw.Name)

	if _, err := r.db.NamedExecContext(ctx, query, rw); err != nil {
		return postgres.WrapError(err, "create reward")
	}
	return nil
}

func (r *rewardRepository) Get(ctx context.Context, id string) (*reward.Reward, error) {
	return r.get(ctx, `SELECT * FROM rewards WHERE id = $1`, id)
}

func (r *rewardRepository) GetForUpdate(ctx context.Context, id string) (*reward.Reward, error) {
	return r.get(ctx, `SELECT * FROM rewards WHERE id = $1 FOR UPDATE`, id)
}

func (r *rewardRepository) get(ctx context.Context, query, id string) (*reward.Reward, error) {
	var rw reward.Reward
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &rw, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, notFoundError(ierr.ErrRewardNotFound, "Reward not found", map[string]any{"reward_id": id})
		}
		return nil, postgres.WrapError(err, "get reward")
	}
	return &rw, nil
}

func (r *rewardRepository) List(ctx context.Context, filter *types.RewardFilter) ([]*reward.Reward, error) {
	where, params := rewardConditions(filter)
	query := fmt.Sprintf(`SELECT * FROM rewards %s ORDER BY %s`, where, orderBy(filter.QueryFilter, "created_at"))
	query += pagination(filter.QueryFilter, params)

	var rewards []*reward.Reward
	if err := r.db.NamedSelectContext(ctx, &rewards, query, params); err != nil {
		return nil, postgres.WrapError(err, "list rewards")
	}
	return rewards, nil
}

func (r *rewardRepository) Count(ctx context.Context, filter *types.RewardFilter) (int, error) {
	where, params := rewardConditions(filter)

	var count int
	if err := r.db.NamedGetContext(ctx, &count, `SELECT COUNT(*) FROM rewards `+where, params); err != nil {
		return 0, postgres.WrapError(err, "count rewards")
	}
	return count, nil
}

func rewardConditions(filter *types.RewardFilter) (string, map[string]interface{}) {
	conds := []string{}
	params := map[string]interface{}{}

	if filter == nil {
		return "", params
	}
	if filter.QueryFilter != nil && filter.Status != nil {
		conds = append(conds, "status = :status")
		params["status"] = *filter.Status
	}
	if len(filter.RewardIDs) > 0 {
		conds = append(conds, "id IN (:reward_ids)")
		params["reward_ids"] = filter.RewardIDs
	}
	if filter.Category != nil {
		conds = append(conds, "category = :category")
		params["category"] = *filter.Category
	}
	if filter.RewardStatus != nil {
		conds = append(conds, "reward_status = :reward_status")
		params["reward_status"] = *filter.RewardStatus
	}
	return whereClause(conds), params
}

func (r *rewardRepository) Update(ctx context.Context, rw *reward.Reward) error {
	query := `
		UPDATE rewards
		SET
			name = :name,
			description = :description,
			category = :category,
			points_cost = :points_cost,
			min_tier_required = :min_tier_required,
			stock_available = :stock_available,
			max_redemptions_per_guest = :max_redemptions_per_guest,
			validity_days = :validity_days,
			reward_status = :reward_status,
			metadata = :metadata,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	r.logger.Debugw("updating reward", "reward_id", rw.ID)

	result, err := r.db.NamedExecContext(ctx, query, rw)
	if err != nil {
		return postgres.WrapError(err, "update reward")
	}
	return expectAffected(result, notFoundError(ierr.ErrRewardNotFound, "Reward not found", map[string]any{"reward_id": rw.ID}))
}

// DecrementStock is a conditional update, the row is never written below zero
func (r *rewardRepository) DecrementStock(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE rewards
		SET stock_available = stock_available - 1, updated_at = NOW()
		WHERE id = $1
		AND stock_available IS NOT NULL
		AND stock_available > 0
		RETURNING stock_available`

	var remaining int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &remaining, query, id); err != nil {
		if err == sql.ErrNoRows {
			return 0, reward.ErrOutOfStock(id)
		}
		return 0, postgres.WrapError(err, "decrement reward stock")
	}

	r.logger.Debugw("decremented reward stock", "reward_id", id, "remaining", remaining)
	return remaining, nil
}

func (r *rewardRepository) CreateRedemption(ctx context.Context, rd *reward.Redemption) error {
	query := `
		INSERT INTO reward_redemptions (
			id, membership_id, guest_id, reward_id, points_spent, code, transaction_id,
			idempotency_key, expires_at, created_at, created_by
		) VALUES (
			:id, :membership_id, :guest_id, :reward_id, :points_spent, :code, :transaction_id,
			:idempotency_key, :expires_at, :created_at, :created_by
		)`

	r.logger.Debugw("creating redemption",
		"redemption_id", rd.ID,
		"membership_id", rd.MembershipID,
		"reward_id", rd.RewardID,
	)

	if _, err := r.db.NamedExecContext(ctx, query, rd); err != nil {
		if postgres.IsUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("A redemption with this idempotency key already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return postgres.WrapError(err, "create redemption")
	}
	return nil
}

func (r *rewardRepository) GetRedemptionByIdempotencyKey(ctx context.Context, key string) (*reward.Redemption, error) {
	var rd reward.Redemption
	err := r.db.GetQuerier(ctx).GetContext(ctx, &rd, `SELECT * FROM reward_redemptions WHERE idempotency_key = $1`, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, notFoundError(ierr.ErrNotFound, "Redemption not found", map[string]any{"idempotency_key": key})
		}
		return nil, postgres.WrapError(err, "get redemption")
	}
	return &rd, nil
}

func (r *rewardRepository) ListRedemptions(ctx context.Context, filter *types.RedemptionFilter) ([]*reward.Redemption, error) {
	where, params := redemptionConditions(filter)
	query := fmt.Sprintf(`SELECT * FROM reward_redemptions %s ORDER BY created_at DESC, id DESC`, where)
	query += pagination(filter.QueryFilter, params)

	var redemptions []*reward.Redemption
	if err := r.db.NamedSelectContext(ctx, &redemptions, query, params); err != nil {
		return nil, postgres.WrapError(err, "list redemptions")
	}
	return redemptions, nil
}

func (r *rewardRepository) CountRedemptions(ctx context.Context, filter *types.RedemptionFilter) (int, error) {
	where, params := redemptionConditions(filter)

	var count int
	if err := r.db.NamedGetContext(ctx, &count, `SELECT COUNT(*) FROM reward_redemptions `+where, params); err != nil {
		return 0, postgres.WrapError(err, "count redemptions")
	}
	return count, nil
}

func redemptionConditions(filter *types.RedemptionFilter) (string, map[string]interface{}) {
	conds := []string{}
	params := map[string]interface{}{}

	if filter == nil {
		return "", params
	}
	if filter.MembershipID != nil {
		conds = append(conds, "membership_id = :membership_id")
		params["membership_id"] = *filter.MembershipID
	}
	if filter.GuestID != nil {
		conds = append(conds, "guest_id = :guest_id")
		params["guest_id"] = *filter.GuestID
	}
	if filter.RewardID != nil {
		conds = append(conds, "reward_id = :reward_id")
		params["reward_id"] = *filter.RewardID
	}
	conds = append(conds, timeRangeConditions("created_at", filter.TimeRangeFilter, params)...)
	return whereClause(conds), params
}
