package reward

import (
	"context"

	"github.com/innkeep/loyalty/internal/types"
)

// Repository defines the interface for reward and redemption persistence operations
type Repository interface {
	// Reward operations
	Create(ctx context.Context, r *Reward) error
	Get(ctx context.Context, id string) (*Reward, error)
	// GetForUpdate loads the reward and holds its row lock until the surrounding transaction ends
	GetForUpdate(ctx context.Context, id string) (*Reward, error)
	List(ctx context.Context, filter *types.RewardFilter) ([]*Reward, error)
	Count(ctx context.Context, filter *types.RewardFilter) (int, error)
	Update(ctx context.Context, r *Reward) error
	// DecrementStock takes one unit only while stock_available is positive and
	// returns the remaining stock. Fails with ErrOutOfStock otherwise.
	DecrementStock(ctx context.Context, id string) (int, error)

	// Redemption operations
	CreateRedemption(ctx context.Context, r *Redemption) error
	GetRedemptionByIdempotencyKey(ctx context.Context, key string) (*Redemption, error)
	ListRedemptions(ctx context.Context, filter *types.RedemptionFilter) ([]*Redemption, error)
	CountRedemptions(ctx context.Context, filter *types.RedemptionFilter) (int, error)
}
