package membership

import (
	"context"
	"time"

	"github.com/innkeep/loyalty/internal/types"
)

// Repository defines the interface for membership and ledger persistence operations
type Repository interface {
	// Membership operations
	Create(ctx context.Context, m *Membership) error
	Get(ctx context.Context, id string) (*Membership, error)
	GetByGuestID(ctx context.Context, guestID string) (*Membership, error)
	// GetForUpdate loads the membership and holds its row lock until the surrounding transaction ends
	GetForUpdate(ctx context.Context, id string) (*Membership, error)
	GetByGuestIDForUpdate(ctx context.Context, guestID string) (*Membership, error)
	List(ctx context.Context, filter *types.MembershipFilter) ([]*Membership, error)
	Count(ctx context.Context, filter *types.MembershipFilter) (int, error)
	Update(ctx context.Context, m *Membership) error
	// Delete removes the membership together with its ledger, redemptions and rule executions
	Delete(ctx context.Context, id string) error

	// Ledger operations
	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransactionByID(ctx context.Context, id string) (*Transaction, error)
	GetTransactionByIdempotencyKey(ctx context.Context, key string) (*Transaction, error)
	ListTransactions(ctx context.Context, filter *types.TransactionFilter) ([]*Transaction, error)
	CountTransactions(ctx context.Context, filter *types.TransactionFilter) (int, error)
	// ListExpiredCredits returns earn and bonus transactions whose expiry is at or before asOf
	// and that no expiry transaction references yet, ordered by (expires_at, id) and
	// starting strictly after the cursor when one is given
	ListExpiredCredits(ctx context.Context, asOf time.Time, after *CreditCursor, limit int) ([]*Transaction, error)

	// Reporting operations
	GetBalanceSummary(ctx context.Context) (*BalanceSummary, error)
	GetTierDistribution(ctx context.Context) ([]*TierSummary, error)
	GetTransactionTotals(ctx context.Context, window *types.TimeRangeFilter) ([]*TransactionTotal, error)
	GetMostActiveMembers(ctx context.Context, window *types.TimeRangeFilter, limit int) ([]*MemberActivity, error)
}
