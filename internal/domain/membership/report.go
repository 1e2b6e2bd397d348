package membership

import "github.com/innkeep/loyalty/internal/types"

// BalanceSummary is the current outstanding balance across all memberships
type BalanceSummary struct {
	MemberCount       int   `db:"member_count" json:"member_count"`
	ActiveMemberCount int   `db:"active_member_count" json:"active_member_count"`
	TotalPoints       int64 `db:"total_points" json:"total_points"`
}

// TierSummary groups memberships by tier
type TierSummary struct {
	Tier   types.Tier `db:"tier" json:"tier"`
	Count  int        `db:"count" json:"count"`
	Points int64      `db:"points" json:"points"`
}

// TransactionTotal aggregates ledger movement of one transaction type.
// Credited is the sum of positive deltas, Debited the sum of absolute negative deltas.
type TransactionTotal struct {
	Type     types.TransactionType `db:"type" json:"type"`
	Count    int                   `db:"count" json:"count"`
	Credited int64                 `db:"credited" json:"credited"`
	Debited  int64                 `db:"debited" json:"debited"`
}

// MemberActivity ranks a membership by ledger activity in a window
type MemberActivity struct {
	MembershipID     string     `db:"membership_id" json:"membership_id"`
	GuestID          string     `db:"guest_id" json:"guest_id"`
	TransactionCount int        `db:"transaction_count" json:"transaction_count"`
	Points           int64      `db:"points" json:"points"`
	Tier             types.Tier `db:"tier" json:"tier"`
}
