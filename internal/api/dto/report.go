package dto

import (
	"time"

	"github.com/innkeep/loyalty/internal/domain/membership"
)

// StatsResponse is a derived view over the ledger and memberships. It may be
// slightly stale and is never used to compute balances.
type StatsResponse struct {
	StartTime           *time.Time                     `json:"start_time,omitempty"`
	EndTime             *time.Time                     `json:"end_time,omitempty"`
	TotalPointsIssued   int64                          `json:"total_points_issued"`
	TotalPointsRedeemed int64                          `json:"total_points_redeemed"`
	PointsByType        []*membership.TransactionTotal `json:"points_by_type"`
	CurrentBalance      int64                          `json:"current_balance"`
	MemberCount         int                            `json:"member_count"`
	ActiveMemberCount   int                            `json:"active_member_count"`
	TierDistribution    []*membership.TierSummary      `json:"tier_distribution"`
	MostActiveMembers   []*membership.MemberActivity   `json:"most_active_members"`
	GeneratedAt         time.Time                      `json:"generated_at"`
}
