package reward

import (
	"time"
)

// Redemption records a successful exchange of points for a reward
type Redemption struct {
	ID             string     `db:"id" json:"id"`
	MembershipID   string     `db:"membership_id" json:"membership_id"`
	GuestID        string     `db:"guest_id" json:"guest_id"`
	RewardID       string     `db:"reward_id" json:"reward_id"`
	PointsSpent    int64      `db:"points_spent" json:"points_spent"`
	Code           string     `db:"code" json:"code"`
	TransactionID  string     `db:"transaction_id" json:"transaction_id"`
	IdempotencyKey *string    `db:"idempotency_key" json:"idempotency_key,omitempty"`
	ExpiresAt      *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	CreatedBy      string     `db:"created_by" json:"created_by"`
}

func (r *Redemption) TableName() string {
	return "reward_redemptions"
}
