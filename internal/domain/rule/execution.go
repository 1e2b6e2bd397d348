package rule

import (
	"time"

	"github.com/innkeep/loyalty/internal/types"
)

// Execution is the audit record of one rule evaluation against one event
type Execution struct {
	ID              string                `db:"id" json:"id"`
	RuleID          string                `db:"rule_id" json:"rule_id"`
	GuestID         string                `db:"guest_id" json:"guest_id"`
	MembershipID    string                `db:"membership_id" json:"membership_id"`
	EventID         string                `db:"event_id" json:"event_id,omitempty"`
	Trigger         types.RuleTrigger     `db:"trigger" json:"trigger"`
	PointsAwarded   int64                 `db:"points_awarded" json:"points_awarded"`
	ExecutionStatus types.ExecutionStatus `db:"execution_status" json:"execution_status"`
	Reason          string                `db:"reason" json:"reason,omitempty"`
	TransactionID   *string               `db:"transaction_id" json:"transaction_id,omitempty"`
	IdempotencyKey  *string               `db:"idempotency_key" json:"idempotency_key,omitempty"`
	ExecutedAt      time.Time             `db:"executed_at" json:"executed_at"`
}

func (e *Execution) TableName() string {
	return "rule_executions"
}

func (e *Execution) IsSuccess() bool {
	return e.ExecutionStatus == types.ExecutionStatusSuccess
}
