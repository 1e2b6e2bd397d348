package rule

import (
	"context"
	"time"

	"github.com/innkeep/loyalty/internal/types"
)

// Repository defines the interface for rule and execution persistence operations
type Repository interface {
	// Rule operations
	Create(ctx context.Context, r *Rule) error
	Get(ctx context.Context, id string) (*Rule, error)
	List(ctx context.Context, filter *types.RuleFilter) ([]*Rule, error)
	Count(ctx context.Context, filter *types.RuleFilter) (int, error)
	Update(ctx context.Context, r *Rule) error
	// ListActiveByTrigger returns active rules for the trigger, highest priority first,
	// ties broken by creation time
	ListActiveByTrigger(ctx context.Context, trigger types.RuleTrigger) ([]*Rule, error)
	// IncrementExecutionCount bumps the counter in place and stamps the last execution time
	IncrementExecutionCount(ctx context.Context, id string, at time.Time) error

	// Execution operations
	CreateExecution(ctx context.Context, e *Execution) error
	// GetSuccessfulExecutionByKey finds the successful execution recorded under key
	GetSuccessfulExecutionByKey(ctx context.Context, key string) (*Execution, error)
	CountSuccessfulExecutions(ctx context.Context, ruleID, membershipID string) (int, error)
	ListExecutions(ctx context.Context, filter *types.RuleExecutionFilter) ([]*Execution, error)
	CountExecutions(ctx context.Context, filter *types.RuleExecutionFilter) (int, error)
}
