package memory

import (
	"cmp"
	"context"
	"strings"
	"time"

	"github.com/innkeep/loyalty/internal/domain/rule"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/samber/lo"
)

type ruleRepository struct {
	store *Store
}

// NewRuleRepository creates a rule repository backed by the store
func NewRuleRepository(store *Store) rule.Repository {
	return &ruleRepository{store: store}
}

func ruleNotFound(id string) error {
	return ierr.NewError("rule not found").
		WithHint("Rule not found").
		WithReportableDetails(map[string]any{"rule_id": id}).
		Mark(ierr.ErrRuleNotFound)
}

func (r *ruleRepository) Create(ctx context.Context, rl *rule.Rule) error {
	return r.store.write(ctx, func(t tables) error {
		if _, ok := t.rules[rl.ID]; ok {
			return ierr.NewError("rule already exists").
				WithHint("A rule with this id already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		t.rules.put(rl.ID, rl)
		return nil
	})
}

func (r *ruleRepository) Get(ctx context.Context, id string) (*rule.Rule, error) {
	var (
		rl *rule.Rule
		ok bool
	)
	r.store.read(func(t tables) { rl, ok = t.rules.get(id) })
	if !ok || rl.Status == types.StatusDeleted {
		return nil, ruleNotFound(id)
	}
	return rl, nil
}

func (r *ruleRepository) List(ctx context.Context, filter *types.RuleFilter) ([]*rule.Rule, error) {
	var rows []*rule.Rule
	r.store.read(func(t tables) {
		rows = t.rules.filter(ruleMatcher(filter), ruleOrder(filter))
	})
	return paginate(rows, filter.QueryFilter), nil
}

func (r *ruleRepository) Count(ctx context.Context, filter *types.RuleFilter) (int, error) {
	var rows []*rule.Rule
	r.store.read(func(t tables) { rows = t.rules.filter(ruleMatcher(filter), nil) })
	return len(rows), nil
}

func ruleMatcher(filter *types.RuleFilter) func(*rule.Rule) bool {
	return func(rl *rule.Rule) bool {
		if rl.Status == types.StatusDeleted {
			return false
		}
		if filter == nil {
			return true
		}
		if !statusMatches(filter.QueryFilter, rl.Status) {
			return false
		}
		if len(filter.RuleIDs) > 0 && !lo.Contains(filter.RuleIDs, rl.ID) {
			return false
		}
		if filter.Trigger != nil && rl.Trigger != *filter.Trigger {
			return false
		}
		if filter.IsActive != nil && rl.IsActive != *filter.IsActive {
			return false
		}
		return true
	}
}

func ruleOrder(filter *types.RuleFilter) func(a, b *rule.Rule) bool {
	q := types.NewDefaultQueryFilter()
	if filter != nil && filter.QueryFilter != nil {
		q = filter.QueryFilter
	}
	return func(a, b *rule.Rule) bool {
		var c int
		switch q.GetSort() {
		case "priority":
			c = cmp.Compare(a.Priority, b.Priority)
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

func (r *ruleRepository) Update(ctx context.Context, rl *rule.Rule) error {
	return r.store.write(ctx, func(t tables) error {
		if _, ok := t.rules[rl.ID]; !ok {
			return ruleNotFound(rl.ID)
		}
		t.rules.put(rl.ID, rl)
		return nil
	})
}

func (r *ruleRepository) ListActiveByTrigger(ctx context.Context, trigger types.RuleTrigger) ([]*rule.Rule, error) {
	var rows []*rule.Rule
	r.store.read(func(t tables) {
		rows = t.rules.filter(func(rl *rule.Rule) bool {
			return rl.Trigger == trigger && rl.IsActive && rl.Status == types.StatusPublished
		}, func(a, b *rule.Rule) bool {
			if a.Priority != b.Priority {
				return a.Priority > b.Priority
			}
			return ordered(types.OrderAsc, a.CreatedAt.Compare(b.CreatedAt), a.ID, b.ID)
		})
	})
	return rows, nil
}

func (r *ruleRepository) IncrementExecutionCount(ctx context.Context, id string, at time.Time) error {
	return r.store.write(ctx, func(t tables) error {
		rl, ok := t.rules.get(id)
		if !ok {
			return ruleNotFound(id)
		}
		rl.ExecutionCount++
		rl.LastExecutedAt = lo.ToPtr(at)
		t.rules.put(id, rl)
		return nil
	})
}

func (r *ruleRepository) CreateExecution(ctx context.Context, e *rule.Execution) error {
	return r.store.write(ctx, func(t tables) error {
		if e.IsSuccess() && e.IdempotencyKey != nil {
			for _, existing := range t.executions {
				if existing.IsSuccess() && existing.IdempotencyKey != nil && *existing.IdempotencyKey == *e.IdempotencyKey {
					return ierr.NewError("rule execution already exists").
						WithHint("This rule has already been applied to the event").
						Mark(ierr.ErrAlreadyExists)
				}
			}
		}
		t.executions.put(e.ID, e)
		return nil
	})
}

func (r *ruleRepository) GetSuccessfulExecutionByKey(ctx context.Context, key string) (*rule.Execution, error) {
	var found []*rule.Execution
	r.store.read(func(t tables) {
		found = t.executions.filter(func(e *rule.Execution) bool {
			return e.IsSuccess() && e.IdempotencyKey != nil && *e.IdempotencyKey == key
		}, nil)
	})
	if len(found) == 0 {
		return nil, ierr.NewError("rule execution not found").
			WithHint("Rule execution not found").
			WithReportableDetails(map[string]any{"idempotency_key": key}).
			Mark(ierr.ErrNotFound)
	}
	return found[0], nil
}

func (r *ruleRepository) CountSuccessfulExecutions(ctx context.Context, ruleID, membershipID string) (int, error) {
	var rows []*rule.Execution
	r.store.read(func(t tables) {
		rows = t.executions.filter(func(e *rule.Execution) bool {
			return e.RuleID == ruleID && e.MembershipID == membershipID && e.IsSuccess()
		}, nil)
	})
	return len(rows), nil
}

func (r *ruleRepository) ListExecutions(ctx context.Context, filter *types.RuleExecutionFilter) ([]*rule.Execution, error) {
	var rows []*rule.Execution
	r.store.read(func(t tables) {
		rows = t.executions.filter(executionMatcher(filter), func(a, b *rule.Execution) bool {
			return ordered(types.OrderDesc, a.ExecutedAt.Compare(b.ExecutedAt), a.ID, b.ID)
		})
	})
	return paginate(rows, filter.QueryFilter), nil
}

func (r *ruleRepository) CountExecutions(ctx context.Context, filter *types.RuleExecutionFilter) (int, error) {
	var rows []*rule.Execution
	r.store.read(func(t tables) { rows = t.executions.filter(executionMatcher(filter), nil) })
	return len(rows), nil
}

func executionMatcher(filter *types.RuleExecutionFilter) func(*rule.Execution) bool {
	return func(e *rule.Execution) bool {
		if filter == nil {
			return true
		}
		if filter.RuleID != nil && e.RuleID != *filter.RuleID {
			return false
		}
		if filter.GuestID != nil && e.GuestID != *filter.GuestID {
			return false
		}
		if filter.MembershipID != nil && e.MembershipID != *filter.MembershipID {
			return false
		}
		if filter.EventID != nil && e.EventID != *filter.EventID {
			return false
		}
		if filter.ExecutionStatus != nil && e.ExecutionStatus != *filter.ExecutionStatus {
			return false
		}
		return filter.TimeRangeFilter.Contains(e.ExecutedAt)
	}
}
