package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/innkeep/loyalty/internal/domain/rule"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/innkeep/loyalty/internal/postgres"
	"github.com/innkeep/loyalty/internal/types"
)

type ruleRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewRuleRepository creates a new instance of rule repository
func NewRuleRepository(db *postgres.DB, logger *logger.Logger) rule.Repository {
	return &ruleRepository{
		db:     db,
		logger: logger,
	}
}

func (r *ruleRepository) Create(ctx context.Context, rl *rule.Rule) error {
	query := `
		INSERT INTO loyalty_rules (
			id, name, description, trigger, conditions, action, is_active, priority,
			max_executions_per_user, expiry_days, execution_count, last_executed_at,
			status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :name, :description, :trigger, :conditions, :action, :is_active, :priority,
			:max_executions_per_user, :expiry_days, :execution_count, :last_executed_at,
			:status, :created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating rule", "rule_id", rl.ID, "trigger", rl.Trigger)

	if _, err := r.db.NamedExecContext(ctx, query, rl); err != nil {
		return postgres.WrapError(err, "create rule")
	}
	return nil
}

func (r *ruleRepository) Get(ctx context.Context, id string) (*rule.Rule, error) {
	var rl rule.Rule
	query := `SELECT * FROM loyalty_rules WHERE id = $1 AND status != $2`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &rl, query, id, types.StatusDeleted); err != nil {
		if err == sql.ErrNoRows {
			return nil, notFoundError(ierr.ErrRuleNotFound, "Rule not found", map[string]any{"rule_id": id})
		}
		return nil, postgres.WrapError(err, "get rule")
	}
	return &rl, nil
}

func (r *ruleRepository) List(ctx context.Context, filter *types.RuleFilter) ([]*rule.Rule, error) {
	where, params := ruleConditions(filter)
	query := fmt.Sprintf(`SELECT * FROM loyalty_rules %s ORDER BY %s`, where, orderBy(filter.QueryFilter, "priority"))
	query += pagination(filter.QueryFilter, params)

	var rules []*rule.Rule
	if err := r.db.NamedSelectContext(ctx, &rules, query, params); err != nil {
		return nil, postgres.WrapError(err, "list rules")
	}
	return rules, nil
}

func (r *ruleRepository) Count(ctx context.Context, filter *types.RuleFilter) (int, error) {
	where, params := ruleConditions(filter)

	var count int
	if err := r.db.NamedGetContext(ctx, &count, `SELECT COUNT(*) FROM loyalty_rules `+where, params); err != nil {
		return 0, postgres.WrapError(err, "count rules")
	}
	return count, nil
}

func ruleConditions(filter *types.RuleFilter) (string, map[string]interface{}) {
	conds := []string{"status != :deleted"}
	params := map[string]interface{}{"deleted": types.StatusDeleted}

	if filter == nil {
		return whereClause(conds), params
	}
	if filter.QueryFilter != nil && filter.Status != nil {
		conds = append(conds, "status = :status")
		params["status"] = *filter.Status
	}
	if len(filter.RuleIDs) > 0 {
		conds = append(conds, "id IN (:rule_ids)")
		params["rule_ids"] = filter.RuleIDs
	}
	if filter.Trigger != nil {
		conds = append(conds, "trigger = :trigger")
		params["trigger"] = *filter.Trigger
	}
	if filter.IsActive != nil {
		conds = append(conds, "is_active = :is_active")
		params["is_active"] = *filter.IsActive
	}
	return whereClause(conds), params
}

func (r *ruleRepository) Update(ctx context.Context, rl *rule.Rule) error {
	query := `
		UPDATE loyalty_rules
		SET
			name = :name,
			description = :description,
			trigger = :trigger,
			conditions = :conditions,
			action = :action,
			is_active = :is_active,
			priority = :priority,
			max_executions_per_user = :max_executions_per_user,
			expiry_days = :expiry_days,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	r.logger.Debugw("updating rule", "rule_id", rl.ID)

	result, err := r.db.NamedExecContext(ctx, query, rl)
	if err != nil {
		return postgres.WrapError(err, "update rule")
	}
	return expectAffected(result, notFoundError(ierr.ErrRuleNotFound, "Rule not found", map[string]any{"rule_id": rl.ID}))
}

func (r *ruleRepository) ListActiveByTrigger(ctx context.Context, trigger types.RuleTrigger) ([]*rule.Rule, error) {
	query := `
		SELECT * FROM loyalty_rules
		WHERE trigger = $1
		AND is_active = TRUE
		AND status = $2
		ORDER BY priority DESC, created_at ASC, id ASC`

	var rules []*rule.Rule
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rules, query, trigger, types.StatusPublished); err != nil {
		return nil, postgres.WrapError(err, "list active rules")
	}
	return rules, nil
}

func (r *ruleRepository) IncrementExecutionCount(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE loyalty_rules
		SET execution_count = execution_count + 1, last_executed_at = $2
		WHERE id = $1`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query, id, at)
	if err != nil {
		return postgres.WrapError(err, "increment rule execution count")
	}
	return expectAffected(result, notFoundError(ierr.ErrRuleNotFound, "Rule not found", map[string]any{"rule_id": id}))
}

func (r *ruleRepository) CreateExecution(ctx context.Context, e *rule.Execution) error {
	query := `
		INSERT INTO rule_executions (
			id, rule_id, guest_id, membership_id, event_id, trigger, points_awarded,
			execution_status, reason, transaction_id, idempotency_key, executed_at
		) VALUES (
			:id, :rule_id, :guest_id, :membership_id, :event_id, :trigger, :points_awarded,
			:execution_status, :reason, :transaction_id, :idempotency_key, :executed_at
		)`

	r.logger.Debugw("recording rule execution",
		"execution_id", e.ID,
		"rule_id", e.RuleID,
		"membership_id", e.MembershipID,
		"execution_status", e.ExecutionStatus,
	)

	if _, err := r.db.NamedExecContext(ctx, query, e); err != nil {
		if postgres.IsUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("This rule has already been applied to the event").
				Mark(ierr.ErrAlreadyExists)
		}
		return postgres.WrapError(err, "create rule execution")
	}
	return nil
}

func (r *ruleRepository) GetSuccessfulExecutionByKey(ctx context.Context, key string) (*rule.Execution, error) {
	query := `SELECT * FROM rule_executions WHERE idempotency_key = $1 AND execution_status = $2`

	var e rule.Execution
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &e, query, key, types.ExecutionStatusSuccess); err != nil {
		if err == sql.ErrNoRows {
			return nil, notFoundError(ierr.ErrNotFound, "Rule execution not found", map[string]any{"idempotency_key": key})
		}
		return nil, postgres.WrapError(err, "get rule execution")
	}
	return &e, nil
}

func (r *ruleRepository) CountSuccessfulExecutions(ctx context.Context, ruleID, membershipID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM rule_executions
		WHERE rule_id = $1 AND membership_id = $2 AND execution_status = $3`

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, query, ruleID, membershipID, types.ExecutionStatusSuccess); err != nil {
		return 0, postgres.WrapError(err, "count rule executions")
	}
	return count, nil
}

func (r *ruleRepository) ListExecutions(ctx context.Context, filter *types.RuleExecutionFilter) ([]*rule.Execution, error) {
	where, params := executionConditions(filter)
	query := fmt.Sprintf(`SELECT * FROM rule_executions %s ORDER BY executed_at DESC, id DESC`, where)
	query += pagination(filter.QueryFilter, params)

	var executions []*rule.Execution
	if err := r.db.NamedSelectContext(ctx, &executions, query, params); err != nil {
		return nil, postgres.WrapError(err, "list rule executions")
	}
	return executions, nil
}

func (r *ruleRepository) CountExecutions(ctx context.Context, filter *types.RuleExecutionFilter) (int, error) {
	where, params := executionConditions(filter)

	var count int
	if err := r.db.NamedGetContext(ctx, &count, `SELECT COUNT(*) FROM rule_executions `+where, params); err != nil {
		return 0, postgres.WrapError(err, "count rule executions")
	}
	return count, nil
}

func executionConditions(filter *types.RuleExecutionFilter) (string, map[string]interface{}) {
	conds := []string{}
	params := map[string]interface{}{}

	if filter == nil {
		return "", params
	}
	if filter.RuleID != nil {
		conds = append(conds, "rule_id = :rule_id")
		params["rule_id"] = *filter.RuleID
	}
	if filter.GuestID != nil {
		conds = append(conds, "guest_id = :guest_id")
		params["guest_id"] = *filter.GuestID
	}
	if filter.MembershipID != nil {
		conds = append(conds, "membership_id = :membership_id")
		params["membership_id"] = *filter.MembershipID
	}
	if filter.EventID != nil {
		conds = append(conds, "event_id = :event_id")
		params["event_id"] = *filter.EventID
	}
	if filter.ExecutionStatus != nil {
		conds = append(conds, "execution_status = :execution_status")
		params["execution_status"] = *filter.ExecutionStatus
	}
	conds = append(conds, timeRangeConditions("executed_at", filter.TimeRangeFilter, params)...)
	return whereClause(conds), params
}
