package service

import (
	"context"
	"fmt"
	"time"

	"github.com/innkeep/loyalty/internal/api/dto"
	"github.com/innkeep/loyalty/internal/domain/membership"
	"github.com/innkeep/loyalty/internal/domain/rule"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/idempotency"
	"github.com/innkeep/loyalty/internal/publisher"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/samber/lo"
)

const (
	reasonCapReached      = "max executions per user reached"
	reasonNoBasePoints    = "event carries no base points to multiply"
	reasonNoBonus         = "multiplier yields no bonus points"
	reasonTierNotHigher   = "member is already at or above the target tier"
	reasonUnsupportedRule = "unsupported rule action"
)

type RuleService interface {
	CreateRule(ctx context.Context, req *dto.CreateRuleRequest) (*dto.RuleResponse, error)
	GetRule(ctx context.Context, id string) (*dto.RuleResponse, error)
	ListRules(ctx context.Context, filter *types.RuleFilter) (*dto.ListRulesResponse, error)
	UpdateRule(ctx context.Context, id string, req *dto.UpdateRuleRequest) (*dto.RuleResponse, error)
	// DeleteRule deactivates the rule and hides it, its executions keep the reference
	DeleteRule(ctx context.Context, id string) error

	// ProcessEvent runs every active rule for the event's trigger in priority order
	ProcessEvent(ctx context.Context, event *rule.Event) (*dto.ProcessEventResponse, error)

	// TestRule evaluates a rule against a hypothetical event without writing anything
	TestRule(ctx context.Context, id string, req *dto.TestRuleRequest) (*dto.TestRuleResponse, error)

	ListExecutions(ctx context.Context, filter *types.RuleExecutionFilter) (*dto.ListRuleExecutionsResponse, error)
}

type ruleService struct {
	ServiceParams
	idempGen *idempotency.Generator
}

func NewRuleService(params ServiceParams) RuleService {
	return &ruleService{
		ServiceParams: params,
		idempGen:      idempotency.NewGenerator(),
	}
}

func (s *ruleService) CreateRule(ctx context.Context, req *dto.CreateRuleRequest) (*dto.RuleResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rl := req.ToRule(ctx)
	if err := rl.Validate(); err != nil {
		return nil, err
	}

	if err := s.RuleRepo.Create(ctx, rl); err != nil {
		return nil, err
	}

	s.Logger.Infow("rule created",
		"rule_id", rl.ID,
		"trigger", rl.Trigger,
		"action", rl.Action.Type(),
		"priority", rl.Priority,
	)
	return dto.NewRuleResponse(rl), nil
}

func (s *ruleService) GetRule(ctx context.Context, id string) (*dto.RuleResponse, error) {
	if id == "" {
		return nil, ierr.NewError("rule_id is required").
			WithHint("Rule ID is required").
			Mark(ierr.ErrValidation)
	}

	rl, err := s.RuleRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewRuleResponse(rl), nil
}

func (s *ruleService) ListRules(ctx context.Context, filter *types.RuleFilter) (*dto.ListRulesResponse, error) {
	if filter == nil {
		filter = types.NewRuleFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	if err := filter.Validate(); err != nil {
		return nil, err
	}

	rules, err := s.RuleRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	count, err := s.RuleRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(rules, func(rl *rule.Rule, _ int) *dto.RuleResponse {
		return dto.NewRuleResponse(rl)
	})

	resp := types.NewListResponse(items, count, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *ruleService) UpdateRule(ctx context.Context, id string, req *dto.UpdateRuleRequest) (*dto.RuleResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rl, err := s.RuleRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	req.Apply(rl)
	if err := rl.Validate(); err != nil {
		return nil, err
	}

	rl.Touch(ctx)
	if err := s.RuleRepo.Update(ctx, rl); err != nil {
		return nil, err
	}

	s.Logger.Infow("rule updated", "rule_id", rl.ID)
	return dto.NewRuleResponse(rl), nil
}

func (s *ruleService) DeleteRule(ctx context.Context, id string) error {
	rl, err := s.RuleRepo.Get(ctx, id)
	if err != nil {
		return err
	}

	rl.IsActive = false
	rl.Status = types.StatusDeleted
	rl.Touch(ctx)
	if err := s.RuleRepo.Update(ctx, rl); err != nil {
		return err
	}

	s.Logger.Infow("rule deleted", "rule_id", id)
	return nil
}

// ruleOutcome is what a committed rule leaves to do once its transaction is over
type ruleOutcome struct {
	execution    *rule.Execution
	notification *publisher.Notification
	member       *membership.Membership
	previousTier types.Tier
	replayed     bool
}

func (s *ruleService) ProcessEvent(ctx context.Context, event *rule.Event) (*dto.ProcessEventResponse, error) {
	if event == nil {
		return nil, ierr.NewError("event is required").
			WithHint("Event is required").
			Mark(ierr.ErrValidation)
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	m, err := s.resolveMember(ctx, event)
	if err != nil {
		return nil, err
	}
	if err := m.EnsureActive(); err != nil {
		return nil, err
	}

	rules, err := s.RuleRepo.ListActiveByTrigger(ctx, event.Trigger)
	if err != nil {
		return nil, err
	}

	s.Logger.Debugw("processing loyalty event",
		"event_id", event.EventID,
		"trigger", event.Trigger,
		"membership_id", m.ID,
		"candidate_rules", len(rules),
	)

	resp := &dto.ProcessEventResponse{
		EventID:      event.EventID,
		MembershipID: m.ID,
		Executions:   make([]*dto.RuleExecutionResponse, 0, len(rules)),
	}

	for _, rl := range rules {
		outcome, err := s.applyRule(ctx, rl, event, m.ID)
		if err != nil {
			if ierr.IsStorageUnavailable(err) {
				return nil, err
			}

			exec := s.recordFailure(ctx, rl, event, m, err)
			resp.Executions = append(resp.Executions, dto.NewRuleExecutionResponse(exec))
			continue
		}

		resp.Executions = append(resp.Executions, dto.NewRuleExecutionResponse(outcome.execution))
		if outcome.replayed {
			continue
		}

		resp.PointsAwarded += outcome.execution.PointsAwarded
		s.afterCommit(ctx, rl, outcome)
	}

	current, err := s.MembershipRepo.Get(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	resp.Balance = current.Points
	resp.Tier = current.Tier

	s.Logger.Infow("loyalty event processed",
		"event_id", event.EventID,
		"trigger", event.Trigger,
		"membership_id", m.ID,
		"executions", len(resp.Executions),
		"points_awarded", resp.PointsAwarded,
	)
	return resp, nil
}

// resolveMember prefers the membership id and checks it against the guest when both are given
func (s *ruleService) resolveMember(ctx context.Context, event *rule.Event) (*membership.Membership, error) {
	if event.LoyaltyID == "" {
		return s.MembershipRepo.GetByGuestID(ctx, event.GuestID)
	}

	m, err := s.MembershipRepo.Get(ctx, event.LoyaltyID)
	if err != nil {
		return nil, err
	}
	if event.GuestID != "" && m.GuestID != event.GuestID {
		return nil, ierr.NewError("guest does not own membership").
			WithHint("The guest and loyalty membership on the event do not match").
			WithReportableDetails(map[string]any{
				"guest_id":   event.GuestID,
				"loyalty_id": event.LoyaltyID,
			}).
			Mark(ierr.ErrValidation)
	}
	return m, nil
}

// applyRule evaluates and applies one rule inside its own transaction. Skips and
// soft failures are recorded there as well. A returned error means nothing of the
// rule was committed.
func (s *ruleService) applyRule(ctx context.Context, rl *rule.Rule, event *rule.Event, membershipID string) (*ruleOutcome, error) {
	outcome := &ruleOutcome{}

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		m, err := s.MembershipRepo.GetForUpdate(ctx, membershipID)
		if err != nil {
			return err
		}
		outcome.member = m
		outcome.previousTier = m.Tier

		now := time.Now().UTC()
		exec := &rule.Execution{
			ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_RULE_EXECUTION),
			RuleID:       rl.ID,
			GuestID:      m.GuestID,
			MembershipID: m.ID,
			EventID:      event.EventID,
			Trigger:      event.Trigger,
			ExecutedAt:   now,
		}
		outcome.execution = exec

		if event.EventID != "" {
			key := s.idempGen.GenerateKey(idempotency.ScopeRuleExecution, map[string]interface{}{
				"rule_id":  rl.ID,
				"event_id": event.EventID,
			})
			exec.IdempotencyKey = lo.ToPtr(key)

			existing, err := s.RuleRepo.GetSuccessfulExecutionByKey(ctx, key)
			if err == nil {
				outcome.execution = existing
				outcome.replayed = true
				return nil
			}
			if !ierr.IsNotFound(err) {
				return err
			}
		}

		evaluation := rl.Conditions.Evaluate(event.Input(m.Tier, now))
		if !evaluation.Met {
			return s.finish(ctx, rl, exec, types.ExecutionStatusSkipped, evaluation.Reason())
		}

		if rl.MaxExecutionsPerUser != nil {
			count, err := s.RuleRepo.CountSuccessfulExecutions(ctx, rl.ID, m.ID)
			if err != nil {
				return err
			}
			if count >= *rl.MaxExecutionsPerUser {
				return s.finish(ctx, rl, exec, types.ExecutionStatusSkipped, reasonCapReached)
			}
		}

		switch action := rl.Action.Action.(type) {
		case rule.AwardPoints:
			tx, err := postTransaction(ctx, s.MembershipRepo, m, &posting{
				Type:           types.TransactionTypeEarn,
				Points:         action.Points,
				Description:    fmt.Sprintf("Rule %s", rl.Name),
				PerformedBy:    types.DefaultUserID,
				ReferenceType:  types.TransactionReferenceTypeRule,
				ReferenceID:    exec.ID,
				IdempotencyKey: exec.IdempotencyKey,
				ExpiresAt:      rl.ExpiresAt(now, s.Config.Loyalty.DefaultExpiryDays),
			})
			if err != nil {
				return err
			}
			exec.PointsAwarded = tx.Points
			exec.TransactionID = lo.ToPtr(tx.ID)

		case rule.MultiplyPoints:
			if event.Payload.BasePoints == nil {
				return s.finish(ctx, rl, exec, types.ExecutionStatusFailed, reasonNoBasePoints)
			}
			bonus := action.BonusFor(*event.Payload.BasePoints)
			if bonus <= 0 {
				return s.finish(ctx, rl, exec, types.ExecutionStatusSkipped, reasonNoBonus)
			}
			tx, err := postTransaction(ctx, s.MembershipRepo, m, &posting{
				Type:           types.TransactionTypeBonus,
				Points:         bonus,
				Description:    fmt.Sprintf("Rule %s (x%s)", rl.Name, action.Multiplier.String()),
				PerformedBy:    types.DefaultUserID,
				ReferenceType:  types.TransactionReferenceTypeRule,
				ReferenceID:    exec.ID,
				IdempotencyKey: exec.IdempotencyKey,
				ExpiresAt:      rl.ExpiresAt(now, s.Config.Loyalty.DefaultExpiryDays),
			})
			if err != nil {
				return err
			}
			exec.PointsAwarded = tx.Points
			exec.TransactionID = lo.ToPtr(tx.ID)

		case rule.TierUpgrade:
			if !m.ForceTier(action.TargetTier) {
				return s.finish(ctx, rl, exec, types.ExecutionStatusSkipped, reasonTierNotHigher)
			}
			m.Touch(ctx)
			if err := s.MembershipRepo.Update(ctx, m); err != nil {
				return err
			}

		case rule.SendNotification:
			outcome.notification = &publisher.Notification{
				GuestID:      m.GuestID,
				MembershipID: m.ID,
				RuleID:       rl.ID,
				EventID:      event.EventID,
				Message:      action.Message,
			}

		default:
			return s.finish(ctx, rl, exec, types.ExecutionStatusFailed, reasonUnsupportedRule)
		}

		return s.finish(ctx, rl, exec, types.ExecutionStatusSuccess, "")
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// finish writes the execution record and counts successful runs on the rule
func (s *ruleService) finish(ctx context.Context, rl *rule.Rule, exec *rule.Execution, status types.ExecutionStatus, reason string) error {
	exec.ExecutionStatus = status
	exec.Reason = reason

	if err := s.RuleRepo.CreateExecution(ctx, exec); err != nil {
		return err
	}
	if status != types.ExecutionStatusSuccess {
		return nil
	}
	return s.RuleRepo.IncrementExecutionCount(ctx, rl.ID, exec.ExecutedAt)
}

// recordFailure stores a failed execution for a rule whose transaction rolled back
func (s *ruleService) recordFailure(ctx context.Context, rl *rule.Rule, event *rule.Event, m *membership.Membership, cause error) *rule.Execution {
	exec := &rule.Execution{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_RULE_EXECUTION),
		RuleID:          rl.ID,
		GuestID:         m.GuestID,
		MembershipID:    m.ID,
		EventID:         event.EventID,
		Trigger:         event.Trigger,
		ExecutionStatus: types.ExecutionStatusFailed,
		Reason:          ierr.Hint(cause),
		ExecutedAt:      time.Now().UTC(),
	}

	s.Logger.Warnw("rule execution failed",
		"rule_id", rl.ID,
		"membership_id", m.ID,
		"event_id", event.EventID,
		"error", cause,
	)

	if err := s.RuleRepo.CreateExecution(ctx, exec); err != nil {
		s.Logger.Errorw("failed to record rule failure",
			"rule_id", rl.ID,
			"membership_id", m.ID,
			"error", err,
		)
	}
	return exec
}

// afterCommit publishes what a committed rule produced. Failures are logged only,
// the points are already booked.
func (s *ruleService) afterCommit(ctx context.Context, rl *rule.Rule, outcome *ruleOutcome) {
	if outcome.execution.ExecutionStatus != types.ExecutionStatusSuccess {
		return
	}

	if outcome.notification != nil && s.NotificationPublisher != nil {
		if err := s.NotificationPublisher.Notify(ctx, outcome.notification); err != nil {
			s.Logger.Errorw("failed to publish notification",
				"rule_id", rl.ID,
				"membership_id", outcome.member.ID,
				"error", err,
			)
		}
	}

	publishTierUpgraded(ctx, s.ServiceParams, outcome.member, outcome.previousTier)
}

func (s *ruleService) TestRule(ctx context.Context, id string, req *dto.TestRuleRequest) (*dto.TestRuleResponse, error) {
	if req == nil {
		req = &dto.TestRuleRequest{}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	rl, err := s.RuleRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	tier := lo.FromPtrOr(req.Tier, types.TierSilver)
	var m *membership.Membership
	if req.GuestID != "" {
		m, err = s.MembershipRepo.GetByGuestID(ctx, req.GuestID)
		if err != nil {
			return nil, err
		}
		tier = m.Tier
	}

	now := time.Now().UTC()
	event := &rule.Event{Trigger: rl.Trigger, GuestID: req.GuestID, Payload: req.Payload}
	evaluation := rl.Conditions.Evaluate(event.Input(tier, now))

	resp := &dto.TestRuleResponse{
		RuleID:        rl.ID,
		ConditionsMet: evaluation.Met,
		Checks:        evaluation.Checks,
		ActionType:    rl.Action.Type(),
	}

	switch {
	case !rl.IsActive:
		resp.Reason = "rule is inactive"
	case !evaluation.Met:
		resp.Reason = evaluation.Reason()
	}

	if m != nil && evaluation.Met && rl.MaxExecutionsPerUser != nil {
		count, err := s.RuleRepo.CountSuccessfulExecutions(ctx, rl.ID, m.ID)
		if err != nil {
			return nil, err
		}
		if count >= *rl.MaxExecutionsPerUser {
			resp.Reason = reasonCapReached
		}
	}

	switch action := rl.Action.Action.(type) {
	case rule.AwardPoints:
		resp.PointsWouldAward = action.Points
	case rule.MultiplyPoints:
		if req.Payload.BasePoints == nil {
			resp.Reason = lo.CoalesceOrEmpty(resp.Reason, reasonNoBasePoints)
		} else {
			resp.PointsWouldAward = max(action.BonusFor(*req.Payload.BasePoints), 0)
		}
	case rule.TierUpgrade:
		if action.TargetTier.IsAbove(tier) {
			resp.TierWouldBecome = lo.ToPtr(action.TargetTier)
		} else {
			resp.Reason = lo.CoalesceOrEmpty(resp.Reason, reasonTierNotHigher)
		}
	case rule.SendNotification:
		resp.Message = action.Message
	}

	if m != nil && resp.PointsWouldAward > 0 {
		if next := membership.TierFor(m.Points + resp.PointsWouldAward); next.IsAbove(tier) {
			resp.TierWouldBecome = lo.ToPtr(next)
		}
	}

	resp.WouldExecute = resp.Reason == ""
	if !resp.WouldExecute {
		resp.PointsWouldAward = 0
		resp.TierWouldBecome = nil
	}
	return resp, nil
}

func (s *ruleService) ListExecutions(ctx context.Context, filter *types.RuleExecutionFilter) (*dto.ListRuleExecutionsResponse, error) {
	if filter == nil {
		filter = types.NewRuleExecutionFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	if err := filter.Validate(); err != nil {
		return nil, err
	}

	executions, err := s.RuleRepo.ListExecutions(ctx, filter)
	if err != nil {
		return nil, err
	}

	count, err := s.RuleRepo.CountExecutions(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(executions, func(e *rule.Execution, _ int) *dto.RuleExecutionResponse {
		return dto.NewRuleExecutionResponse(e)
	})

	resp := types.NewListResponse(items, count, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}
