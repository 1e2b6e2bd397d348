package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/innkeep/loyalty/internal/domain/membership"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/innkeep/loyalty/internal/postgres"
	"github.com/innkeep/loyalty/internal/types"
)

type membershipRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewMembershipRepository creates a new instance of membership repository
func NewMembershipRepository(db *postgres.DB, logger *logger.Logger) membership.Repository {
	return &membershipRepository{
		db:     db,
		logger: logger,
	}
}

func (r *membershipRepository) Create(ctx context.Context, m *membership.Membership) error {
	query := `
		INSERT INTO memberships (
			id, guest_id, points, tier, tier_override, membership_status, enrolled_at, metadata,
			status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :guest_id, :points, :tier, :tier_override, :membership_status, :enrolled_at, :metadata,
			:status, :created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating membership",
		"membership_id", m.ID,
		"guest_id", m.GuestID,
	)

	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		if postgres.IsUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("A membership already exists for this guest").
				WithReportableDetails(map[string]any{
					"guest_id": m.GuestID,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return postgres.WrapError(err, "create membership")
	}
	return nil
}

func (r *membershipRepository) Get(ctx context.Context, id string) (*membership.Membership, error) {
	return r.getOne(ctx, `SELECT * FROM memberships WHERE id = :key`, id, "id")
}

func (r *membershipRepository) GetByGuestID(ctx context.Context, guestID string) (*membership.Membership, error) {
	return r.getOne(ctx, `SELECT * FROM memberships WHERE guest_id = :key`, guestID, "guest_id")
}

func (r *membershipRepository) GetForUpdate(ctx context.Context, id string) (*membership.Membership, error) {
	return r.getOne(ctx, `SELECT * FROM memberships WHERE id = :key FOR UPDATE`, id, "id")
}

func (r *membershipRepository) GetByGuestIDForUpdate(ctx context.Context, guestID string) (*membership.Membership, error) {
	return r.getOne(ctx, `SELECT * FROM memberships WHERE guest_id = :key FOR UPDATE`, guestID, "guest_id")
}

func (r *membershipRepository) getOne(ctx context.Context, query, key, field string) (*membership.Membership, error) {
	r.logger.Debugw("getting membership", field, key)

	var m membership.Membership
	if err := r.db.NamedGetContext(ctx, &m, query, map[string]interface{}{"key": key}); err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("membership not found").
				WithHint("Membership not found").
				WithReportableDetails(map[string]any{
					field: key,
				}).
				Mark(ierr.ErrMemberNotFound)
		}
		return nil, postgres.WrapError(err, "get membership")
	}
	return &m, nil
}

func (r *membershipRepository) List(ctx context.Context, filter *types.MembershipFilter) ([]*membership.Membership, error) {
	where, params := membershipConditions(filter)
	query := fmt.Sprintf(`SELECT * FROM memberships %s ORDER BY %s`, where, orderBy(filter.QueryFilter, "enrolled_at"))
	query += pagination(filter.QueryFilter, params)

	var memberships []*membership.Membership
	if err := r.db.NamedSelectContext(ctx, &memberships, query, params); err != nil {
		return nil, postgres.WrapError(err, "list memberships")
	}
	return memberships, nil
}

func (r *membershipRepository) Count(ctx context.Context, filter *types.MembershipFilter) (int, error) {
	where, params := membershipConditions(filter)

	var count int
	if err := r.db.NamedGetContext(ctx, &count, `SELECT COUNT(*) FROM memberships `+where, params); err != nil {
		return 0, postgres.WrapError(err, "count memberships")
	}
	return count, nil
}

func membershipConditions(filter *types.MembershipFilter) (string, map[string]interface{}) {
	conds := []string{}
	params := map[string]interface{}{}

	if filter == nil {
		return "", params
	}
	if len(filter.GuestIDs) > 0 {
		conds = append(conds, "guest_id IN (:guest_ids)")
		params["guest_ids"] = filter.GuestIDs
	}
	if filter.Tier != nil {
		conds = append(conds, "tier = :tier")
		params["tier"] = *filter.Tier
	}
	if filter.MembershipStatus != nil {
		conds = append(conds, "membership_status = :membership_status")
		params["membership_status"] = *filter.MembershipStatus
	}
	return whereClause(conds), params
}

func (r *membershipRepository) Update(ctx context.Context, m *membership.Membership) error {
	query := `
		UPDATE memberships
		SET
			points = :points,
			tier = :tier,
			tier_override = :tier_override,
			membership_status = :membership_status,
			metadata = :metadata,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	r.logger.Debugw("updating membership",
		"membership_id", m.ID,
		"points", m.Points,
		"tier", m.Tier,
	)

	result, err := r.db.NamedExecContext(ctx, query, m)
	if err != nil {
		return postgres.WrapError(err, "update membership")
	}
	return expectAffected(result, ierr.NewError("membership not found").
		WithHint("Membership not found").
		WithReportableDetails(map[string]any{"membership_id": m.ID}).
		Mark(ierr.ErrMemberNotFound))
}

// Delete relies on ON DELETE CASCADE to remove the ledger, redemptions and executions
func (r *membershipRepository) Delete(ctx context.Context, id string) error {
	r.logger.Debugw("deleting membership", "membership_id", id)

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, `DELETE FROM memberships WHERE id = $1`, id)
	if err != nil {
		return postgres.WrapError(err, "delete membership")
	}
	return expectAffected(result, ierr.NewError("membership not found").
		WithHint("Membership not found").
		WithReportableDetails(map[string]any{"membership_id": id}).
		Mark(ierr.ErrMemberNotFound))
}

func (r *membershipRepository) CreateTransaction(ctx context.Context, tx *membership.Transaction) error {
	query := `
		INSERT INTO loyalty_transactions (
			id, membership_id, type, points, balance_after, description, performed_by,
			reference_type, reference_id, idempotency_key, expires_at, created_at
		) VALUES (
			:id, :membership_id, :type, :points, :balance_after, :description, :performed_by,
			:reference_type, :reference_id, :idempotency_key, :expires_at, :created_at
		)`

	r.logger.Debugw("creating loyalty transaction",
		"transaction_id", tx.ID,
		"membership_id", tx.MembershipID,
		"type", tx.Type,
		"points", tx.Points,
		"balance_after", tx.BalanceAfter,
	)

	if _, err := r.db.NamedExecContext(ctx, query, tx); err != nil {
		if postgres.IsUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("A transaction with this idempotency key already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return postgres.WrapError(err, "create transaction")
	}
	return nil
}

func (r *membershipRepository) GetTransactionByID(ctx context.Context, id string) (*membership.Transaction, error) {
	return r.getTransaction(ctx, `SELECT * FROM loyalty_transactions WHERE id = $1`, id)
}

func (r *membershipRepository) GetTransactionByIdempotencyKey(ctx context.Context, key string) (*membership.Transaction, error) {
	return r.getTransaction(ctx, `SELECT * FROM loyalty_transactions WHERE idempotency_key = $1`, key)
}

func (r *membershipRepository) getTransaction(ctx context.Context, query, key string) (*membership.Transaction, error) {
	var tx membership.Transaction
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &tx, query, key); err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("transaction not found").
				WithHint("Transaction not found").
				Mark(ierr.ErrNotFound)
		}
		return nil, postgres.WrapError(err, "get transaction")
	}
	return &tx, nil
}

func (r *membershipRepository) ListTransactions(ctx context.Context, filter *types.TransactionFilter) ([]*membership.Transaction, error) {
	where, params := transactionConditions(filter)
	query := fmt.Sprintf(`
		SELECT t.* FROM loyalty_transactions t
		JOIN memberships m ON m.id = t.membership_id
		%s
		ORDER BY t.created_at %s, t.id %s`, where, sortOrder(filter.GetOrder()), sortOrder(filter.GetOrder()))
	query += pagination(filter.QueryFilter, params)

	var txs []*membership.Transaction
	if err := r.db.NamedSelectContext(ctx, &txs, query, params); err != nil {
		return nil, postgres.WrapError(err, "list transactions")
	}
	return txs, nil
}

func (r *membershipRepository) CountTransactions(ctx context.Context, filter *types.TransactionFilter) (int, error) {
	where, params := transactionConditions(filter)
	query := `
		SELECT COUNT(*) FROM loyalty_transactions t
		JOIN memberships m ON m.id = t.membership_id ` + where

	var count int
	if err := r.db.NamedGetContext(ctx, &count, query, params); err != nil {
		return 0, postgres.WrapError(err, "count transactions")
	}
	return count, nil
}

func transactionConditions(filter *types.TransactionFilter) (string, map[string]interface{}) {
	conds := []string{}
	params := map[string]interface{}{}

	if filter == nil {
		return "", params
	}
	if filter.MembershipID != nil {
		conds = append(conds, "t.membership_id = :membership_id")
		params["membership_id"] = *filter.MembershipID
	}
	if filter.GuestID != nil {
		conds = append(conds, "m.guest_id = :guest_id")
		params["guest_id"] = *filter.GuestID
	}
	if len(filter.Types) > 0 {
		conds = append(conds, "t.type IN (:types)")
		params["types"] = filter.Types
	}
	if filter.ReferenceType != nil {
		conds = append(conds, "t.reference_type = :reference_type")
		params["reference_type"] = *filter.ReferenceType
	}
	if filter.ReferenceID != nil {
		conds = append(conds, "t.reference_id = :reference_id")
		params["reference_id"] = *filter.ReferenceID
	}
	conds = append(conds, timeRangeConditions("t.created_at", filter.TimeRangeFilter, params)...)
	return whereClause(conds), params
}

func (r *membershipRepository) ListExpiredCredits(ctx context.Context, asOf time.Time, after *membership.CreditCursor, limit int) ([]*membership.Transaction, error) {
	params := map[string]interface{}{
		"as_of":          asOf,
		"reference_type": types.TransactionReferenceTypeTransaction,
		"limit":          limit,
	}

	var cursor string
	if after != nil {
		cursor = "AND (t.expires_at, t.id) > (:after_expires_at, :after_id)"
		params["after_expires_at"] = after.ExpiresAt
		params["after_id"] = after.ID
	}

	query := fmt.Sprintf(`
		SELECT t.* FROM loyalty_transactions t
		WHERE t.type IN ('earn', 'bonus')
		AND t.expires_at IS NOT NULL
		AND t.expires_at <= :as_of
		%s
		AND NOT EXISTS (
			SELECT 1 FROM loyalty_transactions e
			WHERE e.type = 'expiry'
			AND e.reference_type = :reference_type
			AND e.reference_id = t.id
		)
		ORDER BY t.expires_at ASC, t.id ASC
		LIMIT :limit`, cursor)

	var txs []*membership.Transaction
	if err := r.db.NamedSelectContext(ctx, &txs, query, params); err != nil {
		return nil, postgres.WrapError(err, "list expired credits")
	}
	return txs, nil
}

func (r *membershipRepository) GetBalanceSummary(ctx context.Context) (*membership.BalanceSummary, error) {
	query := `
		SELECT
			COUNT(*) AS member_count,
			COUNT(*) FILTER (WHERE membership_status = 'active') AS active_member_count,
			COALESCE(SUM(points), 0) AS total_points
		FROM memberships`

	var summary membership.BalanceSummary
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &summary, query); err != nil {
		return nil, postgres.WrapError(err, "get balance summary")
	}
	return &summary, nil
}

func (r *membershipRepository) GetTierDistribution(ctx context.Context) ([]*membership.TierSummary, error) {
	query := `
		SELECT tier, COUNT(*) AS count, COALESCE(SUM(points), 0) AS points
		FROM memberships
		GROUP BY tier
		ORDER BY tier`

	var tiers []*membership.TierSummary
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &tiers, query); err != nil {
		return nil, postgres.WrapError(err, "get tier distribution")
	}
	return tiers, nil
}

func (r *membershipRepository) GetTransactionTotals(ctx context.Context, window *types.TimeRangeFilter) ([]*membership.TransactionTotal, error) {
	params := map[string]interface{}{}
	where := whereClause(timeRangeConditions("created_at", window, params))
	query := fmt.Sprintf(`
		SELECT
			type,
			COUNT(*) AS count,
			COALESCE(SUM(points) FILTER (WHERE points > 0), 0) AS credited,
			COALESCE(-SUM(points) FILTER (WHERE points < 0), 0) AS debited
		FROM loyalty_transactions
		%s
		GROUP BY type
		ORDER BY type`, where)

	var totals []*membership.TransactionTotal
	if err := r.db.NamedSelectContext(ctx, &totals, query, params); err != nil {
		return nil, postgres.WrapError(err, "get transaction totals")
	}
	return totals, nil
}

func (r *membershipRepository) GetMostActiveMembers(ctx context.Context, window *types.TimeRangeFilter, limit int) ([]*membership.MemberActivity, error) {
	params := map[string]interface{}{"limit": limit}
	where := whereClause(timeRangeConditions("t.created_at", window, params))
	query := fmt.Sprintf(`
		SELECT
			m.id AS membership_id,
			m.guest_id,
			COUNT(t.id) AS transaction_count,
			m.points,
			m.tier
		FROM loyalty_transactions t
		JOIN memberships m ON m.id = t.membership_id
		%s
		GROUP BY m.id, m.guest_id, m.points, m.tier
		ORDER BY transaction_count DESC, m.id ASC
		LIMIT :limit`, where)

	var members []*membership.MemberActivity
	if err := r.db.NamedSelectContext(ctx, &members, query, params); err != nil {
		return nil, postgres.WrapError(err, "get most active members")
	}
	return members, nil
}

// whereClause joins conditions with AND
func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conds, " AND ")
}
