package memory

import (
	"cmp"
	"context"
	"strings"
	"time"

	"github.com/innkeep/loyalty/internal/domain/membership"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/samber/lo"
)

type membershipRepository struct {
	store *Store
}

// NewMembershipRepository creates a membership repository backed by the store
func NewMembershipRepository(store *Store) membership.Repository {
	return &membershipRepository{store: store}
}

func memberNotFound(field, key string) error {
	return ierr.NewError("membership not found").
		WithHint("Membership not found").
		WithReportableDetails(map[string]any{field: key}).
		Mark(ierr.ErrMemberNotFound)
}

func (r *membershipRepository) Create(ctx context.Context, m *membership.Membership) error {
	return r.store.write(ctx, func(t tables) error {
		if _, ok := t.memberships[m.ID]; ok {
			return ierr.NewError("membership already exists").
				WithHint("A membership with this id already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		for _, existing := range t.memberships {
			if existing.GuestID == m.GuestID {
				return ierr.NewError("membership already exists").
					WithHint("A membership already exists for this guest").
					WithReportableDetails(map[string]any{"guest_id": m.GuestID}).
					Mark(ierr.ErrAlreadyExists)
			}
		}
		t.memberships.put(m.ID, m)
		return nil
	})
}

func (r *membershipRepository) Get(ctx context.Context, id string) (*membership.Membership, error) {
	var (
		m  *membership.Membership
		ok bool
	)
	r.store.read(func(t tables) { m, ok = t.memberships.get(id) })
	if !ok {
		return nil, memberNotFound("id", id)
	}
	return m, nil
}

func (r *membershipRepository) GetByGuestID(ctx context.Context, guestID string) (*membership.Membership, error) {
	var found []*membership.Membership
	r.store.read(func(t tables) {
		found = t.memberships.filter(func(m *membership.Membership) bool { return m.GuestID == guestID }, nil)
	})
	if len(found) == 0 {
		return nil, memberNotFound("guest_id", guestID)
	}
	return found[0], nil
}

// GetForUpdate needs no extra locking, transactions already run one at a time
func (r *membershipRepository) GetForUpdate(ctx context.Context, id string) (*membership.Membership, error) {
	return r.Get(ctx, id)
}

func (r *membershipRepository) GetByGuestIDForUpdate(ctx context.Context, guestID string) (*membership.Membership, error) {
	return r.GetByGuestID(ctx, guestID)
}

func (r *membershipRepository) List(ctx context.Context, filter *types.MembershipFilter) ([]*membership.Membership, error) {
	var rows []*membership.Membership
	r.store.read(func(t tables) {
		rows = t.memberships.filter(membershipMatcher(filter), membershipOrder(filter))
	})
	return paginate(rows, filter.QueryFilter), nil
}

func (r *membershipRepository) Count(ctx context.Context, filter *types.MembershipFilter) (int, error) {
	var rows []*membership.Membership
	r.store.read(func(t tables) { rows = t.memberships.filter(membershipMatcher(filter), nil) })
	return len(rows), nil
}

func membershipMatcher(filter *types.MembershipFilter) func(*membership.Membership) bool {
	return func(m *membership.Membership) bool {
		if filter == nil {
			return true
		}
		if len(filter.GuestIDs) > 0 && !lo.Contains(filter.GuestIDs, m.GuestID) {
			return false
		}
		if filter.Tier != nil && m.Tier != *filter.Tier {
			return false
		}
		if filter.MembershipStatus != nil && m.MembershipStatus != *filter.MembershipStatus {
			return false
		}
		return true
	}
}

func membershipOrder(filter *types.MembershipFilter) func(a, b *membership.Membership) bool {
	q := types.NewDefaultQueryFilter()
	if filter != nil && filter.QueryFilter != nil {
		q = filter.QueryFilter
	}
	return func(a, b *membership.Membership) bool {
		var c int
		switch q.GetSort() {
		case "points":
			c = cmp.Compare(a.Points, b.Points)
		case "created_at":
			c = a.CreatedAt.Compare(b.CreatedAt)
		case "updated_at":
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			c = a.EnrolledAt.Compare(b.EnrolledAt)
		}
		return ordered(q.GetOrder(), c, a.ID, b.ID)
	}
}

// ordered resolves a comparison in the requested direction, ids break ties
func ordered(order string, c int, idA, idB string) bool {
	if c == 0 {
		c = strings.Compare(idA, idB)
	}
	if order == types.OrderAsc {
		return c < 0
	}
	return c > 0
}

func (r *membershipRepository) Update(ctx context.Context, m *membership.Membership) error {
	return r.store.write(ctx, func(t tables) error {
		if _, ok := t.memberships[m.ID]; !ok {
			return memberNotFound("membership_id", m.ID)
		}
		t.memberships.put(m.ID, m)
		return nil
	})
}

// Delete cascades to the ledger, redemptions and rule executions
func (r *membershipRepository) Delete(ctx context.Context, id string) error {
	return r.store.write(ctx, func(t tables) error {
		if _, ok := t.memberships[id]; !ok {
			return memberNotFound("membership_id", id)
		}
		delete(t.memberships, id)
		for k, tx := range t.transactions {
			if tx.MembershipID == id {
				delete(t.transactions, k)
			}
		}
		for k, rd := range t.redemptions {
			if rd.MembershipID == id {
				delete(t.redemptions, k)
			}
		}
		for k, e := range t.executions {
			if e.MembershipID == id {
				delete(t.executions, k)
			}
		}
		return nil
	})
}

func (r *membershipRepository) CreateTransaction(ctx context.Context, tx *membership.Transaction) error {
	return r.store.write(ctx, func(t tables) error {
		if _, ok := t.memberships[tx.MembershipID]; !ok {
			return memberNotFound("membership_id", tx.MembershipID)
		}
		if tx.IdempotencyKey != nil {
			for _, existing := range t.transactions {
				if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *tx.IdempotencyKey {
					return ierr.NewError("transaction already exists").
						WithHint("A transaction with this idempotency key already exists").
						Mark(ierr.ErrAlreadyExists)
				}
			}
		}
		t.transactions.put(tx.ID, tx)
		return nil
	})
}

func transactionNotFound() error {
	return ierr.NewError("transaction not found").
		WithHint("Transaction not found").
		Mark(ierr.ErrNotFound)
}

func (r *membershipRepository) GetTransactionByID(ctx context.Context, id string) (*membership.Transaction, error) {
	var (
		tx *membership.Transaction
		ok bool
	)
	r.store.read(func(t tables) { tx, ok = t.transactions.get(id) })
	if !ok {
		return nil, transactionNotFound()
	}
	return tx, nil
}

func (r *membershipRepository) GetTransactionByIdempotencyKey(ctx context.Context, key string) (*membership.Transaction, error) {
	var found []*membership.Transaction
	r.store.read(func(t tables) {
		found = t.transactions.filter(func(tx *membership.Transaction) bool {
			return tx.IdempotencyKey != nil && *tx.IdempotencyKey == key
		}, nil)
	})
	if len(found) == 0 {
		return nil, transactionNotFound()
	}
	return found[0], nil
}

func (r *membershipRepository) ListTransactions(ctx context.Context, filter *types.TransactionFilter) ([]*membership.Transaction, error) {
	var rows []*membership.Transaction
	r.store.read(func(t tables) {
		rows = t.transactions.filter(transactionMatcher(t, filter), func(a, b *membership.Transaction) bool {
			return ordered(filter.GetOrder(), a.CreatedAt.Compare(b.CreatedAt), a.ID, b.ID)
		})
	})
	return paginate(rows, filter.QueryFilter), nil
}

func (r *membershipRepository) CountTransactions(ctx context.Context, filter *types.TransactionFilter) (int, error) {
	var rows []*membership.Transaction
	r.store.read(func(t tables) { rows = t.transactions.filter(transactionMatcher(t, filter), nil) })
	return len(rows), nil
}

func transactionMatcher(t tables, filter *types.TransactionFilter) func(*membership.Transaction) bool {
	return func(tx *membership.Transaction) bool {
		if filter == nil {
			return true
		}
		if filter.MembershipID != nil && tx.MembershipID != *filter.MembershipID {
			return false
		}
		if filter.GuestID != nil {
			m, ok := t.memberships[tx.MembershipID]
			if !ok || m.GuestID != *filter.GuestID {
				return false
			}
		}
		if len(filter.Types) > 0 && !lo.Contains(filter.Types, tx.Type) {
			return false
		}
		if filter.ReferenceType != nil && tx.ReferenceType != *filter.ReferenceType {
			return false
		}
		if filter.ReferenceID != nil && tx.ReferenceID != *filter.ReferenceID {
			return false
		}
		return filter.TimeRangeFilter.Contains(tx.CreatedAt)
	}
}

func (r *membershipRepository) ListExpiredCredits(ctx context.Context, asOf time.Time, after *membership.CreditCursor, limit int) ([]*membership.Transaction, error) {
	var rows []*membership.Transaction
	r.store.read(func(t tables) {
		expired := map[string]bool{}
		for _, tx := range t.transactions {
			if tx.Type == types.TransactionTypeExpiry && tx.ReferenceType == types.TransactionReferenceTypeTransaction {
				expired[tx.ReferenceID] = true
			}
		}
		rows = t.transactions.filter(func(tx *membership.Transaction) bool {
			return tx.IsExpirable(asOf) && !expired[tx.ID] && after.After(tx)
		}, func(a, b *membership.Transaction) bool {
			return ordered(types.OrderAsc, a.ExpiresAt.Compare(*b.ExpiresAt), a.ID, b.ID)
		})
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *membershipRepository) GetBalanceSummary(ctx context.Context) (*membership.BalanceSummary, error) {
	summary := &membership.BalanceSummary{}
	r.store.read(func(t tables) {
		for _, m := range t.memberships {
			summary.MemberCount++
			if m.IsActive() {
				summary.ActiveMemberCount++
			}
			summary.TotalPoints += m.Points
		}
	})
	return summary, nil
}

func (r *membershipRepository) GetTierDistribution(ctx context.Context) ([]*membership.TierSummary, error) {
	byTier := map[types.Tier]*membership.TierSummary{}
	r.store.read(func(t tables) {
		for _, m := range t.memberships {
			s, ok := byTier[m.Tier]
			if !ok {
				s = &membership.TierSummary{Tier: m.Tier}
				byTier[m.Tier] = s
			}
			s.Count++
			s.Points += m.Points
		}
	})

	out := lo.Values(byTier)
	sortBy(out, func(a, b *membership.TierSummary) bool { return a.Tier < b.Tier })
	return out, nil
}

func (r *membershipRepository) GetTransactionTotals(ctx context.Context, window *types.TimeRangeFilter) ([]*membership.TransactionTotal, error) {
	byType := map[types.TransactionType]*membership.TransactionTotal{}
	r.store.read(func(t tables) {
		for _, tx := range t.transactions {
			if !window.Contains(tx.CreatedAt) {
				continue
			}
			total, ok := byType[tx.Type]
			if !ok {
				total = &membership.TransactionTotal{Type: tx.Type}
				byType[tx.Type] = total
			}
			total.Count++
			if tx.Points > 0 {
				total.Credited += tx.Points
			} else {
				total.Debited -= tx.Points
			}
		}
	})

	out := lo.Values(byType)
	sortBy(out, func(a, b *membership.TransactionTotal) bool { return a.Type < b.Type })
	return out, nil
}

func (r *membershipRepository) GetMostActiveMembers(ctx context.Context, window *types.TimeRangeFilter, limit int) ([]*membership.MemberActivity, error) {
	byMember := map[string]*membership.MemberActivity{}
	r.store.read(func(t tables) {
		for _, tx := range t.transactions {
			if !window.Contains(tx.CreatedAt) {
				continue
			}
			m, ok := t.memberships[tx.MembershipID]
			if !ok {
				continue
			}
			a, ok := byMember[m.ID]
			if !ok {
				a = &membership.MemberActivity{
					MembershipID: m.ID,
					GuestID:      m.GuestID,
					Points:       m.Points,
					Tier:         m.Tier,
				}
				byMember[m.ID] = a
			}
			a.TransactionCount++
		}
	})

	out := lo.Values(byMember)
	sortBy(out, func(a, b *membership.MemberActivity) bool {
		if a.TransactionCount != b.TransactionCount {
			return a.TransactionCount > b.TransactionCount
		}
		return a.MembershipID < b.MembershipID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
