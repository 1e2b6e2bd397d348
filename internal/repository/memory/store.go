package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/innkeep/loyalty/internal/domain/membership"
	"github.com/innkeep/loyalty/internal/domain/reward"
	"github.com/innkeep/loyalty/internal/domain/rule"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/innkeep/loyalty/internal/postgres"
	"github.com/innkeep/loyalty/internal/types"
)

var _ postgres.IClient = (*Store)(nil)

type txKey struct{}

// table is a keyed set of rows. Rows are copied on the way in and out so
// callers never share memory with the store.
type table[T any] map[string]*T

func (t table[T]) put(id string, row *T) {
	c := *row
	t[id] = &c
}

func (t table[T]) get(id string) (*T, bool) {
	row, ok := t[id]
	if !ok {
		return nil, false
	}
	c := *row
	return &c, true
}

// filter returns copies of all rows matching keep, ordered by less
func (t table[T]) filter(keep func(*T) bool, less func(a, b *T) bool) []*T {
	out := make([]*T, 0, len(t))
	for _, row := range t {
		if keep == nil || keep(row) {
			c := *row
			out = append(out, &c)
		}
	}
	if less != nil {
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out
}

func (t table[T]) clone() table[T] {
	c := make(table[T], len(t))
	for k, v := range t {
		c[k] = v
	}
	return c
}

type tables struct {
	memberships  table[membership.Membership]
	transactions table[membership.Transaction]
	rewards      table[reward.Reward]
	redemptions  table[reward.Redemption]
	rules        table[rule.Rule]
	executions   table[rule.Execution]
}

func newTables() tables {
	return tables{
		memberships:  table[membership.Membership]{},
		transactions: table[membership.Transaction]{},
		rewards:      table[reward.Reward]{},
		redemptions:  table[reward.Redemption]{},
		rules:        table[rule.Rule]{},
		executions:   table[rule.Execution]{},
	}
}

// snapshot is cheap since rows are replaced, never mutated in place
func (t tables) snapshot() tables {
	return tables{
		memberships:  t.memberships.clone(),
		transactions: t.transactions.clone(),
		rewards:      t.rewards.clone(),
		redemptions:  t.redemptions.clone(),
		rules:        t.rules.clone(),
		executions:   t.executions.clone(),
	}
}

// Store is the in-process storage backend. Transactions and autocommit writes
// are serialized behind txMu, and a failed transaction rolls back to its
// snapshot, which gives the same all-or-nothing and row locking guarantees the
// postgres backend gets from BEGIN and SELECT ... FOR UPDATE.
type Store struct {
	txMu   sync.Mutex
	mu     sync.RWMutex
	data   tables
	logger *logger.Logger
}

// NewStore creates an empty in-memory store
func NewStore(logger *logger.Logger) *Store {
	return &Store{
		data:   newTables(),
		logger: logger,
	}
}

// WithTx runs fn exclusively. Nested calls join the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snap := s.data.snapshot()
	s.mu.RUnlock()

	txID := types.GenerateUUIDWithPrefix("memtx")
	txCtx := context.WithValue(ctx, txKey{}, txID)
	txCtx = context.WithValue(txCtx, types.CtxDBTransaction, txID)

	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
		if err != nil {
			s.logger.Debugw("rolling back in-memory transaction", "tx_id", txID, "error", err)
			s.restore(snap)
		}
	}()

	return fn(txCtx)
}

func (s *Store) restore(snap tables) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = snap
}

// Reset drops every row
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = newTables()
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(string)
	return ok
}

func (s *Store) read(fn func(t tables)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

// write applies fn to the live tables. Outside a transaction the write waits for
// any running transaction, so a rollback never discards it.
func (s *Store) write(ctx context.Context, fn func(t tables) error) error {
	if !inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// paginate applies limit/offset unless the filter is unlimited
func paginate[T any](rows []*T, q *types.QueryFilter) []*T {
	if q == nil || q.IsUnlimited() {
		return rows
	}
	start := q.GetOffset()
	if start >= len(rows) {
		return []*T{}
	}
	end := start + q.GetLimit()
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

func statusMatches(q *types.QueryFilter, status types.Status) bool {
	return q == nil || q.Status == nil || *q.Status == status
}

func sortBy[T any](rows []T, less func(a, b T) bool) {
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
}
