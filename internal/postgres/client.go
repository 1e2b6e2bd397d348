package postgres

import (
	"context"
)

// IClient defines the transaction boundary shared by every storage backend.
// Repositories called with the context passed to fn take part in the same transaction.
type IClient interface {
	// WithTx wraps the given function in a transaction
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

var _ IClient = (*DB)(nil)
