package repository

import (
	"context"

	"github.com/innkeep/loyalty/internal/config"
	"github.com/innkeep/loyalty/internal/domain/membership"
	"github.com/innkeep/loyalty/internal/domain/reward"
	"github.com/innkeep/loyalty/internal/domain/rule"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/innkeep/loyalty/internal/postgres"
	"github.com/innkeep/loyalty/internal/repository/memory"
	postgresRepo "github.com/innkeep/loyalty/internal/repository/postgres"
	"github.com/innkeep/loyalty/internal/types"
)

// Backend holds the client of the configured storage backend. Exactly one of
// DB and Store is set.
type Backend struct {
	Type  types.StorageBackend
	DB    *postgres.DB
	Store *memory.Store
}

// NewBackend opens the storage selected by storage.backend
func NewBackend(cfg *config.Configuration, logger *logger.Logger) (*Backend, error) {
	switch cfg.Storage.Backend {
	case types.StorageBackendPostgres:
		db, err := postgres.NewDB(cfg, logger)
		if err != nil {
			return nil, err
		}
		return &Backend{Type: cfg.Storage.Backend, DB: db}, nil
	case types.StorageBackendMemory:
		return &Backend{Type: cfg.Storage.Backend, Store: memory.NewStore(logger)}, nil
	default:
		return nil, ierr.NewErrorf("unsupported storage backend: %s", cfg.Storage.Backend).
			WithHint("Storage backend must be postgres or memory").
			Mark(ierr.ErrValidation)
	}
}

// Close releases the database pool, the in-memory store needs no cleanup
func (b *Backend) Close() error {
	if b.DB != nil {
		return b.DB.Close()
	}
	return nil
}

// Ping checks the database connection, the in-memory store is always up
func (b *Backend) Ping(ctx context.Context) error {
	if b.DB != nil {
		return b.DB.Ping(ctx)
	}
	return nil
}

func NewClient(b *Backend) postgres.IClient {
	if b.DB != nil {
		return b.DB
	}
	return b.Store
}

func NewMembershipRepository(b *Backend, logger *logger.Logger) membership.Repository {
	if b.DB != nil {
		return postgresRepo.NewMembershipRepository(b.DB, logger)
	}
	return memory.NewMembershipRepository(b.Store)
}

func NewRewardRepository(b *Backend, logger *logger.Logger) reward.Repository {
	if b.DB != nil {
		return postgresRepo.NewRewardRepository(b.DB, logger)
	}
	return memory.NewRewardRepository(b.Store)
}

func NewRuleRepository(b *Backend, logger *logger.Logger) rule.Repository {
	if b.DB != nil {
		return postgresRepo.NewRuleRepository(b.DB, logger)
	}
	return memory.NewRuleRepository(b.Store)
}
