package memory

import (
	"context"
	"testing"
	"time"

	"github.com/innkeep/loyalty/internal/domain/membership"
	"github.com/innkeep/loyalty/internal/domain/reward"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTxRollsBackOwnWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore(logger.NewNoopLogger())
	repo := NewMembershipRepository(store)

	kept := membership.New(ctx, "guest-kept", nil)
	err := store.WithTx(ctx, func(ctx context.Context) error {
		return repo.Create(ctx, kept)
	})
	require.NoError(t, err)

	dropped := membership.New(ctx, "guest-dropped", nil)
	err = store.WithTx(ctx, func(ctx context.Context) error {
		if err := repo.Create(ctx, dropped); err != nil {
			return err
		}
		return ierr.NewError("balance too low").Mark(ierr.ErrInsufficientBalance)
	})
	require.Error(t, err)

	_, err = repo.Get(ctx, kept.ID)
	assert.NoError(t, err)
	_, err = repo.Get(ctx, dropped.ID)
	assert.True(t, ierr.IsNotFound(err))
}

func TestRollbackKeepsConcurrentAutocommitWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore(logger.NewNoopLogger())
	repo := NewMembershipRepository(store)

	started := make(chan struct{})
	release := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- store.WithTx(ctx, func(ctx context.Context) error {
			close(started)
			<-release
			return ierr.NewError("balance too low").Mark(ierr.ErrInsufficientBalance)
		})
	}()
	<-started

	late := membership.New(ctx, "guest-late", nil)
	createDone := make(chan error, 1)
	go func() {
		createDone <- repo.Create(ctx, late)
	}()

	select {
	case err := <-createDone:
		t.Fatalf("write outside the transaction finished while it was open: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.Error(t, <-txDone)
	require.NoError(t, <-createDone)

	got, err := repo.Get(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, "guest-late", got.GuestID)
}

func TestDecrementStockNeverOversells(t *testing.T) {
	ctx := context.Background()
	store := NewStore(logger.NewNoopLogger())
	repo := NewRewardRepository(store)

	rw := &reward.Reward{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REWARD),
		Name:         "Spa voucher",
		PointsCost:   500,
		RewardStatus: types.RewardStatusActive,
		BaseModel:    types.GetDefaultBaseModel(ctx),
	}
	rw.StockAvailable = lo.ToPtr(3)
	require.NoError(t, repo.Create(ctx, rw))

	results := make(chan error, 10)
	var wg conc.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Go(func() {
			_, err := repo.DecrementStock(ctx, rw.ID)
			results <- err
		})
	}
	wg.Wait()
	close(results)

	var ok, outOfStock int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case ierr.Is(err, ierr.ErrOutOfStock):
			outOfStock++
		}
	}
	assert.Equal(t, 3, ok)
	assert.Equal(t, 7, outOfStock)

	got, err := repo.Get(ctx, rw.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, lo.FromPtr(got.StockAvailable))
}
