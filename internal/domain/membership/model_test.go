package membership

import (
	"testing"

	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierFor(t *testing.T) {
	tests := []struct {
		name   string
		points int64
		want   types.Tier
	}{
		{"zero", 0, types.TierSilver},
		{"just below gold", 1999, types.TierSilver},
		{"gold boundary", 2000, types.TierGold},
		{"mid gold", 3500, types.TierGold},
		{"just below platinum", 4999, types.TierGold},
		{"platinum boundary", 5000, types.TierPlatinum},
		{"far above platinum", 1_000_000, types.TierPlatinum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TierFor(tt.points))
			// deterministic for the same input
			assert.Equal(t, TierFor(tt.points), TierFor(tt.points))
		})
	}
}

func TestApplyPoints(t *testing.T) {
	m := &Membership{Points: 1900, Tier: types.TierSilver, MembershipStatus: types.MembershipStatusActive}

	require.NoError(t, m.ApplyPoints(150))
	assert.Equal(t, int64(2050), m.Points)
	assert.Equal(t, types.TierGold, m.Tier)

	err := m.ApplyPoints(-3000)
	require.Error(t, err)
	assert.True(t, ierr.Is(err, ierr.ErrInsufficientBalance))
	assert.Equal(t, int64(2050), m.Points, "balance must not move on failure")
	assert.Equal(t, types.TierGold, m.Tier)

	require.NoError(t, m.ApplyPoints(-2050))
	assert.Equal(t, int64(0), m.Points)
	assert.Equal(t, types.TierSilver, m.Tier)
}

func TestForceTier(t *testing.T) {
	m := &Membership{Points: 100, Tier: types.TierSilver}

	assert.False(t, m.ForceTier(types.TierSilver), "same tier is not an upgrade")
	assert.True(t, m.ForceTier(types.TierGold))
	assert.Equal(t, types.TierGold, m.Tier)
	assert.True(t, m.TierOverride)

	assert.False(t, m.ForceTier(types.TierSilver), "never downgrades")
	assert.Equal(t, types.TierGold, m.Tier)

	// the forced tier survives until points earn it
	require.NoError(t, m.ApplyPoints(500))
	assert.Equal(t, types.TierGold, m.Tier)
	assert.True(t, m.TierOverride)

	require.NoError(t, m.ApplyPoints(1500))
	assert.Equal(t, int64(2100), m.Points)
	assert.Equal(t, types.TierGold, m.Tier)
	assert.False(t, m.TierOverride, "override clears once the balance earns the tier")
}

func TestEnsureActive(t *testing.T) {
	m := &Membership{MembershipStatus: types.MembershipStatusInactive}
	err := m.EnsureActive()
	require.Error(t, err)
	assert.True(t, ierr.Is(err, ierr.ErrMemberInactive))

	m.MembershipStatus = types.MembershipStatusActive
	assert.NoError(t, m.EnsureActive())
}
