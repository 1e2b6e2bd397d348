package membership

import (
	"context"
	"time"

	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/types"
)

// Membership is a guest's enrollment in the loyalty program. Points is the
// authoritative balance, every ledger transaction moves it.
type Membership struct {
	ID               string                 `db:"id" json:"id"`
	GuestID          string                 `db:"guest_id" json:"guest_id"`
	Points           int64                  `db:"points" json:"points"`
	Tier             types.Tier             `db:"tier" json:"tier"`
	TierOverride     bool                   `db:"tier_override" json:"tier_override"`
	MembershipStatus types.MembershipStatus `db:"membership_status" json:"membership_status"`
	EnrolledAt       time.Time              `db:"enrolled_at" json:"enrolled_at"`
	Metadata         types.Metadata         `db:"metadata" json:"metadata"`
	types.BaseModel
}

func (m *Membership) TableName() string {
	return "memberships"
}

// New builds an active silver membership with an empty balance
func New(ctx context.Context, guestID string, metadata types.Metadata) *Membership {
	base := types.GetDefaultBaseModel(ctx)
	return &Membership{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_MEMBERSHIP),
		GuestID:          guestID,
		Points:           0,
		Tier:             TierFor(0),
		MembershipStatus: types.MembershipStatusActive,
		EnrolledAt:       base.CreatedAt,
		Metadata:         metadata,
		BaseModel:        base,
	}
}

func (m *Membership) IsActive() bool {
	return m.MembershipStatus == types.MembershipStatusActive
}

// EnsureActive fails with ErrMemberInactive for memberships that cannot transact
func (m *Membership) EnsureActive() error {
	if m.IsActive() {
		return nil
	}
	return ierr.NewError("membership is inactive").
		WithHint("This membership is inactive").
		WithReportableDetails(map[string]any{
			"membership_id": m.ID,
			"guest_id":      m.GuestID,
		}).
		Mark(ierr.ErrMemberInactive)
}

// ApplyPoints moves the balance by delta and recomputes the tier.
// A forced tier is kept until the balance earns that tier or better on its own.
func (m *Membership) ApplyPoints(delta int64) error {
	next := m.Points + delta
	if next < 0 {
		return ierr.NewError("insufficient points balance").
			WithHintf("Insufficient points: balance is %d, %d required", m.Points, -delta).
			WithReportableDetails(map[string]any{
				"membership_id": m.ID,
				"balance":       m.Points,
				"requested":     -delta,
			}).
			Mark(ierr.ErrInsufficientBalance)
	}

	m.Points = next
	computed := TierFor(next)
	if m.TierOverride && m.Tier.IsAbove(computed) {
		return nil
	}
	m.Tier = computed
	m.TierOverride = false
	return nil
}

// ForceTier raises the tier without touching points. It never lowers the tier
// and reports whether anything changed.
func (m *Membership) ForceTier(target types.Tier) bool {
	if !target.IsAbove(m.Tier) {
		return false
	}
	m.Tier = target
	m.TierOverride = true
	return true
}

// Touch stamps the update audit fields
func (m *Membership) Touch(ctx context.Context) {
	m.UpdatedAt = time.Now().UTC()
	m.UpdatedBy = types.GetUserID(ctx)
}
