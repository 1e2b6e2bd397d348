package types

import (
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/samber/lo"
)

// TransactionType is the kind of point movement recorded in the ledger
type TransactionType string

const (
	TransactionTypeEarn       TransactionType = "earn"
	TransactionTypeRedeem     TransactionType = "redeem"
	TransactionTypeAdjustment TransactionType = "adjustment"
	TransactionTypeBonus      TransactionType = "bonus"
	TransactionTypeExpiry     TransactionType = "expiry"
)

func (t TransactionType) Validate() error {
	allowedValues := []string{
		string(TransactionTypeEarn),
		string(TransactionTypeRedeem),
		string(TransactionTypeAdjustment),
		string(TransactionTypeBonus),
		string(TransactionTypeExpiry),
	}
	if !lo.Contains(allowedValues, string(t)) {
		return ierr.NewError("invalid transaction type").
			WithHint("Invalid transaction type").
			WithReportableDetails(map[string]any{
				"allowed": allowedValues,
				"type":    t,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ValidateDelta checks that the sign of a point delta is allowed for the type.
// Earn and bonus credit points, redeem and expiry debit them, adjustments go either way.
func (t TransactionType) ValidateDelta(points int64) error {
	if points == 0 {
		return ierr.NewError("points delta must be non-zero").
			WithHint("Points must not be zero").
			Mark(ierr.ErrValidation)
	}

	switch t {
	case TransactionTypeEarn, TransactionTypeBonus:
		if points < 0 {
			return ierr.NewErrorf("%s transactions must credit points", t).
				WithHint("Points must be positive for this transaction type").
				WithReportableDetails(map[string]any{
					"type":   t,
					"points": points,
				}).
				Mark(ierr.ErrValidation)
		}
	case TransactionTypeRedeem, TransactionTypeExpiry:
		if points > 0 {
			return ierr.NewErrorf("%s transactions must debit points", t).
				WithHint("Points must be negative for this transaction type").
				WithReportableDetails(map[string]any{
					"type":   t,
					"points": points,
				}).
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

// IsCredit reports whether the type can carry expiring points
func (t TransactionType) IsCredit() bool {
	return t == TransactionTypeEarn || t == TransactionTypeBonus
}

// TransactionReferenceType names what a ledger transaction was caused by
type TransactionReferenceType string

const (
	TransactionReferenceTypeManual      TransactionReferenceType = "manual"
	TransactionReferenceTypeRedemption  TransactionReferenceType = "redemption"
	TransactionReferenceTypeRule        TransactionReferenceType = "rule_execution"
	TransactionReferenceTypeTransaction TransactionReferenceType = "transaction"
	TransactionReferenceTypeExternal    TransactionReferenceType = "external"
)

func (t TransactionReferenceType) Validate() error {
	allowedValues := []string{
		string(TransactionReferenceTypeManual),
		string(TransactionReferenceTypeRedemption),
		string(TransactionReferenceTypeRule),
		string(TransactionReferenceTypeTransaction),
		string(TransactionReferenceTypeExternal),
	}
	if !lo.Contains(allowedValues, string(t)) {
		return ierr.NewError("invalid reference type").
			WithHint("Invalid transaction reference type").
			WithReportableDetails(map[string]any{
				"allowed":        allowedValues,
				"reference_type": t,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// TransactionFilter represents the filter options for ledger transactions
type TransactionFilter struct {
	*QueryFilter
	*TimeRangeFilter
	MembershipID  *string                   `json:"membership_id,omitempty" form:"membership_id"`
	GuestID       *string                   `json:"guest_id,omitempty" form:"guest_id"`
	Types         []TransactionType         `json:"types,omitempty" form:"types"`
	ReferenceType *TransactionReferenceType `json:"reference_type,omitempty" form:"reference_type"`
	ReferenceID   *string                   `json:"reference_id,omitempty" form:"reference_id"`
}

func NewTransactionFilter() *TransactionFilter {
	return &TransactionFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

func NewNoLimitTransactionFilter() *TransactionFilter {
	return &TransactionFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

func (f TransactionFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}

	for _, t := range f.Types {
		if err := t.Validate(); err != nil {
			return err
		}
	}

	if f.ReferenceType != nil && f.ReferenceID == nil || f.ReferenceID != nil && *f.ReferenceID == "" {
		return ierr.NewError("reference_type and reference_id must be provided together").
			WithHint("Reference type and reference id must be provided together").
			Mark(ierr.ErrValidation)
	}

	if f.TimeRangeFilter != nil {
		if err := f.TimeRangeFilter.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GetLimit implements BaseFilter interface
func (f *TransactionFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

// GetOffset implements BaseFilter interface
func (f *TransactionFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return 0
	}
	return f.QueryFilter.GetOffset()
}

func (f *TransactionFilter) GetOrder() string {
	if f.QueryFilter == nil {
		return OrderDesc
	}
	return f.QueryFilter.GetOrder()
}

func (f *TransactionFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return false
	}
	return f.QueryFilter.IsUnlimited()
}
