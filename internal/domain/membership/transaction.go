package membership

import (
	"time"

	"github.com/innkeep/loyalty/internal/types"
)

// Transaction is one immutable, signed point movement on a membership.
// BalanceAfter is the balance right after this movement was applied, written
// in the same database transaction as the membership update and never recomputed.
type Transaction struct {
	ID             string                         `db:"id" json:"id"`
	MembershipID   string                         `db:"membership_id" json:"membership_id"`
	Type           types.TransactionType          `db:"type" json:"type"`
	Points         int64                          `db:"points" json:"points"`
	BalanceAfter   int64                          `db:"balance_after" json:"balance_after"`
	Description    string                         `db:"description" json:"description"`
	PerformedBy    string                         `db:"performed_by" json:"performed_by"`
	ReferenceType  types.TransactionReferenceType `db:"reference_type" json:"reference_type,omitempty"`
	ReferenceID    string                         `db:"reference_id" json:"reference_id,omitempty"`
	IdempotencyKey *string                        `db:"idempotency_key" json:"idempotency_key,omitempty"`
	ExpiresAt      *time.Time                     `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt      time.Time                      `db:"created_at" json:"created_at"`
}

func (t *Transaction) TableName() string {
	return "loyalty_transactions"
}

// IsExpirable reports whether the credit carries an expiry that has passed at asOf
func (t *Transaction) IsExpirable(asOf time.Time) bool {
	return t.Type.IsCredit() && t.ExpiresAt != nil && !t.ExpiresAt.After(asOf)
}

// CreditCursor is the keyset position of a credit in the expiry scan
type CreditCursor struct {
	ExpiresAt time.Time
	ID        string
}

// CursorOf returns the scan position of a credit that carries an expiry
func CursorOf(t *Transaction) *CreditCursor {
	return &CreditCursor{ExpiresAt: *t.ExpiresAt, ID: t.ID}
}

// After reports whether the credit sorts after the cursor
func (c *CreditCursor) After(t *Transaction) bool {
	if c == nil {
		return true
	}
	if cmp := t.ExpiresAt.Compare(c.ExpiresAt); cmp != 0 {
		return cmp > 0
	}
	return t.ID > c.ID
}

// TransactionExportRow is the CSV shape of a ledger transaction
type TransactionExportRow struct {
	ID           string `csv:"id"`
	MembershipID string `csv:"membership_id"`
	CreatedAt    string `csv:"created_at"`
	Type         string `csv:"type"`
	Points       int64  `csv:"points"`
	BalanceAfter int64  `csv:"balance_after"`
	Description  string `csv:"description"`
	PerformedBy  string `csv:"performed_by"`
}

// ToExportRow flattens the transaction for CSV export
func (t *Transaction) ToExportRow() *TransactionExportRow {
	return &TransactionExportRow{
		ID:           t.ID,
		MembershipID: t.MembershipID,
		CreatedAt:    types.FormatTime(t.CreatedAt),
		Type:         string(t.Type),
		Points:       t.Points,
		BalanceAfter: t.BalanceAfter,
		Description:  t.Description,
		PerformedBy:  t.PerformedBy,
	}
}
