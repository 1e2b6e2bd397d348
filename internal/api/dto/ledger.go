package dto

import (
	"time"

	"github.com/innkeep/loyalty/internal/domain/membership"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/innkeep/loyalty/internal/validator"
)

// AppendTransactionRequest is one signed point movement against a membership
type AppendTransactionRequest struct {
	MembershipID   string                         `json:"membership_id" validate:"required"`
	Type           types.TransactionType          `json:"type" validate:"required"`
	Points         int64                          `json:"points"`
	Description    string                         `json:"description" validate:"max=500"`
	PerformedBy    string                         `json:"performed_by,omitempty"`
	ReferenceType  types.TransactionReferenceType `json:"reference_type,omitempty"`
	ReferenceID    string                         `json:"reference_id,omitempty"`
	IdempotencyKey *string                        `json:"idempotency_key,omitempty" validate:"omitempty,max=255"`
	ExpiresAt      *time.Time                     `json:"expires_at,omitempty"`
}

func (r *AppendTransactionRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.Type.Validate(); err != nil {
		return err
	}
	if err := r.Type.ValidateDelta(r.Points); err != nil {
		return err
	}
	if r.ReferenceType != "" {
		if err := r.ReferenceType.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type TransactionResponse struct {
	*membership.Transaction
}

func NewTransactionResponse(t *membership.Transaction) *TransactionResponse {
	return &TransactionResponse{Transaction: t}
}

// ListTransactionsResponse represents the response for listing ledger transactions
type ListTransactionsResponse = types.ListResponse[*TransactionResponse]

// TransactionResultResponse is the ledger state right after an append
type TransactionResultResponse struct {
	Transaction  *TransactionResponse `json:"transaction"`
	Balance      int64                `json:"balance"`
	Tier         types.Tier           `json:"tier"`
	PreviousTier types.Tier           `json:"previous_tier"`
	// Replayed is set when the idempotency key matched an earlier transaction.
	// Transaction is then the original movement, whose BalanceAfter is the balance
	// it produced, while Balance and Tier report the membership as it is now and
	// PreviousTier equals Tier since nothing moved.
	Replayed bool `json:"replayed,omitempty"`
}

// ExpirePointsResponse summarizes one expiry sweep
type ExpirePointsResponse struct {
	Expired       int   `json:"expired"`
	PointsExpired int64 `json:"points_expired"`
	Skipped       int   `json:"skipped"`
}
