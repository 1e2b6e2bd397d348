package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/innkeep/loyalty/internal/api/dto"
	"github.com/innkeep/loyalty/internal/domain/membership"
	"github.com/innkeep/loyalty/internal/domain/rule"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/idempotency"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/samber/lo"
)

// expiryBatchSize bounds how many due credits one sweep loads at a time
const expiryBatchSize = 500

// LedgerService owns every movement of points. All balance changes, whether
// manual, from redemptions or from rules, end up in postTransaction.
type LedgerService interface {
	// AppendTransaction applies one signed point movement and records it
	AppendTransaction(ctx context.Context, req *dto.AppendTransactionRequest) (*dto.TransactionResultResponse, error)

	// History returns the most recent transactions of a membership, newest first
	History(ctx context.Context, membershipID string, limit int) (*dto.ListTransactionsResponse, error)

	ListTransactions(ctx context.Context, filter *types.TransactionFilter) (*dto.ListTransactionsResponse, error)

	// ExportTransactionsCSV renders the matching transactions as CSV with the stored balance snapshots
	ExportTransactionsCSV(ctx context.Context, filter *types.TransactionFilter) ([]byte, error)
	ParseTransactionsCSV(data []byte) ([]*membership.TransactionExportRow, error)

	// ExpireDuePoints debits every credit whose expiry has passed at now
	ExpireDuePoints(ctx context.Context, now time.Time) (*dto.ExpirePointsResponse, error)
}

type ledgerService struct {
	ServiceParams
	idempGen *idempotency.Generator
}

func NewLedgerService(params ServiceParams) LedgerService {
	return &ledgerService{
		ServiceParams: params,
		idempGen:      idempotency.NewGenerator(),
	}
}

// posting describes a ledger movement applied to an already locked membership
type posting struct {
	Type           types.TransactionType
	Points         int64
	Description    string
	PerformedBy    string
	ReferenceType  types.TransactionReferenceType
	ReferenceID    string
	IdempotencyKey *string
	ExpiresAt      *time.Time
	// System movements such as expiry also apply to inactive memberships
	AllowInactive bool
}

// postTransaction moves the balance of m and appends the matching transaction.
// It must run inside DB.WithTx with m loaded through a ForUpdate read. On error
// nothing has been written and the caller's transaction is expected to roll back.
func postTransaction(ctx context.Context, repo membership.Repository, m *membership.Membership, p *posting) (*membership.Transaction, error) {
	if err := p.Type.ValidateDelta(p.Points); err != nil {
		return nil, err
	}
	if !p.AllowInactive {
		if err := m.EnsureActive(); err != nil {
			return nil, err
		}
	}
	if err := m.ApplyPoints(p.Points); err != nil {
		return nil, err
	}

	m.Touch(ctx)
	if err := repo.Update(ctx, m); err != nil {
		return nil, err
	}

	performedBy := p.PerformedBy
	if performedBy == "" {
		performedBy = types.GetUserID(ctx)
	}

	tx := &membership.Transaction{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TRANSACTION),
		MembershipID:   m.ID,
		Type:           p.Type,
		Points:         p.Points,
		BalanceAfter:   m.Points,
		Description:    p.Description,
		PerformedBy:    performedBy,
		ReferenceType:  p.ReferenceType,
		ReferenceID:    p.ReferenceID,
		IdempotencyKey: p.IdempotencyKey,
		ExpiresAt:      p.ExpiresAt,
		CreatedAt:      time.Now().UTC(),
	}
	if !p.Type.IsCredit() {
		tx.ExpiresAt = nil
	}

	if err := repo.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *ledgerService) AppendTransaction(ctx context.Context, req *dto.AppendTransactionRequest) (*dto.TransactionResultResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		m            *membership.Membership
		tx           *membership.Transaction
		previousTier types.Tier
		replayed     bool
	)

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		m, err = s.MembershipRepo.GetForUpdate(ctx, req.MembershipID)
		if err != nil {
			return err
		}
		previousTier = m.Tier

		// checked under the membership lock so concurrent retries see each other
		if key := lo.FromPtr(req.IdempotencyKey); key != "" {
			existing, err := s.MembershipRepo.GetTransactionByIdempotencyKey(ctx, key)
			if err == nil {
				if existing.MembershipID != m.ID {
					return ierr.NewError("idempotency key already used").
						WithHint("This idempotency key was already used for another membership").
						WithReportableDetails(map[string]any{
							"idempotency_key": key,
						}).
						Mark(ierr.ErrAlreadyExists)
				}
				tx = existing
				replayed = true
				return nil
			}
			if !ierr.IsNotFound(err) {
				return err
			}
		}

		tx, err = postTransaction(ctx, s.MembershipRepo, m, &posting{
			Type:           req.Type,
			Points:         req.Points,
			Description:    req.Description,
			PerformedBy:    req.PerformedBy,
			ReferenceType:  lo.CoalesceOrEmpty(req.ReferenceType, types.TransactionReferenceTypeManual),
			ReferenceID:    req.ReferenceID,
			IdempotencyKey: req.IdempotencyKey,
			ExpiresAt:      req.ExpiresAt,
		})
		return err
	})
	if err != nil {
		s.Logger.Debugw("ledger append rejected",
			"membership_id", req.MembershipID,
			"type", req.Type,
			"points", req.Points,
			"error", err,
		)
		return nil, err
	}

	if replayed {
		s.Logger.Infow("ledger append replayed",
			"membership_id", m.ID,
			"transaction_id", tx.ID,
		)
		return &dto.TransactionResultResponse{
			Transaction:  dto.NewTransactionResponse(tx),
			Balance:      m.Points,
			Tier:         m.Tier,
			PreviousTier: m.Tier,
			Replayed:     true,
		}, nil
	}

	s.Logger.Infow("ledger transaction appended",
		"membership_id", m.ID,
		"transaction_id", tx.ID,
		"type", tx.Type,
		"points", tx.Points,
		"balance_after", tx.BalanceAfter,
	)

	publishTierUpgraded(ctx, s.ServiceParams, m, previousTier)

	return &dto.TransactionResultResponse{
		Transaction:  dto.NewTransactionResponse(tx),
		Balance:      m.Points,
		Tier:         m.Tier,
		PreviousTier: previousTier,
	}, nil
}

// publishTierUpgraded emits a tier_upgraded event once the tier rose. It runs
// after commit, a publish failure is logged and never undoes the movement.
func publishTierUpgraded(ctx context.Context, params ServiceParams, m *membership.Membership, previousTier types.Tier) {
	if !m.Tier.IsAbove(previousTier) || params.EventPublisher == nil {
		return
	}

	event := &rule.Event{
		Trigger:   types.RuleTriggerTierUpgraded,
		GuestID:   m.GuestID,
		LoyaltyID: m.ID,
		Payload: rule.EventPayload{
			Data: map[string]any{
				"previous_tier": previousTier,
				"new_tier":      m.Tier,
				"points":        m.Points,
			},
		},
		OccurredAt: time.Now().UTC(),
	}

	if err := params.EventPublisher.Publish(ctx, event); err != nil {
		params.Logger.Errorw("failed to publish tier upgrade",
			"membership_id", m.ID,
			"previous_tier", previousTier,
			"tier", m.Tier,
			"error", err,
		)
	}
}

func (s *ledgerService) History(ctx context.Context, membershipID string, limit int) (*dto.ListTransactionsResponse, error) {
	if _, err := s.MembershipRepo.Get(ctx, membershipID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = s.Config.Loyalty.HistoryLimit
	}

	filter := types.NewTransactionFilter()
	filter.Limit = lo.ToPtr(limit)
	filter.Sort = lo.ToPtr("created_at")
	filter.Order = lo.ToPtr(types.OrderDesc)
	filter.MembershipID = lo.ToPtr(membershipID)

	return s.ListTransactions(ctx, filter)
}

func (s *ledgerService) ListTransactions(ctx context.Context, filter *types.TransactionFilter) (*dto.ListTransactionsResponse, error) {
	if filter == nil {
		filter = types.NewTransactionFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	if err := filter.Validate(); err != nil {
		return nil, err
	}

	txs, err := s.MembershipRepo.ListTransactions(ctx, filter)
	if err != nil {
		return nil, err
	}

	count, err := s.MembershipRepo.CountTransactions(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(txs, func(t *membership.Transaction, _ int) *dto.TransactionResponse {
		return dto.NewTransactionResponse(t)
	})

	resp := types.NewListResponse(items, count, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *ledgerService) ExportTransactionsCSV(ctx context.Context, filter *types.TransactionFilter) ([]byte, error) {
	if filter == nil {
		filter = types.NewNoLimitTransactionFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	txs, err := s.MembershipRepo.ListTransactions(ctx, filter)
	if err != nil {
		return nil, err
	}

	rows := lo.Map(txs, func(t *membership.Transaction, _ int) *membership.TransactionExportRow {
		return t.ToExportRow()
	})

	out, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to export transactions").
			Mark(ierr.ErrSystem)
	}

	s.Logger.Debugw("exported ledger transactions", "rows", len(rows))
	return out, nil
}

func (s *ledgerService) ParseTransactionsCSV(data []byte) ([]*membership.TransactionExportRow, error) {
	rows := make([]*membership.TransactionExportRow, 0)
	if err := gocsv.UnmarshalBytes(bytes.TrimSpace(data), &rows); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Transactions file is not valid CSV").
			Mark(ierr.ErrValidation)
	}
	return rows, nil
}

// ExpireDuePoints walks the due credits oldest first, paging on (expires_at, id).
// Each credit is expired in its own transaction, keyed by the credit id so a
// rerun never debits twice. Credits skipped for a zero balance stay due and
// are looked at again by the next sweep.
func (s *ledgerService) ExpireDuePoints(ctx context.Context, now time.Time) (*dto.ExpirePointsResponse, error) {
	resp := &dto.ExpirePointsResponse{}
	var cursor *membership.CreditCursor

	for {
		credits, err := s.MembershipRepo.ListExpiredCredits(ctx, now, cursor, expiryBatchSize)
		if err != nil {
			return resp, err
		}
		if len(credits) == 0 {
			break
		}
		cursor = membership.CursorOf(credits[len(credits)-1])

		for _, credit := range credits {
			expired, err := s.expireCredit(ctx, credit)
			if err != nil {
				if ierr.IsStorageUnavailable(err) {
					return resp, err
				}
				s.Logger.Errorw("failed to expire points",
					"transaction_id", credit.ID,
					"membership_id", credit.MembershipID,
					"error", err,
				)
				resp.Skipped++
				continue
			}
			if expired == 0 {
				resp.Skipped++
				continue
			}
			resp.Expired++
			resp.PointsExpired += expired
		}

		if len(credits) < expiryBatchSize {
			break
		}
	}

	s.Logger.Infow("points expiry sweep finished",
		"expired", resp.Expired,
		"points_expired", resp.PointsExpired,
		"skipped", resp.Skipped,
	)
	return resp, nil
}

// expireCredit debits min(credit, balance) and returns the points taken
func (s *ledgerService) expireCredit(ctx context.Context, credit *membership.Transaction) (int64, error) {
	var expired int64
	key := s.idempGen.GenerateKey(idempotency.ScopePointExpiry, map[string]interface{}{
		"transaction_id": credit.ID,
	})

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		m, err := s.MembershipRepo.GetForUpdate(ctx, credit.MembershipID)
		if err != nil {
			return err
		}

		if _, err := s.MembershipRepo.GetTransactionByIdempotencyKey(ctx, key); err == nil {
			return nil
		} else if !ierr.IsNotFound(err) {
			return err
		}

		debit := min(credit.Points, m.Points)
		if debit <= 0 {
			return nil
		}

		_, err = postTransaction(ctx, s.MembershipRepo, m, &posting{
			Type:           types.TransactionTypeExpiry,
			Points:         -debit,
			Description:    fmt.Sprintf("Points expired from transaction %s", credit.ID),
			PerformedBy:    types.DefaultUserID,
			ReferenceType:  types.TransactionReferenceTypeTransaction,
			ReferenceID:    credit.ID,
			IdempotencyKey: lo.ToPtr(key),
			AllowInactive:  true,
		})
		if err != nil {
			return err
		}
		expired = debit
		return nil
	})
	return expired, err
}
