package service

import (
	"context"
	"time"

	"github.com/innkeep/loyalty/internal/api/dto"
	"github.com/innkeep/loyalty/internal/cache"
	"github.com/innkeep/loyalty/internal/domain/membership"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
)

// ReportService computes the stats projection. It reads committed state only and
// takes no locks, numbers can trail concurrent writes slightly.
type ReportService interface {
	GetStats(ctx context.Context, filter *types.ReportFilter) (*dto.StatsResponse, error)
}

type reportService struct {
	ServiceParams
}

func NewReportService(params ServiceParams) ReportService {
	return &reportService{
		ServiceParams: params,
	}
}

var reportTiers = []types.Tier{types.TierSilver, types.TierGold, types.TierPlatinum}

func (s *reportService) GetStats(ctx context.Context, filter *types.ReportFilter) (*dto.StatsResponse, error) {
	if filter == nil {
		filter = &types.ReportFilter{}
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	window := filter.TimeRangeFilter
	if window == nil {
		window = &types.TimeRangeFilter{}
	}
	topN := filter.GetTopN()

	key := cache.GenerateKey(cache.PrefixReportStats,
		formatWindowBound(window.StartTime),
		formatWindowBound(window.EndTime),
		topN,
	)
	if s.Cache != nil {
		if cached, ok := s.Cache.Get(ctx, key); ok {
			if stats, ok := cached.(*dto.StatsResponse); ok {
				s.Logger.Debugw("stats served from cache", "key", key)
				return stats, nil
			}
		}
	}

	var (
		balance  *membership.BalanceSummary
		tiers    []*membership.TierSummary
		totals   []*membership.TransactionTotal
		activity []*membership.MemberActivity
	)

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		var err error
		balance, err = s.MembershipRepo.GetBalanceSummary(ctx)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		tiers, err = s.MembershipRepo.GetTierDistribution(ctx)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		totals, err = s.MembershipRepo.GetTransactionTotals(ctx, window)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		activity, err = s.MembershipRepo.GetMostActiveMembers(ctx, window, topN)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}

	stats := &dto.StatsResponse{
		StartTime:         window.StartTime,
		EndTime:           window.EndTime,
		PointsByType:      totals,
		CurrentBalance:    balance.TotalPoints,
		MemberCount:       balance.MemberCount,
		ActiveMemberCount: balance.ActiveMemberCount,
		TierDistribution:  fillTiers(tiers),
		MostActiveMembers: activity,
		GeneratedAt:       time.Now().UTC(),
	}
	for _, t := range totals {
		stats.TotalPointsIssued += t.Credited
		stats.TotalPointsRedeemed += t.Debited
	}

	if s.Cache != nil {
		s.Cache.Set(ctx, key, stats, 0)
	}
	return stats, nil
}

// fillTiers reports every tier, with zeroes for tiers nobody holds
func fillTiers(rows []*membership.TierSummary) []*membership.TierSummary {
	byTier := lo.KeyBy(rows, func(r *membership.TierSummary) types.Tier { return r.Tier })
	return lo.Map(reportTiers, func(t types.Tier, _ int) *membership.TierSummary {
		if row, ok := byTier[t]; ok {
			return row
		}
		return &membership.TierSummary{Tier: t}
	})
}

func formatWindowBound(t *time.Time) string {
	if t == nil {
		return "open"
	}
	return types.FormatTime(*t)
}
