package service

import (
	"testing"
	"time"

	"github.com/innkeep/loyalty/internal/api/dto"
	"github.com/innkeep/loyalty/internal/cache"
	"github.com/innkeep/loyalty/internal/domain/membership"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/testutil"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type ReportServiceSuite struct {
	testutil.BaseServiceTestSuite
	service ReportService
}

func TestReportService(t *testing.T) {
	suite.Run(t, new(ReportServiceSuite))
}

func (s *ReportServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewReportService(newTestServiceParams(&s.BaseServiceTestSuite))
}

func (s *ReportServiceSuite) seed() {
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	ledger := NewLedgerService(params)

	enrollWithPoints(&s.BaseServiceTestSuite, "guest-silver", 300)
	gold := enrollWithPoints(&s.BaseServiceTestSuite, "guest-gold", 2500)
	enrollWithPoints(&s.BaseServiceTestSuite, "guest-platinum", 6000)
	idle := enrollWithPoints(&s.BaseServiceTestSuite, "guest-idle", 0)

	for i := 0; i < 3; i++ {
		_, err := ledger.AppendTransaction(s.GetContext(), &dto.AppendTransactionRequest{
			MembershipID: gold.ID,
			Type:         types.TransactionTypeRedeem,
			Points:       -100,
			Description:  "spa",
		})
		s.Require().NoError(err)
	}

	_, err := NewMembershipService(params).UpdateStatus(s.GetContext(), idle.ID,
		&dto.UpdateMembershipStatusRequest{MembershipStatus: types.MembershipStatusInactive})
	s.Require().NoError(err)
}

func (s *ReportServiceSuite) TestStats() {
	s.seed()

	stats, err := s.service.GetStats(s.GetContext(), nil)
	s.Require().NoError(err)

	s.Equal(4, stats.MemberCount)
	s.Equal(3, stats.ActiveMemberCount)
	s.Equal(int64(300+2500+6000), stats.TotalPointsIssued)
	s.Equal(int64(300), stats.TotalPointsRedeemed)
	s.Equal(int64(300+2200+6000), stats.CurrentBalance)

	s.Require().Len(stats.TierDistribution, 3)
	byTier := lo.KeyBy(stats.TierDistribution, func(t *membership.TierSummary) types.Tier { return t.Tier })
	s.Equal(2, byTier[types.TierSilver].Count)
	s.Equal(1, byTier[types.TierGold].Count)
	s.Equal(1, byTier[types.TierPlatinum].Count)

	s.Require().NotEmpty(stats.MostActiveMembers)
	s.Equal("guest-gold", stats.MostActiveMembers[0].GuestID)
	s.Equal(4, stats.MostActiveMembers[0].TransactionCount)
}

func (s *ReportServiceSuite) TestStatsEmptyProgram() {
	stats, err := s.service.GetStats(s.GetContext(), &types.ReportFilter{TopN: 5})
	s.Require().NoError(err)
	s.Equal(0, stats.MemberCount)
	s.Len(stats.TierDistribution, 3)
	for _, t := range stats.TierDistribution {
		s.Zero(t.Count)
	}
	s.Empty(stats.MostActiveMembers)
}

func (s *ReportServiceSuite) TestStatsWindow() {
	s.seed()

	future := s.GetNow().Add(time.Hour)
	stats, err := s.service.GetStats(s.GetContext(), &types.ReportFilter{
		TimeRangeFilter: &types.TimeRangeFilter{StartTime: &future},
	})
	s.Require().NoError(err)
	s.Zero(stats.TotalPointsIssued)
	s.Zero(stats.TotalPointsRedeemed)
	// balances are a snapshot and ignore the window
	s.Equal(4, stats.MemberCount)

	end := s.GetNow().Add(-time.Hour)
	_, err = s.service.GetStats(s.GetContext(), &types.ReportFilter{
		TimeRangeFilter: &types.TimeRangeFilter{StartTime: &future, EndTime: &end},
	})
	s.True(ierr.IsValidation(err))
}

func (s *ReportServiceSuite) TestStatsCached() {
	cfg := *s.GetConfig()
	cfg.Cache.Enabled = true
	cfg.Cache.TTL = time.Minute

	params := newTestServiceParams(&s.BaseServiceTestSuite)
	params.Cache = cache.NewInMemoryCache(&cfg, s.GetLogger())
	svc := NewReportService(params)

	enrollWithPoints(&s.BaseServiceTestSuite, "guest-cached", 100)
	first, err := svc.GetStats(s.GetContext(), nil)
	s.Require().NoError(err)

	enrollWithPoints(&s.BaseServiceTestSuite, "guest-late", 100)
	second, err := svc.GetStats(s.GetContext(), nil)
	s.Require().NoError(err)
	s.Equal(first.MemberCount, second.MemberCount)

	params.Cache.Flush(s.GetContext())
	third, err := svc.GetStats(s.GetContext(), nil)
	s.Require().NoError(err)
	s.Equal(2, third.MemberCount)
}
