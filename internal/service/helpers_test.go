package service

import (
	"github.com/innkeep/loyalty/internal/api/dto"
	"github.com/innkeep/loyalty/internal/testutil"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/samber/lo"
)

// newTestServiceParams wires the in-memory backend of the suite into the services
func newTestServiceParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	stores := s.GetStores()
	return NewServiceParams(
		s.GetLogger(),
		s.GetConfig(),
		s.GetDB(),
		s.GetCache(),
		stores.MembershipRepo,
		stores.RewardRepo,
		stores.RuleRepo,
		s.GetPublisher(),
		s.GetPublisher(),
	)
}

// enrollWithPoints enrolls a guest and credits the given balance through the ledger
func enrollWithPoints(s *testutil.BaseServiceTestSuite, guestID string, points int64) *dto.MembershipResponse {
	params := newTestServiceParams(s)
	m, err := NewMembershipService(params).Enroll(s.GetContext(), &dto.EnrollMembershipRequest{GuestID: guestID})
	s.Require().NoError(err)

	if points > 0 {
		_, err = NewLedgerService(params).AppendTransaction(s.GetContext(), &dto.AppendTransactionRequest{
			MembershipID: m.ID,
			Type:         types.TransactionTypeEarn,
			Points:       points,
			Description:  "seed",
		})
		s.Require().NoError(err)
	}

	got, err := params.MembershipRepo.Get(s.GetContext(), m.ID)
	s.Require().NoError(err)
	return dto.NewMembershipResponse(got)
}

func keyPtr(key string) *string {
	return lo.ToPtr(key)
}
