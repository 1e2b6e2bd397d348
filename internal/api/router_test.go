package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	v1 "github.com/innkeep/loyalty/internal/api/v1"
	"github.com/innkeep/loyalty/internal/cache"
	"github.com/innkeep/loyalty/internal/config"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/innkeep/loyalty/internal/repository"
	"github.com/innkeep/loyalty/internal/service"
	"github.com/innkeep/loyalty/internal/testutil"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/stretchr/testify/suite"
)

type RouterSuite struct {
	suite.Suite
	router *gin.Engine
}

func TestRouter(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	cfg := config.GetDefaultConfig()
	cfg.Deployment.Mode = types.ModeAPI
	log := logger.NewNoopLogger()

	backend, err := repository.NewBackend(cfg, log)
	s.Require().NoError(err)

	pub := testutil.NewInMemoryPublisher()
	params := service.NewServiceParams(
		log,
		cfg,
		repository.NewClient(backend),
		cache.NewInMemoryCache(cfg, log),
		repository.NewMembershipRepository(backend, log),
		repository.NewRewardRepository(backend, log),
		repository.NewRuleRepository(backend, log),
		pub,
		pub,
	)

	ledger := service.NewLedgerService(params)
	rules := service.NewRuleService(params)
	s.router = NewRouter(Handlers{
		Health:      v1.NewHealthHandler(backend, log),
		Membership:  v1.NewMembershipHandler(service.NewMembershipService(params), ledger, log),
		Transaction: v1.NewTransactionHandler(ledger, log),
		Reward:      v1.NewRewardHandler(service.NewRewardService(params), log),
		Rule:        v1.NewRuleHandler(rules, log),
		Event:       v1.NewEventHandler(rules, service.NewEventService(params, nil), log),
		Report:      v1.NewReportHandler(service.NewReportService(params), log),
		Cron:        v1.NewCronHandler(ledger, log),
	}, cfg, log)
}

func (s *RouterSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(types.HeaderUserID, "front-desk")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (s *RouterSuite) errorCode(rec *httptest.ResponseRecorder) string {
	body := s.decode(rec)
	detail, ok := body["error"].(map[string]any)
	s.Require().True(ok, "error body: %s", rec.Body.String())
	return detail["code"].(string)
}

func (s *RouterSuite) enroll(guestID string) string {
	rec := s.do(http.MethodPost, "/v1/memberships", map[string]any{"guest_id": guestID})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	return s.decode(rec)["id"].(string)
}

func (s *RouterSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("memory", s.decode(rec)["storage"])
	s.NotEmpty(rec.Header().Get(types.HeaderRequestID))
}

func (s *RouterSuite) TestEnrollAndAdjust() {
	id := s.enroll("guest-1")

	rec := s.do(http.MethodPost, "/v1/memberships", map[string]any{"guest_id": "guest-1"})
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("already_exists", s.errorCode(rec))

	rec = s.do(http.MethodPost, "/v1/memberships/"+id+"/adjust", map[string]any{
		"points":      2500,
		"description": "status match",
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	body := s.decode(rec)
	s.EqualValues(2500, body["balance"])
	s.Equal("gold", body["tier"])
	tx := body["transaction"].(map[string]any)
	s.Equal("front-desk", tx["performed_by"])

	rec = s.do(http.MethodGet, "/v1/memberships/guest/guest-1", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(id, s.decode(rec)["id"])

	rec = s.do(http.MethodGet, "/v1/memberships/"+id+"/history?limit=10", nil)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/v1/memberships/"+id+"/transactions/export", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Header().Get("Content-Type"), "text/csv")
	s.Contains(rec.Header().Get("Content-Disposition"), "attachment")
	s.Equal(2, strings.Count(strings.TrimSpace(rec.Body.String()), "\n")+1)
}

func (s *RouterSuite) TestUnknownMembership() {
	rec := s.do(http.MethodGet, "/v1/memberships/mem_missing", nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("member_not_found", s.errorCode(rec))
}

func (s *RouterSuite) TestMalformedBody() {
	req := httptest.NewRequest(http.MethodPost, "/v1/memberships", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("validation_error", s.errorCode(rec))
}

func (s *RouterSuite) TestRedeemFlow() {
	id := s.enroll("guest-redeem")
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/v1/memberships/"+id+"/adjust", map[string]any{
		"points":      600,
		"description": "seed",
	}).Code)

	rec := s.do(http.MethodPost, "/v1/rewards", map[string]any{
		"name":            "Spa voucher",
		"points_cost":     500,
		"stock_available": 1,
		"validity_days":   30,
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	rewardID := s.decode(rec)["id"].(string)

	redeem := map[string]any{"guest_id": "guest-redeem", "idempotency_key": "checkout-1"}
	rec = s.do(http.MethodPost, fmt.Sprintf("/v1/rewards/%s/redeem", rewardID), redeem)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	body := s.decode(rec)
	s.EqualValues(100, body["balance"])
	s.EqualValues(0, body["remaining_stock"])

	// same key replays the redemption
	rec = s.do(http.MethodPost, fmt.Sprintf("/v1/rewards/%s/redeem", rewardID), redeem)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(true, s.decode(rec)["replayed"])

	rec = s.do(http.MethodPost, fmt.Sprintf("/v1/rewards/%s/redeem", rewardID), map[string]any{"guest_id": "guest-redeem"})
	s.Equal(http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(http.MethodGet, "/v1/redemptions?guest_id=guest-redeem", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Len(s.decode(rec)["items"], 1)
}

func (s *RouterSuite) TestRulesAndEvents() {
	s.enroll("guest-events")

	rec := s.do(http.MethodPost, "/v1/rules", map[string]any{
		"name":    "Stay points",
		"trigger": "booking_completed",
		"conditions": map[string]any{
			"min_booking_amount": "200",
		},
		"action": map[string]any{
			"type":   "award_points",
			"points": 100,
		},
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/v1/rules/executions", nil)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/v1/events", map[string]any{
		"event_id": "evt-http-1",
		"trigger":  "booking_completed",
		"guest_id": "guest-events",
		"payload":  map[string]any{"booking_amount": "250"},
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.EqualValues(100, s.decode(rec)["points_awarded"])

	rec = s.do(http.MethodPost, "/v1/events", map[string]any{"trigger": "booking_completed"})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/v1/events/publish", map[string]any{
		"trigger":  "booking_completed",
		"guest_id": "guest-events",
	})
	s.Equal(http.StatusAccepted, rec.Code)

	rec = s.do(http.MethodGet, "/v1/reports/stats", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.EqualValues(100, s.decode(rec)["total_points_issued"])
}

func (s *RouterSuite) TestExpireCron() {
	rec := s.do(http.MethodPost, "/v1/cron/points/expire", nil)
	s.Equal(http.StatusOK, rec.Code)
}
