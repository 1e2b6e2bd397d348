package testutil

import (
	"context"
	"time"

	"github.com/innkeep/loyalty/internal/cache"
	"github.com/innkeep/loyalty/internal/config"
	"github.com/innkeep/loyalty/internal/domain/membership"
	"github.com/innkeep/loyalty/internal/domain/reward"
	"github.com/innkeep/loyalty/internal/domain/rule"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/innkeep/loyalty/internal/postgres"
	"github.com/innkeep/loyalty/internal/repository/memory"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/innkeep/loyalty/internal/validator"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	MembershipRepo membership.Repository
	RewardRepo     reward.Repository
	RuleRepo       rule.Repository
}

// BaseServiceTestSuite provides common functionality for all service test suites.
// Every test runs against a fresh in-memory backend.
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	store     *memory.Store
	stores    Stores
	publisher *InMemoryPublisher
	cache     cache.Cache
	logger    *logger.Logger
	config    *config.Configuration
	now       time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	s.config = config.GetDefaultConfig()
	s.config.Logging.Level = types.LogLevelInfo
	s.logger = logger.NewNoopLogger()
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.setupContext()
	s.setupStores()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = SetupContext()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.store = memory.NewStore(s.logger)
	s.stores = Stores{
		MembershipRepo: memory.NewMembershipRepository(s.store),
		RewardRepo:     memory.NewRewardRepository(s.store),
		RuleRepo:       memory.NewRuleRepository(s.store),
	}
	s.publisher = NewInMemoryPublisher()
	s.cache = cache.NewInMemoryCache(s.config, s.logger)
}

func (s *BaseServiceTestSuite) clearStores() {
	s.store.Reset()
	s.publisher.Clear()
	s.cache.Flush(s.ctx)
}

func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetDB returns the transaction boundary of the in-memory backend
func (s *BaseServiceTestSuite) GetDB() postgres.IClient {
	return s.store
}

// GetStores returns all in-memory stores
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetPublisher returns the recording publisher used for events and notifications
func (s *BaseServiceTestSuite) GetPublisher() *InMemoryPublisher {
	return s.publisher
}

func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

// GetNow returns the time captured when the test started
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}
