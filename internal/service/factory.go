package service

import (
	"github.com/innkeep/loyalty/internal/cache"
	"github.com/innkeep/loyalty/internal/config"
	"github.com/innkeep/loyalty/internal/domain/membership"
	"github.com/innkeep/loyalty/internal/domain/reward"
	"github.com/innkeep/loyalty/internal/domain/rule"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/innkeep/loyalty/internal/postgres"
	"github.com/innkeep/loyalty/internal/publisher"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Cache  cache.Cache

	// Repositories
	MembershipRepo membership.Repository
	RewardRepo     reward.Repository
	RuleRepo       rule.Repository

	// Publishers
	EventPublisher        publisher.EventPublisher
	NotificationPublisher publisher.NotificationPublisher
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	cache cache.Cache,
	membershipRepo membership.Repository,
	rewardRepo reward.Repository,
	ruleRepo rule.Repository,
	eventPublisher publisher.EventPublisher,
	notificationPublisher publisher.NotificationPublisher,
) ServiceParams {
	return ServiceParams{
		Logger:                logger,
		Config:                config,
		DB:                    db,
		Cache:                 cache,
		MembershipRepo:        membershipRepo,
		RewardRepo:            rewardRepo,
		RuleRepo:              ruleRepo,
		EventPublisher:        eventPublisher,
		NotificationPublisher: notificationPublisher,
	}
}
