package api

import (
	"github.com/gin-gonic/gin"
	v1 "github.com/innkeep/loyalty/internal/api/v1"
	"github.com/innkeep/loyalty/internal/config"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/innkeep/loyalty/internal/rest/middleware"
	"github.com/innkeep/loyalty/internal/types"
)

type Handlers struct {
	Health      *v1.HealthHandler
	Membership  *v1.MembershipHandler
	Transaction *v1.TransactionHandler
	Reward      *v1.RewardHandler
	Rule        *v1.RuleHandler
	Event       *v1.EventHandler
	Report      *v1.ReportHandler
	Cron        *v1.CronHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger) *gin.Engine {
	if cfg.Deployment.Mode != types.ModeLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.RequestLogger(logger),
		middleware.ActorMiddleware,
		middleware.ErrorHandler(),
	)

	router.GET("/health", handlers.Health.Health)

	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	router.GET("/health", handlers.Health.Health)

	memberships := router.Group("/memberships")
	{
		memberships.POST("", handlers.Membership.Enroll)
		memberships.GET("", handlers.Membership.List)
		memberships.GET("/guest/:guest_id", handlers.Membership.GetByGuestID)
		memberships.GET("/:id", handlers.Membership.Get)
		memberships.PUT("/:id/status", handlers.Membership.UpdateStatus)
		memberships.DELETE("/:id", handlers.Membership.Delete)
		memberships.POST("/:id/adjust", handlers.Membership.AdjustPoints)
		memberships.GET("/:id/history", handlers.Membership.History)
		memberships.GET("/:id/transactions/export", handlers.Membership.ExportTransactions)
	}

	router.GET("/transactions", handlers.Transaction.List)

	rewards := router.Group("/rewards")
	{
		rewards.POST("", handlers.Reward.CreateReward)
		rewards.GET("", handlers.Reward.ListRewards)
		rewards.GET("/:id", handlers.Reward.GetReward)
		rewards.PUT("/:id", handlers.Reward.UpdateReward)
		rewards.DELETE("/:id", handlers.Reward.DeleteReward)
		rewards.POST("/:id/redeem", handlers.Reward.Redeem)
	}

	router.GET("/redemptions", handlers.Reward.ListRedemptions)

	rules := router.Group("/rules")
	{
		rules.POST("", handlers.Rule.CreateRule)
		rules.GET("", handlers.Rule.ListRules)
		// static segment registered before the :id wildcard
		rules.GET("/executions", handlers.Rule.ListExecutions)
		rules.GET("/:id", handlers.Rule.GetRule)
		rules.PUT("/:id", handlers.Rule.UpdateRule)
		rules.DELETE("/:id", handlers.Rule.DeleteRule)
		rules.POST("/:id/test", handlers.Rule.TestRule)
	}

	events := router.Group("/events")
	{
		events.POST("", handlers.Event.ProcessEvent)
		events.POST("/publish", handlers.Event.PublishEvent)
	}

	reports := router.Group("/reports")
	{
		reports.GET("/stats", handlers.Report.GetStats)
	}

	cron := router.Group("/cron")
	{
		cron.POST("/points/expire", handlers.Cron.ExpirePoints)
	}
}
