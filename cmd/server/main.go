package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/innkeep/loyalty/internal/api"
	v1 "github.com/innkeep/loyalty/internal/api/v1"
	"github.com/innkeep/loyalty/internal/cache"
	"github.com/innkeep/loyalty/internal/config"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/innkeep/loyalty/internal/publisher"
	pubsubRouter "github.com/innkeep/loyalty/internal/pubsub/router"
	"github.com/innkeep/loyalty/internal/repository"
	"github.com/innkeep/loyalty/internal/service"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/innkeep/loyalty/internal/validator"
	"go.uber.org/fx"
)

func init() {
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Cache
			cache.NewInMemoryCache,

			// Storage
			repository.NewBackend,
			repository.NewClient,

			// Repositories
			repository.NewMembershipRepository,
			repository.NewRewardRepository,
			repository.NewRuleRepository,

			// PubSub
			pubsubRouter.NewRouter,
		),
	)

	// Event bus and publishers
	opts = append(opts, publisher.Module)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewMembershipService,
			service.NewLedgerService,
			service.NewRewardService,
			service.NewRuleService,
			service.NewEventService,
			service.NewReportService,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			closeBackend,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideHandlers(
	logger *logger.Logger,
	backend *repository.Backend,
	membershipService service.MembershipService,
	ledgerService service.LedgerService,
	rewardService service.RewardService,
	ruleService service.RuleService,
	eventService service.EventService,
	reportService service.ReportService,
) api.Handlers {
	return api.Handlers{
		Health:      v1.NewHealthHandler(backend, logger),
		Membership:  v1.NewMembershipHandler(membershipService, ledgerService, logger),
		Transaction: v1.NewTransactionHandler(ledgerService, logger),
		Reward:      v1.NewRewardHandler(rewardService, logger),
		Rule:        v1.NewRuleHandler(ruleService, logger),
		Event:       v1.NewEventHandler(ruleService, eventService, logger),
		Report:      v1.NewReportHandler(reportService, logger),
		Cron:        v1.NewCronHandler(ledgerService, logger),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, logger *logger.Logger) *gin.Engine {
	return api.NewRouter(handlers, cfg, logger)
}

func closeBackend(lc fx.Lifecycle, backend *repository.Backend, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Infow("closing storage", "backend", backend.Type)
			return backend.Close()
		},
	})
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	router *pubsubRouter.Router,
	eventService service.EventService,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal:
		startAPIServer(lc, r, cfg, log)
		startMessageRouter(lc, router, eventService, log)
	case types.ModeAPI:
		startAPIServer(lc, r, cfg, log)
	case types.ModeConsumer:
		startMessageRouter(lc, router, eventService, log)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting API server", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down server")
			return srv.Shutdown(ctx)
		},
	})
}

func startMessageRouter(
	lc fx.Lifecycle,
	router *pubsubRouter.Router,
	eventService service.EventService,
	logger *logger.Logger,
) {
	// Register handlers before starting the router
	eventService.RegisterHandler(router)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting message router")
			go func() {
				if err := router.Run(context.Background()); err != nil {
					logger.Errorw("message router failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping message router")
			return router.Close()
		},
	})
}
