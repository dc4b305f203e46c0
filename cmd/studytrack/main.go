package main

import (
	"context"
	"log/slog"
	"os"

	"studytrack/config"
	"studytrack/internal/delivery"
	"studytrack/internal/delivery/http"
	"studytrack/internal/delivery/http/middleware"
	"studytrack/internal/delivery/http/router/handler"
	"studytrack/internal/domain/service"
	"studytrack/internal/infra/audit"
	"studytrack/internal/infra/auth"
	"studytrack/internal/infra/auth/google"
	logs "studytrack/internal/infra/log"
	"studytrack/internal/infra/persistence/postgres"
	"studytrack/internal/infra/ratelimit"
	"studytrack/internal/usecase/impl"

	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectRepo(),
		injectService(),
		injectUsecase(),
		injectDelivery(),
		injectMiddleware(),
		injectHandler(),
		fx.Invoke(
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
		postgres.New,
	)
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			postgres.NewUserRepository,
			postgres.NewAuditRepository,
			postgres.NewTransactionManager,
		),
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			auth.NewBcryptHasher,
			auth.NewJWTService,
			auth.NewResetTokenGenerator,
			google.NewAuthService,
			audit.NewStoreAuditLog,
			newRateLimiter,
		),
	)
}

// newRateLimiter selects the rate limiter backend. Redis when configured,
// otherwise the in-process fixed-window limiter, which is only appropriate
// for single-instance deployments.
func newRateLimiter(cfg *config.Config, logger *slog.Logger) (service.RateLimiter, error) {
	if cfg.Redis == nil {
		logger.Warn("Redis not configured, using in-process rate limiter")

		return ratelimit.NewMemoryLimiter(), nil
	}

	return ratelimit.NewRedisLimiter(cfg, logger)
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewAuthService,
		),
	)
}

func injectMiddleware() fx.Option {
	return fx.Options(
		fx.Provide(
			middleware.NewAuthMiddleware,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewAuthHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				http.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))
				os.Exit(1)
			}
		}()
	}
}
