package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/erp-workflow/internal/api/http"
	"github.com/spec-kit/erp-workflow/internal/api/http/handlers"
	"github.com/spec-kit/erp-workflow/internal/auth"
	"github.com/spec-kit/erp-workflow/internal/config"
	"github.com/spec-kit/erp-workflow/internal/events"
	"github.com/spec-kit/erp-workflow/internal/lock"
	"github.com/spec-kit/erp-workflow/internal/observability"
	"github.com/spec-kit/erp-workflow/internal/persistence"
	"github.com/spec-kit/erp-workflow/internal/repository"
	"github.com/spec-kit/erp-workflow/internal/repository/memory"
	"github.com/spec-kit/erp-workflow/internal/service"
	"github.com/spec-kit/erp-workflow/internal/worker"
)

type repositories struct {
	users   repository.UserRepository
	tickets repository.TicketRepository
	history repository.TicketHistoryRepository
	orders  repository.OrderRepository
}

func main() {
	envFile := pflag.String("env-file", ".env", "path of the dotenv file to load")
	migrateOnly := pflag.Bool("migrate-only", false, "apply database migrations and exit")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && (cfg.Postgres.RunMigrations || *migrateOnly) {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}
	if *migrateOnly {
		if !pg.Enabled() {
			logger.Fatal("--migrate-only requires POSTGRES_DSN")
		}
		logger.Info("migrations applied")
		return
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	repos := newRepositories(pg)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	steps, err := config.LoadStepTemplate(cfg.Workflow.StepTemplatePath)
	if err != nil {
		logger.Fatal("failed to load step template", zap.Error(err))
	}

	rt := service.Runtime{
		Locker:     newLocker(cfg.Lock, redis, logger),
		LockPrefix: cfg.Lock.KeyPrefix,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	}
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  repos.tickets,
		HistoryRepo: repos.history,
		UserRepo:    repos.users,
		Runtime:     rt,
	})
	orderService := service.NewOrderService(service.OrderDependencies{
		OrderRepo:    repos.orders,
		UserRepo:     repos.users,
		StepTemplate: steps,
		Runtime:      rt,
	})

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notificationService.RegisterHandlers()
	notifications := worker.StartNotificationWorker(ctx, notificationService)
	defer notifications.Stop()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(cfg.Auth, repos.users, tokens, logger)
	if created, err := authService.EnsureBootstrapAdmin(ctx, cfg.Auth); err != nil {
		logger.Fatal("failed to bootstrap admin", zap.Error(err))
	} else if created {
		logger.Info("bootstrap admin created", zap.String("email", cfg.Auth.BootstrapAdminEmail))
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Checker{
			"postgres": pg,
			"redis":    redis,
		}, metrics),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Orders:         handlers.NewOrdersHandler(orderService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, repos.users),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func newRepositories(pg *persistence.Postgres) repositories {
	if pool := pg.PoolHandle(); pool != nil {
		return repositories{
			users:   repository.NewUserRepository(pool),
			tickets: repository.NewTicketRepository(pool),
			history: repository.NewTicketHistoryRepository(pool),
			orders:  repository.NewOrderRepository(pool),
		}
	}
	store := memory.NewStore()
	return repositories{
		users:   store.Users(),
		tickets: store.Tickets(),
		history: store.History(),
		orders:  store.Orders(),
	}
}

func newLocker(cfg config.LockConfig, redis *persistence.Redis, logger *zap.Logger) lock.Locker {
	switch {
	case !cfg.Enabled:
		return lock.Nop{}
	case redis.Enabled():
		return lock.NewRedisLocker(redis.Client, cfg.TTL())
	default:
		logger.Warn("redis unavailable; using process-local transition locks")
		return lock.NewLocalLocker()
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
