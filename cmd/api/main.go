package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-desk/internal/api/http"
	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/realtime"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
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

	var (
		userRepo    repository.UserRepository
		ticketRepo  repository.TicketRepository
		messageRepo repository.ChatMessageRepository
	)
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		pool := pg.PoolHandle()
		userRepo = repository.NewUserRepository(pool)
		ticketRepo = repository.NewTicketRepository(pool)
		messageRepo = repository.NewChatMessageRepository(pool)
	} else {
		store := repository.NewMemoryStore()
		userRepo = store.Users()
		ticketRepo = store.Tickets()
		messageRepo = store.Messages()
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	hub := realtime.NewHub(logger, metrics, cfg.Realtime.SendBufferSize)
	var sequencer *realtime.Sequencer
	if cfg.Realtime.OrderedDelivery {
		sequencer = realtime.NewSequencer()
	}
	dispatcher := events.NewInMemoryDispatcher(logger)

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	if err != nil {
		logger.Fatal("failed to init token manager", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(tokens, userRepo)

	authService := service.NewAuthService(cfg.Auth, userRepo, tokens, logger)
	if err := authService.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		logger.Fatal("failed to bootstrap admin", zap.Error(err))
	}
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		MessageRepo: messageRepo,
		UserRepo:    userRepo,
		Broadcaster: hub,
		Dispatcher:  dispatcher,
		Sequencer:   sequencer,
		MapsBaseURL: cfg.Maps.SearchBaseURL,
		Logger:      logger,
	})
	chatService := service.NewChatService(service.ChatDependencies{
		TicketRepo:  ticketRepo,
		MessageRepo: messageRepo,
		Broadcaster: hub,
		Dispatcher:  dispatcher,
		Sequencer:   sequencer,
		Logger:      logger,
	})
	notificationService := service.NewNotificationService(dispatcher, redis, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService, cfg.Notification, logger)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Users:   handlers.NewUsersHandler(authService),
		Tickets: handlers.NewTicketsHandler(ticketService, chatService),
		Realtime: handlers.NewRealtimeHandler(handlers.RealtimeDependencies{
			Hub:            hub,
			Tickets:        ticketService,
			Chat:           chatService,
			Authenticator:  authenticator,
			Config:         cfg.Realtime,
			RequestTimeout: cfg.App.RequestTimeout(),
			Logger:         logger,
		}),
		Metrics:       handlers.NewMetricsHandler(metrics, hub),
		Authenticator: authenticator,
		StatusPolicy:  cfg.Auth.StatusUpdatePolicy,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("status_policy", string(cfg.Auth.StatusUpdatePolicy)))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	hub.CloseAll()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
