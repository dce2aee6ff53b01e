package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/vuny-labs/marketplace-service/internal/api/http"
	"github.com/vuny-labs/marketplace-service/internal/api/http/handlers"
	"github.com/vuny-labs/marketplace-service/internal/auth"
	"github.com/vuny-labs/marketplace-service/internal/config"
	"github.com/vuny-labs/marketplace-service/internal/events"
	"github.com/vuny-labs/marketplace-service/internal/observability"
	"github.com/vuny-labs/marketplace-service/internal/persistence"
	"github.com/vuny-labs/marketplace-service/internal/repository"
	"github.com/vuny-labs/marketplace-service/internal/service"
	"github.com/vuny-labs/marketplace-service/internal/stream"
	"github.com/vuny-labs/marketplace-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
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

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisConn := persistence.NewRedis(cfg.Redis, logger)
	defer redisConn.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	productRepo := repository.NewProductRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	auditRepo := repository.NewAuditLogRepository(pool)
	staffMessageRepo := repository.NewStaffMessageRepository(pool)
	counterCache := repository.NewTicketCounterCache(redisConn.Client, cfg.Stream.CountCacheTTL())

	metrics := observability.NewMetrics()
	broadcaster := stream.NewBroadcaster(cfg.Stream.SubscriberBuffer, logger)
	dispatcher := events.NewInMemoryDispatcher()

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewMiddleware(tokenManager, userRepo)

	auditService := service.NewAuditService(auditRepo, logger)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, cfg.Notification.WebhookURL, logger)
	authService := service.NewAuthService(userRepo, tokenManager, cfg.Auth.BcryptCost)
	userService := service.NewUserService(userRepo, notificationService, auditService, logger)
	productService := service.NewProductService(productRepo, auditService, logger)
	staffChatService := service.NewStaffChatService(staffMessageRepo, userRepo, broadcaster, metrics, logger)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   ticketRepo,
		ProductRepo:  productRepo,
		UserRepo:     userRepo,
		CounterCache: counterCache,
		Broadcaster:  broadcaster,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})

	worker.Start(dispatcher, notificationService, auditService)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redisConn),
		Users:          handlers.NewUsersHandler(authService, userService),
		Products:       handlers.NewProductsHandler(productService),
		ShopTickets:    handlers.NewShopTicketsHandler(ticketService),
		SupportTickets: handlers.NewSupportTicketsHandler(ticketService),
		Stream:         handlers.NewStreamHandler(ticketService, broadcaster, authMiddleware, metrics, cfg.Stream.Heartbeat(), logger),
		StaffChat:      handlers.NewStaffChatHandler(staffChatService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		Audit:          handlers.NewAuditHandler(auditService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
