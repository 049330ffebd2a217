package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/ilondustries/inventario/internal/api/http"
	"github.com/ilondustries/inventario/internal/api/http/handlers"
	"github.com/ilondustries/inventario/internal/auth"
	"github.com/ilondustries/inventario/internal/config"
	"github.com/ilondustries/inventario/internal/events"
	"github.com/ilondustries/inventario/internal/observability"
	"github.com/ilondustries/inventario/internal/persistence"
	"github.com/ilondustries/inventario/internal/repository"
	"github.com/ilondustries/inventario/internal/service"
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

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	store := repository.NewStore(pg.PoolHandle())
	dispatcher := events.NewInMemoryDispatcher()
	auditor := service.NewAuditRecorder(store, logger)

	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      store,
		Auditor:    auditor,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	catalogCache := service.NewCatalogCache(redis.Client, store, cfg.Cache.ProductTTL(), logger)
	catalogCache.RegisterHandlers(dispatcher)

	notifications := service.NewNotificationService(logger)
	notifications.RegisterHandlers(dispatcher)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret)
	authMiddleware := auth.NewMiddleware(tokens)

	metrics := observability.NewMetrics()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Products:       handlers.NewProductsHandler(catalogCache),
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
