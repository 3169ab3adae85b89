package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matchtix/matchtix/internal/config"
	stripegw "github.com/matchtix/matchtix/internal/gateway/stripe"
	"github.com/matchtix/matchtix/internal/postgres"
	"github.com/matchtix/matchtix/internal/redis"
	postgresrepo "github.com/matchtix/matchtix/internal/repository/postgres"
	redisrepo "github.com/matchtix/matchtix/internal/repository/redis"
	"github.com/matchtix/matchtix/internal/service"
	"github.com/matchtix/matchtix/internal/service/booking"
	"github.com/matchtix/matchtix/internal/service/payment"
	httpgin "github.com/matchtix/matchtix/internal/transport/http/gin"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	services   *service.Services
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Name,
		cfg.Postgres.SSLMode,
	)

	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redis.New(context.Background(), redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redisrepo.NewSectionsPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "rl", 10, 1*time.Minute)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	// Initialize payment gateway
	var gateway payment.Gateway
	if cfg.Stripe.SecretKey != "" {
		gateway, err = stripegw.New(cfg.Stripe.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize stripe gateway: %w", err)
		}
	} else {
		if !cfg.Stripe.DemoMode {
			return nil, fmt.Errorf("missing STRIPE_SECRET_KEY (set PAYMENT_DEMO_MODE=true to run without it)")
		}

		logger.Warn("no stripe secret key configured, payments run in demo mode")
		gateway = payment.UnavailableGateway{}
	}

	// Initialize services
	services := service.NewServices(store, cache, pubsub, limiter, gateway, logger, service.Config{
		Booking: booking.Config{HoldTTL: cfg.Booking.HoldTTL},
		Payment: payment.Config{
			Currency:       cfg.Stripe.Currency,
			GatewayTimeout: cfg.Stripe.GatewayTimeout,
			DemoMode:       cfg.Stripe.DemoMode,
		},
	})

	// Initialize Gin router
	router := httpgin.NewRouter(services, idempotencyStore, logger)

	return &App{
		cfg:      cfg,
		logger:   logger,
		services: services,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Expiry sweep: reclaims seats held by stale unpaid bookings
	g.Go(func() error {
		interval := a.cfg.Booking.SweepInterval
		if interval <= 0 {
			interval = time.Minute
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				if _, err := a.services.Booking.ExpireStale(gCtx); err != nil {
					a.logger.Error("expiry sweep failed", "error", err)
				}
			}
		}
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
