package main // Entry point package

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4" // Echo web framework
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-booking/internal/cache"
	"github.com/iliyamo/cinema-seat-booking/internal/clock"
	"github.com/iliyamo/cinema-seat-booking/internal/config" // Internal config loader
	"github.com/iliyamo/cinema-seat-booking/internal/database"
	"github.com/iliyamo/cinema-seat-booking/internal/handler"
	"github.com/iliyamo/cinema-seat-booking/internal/logger"
	"github.com/iliyamo/cinema-seat-booking/internal/middleware"
	"github.com/iliyamo/cinema-seat-booking/internal/queue"
	"github.com/iliyamo/cinema-seat-booking/internal/repository"
	"github.com/iliyamo/cinema-seat-booking/internal/router" // Internal router setup
	"github.com/iliyamo/cinema-seat-booking/internal/service"
	"github.com/iliyamo/cinema-seat-booking/internal/utils"
)

func main() {
	cfg := config.Load() // Load environment config

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	// `server token <holder>` prints a bearer token for local testing.
	if len(os.Args) == 3 && os.Args[1] == "token" {
		if err := printToken(cfg.JWTSecret, os.Args[2]); err != nil {
			log.Fatal("issue token", zap.Error(err))
		}
		return
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if cfg.DBAutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("schema migrated")
	}

	// Redis is optional: without it listings are not cached and requests
	// are not rate limited.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable, cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	clk := clock.NewSystem()
	seats := repository.NewSeatRepo(db)
	shows := repository.NewShowRepo(db)
	bookings := repository.NewBookingRepo(db)
	tx := repository.NewTxManager(db)

	lockOpts := []service.LockOption{
		service.WithLockTTL(cfg.SeatLockTTL),
		service.WithLockLogger(log.Named("locks")),
	}
	bookingOpts := []service.BookingOption{
		service.WithReferencePrefix(cfg.RefPrefix),
		service.WithBookingLogger(log.Named("bookings")),
	}
	// NewSeatCache returns a nil pointer when disabled, which must not be
	// stored in the interface.
	if sc := cache.NewSeatCache(config.LoadCacheConfig(), rdb, log.Named("cache")); sc != nil {
		lockOpts = append(lockOpts, service.WithLockCache(sc))
		bookingOpts = append(bookingOpts, service.WithBookingCache(sc))
	}
	if cfg.EventsEnabled {
		pub := queue.NewPublisher(cfg.AMQPURL, log.Named("publisher"))
		defer pub.Close()
		bookingOpts = append(bookingOpts, service.WithEventPublisher(pub))

		go func() {
			err := queue.StartBookingConsumer(ctx, cfg.AMQPURL, cfg.BookingLogDir, log.Named("booking-consumer"))
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error("booking consumer exited", zap.Error(err))
			}
		}()
	}

	locks := service.NewSeatLockManager(seats, shows, tx, clk, lockOpts...)
	coordinator := service.NewBookingCoordinator(seats, shows, bookings, tx, clk, bookingOpts...)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Use(middleware.RequestID(), middleware.RequestLogger(log.Named("http")))
	router.RegisterRoutes(e, router.Deps{ // Register application routes
		Seats:     handler.NewSeatHandler(locks),
		Bookings:  handler.NewBookingHandler(coordinator),
		DB:        db,
		JWTSecret: cfg.JWTSecret,
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, clk, log.Named("ratelimit")),
	})

	addr := ":" + cfg.Port // Address string with port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func printToken(secret, holder string) error {
	tok, err := utils.NewAccessToken(secret, holder, 24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Println(tok.Token)
	return nil
}
