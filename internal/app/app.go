package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/httplog/v2"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	api "github.com/vadimbarashkov/shortlink/internal/api/http"
	"github.com/vadimbarashkov/shortlink/internal/cache"
	"github.com/vadimbarashkov/shortlink/internal/config"
	"github.com/vadimbarashkov/shortlink/internal/database/postgres"
	"github.com/vadimbarashkov/shortlink/internal/event"
	"github.com/vadimbarashkov/shortlink/internal/lock"
	"github.com/vadimbarashkov/shortlink/internal/service"
	pkgpostgres "github.com/vadimbarashkov/shortlink/pkg/postgres"
	pkgredis "github.com/vadimbarashkov/shortlink/pkg/redis"
)

// Run wires the application together and blocks until ctx is cancelled or
// a component fails.
func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	db, err := pkgpostgres.New(
		ctx,
		cfg.Postgres.DSN(),
		pkgpostgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		pkgpostgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		pkgpostgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		pkgpostgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}
	defer db.Close()

	if err := pkgpostgres.RunMigrations("file://migrations", cfg.Postgres.DSN()); err != nil {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	redisClient, err := pkgredis.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to redis: %w", op, err)
	}
	defer redisClient.Close()

	nc, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to nats: %w", op, err)
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		return fmt.Errorf("%s: failed to create jetstream context: %w", op, err)
	}

	if err := event.EnsureStream(js, cfg.NATS.Stream, cfg.NATS.Subject); err != nil {
		return fmt.Errorf("%s: failed to ensure stream: %w", op, err)
	}

	linkRepo := postgres.NewShortLinkRepository(db)
	logRepo := postgres.NewAccessLogRepository(db)
	locker := lock.New(redisClient)
	linkCache := cache.New(redisClient, cfg.ShortLink.CacheTTL)

	linkSvc := service.NewShortLinkService(
		linkRepo,
		logRepo,
		locker,
		linkCache,
		cfg.ShortLink.BaseURL,
		cfg.ShortLink.CodeLength,
		cfg.ShortLink.LockTTL,
		cfg.ShortLink.MaxAttempts,
	)
	analyticsSvc := service.NewAnalyticsService(linkRepo, logRepo)

	publisher := event.NewPublisher(js, cfg.NATS.Subject)

	logger := httplog.NewLogger("shortlink", httplog.Options{
		JSON:    cfg.Env == config.EnvProd,
		Concise: cfg.Env != config.EnvProd,
	})

	consumer := event.NewConsumer(
		js,
		analyticsSvc,
		logger.Logger,
		cfg.NATS.Subject,
		cfg.NATS.Durable,
		cfg.NATS.Queue,
		cfg.NATS.MaxDeliver,
		cfg.NATS.RetryInterval,
	)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        api.NewRouter(logger, linkSvc, publisher),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := consumer.Run(ctx); err != nil {
			return fmt.Errorf("%s: consumer error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}
