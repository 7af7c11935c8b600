package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/httplog/v2"
	"github.com/mkravets/shortener/internal/cachestore"
	"github.com/mkravets/shortener/internal/config"
	dbpostgres "github.com/mkravets/shortener/internal/database/postgres"
	"github.com/mkravets/shortener/internal/service"
	"github.com/mkravets/shortener/pkg/postgres"
	"golang.org/x/sync/errgroup"

	api "github.com/mkravets/shortener/internal/api/http"
)

func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := httplog.NewLogger("shortener", httplog.Options{
		LogLevel: slog.LevelInfo,
		Concise:  cfg.Env != config.EnvProd,
		JSON:     cfg.Env == config.EnvProd,
	})

	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}
	defer db.Close()

	if err := postgres.RunMigrations(cfg.Postgres); err != nil {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	urlRepo := dbpostgres.NewURLRepository(db)

	svcOpts := []service.Option{
		service.WithCodeLength(cfg.ShortCode.Length),
		service.WithMaxAttempts(cfg.ShortCode.MaxAttempts),
		service.WithLogger(logger.Logger),
	}

	if cfg.DedupURLs {
		svcOpts = append(svcOpts, service.WithDedupURLs())
	}

	if cfg.Redis.Enabled {
		cache, err := cachestore.New(ctx, logger.Logger, cfg.Redis)
		if err != nil {
			return fmt.Errorf("%s: failed to connect to redis: %w", op, err)
		}
		defer cache.Close()

		svcOpts = append(svcOpts, service.WithCache(cache))
	}

	urlSvc := service.New(urlRepo, svcOpts...)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        api.NewRouter(logger, urlSvc),
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
