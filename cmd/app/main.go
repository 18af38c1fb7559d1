package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mauv0809/co-econ-etl/internal/config"
	"github.com/mauv0809/co-econ-etl/internal/db"
	"github.com/mauv0809/co-econ-etl/internal/handlers"
	"github.com/mauv0809/co-econ-etl/internal/logging"
	"github.com/mauv0809/co-econ-etl/internal/metrics"
	"github.com/mauv0809/co-econ-etl/internal/pipeline"
)

func main() {
	mode := flag.String("mode", "run", "one of load, prep, run, serve, schedule")
	flag.Parse()

	if err := run(*mode); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(mode string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	runner := pipeline.NewRunner(cfg, nil, logger).WithMetrics(m)

	var repo *db.Repository
	if cfg.DatabaseURL != "" {
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
		logger.Info("Migrations completed")

		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()
		logger.Info("Connected to database")

		repo = db.NewRepository(pool)
		runner.WithPublisher(repo)
	} else {
		logger.Info("DATABASE_URL not set, tables will not be published")
	}

	switch mode {
	case pipeline.StageLoad:
		return runner.Load(ctx)
	case pipeline.StagePrep:
		return runner.Prep(ctx)
	case pipeline.StageRun:
		return runner.Run(ctx)
	case "schedule":
		return pipeline.Schedule(ctx, runner, cfg.ScheduleInterval)
	case "serve":
		return serve(ctx, cfg, runner, repo, m, logger)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func serve(ctx context.Context, cfg *config.Config, runner *pipeline.Runner, repo *db.Repository, m *metrics.Metrics, logger *slog.Logger) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error == nil {
				logger.LogAttrs(c.Request().Context(), slog.LevelInfo, "Request", attrs...)
			} else {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				logger.LogAttrs(c.Request().Context(), slog.LevelError, "Request failed", attrs...)
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())

	var counter handlers.TableCounter
	if repo != nil {
		counter = repo
	}

	handlers.Register(e,
		handlers.New(cfg, logger),
		handlers.NewPipelineHandler(runner, counter, logger),
		m.Handler(),
	)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("Starting server", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("starting server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
