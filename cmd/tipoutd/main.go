// Package main запускает HTTP-сервер отчётов о чаевых и плановую синхронизацию снимков.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/tipout/internal/config"
	"github.com/mmeshcher/tipout/internal/handler"
	"github.com/mmeshcher/tipout/internal/middleware"
	"github.com/mmeshcher/tipout/internal/repository"
	"github.com/mmeshcher/tipout/internal/service"
	"github.com/mmeshcher/tipout/internal/source"
	"github.com/mmeshcher/tipout/internal/square"
	"github.com/mmeshcher/tipout/internal/tipout"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	loc, err := cfg.Location()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	var live source.Source
	if cfg.SquareAccessToken != "" {
		live = source.NewSquare(square.NewClient(cfg.SquareBaseURL, cfg.SquareAccessToken, cfg.SquareVersion))
	}

	var repo *repository.PostgresRepository
	if cfg.DatabaseURI != "" {
		repo, err = repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		defer repo.Close()
	}

	var reportSrc source.Source
	switch {
	case cfg.ReportSource == config.SourceDB && repo != nil:
		reportSrc = repo
	case cfg.ReportSource == config.SourceSquare && live != nil:
		reportSrc = live
	default:
		sugar.Fatalw("report source is not available", "source", cfg.ReportSource)
	}

	svc := service.NewService(reportSrc, loc, logger)

	var (
		syncer    handler.Syncer
		health    handler.HealthChecker
		scheduled *service.Syncer
	)
	if repo != nil {
		health = repo
		if live != nil {
			scheduled = service.NewSyncer(live, repo, logger)
			syncer = scheduled
		}
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.APIKey)
	if !authMiddleware.Enabled() {
		sugar.Warnw("API_KEY is empty, report endpoints are unauthenticated")
	}
	h := handler.NewHandler(svc, syncer, health, logger, authMiddleware)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.SyncSchedule != "" {
		if scheduled == nil {
			sugar.Fatalw("SYNC_SCHEDULE needs both DATABASE_URI and SQUARE_ACCESS_TOKEN")
		}
		weekStart, err := tipout.ParseWeekStart(cfg.WeekStart)
		if err != nil {
			sugar.Fatalw("configuration error", "error", err.Error())
		}

		c := cron.New(cron.WithLocation(loc))
		_, err = c.AddFunc(cfg.SyncSchedule, func() {
			window, err := svc.ResolveWindow(service.Request{WeekStart: weekStart})
			if err != nil {
				logger.Error("scheduled sync window error", zap.Error(err))
				return
			}
			if _, err := scheduled.Sync(ctx, window, cfg.LocationIDs); err != nil {
				logger.Error("scheduled sync failed", zap.Error(err))
			}
		})
		if err != nil {
			sugar.Fatalw("failed to schedule snapshot sync", "schedule", cfg.SyncSchedule, "error", err.Error())
		}

		// Плановая синхронизация снимков
		g.Go(func() error {
			sugar.Infow("starting snapshot sync schedule", "schedule", cfg.SyncSchedule)
			c.Start()
			<-ctx.Done()
			<-c.Stop().Done()
			return nil
		})
	}

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting tipout server", "addr", cfg.RunAddress, "source", cfg.ReportSource)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
