// Package main строит недельный отчёт о распределении чаевых и выводит его в терминал или файл.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mmeshcher/tipout/internal/config"
	"github.com/mmeshcher/tipout/internal/report"
	"github.com/mmeshcher/tipout/internal/repository"
	"github.com/mmeshcher/tipout/internal/service"
	"github.com/mmeshcher/tipout/internal/source"
	"github.com/mmeshcher/tipout/internal/square"
	"github.com/mmeshcher/tipout/internal/tipout"
	"github.com/mmeshcher/tipout/internal/validation"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		sugar.Fatalw("report failed", "error", err.Error())
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	format, err := report.ParseFormat(cfg.ReportFormat)
	if err != nil {
		return err
	}

	req, err := buildRequest(cfg)
	if err != nil {
		return err
	}

	src, closeSrc, err := openSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSrc()

	svc := service.NewService(src, loc, logger)
	rep, err := svc.Report(ctx, req)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(cfg.ReportOutput, format)
	if err != nil {
		return err
	}
	defer closeOut()

	if err := report.Write(out, format, rep); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func buildRequest(cfg *config.Config) (service.Request, error) {
	query := validation.ReportQuery{
		Date:        cfg.ReportDate,
		From:        cfg.ReportFrom,
		To:          cfg.ReportTo,
		WeekStart:   cfg.WeekStart,
		IgnoreDates: cfg.IgnoreDates,
		LocationIDs: cfg.LocationIDs,
	}
	if cfg.Simulated() {
		cutoff := cfg.SimulateCutoff
		query.SimulateMember = cfg.SimulateMember
		query.SimulateCutoff = &cutoff
	}
	if err := validation.Struct(query); err != nil {
		return service.Request{}, err
	}

	weekStart, err := tipout.ParseWeekStart(cfg.WeekStart)
	if err != nil {
		return service.Request{}, err
	}

	req := service.Request{
		Date:        cfg.ReportDate,
		From:        cfg.ReportFrom,
		To:          cfg.ReportTo,
		WeekStart:   weekStart,
		IgnoreDates: cfg.IgnoreDates,
		LocationIDs: cfg.LocationIDs,
		Hourly:      cfg.Hourly,
	}
	if cfg.Simulated() {
		req.Simulation = &tipout.ClockOutSimulation{
			TeamMemberID: cfg.SimulateMember,
			CutoffHour:   cfg.SimulateCutoff,
		}
	}
	return req, nil
}

func openSource(ctx context.Context, cfg *config.Config, logger *zap.Logger) (source.Source, func(), error) {
	switch cfg.ReportSource {
	case config.SourceSquare:
		if cfg.SquareAccessToken == "" {
			return nil, nil, fmt.Errorf("SQUARE_ACCESS_TOKEN is required for the square source")
		}
		client := square.NewClient(cfg.SquareBaseURL, cfg.SquareAccessToken, cfg.SquareVersion)
		return source.NewSquare(client), func() {}, nil
	case config.SourceDB:
		if cfg.DatabaseURI == "" {
			return nil, nil, fmt.Errorf("DATABASE_URI is required for the db source")
		}
		repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			return nil, nil, fmt.Errorf("database initialization: %w", err)
		}
		logSnapshot(ctx, repo, logger)
		return repo, func() { _ = repo.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown report source %q", cfg.ReportSource)
	}
}

// logSnapshot сообщает, по какой синхронизации будет построен отчёт.
func logSnapshot(ctx context.Context, repo *repository.PostgresRepository, logger *zap.Logger) {
	run, ok, err := repo.LatestSyncRun(ctx)
	switch {
	case err != nil:
		logger.Warn("could not read latest sync run", zap.Error(err))
	case !ok:
		logger.Warn("snapshot store is empty, run a sync first")
	default:
		logger.Info("reporting from snapshot",
			zap.String("sync_id", run.ID.String()),
			zap.String("window", run.Window.String()),
			zap.Time("finished_at", run.FinishedAt),
		)
	}
}

func openOutput(path string, format report.Format) (io.Writer, func(), error) {
	if path == "" && format == report.FormatXLSX {
		path = "tipout.xlsx"
	}
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
