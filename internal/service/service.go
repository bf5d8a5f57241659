// Package service реализует бизнес-логику сервиса расчёта чаевых.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/tipout/internal/model"
	"github.com/mmeshcher/tipout/internal/source"
	"github.com/mmeshcher/tipout/internal/tipout"
	"github.com/mmeshcher/tipout/internal/validation"
)

// ErrNoValidLocations возвращается, если ни одна из запрошенных точек не найдена у продавца.
var ErrNoValidLocations = errors.New("no valid locations")

// UnknownMember подставляется вместо имени сотрудника, которого нет в списке источника.
const UnknownMember = "Unknown"

// Request описывает параметры одного расчёта.
type Request struct {
	// Date задаёт любую дату внутри недели отчёта; пустая строка означает сегодня.
	Date string
	// From и To задают произвольное окно вместо недели.
	From string
	To   string

	WeekStart   time.Weekday
	IgnoreDates []string
	LocationIDs []string
	Simulation  *tipout.ClockOutSimulation
	Hourly      bool
}

// LocationReport содержит итоги одной точки.
type LocationReport struct {
	Location model.Location                  `json:"location"`
	Totals   map[tipout.Policy]tipout.Totals `json:"totals"`
	Hourly   []tipout.HourlyTips             `json:"hourly,omitempty"`
}

// Report содержит результат расчёта по всем точкам.
type Report struct {
	RunID       uuid.UUID                       `json:"run_id"`
	Window      tipout.Window                   `json:"window"`
	GeneratedAt time.Time                       `json:"generated_at"`
	Locations   []LocationReport                `json:"locations"`
	Combined    map[tipout.Policy]tipout.Totals `json:"combined"`
	Names       map[string]string               `json:"names"`
}

// Name возвращает отображаемое имя сотрудника.
func (r *Report) Name(id string) string {
	if name, ok := r.Names[id]; ok && name != "" {
		return name
	}
	return UnknownMember
}

// Service содержит бизнес-логику сервиса расчёта чаевых.
type Service struct {
	src    source.Source
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewService создаёт сервис поверх источника данных для локальной зоны loc.
func NewService(src source.Source, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		src:    src,
		loc:    loc,
		logger: logger,
		now:    time.Now,
	}
}

// Location возвращает локальную зону расчёта.
func (s *Service) Location() *time.Location {
	return s.loc
}

// ResolveWindow возвращает окно запроса: произвольное, если заданы From и To, иначе неделю.
func (s *Service) ResolveWindow(req Request) (tipout.Window, error) {
	if req.From != "" || req.To != "" {
		if req.From == "" || req.To == "" {
			return tipout.Window{}, fmt.Errorf("custom window needs both from and to")
		}
		return tipout.CustomWindow(req.From, req.To, s.loc)
	}
	return tipout.WeekWindow(req.Date, req.WeekStart, s.loc, s.now())
}

// Report выполняет расчёт по обеим политикам для каждой точки и сводит итоги.
// Ошибки загрузки смен и платежей не прерывают расчёт: точка считается по пустым данным.
func (s *Service) Report(ctx context.Context, req Request) (*Report, error) {
	window, err := s.ResolveWindow(req)
	if err != nil {
		return nil, err
	}
	for _, d := range req.IgnoreDates {
		if !validation.IsValidDate(d) {
			return nil, fmt.Errorf("%w: ignore date %q", tipout.ErrInvalidDateFormat, d)
		}
	}
	if err := req.Simulation.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.New()
	logger := s.logger.With(zap.String("run_id", runID.String()))

	locations, err := s.selectLocations(ctx, req.LocationIDs, logger)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:       runID,
		Window:      window,
		GeneratedAt: s.now(),
		Combined:    make(map[tipout.Policy]tipout.Totals, len(tipout.Policies)),
		Names:       s.memberNames(ctx, locations, logger),
	}

	gratuity := tipout.NewServiceChargeResolver(s.src, logger)
	perPolicy := make(map[tipout.Policy][]tipout.Totals, len(tipout.Policies))

	for _, loc := range locations {
		lr := s.locationReport(ctx, loc, window, req, gratuity, logger)
		report.Locations = append(report.Locations, lr)
		for _, p := range tipout.Policies {
			perPolicy[p] = append(perPolicy[p], lr.Totals[p])
		}
	}

	for _, p := range tipout.Policies {
		report.Combined[p] = tipout.Combine(perPolicy[p]...)
	}

	logger.Info("report computed",
		zap.String("window", window.String()),
		zap.Int("locations", len(report.Locations)),
		zap.Int("staff", len(report.Combined[tipout.PolicyDailyPool])),
	)

	return report, nil
}

func (s *Service) locationReport(
	ctx context.Context,
	loc model.Location,
	window tipout.Window,
	req Request,
	gratuity tipout.GratuityResolver,
	logger *zap.Logger,
) LocationReport {
	logger = logger.With(zap.String("location_id", loc.ID), zap.String("window", window.String()))

	shifts, err := s.src.ListShifts(ctx, loc.ID, window.Start, window.End)
	if err != nil {
		logger.Warn("could not fetch shifts, continuing without them", zap.Error(err))
		shifts = nil
	}

	payments, err := s.src.ListPayments(ctx, loc.ID, window.Start, window.End)
	if err != nil {
		logger.Warn("could not fetch payments, continuing without them", zap.Error(err))
		payments = nil
	}
	payments = tipout.ExcludePaymentDates(payments, req.IgnoreDates, s.loc)

	bucket := tipout.NewAggregator(gratuity, s.loc).Aggregate(ctx, shifts, payments)
	clockIn := tipout.NewClockInDistributor(gratuity, s.loc).Distribute(ctx, payments, shifts, req.Simulation)

	lr := LocationReport{
		Location: loc,
		Totals: map[tipout.Policy]tipout.Totals{
			tipout.PolicyDailyPool: tipout.Totalize(tipout.DistributeDailyPool(bucket)),
			tipout.PolicyClockIn:   tipout.Totalize(clockIn),
		},
	}
	if req.Hourly {
		lr.Hourly = tipout.AggregateByHour(ctx, payments, gratuity, s.loc)
	}

	logger.Debug("location computed",
		zap.Int("shifts", len(shifts)),
		zap.Int("payments", len(payments)),
		zap.Int("days", bucket.Len()),
	)

	return lr
}

func (s *Service) selectLocations(ctx context.Context, ids []string, logger *zap.Logger) ([]model.Location, error) {
	all, err := s.src.ListLocations(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		if len(all) == 0 {
			return nil, ErrNoValidLocations
		}
		return all, nil
	}

	byID := make(map[string]model.Location, len(all))
	for _, l := range all {
		byID[l.ID] = l
	}

	var selected []model.Location
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		l, ok := byID[id]
		if !ok {
			logger.Warn("ignoring unknown location", zap.String("location_id", id))
			continue
		}
		selected = append(selected, l)
	}

	if len(selected) == 0 {
		return nil, ErrNoValidLocations
	}
	return selected, nil
}

func (s *Service) memberNames(ctx context.Context, locations []model.Location, logger *zap.Logger) map[string]string {
	ids := make([]string, 0, len(locations))
	for _, l := range locations {
		ids = append(ids, l.ID)
	}

	members, err := s.src.ListTeamMembers(ctx, ids)
	if err != nil {
		logger.Warn("could not fetch team members, names will be unknown", zap.Error(err))
		return map[string]string{}
	}

	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.DisplayName()
	}
	return names
}
