package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/tipout/internal/model"
	"github.com/mmeshcher/tipout/internal/repository"
	"github.com/mmeshcher/tipout/internal/source"
	"github.com/mmeshcher/tipout/internal/tipout"
)

// DefaultOrderConcurrency ограничивает число одновременных запросов заказов при синхронизации.
const DefaultOrderConcurrency = 8

// SnapshotStore описывает хранилище снимков данных.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, runID uuid.UUID, window tipout.Window, snap repository.Snapshot) error
}

// Syncer копирует данные окна из живого источника в хранилище снимков.
type Syncer struct {
	src         source.Source
	store       SnapshotStore
	logger      *zap.Logger
	concurrency int
	now         func() time.Time
}

// NewSyncer создаёт синхронизатор.
func NewSyncer(src source.Source, store SnapshotStore, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		src:         src,
		store:       store,
		logger:      logger,
		concurrency: DefaultOrderConcurrency,
		now:         time.Now,
	}
}

// Sync загружает точки, сотрудников, смены, платежи и сборы заказов окна и сохраняет их одним снимком.
// В отличие от расчёта отчёта, ошибка загрузки смен или платежей прерывает синхронизацию.
// Заказ, который не удалось получить, не сохраняется: при расчёте по снимку он даёт 0.
func (s *Syncer) Sync(ctx context.Context, window tipout.Window, locationIDs []string) (repository.SyncRun, error) {
	runID := uuid.New()
	logger := s.logger.With(zap.String("run_id", runID.String()), zap.String("window", window.String()))

	locations, err := s.locations(ctx, locationIDs)
	if err != nil {
		return repository.SyncRun{}, err
	}

	snap := repository.Snapshot{Locations: locations}

	ids := make([]string, 0, len(locations))
	for _, l := range locations {
		ids = append(ids, l.ID)
	}
	snap.TeamMembers, err = s.src.ListTeamMembers(ctx, ids)
	if err != nil {
		return repository.SyncRun{}, fmt.Errorf("sync team members: %w", err)
	}

	for _, l := range locations {
		shifts, err := s.src.ListShifts(ctx, l.ID, window.Start, window.End)
		if err != nil {
			return repository.SyncRun{}, fmt.Errorf("sync shifts of %s: %w", l.ID, err)
		}
		payments, err := s.src.ListPayments(ctx, l.ID, window.Start, window.End)
		if err != nil {
			return repository.SyncRun{}, fmt.Errorf("sync payments of %s: %w", l.ID, err)
		}
		snap.Shifts = append(snap.Shifts, shifts...)
		snap.Payments = append(snap.Payments, payments...)
	}

	snap.Orders, err = s.fetchOrders(ctx, orderIDs(snap.Payments), logger)
	if err != nil {
		return repository.SyncRun{}, err
	}

	if err := s.store.SaveSnapshot(ctx, runID, window, snap); err != nil {
		return repository.SyncRun{}, fmt.Errorf("save snapshot: %w", err)
	}

	run := repository.SyncRun{
		ID:         runID,
		Window:     window,
		Locations:  len(snap.Locations),
		Shifts:     len(snap.Shifts),
		Payments:   len(snap.Payments),
		Orders:     len(snap.Orders),
		FinishedAt: s.now(),
	}
	logger.Info("snapshot synced",
		zap.Int("locations", run.Locations),
		zap.Int("shifts", run.Shifts),
		zap.Int("payments", run.Payments),
		zap.Int("orders", run.Orders),
	)
	return run, nil
}

func (s *Syncer) locations(ctx context.Context, ids []string) ([]model.Location, error) {
	all, err := s.src.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync locations: %w", err)
	}
	if len(ids) == 0 {
		return all, nil
	}

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var selected []model.Location
	for _, l := range all {
		if _, ok := want[l.ID]; ok {
			selected = append(selected, l)
		}
	}
	if len(selected) == 0 {
		return nil, ErrNoValidLocations
	}
	return selected, nil
}

type orderResult struct {
	charges []model.ServiceCharge
	ok      bool
}

// fetchOrders запрашивает сборы заказов параллельно; каждая горутина пишет только в свою ячейку,
// результаты сводятся в карту после ожидания группы.
func (s *Syncer) fetchOrders(ctx context.Context, ids []string, logger *zap.Logger) (map[string][]model.ServiceCharge, error) {
	results := make([]orderResult, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, id := range ids {
		g.Go(func() error {
			charges, err := s.src.GetOrderServiceCharges(gctx, id)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				if errors.Is(err, tipout.ErrOrderNotFound) {
					logger.Debug("order not found", zap.String("order_id", id))
				} else {
					logger.Warn("could not fetch order, skipping", zap.String("order_id", id), zap.Error(err))
				}
				return nil
			}
			results[i] = orderResult{charges: charges, ok: true}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("sync orders: %w", err)
	}

	orders := make(map[string][]model.ServiceCharge, len(ids))
	for i, id := range ids {
		if results[i].ok {
			orders[id] = results[i].charges
		}
	}
	return orders, nil
}

// orderIDs возвращает уникальные идентификаторы заказов завершённых платежей по возрастанию.
func orderIDs(payments []model.Payment) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, p := range payments {
		if !p.Completed() || p.OrderID == "" {
			continue
		}
		if _, ok := seen[p.OrderID]; ok {
			continue
		}
		seen[p.OrderID] = struct{}{}
		ids = append(ids, p.OrderID)
	}
	sort.Strings(ids)
	return ids
}
