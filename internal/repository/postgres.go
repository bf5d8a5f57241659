// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/tipout/internal/model"
	"github.com/mmeshcher/tipout/internal/tipout"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// retryDelays задаёт паузы между повторными попытками транзакции.
var retryDelays = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

// Snapshot содержит данные окна, скопированные из Square.
type Snapshot struct {
	Locations   []model.Location
	TeamMembers []model.TeamMember
	Shifts      []model.Shift
	Payments    []model.Payment
	// Orders хранит сборы по идентификатору заказа; пустой срез означает заказ без сборов.
	Orders map[string][]model.ServiceCharge
}

// SyncRun описывает завершённую синхронизацию.
type SyncRun struct {
	ID         uuid.UUID
	Window     tipout.Window
	Locations  int
	Shifts     int
	Payments   int
	Orders     int
	FinishedAt time.Time
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i <= len(retryDelays); i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isRetryable(err) || i == len(retryDelays) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelays[i]):
		}
	}
	return err
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}

	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer")
}

// Ping проверяет доступность БД.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// SaveSnapshot сохраняет данные окна одной транзакцией и регистрирует запуск синхронизации.
// Повторное сохранение тех же записей обновляет их.
func (r *PostgresRepository) SaveSnapshot(ctx context.Context, runID uuid.UUID, window tipout.Window, snap Snapshot) error {
	return withRetry(ctx, func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		batch := &pgx.Batch{}
		queueLocations(batch, snap.Locations)
		queueTeamMembers(batch, snap.TeamMembers)
		queueShifts(batch, snap.Shifts)
		queuePayments(batch, snap.Payments)
		queueOrders(batch, snap.Orders)
		batch.Queue(
			`INSERT INTO sync_runs (id, window_start, window_end, locations, shifts, payments, orders)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			runID, window.Start, window.End,
			len(snap.Locations), len(snap.Shifts), len(snap.Payments), len(snap.Orders),
		)

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

func queueLocations(b *pgx.Batch, locs []model.Location) {
	for _, l := range locs {
		b.Queue(
			`INSERT INTO locations (id, name, timezone) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, timezone = EXCLUDED.timezone`,
			l.ID, l.Name, l.Timezone,
		)
	}
}

func queueTeamMembers(b *pgx.Batch, members []model.TeamMember) {
	for _, m := range members {
		b.Queue(
			`INSERT INTO team_members (id, given_name, family_name) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET given_name = EXCLUDED.given_name, family_name = EXCLUDED.family_name`,
			m.ID, m.GivenName, m.FamilyName,
		)
	}
}

func queueShifts(b *pgx.Batch, shifts []model.Shift) {
	for _, s := range shifts {
		b.Queue(
			`INSERT INTO shifts (id, team_member_id, location_id, start_at, end_at, declared_cash_tips, tip_eligible)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (id) DO UPDATE SET
			   team_member_id = EXCLUDED.team_member_id,
			   location_id = EXCLUDED.location_id,
			   start_at = EXCLUDED.start_at,
			   end_at = EXCLUDED.end_at,
			   declared_cash_tips = EXCLUDED.declared_cash_tips,
			   tip_eligible = EXCLUDED.tip_eligible`,
			s.ID, s.TeamMemberID, s.LocationID, s.Start, s.End, s.DeclaredCashTips, s.TipEligible,
		)
		b.Queue(`DELETE FROM shift_breaks WHERE shift_id = $1`, s.ID)
		for i, br := range s.Breaks {
			b.Queue(
				`INSERT INTO shift_breaks (shift_id, position, start_at, end_at) VALUES ($1, $2, $3, $4)`,
				s.ID, i, br.Start, br.End,
			)
		}
	}
}

func queuePayments(b *pgx.Batch, payments []model.Payment) {
	for _, p := range payments {
		b.Queue(
			`INSERT INTO payments (id, team_member_id, location_id, order_id, status, created_at, tip_cents)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (id) DO UPDATE SET
			   team_member_id = EXCLUDED.team_member_id,
			   location_id = EXCLUDED.location_id,
			   order_id = EXCLUDED.order_id,
			   status = EXCLUDED.status,
			   created_at = EXCLUDED.created_at,
			   tip_cents = EXCLUDED.tip_cents`,
			p.ID, p.TeamMemberID, p.LocationID, p.OrderID, string(p.Status), p.CreatedAt, p.TipCents,
		)
	}
}

func queueOrders(b *pgx.Batch, orders map[string][]model.ServiceCharge) {
	for id, charges := range orders {
		b.Queue(
			`INSERT INTO orders (id) VALUES ($1) ON CONFLICT (id) DO UPDATE SET fetched_at = NOW()`,
			id,
		)
		b.Queue(`DELETE FROM service_charges WHERE order_id = $1`, id)
		for i, sc := range charges {
			b.Queue(
				`INSERT INTO service_charges (order_id, position, name, type, applied_cents) VALUES ($1, $2, $3, $4, $5)`,
				id, i, sc.Name, string(sc.Type), sc.AppliedCents,
			)
		}
	}
}

// LatestSyncRun возвращает последнюю синхронизацию; ok == false, если синхронизаций не было.
func (r *PostgresRepository) LatestSyncRun(ctx context.Context) (SyncRun, bool, error) {
	var run SyncRun
	err := r.pool.QueryRow(ctx,
		`SELECT id, window_start, window_end, locations, shifts, payments, orders, finished_at
		 FROM sync_runs
		 ORDER BY finished_at DESC
		 LIMIT 1`,
	).Scan(&run.ID, &run.Window.Start, &run.Window.End,
		&run.Locations, &run.Shifts, &run.Payments, &run.Orders, &run.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SyncRun{}, false, nil
		}
		return SyncRun{}, false, fmt.Errorf("select sync run: %w", err)
	}
	return run, true, nil
}

// ListLocations возвращает сохранённые точки.
func (r *PostgresRepository) ListLocations(ctx context.Context) ([]model.Location, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, timezone FROM locations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select locations: %w", err)
	}
	defer rows.Close()

	var res []model.Location
	for rows.Next() {
		var l model.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Timezone); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		res = append(res, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListTeamMembers возвращает сохранённых сотрудников. Привязка к точкам не хранится,
// поэтому locationIDs не сужает выборку.
func (r *PostgresRepository) ListTeamMembers(ctx context.Context, locationIDs []string) ([]model.TeamMember, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, given_name, family_name FROM team_members ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select team members: %w", err)
	}
	defer rows.Close()

	var res []model.TeamMember
	for rows.Next() {
		var m model.TeamMember
		if err := rows.Scan(&m.ID, &m.GivenName, &m.FamilyName); err != nil {
			return nil, fmt.Errorf("scan team member: %w", err)
		}
		res = append(res, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListShifts возвращает смены точки, начавшиеся не раньше start и закончившиеся не позже end.
func (r *PostgresRepository) ListShifts(ctx context.Context, locationID string, start, end time.Time) ([]model.Shift, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, team_member_id, location_id, start_at, end_at, declared_cash_tips, tip_eligible
		 FROM shifts
		 WHERE location_id = $1 AND start_at >= $2 AND end_at <= $3
		 ORDER BY start_at`,
		locationID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("select shifts: %w", err)
	}
	defer rows.Close()

	var (
		shifts []model.Shift
		ids    []string
	)
	for rows.Next() {
		var s model.Shift
		if err := rows.Scan(&s.ID, &s.TeamMemberID, &s.LocationID, &s.Start, &s.End,
			&s.DeclaredCashTips, &s.TipEligible); err != nil {
			return nil, fmt.Errorf("scan shift: %w", err)
		}
		shifts = append(shifts, s)
		ids = append(ids, s.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(shifts) == 0 {
		return shifts, nil
	}

	breaks, err := r.shiftBreaks(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range shifts {
		shifts[i].Breaks = breaks[shifts[i].ID]
	}

	return shifts, nil
}

func (r *PostgresRepository) shiftBreaks(ctx context.Context, shiftIDs []string) (map[string][]model.Break, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT shift_id, start_at, end_at
		 FROM shift_breaks
		 WHERE shift_id = ANY($1)
		 ORDER BY shift_id, position`,
		shiftIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("select shift breaks: %w", err)
	}
	defer rows.Close()

	res := make(map[string][]model.Break)
	for rows.Next() {
		var (
			shiftID string
			b       model.Break
		)
		if err := rows.Scan(&shiftID, &b.Start, &b.End); err != nil {
			return nil, fmt.Errorf("scan shift break: %w", err)
		}
		res[shiftID] = append(res[shiftID], b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListPayments возвращает платежи точки, созданные в интервале [start, end).
func (r *PostgresRepository) ListPayments(ctx context.Context, locationID string, start, end time.Time) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, team_member_id, location_id, order_id, status, created_at, tip_cents
		 FROM payments
		 WHERE location_id = $1 AND created_at >= $2 AND created_at < $3
		 ORDER BY created_at`,
		locationID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var res []model.Payment
	for rows.Next() {
		var (
			p      model.Payment
			status string
		)
		if err := rows.Scan(&p.ID, &p.TeamMemberID, &p.LocationID, &p.OrderID, &status,
			&p.CreatedAt, &p.TipCents); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.Status = model.PaymentStatus(status)
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetOrderServiceCharges возвращает сборы сохранённого заказа.
// Если заказ не синхронизирован, возвращается tipout.ErrOrderNotFound.
func (r *PostgresRepository) GetOrderServiceCharges(ctx context.Context, orderID string) ([]model.ServiceCharge, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("select order: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", tipout.ErrOrderNotFound, orderID)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT name, type, applied_cents
		 FROM service_charges
		 WHERE order_id = $1
		 ORDER BY position`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select service charges: %w", err)
	}
	defer rows.Close()

	var res []model.ServiceCharge
	for rows.Next() {
		sc := model.ServiceCharge{OrderID: orderID}
		var typ string
		if err := rows.Scan(&sc.Name, &typ, &sc.AppliedCents); err != nil {
			return nil, fmt.Errorf("scan service charge: %w", err)
		}
		sc.Type = model.ServiceChargeType(typ)
		res = append(res, sc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
