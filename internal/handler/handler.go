// Package handler содержит HTTP-обработчики сервера отчётов о чаевых.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/tipout/internal/config"
	"github.com/mmeshcher/tipout/internal/middleware"
	"github.com/mmeshcher/tipout/internal/report"
	"github.com/mmeshcher/tipout/internal/repository"
	"github.com/mmeshcher/tipout/internal/service"
	"github.com/mmeshcher/tipout/internal/tipout"
	"github.com/mmeshcher/tipout/internal/validation"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Reporter определяет контракт расчёта отчёта, используемый HTTP-обработчиками.
type Reporter interface {
	Report(ctx context.Context, req service.Request) (*service.Report, error)
	ResolveWindow(req service.Request) (tipout.Window, error)
}

// Syncer определяет контракт синхронизации снимка.
type Syncer interface {
	Sync(ctx context.Context, window tipout.Window, locationIDs []string) (repository.SyncRun, error)
}

// HealthChecker проверяет доступность зависимостей сервера.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Handler реализует HTTP-обработчики сервера отчётов.
type Handler struct {
	reporter       Reporter
	syncer         Syncer
	health         HealthChecker
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт обработчик. syncer и health могут быть nil, если хранилище снимков не настроено.
func NewHandler(rep Reporter, syncer Syncer, health HealthChecker, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		reporter:       rep,
		syncer:         syncer,
		health:         health,
		logger:         logger,
		authMiddleware: auth,
	}
}

func parseReportQuery(r *http.Request) (service.Request, error) {
	q := r.URL.Query()

	query := validation.ReportQuery{
		Date:           q.Get("date"),
		From:           q.Get("from"),
		To:             q.Get("to"),
		WeekStart:      q.Get("week_start"),
		IgnoreDates:    config.SplitList(q["ignore"]...),
		LocationIDs:    config.SplitList(q["location"]...),
		SimulateMember: q.Get("simulate_member"),
	}
	if raw := q.Get("simulate_cutoff"); raw != "" {
		cutoff, err := strconv.Atoi(raw)
		if err != nil {
			return service.Request{}, fmt.Errorf("invalid simulate_cutoff %q", raw)
		}
		query.SimulateCutoff = &cutoff
	}

	if err := validation.Struct(query); err != nil {
		return service.Request{}, err
	}

	weekStart, err := tipout.ParseWeekStart(query.WeekStart)
	if err != nil {
		return service.Request{}, err
	}

	req := service.Request{
		Date:        query.Date,
		From:        query.From,
		To:          query.To,
		WeekStart:   weekStart,
		IgnoreDates: query.IgnoreDates,
		LocationIDs: query.LocationIDs,
		Hourly:      q.Get("hourly") == "true",
	}
	if query.SimulateMember != "" && query.SimulateCutoff != nil {
		req.Simulation = &tipout.ClockOutSimulation{
			TeamMemberID: query.SimulateMember,
			CutoffHour:   *query.SimulateCutoff,
		}
	}

	return req, nil
}

func (h *Handler) runReport(w http.ResponseWriter, r *http.Request) (*service.Report, bool) {
	req, err := parseReportQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	rep, err := h.reporter.Report(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, tipout.ErrInvalidDateFormat):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, service.ErrNoValidLocations):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			h.logger.Error("report error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return nil, false
	}

	return rep, true
}

// GetTips возвращает отчёт в JSON или, при format=text, текстовыми таблицами.
func (h *Handler) GetTips(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil || format == report.FormatXLSX {
		http.Error(w, "format must be json or text", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("format") == "" {
		format = report.FormatJSON
	}

	rep, ok := h.runReport(w, r)
	if !ok {
		return
	}

	if format == report.FormatText {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)

	if err := report.Write(w, format, rep); err != nil {
		h.logger.Error("write report error", zap.Error(err), zap.String("run_id", rep.RunID.String()))
	}
}

// GetTipsXLSX возвращает отчёт книгой Excel.
func (h *Handler) GetTipsXLSX(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.runReport(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, rep); err != nil {
		h.logger.Error("write workbook error", zap.Error(err), zap.String("run_id", rep.RunID.String()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="tipout-%s.xlsx"`, rep.Window.Start.Format(tipout.DateLayout)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)

	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Error("send workbook error", zap.Error(err), zap.String("run_id", rep.RunID.String()))
	}
}

type syncRequest struct {
	Date      string   `json:"date"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	WeekStart string   `json:"week_start"`
	Locations []string `json:"locations"`
}

type syncResponse struct {
	RunID       string `json:"run_id"`
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`
	Locations   int    `json:"locations"`
	Shifts      int    `json:"shifts"`
	Payments    int    `json:"payments"`
	Orders      int    `json:"orders"`
}

// Sync копирует окно из Square в хранилище снимков. Пустое тело означает текущую неделю.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		http.Error(w, "snapshot store is not configured", http.StatusServiceUnavailable)
		return
	}

	var body syncRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	query := validation.ReportQuery{
		Date:        body.Date,
		From:        body.From,
		To:          body.To,
		WeekStart:   body.WeekStart,
		LocationIDs: body.Locations,
	}
	if err := validation.Struct(query); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	weekStart, err := tipout.ParseWeekStart(body.WeekStart)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	window, err := h.reporter.ResolveWindow(service.Request{
		Date:      body.Date,
		From:      body.From,
		To:        body.To,
		WeekStart: weekStart,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	run, err := h.syncer.Sync(r.Context(), window, body.Locations)
	if err != nil {
		if errors.Is(err, service.ErrNoValidLocations) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.logger.Error("sync error", zap.Error(err), zap.String("window", window.String()))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	start, end := run.Window.UTC()
	resp := syncResponse{
		RunID:       run.ID.String(),
		WindowStart: start,
		WindowEnd:   end,
		Locations:   run.Locations,
		Shifts:      run.Shifts,
		Payments:    run.Payments,
		Orders:      run.Orders,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

// Healthz сообщает о готовности сервера.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
