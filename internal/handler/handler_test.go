package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/tipout/internal/middleware"
	"github.com/mmeshcher/tipout/internal/model"
	"github.com/mmeshcher/tipout/internal/repository"
	"github.com/mmeshcher/tipout/internal/service"
	"github.com/mmeshcher/tipout/internal/tipout"
)

const testKey = "test-key"

type stubReporter struct {
	report    *service.Report
	reportErr error
	lastReq   service.Request
}

func (s *stubReporter) Report(ctx context.Context, req service.Request) (*service.Report, error) {
	s.lastReq = req
	return s.report, s.reportErr
}

func (s *stubReporter) ResolveWindow(req service.Request) (tipout.Window, error) {
	if req.Date == "bad" {
		return tipout.Window{}, tipout.ErrInvalidDateFormat
	}
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	return tipout.Window{Start: start, End: start.AddDate(0, 0, 7)}, nil
}

type stubSyncer struct {
	err         error
	window      tipout.Window
	locationIDs []string
}

func (s *stubSyncer) Sync(ctx context.Context, window tipout.Window, locationIDs []string) (repository.SyncRun, error) {
	s.window = window
	s.locationIDs = locationIDs
	if s.err != nil {
		return repository.SyncRun{}, s.err
	}
	return repository.SyncRun{ID: uuid.New(), Window: window, Locations: 1, Payments: 3}, nil
}

type stubHealth struct {
	err error
}

func (s stubHealth) Ping(ctx context.Context) error { return s.err }

func sampleReport() *service.Report {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	totals := tipout.Totals{"A": {Hours: 8, TipOutAllocated: 3000, TipOutAllocatedAfterCardProcessing: 2925}}
	return &service.Report{
		RunID:  uuid.New(),
		Window: tipout.Window{Start: start, End: start.AddDate(0, 0, 7)},
		Locations: []service.LocationReport{{
			Location: model.Location{ID: "L1", Name: "Main"},
			Totals:   map[tipout.Policy]tipout.Totals{tipout.PolicyDailyPool: totals, tipout.PolicyClockIn: {}},
		}},
		Combined: map[tipout.Policy]tipout.Totals{tipout.PolicyDailyPool: totals, tipout.PolicyClockIn: {}},
		Names:    map[string]string{"A": "Ann Lee"},
	}
}

func newTestHandler(t *testing.T, rep Reporter, syncer Syncer, health HealthChecker) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	return NewHandler(rep, syncer, health, logger, middleware.NewAuthMiddleware(testKey))
}

func serve(h *Handler, req *http.Request) *http.Response {
	req.Header.Set("Authorization", "Bearer "+testKey)
	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)
	return rec.Result()
}

func TestGetTips_JSON(t *testing.T) {
	rep := &stubReporter{report: sampleReport()}
	h := newTestHandler(t, rep, nil, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/api/reports/tips?date=2025-01-08&week_start=sunday&location=L1,L2&ignore=2025-01-07&simulate_member=TM1&simulate_cutoff=18&hourly=true", nil)
	res := serve(h, req)
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	got := rep.lastReq
	if got.Date != "2025-01-08" || got.WeekStart != time.Sunday || !got.Hourly {
		t.Fatalf("unexpected request: %+v", got)
	}
	if len(got.LocationIDs) != 2 || got.LocationIDs[1] != "L2" || len(got.IgnoreDates) != 1 {
		t.Fatalf("unexpected lists: %+v", got)
	}
	if got.Simulation == nil || got.Simulation.TeamMemberID != "TM1" || got.Simulation.CutoffHour != 18 {
		t.Fatalf("unexpected simulation: %+v", got.Simulation)
	}

	var doc map[string]any
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if doc["window_start"] != "2025-01-06T00:00:00Z" {
		t.Fatalf("window_start = %v", doc["window_start"])
	}
}

func TestGetTips_Text(t *testing.T) {
	h := newTestHandler(t, &stubReporter{report: sampleReport()}, nil, nil)

	res := serve(h, httptest.NewRequest(http.MethodGet, "/api/reports/tips?format=text", nil))
	defer res.Body.Close()

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(res.Body)
	if res.StatusCode != http.StatusOK || !strings.Contains(buf.String(), "Ann Lee") {
		t.Fatalf("status = %d, body = %q", res.StatusCode, buf.String())
	}
}

func TestGetTips_Errors(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		reportErr  error
		wantStatus int
	}{
		{name: "bad date", url: "/api/reports/tips?date=2025-13-01", wantStatus: http.StatusBadRequest},
		{name: "bad cutoff", url: "/api/reports/tips?simulate_member=TM1&simulate_cutoff=noon", wantStatus: http.StatusBadRequest},
		{name: "bad format", url: "/api/reports/tips?format=xlsx", wantStatus: http.StatusBadRequest},
		{name: "unknown locations", url: "/api/reports/tips?location=L9", reportErr: service.ErrNoValidLocations, wantStatus: http.StatusUnprocessableEntity},
		{name: "source failure", url: "/api/reports/tips", reportErr: errors.New("list locations: 401"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubReporter{report: sampleReport(), reportErr: tt.reportErr}, nil, nil)

			res := serve(h, httptest.NewRequest(http.MethodGet, tt.url, nil))
			defer res.Body.Close()

			if res.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestGetTipsXLSX(t *testing.T) {
	h := newTestHandler(t, &stubReporter{report: sampleReport()}, nil, nil)

	res := serve(h, httptest.NewRequest(http.MethodGet, "/api/reports/tips.xlsx", nil))
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != xlsxContentType {
		t.Fatalf("content-type = %q", ct)
	}
	if cd := res.Header.Get("Content-Disposition"); !strings.Contains(cd, "tipout-2025-01-06.xlsx") {
		t.Fatalf("content-disposition = %q", cd)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !bytes.HasPrefix(body, []byte("PK")) {
		t.Fatalf("body is not a zip archive")
	}
	if cl := res.Header.Get("Content-Length"); cl != strconv.Itoa(len(body)) {
		t.Fatalf("content-length = %q, body has %d bytes", cl, len(body))
	}
}

func TestGetTips_RepeatedListParams(t *testing.T) {
	rep := &stubReporter{report: sampleReport()}
	h := newTestHandler(t, rep, nil, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/api/reports/tips?location=L1,%20L2&location=L3,&ignore=2025-01-07&ignore=2025-01-08", nil)
	res := serve(h, req)
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if got := strings.Join(rep.lastReq.LocationIDs, "|"); got != "L1|L2|L3" {
		t.Fatalf("locations = %q", got)
	}
	if got := strings.Join(rep.lastReq.IgnoreDates, "|"); got != "2025-01-07|2025-01-08" {
		t.Fatalf("ignore dates = %q", got)
	}
}

func TestUnauthorized(t *testing.T) {
	h := newTestHandler(t, &stubReporter{report: sampleReport()}, nil, nil)

	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/tips", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestSync(t *testing.T) {
	syncer := &stubSyncer{}
	h := newTestHandler(t, &stubReporter{}, syncer, nil)

	body := strings.NewReader(`{"date":"2025-01-08","locations":["L1"]}`)
	res := serve(h, httptest.NewRequest(http.MethodPost, "/api/sync", body))
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var resp syncResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Payments != 3 || resp.WindowStart != "2025-01-06T00:00:00Z" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(syncer.locationIDs) != 1 || syncer.locationIDs[0] != "L1" {
		t.Fatalf("locations = %v", syncer.locationIDs)
	}
}

func TestSync_EmptyBody(t *testing.T) {
	h := newTestHandler(t, &stubReporter{}, &stubSyncer{}, nil)

	res := serve(h, httptest.NewRequest(http.MethodPost, "/api/sync", nil))
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
}

func TestSync_Errors(t *testing.T) {
	tests := []struct {
		name       string
		syncer     Syncer
		body       string
		wantStatus int
	}{
		{name: "no store", syncer: nil, body: `{}`, wantStatus: http.StatusServiceUnavailable},
		{name: "bad json", syncer: &stubSyncer{}, body: `{"date":`, wantStatus: http.StatusBadRequest},
		{name: "bad date", syncer: &stubSyncer{}, body: `{"date":"01/08/2025"}`, wantStatus: http.StatusBadRequest},
		{name: "upstream failure", syncer: &stubSyncer{err: errors.New("429")}, body: `{}`, wantStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubReporter{}, tt.syncer, nil)

			res := serve(h, httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(tt.body)))
			defer res.Body.Close()

			if res.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	ok := newTestHandler(t, &stubReporter{}, nil, stubHealth{})
	rec := httptest.NewRecorder()
	ok.SetupRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	down := newTestHandler(t, &stubReporter{}, nil, stubHealth{err: errors.New("connection refused")})
	rec = httptest.NewRecorder()
	down.SetupRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
