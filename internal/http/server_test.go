package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oyken/internal/ledger"
	"oyken/internal/log"
	"oyken/internal/storage/memory"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	svc := ledger.NewService(memory.New(),
		ledger.WithLogger(log.Discard()),
		ledger.WithClock(func() time.Time { return testNow }))
	opts.Logger = log.Discard()
	opts.Now = func() time.Time { return testNow }
	if opts.CacheSize == 0 {
		opts.CacheSize = 16
	}
	srv := NewServer(":0", svc, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func march3Sales() map[string]any {
	return map[string]any{
		"date": "2025-03-03",
		"shifts": map[string]any{
			"morning":   map[string]any{"sales": "120,50", "covers": 10, "tickets": 4},
			"afternoon": map[string]any{"sales": 79.5, "covers": 6, "tickets": 1},
		},
		"notes": "lluvia",
	}
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Options{Ready: func(context.Context) error { return nil }})

	rec := do(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = do(t, srv, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode(t, rec)["status"])

	down := newTestServer(t, Options{Ready: func(context.Context) error { return errors.New("disk gone") }})
	rec = do(t, down, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRecordAndListSales(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodPost, "/api/sales", march3Sales())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.EqualValues(t, 200, created["total"])
	assert.EqualValues(t, 40, created["average_ticket"])

	rec = do(t, srv, http.MethodGet, "/api/sales?year=2025&month=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)
	assert.EqualValues(t, 200, list["total"])
	assert.Len(t, list["days"], 1)
}

func TestInputErrors(t *testing.T) {
	srv := newTestServer(t, Options{})

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{name: "malformed json", path: "/api/sales", body: "{not json", want: http.StatusBadRequest},
		{name: "unknown field", path: "/api/purchases", body: `{"supplier":"Makro","colour":"red"}`, want: http.StatusBadRequest},
		{name: "unknown shift", path: "/api/sales", body: `{"date":"2025-03-03","shifts":{"brunch":{"sales":1}}}`, want: http.StatusBadRequest},
		{name: "bad date", path: "/api/expenses", body: `{"date":"03-2025"}`, want: http.StatusBadRequest},
		{name: "negative amount", path: "/api/purchases", body: `{"date":"2025-03-03","supplier":"Makro","family":"Bebidas","cost":"-4"}`, want: http.StatusBadRequest},
		{name: "unknown family", path: "/api/purchases", body: `{"date":"2025-03-03","supplier":"Makro","family":"Juguetes","cost":"4"}`, want: http.StatusUnprocessableEntity},
		{name: "inventory without value", path: "/api/inventory", body: `{"year":2025,"month":3}`, want: http.StatusUnprocessableEntity},
		{name: "position with bad role", path: "/api/positions", body: `{"year":2025,"title":"Cocinero","annual_gross":"24000","role":"Jefe"}`, want: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestReportCacheInvalidatedByWrites(t *testing.T) {
	srv := newTestServer(t, Options{})
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/sales", march3Sales()).Code)

	rec := do(t, srv, http.MethodGet, "/api/reports/ebitda?year=2025&month=3", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	total := decode(t, rec)["total"].(map[string]any)
	assert.EqualValues(t, 200, total["ebitda"])

	rec = do(t, srv, http.MethodGet, "/api/reports/ebitda?month=3&year=2025", nil)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	expense := map[string]any{
		"date": "2025-03-05", "concept": "Alquiler marzo", "category": "Alquiler",
		"type": "Fijo", "role": "Estructural", "cost": "50",
	}
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/expenses", expense).Code)

	rec = do(t, srv, http.MethodGet, "/api/reports/ebitda?year=2025&month=3", nil)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	total = decode(t, rec)["total"].(map[string]any)
	assert.EqualValues(t, 150, total["ebitda"])
	assert.EqualValues(t, 50, total["expenses"])
}

func TestComparablesCacheFollowsTheClock(t *testing.T) {
	now := testNow
	svc := ledger.NewService(memory.New(), ledger.WithLogger(log.Discard()))
	srv := NewServer(":0", svc, Options{
		Logger:    log.Discard(),
		CacheSize: 16,
		CacheTTL:  time.Hour,
		Now:       func() time.Time { return now },
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/sales", march3Sales()).Code)

	rec := do(t, srv, http.MethodGet, "/api/comparables", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "2025-03-10", decode(t, rec)["date"])

	rec = do(t, srv, http.MethodGet, "/api/comparables", nil)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	now = now.Add(24 * time.Hour)
	rec = do(t, srv, http.MethodGet, "/api/comparables", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "2025-03-11", decode(t, rec)["date"])
}

func TestAsyncRollupReportsBypassCache(t *testing.T) {
	srv := newTestServer(t, Options{AsyncRollups: true})
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/sales", march3Sales()).Code)

	for _, path := range []string{
		"/api/reports/ebitda?year=2025&month=3",
		"/api/reports/income?year=2025&month=3",
	} {
		for i := 0; i < 2; i++ {
			rec := do(t, srv, http.MethodGet, path, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, "BYPASS", rec.Header().Get("X-Cache"), path)
		}
	}

	rec := do(t, srv, http.MethodGet, "/api/reports/trends", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	rec = do(t, srv, http.MethodGet, "/api/reports/trends", nil)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
}

func TestReportsEndpoints(t *testing.T) {
	srv := newTestServer(t, Options{})
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/sales", march3Sales()).Code)
	purchase := map[string]any{"date": "2025-03-04", "supplier": "  Makro   Cash ", "family": "Materia prima", "cost": 80}
	rec := do(t, srv, http.MethodPost, "/api/purchases", purchase)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Makro Cash", decode(t, rec)["supplier"])

	rec = do(t, srv, http.MethodGet, "/api/reports/income?year=2025&month=3", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	income := decode(t, rec)
	assert.EqualValues(t, 120, income["gross_margin"])
	assert.EqualValues(t, 60, income["gross_margin_pct"])

	rec = do(t, srv, http.MethodGet, "/api/reports/breakeven?year=2025&month=3", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 60, decode(t, rec)["gross_margin_pct"])

	rec = do(t, srv, http.MethodGet, "/api/reports/budget?year=2025&month=3&sales=300&ebitda=50", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 300, decode(t, rec)["target_sales"])

	rec = do(t, srv, http.MethodGet, "/api/comparables?date=2025-03-03", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 200, decode(t, rec)["accumulated"])

	rec = do(t, srv, http.MethodGet, "/api/reports/trends", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 40, decode(t, rec)["average_ticket"])

	rec = do(t, srv, http.MethodGet, "/api/suppliers", nil)
	assert.Equal(t, []any{"Makro Cash"}, decode(t, rec)["suppliers"])
}

func TestReportErrorsMapToStatus(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/api/reports/breakeven?year=2024&month=1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/comparables?date=2025-03-03", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/reports/ebitda?year=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/reports/budget?year=2025&sales=lots", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/reports/income?year=1999", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCloseMonth(t *testing.T) {
	srv := newTestServer(t, Options{})
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/sales", march3Sales()).Code)

	rec := do(t, srv, http.MethodPost, "/api/close/2025/3", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode(t, rec)["totals"], 5)

	rec = do(t, srv, http.MethodPost, "/api/close/2025/13", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/close/2025/3", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWriteRateLimit(t *testing.T) {
	srv := newTestServer(t, Options{RateLimitPerMinute: 1})

	assert.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/sales", march3Sales()).Code)
	rec := do(t, srv, http.MethodPost, "/api/sales", march3Sales())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/sales?year=2025&month=3", nil).Code)
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t, Options{})
	rec := do(t, srv, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode(t, rec)["code"])
}
