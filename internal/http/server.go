package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"oyken/internal/cache"
	"oyken/internal/core"
	"oyken/internal/finance"
	"oyken/internal/log"
	"oyken/internal/middleware/ratelimit"
	"oyken/internal/middleware/security"
	"oyken/internal/middleware/trace"
	"oyken/internal/storage"
)

// Ledger is the ledger surface the API serves. *ledger.Service implements it.
type Ledger interface {
	RecordSales(ctx context.Context, d core.DailySales) error
	RecordPurchase(ctx context.Context, p core.Purchase) (core.Purchase, error)
	RecordExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	SavePosition(ctx context.Context, p core.Position) (core.Position, error)
	RecordInventory(ctx context.Context, s core.InventorySnapshot) error
	CloseMonth(ctx context.Context, p core.Period) ([]core.MonthlyTotal, error)

	Sales(ctx context.Context, p core.Period) ([]core.DailySales, error)
	Suppliers(ctx context.Context) ([]string, error)
	Positions(ctx context.Context, year int) ([]core.Position, error)

	EBITDA(ctx context.Context, p core.Period) ([]finance.EBITDARow, finance.EBITDARow, error)
	IncomeStatement(ctx context.Context, p core.Period) (finance.Statement, error)
	Breakeven(ctx context.Context, p core.Period) (finance.BreakevenSummary, error)
	Budget(ctx context.Context, p core.Period, targetSales, targetEBITDA core.Money) (finance.Budget, error)
	Comparables(ctx context.Context, day core.Date) (finance.ComparablesReport, error)
	Trends(ctx context.Context, r storage.DateRange) (finance.TrendsReport, error)
}

// Options tunes the server. Zero values pick the defaults.
type Options struct {
	Logger             *log.Logger
	RateLimitPerMinute int
	CacheSize          int
	CacheTTL           time.Duration
	// Ready is polled by /readyz, typically the repository Ping.
	Ready func(ctx context.Context) error
	Now   func() time.Time
	// AsyncRollups is set when month closes run on a worker behind the
	// broker. Reports read from the rollups are then never cached, since a
	// read between a write and its close would pin stale totals.
	AsyncRollups bool
}

// Server is the JSON API over the ledger.
type Server struct {
	http.Server
	ledger  Ledger
	logger  *log.Logger
	ready   func(ctx context.Context) error
	now     func() time.Time
	started time.Time
	async   bool

	reports      *cache.LRUCache[[]byte]
	cacheManager *cache.Manager
	limiter      *ratelimit.Limiter
	detector     *security.Detector
	tracer       *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, l Ledger, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		ledger:       l,
		logger:       logger,
		ready:        opts.Ready,
		now:          opts.Now,
		started:      opts.Now(),
		async:        opts.AsyncRollups,
		reports:      cache.NewLRUCache[[]byte](opts.CacheSize, opts.CacheTTL),
		cacheManager: cache.NewManager(logger),
		detector:     security.NewDetector(),
	}
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: opts.RateLimitPerMinute,
		WritesOnly:        true,
	})
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)
	s.cacheManager.Register(s.reports)
	s.cacheManager.StartCleanup(10 * time.Minute)

	r := mux.NewRouter()
	r.Use(s.tracer.Middleware)
	r.Use(s.detector.Middleware(logger))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, try again later").Write(w)
	}))

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/sales", s.handleRecordSales).Methods(http.MethodPost)
	api.HandleFunc("/sales", s.handleListSales).Methods(http.MethodGet)
	api.HandleFunc("/purchases", s.handleRecordPurchase).Methods(http.MethodPost)
	api.HandleFunc("/suppliers", s.handleSuppliers).Methods(http.MethodGet)
	api.HandleFunc("/expenses", s.handleRecordExpense).Methods(http.MethodPost)
	api.HandleFunc("/positions", s.handleSavePosition).Methods(http.MethodPost)
	api.HandleFunc("/positions", s.handleListPositions).Methods(http.MethodGet)
	api.HandleFunc("/inventory", s.handleRecordInventory).Methods(http.MethodPost)
	api.HandleFunc("/close/{year:[0-9]{4}}/{month:[0-9]{1,2}}", s.handleClose).Methods(http.MethodPost)
	api.HandleFunc("/comparables", s.cached(s.handleComparables)).Methods(http.MethodGet)

	reports := api.PathPrefix("/reports").Subrouter()
	reports.HandleFunc("/income", s.rollupCached(s.handleIncome)).Methods(http.MethodGet)
	reports.HandleFunc("/ebitda", s.rollupCached(s.handleEBITDA)).Methods(http.MethodGet)
	reports.HandleFunc("/breakeven", s.cached(s.handleBreakeven)).Methods(http.MethodGet)
	reports.HandleFunc("/budget", s.cached(s.handleBudget)).Methods(http.MethodGet)
	reports.HandleFunc("/trends", s.cached(s.handleTrends)).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusNotFound, "not_found", "no such route").Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed").Write(w)
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops the background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.cacheManager.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// invalidateReports drops every cached report. Any write can move figures
// in several months and in the comparables of the following year.
func (s *Server) invalidateReports() {
	s.reports.Purge()
}
