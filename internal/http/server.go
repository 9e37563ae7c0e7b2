// Package http serves the JSON API: sync triggers, sync log, statistics,
// reports and forecasts.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"openbudget/internal/cache"
	"openbudget/internal/core"
	"openbudget/internal/forecast"
	"openbudget/internal/log"
	"openbudget/internal/middleware/ratelimit"
	"openbudget/internal/middleware/trace"
	"openbudget/internal/services"
	"openbudget/internal/sheets"
	"openbudget/internal/stats"
)

// SyncTrigger starts background runs and reports their status.
type SyncTrigger interface {
	TriggerSync(ctx context.Context, req core.SyncRequest) (services.Job, error)
	TriggerRetry(ctx context.Context) (services.Job, error)
	Job(id string) (services.Job, bool)
}

// SyncLogReader lists the per-endpoint sync outcomes.
type SyncLogReader interface {
	ListSyncLog(ctx context.Context, status core.SyncStatus, limit int) ([]core.SyncLogEntry, error)
}

// StatsReader computes headline statistics for one scope.
type StatsReader interface {
	Summary(ctx context.Context, s stats.Scope) (*stats.Summary, error)
}

// StructureReader lists every code of a scope at its latest period.
type StructureReader interface {
	CodesSnapshot(ctx context.Context, s stats.Scope) ([]core.CodeSnapshot, error)
}

// BudgetLister lists the registered budgets of a year ordered by code.
type BudgetLister interface {
	ListBudgetsForSync(ctx context.Context, year, limit int) ([]core.Budget, error)
}

// Reporter builds and publishes report snapshots.
type Reporter interface {
	Build(ctx context.Context, s stats.Scope) (sheets.ReportSnapshot, error)
	Publish(ctx context.Context, s stats.Scope) (services.PublishResult, error)
}

// Forecaster runs the forecast methods for a budget series.
type Forecaster interface {
	Forecast(ctx context.Context, budgetCode string, t core.ClassificationType, p forecast.Params) (*forecast.Response, error)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators behind the routes. A nil dependency turns its
// routes into 503 replies.
type Deps struct {
	Sync      SyncTrigger
	SyncLog   SyncLogReader
	Stats     StatsReader
	Structure StructureReader
	Budgets   BudgetLister
	Reports   Reporter
	Forecast  Forecaster
	DB        Pinger
	Logger    *log.Logger
}

// Options tune the middleware and the statistics cache.
type Options struct {
	RateLimitPerMinute int
	StatsCacheSize     int
	StatsCacheTTL      time.Duration
	CacheCleanup       time.Duration
	RequestTimeout     time.Duration
}

func DefaultOptions() Options {
	return Options{
		RateLimitPerMinute: 30,
		StatsCacheSize:     500,
		StatsCacheTTL:      5 * time.Minute,
		CacheCleanup:       10 * time.Minute,
		RequestTimeout:     30 * time.Second,
	}
}

type Server struct {
	http.Server
	deps    Deps
	logger  *log.Logger
	timeout time.Duration

	limiter    *ratelimit.Limiter
	tracer     *trace.Middleware
	statsCache *cache.LRUCache[*stats.Summary]
	caches     *cache.Manager

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	def := DefaultOptions()
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = def.RateLimitPerMinute
	}
	if opts.StatsCacheSize <= 0 {
		opts.StatsCacheSize = def.StatsCacheSize
	}
	if opts.StatsCacheTTL <= 0 {
		opts.StatsCacheTTL = def.StatsCacheTTL
	}
	if opts.CacheCleanup <= 0 {
		opts.CacheCleanup = def.CacheCleanup
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = def.RequestTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}

	s := &Server{
		deps:       deps,
		logger:     logger.WithComponent(log.ComponentHTTP),
		timeout:    opts.RequestTimeout,
		limiter:    ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:     trace.NewMiddleware(extractClientIP, logger),
		statsCache: cache.NewLRUCache[*stats.Summary](opts.StatsCacheSize, opts.StatsCacheTTL),
		caches:     cache.NewManager(logger),
	}
	s.caches.Register(s.statsCache)
	s.caches.StartCleanup(opts.CacheCleanup)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/sync/openbudget", s.handleTriggerSync)
	mux.HandleFunc("POST /api/sync/retry", s.handleTriggerRetry)
	mux.HandleFunc("GET /api/sync/jobs/{id}", s.handleJob)
	mux.HandleFunc("GET /api/sync/log", s.handleSyncLog)

	mux.HandleFunc("GET /api/budgets", s.handleBudgets)
	mux.HandleFunc("GET /api/stats/{budget}/{type}/{year}", s.handleStats)
	mux.HandleFunc("GET /api/structure/{budget}/{type}/{year}", s.handleStructure)
	mux.HandleFunc("GET /api/reports/{budget}/{type}/{year}", s.handleReport)
	mux.HandleFunc("POST /api/reports/{budget}/{type}/{year}/publish", s.handlePublishReport)
	mux.HandleFunc("GET /api/forecast/{budget}/{type}", s.handleForecast)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "not found")
	})

	var h http.Handler = mux
	h = s.limiter.Middleware(extractClientIP, http.MethodPost)(h)
	h = withSecurityHeaders(h)
	h = log.Middleware(s.logger, trace.RequestIDFromRequest)(h)
	h = s.tracer.Middleware(h)
	return h
}

// Shutdown stops background cleanup and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// InvalidateStats drops every cached summary.
func (s *Server) InvalidateStats() {
	s.statsCache.Purge()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.DB == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.deps.DB.Ping(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func unavailable(w http.ResponseWriter, what string) {
	writeMessage(w, http.StatusServiceUnavailable, what+" is not configured")
}
