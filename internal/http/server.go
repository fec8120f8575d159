package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"partita/internal/billing"
	"partita/internal/cache"
	"partita/internal/core"
	"partita/internal/fiscal"
	applog "partita/internal/log"
	"partita/internal/middleware/ratelimit"
	"partita/internal/middleware/security"
	"partita/internal/middleware/trace"
	"partita/internal/services"
	"partita/internal/storage"
	appweb "partita/web"
)

type Server struct {
	http.Server
	templates *template.Template

	service *services.EntryService
	repo    *storage.SQLiteRepository
	rates   fiscal.Rates
	profile core.Profile

	// Rendered views are cheap but hot; both caches are flushed wholesale
	// after any entry mutation.
	summaryCache    *cache.LRUCache[billing.Summary]
	projectionCache *cache.LRUCache[fiscal.Projection]
	cacheManager    *cache.Manager

	limiter      *ratelimit.Limiter
	detector     *security.Detector
	logger       *applog.Logger
	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, svc *services.EntryService, repo *storage.SQLiteRepository, rates fiscal.Rates, profile core.Profile) *Server {
	mux := http.NewServeMux()

	s := &Server{
		service: svc,
		repo:    repo,
		rates:   rates,
		profile: profile,

		summaryCache:    cache.NewLRUCache[billing.Summary](100, 5*time.Minute),
		projectionCache: cache.NewLRUCache[fiscal.Projection](20, 5*time.Minute),
		cacheManager:    cache.NewManager(),

		limiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector: security.NewDetector(),
		logger:   applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP),
	}
	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.Register(s.projectionCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("/projects", s.handleCreateProject)
	mux.HandleFunc("/entries", s.handleCreateEntry)
	mux.HandleFunc("/entries/delete", s.handleDeleteEntry)
	mux.HandleFunc("/entries/billed", s.handleMarkBilled)
	mux.HandleFunc("/entries/paid", s.handleMarkPaid)
	mux.HandleFunc("/entries/rate", s.handleUpdateRate)

	mux.HandleFunc("/expenses", s.handleCreateBusinessExpense)

	// UI partials
	mux.HandleFunc("/ui/billing-summary", s.handleBillingSummary)
	mux.HandleFunc("/ui/fiscal-dashboard", s.handleFiscalDashboard)

	mux.HandleFunc("/billing/print", s.handlePrintSummary)
	mux.HandleFunc("/billing/export", s.handleExportSummary)

	s.Server = http.Server{
		Addr:    addr,
		Handler: s.wrap(mux),
	}
	return s
}

// wrap applies the shared middleware chain: tracing outermost, then
// security headers, probe detection and rate limiting.
func (s *Server) wrap(next http.Handler) http.Handler {
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(s.detector.ExtractClientIP)
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, nil)

	detect := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.detector.DetectSuspiciousRequest(r) {
				slog.WarnContext(r.Context(), "Suspicious request detected",
					"path", r.URL.Path,
					"client_ip", s.detector.ExtractClientIP(r))
			}
			next.ServeHTTP(w, r)
		})
	}

	return tracer.Middleware(applog.Middleware(s.logger)(headers.Middleware(detect(limited(next)))))
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// invalidateViews drops every cached summary and projection. Called after
// any mutation that can change totals.
func (s *Server) invalidateViews() {
	s.summaryCache.DeletePrefix("summary:")
	s.projectionCache.DeletePrefix("projection:")
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.repo.CountEntries(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("storage unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
