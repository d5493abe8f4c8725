package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"umkm/internal/core"
	applog "umkm/internal/log"
	"umkm/internal/metrics"
	"umkm/internal/middleware/ratelimit"
	"umkm/internal/middleware/security"
	"umkm/internal/middleware/trace"
	"umkm/internal/ports"
	"umkm/internal/services"
	"umkm/internal/session"
	appweb "umkm/web"
)

// Deps are the collaborators the server routes to.
type Deps struct {
	Incomes    *services.IncomeService
	Products   ports.ProductStore
	Profiles   ports.ProfileStore
	Categories ports.CategoryReader
	Auth       ports.Authenticator
	Sessions   *session.Manager

	Logger *applog.Logger

	// RateLimitPerMinute caps mutating requests per client IP.
	RateLimitPerMinute int
	// Ready reports whether the data backend is reachable.
	Ready func(ctx context.Context) error
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
	Now           func() time.Time
}

func (d Deps) validate() error {
	var errs []error
	if d.Incomes == nil {
		errs = append(errs, errors.New("income service is required"))
	}
	if d.Products == nil {
		errs = append(errs, errors.New("product store is required"))
	}
	if d.Profiles == nil {
		errs = append(errs, errors.New("profile store is required"))
	}
	if d.Categories == nil {
		errs = append(errs, errors.New("category reader is required"))
	}
	if d.Auth == nil {
		errs = append(errs, errors.New("authenticator is required"))
	}
	if d.Sessions == nil {
		errs = append(errs, errors.New("session manager is required"))
	}
	return errors.Join(errs...)
}

// Server is the dashboard HTTP server.
type Server struct {
	http.Server

	deps      Deps
	router    *chi.Mux
	logger    *applog.Logger
	events    *applog.StructuredLogger
	templates *template.Template
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	tracer    *trace.Middleware
	now       func() time.Time
	startedAt time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, deps Deps) (*Server, error) {
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("http server: %w", err)
	}
	if deps.Logger == nil {
		deps.Logger = applog.New(applog.DefaultConfig())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	logger := deps.Logger.WithComponent(applog.ComponentHTTP)
	detector := security.NewDetector()

	s := &Server{
		deps:      deps,
		logger:    logger,
		events:    applog.NewStructuredLogger(logger),
		detector:  detector,
		tracer:    trace.NewMiddleware(logger, detector.ClientIP),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		now:       deps.Now,
		startedAt: deps.Now(),
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	s.router = s.routes()
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(applog.Middleware(s.logger))
	r.Use(applog.RequestIDMiddleware(trace.RequestID))
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(s.detector.Middleware(false, s.onSuspicious))
	r.Use(s.limiter.Middleware(s.detector.ClientIP, false, s.onRateLimited))

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssets(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", metrics.Handler())

	r.Get("/", s.handleIndex)

	r.Route("/api", func(r chi.Router) {
		r.Use(security.NoStore)

		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)
		r.Get("/categories", s.handleCategories)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Get("/auth/me", s.handleMe)
			r.Get("/profile", s.handleGetProfile)
			r.Put("/profile", s.handleUpdateProfile)

			r.Get("/products", s.handleListProducts)
			r.Post("/products", s.handleCreateProduct)
			r.Put("/products/{id}", s.handleUpdateProduct)
			r.Delete("/products/{id}", s.handleDeleteProduct)

			r.Get("/incomes", s.handleListIncomes)
			r.Post("/incomes", s.handleCreateIncome)
			r.Get("/incomes/overview", s.handleIncomeOverview)
			r.Get("/incomes/report", s.handleIncomeReport)
			r.Get("/incomes/statistics", s.handleIncomeStatistics)
			r.Get("/incomes/export", s.handleIncomeExport)
			r.Put("/incomes/{id}", s.handleUpdateIncome)
			r.Delete("/incomes/{id}", s.handleDeleteIncome)

			r.Get("/dashboard", s.handleDashboard)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			NotFoundError("route not found").Write(w)
		})
	})

	return r
}

// Router exposes the route tree, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// requireSession resolves the caller's session and stores it in the
// request context.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.deps.Sessions.Resolve(r.Context(), session.TokenFromRequest(r))
		if err != nil {
			if !errors.Is(err, core.ErrUnauthorized) {
				s.logError(r, "Session lookup failed", err, applog.ComponentAuth, applog.OpRead)
			}
			s.writeError(w, r, err)
			return
		}
		ctx := session.WithSession(r.Context(), sess)
		ctx = applog.WithLogger(ctx, applog.FromContext(ctx).With(applog.FieldUMKMID, string(sess.Principal.UMKMID)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) onSuspicious(r *http.Request) {
	metrics.IncSuspiciousRequest()
	applog.FromContext(r.Context()).WithComponent(applog.ComponentSecurity).Warn("Suspicious request",
		applog.NewFields().
			WithClientIP(s.detector.ClientIP(r)).
			WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent(), r.Referer()).
			ToSlice()...)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	metrics.IncRateLimited()
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).Warn("Rate limit exceeded",
		applog.FieldClientIP, s.detector.ClientIP(r))
	TooManyRequestsError().Write(w)
}

// writeError answers with the status StatusFor assigns to err.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logError(r, "Request failed", err, applog.ComponentHTTP, "")
	}
	ErrorResponse(status, msg).Write(w)
}

func (s *Server) logError(r *http.Request, msg string, err error, component, op string) {
	s.events.LogError(r.Context(), msg, err, component, op, applog.NewFields())
}

// principal returns the session principal set by requireSession.
func principal(r *http.Request) (core.Principal, *session.Session, error) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		return core.Principal{}, nil, core.ErrMissingPrincipal
	}
	return sess.Principal, sess, nil
}
