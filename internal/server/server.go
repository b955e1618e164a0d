package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"accountgate/internal/auth"
	"accountgate/internal/i18n"
	"accountgate/internal/metrics"
)

type Options struct {
	// BasePath prefixes every API route, e.g. "/api".
	BasePath       string
	StrictStatus   bool
	Production     bool
	CookieDomain   string
	TrustedProxies []string
	AllowedOrigins []string
}

// HealthCheck is a dependency probed by /healthz.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type Server struct {
	ctrl           *auth.Controller
	tokens         *auth.TokenService
	cookies        auth.CookiePolicy
	metrics        *metrics.Metrics
	logger         *slog.Logger
	opts           Options
	checks         []HealthCheck
	trustedProxies []net.IPNet
	now            func() time.Time
}

func NewServer(ctrl *auth.Controller, opts Options, logger *slog.Logger, m *metrics.Metrics, checks ...HealthCheck) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Server{
		ctrl:    ctrl,
		tokens:  ctrl.Tokens(),
		cookies: auth.CookiePolicy{Domain: opts.CookieDomain, Production: opts.Production},
		metrics: m,
		logger:  logger,
		opts:    opts,
		checks:  checks,

		trustedProxies: parseProxyCIDRs(opts.TrustedProxies),
		now:            time.Now,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(secureHeaders)
	r.Use(s.cors)
	r.Use(i18n.Middleware)
	r.Use(s.requestMeta)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("API working"))
	})
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route(s.opts.BasePath+"/auth", func(ar chi.Router) {
		ar.Post("/register", s.handleRegister)
		ar.Post("/login", s.handleLogin)
		ar.Post("/logout", s.handleLogout)
		ar.Post("/send-reset-otp", s.handleSendResetOTP)
		ar.Post("/reset-password", s.handleResetPassword)

		ar.Group(func(pr chi.Router) {
			pr.Use(s.requireAuth)
			pr.Post("/send-verify-otp", s.handleSendVerifyOTP)
			pr.Post("/verify-account", s.handleVerifyAccount)
			pr.Post("/is-auth", s.handleIsAuth)
		})
	})

	r.Route(s.opts.BasePath+"/user", func(ur chi.Router) {
		ur.Use(s.requireAuth)
		ur.Get("/data", s.handleUserData)
	})

	return r
}
