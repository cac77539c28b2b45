package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/0888060509/champong-admin/internal/audit"
	"github.com/0888060509/champong-admin/internal/rules"
	"github.com/0888060509/champong-admin/internal/store"
	"github.com/0888060509/champong-admin/internal/suggest"
	"github.com/0888060509/champong-admin/internal/telemetry"
)

// Options configures a Server.
type Options struct {
	AdminAPIKey       string
	Logger            zerolog.Logger
	SuggestRatePerMin int
	// RequestTimeout bounds every request. Zero means 30s.
	RequestTimeout time.Duration
	// Audit records rule set changes. Nil disables the trail.
	Audit *audit.Service
}

// Server serves the rule, segment and collection endpoints.
type Server struct {
	store       store.Store
	suggester   *suggest.Service
	audit       *audit.Service
	adminAPIKey string
	logger      zerolog.Logger
	suggestRate int
	timeout     time.Duration
	now         func() time.Time
}

func NewServer(st store.Store, suggester *suggest.Service, opts Options) *Server {
	s := &Server{
		store:       st,
		suggester:   suggester,
		audit:       opts.Audit,
		adminAPIKey: opts.AdminAPIKey,
		logger:      opts.Logger,
		suggestRate: opts.SuggestRatePerMin,
		timeout:     opts.RequestTimeout,
		now:         time.Now,
	}
	if s.suggestRate <= 0 {
		s.suggestRate = 10
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	r.Use(s.requestLogger()...)
	r.Use(middleware.Recoverer, telemetry.Middleware)
	r.Use(middleware.Timeout(s.timeout))

	// health
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/rules/{domain}", func(r chi.Router) {
			r.Post("/validate", s.handleValidate)
			r.Post("/render", s.handleRender)
			r.Post("/evaluate", s.handleEvaluate)
			r.Post("/compile", s.handleCompile)
		})

		r.Route("/segments", s.ruleSetRoutes(rules.Customer, "members"))
		r.Route("/collections", s.ruleSetRoutes(rules.Product, "products"))

		r.With(s.authAdmin).Get("/audit", s.handleAudit)
	})

	return r
}

// ruleSetRoutes mounts the CRUD, record listing and suggestion endpoints of
// one domain. recordPath names the sub-resource listing matching records.
func (s *Server) ruleSetRoutes(d *rules.Domain, recordPath string) func(chi.Router) {
	h := &ruleSetHandlers{server: s, domain: d}
	return func(r chi.Router) {
		r.Get("/", h.list)
		r.With(s.authAdmin).Post("/", h.create)
		r.With(s.suggestLimiter()).Post("/suggest", h.suggest)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.get)
			r.With(s.authAdmin).Put("/", h.replace)
			r.With(s.authAdmin).Delete("/", h.delete)
			r.Get("/"+recordPath, h.records)
		})
	}
}
