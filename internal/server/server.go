// Package server exposes the analyzer, session and report endpoints over
// HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/lumarank/lumarank/internal/auth"
	"github.com/lumarank/lumarank/internal/model"
	"github.com/lumarank/lumarank/internal/pipeline"
	"github.com/lumarank/lumarank/internal/store"
)

// Analyzer runs analyses on behalf of a session. pipeline.Analyzer
// satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, sess model.SessionContext, req pipeline.AnalyzeRequest) (*model.AnalysisReport, error)
	TestQuestions(ctx context.Context, sess model.SessionContext, companyName string, questions []model.GeneratedQuestion) (*model.AnalysisReport, error)
}

// Authenticator turns identity headers into users and sessions.
// auth.Resolver satisfies it.
type Authenticator interface {
	Resolve(ctx context.Context, creds auth.Credentials, requestID string) (model.SessionContext, error)
	Me(ctx context.Context, email, authID string) (*model.User, error)
	Check(ctx context.Context, email, authID string) (*model.User, bool)
	Register(ctx context.Context, req auth.RegisterRequest) (*model.User, bool, error)
}

// Pinger is a dependency probed by /readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes the HTTP surface.
type Options struct {
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	// MaxBodyBytes caps request bodies; defaults to 1 MiB.
	MaxBodyBytes int64
}

// Deps wires a Server. Reports and Checks are optional.
type Deps struct {
	Analyzer Analyzer
	Auth     Authenticator
	Reports  store.ReportStore
	Checks   map[string]Pinger
	Options  Options
}

// Server holds the request handlers. It keeps no per-request state.
type Server struct {
	analyzer Analyzer
	auth     Authenticator
	reports  store.ReportStore
	checks   map[string]Pinger
	opts     Options
	limiter  *clientLimiters
}

// New creates a Server.
func New(d Deps) *Server {
	if d.Options.MaxBodyBytes <= 0 {
		d.Options.MaxBodyBytes = 1 << 20
	}
	s := &Server{
		analyzer: d.Analyzer,
		auth:     d.Auth,
		reports:  d.Reports,
		checks:   d.Checks,
		opts:     d.Options,
	}
	if d.Options.RateLimitRPS > 0 {
		s.limiter = newClientLimiters(d.Options.RateLimitRPS, d.Options.RateLimitBurst, time.Now)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	if len(s.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{
				"Accept", "Content-Type", headerRequestID,
				auth.HeaderEmail, auth.HeaderAuthID, auth.HeaderEntityID,
			},
			ExposedHeaders:   []string{headerRequestID},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/readiness", s.handleReadiness)

	r.Route("/api/v1", func(api chi.Router) {
		if s.limiter != nil {
			api.Use(s.limiter.middleware)
		}

		api.Route("/auth", func(ar chi.Router) {
			ar.Get("/check", s.wrap(s.handleAuthCheck))
			ar.Get("/me", s.wrap(s.handleAuthMe))
			ar.Post("/register", s.wrap(s.handleAuthRegister))
		})

		api.Group(func(pr chi.Router) {
			pr.Use(s.requireSession)

			pr.Post("/analyze", s.wrap(s.handleAnalyze))
			pr.Post("/analyze/quick", s.wrap(s.handleAnalyzeQuick))
			pr.Post("/test-questions", s.wrap(s.handleTestQuestions))

			pr.Route("/reports", func(rr chi.Router) {
				rr.Get("/", s.wrap(s.handleListReports))
				rr.Get("/lookup", s.wrap(s.handleLookupReport))
				rr.Get("/search", s.wrap(s.handleSearchReports))
				rr.Get("/stats", s.wrap(s.handleReportStats))
				rr.Get("/{id}", s.wrap(s.handleGetReport))
				rr.With(requireRole(model.RoleAdmin)).Delete("/{id}", s.wrap(s.handleDeleteReport))
			})
		})
	})
	return r
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			writeError(w, r, err, nil)
		}
	}
}
