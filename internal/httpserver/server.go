package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tokligence/chatrelay/internal/health"
	"github.com/tokligence/chatrelay/internal/httpserver/protocol"
	"github.com/tokligence/chatrelay/internal/ledger"
	"github.com/tokligence/chatrelay/internal/logging"
	"github.com/tokligence/chatrelay/internal/metrics"
	"github.com/tokligence/chatrelay/internal/relay"
)

// Config wires the server's collaborators. Relay is required; the rest are optional.
type Config struct {
	Relay   *relay.Relay
	Ledger  ledger.Store
	Health  *health.Checker
	Metrics *metrics.Collector
	Logger  *logging.Logger

	// StaticDir, when set, is served at / for the browser chat page.
	StaticDir string
	// CORSOrigins lists allowed origins; empty disables CORS handling.
	CORSOrigins []string
}

// Server exposes the chat relay over HTTP.
type Server struct {
	relay       *relay.Relay
	ledger      ledger.Store
	health      *health.Checker
	metrics     *metrics.Collector
	logger      *logging.Logger
	staticDir   string
	corsOrigins []string
}

func New(cfg Config) (*Server, error) {
	if cfg.Relay == nil {
		return nil, errors.New("httpserver: relay required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewCollector()
	}
	return &Server{
		relay:       cfg.Relay,
		ledger:      cfg.Ledger,
		health:      cfg.Health,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		staticDir:   cfg.StaticDir,
		corsOrigins: cfg.CORSOrigins,
	}, nil
}

// Router returns a configured chi router for embedding in HTTP servers.
func (s *Server) Router() http.Handler {
	r := s.newBaseRouter()
	s.registerEndpoints(r, s.endpoints()...)
	return r
}

func (s *Server) newBaseRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: s.logger.Std(), NoColor: true}))
	r.Use(middleware.Recoverer)
	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			ExposedHeaders: []string{"X-Relay-ID", "X-Request-Id"},
			MaxAge:         300,
		}))
	}
	return r
}

func (s *Server) endpoints() []protocol.Endpoint {
	eps := []protocol.Endpoint{
		newChatEndpoint(s),
		newHealthEndpoint(s),
		newMetricsEndpoint(s),
	}
	if s.ledger != nil {
		eps = append(eps, newUsageEndpoint(s))
	}
	if s.staticDir != "" {
		eps = append(eps, newStaticEndpoint(s))
	}
	return eps
}

func (s *Server) registerEndpoints(r chi.Router, endpoints ...protocol.Endpoint) {
	for _, ep := range endpoints {
		if ep == nil {
			continue
		}
		s.logger.Debugf("registering endpoint %s", ep.Name())
		for _, route := range ep.Routes() {
			r.Method(route.Method, route.Path, s.instrument(ep.Name(), route.Handler))
		}
	}
}

// instrument records per-endpoint request counts, durations and error responses.
func (s *Server) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.metrics.RecordRequestStart(name)
		defer s.metrics.RecordRequestEnd(name)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.metrics.RecordRequest(name, time.Since(start))
		if ww.Status() >= http.StatusBadRequest {
			s.metrics.RecordError(name)
		}
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	s.respondJSON(w, status, map[string]any{"error": err.Error()})
}
