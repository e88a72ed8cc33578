package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"payoff/internal/core"
	"payoff/internal/log"
	"payoff/internal/metrics"
	"payoff/internal/middleware/ratelimit"
	"payoff/internal/middleware/security"
	"payoff/internal/middleware/trace"
)

// Planner is the application surface the API exposes.
type Planner interface {
	ListDebts(ctx context.Context) ([]core.Debt, error)
	GetDebt(ctx context.Context, id string) (core.Debt, error)
	SaveDebt(ctx context.Context, d core.Debt) error
	DeleteDebt(ctx context.Context, id string) error
	Simulate(ctx context.Context, debts []core.Debt, strategy core.Strategy) (core.SimulationOutput, error)
	Compare(ctx context.Context, debts []core.Debt, extra core.Money, methods ...core.Method) (core.Comparison, error)
	SubmitRun(ctx context.Context, debts []core.Debt, strategy core.Strategy) (core.Run, error)
	GetRun(ctx context.Context, id string) (core.Run, error)
	Ready(ctx context.Context) error
	AsyncEnabled() bool
}

// ServerConfig holds HTTP server tunables
type ServerConfig struct {
	Addr              string
	RequestsPerMinute int
	MaxBodyBytes      int64
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

func DefaultServerConfig(addr string) ServerConfig {
	return ServerConfig{
		Addr:              addr,
		RequestsPerMinute: ratelimit.DefaultConfig().RequestsPerMinute,
		MaxBodyBytes:      DefaultMaxBodyBytes,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

type Server struct {
	http.Server

	planner      Planner
	metrics      *metrics.Metrics
	logger       *log.Logger
	access       *log.StructuredLogger
	maxBodyBytes int64
	startedAt    time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// m may be nil, in which case /metrics answers 404.
func NewServer(config ServerConfig, planner Planner, m *metrics.Metrics, logger *log.Logger) *Server {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		planner:      planner,
		metrics:      m,
		logger:       logger,
		access:       log.NewStructuredLogger(logger),
		maxBodyBytes: config.MaxBodyBytes,
		startedAt:    time.Now(),
	}

	limiterConfig := ratelimit.DefaultConfig()
	limiterConfig.RequestsPerMinute = config.RequestsPerMinute
	s.rateLimiter = ratelimit.NewLimiter(limiterConfig)
	s.securityDetector = security.NewDetector(func(*http.Request, string) { m.Suspicious() })

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", m.Handler())

	mux.HandleFunc("GET /debts", s.handleListDebts)
	mux.HandleFunc("POST /debts", s.handleSaveDebt)
	mux.HandleFunc("GET /debts/{id}", s.handleGetDebt)
	mux.HandleFunc("DELETE /debts/{id}", s.handleDeleteDebt)
	mux.HandleFunc("POST /debts/simulate", s.handleSimulate)
	mux.HandleFunc("POST /debts/simulate/async", s.handleSubmitRun)
	mux.HandleFunc("POST /debts/compare", s.handleCompare)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)

	// Outermost first: every request gets an id and a log line, then
	// headers, detection and rate limiting.
	var handler http.Handler = withJSONMethodErrors(mux)
	handler = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimited)(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP, m.ObserveHTTP).Middleware(handler)

	s.Server = http.Server{
		Addr:              config.Addr,
		Handler:           handler,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
	}
	return s
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.RateLimited()
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError().Write(w)
}

// Shutdown stops accepting requests and the rate limiter cleanup
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withJSONMethodErrors replaces the mux's plain-text 405 and 404 replies
// with JSON errors.
func withJSONMethodErrors(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, pattern := mux.Handler(r)
		if pattern != "" {
			mux.ServeHTTP(w, r)
			return
		}
		rec := &statusProbe{header: http.Header{}}
		h.ServeHTTP(rec, r)
		switch rec.status {
		case http.StatusMethodNotAllowed:
			MethodNotAllowedError(rec.header.Get("Allow")).Write(w)
		case http.StatusNotFound:
			NotFoundError("no route for " + r.Method + " " + r.URL.Path).Write(w)
		default:
			// Redirects to the cleaned path.
			mux.ServeHTTP(w, r)
		}
	})
}

// statusProbe records what the mux's fallback handler would send.
type statusProbe struct {
	header http.Header
	status int
}

func (p *statusProbe) Header() http.Header { return p.header }

func (p *statusProbe) Write(b []byte) (int, error) {
	if p.status == 0 {
		p.status = http.StatusOK
	}
	return len(b), nil
}

func (p *statusProbe) WriteHeader(code int) {
	if p.status == 0 {
		p.status = code
	}
}
