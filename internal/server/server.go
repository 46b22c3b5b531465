package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"motorsport-api/internal/api"
	"motorsport-api/internal/observability/logging"
	"motorsport-api/internal/observability/metrics"
)

type Config struct {
	Addr      string
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Security  SecurityConfig
	Logger    *slog.Logger
	// Metrics defaults to a fresh registry installed as the process default.
	Metrics *metrics.Registry
}

type Server struct {
	httpServer  *http.Server
	logger      *slog.Logger
	metrics     *metrics.Registry
	rateLimiter *rateLimiter
}

func New(handler *api.Handler, cfg Config) (*Server, error) {
	if handler == nil {
		return nil, errors.New("api handler is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.Metrics
	if registry == nil {
		registry = metrics.NewRegistry()
	}

	policy, err := newCORSPolicy(cfg.CORS)
	if err != nil {
		return nil, fmt.Errorf("cors: %w", err)
	}
	rl, err := newRateLimiter(cfg.RateLimit)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Recorder.Handler())
	mux.Handle("/metrics/runtime", registry.RuntimeHandler())
	mux.HandleFunc(api.HealthPath, exactPath(api.HealthPath, handler.Health))
	mux.HandleFunc(api.V1Prefix+"teams/", handler.Teams)
	mux.HandleFunc(api.V1Prefix+"drivers/", handler.Drivers)
	mux.HandleFunc(api.V1Prefix+"seasons/", handler.Seasons)
	mux.HandleFunc(api.V1Prefix+"races/", handler.Races)
	mux.HandleFunc(api.V1Prefix+"results/", handler.Results)
	mux.HandleFunc(api.V1Prefix+"standings/", handler.Standings)
	mux.HandleFunc(api.V1Prefix+"stats/", exactPath(api.V1Prefix+"stats/", handler.Stats))
	mux.HandleFunc(authPrefix, handler.Auth)
	mux.HandleFunc("/", notFoundHandler)

	handlerChain := http.Handler(mux)
	handlerChain = rateLimitMiddleware(rl, handlerChain)
	handlerChain = authMiddleware(handler, handlerChain)
	handlerChain = corsMiddleware(policy, handlerChain)
	handlerChain = securityHeadersMiddleware(cfg.Security, handlerChain)
	handlerChain = recoverMiddleware(logger, handlerChain)
	handlerChain = metrics.HTTPMiddleware(registry.Recorder, handlerChain)
	handlerChain = logging.RequestLogger(logging.RequestLoggerConfig{
		Logger: logger,
		AdditionalFields: func(r *http.Request, _ int, _ time.Duration) []any {
			return []any{"remote_ip", extractClientIP(r)}
		},
		DisableRemoteAddr: true,
	})(handlerChain)
	handlerChain = requestIDMiddleware(logger, handlerChain)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlerChain,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
	}

	return &Server{
		httpServer:  httpServer,
		logger:      logger,
		metrics:     registry,
		rateLimiter: rl,
	}, nil
}

// Handler exposes the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HTTPServer exposes the configured http.Server for serverutil.Run.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Close releases the rate limit store. It does not stop the HTTP server.
func (s *Server) Close(ctx context.Context) error {
	if err := s.rateLimiter.Close(ctx); err != nil {
		return fmt.Errorf("close rate limit store: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and releases the rate limit store.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if closeErr := s.Close(ctx); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
