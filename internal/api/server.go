package api

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aqlhr/askaql/internal/auth"
	"github.com/aqlhr/askaql/internal/log"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger     log.Logger
	Service    AskService    // Required
	Verifier   auth.Verifier // Required
	Pool       *pgxpool.Pool // Optional: nil disables pool stats in /ready
	TrustProxy bool          // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateBurst  int           // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("ask service is required")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("auth verifier is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ah := &askHandler{
		svc:      cfg.Service,
		verifier: cfg.Verifier,
		logger:   logger,
	}

	mux := http.NewServeMux()
	// Registered without a method pattern: OPTIONS is answered by the
	// CORS middleware and the handler itself maps other methods to a
	// JSON 405.
	mux.HandleFunc("/v1/ask", ah.ask)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log attributes.
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware()(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Use a top-level mux to separate health probes from middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
