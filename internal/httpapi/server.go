package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/agentbridge/agentbridge/internal/agent"
	"github.com/agentbridge/agentbridge/internal/message"
	"github.com/agentbridge/agentbridge/internal/provider"
	"github.com/agentbridge/agentbridge/internal/tool"
)

// ChatDispatcher is the narrow capability the single-round chat endpoints
// need from the Stream Dispatcher.
type ChatDispatcher interface {
	Complete(ctx context.Context, messages []message.Message, model string, tools []message.ToolDefinition, params provider.Params) (*message.CompletionResponse, error)
	Stream(ctx context.Context, messages []message.Message, model string, tools []message.ToolDefinition, params provider.Params) (<-chan *message.StreamChunk, error)
}

// Config configures the HTTP surface independent of how the caller wires
// its dependencies.
type Config struct {
	Host              string
	Port              int
	RequestsPerSecond float64
	Burst             int
	SearchBaseURL     string
	ToolTimeout       time.Duration
}

// Server wraps the Agent Executor and Stream Dispatcher in an HTTP surface
// built from the teacher's http.Server/net.Listen/graceful-shutdown
// pattern, routed with chi.
type Server struct {
	executor   *agent.Executor
	dispatcher ChatDispatcher
	mcpBackend tool.MCPBackend

	cfg Config
	log *slog.Logger

	router   chi.Router
	server   *http.Server
	listener net.Listener
}

func NewServer(executor *agent.Executor, dispatcher ChatDispatcher, mcpBackend tool.MCPBackend, cfg Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}

	s := &Server{
		executor:   executor,
		dispatcher: dispatcher,
		mcpBackend: mcpBackend,
		cfg:        cfg,
		log:        log.With("component", "httpapi.Server"),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(rateLimitMiddleware(rate.Limit(s.cfg.RequestsPerSecond), s.cfg.Burst))
	r.Use(s.logRequests)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/healthz", s.handleHealthz)

	r.Post("/agent", s.handleAgent)
	r.Post("/agent/", s.handleAgent)
	r.Post("/agent/stream", s.handleAgentStream)
	r.Post("/chat/completions", s.handleChatCompletions)
	r.Post("/chat/stream", s.handleChatStream)

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// rateLimitMiddleware applies a single shared token bucket across all
// requests, rejecting with 429 once it's drained. Per-client limiting is
// left to a reverse proxy; this bucket exists to keep the server itself
// from being driven into provider-side rate limiting by its own callers.
func rateLimitMiddleware(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(limit, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Start begins serving on cfg.Host:cfg.Port in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	s.listener = listener
	s.server = &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("http server error", "error", err)
		}
	}()
	s.log.Info("http server listening", "addr", addr)
	return nil
}

// Stop gracefully shuts the server down, bounded by ctx.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler { return s.router }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsonEncode(w, v)
}
