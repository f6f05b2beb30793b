// Package server hosts the HTTP shell around the websocket sessions:
// request ids, request logging, panic recovery, tracing, the health and
// info endpoints, and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultPort              = 8000
	defaultRequestTimeout    = 30 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultReadHeaderTimeout = 10 * time.Second
)

// Config controls the listener and the plain HTTP routes.
type Config struct {
	Host string
	Port int
	// RequestTimeout bounds plain HTTP handlers. Websocket routes are exempt.
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	// StaticDir, when set and present on disk, is served under /static/.
	StaticDir string
	// ServiceName names the otelhttp server spans.
	ServiceName string
}

// Endpoint is one line of the info page.
type Endpoint struct {
	Path        string
	Description string
}

type Server struct {
	Router *chi.Mux
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	endpoints []Endpoint
	http      *http.Server
}

func New(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "youtube-reviewer"
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	// otelhttp wraps the writer with httpsnoop, which keeps Hijacker.
	serviceName := cfg.ServiceName
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName)
	})

	s := &Server{
		Router: r,
		cfg:    cfg,
		logger: logger.With("component", "server"),
		endpoints: []Endpoint{
			{Path: "/health", Description: "Health check"},
		},
	}

	r.Group(func(r chi.Router) {
		r.Use(TimeoutMiddleware(cfg.RequestTimeout))
		r.Get("/health", s.handleHealth)
		r.Get("/", s.handleInfo)
		s.mountStatic(r)
	})

	return s
}

// Advertise lists an endpoint on the info page.
func (s *Server) Advertise(path, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints = append(s.endpoints, Endpoint{Path: path, Description: description})
}

// Addr is the listen address derived from the config.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start over an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	return s.Shutdown()
}

// Shutdown stops accepting connections and waits for in-flight requests
// up to the configured shutdown timeout.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.logger.Info("shutting down server", slog.Duration("timeout", s.cfg.ShutdownTimeout))
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Healthy"))
}

var infoPage = template.Must(template.New("info").Parse(`<html>
  <head><title>YouTube Reviewer API</title></head>
  <body>
    <h1>YouTube Reviewer API</h1>
    <p>API service is running.</p>
    <h2>Available Endpoints:</h2>
    <ul>
{{- range .}}
      <li><strong>{{.Path}}</strong> - {{.Description}}</li>
{{- end}}
    </ul>
  </body>
</html>
`))

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	endpoints := append([]Endpoint(nil), s.endpoints...)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := infoPage.Execute(w, endpoints); err != nil {
		AddError(r.Context(), err)
	}
}

func (s *Server) mountStatic(r chi.Router) {
	if s.cfg.StaticDir == "" {
		return
	}
	info, err := os.Stat(s.cfg.StaticDir)
	if err != nil || !info.IsDir() {
		s.logger.Warn("static directory not found, not serving /static", "dir", s.cfg.StaticDir)
		return
	}
	fs := http.StripPrefix("/static/", http.FileServer(http.Dir(s.cfg.StaticDir)))
	r.Get("/static/*", fs.ServeHTTP)
	s.endpoints = append(s.endpoints, Endpoint{Path: "/static/", Description: "Static files"})
}
