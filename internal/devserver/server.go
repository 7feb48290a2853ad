// Package devserver serves the output directory for local development with
// permissive CORS and a live-reload channel that pushes reload and stylesheet
// swap events to connected browsers.
package devserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
)

// Fixed endpoints of the live-reload channel.
const (
	EventsPath  = "/__livereload"
	ScriptPath  = "/__livereload.js"
	MetricsPath = "/metrics"
)

const shutdownTimeout = 5 * time.Second

// Server is the long-lived dev server. Start it once with Run; Reload and
// InjectCSS may be called from any goroutine.
type Server struct {
	root     string
	cfg      config.ServerConfig
	hub      *Hub
	registry *prom.Registry
	log      *slog.Logger

	mu    sync.Mutex
	addr  net.Addr
	ready chan struct{}
}

// Option customizes a Server.
type Option func(*Server)

// WithMetrics exposes reg at /metrics (when enabled in config) and reports
// live-reload activity to rec.
func WithMetrics(reg *prom.Registry, rec metrics.Recorder) Option {
	return func(s *Server) {
		s.registry = reg
		s.hub.recorder = metrics.OrNoop(rec)
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.log = l } }

// New returns a server for the directory root.
func New(root string, cfg config.ServerConfig, opts ...Option) *Server {
	s := &Server{
		root:  root,
		cfg:   cfg,
		hub:   NewHub(nil),
		log:   slog.Default(),
		ready: make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler assembles the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	files := noCache(http.FileServer(http.Dir(s.root)))
	if s.cfg.LiveReloadEnabled() {
		mux.Handle(EventsPath, s.hub)
		mux.HandleFunc(ScriptPath, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			_, _ = w.Write([]byte(clientScript))
		})
		files = injectScript(files)
	}
	if s.cfg.Metrics {
		mux.Handle(MetricsPath, metrics.HTTPHandler(s.registry))
	}
	mux.Handle("/", files)

	var h http.Handler = mux
	if s.cfg.CORSEnabled() {
		h = cors(h)
	}
	return s.logRequests(h)
}

// Run listens on the configured address and serves until ctx is canceled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return ferrors.ServerError("listen").
			WithCause(err).
			WithContext("addr", addr).
			Build()
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	close(s.ready)
	s.log.Info("Dev server listening",
		logfields.Addr("http://"+ln.Addr().String()),
		logfields.Path(s.root))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		s.hub.Shutdown()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return ferrors.ServerError("serve").WithCause(err).Build()
	case <-ctx.Done():
	}

	// SSE streams never finish on their own; close them before draining.
	s.hub.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return ferrors.ServerError("shutdown").WithCause(err).Build()
	}
	s.log.Info("Dev server stopped")
	return nil
}

// Ready is closed once the server accepts connections.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound address, or nil before Ready.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Reload tells every browser to reload the page.
func (s *Server) Reload() {
	s.hub.Broadcast(Event{Kind: EventReload})
}

// InjectCSS tells every browser to refetch the stylesheet at urlPath.
func (s *Server) InjectCSS(urlPath string) {
	s.hub.Broadcast(Event{Kind: EventCSS, Path: urlPath})
}

// Clients returns the number of connected live-reload clients.
func (s *Server) Clients() int { return s.hub.Clients() }

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.log.Debug("HTTP request",
			logfields.Method(r.Method),
			logfields.Path(r.URL.Path),
			logfields.Status(sw.status))
	})
}
