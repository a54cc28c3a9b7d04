package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chartevo/internal/logging"
	"chartevo/internal/model"
	"chartevo/internal/storage"
)

// Source is the live run the server reports on.
type Source interface {
	RunID() string
	Generation() int
	DrainStats() []model.GenerationStats
}

// Option configures Server.
type Option func(*Options)

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	StatsInterval   time.Duration
	MetricsPath     string
	Gatherer        prometheus.Gatherer
	Logger          *logging.Logger
}

// Server exposes run history, metrics and a live stats stream over HTTP.
type Server struct {
	echo     *echo.Echo
	opts     Options
	store    storage.Store
	source   Source
	hub      *Hub
	log      *logging.Logger
	upgrader websocket.Upgrader
}

func New(store storage.Store, source Source, opts ...Option) (*Server, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if source == nil {
		return nil, errors.New("stats source is required")
	}
	cfg := Options{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		StatsInterval:   500 * time.Millisecond,
		MetricsPath:     "/metrics",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.StatsInterval <= 0 {
		return nil, fmt.Errorf("stats interval must be > 0")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		opts:   cfg,
		store:  store,
		source: source,
		hub:    NewHub(),
		log:    cfg.Logger.With(logging.String("component", "http")),
	}
	e.Use(recoverMiddleware(s.log))
	e.Use(requestLogging(s.log))

	e.GET("/healthz", s.health)
	e.GET("/runs", s.runs)
	e.GET("/stats", s.stats)
	e.GET("/ws", s.stream)
	if cfg.Gatherer != nil && cfg.MetricsPath != "" {
		e.GET(cfg.MetricsPath, echo.WrapHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	return s, nil
}

// WithHost sets the listen host.
func WithHost(host string) Option {
	return func(o *Options) { o.Host = host }
}

// WithPort sets the listen port.
func WithPort(port int) Option {
	return func(o *Options) { o.Port = port }
}

// WithTimeouts sets read, write and shutdown timeouts.
func WithTimeouts(read, write, shutdown time.Duration) Option {
	return func(o *Options) {
		o.ReadTimeout = read
		o.WriteTimeout = write
		o.ShutdownTimeout = shutdown
	}
}

// WithStatsInterval sets how often the live feed is drained and pushed.
func WithStatsInterval(interval time.Duration) Option {
	return func(o *Options) { o.StatsInterval = interval }
}

// WithMetrics serves gatherer on path.
func WithMetrics(gatherer prometheus.Gatherer, path string) Option {
	return func(o *Options) {
		o.Gatherer = gatherer
		o.MetricsPath = path
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

func (s *Server) Addr() string {
	return net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
}

// Handler returns the routed handler, for embedding or tests.
func (s *Server) Handler() http.Handler { return s.echo }
func (s *Server) Hub() *Hub             { return s.hub }

// Run listens until ctx is cancelled, then shuts down gracefully and closes
// every websocket client.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.Addr(),
		Handler:      s.echo,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", logging.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

// Broadcast drains the source every stats interval and pushes each
// generation to the websocket clients until ctx is cancelled.
func (s *Server) Broadcast(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return nil
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Flush drains the source once and returns how many generations were pushed.
func (s *Server) Flush() int {
	batch := s.source.DrainStats()
	for _, stats := range batch {
		msg, err := json.Marshal(streamMessage{RunID: s.source.RunID(), GenerationStats: stats})
		if err != nil {
			s.log.Warn("encode stats message failed", logging.Error(err))
			continue
		}
		s.hub.Broadcast(msg)
	}
	return len(batch)
}

type streamMessage struct {
	RunID string `json:"run_id"`
	model.GenerationStats
}
