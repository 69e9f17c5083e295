package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	api "github.com/GriffinCanCode/cookiefetch/internal/api/http"
	"github.com/GriffinCanCode/cookiefetch/internal/api/ipc"
	"github.com/GriffinCanCode/cookiefetch/internal/api/middleware"
	"github.com/GriffinCanCode/cookiefetch/internal/api/ws"
	"github.com/GriffinCanCode/cookiefetch/internal/domain/session"
	"github.com/GriffinCanCode/cookiefetch/internal/infrastructure/config"
	"github.com/GriffinCanCode/cookiefetch/internal/infrastructure/logging"
	"github.com/GriffinCanCode/cookiefetch/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/cookiefetch/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/cookiefetch/internal/providers/http/client"
	"github.com/GriffinCanCode/cookiefetch/internal/providers/http/fetch"
	"github.com/GriffinCanCode/cookiefetch/internal/providers/http/scope"
)

// eventsPath is served uncompressed so the WebSocket upgrade can hijack
// the connection.
const eventsPath = "/events"

// Server wraps the HTTP server and dependencies
type Server struct {
	config  *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
	pool    *client.Pool
	broker  *session.Broker
	fetcher *fetch.Fetcher
	hub     *ws.Hub
	handler http.Handler
	http    *http.Server
}

// NewServer creates a new server instance. ctx bounds loading the scope
// source.
func NewServer(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.FromLevel(cfg.Logging.Level, cfg.Logging.Development)
	}

	logger.Info("Initializing cookiefetch server",
		zap.String("addr", cfg.Server.Addr()),
		zap.Int("pool_capacity", cfg.Pool.Capacity),
		zap.Int("channel_depth", cfg.Broker.ChannelDepth),
	)

	sc, err := scope.NewLoader(logger.Component("scope")).Load(ctx, cfg.Scope.Allowlist, cfg.Scope.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to load scope: %w", err)
	}
	if sc.Len() == 0 {
		logger.Warn("Scope is empty, every fetch will be refused")
	}

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("cookiefetch", logger.Component("tracing"))

	pool := client.NewPool(client.Config{
		Capacity:  cfg.Pool.Capacity,
		UserAgent: cfg.Pool.UserAgent,
		Logger:    logger.Component("client"),
		Observer:  metrics,
	})
	broker := session.NewBroker(session.Config{
		Depth:    cfg.Broker.ChannelDepth,
		Logger:   logger.Component("session"),
		Observer: metrics,
	})
	hub := ws.NewHub(logger.Component("ws"), metrics)
	fetcher := fetch.NewFetcher(pool, sc, broker, hub, logger.Component("fetch"), metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	commands := router.Group("/")
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		commands.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}
	commands.Use(tracing.HTTPMiddleware(tracer))
	api.NewHandlers(broker, fetcher, pool, tracer, logger.Component("api")).Register(commands)

	ipc.NewHandler(broker, logger.Component("ipc"), metrics).Register(router)
	router.GET(eventsPath, hub.HandleConnection)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	var handler http.Handler = router
	if cfg.Server.Compress {
		handler = compress(router)
	}

	s := &Server{
		config:  cfg,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		pool:    pool,
		broker:  broker,
		fetcher: fetcher,
		hub:     hub,
		handler: handler,
	}
	s.http = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server initialized successfully", zap.Int("scope_patterns", sc.Len()))
	return s, nil
}

// compress gzips responses for clients that accept it, leaving the event
// stream alone.
func compress(next http.Handler) http.Handler {
	gz := gzhttp.GzipHandler(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, eventsPath) {
			next.ServeHTTP(w, r)
			return
		}
		gz.ServeHTTP(w, r)
	})
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Metrics returns the server's metrics registry wrapper.
func (s *Server) Metrics() *monitoring.Metrics {
	return s.metrics
}

// Run starts the HTTP server and blocks until it stops. A clean Shutdown
// returns nil.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and then
// releases every dependency.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	err := s.http.Shutdown(ctx)
	if err != nil {
		s.logger.Error("HTTP shutdown incomplete", zap.Error(err))
	}
	s.Close()
	return err
}

// Close releases dependencies without waiting on the listener.
func (s *Server) Close() {
	s.hub.Close()
	s.fetcher.Close()
	s.pool.Close()
	s.tracer.Close()
	_ = s.logger.Sync()
}
