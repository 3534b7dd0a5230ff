package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/dnscache"
	"github.com/rs/zerolog"

	"rpcshield/internal/cache"
	"rpcshield/internal/config"
	"rpcshield/internal/endpoint"
	"rpcshield/internal/proxy"
	"rpcshield/internal/telemetry"
)

// dnsRefreshInterval is how often cached DNS entries are re-resolved
const dnsRefreshInterval = 5 * time.Minute

// Server represents the main server
type Server struct {
	cfg        *config.Config
	registry   *endpoint.Registry
	store      cache.Store
	ratio      *telemetry.RatioLogger
	httpServer *http.Server
	cancelBg   context.CancelFunc
	logger     zerolog.Logger
}

// New wires the registry, cache store and request pipeline into a server
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	resolver := &dnscache.Resolver{}

	registry := endpoint.NewRegistry(cfg.Endpoints, cfg.GetDefaultCacheTimeDuration(), resolver, logger)
	if registry.Len() == 0 {
		return nil, fmt.Errorf("no usable endpoints configured")
	}

	var store cache.Store
	switch cfg.CacheBackend {
	case config.BackendRedis:
		redisStore, err := cache.NewRedisStore(ctx, cfg.RedisAddr, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		store = redisStore
		logger.Info().Str("addr", cfg.RedisAddr).Msg("using redis cache backend")
	default:
		memStore, err := cache.NewMemoryStore(cfg.CacheMaxEntries)
		if err != nil {
			return nil, fmt.Errorf("failed to create cache: %w", err)
		}
		store = memStore
		logger.Info().Int("maxEntries", cfg.CacheMaxEntries).Msg("using in-memory cache backend")
	}

	ratio := telemetry.NewRatioLogger(cfg.GetRatioLogIntervalDuration(), logger)
	coordinator := cache.NewCoordinator(store, cfg.GetLockTimeoutDuration(), logger)
	handler := proxy.NewHandler(registry, coordinator, resolver, cfg, ratio, logger)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	router.Handle("/metrics", promhttp.Handler())
	handler.Register(router)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	srv := &Server{
		cfg:      cfg,
		registry: registry,
		store:    store,
		ratio:    ratio,
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     router,
			ReadTimeout: 30 * time.Second,
			IdleTimeout: 120 * time.Second,
		},
		logger: logger,
	}

	srv.startBackground(resolver)
	return srv, nil
}

// startBackground starts the DNS refresher and ratio logger
func (s *Server) startBackground(resolver *dnscache.Resolver) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelBg = cancel

	go s.ratio.Run(ctx)
	go func() {
		ticker := time.NewTicker(dnsRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				resolver.Refresh(true)
			}
		}
	}()
}

// Start starts the HTTP listener
func (s *Server) Start() {
	go func() {
		s.logger.Info().
			Str("addr", s.httpServer.Addr).
			Msg("starting server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("server error")
		}
	}()

	for _, name := range s.registry.Names() {
		s.logger.Info().
			Str("endpoint", name).
			Str("rpc", fmt.Sprintf("http://%s/%s", s.httpServer.Addr, name)).
			Str("ws", fmt.Sprintf("ws://%s/%s", s.httpServer.Addr, name)).
			Msg("endpoint available")
	}
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("shutting down server...")

	err := s.httpServer.Shutdown(ctx)

	if s.cancelBg != nil {
		s.cancelBg()
	}
	s.store.Close()

	if err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.logger.Info().Msg("server stopped")
	return nil
}
