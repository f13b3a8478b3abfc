package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cuadrantes/iph-console/backend/internal/api"
	"github.com/cuadrantes/iph-console/backend/internal/cache"
	"github.com/cuadrantes/iph-console/backend/internal/circuitbreaker"
	"github.com/cuadrantes/iph-console/backend/internal/config"
	"github.com/cuadrantes/iph-console/backend/internal/httpclient"
	"github.com/cuadrantes/iph-console/backend/internal/logger"
	"github.com/cuadrantes/iph-console/backend/internal/reports"
	"github.com/cuadrantes/iph-console/backend/internal/secrets"
)

// Server wires the upstream client, the cache, and the HTTP surface together.
type Server struct {
	cfg   *config.Config
	cache *cache.Cache
	http  *http.Server

	session    *cache.MemoryStore
	persistent cache.Store
}

// New assembles a server from configuration. The persistent cache backend is
// Redis when IPH_REDIS_ADDR is set, a file store under the cache directory
// otherwise.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	session, err := cache.NewMemoryStore(cfg.CacheMemoryMaxMB, cfg.CacheMemoryMaxItems)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}

	var persistent cache.Store
	if cfg.RedisAddr != "" {
		rs, err := cache.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			session.Close()
			return nil, fmt.Errorf("connect redis at %s: %w", cfg.RedisAddr, err)
		}
		persistent = rs
		logger.Info("Persistent cache backend: redis", "addr", cfg.RedisAddr,
			"password", secrets.Mask(cfg.RedisPassword))
	} else {
		fs, err := cache.NewFileStore(cfg.CacheDir)
		if err != nil {
			session.Close()
			return nil, fmt.Errorf("create file store in %s: %w", cfg.CacheDir, err)
		}
		persistent = fs
		logger.Info("Persistent cache backend: file", "dir", cfg.CacheDir)
	}

	c := cache.New(session, persistent)

	client := httpclient.GetInstance(httpclient.Config{
		BaseURL:        cfg.UpstreamBaseURL,
		Timeout:        cfg.HTTPTimeout,
		Retries:        cfg.HTTPMaxRetries,
		RetryBase:      cfg.HTTPRetryBase,
		RetryCap:       cfg.HTTPRetryCap,
		LogRetries:     cfg.LogHTTPRetries,
		DefaultHeaders: map[string]string{"User-Agent": cfg.UserAgent},
	})
	logger.Info("Upstream registry client ready", "base_url", secrets.MaskURL(cfg.UpstreamBaseURL),
		"timeout", cfg.HTTPTimeout, "retries", cfg.HTTPMaxRetries)

	var breaker *circuitbreaker.CircuitBreaker
	if cfg.EnableCircuitBreaker {
		breaker = circuitbreaker.New(circuitbreaker.Config{Name: "upstream-registry"})
		logger.Info("Circuit breaker enabled for upstream calls")
	}

	svc := reports.NewService(client, c, reports.ServiceConfig{
		ListTTL:   cfg.ReportListTTL,
		DetailTTL: cfg.ReportDetailTTL,
		StatsTTL:  cfg.ReportStatsTTL,
		GeoTTL:    cfg.GeoPointsTTL,
		Breaker:   breaker,
	})

	router := api.NewRouter(cfg, svc, c)

	return &Server{
		cfg:   cfg,
		cache: c,
		http: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		session:    session,
		persistent: persistent,
	}, nil
}

// Cache exposes the assembled cache, mainly for warmup tooling.
func (s *Server) Cache() *cache.Cache { return s.cache }

// Run serves HTTP until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", s.cfg.ListenAddr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := s.http.Shutdown(shutdownCtx)

	s.session.Close()
	if closer, ok := s.persistent.(interface{ Close() error }); ok {
		if cerr := closer.Close(); cerr != nil {
			logger.Warn("Failed to close persistent store", "error", cerr)
		}
	}
	return err
}
