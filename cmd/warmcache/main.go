// Command warmcache preloads the persistent cache with the aggregate stats
// and the details of the reports on the first listing pages, so a freshly
// deployed console serves its dashboard panels and recent report views
// without waiting on the upstream registry. Listing pages themselves live in
// each process's session backend and cannot be warmed from here.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/cuadrantes/iph-console/backend/internal/cache"
	"github.com/cuadrantes/iph-console/backend/internal/config"
	"github.com/cuadrantes/iph-console/backend/internal/httpclient"
	"github.com/cuadrantes/iph-console/backend/internal/logger"
	"github.com/cuadrantes/iph-console/backend/internal/reports"
)

func main() {
	pages := flag.Int("pages", 1, "listing pages to walk for report details")
	timeout := flag.Duration("timeout", 60*time.Second, "overall deadline")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (falling back to system env)")
	}

	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	session, err := cache.NewMemoryStore(cfg.CacheMemoryMaxMB, cfg.CacheMemoryMaxItems)
	if err != nil {
		log.Fatalf("create session store: %v", err)
	}
	defer session.Close()

	var persistent cache.Store
	if cfg.RedisAddr != "" {
		rs, err := cache.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("connect redis: %v", err)
		}
		defer rs.Close()
		persistent = rs
	} else {
		fs, err := cache.NewFileStore(cfg.CacheDir)
		if err != nil {
			log.Fatalf("create file store: %v", err)
		}
		persistent = fs
	}

	client := httpclient.GetInstance(httpclient.Config{
		BaseURL:        cfg.UpstreamBaseURL,
		Timeout:        cfg.HTTPTimeout,
		Retries:        cfg.HTTPMaxRetries,
		RetryBase:      cfg.HTTPRetryBase,
		RetryCap:       cfg.HTTPRetryCap,
		LogRetries:     cfg.LogHTTPRetries,
		DefaultHeaders: map[string]string{"User-Agent": cfg.UserAgent},
	})

	svc := reports.NewService(client, cache.New(session, persistent), reports.ServiceConfig{
		ListTTL:   cfg.ReportListTTL,
		DetailTTL: cfg.ReportDetailTTL,
		StatsTTL:  cfg.ReportStatsTTL,
		GeoTTL:    cfg.GeoPointsTTL,
	})

	if _, err := svc.Stats(ctx); err != nil {
		logger.Warn("Failed to warm stats", "error", err)
	} else {
		logger.Info("Warmed aggregate stats")
	}

	warmed := 0
	for page := 1; page <= *pages; page++ {
		result, err := svc.List(ctx, reports.ListParams{Page: page, PageSize: 25})
		if err != nil {
			logger.Warn("Failed to fetch listing page", "page", page, "error", err)
			break
		}
		if len(result.Items) == 0 {
			break
		}
		for _, rep := range result.Items {
			if _, err := svc.Get(ctx, rep.ID); err != nil {
				logger.Warn("Failed to warm report detail", "id", rep.ID, "error", err)
				continue
			}
			warmed++
		}
		logger.Info("Warmed report details", "page", page, "reports", len(result.Items))
	}
	logger.Info("Warm run finished", "details", warmed)
}
