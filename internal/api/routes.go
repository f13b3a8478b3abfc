package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cuadrantes/iph-console/backend/internal/api/handlers"
	"github.com/cuadrantes/iph-console/backend/internal/apierr"
	"github.com/cuadrantes/iph-console/backend/internal/cache"
	"github.com/cuadrantes/iph-console/backend/internal/config"
	"github.com/cuadrantes/iph-console/backend/internal/metrics"
	"github.com/cuadrantes/iph-console/backend/internal/middleware"
	"github.com/cuadrantes/iph-console/backend/internal/reports"
)

// NewRouter builds the console's HTTP surface: the report proxy endpoints,
// operational endpoints, and token-guarded cache administration.
func NewRouter(cfg *config.Config, svc *reports.Service, c *cache.Cache) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recover)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSAllowedOrigins)))
	r.Use(instrument)
	if cfg.EnableRateLimit {
		rl := middleware.NewRateLimiter(cfg.RateLimitGlobal, cfg.RateLimitGlobalBurst,
			cfg.RateLimitPerIP, cfg.RateLimitPerIPBurst)
		r.Use(rl.Limit)
	}

	persistentBackend := "file"
	if cfg.RedisAddr != "" {
		persistentBackend = "redis"
	}
	hh := handlers.NewHealthHandler(cfg.UpstreamBaseURL, persistentBackend)
	r.HandleFunc("/healthz", hh.Health).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	rh := handlers.NewReportsHandler(svc)
	sh := handlers.NewStatsHandler(svc)

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/reports", rh.List).Methods("GET")
	apiRouter.HandleFunc("/reports", rh.Create).Methods("POST")
	apiRouter.HandleFunc("/reports/stats", sh.Stats).Methods("GET")
	apiRouter.HandleFunc("/reports/geo", sh.GeoPoints).Methods("GET")
	apiRouter.HandleFunc("/reports/{id}", rh.Get).Methods("GET")
	apiRouter.HandleFunc("/reports/{id}", rh.Update).Methods("PUT")
	apiRouter.HandleFunc("/reports/{id}", rh.Delete).Methods("DELETE")

	ch := handlers.NewCacheAdminHandler(c)
	admin := r.PathPrefix("/api/admin").Subrouter()
	admin.Use(adminOnly(cfg))
	admin.HandleFunc("/cache/stats", ch.Stats).Methods("GET")
	admin.HandleFunc("/cache/invalidate", ch.Invalidate).Methods("POST")
	admin.HandleFunc("/cache/invalidate/{namespace}", ch.InvalidateNamespace).Methods("POST")

	return r
}

// adminOnly rejects requests that do not carry the configured bearer token.
func adminOnly(cfg *config.Config) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.AdminAPIToken == "" {
				apierr.WriteErrorWithContext(w, r, apierr.New(apierr.ErrAuthForbidden,
					"Admin API is not configured", http.StatusServiceUnavailable))
				return
			}
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
				apierr.WriteErrorWithContext(w, r, apierr.AuthMissing(""))
				return
			}
			token := auth[len(prefix):]
			if subtle.ConstantTimeCompare([]byte(token), []byte(cfg.AdminAPIToken)) != 1 {
				apierr.WriteErrorWithContext(w, r, apierr.AuthInvalid(""))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// instrument records per-route request durations.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.HTTPRequestDuration.WithLabelValues(
			r.Method, route, strconv.Itoa(sw.status)).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
