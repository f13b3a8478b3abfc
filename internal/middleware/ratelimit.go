package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/cuadrantes/iph-console/backend/internal/apierr"
	"github.com/cuadrantes/iph-console/backend/internal/metrics"
)

// RateLimiter enforces a global ceiling plus a per-IP budget, so one
// misbehaving dashboard tab cannot starve the rest of the precinct.
type RateLimiter struct {
	global   *rate.Limiter
	perIP    map[string]*ipLimiter
	mu       sync.Mutex
	cleanup  *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
	ipRate   rate.Limit
	ipBurst  int
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter with global and per-IP limits,
// expressed in requests per second with the given burst sizes.
func NewRateLimiter(globalRate float64, globalBurst int, ipRate float64, ipBurst int) *RateLimiter {
	rl := &RateLimiter{
		global:  rate.NewLimiter(rate.Limit(globalRate), globalBurst),
		perIP:   make(map[string]*ipLimiter),
		cleanup: time.NewTicker(1 * time.Minute),
		done:    make(chan struct{}),
		ipRate:  rate.Limit(ipRate),
		ipBurst: ipBurst,
	}
	go rl.cleanupStaleEntries()
	return rl
}

func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if l, ok := rl.perIP[ip]; ok {
		l.lastSeen = time.Now()
		return l.limiter
	}
	l := &ipLimiter{
		limiter:  rate.NewLimiter(rl.ipRate, rl.ipBurst),
		lastSeen: time.Now(),
	}
	rl.perIP[ip] = l
	return l.limiter
}

// cleanupStaleEntries drops per-IP limiters idle for more than 3 minutes.
// It runs until Stop is called.
func (rl *RateLimiter) cleanupStaleEntries() {
	for {
		select {
		case <-rl.done:
			return
		case <-rl.cleanup.C:
			rl.mu.Lock()
			for ip, l := range rl.perIP {
				if time.Since(l.lastSeen) > 3*time.Minute {
					delete(rl.perIP, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Stop ends the background cleanup goroutine. The limiter keeps enforcing
// limits afterwards; per-IP entries just stop being reaped. Safe to call
// more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		rl.cleanup.Stop()
		close(rl.done)
	})
}

// Limit returns a middleware handler that enforces rate limits.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.global.Allow() {
			metrics.RateLimitRejections.WithLabelValues("global").Inc()
			apierr.WriteErrorWithContext(w, r, apierr.RateLimitGlobal())
			return
		}

		ip := clientIP(r)
		if !rl.getLimiter(ip).Allow() {
			metrics.RateLimitRejections.WithLabelValues("ip").Inc()
			apierr.WriteErrorWithContext(w, r, apierr.RateLimitIP())
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the client IP, checking common proxy headers first.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For can list multiple hops; the first is the client
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
