package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ipLimiter tracks a rate limiter and its last access time
type ipLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimitConfig configures the per-client limiter
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	// MaxClients bounds the number of tracked client addresses
	MaxClients int
	// CleanupInterval is how often idle clients are forgotten
	CleanupInterval time.Duration
	// TrustForwardedFor keys clients by the first X-Forwarded-For hop. Enable only
	// behind a proxy that overwrites the header.
	TrustForwardedFor bool
}

// DefaultRateLimitConfig returns limits suited to gateway callbacks
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 20,
		Burst:             40,
		MaxClients:        10000,
		CleanupInterval:   5 * time.Minute,
	}
}

// RateLimiter provides per-client rate limiting with automatic cleanup
type RateLimiter struct {
	limiters map[string]*ipLimiter
	mu       sync.Mutex
	config   RateLimitConfig
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a rate limiter and starts its cleanup goroutine.
// Call Shutdown to stop it.
func NewRateLimiter(config RateLimitConfig, logger *zap.Logger) *RateLimiter {
	if config.MaxClients <= 0 {
		config.MaxClients = 10000
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}

	rl := &RateLimiter{
		limiters: make(map[string]*ipLimiter),
		config:   config,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.cleanup(time.Now())
		}
	}
}

// cleanup removes entries idle for longer than the cleanup interval
func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-rl.config.CleanupInterval)
	removed := 0
	for ip, limiter := range rl.limiters {
		if limiter.lastAccess.Before(cutoff) {
			delete(rl.limiters, ip)
			removed++
		}
	}

	if removed > 100 {
		rl.logger.Info("Rate limiter cleanup",
			zap.Int("removed", removed),
			zap.Int("remaining", len(rl.limiters)),
		)
	}
}

// Shutdown stops the cleanup goroutine
func (rl *RateLimiter) Shutdown() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// getLimiter returns the rate limiter for the given client key
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if limiter, ok := rl.limiters[key]; ok {
		limiter.lastAccess = now
		return limiter.limiter
	}

	if len(rl.limiters) >= rl.config.MaxClients {
		rl.evictOldest()
	}

	limiter := &ipLimiter{
		limiter:    rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst),
		lastAccess: now,
	}
	rl.limiters[key] = limiter
	return limiter.limiter
}

func (rl *RateLimiter) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, lim := range rl.limiters {
		if oldestKey == "" || lim.lastAccess.Before(oldest) {
			oldestKey, oldest = key, lim.lastAccess
		}
	}
	delete(rl.limiters, oldestKey)
}

// clientKey identifies the caller by IP, without the ephemeral port
func (rl *RateLimiter) clientKey(r *http.Request) string {
	if rl.config.TrustForwardedFor {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware returns HTTP middleware that applies rate limiting
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.clientKey(r)
		if !rl.getLimiter(key).Allow() {
			rl.logger.Warn("Rate limit exceeded",
				zap.String("client", key),
				zap.String("path", r.URL.Path),
			)
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
