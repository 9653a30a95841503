package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/darkodi/linkify/internal/errors"
	"github.com/darkodi/linkify/internal/logger"
)

// RateLimiter keeps one token bucket per client IP
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
	cleanup time.Duration
	log     *logger.Logger
	name    string
	stop    chan struct{}
	once    sync.Once
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterConfig holds rate limiter settings
type RateLimiterConfig struct {
	Name     string        // shows up in logs, e.g. "create"
	Rate     int           // Requests per interval
	Burst    int           // Max burst size
	Interval time.Duration // Window the rate applies to
	Cleanup  time.Duration // Cleanup interval for idle clients
}

// NewRateLimiter creates a new rate limiter. Stop releases its cleanup goroutine.
func NewRateLimiter(cfg RateLimiterConfig, log *logger.Logger) *RateLimiter {
	if cfg.Rate < 1 {
		cfg.Rate = 1
	}
	if cfg.Burst < 1 {
		cfg.Burst = cfg.Rate
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Cleanup <= 0 {
		cfg.Cleanup = 5 * time.Minute
	}

	rl := &RateLimiter{
		clients: make(map[string]*client),
		limit:   rate.Every(cfg.Interval / time.Duration(cfg.Rate)),
		burst:   cfg.Burst,
		cleanup: cfg.Cleanup,
		log:     log,
		name:    cfg.Name,
		stop:    make(chan struct{}),
	}

	// Start cleanup goroutine
	go rl.cleanupLoop()

	return rl
}

// Allow reports whether a request from ip may proceed now. When it may not,
// the returned duration is how long until it would.
func (rl *RateLimiter) Allow(ip string) (bool, time.Duration) {
	limiter := rl.limiter(ip)

	res := limiter.Reserve()
	if !res.OK() {
		return false, 0
	}
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		return false, delay
	}
	return true, 0
}

// Stop ends the cleanup loop
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// Clients returns the number of tracked client IPs
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) limiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, exists := rl.clients[ip]
	if !exists {
		// New client gets full bucket
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = time.Now()
	return c.limiter
}

// cleanupLoop removes idle client entries periodically
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.evictIdle(time.Now().Add(-rl.cleanup))
		}
	}
}

func (rl *RateLimiter) evictIdle(cutoff time.Time) {
	rl.mu.Lock()
	for ip, c := range rl.clients {
		// a bucket that is not full still carries state worth keeping
		if c.lastSeen.Before(cutoff) && c.limiter.Tokens() >= float64(rl.burst) {
			delete(rl.clients, ip)
		}
	}
	count := len(rl.clients)
	rl.mu.Unlock()

	if rl.log != nil {
		rl.log.Debug("rate limiter cleanup", "limiter", rl.name, "active_clients", count)
	}
}

// Middleware returns the rate limiting middleware
func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)

			ok, wait := rl.Allow(ip)
			if !ok {
				if rl.log != nil {
					rl.log.WithContext(r.Context()).Warn("rate limit exceeded",
						"limiter", rl.name,
						"ip", ip,
						"path", r.URL.Path,
					)
				}

				retryAfter := int(math.Ceil(wait.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				apperrors.RateLimitExceeded().WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the client IP from the request
func ClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (if behind proxy/load balancer)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Take the first IP in the list
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fall back to RemoteAddr, without the port
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
