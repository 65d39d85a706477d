package core

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"fieldmap/internal/types"
)

// limiterIdleTTL is how long an idle client's bucket is kept before eviction.
const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter holds one token bucket per client key.
type clientLimiter struct {
	rps   rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	clients   map[string]*limiterEntry
	lastSweep time.Time
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	if burst < 1 {
		burst = int(math.Ceil(rps))
	}
	return &clientLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
		clients: make(map[string]*limiterEntry),
	}
}

// allow consumes one token for key. It returns whether the request may
// proceed and the whole tokens left afterwards.
func (c *clientLimiter) allow(key string) (bool, int) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastSweep) > limiterIdleTTL {
		for k, e := range c.clients {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(c.clients, k)
			}
		}
		c.lastSweep = now
	}

	e, ok := c.clients[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(c.rps, c.burst)}
		c.clients[key] = e
	}
	e.lastSeen = now

	allowed := e.limiter.AllowN(now, 1)
	remaining := int(math.Floor(e.limiter.TokensAt(now)))
	if remaining < 0 {
		remaining = 0
	}
	return allowed, remaining
}

// retryAfter is the whole number of seconds until one token is available.
func (c *clientLimiter) retryAfter() int {
	secs := int(math.Ceil(1 / float64(c.rps)))
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (c *clientLimiter) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

// RateLimit enforces a per-client token bucket keyed by clientKey.
// Requests are rejected with 429 and a Retry-After header once the bucket is
// empty. Every limited response carries X-RateLimit-Limit and
// X-RateLimit-Remaining. Without a configured limiter the middleware passes
// through.
func (s *Server) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := clientKey(r)
		allowed, remaining := s.limiter.allow(key)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.limiter.burst))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			s.Logger.Warn("rate limit exceeded",
				slog.String("client", key),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("request_id", types.GetRequestID(r.Context())),
			)

			w.Header().Set("Retry-After", strconv.Itoa(s.limiter.retryAfter()))
			Error(w, r, types.NewAppError(types.ErrCodeRateLimit, "Rate limit exceeded. Please retry later.", nil))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller: the first X-Forwarded-For hop when
// present (API Gateway and load balancers set it), else the remote host.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
