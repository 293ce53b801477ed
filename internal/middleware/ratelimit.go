package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/luofanlf/hdbPilot-admin/internal/pkg"
)

const (
	rateLimitMessage = "Too many attempts. Please wait a moment and try again."
	limiterGCSize    = 1000
	limiterIdle      = 10 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per client IP with a token bucket.
type RateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

// NewRateLimiter allows rps requests per second per client with the given
// burst. Non-positive values fall back to 1 request per second, burst 5.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 5
	}
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
		clients: map[string]*clientLimiter{},
	}
}

// Handler rejects requests over the limit with 429. htmx callers get a
// toast; everything else a JSON envelope.
func (m *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.allow(c.ClientIP()) {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(max(1, int(math.Ceil(1/float64(m.limit))))))
		if pkg.IsHTMX(c) {
			pkg.ToastOnly(c, http.StatusTooManyRequests, rateLimitMessage, pkg.ToastError)
			c.Abort()
			return
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, pkg.Response{
			Code:    http.StatusTooManyRequests,
			Message: rateLimitMessage,
		})
	}
}

func (m *RateLimiter) allow(clientIP string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cl, ok := m.clients[clientIP]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.clients[clientIP] = cl
	}
	cl.lastSeen = now
	m.gcLocked(now)
	return cl.limiter.AllowN(now, 1)
}

func (m *RateLimiter) gcLocked(now time.Time) {
	if len(m.clients) < limiterGCSize {
		return
	}
	cutoff := now.Add(-limiterIdle)
	for ip, cl := range m.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
		}
	}
}
