package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long a client IP keeps its limiter without traffic.
const limiterIdleTTL = 3 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter keeps one token bucket per client IP. Idle buckets are swept
// lazily, at most once per idleTTL, on the request path.
type ipRateLimiter struct {
	mu        sync.Mutex
	rps       int
	idleTTL   time.Duration
	clock     clockwork.Clock
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

func newIPRateLimiter(rps int, idleTTL time.Duration, clock clockwork.Clock) *ipRateLimiter {
	return &ipRateLimiter{
		rps:       rps,
		idleTTL:   idleTTL,
		clock:     clock,
		clients:   make(map[string]*clientLimiter),
		lastSweep: clock.Now(),
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.Sub(l.lastSweep) >= l.idleTTL {
		l.sweep(now)
	}

	c, ok := l.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(l.rps), l.rps)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// sweep must be called with mu held.
func (l *ipRateLimiter) sweep(now time.Time) {
	for ip, c := range l.clients {
		if now.Sub(c.lastSeen) >= l.idleTTL {
			delete(l.clients, ip)
		}
	}
	l.lastSweep = now
}

// RateLimitMiddleware allows rps requests per second per client IP, with a burst of rps.
func RateLimitMiddleware(rps int) gin.HandlerFunc {
	return rateLimitHandler(newIPRateLimiter(rps, limiterIdleTTL, clockwork.NewRealClock()))
}

func rateLimitHandler(l *ipRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
				"code":  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
