package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/guttosm/nsepulse/internal/domain/dto"
)

const defaultRateLimit = 60

// window is the fixed rate-limit interval. Tests shorten it.
var window = time.Minute

// client represents a rate-limited client with request count and window start.
type client struct {
	windowStart time.Time
	count       int
}

// limiter is an in-memory fixed-window counter keyed by client IP.
// NOTE: state is per process; multi-instance deployments need a shared store.
type limiter struct {
	mu        sync.Mutex
	clients   map[string]*client
	limit     int
	lastSweep time.Time
}

func (l *limiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > window {
		l.sweep(now)
	}

	cl, ok := l.clients[ip]
	if !ok || now.Sub(cl.windowStart) > window {
		l.clients[ip] = &client{windowStart: now, count: 1}
		return true
	}
	cl.count++
	return cl.count <= l.limit
}

// sweep drops clients whose window has expired. Caller holds l.mu.
func (l *limiter) sweep(now time.Time) {
	for ip, cl := range l.clients {
		if now.Sub(cl.windowStart) > window {
			delete(l.clients, ip)
		}
	}
	l.lastSweep = now
}

// RateLimiter limits the number of requests per client IP.
//
// Behavior:
//   - Allows up to perMinute requests per window (non-positive means 60).
//   - Identifies clients by their IP address.
//   - If limit exceeded, returns HTTP 429 Too Many Requests.
//
// Usage:
//
//	router := gin.New()
//	router.Use(middleware.RateLimiter(config.AppConfig.Server.RateLimit))
//
// Response when limit exceeded:
//
//	HTTP/1.1 429 Too Many Requests
//	{
//	    "error": "rate limit exceeded"
//	}
func RateLimiter(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		perMinute = defaultRateLimit
	}
	l := &limiter{clients: make(map[string]*client), limit: perMinute}

	return func(c *gin.Context) {
		if !l.allow(c.ClientIP(), time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponse("rate limit exceeded", nil))
			return
		}
		c.Next()
	}
}
