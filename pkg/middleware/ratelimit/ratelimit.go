package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	appErrors "github.com/bimbingan-kampus/konsultasi-api/pkg/errors"
	"github.com/bimbingan-kampus/konsultasi-api/pkg/response"
)

const staleAfter = 3 * time.Minute

type client struct {
	limiter *rate.Limiter
	seen    time.Time
}

// Limiter holds per-client token buckets keyed by IP.
type Limiter struct {
	mu       sync.Mutex
	clients  map[string]*client
	rps      rate.Limit
	burst    int
	done     chan struct{}
	stopOnce sync.Once
}

// NewLimiter builds a limiter and starts the stale-entry sweeper.
func NewLimiter(rps float64, burst int) *Limiter {
	l := &Limiter{
		clients: make(map[string]*client),
		rps:     rate.Limit(rps),
		burst:   burst,
		done:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Stop ends the sweeper goroutine. The limiter keeps serving Allow checks
// afterwards; safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

func (l *Limiter) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
		}
		l.mu.Lock()
		for ip, c := range l.clients {
			if time.Since(c.seen) > staleAfter {
				delete(l.clients, ip)
			}
		}
		l.mu.Unlock()
	}
}

func (l *Limiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.clients[ip]; ok {
		c.seen = time.Now()
		return c.limiter
	}
	lim := rate.NewLimiter(l.rps, l.burst)
	l.clients[ip] = &client{limiter: lim, seen: time.Now()}
	return lim
}

// Middleware rejects requests exceeding the per-IP budget with 429.
func Middleware(l *Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		if !l.get(c.ClientIP()).Allow() {
			response.Error(c, appErrors.New("TOO_MANY_REQUESTS", http.StatusTooManyRequests, "too many requests"))
			c.Abort()
			return
		}
		c.Next()
	}
}
