package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdle       = 30 * time.Minute
	limiterPruneEvery = 5 * time.Minute
)

type clientLimiter struct {
	limiter *rate.Limiter
	last    time.Time
}

// ipLimiter keeps one token bucket per client address.
type ipLimiter struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	clients map[string]*clientLimiter
	now     func() time.Time
}

func newIPLimiter(rps float64, burst int) *ipLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}

	return &ipLimiter{
		rps:     limit,
		burst:   burst,
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[ip] = c
	}
	c.last = l.now()

	return c.limiter.AllowN(c.last, 1)
}

func (l *ipLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *ipLimiter) prune(ctx context.Context) {
	ticker := time.NewTicker(limiterPruneEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.pruneIdle()
		}
	}
}

func (l *ipLimiter) pruneIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for ip, c := range l.clients {
		if now.Sub(c.last) > limiterIdle {
			delete(l.clients, ip)
		}
	}
}

// clientIP relies on middleware.RealIP having already rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
