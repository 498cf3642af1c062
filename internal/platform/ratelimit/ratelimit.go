// Package ratelimit provides per-user token-bucket rate limiting for write
// endpoints. Progress updates arrive on every scroll tick, so the portal
// throttles them per user rather than globally.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/example/fiction-portal/internal/platform/api"
	"github.com/example/fiction-portal/internal/platform/auth"
	"github.com/example/fiction-portal/internal/platform/httpserver"
)

type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// PerUser hands out one token bucket per user id and cleans up idle entries.
type PerUser struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*userLimiter

	stopCh chan struct{}
}

// NewPerUser creates a limiter allowing limit events/sec with the given burst.
// A background goroutine evicts entries idle for longer than ten minutes.
func NewPerUser(limit rate.Limit, burst int) *PerUser {
	p := &PerUser{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*userLimiter),
		stopCh:   make(chan struct{}),
	}
	go p.cleanupLoop(5 * time.Minute)
	return p
}

func (p *PerUser) Stop() { close(p.stopCh) }

// Allow reports whether the user may proceed now.
func (p *PerUser) Allow(userID string) bool {
	return p.get(userID).Allow()
}

// Middleware rejects over-limit requests with 429 and a Retry-After hint.
// Must run after auth.RequireUser.
func (p *PerUser) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := httpserver.RequestIDFromContext(r.Context())
			uid, ok := auth.UserIDFromContext(r.Context())
			if !ok || uid == "" {
				api.Unauthorized(w, "AUTH_MISSING", "Missing auth", rid)
				return
			}
			if !p.Allow(uid) {
				retryAfter := int(math.Ceil(1.0 / float64(p.limit)))
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				api.RateLimited(w, "RATE_LIMITED", "Too many requests", rid, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Size returns the number of tracked users. For tests and metrics.
func (p *PerUser) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.limiters)
}

func (p *PerUser) get(userID string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ul, ok := p.limiters[userID]; ok {
		ul.lastAccess = time.Now()
		return ul.limiter
	}
	l := rate.NewLimiter(p.limit, p.burst)
	p.limiters[userID] = &userLimiter{limiter: l, lastAccess: time.Now()}
	return l
}

func (p *PerUser) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.cleanup(2 * interval)
		case <-p.stopCh:
			return
		}
	}
}

func (p *PerUser) cleanup(ttl time.Duration) {
	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	for uid, ul := range p.limiters {
		if now.Sub(ul.lastAccess) > ttl {
			delete(p.limiters, uid)
		}
	}
}
