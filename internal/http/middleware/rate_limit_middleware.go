package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/storekit/storefront-backend/internal/http/response"
	"github.com/storekit/storefront-backend/internal/i18n"
)

type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter is a per-key fixed-window limiter kept local to the process.
// Auth endpoints get a tighter budget than the general API surface.
type RateLimiter struct {
	limit    int
	window   time.Duration
	keyFunc  func(r *http.Request) string
	messages *i18n.Resolver

	mu      sync.Mutex
	windows map[string]*windowState
}

type windowState struct {
	start time.Time
	hits  int
}

func NewRateLimiter(limit int, window time.Duration, messages *i18n.Resolver) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		window:   window,
		keyFunc:  clientKey,
		messages: messages,
		windows:  make(map[string]*windowState),
	}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		decision := rl.allow(rl.keyFunc(r), time.Now())
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
		if !decision.Allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(decision.RetryAfter.Seconds())+1))
			response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED",
				response.Localize(r, rl.messages, "error.rate_limited"), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(key string, now time.Time) Decision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.windows[key]
	if !ok || now.Sub(state.start) >= rl.window {
		state = &windowState{start: now}
		rl.windows[key] = state
	}
	if state.hits >= rl.limit {
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: rl.window - now.Sub(state.start),
		}
	}
	state.hits++
	if len(rl.windows) > 4096 {
		rl.evictStale(now)
	}
	return Decision{Allowed: true, Remaining: rl.limit - state.hits}
}

func (rl *RateLimiter) evictStale(now time.Time) {
	for key, state := range rl.windows {
		if now.Sub(state.start) >= rl.window {
			delete(rl.windows, key)
		}
	}
}

func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
