package main

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"grantlane/pkg/authn"
	"grantlane/pkg/domain"
	"grantlane/pkg/httpx"
	"grantlane/pkg/logger"
)

type principalKey struct{}

// requireAuth authenticates the bearer token against the principal registry
// and stores the principal on the request context. Authorization decisions
// stay in the coordinator; this middleware only establishes who is calling.
func (s *server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := authn.ParseBearerToken(r.Header.Get("Authorization"))
		if !ok {
			httpx.WriteError(w, httpx.RequestID(r), http.StatusUnauthorized,
				"UNAUTHORIZED", "missing or malformed bearer token", nil)
			return
		}
		principal, err := s.coord.AuthenticateToken(r.Context(), token)
		if err != nil {
			httpx.WriteError(w, httpx.RequestID(r), http.StatusUnauthorized,
				"UNAUTHORIZED", "unknown or disabled principal", nil)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, principal)
		ctx = context.WithValue(ctx, logger.ActorKey, principal.PrincipalID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFrom(r *http.Request) domain.Principal {
	p, _ := r.Context().Value(principalKey{}).(domain.Principal)
	return p
}

// rateLimit applies the admin fixed-window limit per principal. Unlimited
// when the configured rate is zero.
func (s *server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "admin:" + principalFrom(r).PrincipalID
		if !s.limiter.Allow(strings.TrimSpace(key), time.Now().UTC()) {
			httpx.WriteError(w, httpx.RequestID(r), http.StatusTooManyRequests,
				"RATE_LIMITED", "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type fixedWindowLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	byKey  map[string]windowState
}

type windowState struct {
	start time.Time
	count int
}

func newFixedWindowLimiter(limit int, window time.Duration) *fixedWindowLimiter {
	return &fixedWindowLimiter{
		limit:  limit,
		window: window,
		byKey:  map[string]windowState{},
	}
}

func (l *fixedWindowLimiter) Allow(key string, now time.Time) bool {
	if l == nil || l.limit <= 0 {
		return true
	}
	if key == "" {
		key = "anonymous"
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	cur := l.byKey[key]
	if cur.start.IsZero() || now.Sub(cur.start) >= l.window {
		l.byKey[key] = windowState{start: now, count: 1}
		return true
	}
	if cur.count >= l.limit {
		return false
	}
	cur.count++
	l.byKey[key] = cur
	return true
}
