// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package web

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// throttleIdleTTL is how long an idle client's bucket is kept.
const throttleIdleTTL = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// throttle is a per-client token bucket.
type throttle struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

func newThrottle(perMinute float64, burst int) *throttle {
	return &throttle{
		limit:   rate.Limit(perMinute / 60),
		burst:   burst,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// allow reports whether key may make another request now.
func (t *throttle) allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if now.Sub(t.lastSweep) > throttleIdleTTL {
		for k, b := range t.buckets {
			if now.Sub(b.lastSeen) > throttleIdleTTL {
				delete(t.buckets, k)
			}
		}
		t.lastSweep = now
	}

	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (t *throttle) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buckets)
}

// clientIP returns the peer address. X-Forwarded-For is not trusted, so a
// client cannot pick its own bucket.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// throttled rejects requests beyond the client's budget with 429.
func (s *Server) throttled(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.throttle.allow(clientIP(r)) {
			s.metrics.RecordThrottled(route)
			s.logger.WarnContext(r.Context(), "request throttled", "route", route, "client_ip", clientIP(r))
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Too many requests. Try again later.", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
