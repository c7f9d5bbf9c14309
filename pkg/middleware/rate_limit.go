package middleware

import (
	"net/http"
	"sync"
	"time"

	"courtside/pkg/logger"
)

// PrincipalExtractor pulls the acting principal id out of a request.
type PrincipalExtractor func(r *http.Request) string

// PrincipalRateLimiter applies a sliding-window request limit per acting
// principal. Requests with no principal header pass through; they are
// rejected later by the handler's authorization path.
type PrincipalRateLimiter struct {
	mu        sync.RWMutex
	requests  map[string][]time.Time
	limit     int
	window    time.Duration
	extractor PrincipalExtractor
	log       *logger.Logger
	stopCh    chan struct{}
}

func NewPrincipalRateLimiter(limit int, window time.Duration, extractor PrincipalExtractor, log *logger.Logger) *PrincipalRateLimiter {
	limiter := &PrincipalRateLimiter{
		requests:  make(map[string][]time.Time),
		limit:     limit,
		window:    window,
		extractor: extractor,
		log:       log,
		stopCh:    make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *PrincipalRateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for principal, timestamps := range rl.requests {
				if len(timestamps) == 0 || time.Since(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, principal)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *PrincipalRateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *PrincipalRateLimiter) Allow(principal string) bool {
	if principal == "" {
		return true
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	validTimestamps := make([]time.Time, 0)
	for _, ts := range rl.requests[principal] {
		if now.Sub(ts) < rl.window {
			validTimestamps = append(validTimestamps, ts)
		}
	}

	if len(validTimestamps) >= rl.limit {
		rl.requests[principal] = validTimestamps
		return false
	}

	rl.requests[principal] = append(validTimestamps, now)
	return true
}

func PrincipalRateLimit(limiter *PrincipalRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := extractPrincipal(r, limiter.extractor)

			if principal == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(principal) {
				rejectRateLimited(w, limiter.log, r, principal)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractPrincipal(r *http.Request, extractor PrincipalExtractor) string {
	if extractor == nil {
		return r.Header.Get("X-Principal-ID")
	}
	return extractor(r)
}

func rejectRateLimited(w http.ResponseWriter, log *logger.Logger, r *http.Request, principal string) {
	log.Warn("Rate limit exceeded",
		"request_id", requestIDFromContext(r.Context()),
		"principal", principal,
		"path", r.URL.Path,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"Rate limit exceeded"}`))
}

func DefaultPrincipalExtractor(r *http.Request) string {
	return r.Header.Get("X-Principal-ID")
}
