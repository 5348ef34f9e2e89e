package api

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	apperr "github.com/listenupapp/articlevault/internal/errors"
	"github.com/listenupapp/articlevault/internal/ratelimit"
)

// RateLimiter is the keyed limiter guarding expensive endpoints.
type RateLimiter = ratelimit.KeyedRateLimiter

// NewRateLimiter creates a limiter allowing ratePerInterval requests per
// interval for each client, with the given burst. A non-positive rate
// returns nil, which disables limiting.
func NewRateLimiter(ratePerInterval int, interval time.Duration, burst int) *RateLimiter {
	if ratePerInterval <= 0 {
		return nil
	}
	return ratelimit.New(ratelimit.PerInterval(ratePerInterval, interval), burst)
}

// scrapeRateLimit is a huma operation middleware that rate limits scrape
// requests by client IP.
func (s *Server) scrapeRateLimit(ctx huma.Context, next func(huma.Context)) {
	if s.scrapeLimiter == nil {
		next(ctx)
		return
	}

	key := clientIP(ctx.Header, ctx.RemoteAddr())
	if !s.scrapeLimiter.Allow(key) {
		s.logger.Warn("Rate limit exceeded",
			"ip", key,
			"path", ctx.URL().Path,
		)
		_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests, "too many scrape requests",
			apperr.RateLimited("Too many scrape requests. Please try again later."))
		return
	}

	next(ctx)
}

// clientIP extracts the client IP. X-Forwarded-For and X-Real-IP are checked
// before falling back to the remote address.
func clientIP(header func(string) string, remoteAddr string) string {
	// First IP in the chain is the client.
	if xff := header("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := header("X-Real-IP"); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
