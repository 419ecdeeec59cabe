package middleware

import (
	"net"
	"net/http"
	"strconv"

	pkgerrors "blueprint-editor/pkg/errors"
	"blueprint-editor/pkg/ratelimit"

	"go.uber.org/zap"
)

// RateLimit rejects clients over their budget with 429. A nil limiter
// disables the check.
func RateLimit(limiter ratelimit.Limiter, errs *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("Rate limiter error", zap.String("client", key), zap.Error(err))
			}
			if !allowed {
				window := limiter.Window()
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				errs.Handle(w, r, pkgerrors.NewRateLimitError(window))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey is the remote IP; chi's RealIP has already applied any
// forwarding headers
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
