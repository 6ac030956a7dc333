package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ulule/limiter/v3"
	mhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimit limits each client IP to perMinute requests per minute, keyed by
// the address TrustedRealIP resolved. A non-positive limit disables it.
func RateLimit(name string, perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	instance := limiter.New(memory.NewStore(), limiter.Rate{
		Period: time.Minute,
		Limit:  int64(perMinute),
	})

	mw := mhttp.NewMiddleware(instance,
		mhttp.WithKeyGetter(func(r *http.Request) string {
			return name + ":" + ClientIP(r)
		}),
		mhttp.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			slog.Warn("rate limit exceeded", "limiter", name, "ip", ClientIP(r), "path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded", "RATE001")
		}),
		mhttp.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			slog.Error("rate limiter failed", "limiter", name, "error", err)
			writeJSONError(w, http.StatusInternalServerError, "internal error", "ERR000")
		}),
	)
	return mw.Handler
}
