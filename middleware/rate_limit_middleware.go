package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"tensor-rpc/message"
)

// RateLimitMiddleware rejects messages beyond a token-bucket limit with an
// Exception response instead of queueing them.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, msg *message.Message) *message.Message {
			if !limiter.Allow() {
				return exception("rate limit exceeded")
			}
			return next(ctx, msg)
		}
	}
}
