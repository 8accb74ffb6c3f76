package middleware

import (
	"context"
	"time"

	"tensor-rpc/message"
)

// timeoutErrStr carries the marker string the remote-error classifier
// recognizes as a timeout.
const timeoutErrStr = "request timed out"

// TimeoutMiddleware bounds how long a handler may run on one message. On
// expiry the caller gets an Exception response; the handler goroutine is
// left to finish and its result is dropped.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, msg *message.Message) *message.Message {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *message.Message, 1)
			go func() {
				done <- next(ctx, msg)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				return exception(timeoutErrStr)
			}
		}
	}
}
