package middleware

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"tensor-rpc/message"
)

// LoggingMiddleware logs every handled message with its type tag, correlation
// id, tensor count, and handling duration.
func LoggingMiddleware(log *logrus.Logger) Middleware {
	if log == nil {
		log = logrus.StandardLogger()
	}
	entry := log.WithField("component", "middleware")
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, msg *message.Message) *message.Message {
			start := time.Now()
			resp := next(ctx, msg)
			fields := logrus.Fields{
				"type":     msg.Type.String(),
				"id":       msg.ID,
				"tensors":  len(msg.Tensors),
				"duration": time.Since(start),
			}
			if resp != nil && resp.Type.IsError() {
				entry.WithFields(fields).WithField("error", string(resp.Payload)).Warn("handled message with error")
			} else {
				entry.WithFields(fields).Info("handled message")
			}
			return resp
		}
	}
}
