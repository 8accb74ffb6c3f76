// Package middleware provides interceptors around inbound message handling:
// a handler takes a decoded message and produces the response message, and
// middleware wraps handlers with cross-cutting behavior (logging, rate
// limiting, timeouts).
//
// Retry is deliberately absent: a failed decode or dispatch is fatal for
// that one message, and retrying is the transport layer's policy, not this
// core's.
package middleware

import (
	"context"

	"tensor-rpc/message"
)

// HandlerFunc processes one inbound message and returns the response.
type HandlerFunc func(ctx context.Context, msg *message.Message) *message.Message

// Middleware wraps a handler with additional behavior.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares into one; the first middleware is outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// exception builds the error response for a rejected message.
func exception(errStr string) *message.Message {
	return message.New(message.Exception, []byte(errStr), nil)
}
