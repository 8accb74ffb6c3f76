package dispatch

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"tensor-rpc/message"
	"tensor-rpc/tensor"
	"tensor-rpc/wire"
)

// DefaultMaxNestingDepth bounds forward-autograd unwrapping. Wrapping is
// single-level today; the bound guards the decode path against malformed or
// malicious multi-level nesting.
const DefaultMaxNestingDepth = 4

// DecoderFunc rebuilds one command kind from its message.
type DecoderFunc func(*message.Message) (Command, error)

// RecvHook is the extension point run over every tensor in an unwrapped
// autograd response, so the caller can tie later gradient computation back to
// the originating remote call. The gradient machinery itself is external.
type RecvHook func(*tensor.Tensor)

// Router reconstructs command objects from decoded messages. One Router can
// serve many messages; it holds no per-message state, so a failed decode
// never disturbs other in-flight calls.
type Router struct {
	decoders   map[message.Type]DecoderFunc
	classifier Classifier
	recvHook   RecvHook
	maxDepth   int
	log        *logrus.Entry
}

// Option configures a Router.
type Option func(*Router)

// WithMaxNestingDepth overrides the autograd unwrap depth bound.
func WithMaxNestingDepth(n int) Option {
	return func(r *Router) { r.maxDepth = n }
}

// WithClassifier replaces the legacy marker-matching error classifier.
func WithClassifier(c Classifier) Option {
	return func(r *Router) { r.classifier = c }
}

// WithRecvHook registers the post-receipt tensor hook.
func WithRecvHook(h RecvHook) Option {
	return func(r *Router) { r.recvHook = h }
}

// WithLogger replaces the logrus logger used for dispatch logging.
func WithLogger(l *logrus.Logger) Option {
	return func(r *Router) { r.log = l.WithField("component", "dispatch") }
}

// NewRouter builds a router with every known message type registered.
func NewRouter(opts ...Option) *Router {
	r := &Router{
		decoders: map[message.Type]DecoderFunc{
			message.ScriptCall:    decodeScriptCall,
			message.ScriptResp:    decodeScriptResp,
			message.RemoteRefOp:   decodeRemoteRefOp,
			message.RRefFetchResp: decodeRRefFetchResp,
			message.Exception:     decodeException,
		},
		classifier: MarkerClassifier{},
		maxDepth:   DefaultMaxNestingDepth,
		log:        logrus.StandardLogger().WithField("component", "dispatch"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DeserializeRequest reconstructs the command object for a request message.
// Forward-autograd requests are unwrapped into an AutogradWrapped carrying
// the inner command. Unknown or non-request tags fail with
// *UnsupportedMessageTypeError.
func (r *Router) DeserializeRequest(msg *message.Message) (Command, error) {
	if msg.Type == message.ForwardAutogradReq {
		cmd, _, err := r.unwrap(msg, false)
		return cmd, err
	}
	if !msg.Type.IsRequest() {
		return nil, &UnsupportedMessageTypeError{Type: msg.Type}
	}
	return r.decode(msg)
}

// DeserializeResponse reconstructs the command object for a response message.
// For a forward-autograd-wrapped response it unwraps via the nested-payload
// scheme, interprets the leading segment as the wrapped message's own
// response, runs the receive hook over the result's tensors, and writes the
// unwrapped type into wrappedType. For every other tag wrappedType is left at
// the message's own type.
func (r *Router) DeserializeResponse(msg *message.Message, wrappedType *message.Type) (Command, error) {
	if wrappedType != nil {
		*wrappedType = msg.Type
	}
	if msg.Type == message.ForwardAutogradResp {
		cmd, inner, err := r.unwrap(msg, true)
		if err != nil {
			return nil, err
		}
		if wrappedType != nil {
			*wrappedType = inner
		}
		return cmd, nil
	}
	if !msg.Type.IsResponse() {
		return nil, &UnsupportedMessageTypeError{Type: msg.Type}
	}
	return r.decode(msg)
}

// DeserializeRespToIValue decodes a response and extracts the single logical
// value of a script-style result. Non-script response kinds yield None() — a
// sentinel the caller must not dereference.
func (r *Router) DeserializeRespToIValue(msg *message.Message) (Value, error) {
	cmd, err := r.DeserializeResponse(msg, nil)
	if err != nil {
		return None(), err
	}
	switch c := cmd.(type) {
	case *ScriptResp:
		return Some(c.Value), nil
	case *AutogradWrapped:
		if inner, ok := c.Wrapped.(*ScriptResp); ok {
			return Some(inner.Value), nil
		}
		return None(), nil
	default:
		return None(), nil
	}
}

// ClassifyError classifies a failed call's textual error via the configured
// classifier. Never fails; unrecognized text maps to ErrorUnknown.
func (r *Router) ClassifyError(errStr string) ErrorKind {
	return r.classifier.Classify(errStr)
}

// decode runs the table lookup for a non-wrapped tag.
func (r *Router) decode(msg *message.Message) (Command, error) {
	dec, ok := r.decoders[msg.Type]
	if !ok {
		return nil, &UnsupportedMessageTypeError{Type: msg.Type}
	}
	cmd, err := dec(msg)
	if err != nil {
		r.log.WithFields(logrus.Fields{"type": msg.Type.String(), "id": msg.ID}).
			WithError(err).Warn("decode failed")
		return nil, err
	}
	return cmd, nil
}

// unwrap peels forward-autograd layers off a message, bounded by maxDepth.
// Returns the inner command (wrapped in AutogradWrapped for the outermost
// layer) and the innermost message type. When attachHooks is set, the receive
// hook runs over the unwrapped result's tensors.
func (r *Router) unwrap(msg *message.Message, attachHooks bool) (Command, message.Type, error) {
	cur := msg
	var meta AutogradMetadata
	depth := 0
	for cur.Type == message.ForwardAutogradReq || cur.Type == message.ForwardAutogradResp {
		if depth >= r.maxDepth {
			return nil, 0, &wire.FormatError{
				Msg: fmt.Sprintf("%s: nesting depth exceeds limit %d", msg.String(), r.maxDepth),
			}
		}
		innerPayload, seg, err := wire.ReadWrappedPayload(cur.Payload, cur)
		if err != nil {
			return nil, 0, err
		}
		values, err := wire.DecodeWrappedValues(seg)
		if err != nil {
			return nil, 0, err
		}
		if len(values) < 3 {
			return nil, 0, &wire.FormatError{
				Msg: fmt.Sprintf("%s: wrapped value sequence has %d values, want 3", cur.String(), len(values)),
			}
		}
		innerType, ok := asInt64(values[0])
		if !ok {
			return nil, 0, &wire.FormatError{
				Msg: fmt.Sprintf("%s: wrapped message type is not an integer", cur.String()),
			}
		}
		if depth == 0 {
			// Only the outermost layer's bookkeeping is surfaced to the caller.
			ctxID, _ := asInt64(values[1])
			msgID, _ := asInt64(values[2])
			meta = AutogradMetadata{ContextID: ctxID, MessageID: msgID}
		}
		cur = &message.Message{
			Type:    message.Type(innerType),
			Payload: innerPayload,
			Tensors: cur.Tensors,
			Seq:     cur.Seq,
			ID:      cur.ID,
		}
		depth++
	}

	inner, err := r.decode(cur)
	if err != nil {
		return nil, 0, err
	}
	if attachHooks && r.recvHook != nil {
		for _, t := range cur.Tensors {
			r.recvHook(t)
		}
	}
	r.log.WithFields(logrus.Fields{
		"outer": msg.Type.String(),
		"inner": cur.Type.String(),
		"id":    msg.ID,
	}).Debug("unwrapped nested message")
	return &AutogradWrapped{Wrapped: inner, Meta: meta}, cur.Type, nil
}

// asInt64 normalizes the integer representations the CBOR decoder may
// produce for a wrapped value.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
