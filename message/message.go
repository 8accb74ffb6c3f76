// Package message defines the RPC message structure exchanged between compute
// nodes.
//
// Message is the "envelope" for every call: a type tag that drives dispatch,
// an opaque byte payload produced by a command object's serialize step, and
// the list of tensors riding alongside the payload. The wire package frames
// payload and tensors into one buffer for transmission.
package message

import (
	"fmt"

	"github.com/lithammer/shortuuid/v4"

	"tensor-rpc/tensor"
)

// Type tags every message with the kind of command it carries. The set is
// closed: dispatch is a lookup over these values, and an unknown tag is a
// hard dispatch failure, never a silent default.
type Type uint16

const (
	// ScriptCall is a request to run a named script operation.
	ScriptCall Type = iota
	// ScriptResp carries a script call's single logical result.
	ScriptResp
	// RemoteRefOp is a request operating on a remote reference (fetch, delete).
	RemoteRefOp
	// RRefFetchResp carries the value behind a fetched remote reference.
	RRefFetchResp
	// ForwardAutogradReq wraps another complete request with gradient
	// bookkeeping appended via the nested-payload scheme.
	ForwardAutogradReq
	// ForwardAutogradResp wraps another complete response the same way.
	ForwardAutogradResp
	// Exception is a response carrying a remote error string as its payload.
	Exception
)

func (t Type) String() string {
	switch t {
	case ScriptCall:
		return "SCRIPT_CALL"
	case ScriptResp:
		return "SCRIPT_RESP"
	case RemoteRefOp:
		return "REMOTE_REF_OP"
	case RRefFetchResp:
		return "RREF_FETCH_RESP"
	case ForwardAutogradReq:
		return "FORWARD_AUTOGRAD_REQ"
	case ForwardAutogradResp:
		return "FORWARD_AUTOGRAD_RESP"
	case Exception:
		return "EXCEPTION"
	default:
		return fmt.Sprintf("MESSAGE_TYPE(%d)", uint16(t))
	}
}

// IsRequest reports whether the tag is a request kind.
func (t Type) IsRequest() bool {
	return t == ScriptCall || t == RemoteRefOp || t == ForwardAutogradReq
}

// IsResponse reports whether the tag is a response kind.
func (t Type) IsResponse() bool {
	return t == ScriptResp || t == RRefFetchResp || t == ForwardAutogradResp || t == Exception
}

// IsError reports whether the message carries a remote error.
func (t Type) IsError() bool { return t == Exception }

// Message carries the data for a single RPC request or response.
//
// A Message is immutable once framed and owned exclusively by whichever layer
// currently holds it: the sender until it hands the frame to the transport,
// the receiver until the message is fully decoded.
type Message struct {
	Type    Type             // Drives dispatch on the receiving side
	Payload []byte           // Opaque command bytes; the codec never interprets them
	Tensors []*tensor.Tensor // Tensors riding with the payload, order-significant
	Seq     uint64           // Transport correlation (request ↔ response matching)
	ID      string           // Short unique id for log correlation across nodes
}

// New builds a message with a fresh correlation ID.
func New(t Type, payload []byte, tensors []*tensor.Tensor) *Message {
	return &Message{
		Type:    t,
		Payload: payload,
		Tensors: tensors,
		ID:      shortuuid.New(),
	}
}

func (m *Message) String() string {
	return fmt.Sprintf("message %s (id=%s, seq=%d, %d payload bytes, %d tensors)",
		m.Type, m.ID, m.Seq, len(m.Payload), len(m.Tensors))
}
