// Package dispatch reconstructs command objects from decoded messages.
//
// Every message type has one decode function registered in a lookup table —
// dispatch is a table walk over a closed tag set, never runtime type
// inspection. The package also owns the nested-payload unwrapping for
// forward-autograd messages and the best-effort classification of remote
// error strings.
package dispatch

import (
	"github.com/fxamacker/cbor/v2"

	"tensor-rpc/message"
	"tensor-rpc/tensor"
	"tensor-rpc/wire"
)

// Command is a decoded RPC command object: anything that can be rebuilt from
// a message and serialized back into one. Execution semantics live with the
// caller, not here.
type Command interface {
	MessageType() message.Type
	ToMessage() (*message.Message, error)
}

// ScriptCall requests execution of a named script operation with positional
// arguments; tensor arguments ride in the message tensor list.
type ScriptCall struct {
	Op      string
	Args    []any
	Tensors []*tensor.Tensor
}

type scriptCallBody struct {
	Op   string `cbor:"1,keyasint"`
	Args []any  `cbor:"2,keyasint"`
}

func (c *ScriptCall) MessageType() message.Type { return message.ScriptCall }

func (c *ScriptCall) ToMessage() (*message.Message, error) {
	body, err := cbor.Marshal(scriptCallBody{Op: c.Op, Args: c.Args})
	if err != nil {
		return nil, err
	}
	return message.New(message.ScriptCall, body, c.Tensors), nil
}

func decodeScriptCall(msg *message.Message) (Command, error) {
	var body scriptCallBody
	if err := cbor.Unmarshal(msg.Payload, &body); err != nil {
		return nil, &wire.FormatError{Msg: msg.String() + ": bad script call body: " + err.Error()}
	}
	return &ScriptCall{Op: body.Op, Args: body.Args, Tensors: msg.Tensors}, nil
}

// ScriptResp carries a script call's single logical result.
type ScriptResp struct {
	Value   any
	Tensors []*tensor.Tensor
}

type scriptRespBody struct {
	Value any `cbor:"1,keyasint"`
}

func (c *ScriptResp) MessageType() message.Type { return message.ScriptResp }

func (c *ScriptResp) ToMessage() (*message.Message, error) {
	body, err := cbor.Marshal(scriptRespBody{Value: c.Value})
	if err != nil {
		return nil, err
	}
	return message.New(message.ScriptResp, body, c.Tensors), nil
}

func decodeScriptResp(msg *message.Message) (Command, error) {
	var body scriptRespBody
	if err := cbor.Unmarshal(msg.Payload, &body); err != nil {
		return nil, &wire.FormatError{Msg: msg.String() + ": bad script response body: " + err.Error()}
	}
	return &ScriptResp{Value: body.Value, Tensors: msg.Tensors}, nil
}

// RemoteRefOp operates on a remote reference by id: "fetch" asks for the
// value behind it, "delete" releases it on the owner.
type RemoteRefOp struct {
	RefID   string
	Op      string
	Tensors []*tensor.Tensor
}

type remoteRefOpBody struct {
	RefID string `cbor:"1,keyasint"`
	Op    string `cbor:"2,keyasint"`
}

func (c *RemoteRefOp) MessageType() message.Type { return message.RemoteRefOp }

func (c *RemoteRefOp) ToMessage() (*message.Message, error) {
	body, err := cbor.Marshal(remoteRefOpBody{RefID: c.RefID, Op: c.Op})
	if err != nil {
		return nil, err
	}
	return message.New(message.RemoteRefOp, body, c.Tensors), nil
}

func decodeRemoteRefOp(msg *message.Message) (Command, error) {
	var body remoteRefOpBody
	if err := cbor.Unmarshal(msg.Payload, &body); err != nil {
		return nil, &wire.FormatError{Msg: msg.String() + ": bad remote ref op body: " + err.Error()}
	}
	return &RemoteRefOp{RefID: body.RefID, Op: body.Op, Tensors: msg.Tensors}, nil
}

// RRefFetchResp carries the value behind a fetched remote reference.
type RRefFetchResp struct {
	Value   any
	Tensors []*tensor.Tensor
}

func (c *RRefFetchResp) MessageType() message.Type { return message.RRefFetchResp }

func (c *RRefFetchResp) ToMessage() (*message.Message, error) {
	body, err := cbor.Marshal(scriptRespBody{Value: c.Value})
	if err != nil {
		return nil, err
	}
	return message.New(message.RRefFetchResp, body, c.Tensors), nil
}

func decodeRRefFetchResp(msg *message.Message) (Command, error) {
	var body scriptRespBody
	if err := cbor.Unmarshal(msg.Payload, &body); err != nil {
		return nil, &wire.FormatError{Msg: msg.String() + ": bad rref fetch response body: " + err.Error()}
	}
	return &RRefFetchResp{Value: body.Value, Tensors: msg.Tensors}, nil
}

// ExceptionResp is a remote failure. Its payload is the raw error string —
// the textual surface GetRPCErrorType classifies on the caller side.
type ExceptionResp struct {
	ErrStr string
}

func (c *ExceptionResp) MessageType() message.Type { return message.Exception }

func (c *ExceptionResp) ToMessage() (*message.Message, error) {
	return message.New(message.Exception, []byte(c.ErrStr), nil), nil
}

func decodeException(msg *message.Message) (Command, error) {
	return &ExceptionResp{ErrStr: string(msg.Payload)}, nil
}

// AutogradMetadata is the bookkeeping an autograd wrapper carries around the
// inner call, tying received tensors back to the originating context.
type AutogradMetadata struct {
	ContextID int64
	MessageID int64
}

// AutogradWrapped wraps a complete inner command with autograd bookkeeping.
// On the wire it reuses the inner message's payload with the bookkeeping
// values appended through the nested-payload scheme, so the inner message
// survives byte-identical.
type AutogradWrapped struct {
	Wrapped Command
	Meta    AutogradMetadata
}

func (c *AutogradWrapped) MessageType() message.Type {
	if c.Wrapped.MessageType().IsRequest() {
		return message.ForwardAutogradReq
	}
	return message.ForwardAutogradResp
}

func (c *AutogradWrapped) ToMessage() (*message.Message, error) {
	inner, err := c.Wrapped.ToMessage()
	if err != nil {
		return nil, err
	}
	seg, err := wire.EncodeWrappedValues([]any{
		uint64(inner.Type), c.Meta.ContextID, c.Meta.MessageID,
	})
	if err != nil {
		return nil, err
	}
	combined := wire.WriteWrappedPayload(inner.Payload, seg)
	return message.New(c.MessageType(), combined, inner.Tensors), nil
}
