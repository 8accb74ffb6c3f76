package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tensor-rpc/message"
	"tensor-rpc/tensor"
	"tensor-rpc/wire"
)

func TestDeserializeRequestScriptCall(t *testing.T) {
	tt, err := tensor.FromBytes([]int64{2}, tensor.Uint8, []byte{1, 2})
	require.NoError(t, err)

	call := &ScriptCall{Op: "aten::add", Args: []any{"x", int64(3)}, Tensors: []*tensor.Tensor{tt}}
	msg, err := call.ToMessage()
	require.NoError(t, err)
	require.Equal(t, message.ScriptCall, msg.Type)

	cmd, err := NewRouter().DeserializeRequest(msg)
	require.NoError(t, err)

	got, ok := cmd.(*ScriptCall)
	require.True(t, ok, "expect *ScriptCall, got %T", cmd)
	assert.Equal(t, "aten::add", got.Op)
	require.Len(t, got.Args, 2)
	assert.Equal(t, "x", got.Args[0])
	assert.EqualValues(t, 3, got.Args[1])
	require.Len(t, got.Tensors, 1)
	assert.True(t, got.Tensors[0].EqualValues(tt))
}

func TestDeserializeRequestRemoteRefOp(t *testing.T) {
	op := &RemoteRefOp{RefID: "rref-17", Op: "fetch"}
	msg, err := op.ToMessage()
	require.NoError(t, err)

	cmd, err := NewRouter().DeserializeRequest(msg)
	require.NoError(t, err)

	got, ok := cmd.(*RemoteRefOp)
	require.True(t, ok)
	assert.Equal(t, "rref-17", got.RefID)
	assert.Equal(t, "fetch", got.Op)
}

func TestDeserializeRequestUnknownTag(t *testing.T) {
	msg := message.New(message.Type(999), []byte{0x00}, nil)

	_, err := NewRouter().DeserializeRequest(msg)
	var ume *UnsupportedMessageTypeError
	require.ErrorAs(t, err, &ume)
	assert.Equal(t, message.Type(999), ume.Type)
}

func TestDeserializeRequestRejectsResponseTag(t *testing.T) {
	msg, err := (&ScriptResp{Value: int64(1)}).ToMessage()
	require.NoError(t, err)

	_, err = NewRouter().DeserializeRequest(msg)
	var ume *UnsupportedMessageTypeError
	require.ErrorAs(t, err, &ume)
}

func TestDeserializeResponsePlain(t *testing.T) {
	msg, err := (&ScriptResp{Value: "done"}).ToMessage()
	require.NoError(t, err)

	var wrappedType message.Type
	cmd, err := NewRouter().DeserializeResponse(msg, &wrappedType)
	require.NoError(t, err)
	assert.Equal(t, message.ScriptResp, wrappedType, "non-wrapped tag leaves the slot at the original type")

	got, ok := cmd.(*ScriptResp)
	require.True(t, ok)
	assert.Equal(t, "done", got.Value)
}

func TestDeserializeResponseAutogradWrapped(t *testing.T) {
	// A response tagged FORWARD_AUTOGRAD_RESP wrapping a script response
	// with value 42 must decode to the unwrapped script response and set
	// the wrapped-type slot to SCRIPT_RESP.
	tt, err := tensor.FromBytes([]int64{1}, tensor.Uint8, []byte{9})
	require.NoError(t, err)

	wrapped := &AutogradWrapped{
		Wrapped: &ScriptResp{Value: int64(42), Tensors: []*tensor.Tensor{tt}},
		Meta:    AutogradMetadata{ContextID: 11, MessageID: 7},
	}
	msg, err := wrapped.ToMessage()
	require.NoError(t, err)
	require.Equal(t, message.ForwardAutogradResp, msg.Type)

	var hooked []*tensor.Tensor
	router := NewRouter(WithRecvHook(func(t *tensor.Tensor) { hooked = append(hooked, t) }))

	var wrappedType message.Type
	cmd, err := router.DeserializeResponse(msg, &wrappedType)
	require.NoError(t, err)
	assert.Equal(t, message.ScriptResp, wrappedType)

	got, ok := cmd.(*AutogradWrapped)
	require.True(t, ok)
	assert.Equal(t, int64(11), got.Meta.ContextID)
	assert.Equal(t, int64(7), got.Meta.MessageID)

	inner, ok := got.Wrapped.(*ScriptResp)
	require.True(t, ok)
	assert.EqualValues(t, 42, inner.Value)

	// The receive hook must have run over the unwrapped result's tensors
	require.Len(t, hooked, 1)
	assert.True(t, hooked[0].EqualValues(tt))
}

func TestDeserializeResponseNestingDepthBound(t *testing.T) {
	double := &AutogradWrapped{
		Wrapped: &AutogradWrapped{Wrapped: &ScriptResp{Value: int64(1)}},
	}
	msg, err := double.ToMessage()
	require.NoError(t, err)

	router := NewRouter(WithMaxNestingDepth(1))
	var wrappedType message.Type
	_, err = router.DeserializeResponse(msg, &wrappedType)
	var fe *wire.FormatError
	require.ErrorAs(t, err, &fe)
}

func TestDeserializeResponseTruncatedWrapper(t *testing.T) {
	msg := message.New(message.ForwardAutogradResp, []byte{1, 2, 3}, nil)

	var wrappedType message.Type
	_, err := NewRouter().DeserializeResponse(msg, &wrappedType)
	var fe *wire.FormatError
	require.ErrorAs(t, err, &fe)
}

func TestDeserializeRespToIValue(t *testing.T) {
	msg, err := (&ScriptResp{Value: int64(42)}).ToMessage()
	require.NoError(t, err)

	val, err := NewRouter().DeserializeRespToIValue(msg)
	require.NoError(t, err)
	require.True(t, val.Defined())
	assert.EqualValues(t, 42, val.Interface())
}

func TestDeserializeRespToIValueWrapped(t *testing.T) {
	wrapped := &AutogradWrapped{Wrapped: &ScriptResp{Value: int64(42)}}
	msg, err := wrapped.ToMessage()
	require.NoError(t, err)

	val, err := NewRouter().DeserializeRespToIValue(msg)
	require.NoError(t, err)
	require.True(t, val.Defined())
	assert.EqualValues(t, 42, val.Interface())
}

func TestDeserializeRespToIValueNonScript(t *testing.T) {
	msg, err := (&RRefFetchResp{Value: "whatever"}).ToMessage()
	require.NoError(t, err)

	val, err := NewRouter().DeserializeRespToIValue(msg)
	require.NoError(t, err)
	assert.False(t, val.Defined())
	assert.Panics(t, func() { val.Interface() }, "dereferencing the None sentinel must panic")
}

func TestExceptionRoundTrip(t *testing.T) {
	msg, err := (&ExceptionResp{ErrStr: "boom"}).ToMessage()
	require.NoError(t, err)

	var wrappedType message.Type
	cmd, err := NewRouter().DeserializeResponse(msg, &wrappedType)
	require.NoError(t, err)

	got, ok := cmd.(*ExceptionResp)
	require.True(t, ok)
	assert.Equal(t, "boom", got.ErrStr)
	assert.Equal(t, message.Exception, wrappedType)
}
