package wire

import (
	"encoding/binary"

	"github.com/fxamacker/cbor/v2"

	"tensor-rpc/message"
)

// Nested-payload framing: an outer RPC that must carry bookkeeping around an
// inner, complete RPC appends its own segment to the inner payload, followed
// by a fixed-width trailing length so the receiver can peel it back off:
//
//	[original payload][wrapped payload][uint64 BE length of wrapped payload]
//
// The trailing position (rather than a leading prefix) lets the writer append
// to an already-built payload without shifting it.

// wrappedLenSize is the width of the trailing length field.
const wrappedLenSize = 8

// WriteWrappedPayload appends the wrapped payload to the original payload and
// then the trailing length field, returning the combined buffer. The returned
// slice may share the original payload's backing array.
func WriteWrappedPayload(original, wrapped []byte) []byte {
	combined := append(original, wrapped...)
	var suffix [wrappedLenSize]byte
	binary.BigEndian.PutUint64(suffix[:], uint64(len(wrapped)))
	return append(combined, suffix[:]...)
}

// ReadWrappedPayload splits a combined buffer back into the original payload
// and the wrapped segment. The owning message is named in the error when the
// trailing length overruns the buffer; msg may be nil when there is no
// message context.
//
// Round-trip: ReadWrappedPayload(WriteWrappedPayload(a, b)) yields segments
// byte-identical to a and b.
func ReadWrappedPayload(payload []byte, msg *message.Message) (original, wrapped []byte, err error) {
	owner := "unknown message"
	if msg != nil {
		owner = msg.String()
	}
	if len(payload) < wrappedLenSize {
		return nil, nil, formatErrorf("%s: payload of %d bytes too short for wrapped-length suffix",
			owner, len(payload))
	}
	wrappedLen := binary.BigEndian.Uint64(payload[len(payload)-wrappedLenSize:])
	if wrappedLen > uint64(len(payload)-wrappedLenSize) {
		return nil, nil, formatErrorf("%s: wrapped segment of %d bytes overruns remaining %d bytes",
			owner, wrappedLen, len(payload)-wrappedLenSize)
	}
	split := uint64(len(payload)-wrappedLenSize) - wrappedLen
	return payload[:split], payload[split : uint64(len(payload))-wrappedLenSize], nil
}

// EncodeWrappedValues serializes the wrapped RPC's bookkeeping values as a
// CBOR array, the segment format both ends of the nesting scheme agree on.
func EncodeWrappedValues(values []any) ([]byte, error) {
	return cbor.Marshal(values)
}

// DecodeWrappedValues decodes a wrapped segment produced by
// EncodeWrappedValues back into its value sequence.
func DecodeWrappedValues(wrapped []byte) ([]any, error) {
	var values []any
	if err := cbor.Unmarshal(wrapped, &values); err != nil {
		return nil, formatErrorf("undecodable wrapped value sequence: %v", err)
	}
	return values, nil
}
