// Package wire implements the tensor-rpc wire codec: framing an RPC's opaque
// byte payload together with a list of tensors into a single self-describing
// buffer, and reconstructing both sides losslessly.
//
// Frame format (all integers big-endian):
//
//	0           8           16
//	┌───────────┬───────────┬─────────────┬──────────────┬──────────────────┐
//	│payloadLen │  metaLen  │   payload   │  CBOR meta   │ tensor storage   │
//	│  uint64   │  uint64   │   bytes     │    table     │ bytes, in order  │
//	└───────────┴───────────┴─────────────┴──────────────┴──────────────────┘
//
// The receiver reads the two fixed-width lengths first, then slices the three
// variable sections without guesswork. The metadata table is a CBOR array
// describing, per tensor, its shape, element type, device placement, and
// storage byte length — self-describing, so a decoder needs no out-of-band
// schema, and tolerant of unknown fields added by newer peers.
//
// Note: this format is intended for RPC between peers built from the same
// schema version, not for persisting tensors to disk.
package wire

import (
	"encoding/binary"

	"github.com/fxamacker/cbor/v2"

	"tensor-rpc/tensor"
)

// headerSize is the fixed-width prefix: payloadLen (8) + metaLen (8).
const headerSize = 16

// tensorMeta is one row of the metadata table. Integer keys keep the table
// compact; unknown keys from newer schema versions are ignored on decode.
type tensorMeta struct {
	Shape       []int64 `cbor:"1,keyasint"`
	DType       uint8   `cbor:"2,keyasint"`
	DeviceType  uint8   `cbor:"3,keyasint"`
	DeviceIndex int64   `cbor:"4,keyasint"`
	NBytes      uint64  `cbor:"5,keyasint"`
}

// Serialize frames an opaque byte payload and a tensor list into one buffer.
// The caller is expected to have run the tensor list through
// CloneSparseTensors first, so no tensor ships excess backing storage.
//
// Tensors are written back-to-back in input order — never reordered — and the
// output buffer is fully initialized. Both the payload and the tensor list may
// be empty.
func Serialize(payload []byte, tensors []*tensor.Tensor) ([]byte, error) {
	metas := make([]tensorMeta, 0, len(tensors))
	storageBytes := 0
	for _, t := range tensors {
		metas = append(metas, tensorMeta{
			Shape:       t.Shape(),
			DType:       uint8(t.DType()),
			DeviceType:  uint8(t.Device().Type),
			DeviceIndex: int64(t.Device().Index),
			NBytes:      uint64(t.ByteLen()),
		})
		storageBytes += t.ByteLen()
	}

	meta, err := cbor.Marshal(metas)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, headerSize+len(payload)+len(meta)+storageBytes)

	binary.BigEndian.PutUint64(buf[0:8], uint64(len(payload)))
	binary.BigEndian.PutUint64(buf[8:16], uint64(len(meta)))

	offset := headerSize
	offset += copy(buf[offset:], payload)
	offset += copy(buf[offset:], meta)
	for _, t := range tensors {
		offset += copy(buf[offset:], t.Bytes())
	}
	return buf, nil
}

// Deserialize reconstructs the byte payload and tensor list from a buffer
// produced by Serialize: same payload bytes, same tensor count, order, shapes,
// element types, and contents. Storage identity is not preserved — every
// decoded tensor owns fresh host storage.
//
// Returns a *FormatError if the header lengths are inconsistent with the
// buffer's actual size, the metadata table is undecodable, or the table
// references more storage bytes than remain. A buffer truncated at any offset
// fails cleanly; Deserialize never reads out of bounds.
func Deserialize(data []byte) ([]byte, []*tensor.Tensor, error) {
	if len(data) < headerSize {
		return nil, nil, formatErrorf("buffer too short for header: %d bytes", len(data))
	}
	payloadLen := binary.BigEndian.Uint64(data[0:8])
	metaLen := binary.BigEndian.Uint64(data[8:16])

	rest := uint64(len(data) - headerSize)
	if payloadLen > rest || metaLen > rest-payloadLen {
		return nil, nil, formatErrorf("header claims payload %d + metadata %d bytes, only %d remain",
			payloadLen, metaLen, rest)
	}

	offset := uint64(headerSize)
	payload := make([]byte, payloadLen)
	copy(payload, data[offset:offset+payloadLen])
	offset += payloadLen

	var metas []tensorMeta
	if err := cbor.Unmarshal(data[offset:offset+metaLen], &metas); err != nil {
		return nil, nil, formatErrorf("undecodable metadata table: %v", err)
	}
	offset += metaLen

	tensors := make([]*tensor.Tensor, 0, len(metas))
	for i, m := range metas {
		dt := tensor.DType(m.DType)
		if !dt.Valid() {
			return nil, nil, formatErrorf("tensor %d: unknown element type %d", i, m.DType)
		}
		if m.NBytes > uint64(len(data))-offset {
			return nil, nil, formatErrorf("tensor %d claims %d storage bytes, only %d remain",
				i, m.NBytes, uint64(len(data))-offset)
		}
		t, err := tensor.FromBytes(m.Shape, dt, data[offset:offset+m.NBytes])
		if err != nil {
			return nil, nil, formatErrorf("tensor %d: %v", i, err)
		}
		tensors = append(tensors, t)
		offset += m.NBytes
	}
	if offset != uint64(len(data)) {
		return nil, nil, formatErrorf("%d trailing bytes after last tensor", uint64(len(data))-offset)
	}
	return payload, tensors, nil
}
