// Package tensor provides the minimal tensor model the wire layer operates on:
// a shape + element type view over a raw byte Storage placed on some device.
//
// This is deliberately not a math library. The RPC core only needs to know how
// many bytes a tensor reaches into its backing storage, how to copy those bytes
// out, and where the storage lives (host vs. accelerator device index). Views
// created by Narrow share their parent's Storage, which is exactly the aliasing
// the framing optimizer inspects before transmission.
package tensor

import (
	"fmt"
)

// DType identifies the element type of a tensor.
type DType uint8

const (
	Uint8 DType = iota
	Int32
	Int64
	Float32
	Float64
)

// Size returns the element width in bytes.
func (d DType) Size() int {
	switch d {
	case Uint8:
		return 1
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	default:
		return 0
	}
}

func (d DType) String() string {
	switch d {
	case Uint8:
		return "uint8"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
}

// Valid reports whether d is a known element type. Decoders use this to
// reject metadata tables referencing types this build does not understand.
func (d DType) Valid() bool {
	return d.Size() != 0
}

// Tensor is a contiguous row-major view into a Storage, starting at a byte
// offset. Multiple tensors may view the same Storage.
type Tensor struct {
	shape   []int64
	dtype   DType
	storage *Storage
	offset  int // byte offset into storage
}

// New allocates a tensor with tightly-fitting fresh storage on the given device.
func New(shape []int64, dtype DType, device Device) *Tensor {
	t := &Tensor{shape: cloneShape(shape), dtype: dtype}
	t.storage = NewStorage(t.ByteLen(), device)
	return t
}

// FromBytes builds a tensor over a copy of the given data on the host.
// The data length must match the shape and dtype exactly.
func FromBytes(shape []int64, dtype DType, data []byte) (*Tensor, error) {
	t := &Tensor{shape: cloneShape(shape), dtype: dtype}
	if len(data) != t.ByteLen() {
		return nil, fmt.Errorf("tensor: data length %d does not match shape %v dtype %s (%d bytes)",
			len(data), shape, dtype, t.ByteLen())
	}
	t.storage = NewStorage(len(data), CPUDevice)
	copy(t.storage.data, data)
	return t, nil
}

// View builds a tensor over an existing storage at the given byte offset,
// without copying. The view must fit inside the storage.
func View(storage *Storage, shape []int64, dtype DType, offset int) (*Tensor, error) {
	t := &Tensor{shape: cloneShape(shape), dtype: dtype, storage: storage, offset: offset}
	if offset < 0 || offset+t.ByteLen() > storage.Len() {
		return nil, fmt.Errorf("tensor: view [%d, %d) out of range of storage with %d bytes",
			offset, offset+t.ByteLen(), storage.Len())
	}
	return t, nil
}

// Shape returns a copy of the dimension sizes.
func (t *Tensor) Shape() []int64 { return cloneShape(t.shape) }

// DType returns the element type.
func (t *Tensor) DType() DType { return t.dtype }

// Device returns the placement of the backing storage.
func (t *Tensor) Device() Device { return t.storage.device }

// Storage returns the backing buffer. Views share the same *Storage.
func (t *Tensor) Storage() *Storage { return t.storage }

// Offset returns the byte offset of this view inside its storage.
func (t *Tensor) Offset() int { return t.offset }

// Numel returns the total number of elements.
func (t *Tensor) Numel() int64 {
	n := int64(1)
	for _, d := range t.shape {
		n *= d
	}
	return n
}

// ByteLen returns the number of bytes this tensor actually reaches,
// which may be far smaller than the backing storage for views.
func (t *Tensor) ByteLen() int {
	return int(t.Numel()) * t.dtype.Size()
}

// Bytes returns the reachable byte slice. The slice aliases the storage;
// callers must not grow it.
func (t *Tensor) Bytes() []byte {
	return t.storage.data[t.offset : t.offset+t.ByteLen()]
}

// Narrow returns a view covering length rows of the outermost dimension
// starting at start. The view shares this tensor's storage.
func (t *Tensor) Narrow(start, length int64) (*Tensor, error) {
	if len(t.shape) == 0 {
		return nil, fmt.Errorf("tensor: cannot narrow a scalar")
	}
	if start < 0 || length < 0 || start+length > t.shape[0] {
		return nil, fmt.Errorf("tensor: narrow [%d, %d) out of range of dim 0 size %d",
			start, start+length, t.shape[0])
	}
	rowBytes := t.ByteLen()
	if t.shape[0] > 0 {
		rowBytes = t.ByteLen() / int(t.shape[0])
	}
	shape := cloneShape(t.shape)
	shape[0] = length
	return &Tensor{
		shape:   shape,
		dtype:   t.dtype,
		storage: t.storage,
		offset:  t.offset + int(start)*rowBytes,
	}, nil
}

// Clone copies the reachable data into fresh, tightly-packed storage on the
// same device. The result shares nothing with the receiver.
func (t *Tensor) Clone() *Tensor {
	out := &Tensor{shape: cloneShape(t.shape), dtype: t.dtype}
	out.storage = NewStorage(t.ByteLen(), t.storage.device)
	copy(out.storage.data, t.Bytes())
	return out
}

// EqualValues reports whether two tensors agree on shape, element type, and
// byte content. Storage identity and device placement are ignored — this is
// the "value" equality the wire round-trip guarantees.
func (t *Tensor) EqualValues(o *Tensor) bool {
	if t.dtype != o.dtype || len(t.shape) != len(o.shape) {
		return false
	}
	for i := range t.shape {
		if t.shape[i] != o.shape[i] {
			return false
		}
	}
	a, b := t.Bytes(), o.Bytes()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, dtype=%s, device=%s)", t.shape, t.dtype, t.Device())
}

func cloneShape(shape []int64) []int64 {
	out := make([]int64, len(shape))
	copy(out, shape)
	return out
}
