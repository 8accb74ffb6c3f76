package wire

import "tensor-rpc/tensor"

// Some tensors are views over much larger storage, referencing only a small
// slice of it. Kept locally that sharing is free, but shipping the whole
// backing buffer over the wire wastes network. CloneSparseTensors copies such
// a tensor into tight storage when the copy would save at least half the
// bytes that would otherwise be transmitted, and the absolute saving clears a
// minimum hurdle so the copy cost cannot dominate for tiny tensors.

// DefaultMinRecopyBytes is the minimum absolute saving, in bytes, required
// before a tensor is densified.
const DefaultMinRecopyBytes = 8 * 1024

// minCloneMultiple: densify only when the backing storage is at least this
// many times the reachable data.
const minCloneMultiple = 2

// CloneSparseTensors returns a tensor list suitable for transmission: tensors
// whose reachable data is a small fraction of their backing storage are
// replaced by tight copies; everything else passes through unmodified, still
// sharing storage with the caller. Inputs are never mutated, and order is
// preserved. Uses the default saving hurdle.
func CloneSparseTensors(tensors []*tensor.Tensor) []*tensor.Tensor {
	return CloneSparseTensorsWithMin(tensors, DefaultMinRecopyBytes)
}

// CloneSparseTensorsWithMin is CloneSparseTensors with an explicit minimum
// absolute saving in bytes.
func CloneSparseTensorsWithMin(tensors []*tensor.Tensor, minRecopyBytes int) []*tensor.Tensor {
	out := make([]*tensor.Tensor, 0, len(tensors))
	for _, t := range tensors {
		if worthRecopying(t, minRecopyBytes) {
			out = append(out, t.Clone())
		} else {
			out = append(out, t)
		}
	}
	return out
}

// worthRecopying applies the heuristic: both the relative and the absolute
// saving conditions must hold.
func worthRecopying(t *tensor.Tensor, minRecopyBytes int) bool {
	useful := t.ByteLen()
	storage := t.Storage().Len()
	return storage >= minCloneMultiple*useful && storage-useful >= minRecopyBytes
}
