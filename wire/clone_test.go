package wire

import (
	"bytes"
	"testing"

	"tensor-rpc/tensor"
)

// newView builds a tensor viewing the first viewBytes bytes of a
// storageBytes-sized backing buffer.
func newView(t *testing.T, storageBytes, viewBytes int) *tensor.Tensor {
	t.Helper()
	base, err := tensor.FromBytes([]int64{int64(storageBytes)}, tensor.Uint8,
		bytes.Repeat([]byte{3}, storageBytes))
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}
	view, err := base.Narrow(0, int64(viewBytes))
	if err != nil {
		t.Fatalf("Narrow failed: %v", err)
	}
	return view
}

func TestCloneSparseTensorsCopiesSmallViews(t *testing.T) {
	// 64 KiB storage, 1 KiB reachable: ≤ half AND saves ≥ 8 KiB → densify
	view := newView(t, 64*1024, 1024)

	out := CloneSparseTensors([]*tensor.Tensor{view})
	if len(out) != 1 {
		t.Fatalf("expect 1 tensor, got %d", len(out))
	}
	if out[0].Storage() == view.Storage() {
		t.Error("sparse view should have been cloned to tight storage")
	}
	if out[0].Storage().Len() != view.ByteLen() {
		t.Errorf("cloned storage not tight: got %d, want %d", out[0].Storage().Len(), view.ByteLen())
	}
	if !out[0].EqualValues(view) {
		t.Error("clone changed the tensor's value")
	}
	// The input must be untouched
	if view.Storage().Len() != 64*1024 {
		t.Error("input tensor was mutated")
	}
}

func TestCloneSparseTensorsPassesThroughDenseTensors(t *testing.T) {
	// Reachable data is more than half the storage → pass through
	view := newView(t, 64*1024, 40*1024)

	out := CloneSparseTensors([]*tensor.Tensor{view})
	if out[0].Storage() != view.Storage() {
		t.Error("dense tensor should pass through with its original storage")
	}
}

func TestCloneSparseTensorsRespectsMinimumSaving(t *testing.T) {
	// 4 KiB storage, 1 KiB reachable: well under half, but the absolute
	// saving (3 KiB) is below the default 8 KiB hurdle → pass through
	view := newView(t, 4*1024, 1024)

	out := CloneSparseTensors([]*tensor.Tensor{view})
	if out[0].Storage() != view.Storage() {
		t.Error("saving below the hurdle should not trigger a copy")
	}

	// With the hurdle lowered, the same tensor is cloned
	out = CloneSparseTensorsWithMin([]*tensor.Tensor{view}, 1024)
	if out[0].Storage() == view.Storage() {
		t.Error("lowered hurdle should trigger a copy")
	}
}

func TestCloneSparseTensorsBothConditionsRequired(t *testing.T) {
	// Saves more than the hurdle in absolute terms, but less than half the
	// transmitted bytes → pass through
	view := newView(t, 32*1024, 20*1024)

	out := CloneSparseTensors([]*tensor.Tensor{view})
	if out[0].Storage() != view.Storage() {
		t.Error("relative condition failed, tensor must pass through")
	}
}

func TestCloneSparseTensorsPreservesOrder(t *testing.T) {
	sparse := newView(t, 64*1024, 16)
	dense := newView(t, 16, 16)

	out := CloneSparseTensors([]*tensor.Tensor{sparse, dense, sparse})
	if len(out) != 3 {
		t.Fatalf("expect 3 tensors, got %d", len(out))
	}
	for i, want := range []*tensor.Tensor{sparse, dense, sparse} {
		if !out[i].EqualValues(want) {
			t.Errorf("tensor %d value changed", i)
		}
	}
	if out[1].Storage() != dense.Storage() {
		t.Error("dense tensor in the middle must keep its storage")
	}
}
