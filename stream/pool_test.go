package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tensor-rpc/tensor"
)

func TestStreamPoolLazyCreation(t *testing.T) {
	allocs := 0
	pool := NewStreamPool(func(dt tensor.DeviceType, index int) Stream {
		allocs++
		return &fakeStream{device: tensor.Device{Type: dt, Index: index}}
	}, 4)

	assert.Equal(t, 0, pool.Created(0), "pool starts empty")

	creator := pool.Creator()
	s1 := creator(tensor.Accelerator, 0)
	require.NotNil(t, s1)
	assert.Equal(t, 1, allocs)
	assert.Equal(t, 1, pool.Created(0))

	// A second draw without a release allocates a fresh stream
	s2 := creator(tensor.Accelerator, 0)
	assert.NotSame(t, s1, s2)
	assert.Equal(t, 2, pool.Created(0))
}

func TestStreamPoolReuseAfterRelease(t *testing.T) {
	pool := NewStreamPool(func(dt tensor.DeviceType, index int) Stream {
		return &fakeStream{device: tensor.Device{Type: dt, Index: index}}
	}, 4)
	creator := pool.Creator()

	s1 := creator(tensor.Accelerator, 0)
	pool.Release(s1)

	s2 := creator(tensor.Accelerator, 0)
	assert.Same(t, s1, s2, "released stream must be reused before allocating")
	assert.Equal(t, 1, pool.Created(0))
}

func TestStreamPoolPerDeviceAccounting(t *testing.T) {
	pool := NewStreamPool(func(dt tensor.DeviceType, index int) Stream {
		return &fakeStream{device: tensor.Device{Type: dt, Index: index}}
	}, 2)
	creator := pool.Creator()

	creator(tensor.Accelerator, 0)
	creator(tensor.Accelerator, 1)
	creator(tensor.Accelerator, 1)

	assert.Equal(t, 1, pool.Created(0))
	assert.Equal(t, 2, pool.Created(1))
}

func TestStreamPoolWithContext(t *testing.T) {
	pool := NewStreamPool(func(dt tensor.DeviceType, index int) Stream {
		return &fakeStream{device: tensor.Device{Type: dt, Index: index}}
	}, 2)

	ctx := NewLazyStreamContext(pool.Creator(), func(tensor.DeviceType, int) Stream { return nil })
	s, err := ctx.GetStream(tensor.Accelerator, 0)
	require.NoError(t, err)

	// Releasing through Close hands the stream back for the next call
	ctx.Close(pool.Release)

	ctx2 := NewLazyStreamContext(pool.Creator(), func(tensor.DeviceType, int) Stream { return nil })
	s2, err := ctx2.GetStream(tensor.Accelerator, 0)
	require.NoError(t, err)
	assert.Same(t, s, s2)
	assert.Equal(t, 1, pool.Created(0))
}

func TestStreamPoolNilFromAllocator(t *testing.T) {
	pool := NewStreamPool(func(tensor.DeviceType, int) Stream { return nil }, 2)
	assert.Nil(t, pool.Creator()(tensor.Accelerator, 0))
	assert.Equal(t, 0, pool.Created(0), "nil allocations must not count against the limit")
}
