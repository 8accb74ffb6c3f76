package stream

import (
	"sort"

	"github.com/lithammer/shortuuid/v4"
	"github.com/sirupsen/logrus"

	"tensor-rpc/tensor"
)

// LazyStreamContext maps each accelerator device index touched by one
// in-flight call to a reserved execution stream, created on first touch and
// cached thereafter.
//
// A context is owned by exactly one call and must not be shared across
// concurrent calls: the device→stream cache is confined to the goroutine
// driving that call. The two injected factories, by contrast, may be shared
// by many contexts.
type LazyStreamContext struct {
	id      string
	streams map[int]Stream
	creator Factory
	current Factory
	log     *logrus.Entry
}

// NewLazyStreamContext builds a context from the shared creator and
// current-stream provider factories.
func NewLazyStreamContext(creator, current Factory) *LazyStreamContext {
	id := shortuuid.New()
	return &LazyStreamContext{
		id:      id,
		streams: make(map[int]Stream),
		creator: creator,
		current: current,
		log:     logrus.StandardLogger().WithFields(logrus.Fields{"component": "stream", "ctx": id}),
	}
}

// GetStream returns the reserved stream for the given device, allocating and
// caching one on first touch. Idempotent per index: repeated calls return the
// identical stream.
//
// Host devices have no stream concept; GetStream returns (nil, nil) and the
// caller operates synchronously. For accelerator devices a nil result from
// the creator is a configuration inconsistency and fails with *ConfigError.
func (c *LazyStreamContext) GetStream(deviceType tensor.DeviceType, index int) (Stream, error) {
	if deviceType == tensor.CPU {
		return nil, nil
	}
	if s, ok := c.streams[index]; ok {
		return s, nil
	}
	s := c.creator(deviceType, index)
	if s == nil {
		return nil, &ConfigError{Device: tensor.Device{Type: deviceType, Index: index}}
	}
	c.streams[index] = s
	c.log.WithField("device", s.Device().String()).Debug("reserved stream")
	return s, nil
}

// WaitForCurrentStreams makes every reserved stream wait for the work the
// caller has already enqueued on its ambient stream, per device:
//
//  1. reserve a stream for each device the given tensors touch;
//  2. for each reserved device, ask the current-stream provider for the
//     caller's ambient stream; if one exists, record an event on it and make
//     the reserved stream wait on that event.
//
// This establishes the happens-before edge — all device work enqueued on the
// ambient stream before this call is ordered before any work subsequently
// enqueued on the reserved stream — without blocking the calling thread.
// No ordering is established between different devices, nor with ambient
// work enqueued after this call.
func (c *LazyStreamContext) WaitForCurrentStreams(tensors []*tensor.Tensor) error {
	for _, t := range tensors {
		if _, err := c.GetStream(t.Device().Type, t.Device().Index); err != nil {
			return err
		}
	}
	for index, reserved := range c.streams {
		ambient := c.current(reserved.Device().Type, index)
		if ambient == nil {
			continue
		}
		reserved.WaitEvent(ambient.RecordEvent())
	}
	return nil
}

// ReservedStreams returns every stream reserved so far.
func (c *LazyStreamContext) ReservedStreams() []Stream {
	out := make([]Stream, 0, len(c.streams))
	for _, s := range c.streams {
		out = append(out, s)
	}
	return out
}

// Devices returns the sorted indices of the devices touched so far.
func (c *LazyStreamContext) Devices() []int {
	out := make([]int, 0, len(c.streams))
	for index := range c.streams {
		out = append(out, index)
	}
	sort.Ints(out)
	return out
}

// ID returns the context's log-correlation id.
func (c *LazyStreamContext) ID() string { return c.id }

// Close releases the reserved streams through the given return function
// (typically StreamPool.Release) and empties the cache. No synchronization
// is forced beyond what the release function itself does. A nil release just
// drops the handles.
func (c *LazyStreamContext) Close(release func(Stream)) {
	for _, s := range c.streams {
		if release != nil {
			release(s)
		}
	}
	c.streams = make(map[int]Stream)
}
