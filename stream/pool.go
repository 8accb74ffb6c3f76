package stream

import (
	"sync"

	"tensor-rpc/tensor"
)

// StreamPool bounds how many streams exist per device across all in-flight
// calls. Many calls each reserving streams must not allocate without bound;
// instead they share one pool and draw through the Factory it exposes.
//
// Pool design: one buffered channel per device index as a natural FIFO queue.
// Buffered channels are concurrency-safe, and blocking on empty is built-in.
type StreamPool struct {
	mu        sync.Mutex
	idle      map[int]chan Stream // per device index — FIFO of released streams
	created   map[int]int         // streams created so far per device index
	maxPerDev int
	alloc     Factory // underlying allocator from the execution environment
}

// NewStreamPool wraps the execution environment's raw allocator with a bound
// of maxPerDevice streams per device index. Streams are created lazily — the
// pool starts empty and grows on demand.
func NewStreamPool(alloc Factory, maxPerDevice int) *StreamPool {
	return &StreamPool{
		idle:      make(map[int]chan Stream),
		created:   make(map[int]int),
		maxPerDev: maxPerDevice,
		alloc:     alloc,
	}
}

// Creator returns the Factory that contexts use to reserve streams.
// Strategy per device index:
//  1. Take an idle stream if one is queued (non-blocking select)
//  2. Otherwise, if under the per-device limit, allocate a new one
//  3. At capacity — block until another call releases a stream
//
// A nil result from the underlying allocator (device type without streams)
// passes through unchanged.
func (p *StreamPool) Creator() Factory {
	return func(deviceType tensor.DeviceType, index int) Stream {
		idle := p.idleQueue(index)
		select {
		case s := <-idle:
			return s
		default:
		}

		p.mu.Lock()
		if p.created[index] < p.maxPerDev {
			s := p.alloc(deviceType, index)
			if s != nil {
				p.created[index]++
			}
			p.mu.Unlock()
			return s
		}
		p.mu.Unlock()

		// At capacity — wait for a release.
		return <-idle
	}
}

// Release returns a stream to the pool for reuse by later calls.
func (p *StreamPool) Release(s Stream) {
	if s == nil {
		return
	}
	p.idleQueue(s.Device().Index) <- s
}

// Created reports how many streams have been allocated for a device index.
func (p *StreamPool) Created(index int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created[index]
}

func (p *StreamPool) idleQueue(index int) chan Stream {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.idle[index]
	if !ok {
		q = make(chan Stream, p.maxPerDev)
		p.idle[index] = q
	}
	return q
}
