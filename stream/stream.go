// Package stream provides the per-call device-stream context: it lazily
// reserves one execution stream per device a call's tensors touch, and
// inserts the minimal cross-stream synchronization so a consumer never reads
// device memory before its producer finished writing it.
//
// The package does not talk to any accelerator runtime. Streams and events
// are abstractions supplied by the execution-environment collaborator through
// two injected factory functions: one that allocates a stream for a device,
// one that reports the caller's ambient "current" stream for a device.
package stream

import (
	"fmt"

	"tensor-rpc/tensor"
)

// Event is a marker recorded at a point on one stream that another stream
// can wait on, establishing a happens-before edge without blocking the host
// thread.
type Event interface{}

// Stream is an ordered execution queue for one device. Work enqueued on a
// stream completes in order; different streams may run concurrently.
type Stream interface {
	// Device returns the device this stream executes on.
	Device() tensor.Device
	// RecordEvent records a marker at the stream's current position.
	RecordEvent() Event
	// WaitEvent makes all work enqueued after this call wait for the event.
	// The host thread does not block; the wait lives on the device queue.
	WaitEvent(Event)
}

// Factory allocates or reports a stream for a device. Returning nil is the
// sanctioned way to signal "this device type has no stream concept" (for a
// creator) or "no ambient stream is set" (for a current-stream provider).
// A Factory may be shared by many contexts concurrently and must be
// side-effect-free with respect to context state.
type Factory func(deviceType tensor.DeviceType, index int) Stream

// ConfigError reports that the stream creator was expected to produce a
// stream for a device that should support one, but returned nothing.
// Continuing would risk a data race, so this is surfaced immediately.
type ConfigError struct {
	Device tensor.Device
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("stream: creator returned no stream for device %s", e.Device)
}
