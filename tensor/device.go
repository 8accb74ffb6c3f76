package tensor

import "fmt"

// DeviceType distinguishes host memory from accelerator devices.
// The wire layer never talks to an accelerator directly — it only needs the
// placement so the stream context knows which devices a call touches.
type DeviceType uint8

const (
	CPU DeviceType = iota
	Accelerator
)

func (dt DeviceType) String() string {
	switch dt {
	case CPU:
		return "cpu"
	case Accelerator:
		return "acc"
	default:
		return fmt.Sprintf("device-type(%d)", uint8(dt))
	}
}

// Device is a placement: a device type plus an index within that type.
// The index is meaningless for CPU.
type Device struct {
	Type  DeviceType
	Index int
}

// CPUDevice is the host placement shared by all host-resident storage.
var CPUDevice = Device{Type: CPU}

// IsCPU reports whether the device is host memory.
func (d Device) IsCPU() bool { return d.Type == CPU }

func (d Device) String() string {
	if d.IsCPU() {
		return "cpu"
	}
	return fmt.Sprintf("%s:%d", d.Type, d.Index)
}

// Storage is a raw byte buffer on some device. Multiple tensor views may
// share one Storage; the wire layer compares Storage identity by pointer.
type Storage struct {
	data   []byte
	device Device
}

// NewStorage allocates n zeroed bytes on the given device.
func NewStorage(n int, device Device) *Storage {
	return &Storage{data: make([]byte, n), device: device}
}

// Len returns the total byte capacity of the storage.
func (s *Storage) Len() int { return len(s.data) }

// Bytes returns the raw buffer. Mutating it is visible through every view.
func (s *Storage) Bytes() []byte { return s.data }

// Device returns the placement of the storage.
func (s *Storage) Device() Device { return s.device }
