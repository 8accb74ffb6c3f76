package registry

import "tensor-rpc/tensor"

// WorkerInfo describes one compute node: the name callers address it by, the
// transport address, and the accelerator devices it exposes. Callers resolve
// a worker name to this record before issuing an RPC.
type WorkerInfo struct {
	Name    string          `json:"name"`
	Addr    string          `json:"addr"`
	Devices []tensor.Device `json:"devices"`
}

// Registry resolves worker names across the cluster.
type Registry interface {
	Register(info WorkerInfo, ttl int64) error
	Deregister(name string) error
	Lookup(name string) (WorkerInfo, error)
	Discover() ([]WorkerInfo, error)
	Watch() <-chan []WorkerInfo
}
