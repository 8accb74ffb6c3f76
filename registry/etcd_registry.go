// Package registry provides the etcd-based worker registry.
//
// etcd is a distributed key-value store with strong consistency (Raft). We
// use it as the cluster's "phonebook" for compute nodes:
//
//	Key:   /tensor-rpc/workers/{Name}
//	Value: JSON-encoded WorkerInfo
//
// Registration uses TTL-based leases: if a worker crashes, the lease expires
// and the entry is automatically removed — preventing "ghost" workers that
// callers would try to ship tensors to.
package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const keyPrefix = "/tensor-rpc/workers/"

// EtcdRegistry implements the Registry interface using etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client // etcd client connection (thread-safe, shared across goroutines)
	log    *logrus.Entry
}

// NewEtcdRegistry creates a registry connected to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints: endpoints,
	})
	if err != nil {
		return nil, err
	}
	return &EtcdRegistry{
		client: c,
		log:    logrus.StandardLogger().WithField("component", "registry"),
	}, nil
}

// Register adds a worker to etcd with a TTL lease.
//
// Flow:
//  1. Create a lease with the given TTL (e.g., 10 seconds)
//  2. Put the key-value pair with the lease attached
//  3. Start KeepAlive to automatically renew the lease
//
// Note: leaseID stays a local variable, NOT a struct field, so multiple
// workers can share one EtcdRegistry instance without a data race.
func (r *EtcdRegistry) Register(info WorkerInfo, ttl int64) error {
	ctx := context.TODO()

	// TTL-based lease — if KeepAlive stops, the entry auto-expires
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return err
	}

	val, err := json.Marshal(info)
	if err != nil {
		return err
	}

	_, err = r.client.Put(ctx, keyPrefix+info.Name, string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return err
	}

	// Background lease renewal — KeepAlive sends heartbeats to etcd
	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return err
	}

	// Consume KeepAlive responses to prevent the channel from filling up
	go func() {
		for range ch {
		}
	}()

	r.log.WithFields(logrus.Fields{"worker": info.Name, "addr": info.Addr,
		"devices": len(info.Devices)}).Info("registered worker")
	return nil
}

// Deregister removes a worker from etcd. Called during graceful shutdown.
func (r *EtcdRegistry) Deregister(name string) error {
	_, err := r.client.Delete(context.TODO(), keyPrefix+name)
	return err
}

// Lookup resolves a single worker by name.
func (r *EtcdRegistry) Lookup(name string) (WorkerInfo, error) {
	resp, err := r.client.Get(context.TODO(), keyPrefix+name)
	if err != nil {
		return WorkerInfo{}, err
	}
	if len(resp.Kvs) == 0 {
		return WorkerInfo{}, fmt.Errorf("registry: unknown worker %q", name)
	}
	var info WorkerInfo
	if err := json.Unmarshal(resp.Kvs[0].Value, &info); err != nil {
		return WorkerInfo{}, err
	}
	return info, nil
}

// Discover returns all currently registered workers.
func (r *EtcdRegistry) Discover() ([]WorkerInfo, error) {
	resp, err := r.client.Get(context.TODO(), keyPrefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	workers := make([]WorkerInfo, 0)
	for _, kv := range resp.Kvs {
		var info WorkerInfo
		if err := json.Unmarshal(kv.Value, &info); err != nil {
			continue // Skip malformed entries
		}
		workers = append(workers, info)
	}
	return workers, nil
}

// Watch monitors the worker prefix and emits updated worker lists whenever
// membership changes (registrations, deregistrations, lease expirations).
// Uses etcd's Watch API (server-push), more efficient than polling.
func (r *EtcdRegistry) Watch() <-chan []WorkerInfo {
	ch := make(chan []WorkerInfo, 1)

	go func() {
		watchChan := r.client.Watch(context.TODO(), keyPrefix, clientv3.WithPrefix())
		for range watchChan {
			// On any change, re-fetch the full worker list
			// (simpler than parsing individual watch events)
			workers, _ := r.Discover()
			ch <- workers
		}
	}()

	return ch
}

// Close releases the etcd client connection.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
