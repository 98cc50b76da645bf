// Package registry holds the remote devices seen during discovery, one entry
// per address, ordered by the most recent Put.
package registry

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/classicgap/internal/device"
)

// Registry is not safe for concurrent use; the GAP controller serializes
// every access.
type Registry struct {
	devices *orderedmap.OrderedMap[device.Address, *device.Device]
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		devices: orderedmap.New[device.Address, *device.Device](),
	}
}

// Find returns the live entry for addr.
func (r *Registry) Find(addr device.Address) (*device.Device, bool) {
	return r.devices.Get(addr)
}

// FindByState returns the oldest entry whose name fetch is in state.
func (r *Registry) FindByState(state device.NameFetchState) (*device.Device, bool) {
	for p := r.devices.Oldest(); p != nil; p = p.Next() {
		if p.Value.NameFetchState == state {
			return p.Value, true
		}
	}
	return nil, false
}

// Put stores dev, replacing any entry with the same address. The stored entry
// always ends up last in iteration order. The returned pointer stays valid
// until the entry is replaced or the registry is cleared.
func (r *Registry) Put(dev device.Device) *device.Device {
	stored := dev.Clone()
	r.devices.Delete(stored.Address)
	r.devices.Set(stored.Address, &stored)
	return &stored
}

// ForEach calls visit for every entry in order. A nil visit is a no-op.
func (r *Registry) ForEach(visit func(*device.Device)) {
	if visit == nil {
		return
	}
	for p := r.devices.Oldest(); p != nil; p = p.Next() {
		visit(p.Value)
	}
}

// Clear removes every entry.
func (r *Registry) Clear() {
	r.devices = orderedmap.New[device.Address, *device.Device]()
}

// Snapshot returns deep copies of all entries in order.
func (r *Registry) Snapshot() []device.Device {
	out := make([]device.Device, 0, r.devices.Len())
	for p := r.devices.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Value.Clone())
	}
	return out
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	return r.devices.Len()
}
