package device

import (
	"sort"
	"sync"
	"time"

	"github.com/ilievs/powercycle/core"
)

// Status is the last known condition of one device.
type Status struct {
	Device     string            `json:"device"`
	Online     bool              `json:"online"`
	Power      core.PowerState   `json:"power"`
	PowerSetAt time.Time         `json:"powerSetAt"`
	Properties map[string]string `json:"properties,omitempty"`
	LastSeen   time.Time         `json:"lastSeen,omitempty"`
}

// Registry tracks the status of the configured devices. Devices are added at
// startup from the schedule; updates arrive concurrently from the presence
// hook, the state monitor and the schedulers' apply callbacks.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*Status
}

func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]*Status),
	}
}

func (r *Registry) Add(device string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[device]; !ok {
		r.devices[device] = &Status{Device: device}
	}
}

// SetOnline marks a configured device's connectivity. Unknown client IDs are
// ignored; only scheduled devices are tracked.
func (r *Registry) SetOnline(device string, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.devices[device]
	if !ok {
		return
	}
	s.Online = online
	if online {
		s.LastSeen = time.Now().UTC()
	}
}

// SetPower records the power state applied to a device.
func (r *Registry) SetPower(when time.Time, device string, state core.PowerState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.devices[device]
	if !ok {
		return
	}
	s.Power = state
	s.PowerSetAt = when
}

// UpdateState records the properties a device reported on its state topic.
func (r *Registry) UpdateState(device string, properties map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.devices[device]
	if !ok {
		return
	}
	s.Properties = properties
	s.LastSeen = time.Now().UTC()
}

// Get returns a copy of one device's status.
func (r *Registry) Get(device string) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.devices[device]
	if !ok {
		return Status{}, false
	}
	return *s, true
}

// List returns a copy of every device's status, ordered by device name.
func (r *Registry) List() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Status, 0, len(r.devices))
	for _, s := range r.devices {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Device < out[j].Device
	})
	return out
}
