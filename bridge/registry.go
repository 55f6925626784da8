package bridge

import (
	"errors"
	"sync"

	"github.com/orogenlab/landcoupler/engine"
)

// Handle identifies one live model instance across the flat call surface.
// It packs an arena slot in the low 32 bits and a generation counter above,
// so a handle kept after Destroy never validates against a reused slot.
type Handle int64

// FailureHandle is returned by Create on failure.
const FailureHandle Handle = -1

// ErrInvalidHandle reports an unknown, destroyed, or stale model handle.
var ErrInvalidHandle = errors.New("invalid or destroyed model handle")

func makeHandle(slot int, gen int64) Handle {
	return Handle(gen<<32 | int64(slot))
}

func (h Handle) slot() int   { return int(int64(h) & 0xffffffff) }
func (h Handle) gen() int64  { return int64(h) >> 32 }
func (h Handle) valid() bool { return h >= 0 }

type slotEntry struct {
	model *engine.Model
	gen   int64
	live  bool
}

// Registry is a thread-safe arena of live model instances. Slots are reused
// after Destroy, with the generation counter guarding against stale handles.
type Registry struct {
	mu    sync.Mutex
	slots []slotEntry
	free  []int
	live  int
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add stores a model and returns its handle.
func (r *Registry) Add(m *engine.Model) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var slot int
	if n := len(r.free); n > 0 {
		slot = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		slot = len(r.slots)
		r.slots = append(r.slots, slotEntry{})
	}
	r.slots[slot].gen++
	r.slots[slot].model = m
	r.slots[slot].live = true
	r.live++
	return makeHandle(slot, r.slots[slot].gen)
}

// Get returns the live model for h, or ErrInvalidHandle.
func (r *Registry) Get(h Handle) (*engine.Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.lookup(h)
	if err != nil {
		return nil, err
	}
	return entry.model, nil
}

// Remove destroys the handle and returns the model it referenced. A second
// Remove of the same handle fails: destruction happens exactly once.
func (r *Registry) Remove(h Handle) (*engine.Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.lookup(h)
	if err != nil {
		return nil, err
	}
	m := entry.model
	entry.model = nil
	entry.live = false
	r.free = append(r.free, h.slot())
	r.live--
	return m, nil
}

// Live returns the number of live models.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

func (r *Registry) lookup(h Handle) (*slotEntry, error) {
	if !h.valid() || h.slot() >= len(r.slots) {
		return nil, ErrInvalidHandle
	}
	entry := &r.slots[h.slot()]
	if !entry.live || entry.gen != h.gen() {
		return nil, ErrInvalidHandle
	}
	return entry, nil
}
