package manta

import (
	"fmt"
	"sort"
	"sync"

	"github.com/manta-sdr/manta/pkg/types"
)

// VFORegistry is the sole source of truth for VFO descriptors. The
// channelizer's per-VFO state is a derived cache reconciled from snapshots
// of this registry, so mutations here take effect on the next batch without
// any cross-component locking.
type VFORegistry struct {
	mu   sync.RWMutex
	vfos map[int]types.VFO
}

func NewVFORegistry() *VFORegistry {
	return &VFORegistry{vfos: make(map[int]types.VFO)}
}

func validateVFO(v types.VFO) error {
	if v.ID <= MixedStreamID {
		return fmt.Errorf("vfo id must be >= 1, got %d", v.ID)
	}
	if !v.Mode.Valid() {
		return fmt.Errorf("vfo %d: unknown mode %q", v.ID, v.Mode)
	}
	if v.Bandwidth <= 0 {
		return fmt.Errorf("vfo %d: bandwidth must be positive, got %d", v.ID, v.Bandwidth)
	}
	return nil
}

func (r *VFORegistry) Add(v types.VFO) error {
	if err := validateVFO(v); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vfos[v.ID]; ok {
		return fmt.Errorf("vfo %d already exists", v.ID)
	}
	r.vfos[v.ID] = v
	return nil
}

func (r *VFORegistry) Update(v types.VFO) error {
	if err := validateVFO(v); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vfos[v.ID]; !ok {
		return fmt.Errorf("vfo %d does not exist", v.ID)
	}
	r.vfos[v.ID] = v
	return nil
}

func (r *VFORegistry) Remove(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vfos[id]; !ok {
		return fmt.Errorf("vfo %d does not exist", id)
	}
	delete(r.vfos, id)
	return nil
}

func (r *VFORegistry) Get(id int) (types.VFO, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vfos[id]
	return v, ok
}

// Snapshot returns the descriptors ordered by id. The slice is the caller's
// to keep.
func (r *VFORegistry) Snapshot() []types.VFO {
	r.mu.RLock()
	out := make([]types.VFO, 0, len(r.vfos))
	for _, v := range r.vfos {
		out = append(out, v)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *VFORegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.vfos)
}
