package mesh

import "fmt"

// Partition describes one distributed worker's view of the global mesh: the
// global node count plus the index set of nodes owned locally. Interpolation
// is always computed over the global arrays so that every partition derives
// identical weights; local results are then extracted as a deterministic
// slice of the global result. Keeping the extraction here, in one place,
// makes that invariant checkable.
type Partition struct {
	globalSize int
	localIDs   []int
}

// NewPartition builds a partition over globalSize nodes owning the nodes in
// localIDs. Indices must be in range; order is preserved as given.
func NewPartition(globalSize int, localIDs []int) (*Partition, error) {
	if globalSize < 0 {
		return nil, fmt.Errorf("%w: negative global size %d", ErrInvalidInput, globalSize)
	}
	for _, id := range localIDs {
		if id < 0 || id >= globalSize {
			return nil, fmt.Errorf("%w: local index %d out of range [0,%d)",
				ErrInvalidInput, id, globalSize)
		}
	}
	ids := make([]int, len(localIDs))
	copy(ids, localIDs)
	return &Partition{globalSize: globalSize, localIDs: ids}, nil
}

// FullPartition returns the single-worker partition owning all n nodes.
func FullPartition(n int) *Partition {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return &Partition{globalSize: n, localIDs: ids}
}

// GlobalSize returns the number of nodes in the global mesh.
func (p *Partition) GlobalSize() int { return p.globalSize }

// LocalSize returns the number of locally owned nodes.
func (p *Partition) LocalSize() int { return len(p.localIDs) }

// LocalIDs returns the local index set. The slice is shared; callers must
// not mutate it.
func (p *Partition) LocalIDs() []int { return p.localIDs }

// ExtractVec3 slices the local rows out of a global vector field.
func (p *Partition) ExtractVec3(global []Vec3) ([]Vec3, error) {
	if len(global) != p.globalSize {
		return nil, fmt.Errorf("%w: global array has %d rows, partition expects %d",
			ErrInvalidInput, len(global), p.globalSize)
	}
	local := make([]Vec3, len(p.localIDs))
	for i, id := range p.localIDs {
		local[i] = global[id]
	}
	return local, nil
}

// ExtractScalars slices the local rows out of a global scalar field.
func (p *Partition) ExtractScalars(global []float64) ([]float64, error) {
	if len(global) != p.globalSize {
		return nil, fmt.Errorf("%w: global array has %d rows, partition expects %d",
			ErrInvalidInput, len(global), p.globalSize)
	}
	local := make([]float64, len(p.localIDs))
	for i, id := range p.localIDs {
		local[i] = global[id]
	}
	return local, nil
}
