package manta

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/manta-sdr/manta/pkg/types"
)

func validVFO(id int) types.VFO {
	return types.VFO{ID: id, Offset: 5000, Mode: types.ModeFM, Bandwidth: 12000}
}

func TestRegistryRejectsReservedID(t *testing.T) {
	r := NewVFORegistry()
	v := validVFO(MixedStreamID)
	require.Error(t, r.Add(v), "id 0 is reserved for the mixed stream")
	require.Error(t, r.Add(validVFO(-1)))
	require.NoError(t, r.Add(validVFO(1)))
}

func TestRegistryRejectsInvalidDescriptors(t *testing.T) {
	r := NewVFORegistry()

	v := validVFO(1)
	v.Mode = "chirp"
	require.Error(t, r.Add(v))

	v = validVFO(1)
	v.Bandwidth = 0
	require.Error(t, r.Add(v))
}

func TestRegistryAddUpdateRemove(t *testing.T) {
	r := NewVFORegistry()
	require.NoError(t, r.Add(validVFO(1)))
	require.Error(t, r.Add(validVFO(1)), "duplicate id")

	v := validVFO(1)
	v.Offset = -7000
	require.NoError(t, r.Update(v))
	got, ok := r.Get(1)
	require.True(t, ok)
	require.Equal(t, -7000, got.Offset)

	require.Error(t, r.Update(validVFO(2)), "update of unknown id")
	require.NoError(t, r.Remove(1))
	require.Error(t, r.Remove(1))
	require.Equal(t, 0, r.Len())
}

func TestSnapshotOrderedByID(t *testing.T) {
	r := NewVFORegistry()
	for _, id := range []int{5, 1, 3} {
		require.NoError(t, r.Add(validVFO(id)))
	}
	snap := r.Snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, 1, snap[0].ID)
	require.Equal(t, 3, snap[1].ID)
	require.Equal(t, 5, snap[2].ID)
}
