package body

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cmfredes/hermite4/vec"
)

func TestNewStoreRejectsBadN(t *testing.T) {
	_, err := NewStore(0)
	assert.Error(t, err, "N=0 must fail fast")

	_, err = NewStore(-3)
	assert.Error(t, err, "negative N must fail fast")
}

func TestNewStoreIdentifiers(t *testing.T) {
	s, err := NewStore(5)
	assert.NoError(t, err)
	for i := 0; i < 5; i++ {
		assert.Equal(t, int64(i), s.ID[i], "stable identifiers")
	}
}

func TestFromSnapshotRejectsNegativeMass(t *testing.T) {
	snap := Snapshot{
		M: []float64{1, -1},
		R: []vec.Vec3{{}, {}},
		V: []vec.Vec3{{}, {}},
	}
	_, err := FromSnapshot(snap)
	assert.Error(t, err, "negative mass is a precondition violation")
}

func TestFromSnapshotRejectsNonFinite(t *testing.T) {
	nan := 0.0
	nan = nan / nan

	snap := Snapshot{
		M: []float64{1, 1},
		R: []vec.Vec3{{nan, 0, 0}, {}},
		V: []vec.Vec3{{}, {}},
	}
	_, err := FromSnapshot(snap)
	assert.Error(t, err, "non-finite position is a precondition violation")
}

func TestTotalMassIgnoresRelicsCorrectly(t *testing.T) {
	snap := Snapshot{
		M: []float64{1, 2, 0},
		R: []vec.Vec3{{}, {}, {}},
		V: []vec.Vec3{{}, {}, {}},
	}
	s, err := FromSnapshot(snap)
	assert.NoError(t, err)
	assert.Equal(t, 3.0, s.TotalMass(), "relic contributes zero, not removed from sum")
}

func TestSnapshotRoundTrip(t *testing.T) {
	snap := Snapshot{
		ID: []int64{7, 8},
		M:  []float64{1, 2},
		R:  []vec.Vec3{{1, 2, 3}, {4, 5, 6}},
		V:  []vec.Vec3{{0, 0, 0}, {1, 1, 1}},
	}
	s, err := FromSnapshot(snap)
	assert.NoError(t, err)

	out := s.Snapshot()
	assert.Equal(t, snap.ID, out.ID)
	assert.Equal(t, snap.M, out.M)
	assert.Equal(t, snap.R, out.R)
	assert.Equal(t, snap.V, out.V)
}
