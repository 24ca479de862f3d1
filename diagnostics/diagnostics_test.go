package diagnostics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cmfredes/hermite4/body"
	"github.com/cmfredes/hermite4/vec"
)

func twoBodyStore(t *testing.T) *body.Store {
	snap := body.Snapshot{
		M: []float64{1, 1},
		R: []vec.Vec3{{-0.5, 0, 0}, {0.5, 0, 0}},
		V: []vec.Vec3{{0, -0.5, 0}, {0, 0.5, 0}},
	}
	s, err := body.FromSnapshot(snap)
	assert.NoError(t, err)
	return s
}

func TestKineticEnergySumsHalfMV2(t *testing.T) {
	s := twoBodyStore(t)
	assert.InDelta(t, 0.25, KineticEnergy(s), 1e-12)
}

func TestPotentialEnergyIgnoresRelics(t *testing.T) {
	s := twoBodyStore(t)
	s.M[1] = 0 // relic: masked out of the sum
	assert.Equal(t, 0.0, PotentialEnergy(s))
}

func TestPotentialEnergyUnsoftenedPair(t *testing.T) {
	s := twoBodyStore(t)
	assert.InDelta(t, -1.0, PotentialEnergy(s), 1e-12, "G*m1*m2/r with r=1")
}

func TestCenterOfDensitySymmetricConfigurationIsOrigin(t *testing.T) {
	snap := body.Snapshot{
		M: []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
		R: []vec.Vec3{
			{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0},
			{0, 0, 1}, {0, 0, -1}, {2, 0, 0}, {-2, 0, 0},
			{0, 2, 0}, {0, -2, 0}, {0, 0, 2}, {0, 0, -2},
		},
		V: make([]vec.Vec3, 12),
	}
	s, err := body.FromSnapshot(snap)
	assert.NoError(t, err)

	cod := CenterOfDensity(s, 1)
	assert.InDelta(t, 0, cod[0], 1e-9)
	assert.InDelta(t, 0, cod[1], 1e-9)
	assert.InDelta(t, 0, cod[2], 1e-9)
}

// TestDensityAtUsesJMinusOneNeighbourCount pins the exact magnitude of
// densityAt's (J-1) weighting. CenterOfDensity itself cannot catch a
// J-vs-(J-1) regression, symmetric configuration or not: every
// particle's rho is scaled by the same constant factor, which cancels
// out of any weighted-average position regardless of geometry. Only a
// direct check of the per-particle density estimate's magnitude can
// observe the bug.
func TestDensityAtUsesJMinusOneNeighbourCount(t *testing.T) {
	r := make([]vec.Vec3, 12)
	for i := range r {
		r[i] = vec.Vec3{float64(i), 0, 0}
	}
	snap := body.Snapshot{
		M: []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
		R: r,
		V: make([]vec.Vec3, 12),
	}
	s, err := body.FromSnapshot(snap)
	assert.NoError(t, err)

	// Particle 5 sits at x=5 on the unit-spaced line 0..11; the sorted
	// distances to the other 11 particles are 1,1,2,2,3,3,4,4,5,5,6, so
	// its 10th-nearest-neighbour distance (J=10) is exactly 5.
	d := nthNeighbourDistance(s, 5, J)
	assert.Equal(t, 5.0, d)

	want := 9.0 * s.M[5] / ((4.0 / 3.0) * math.Pi * d * d * d)
	got := densityAt(s, 5)
	assert.InDelta(t, want, got, 1e-12, "density estimator must weight by (J-1), not J")

	wrongWithJ := 10.0 * s.M[5] / ((4.0 / 3.0) * math.Pi * d * d * d)
	assert.NotEqual(t, wrongWithJ, got, "must not use the raw neighbour count J as the weight")
}

// TestCenterOfDensityWeightsTowardTheDenserCluster is an asymmetric
// configuration (no reflection/rotation symmetry to hide a uniform
// scaling bug behind): a tight, dense cluster near the origin and a
// single distant, sparse particle. The density-weighted center must
// land near the dense cluster, not at the unweighted centroid.
func TestCenterOfDensityWeightsTowardTheDenserCluster(t *testing.T) {
	r := make([]vec.Vec3, 0, 12)
	for i := 0; i < 11; i++ {
		r = append(r, vec.Vec3{float64(i) * 0.01, 0, 0})
	}
	r = append(r, vec.Vec3{100, 0, 0})
	snap := body.Snapshot{
		M: make([]float64, 12),
		R: r,
		V: make([]vec.Vec3, 12),
	}
	for i := range snap.M {
		snap.M[i] = 1
	}
	s, err := body.FromSnapshot(snap)
	assert.NoError(t, err)

	cod := CenterOfDensity(s, 4)
	unweightedCentroid := (55*0.01 + 100) / 12.0
	assert.Less(t, cod[0], unweightedCentroid/2, "density weighting pulls the center away from the distant outlier")
}

func TestHalfMassRadiusEnclosesHalfTheMass(t *testing.T) {
	snap := body.Snapshot{
		M: []float64{1, 1, 1, 1},
		R: []vec.Vec3{{1, 0, 0}, {2, 0, 0}, {3, 0, 0}, {4, 0, 0}},
		V: make([]vec.Vec3, 4),
	}
	s, err := body.FromSnapshot(snap)
	assert.NoError(t, err)

	rh := HalfMassRadius(s, vec.Vec3{}, 1)
	assert.Equal(t, 2.0, rh, "smallest radius enclosing >= half the mass (2 of 4 particles)")
}

func TestCoreRadiusSmallerThanHalfMassRadius(t *testing.T) {
	snap := body.Snapshot{
		M: []float64{1, 1, 1, 1, 1},
		R: []vec.Vec3{{1, 0, 0}, {2, 0, 0}, {3, 0, 0}, {4, 0, 0}, {5, 0, 0}},
		V: make([]vec.Vec3, 5),
	}
	s, err := body.FromSnapshot(snap)
	assert.NoError(t, err)

	core := CoreRadius(s, vec.Vec3{}, 1)
	half := HalfMassRadius(s, vec.Vec3{}, 1)
	assert.LessOrEqual(t, core, half)
}

func TestLagrangeRadiiMonotonicallyIncreasing(t *testing.T) {
	snap := body.Snapshot{
		M: []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
		R: func() []vec.Vec3 {
			r := make([]vec.Vec3, 10)
			for i := range r {
				r[i] = vec.Vec3{float64(i + 1), 0, 0}
			}
			return r
		}(),
		V: make([]vec.Vec3, 10),
	}
	s, err := body.FromSnapshot(snap)
	assert.NoError(t, err)

	radii := LagrangeRadii(s, vec.Vec3{}, []float64{0.1, 0.25, 0.5, 0.75, 0.9}, 4)
	for k := 1; k < len(radii); k++ {
		assert.LessOrEqual(t, radii[k-1], radii[k], "larger mass fraction never has a smaller enclosing radius")
	}
}

func TestVirialRadiusRequiresBoundSystem(t *testing.T) {
	assert.True(t, math.IsInf(VirialRadius(10, 1), 1), "unbound system has no finite virial radius")
	assert.InDelta(t, 2.5, VirialRadius(10, -10), 1e-12)
}

func TestCrossingTimeAndRelaxationTimeArePositive(t *testing.T) {
	rv := VirialRadius(10, -10)
	ct := CrossingTime(rv, 10)
	assert.Greater(t, ct, 0.0)

	trh := HalfMassRelaxationTime(100, 1.0, 10.0)
	assert.Greater(t, trh, 0.0)
}

func TestCloseEncounterRadiusScalesInverseWithN(t *testing.T) {
	rv := 1.0
	assert.Greater(t, CloseEncounterRadius(rv, 10), CloseEncounterRadius(rv, 100))
}
