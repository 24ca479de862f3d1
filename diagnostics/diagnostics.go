// Package diagnostics computes the scalar and radial-profile quantities
// the reference integrator reports alongside a running simulation:
// kinetic/potential energy, the density center, half-mass and Lagrange
// radii, the virial radius, crossing time, half-mass relaxation time,
// and the core radius. None of these feed back into the integration —
// they exist to be logged or plotted, grounded directly on
// NbodyUtils::get_center_of_density / get_half_mass_radius /
// get_virial_radius / get_crossing_time / get_half_mass_relaxation_time.
package diagnostics

import (
	"math"
	"sort"
	"sync"

	"github.com/cmfredes/hermite4/body"
	"github.com/cmfredes/hermite4/vec"
)

// J is the neighbour rank used by the center-of-density estimator: each
// particle's local density is estimated from the distance to its J-th
// nearest neighbour.
const J = 10

// CoreMassFraction is the fraction of total mass enclosed by the core
// radius, carried from the reference RADIUS_MASS_PORCENTAGE constant.
const CoreMassFraction = 0.2

// G is the gravitational constant in the integrator's internal units.
const G = 1.0

// KineticEnergy returns Σ ½m_i|v_i|², relics included (they contribute
// zero since their mass was zeroed out at multiple-system creation).
func KineticEnergy(s *body.Store) float64 {
	ke := 0.0
	for i := 0; i < s.N; i++ {
		ke += 0.5 * s.M[i] * s.V[i].Norm2()
	}
	return ke
}

// PotentialEnergy returns the unsoftened pairwise potential energy
// Σ_{i<j} −G·m_i·m_j/|r_ij|. This is a diagnostic quantity only: the
// force kernel itself always uses Plummer softening, but energy
// reporting uses the true (unsoftened) potential so conservation checks
// aren't hiding behind an artificial softening floor.
func PotentialEnergy(s *body.Store) float64 {
	pe := 0.0
	for i := 0; i < s.N; i++ {
		if s.M[i] == 0 {
			continue
		}
		for j := i + 1; j < s.N; j++ {
			if s.M[j] == 0 {
				continue
			}
			r := s.R[j].Sub(s.R[i]).Norm()
			if r == 0 {
				continue
			}
			pe -= G * s.M[i] * s.M[j] / r
		}
	}
	return pe
}

// TotalEnergy is KineticEnergy + PotentialEnergy, plus any energy held
// in active multiple systems (their internal orbital energy is not
// otherwise visible to the direct-sum potential once a pair has been
// replaced by its CoM and a relic).
func TotalEnergy(s *body.Store, multipleSystemEnergy float64) float64 {
	return KineticEnergy(s) + PotentialEnergy(s) + multipleSystemEnergy
}

// CenterOfDensity returns the density-weighted mean position, following
// NbodyUtils::get_center_of_density: for each particle, estimate a local
// number density from the distance to its J-th nearest neighbour, then
// average positions weighted by that density. The per-particle density
// estimates (each an O(N) neighbour scan) are fanned out across workers
// goroutines using the same jobs-channel/sync.WaitGroup partition as
// force.Kernel.Parallel, since each particle only ever writes its own
// result slot.
func CenterOfDensity(s *body.Store, workers int) vec.Vec3 {
	live := make([]int, 0, s.N)
	for i := 0; i < s.N; i++ {
		if s.M[i] != 0 {
			live = append(live, i)
		}
	}

	rhos := make([]float64, len(live))
	if workers <= 1 || len(live) < workers*2 {
		for k, i := range live {
			rhos[k] = densityAt(s, i)
		}
	} else {
		type job struct{ k, i int }
		jobs := make(chan job, len(live))
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for jb := range jobs {
					rhos[jb.k] = densityAt(s, jb.i)
				}
			}()
		}
		for k, i := range live {
			jobs <- job{k, i}
		}
		close(jobs)
		wg.Wait()
	}

	var num vec.Vec3
	denom := 0.0
	for k, i := range live {
		rho := rhos[k]
		if rho == 0 {
			continue
		}
		num = num.MulAdd(s.R[i], rho)
		denom += rho
	}
	if denom == 0 {
		return vec.Vec3{}
	}
	return num.Scale(1 / denom)
}

// densityAt estimates particle i's local number density from the
// distance to its J-th nearest neighbour: ρ_i = (J−1)·m_i /
// ((4π/3)·d_{i,J}³), following spec section 4.6 and
// NbodyUtils::get_center_of_density's `aa = (J-1) * ns->h_r[i].w`. J
// itself counts neighbours *through* the J-th one; the estimator's
// weight is J−1, the number of neighbours strictly inside it.
func densityAt(s *body.Store, i int) float64 {
	d := nthNeighbourDistance(s, i, J)
	if d == 0 {
		return 0
	}
	return float64(J-1) * s.M[i] / ((4.0 / 3.0) * math.Pi * d * d * d)
}

// nthNeighbourDistance returns the distance from particle i to its n-th
// nearest neighbour (1-indexed; n=1 is the closest other particle).
func nthNeighbourDistance(s *body.Store, i, n int) float64 {
	dists := make([]float64, 0, s.N-1)
	for k := 0; k < s.N; k++ {
		if k == i || s.M[k] == 0 {
			continue
		}
		dists = append(dists, s.R[k].Sub(s.R[i]).Norm())
	}
	if n > len(dists) {
		n = len(dists)
	}
	if n == 0 {
		return 0
	}
	sort.Float64s(dists)
	return dists[n-1]
}

// radialSort returns the live (nonzero-mass) particle indices sorted by
// distance from center, alongside their distances. The distance
// computation is fanned out across workers goroutines the same way
// CenterOfDensity's density estimates are; the final sort is inherently
// sequential.
func radialSort(s *body.Store, center vec.Vec3, workers int) ([]int, []float64) {
	idx := make([]int, 0, s.N)
	for i := 0; i < s.N; i++ {
		if s.M[i] != 0 {
			idx = append(idx, i)
		}
	}

	dist := make([]float64, len(idx))
	if workers <= 1 || len(idx) < workers*2 {
		for k, i := range idx {
			dist[k] = s.R[i].Sub(center).Norm()
		}
	} else {
		type job struct{ k, i int }
		jobs := make(chan job, len(idx))
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for jb := range jobs {
					dist[jb.k] = s.R[jb.i].Sub(center).Norm()
				}
			}()
		}
		for k, i := range idx {
			jobs <- job{k, i}
		}
		close(jobs)
		wg.Wait()
	}

	sort.Sort(byDistance{idx, dist})
	return idx, dist
}

type byDistance struct {
	idx  []int
	dist []float64
}

func (b byDistance) Len() int           { return len(b.idx) }
func (b byDistance) Less(i, j int) bool { return b.dist[i] < b.dist[j] }
func (b byDistance) Swap(i, j int) {
	b.idx[i], b.idx[j] = b.idx[j], b.idx[i]
	b.dist[i], b.dist[j] = b.dist[j], b.dist[i]
}

// enclosingRadius returns the smallest radius, measured from center,
// whose enclosed mass first reaches targetMass.
func enclosingRadius(s *body.Store, center vec.Vec3, targetMass float64, workers int) float64 {
	idx, dist := radialSort(s, center, workers)
	cum := 0.0
	for k, i := range idx {
		cum += s.M[i]
		if cum >= targetMass {
			return dist[k]
		}
	}
	if len(dist) == 0 {
		return 0
	}
	return dist[len(dist)-1]
}

// HalfMassRadius returns the smallest radius around center enclosing at
// least half the system's total (live) mass.
func HalfMassRadius(s *body.Store, center vec.Vec3, workers int) float64 {
	return enclosingRadius(s, center, 0.5*s.TotalMass(), workers)
}

// CoreRadius returns the smallest radius around center enclosing at
// least CoreMassFraction of the system's total (live) mass.
func CoreRadius(s *body.Store, center vec.Vec3, workers int) float64 {
	return enclosingRadius(s, center, CoreMassFraction*s.TotalMass(), workers)
}

// LagrangeRadii returns, for each mass fraction in fractions, the
// smallest radius around center enclosing at least that fraction of the
// system's total (live) mass.
func LagrangeRadii(s *body.Store, center vec.Vec3, fractions []float64, workers int) []float64 {
	total := s.TotalMass()
	out := make([]float64, len(fractions))
	for k, f := range fractions {
		out[k] = enclosingRadius(s, center, f*total, workers)
	}
	return out
}

// VirialRadius returns R_v = −G·M²/(4E), the radius at which a
// single-mass virialized system of total mass M and total energy E
// (E<0, bound) would sit.
func VirialRadius(totalMass, totalEnergy float64) float64 {
	if totalEnergy >= 0 {
		return math.Inf(1)
	}
	return -G * totalMass * totalMass / (4 * totalEnergy)
}

// CrossingTime returns 2√2·√(R_v³/(G·M)), the characteristic time for a
// particle to cross the system at the virial radius.
func CrossingTime(virialRadius, totalMass float64) float64 {
	if totalMass == 0 {
		return math.Inf(1)
	}
	ut := math.Sqrt(virialRadius * virialRadius * virialRadius / (G * totalMass))
	return 2 * math.Sqrt2 * ut
}

// CloseEncounterRadius returns 4·R_v/N, the length scale the encounter
// detector uses to flag a candidate close pair.
func CloseEncounterRadius(virialRadius float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return 4 * virialRadius / float64(n)
}

// HalfMassRelaxationTime returns the two-body relaxation time at the
// half-mass radius, following Spitzer's formula as used by
// NbodyUtils::get_half_mass_relaxation_time:
//
//	t_rh = 0.138 · sqrt(N·R_h³/(G·(M/N))) / ln(0.11·N)
func HalfMassRelaxationTime(n int, halfMassRadius, totalMass float64) float64 {
	if n <= 1 || totalMass == 0 {
		return math.Inf(1)
	}
	meanMass := totalMass / float64(n)
	a := math.Sqrt(float64(n) * halfMassRadius * halfMassRadius * halfMassRadius / (G * meanMass))
	b := 1 / math.Log(0.11*float64(n))
	return 0.138 * a * b
}
