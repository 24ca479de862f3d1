// Package multiple implements the KS/Kepler-regularized sub-integrator
// for bound two-body systems: a binary is pulled out of the direct sum,
// represented in center-of-mass/relative coordinates, and advanced by
// its own time-symmetric 4th-order Hermite predictor-corrector between
// global synchronizations. Grounded on the reference integrator's
// MultipleSystem creation/termination block in
// Hermite4CPU_integration.cpp and the Kepler-iteration constants in
// kepler/include/common.hpp.
package multiple

import (
	"fmt"
	"math"

	"github.com/cmfredes/hermite4/body"
	"github.com/cmfredes/hermite4/force"
	"github.com/cmfredes/hermite4/hermite"
	"github.com/cmfredes/hermite4/vec"
)

const (
	// KeplerIte caps the time-symmetric correction iteration.
	KeplerIte = 50
	// DelE is the energy-convergence tolerance for bound (elliptical)
	// internal states.
	DelE = 9.0e-16
	// DelEHyp is the energy-convergence tolerance for unbound
	// (hyperbolic) internal excursions.
	DelEHyp = 2.0e-15
	// G is the gravitational constant in the integrator's internal units.
	G = 1.0
)

// System is one regularized binary: two member particles' state
// relative to their center of mass, plus the internal clock and step
// that drive their own sub-cycled integration. Primary and Secondary
// are slot indices into the owning body.Store, never pointers, so
// multiple systems stay index-addressable with no reference cycles.
type System struct {
	Primary, Secondary int
	M0, M1             float64

	R0, V0, A0, J0, A2_0, A3_0 vec.Vec3
	R1, V1, A1, J1, A2_1, A3_1 vec.Vec3

	// ATidal0/JTidal0 and ATidal1/JTidal1 are the external tidal
	// acceleration/jerk on each member from every particle outside the
	// system, evaluated once per global synchronization (see Advance) and
	// held fixed across that synchronization's internal sub-steps.
	ATidal0, JTidal0 vec.Vec3
	ATidal1, JTidal1 vec.Vec3

	T, Dt float64

	E0           float64
	Work         float64
	Pathological bool
}

// NewSystem creates a multiple system from particles i (primary) and j
// (secondary) in s, following the reference's create_ghost_particle /
// adjust_particles / evaluation / init_timestep sequence:
//
//  1. compute the CoM position/velocity and each member's offset from it;
//  2. write the CoM into the primary slot with the combined mass;
//  3. mask the secondary slot to zero mass at the CoM position;
//  4. evaluate the internal one-on-one pair force (no external
//     neighbours at this first call);
//  5. pick the initial internal step from Aarseth's η_S formula;
//  6. record E0.
func NewSystem(s *body.Store, kernel *force.Kernel, i, j int, etaS float64) (*System, error) {
	if s.M[i] == 0 || s.M[j] == 0 {
		return nil, fmt.Errorf("multiple: particle %d or %d is already a relic", i, j)
	}

	m0, m1 := s.M[i], s.M[j]
	mtot := m0 + m1

	rc := s.R[i].Scale(m0 / mtot).Add(s.R[j].Scale(m1 / mtot))
	vc := s.V[i].Scale(m0 / mtot).Add(s.V[j].Scale(m1 / mtot))

	dr0 := s.R[i].Sub(rc)
	dv0 := s.V[i].Sub(vc)
	dr1 := s.R[j].Sub(rc)
	dv1 := s.V[j].Sub(vc)

	internal := force.State{
		R:       []vec.Vec3{dr0, dr1},
		V:       []vec.Vec3{dv0, dv1},
		M:       []float64{m0, m1},
		RSphere: []float64{0, 0},
	}
	f0 := kernel.One(internal, 0)
	f1 := kernel.One(internal, 1)

	sys := &System{
		Primary: i, Secondary: j,
		M0: m0, M1: m1,
		R0: dr0, V0: dv0, A0: f0.A, J0: f0.J,
		R1: dr1, V1: dv1, A1: f1.A, J1: f1.J,
		T: s.T[i],
	}
	aRel, jRel := sys.relativeAJ()
	sys.Dt = hermite.InitialStep(aRel, jRel, etaS)
	sys.E0 = sys.Energy()

	// Write the CoM into the primary slot and mask the secondary.
	s.M[i], s.R[i], s.V[i] = mtot, rc, vc
	s.M[j], s.R[j], s.V[j] = 0, rc, vc

	return sys, nil
}

func (sys *System) relativeAJ() (vec.Vec3, vec.Vec3) {
	return sys.A1.Sub(sys.A0), sys.J1.Sub(sys.J0)
}

// Energy returns the internal two-body energy: kinetic (about the CoM)
// plus unsoftened potential of the pair.
func (sys *System) Energy() float64 {
	return energyAt(sys.R0, sys.V0, sys.R1, sys.V1, sys.M0, sys.M1)
}

func energyAt(r0, v0, r1, v1 vec.Vec3, m0, m1 float64) float64 {
	ke := 0.5*m0*v0.Norm2() + 0.5*m1*v1.Norm2()
	r := r1.Sub(r0).Norm()
	pe := -G * m0 * m1 / r
	return ke + pe
}

// Separation returns the current relative distance between members.
func (sys *System) Separation() float64 {
	return sys.R1.Sub(sys.R0).Norm()
}

// Advance sub-cycles the internal Hermite integration until the
// system's internal time reaches itime, the next global synchronization
// time. Before sub-cycling, it evaluates the tidal acceleration/jerk
// each member feels from every particle outside the system, each at that
// member's own position — external perturbation enters only as these
// tidal terms, evaluated once per call and held fixed across the
// sub-steps within it, so the relative motion feels only their
// difference. Each sub-step is then refined by re-evaluating the
// internal force at the previous iterate's corrected state (an iterated
// corrector, PEC^n) until the relative change in internal energy falls
// below DelE (bound) or DelEHyp (unbound), capped at KeplerIte
// iterations; failing to converge within the cap sets Pathological but
// still commits the last iterate, per the reference's accept-and-flag
// policy.
func (sys *System) Advance(store *body.Store, itime, etaN float64, kernel *force.Kernel) {
	sys.evaluateTidal(store, kernel)

	for sys.T < itime {
		h := sys.Dt
		if sys.T+h > itime {
			h = itime - sys.T
		}
		if h <= 0 {
			break
		}
		sys.step(h, etaN, kernel)
	}
}

// evaluateTidal computes the acceleration/jerk each member feels from
// every live particle outside the system, at the members' true
// (CoM-relative) positions rather than at the CoM itself. It does so by
// briefly overwriting the primary/secondary slots in store with the
// members' absolute state and reusing kernel.One, then restoring store
// exactly — the same one-on-one evaluator NewSystem and step already
// use for the internal pair force, just pointed outward instead of at
// the other member. The primary's own mass is excluded as a source when
// probing the secondary's location (and vice versa is automatic, since
// the secondary's slot already holds zero mass), so neither member's
// gravity leaks into the other's tidal term.
func (sys *System) evaluateTidal(store *body.Store, kernel *force.Kernel) {
	rc, vc := store.R[sys.Primary], store.V[sys.Primary]
	origRPrimary, origVPrimary := store.R[sys.Primary], store.V[sys.Primary]
	origRSecondary, origVSecondary := store.R[sys.Secondary], store.V[sys.Secondary]
	origMPrimary := store.M[sys.Primary]

	store.R[sys.Primary] = rc.Add(sys.R0)
	store.V[sys.Primary] = vc.Add(sys.V0)
	store.R[sys.Secondary] = rc.Add(sys.R1)
	store.V[sys.Secondary] = vc.Add(sys.V1)

	state := force.State{R: store.R, V: store.V, M: store.M, RSphere: store.RSphere}

	f0 := kernel.One(state, sys.Primary)

	store.M[sys.Primary] = 0
	f1 := kernel.One(state, sys.Secondary)
	store.M[sys.Primary] = origMPrimary

	store.R[sys.Primary], store.V[sys.Primary] = origRPrimary, origVPrimary
	store.R[sys.Secondary], store.V[sys.Secondary] = origRSecondary, origVSecondary

	sys.ATidal0, sys.JTidal0 = f0.A, f0.J
	sys.ATidal1, sys.JTidal1 = f1.A, f1.J
}

func (sys *System) step(h, etaN float64, kernel *force.Kernel) {
	r0, v0, a0, j0 := sys.R0, sys.V0, sys.A0, sys.J0
	r1, v1, a1, j1 := sys.R1, sys.V1, sys.A1, sys.J1

	h2, h3 := h*h, h*h*h
	predR0 := r0.MulAdd(v0, h).MulAdd(a0, h2/2).MulAdd(j0, h3/6)
	predV0 := v0.MulAdd(a0, h).MulAdd(j0, h2/2)
	predR1 := r1.MulAdd(v1, h).MulAdd(a1, h2/2).MulAdd(j1, h3/6)
	predV1 := v1.MulAdd(a1, h).MulAdd(j1, h2/2)

	eBefore := energyAt(r0, v0, r1, v1, sys.M0, sys.M1)

	var c0, c1 hermite.Correction
	var na0, nj0, na1, nj1 vec.Vec3
	converged := false

	for iter := 0; iter < KeplerIte; iter++ {
		state := force.State{
			R:       []vec.Vec3{predR0, predR1},
			V:       []vec.Vec3{predV0, predV1},
			M:       []float64{sys.M0, sys.M1},
			RSphere: []float64{0, 0},
		}
		f0 := kernel.One(state, 0)
		f1 := kernel.One(state, 1)
		na0, nj0 = f0.A.Add(sys.ATidal0), f0.J.Add(sys.JTidal0)
		na1, nj1 = f1.A.Add(sys.ATidal1), f1.J.Add(sys.JTidal1)

		c0 = hermite.Correct(r0, v0, a0, j0, na0, nj0, h)
		c1 = hermite.Correct(r1, v1, a1, j1, na1, nj1, h)

		eAfter := energyAt(c0.R, c0.V, c1.R, c1.V, sys.M0, sys.M1)
		tol := DelE
		if eAfter > 0 {
			tol = DelEHyp
		}
		rel := math.Abs((eAfter - eBefore) / eBefore)

		predR0, predV0 = c0.R, c0.V
		predR1, predV1 = c1.R, c1.V
		eBefore = eAfter

		if rel < tol {
			converged = true
			break
		}
	}
	if !converged {
		sys.Pathological = true
	}

	eFinal := energyAt(c0.R, c0.V, c1.R, c1.V, sys.M0, sys.M1)
	sys.Work += eFinal - energyAt(r0, v0, r1, v1, sys.M0, sys.M1)

	sys.R0, sys.V0, sys.A0, sys.J0, sys.A2_0, sys.A3_0 = c0.R, c0.V, na0, nj0, c0.A2, c0.A3
	sys.R1, sys.V1, sys.A1, sys.J1, sys.A2_1, sys.A3_1 = c1.R, c1.V, na1, nj1, c1.A2, c1.A3
	sys.T += h

	aRel, jRel := sys.relativeAJ()
	a2Rel, a3Rel := sys.A2_1.Sub(sys.A2_0), sys.A3_1.Sub(sys.A3_0)
	next := hermite.NextStep(aRel, jRel, a2Rel, a3Rel, h, etaN)
	sys.Dt = hermite.Quantize(next, h, sys.T)
}

// Terminate restores both member particles into their global slots —
// mass, position = CoM + relative offset, velocity likewise, forces
// inherited from the primary's current force — and forces both slots'
// step to D_TIME_MIN so they resync cleanly with the rest of the
// system, following the reference's termination block exactly. The
// caller is responsible for removing sys from whatever collection of
// active systems it is tracked in.
func (sys *System) Terminate(s *body.Store) {
	rc, vc := s.R[sys.Primary], s.V[sys.Primary]
	aCom, jCom := s.A[sys.Primary], s.J[sys.Primary]

	s.R[sys.Secondary] = rc.Add(sys.R1)
	s.V[sys.Secondary] = vc.Add(sys.V1)
	s.M[sys.Secondary] = sys.M1
	s.A[sys.Secondary] = aCom.Add(sys.A1)
	s.J[sys.Secondary] = jCom.Add(sys.J1)
	s.OldA[sys.Secondary] = s.A[sys.Secondary]
	s.OldJ[sys.Secondary] = s.J[sys.Secondary]
	s.T[sys.Secondary] = s.T[sys.Primary]
	s.Dt[sys.Secondary] = hermite.DTimeMin

	s.R[sys.Primary] = rc.Add(sys.R0)
	s.V[sys.Primary] = vc.Add(sys.V0)
	s.M[sys.Primary] = sys.M0
	s.A[sys.Primary] = aCom.Add(sys.A0)
	s.J[sys.Primary] = jCom.Add(sys.J0)
	s.OldA[sys.Primary] = s.A[sys.Primary]
	s.OldJ[sys.Primary] = s.J[sys.Primary]
	s.Dt[sys.Primary] = hermite.DTimeMin
}
