// Package hermite implements the 4th-order Hermite predictor-corrector:
// the third-order Taylor prediction, the corrector's higher-derivative
// reconstruction, and the per-particle step-selection/quantization
// formula from Makino & Aarseth (1992), eq. 7.
package hermite

import (
	"math"

	"github.com/cmfredes/hermite4/body"
	"github.com/cmfredes/hermite4/force"
	"github.com/cmfredes/hermite4/vec"
)

const (
	// DTimeMin is the smallest allowed block time step, 2^-23.
	DTimeMin = 1.1920928955078125e-07
	// DTimeMax is the largest allowed block time step, 2^-3.
	DTimeMax = 0.125
)

// Predictor holds the third-order Taylor-predicted position and
// velocity for every particle in the ensemble, valid at one ITIME. It
// satisfies force.State together with the owning store's mass and
// neighbour-sphere arrays, so the force kernel can evaluate against
// predicted (not yet corrected) source positions.
type Predictor struct {
	R, V []vec.Vec3
}

// Predict computes r̃_i, ṽ_i for every particle in s at itime, using the
// third-order Taylor series in acceleration and jerk:
//
//	r̃_i = r_i + v_i·dt + a_i·dt²/2 + j_i·dt³/6
//	ṽ_i = v_i + a_i·dt + j_i·dt²/2
//
// with dt = itime - t_i. Zero-mass relics are predicted too (their stored
// position/velocity are set to their host's CoM at creation and never
// updated afterwards; since a zero mass contributes no force, predicting
// them is harmless and keeps array indexing uniform).
func Predict(s *body.Store, itime float64) *Predictor {
	p := &Predictor{R: make([]vec.Vec3, s.N), V: make([]vec.Vec3, s.N)}

	for i := 0; i < s.N; i++ {
		dt := itime - s.T[i]
		r, v, a, j := s.R[i], s.V[i], s.A[i], s.J[i]

		dt2 := dt * dt
		dt3 := dt2 * dt

		p.R[i] = r.MulAdd(v, dt).MulAdd(a, dt2/2).MulAdd(j, dt3/6)
		p.V[i] = v.MulAdd(a, dt).MulAdd(j, dt2/2)
	}
	return p
}

// State returns the force.State view of the predicted ensemble, reusing
// the given mass and neighbour-sphere arrays (which prediction never
// touches).
func (p *Predictor) State(mass, rSphere []float64) force.State {
	return force.State{R: p.R, V: p.V, M: mass, RSphere: rSphere}
}

// Correction is the result of correcting one active particle: the new
// position, velocity, and the reconstructed higher derivatives needed
// for the next step-size selection.
type Correction struct {
	R, V   vec.Vec3
	A2, A3 vec.Vec3
}

// Correct applies the 4th-order Hermite corrector to one active particle
// given its state at the start of the step (r0, v0), the old forces
// a0, j0, the newly evaluated forces a1, j1 (taken at the predicted
// state), and the step h = Δt_i. It reconstructs a^(2), a^(3) from the
// 3rd-order Hermite
// interpolation condition and applies the standard reordered corrector:
//
//	a⁽²⁾ = (−6(a0−a1) − h(4 j0 + 2 j1)) / h²
//	a⁽³⁾ = (12(a0−a1) + 6h(j0+j1)) / h³
//	v1 = v0 + (a0+a1)·h/2 + (j0−j1)·h²/12
//	r1 = r0 + (v0+v1)·h/2 + (a0−a1)·h²/12
func Correct(r0, v0 vec.Vec3, a0, j0, a1, j1 vec.Vec3, h float64) Correction {
	h2 := h * h
	h3 := h2 * h

	da := a0.Sub(a1)
	dj2 := j0.Scale(4).Add(j1.Scale(2))
	a2 := da.Scale(-6).Sub(dj2.Scale(h)).Scale(1 / h2)

	sj := j0.Add(j1)
	a3 := da.Scale(12).Add(sj.Scale(6 * h)).Scale(1 / h3)

	v1 := v0.MulAdd(a0.Add(a1), h/2).MulAdd(j0.Sub(j1), h2/12)
	r1 := r0.MulAdd(v0.Add(v1), h/2).MulAdd(a0.Sub(a1), h2/12)

	return Correction{R: r1, V: v1, A2: a2, A3: a3}
}

// InitialStep picks Δt_i at t=0 from Aarseth's η_S-style formula,
// Δt_i = η_S · |a|/|j|, quantized down to the nearest power of two in
// [DTimeMin, DTimeMax].
func InitialStep(a, j vec.Vec3, etaS float64) float64 {
	aNorm, jNorm := a.Norm(), j.Norm()
	if jNorm == 0 {
		return DTimeMax
	}
	dt := etaS * aNorm / jNorm
	return quantizeDown(dt)
}

// quantizeDown rounds dt down to the nearest power-of-two step in range.
func quantizeDown(dt float64) float64 {
	if dt <= DTimeMin {
		return DTimeMin
	}
	if dt >= DTimeMax {
		return DTimeMax
	}
	// k = floor(log2(DTimeMax/dt))  =>  DTimeMax / 2^k >= dt; halve once
	// if that overshoots dt.
	k := math.Floor(math.Log2(DTimeMax / dt))
	step := DTimeMax / math.Pow(2, k)
	if step > dt {
		step /= 2
	}
	if step < DTimeMin {
		step = DTimeMin
	}
	return step
}

// NextStep computes Δt_i^new from Makino & Aarseth (1992), eq. 7:
//
//	Δt_i^new = sqrt( η_N · (|a||a⁽²⁾_fwd| + |j|²) / (|j||a⁽³⁾| + |a⁽²⁾_fwd|²) )
//
// where a⁽²⁾_fwd = a⁽²⁾ + Δt_old·a⁽³⁾ is the forward-extrapolated second
// derivative at the end of the step, used only for step selection —
// distinct from the a⁽²⁾ returned by Correct, which is the value at the
// start of the step.
func NextStep(a, j, a2, a3 vec.Vec3, dtOld, etaN float64) float64 {
	a2fwd := a2.MulAdd(a3, dtOld)

	aNorm, jNorm := a.Norm(), j.Norm()
	a3Norm := a3.Norm()
	a2fwdNorm := a2fwd.Norm()

	num := etaN * (aNorm*a2fwdNorm + jNorm*jNorm)
	den := jNorm*a3Norm + a2fwdNorm*a2fwdNorm
	if den == 0 {
		return DTimeMax
	}
	return math.Sqrt(num / den)
}

// Quantize implements the block-step commensuration ladder: the new
// step is binned relative to the old one, then a doubling is only
// accepted if t is an exact multiple of 2·oldDt (so the particle's next
// due time still falls on a valid global synchronization point), and
// finally clamped to [DTimeMin, DTimeMax].
func Quantize(newDt, oldDt, t float64) float64 {
	r := newDt / oldDt

	var dt float64
	switch {
	case r <= 1.0/8:
		dt = DTimeMin
	case r <= 1.0/4:
		dt = oldDt / 8
	case r <= 1.0/2:
		dt = oldDt / 4
	case r <= 1:
		dt = oldDt / 2
	case r <= 2:
		dt = oldDt
	default:
		val := t / (2 * oldDt)
		if math.Ceil(val) == val {
			dt = 2 * oldDt
		} else {
			dt = oldDt
		}
	}

	if dt < DTimeMin {
		dt = DTimeMin
	} else if dt > DTimeMax {
		dt = DTimeMax
	}
	return dt
}
