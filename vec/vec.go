// Package vec provides the three-dimensional vector algebra used by the
// force kernel, the Hermite integrator, and the diagnostics routines.
package vec

import "math"

// Vec3 is a three dimensional vector. Double precision throughout: the
// Hermite corrector differences nearly-equal accelerations and loses
// precision fast if the components are narrower than float64.
type Vec3 [3]float64

// Add returns v + w.
func (v Vec3) Add(w Vec3) Vec3 {
	return Vec3{v[0] + w[0], v[1] + w[1], v[2] + w[2]}
}

// Sub returns v - w.
func (v Vec3) Sub(w Vec3) Vec3 {
	return Vec3{v[0] - w[0], v[1] - w[1], v[2] - w[2]}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// Dot returns the scalar (inner) product of v and w.
func (v Vec3) Dot(w Vec3) float64 {
	return v[0]*w[0] + v[1]*w[1] + v[2]*w[2]
}

// Norm2 returns |v|^2.
func (v Vec3) Norm2() float64 {
	return v.Dot(v)
}

// Norm returns |v|.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Norm2())
}

// MulAdd returns v + w*s.
func (v Vec3) MulAdd(w Vec3, s float64) Vec3 {
	return Vec3{v[0] + w[0]*s, v[1] + w[1]*s, v[2] + w[2]*s}
}
