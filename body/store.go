// Package body owns the per-particle state arrays that every other
// package in this module borrows from: position, velocity, the Hermite
// derivatives, local time/step, and the scalars the multiple-system
// sub-integrator needs to mask a relic out of the direct sum.
//
// Following the teacher's catalog.ParticleManager, storage is a
// struct-of-arrays rather than a slice-of-structs: the force kernel and
// the diagnostics scans touch one field across all N particles at a
// time, and a struct-of-arrays keeps those scans cache-friendly.
package body

import (
	"fmt"

	"github.com/cmfredes/hermite4/vec"
)

// Store owns every per-particle array. All arrays are allocated once,
// sized to N, at NewStore time; no particle is ever added or removed
// after that (relics are masked via zero mass, not deleted).
type Store struct {
	N int

	ID []int64
	M  []float64

	R, V       []vec.Vec3
	A, J       []vec.Vec3
	A2, A3     []vec.Vec3
	OldA, OldJ []vec.Vec3

	T, Dt    []float64
	RSphere  []float64

	// Underflow counts a particle's Dt quantizations that clamped to
	// D_TIME_MIN, used to rate-limit the warning in sim's error policy.
	Underflow []int
}

// Snapshot is an immutable, flat view of the store's physical state
// (mass/position/velocity only) suitable for handing to an initial
// condition loader or a snapshot sink, without exposing the live
// integrator arrays.
type Snapshot struct {
	ID []int64
	M  []float64
	R  []vec.Vec3
	V  []vec.Vec3
}

// NewStore allocates a Store for n particles. It does not populate any
// field besides ID (0..n-1) and N; callers seed M, R, V from an
// initial-conditions collaborator.
func NewStore(n int) (*Store, error) {
	if n <= 0 {
		return nil, fmt.Errorf("body: particle count must be positive, got %d", n)
	}

	s := &Store{
		N:         n,
		ID:        make([]int64, n),
		M:         make([]float64, n),
		R:         make([]vec.Vec3, n),
		V:         make([]vec.Vec3, n),
		A:         make([]vec.Vec3, n),
		J:         make([]vec.Vec3, n),
		A2:        make([]vec.Vec3, n),
		A3:        make([]vec.Vec3, n),
		OldA:      make([]vec.Vec3, n),
		OldJ:      make([]vec.Vec3, n),
		T:         make([]float64, n),
		Dt:        make([]float64, n),
		RSphere:   make([]float64, n),
		Underflow: make([]int, n),
	}
	for i := range s.ID {
		s.ID[i] = int64(i)
	}
	return s, nil
}

// FromSnapshot builds a Store from a fully-populated Snapshot, as
// produced by an initial-conditions collaborator.
func FromSnapshot(snap Snapshot) (*Store, error) {
	n := len(snap.M)
	if n == 0 {
		return nil, fmt.Errorf("body: snapshot has no particles")
	}
	if len(snap.R) != n || len(snap.V) != n {
		return nil, fmt.Errorf("body: snapshot arrays have mismatched lengths")
	}

	s, err := NewStore(n)
	if err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		if snap.M[i] < 0 {
			return nil, fmt.Errorf("body: particle %d has negative mass %g", i, snap.M[i])
		}
		if !finite3(snap.R[i]) || !finite3(snap.V[i]) {
			return nil, fmt.Errorf("body: particle %d has a non-finite position or velocity", i)
		}
		s.M[i] = snap.M[i]
		s.R[i] = snap.R[i]
		s.V[i] = snap.V[i]
		if len(snap.ID) == n {
			s.ID[i] = snap.ID[i]
		}
	}

	return s, nil
}

func finite3(v vec.Vec3) bool {
	for _, x := range v {
		if x != x || x > maxFinite || x < -maxFinite {
			return false
		}
	}
	return true
}

const maxFinite = 1.0e300

// TotalMass returns the sum of all particle masses, relics included
// (relics contribute 0 by construction).
func (s *Store) TotalMass() float64 {
	total := 0.0
	for _, m := range s.M {
		total += m
	}
	return total
}

// Snapshot copies the store's physical state out into a Snapshot.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		ID: make([]int64, s.N),
		M:  make([]float64, s.N),
		R:  make([]vec.Vec3, s.N),
		V:  make([]vec.Vec3, s.N),
	}
	copy(snap.ID, s.ID)
	copy(snap.M, s.M)
	copy(snap.R, s.R)
	copy(snap.V, s.V)
	return snap
}
