// Package force implements the direct-summation gravity kernel: Plummer-
// softened acceleration and jerk, and the neighbour-list side effect the
// encounter detector consumes.
package force

import (
	"math"
	"sync"

	"github.com/cmfredes/hermite4/vec"
)

// State is the minimal read-only view the kernel needs of a particle
// ensemble: positions, velocities, masses and neighbour-sphere radii,
// all indexed the same way. It can be built directly from body.Store's
// arrays, and the Hermite predictor builds one for predicted (not yet
// corrected) positions, without the kernel needing to know about either.
type State struct {
	R, V    []vec.Vec3
	M       []float64
	RSphere []float64
}

// Kernel evaluates acceleration and jerk by direct summation over all
// other particles, flagging neighbours within each target's r_s,i. It
// holds no per-ensemble state, only the physical constants, so a single
// Kernel serves the global direct sum and every multiple system's
// internal pair force.
type Kernel struct {
	// Epsilon2 is the Plummer softening length squared, ε².
	Epsilon2 float64

	// NeighbourTarget is the neighbour-list length the per-particle
	// sphere radius is nudged toward after each evaluation. Zero
	// disables neighbour-sphere resizing.
	NeighbourTarget int
}

// NewKernel returns a Kernel with the given softening.
func NewKernel(epsilon2 float64, neighbourTarget int) *Kernel {
	return &Kernel{Epsilon2: epsilon2, NeighbourTarget: neighbourTarget}
}

// Result holds the per-target outputs of one force evaluation.
type Result struct {
	A, J       vec.Vec3
	Neighbours []int
}

// One evaluates acceleration and jerk on a single target i against every
// source j != i in st. A source with zero mass never contributes; i
// itself must not be a zero-mass relic, which the caller guarantees by
// excluding relics from the active set.
func (k *Kernel) One(st State, i int) Result {
	var a, j vec.Vec3
	neighbours := make([]int, 0, k.neighbourCap())

	ri, vi := st.R[i], st.V[i]
	rs2 := st.RSphere[i] * st.RSphere[i]

	for src := 0; src < len(st.R); src++ {
		if src == i || st.M[src] == 0 {
			continue
		}

		rij := st.R[src].Sub(ri)
		vij := st.V[src].Sub(vi)

		r2 := rij.Norm2()
		if r2 <= rs2 {
			neighbours = append(neighbours, src)
		}

		r2s := r2 + k.Epsilon2
		invR3 := 1.0 / (r2s * math.Sqrt(r2s))
		invR5 := invR3 / r2s

		m := st.M[src]
		a = a.MulAdd(rij, m*invR3)

		rvDot := rij.Dot(vij)
		jTerm := vij.Scale(m * invR3).Sub(rij.Scale(3 * rvDot * m * invR5))
		j = j.Add(jTerm)
	}

	return Result{A: a, J: j, Neighbours: neighbours}
}

func (k *Kernel) neighbourCap() int {
	if k.NeighbourTarget > 0 {
		return k.NeighbourTarget * 2
	}
	return 8
}

// Evaluate runs One over every id in active sequentially, writing
// results into outA/outJ (which must be sized to at least max(active)+1)
// and resizing st.RSphere toward NeighbourTarget.
func (k *Kernel) Evaluate(st State, active []int, outA, outJ []vec.Vec3) map[int][]int {
	neighbours := make(map[int][]int, len(active))
	for _, i := range active {
		res := k.One(st, i)
		outA[i], outJ[i] = res.A, res.J
		neighbours[i] = res.Neighbours
		k.resize(st, i, len(res.Neighbours))
	}
	return neighbours
}

// Parallel fans the active set out across workers goroutines using a
// jobs channel and a sync.WaitGroup, the same disjoint-partition
// pattern used for pairwise force accumulation in this module's
// reference concurrent N-body code: each worker owns the targets it
// pulls off the channel and only writes to those slots, so no locking
// is needed on the shared state.
func (k *Kernel) Parallel(st State, active []int, outA, outJ []vec.Vec3, workers int) map[int][]int {
	if workers <= 1 || len(active) < workers*2 {
		return k.Evaluate(st, active, outA, outJ)
	}

	type job struct {
		idx int
		i   int
	}
	results := make([]Result, len(active))

	jobs := make(chan job, len(active))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for jb := range jobs {
				results[jb.idx] = k.One(st, jb.i)
			}
		}()
	}

	for idx, i := range active {
		jobs <- job{idx, i}
	}
	close(jobs)
	wg.Wait()

	neighbours := make(map[int][]int, len(active))
	for idx, i := range active {
		outA[i], outJ[i] = results[idx].A, results[idx].J
		neighbours[i] = results[idx].Neighbours
		k.resize(st, i, len(results[idx].Neighbours))
	}
	return neighbours
}

// resize nudges the neighbour sphere for particle i geometrically toward
// NeighbourTarget: too many neighbours shrinks it, too few grows it.
func (k *Kernel) resize(st State, i, count int) {
	if k.NeighbourTarget <= 0 {
		return
	}
	switch {
	case count > k.NeighbourTarget:
		st.RSphere[i] *= 0.8
	case count < k.NeighbourTarget:
		st.RSphere[i] *= 1.25
	}
}
