// Package schedule implements the block-time-step scheduler: it tracks
// each particle's next-due time and picks the next global
// synchronization time and active set, mirroring the reference
// integrator's find_particles_to_move / next_integration_time pair
// rather than maintaining a sorted structure — an O(N) scan per
// iteration is the right tradeoff at the particle counts this direct
// summation targets.
package schedule

import (
	"math"

	"github.com/cmfredes/hermite4/body"
)

// Scheduler owns the global clock, ATIME.
type Scheduler struct {
	ATIME float64
}

// NewScheduler returns a Scheduler with ATIME initialized to 0.
func NewScheduler() *Scheduler {
	return &Scheduler{ATIME: 0}
}

// NextTime returns the minimum, over all live (nonzero-mass) particles,
// of t_i + Δt_i — the next integration time ITIME. A zero-mass relic's
// clock is frozen at multiple-system creation time and excluded here:
// otherwise its stale t_i+Δt_i could keep winning the minimum forever,
// since nothing ever advances it while it is masked.
func NextTime(s *body.Store) float64 {
	next := math.Inf(1)
	for i := 0; i < s.N; i++ {
		if s.M[i] == 0 {
			continue
		}
		if cand := s.T[i] + s.Dt[i]; cand < next {
			next = cand
		}
	}
	return next
}

// ActiveSet returns every live particle index i whose t_i + Δt_i equals
// itime exactly — exact equality is guaranteed by the power-of-two step
// discipline, so no epsilon tolerance is needed or wanted here. Relics
// are excluded for the same reason NextTime excludes them.
func ActiveSet(s *body.Store, itime float64) []int {
	active := make([]int, 0, s.N)
	for i := 0; i < s.N; i++ {
		if s.M[i] != 0 && s.T[i]+s.Dt[i] == itime {
			active = append(active, i)
		}
	}
	return active
}

// Advance sets the scheduler's clock to itime. The caller determines
// itime via NextTime; Advance exists only so the clock's mutation is
// explicit and centralized rather than scattered across the main loop.
func (sch *Scheduler) Advance(itime float64) {
	sch.ATIME = itime
}
