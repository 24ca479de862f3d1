// Package sim orchestrates the block-step Hermite integration: it wires
// body, force, hermite, schedule, encounter, multiple and diagnostics
// together into the same predict/force/correct/detect/spawn/terminate
// loop structure as the reference integrator's
// Hermite4CPU::integration(), and owns the worker-pool size the way
// gotetra.go's manager sets man.workers = runtime.NumCPU() and calls
// runtime.GOMAXPROCS accordingly.
package sim

import (
	"log"
	"runtime"

	"github.com/cmfredes/hermite4/body"
	"github.com/cmfredes/hermite4/config"
	"github.com/cmfredes/hermite4/diagnostics"
	"github.com/cmfredes/hermite4/encounter"
	"github.com/cmfredes/hermite4/force"
	"github.com/cmfredes/hermite4/hermite"
	"github.com/cmfredes/hermite4/multiple"
	"github.com/cmfredes/hermite4/schedule"
	"github.com/cmfredes/hermite4/vec"
)

// InitialConditions supplies the starting particle state.
type InitialConditions interface {
	Load() (body.Snapshot, error)
}

// EnergySink receives one row per global synchronization.
type EnergySink interface {
	LogEnergy(itime float64, iterations, nsteps int, interactions int64, e float64)
}

// SnapshotSink receives a full particle dump at a chosen cadence.
type SnapshotSink interface {
	WriteSnapshot(itime float64, snap body.Snapshot)
}

// LagrangeSink receives the Lagrange radii at each global synchronization.
type LagrangeSink interface {
	LogLagrange(itime float64, radii []float64)
}

// Simulation owns every piece of mutable state across the run: the
// particle store, the active multiple systems, the worker count, and
// the bookkeeping counters the energy log reports.
type Simulation struct {
	Store     *body.Store
	Kernel    *force.Kernel
	cfg       *config.SimulationConfig
	systems   []*multiple.System
	scheduler *schedule.Scheduler

	energySink    EnergySink
	snapshotSink  SnapshotSink
	lagrangeSink  LagrangeSink

	workers int
	rCl     float64

	iterations   int
	nsteps       int
	interactions int64
}

// New builds a Simulation from a validated config and an
// InitialConditions collaborator, computing the initial forces, the
// close-encounter radius, and each particle's first step exactly as
// the reference's init_acc_jrk / nbody_attributes / init_dt sequence
// does before entering the main loop.
func New(cfg *config.SimulationConfig, ic InitialConditions, energy EnergySink, snap SnapshotSink, lagrange LagrangeSink) (*Simulation, error) {
	snapIC, err := ic.Load()
	if err != nil {
		return nil, err
	}
	store, err := body.FromSnapshot(snapIC)
	if err != nil {
		return nil, err
	}

	workers := cfg.Threads
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	runtime.GOMAXPROCS(workers)

	s := &Simulation{
		Store:        store,
		Kernel:       force.NewKernel(cfg.Epsilon2, cfg.NeighbourTarget),
		cfg:          cfg,
		scheduler:    schedule.NewScheduler(),
		energySink:   energy,
		snapshotSink: snap,
		lagrangeSink: lagrange,
		workers:      workers,
	}

	active := make([]int, store.N)
	for i := range active {
		active[i] = i
	}
	state := force.State{R: store.R, V: store.V, M: store.M, RSphere: store.RSphere}
	s.Kernel.Parallel(state, active, store.A, store.J, s.workers)
	copy(store.OldA, store.A)
	copy(store.OldJ, store.J)

	e := diagnostics.TotalEnergy(store, 0)
	rv := diagnostics.VirialRadius(store.TotalMass(), e)
	s.rCl = diagnostics.CloseEncounterRadius(rv, store.N)
	for i := 0; i < store.N; i++ {
		store.RSphere[i] = s.rCl
		store.Dt[i] = hermite.InitialStep(store.A[i], store.J[i], cfg.EtaS)
	}

	if s.energySink != nil {
		s.energySink.LogEnergy(0, 0, 0, 0, e)
	}

	return s, nil
}

// Run advances the simulation until s.scheduler's global clock reaches
// cfg.IntegrationTime.
func (s *Simulation) Run() {
	for s.scheduler.ATIME < s.cfg.IntegrationTime {
		s.step()
	}
}

// step performs exactly one block-step iteration — predict, evaluate
// the active set, correct, detect encounters, spawn/advance/terminate
// multiple systems — and returns the new global time ITIME, mirroring
// the ordering in spec section 5 ("predict -> active-set force ->
// correct -> step reselect -> encounter detect -> multiple-system spawn
// -> advance clock"). s.scheduler is the sole owner of the global clock:
// NextTime/ActiveSet determine ITIME from the particle arrays, and
// scheduler.Advance commits it once the step's work is done.
func (s *Simulation) step() float64 {
	store := s.Store
	itime := schedule.NextTime(store)
	active := schedule.ActiveSet(store, itime)

	for _, i := range active {
		store.OldA[i], store.OldJ[i] = store.A[i], store.J[i]
	}

	for _, sys := range s.systems {
		sys.Advance(store, itime, s.cfg.EtaN, s.Kernel)
	}

	pred := hermite.Predict(store, itime)
	st := pred.State(store.M, store.RSphere)

	outA := make([]vec.Vec3, store.N)
	outJ := make([]vec.Vec3, store.N)
	copy(outA, store.A)
	copy(outJ, store.J)
	neighbours := s.Kernel.Parallel(st, active, outA, outJ, s.workers)

	member := s.membership()
	pairs := encounter.Detect(store, neighbours, s.rCl, member)

	for _, i := range active {
		h := store.Dt[i]
		c := hermite.Correct(store.R[i], store.V[i], store.OldA[i], store.OldJ[i], outA[i], outJ[i], h)
		store.R[i], store.V[i] = c.R, c.V
		store.A2[i], store.A3[i] = c.A2, c.A3
		store.A[i], store.J[i] = outA[i], outJ[i]
		store.T[i] += h

		next := hermite.NextStep(store.A[i], store.J[i], store.A2[i], store.A3[i], h, s.cfg.EtaN)
		newDt := hermite.Quantize(next, h, store.T[i])
		if newDt == hermite.DTimeMin {
			store.Underflow[i]++
			if store.Underflow[i] == s.cfg.MaxUnderflowWarnings+1 {
				log.Printf("sim: particle %d underflowed to D_TIME_MIN %d times", i, store.Underflow[i])
			}
		}
		store.Dt[i] = newDt
	}

	for _, p := range pairs {
		sys, err := multiple.NewSystem(store, s.Kernel, p.A, p.B, s.cfg.EtaS)
		if err == nil {
			s.systems = append(s.systems, sys)
		}
	}

	s.interactions += int64(len(active)) * int64(store.N)
	s.nsteps += len(active)
	s.iterations++

	live, liveActive := 0, 0
	for i := 0; i < store.N; i++ {
		if store.M[i] != 0 {
			live++
		}
	}
	for _, i := range active {
		if store.M[i] != 0 {
			liveActive++
		}
	}
	if liveActive == live {
		s.synchronize(itime)
	}

	s.scheduler.Advance(itime)
	return itime
}

func (s *Simulation) membership() encounter.Membership {
	return func(i int) bool {
		for _, sys := range s.systems {
			if sys.Primary == i || sys.Secondary == i {
				return true
			}
		}
		return false
	}
}

// synchronize runs at every iteration where every live (nonzero-mass)
// particle is active at once; zero-mass relics never become active and
// are not counted. It logs diagnostics and checks every multiple system for
// termination, following the reference's "if (nact == ns->n)" block.
func (s *Simulation) synchronize(itime float64) {
	store := s.Store

	msEnergy := 0.0
	for _, sys := range s.systems {
		msEnergy += sys.Energy()
	}
	e := diagnostics.TotalEnergy(store, msEnergy)

	if s.energySink != nil {
		s.energySink.LogEnergy(itime, s.iterations, s.nsteps, s.interactions, e)
	}
	if s.cfg.PrintAll && s.snapshotSink != nil {
		s.snapshotSink.WriteSnapshot(itime, store.Snapshot())
	}
	if s.cfg.PrintLagrange && s.lagrangeSink != nil {
		cod := diagnostics.CenterOfDensity(store, s.workers)
		radii := diagnostics.LagrangeRadii(store, cod, s.cfg.LagrangeRatio, s.workers)
		s.lagrangeSink.LogLagrange(itime, radii)
	}

	remaining := s.systems[:0]
	for _, sys := range s.systems {
		if sys.Separation() > s.rCl || sys.Pathological {
			sys.Terminate(store)
		} else {
			remaining = append(remaining, sys)
		}
	}
	s.systems = remaining
}

// Systems returns the currently active multiple systems, primarily for
// tests and diagnostics callers that want to inspect sub-integrator state.
func (s *Simulation) Systems() []*multiple.System {
	return s.systems
}
