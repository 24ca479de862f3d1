// Package report renders diagnostics for human consumption: a plain
// energy-conservation log and, optionally, a Lagrange-radii-vs-time
// plot via the teacher's own plotting library. Sinks are exercised by
// sim through the EnergySink/LagrangeSink/SnapshotSink interfaces so
// the core integrator never imports report directly.
package report

import (
	"fmt"
	"io"
	"os"

	plt "github.com/phil-mansfield/pyplot"

	"github.com/cmfredes/hermite4/body"
)

// EnergyLog writes one row per global synchronization: ITIME,
// iterations, interaction count, step count, and total energy. The
// column layout mirrors the reference integrator's
// print_energy_log(ITIME, iterations, interactions, nsteps, E) call.
type EnergyLog struct {
	w       io.Writer
	wrote   bool
	closeFn func() error
}

// NewEnergyLog opens fname for writing and returns an EnergyLog backed
// by it. Call Close when done.
func NewEnergyLog(fname string) (*EnergyLog, error) {
	f, err := os.Create(fname)
	if err != nil {
		return nil, fmt.Errorf("report: %v", err)
	}
	return &EnergyLog{w: f, closeFn: f.Close}, nil
}

// LogEnergy implements sim's EnergySink interface.
func (l *EnergyLog) LogEnergy(itime float64, iterations, nsteps int, interactions int64, e float64) {
	if !l.wrote {
		fmt.Fprintln(l.w, "# itime iterations interactions nsteps energy")
		l.wrote = true
	}
	fmt.Fprintf(l.w, "%.15e %d %d %d %.15e\n", itime, iterations, interactions, nsteps, e)
}

// Close flushes and releases the underlying file, if any.
func (l *EnergyLog) Close() error {
	if l.closeFn == nil {
		return nil
	}
	return l.closeFn()
}

// LagrangePlot accumulates (time, radii) samples and renders a
// Lagrange-radii-vs-time figure on Finish, using the same
// Figure/Plot/Title/Label/SaveFig call shape the teacher uses for its
// own radial-profile plots (los/main/main.go).
type LagrangePlot struct {
	fname     string
	fractions []float64
	times     []float64
	radii     [][]float64 // radii[k] is the time series for fractions[k]
}

// NewLagrangePlot returns a plot writer for the given mass fractions,
// to be saved to fname on Finish.
func NewLagrangePlot(fname string, fractions []float64) *LagrangePlot {
	return &LagrangePlot{
		fname:     fname,
		fractions: fractions,
		radii:     make([][]float64, len(fractions)),
	}
}

// LogLagrange implements sim's LagrangeSink interface.
func (p *LagrangePlot) LogLagrange(itime float64, radii []float64) {
	p.times = append(p.times, itime)
	for k, r := range radii {
		if k < len(p.radii) {
			p.radii[k] = append(p.radii[k], r)
		}
	}
}

// Finish renders the accumulated series to p.fname.
func (p *LagrangePlot) Finish() {
	if len(p.times) == 0 {
		return
	}
	plt.Figure()
	styles := []string{"k", "b", "r", "g", "m", "c", "y"}
	for k, series := range p.radii {
		style := styles[k%len(styles)]
		plt.Plot(p.times, series, style, plt.LW(2))
	}
	plt.Title("Lagrange radii")
	plt.XLabel("t", plt.FontSize(14))
	plt.YLabel("R", plt.FontSize(14))
	plt.SaveFig(p.fname)
}

// SnapshotWriter writes a full particle state dump at a chosen cadence
// as a plain text table (mass x y z vx vy vz), mirroring the column
// layout initcond.TableFile reads back in.
type SnapshotWriter struct {
	dir string
}

// NewSnapshotWriter returns a writer placing one file per
// synchronization under dir, named snapshot_<itime>.txt.
func NewSnapshotWriter(dir string) *SnapshotWriter {
	return &SnapshotWriter{dir: dir}
}

// WriteSnapshot implements sim's SnapshotSink interface.
func (sw *SnapshotWriter) WriteSnapshot(itime float64, snap body.Snapshot) {
	fname := fmt.Sprintf("%s/snapshot_%.6f.txt", sw.dir, itime)
	f, err := os.Create(fname)
	if err != nil {
		return
	}
	defer f.Close()

	fmt.Fprintln(f, "# mass x y z vx vy vz")
	for i := range snap.M {
		r, v := snap.R[i], snap.V[i]
		fmt.Fprintf(f, "%.15e %.15e %.15e %.15e %.15e %.15e %.15e\n",
			snap.M[i], r[0], r[1], r[2], v[0], v[1], v[2])
	}
}
