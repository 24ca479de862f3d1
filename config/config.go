// Package config reads the integrator's scalar configuration from an
// INI-style file via gopkg.in/gcfg.v1, the same library and
// wrapper-struct/Valid*()/CheckInit calling convention the teacher uses
// for its own [Density]/[ConvertSnapshot]/[Render] sections.
package config

import (
	"fmt"

	"gopkg.in/gcfg.v1"
)

// SimulationConfig holds every scalar the core integrator needs beyond
// the initial conditions themselves.
type SimulationConfig struct {
	// Required
	Input           string
	IntegrationTime float64

	// Optional, defaulted by DefaultSimulationWrapper
	Epsilon2             float64
	EtaS                 float64
	EtaN                 float64
	NeighbourTarget      int
	MaxUnderflowWarnings int
	Threads              int

	PrintAll      bool
	PrintLagrange bool
	LagrangeRatio []float64

	LogFile          string
	EnergyLogFile    string
	LagrangePlotFile string
}

// SimulationWrapper is the gcfg root: its single [Simulation] section
// maps onto SimulationConfig.
type SimulationWrapper struct {
	Simulation SimulationConfig
}

// DefaultSimulationWrapper returns a wrapper pre-populated with the
// integrator's default constants, ready to be overwritten by
// gcfg.ReadFileInto.
func DefaultSimulationWrapper() *SimulationWrapper {
	con := SimulationConfig{
		Epsilon2:             1e-8,
		EtaS:                 0.01,
		EtaN:                 0.01,
		NeighbourTarget:      14,
		MaxUnderflowWarnings: 3,
		Threads:              0, // 0 means runtime.NumCPU() at startup
		LagrangeRatio:        []float64{0.1, 0.25, 0.5, 0.75, 0.9},
	}
	return &SimulationWrapper{con}
}

// Load reads fname into a SimulationConfig seeded with defaults and
// validates it, following the teacher's gcfg.ReadFileInto +
// Valid*()/CheckInit pattern.
func Load(fname string) (*SimulationConfig, error) {
	wrap := DefaultSimulationWrapper()
	if err := gcfg.ReadFileInto(wrap, fname); err != nil {
		return nil, err
	}
	con := &wrap.Simulation
	if err := con.CheckInit(); err != nil {
		return nil, err
	}
	return con, nil
}

func (con *SimulationConfig) ValidInput() bool { return con.Input != "" }

func (con *SimulationConfig) ValidIntegrationTime() bool {
	return con.IntegrationTime > 0
}

func (con *SimulationConfig) ValidEpsilon2() bool { return con.Epsilon2 > 0 }

func (con *SimulationConfig) ValidEtaS() bool { return con.EtaS > 0 }

func (con *SimulationConfig) ValidEtaN() bool { return con.EtaN > 0 }

func (con *SimulationConfig) ValidNeighbourTarget() bool {
	return con.NeighbourTarget > 0
}

func (con *SimulationConfig) ValidLogFile() bool { return con.LogFile != "" }

func (con *SimulationConfig) ValidEnergyLogFile() bool {
	return con.EnergyLogFile != ""
}

func (con *SimulationConfig) ValidLagrangePlotFile() bool {
	return con.LagrangePlotFile != ""
}

// CheckInit validates the required fields and the bounds of every
// optional scalar that DefaultSimulationWrapper doesn't already fix.
func (con *SimulationConfig) CheckInit() error {
	if !con.ValidInput() {
		return fmt.Errorf("config: 'Input' must name an initial-conditions file.")
	}
	if !con.ValidIntegrationTime() {
		return fmt.Errorf("config: 'IntegrationTime' must be positive.")
	}
	if !con.ValidEpsilon2() {
		return fmt.Errorf("config: 'Epsilon2' must be positive, got %g.", con.Epsilon2)
	}
	if !con.ValidEtaS() {
		return fmt.Errorf("config: 'EtaS' must be positive, got %g.", con.EtaS)
	}
	if !con.ValidEtaN() {
		return fmt.Errorf("config: 'EtaN' must be positive, got %g.", con.EtaN)
	}
	if !con.ValidNeighbourTarget() {
		return fmt.Errorf("config: 'NeighbourTarget' must be positive, got %d.", con.NeighbourTarget)
	}
	if con.MaxUnderflowWarnings < 0 {
		return fmt.Errorf(
			"config: 'MaxUnderflowWarnings' must not be negative, got %d.",
			con.MaxUnderflowWarnings,
		)
	}
	if con.Threads < 0 {
		return fmt.Errorf("config: 'Threads' must not be negative, got %d.", con.Threads)
	}
	for _, f := range con.LagrangeRatio {
		if f <= 0 || f > 1 {
			return fmt.Errorf("config: 'LagrangeRatio' entries must be in (0, 1], got %g.", f)
		}
	}
	if con.PrintLagrange && len(con.LagrangeRatio) == 0 {
		return fmt.Errorf("config: 'PrintLagrange' requires at least one 'LagrangeRatio'.")
	}
	return nil
}

// ExampleSimulationFile is printed by the CLI's -ExampleConfig flag.
const ExampleSimulationFile = `[Simulation]

#######################
# Required Parameters #
#######################

# Path to the initial-conditions file (mass/position/velocity per line).
Input = path/to/initial_conditions.txt

# Simulation stop time, in N-body units.
IntegrationTime = 10.0

#######################
# Optional Parameters #
#######################

# Plummer softening length squared.
# Epsilon2 = 1e-8

# Step-selection parameters from Aarseth / Makino & Aarseth (1992).
# EtaS = 0.01
# EtaN = 0.01

# Target neighbour-list length the force kernel's neighbour sphere
# trends toward.
# NeighbourTarget = 14

# How many times a single particle may underflow to D_TIME_MIN before
# a warning is surfaced to the log.
# MaxUnderflowWarnings = 3

# Worker goroutines for the force kernel and diagnostics scans.
# 0 uses runtime.NumCPU().
# Threads = 0

# Emit a full particle snapshot at every global synchronization.
# PrintAll = true

# Emit Lagrange radii at every global synchronization; requires at
# least one LagrangeRatio.
# PrintLagrange = true
# LagrangeRatio = 0.1
# LagrangeRatio = 0.25
# LagrangeRatio = 0.5
# LagrangeRatio = 0.75
# LagrangeRatio = 0.9

# Redirect log output to this file instead of stderr.
# LogFile = run.log

# Tabular energy-conservation log.
# EnergyLogFile = energy.tab

# Lagrange-radii-vs-time plot (PNG).
# LagrangePlotFile = lagrange.png
`
