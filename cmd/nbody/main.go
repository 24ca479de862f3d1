// Command nbody runs the direct-summation Hermite integrator from a
// [Simulation] config file, following the teacher's main/main.go
// flag-dispatch idiom: a single mode-selecting config flag, an
// -ExampleConfig printer, and log.Fatal on every boundary error.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/cmfredes/hermite4/config"
	"github.com/cmfredes/hermite4/initcond"
	"github.com/cmfredes/hermite4/report"
	"github.com/cmfredes/hermite4/sim"
)

func main() {
	var (
		configFile    string
		exampleConfig bool
	)

	flag.StringVar(
		&configFile, "Config", "",
		"Configuration file for the [Simulation] section.",
	)
	flag.BoolVar(
		&exampleConfig, "ExampleConfig", false,
		"Prints an example configuration file to stdout and exits.",
	)
	flag.Parse()

	if exampleConfig {
		fmt.Println(config.ExampleSimulationFile)
		return
	}

	if configFile == "" {
		log.Fatal("nbody: -Config is required (or pass -ExampleConfig).")
	}

	con, err := config.Load(configFile)
	if err != nil {
		log.Fatal(err.Error())
	}

	if con.ValidLogFile() {
		f, err := os.Create(con.LogFile)
		if err != nil {
			log.Fatal(err.Error())
		}
		defer f.Close()
		log.SetOutput(f)
	}

	var energySink sim.EnergySink
	if con.ValidEnergyLogFile() {
		energyLog, err := report.NewEnergyLog(con.EnergyLogFile)
		if err != nil {
			log.Fatal(err.Error())
		}
		defer energyLog.Close()
		energySink = energyLog
	}

	var snapshotSink sim.SnapshotSink
	if con.PrintAll {
		snapshotSink = report.NewSnapshotWriter(".")
	}

	var lagrangePlot *report.LagrangePlot
	var lagrangeSink sim.LagrangeSink
	if con.ValidLagrangePlotFile() && con.PrintLagrange {
		lagrangePlot = report.NewLagrangePlot(con.LagrangePlotFile, con.LagrangeRatio)
		lagrangeSink = lagrangePlot
	}

	ic := initcond.NewTableFile(con.Input)

	log.Printf("nbody: loading initial conditions from %s", con.Input)
	s, err := sim.New(con, ic, energySink, snapshotSink, lagrangeSink)
	if err != nil {
		log.Fatal(err.Error())
	}

	log.Printf("nbody: integrating to t=%g with %d particles", con.IntegrationTime, s.Store.N)
	s.Run()
	log.Printf("nbody: done")

	if lagrangePlot != nil {
		lagrangePlot.Finish()
	}
}
