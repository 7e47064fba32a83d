/*gomc computes the k-eigenvalue and flux distribution of a fissile system
by Monte Carlo power iteration.

	gomc -Run config.txt
	gomc -ExampleConfig
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"

	"github.com/gonuclear/gomc/eigen"
	"github.com/gonuclear/gomc/io"
)

// FileGroup contains utility files for logging and writing profiles to.
type FileGroup struct {
	log, prof *os.File
}

// Close closes the files inside FileGroup.
func (fg *FileGroup) Close() {
	if fg.log != nil {
		err := fg.log.Close()
		if err != nil {
			log.Fatal(err.Error())
		}
	}
	if fg.prof != nil {
		pprof.StopCPUProfile()
		err := fg.prof.Close()
		if err != nil {
			log.Fatal(err.Error())
		}
	}
}

func (fg *FileGroup) open(con *io.RunConfig) error {
	if con.ValidLogFile() {
		f, err := os.Create(con.LogFile)
		if err != nil {
			return err
		}
		log.SetOutput(f)
		fg.log = f
	}
	if con.ValidProfileFile() {
		f, err := os.Create(con.ProfileFile)
		if err != nil {
			return err
		}
		if err = pprof.StartCPUProfile(f); err != nil {
			return err
		}
		fg.prof = f
	}
	return nil
}

func main() {
	var (
		runStr        string
		exampleConfig bool
		threads       int
	)

	flag.StringVar(
		&runStr, "Run", "",
		"Configuration file describing the run, geometry, and materials.",
	)
	flag.BoolVar(
		&exampleConfig, "ExampleConfig", false,
		"Prints an example configuration file to stdout.",
	)
	flag.IntVar(
		&threads, "Threads", runtime.NumCPU(),
		"Number of threads used. Default is the number of logical cores.",
	)

	flag.Parse()

	switch {
	case exampleConfig:
		fmt.Println(io.ExampleRunFile)
	case runStr != "":
		mainRun(runStr, threads)
	default:
		log.Fatal(
			"You must select a mode. Pass either -Run or -ExampleConfig.",
		)
	}
}

func mainRun(fname string, threads int) {
	wrap, err := io.ReadRunFile(fname)
	if err != nil {
		log.Fatal(err.Error())
	}

	fg := &FileGroup{}
	if err = fg.open(&wrap.Run); err != nil {
		log.Fatal(err.Error())
	}
	defer fg.Close()

	g, lib, params, source, err := wrap.Build()
	if err != nil {
		log.Fatal(err.Error())
	}
	if params.Workers <= 0 {
		params.Workers = threads
	}

	sol, err := eigen.New(g, lib, params, source)
	if err != nil {
		log.Fatal(err.Error())
	}
	sol.OnProgress = func(p eigen.Progress) {
		log.Printf(
			"gen %4d [%8s]  k = %.5f  k_mean = %.5f +/- %.5f  H = %.4f",
			p.Generation, p.Phase, p.KGen, p.KMean, p.KStd, p.Entropy,
		)
	}

	// SIGINT cancels cooperatively at the next generation boundary.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Printf(
		"Starting run: %d particles, <= %d inactive, %d active, seed %d, "+
			"%d threads.",
		params.Particles, params.MaxInactive, params.Active, params.Seed,
		params.Workers,
	)

	res, err := sol.Run(ctx)
	if err != nil {
		log.Fatal(err.Error())
	}

	switch res.Status {
	case eigen.StatusCancelled:
		log.Printf(
			"Run cancelled. Estimate through generation %d.",
			res.LastGeneration,
		)
	case eigen.StatusSourceExtinct:
		log.Printf(
			"Fission source went extinct at generation %d. The system "+
				"produces no fission neutrons.", res.LastGeneration,
		)
	}
	if res.SourceNotConverged {
		log.Printf(
			"Warning: Shannon entropy did not stabilize within %d "+
				"inactive generations. Treat k_eff with suspicion.",
			params.MaxInactive,
		)
	}

	log.Printf(
		"k_eff = %.5f +/- %.5f over %d active generations (%.1fs).",
		res.KEff, res.KStd, res.ActiveGens, res.WallTime.Seconds(),
	)

	if err := io.WriteResultFile(wrap.Run.Output, res); err != nil {
		log.Fatal(err.Error())
	}
	log.Printf("Wrote result to %s.", wrap.Run.Output)
}
