/*package eigen runs the fission-source power iteration: generation after
generation of independent particle histories, harvesting each generation's
fission bank to seed the next, until the source shape has converged and
enough active generations have accumulated statistics on k.

Work is split into fixed-size batches of histories. Batches, not workers,
own the tallies and bank segments, and batch results merge in batch-index
order at the generation barrier. The summation order is therefore a pure
function of (seed, particle count, batch size): changing the worker count
changes nothing but the wall time.
*/
package eigen

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/gonuclear/gomc/geom"
	"github.com/gonuclear/gomc/rng"
	"github.com/gonuclear/gomc/tally"
	"github.com/gonuclear/gomc/transport"
	"github.com/gonuclear/gomc/xs"
)

const (
	// DefaultBatchSize balances per-batch overhead against load imbalance
	// from histories with wildly different collision counts.
	DefaultBatchSize = 1024

	// DefaultEntropyDim is the per-axis entropy mesh resolution.
	DefaultEntropyDim = 8

	// bankCapFactor bounds the generation bank at this multiple of the
	// generation size.
	bankCapFactor = 8

	// minEntropyWindow is the fewest trailing entropy samples the
	// convergence test will run on.
	minEntropyWindow = 4
)

// Params configures a power-iteration run. Zero-valued optional fields
// take the documented defaults.
type Params struct {
	// Particles is the number of histories per generation.
	Particles int
	// MaxInactive is the most warm-up generations allowed. Entropy
	// convergence can end the inactive phase earlier.
	MaxInactive int
	// Active is the number of statistics-gathering generations.
	Active int

	// EntropyTolerance is the trailing-window entropy standard deviation
	// below which the source counts as converged.
	EntropyTolerance float64
	// MaxLostFraction is the per-generation lost-particle fraction above
	// which the run fails.
	MaxLostFraction float64

	Seed uint64

	// Optional.
	BatchSize  int
	Workers    int
	EntropyDim [3]int
}

// Check validates the parameters, returning a configuration error for the
// first non-physical value.
func (par *Params) Check() error {
	if par.Particles <= 0 {
		return fmt.Errorf(
			"Particles per generation must be positive, got %d.",
			par.Particles,
		)
	}
	if par.MaxInactive < 0 {
		return fmt.Errorf(
			"MaxInactive must be non-negative, got %d.", par.MaxInactive,
		)
	}
	if par.Active <= 0 {
		return fmt.Errorf(
			"Active generations must be positive, got %d.", par.Active,
		)
	}
	if par.EntropyTolerance < 0 {
		return fmt.Errorf(
			"EntropyTolerance must be non-negative, got %g.",
			par.EntropyTolerance,
		)
	}
	if par.MaxLostFraction < 0 || par.MaxLostFraction > 1 {
		return fmt.Errorf(
			"MaxLostFraction must be in [0, 1], got %g.",
			par.MaxLostFraction,
		)
	}
	return nil
}

// Solver owns one run of the power iteration.
type Solver struct {
	geometry *geom.Geometry
	lib      *xs.Library
	params   Params
	kernel   transport.Kernel
	source   SourceSpec

	// OnProgress, when set, receives one record per completed
	// generation, before the next one starts.
	OnProgress func(Progress)
}

// New validates the configuration and builds a solver.
func New(
	g *geom.Geometry, lib *xs.Library, params Params, source SourceSpec,
) (*Solver, error) {
	if g == nil {
		return nil, fmt.Errorf("Solver needs a geometry.")
	}
	if lib == nil {
		return nil, fmt.Errorf("Solver needs a material library.")
	}
	if err := params.Check(); err != nil {
		return nil, err
	}
	for ci := range g.Cells {
		if m := g.Cells[ci].Material; m < 0 || m >= lib.Len() {
			return nil, fmt.Errorf(
				"Cell %d uses material id %d, but the library has %d "+
					"materials.", ci, m, lib.Len(),
			)
		}
	}

	if params.BatchSize <= 0 {
		params.BatchSize = DefaultBatchSize
	}
	if params.Workers <= 0 {
		params.Workers = runtime.NumCPU()
	}
	for k := 0; k < 3; k++ {
		if params.EntropyDim[k] <= 0 {
			params.EntropyDim[k] = DefaultEntropyDim
		}
	}

	return &Solver{
		geometry: g,
		lib:      lib,
		params:   params,
		kernel:   transport.Kernel{Geom: g, Lib: lib},
		source:   source,
	}, nil
}

// generation runs one generation's histories over the persistent batch
// workspaces and merges everything in batch order.
func (sol *Solver) generation(
	gen int, source []transport.FissionSite,
	accs []*tally.Accumulator, banks []*transport.Bank,
	genAcc *tally.Accumulator, genBank *transport.Bank,
) {
	n := len(source)
	bs := sol.params.BatchSize
	numBatches := (n + bs - 1) / bs

	var grp errgroup.Group
	grp.SetLimit(sol.params.Workers)
	for b := 0; b < numBatches; b++ {
		b := b
		grp.Go(func() error {
			acc, bank := accs[b], banks[b]
			acc.Reset()
			bank.Reset()
			lo, hi := b*bs, (b+1)*bs
			if hi > n {
				hi = n
			}
			for h := lo; h < hi; h++ {
				s := rng.New(sol.params.Seed, uint64(gen), uint64(h))
				p := transport.FromSite(source[h], s.UnitVector(),
					geom.OutsideCell)
				if id, ok := sol.geometry.Locate(&p.Pos); ok {
					p.Cell = id
				}
				sol.kernel.Run(&p, s, acc, bank)
			}
			return nil
		})
	}
	// No batch returns an error; Wait is only the generation barrier.
	_ = grp.Wait()

	genAcc.Reset()
	genBank.Reset()
	for b := 0; b < numBatches; b++ {
		genAcc.Merge(accs[b])
		genBank.MergeFrom(banks[b])
	}
	genBank.EnforceCap(rng.New(sol.params.Seed, uint64(gen), rng.CapStream))
}

// Run executes the power iteration until the configured active generations
// complete, the source goes extinct, or ctx is cancelled. Cancellation is
// cooperative and only observed at generation boundaries.
func (sol *Solver) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	par := &sol.params
	n := par.Particles
	cells := len(sol.geometry.Cells)

	source, err := sol.initialSource(n)
	if err != nil {
		return nil, err
	}

	numBatches := (n + par.BatchSize - 1) / par.BatchSize
	accs := make([]*tally.Accumulator, numBatches)
	banks := make([]*transport.Bank, numBatches)
	for b := range accs {
		accs[b] = tally.NewAccumulator(cells)
		banks[b] = transport.NewBank(0)
	}
	genAcc := tally.NewAccumulator(cells)
	genBank := transport.NewBank(bankCapFactor * n)
	activeAcc := tally.NewAccumulator(cells)

	mesh := newEntropyMesh(sol.geometry.Lo, sol.geometry.Hi, par.EntropyDim)

	res := &Result{RunID: uuid.New(), Status: StatusComplete, Particles: n}
	kStats := &tally.KStats{}
	phase := Inactive
	converged := par.MaxInactive == 0
	if converged {
		phase = Active
	}
	var inactiveEntropy []float64

	for gen := 1; ; gen++ {
		if ctx.Err() != nil {
			res.Status = StatusCancelled
			break
		}

		sol.generation(gen, source, accs, banks, genAcc, genBank)
		res.LastGeneration = gen
		res.LostParticles += genAcc.Lost

		lostFrac := float64(genAcc.Lost) / float64(n)
		if lostFrac > par.MaxLostFraction {
			return nil, &FatalError{
				Reason: fmt.Sprintf(
					"lost_particle_fraction_exceeded: %.4f > %.4f",
					lostFrac, par.MaxLostFraction,
				),
				LastGeneration: gen - 1,
			}
		}

		entropy := mesh.entropy(genBank.Sites)
		res.EntropyHistory = append(res.EntropyHistory, entropy)

		if genBank.Len() == 0 {
			// Nothing to seed the next generation with. k for this
			// generation is skipped rather than divided by zero.
			sol.emit(res, gen, phase, 0, kStats, entropy, genAcc.Lost)
			res.Status = StatusSourceExtinct
			break
		}

		kGen := genBank.TotalWeight() / float64(n)
		res.KHistory = append(res.KHistory, kGen)

		genPhase := phase
		if genPhase == Active {
			kStats.Push(kGen)
			activeAcc.Merge(genAcc)
		} else {
			inactiveEntropy = append(inactiveEntropy, entropy)
			if entropyConverged(inactiveEntropy, par.EntropyTolerance) {
				converged = true
			}
			if converged || len(inactiveEntropy) >= par.MaxInactive {
				if !converged {
					res.SourceNotConverged = true
				}
				phase = Active
			}
		}

		sol.emit(res, gen, genPhase, kGen, kStats, entropy, genAcc.Lost)

		if kStats.Len() >= par.Active {
			break
		}

		source = genBank.Resample(
			n, rng.New(par.Seed, uint64(gen), rng.ResampleStream),
		)
	}

	res.KEff, res.KStd = kStats.MeanStd()
	res.ActiveGens = kStats.Len()
	sol.normalize(res, activeAcc)
	res.WallTime = time.Since(start)
	return res, nil
}

// emit delivers one progress record.
func (sol *Solver) emit(
	res *Result, gen int, phase Phase, kGen float64,
	kStats *tally.KStats, entropy float64, lost int64,
) {
	if sol.OnProgress == nil {
		return
	}
	mean, std := kStats.MeanStd()
	sol.OnProgress(Progress{
		RunID:      res.RunID,
		Generation: gen,
		Phase:      phase,
		KGen:       kGen,
		KMean:      mean,
		KStd:       std,
		Entropy:    entropy,
		Lost:       lost,
	})
}

// normalize converts active-phase running sums into per-source-weight
// tallies.
func (sol *Solver) normalize(res *Result, activeAcc *tally.Accumulator) {
	snap := activeAcc.Snapshot()
	res.Flux = snap.Flux
	res.FissionRate = snap.FissionRate
	res.AbsorptionRate = snap.AbsorptionRate
	if snap.StartWeight <= 0 {
		return
	}
	for i := range res.Flux {
		res.Flux[i] /= snap.StartWeight
		res.FissionRate[i] /= snap.StartWeight
		res.AbsorptionRate[i] /= snap.StartWeight
	}
}

// entropyConverged tests the trailing half of the inactive entropy history
// against the tolerance.
func entropyConverged(hist []float64, tol float64) bool {
	if tol <= 0 {
		return false
	}
	window := hist[len(hist)/2:]
	if len(window) < minEntropyWindow {
		return false
	}
	return stat.StdDev(window, nil) < tol
}
