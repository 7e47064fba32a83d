/*package tally accumulates per-cell transport results. There is no shared
mutable accumulator: every work batch owns a private Accumulator, and the
generation loop merges them in batch-index order at the barrier. That makes
the floating-point summation order a pure function of the batch layout, so
results cannot depend on worker count or scheduling.
*/
package tally

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Quantity selects one of the tracked per-cell sums.
type Quantity int

const (
	Flux Quantity = iota
	FissionRate
	AbsorptionRate

	numQuantities
)

// Accumulator holds running per-cell sums plus termination counters for
// one batch (or one merged generation). A single goroutine owns an
// Accumulator at any time.
type Accumulator struct {
	cols [numQuantities][]float64

	// Terminations by kind.
	Leaked, Absorbed, Fissioned, Lost int64

	// StartWeight is the total source weight fed into this accumulator's
	// histories, used for normalization.
	StartWeight float64
}

// NewAccumulator returns a zeroed accumulator covering the given number of
// cells.
func NewAccumulator(cells int) *Accumulator {
	acc := &Accumulator{}
	for q := range acc.cols {
		acc.cols[q] = make([]float64, cells)
	}
	return acc
}

// Cells returns the number of cells covered.
func (acc *Accumulator) Cells() int { return len(acc.cols[Flux]) }

// Add accumulates value into the given quantity for the given cell.
func (acc *Accumulator) Add(cell int, q Quantity, value float64) {
	acc.cols[q][cell] += value
}

// Merge adds every sum and counter of b into acc. Callers must merge
// batches in a fixed order to keep runs reproducible.
func (acc *Accumulator) Merge(b *Accumulator) {
	if acc.Cells() != b.Cells() {
		panic(fmt.Sprintf(
			"Cannot merge accumulator with %d cells into one with %d.",
			b.Cells(), acc.Cells(),
		))
	}
	for q := range acc.cols {
		dst, src := acc.cols[q], b.cols[q]
		for i := range dst {
			dst[i] += src[i]
		}
	}
	acc.Leaked += b.Leaked
	acc.Absorbed += b.Absorbed
	acc.Fissioned += b.Fissioned
	acc.Lost += b.Lost
	acc.StartWeight += b.StartWeight
}

// Reset zeroes the accumulator for reuse, avoiding reallocation across
// thousands of generations.
func (acc *Accumulator) Reset() {
	for q := range acc.cols {
		col := acc.cols[q]
		for i := range col {
			col[i] = 0
		}
	}
	acc.Leaked, acc.Absorbed, acc.Fissioned, acc.Lost = 0, 0, 0, 0
	acc.StartWeight = 0
}

// Snapshot is an immutable copy of a completed generation's sums.
type Snapshot struct {
	Flux, FissionRate, AbsorptionRate []float64

	Leaked, Absorbed, Fissioned, Lost int64
	StartWeight                       float64
}

// Snapshot copies the accumulator's current state.
func (acc *Accumulator) Snapshot() *Snapshot {
	cp := func(q Quantity) []float64 {
		out := make([]float64, len(acc.cols[q]))
		copy(out, acc.cols[q])
		return out
	}
	return &Snapshot{
		Flux:           cp(Flux),
		FissionRate:    cp(FissionRate),
		AbsorptionRate: cp(AbsorptionRate),
		Leaked:         acc.Leaked,
		Absorbed:       acc.Absorbed,
		Fissioned:      acc.Fissioned,
		Lost:           acc.Lost,
		StartWeight:    acc.StartWeight,
	}
}

// KStats tracks the per-generation eigenvalue history over the active
// phase. The history is append-only and kept for diagnostics.
type KStats struct {
	Gens []float64
}

// Push appends one active generation's k estimate.
func (ks *KStats) Push(k float64) { ks.Gens = append(ks.Gens, k) }

// Len returns the number of recorded generations.
func (ks *KStats) Len() int { return len(ks.Gens) }

// MeanStd returns the running mean and sample standard deviation of the
// recorded estimates. The standard deviation is zero until two generations
// have been recorded.
func (ks *KStats) MeanStd() (mean, std float64) {
	switch len(ks.Gens) {
	case 0:
		return 0, 0
	case 1:
		return ks.Gens[0], 0
	}
	mean, std = stat.MeanStdDev(ks.Gens, nil)
	return mean, std
}
