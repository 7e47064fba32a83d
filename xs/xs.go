/*package xs supplies energy-dependent macroscopic cross-sections. Tables
are immutable after construction and are read without synchronization by
every transport worker at once.

Lookups do a binary search on the energy grid followed by linear
interpolation between the bracketing points. Energies outside the grid
clamp to the edge values instead of erroring: a long run must not abort
because one history sampled an extreme energy.
*/
package xs

import (
	"fmt"
	"math"
	"sort"

	"github.com/gonuclear/gomc/rng"
)

// Reaction selects a cross-section column.
type Reaction int

const (
	Total Reaction = iota
	Scatter
	Absorption
	Fission
	NuBar

	numReactions
)

// sumTol is the fractional slack allowed in the Total >= S + A + F check.
const sumTol = 1e-6

// Table holds one material's cross-sections on a strictly increasing
// energy grid.
type Table struct {
	energies []float64
	cols     [numReactions][]float64
}

// NewTable builds a table from parallel columns. It checks grid
// monotonicity, column lengths, non-negativity, and the partial
// cross-section invariant Total >= Scatter + Absorption + Fission at every
// grid point.
func NewTable(
	energies, total, scatter, absorption, fission, nu []float64,
) (*Table, error) {
	n := len(energies)
	if n < 2 {
		return nil, fmt.Errorf(
			"Cross-section grid needs at least 2 points, got %d.", n,
		)
	}
	cols := [numReactions][]float64{total, scatter, absorption, fission, nu}
	names := [numReactions]string{
		"Total", "Scatter", "Absorption", "Fission", "NuBar",
	}
	for r, col := range cols {
		if len(col) != n {
			return nil, fmt.Errorf(
				"%s column has %d entries, but the energy grid has %d.",
				names[r], len(col), n,
			)
		}
	}
	for i := 0; i < n; i++ {
		if energies[i] <= 0 {
			return nil, fmt.Errorf(
				"Energy grid point %d is %g. Energies must be positive.",
				i, energies[i],
			)
		}
		if i > 0 && energies[i] <= energies[i-1] {
			return nil, fmt.Errorf(
				"Energy grid is not strictly increasing at point %d "+
					"(%g -> %g).", i, energies[i-1], energies[i],
			)
		}
		for r, col := range cols {
			if col[i] < 0 || math.IsNaN(col[i]) || math.IsInf(col[i], 0) {
				return nil, fmt.Errorf(
					"%s value at grid point %d is %g.", names[r], i, col[i],
				)
			}
		}
		sum := scatter[i] + absorption[i] + fission[i]
		if total[i] < sum*(1-sumTol)-sumTol {
			return nil, fmt.Errorf(
				"Total cross-section %g at E = %g is smaller than "+
					"Scatter + Absorption + Fission = %g.",
				total[i], energies[i], sum,
			)
		}
	}

	t := &Table{energies: energies}
	t.cols = cols
	return t, nil
}

// ConstantTable builds a two-point table with energy-independent values,
// the usual starting point for one-group benchmark problems.
func ConstantTable(scatter, absorption, fission, nu float64) *Table {
	two := func(v float64) []float64 { return []float64{v, v} }
	t, err := NewTable(
		[]float64{1e-5, 1e2},
		two(scatter+absorption+fission),
		two(scatter), two(absorption), two(fission), two(nu),
	)
	if err != nil {
		panic(err.Error())
	}
	return t
}

// Lookup interpolates the given reaction at energy e, clamping e to the
// grid's edges. Safe for unsynchronized concurrent use.
func (t *Table) Lookup(r Reaction, e float64) float64 {
	col := t.cols[r]
	es := t.energies
	n := len(es)

	if e <= es[0] {
		return col[0]
	}
	if e >= es[n-1] {
		return col[n-1]
	}

	// Index of the first grid point > e; the bracket is [i-1, i].
	i := sort.SearchFloat64s(es, e)
	if es[i] == e {
		return col[i]
	}
	x1, x2 := es[i-1], es[i]
	v1, v2 := col[i-1], col[i]
	return v1 + (v2-v1)*(e-x1)/(x2-x1)
}

// EnergyRange returns the grid's lowest and highest tabulated energies.
func (t *Table) EnergyRange() (lo, hi float64) {
	return t.energies[0], t.energies[len(t.energies)-1]
}

// Fissile reports whether any grid point has a nonzero fission
// cross-section.
func (t *Table) Fissile() bool {
	for _, f := range t.cols[Fission] {
		if f > 0 {
			return true
		}
	}
	return false
}

// Default Watt spectrum parameters (U-235 thermal fission), in MeV and
// 1/MeV respectively.
const (
	DefaultWattA = 0.988
	DefaultWattB = 2.249
)

// Material pairs a cross-section table with the sampling parameters the
// transport kernel needs: the Watt fission spectrum constants and the
// maximum fractional energy loss per scatter.
type Material struct {
	Name  string
	Table *Table

	WattA, WattB float64

	// ScatterAlpha is the maximum fractional energy loss in a scattering
	// collision; post-collision energy is uniform on [(1-alpha)E, E].
	// Zero means elastic scattering with no energy change.
	ScatterAlpha float64
}

// Lookup forwards to the material's table.
func (m *Material) Lookup(r Reaction, e float64) float64 {
	return m.Table.Lookup(r, e)
}

// SampleChi draws a fission emission energy from the material's Watt
// spectrum using the Kalos rejection scheme.
func (m *Material) SampleChi(s *rng.Stream) float64 {
	a, b := m.WattA, m.WattB
	if a <= 0 || b <= 0 {
		a, b = DefaultWattA, DefaultWattB
	}
	k := 1 + a*b/8
	l := a * (k + math.Sqrt(k*k-1))
	mm := l/a - 1
	for {
		x := -math.Log(s.Open01())
		y := -math.Log(s.Open01())
		d := y - mm*(x+1)
		if d*d <= b*l*x {
			return l * x
		}
	}
}

// SampleScatter draws the post-collision energy for a scatter at energy e.
func (m *Material) SampleScatter(e float64, s *rng.Stream) float64 {
	if m.ScatterAlpha <= 0 {
		return e
	}
	return e * (1 - m.ScatterAlpha*s.Float64())
}

// Library is the full set of materials for a run, indexed by the material
// ids stored in geometry cells.
type Library struct {
	mats  []Material
	index map[string]int
}

// NewLibrary builds a library from materials with unique names.
func NewLibrary(mats []Material) (*Library, error) {
	if len(mats) == 0 {
		return nil, fmt.Errorf("Material library is empty.")
	}
	index := map[string]int{}
	for i := range mats {
		if mats[i].Table == nil {
			return nil, fmt.Errorf(
				"Material '%s' has no cross-section table.", mats[i].Name,
			)
		}
		if _, ok := index[mats[i].Name]; ok {
			return nil, fmt.Errorf(
				"Duplicate material name '%s'.", mats[i].Name,
			)
		}
		index[mats[i].Name] = i
	}
	return &Library{mats: mats, index: index}, nil
}

// Material returns the material with the given id.
func (l *Library) Material(id int) *Material { return &l.mats[id] }

// Len returns the number of materials.
func (l *Library) Len() int { return len(l.mats) }

// ID returns the id of the named material.
func (l *Library) ID(name string) (int, bool) {
	id, ok := l.index[name]
	return id, ok
}

// Lookup implements the provider contract lookup(material, energy,
// reaction) -> value.
func (l *Library) Lookup(material int, r Reaction, e float64) float64 {
	return l.mats[material].Table.Lookup(r, e)
}

// Fissile reports whether any material in the library can fission.
func (l *Library) Fissile() bool {
	for i := range l.mats {
		if l.mats[i].Table.Fissile() {
			return true
		}
	}
	return false
}
