package eigen

import (
	"fmt"

	"github.com/gonuclear/gomc/geom"
	"github.com/gonuclear/gomc/rng"
	"github.com/gonuclear/gomc/transport"
)

// SourceSpec describes where generation zero is seeded: uniform positions
// inside the box [Lo, Hi] that land in fissile cells, with emission
// energies drawn from the cell material's fission spectrum. A zero-valued
// SourceSpec means the geometry's bounding box.
type SourceSpec struct {
	Lo, Hi geom.Vec
}

// maxSeedAttemptsPerSite bounds rejection sampling before the source
// region is declared empty.
const maxSeedAttemptsPerSite = 10_000

// initialSource seeds n unit-weight sites. If the library has no fissile
// material at all (a purely absorbing benchmark), any located cell is
// accepted instead.
func (sol *Solver) initialSource(n int) ([]transport.FissionSite, error) {
	lo, hi := sol.source.Lo, sol.source.Hi
	if lo == hi {
		lo, hi = sol.geometry.Lo, sol.geometry.Hi
	}
	needFissile := sol.lib.Fissile()

	s := rng.New(sol.params.Seed, 0, rng.SourceStream)
	sites := make([]transport.FissionSite, 0, n)
	attempts := 0
	for len(sites) < n {
		if attempts > maxSeedAttemptsPerSite*n {
			return nil, fmt.Errorf(
				"Could not seed the initial source: no %s cells inside "+
					"[%g %g %g] x [%g %g %g].",
				map[bool]string{true: "fissile", false: "material"}[needFissile],
				lo[0], lo[1], lo[2], hi[0], hi[1], hi[2],
			)
		}
		attempts++

		var p geom.Vec
		for k := 0; k < 3; k++ {
			p[k] = lo[k] + (hi[k]-lo[k])*s.Float64()
		}
		id, ok := sol.geometry.Locate(&p)
		if !ok {
			continue
		}
		mat := sol.lib.Material(sol.geometry.Cells[id].Material)
		if needFissile && !mat.Table.Fissile() {
			continue
		}

		e := mat.SampleChi(s)
		sites = append(sites, transport.FissionSite{Pos: p, E: e, Weight: 1})
	}
	return sites, nil
}
