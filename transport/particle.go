/*package transport advances individual neutron histories through the
geometry: free flight, boundary crossings, and collision sampling, writing
track-length tallies and fission sites as it goes. Each history is fully
independent of every other history; the kernel touches only state owned by
its own work batch.
*/
package transport

import (
	"math"

	"github.com/gonuclear/gomc/geom"
)

// Particle is the per-history mutable state. It is owned by exactly one
// worker from creation to termination.
type Particle struct {
	Pos    geom.Vec
	Dir    geom.Vec // unit length
	E      float64  // > 0
	Weight float64
	Cell   geom.CellID
	Alive  bool
}

// FromSite builds a source particle at a fission site with an isotropic
// direction already sampled by the caller.
func FromSite(site FissionSite, dir geom.Vec, cell geom.CellID) Particle {
	return Particle{
		Pos:    site.Pos,
		Dir:    dir,
		E:      site.E,
		Weight: site.Weight,
		Cell:   cell,
		Alive:  true,
	}
}

// Finite reports whether the particle's state is numerically usable.
func (p *Particle) Finite() bool {
	return p.Pos.IsFinite() && p.Dir.IsFinite() &&
		!math.IsNaN(p.E) && !math.IsInf(p.E, 0) && p.E > 0 &&
		!math.IsNaN(p.Weight) && !math.IsInf(p.Weight, 0)
}
