package geom

import (
	"fmt"
	"math"
)

// CellID indexes a cell within a Geometry. Cells and surfaces are stored in
// flat arrays and reference each other by index, since cell adjacency is a
// graph with no natural ownership tree.
type CellID int

// OutsideCell is the sentinel for a point not contained in any cell.
const OutsideCell CellID = -1

// BoundaryKind is the closed set of face behaviors a particle can meet.
type BoundaryKind int

const (
	// Transmission hands the particle to the neighboring cell.
	Transmission BoundaryKind = iota
	// Vacuum terminates the particle as leaked.
	Vacuum
	// Reflective mirrors the direction about the surface normal.
	Reflective
)

// Face ties one of a cell's bounding surfaces to what lies past it.
// Neighbor is only meaningful for Transmission faces.
type Face struct {
	Surface  int
	Boundary BoundaryKind
	Neighbor CellID
}

// Constraint is one half-space test in a cell's CSG description: the cell
// lies where sense * Eval(p) > 0. Sense is -1 (inside the surface) or +1.
type Constraint struct {
	Surface int
	Sense   int
}

// Cell is a region of uniform material bounded by surface constraints.
type Cell struct {
	Material    int
	Constraints []Constraint
	Faces       []Face
}

// Geometry is the immutable spatial arena shared read-only by all transport
// workers. Build it once with Build; never mutate it afterwards.
type Geometry struct {
	Surfaces []Surface
	Cells    []Cell

	// Lo and Hi bound every cell; used for source sampling and the
	// entropy mesh.
	Lo, Hi Vec
}

const (
	// surfBump is the distance by which a particle is nudged past a
	// surface it has just crossed, so the next ray query does not see the
	// same surface at distance zero.
	surfBump = 1e-9

	// tieEps is the window within which two surface distances count as a
	// grazing tie.
	tieEps = 1e-12
)

// Build validates the surfaces, cells, and faces and computes the bounding
// box. It returns a configuration error describing the first problem found.
func Build(surfaces []Surface, cells []Cell) (*Geometry, error) {
	if len(cells) == 0 {
		return nil, fmt.Errorf("Geometry contains no cells.")
	}
	for i := range surfaces {
		if !surfaces[i].valid() {
			return nil, fmt.Errorf("Surface %d has invalid parameters.", i)
		}
	}
	for ci := range cells {
		c := &cells[ci]
		if len(c.Constraints) == 0 {
			return nil, fmt.Errorf("Cell %d has no bounding constraints.", ci)
		}
		for _, con := range c.Constraints {
			if con.Surface < 0 || con.Surface >= len(surfaces) {
				return nil, fmt.Errorf(
					"Cell %d references surface %d, but only %d surfaces "+
						"exist.", ci, con.Surface, len(surfaces),
				)
			}
			if con.Sense != -1 && con.Sense != +1 {
				return nil, fmt.Errorf(
					"Cell %d has sense %d for surface %d. Senses must be "+
						"-1 or +1.", ci, con.Sense, con.Surface,
				)
			}
		}
		if len(c.Faces) == 0 {
			return nil, fmt.Errorf("Cell %d has no faces.", ci)
		}
		for _, f := range c.Faces {
			if f.Surface < 0 || f.Surface >= len(surfaces) {
				return nil, fmt.Errorf(
					"Cell %d face references surface %d, but only %d "+
						"surfaces exist.", ci, f.Surface, len(surfaces),
				)
			}
			if f.Boundary == Transmission &&
				(f.Neighbor < 0 || int(f.Neighbor) >= len(cells)) {
				return nil, fmt.Errorf(
					"Cell %d transmits through surface %d into cell %d, "+
						"which does not exist.", ci, f.Surface, f.Neighbor,
				)
			}
		}
	}

	g := &Geometry{Surfaces: surfaces, Cells: cells}
	g.computeBounds()
	return g, nil
}

// computeBounds unions the extents of all spheres and clips by axis-aligned
// planes. Geometries bounded only by oblique planes fall back to a unit box
// around the origin, which only degrades the entropy mesh resolution, not
// transport itself.
func (g *Geometry) computeBounds() {
	lo := Vec{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := Vec{math.Inf(-1), math.Inf(-1), math.Inf(-1)}

	for i := range g.Surfaces {
		s := &g.Surfaces[i]
		switch s.Kind {
		case SphereKind:
			for k := 0; k < 3; k++ {
				lo[k] = math.Min(lo[k], s.Center[k]-s.Radius)
				hi[k] = math.Max(hi[k], s.Center[k]+s.Radius)
			}
		case PlaneKind:
			for k := 0; k < 3; k++ {
				if math.Abs(math.Abs(s.N[k])-1) < 1e-10 {
					lo[k] = math.Min(lo[k], s.Offset)
					hi[k] = math.Max(hi[k], s.Offset)
				}
			}
		}
	}

	for k := 0; k < 3; k++ {
		if math.IsInf(lo[k], 0) || math.IsInf(hi[k], 0) || lo[k] >= hi[k] {
			lo[k], hi[k] = -1, 1
		}
	}
	g.Lo, g.Hi = lo, hi
}

// CellContains reports whether the given cell contains p.
func (g *Geometry) CellContains(id CellID, p *Vec) bool {
	c := &g.Cells[id]
	for _, con := range c.Constraints {
		e := g.Surfaces[con.Surface].Eval(p)
		if con.Sense < 0 && e > 0 {
			return false
		}
		if con.Sense > 0 && e < 0 {
			return false
		}
	}
	return true
}

// Locate returns the cell containing p, or (OutsideCell, false) if no cell
// does. Cell counts are small enough that a linear scan beats any index.
func (g *Geometry) Locate(p *Vec) (CellID, bool) {
	for id := range g.Cells {
		if g.CellContains(CellID(id), p) {
			return CellID(id), true
		}
	}
	return OutsideCell, false
}

// DistanceToBoundary returns the distance along dir from p to the nearest
// bounding surface of the given cell, together with the index into the
// cell's Faces describing what lies past it. Grazing ties are broken by
// preferring the face whose normal is most aligned with dir, which keeps
// particles from ping-ponging in corners. Returns (+Inf, -1) if no face is
// ever intersected, which callers must treat as a lost particle.
func (g *Geometry) DistanceToBoundary(
	p, dir *Vec, id CellID,
) (float64, int) {
	c := &g.Cells[id]
	best, bestFace := math.Inf(1), -1
	bestCos := 0.0

	for fi := range c.Faces {
		s := &g.Surfaces[c.Faces[fi].Surface]
		d := s.Distance(p, dir, surfBump)
		if math.IsInf(d, 1) || math.IsNaN(d) {
			continue
		}
		if d < best-tieEps {
			best, bestFace = d, fi
			var hit Vec = *p
			hit.ScaleAdd(d, dir)
			n := s.NormalAt(&hit)
			bestCos = math.Abs(n.Dot(dir))
		} else if d < best+tieEps {
			var hit Vec = *p
			hit.ScaleAdd(d, dir)
			n := s.NormalAt(&hit)
			if cos := math.Abs(n.Dot(dir)); cos > bestCos {
				best, bestFace, bestCos = d, fi, cos
			}
		}
	}
	return best, bestFace
}

// CrossFace advances a particle sitting on the face's surface into whatever
// lies past it. It returns the new cell (or OutsideCell for a leak) and the
// possibly reflected direction. The position is nudged off the surface so
// the next query is well conditioned.
func (g *Geometry) CrossFace(
	p, dir *Vec, id CellID, faceIdx int,
) (CellID, bool) {
	f := &g.Cells[id].Faces[faceIdx]
	switch f.Boundary {
	case Vacuum:
		return OutsideCell, false
	case Reflective:
		s := &g.Surfaces[f.Surface]
		n := s.NormalAt(p)
		dir.Reflect(&n)
		p.ScaleAdd(surfBump, dir)
		return id, true
	case Transmission:
		p.ScaleAdd(surfBump, dir)
		next := f.Neighbor
		if !g.CellContains(next, p) {
			// Corner crossings can skip past the declared neighbor.
			var ok bool
			if next, ok = g.Locate(p); !ok {
				return OutsideCell, false
			}
		}
		return next, true
	}
	panic(fmt.Sprintf("Unknown boundary kind %d", f.Boundary))
}
