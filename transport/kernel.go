package transport

import (
	"math"

	"github.com/gonuclear/gomc/geom"
	"github.com/gonuclear/gomc/rng"
	"github.com/gonuclear/gomc/tally"
	"github.com/gonuclear/gomc/xs"
)

// DefaultMaxSteps caps the number of flight segments in one history.
// Histories that exceed it are degenerate (a geometry that traps a
// particle) and are counted as lost.
const DefaultMaxSteps = 1_000_000

// Kernel advances particles through a fixed geometry and material library.
// It holds no mutable state of its own, so one Kernel is shared read-only
// by every worker.
type Kernel struct {
	Geom *geom.Geometry
	Lib  *xs.Library

	// MaxSteps overrides DefaultMaxSteps when positive.
	MaxSteps int
}

// Run advances one particle until it terminates by absorption, fission,
// leak, or loss. Tallies go to acc and fission progeny to bank, both owned
// by the calling batch. The stream must be the history's own.
func (k *Kernel) Run(
	p *Particle, s *rng.Stream, acc *tally.Accumulator, bank *Bank,
) {
	maxSteps := k.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	acc.StartWeight += p.Weight

	for step := 0; p.Alive; step++ {
		if step >= maxSteps || !p.Finite() || p.Cell == geom.OutsideCell {
			p.Alive = false
			acc.Lost++
			return
		}

		cell := int(p.Cell)
		mat := k.Lib.Material(k.Geom.Cells[cell].Material)
		sigT := mat.Lookup(xs.Total, p.E)

		// Free-flight distance to the next collision.
		d := math.Inf(1)
		if sigT > 0 {
			d = -math.Log(s.Open01()) / sigT
		}

		dB, face := k.Geom.DistanceToBoundary(&p.Pos, &p.Dir, p.Cell)
		if face < 0 || math.IsNaN(dB) {
			// The cell failed to bound the ray. Degenerate geometry.
			p.Alive = false
			acc.Lost++
			return
		}

		if dB < d {
			// Reach the boundary before the collision.
			acc.Add(cell, tally.Flux, p.Weight*dB)
			p.Pos.ScaleAdd(dB, &p.Dir)

			next, alive := k.Geom.CrossFace(&p.Pos, &p.Dir, p.Cell, face)
			if !alive {
				p.Alive = false
				acc.Leaked++
				return
			}
			p.Cell = next
			continue
		}

		// Collision.
		acc.Add(cell, tally.Flux, p.Weight*d)
		p.Pos.ScaleAdd(d, &p.Dir)
		if !p.Pos.IsFinite() {
			p.Alive = false
			acc.Lost++
			return
		}

		sigS := mat.Lookup(xs.Scatter, p.E)
		sigA := mat.Lookup(xs.Absorption, p.E)
		sigF := mat.Lookup(xs.Fission, p.E)
		partition := sigS + sigA + sigF
		if partition <= 0 {
			// Total > 0 but no sampled channel: treat as absorption so
			// the history cannot loop forever.
			acc.Add(cell, tally.AbsorptionRate, p.Weight)
			p.Alive = false
			acc.Absorbed++
			return
		}

		u := s.Float64() * partition
		switch {
		case u < sigS:
			// Isotropic lab-frame scatter.
			p.Dir = s.UnitVector()
			p.E = mat.SampleScatter(p.E, s)
		case u < sigS+sigA:
			acc.Add(cell, tally.AbsorptionRate, p.Weight)
			p.Alive = false
			acc.Absorbed++
			return
		default:
			acc.Add(cell, tally.FissionRate, p.Weight)
			k.fission(p, mat, s, bank)
			p.Alive = false
			acc.Fissioned++
			return
		}
	}
}

// fission banks the incident particle's progeny. The progeny count is the
// stochastic rounding of weight*nu, so its expectation equals weight*nu
// exactly; each site gets an independent Watt emission energy.
func (k *Kernel) fission(
	p *Particle, mat *xs.Material, s *rng.Stream, bank *Bank,
) {
	nu := mat.Lookup(xs.NuBar, p.E)
	mean := p.Weight * nu
	n := int(mean)
	if s.Float64() < mean-float64(n) {
		n++
	}
	for i := 0; i < n; i++ {
		bank.Append(FissionSite{
			Pos:    p.Pos,
			E:      mat.SampleChi(s),
			Weight: 1,
		})
	}
}
