package eigen

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gonuclear/gomc/geom"
	"github.com/gonuclear/gomc/transport"
)

func site(x, y, z, w float64) transport.FissionSite {
	return transport.FissionSite{Pos: geom.Vec{x, y, z}, Weight: w}
}

func TestEntropyHandComputed(t *testing.T) {
	m := newEntropyMesh(geom.Vec{0, 0, 0}, geom.Vec{1, 1, 1}, [3]int{2, 2, 2})

	// One site per octant: the uniform distribution over 8 bins.
	var uniform []transport.FissionSite
	for _, x := range []float64{0.25, 0.75} {
		for _, y := range []float64{0.25, 0.75} {
			for _, z := range []float64{0.25, 0.75} {
				uniform = append(uniform, site(x, y, z, 1))
			}
		}
	}
	assert.InDelta(t, math.Log(8), m.entropy(uniform), 1e-12)

	// Everything in one bin: zero entropy.
	concentrated := []transport.FissionSite{
		site(0.1, 0.1, 0.1, 1), site(0.2, 0.2, 0.2, 1), site(0.3, 0.3, 0.3, 1),
	}
	assert.Equal(t, 0.0, m.entropy(concentrated))

	// Weights matter, not counts: bins with weight 1 and 3.
	weighted := []transport.FissionSite{
		site(0.25, 0.25, 0.25, 1), site(0.75, 0.75, 0.75, 3),
	}
	want := -(0.25*math.Log(0.25) + 0.75*math.Log(0.75))
	assert.InDelta(t, want, m.entropy(weighted), 1e-12)

	assert.Equal(t, 0.0, m.entropy(nil), "empty bank")
}

func TestEntropyClampsOutsideSites(t *testing.T) {
	m := newEntropyMesh(geom.Vec{0, 0, 0}, geom.Vec{1, 1, 1}, [3]int{2, 2, 2})

	// A site far outside the box lands in the nearest edge bin, so a
	// stray site can never corrupt the diagnostic.
	sites := []transport.FissionSite{
		site(-50, -50, -50, 1), site(0.1, 0.1, 0.1, 1),
	}
	assert.Equal(t, 0.0, m.entropy(sites))

	split := []transport.FissionSite{
		site(-50, -50, -50, 1), site(50, 50, 50, 1),
	}
	assert.InDelta(t, math.Log(2), m.entropy(split), 1e-12)
}
