package eigen

import (
	"math"

	"github.com/gonuclear/gomc/geom"
	"github.com/gonuclear/gomc/transport"
)

// entropyMesh bins fission sites onto a fixed coarse grid over the
// geometry's bounding box. The mesh exists only for the Shannon entropy
// diagnostic; its resolution never affects transport.
type entropyMesh struct {
	lo, hi geom.Vec
	dims   [3]int
	bins   []float64
}

func newEntropyMesh(lo, hi geom.Vec, dims [3]int) *entropyMesh {
	n := dims[0] * dims[1] * dims[2]
	return &entropyMesh{lo: lo, hi: hi, dims: dims, bins: make([]float64, n)}
}

func (m *entropyMesh) binIndex(p *geom.Vec) int {
	idx := 0
	for k := 0; k < 3; k++ {
		f := (p[k] - m.lo[k]) / (m.hi[k] - m.lo[k])
		i := int(f * float64(m.dims[k]))
		// Sites outside the box clamp to the edge bins.
		if i < 0 {
			i = 0
		}
		if i >= m.dims[k] {
			i = m.dims[k] - 1
		}
		idx = idx*m.dims[k] + i
	}
	return idx
}

// entropy returns the Shannon entropy H = -sum p_i ln p_i of the weight
// distribution of the banked sites. An empty bank has zero entropy.
func (m *entropyMesh) entropy(sites []transport.FissionSite) float64 {
	for i := range m.bins {
		m.bins[i] = 0
	}
	total := 0.0
	for i := range sites {
		m.bins[m.binIndex(&sites[i].Pos)] += sites[i].Weight
		total += sites[i].Weight
	}
	if total <= 0 {
		return 0
	}

	h := 0.0
	for _, w := range m.bins {
		if w > 0 {
			p := w / total
			h -= p * math.Log(p)
		}
	}
	return h
}
