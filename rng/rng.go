/*package rng derives independent, reproducible random streams from a pure
function of (seed, generation, history). Because no stream shares state with
any other, transport histories can be scheduled onto any number of workers
in any order without changing a single sampled value.
*/
package rng

import (
	"math"
	"math/rand/v2"

	"github.com/gonuclear/gomc/geom"
)

// Reserved history indices for draws that belong to a generation rather
// than to any particle history. Real history indices are always small, so
// the top bits are free.
const (
	ResampleStream uint64 = 1 << 62
	SourceStream   uint64 = 1<<62 + 1
	CapStream      uint64 = 1<<62 + 2
)

// Stream is a single seekable pseudo-random stream.
type Stream struct {
	*rand.Rand
}

// splitmix64 is the mixing function used to turn counters into PCG state.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// New returns the stream for the given (seed, generation, history) triple.
// Equal triples always yield identical streams.
func New(seed, generation, history uint64) *Stream {
	x := splitmix64(seed)
	x = splitmix64(x ^ generation)
	x = splitmix64(x ^ history)
	hi := splitmix64(x)
	lo := splitmix64(x ^ 0xda942042e4dd58b5)
	return &Stream{rand.New(rand.NewPCG(hi, lo))}
}

// Open01 returns a uniform variate on the open interval (0, 1). Zero is
// excluded so that -log(u) free-flight sampling never overflows.
func (s *Stream) Open01() float64 {
	for {
		if u := s.Float64(); u > 0 {
			return u
		}
	}
}

// UnitVector returns an isotropically distributed unit direction.
func (s *Stream) UnitVector() geom.Vec {
	cosTheta := 1 - 2*s.Float64()
	sinTheta := math.Sqrt(1 - cosTheta*cosTheta)
	phi := 2 * math.Pi * s.Float64()
	return geom.Vec{
		sinTheta * math.Cos(phi),
		sinTheta * math.Sin(phi),
		cosTheta,
	}
}
