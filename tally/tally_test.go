package tally

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndMerge(t *testing.T) {
	a := NewAccumulator(3)
	b := NewAccumulator(3)

	a.Add(0, Flux, 1.5)
	a.Add(0, Flux, 0.5)
	a.Add(2, FissionRate, 1)
	a.Absorbed = 2
	a.StartWeight = 10

	b.Add(0, Flux, 3)
	b.Add(1, AbsorptionRate, 2)
	b.Leaked = 1
	b.StartWeight = 5

	a.Merge(b)
	snap := a.Snapshot()
	assert.Equal(t, []float64{5, 0, 0}, snap.Flux)
	assert.Equal(t, []float64{0, 0, 1}, snap.FissionRate)
	assert.Equal(t, []float64{0, 2, 0}, snap.AbsorptionRate)
	assert.Equal(t, int64(2), snap.Absorbed)
	assert.Equal(t, int64(1), snap.Leaked)
	assert.Equal(t, 15.0, snap.StartWeight)
}

func TestMergePanicsOnSizeMismatch(t *testing.T) {
	a, b := NewAccumulator(3), NewAccumulator(4)
	assert.Panics(t, func() { a.Merge(b) })
}

func TestSnapshotIsACopy(t *testing.T) {
	a := NewAccumulator(2)
	a.Add(0, Flux, 1)
	snap := a.Snapshot()

	a.Add(0, Flux, 1)
	a.Reset()
	assert.Equal(t, 1.0, snap.Flux[0], "snapshot unaffected by later writes")
}

func TestReset(t *testing.T) {
	a := NewAccumulator(2)
	a.Add(1, Flux, 1)
	a.Lost = 3
	a.StartWeight = 7

	a.Reset()
	snap := a.Snapshot()
	assert.Equal(t, []float64{0, 0}, snap.Flux)
	assert.Equal(t, int64(0), snap.Lost)
	assert.Equal(t, 0.0, snap.StartWeight)
}

func TestKStats(t *testing.T) {
	ks := &KStats{}
	mean, std := ks.MeanStd()
	assert.Equal(t, 0.0, mean)
	assert.Equal(t, 0.0, std)

	ks.Push(1.0)
	mean, std = ks.MeanStd()
	assert.Equal(t, 1.0, mean)
	assert.Equal(t, 0.0, std)

	ks.Push(1.2)
	ks.Push(0.8)
	mean, std = ks.MeanStd()
	require.Equal(t, 3, ks.Len())
	assert.InDelta(t, 1.0, mean, 1e-12)
	assert.InDelta(t, 0.2, std, 1e-12)
}
