package eigen

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/gonuclear/gomc/geom"
	"github.com/gonuclear/gomc/xs"
)

func reflectiveBox(half float64) *geom.Geometry {
	surfaces := []geom.Surface{
		geom.PlaneX(-half), geom.PlaneX(half),
		geom.PlaneY(-half), geom.PlaneY(half),
		geom.PlaneZ(-half), geom.PlaneZ(half),
	}
	cell := geom.Cell{
		Material: 0,
		Constraints: []geom.Constraint{
			{Surface: 0, Sense: +1}, {Surface: 1, Sense: -1},
			{Surface: 2, Sense: +1}, {Surface: 3, Sense: -1},
			{Surface: 4, Sense: +1}, {Surface: 5, Sense: -1},
		},
	}
	for i := range surfaces {
		cell.Faces = append(cell.Faces, geom.Face{
			Surface: i, Boundary: geom.Reflective, Neighbor: geom.OutsideCell,
		})
	}
	g, err := geom.Build(surfaces, []geom.Cell{cell})
	if err != nil {
		panic(err.Error())
	}
	return g
}

func bareSphere(r float64) *geom.Geometry {
	g, err := geom.Build(
		[]geom.Surface{geom.Sphere(geom.Vec{}, r)},
		[]geom.Cell{{
			Material:    0,
			Constraints: []geom.Constraint{{Surface: 0, Sense: -1}},
			Faces: []geom.Face{{
				Surface: 0, Boundary: geom.Vacuum, Neighbor: geom.OutsideCell,
			}},
		}},
	)
	if err != nil {
		panic(err.Error())
	}
	return g
}

func oneGroup(t *testing.T, scatter, capture, fission, nu float64) *xs.Library {
	lib, err := xs.NewLibrary([]xs.Material{{
		Name:  "medium",
		Table: xs.ConstantTable(scatter, capture, fission, nu),
	}})
	require.NoError(t, err)
	return lib
}

func TestParamsCheck(t *testing.T) {
	good := Params{
		Particles: 100, MaxInactive: 5, Active: 10,
		EntropyTolerance: 0.01, MaxLostFraction: 0.01,
	}
	assert.NoError(t, good.Check())

	bad := good
	bad.Particles = 0
	assert.Error(t, bad.Check())

	bad = good
	bad.Active = 0
	assert.Error(t, bad.Check())

	bad = good
	bad.MaxLostFraction = 2
	assert.Error(t, bad.Check())

	bad = good
	bad.EntropyTolerance = -1
	assert.Error(t, bad.Check())
}

// For an infinite homogeneous medium, k must converge to the analytic
// ratio nu*Sigma_f / Sigma_a.
func TestInfiniteMediumK(t *testing.T) {
	scatter, capture, fission, nu := 0.2, 0.1, 0.05, 2.5
	want := nu * fission / (capture + fission)

	sol, err := New(
		reflectiveBox(1),
		oneGroup(t, scatter, capture, fission, nu),
		Params{
			Particles: 2000, MaxInactive: 5, Active: 25,
			EntropyTolerance: 0.05, MaxLostFraction: 0.001, Seed: 7,
		},
		SourceSpec{},
	)
	require.NoError(t, err)

	res, err := sol.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusComplete, res.Status)
	assert.InDelta(t, want, res.KEff,
		3*res.KStd/math.Sqrt(float64(res.ActiveGens))+0.01)
	assert.Equal(t, int64(0), res.LostParticles)
}

// Fixed seed and parameters must give bit-identical results whatever the
// worker count, because batches, not workers, own the summation order.
func TestDeterminismAcrossWorkerCounts(t *testing.T) {
	runWith := func(workers int) *Result {
		sol, err := New(
			bareSphere(6),
			oneGroup(t, 0.225216, 0.019584, 0.0816, 3.24),
			Params{
				Particles: 1000, MaxInactive: 3, Active: 5,
				EntropyTolerance: 0.01, MaxLostFraction: 0.001,
				Seed: 42, BatchSize: 64, Workers: workers,
			},
			SourceSpec{},
		)
		require.NoError(t, err)
		res, err := sol.Run(context.Background())
		require.NoError(t, err)
		return res
	}

	a := runWith(1)
	b := runWith(4)
	c := runWith(16)

	assert.Equal(t, a.KEff, b.KEff)
	assert.Equal(t, a.KEff, c.KEff)
	assert.Equal(t, a.KHistory, b.KHistory)
	assert.Equal(t, a.EntropyHistory, b.EntropyHistory)
	assert.Equal(t, a.Flux, b.Flux)
	assert.Equal(t, a.FissionRate, c.FissionRate)
	assert.Equal(t, a.AbsorptionRate, c.AbsorptionRate)
}

// LA-13511 one-group benchmark: a bare Pu-239 sphere of radius 6.082547 cm
// is exactly critical.
func TestCriticalSphereBenchmark(t *testing.T) {
	if testing.Short() {
		t.Skip("Criticality benchmark takes a while.")
	}

	sol, err := New(
		bareSphere(6.082547),
		oneGroup(t, 0.225216, 0.019584, 0.0816, 3.24),
		Params{
			Particles: 10000, MaxInactive: 20, Active: 50,
			EntropyTolerance: 0.01, MaxLostFraction: 0.001, Seed: 1,
		},
		SourceSpec{},
	)
	require.NoError(t, err)

	res, err := sol.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusComplete, res.Status)

	sigma := res.KStd / math.Sqrt(float64(res.ActiveGens))
	assert.InDelta(t, 1.0, res.KEff, 3*sigma+0.003)
}

// A non-multiplying medium banks no fission sites: k is skipped, nothing
// divides by zero, and the run reports an extinct source.
func TestPureAbsorberGoesExtinct(t *testing.T) {
	sol, err := New(
		bareSphere(5),
		oneGroup(t, 0.1, 0.5, 0, 0),
		Params{
			Particles: 500, MaxInactive: 3, Active: 3,
			EntropyTolerance: 0.01, MaxLostFraction: 0.001, Seed: 3,
		},
		SourceSpec{},
	)
	require.NoError(t, err)

	res, err := sol.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSourceExtinct, res.Status)
	assert.Empty(t, res.KHistory)
	assert.Equal(t, 0.0, res.KEff)
	assert.Equal(t, 1, res.LastGeneration)
}

// A geometry that cannot answer ray queries must fail the run loudly, not
// report a plausible-looking k.
func TestLostParticleGating(t *testing.T) {
	degenerate := &geom.Geometry{
		Surfaces: []geom.Surface{{
			Kind: geom.SphereKind, Radius: math.NaN(),
		}},
		Cells: []geom.Cell{{
			Material:    0,
			Constraints: []geom.Constraint{{Surface: 0, Sense: -1}},
			Faces: []geom.Face{{
				Surface: 0, Boundary: geom.Vacuum, Neighbor: geom.OutsideCell,
			}},
		}},
		Lo: geom.Vec{-1, -1, -1}, Hi: geom.Vec{1, 1, 1},
	}

	sol, err := New(
		degenerate,
		oneGroup(t, 0.2, 0.1, 0.05, 2.5),
		Params{
			Particles: 200, MaxInactive: 2, Active: 2,
			EntropyTolerance: 0.01, MaxLostFraction: 0.05, Seed: 5,
		},
		SourceSpec{},
	)
	require.NoError(t, err)

	res, err := sol.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorContains(t, err, "lost_particle_fraction_exceeded")

	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, 0, fatal.LastGeneration)
}

// Entropy convergence ends the inactive phase before the maximum when the
// tolerance allows it, and the run is not flagged.
func TestEarlyEntropyPromotion(t *testing.T) {
	var inactive int
	sol, err := New(
		bareSphere(6.082547),
		oneGroup(t, 0.225216, 0.019584, 0.0816, 3.24),
		Params{
			Particles: 500, MaxInactive: 50, Active: 5,
			EntropyTolerance: 10, MaxLostFraction: 0.001, Seed: 11,
		},
		SourceSpec{},
	)
	require.NoError(t, err)
	sol.OnProgress = func(p Progress) {
		if p.Phase == Inactive {
			inactive++
		}
	}

	res, err := sol.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.SourceNotConverged)
	assert.Less(t, inactive, 50,
		"a huge tolerance must promote before the maximum")
}

// A tolerance of zero can never be met, so the run uses all inactive
// generations and flags the result.
func TestNonConvergenceIsFlaggedNotFatal(t *testing.T) {
	sol, err := New(
		bareSphere(6.082547),
		oneGroup(t, 0.225216, 0.019584, 0.0816, 3.24),
		Params{
			Particles: 300, MaxInactive: 6, Active: 4,
			EntropyTolerance: 0, MaxLostFraction: 0.001, Seed: 13,
		},
		SourceSpec{},
	)
	require.NoError(t, err)

	res, err := sol.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, res.Status)
	assert.True(t, res.SourceNotConverged)
	assert.Equal(t, 4, res.ActiveGens)
	assert.Len(t, res.KHistory, 10, "inactive generations stay in the history")
}

// Cancellation is cooperative at generation boundaries and yields a
// partial result, never an error.
func TestCancellation(t *testing.T) {
	sol, err := New(
		bareSphere(6.082547),
		oneGroup(t, 0.225216, 0.019584, 0.0816, 3.24),
		Params{
			Particles: 300, MaxInactive: 5, Active: 5,
			EntropyTolerance: 0.01, MaxLostFraction: 0.001, Seed: 17,
		},
		SourceSpec{},
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := sol.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, res.Status)
	assert.Equal(t, 0, res.LastGeneration)
	assert.Empty(t, res.KHistory)
}

// For a converging source, the trailing entropy scatter shrinks as
// generations accumulate. Averaged over trials to keep the stochastic
// process from flaking the test.
func TestEntropyStabilizes(t *testing.T) {
	early, late := 0.0, 0.0
	trials := []uint64{101, 202, 303}

	for _, seed := range trials {
		sol, err := New(
			bareSphere(6.082547),
			oneGroup(t, 0.225216, 0.019584, 0.0816, 3.24),
			Params{
				Particles: 1000, MaxInactive: 20, Active: 1,
				EntropyTolerance: 0, MaxLostFraction: 0.001, Seed: seed,
			},
			// Start badly converged: all sites in one off-center blob.
			SourceSpec{
				Lo: geom.Vec{-3, -3, -3}, Hi: geom.Vec{-2, -2, -2},
			},
		)
		require.NoError(t, err)

		res, err := sol.Run(context.Background())
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(res.EntropyHistory), 20)

		h := res.EntropyHistory
		early += stat.StdDev(h[:6], nil)
		late += stat.StdDev(h[14:20], nil)
	}

	assert.Less(t, late, early,
		"trailing entropy scatter shrinks as the source converges")
}
