package io

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonuclear/gomc/eigen"
)

func sampleResult() *eigen.Result {
	return &eigen.Result{
		RunID:              uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e"),
		Status:             eigen.StatusComplete,
		Particles:          10000,
		KEff:               0.99872,
		KStd:               0.0041,
		Flux:               []float64{1.25, 0.5, 0.03},
		FissionRate:        []float64{0.2, 0.07, 0},
		AbsorptionRate:     []float64{0.3, 0.11, 0.01},
		KHistory:           []float64{1.02, 0.98, 1.00, 0.99},
		EntropyHistory:     []float64{2.1, 2.3, 2.35, 2.34},
		ActiveGens:         2,
		SourceNotConverged: true,
		LostParticles:      3,
		LastGeneration:     4,
		WallTime:           90 * time.Second,
	}
}

func TestResultRoundTrip(t *testing.T) {
	res := sampleResult()

	buf := &bytes.Buffer{}
	require.NoError(t, WriteResult(buf, res))

	rf, err := ReadResult(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, EndiannessFlag, rf.TypeInfo.Endianness)
	assert.Equal(t, ResultVersion, rf.TypeInfo.Version)

	assert.Equal(t, [16]byte(res.RunID), rf.RunInfo.RunID)
	assert.Equal(t, int64(10000), rf.RunInfo.Particles)
	assert.Equal(t, int64(4), rf.RunInfo.LastGeneration)
	assert.Equal(t, int64(2), rf.RunInfo.ActiveGens)
	assert.Equal(t, int64(3), rf.RunInfo.Cells)
	assert.Equal(t, int64(eigen.StatusComplete), rf.RunInfo.Status)
	assert.Equal(t, int64(1), rf.RunInfo.SourceNotConverged)
	assert.Equal(t, int64(3), rf.RunInfo.LostParticles)
	assert.Equal(t, res.KEff, rf.RunInfo.KEff)
	assert.Equal(t, 90.0, rf.RunInfo.WallSeconds)

	assert.Equal(t, []int64{0, 1, 2}, rf.CellIDs)
	assert.Equal(t, res.Flux, rf.Flux)
	assert.Equal(t, res.FissionRate, rf.FissionRate)
	assert.Equal(t, res.AbsorptionRate, rf.AbsorptionRate)
	assert.Equal(t, res.KHistory, rf.KHistory)
	assert.Equal(t, res.EntropyHistory, rf.EntropyHistory)
}

func TestResultFileRoundTrip(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "result.gomc")
	require.NoError(t, WriteResultFile(fname, sampleResult()))

	rf, err := ReadResultFile(fname)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), rf.RunInfo.Particles)
}

func TestReadRejectsWrongVersion(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteResult(buf, sampleResult()))

	raw := buf.Bytes()
	// Version is the third int64 of the header.
	raw[16] = 0xff
	_, err := ReadResult(bytes.NewReader(raw))
	assert.Error(t, err)
}
