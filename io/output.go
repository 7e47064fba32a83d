package io

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/gonuclear/gomc/eigen"
)

var end = binary.LittleEndian

const (
	// EndiannessFlag is stored in the header so readers can detect byte
	// order; all writers emit little endian.
	EndiannessFlag int64 = -1

	// ResultVersion is bumped whenever the container layout changes.
	ResultVersion int64 = 1
)

// TypeInfo is the fixed leading block of a result container.
type TypeInfo struct {
	Endianness int64
	HeaderSize int64
	Version    int64
}

// RunInfo describes the run the arrays belong to.
type RunInfo struct {
	RunID [16]byte

	Particles      int64
	LastGeneration int64
	ActiveGens     int64
	Cells          int64
	KLen           int64
	EntropyLen     int64

	Status             int64
	SourceNotConverged int64
	LostParticles      int64

	KEff, KStd  float64
	WallSeconds float64
}

// ResultFile is the decoded form of a result container.
type ResultFile struct {
	TypeInfo TypeInfo
	RunInfo  RunInfo

	// Columnar arrays keyed by cell id.
	CellIDs        []int64
	Flux           []float64
	FissionRate    []float64
	AbsorptionRate []float64

	KHistory       []float64
	EntropyHistory []float64
}

// WriteResult serializes a result: TypeInfo, RunInfo, then the per-cell
// columns and histories, all little endian.
func WriteResult(w io.Writer, res *eigen.Result) error {
	info := TypeInfo{
		Endianness: EndiannessFlag,
		HeaderSize: int64(binary.Size(TypeInfo{}) + binary.Size(RunInfo{})),
		Version:    ResultVersion,
	}

	notConverged := int64(0)
	if res.SourceNotConverged {
		notConverged = 1
	}
	run := RunInfo{
		RunID:              res.RunID,
		Particles:          int64(res.Particles),
		LastGeneration:     int64(res.LastGeneration),
		ActiveGens:         int64(res.ActiveGens),
		Cells:              int64(len(res.Flux)),
		KLen:               int64(len(res.KHistory)),
		EntropyLen:         int64(len(res.EntropyHistory)),
		Status:             int64(res.Status),
		SourceNotConverged: notConverged,
		LostParticles:      res.LostParticles,
		KEff:               res.KEff,
		KStd:               res.KStd,
		WallSeconds:        res.WallTime.Seconds(),
	}

	if err := binary.Write(w, end, info); err != nil {
		return err
	}
	if err := binary.Write(w, end, run); err != nil {
		return err
	}

	ids := make([]int64, len(res.Flux))
	for i := range ids {
		ids[i] = int64(i)
	}
	for _, block := range []interface{}{
		ids, res.Flux, res.FissionRate, res.AbsorptionRate,
		res.KHistory, res.EntropyHistory,
	} {
		if err := binary.Write(w, end, block); err != nil {
			return err
		}
	}
	return nil
}

// WriteResultFile writes the container to the named file.
func WriteResultFile(fname string, res *eigen.Result) error {
	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteResult(f, res)
}

// ReadResult decodes a result container written by WriteResult.
func ReadResult(r io.Reader) (*ResultFile, error) {
	rf := &ResultFile{}
	if err := binary.Read(r, end, &rf.TypeInfo); err != nil {
		return nil, err
	}
	if rf.TypeInfo.Endianness != EndiannessFlag {
		return nil, fmt.Errorf(
			"Result container has endianness flag %d. It was written on "+
				"an incompatible system.", rf.TypeInfo.Endianness,
		)
	}
	if rf.TypeInfo.Version != ResultVersion {
		return nil, fmt.Errorf(
			"Result container version is %d. This reader understands "+
				"version %d.", rf.TypeInfo.Version, ResultVersion,
		)
	}
	if err := binary.Read(r, end, &rf.RunInfo); err != nil {
		return nil, err
	}

	cells, kLen, hLen := rf.RunInfo.Cells, rf.RunInfo.KLen, rf.RunInfo.EntropyLen
	rf.CellIDs = make([]int64, cells)
	rf.Flux = make([]float64, cells)
	rf.FissionRate = make([]float64, cells)
	rf.AbsorptionRate = make([]float64, cells)
	rf.KHistory = make([]float64, kLen)
	rf.EntropyHistory = make([]float64, hLen)

	for _, block := range []interface{}{
		rf.CellIDs, rf.Flux, rf.FissionRate, rf.AbsorptionRate,
		rf.KHistory, rf.EntropyHistory,
	} {
		if err := binary.Read(r, end, block); err != nil {
			return nil, err
		}
	}
	return rf, nil
}

// ReadResultFile reads a container from the named file.
func ReadResultFile(fname string) (*ResultFile, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadResult(f)
}
