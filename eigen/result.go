package eigen

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Phase labels where a generation sits in the power iteration.
type Phase int

const (
	Inactive Phase = iota
	Active
)

func (p Phase) String() string {
	if p == Inactive {
		return "inactive"
	}
	return "active"
}

// Status describes how a run ended.
type Status int

const (
	// StatusComplete means all active generations ran.
	StatusComplete Status = iota
	// StatusCancelled means the run was cancelled at a generation
	// boundary; the result covers the completed generations only.
	StatusCancelled
	// StatusSourceExtinct means a generation banked no fission sites, so
	// there was nothing to seed the next generation with.
	StatusSourceExtinct
)

func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusCancelled:
		return "cancelled"
	case StatusSourceExtinct:
		return "source-extinct"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Progress is emitted after every completed generation.
type Progress struct {
	RunID      uuid.UUID
	Generation int
	Phase      Phase
	KGen       float64
	KMean      float64
	KStd       float64
	Entropy    float64
	Lost       int64
}

// Result is the converged payload handed to the exporter.
type Result struct {
	RunID  uuid.UUID
	Status Status

	// Particles is the generation size the run used.
	Particles int

	KEff, KStd float64

	// Per-cell tallies over the active phase, normalized by the total
	// active source weight.
	Flux           []float64
	FissionRate    []float64
	AbsorptionRate []float64

	// KHistory covers every generation; ActiveGens of them contributed
	// to KEff.
	KHistory       []float64
	EntropyHistory []float64
	ActiveGens     int

	SourceNotConverged bool
	LostParticles      int64
	LastGeneration     int
	WallTime           time.Duration
}

// FatalError is a run-level failure: the physics result cannot be trusted
// and no Result is produced.
type FatalError struct {
	Reason         string
	LastGeneration int
}

func (e *FatalError) Error() string {
	return fmt.Sprintf(
		"fatal: %s (last completed generation %d)",
		e.Reason, e.LastGeneration,
	)
}
