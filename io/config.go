/*package io reads run configuration files and writes the binary result
container. Configuration uses gcfg INI files: one [Run] section, named
[Surface], [Cell], and [Material] subsections describing the problem, and
an optional [Source] section.
*/
package io

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/gcfg.v1"

	"github.com/gonuclear/gomc/eigen"
	"github.com/gonuclear/gomc/geom"
	"github.com/gonuclear/gomc/xs"
)

const ExampleRunFile = `[Run]

#######################
# Required Parameters #
#######################

# Histories per generation.
Particles = 10000
# Most warm-up generations allowed. Source convergence can end the
# warm-up earlier; reaching this count without convergence flags the
# result as not converged.
MaxInactive = 30
# Statistics-gathering generations.
Active = 100
# File the binary result container is written to.
Output = result.gomc

#######################
# Optional Parameters #
#######################

# Trailing-window Shannon entropy standard deviation below which the
# fission source counts as converged. Default is 0.01.
# EntropyTolerance = 0.01

# Per-generation lost-particle fraction above which the run fails.
# Default is 0.001.
# MaxLostFraction = 0.001

# Top-level seed. Runs with equal seeds and parameters are bit-identical,
# whatever the thread count. Default is 1.
# Seed = 1

# Histories per work batch and entropy mesh resolution per axis. The
# defaults are fine unless you know why they are not.
# BatchSize = 1024
# EntropyMesh = 8

# Output files which are useful for profiling and debugging.
# ProfileFile = prof.out
# LogFile = log.out

# A bare plutonium sphere at its one-group critical radius.

[Surface "outer"]
Type = sphere
Radius = 6.082547

[Cell "core"]
Material = pu239
Inside = outer
Face = outer vacuum

[Material "pu239"]
# One-group constants, in 1/cm. For tabulated data use File = pu239.xs
# instead, a six-column text file of energy, total, scatter, absorption,
# fission, and nu-bar.
Scatter = 0.225216
Absorption = 0.019584
Fission = 0.081600
Nu = 3.24

# [Source]
# Uniform seeding box for generation zero. Defaults to the geometry's
# bounding box.
# X = -6
# Y = -6
# Z = -6
# XWidth = 12
# YWidth = 12
# ZWidth = 12`

// RunConfig is the [Run] section.
type RunConfig struct {
	// Required
	Particles   int
	MaxInactive int
	Active      int
	Output      string

	// Optional
	EntropyTolerance float64
	MaxLostFraction  float64
	Seed             int
	BatchSize        int
	EntropyMesh      int
	Threads          int
	LogFile          string
	ProfileFile      string
}

func (con *RunConfig) ValidParticles() bool   { return con.Particles > 0 }
func (con *RunConfig) ValidMaxInactive() bool { return con.MaxInactive >= 0 }
func (con *RunConfig) ValidActive() bool      { return con.Active > 0 }
func (con *RunConfig) ValidOutput() bool      { return con.Output != "" }
func (con *RunConfig) ValidLogFile() bool     { return con.LogFile != "" }
func (con *RunConfig) ValidProfileFile() bool { return con.ProfileFile != "" }

// SurfaceConfig is a [Surface "name"] subsection.
type SurfaceConfig struct {
	// Type is one of sphere, plane-x, plane-y, plane-z, plane.
	Type string

	// Sphere parameters. X, Y, Z default to the origin.
	X, Y, Z float64
	Radius  float64

	// Plane parameters: plane-x/y/z use Offset only; plane uses the
	// normal components NX, NY, NZ and Offset.
	NX, NY, NZ float64
	Offset     float64

	Name string
}

// CheckInit validates the subsection and builds the surface.
func (con *SurfaceConfig) CheckInit(name string) (geom.Surface, error) {
	con.Name = name
	switch strings.ToLower(strings.TrimSpace(con.Type)) {
	case "sphere":
		if con.Radius <= 0 {
			return geom.Surface{}, fmt.Errorf(
				"Need a positive Radius for Surface '%s'.", name,
			)
		}
		return geom.Sphere(geom.Vec{con.X, con.Y, con.Z}, con.Radius), nil
	case "plane-x":
		return geom.PlaneX(con.Offset), nil
	case "plane-y":
		return geom.PlaneY(con.Offset), nil
	case "plane-z":
		return geom.PlaneZ(con.Offset), nil
	case "plane":
		n := geom.Vec{con.NX, con.NY, con.NZ}
		if n.Norm() == 0 {
			return geom.Surface{}, fmt.Errorf(
				"Need a nonzero normal for Surface '%s'.", name,
			)
		}
		return geom.Plane(n, con.Offset), nil
	}
	return geom.Surface{}, fmt.Errorf(
		"Type of Surface '%s' must be one of [sphere | plane-x | plane-y "+
			"| plane-z | plane]. '%s' is not recognized.", name, con.Type,
	)
}

// CellConfig is a [Cell "name"] subsection. Inside and Outside list
// bounding surfaces by name; each Face entry is "<surface> vacuum",
// "<surface> reflective", or "<surface> <neighbor cell>".
type CellConfig struct {
	Material string
	Inside   []string
	Outside  []string
	Face     []string

	Name string
}

// MaterialConfig is a [Material "name"] subsection: either a data File or
// one-group constants.
type MaterialConfig struct {
	File string

	Scatter, Absorption, Fission, Nu float64
	// Total defaults to Scatter + Absorption + Fission.
	Total float64

	WattA, WattB float64
	// ScatterAlpha is the maximum fractional energy loss per scatter.
	ScatterAlpha float64

	Name string
}

// CheckInit validates the subsection and builds the material.
func (con *MaterialConfig) CheckInit(name string) (xs.Material, error) {
	con.Name = name
	mat := xs.Material{
		Name:         name,
		WattA:        con.WattA,
		WattB:        con.WattB,
		ScatterAlpha: con.ScatterAlpha,
	}

	if con.File != "" {
		t, err := xs.ReadTableFile(con.File)
		if err != nil {
			return mat, fmt.Errorf("Material '%s': %s", name, err.Error())
		}
		mat.Table = t
		return mat, nil
	}

	if con.Scatter < 0 || con.Absorption < 0 || con.Fission < 0 ||
		con.Nu < 0 {
		return mat, fmt.Errorf(
			"Material '%s' has a negative cross-section.", name,
		)
	}
	if con.Scatter+con.Absorption+con.Fission == 0 {
		return mat, fmt.Errorf(
			"Material '%s' needs either a File or nonzero one-group "+
				"constants.", name,
		)
	}
	if con.Fission > 0 && con.Nu == 0 {
		return mat, fmt.Errorf(
			"Material '%s' fissions but has Nu = 0.", name,
		)
	}

	if con.Total == 0 {
		mat.Table = xs.ConstantTable(
			con.Scatter, con.Absorption, con.Fission, con.Nu,
		)
		return mat, nil
	}

	two := func(v float64) []float64 { return []float64{v, v} }
	t, err := xs.NewTable(
		[]float64{1e-5, 1e2}, two(con.Total), two(con.Scatter),
		two(con.Absorption), two(con.Fission), two(con.Nu),
	)
	if err != nil {
		return mat, fmt.Errorf("Material '%s': %s", name, err.Error())
	}
	mat.Table = t
	return mat, nil
}

// SourceConfig is the optional [Source] section: the uniform seeding box
// for generation zero.
type SourceConfig struct {
	X, Y, Z                float64
	XWidth, YWidth, ZWidth float64
}

// Wrapper is the top-level structure gcfg reads a run file into.
type Wrapper struct {
	Run      RunConfig
	Surface  map[string]*SurfaceConfig
	Cell     map[string]*CellConfig
	Material map[string]*MaterialConfig
	Source   SourceConfig
}

// DefaultWrapper returns a wrapper with the documented defaults filled in.
func DefaultWrapper() *Wrapper {
	wrap := &Wrapper{}
	wrap.Run.EntropyTolerance = 0.01
	wrap.Run.MaxLostFraction = 0.001
	wrap.Run.Seed = 1
	return wrap
}

// ReadRunFile reads and validates a run configuration file.
func ReadRunFile(fname string) (*Wrapper, error) {
	wrap := DefaultWrapper()
	if err := gcfg.ReadFileInto(wrap, fname); err != nil {
		return nil, err
	}
	if err := wrap.check(); err != nil {
		return nil, err
	}
	return wrap, nil
}

func (wrap *Wrapper) check() error {
	con := &wrap.Run
	if !con.ValidParticles() {
		return fmt.Errorf(
			"Particles must be positive, got %d.", con.Particles,
		)
	}
	if !con.ValidMaxInactive() {
		return fmt.Errorf(
			"MaxInactive must be non-negative, got %d.", con.MaxInactive,
		)
	}
	if !con.ValidActive() {
		return fmt.Errorf("Active must be positive, got %d.", con.Active)
	}
	if !con.ValidOutput() {
		return fmt.Errorf("Invalid/non-existent 'Output' value.")
	}
	if len(wrap.Surface) == 0 {
		return fmt.Errorf("No [Surface] sections found.")
	}
	if len(wrap.Cell) == 0 {
		return fmt.Errorf("No [Cell] sections found.")
	}
	if len(wrap.Material) == 0 {
		return fmt.Errorf("No [Material] sections found.")
	}
	return nil
}

// sortedNames returns map keys in a fixed order so that ids assigned to
// surfaces, cells, and materials never depend on map iteration.
func sortedNames[T any](m map[string]*T) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build assembles the geometry, material library, solver parameters, and
// source box from a validated wrapper.
func (wrap *Wrapper) Build() (
	*geom.Geometry, *xs.Library, eigen.Params, eigen.SourceSpec, error,
) {
	var (
		params eigen.Params
		source eigen.SourceSpec
		fail   = func(err error) (
			*geom.Geometry, *xs.Library, eigen.Params, eigen.SourceSpec,
			error,
		) {
			return nil, nil, params, source, err
		}
	)

	matNames := sortedNames(wrap.Material)
	mats := make([]xs.Material, 0, len(matNames))
	for _, name := range matNames {
		mat, err := wrap.Material[name].CheckInit(name)
		if err != nil {
			return fail(err)
		}
		mats = append(mats, mat)
	}
	lib, err := xs.NewLibrary(mats)
	if err != nil {
		return fail(err)
	}

	surfNames := sortedNames(wrap.Surface)
	surfIdx := map[string]int{}
	surfaces := make([]geom.Surface, 0, len(surfNames))
	for _, name := range surfNames {
		s, err := wrap.Surface[name].CheckInit(name)
		if err != nil {
			return fail(err)
		}
		surfIdx[name] = len(surfaces)
		surfaces = append(surfaces, s)
	}

	cellNames := sortedNames(wrap.Cell)
	cellIdx := map[string]geom.CellID{}
	for i, name := range cellNames {
		cellIdx[name] = geom.CellID(i)
	}

	cells := make([]geom.Cell, 0, len(cellNames))
	for _, name := range cellNames {
		con := wrap.Cell[name]
		con.Name = name

		matID, ok := lib.ID(con.Material)
		if !ok {
			return fail(fmt.Errorf(
				"Cell '%s' uses unknown Material '%s'.", name, con.Material,
			))
		}

		cell := geom.Cell{Material: matID}
		appendConstraint := func(surfs []string, sense int) error {
			for _, sn := range surfs {
				idx, ok := surfIdx[sn]
				if !ok {
					return fmt.Errorf(
						"Cell '%s' references unknown Surface '%s'.",
						name, sn,
					)
				}
				cell.Constraints = append(
					cell.Constraints, geom.Constraint{Surface: idx, Sense: sense},
				)
			}
			return nil
		}
		if err := appendConstraint(con.Inside, -1); err != nil {
			return fail(err)
		}
		if err := appendConstraint(con.Outside, +1); err != nil {
			return fail(err)
		}

		for _, fs := range con.Face {
			fields := strings.Fields(fs)
			if len(fields) != 2 {
				return fail(fmt.Errorf(
					"Face '%s' of Cell '%s' must be '<surface> "+
						"<vacuum|reflective|cell name>'.", fs, name,
				))
			}
			idx, ok := surfIdx[fields[0]]
			if !ok {
				return fail(fmt.Errorf(
					"Face of Cell '%s' references unknown Surface '%s'.",
					name, fields[0],
				))
			}
			face := geom.Face{Surface: idx, Neighbor: geom.OutsideCell}
			switch strings.ToLower(fields[1]) {
			case "vacuum":
				face.Boundary = geom.Vacuum
			case "reflective":
				face.Boundary = geom.Reflective
			default:
				neighbor, ok := cellIdx[fields[1]]
				if !ok {
					return fail(fmt.Errorf(
						"Face of Cell '%s' references unknown Cell '%s'.",
						name, fields[1],
					))
				}
				face.Boundary = geom.Transmission
				face.Neighbor = neighbor
			}
			cell.Faces = append(cell.Faces, face)
		}
		cells = append(cells, cell)
	}

	g, err := geom.Build(surfaces, cells)
	if err != nil {
		return fail(err)
	}

	run := &wrap.Run
	params = eigen.Params{
		Particles:        run.Particles,
		MaxInactive:      run.MaxInactive,
		Active:           run.Active,
		EntropyTolerance: run.EntropyTolerance,
		MaxLostFraction:  run.MaxLostFraction,
		Seed:             uint64(run.Seed),
		BatchSize:        run.BatchSize,
		Workers:          run.Threads,
	}
	if run.EntropyMesh > 0 {
		params.EntropyDim = [3]int{
			run.EntropyMesh, run.EntropyMesh, run.EntropyMesh,
		}
	}

	src := &wrap.Source
	if src.XWidth > 0 && src.YWidth > 0 && src.ZWidth > 0 {
		source.Lo = geom.Vec{src.X, src.Y, src.Z}
		source.Hi = geom.Vec{
			src.X + src.XWidth, src.Y + src.YWidth, src.Z + src.ZWidth,
		}
	}

	return g, lib, params, source, nil
}
