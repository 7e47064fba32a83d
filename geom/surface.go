package geom

import (
	"fmt"
	"math"
)

// SurfaceKind discriminates the closed set of analytic surface types.
type SurfaceKind int

const (
	SphereKind SurfaceKind = iota
	PlaneKind
)

// Surface is a tagged analytic surface. Spheres use Center and Radius;
// planes use N (unit normal) and Offset, satisfying N·x = Offset. The
// sign convention for Eval is negative on the "inside": inside the sphere,
// or on the side the normal points away from for a plane.
type Surface struct {
	Kind SurfaceKind

	Center Vec
	Radius float64

	N      Vec
	Offset float64
}

// Sphere returns a spherical surface centered at c.
func Sphere(c Vec, r float64) Surface {
	return Surface{Kind: SphereKind, Center: c, Radius: r}
}

// Plane returns a plane with unit normal n satisfying n·x = offset.
func Plane(n Vec, offset float64) Surface {
	n.Normalize()
	return Surface{Kind: PlaneKind, N: n, Offset: offset}
}

// PlaneX returns the plane x = x0. PlaneY and PlaneZ are analogous.
func PlaneX(x0 float64) Surface { return Surface{Kind: PlaneKind, N: Vec{1, 0, 0}, Offset: x0} }
func PlaneY(y0 float64) Surface { return Surface{Kind: PlaneKind, N: Vec{0, 1, 0}, Offset: y0} }
func PlaneZ(z0 float64) Surface { return Surface{Kind: PlaneKind, N: Vec{0, 0, 1}, Offset: z0} }

// Eval returns the signed surface function at p: negative inside,
// positive outside, zero on the surface.
func (s *Surface) Eval(p *Vec) float64 {
	switch s.Kind {
	case SphereKind:
		var d Vec
		p.Sub(&s.Center, &d)
		return d.Dot(&d) - s.Radius*s.Radius
	case PlaneKind:
		return s.N.Dot(p) - s.Offset
	}
	panic(fmt.Sprintf("Unknown surface kind %d", s.Kind))
}

// Distance returns the smallest intersection distance greater than minDist
// along the ray (p, dir), or +Inf if the ray never crosses the surface.
// dir must be unit length.
func (s *Surface) Distance(p, dir *Vec, minDist float64) float64 {
	switch s.Kind {
	case SphereKind:
		// Solve |p + t*dir - c|^2 = r^2 for the smallest positive root.
		var d Vec
		p.Sub(&s.Center, &d)
		b := d.Dot(dir)
		c := d.Dot(&d) - s.Radius*s.Radius
		disc := b*b - c
		if disc < 0 {
			return math.Inf(1)
		}
		sq := math.Sqrt(disc)
		if t := -b - sq; t > minDist {
			return t
		}
		if t := -b + sq; t > minDist {
			return t
		}
		return math.Inf(1)
	case PlaneKind:
		cos := s.N.Dot(dir)
		if cos == 0 {
			return math.Inf(1)
		}
		t := (s.Offset - s.N.Dot(p)) / cos
		if t > minDist {
			return t
		}
		return math.Inf(1)
	}
	panic(fmt.Sprintf("Unknown surface kind %d", s.Kind))
}

// NormalAt returns the outward unit normal at the point p, which is assumed
// to lie on the surface.
func (s *Surface) NormalAt(p *Vec) Vec {
	switch s.Kind {
	case SphereKind:
		var n Vec
		p.Sub(&s.Center, &n)
		n.Normalize()
		return n
	case PlaneKind:
		return s.N
	}
	panic(fmt.Sprintf("Unknown surface kind %d", s.Kind))
}

// valid reports whether the surface parameters describe a real surface.
func (s *Surface) valid() bool {
	switch s.Kind {
	case SphereKind:
		return s.Radius > 0 && s.Center.IsFinite()
	case PlaneKind:
		return s.N.IsFinite() && !math.IsNaN(s.Offset) &&
			math.Abs(s.N.Norm()-1) < 1e-10
	}
	return false
}
