/*package geom represents the spatial domain of a transport problem as a
static arena of cells bounded by analytic surfaces, and answers the two ray
queries transport needs: which cell contains a point, and how far a ray can
travel before leaving its cell.
*/
package geom

import (
	"math"
)

// Vec is a three dimensional vector.
type Vec [3]float64

// Dot returns the inner product of v and u.
func (v *Vec) Dot(u *Vec) float64 {
	return v[0]*u[0] + v[1]*u[1] + v[2]*u[2]
}

// Norm returns the Euclidean length of v.
func (v *Vec) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalize rescales v to unit length in place.
func (v *Vec) Normalize() {
	n := v.Norm()
	v[0], v[1], v[2] = v[0]/n, v[1]/n, v[2]/n
}

// ScaleAdd sets v to v + d*u.
func (v *Vec) ScaleAdd(d float64, u *Vec) {
	v[0] += d * u[0]
	v[1] += d * u[1]
	v[2] += d * u[2]
}

// Sub sets out to v - u.
func (v *Vec) Sub(u, out *Vec) {
	out[0] = v[0] - u[0]
	out[1] = v[1] - u[1]
	out[2] = v[2] - u[2]
}

// Reflect mirrors v about the plane with unit normal n in place.
func (v *Vec) Reflect(n *Vec) {
	d := 2 * v.Dot(n)
	v[0] -= d * n[0]
	v[1] -= d * n[1]
	v[2] -= d * n[2]
}

// IsFinite returns false if any component is NaN or infinite.
func (v *Vec) IsFinite() bool {
	for i := 0; i < 3; i++ {
		if math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
			return false
		}
	}
	return true
}
