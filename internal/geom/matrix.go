package geom

import "math"

// Matrix2D is an affine transform stored as the top two rows of a 3x3
// matrix in column order [a b c d e f]:
//
//	| a  c  e |
//	| b  d  f |
//	| 0  0  1 |
//
// Map to view transforms combine rotation, zoom and translation; template
// transforms add shear.
type Matrix2D [6]float64

func Identity() Matrix2D { return Matrix2D{1, 0, 0, 1, 0, 0} }

func Translate(tx, ty float64) Matrix2D { return Matrix2D{1, 0, 0, 1, tx, ty} }

func Scale(sx, sy float64) Matrix2D { return Matrix2D{sx, 0, 0, sy, 0, 0} }

// Rotate returns a rotation about the origin by radians.
func Rotate(radians float64) Matrix2D {
	sin, cos := math.Sincos(radians)
	return Matrix2D{cos, sin, -sin, cos, 0, 0}
}

// Multiply returns m * n, the transform that applies n first.
func (m Matrix2D) Multiply(n Matrix2D) Matrix2D {
	a, b, c, d, e, f := m[0], m[1], m[2], m[3], m[4], m[5]
	return Matrix2D{
		a*n[0] + c*n[1],
		b*n[0] + d*n[1],
		a*n[2] + c*n[3],
		b*n[2] + d*n[3],
		a*n[4] + c*n[5] + e,
		b*n[4] + d*n[5] + f,
	}
}

func (m Matrix2D) TransformPoint(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

func (m Matrix2D) TransformCoord(p MapCoordF) MapCoordF {
	x, y := m.TransformPoint(p.X, p.Y)
	return MapCoordF{X: x, Y: y}
}

// Corners returns the corners of r after transformation, clockwise from the
// top left. Under rotation they no longer form an axis aligned rect.
func (m Matrix2D) Corners(r Rect) [4]MapCoordF {
	return [4]MapCoordF{
		m.TransformCoord(MapCoordF{X: r.Left(), Y: r.Top()}),
		m.TransformCoord(MapCoordF{X: r.Right(), Y: r.Top()}),
		m.TransformCoord(MapCoordF{X: r.Right(), Y: r.Bottom()}),
		m.TransformCoord(MapCoordF{X: r.Left(), Y: r.Bottom()}),
	}
}

// TransformRect returns the axis aligned bounding box of the transformed
// corners of r.
func (m Matrix2D) TransformRect(r Rect) Rect {
	corners := m.Corners(r)
	out := RectFromCorners(corners[0], corners[2])
	return out.IncludePoint(corners[1].X, corners[1].Y).IncludePoint(corners[3].X, corners[3].Y)
}

func (m Matrix2D) Determinant() float64 { return m[0]*m[3] - m[1]*m[2] }

// Invert returns the inverse transform. A singular matrix, which only a
// zero zoom or a degenerate template could produce, inverts to Identity.
func (m Matrix2D) Invert() Matrix2D {
	det := m.Determinant()
	if det == 0 {
		return Identity()
	}
	a, b, c, d, e, f := m[0]/det, m[1]/det, m[2]/det, m[3]/det, m[4], m[5]
	return Matrix2D{
		d,
		-b,
		-c,
		a,
		c*f - d*e,
		b*e - a*f,
	}
}

// Get returns the element at (row, col) of the 3x3 form.
func (m Matrix2D) Get(row, col int) float64 {
	if row == 2 {
		if col == 2 {
			return 1
		}
		return 0
	}
	return m[2*col+row]
}

// ToSlice returns [a b c d e f], the argument order of canvas setTransform.
func (m Matrix2D) ToSlice() []float64 { return m[:] }

func (m Matrix2D) IsIdentity() bool { return m.ApproxEqual(Identity(), 1e-10) }

// ApproxEqual reports whether every element differs by less than eps.
func (m Matrix2D) ApproxEqual(other Matrix2D, eps float64) bool {
	for i := range m {
		if math.Abs(m[i]-other[i]) >= eps {
			return false
		}
	}
	return true
}
