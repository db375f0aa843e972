package geom

import "math"

// CoordFlag marks the role of a coordinate inside a path.
type CoordFlag uint8

const (
	FlagCurveStart CoordFlag = 1 << iota
	FlagClosePoint
	FlagHolePoint
	FlagDashPoint

	flagBits = 4
	flagMask = 1<<flagBits - 1
)

// MapCoord is a map position in 1/1000 mm units. The flag bits are packed
// into the low bits of the x component, so moving a coordinate never
// touches its flags.
type MapCoord struct {
	x int64 // native x << flagBits | flags
	y int64
}

// NewMapCoord creates a coordinate from millimeters.
func NewMapCoord(xmm, ymm float64) MapCoord {
	return FromNative(int64(math.Round(xmm*1000)), int64(math.Round(ymm*1000)))
}

// FromNative creates a coordinate from 1/1000 mm units.
func FromNative(x, y int64) MapCoord {
	return MapCoord{x: x << flagBits, y: y}
}

// FromRaw rebuilds a coordinate from its packed storage form.
func FromRaw(rawX, rawY int64) MapCoord {
	return MapCoord{x: rawX, y: rawY}
}

// Raw returns the packed storage form (x carries the flags).
func (c MapCoord) Raw() (int64, int64) { return c.x, c.y }

func (c MapCoord) NativeX() int64 { return c.x >> flagBits }
func (c MapCoord) NativeY() int64 { return c.y }

// X returns the x position in millimeters.
func (c MapCoord) X() float64 { return float64(c.NativeX()) / 1000 }

// Y returns the y position in millimeters.
func (c MapCoord) Y() float64 { return float64(c.y) / 1000 }

func (c MapCoord) Flags() CoordFlag { return CoordFlag(c.x & flagMask) }

func (c MapCoord) HasFlag(f CoordFlag) bool { return c.Flags()&f != 0 }

// WithFlag returns a copy with the flag set or cleared.
func (c MapCoord) WithFlag(f CoordFlag, on bool) MapCoord {
	if on {
		c.x |= int64(f)
	} else {
		c.x &^= int64(f)
	}
	return c
}

func (c MapCoord) IsCurveStart() bool { return c.HasFlag(FlagCurveStart) }
func (c MapCoord) IsClosePoint() bool { return c.HasFlag(FlagClosePoint) }
func (c MapCoord) IsHolePoint() bool  { return c.HasFlag(FlagHolePoint) }
func (c MapCoord) IsDashPoint() bool  { return c.HasFlag(FlagDashPoint) }

// Moved returns the coordinate translated by native units, flags preserved.
func (c MapCoord) Moved(dx, dy int64) MapCoord {
	return MapCoord{x: (c.NativeX()+dx)<<flagBits | int64(c.Flags()), y: c.y + dy}
}

// Scaled returns the coordinate scaled about the origin, flags preserved.
func (c MapCoord) Scaled(factor float64) MapCoord {
	nx := int64(math.Round(float64(c.NativeX()) * factor))
	ny := int64(math.Round(float64(c.y) * factor))
	return MapCoord{x: nx<<flagBits | int64(c.Flags()), y: ny}
}

// ToF converts to a floating point coordinate in millimeters.
func (c MapCoord) ToF() MapCoordF {
	return MapCoordF{X: c.X(), Y: c.Y()}
}

// MapCoordF is a floating point map position in millimeters.
type MapCoordF struct {
	X float64
	Y float64
}

func (c MapCoordF) Add(o MapCoordF) MapCoordF { return MapCoordF{X: c.X + o.X, Y: c.Y + o.Y} }
func (c MapCoordF) Sub(o MapCoordF) MapCoordF { return MapCoordF{X: c.X - o.X, Y: c.Y - o.Y} }
func (c MapCoordF) Mul(f float64) MapCoordF   { return MapCoordF{X: c.X * f, Y: c.Y * f} }

func (c MapCoordF) Dot(o MapCoordF) float64 { return c.X*o.X + c.Y*o.Y }

func (c MapCoordF) LengthSquaredTo(o MapCoordF) float64 {
	dx, dy := c.X-o.X, c.Y-o.Y
	return dx*dx + dy*dy
}

func (c MapCoordF) LengthTo(o MapCoordF) float64 {
	return math.Sqrt(c.LengthSquaredTo(o))
}

// ToMapCoord rounds to the fixed point representation without flags.
func (c MapCoordF) ToMapCoord() MapCoord {
	return NewMapCoord(c.X, c.Y)
}

// DistanceToSegmentSquared returns the squared distance from p to the segment ab.
func DistanceToSegmentSquared(p, a, b MapCoordF) float64 {
	ab := b.Sub(a)
	lenSq := ab.Dot(ab)
	if lenSq == 0 {
		return p.LengthSquaredTo(a)
	}
	t := p.Sub(a).Dot(ab) / lenSq
	t = max(0, min(1, t))
	return p.LengthSquaredTo(a.Add(ab.Mul(t)))
}
