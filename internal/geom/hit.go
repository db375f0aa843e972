package geom

// SegmentIntersectsRect reports whether the segment ab touches the rect.
func SegmentIntersectsRect(a, b MapCoordF, r Rect) bool {
	if r.Contains(a.X, a.Y) || r.Contains(b.X, b.Y) {
		return true
	}
	// Liang-Barsky clipping against the four edges.
	dx, dy := b.X-a.X, b.Y-a.Y
	t0, t1 := 0.0, 1.0
	clip := func(p, q float64) bool {
		if p == 0 {
			return q >= 0
		}
		t := q / p
		if p < 0 {
			if t > t1 {
				return false
			}
			t0 = max(t0, t)
		} else {
			if t < t0 {
				return false
			}
			t1 = min(t1, t)
		}
		return true
	}
	return clip(-dx, a.X-r.Left()) &&
		clip(dx, r.Right()-a.X) &&
		clip(-dy, a.Y-r.Top()) &&
		clip(dy, r.Bottom()-a.Y) &&
		t0 <= t1
}

// PointInPolygons applies the even-odd rule over all rings, so inner rings
// act as holes.
func PointInPolygons(p MapCoordF, rings [][]MapCoordF) bool {
	inside := false
	for _, ring := range rings {
		n := len(ring)
		if n < 3 {
			continue
		}
		for i, j := 0, n-1; i < n; j, i = i, i+1 {
			pi, pj := ring[i], ring[j]
			if (pi.Y > p.Y) != (pj.Y > p.Y) &&
				p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X {
				inside = !inside
			}
		}
	}
	return inside
}

// BoundingRect returns the bounding box of the points. A single point or a
// straight axis-aligned run yields a degenerate rect.
func BoundingRect(points []MapCoordF) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	r := Rect{X: points[0].X, Y: points[0].Y}
	for _, p := range points[1:] {
		r = r.IncludePoint(p.X, p.Y)
	}
	return r
}
