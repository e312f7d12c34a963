package geom

import "math"

// ============================================================
// Tessellation
// ============================================================

// Tessellate превращает тело в треугольную сетку. Плоские грани
// триангулируются по дискретизированным контурам, поверхности выдавливания
// становятся полосами четырехугольников вдоль базового ребра.
func Tessellate(s Solid, tolerance float64) *Mesh {
	m := &Mesh{Placement: Identity()}
	index := make(map[[3]int64]int)
	vertex := func(v Vector) int {
		k := quantize(v)
		if i, ok := index[k]; ok {
			return i
		}
		index[k] = len(m.Vertices)
		m.Vertices = append(m.Vertices, v)
		return len(m.Vertices) - 1
	}
	for _, f := range s.Faces {
		for _, tri := range TessellateFace(f, tolerance) {
			a, b, c := vertex(tri[0]), vertex(tri[1]), vertex(tri[2])
			if a == b || b == c || a == c {
				continue
			}
			m.Triangles = append(m.Triangles, [3]int{a, b, c})
		}
	}
	return m
}

// TessellateFace возвращает треугольники одной грани с обходом,
// сохраняющим ориентацию грани.
func TessellateFace(f Face, tolerance float64) [][3]Vector {
	if !f.IsPlanar() {
		return stripTriangles(f, tolerance)
	}
	n := f.Normal()
	if n.IsZero() {
		return nil
	}
	outer := f.Outer.Points(tolerance)
	var holes [][]Vector
	for _, w := range f.Inner {
		holes = append(holes, w.Points(tolerance))
	}
	return triangulate(outer, holes, n)
}

func stripTriangles(f Face, tolerance float64) [][3]Vector {
	if len(f.Outer.Edges) == 0 {
		return nil
	}
	base := f.Outer.Edges[0].Discretize(tolerance)
	var out [][3]Vector
	for i := 0; i+1 < len(base); i++ {
		p0, p1 := base[i], base[i+1]
		q0, q1 := p0.Add(f.Sweep), p1.Add(f.Sweep)
		out = append(out, [3]Vector{p0, p1, q1}, [3]Vector{p0, q1, q0})
	}
	return out
}

type point2 struct{ x, y float64 }

func cross2(o, a, b point2) float64 {
	return (a.x-o.x)*(b.y-o.y) - (a.y-o.y)*(b.x-o.x)
}

func area2(pts []point2) float64 {
	var a float64
	for i := range pts {
		j := (i + 1) % len(pts)
		a += pts[i].x*pts[j].y - pts[j].x*pts[i].y
	}
	return a / 2
}

// triangulate режет уши у полигона с отверстиями в проекции на плоскость n.
// Сначала отверстия встраиваются во внешний контур мостами.
func triangulate(outer []Vector, holes [][]Vector, n Vector) [][3]Vector {
	if len(outer) < 3 {
		return nil
	}
	u := Perpendicular(n)
	w := n.Cross(u)
	var verts []Vector
	var flat []point2
	add := func(loop []Vector) []int {
		idx := make([]int, len(loop))
		for i, p := range loop {
			idx[i] = len(verts)
			verts = append(verts, p)
			flat = append(flat, point2{p.Dot(u), p.Dot(w)})
		}
		return idx
	}
	ring := add(outer)
	if area2(pick(flat, ring)) < 0 {
		reverse(ring)
	}
	for _, h := range holes {
		if len(h) < 3 {
			continue
		}
		hole := add(h)
		if area2(pick(flat, hole)) > 0 {
			reverse(hole)
		}
		ring = bridge(flat, ring, hole)
	}

	var out [][3]Vector
	for guard := 0; len(ring) > 3 && guard < 4*len(verts)*len(verts); guard++ {
		clipped := false
		for i := range ring {
			a := ring[(i+len(ring)-1)%len(ring)]
			b := ring[i]
			c := ring[(i+1)%len(ring)]
			if !isEar(flat, ring, a, b, c) {
				continue
			}
			out = append(out, [3]Vector{verts[a], verts[b], verts[c]})
			ring = append(ring[:i:i], ring[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			break
		}
	}
	// остаток, который не удалось разрезать, закрывается веером
	for i := 1; i+1 < len(ring); i++ {
		out = append(out, [3]Vector{verts[ring[0]], verts[ring[i]], verts[ring[i+1]]})
	}
	return out
}

func pick(flat []point2, idx []int) []point2 {
	out := make([]point2, len(idx))
	for i, j := range idx {
		out[i] = flat[j]
	}
	return out
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func isEar(flat []point2, ring []int, a, b, c int) bool {
	pa, pb, pc := flat[a], flat[b], flat[c]
	if cross2(pa, pb, pc) <= 1e-12 {
		return false
	}
	for _, k := range ring {
		p := flat[k]
		if same(p, pa) || same(p, pb) || same(p, pc) {
			continue
		}
		if cross2(pa, pb, p) >= 0 && cross2(pb, pc, p) >= 0 && cross2(pc, pa, p) >= 0 {
			return false
		}
	}
	return true
}

func same(a, b point2) bool {
	return math.Abs(a.x-b.x) < Precision && math.Abs(a.y-b.y) < Precision
}

// bridge вклеивает hole в ring через ближайшую пару взаимно
// видимых вершин.
func bridge(flat []point2, ring, hole []int) []int {
	bestR, bestH := -1, -1
	best := math.Inf(1)
	for hi, h := range hole {
		for ri, r := range ring {
			d := math.Hypot(flat[h].x-flat[r].x, flat[h].y-flat[r].y)
			if d >= best || crossesAny(flat, ring, flat[r], flat[h]) || crossesAny(flat, hole, flat[r], flat[h]) {
				continue
			}
			best, bestR, bestH = d, ri, hi
		}
	}
	if bestR < 0 {
		bestR, bestH = 0, 0
	}
	out := make([]int, 0, len(ring)+len(hole)+2)
	out = append(out, ring[:bestR+1]...)
	for i := 0; i <= len(hole); i++ {
		out = append(out, hole[(bestH+i)%len(hole)])
	}
	out = append(out, ring[bestR])
	return append(out, ring[bestR+1:]...)
}

func crossesAny(flat []point2, loop []int, p, q point2) bool {
	for i := range loop {
		a, b := flat[loop[i]], flat[loop[(i+1)%len(loop)]]
		if same(a, p) || same(a, q) || same(b, p) || same(b, q) {
			continue
		}
		d1, d2 := cross2(p, q, a), cross2(p, q, b)
		d3, d4 := cross2(a, b, p), cross2(a, b, q)
		if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
			return true
		}
	}
	return false
}
