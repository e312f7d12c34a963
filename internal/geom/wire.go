package geom

// ============================================================
// Wires
// ============================================================

// Wire - упорядоченная цепочка ребер.
type Wire struct {
	Edges []Edge `json:"edges"`
}

func NewWire(edges ...Edge) Wire {
	return Wire{Edges: edges}
}

// Polygon строит wire из отрезков через pts. При closed последний
// отрезок соединяет конец с началом.
func Polygon(closed bool, pts ...Vector) Wire {
	var w Wire
	for i := 0; i+1 < len(pts); i++ {
		w.Edges = append(w.Edges, Line(pts[i], pts[i+1]))
	}
	if closed && len(pts) > 2 && !pts[0].Equals(pts[len(pts)-1], Precision) {
		w.Edges = append(w.Edges, Line(pts[len(pts)-1], pts[0]))
	}
	return w
}

func (w Wire) IsEmpty() bool {
	return len(w.Edges) == 0
}

// Closed сообщает, заканчивается ли последнее ребро в начале первого.
func (w Wire) Closed() bool {
	if len(w.Edges) == 0 {
		return false
	}
	return w.Edges[0].Start.Equals(w.Edges[len(w.Edges)-1].End, Precision)
}

// Vertexes возвращает начало каждого ребра и конечную точку, если wire
// открыт. Полная окружность дает одну вершину.
func (w Wire) Vertexes() []Vector {
	out := make([]Vector, 0, len(w.Edges)+1)
	for _, e := range w.Edges {
		out = append(out, e.Start)
	}
	if len(w.Edges) > 0 && !w.Closed() {
		out = append(out, w.Edges[len(w.Edges)-1].End)
	}
	return out
}

func (w Wire) Length() float64 {
	var l float64
	for _, e := range w.Edges {
		l += e.Length()
	}
	return l
}

func (w Wire) HasCurves() bool {
	for _, e := range w.Edges {
		if e.IsCurved() {
			return true
		}
	}
	return false
}

// CenterOfMass - центр ребер, взвешенный по длине.
func (w Wire) CenterOfMass() Vector {
	var sum Vector
	var total float64
	for _, e := range w.Edges {
		l := e.Length()
		var mid Vector
		if e.IsClosed() {
			mid = e.Center
		} else {
			mid = e.ValueAt(e.Sweep() / 2)
		}
		sum = sum.Add(mid.Scale(l))
		total += l
	}
	if total == 0 {
		if len(w.Edges) > 0 {
			return w.Edges[0].Start
		}
		return Vector{}
	}
	return sum.Scale(1 / total)
}

// SortEdges выстраивает ребра цепочкой, разворачивая их при необходимости.
// Несоединимые ребра добавляются в исходном порядке.
func (w Wire) SortEdges() Wire {
	if len(w.Edges) < 2 {
		return w
	}
	rest := append([]Edge(nil), w.Edges[1:]...)
	out := []Edge{w.Edges[0]}
	for len(rest) > 0 {
		tail := out[len(out)-1].End
		found := -1
		for i, e := range rest {
			if e.Start.Equals(tail, Precision) {
				found = i
				break
			}
			if e.End.Equals(tail, Precision) {
				rest[i] = e.Reversed()
				found = i
				break
			}
		}
		if found < 0 {
			out = append(out, rest...)
			break
		}
		out = append(out, rest[found])
		rest = append(rest[:found], rest[found+1:]...)
	}
	return Wire{Edges: out}
}

// Reversed обходит wire в обратную сторону.
func (w Wire) Reversed() Wire {
	out := make([]Edge, len(w.Edges))
	for i, e := range w.Edges {
		out[len(w.Edges)-1-i] = e.Reversed()
	}
	return Wire{Edges: out}
}

// Normal считает нормаль wire методом Ньюэлла по дискретизированному
// контуру. Для вырожденных wire возвращает нулевой вектор.
func (w Wire) Normal() Vector {
	if len(w.Edges) == 1 && w.Edges[0].IsCurved() {
		return w.Edges[0].Axis.Normalize()
	}
	pts := w.Points(0.01)
	var n Vector
	for i := range pts {
		a, b := pts[i], pts[(i+1)%len(pts)]
		n.X += (a.Y - b.Y) * (a.Z + b.Z)
		n.Y += (a.Z - b.Z) * (a.X + b.X)
		n.Z += (a.X - b.X) * (a.Y + b.Y)
	}
	return n.Normalize()
}

// Points возвращает дискретизированный контур без повтора замыкающей точки.
func (w Wire) Points(tolerance float64) []Vector {
	var pts []Vector
	for _, e := range w.Edges {
		seg := e.Discretize(tolerance)
		if len(pts) > 0 && len(seg) > 0 && pts[len(pts)-1].Equals(seg[0], Precision) {
			seg = seg[1:]
		}
		pts = append(pts, seg...)
	}
	if len(pts) > 1 && pts[0].Equals(pts[len(pts)-1], Precision) {
		pts = pts[:len(pts)-1]
	}
	return pts
}

func (w Wire) Transformed(p Placement) Wire {
	out := make([]Edge, len(w.Edges))
	for i, e := range w.Edges {
		out[i] = e.Transformed(p)
	}
	return Wire{Edges: out}
}

func (w Wire) Translated(v Vector) Wire {
	return w.Transformed(Translation(v))
}
