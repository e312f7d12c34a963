package geom

import "math"

// ============================================================
// Edges
// ============================================================

type EdgeKind string

const (
	EdgeLine    EdgeKind = "line"
	EdgeCircle  EdgeKind = "circle"
	EdgeEllipse EdgeKind = "ellipse"
)

// Edge - отрезок, дуга окружности или полный эллипс.
// Дуги идут против часовой стрелки вокруг Axis от Start к End; окружность
// с совпадающими Start и End - полная. Эллипсы всегда полные.
type Edge struct {
	Kind        EdgeKind `json:"kind"`
	Start       Vector   `json:"start"`
	End         Vector   `json:"end"`
	Center      Vector   `json:"center"`
	Axis        Vector   `json:"axis"`
	Radius      float64  `json:"radius,omitempty"`
	MinorRadius float64  `json:"minor_radius,omitempty"`
	MajorDir    Vector   `json:"major_dir"`
}

func Line(a, b Vector) Edge {
	return Edge{Kind: EdgeLine, Start: a, End: b}
}

// Arc создает дугу против часовой стрелки вокруг axis от start до end.
func Arc(center Vector, axis Vector, start, end Vector) Edge {
	return Edge{
		Kind:   EdgeCircle,
		Start:  start,
		End:    end,
		Center: center,
		Axis:   axis.Normalize(),
		Radius: start.Sub(center).Length(),
	}
}

// Circle создает полную окружность, начинающуюся на опорном направлении.
func Circle(center Vector, radius float64, axis Vector, ref Vector) Edge {
	axis = axis.Normalize()
	ref = ref.Sub(axis.Scale(ref.Dot(axis))).Normalize()
	if ref.IsZero() {
		ref = Perpendicular(axis)
	}
	p := center.Add(ref.Scale(radius))
	return Edge{Kind: EdgeCircle, Start: p, End: p, Center: center, Axis: axis, Radius: radius}
}

// Ellipse создает полный эллипс. major должен быть >= minor.
func Ellipse(center Vector, major, minor float64, axis, majorDir Vector) Edge {
	axis = axis.Normalize()
	majorDir = majorDir.Sub(axis.Scale(majorDir.Dot(axis))).Normalize()
	if majorDir.IsZero() {
		majorDir = Perpendicular(axis)
	}
	p := center.Add(majorDir.Scale(major))
	return Edge{
		Kind:        EdgeEllipse,
		Start:       p,
		End:         p,
		Center:      center,
		Axis:        axis,
		Radius:      major,
		MinorRadius: minor,
		MajorDir:    majorDir,
	}
}

func (e Edge) IsCurved() bool {
	return e.Kind != EdgeLine
}

// IsClosed сообщает, является ли ребро полной окружностью или эллипсом.
func (e Edge) IsClosed() bool {
	return e.IsCurved() && e.Start.Equals(e.End, Precision)
}

// Sweep - диапазон параметра ребра: длина для отрезков и
// угол раствора для дуг.
func (e Edge) Sweep() float64 {
	switch e.Kind {
	case EdgeLine:
		return e.End.Sub(e.Start).Length()
	case EdgeEllipse:
		return 2 * math.Pi
	}
	if e.IsClosed() {
		return 2 * math.Pi
	}
	a := Angle(e.Start.Sub(e.Center), e.End.Sub(e.Center), e.Axis)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a
}

// ValueAt возвращает точку для параметра t из [0, Sweep()].
func (e Edge) ValueAt(t float64) Vector {
	switch e.Kind {
	case EdgeLine:
		l := e.Sweep()
		if l == 0 {
			return e.Start
		}
		return e.Start.Add(e.End.Sub(e.Start).Scale(t / l))
	case EdgeEllipse:
		minorDir := e.Axis.Cross(e.MajorDir)
		return e.Center.
			Add(e.MajorDir.Scale(e.Radius * math.Cos(t))).
			Add(minorDir.Scale(e.MinorRadius * math.Sin(t)))
	}
	return e.Center.Add(rotateAround(e.Start.Sub(e.Center), e.Axis, t))
}

func (e Edge) Length() float64 {
	switch e.Kind {
	case EdgeLine:
		return e.Sweep()
	case EdgeEllipse:
		a, b := e.Radius, e.MinorRadius
		h := (a - b) * (a - b) / ((a + b) * (a + b))
		return math.Pi * (a + b) * (1 + 3*h/(10+math.Sqrt(4-3*h)))
	}
	return e.Radius * e.Sweep()
}

// Reversed возвращает ту же геометрию в обратном направлении.
func (e Edge) Reversed() Edge {
	r := e
	r.Start, r.End = e.End, e.Start
	if e.IsCurved() {
		r.Axis = e.Axis.Neg()
	}
	return r
}

// Discretize дискретизирует ребро от начала до конца. Кривые делятся так,
// чтобы отклонение хорды не превышало tolerance.
func (e Edge) Discretize(tolerance float64) []Vector {
	if !e.IsCurved() {
		return []Vector{e.Start, e.End}
	}
	n := segmentCount(e.Radius, e.Sweep(), tolerance)
	sweep := e.Sweep()
	pts := make([]Vector, 0, n+1)
	for i := 0; i <= n; i++ {
		pts = append(pts, e.ValueAt(sweep*float64(i)/float64(n)))
	}
	return pts
}

func segmentCount(radius, sweep, tolerance float64) int {
	if tolerance <= 0 || radius <= tolerance {
		return 8
	}
	step := 2 * math.Acos(1-tolerance/radius)
	n := int(math.Ceil(sweep / step))
	if n < 4 {
		n = 4
	}
	if n > 128 {
		n = 128
	}
	return n
}

func (e Edge) Transformed(p Placement) Edge {
	out := e
	out.Start = p.MultVec(e.Start)
	out.End = p.MultVec(e.End)
	if e.IsCurved() {
		out.Center = p.MultVec(e.Center)
		out.Axis = p.Rotate(e.Axis)
		out.MajorDir = p.Rotate(e.MajorDir)
	}
	return out
}

func (e Edge) Translated(v Vector) Edge {
	return e.Transformed(Translation(v))
}
