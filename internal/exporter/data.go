package exporter

import (
	"math"
	"slices"

	"archifc/internal/document"
	"archifc/internal/geom"
	"archifc/internal/ifc/writer"
)

// ============================================================
// Geometry data for the writer
// ============================================================

type ProfileKind string

const (
	ProfilePolyline  ProfileKind = "polyline"
	ProfileCircle    ProfileKind = "circle"
	ProfileEllipse   ProfileKind = "ellipse"
	ProfileComposite ProfileKind = "composite"
)

// ExtrusionData - профиль в локальной плоскости XY, выдавленный вдоль Vector,
// и система координат (Origin, XAxis, ZAxis), которая его размещает.
type ExtrusionData struct {
	Kind ProfileKind

	// Points - замкнутая полилиния, последняя точка повторяет первую.
	Points []geom.Vector

	Center      geom.Vector
	Radius      float64
	MinorRadius float64
	MajorDir    geom.Vector

	Segments []writer.Segment

	Vector geom.Vector
	Origin geom.Vector
	XAxis  geom.Vector
	ZAxis  geom.Vector
}

// Loop - упорядоченный список точек; Face - внешний контур и за ним
// отверстия; тело - список граней.
type (
	Loop  = []geom.Vector
	Face  = [][]geom.Vector
	Solid = [][][]geom.Vector
)

const planeTolerance = 1e-6

// Point применяет placement и масштаб к одному вектору.
func Point(v geom.Vector, scale float64, placement geom.Placement) geom.Vector {
	return placement.MultVec(v).Scale(scale)
}

// Tuples возвращает вершины w, сцепленные конец к началу и упорядоченные
// против часовой стрелки вокруг normal (+Z, если нулевая), с placement и
// масштабом. close повторяет первую точку в конце: контуры граней остаются
// открытыми, профили должны быть замкнуты.
func Tuples(w geom.Wire, scale float64, placement geom.Placement, normal geom.Vector, close bool) []geom.Vector {
	if w.IsEmpty() {
		return nil
	}
	if normal.IsZero() {
		normal = geom.ZAxis
	}
	sorted := w.SortEdges()
	verts := sorted.Vertexes()
	if len(verts) >= 2 {
		c := sorted.CenterOfMass()
		if geom.Angle(verts[1].Sub(c), verts[0].Sub(c), normal) >= 0 {
			slices.Reverse(verts)
		}
	}
	out := make([]geom.Vector, 0, len(verts)+1)
	for _, v := range verts {
		out = append(out, Point(v, scale, placement))
	}
	if close {
		out = append(out, out[0])
	}
	return out
}

// inPlane проверяет, что профиль лежит в локальной плоскости z = 0 и все
// кривые поворачивают вокруг оси Z.
func inPlane(w geom.Wire) bool {
	for _, e := range w.Edges {
		if math.Abs(e.Start.Z) > planeTolerance || math.Abs(e.End.Z) > planeTolerance {
			return false
		}
		if e.IsCurved() {
			if math.Abs(e.Center.Z) > planeTolerance || math.Abs(math.Abs(e.Axis.Normalize().Z)-1) > planeTolerance {
				return false
			}
		}
	}
	return true
}

// degrees возвращает полярный угол v в [0, 360).
func degrees(v geom.Vector) float64 {
	a := math.Atan2(v.Y, v.X) * 180 / math.Pi
	if a < 0 {
		a += 360
	}
	return a
}

// Extrusion строит параметрическое описание o. Возвращает nil, если у o
// есть additions, есть subtractions при noSubs == false, или нет
// пригодного выдавливания.
func Extrusion(o *document.Object, scale float64, noSubs bool) *ExtrusionData {
	if o == nil || o.Extrusion == nil || len(o.Additions) > 0 {
		return nil
	}
	if len(o.Subtractions) > 0 && !noSubs {
		return nil
	}
	x := o.Extrusion
	if x.Profile.IsEmpty() || !x.Profile.Closed() || x.Vector.IsZero() || !inPlane(x.Profile) {
		return nil
	}

	pl := x.Placement
	data := &ExtrusionData{
		Vector: x.Vector.Scale(scale),
		Origin: pl.Base.Scale(scale),
		XAxis:  pl.X().Rounded(9),
		ZAxis:  pl.Z().Rounded(9),
	}

	edges := x.Profile.Edges
	if len(edges) == 1 && edges[0].IsClosed() {
		e := edges[0]
		data.Center = e.Center.Scale(scale)
		data.Radius = e.Radius * scale
		if e.Kind == geom.EdgeEllipse {
			data.Kind = ProfileEllipse
			data.MinorRadius = e.MinorRadius * scale
			data.MajorDir = e.MajorDir
		} else {
			data.Kind = ProfileCircle
		}
		return data
	}

	if !x.Profile.HasCurves() {
		data.Kind = ProfilePolyline
		data.Points = Tuples(x.Profile, scale, geom.Identity(), geom.ZAxis, true)
		return data
	}

	data.Kind = ProfileComposite
	for _, e := range x.Profile.SortEdges().Edges {
		switch {
		case e.Kind == geom.EdgeLine:
			data.Segments = append(data.Segments, writer.Segment{
				Points:    []geom.Vector{e.Start.Scale(scale), e.End.Scale(scale)},
				SameSense: true,
			})
		case e.Kind == geom.EdgeCircle && !e.IsClosed():
			// trim всегда идет против часовой стрелки, дуги по часовой
			// пишутся развернутыми
			from, to, sense := e.Start, e.End, true
			if e.Axis.Z < 0 {
				from, to, sense = e.End, e.Start, false
			}
			data.Segments = append(data.Segments, writer.Segment{
				Arc:       true,
				Center:    e.Center.Scale(scale),
				Radius:    e.Radius * scale,
				Trim:      [2]float64{degrees(from.Sub(e.Center)), degrees(to.Sub(e.Center))},
				SameSense: sense,
			})
		default:
			return nil
		}
	}
	return data
}

// brepShape - форма o для экспорта: его тела и additions.
func brepShape(o *document.Object) *geom.Shape {
	if o == nil || o.Shape.IsNull() {
		return nil
	}
	return document.CombinedShape(o)
}

// Brep возвращает грани каждого тела o в глобальных координатах. Тела
// с кривыми ребрами разбиваются на треугольники. Mesh объекты дают одно
// тело из треугольников.
func Brep(o *document.Object, scale, tessellation float64) []Solid {
	var out []Solid
	if shape := brepShape(o); shape != nil {
		for _, sol := range shape.Solids {
			if s := solidFaces(sol, scale, tessellation); len(s) > 0 {
				out = append(out, s)
			}
		}
		if len(shape.Faces) > 0 {
			if s := solidFaces(geom.Solid{Faces: shape.Faces}, scale, tessellation); len(s) > 0 {
				out = append(out, s)
			}
		}
	} else if o != nil && !o.Mesh.IsEmpty() {
		out = append(out, meshFaces(o.Mesh, scale))
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func solidFaces(sol geom.Solid, scale, tessellation float64) Solid {
	var s Solid
	if sol.HasCurves() {
		m := geom.Tessellate(sol, tessellation)
		return meshFaces(m, scale)
	}
	for _, f := range sol.Faces {
		n := f.Normal()
		face := Face{Tuples(f.Outer, scale, geom.Identity(), n, false)}
		for _, h := range f.Inner {
			face = append(face, Tuples(h, scale, geom.Identity(), n.Neg(), false))
		}
		s = append(s, face)
	}
	return s
}

func meshFaces(m *geom.Mesh, scale float64) Solid {
	s := make(Solid, 0, len(m.Triangles))
	for _, t := range m.Triangles {
		loop := make(Loop, 3)
		for i, idx := range t {
			loop[i] = Point(m.Vertices[idx], scale, m.Placement)
		}
		s = append(s, Face{loop})
	}
	return s
}

// Elevation - наименьшая Z формы объекта, или 0.
func Elevation(o *document.Object) float64 {
	if o == nil || o.Shape.IsNull() {
		return 0
	}
	return o.Shape.BoundBox().ZMin()
}
