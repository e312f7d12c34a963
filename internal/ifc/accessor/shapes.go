package accessor

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"archifc/internal/geom"
	"archifc/internal/ifc/step"
)

// ============================================================
// Representation items
// ============================================================

var ErrUnsupportedItem = errors.New("accessor: unsupported representation item")

// Representation возвращает элементы именованного представления формы
// продукта ("Body", "Axis", ...). Для "Body" принимаются и
// представления без идентификатора.
func Representation(f File, e Entity, ident string) []Entity {
	pds, ok := Deref(f, e.Attr("Representation"))
	if !ok {
		return nil
	}
	var fallback []Entity
	for _, rep := range Refs(f, pds.Attr("Representations")) {
		id, named := rep.Attr("RepresentationIdentifier").AsString()
		if named && strings.EqualFold(id, ident) {
			return Refs(f, rep.Attr("Items"))
		}
		if !named && fallback == nil && strings.EqualFold(ident, "Body") {
			fallback = Refs(f, rep.Attr("Items"))
		}
	}
	return fallback
}

// AxisWire возвращает первую кривую представления Axis.
func AxisWire(f File, e Entity) (geom.Wire, bool) {
	for _, item := range Representation(f, e, "Axis") {
		w, err := Curve(f, item, PlaneAngleFactor(f))
		if err == nil && !w.IsEmpty() {
			return w, true
		}
	}
	return geom.Wire{}, false
}

// Curve превращает кривую в wire. angle переводит параметры
// плоского угла в радианы.
func Curve(f File, c Entity, angle float64) (geom.Wire, error) {
	switch {
	case is(c, "IfcPolyline"):
		var pts []geom.Vector
		for _, p := range Refs(f, c.Attr("Points")) {
			pts = append(pts, Vector(p))
		}
		if len(pts) < 2 {
			return geom.Wire{}, fmt.Errorf("polyline #%d has %d points", c.ID(), len(pts))
		}
		if len(pts) > 2 && pts[0].Equals(pts[len(pts)-1], geom.Precision) {
			return geom.Polygon(true, pts[:len(pts)-1]...), nil
		}
		return geom.Polygon(false, pts...), nil

	case is(c, "IfcCompositeCurve"):
		var w geom.Wire
		for _, seg := range Refs(f, c.Attr("Segments")) {
			parent, ok := Deref(f, seg.Attr("ParentCurve"))
			if !ok {
				return geom.Wire{}, fmt.Errorf("segment #%d has no parent curve", seg.ID())
			}
			sw, err := Curve(f, parent, angle)
			if err != nil {
				return geom.Wire{}, err
			}
			if same, ok := seg.Attr("SameSense").AsBool(); ok && !same {
				sw = sw.Reversed()
			}
			w.Edges = append(w.Edges, sw.Edges...)
		}
		return w, nil

	case is(c, "IfcTrimmedCurve"):
		return trimmed(f, c, angle)

	case is(c, "IfcCircle"):
		pos, _ := Deref(f, c.Attr("Position"))
		pl := AxisPlacement(f, pos)
		r, _ := c.Attr("Radius").AsFloat()
		return geom.NewWire(geom.Circle(pl.Base, r, pl.Z(), pl.X())), nil

	case is(c, "IfcEllipse"):
		pos, _ := Deref(f, c.Attr("Position"))
		return geom.NewWire(ellipse(AxisPlacement(f, pos), c)), nil
	}
	return geom.Wire{}, fmt.Errorf("%w: curve %s", ErrUnsupportedItem, c.Type())
}

func ellipse(pl geom.Placement, e Entity) geom.Edge {
	a, _ := e.Attr("SemiAxis1").AsFloat()
	b, _ := e.Attr("SemiAxis2").AsFloat()
	major := pl.X()
	if b > a {
		a, b = b, a
		major = pl.Z().Cross(pl.X())
	}
	return geom.Ellipse(pl.Base, a, b, pl.Z(), major)
}

// trimmed поддерживает дуги окружности, обрезанные параметром или точкой.
func trimmed(f File, c Entity, angle float64) (geom.Wire, error) {
	basis, ok := Deref(f, c.Attr("BasisCurve"))
	if !ok {
		return geom.Wire{}, fmt.Errorf("trimmed curve #%d has no basis", c.ID())
	}
	if is(basis, "IfcPolyline") {
		return Curve(f, basis, angle)
	}
	if !is(basis, "IfcCircle") {
		return geom.Wire{}, fmt.Errorf("%w: trimmed %s", ErrUnsupportedItem, basis.Type())
	}
	pos, _ := Deref(f, basis.Attr("Position"))
	pl := AxisPlacement(f, pos)
	r, _ := basis.Attr("Radius").AsFloat()
	preferParam := true
	if m, ok := c.Attr("MasterRepresentation").AsString(); ok && m == "CARTESIAN" {
		preferParam = false
	}
	p1, err := trimPoint(f, c.Attr("Trim1"), pl, r, angle, preferParam)
	if err != nil {
		return geom.Wire{}, err
	}
	p2, err := trimPoint(f, c.Attr("Trim2"), pl, r, angle, preferParam)
	if err != nil {
		return geom.Wire{}, err
	}
	axis := pl.Z()
	if sense, ok := c.Attr("SenseAgreement").AsBool(); ok && !sense {
		axis = axis.Neg()
	}
	return geom.NewWire(geom.Arc(pl.Base, axis, p1, p2)), nil
}

func trimPoint(f File, v step.Value, pl geom.Placement, r, angle float64, preferParam bool) (geom.Vector, error) {
	list, _ := v.AsList()
	var param *float64
	var point *geom.Vector
	for _, item := range list {
		if item.Kind == step.KindTyped && item.Str == "IFCPARAMETERVALUE" {
			t, _ := item.AsFloat()
			t *= angle
			param = &t
			continue
		}
		if e, ok := Deref(f, item); ok && is(e, "IfcCartesianPoint") {
			p := Vector(e)
			point = &p
		}
	}
	onCircle := func(t float64) geom.Vector {
		return pl.MultVec(geom.V(r*math.Cos(t), r*math.Sin(t), 0))
	}
	switch {
	case param != nil && (preferParam || point == nil):
		return onCircle(*param), nil
	case point != nil:
		return *point, nil
	}
	return geom.Vector{}, errors.New("trim without parameter or point")
}

// Profile превращает определение профиля в замкнутый wire в плоскости
// профиля (z = 0).
func Profile(f File, p Entity, angle float64) (geom.Wire, error) {
	var w geom.Wire
	switch {
	case is(p, "IfcArbitraryClosedProfileDef", "IfcArbitraryProfileDefWithVoids"):
		outer, ok := Deref(f, p.Attr("OuterCurve"))
		if !ok {
			return geom.Wire{}, fmt.Errorf("profile #%d has no outer curve", p.ID())
		}
		var err error
		if w, err = Curve(f, outer, angle); err != nil {
			return geom.Wire{}, err
		}
		w = w.SortEdges()

	case is(p, "IfcRectangleProfileDef"):
		pos, _ := Deref(f, p.Attr("Position"))
		pl := AxisPlacement(f, pos)
		x, _ := p.Attr("XDim").AsFloat()
		y, _ := p.Attr("YDim").AsFloat()
		w = geom.Polygon(true,
			pl.MultVec(geom.V(-x/2, -y/2, 0)),
			pl.MultVec(geom.V(x/2, -y/2, 0)),
			pl.MultVec(geom.V(x/2, y/2, 0)),
			pl.MultVec(geom.V(-x/2, y/2, 0)),
		)

	case is(p, "IfcCircleProfileDef"):
		pos, _ := Deref(f, p.Attr("Position"))
		pl := AxisPlacement(f, pos)
		r, _ := p.Attr("Radius").AsFloat()
		w = geom.NewWire(geom.Circle(pl.Base, r, geom.ZAxis, pl.X()))

	case is(p, "IfcEllipseProfileDef"):
		pos, _ := Deref(f, p.Attr("Position"))
		w = geom.NewWire(ellipse(AxisPlacement(f, pos), p))

	default:
		return geom.Wire{}, fmt.Errorf("%w: profile %s", ErrUnsupportedItem, p.Type())
	}
	if !w.Closed() {
		return geom.Wire{}, fmt.Errorf("profile #%d is not closed", p.ID())
	}
	return w, nil
}

// Extrusion читает IfcExtrudedAreaSolid. Результат задан в системе
// координат продукта-владельца.
func Extrusion(f File, item Entity, angle float64) (geom.Extrusion, error) {
	area, ok := Deref(f, item.Attr("SweptArea"))
	if !ok {
		return geom.Extrusion{}, fmt.Errorf("extrusion #%d has no swept area", item.ID())
	}
	profile, err := Profile(f, area, angle)
	if err != nil {
		return geom.Extrusion{}, err
	}
	pos, _ := Deref(f, item.Attr("Position"))
	dirEnt, _ := Deref(f, item.Attr("ExtrudedDirection"))
	dir := geom.ZAxis
	if dirEnt != nil {
		dir = Vector(dirEnt).Normalize()
	}
	depth, _ := item.Attr("Depth").AsFloat()
	return geom.Extrusion{
		Profile:   profile,
		Vector:    dir.Scale(depth),
		Placement: AxisPlacement(f, pos),
	}, nil
}

// Faces читает грани IfcConnectedFaceSet (закрытой или открытой оболочки).
func Faces(f File, shell Entity) ([]geom.Face, error) {
	var out []geom.Face
	for _, face := range Refs(f, shell.Attr("CfsFaces")) {
		gf, err := readFace(f, face)
		if err != nil {
			return nil, err
		}
		out = append(out, gf)
	}
	return out, nil
}

func readFace(f File, face Entity) (geom.Face, error) {
	var outer *geom.Wire
	var holes []geom.Wire
	for _, bound := range Refs(f, face.Attr("Bounds")) {
		loop, ok := Deref(f, bound.Attr("Bound"))
		if !ok || !is(loop, "IfcPolyLoop") {
			return geom.Face{}, fmt.Errorf("%w: face bound of #%d", ErrUnsupportedItem, face.ID())
		}
		var pts []geom.Vector
		for _, p := range Refs(f, loop.Attr("Polygon")) {
			pts = append(pts, Vector(p))
		}
		w := geom.Polygon(true, pts...)
		if o, ok := bound.Attr("Orientation").AsBool(); ok && !o {
			w = w.Reversed()
		}
		if is(bound, "IfcFaceOuterBound") && outer == nil {
			outer = &w
			continue
		}
		holes = append(holes, w)
	}
	if outer == nil {
		if len(holes) == 0 {
			return geom.Face{}, fmt.Errorf("face #%d has no bounds", face.ID())
		}
		outer, holes = &holes[0], holes[1:]
	}
	return geom.PlaneFace(*outer, holes...), nil
}

// TriangulatedMesh читает IfcTriangulatedFaceSet.
func TriangulatedMesh(f File, item Entity) (*geom.Mesh, error) {
	coords, ok := Deref(f, item.Attr("Coordinates"))
	if !ok {
		return nil, fmt.Errorf("face set #%d has no coordinates", item.ID())
	}
	m := &geom.Mesh{Placement: geom.Identity()}
	list, _ := coords.Attr("CoordList").AsList()
	for _, c := range list {
		fs := c.Floats()
		if len(fs) < 3 {
			return nil, fmt.Errorf("face set #%d has a short coordinate", item.ID())
		}
		m.Vertices = append(m.Vertices, geom.V(fs[0], fs[1], fs[2]))
	}
	idx, _ := item.Attr("CoordIndex").AsList()
	for _, t := range idx {
		fs := t.Floats()
		if len(fs) != 3 {
			continue
		}
		tri := [3]int{int(fs[0]) - 1, int(fs[1]) - 1, int(fs[2]) - 1}
		for _, k := range tri {
			if k < 0 || k >= len(m.Vertices) {
				return nil, fmt.Errorf("face set #%d index out of range", item.ID())
			}
		}
		m.Triangles = append(m.Triangles, tri)
	}
	return m, nil
}
