package importer

import (
	"strings"

	"archifc/internal/document"
	"archifc/internal/geom"
	"archifc/internal/ifc/accessor"
	"archifc/internal/ifc/geometry"
)

// ============================================================
// Per-kind constructors
// ============================================================

type builder func(s *Session, e accessor.Entity, res geometry.Result, name string) Outcome

var builders = map[Kind]builder{
	KindWall:       (*Session).makeWall,
	KindWindow:     (*Session).makeWindow,
	KindStructure:  (*Session).makeStructure,
	KindRoof:       (*Session).makeRoof,
	KindFurnishing: (*Session).makeFurnishing,
	KindSite:       (*Session).makeSite,
	KindStorey:     (*Session).makeStorey,
	KindBuilding:   (*Session).makeBuilding,
	KindSpace:      (*Session).makeSpace,
}

// internal сообщает, что модель прочитана встроенным парсером. Тогда
// конструкторы стен, окон и конструкций предпочитают параметрические данные.
func (s *Session) internal() bool {
	return s.file.Backend() == accessor.BackendInternal
}

// body оборачивает геометрию в скрытый объект-носитель.
func (s *Session) body(res geometry.Result, name string) *document.Object {
	switch {
	case res.Shape != nil:
		return s.doc.AddFeature(name+"_body", res.Shape)
	case res.Mesh != nil:
		return s.doc.AddMesh(name+"_body", res.Mesh)
	}
	return nil
}

func (s *Session) property(e accessor.Entity, name string) (float64, bool) {
	v, ok := accessor.Property(s.file, e, name)
	if !ok {
		return 0, false
	}
	f, ok := v.AsFloat()
	return f, ok && f > 0
}

func (s *Session) makeWall(e accessor.Entity, res geometry.Result, name string) Outcome {
	if s.internal() {
		if w := s.wallFromAxis(e, name); w != nil {
			return built(w)
		}
		if res.Extrusion != nil {
			w := s.doc.MakeWall(nil, name)
			if err := w.SetExtrusion(*res.Extrusion); err == nil {
				w.Height = res.Extrusion.Depth()
				return built(w)
			}
		}
	}
	if res.IsEmpty() {
		return failed("wall without body or axis")
	}
	w := s.doc.MakeWall(s.body(res, name), name)
	w.Extrusion = res.Extrusion
	w.Width, _ = s.property(e, "Width")
	w.Height, _ = s.property(e, "Height")
	return built(w)
}

// wallFromAxis строит стену по центру прямой оси Axis
// из свойств Width и Height.
func (s *Session) wallFromAxis(e accessor.Entity, name string) *document.Object {
	width, ok := s.property(e, "Width")
	if !ok {
		return nil
	}
	height, ok := s.property(e, "Height")
	if !ok {
		return nil
	}
	axis, ok := accessor.AxisWire(s.file, e)
	if !ok || axis.HasCurves() {
		return nil
	}
	pts := axis.Vertexes()
	a, b := pts[0], pts[len(pts)-1]
	dir := b.Sub(a).Normalize()
	if dir.IsZero() {
		return nil
	}
	off := geom.ZAxis.Cross(dir).Scale(width / 2)
	x := geom.Extrusion{
		Profile:   geom.Polygon(true, a.Sub(off), b.Sub(off), b.Add(off), a.Add(off)),
		Vector:    geom.V(0, 0, height),
		Placement: accessor.Placement(s.file, e),
	}
	w := s.doc.MakeWall(nil, name)
	if err := w.SetExtrusion(x); err != nil {
		s.diag(e.ID(), e.Type(), "%v", err)
		return nil
	}
	w.Width, w.Height = width, height
	return w
}

func (s *Session) makeWindow(e accessor.Entity, res geometry.Result, name string) Outcome {
	var w *document.Object
	switch {
	case s.internal() && res.Extrusion != nil:
		w = s.doc.MakeWindow(nil, name)
		if err := w.SetExtrusion(*res.Extrusion); err != nil {
			return failed("%v", err)
		}
	case res.Shape != nil:
		w = s.doc.MakeWindow(nil, name)
		w.Shape = res.Shape
		w.Extrusion = res.Extrusion
	default:
		return failed("window without shape")
	}
	if strings.EqualFold(e.Type(), "IfcDoor") {
		w.Role = "Door"
	}
	w.Width, w.Height = s.openingSize(e, res)
	return built(w)
}

// openingSize берет размеры окна из свойств, потом из overall
// атрибутов, потом из габаритов тела.
func (s *Session) openingSize(e accessor.Entity, res geometry.Result) (width, height float64) {
	width, okW := s.property(e, "Width")
	height, okH := s.property(e, "Height")
	if !okW {
		width, okW = e.Attr("OverallWidth").AsFloat()
	}
	if !okH {
		height, okH = e.Attr("OverallHeight").AsFloat()
	}
	if (!okW || !okH) && res.Shape != nil {
		b := res.Shape.BoundBox()
		if b.IsValid() {
			if !okW {
				width = max(b.Max.X-b.Min.X, b.Max.Y-b.Min.Y)
			}
			if !okH {
				height = b.Max.Z - b.Min.Z
			}
		}
	}
	return width, height
}

func (s *Session) makeStructure(e accessor.Entity, res geometry.Result, name string) Outcome {
	var st *document.Object
	switch {
	case s.internal() && res.Extrusion != nil:
		st = s.doc.MakeStructure(nil, name)
		if err := st.SetExtrusion(*res.Extrusion); err != nil {
			return failed("%v", err)
		}
		st.Height = res.Extrusion.Depth()
	case !res.IsEmpty():
		st = s.doc.MakeStructure(s.body(res, name), name)
		st.Extrusion = res.Extrusion
	default:
		return failed("structure without body")
	}
	st.Role = structureRoles[strings.ToLower(e.Type())]
	return built(st)
}

func (s *Session) makeRoof(e accessor.Entity, res geometry.Result, name string) Outcome {
	if res.Shape == nil {
		return failed("roof without shape")
	}
	r := s.doc.MakeRoof(nil, name)
	r.Shape = res.Shape
	return built(r)
}

func (s *Session) makeFurnishing(e accessor.Entity, res geometry.Result, name string) Outcome {
	if s.asMesh.has(e.Type()) {
		if m := asMesh(res, s.prefs.Tessellation); m != nil {
			return built(s.doc.AddMesh(name, m))
		}
	}
	return s.makeGeneric(e, res, name)
}

func (s *Session) makeSite(e accessor.Entity, res geometry.Result, name string) Outcome {
	site := s.doc.MakeSite(name)
	if b := s.body(res, name); b != nil {
		site.Terrain = b
		b.Hidden = true
	}
	return built(site)
}

func (s *Session) makeStorey(e accessor.Entity, res geometry.Result, name string) Outcome {
	return built(s.doc.MakeFloor(name))
}

func (s *Session) makeBuilding(e accessor.Entity, res geometry.Result, name string) Outcome {
	return built(s.doc.MakeBuilding(name))
}

func (s *Session) makeSpace(e accessor.Entity, res geometry.Result, name string) Outcome {
	if res.Shape == nil {
		return failed("space without shape")
	}
	return built(s.doc.MakeSpace(s.doc.AddFeature(name+"_body", res.Shape), name))
}

// makeGeneric сохраняет нераспознанные сущности как формы, или как mesh,
// если есть только триангуляция.
func (s *Session) makeGeneric(e accessor.Entity, res geometry.Result, name string) Outcome {
	switch {
	case res.Shape != nil:
		if s.asMesh.has(e.Type()) {
			if m := asMesh(res, s.prefs.Tessellation); m != nil {
				return built(s.doc.AddMesh(name, m))
			}
		}
		return built(s.doc.AddFeature(name, res.Shape))
	case res.Mesh != nil:
		s.diag(e.ID(), e.Type(), "object without shape, imported as mesh")
		return built(s.doc.AddMesh(name, res.Mesh))
	}
	return failed("skipping object without shape or mesh")
}

// asMesh возвращает mesh из res, при необходимости триангулируя тела.
func asMesh(res geometry.Result, tolerance float64) *geom.Mesh {
	if res.Mesh != nil {
		return res.Mesh
	}
	if res.Shape == nil {
		return nil
	}
	flat := res.Shape.Flatten()
	out := &geom.Mesh{Placement: geom.Identity()}
	for _, sol := range flat.Solids {
		m := geom.Tessellate(sol, tolerance)
		off := len(out.Vertices)
		out.Vertices = append(out.Vertices, m.Vertices...)
		for _, t := range m.Triangles {
			out.Triangles = append(out.Triangles, [3]int{t[0] + off, t[1] + off, t[2] + off})
		}
	}
	if out.IsEmpty() {
		return nil
	}
	return out
}
