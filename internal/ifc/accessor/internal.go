package accessor

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"archifc/internal/geom"
	"archifc/internal/ifc/geometry"
	"archifc/internal/ifc/schema"
	"archifc/internal/ifc/step"
)

// ============================================================
// Internal backend (STEP parser + EXPRESS schema)
// ============================================================

type internalEntity struct {
	in  *step.Instance
	typ string
	s   *schema.Schema
}

func (e *internalEntity) ID() int      { return e.in.ID }
func (e *internalEntity) Type() string { return e.typ }

func (e *internalEntity) Name() string {
	n, _ := e.Attr("Name").AsString()
	return n
}

func (e *internalEntity) Attr(name string) step.Value {
	idx, ok := e.s.AttributeIndex(e.in.Type, name)
	if !ok {
		return step.Null
	}
	return e.in.Arg(idx)
}

type internalFile struct {
	step   *step.File
	schema *schema.Schema

	entities map[int]*internalEntity
	parents  map[int][]Link
	voids    map[int][]int
	angle    float64

	propsOnce sync.Once
	props     PropertyIndex
}

// OpenInternal разбирает path встроенным STEP-ридером с заданной схемой.
func OpenInternal(path string, s *schema.Schema) (File, error) {
	return openInternal(path, s)
}

func openInternal(path string, s *schema.Schema) (*internalFile, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	defer fh.Close()
	sf, err := step.Parse(fh)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, path, err)
	}
	return newInternalFile(sf, s), nil
}

// FromStep оборачивает уже разобранную структуру обмена.
func FromStep(sf *step.File, s *schema.Schema) File {
	return newInternalFile(sf, s)
}

func newInternalFile(sf *step.File, s *schema.Schema) *internalFile {
	f := &internalFile{
		step:     sf,
		schema:   s,
		entities: make(map[int]*internalEntity, len(sf.Instances)),
	}
	for _, id := range sf.Order {
		in := sf.Instances[id]
		if in.Type == "" {
			// сложные экземпляры не являются продуктами
			continue
		}
		f.entities[id] = &internalEntity{in: in, typ: s.Canonical(in.Type), s: s}
	}
	f.parents = parentIndex(f)
	f.voids = make(map[int][]int)
	for child, links := range f.parents {
		for _, l := range links {
			if l.Voids {
				f.voids[l.Parent] = append(f.voids[l.Parent], child)
			}
		}
	}
	f.angle = PlaneAngleFactor(f)
	return f
}

func (f *internalFile) Backend() string { return BackendInternal }

func (f *internalFile) ByID(id int) (Entity, bool) {
	e, ok := f.entities[id]
	if !ok {
		return nil, false
	}
	return e, true
}

// ByType возвращает сущности заданных типов или их подтипов
// в порядке файла.
func (f *internalFile) ByType(types ...string) []Entity {
	var out []Entity
	for _, id := range f.step.Order {
		e, ok := f.entities[id]
		if !ok {
			continue
		}
		for _, t := range types {
			if f.schema.IsA(e.typ, t) || strings.EqualFold(e.typ, t) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

func (f *internalFile) Products() []Entity {
	return f.ByType("IfcProduct")
}

func (f *internalFile) Parents(e Entity) []Link {
	return f.parents[e.ID()]
}

func (f *internalFile) Property(e Entity, name string) (step.Value, bool) {
	f.propsOnce.Do(func() { f.props = BuildPropertyIndex(f) })
	return f.props.Lookup(e.ID(), name)
}

func (f *internalFile) Close() error { return nil }

// Payload строит геометрию Body в системе координат продукта;
// placement продукта уходит в Transform.
func (f *internalFile) Payload(e Entity, opts ShapeOptions) (*geometry.Payload, error) {
	items := Representation(f, e, "Body")
	if len(items) == 0 {
		return nil, nil
	}
	pl := Placement(f, e)
	p := &geometry.Payload{Transform: &pl}

	var shapes []*geom.Shape
	var exts []geom.Extrusion
	var loose []geom.Face
	for _, item := range items {
		switch {
		case is(item, "IfcExtrudedAreaSolid"):
			x, err := Extrusion(f, item, f.angle)
			if err != nil {
				return nil, fmt.Errorf("#%d: %w", item.ID(), err)
			}
			s, err := x.Shape()
			if err != nil {
				return nil, fmt.Errorf("#%d: %w", item.ID(), err)
			}
			exts = append(exts, x)
			shapes = append(shapes, s)

		case is(item, "IfcFacetedBrep"):
			shell, ok := Deref(f, item.Attr("Outer"))
			if !ok {
				return nil, fmt.Errorf("#%d: brep without shell", item.ID())
			}
			faces, err := Faces(f, shell)
			if err != nil {
				return nil, err
			}
			shapes = append(shapes, &geom.Shape{Solids: []geom.Solid{{Faces: faces}}, Placement: geom.Identity()})

		case is(item, "IfcShellBasedSurfaceModel"):
			for _, shell := range Refs(f, item.Attr("SbsmBoundary")) {
				faces, err := Faces(f, shell)
				if err != nil {
					return nil, err
				}
				loose = append(loose, faces...)
			}

		case is(item, "IfcTriangulatedFaceSet"):
			m, err := TriangulatedMesh(f, item)
			if err != nil {
				return nil, err
			}
			if p.Mesh == nil {
				p.Mesh = m
			} else {
				appendMesh(p.Mesh, m)
			}

		default:
			return nil, fmt.Errorf("%w: %s #%d", ErrUnsupportedItem, item.Type(), item.ID())
		}
	}

	if len(shapes) > 0 || len(loose) > 0 {
		p.Shape = geom.Fuse(shapes...)
		p.Shape.Faces = append(p.Shape.Faces, loose...)
		p.Mesh = nil
	}
	if len(exts) == 1 && len(items) == 1 {
		x := exts[0]
		x.Placement = pl.Multiply(x.Placement)
		p.Extrusion = &x
	}
	if !opts.SeparateOpenings {
		for _, oid := range f.voids[e.ID()] {
			op, ok := f.ByID(oid)
			if !ok {
				continue
			}
			sub, err := f.Payload(op, ShapeOptions{SeparateOpenings: true})
			if err != nil || sub == nil || sub.Shape.IsNull() {
				continue
			}
			p.Openings = append(p.Openings, sub.Shape.Transformed(*sub.Transform).Flatten())
		}
	}
	return p, nil
}

func appendMesh(dst, src *geom.Mesh) {
	off := len(dst.Vertices)
	dst.Vertices = append(dst.Vertices, src.Vertices...)
	for _, t := range src.Triangles {
		dst.Triangles = append(dst.Triangles, [3]int{t[0] + off, t[1] + off, t[2] + off})
	}
}
