package geom

import "math"

// ============================================================
// Faces, solids and shapes
// ============================================================

type SurfaceKind string

const (
	SurfacePlane     SurfaceKind = "plane"
	SurfaceExtrusion SurfaceKind = "extrusion"
)

// Face - ограниченная поверхность. Поверхности выдавливания протягиваются
// из одного кривого ребра Outer вдоль Sweep.
type Face struct {
	Surface SurfaceKind `json:"surface"`
	Outer   Wire        `json:"outer"`
	Inner   []Wire      `json:"inner,omitempty"`
	Sweep   Vector      `json:"sweep"`
}

func PlaneFace(outer Wire, holes ...Wire) Face {
	return Face{Surface: SurfacePlane, Outer: outer, Inner: holes}
}

// Wires возвращает внешний wire, затем отверстия.
func (f Face) Wires() []Wire {
	return append([]Wire{f.Outer}, f.Inner...)
}

func (f Face) IsPlanar() bool {
	return f.Surface != SurfaceExtrusion
}

func (f Face) HasCurves() bool {
	if !f.IsPlanar() {
		return true
	}
	for _, w := range f.Wires() {
		if w.HasCurves() {
			return true
		}
	}
	return false
}

// Normal возвращает нормаль плоской грани или нулевой вектор.
func (f Face) Normal() Vector {
	if !f.IsPlanar() {
		return Vector{}
	}
	return f.Outer.Normal()
}

func (f Face) Transformed(p Placement) Face {
	out := Face{Surface: f.Surface, Outer: f.Outer.Transformed(p), Sweep: p.Rotate(f.Sweep)}
	for _, w := range f.Inner {
		out.Inner = append(out.Inner, w.Transformed(p))
	}
	return out
}

// Solid - замкнутая оболочка из граней.
type Solid struct {
	Faces []Face `json:"faces"`
}

func (s Solid) HasCurves() bool {
	for _, f := range s.Faces {
		if f.HasCurves() {
			return true
		}
	}
	return false
}

func (s Solid) Transformed(p Placement) Solid {
	out := Solid{Faces: make([]Face, len(s.Faces))}
	for i, f := range s.Faces {
		out.Faces[i] = f.Transformed(p)
	}
	return out
}

// Box - ограничивающий параллелепипед по осям.
type Box struct {
	Min Vector `json:"min"`
	Max Vector `json:"max"`
}

func emptyBox() Box {
	inf := math.Inf(1)
	return Box{Min: V(inf, inf, inf), Max: V(-inf, -inf, -inf)}
}

func (b *Box) add(v Vector) {
	b.Min = Vector{X: math.Min(b.Min.X, v.X), Y: math.Min(b.Min.Y, v.Y), Z: math.Min(b.Min.Z, v.Z)}
	b.Max = Vector{X: math.Max(b.Max.X, v.X), Y: math.Max(b.Max.Y, v.Y), Z: math.Max(b.Max.Z, v.Z)}
}

func (b Box) IsValid() bool {
	return b.Min.X <= b.Max.X
}

func (b Box) ZMin() float64 {
	if !b.IsValid() {
		return 0
	}
	return b.Min.Z
}

// Shape - набор тел и отдельных граней, размещенный по Placement.
type Shape struct {
	Solids    []Solid   `json:"solids,omitempty"`
	Faces     []Face    `json:"faces,omitempty"`
	Placement Placement `json:"placement"`
}

func (s *Shape) IsNull() bool {
	return s == nil || (len(s.Solids) == 0 && len(s.Faces) == 0)
}

// AllFaces возвращает грани всех тел, затем отдельные грани.
func (s *Shape) AllFaces() []Face {
	if s == nil {
		return nil
	}
	var out []Face
	for _, sol := range s.Solids {
		out = append(out, sol.Faces...)
	}
	return append(out, s.Faces...)
}

func (s *Shape) HasCurves() bool {
	for _, f := range s.AllFaces() {
		if f.HasCurves() {
			return true
		}
	}
	return false
}

// Flatten возвращает копию с примененным placement: результат лежит
// в глобальных координатах с тождественным placement.
func (s *Shape) Flatten() *Shape {
	if s == nil {
		return nil
	}
	out := &Shape{Placement: Identity()}
	for _, sol := range s.Solids {
		out.Solids = append(out.Solids, sol.Transformed(s.Placement))
	}
	for _, f := range s.Faces {
		out.Faces = append(out.Faces, f.Transformed(s.Placement))
	}
	return out
}

// Transformed добавляет p перед placement формы.
func (s *Shape) Transformed(p Placement) *Shape {
	if s == nil {
		return nil
	}
	out := *s
	out.Placement = p.Multiply(s.Placement)
	return &out
}

// BoundBox считается по дискретизированным ребрам в глобальных координатах.
func (s *Shape) BoundBox() Box {
	b := emptyBox()
	if s.IsNull() {
		return b
	}
	for _, f := range s.AllFaces() {
		for _, w := range f.Wires() {
			for _, p := range w.Points(0.01) {
				b.add(s.Placement.MultVec(p))
			}
			if !f.IsPlanar() {
				for _, p := range w.Points(0.01) {
					b.add(s.Placement.MultVec(p.Add(f.Sweep)))
				}
			}
		}
	}
	return b
}

// Fuse собирает все тела заданных форм в одну форму.
func Fuse(shapes ...*Shape) *Shape {
	out := &Shape{Placement: Identity()}
	for _, s := range shapes {
		if s.IsNull() {
			continue
		}
		flat := s.Flatten()
		out.Solids = append(out.Solids, flat.Solids...)
		out.Faces = append(out.Faces, flat.Faces...)
	}
	return out
}

// Mesh - индексированная треугольная сетка.
type Mesh struct {
	Vertices  []Vector  `json:"vertices"`
	Triangles [][3]int  `json:"triangles"`
	Placement Placement `json:"placement"`
}

func (m *Mesh) IsEmpty() bool {
	return m == nil || len(m.Triangles) == 0
}

func (m *Mesh) BoundBox() Box {
	b := emptyBox()
	if m == nil {
		return b
	}
	for _, v := range m.Vertices {
		b.add(m.Placement.MultVec(v))
	}
	return b
}
