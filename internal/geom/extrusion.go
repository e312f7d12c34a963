package geom

import "errors"

// ============================================================
// Extrusions
// ============================================================

var ErrBadProfile = errors.New("profile is not a closed planar wire")

// Extrusion протягивает замкнутый плоский профиль вдоль Vector. Profile и
// Vector заданы в локальной системе Placement.
type Extrusion struct {
	Profile   Wire      `json:"profile"`
	Vector    Vector    `json:"vector"`
	Placement Placement `json:"placement"`
}

// Solid строит тело в локальной системе. Нормаль профиля направляется
// по вектору выдавливания; нижняя крышка - перевернутый профиль,
// верхняя - профиль, сдвинутый на вектор.
func (x Extrusion) Solid() (Solid, error) {
	if x.Profile.IsEmpty() || !x.Profile.Closed() || x.Vector.IsZero() {
		return Solid{}, ErrBadProfile
	}
	profile := x.Profile
	n := profile.Normal()
	if n.IsZero() {
		return Solid{}, ErrBadProfile
	}
	if n.Dot(x.Vector) < 0 {
		profile = profile.Reversed()
	}
	v := x.Vector
	faces := []Face{
		PlaneFace(profile.Reversed()),
		PlaneFace(profile.Translated(v)),
	}
	for _, e := range profile.Edges {
		top := e.Translated(v)
		switch {
		case !e.IsCurved():
			faces = append(faces, PlaneFace(Polygon(true, e.Start, e.End, top.End, top.Start)))
		case e.IsClosed():
			faces = append(faces, Face{
				Surface: SurfaceExtrusion,
				Outer:   NewWire(e, top.Reversed()),
				Sweep:   v,
			})
		default:
			faces = append(faces, Face{
				Surface: SurfaceExtrusion,
				Outer:   NewWire(e, Line(e.End, top.End), top.Reversed(), Line(top.Start, e.Start)),
				Sweep:   v,
			})
		}
	}
	return Solid{Faces: faces}, nil
}

// Shape возвращает тело, размещенное по placement выдавливания.
func (x Extrusion) Shape() (*Shape, error) {
	s, err := x.Solid()
	if err != nil {
		return nil, err
	}
	return &Shape{Solids: []Solid{s}, Placement: x.Placement}, nil
}

// Depth - длина вектора выдавливания.
func (x Extrusion) Depth() float64 {
	return x.Vector.Length()
}
