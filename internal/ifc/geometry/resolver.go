package geometry

import (
	"fmt"
	"log"

	"archifc/internal/geom"
)

// Result - разрешенная геометрия одной сущности. Задано не больше одного
// из Shape и Mesh; если нет ни того, ни другого, у сущности нет тела.
type Result struct {
	Shape     *geom.Shape
	Mesh      *geom.Mesh
	Extrusion *geom.Extrusion
	Openings  []*geom.Shape
	Notes     []string
}

func (r Result) IsEmpty() bool {
	return r.Shape.IsNull() && r.Mesh.IsEmpty()
}

// Resolver превращает данные backend'а в формы.
type Resolver struct {
	Kernel Kernel
	// JoinSolids сливает все тела в одно.
	JoinSolids bool
	// KeepPlacement оставляет transform на форме, а не применяет
	// его к геометрии.
	KeepPlacement bool
	Debug         bool
}

func NewResolver() *Resolver {
	return &Resolver{Kernel: Builtin{}}
}

func (r *Resolver) kernel() Kernel {
	if r.Kernel == nil {
		return Builtin{}
	}
	return r.Kernel
}

// Resolve не возвращает ошибок: нечитаемые данные попадают в Notes,
// возвращается лучшая доступная геометрия.
func (r *Resolver) Resolve(id int, p *Payload) Result {
	var res Result
	if p == nil {
		return res
	}
	note := func(format string, args ...any) {
		msg := fmt.Sprintf("#%d: ", id) + fmt.Sprintf(format, args...)
		res.Notes = append(res.Notes, msg)
		if r.Debug {
			log.Printf("[IMPORT] %s", msg)
		}
	}

	shape := p.Shape
	if len(p.Brep) > 0 {
		s, err := r.kernel().ReadBrep(p.Brep)
		if err != nil {
			note("%v", err)
		} else {
			shape = s
		}
	}

	if !shape.IsNull() {
		if len(shape.Solids) == 0 {
			shape = r.heal(shape, note)
		}
		if r.JoinSolids && len(shape.Solids) > 1 {
			shape = join(shape)
		}
		if p.Transform != nil {
			shape = shape.Transformed(*p.Transform)
		}
		if !r.KeepPlacement {
			shape = shape.Flatten()
		}
		res.Shape = shape
		res.Extrusion = p.Extrusion
		res.Openings = p.Openings
		return res
	}

	if !p.Mesh.IsEmpty() {
		m := *p.Mesh
		if p.Transform != nil {
			m.Placement = p.Transform.Multiply(m.Placement)
		}
		res.Mesh = &m
	}
	return res
}

// heal пытается замкнуть отдельные грани в тело. Если замкнутой
// оболочки не выходит, грани остаются как есть.
func (r *Resolver) heal(s *geom.Shape, note func(string, ...any)) *geom.Shape {
	sh, err := r.kernel().MakeShell(s.Faces)
	if err != nil {
		note("cannot make shell: %v", err)
		return s
	}
	sol, err := r.kernel().MakeSolid(sh)
	if err != nil {
		note("cannot make solid: %v", err)
		return s
	}
	return &geom.Shape{Solids: []geom.Solid{sol}, Placement: s.Placement}
}

func join(s *geom.Shape) *geom.Shape {
	var all geom.Solid
	for _, sol := range s.Solids {
		all.Faces = append(all.Faces, sol.Faces...)
	}
	return &geom.Shape{Solids: []geom.Solid{all}, Faces: s.Faces, Placement: s.Placement}
}
