package geometry

import (
	"encoding/json"
	"errors"
	"fmt"

	"archifc/internal/geom"
)

// Payload - сырая геометрия одной сущности, как ее отдал backend.
// Обычно задано ровно одно из Brep, Shape или Mesh. Extrusion хранит
// параметрическое описание, если тело - одно выдавливание.
type Payload struct {
	Brep      []byte
	Shape     *geom.Shape
	Extrusion *geom.Extrusion
	Mesh      *geom.Mesh
	Transform *geom.Placement
	// Openings - тела проемов, не вычтенные backend'ом.
	Openings []*geom.Shape
}

func (p *Payload) IsEmpty() bool {
	return p == nil || (len(p.Brep) == 0 && p.Shape.IsNull() && p.Mesh.IsEmpty())
}

var ErrBadBrep = errors.New("geometry: unreadable brep data")

// Kernel читает brep и сшивает отдельные грани в тела.
type Kernel interface {
	ReadBrep(data []byte) (*geom.Shape, error)
	MakeShell(faces []geom.Face) (geom.Shell, error)
	MakeSolid(sh geom.Shell) (geom.Solid, error)
}

// Builtin читает JSON-кодировку формы от EncodeBrep и сшивает
// через пакет geom.
type Builtin struct{}

func (Builtin) ReadBrep(data []byte) (*geom.Shape, error) {
	var s geom.Shape
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadBrep, err)
	}
	return &s, nil
}

func (Builtin) MakeShell(faces []geom.Face) (geom.Shell, error) {
	return geom.MakeShell(faces)
}

func (Builtin) MakeSolid(sh geom.Shell) (geom.Solid, error) {
	return geom.MakeSolid(sh)
}

// EncodeBrep - обратная операция к Builtin.ReadBrep.
func EncodeBrep(s *geom.Shape) ([]byte, error) {
	return json.Marshal(s)
}
