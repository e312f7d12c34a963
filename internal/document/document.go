package document

import (
	"fmt"
	"strings"

	"archifc/internal/geom"
)

// ============================================================
// Objects
// ============================================================

type Kind int

const (
	KindFeature Kind = iota
	KindMesh
	KindWall
	KindWindow
	KindStructure
	KindRoof
	KindSite
	KindFloor
	KindBuilding
	KindSpace
	KindGroup
)

var kindNames = [...]string{
	KindFeature:   "Part",
	KindMesh:      "Mesh",
	KindWall:      "Wall",
	KindWindow:    "Window",
	KindStructure: "Structure",
	KindRoof:      "Roof",
	KindSite:      "Site",
	KindFloor:     "Floor",
	KindBuilding:  "Building",
	KindSpace:     "Space",
	KindGroup:     "Group",
}

// String возвращает имя типа объекта, например "Wall" или "Part".
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// IsContainer сообщает, что объекты этого вида держат другие объекты
// как членов группы, а не как булевы компоненты.
func (k Kind) IsContainer() bool {
	switch k {
	case KindSite, KindFloor, KindBuilding, KindGroup:
		return true
	}
	return false
}

// IsComponent сообщает, что вид принимает additions и subtractions.
func (k Kind) IsComponent() bool {
	switch k {
	case KindWall, KindWindow, KindStructure, KindRoof, KindSpace:
		return true
	}
	return false
}

// Object - одна запись Document. Name уникально в документе,
// Label - отображаемое имя.
type Object struct {
	Name        string
	Label       string
	Kind        Kind
	Role        string
	Description string
	// IfcType - тип сущности, из которой прочитан объект, если есть.
	IfcType string

	Shape     *geom.Shape
	Mesh      *geom.Mesh
	Placement geom.Placement
	// Extrusion хранит параметрическое тело выдавленных объектов.
	Extrusion *geom.Extrusion
	Width     float64
	Height    float64

	Base    *Object
	Terrain *Object

	Additions    []*Object
	Subtractions []*Object
	Group        []*Object

	IfcAttributes map[string]string
	Hidden        bool
}

// SetExtrusion заменяет тело o заданным выдавливанием.
func (o *Object) SetExtrusion(x geom.Extrusion) error {
	s, err := x.Shape()
	if err != nil {
		return fmt.Errorf("%s: %w", o.Name, err)
	}
	o.Extrusion = &x
	o.Shape = s
	return nil
}

// HasGeometry сообщает, есть ли у o форма или mesh.
func (o *Object) HasGeometry() bool {
	return !o.Shape.IsNull() || !o.Mesh.IsEmpty()
}

func (o *Object) String() string {
	return fmt.Sprintf("%s %q (%s)", o.Kind, o.Label, o.Name)
}

// ============================================================
// Document
// ============================================================

type Document struct {
	Name      string
	Label     string
	CreatedBy string
	Company   string

	objects []*Object
	byName  map[string]*Object
}

func New(name string) *Document {
	return &Document{
		Name:   name,
		Label:  name,
		byName: make(map[string]*Object),
	}
}

// Objects возвращает объекты в порядке создания.
func (d *Document) Objects() []*Object {
	return d.objects
}

func (d *Document) Len() int {
	return len(d.objects)
}

func (d *Document) Get(name string) (*Object, bool) {
	o, ok := d.byName[name]
	return o, ok
}

// FindByLabel возвращает первый объект с заданной меткой.
func (d *Document) FindByLabel(label string) (*Object, bool) {
	for _, o := range d.objects {
		if o.Label == label {
			return o, true
		}
	}
	return nil, false
}

func (d *Document) add(kind Kind, name string) *Object {
	if name == "" {
		name = kind.String()
	}
	o := &Object{
		Name:      d.uniqueName(name),
		Label:     name,
		Kind:      kind,
		Placement: geom.Identity(),
	}
	d.objects = append(d.objects, o)
	d.byName[o.Name] = o
	return o
}

// uniqueName превращает name в идентификатор и добавляет трехзначный
// счетчик, если имя занято: "Wall", "Wall001", "Wall002".
func (d *Document) uniqueName(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	base := b.String()
	if _, taken := d.byName[base]; !taken {
		return base
	}
	for n := 1; ; n++ {
		c := fmt.Sprintf("%s%03d", base, n)
		if _, taken := d.byName[c]; !taken {
			return c
		}
	}
}

// InList возвращает объекты, ссылающиеся на o через base, terrain,
// addition, subtraction или группу.
func (d *Document) InList(o *Object) []*Object {
	var out []*Object
	for _, p := range d.objects {
		if p == o {
			continue
		}
		if p.Base == o || p.Terrain == o || contains(p.Additions, o) ||
			contains(p.Subtractions, o) || contains(p.Group, o) {
			out = append(out, p)
		}
	}
	return out
}

func contains(list []*Object, o *Object) bool {
	for _, x := range list {
		if x == o {
			return true
		}
	}
	return false
}

func without(list []*Object, o *Object) []*Object {
	out := list[:0:0]
	for _, x := range list {
		if x != o {
			out = append(out, x)
		}
	}
	return out
}
