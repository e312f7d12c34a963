package document

import "archifc/internal/geom"

// ============================================================
// Factories
// ============================================================

// AddFeature добавляет простой носитель формы.
func (d *Document) AddFeature(name string, shape *geom.Shape) *Object {
	o := d.add(KindFeature, name)
	o.Shape = shape
	return o
}

// AddMesh добавляет носитель mesh. Placement mesh становится placement объекта.
func (d *Document) AddMesh(name string, m *geom.Mesh) *Object {
	o := d.add(KindMesh, name)
	o.Mesh = m
	if m != nil {
		o.Placement = m.Placement
	}
	return o
}

func (d *Document) AddGroup(name string, members ...*Object) *Object {
	o := d.add(KindGroup, name)
	o.Group = append(o.Group, members...)
	return o
}

// component создает элемент на необязательном базовом теле. База
// скрывается и отдает элементу свою геометрию.
func (d *Document) component(kind Kind, base *Object, name string) *Object {
	o := d.add(kind, name)
	if base != nil {
		o.Base = base
		o.Shape = base.Shape
		o.Mesh = base.Mesh
		base.Hidden = true
	}
	return o
}

func (d *Document) MakeWall(base *Object, name string) *Object {
	return d.component(KindWall, base, name)
}

func (d *Document) MakeWindow(base *Object, name string) *Object {
	return d.component(KindWindow, base, name)
}

// MakeStructure создает конструктивный элемент; вызывающий задает Role:
// Beam, Column, Slab или Foundation.
func (d *Document) MakeStructure(base *Object, name string) *Object {
	return d.component(KindStructure, base, name)
}

func (d *Document) MakeRoof(base *Object, name string) *Object {
	return d.component(KindRoof, base, name)
}

func (d *Document) MakeSpace(base *Object, name string) *Object {
	return d.component(KindSpace, base, name)
}

func (d *Document) MakeSite(name string, members ...*Object) *Object {
	o := d.add(KindSite, name)
	o.Group = append(o.Group, members...)
	return o
}

func (d *Document) MakeFloor(name string, members ...*Object) *Object {
	o := d.add(KindFloor, name)
	o.Group = append(o.Group, members...)
	return o
}

func (d *Document) MakeBuilding(name string, members ...*Object) *Object {
	o := d.add(KindBuilding, name)
	o.Group = append(o.Group, members...)
	return o
}
