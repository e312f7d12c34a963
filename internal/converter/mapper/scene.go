package mapper

import (
	"errors"
	"fmt"

	"archifc/internal/converter/models"
	"archifc/internal/document"
	"archifc/internal/geom"
)

// ErrUnknownObject возвращается, если сцена ссылается на объект,
// который в ней не определен.
var ErrUnknownObject = errors.New("unknown object")

// ============================================================
// Document -> Scene
// ============================================================

// FromDocument собирает scene из документа
func FromDocument(doc *document.Document) *models.Scene {
	scene := &models.Scene{
		Name:      doc.Name,
		Unit:      "mm",
		CreatedBy: doc.CreatedBy,
		Company:   doc.Company,
		Floors:    []models.Floor{},
		Objects:   make([]models.Object, 0, doc.Len()),
		Meta:      map[string]any{"label": doc.Label},
	}

	for _, o := range doc.Objects() {
		obj := models.Object{
			Name:         o.Name,
			Label:        o.Label,
			Kind:         o.Kind.String(),
			Role:         o.Role,
			Description:  o.Description,
			IfcType:      o.IfcType,
			Group:        names(o.Group),
			Additions:    names(o.Additions),
			Subtractions: names(o.Subtractions),
			Extrusion:    o.Extrusion,
			Mesh:         o.Mesh,
			Width:        o.Width,
			Height:       o.Height,
			Hidden:       o.Hidden,
			Attributes:   o.IfcAttributes,
		}
		if host := doc.Host(o); host != nil {
			obj.Host = host.Name
		}
		if o.Base != nil {
			obj.Base = o.Base.Name
		}
		// Extrusion восстанавливает shape сама
		if o.Extrusion == nil && o.Base == nil {
			obj.Shape = o.Shape
		}
		if box, ok := boundBox(o); ok {
			obj.BoundBox = &box
		}
		scene.Objects = append(scene.Objects, obj)

		if o.Kind == document.KindFloor {
			floor := models.Floor{Name: o.Label, Objects: names(o.Group)}
			if host := doc.Host(o); host != nil {
				floor.Building = host.Label
			}
			scene.Floors = append(scene.Floors, floor)
		}
	}
	return scene
}

func names(objs []*document.Object) []string {
	if len(objs) == 0 {
		return nil
	}
	out := make([]string, len(objs))
	for i, o := range objs {
		out[i] = o.Name
	}
	return out
}

func boundBox(o *document.Object) (geom.Box, bool) {
	switch {
	case !o.Shape.IsNull():
		b := o.Shape.BoundBox()
		return b, b.IsValid()
	case !o.Mesh.IsEmpty():
		b := o.Mesh.BoundBox()
		return b, b.IsValid()
	}
	return geom.Box{}, false
}

// ============================================================
// Scene -> Document
// ============================================================

var kindByName = func() map[string]document.Kind {
	m := make(map[string]document.Kind)
	for k := document.KindFeature; k <= document.KindGroup; k++ {
		m[k.String()] = k
	}
	return m
}()

// ToDocument восстанавливает документ из scene. Объекты создаются в порядке
// scene, связи разрешаются по именам вторым проходом.
func ToDocument(scene *models.Scene) (*document.Document, error) {
	if scene == nil {
		return nil, fmt.Errorf("scene is nil")
	}
	doc := document.New(scene.Name)
	doc.CreatedBy, doc.Company = scene.CreatedBy, scene.Company

	byName := make(map[string]*document.Object, len(scene.Objects))
	for _, obj := range scene.Objects {
		kind, ok := kindByName[obj.Kind]
		if !ok {
			return nil, fmt.Errorf("object %s: unknown kind %q", obj.Name, obj.Kind)
		}
		o, err := makeObject(doc, kind, obj)
		if err != nil {
			return nil, err
		}
		byName[obj.Name] = o
	}

	lookup := func(owner string, list []string) ([]*document.Object, error) {
		out := make([]*document.Object, 0, len(list))
		for _, n := range list {
			o, ok := byName[n]
			if !ok {
				return nil, fmt.Errorf("%s: %w %q", owner, ErrUnknownObject, n)
			}
			out = append(out, o)
		}
		return out, nil
	}

	for _, obj := range scene.Objects {
		o := byName[obj.Name]
		var err error
		if o.Group, err = lookup(obj.Name, obj.Group); err != nil {
			return nil, err
		}
		if o.Additions, err = lookup(obj.Name, obj.Additions); err != nil {
			return nil, err
		}
		if o.Subtractions, err = lookup(obj.Name, obj.Subtractions); err != nil {
			return nil, err
		}
		if obj.Base != "" {
			base, ok := byName[obj.Base]
			if !ok {
				return nil, fmt.Errorf("%s: %w %q", obj.Name, ErrUnknownObject, obj.Base)
			}
			o.Base = base
			if o.Shape == nil {
				o.Shape = base.Shape
			}
			if o.Mesh == nil {
				o.Mesh = base.Mesh
			}
		}
	}

	for _, obj := range scene.Objects {
		if document.Reaches(byName[obj.Name], byName[obj.Name]) {
			return nil, fmt.Errorf("object %s: %w", obj.Name, document.ErrCycle)
		}
	}
	return doc, nil
}

func makeObject(doc *document.Document, kind document.Kind, obj models.Object) (*document.Object, error) {
	var o *document.Object
	switch kind {
	case document.KindFeature:
		o = doc.AddFeature(obj.Name, obj.Shape)
	case document.KindMesh:
		o = doc.AddMesh(obj.Name, obj.Mesh)
	case document.KindWall:
		o = doc.MakeWall(nil, obj.Name)
	case document.KindWindow:
		o = doc.MakeWindow(nil, obj.Name)
	case document.KindStructure:
		o = doc.MakeStructure(nil, obj.Name)
	case document.KindRoof:
		o = doc.MakeRoof(nil, obj.Name)
	case document.KindSpace:
		o = doc.MakeSpace(nil, obj.Name)
	case document.KindSite:
		o = doc.MakeSite(obj.Name)
	case document.KindFloor:
		o = doc.MakeFloor(obj.Name)
	case document.KindBuilding:
		o = doc.MakeBuilding(obj.Name)
	case document.KindGroup:
		o = doc.AddGroup(obj.Name)
	}

	o.Label = obj.Label
	if o.Label == "" {
		o.Label = obj.Name
	}
	o.Role = obj.Role
	o.Description = obj.Description
	o.IfcType = obj.IfcType
	o.Width, o.Height = obj.Width, obj.Height
	o.Hidden = obj.Hidden
	o.IfcAttributes = obj.Attributes

	if kind != document.KindFeature && kind != document.KindMesh {
		o.Shape, o.Mesh = obj.Shape, obj.Mesh
	}
	if obj.Extrusion != nil {
		if err := o.SetExtrusion(*obj.Extrusion); err != nil {
			return nil, fmt.Errorf("object %s: %w", obj.Name, err)
		}
	}
	return o, nil
}

// ============================================================
// Selection
// ============================================================

// Select возвращает указанные объекты, а без имен - объекты верхнего
// уровня doc: контейнеры без хоста и видимые объекты вне
// контейнеров.
func Select(doc *document.Document, labels []string) ([]*document.Object, error) {
	if len(labels) > 0 {
		out := make([]*document.Object, 0, len(labels))
		for _, l := range labels {
			o, ok := doc.Get(l)
			if !ok {
				if o, ok = doc.FindByLabel(l); !ok {
					return nil, fmt.Errorf("%w %q", ErrUnknownObject, l)
				}
			}
			out = append(out, o)
		}
		return out, nil
	}

	var out []*document.Object
	for _, o := range doc.Objects() {
		if doc.Host(o) != nil || len(doc.InList(o)) > 0 {
			continue
		}
		if o.Kind.IsContainer() || !o.Hidden {
			out = append(out, o)
		}
	}
	return out, nil
}
