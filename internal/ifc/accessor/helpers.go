package accessor

import (
	"strings"

	"archifc/internal/geom"
	"archifc/internal/ifc/step"
)

// maxPlacementDepth ограничивает цепочки IfcLocalPlacement в битых файлах.
const maxPlacementDepth = 64

// Deref разрешает ссылочный атрибут.
func Deref(f File, v step.Value) (Entity, bool) {
	id, ok := v.AsRef()
	if !ok {
		return nil, false
	}
	return f.ByID(id)
}

// Refs разрешает все ссылки атрибута-списка, висячие пропускаются.
func Refs(f File, v step.Value) []Entity {
	var out []Entity
	for _, id := range v.Refs() {
		if e, ok := f.ByID(id); ok {
			out = append(out, e)
		}
	}
	return out
}

func is(e Entity, types ...string) bool {
	for _, t := range types {
		if strings.EqualFold(e.Type(), t) {
			return true
		}
	}
	return false
}

// Vector читает IfcDirection или IfcCartesianPoint. Для 2D z=0.
func Vector(e Entity) geom.Vector {
	if e == nil {
		return geom.Vector{}
	}
	var fs []float64
	switch {
	case is(e, "IfcDirection"):
		fs = e.Attr("DirectionRatios").Floats()
	case is(e, "IfcCartesianPoint"):
		fs = e.Attr("Coordinates").Floats()
	}
	var v geom.Vector
	if len(fs) > 0 {
		v.X = fs[0]
	}
	if len(fs) > 1 {
		v.Y = fs[1]
	}
	if len(fs) > 2 {
		v.Z = fs[2]
	}
	return v
}

// AxisPlacement читает IfcAxis2Placement2D или 3D. Отсутствующие оси
// по умолчанию глобальные Z и X.
func AxisPlacement(f File, e Entity) geom.Placement {
	if e == nil {
		return geom.Identity()
	}
	loc, _ := Deref(f, e.Attr("Location"))
	origin := Vector(loc)
	x, z := geom.XAxis, geom.ZAxis
	if d, ok := Deref(f, e.Attr("RefDirection")); ok {
		x = Vector(d)
	}
	if is(e, "IfcAxis2Placement3D") {
		if d, ok := Deref(f, e.Attr("Axis")); ok {
			z = Vector(d)
		}
	}
	return geom.FromAxes(origin, x, z)
}

// Placement разрешает ObjectPlacement продукта по цепочке
// записей IfcLocalPlacement.
func Placement(f File, e Entity) geom.Placement {
	pl, ok := Deref(f, e.Attr("ObjectPlacement"))
	if !ok {
		return geom.Identity()
	}
	return localPlacement(f, pl, 0)
}

func localPlacement(f File, e Entity, depth int) geom.Placement {
	if e == nil || !is(e, "IfcLocalPlacement") || depth > maxPlacementDepth {
		return geom.Identity()
	}
	rel, _ := Deref(f, e.Attr("RelativePlacement"))
	local := AxisPlacement(f, rel)
	parent, ok := Deref(f, e.Attr("PlacementRelTo"))
	if !ok {
		return local
	}
	return localPlacement(f, parent, depth+1).Multiply(local)
}

// Property ищет одно значение свойства по имени во всех наборах
// свойств, привязанных к e.
func Property(f File, e Entity, name string) (step.Value, bool) {
	if ps, ok := f.(PropertySource); ok {
		return ps.Property(e, name)
	}
	return BuildPropertyIndex(f).Lookup(e.ID(), name)
}

// PropertyIndex: id сущности -> имя свойства в нижнем регистре -> значение.
type PropertyIndex map[int]map[string]step.Value

func (pi PropertyIndex) Lookup(id int, name string) (step.Value, bool) {
	v, ok := pi[id][strings.ToLower(name)]
	return v, ok
}

// BuildPropertyIndex читает все IfcRelDefinesByProperties файла.
func BuildPropertyIndex(f File) PropertyIndex {
	pi := make(PropertyIndex)
	for _, rel := range f.ByType("IfcRelDefinesByProperties") {
		pset, ok := Deref(f, rel.Attr("RelatingPropertyDefinition"))
		if !ok || !is(pset, "IfcPropertySet") {
			continue
		}
		props := make(map[string]step.Value)
		for _, p := range Refs(f, pset.Attr("HasProperties")) {
			if !is(p, "IfcPropertySingleValue") {
				continue
			}
			if n, ok := p.Attr("Name").AsString(); ok {
				props[strings.ToLower(n)] = p.Attr("NominalValue")
			}
		}
		for _, id := range rel.Attr("RelatedObjects").Refs() {
			if pi[id] == nil {
				pi[id] = make(map[string]step.Value)
			}
			for k, v := range props {
				pi[id][k] = v
			}
		}
	}
	return pi
}

// parentIndex собирает связи агрегации, размещения и проемов,
// именно в этом порядке.
func parentIndex(f File) map[int][]Link {
	idx := make(map[int][]Link)
	for _, r := range f.ByType("IfcRelAggregates") {
		if p, ok := r.Attr("RelatingObject").AsRef(); ok {
			for _, c := range r.Attr("RelatedObjects").Refs() {
				idx[c] = append(idx[c], Link{Parent: p})
			}
		}
	}
	for _, r := range f.ByType("IfcRelContainedInSpatialStructure") {
		if p, ok := r.Attr("RelatingStructure").AsRef(); ok {
			for _, c := range r.Attr("RelatedElements").Refs() {
				idx[c] = append(idx[c], Link{Parent: p})
			}
		}
	}
	for _, r := range f.ByType("IfcRelVoidsElement") {
		p, ok := r.Attr("RelatingBuildingElement").AsRef()
		c, ok2 := r.Attr("RelatedOpeningElement").AsRef()
		if ok && ok2 {
			idx[c] = append(idx[c], Link{Parent: p, Voids: true})
		}
	}
	return idx
}

// PlaneAngleFactor возвращает множитель перевода единицы плоского угла
// файла в радианы. Файлы без назначения единиц читаются в радианах.
func PlaneAngleFactor(f File) float64 {
	for _, proj := range f.ByType("IfcProject") {
		ua, ok := Deref(f, proj.Attr("UnitsInContext"))
		if !ok {
			continue
		}
		for _, u := range Refs(f, ua.Attr("Units")) {
			if t, _ := u.Attr("UnitType").AsString(); t != "PLANEANGLEUNIT" {
				continue
			}
			if is(u, "IfcConversionBasedUnit") {
				mwu, ok := Deref(f, u.Attr("ConversionFactor"))
				if !ok {
					continue
				}
				if v, ok := mwu.Attr("ValueComponent").AsFloat(); ok && v > 0 {
					return v
				}
			}
			return 1
		}
	}
	return 1
}
