package document

import (
	"errors"
	"fmt"
	"slices"

	"archifc/internal/geom"
)

// ============================================================
// Composition
// ============================================================

var (
	// ErrNotHost возвращается, если объект не может принимать детей.
	ErrNotHost = errors.New("object cannot host components")
	// ErrCycle возвращается, если связь сделает объект собственным компонентом.
	ErrCycle = errors.New("component cycle")
)

// AddComponents помещает child в host: контейнер получает члена группы,
// строительный элемент получает addition.
func AddComponents(child, host *Object) error {
	if child == nil || host == nil || child == host {
		return nil
	}
	switch {
	case host.Kind.IsContainer():
		if !contains(host.Group, child) {
			if Reaches(child, host) {
				return fmt.Errorf("%w: %s already contains %s", ErrCycle, child, host)
			}
			host.Group = append(host.Group, child)
		}
	case host.Kind.IsComponent():
		if !contains(host.Additions, child) {
			if Reaches(child, host) {
				return fmt.Errorf("%w: %s already contains %s", ErrCycle, child, host)
			}
			host.Additions = append(host.Additions, child)
			if child.Kind != KindWindow {
				child.Hidden = true
			}
		}
	default:
		return fmt.Errorf("%w: %s", ErrNotHost, host)
	}
	return nil
}

// RemoveComponents убирает child из host: контейнер теряет члена,
// строительный элемент получает subtraction.
func RemoveComponents(child, host *Object) error {
	if child == nil || host == nil || child == host {
		return nil
	}
	switch {
	case host.Kind.IsContainer():
		host.Group = without(host.Group, child)
	case host.Kind.IsComponent():
		if !contains(host.Subtractions, child) && Reaches(child, host) {
			return fmt.Errorf("%w: %s already contains %s", ErrCycle, child, host)
		}
		host.Additions = without(host.Additions, child)
		if !contains(host.Subtractions, child) {
			host.Subtractions = append(host.Subtractions, child)
		}
		child.Hidden = true
	default:
		return fmt.Errorf("%w: %s", ErrNotHost, host)
	}
	return nil
}

// Reaches сообщает, является ли to компонентом from, напрямую или через
// другие компоненты: по additions, subtractions и членам групп.
func Reaches(from, to *Object) bool {
	if from == nil || to == nil {
		return false
	}
	seen := make(map[*Object]bool)
	stack := links(from)
	for len(stack) > 0 {
		o := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if o == to {
			return true
		}
		if seen[o] {
			continue
		}
		seen[o] = true
		stack = append(stack, links(o)...)
	}
	return false
}

func links(o *Object) []*Object {
	return slices.Concat(o.Additions, o.Subtractions, o.Group)
}

// GroupContents рекурсивно раскрывает контейнеры. Контейнер идет в
// результате перед своими членами, окна, вставленные в стены, идут
// сразу после стены.
func GroupContents(objs []*Object) []*Object {
	var out []*Object
	seen := make(map[*Object]bool)
	var walk func(o *Object)
	walk = func(o *Object) {
		if o == nil || seen[o] {
			return
		}
		seen[o] = true
		out = append(out, o)
		if o.Kind.IsContainer() {
			for _, m := range o.Group {
				walk(m)
			}
			return
		}
		if o.Kind == KindWall {
			for _, c := range append(append([]*Object{}, o.Additions...), o.Subtractions...) {
				if c.Kind == KindWindow {
					walk(c)
				}
			}
		}
	}
	for _, o := range objs {
		walk(o)
	}
	return out
}

// PruneIncluded убирает объекты, которые являются base, terrain или
// булевым компонентом другого объекта. Окна остаются всегда.
func (d *Document) PruneIncluded(objs []*Object) []*Object {
	var out []*Object
	for _, o := range objs {
		top := true
		if o.Kind != KindWindow && !o.Kind.IsContainer() {
			for _, p := range d.InList(o) {
				if !p.Kind.IsContainer() {
					top = false
					break
				}
			}
		}
		if top {
			out = append(out, o)
		}
	}
	return out
}

// Host возвращает этаж, здание или участок, которому принадлежит o.
// Обычные группы пропускаются.
func (d *Document) Host(o *Object) *Object {
	seen := map[*Object]bool{o: true}
	for cur := o; ; {
		var next *Object
		for _, p := range d.objects {
			if p.Kind.IsContainer() && contains(p.Group, cur) {
				next = p
				break
			}
		}
		if next == nil || seen[next] {
			return nil
		}
		if next.Kind != KindGroup {
			return next
		}
		seen[next] = true
		cur = next
	}
}

// SortSubgroups раскладывает членов контейнера по группам
// по типу объекта. Этажи, здания и участки остаются прямыми членами.
func (d *Document) SortSubgroups(container *Object) {
	if container == nil || !container.Kind.IsContainer() {
		return
	}
	var kept []*Object
	subgroups := make(map[string]*Object)
	for _, m := range container.Group {
		if m.Kind.IsContainer() {
			kept = append(kept, m)
			continue
		}
		name := m.Kind.String() + "s"
		if m.IfcType == "IfcFurnishingElement" {
			name = "Furniture"
		}
		g, ok := subgroups[name]
		if !ok {
			g = d.AddGroup(name)
			subgroups[name] = g
			kept = append(kept, g)
		}
		g.Group = append(g.Group, m)
	}
	container.Group = kept
}

// CombinedShape - форма o вместе с additions в глобальных координатах.
// Вставленные окна не объединяются; каждое addition берется один раз.
func CombinedShape(o *Object) *geom.Shape {
	if o == nil {
		return nil
	}
	seen := map[*Object]bool{o: true}
	shapes := []*geom.Shape{o.Shape}
	stack := append([]*Object(nil), o.Additions...)
	for len(stack) > 0 {
		a := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[a] || a.Kind == KindWindow {
			continue
		}
		seen[a] = true
		shapes = append(shapes, a.Shape)
		stack = append(stack, a.Additions...)
	}
	s := geom.Fuse(shapes...)
	if s.IsNull() {
		return nil
	}
	return s
}
