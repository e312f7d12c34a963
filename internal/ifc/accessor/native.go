package accessor

import (
	"fmt"
	"sync"

	"archifc/internal/geom"
	"archifc/internal/ifc/geometry"
	"archifc/internal/ifc/step"
)

// ============================================================
// Native backend (external geometry engine)
// ============================================================

// Instance - сущность в том виде, в каком ее отдает геометрический движок.
type Instance interface {
	ID() int
	Type() string
	Argument(name string) step.Value
}

// EngineFile - модель, открытая движком. ByType включает подтипы.
// CreateShape возвращает brep, который читает настроенное ядро.
type EngineFile interface {
	ByType(t string) []Instance
	ByID(id int) (Instance, bool)
	CreateShape(in Instance, opts ShapeOptions) ([]byte, error)
	Triangulate(in Instance) (*geom.Mesh, error)
	Close() error
}

type Engine interface {
	Name() string
	Open(path string) (EngineFile, error)
}

type nativeEntity struct {
	in Instance
}

func (e nativeEntity) ID() int                     { return e.in.ID() }
func (e nativeEntity) Type() string                { return e.in.Type() }
func (e nativeEntity) Attr(name string) step.Value { return e.in.Argument(name) }

func (e nativeEntity) Name() string {
	n, _ := e.in.Argument("Name").AsString()
	return n
}

type nativeFile struct {
	ef      EngineFile
	parents map[int][]Link

	propsOnce sync.Once
	props     PropertyIndex
}

func openNative(engine Engine, path string) (*nativeFile, error) {
	ef, err := engine.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, engine.Name(), err)
	}
	f := &nativeFile{ef: ef}
	if len(f.Products()) == 0 {
		ef.Close()
		return nil, fmt.Errorf("%w: %s: no products", ErrOpen, path)
	}
	f.parents = parentIndex(f)
	return f, nil
}

func (f *nativeFile) Backend() string { return BackendNative }

func wrap(ins []Instance) []Entity {
	out := make([]Entity, len(ins))
	for i, in := range ins {
		out[i] = nativeEntity{in: in}
	}
	return out
}

// Products отдаются как есть; движки иногда повторяют
// некоторые продукты.
func (f *nativeFile) Products() []Entity {
	return wrap(f.ef.ByType("IfcProduct"))
}

func (f *nativeFile) ByType(types ...string) []Entity {
	var out []Entity
	for _, t := range types {
		out = append(out, wrap(f.ef.ByType(t))...)
	}
	return out
}

func (f *nativeFile) ByID(id int) (Entity, bool) {
	in, ok := f.ef.ByID(id)
	if !ok {
		return nil, false
	}
	return nativeEntity{in: in}, true
}

func (f *nativeFile) Parents(e Entity) []Link {
	return f.parents[e.ID()]
}

func (f *nativeFile) Property(e Entity, name string) (step.Value, bool) {
	f.propsOnce.Do(func() { f.props = BuildPropertyIndex(f) })
	return f.props.Lookup(e.ID(), name)
}

func (f *nativeFile) Close() error {
	return f.ef.Close()
}

// Payload просит у движка brep и при неудаче берет его триангуляцию.
// С SeparatePlacements движок не применяет placement объекта,
// он возвращается в Transform.
func (f *nativeFile) Payload(e Entity, opts ShapeOptions) (*geometry.Payload, error) {
	ne, ok := e.(nativeEntity)
	if !ok {
		return nil, fmt.Errorf("entity #%d does not belong to this file", e.ID())
	}
	p := &geometry.Payload{}
	if opts.SeparatePlacements {
		pl := Placement(f, e)
		p.Transform = &pl
	}
	brep, err := f.ef.CreateShape(ne.in, opts)
	if err == nil && len(brep) > 0 {
		p.Brep = brep
		return p, nil
	}
	m, merr := f.ef.Triangulate(ne.in)
	if merr != nil || m.IsEmpty() {
		if err != nil {
			return nil, err
		}
		return nil, nil
	}
	p.Mesh = m
	return p, nil
}
