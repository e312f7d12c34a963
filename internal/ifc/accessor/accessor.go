package accessor

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"archifc/internal/ifc/geometry"
	"archifc/internal/ifc/schema"
	"archifc/internal/ifc/step"
)

// ============================================================
// Entity accessor
// ============================================================

// ErrOpen помечает файл, который не удалось открыть или разобрать.
var ErrOpen = errors.New("accessor: cannot open IFC file")

const (
	BackendInternal = "internal"
	BackendNative   = "native"
)

// Entity - представление одного экземпляра IFC только для чтения.
type Entity interface {
	ID() int
	// Type возвращает написание из схемы, например "IfcWallStandardCase".
	Type() string
	Name() string
	// Attr возвращает атрибут по имени или step.Null, если его нет.
	Attr(name string) step.Value
}

// Link - одна родительская связь сущности. Voids выставлен, если сущность
// является проемом, вырезанным из Parent.
type Link struct {
	Parent int
	Voids  bool
}

type ShapeOptions struct {
	SeparateOpenings   bool
	SeparatePlacements bool
	SewShells          bool
}

// File - открытая модель IFC.
type File interface {
	Backend() string
	Products() []Entity
	ByType(types ...string) []Entity
	ByID(id int) (Entity, bool)
	Parents(e Entity) []Link
	Payload(e Entity, opts ShapeOptions) (*geometry.Payload, error)
	Close() error
}

// PropertySource реализуют файлы, умеющие искать значения наборов
// свойств.
type PropertySource interface {
	Property(e Entity, name string) (step.Value, bool)
}

// Options выбирает и настраивает backend.
type Options struct {
	ForceInternal bool
	// Engine заменяет зарегистрированный движок.
	Engine Engine
	// LoadSchema отдает EXPRESS-схему внутреннему парсеру. Если nil,
	// используется встроенная core-схема.
	LoadSchema func() (*schema.Schema, error)
	Debug      bool
}

var (
	registryMu sync.RWMutex
	registry   Engine
)

// Register устанавливает нативный движок для Open.
func Register(e Engine) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = e
}

func registered() Engine {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry
}

// Open выбирает backend один раз: нативный движок, если он есть и не
// отключен, иначе внутренний парсер. Ошибки нативного открытия
// возвращаются как есть, повторной попытки через парсер нет.
func Open(path string, opts Options) (File, error) {
	engine := opts.Engine
	if engine == nil {
		engine = registered()
	}
	if engine != nil && !opts.ForceInternal {
		f, err := openNative(engine, path)
		if err != nil {
			return nil, err
		}
		if opts.Debug {
			log.Printf("[IMPORT] Opened %s with %s", path, engine.Name())
		}
		return f, nil
	}

	log.Printf("[IMPORT] Geometry engine not found or disabled, falling back on internal parser")
	load := opts.LoadSchema
	if load == nil {
		load = func() (*schema.Schema, error) { return schema.Core(), nil }
	}
	s, err := load()
	if err != nil {
		return nil, fmt.Errorf("IFC schema not found, IFC import disabled: %w", err)
	}
	return openInternal(path, s)
}
