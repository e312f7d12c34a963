package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
)

// ============================================================
// EXPRESS schema
// ============================================================

var ErrNoEntities = errors.New("schema: no ENTITY definitions found")

// Entity - одна сущность EXPRESS с собственными явными атрибутами.
type Entity struct {
	Name       string
	Supertype  string
	Abstract   bool
	Attributes []string
}

// Schema индексирует сущности по имени в верхнем регистре.
type Schema struct {
	Name     string
	entities map[string]*Entity
}

var (
	commentBlock = regexp.MustCompile(`(?s)\(\*.*?\*\)`)
	commentLine  = regexp.MustCompile(`--[^\n]*`)
	schemaName   = regexp.MustCompile(`(?i)\bSCHEMA\s+(\w+)\s*;`)
	entityBlock  = regexp.MustCompile(`(?is)\bENTITY\s+(\w+)(.*?)\bEND_ENTITY\s*;`)
	subtypeOf    = regexp.MustCompile(`(?i)SUBTYPE\s+OF\s*\(\s*(\w+)\s*\)`)
	abstractKw   = regexp.MustCompile(`(?i)\bABSTRACT\b`)
	sectionKw    = regexp.MustCompile(`(?i)^\s*(DERIVE|INVERSE|WHERE|UNIQUE)\b`)
	attrDecl     = regexp.MustCompile(`^\s*(\w+)\s*:`)
)

// Parse читает объявления ENTITY схемы EXPRESS. Остаются только явные
// атрибуты; секции derive, inverse и правил пропускаются.
func Parse(r io.Reader) (*Schema, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("schema: read: %w", err)
	}
	text := commentBlock.ReplaceAllString(string(data), "")
	text = commentLine.ReplaceAllString(text, "")

	s := &Schema{entities: make(map[string]*Entity)}
	if m := schemaName.FindStringSubmatch(text); m != nil {
		s.Name = m[1]
	}
	for _, m := range entityBlock.FindAllStringSubmatch(text, -1) {
		e := &Entity{Name: m[1]}
		body := m[2]
		head, rest, _ := strings.Cut(body, ";")
		if sm := subtypeOf.FindStringSubmatch(head); sm != nil {
			e.Supertype = sm[1]
		}
		e.Abstract = abstractKw.MatchString(head)
		for _, decl := range strings.Split(rest, ";") {
			if sectionKw.MatchString(decl) {
				break
			}
			if strings.Contains(decl, `SELF\`) {
				continue
			}
			if am := attrDecl.FindStringSubmatch(decl); am != nil {
				e.Attributes = append(e.Attributes, am[1])
			}
		}
		s.entities[strings.ToUpper(e.Name)] = e
	}
	if len(s.entities) == 0 {
		return nil, ErrNoEntities
	}
	return s, nil
}

func (s *Schema) Entity(name string) (*Entity, bool) {
	e, ok := s.entities[strings.ToUpper(name)]
	return e, ok
}

func (s *Schema) Len() int {
	return len(s.entities)
}

// Canonical возвращает написание типа STEP из схемы или имя
// без изменений, если оно неизвестно.
func (s *Schema) Canonical(name string) string {
	if e, ok := s.Entity(name); ok {
		return e.Name
	}
	return name
}

// Attributes возвращает все явные атрибуты сущности, начиная
// с атрибутов супертипов.
func (s *Schema) Attributes(name string) []string {
	var chain []*Entity
	seen := make(map[string]bool)
	for e, ok := s.Entity(name); ok && !seen[strings.ToUpper(e.Name)]; e, ok = s.Entity(e.Supertype) {
		seen[strings.ToUpper(e.Name)] = true
		chain = append(chain, e)
	}
	var out []string
	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, chain[i].Attributes...)
	}
	return out
}

// AttributeIndex возвращает позицию attr в экземплярах типа name.
func (s *Schema) AttributeIndex(name, attr string) (int, bool) {
	for i, a := range s.Attributes(name) {
		if strings.EqualFold(a, attr) {
			return i, true
		}
	}
	return -1, false
}

// IsA сообщает, является ли name типом super или его подтипом.
func (s *Schema) IsA(name, super string) bool {
	seen := make(map[string]bool)
	for e, ok := s.Entity(name); ok && !seen[e.Name]; e, ok = s.Entity(e.Supertype) {
		if strings.EqualFold(e.Name, super) {
			return true
		}
		seen[e.Name] = true
	}
	return false
}

//go:embed core.exp
var coreSource string

var (
	coreOnce   sync.Once
	coreSchema *Schema
)

// Core возвращает встроенное подмножество IFC2X3 с сущностями, которые
// модуль читает и пишет.
func Core() *Schema {
	coreOnce.Do(func() {
		s, err := Parse(strings.NewReader(coreSource))
		if err != nil {
			panic(fmt.Sprintf("schema: bundled core schema: %v", err))
		}
		coreSchema = s
	})
	return coreSchema
}
