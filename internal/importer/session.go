package importer

import (
	"fmt"
	"log"

	"archifc/internal/common/config"
	"archifc/internal/document"
	"archifc/internal/ifc/accessor"
	"archifc/internal/ifc/geometry"
)

// ============================================================
// Import session
// ============================================================

// Relation связывает дочернюю сущность с одним из родителей. Аддитивные
// связи добавляют ребенка в родителя, остальные вырезают его.
type Relation struct {
	Parent   int
	Additive bool
}

// Diagnostic - исправимая проблема при импорте одной сущности.
type Diagnostic struct {
	ID      int    `json:"id"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Type == "" {
		return fmt.Sprintf("#%d: %s", d.ID, d.Message)
	}
	return fmt.Sprintf("#%d %s: %s", d.ID, d.Type, d.Message)
}

// Outcome - результат построения одного объекта. nil Object с Reason
// означает исправимую ошибку.
type Outcome struct {
	Object *document.Object
	Reason string
}

func built(o *document.Object) Outcome {
	return Outcome{Object: o}
}

func failed(format string, args ...any) Outcome {
	return Outcome{Reason: fmt.Sprintf(format, args...)}
}

func (o Outcome) OK() bool {
	return o.Object != nil
}

// Session хранит состояние одного импорта: таблицу id -> объект, таблицу
// связей ребенок -> родитель и множество обработанных id. Сессия
// используется один раз.
type Session struct {
	file     accessor.File
	doc      *document.Document
	prefs    config.Preferences
	resolver *geometry.Resolver

	skipIDs   map[int]bool
	skipTypes typeSet
	asMesh    typeSet

	objects   map[int]*document.Object
	relations map[int][]Relation
	relOrder  []int
	processed map[int]bool

	skipped    int
	duplicates int
	diags      []Diagnostic
}

func NewSession(f accessor.File, doc *document.Document, prefs config.Preferences, opts Options) *Session {
	skip := append([]string(nil), prefs.Skip...)
	if !prefs.SeparateOpenings {
		skip = append(skip, "IfcOpeningElement")
	}
	s := &Session{
		file:  f,
		doc:   doc,
		prefs: prefs,
		resolver: &geometry.Resolver{
			Kernel:        opts.Kernel,
			JoinSolids:    prefs.JoinSolids,
			KeepPlacement: prefs.SeparatePlacements,
			Debug:         prefs.Debug,
		},
		skipIDs:   make(map[int]bool),
		skipTypes: newTypeSet(skip),
		asMesh:    newTypeSet(prefs.AsMesh),
		objects:   make(map[int]*document.Object),
		relations: make(map[int][]Relation),
		processed: make(map[int]bool),
	}
	for _, id := range opts.SkipIDs {
		s.skipIDs[id] = true
	}
	return s
}

// Object возвращает запись таблицы для id. Присутствующая nil запись - сущность
// распознана, но объект построить не удалось.
func (s *Session) Object(id int) (*document.Object, bool) {
	o, ok := s.objects[id]
	return o, ok
}

func (s *Session) Relations(id int) []Relation {
	return s.relations[id]
}

func (s *Session) Diagnostics() []Diagnostic {
	return s.diags
}

func (s *Session) diag(id int, typ, format string, args ...any) {
	d := Diagnostic{ID: id, Type: typ, Message: fmt.Sprintf(format, args...)}
	s.diags = append(s.diags, d)
	if s.prefs.Debug {
		log.Printf("[IMPORT] %s", d)
	}
}

func (s *Session) debugf(format string, args ...any) {
	if s.prefs.Debug {
		log.Printf("[IMPORT] "+format, args...)
	}
}

func (s *Session) addRelation(id int, r Relation) {
	if _, ok := s.relations[id]; !ok {
		s.relOrder = append(s.relOrder, id)
	}
	s.relations[id] = append(s.relations[id], r)
}

func (s *Session) shapeOptions() accessor.ShapeOptions {
	return accessor.ShapeOptions{
		SeparateOpenings:   s.prefs.SeparateOpenings,
		SeparatePlacements: s.prefs.SeparatePlacements,
		SewShells:          true,
	}
}

// Run выполняет оба прохода и, если нужно, раскладку по подгруппам.
func (s *Session) Run() {
	s.Pass1()
	s.Pass2()
	if s.prefs.CreateGroups {
		for _, o := range s.doc.Objects() {
			if o.Kind == document.KindFloor || o.Kind == document.KindBuilding || o.Kind == document.KindSite {
				s.doc.SortSubgroups(o)
			}
		}
	}
}

// ============================================================
// Pass 1: entity classification
// ============================================================

func (s *Session) Pass1() {
	products := s.file.Products()
	for i, e := range products {
		id, typ := e.ID(), e.Type()
		s.debugf("[%d%%] parsing %d: %s of type %s", (i+1)*100/len(products), id, e.Name(), typ)

		switch {
		case s.skipIDs[id]:
			s.debugf("    skipping because object ID is in skip list")
			s.skipped++
			continue
		case s.skipTypes.has(typ):
			s.debugf("    skipping because type is in skip list")
			s.skipped++
			continue
		case s.processed[id]:
			s.debugf("    skipping because this object was already processed")
			s.duplicates++
			continue
		}

		res := s.geometry(e)
		name := CleanName(e.Name(), id, typ, s.prefs.PrefixNumbers)
		out := s.construct(e, res, name)
		if !out.OK() {
			s.diag(id, typ, "%s", out.Reason)
		} else {
			s.decorate(out.Object, e)
			s.attachOpenings(out.Object, res, name)
		}
		s.objects[id] = out.Object

		for _, l := range s.file.Parents(e) {
			s.addRelation(id, Relation{Parent: l.Parent, Additive: !isSubtractive(typ)})
		}
		s.processed[id] = true
	}
}

func (s *Session) geometry(e accessor.Entity) geometry.Result {
	p, err := s.file.Payload(e, s.shapeOptions())
	if err != nil {
		s.diag(e.ID(), e.Type(), "unable to retrieve shape data: %v", err)
	}
	res := s.resolver.Resolve(e.ID(), p)
	for _, n := range res.Notes {
		s.diags = append(s.diags, Diagnostic{ID: e.ID(), Type: e.Type(), Message: n})
	}
	return res
}

// construct выбирает конструктор по виду сущности. Panic внутри конструктора
// превращается в ошибку сущности и не прерывает импорт.
func (s *Session) construct(e accessor.Entity, res geometry.Result, name string) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = failed("constructor panic: %v", r)
		}
	}()
	kind := KindOf(e.Type())
	if build, ok := builders[kind]; ok {
		return build(s, e, res, name)
	}
	return s.makeGeneric(e, res, name)
}

func (s *Session) decorate(o *document.Object, e accessor.Entity) {
	o.IfcType = e.Type()
	if d, ok := e.Attr("Description").AsString(); ok {
		o.Description = d
	}
	if g, ok := e.Attr("GlobalId").AsString(); ok {
		if o.IfcAttributes == nil {
			o.IfcAttributes = make(map[string]string)
		}
		o.IfcAttributes["GlobalId"] = g
	}
}

// attachOpenings вычитает тела проемов, которые backend не вырезал.
func (s *Session) attachOpenings(o *document.Object, res geometry.Result, name string) {
	if !o.Kind.IsComponent() {
		return
	}
	for _, op := range res.Openings {
		f := s.doc.AddFeature(name+"_opening", op)
		if err := document.RemoveComponents(f, o); err != nil {
			s.diag(0, "", "%v", err)
		}
	}
}

// ============================================================
// Pass 2: relation resolution
// ============================================================

// Pass2 разбирает таблицу связей как LIFO очередь. Синтезированные по пути
// родители добавляют свои связи; каждый id разрешается не больше одного раза.
func (s *Session) Pass2() {
	stack := append([]int(nil), s.relOrder...)
	resolved := make(map[int]bool)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if resolved[id] {
			continue
		}
		resolved[id] = true

		for _, r := range s.relations[id] {
			parent, pushed := s.parentOf(id, r.Parent)
			for _, p := range pushed {
				if !resolved[p] {
					stack = append(stack, p)
				}
			}
			s.attach(id, parent, r.Additive)
		}
	}
}

// parentOf находит или синтезирует объект для parentID. Родители, которые
// сами вычитаются, передают ребенка своему родителю.
func (s *Session) parentOf(id, parentID int) (*document.Object, []int) {
	if id <= 0 || parentID <= 0 {
		return nil, nil
	}
	if parent, ok := s.objects[parentID]; ok {
		for _, r := range s.relations[parentID] {
			if r.Additive {
				continue
			}
			if gp, ok := s.objects[r.Parent]; ok {
				parent = gp
			}
		}
		return parent, nil
	}
	return s.synthesize(parentID)
}

// synthesize создает недостающего родителя из его сущности и регистрирует
// его вместе с его собственными связями.
func (s *Session) synthesize(id int) (*document.Object, []int) {
	e, ok := s.file.ByID(id)
	if !ok {
		s.diag(id, "", "parent entity not found")
		s.objects[id] = nil
		return nil, nil
	}
	typ := e.Type()
	if s.skipIDs[id] || s.skipTypes.has(typ) {
		return nil, nil
	}

	name := CleanName(e.Name(), id, typ, s.prefs.PrefixNumbers)
	var parent *document.Object
	switch kind := KindOf(typ); kind {
	case KindStorey:
		parent = s.doc.MakeFloor(name)
	case KindBuilding:
		parent = s.doc.MakeBuilding(name)
	case KindSite:
		parent = s.doc.MakeSite(name)
	case KindWindow:
		parent = s.doc.MakeWindow(nil, name)
	case KindProject:
	default:
		s.diag(id, typ, "skipping unhandled parent")
	}
	if parent != nil {
		s.decorate(parent, e)
	}
	s.objects[id] = parent

	links := s.file.Parents(e)
	for _, l := range links {
		s.addRelation(id, Relation{Parent: l.Parent, Additive: !isSubtractive(typ)})
	}
	if len(links) == 0 {
		return parent, nil
	}
	return parent, []int{id}
}

func (s *Session) attach(id int, parent *document.Object, additive bool) {
	if parent == nil {
		return
	}
	child := s.objects[id]
	if child == nil || child == parent {
		return
	}
	var err error
	if additive {
		s.debugf("adding %s to %s", child.Name, parent.Name)
		err = document.AddComponents(child, parent)
	} else {
		s.debugf("removing %s from %s", child.Name, parent.Name)
		err = document.RemoveComponents(child, parent)
	}
	if err != nil {
		s.diag(id, child.IfcType, "%v", err)
	}
}
