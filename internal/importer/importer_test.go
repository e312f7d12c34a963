package importer

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archifc/internal/common/config"
	"archifc/internal/document"
	"archifc/internal/ifc/accessor"
	"archifc/internal/ifc/schema"
)

const housePath = "testdata/house.ifc"

func prefs() config.Preferences {
	p := config.DefaultPreferences()
	p.ForceInternalParser = true
	return p
}

func core() Options {
	return Options{LoadSchema: func() (*schema.Schema, error) { return schema.Core(), nil }}
}

func noSkip() config.Preferences {
	p := prefs()
	p.Skip = nil
	p.SeparateOpenings = true
	return p
}

// stubFile отдает выбранный список продуктов и дополнительные
// родительские связи поверх внутреннего backend'а.
type stubFile struct {
	accessor.File
	products []int
	extra    map[int][]accessor.Link
}

func (f stubFile) Products() []accessor.Entity {
	if f.products == nil {
		return f.File.Products()
	}
	var out []accessor.Entity
	for _, id := range f.products {
		if e, ok := f.File.ByID(id); ok {
			out = append(out, e)
		}
	}
	return out
}

func (f stubFile) Parents(e accessor.Entity) []accessor.Link {
	return append(append([]accessor.Link(nil), f.File.Parents(e)...), f.extra[e.ID()]...)
}

func openStub(t *testing.T, products []int, extra map[int][]accessor.Link) accessor.File {
	t.Helper()
	f, err := accessor.OpenInternal(housePath, schema.Core())
	require.NoError(t, err)
	return stubFile{File: f, products: products, extra: extra}
}

func run(t *testing.T, f accessor.File, p config.Preferences, opts Options) (*Session, *document.Document) {
	t.Helper()
	doc := document.New("test")
	s := NewSession(f, doc, p, opts)
	s.Run()
	return s, doc
}

func byKind(doc *document.Document, k document.Kind) []*document.Object {
	var out []*document.Object
	for _, o := range doc.Objects() {
		if o.Kind == k {
			out = append(out, o)
		}
	}
	return out
}

func TestStoreyWithWall(t *testing.T) {
	doc, rep, err := Open(housePath, prefs(), core())
	require.NoError(t, err)
	assert.Equal(t, "house", doc.Name)
	assert.Equal(t, accessor.BackendInternal, rep.Backend)
	assert.Equal(t, 3, rep.Skipped)

	floors := byKind(doc, document.KindFloor)
	walls := byKind(doc, document.KindWall)
	require.Len(t, floors, 1)
	require.Len(t, walls, 1)

	floor, wall := floors[0], walls[0]
	assert.Equal(t, "Ground floor", floor.Label)
	assert.Equal(t, []*document.Object{wall}, floor.Group)
	assert.Same(t, floor, doc.Host(wall))
	assert.Equal(t, "IfcWallStandardCase", wall.IfcType)
	assert.Equal(t, "0DWgwt6o1FOx7466fPk$jl", wall.IfcAttributes["GlobalId"])

	t.Run("wall built from its axis", func(t *testing.T) {
		assert.Equal(t, 200.0, wall.Width)
		assert.Equal(t, 3000.0, wall.Height)
		require.NotNil(t, wall.Extrusion)
		assert.Len(t, wall.Extrusion.Profile.Edges, 4)
		box := wall.Shape.BoundBox()
		assert.InDelta(t, 1000, box.Min.X, 1e-6)
		assert.InDelta(t, 5000, box.Max.X, 1e-6)
		assert.InDelta(t, 0, box.Min.Y, 1e-6)
		assert.InDelta(t, 200, box.Max.Y, 1e-6)
		assert.InDelta(t, 3000, box.Max.Z, 1e-6)
	})

	t.Run("hierarchy", func(t *testing.T) {
		buildings := byKind(doc, document.KindBuilding)
		sites := byKind(doc, document.KindSite)
		require.Len(t, buildings, 1)
		require.Len(t, sites, 1)
		assert.Equal(t, []*document.Object{floor}, buildings[0].Group)
		assert.Equal(t, []*document.Object{buildings[0]}, sites[0].Group)
	})

	t.Run("opening kept on the host", func(t *testing.T) {
		require.Len(t, wall.Subtractions, 1)
		op := wall.Subtractions[0]
		assert.True(t, op.Hidden)
		box := op.Shape.BoundBox()
		assert.InDelta(t, 2500, box.Min.X, 1e-6)
		assert.InDelta(t, 3400, box.Max.X, 1e-6)
		assert.Nil(t, doc.Host(op))
	})
}

func TestSeparateOpenings(t *testing.T) {
	s, doc := run(t, openStub(t, nil, nil), noSkip(), Options{})

	wallObj, ok := s.Object(20)
	require.True(t, ok)
	opening, ok := s.Object(30)
	require.True(t, ok)
	require.NotNil(t, opening)

	assert.Equal(t, []Relation{{Parent: 20, Additive: false}}, s.Relations(30))
	assert.Equal(t, []*document.Object{opening}, wallObj.Subtractions)
	assert.Empty(t, wallObj.Additions)
	assert.Nil(t, doc.Host(opening))

	top := doc.PruneIncluded(document.GroupContents(doc.Objects()))
	assert.NotContains(t, top, opening)
	assert.Contains(t, top, wallObj)
}

func TestSkipLists(t *testing.T) {
	p := noSkip()
	p.Skip = []string{"ifcfurnishingelement"}
	s, doc := run(t, openStub(t, nil, nil), p, Options{SkipIDs: []int{20}})

	for _, id := range []int{20, 40} {
		_, ok := s.Object(id)
		assert.False(t, ok, "#%d", id)
		assert.Nil(t, s.Relations(id), "#%d", id)
	}
	assert.Empty(t, byKind(doc, document.KindWall))
	assert.Empty(t, byKind(doc, document.KindMesh))
}

func TestOpeningsSkippedWhenNotSeparate(t *testing.T) {
	p := noSkip()
	p.SeparateOpenings = false
	s, _ := run(t, openStub(t, nil, nil), p, Options{})
	_, ok := s.Object(30)
	assert.False(t, ok)
}

func TestDuplicateDelivery(t *testing.T) {
	s, doc := run(t, openStub(t, []int{2, 3, 10, 20, 20, 2}, nil), prefs(), Options{})
	assert.Len(t, byKind(doc, document.KindWall), 1)
	assert.Len(t, byKind(doc, document.KindSite), 1)
	assert.Equal(t, 2, s.duplicates)
	assert.Len(t, s.Relations(20), 1)
}

func TestParentSynthesis(t *testing.T) {
	s, doc := run(t, openStub(t, []int{20, 40}, nil), noSkip(), Options{})

	floors := byKind(doc, document.KindFloor)
	require.Len(t, floors, 1, "storey must be synthesized once")
	floor := floors[0]
	assert.Equal(t, "Ground floor", floor.Label)

	wallObj, _ := s.Object(20)
	table, _ := s.Object(40)
	require.NotNil(t, table)
	assert.Equal(t, document.KindMesh, table.Kind)
	assert.ElementsMatch(t, []*document.Object{wallObj, table}, floor.Group)

	buildings := byKind(doc, document.KindBuilding)
	require.Len(t, buildings, 1)
	assert.Equal(t, "Main building", buildings[0].Label)
	assert.Equal(t, []*document.Object{floor}, buildings[0].Group)
	sites := byKind(doc, document.KindSite)
	require.Len(t, sites, 1)
	assert.Equal(t, []*document.Object{buildings[0]}, sites[0].Group)

	project, ok := s.Object(1)
	assert.True(t, ok)
	assert.Nil(t, project)
}

func TestSkippedParentIsNotSynthesized(t *testing.T) {
	s, doc := run(t, openStub(t, []int{20}, nil), prefs(), Options{SkipIDs: []int{10}})
	_, ok := s.Object(10)
	assert.False(t, ok)
	assert.Empty(t, byKind(doc, document.KindFloor))
	w, _ := s.Object(20)
	assert.Nil(t, doc.Host(w))
}

func TestGrandparentPromotion(t *testing.T) {
	extra := map[int][]accessor.Link{40: {{Parent: 30}}}
	s, _ := run(t, openStub(t, nil, extra), noSkip(), Options{})

	wallObj, _ := s.Object(20)
	table, _ := s.Object(40)
	opening, _ := s.Object(30)
	require.NotNil(t, table)
	assert.Contains(t, wallObj.Additions, table)
	assert.NotContains(t, opening.Group, table)
	assert.NotContains(t, opening.Additions, table)
}

func TestCyclicRelations(t *testing.T) {
	extra := map[int][]accessor.Link{3: {{Parent: 10}}}
	_, doc := run(t, openStub(t, []int{20}, extra), prefs(), Options{})
	assert.Len(t, byKind(doc, document.KindFloor), 1)
	assert.Len(t, byKind(doc, document.KindBuilding), 1)

	t.Run("walls aggregating each other", func(t *testing.T) {
		doc, rep, err := Open("testdata/twin_walls.ifc", prefs(), core())
		require.NoError(t, err)

		front, ok := doc.FindByLabel("Front wall")
		require.True(t, ok)
		back, ok := doc.FindByLabel("Back wall")
		require.True(t, ok)

		frontHasBack := slices.Contains(front.Additions, back)
		backHasFront := slices.Contains(back.Additions, front)
		assert.True(t, frontHasBack != backHasFront, "exactly one of the two links is kept")
		assert.False(t, document.Reaches(front, front))
		assert.False(t, document.Reaches(back, back))

		var cycle bool
		for _, d := range rep.Diagnostics {
			if strings.Contains(d.Message, document.ErrCycle.Error()) {
				cycle = true
			}
		}
		assert.True(t, cycle, "the dropped link is reported")

		top := doc.PruneIncluded(document.GroupContents(doc.Objects()))
		assert.True(t, slices.Contains(top, front) != slices.Contains(top, back))
		assert.NotNil(t, document.CombinedShape(front))
		assert.NotNil(t, document.CombinedShape(back))
	})
}

func TestFailedConstructorKeepsSlot(t *testing.T) {
	s, _ := run(t, openStub(t, nil, nil), noSkip(), Options{})

	proxy, ok := s.Object(41)
	assert.True(t, ok)
	assert.Nil(t, proxy)
	assert.Equal(t, []Relation{{Parent: 10, Additive: true}}, s.Relations(41))

	var found bool
	for _, d := range s.Diagnostics() {
		if d.ID == 41 {
			found = true
			assert.Equal(t, "IfcBuildingElementProxy", d.Type)
		}
	}
	assert.True(t, found)
}

func TestPreferences(t *testing.T) {
	t.Run("prefix numbers", func(t *testing.T) {
		p := prefs()
		p.PrefixNumbers = true
		s, _ := run(t, openStub(t, nil, nil), p, Options{})
		w, _ := s.Object(20)
		assert.Equal(t, "ID20 Front wall", w.Label)
	})

	t.Run("create groups", func(t *testing.T) {
		p := prefs()
		p.CreateGroups = true
		s, _ := run(t, openStub(t, nil, nil), p, Options{})
		floor, _ := s.Object(10)
		w, _ := s.Object(20)
		require.Len(t, floor.Group, 1)
		assert.Equal(t, "Walls", floor.Group[0].Label)
		assert.Equal(t, []*document.Object{w}, floor.Group[0].Group)
	})

	t.Run("furniture as feature", func(t *testing.T) {
		p := noSkip()
		p.AsMesh = nil
		s, _ := run(t, openStub(t, nil, nil), p, Options{})
		table, _ := s.Object(40)
		require.NotNil(t, table)
		assert.Equal(t, document.KindMesh, table.Kind, "only a triangulation is available")
	})
}

func TestImportErrors(t *testing.T) {
	doc := document.New("x")
	_, err := Import("testdata/missing.ifc", doc, prefs(), core())
	assert.ErrorIs(t, err, accessor.ErrOpen)

	_, err = Import(housePath, doc, prefs(), Options{LoadSchema: func() (*schema.Schema, error) {
		return nil, schema.ErrSchemaNotFound
	}})
	assert.ErrorIs(t, err, schema.ErrSchemaNotFound)
	assert.Equal(t, 0, doc.Len())
}

func TestSchemaLoader(t *testing.T) {
	p := prefs()
	p.CustomSchema = "testdata/missing.exp"
	p.SchemaCacheDir = t.TempDir()
	p.SchemaURL = "http://127.0.0.1:1/ifc.exp"

	s, err := SchemaLoader(p)()
	require.NoError(t, err)
	assert.Same(t, schema.Core(), s)

	p.AllowCoreSchema = false
	_, err = SchemaLoader(p)()
	assert.ErrorIs(t, err, schema.ErrSchemaNotFound)
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		name   string
		prefix bool
		want   string
	}{
		{"Front wall", false, "Front wall"},
		{"", false, "IfcWall"},
		{"  ", false, "IfcWall"},
		{"Front wall", true, "ID7 Front wall"},
		{"", true, "ID7 IfcWall"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanName(tt.name, 7, "IfcWall", tt.prefix))
	}
}

func TestKindOf(t *testing.T) {
	tests := map[string]Kind{
		"IfcWallStandardCase":  KindWall,
		"IFCWALL":              KindWall,
		"IfcDoor":              KindWindow,
		"IfcFooting":           KindStructure,
		"IfcRoof":              KindRoof,
		"IfcFurnishingElement": KindFurnishing,
		"IfcBuildingStorey":    KindStorey,
		"IfcProject":           KindProject,
		"IfcOpeningElement":    KindUnrecognized,
	}
	for typ, want := range tests {
		assert.Equal(t, want, KindOf(typ), typ)
	}
	assert.Equal(t, "unrecognized", Kind(99).String())
}
