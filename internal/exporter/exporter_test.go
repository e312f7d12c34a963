package exporter

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archifc/internal/common/config"
	"archifc/internal/document"
	"archifc/internal/geom"
	"archifc/internal/ifc/schema"
	"archifc/internal/ifc/step"
	"archifc/internal/importer"
)

func rect(x0, y0, x1, y1 float64) geom.Wire {
	return geom.Polygon(true, geom.V(x0, y0, 0), geom.V(x1, y0, 0), geom.V(x1, y1, 0), geom.V(x0, y1, 0))
}

func box(t *testing.T, x0, y0, z0, x1, y1, z1 float64) *geom.Shape {
	t.Helper()
	s, err := geom.Extrusion{
		Profile:   rect(x0, y0, x1, y1),
		Vector:    geom.V(0, 0, z1-z0),
		Placement: geom.Translation(geom.V(0, 0, z0)),
	}.Shape()
	require.NoError(t, err)
	return s
}

// house строит здание с одним этажом, на котором стена 4000x200x3000
// с дверным проемом.
func house(t *testing.T) (*document.Document, *document.Object, *document.Object) {
	t.Helper()
	doc := document.New("house")
	floor := doc.MakeFloor("Ground floor")
	building := doc.MakeBuilding("Main building", floor)

	wall := doc.MakeWall(nil, "Front wall")
	require.NoError(t, wall.SetExtrusion(geom.Extrusion{
		Profile:   rect(0, 0, 4000, 200),
		Vector:    geom.V(0, 0, 3000),
		Placement: geom.Translation(geom.V(1000, 0, 0)),
	}))
	require.NoError(t, document.AddComponents(wall, floor))

	door := doc.AddFeature("Door opening", box(t, 2500, -100, 0, 3400, 300, 2100))
	require.NoError(t, document.RemoveComponents(door, wall))
	return doc, building, wall
}

func prefs() config.Preferences {
	p := config.DefaultPreferences()
	p.SeparateOpenings = true
	return p
}

func parse(t *testing.T, path string) *step.File {
	t.Helper()
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	sf, err := step.Parse(fh)
	require.NoError(t, err)
	return sf
}

func named(sf *step.File, typ, name string) *step.Instance {
	for _, in := range sf.ByType(typ) {
		if n, _ := in.Arg(2).AsString(); n == name {
			return in
		}
	}
	return nil
}

func TestExportWallWithOpening(t *testing.T) {
	doc, building, _ := house(t)
	path := filepath.Join(t.TempDir(), "house.ifc")

	x := New(doc, prefs(), Options{})
	rep, err := x.Export([]*document.Object{building}, path)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Exported)
	assert.Empty(t, x.Unprocessed())

	sf := parse(t, path)
	walls := sf.ByType("IFCWALLSTANDARDCASE")
	openings := sf.ByType("IFCOPENINGELEMENT")
	require.Len(t, walls, 1)
	require.Len(t, openings, 1)
	assert.Empty(t, sf.ByType("IFCWALL"))

	voids := sf.ByType("IFCRELVOIDSELEMENT")
	require.Len(t, voids, 1)
	assert.Equal(t, walls[0].ID, voids[0].Arg(4).Ref)
	assert.Equal(t, openings[0].ID, voids[0].Arg(5).Ref)

	storey := named(sf, "IFCBUILDINGSTOREY", "Ground floor")
	require.NotNil(t, storey)
	var contained bool
	for _, rel := range sf.ByType("IFCRELCONTAINEDINSPATIALSTRUCTURE") {
		if rel.Arg(5).Ref == storey.ID {
			assert.Equal(t, []int{walls[0].ID}, rel.Arg(4).Refs())
			contained = true
		}
	}
	assert.True(t, contained)
	require.NotNil(t, named(sf, "IFCBUILDING", "Main building"))
	assert.Len(t, sf.ByType("IFCBUILDING"), 1)
}

func TestExportWithoutSeparateOpenings(t *testing.T) {
	doc, building, _ := house(t)
	path := filepath.Join(t.TempDir(), "house.ifc")
	p := prefs()
	p.SeparateOpenings = false

	rep, err := Export(doc, []*document.Object{building}, path, p)
	require.NoError(t, err)
	sf := parse(t, path)
	assert.Len(t, sf.ByType("IFCWALL"), 1)
	assert.Empty(t, sf.ByType("IFCOPENINGELEMENT"))
	assert.Len(t, sf.ByType("IFCFACETEDBREP"), 1)
	assert.NotEmpty(t, rep.Notes)
}

func TestRoundTrip(t *testing.T) {
	for _, scale := range []float64{1, 0.5} {
		doc, building, _ := house(t)
		path := filepath.Join(t.TempDir(), "house.ifc")
		p := prefs()
		p.ScalingFactor = scale
		_, err := Export(doc, []*document.Object{building}, path, p)
		require.NoError(t, err)

		ip := config.DefaultPreferences()
		ip.ForceInternalParser = true
		ip.SeparateOpenings = true
		back, _, err := importer.Open(path, ip, importer.Options{
			LoadSchema: func() (*schema.Schema, error) { return schema.Core(), nil },
		})
		require.NoError(t, err)

		var wall *document.Object
		for _, o := range back.Objects() {
			if o.Kind == document.KindWall {
				wall = o
			}
		}
		require.NotNil(t, wall)
		require.NotNil(t, wall.Extrusion)
		assert.Len(t, wall.Extrusion.Profile.Vertexes(), 4)
		assert.InDelta(t, 3000*scale, wall.Extrusion.Depth(), 1e-5)
		assert.InDelta(t, 1000*scale, wall.Extrusion.Placement.Base.X, 1e-5)
		assert.Len(t, wall.Subtractions, 1)
	}
}

func TestTuples(t *testing.T) {
	cw := geom.Polygon(true, geom.V(0, 0, 0), geom.V(0, 1, 0), geom.V(1, 1, 0), geom.V(1, 0, 0))

	signedArea := func(pts []geom.Vector) float64 {
		var a float64
		for i := 0; i+1 < len(pts); i++ {
			a += pts[i].X*pts[i+1].Y - pts[i+1].X*pts[i].Y
		}
		return a / 2
	}

	t.Run("closed profile", func(t *testing.T) {
		pts := Tuples(cw, 1, geom.Identity(), geom.Vector{}, true)
		require.Len(t, pts, 5)
		assert.Equal(t, pts[0], pts[4])
		assert.Greater(t, signedArea(pts), 0.0)
	})

	t.Run("face loop", func(t *testing.T) {
		pts := Tuples(cw, 1, geom.Identity(), geom.ZAxis, false)
		require.Len(t, pts, 4)
		closed := append(pts, pts[0])
		assert.Greater(t, signedArea(closed), 0.0)
	})

	t.Run("reversed normal", func(t *testing.T) {
		pts := Tuples(cw, 1, geom.Identity(), geom.ZAxis.Neg(), true)
		assert.Less(t, signedArea(pts), 0.0)
	})

	t.Run("placement and scale", func(t *testing.T) {
		pts := Tuples(cw, 2, geom.Translation(geom.V(10, 0, 5)), geom.ZAxis, false)
		for _, p := range pts {
			assert.InDelta(t, 10, p.Z, 1e-9)
			assert.GreaterOrEqual(t, p.X, 20.0)
		}
	})

	assert.Nil(t, Tuples(geom.Wire{}, 1, geom.Identity(), geom.ZAxis, true))
}

func TestExtrusionData(t *testing.T) {
	doc := document.New("x")
	mk := func(x geom.Extrusion) *document.Object {
		o := doc.MakeStructure(nil, "S")
		require.NoError(t, o.SetExtrusion(x))
		return o
	}

	t.Run("polyline", func(t *testing.T) {
		o := mk(geom.Extrusion{Profile: rect(0, 0, 2, 1), Vector: geom.V(0, 0, 3), Placement: geom.Translation(geom.V(1, 2, 3))})
		d := Extrusion(o, 10, false)
		require.NotNil(t, d)
		assert.Equal(t, ProfilePolyline, d.Kind)
		assert.Len(t, d.Points, 5)
		assert.Equal(t, geom.V(10, 20, 30), d.Origin)
		assert.Equal(t, geom.V(0, 0, 30), d.Vector)
		assert.Equal(t, geom.XAxis, d.XAxis)
		assert.Equal(t, geom.ZAxis, d.ZAxis)
	})

	t.Run("circle and ellipse", func(t *testing.T) {
		c := mk(geom.Extrusion{Profile: geom.NewWire(geom.Circle(geom.Vector{}, 5, geom.ZAxis, geom.XAxis)), Vector: geom.V(0, 0, 1)})
		d := Extrusion(c, 1, false)
		require.NotNil(t, d)
		assert.Equal(t, ProfileCircle, d.Kind)
		assert.Equal(t, 5.0, d.Radius)

		e := mk(geom.Extrusion{Profile: geom.NewWire(geom.Ellipse(geom.Vector{}, 4, 2, geom.ZAxis, geom.YAxis)), Vector: geom.V(0, 0, 1)})
		d = Extrusion(e, 1, false)
		require.NotNil(t, d)
		assert.Equal(t, ProfileEllipse, d.Kind)
		assert.Equal(t, 2.0, d.MinorRadius)
	})

	t.Run("composite", func(t *testing.T) {
		// паз с торцами против и по часовой стрелке
		w := geom.NewWire(
			geom.Line(geom.V(0, 0, 0), geom.V(10, 0, 0)),
			geom.Arc(geom.V(10, 5, 0), geom.ZAxis, geom.V(10, 0, 0), geom.V(10, 10, 0)),
			geom.Line(geom.V(10, 10, 0), geom.V(0, 10, 0)),
			geom.Arc(geom.V(0, 5, 0), geom.ZAxis.Neg(), geom.V(0, 10, 0), geom.V(0, 0, 0)),
		)
		o := mk(geom.Extrusion{Profile: w, Vector: geom.V(0, 0, 1)})
		d := Extrusion(o, 1, false)
		require.NotNil(t, d)
		require.Equal(t, ProfileComposite, d.Kind)
		require.Len(t, d.Segments, 4)

		ccw, cwArc := d.Segments[1], d.Segments[3]
		assert.True(t, ccw.Arc)
		assert.True(t, ccw.SameSense)
		assert.InDelta(t, 270, ccw.Trim[0], 1e-9)
		assert.InDelta(t, 90, ccw.Trim[1], 1e-9)
		assert.False(t, cwArc.SameSense)
		assert.InDelta(t, 270, cwArc.Trim[0], 1e-9)
		assert.InDelta(t, 90, cwArc.Trim[1], 1e-9)
	})

	t.Run("not extrudable", func(t *testing.T) {
		o := mk(geom.Extrusion{Profile: rect(0, 0, 1, 1), Vector: geom.V(0, 0, 1)})
		sub := doc.AddFeature("sub", nil)
		o.Subtractions = []*document.Object{sub}
		assert.Nil(t, Extrusion(o, 1, false))
		assert.NotNil(t, Extrusion(o, 1, true))

		o.Additions = []*document.Object{sub}
		assert.Nil(t, Extrusion(o, 1, true))

		tilted := doc.MakeStructure(nil, "Tilted")
		tilted.Extrusion = &geom.Extrusion{
			Profile: geom.Polygon(true, geom.V(0, 0, 0), geom.V(1, 0, 1), geom.V(1, 1, 1)),
			Vector:  geom.V(0, 0, 1),
		}
		assert.Nil(t, Extrusion(tilted, 1, false))
		assert.Nil(t, Extrusion(doc.AddFeature("plain", nil), 1, false))
	})
}

func TestBrep(t *testing.T) {
	doc := document.New("x")

	t.Run("planar solid", func(t *testing.T) {
		o := doc.AddFeature("Box", box(t, 0, 0, 0, 1, 2, 3))
		sols := Brep(o, 1, 1)
		require.Len(t, sols, 1)
		require.Len(t, sols[0], 6)
		for _, f := range sols[0] {
			require.Len(t, f, 1)
			assert.Len(t, f[0], 4, "face loops stay open")
		}
	})

	t.Run("curved solid is tessellated", func(t *testing.T) {
		s, err := geom.Extrusion{
			Profile: geom.NewWire(geom.Circle(geom.Vector{}, 1, geom.ZAxis, geom.XAxis)),
			Vector:  geom.V(0, 0, 1),
		}.Shape()
		require.NoError(t, err)
		sols := Brep(doc.AddFeature("Cyl", s), 1, 0.1)
		require.Len(t, sols, 1)
		for _, f := range sols[0] {
			assert.Len(t, f[0], 3)
		}
	})

	t.Run("mesh", func(t *testing.T) {
		m := &geom.Mesh{
			Vertices:  []geom.Vector{geom.V(0, 0, 0), geom.V(1, 0, 0), geom.V(0, 1, 0)},
			Triangles: [][3]int{{0, 1, 2}},
			Placement: geom.Translation(geom.V(0, 0, 7)),
		}
		sols := Brep(doc.AddMesh("Mesh", m), 2, 1)
		require.Len(t, sols, 1)
		assert.Equal(t, geom.V(0, 0, 14), sols[0][0][0][0])
	})

	assert.Nil(t, Brep(doc.AddFeature("Empty", nil), 1, 1))
}

func TestElevation(t *testing.T) {
	doc := document.New("x")
	assert.InDelta(t, 250, Elevation(doc.AddFeature("B", box(t, 0, 0, 250, 1, 1, 400))), 1e-9)
	assert.Zero(t, Elevation(doc.AddFeature("N", nil)))
}

func TestTypeTags(t *testing.T) {
	doc := document.New("types")
	floor := doc.MakeFloor("Level 1")
	doc.MakeBuilding("B", floor)
	add := func(o *document.Object) *document.Object {
		require.NoError(t, document.AddComponents(o, floor))
		return o
	}

	footing := add(doc.MakeStructure(doc.AddFeature("fb", box(t, 0, 0, 0, 1, 1, 1)), "Footing"))
	footing.Role = "Foundation"
	rebar := add(doc.MakeStructure(doc.AddFeature("rb", box(t, 0, 0, 0, 1, 1, 1)), "Rebar"))
	rebar.Role = "Rebar"
	part := add(doc.AddFeature("Part", box(t, 0, 0, 0, 1, 1, 1)))
	roof := add(doc.MakeRoof(doc.AddFeature("roofb", box(t, 0, 0, 3, 5, 5, 4)), "Roof"))
	space := add(doc.MakeSpace(doc.AddFeature("sb", box(t, 0, 0, 100, 5, 5, 3000)), "Room"))
	door := add(doc.MakeWindow(doc.AddFeature("db", box(t, 0, 0, 0, 900, 100, 2100)), "Door"))
	door.Role = "Door"
	door.Width, door.Height = 900, 2100
	mesh := add(doc.AddMesh("Chair", &geom.Mesh{
		Vertices:  []geom.Vector{geom.V(0, 0, 0), geom.V(1, 0, 0), geom.V(0, 1, 0)},
		Triangles: [][3]int{{0, 1, 2}},
	}))
	forced := add(doc.MakeStructure(nil, "Forced"))
	require.NoError(t, forced.SetExtrusion(geom.Extrusion{Profile: rect(0, 0, 1, 1), Vector: geom.V(0, 0, 1)}))
	forced.Role = "Slab"
	forced.IfcAttributes = map[string]string{"ForceBrep": "True"}

	assert.Equal(t, "Footing", TypeTag(footing))
	assert.Equal(t, "ReinforcingBar", TypeTag(rebar))
	assert.Equal(t, "BuildingElementProxy", TypeTag(part))
	assert.Equal(t, "Mesh", TypeTag(mesh))
	assert.Equal(t, "Roof", TypeTag(roof))
	assert.Equal(t, "Space", TypeTag(space))
	assert.InDelta(t, 100, Elevation(space), 1e-9)

	path := filepath.Join(t.TempDir(), "types.ifc")
	rep, err := Export(doc, []*document.Object{floor}, path, prefs())
	require.NoError(t, err)
	sf := parse(t, path)

	f := named(sf, "IFCFOOTING", "Footing")
	require.NotNil(t, f)
	assert.Equal(t, "NOTDEFINED", f.Arg(8).Str)
	assert.NotNil(t, named(sf, "IFCREINFORCINGBAR", "Rebar"))
	assert.NotNil(t, named(sf, "IFCROOF", "Roof"))

	p := named(sf, "IFCBUILDINGELEMENTPROXY", "Part")
	require.NotNil(t, p)
	assert.Equal(t, "ELEMENT", p.Arg(8).Str)
	assert.NotNil(t, named(sf, "IFCBUILDINGELEMENTPROXY", "Chair"))

	d := named(sf, "IFCDOOR", "Door")
	require.NotNil(t, d)
	h, _ := d.Arg(8).AsFloat()
	w, _ := d.Arg(9).AsFloat()
	assert.Equal(t, 2100.0, h)
	assert.Equal(t, 900.0, w)

	sp := named(sf, "IFCSPACE", "Room")
	require.NotNil(t, sp)
	assert.Equal(t, "ELEMENT", sp.Arg(8).Str)
	assert.Equal(t, "INTERNAL", sp.Arg(9).Str)
	elev, _ := sp.Arg(10).AsFloat()
	assert.InDelta(t, 100, elev, 1e-9)

	slab := named(sf, "IFCSLAB", "Forced")
	require.NotNil(t, slab)
	rep0 := sf.ByType("IFCSHAPEREPRESENTATION")
	var kinds []string
	for _, r := range rep0 {
		k, _ := r.Arg(3).AsString()
		kinds = append(kinds, k)
	}
	assert.NotContains(t, kinds, "SweptSolid", "structures with a base and forced breps are written as breps")
	assert.Equal(t, 8, rep.Exported)
}

func TestUnprocessedAndSites(t *testing.T) {
	doc := document.New("x")
	floor := doc.MakeFloor("F")
	empty := doc.AddFeature("Nothing", nil)
	require.NoError(t, document.AddComponents(empty, floor))
	site := doc.MakeSite("Site", doc.MakeBuilding("B", floor))

	x := New(doc, prefs(), Options{})
	rep, err := x.Export([]*document.Object{site}, filepath.Join(t.TempDir(), "x.ifc"))
	require.NoError(t, err)
	assert.Equal(t, []*document.Object{empty}, x.Unprocessed())
	assert.Equal(t, []string{"Nothing"}, rep.Unprocessed)
	assert.Zero(t, rep.Exported)

	var siteNote bool
	for _, n := range rep.Notes {
		siteNote = siteNote || strings.Contains(n, "skipping site Site")
	}
	assert.True(t, siteNote)
}

func TestGroupsAndManifest(t *testing.T) {
	doc := document.New("x")
	a := doc.AddFeature("Beam A", box(t, 0, 0, 0, 1, 1, 1))
	b := doc.AddFeature("Beam B", box(t, 2, 0, 0, 3, 1, 1))
	g := doc.AddGroup("Beams", a, b)

	p := prefs()
	p.ExportList = true
	now := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "beams.ifc")
	rep, err := New(doc, p, Options{Now: func() time.Time { return now }}).Export([]*document.Object{g}, path)
	require.NoError(t, err)

	sf := parse(t, path)
	grp := named(sf, "IFCGROUP", "Beams")
	require.NotNil(t, grp)
	rel := sf.ByType("IFCRELASSIGNSTOGROUP")
	require.Len(t, rel, 1)
	assert.Len(t, rel[0].Arg(4).Refs(), 2)

	require.Equal(t, strings.TrimSuffix(path, ".ifc")+".txt", rep.Manifest)
	data, err := os.ReadFile(rep.Manifest)
	require.NoError(t, err)
	want := "List of objects exported by archifc in file\n" +
		path + "\n" +
		"On Thu May  2 10:00:00 2024\n\n" +
		"2 objects exported:\n\n" +
		"Nr      Name                          Type\n\n" +
		fmt.Sprintf("%-8d%-36s%s\n", 1, "Beam A", "IfcBuildingElementProxy") +
		fmt.Sprintf("%-8d%-36s%s\n", 2, "Beam B", "IfcBuildingElementProxy")
	assert.Equal(t, want, string(data))
}

func TestNoWriter(t *testing.T) {
	doc, building, _ := house(t)
	x := New(doc, prefs(), Options{Schema: func() (*schema.Schema, error) {
		return nil, schema.ErrSchemaNotFound
	}})
	path := filepath.Join(t.TempDir(), "none.ifc")
	_, err := x.Export([]*document.Object{building}, path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoWriter))
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDegrees(t *testing.T) {
	assert.InDelta(t, 0, degrees(geom.XAxis), 1e-12)
	assert.InDelta(t, 90, degrees(geom.YAxis), 1e-12)
	assert.InDelta(t, 270, degrees(geom.V(0, -1, 0)), 1e-12)
	assert.InDelta(t, 225, degrees(geom.V(-1, -1, 0)), 1e-12)
	assert.False(t, math.IsNaN(degrees(geom.Vector{})))
}
