package mapper

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archifc/internal/converter/models"
	"archifc/internal/document"
	"archifc/internal/geom"
)

func rect(x0, y0, x1, y1 float64) geom.Wire {
	return geom.Polygon(true, geom.V(x0, y0, 0), geom.V(x1, y0, 0), geom.V(x1, y1, 0), geom.V(x0, y1, 0))
}

func sampleDoc(t *testing.T) *document.Document {
	t.Helper()
	doc := document.New("house")
	doc.CreatedBy = "Architect"

	wall := doc.MakeWall(nil, "Front wall")
	require.NoError(t, wall.SetExtrusion(geom.Extrusion{
		Profile:   rect(0, 0, 4000, 200),
		Vector:    geom.V(0, 0, 3000),
		Placement: geom.Translation(geom.V(1000, 0, 0)),
	}))
	wall.IfcAttributes = map[string]string{"GlobalId": "0DWgwt6o1FOx7466fPk$jl"}

	cut, err := geom.Extrusion{Profile: rect(2500, -100, 3400, 300), Vector: geom.V(0, 0, 2100)}.Shape()
	require.NoError(t, err)
	opening := doc.AddFeature("Door opening", cut)
	require.NoError(t, document.RemoveComponents(opening, wall))

	body := doc.AddFeature("Window body", cut)
	win := doc.MakeWindow(body, "Window")
	win.Width, win.Height = 900, 1200
	require.NoError(t, document.AddComponents(win, wall))

	floor := doc.MakeFloor("Ground floor", wall)
	doc.MakeBuilding("Main building", floor)
	return doc
}

func byName(scene *models.Scene, name string) *models.Object {
	for i := range scene.Objects {
		if scene.Objects[i].Name == name {
			return &scene.Objects[i]
		}
	}
	return nil
}

func TestFromDocument(t *testing.T) {
	doc := sampleDoc(t)
	scene := FromDocument(doc)

	assert.Equal(t, "house", scene.Name)
	assert.Equal(t, "mm", scene.Unit)
	assert.Len(t, scene.Objects, doc.Len())
	require.Len(t, scene.Floors, 1)
	assert.Equal(t, models.Floor{Name: "Ground floor", Building: "Main building", Objects: []string{"Front_wall"}}, scene.Floors[0])

	wall := byName(scene, "Front_wall")
	require.NotNil(t, wall)
	assert.Equal(t, "Wall", wall.Kind)
	assert.Equal(t, "Ground_floor", wall.Host)
	assert.Equal(t, []string{"Door_opening"}, wall.Subtractions)
	assert.Equal(t, []string{"Window"}, wall.Additions)
	require.NotNil(t, wall.Extrusion)
	assert.Nil(t, wall.Shape, "extruded objects carry the extrusion only")
	require.NotNil(t, wall.BoundBox)
	assert.InDelta(t, 5000, wall.BoundBox.Max.X, 1e-9)

	win := byName(scene, "Window")
	require.NotNil(t, win)
	assert.Equal(t, "Window_body", win.Base)
	assert.Nil(t, win.Shape)

	op := byName(scene, "Door_opening")
	require.NotNil(t, op)
	assert.Equal(t, "Part", op.Kind)
	assert.NotNil(t, op.Shape)
	assert.True(t, op.Hidden)
}

func TestSceneRoundTrip(t *testing.T) {
	data, err := json.Marshal(FromDocument(sampleDoc(t)))
	require.NoError(t, err)
	var scene models.Scene
	require.NoError(t, json.Unmarshal(data, &scene))

	doc, err := ToDocument(&scene)
	require.NoError(t, err)
	assert.Equal(t, "Architect", doc.CreatedBy)
	require.Equal(t, 6, doc.Len())

	wall, ok := doc.Get("Front_wall")
	require.True(t, ok)
	assert.Equal(t, "Front wall", wall.Label)
	require.NotNil(t, wall.Extrusion)
	assert.InDelta(t, 3000, wall.Extrusion.Depth(), 1e-9)
	assert.False(t, wall.Shape.IsNull())
	require.Len(t, wall.Subtractions, 1)
	assert.Equal(t, "Door_opening", wall.Subtractions[0].Name)
	assert.Equal(t, "0DWgwt6o1FOx7466fPk$jl", wall.IfcAttributes["GlobalId"])

	win, _ := doc.Get("Window")
	require.NotNil(t, win.Base)
	assert.False(t, win.Shape.IsNull(), "window borrows the base shape")
	assert.Equal(t, 1200.0, win.Height)

	floor, _ := doc.Get("Ground_floor")
	assert.Equal(t, []*document.Object{wall}, floor.Group)
	building, _ := doc.Get("Main_building")
	assert.Equal(t, building, doc.Host(floor))
}

func TestToDocumentErrors(t *testing.T) {
	_, err := ToDocument(nil)
	assert.Error(t, err)

	_, err = ToDocument(&models.Scene{Objects: []models.Object{{Name: "A", Kind: "Spaceship"}}})
	assert.ErrorContains(t, err, "unknown kind")

	_, err = ToDocument(&models.Scene{Objects: []models.Object{{Name: "F", Kind: "Floor", Group: []string{"Ghost"}}}})
	assert.ErrorIs(t, err, ErrUnknownObject)

	_, err = ToDocument(&models.Scene{Objects: []models.Object{{Name: "W", Kind: "Wall", Base: "Ghost"}}})
	assert.ErrorIs(t, err, ErrUnknownObject)

	_, err = ToDocument(&models.Scene{Objects: []models.Object{{
		Name: "W", Kind: "Wall",
		Extrusion: &geom.Extrusion{Profile: rect(0, 0, 1, 1)},
	}}})
	assert.ErrorIs(t, err, geom.ErrBadProfile)
	t.Run("cycles", func(t *testing.T) {
		cases := map[string][]models.Object{
			"self addition": {
				{Name: "Top", Kind: "Wall", Additions: []string{"A"}},
				{Name: "A", Kind: "Wall", Additions: []string{"A"}},
			},
			"two walls": {
				{Name: "A", Kind: "Wall", Additions: []string{"B"}},
				{Name: "B", Kind: "Structure", Subtractions: []string{"A"}},
			},
			"groups": {
				{Name: "F", Kind: "Floor", Group: []string{"G"}},
				{Name: "G", Kind: "Group", Group: []string{"B"}},
				{Name: "B", Kind: "Building", Group: []string{"F"}},
			},
		}
		for name, objs := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := ToDocument(&models.Scene{Name: "x", Objects: objs})
				assert.ErrorIs(t, err, document.ErrCycle)
			})
		}
	})
}

func TestSelect(t *testing.T) {
	doc := sampleDoc(t)
	loose := doc.AddFeature("Loose", nil)
	hidden := doc.AddFeature("Hidden", nil)
	hidden.Hidden = true

	top, err := Select(doc, nil)
	require.NoError(t, err)
	building, _ := doc.Get("Main_building")
	assert.Equal(t, []*document.Object{building, loose}, top)

	named, err := Select(doc, []string{"Front wall", "Loose"})
	require.NoError(t, err)
	require.Len(t, named, 2)
	assert.Equal(t, "Front_wall", named[0].Name)

	_, err = Select(doc, []string{"Ghost"})
	assert.ErrorIs(t, err, ErrUnknownObject)
}

func TestRender(t *testing.T) {
	scene := FromDocument(sampleDoc(t))
	r := NewRenderer()

	svg, err := r.Render(scene, "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(svg, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, svg, `viewBox="0 0 4200.00 600.00"`)
	assert.Contains(t, svg, `<polygon id="Front_wall" class="wall" points="100.00,400.00 4100.00,400.00 4100.00,200.00 100.00,200.00"`)
	assert.Contains(t, svg, `id="Window" class="window"`)
	assert.NotContains(t, svg, "Door_opening")

	_, err = r.Render(scene, "Roof level")
	assert.Error(t, err)
	_, err = r.Render(nil, "")
	assert.Error(t, err)

	t.Run("empty scene", func(t *testing.T) {
		svg, err := r.Render(&models.Scene{}, "")
		require.NoError(t, err)
		assert.Contains(t, svg, `width="1000.00" height="1000.00"`)
	})
}
