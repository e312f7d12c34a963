package mapper

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"archifc/internal/converter/models"
	"archifc/internal/geom"
)

// ============================================================
// Plan Renderer
// ============================================================

// допуск хорды для кривых профилей, в единицах сцены
const planTolerance = 5.0

const planMargin = 100.0

var kindStroke = map[string]string{
	"Wall":      "#000",
	"Window":    "#1e88e5",
	"Structure": "#6d4c41",
	"Space":     "#43a047",
	"Roof":      "#8e24aa",
}

type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

type outline struct {
	id     string
	kind   string
	points []geom.Vector
}

// Render рисует вид сверху одного этажа: профили выдавливания там, где они
// есть, и габаритные прямоугольники для остальных объектов.
func (r *Renderer) Render(scene *models.Scene, floor string) (string, error) {
	if scene == nil {
		return "", fmt.Errorf("scene is nil")
	}

	objs, err := r.pickObjects(scene, floor)
	if err != nil {
		return "", err
	}

	var outlines []outline
	for _, o := range objs {
		if pts := r.footprint(o); len(pts) > 2 {
			outlines = append(outlines, outline{id: o.Name, kind: o.Kind, points: pts})
		}
	}

	minX, minY, width, height := r.sceneSize(outlines)

	var builder strings.Builder
	builder.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	builder.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`,
		formatFloat(width), formatFloat(height), formatFloat(width), formatFloat(height)))
	builder.WriteString("\n")

	for _, o := range outlines {
		stroke, ok := kindStroke[o.kind]
		if !ok {
			stroke = "#9e9e9e"
		}
		pts := make([]string, len(o.points))
		for i, p := range o.points {
			// ось Y в SVG направлена вниз
			pts[i] = formatFloat(p.X-minX) + "," + formatFloat(height-(p.Y-minY))
		}
		builder.WriteString(fmt.Sprintf(`  <polygon id="%s" class="%s" points="%s" fill="none" stroke="%s" />`,
			o.id, strings.ToLower(o.kind), strings.Join(pts, " "), stroke))
		builder.WriteString("\n")
	}

	builder.WriteString(`</svg>`)
	return builder.String(), nil
}

// ============================================================
// Object selection & sizing
// ============================================================

// pickObjects возвращает видимые объекты указанного этажа, первого
// этажа при пустом name или всей сцены, если этажей нет.
func (r *Renderer) pickObjects(scene *models.Scene, name string) ([]models.Object, error) {
	byName := make(map[string]models.Object, len(scene.Objects))
	for _, o := range scene.Objects {
		byName[o.Name] = o
	}

	var members []string
	switch {
	case name != "":
		i := slices.IndexFunc(scene.Floors, func(f models.Floor) bool { return f.Name == name })
		if i < 0 {
			return nil, fmt.Errorf("floor %q not found", name)
		}
		members = scene.Floors[i].Objects
	case len(scene.Floors) > 0:
		members = scene.Floors[0].Objects
	default:
		var out []models.Object
		for _, o := range scene.Objects {
			if !o.Hidden {
				out = append(out, o)
			}
		}
		return out, nil
	}

	// группы внутри этажа раскрываются
	var out []models.Object
	seen := make(map[string]bool)
	var walk func(n string)
	walk = func(n string) {
		o, ok := byName[n]
		if !ok || seen[n] {
			return
		}
		seen[n] = true
		if o.Kind == "Group" {
			for _, m := range o.Group {
				walk(m)
			}
			return
		}
		if !o.Hidden {
			out = append(out, o)
		}
		for _, a := range o.Additions {
			if byName[a].Kind == "Window" {
				walk(a)
			}
		}
	}
	for _, m := range members {
		walk(m)
	}
	return out, nil
}

func (r *Renderer) footprint(o models.Object) []geom.Vector {
	if x := o.Extrusion; x != nil && !x.Profile.IsEmpty() {
		var out []geom.Vector
		for _, p := range x.Profile.Points(planTolerance) {
			out = append(out, x.Placement.MultVec(p))
		}
		return out
	}
	if b := o.BoundBox; b != nil && b.IsValid() {
		return []geom.Vector{
			geom.V(b.Min.X, b.Min.Y, 0), geom.V(b.Max.X, b.Min.Y, 0),
			geom.V(b.Max.X, b.Max.Y, 0), geom.V(b.Min.X, b.Max.Y, 0),
		}
	}
	return nil
}

func (r *Renderer) sceneSize(outlines []outline) (minX, minY, width, height float64) {
	minX, minY = math.MaxFloat64, math.MaxFloat64
	maxX, maxY := -math.MaxFloat64, -math.MaxFloat64

	for _, o := range outlines {
		for _, p := range o.points {
			minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
			minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		}
	}

	if minX == math.MaxFloat64 {
		return 0, 0, 1000, 1000
	}

	minX -= planMargin
	minY -= planMargin
	return minX, minY, maxX - minX + planMargin, maxY - minY + planMargin
}

func formatFloat(val float64) string {
	return strconv.FormatFloat(val, 'f', 2, 64)
}
