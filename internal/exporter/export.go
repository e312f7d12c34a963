package exporter

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"archifc/internal/common/config"
	"archifc/internal/document"
	"archifc/internal/ifc/schema"
	"archifc/internal/ifc/step"
	"archifc/internal/ifc/writer"
)

// ErrNoWriter возвращается, если IFC writer не удалось создать.
var ErrNoWriter = errors.New("exporter: IFC writer unavailable")

// supportedTypes - разрешенные для экспорта типы. Остальное пишется как
// IfcBuildingElementProxy.
var supportedTypes = map[string]bool{
	"IfcSite": true, "IfcBuilding": true, "IfcBuildingStorey": true,
	"IfcBeam": true, "IfcBeamStandardCase": true, "IfcChimney": true,
	"IfcColumn": true, "IfcColumnStandardCase": true, "IfcCovering": true,
	"IfcCurtainWall": true, "IfcDoor": true, "IfcDoorStandardCase": true,
	"IfcMember": true, "IfcMemberStandardCase": true, "IfcPlate": true,
	"IfcPlateStandardCase": true, "IfcRailing": true, "IfcRamp": true,
	"IfcRampFlight": true, "IfcRoof": true, "IfcSlab": true, "IfcStair": true,
	"IfcStairFlight": true, "IfcWall": true, "IfcSpace": true,
	"IfcWallStandardCase": true, "IfcWindow": true, "IfcWindowStandardCase": true,
	"IfcBuildingElementProxy": true, "IfcPile": true, "IfcFooting": true,
	"IfcReinforcingBar": true, "IfcTendon": true,
}

var typeRenames = map[string]string{
	"Foundation": "Footing",
	"Rebar":      "ReinforcingBar",
	"Part":       "BuildingElementProxy",
	"Undefined":  "BuildingElementProxy",
}

// TypeTag возвращает IFC тип o без префикса "Ifc": роль, если она задана,
// иначе вид объекта.
func TypeTag(o *document.Object) string {
	t := o.Kind.String()
	if o.Role != "" {
		t = strings.ReplaceAll(o.Role, " ", "")
	}
	if r, ok := typeRenames[t]; ok {
		return r
	}
	return t
}

// Options - то, что не является пользовательской настройкой.
type Options struct {
	// Schema заменяет встроенную схему, по которой считаются атрибуты.
	Schema      func() (*schema.Schema, error)
	Now         func() time.Time
	Application string
	Version     string
}

// Report - итог одного экспорта.
type Report struct {
	File        string        `json:"file"`
	Manifest    string        `json:"manifest,omitempty"`
	Exported    int           `json:"exported"`
	Lines       []string      `json:"lines"`
	Unprocessed []string      `json:"unprocessed,omitempty"`
	Notes       []string      `json:"notes,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Exporter пишет объекты одного документа. Объекты, которые не удалось
// записать, доступны через Unprocessed после Export.
type Exporter struct {
	doc   *document.Document
	prefs config.Preferences
	opts  Options

	unprocessed []*document.Object
	notes       []string
}

func New(doc *document.Document, prefs config.Preferences, opts Options) *Exporter {
	return &Exporter{doc: doc, prefs: prefs, opts: opts}
}

// Export - сокращение для New(doc, prefs, Options{}).Export(objs, path).
func Export(doc *document.Document, objs []*document.Object, path string, prefs config.Preferences) (*Report, error) {
	return New(doc, prefs, Options{}).Export(objs, path)
}

func (x *Exporter) Unprocessed() []*document.Object {
	return x.unprocessed
}

func (x *Exporter) debugf(format string, args ...any) {
	if x.prefs.Debug {
		log.Printf("[EXPORT] "+format, args...)
	}
}

func (x *Exporter) note(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	x.notes = append(x.notes, msg)
	x.debugf("%s", msg)
}

func (x *Exporter) now() time.Time {
	if x.opts.Now != nil {
		return x.opts.Now()
	}
	return time.Now()
}

func (x *Exporter) newWriter() (*writer.Document, error) {
	s := schema.Core()
	if x.opts.Schema != nil {
		var err error
		if s, err = x.opts.Schema(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoWriter, err)
		}
	}
	author, company := x.doc.CreatedBy, x.doc.Company
	if author == "" {
		author = x.prefs.Author
	}
	if company == "" {
		company = x.prefs.Company
	}
	return writer.New(writer.Options{
		Project:      x.doc.Name,
		Author:       author,
		Organization: company,
		Application:  x.opts.Application,
		Version:      x.opts.Version,
		Schema:       s,
		Now:          x.now,
	}), nil
}

// Export пишет objs вместе с содержимым групп в path. Объекты без данных
// выдавливания и без brep пропускаются и попадают в отчет.
func (x *Exporter) Export(objs []*document.Object, path string) (*Report, error) {
	start := time.Now()
	x.unprocessed, x.notes = nil, nil
	w, err := x.newWriter()
	if err != nil {
		return nil, err
	}
	scale := x.prefs.ScalingFactor
	if scale <= 0 {
		scale = 1
	}

	// сначала здания и этажи, чтобы продукты нашли родителей
	list := x.doc.PruneIncluded(document.GroupContents(objs))
	var buildings, floors, others, groups []*document.Object
	for _, o := range list {
		switch o.Kind {
		case document.KindSite:
			x.note("skipping site %s: not implemented", o.Label)
		case document.KindBuilding:
			buildings = append(buildings, o)
		case document.KindFloor:
			floors = append(floors, o)
		case document.KindGroup:
			groups = append(groups, o)
		default:
			others = append(others, o)
		}
	}
	ordered := slices.Concat(buildings, floors, others)
	x.debugf("adding %d objects", len(ordered))

	members := make(map[*document.Object][]int)
	var lines []string
	for _, o := range ordered {
		host := x.doc.Host(o)
		switch o.Kind {
		case document.KindBuilding:
			w.AddBuilding(o.Label)
			continue
		case document.KindFloor:
			building := 0
			if host != nil {
				building = w.FindByName("IfcBuilding", host.Label)
			}
			w.AddStorey(building, o.Label)
			continue
		}

		storey := 0
		if host != nil {
			storey = w.FindByName("IfcBuildingStorey", host.Label)
		}
		product, typ, ok := x.product(w, o, storey, scale)
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("%-36s%s", o.Label, typ))
		for _, g := range groups {
			if slices.Contains(g.Group, o) {
				members[g] = append(members[g], product)
			}
		}
	}

	for _, g := range groups {
		if ids := members[g]; len(ids) > 0 {
			x.debugf("adding group %s with %d elements", g.Label, len(ids))
			w.AddGroup(ids, g.Label)
		}
	}

	if err := w.Write(path); err != nil {
		return nil, fmt.Errorf("write IFC file: %w", err)
	}

	rep := &Report{File: path, Exported: len(lines), Lines: lines, Notes: x.notes}
	if x.prefs.ExportList {
		manifest := strings.TrimSuffix(path, filepath.Ext(path)) + ".txt"
		if err := writeManifest(manifest, path, lines, x.now()); err != nil {
			return nil, err
		}
		rep.Manifest = manifest
	}
	if len(x.unprocessed) > 0 {
		log.Printf("[EXPORT] WARNING: %d objects were not exported", len(x.unprocessed))
		for _, o := range x.unprocessed {
			rep.Unprocessed = append(rep.Unprocessed, o.Label)
			log.Printf("[EXPORT]     %s", o.Label)
		}
	}
	rep.Duration = time.Since(start)
	return rep, nil
}

// product пишет один объект с геометрией и его проемы. ok == false,
// если у объекта нет геометрии для экспорта.
func (x *Exporter) product(w *writer.Document, o *document.Object, storey int, scale float64) (id int, typ string, ok bool) {
	tag := TypeTag(o)
	forceBrep := x.prefs.ExportAsBrep || o.IfcAttributes["ForceBrep"] == "True"
	x.debugf("adding %s as Ifc%s", o.Label, tag)

	var gdata *ExtrusionData
	var fdata []Solid
	if !forceBrep {
		gdata = Extrusion(o, scale, x.prefs.SeparateOpenings)
	}
	if gdata == nil {
		if fdata = Brep(o, scale, x.prefs.Tessellation); fdata == nil {
			x.note("error retrieving the shape of object %s", o.Label)
			x.unprocessed = append(x.unprocessed, o)
			return 0, "", false
		}
		if len(o.Subtractions) > 0 && !x.prefs.SeparateOpenings {
			x.note("%s: subtractions are not applied to brep output", o.Label)
		}
	}

	var items []int
	placement := 0
	if gdata != nil {
		placement = w.AddPlacement(gdata.Origin, gdata.XAxis, gdata.ZAxis)
		items = []int{addExtrusion(w, gdata)}
	} else {
		for _, s := range fdata {
			items = append(items, w.AddFacetedBrep(s))
		}
	}

	typ = "Ifc" + tag
	var extra []step.Value
	switch o.Kind {
	case document.KindWall:
		if gdata != nil && gdata.Kind == ProfilePolyline {
			typ = "IfcWallStandardCase"
		}
	case document.KindStructure:
		if typ == "IfcSlab" || typ == "IfcFooting" {
			extra = []step.Value{step.Enum("NOTDEFINED")}
		}
	case document.KindWindow:
		extra = []step.Value{step.Real(o.Height * scale), step.Real(o.Width * scale)}
	case document.KindSpace:
		extra = []step.Value{step.Enum("ELEMENT"), step.Enum("INTERNAL"), step.Real(Elevation(o) * scale)}
	case document.KindFeature:
		extra = []step.Value{step.Enum("ELEMENT")}
	}
	if !supportedTypes[typ] {
		x.debugf("type %s is not supported yet, exporting as IfcBuildingElementProxy", typ)
		typ = "IfcBuildingElementProxy"
		extra = []step.Value{step.Enum("ELEMENT")}
	}

	id = w.AddProduct(typ, items, writer.Product{
		Storey:      storey,
		Placement:   placement,
		Name:        o.Label,
		Description: o.Description,
		Extra:       extra,
	})

	if x.prefs.SeparateOpenings && gdata != nil {
		for _, sub := range o.Subtractions {
			x.debugf("subtracting %s", sub.Label)
			faces := Brep(sub, scale, x.prefs.Tessellation)
			if faces == nil {
				x.note("opening %s of %s has no shape", sub.Label, o.Label)
				continue
			}
			var opening []int
			for _, s := range faces {
				opening = append(opening, w.AddFacetedBrep(s))
			}
			w.AddOpening(id, opening, sub.Label)
		}
	}
	return id, typ, true
}

func addExtrusion(w *writer.Document, g *ExtrusionData) int {
	switch g.Kind {
	case ProfileCircle:
		return w.AddExtrudedCircle(g.Center, g.Radius, g.Vector)
	case ProfileEllipse:
		return w.AddExtrudedEllipse(g.Center, g.Radius, g.MinorRadius, g.MajorDir, g.Vector)
	case ProfileComposite:
		return w.AddExtrudedCompositeCurve(g.Segments, g.Vector)
	}
	return w.AddExtrudedPolyline(g.Points, g.Vector)
}

// writeManifest записывает список экспортированных объектов рядом с IFC файлом.
func writeManifest(path, ifcPath string, lines []string, now time.Time) error {
	var b strings.Builder
	b.WriteString("List of objects exported by archifc in file\n")
	b.WriteString(ifcPath + "\n")
	b.WriteString("On " + now.Format(time.ANSIC) + "\n\n")
	fmt.Fprintf(&b, "%d objects exported:\n\n", len(lines))
	b.WriteString("Nr      Name                          Type\n\n")
	for i, l := range lines {
		fmt.Fprintf(&b, "%-8d%s\n", i+1, l)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
