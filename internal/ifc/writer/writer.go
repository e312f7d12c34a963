package writer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"archifc/internal/geom"
	"archifc/internal/ifc/schema"
	"archifc/internal/ifc/step"
)

// ============================================================
// IFC2X3 document builder
// ============================================================

const SchemaName = "IFC2X3"

// Options описывает проект и приложение-автор.
type Options struct {
	Project      string
	Author       string
	Organization string
	Application  string
	Version      string
	// Schema дает число атрибутов каждой сущности; продукты дополняются
	// $ до этого числа.
	Schema *schema.Schema
	Now    func() time.Time
}

// Product описывает один элемент для AddProduct.
type Product struct {
	// Storey - содержащий этаж. Ноль означает этаж по умолчанию.
	Storey      int
	Placement   int
	Name        string
	Description string
	// Extra - атрибуты после общих, в порядке схемы
	// (например OverallHeight, OverallWidth у окон).
	Extra []step.Value
}

// Segment - кусок составного профиля: линия через Points или
// дуга окружности, обрезанная углами в градусах.
type Segment struct {
	Arc       bool
	Points    []geom.Vector
	Center    geom.Vector
	Radius    float64
	Trim      [2]float64
	SameSense bool
}

// Document накапливает инстансы и пишет их одним STEP файлом. Связи
// пространственной структуры создаются при финализации модели.
type Document struct {
	file   *step.File
	schema *schema.Schema
	next   int

	owner   int
	context int
	project int
	site    int

	buildings       []int
	storeys         map[int][]int
	contained       map[int][]int
	storeyOrder     []int
	defaultBuilding int
	defaultStorey   int

	names     map[string]int
	itemKinds map[int]string
	finalized bool
}

// New создает каркас проекта: owner history, единицы, 3D контекст
// модели и участок по умолчанию.
func New(opts Options) *Document {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	s := opts.Schema
	if s == nil {
		s = schema.Core()
	}
	if opts.Application == "" {
		opts.Application = "archifc"
	}
	t := now()

	d := &Document{
		file: &step.File{
			Header: step.Header{
				Description: []string{"ViewDefinition [CoordinationView]"},
				Name:        opts.Project,
				TimeStamp:   t.Format("2006-01-02T15:04:05"),
				Author:      []string{opts.Author},
				Org:         []string{opts.Organization},
				Schemas:     []string{SchemaName},
			},
			Instances: make(map[int]*step.Instance),
		},
		schema:    s,
		next:      1,
		storeys:   make(map[int][]int),
		contained: make(map[int][]int),
		names:     make(map[string]int),
		itemKinds: make(map[int]string),
	}

	person := d.add("IfcPerson", step.Null, str(opts.Author), step.Null, step.Null, step.Null, step.Null, step.Null, step.Null)
	org := d.add("IfcOrganization", step.Null, str(opts.Organization), step.Null, step.Null, step.Null)
	po := d.add("IfcPersonAndOrganization", step.Ref(person), step.Ref(org), step.Null)
	app := d.add("IfcApplication", step.Ref(org), str(opts.Version), str(opts.Application), str(opts.Application))
	d.owner = d.add("IfcOwnerHistory", step.Ref(po), step.Ref(app), step.Null, step.Enum("ADDED"),
		step.Null, step.Null, step.Null, step.Integer(t.Unix()))

	units := d.units()
	d.context = d.add("IfcGeometricRepresentationContext", step.String("Plan"), step.String("Model"),
		step.Integer(3), step.Real(1e-5), step.Ref(d.axis3(geom.Vector{}, geom.XAxis, geom.ZAxis)), step.Null)
	d.project = d.add("IfcProject", step.String(NewGUID()), step.Ref(d.owner), str(opts.Project),
		step.Null, step.Null, step.Null, step.Null, step.List(step.Ref(d.context)), step.Ref(units))

	d.site = d.spatial("IfcSite", "Default site")
	return d
}

func str(s string) step.Value {
	if s == "" {
		return step.Null
	}
	return step.String(s)
}

func refs(ids []int) step.Value {
	vs := make([]step.Value, len(ids))
	for i, id := range ids {
		vs[i] = step.Ref(id)
	}
	return step.List(vs...)
}

// add сохраняет новый инстанс и возвращает его id.
func (d *Document) add(typ string, args ...step.Value) int {
	id := d.next
	d.next++
	d.file.Instances[id] = &step.Instance{ID: id, Type: strings.ToUpper(typ), Args: args}
	d.file.Order = append(d.file.Order, id)
	return id
}

// pad заполняет необязательные хвостовые атрибуты значением $.
func (d *Document) pad(typ string, args []step.Value) []step.Value {
	for n := len(d.schema.Attributes(typ)); len(args) < n; {
		args = append(args, step.Null)
	}
	return args
}

func (d *Document) units() int {
	si := func(kind, prefix, name string) int {
		p := step.Null
		if prefix != "" {
			p = step.Enum(prefix)
		}
		return d.add("IfcSIUnit", step.Derived, step.Enum(kind), p, step.Enum(name))
	}
	length := si("LENGTHUNIT", "MILLI", "METRE")
	area := si("AREAUNIT", "", "SQUARE_METRE")
	volume := si("VOLUMEUNIT", "", "CUBIC_METRE")
	radian := si("PLANEANGLEUNIT", "", "RADIAN")
	dims := d.add("IfcDimensionalExponents", step.Integer(0), step.Integer(0), step.Integer(0),
		step.Integer(0), step.Integer(0), step.Integer(0), step.Integer(0))
	factor := d.add("IfcMeasureWithUnit", step.Typed("IfcPlaneAngleMeasure", step.Real(0.017453292519943295)), step.Ref(radian))
	degree := d.add("IfcConversionBasedUnit", step.Ref(dims), step.Enum("PLANEANGLEUNIT"), step.String("DEGREE"), step.Ref(factor))
	return d.add("IfcUnitAssignment", refs([]int{length, area, volume, degree}))
}

func (d *Document) point(v geom.Vector) int {
	return d.add("IfcCartesianPoint", step.List(step.Real(v.X), step.Real(v.Y), step.Real(v.Z)))
}

func (d *Document) point2(v geom.Vector) int {
	return d.add("IfcCartesianPoint", step.List(step.Real(v.X), step.Real(v.Y)))
}

func (d *Document) direction(v geom.Vector) int {
	v = v.Normalize()
	return d.add("IfcDirection", step.List(step.Real(v.X), step.Real(v.Y), step.Real(v.Z)))
}

func (d *Document) direction2(v geom.Vector) int {
	v = geom.V(v.X, v.Y, 0).Normalize()
	return d.add("IfcDirection", step.List(step.Real(v.X), step.Real(v.Y)))
}

func (d *Document) axis3(origin, x, z geom.Vector) int {
	return d.add("IfcAxis2Placement3D", step.Ref(d.point(origin)), step.Ref(d.direction(z)), step.Ref(d.direction(x)))
}

func (d *Document) axis2(origin, x geom.Vector) int {
	return d.add("IfcAxis2Placement2D", step.Ref(d.point2(origin)), step.Ref(d.direction2(x)))
}

// AddPlacement создает абсолютный IfcLocalPlacement.
func (d *Document) AddPlacement(origin, xaxis, zaxis geom.Vector) int {
	if xaxis.IsZero() {
		xaxis = geom.XAxis
	}
	if zaxis.IsZero() {
		zaxis = geom.ZAxis
	}
	return d.add("IfcLocalPlacement", step.Null, step.Ref(d.axis3(origin, xaxis, zaxis)))
}

func (d *Document) register(typ, name string, id int) {
	key := strings.ToUpper(typ) + "\x00" + name
	if _, ok := d.names[key]; !ok {
		d.names[key] = id
	}
}

// FindByName возвращает первый инстанс typ с именем name, или 0.
func (d *Document) FindByName(typ, name string) int {
	return d.names[strings.ToUpper(typ)+"\x00"+name]
}

// ============================================================
// Spatial structure
// ============================================================

func (d *Document) spatial(typ, name string) int {
	args := []step.Value{
		step.String(NewGUID()), step.Ref(d.owner), str(name), step.Null, step.Null,
		step.Ref(d.AddPlacement(geom.Vector{}, geom.XAxis, geom.ZAxis)), step.Null, step.Null, step.Enum("ELEMENT"),
	}
	if strings.EqualFold(typ, "IfcBuildingStorey") {
		args = append(args, step.Real(0))
	}
	id := d.add(typ, d.pad(typ, args)...)
	d.register(typ, name, id)
	return id
}

func (d *Document) AddBuilding(name string) int {
	id := d.spatial("IfcBuilding", name)
	d.buildings = append(d.buildings, id)
	return id
}

// AddStorey добавляет этаж в building, или в здание по умолчанию,
// если building равен нулю.
func (d *Document) AddStorey(building int, name string) int {
	if building == 0 {
		building = d.fallbackBuilding()
	}
	id := d.spatial("IfcBuildingStorey", name)
	d.storeys[building] = append(d.storeys[building], id)
	return id
}

func (d *Document) fallbackBuilding() int {
	if d.defaultBuilding == 0 {
		d.defaultBuilding = d.AddBuilding("Default building")
	}
	return d.defaultBuilding
}

func (d *Document) fallbackStorey() int {
	if d.defaultStorey == 0 {
		d.defaultStorey = d.AddStorey(d.fallbackBuilding(), "Default storey")
	}
	return d.defaultStorey
}

// ============================================================
// Representation items
// ============================================================

func (d *Document) extrude(profile int, v geom.Vector) int {
	id := d.add("IfcExtrudedAreaSolid", step.Ref(profile),
		step.Ref(d.axis3(geom.Vector{}, geom.XAxis, geom.ZAxis)), step.Ref(d.direction(v)), step.Real(v.Length()))
	d.itemKinds[id] = "SweptSolid"
	return id
}

func (d *Document) polyline(pts []geom.Vector) int {
	ids := make([]int, len(pts))
	for i, p := range pts {
		ids[i] = d.point2(p)
	}
	return d.add("IfcPolyline", refs(ids))
}

// AddExtrudedPolyline выдавливает замкнутую полилинию в локальной плоскости XY.
// Последняя точка должна повторять первую.
func (d *Document) AddExtrudedPolyline(pts []geom.Vector, extrusion geom.Vector) int {
	profile := d.add("IfcArbitraryClosedProfileDef", step.Enum("AREA"), step.Null, step.Ref(d.polyline(pts)))
	return d.extrude(profile, extrusion)
}

func (d *Document) AddExtrudedCircle(center geom.Vector, radius float64, extrusion geom.Vector) int {
	profile := d.add("IfcCircleProfileDef", step.Enum("AREA"), step.Null,
		step.Ref(d.axis2(center, geom.XAxis)), step.Real(radius))
	return d.extrude(profile, extrusion)
}

func (d *Document) AddExtrudedEllipse(center geom.Vector, major, minor float64, majorDir, extrusion geom.Vector) int {
	if majorDir.IsZero() {
		majorDir = geom.XAxis
	}
	profile := d.add("IfcEllipseProfileDef", step.Enum("AREA"), step.Null,
		step.Ref(d.axis2(center, majorDir)), step.Real(major), step.Real(minor))
	return d.extrude(profile, extrusion)
}

func (d *Document) AddExtrudedCompositeCurve(segs []Segment, extrusion geom.Vector) int {
	ids := make([]int, 0, len(segs))
	for _, s := range segs {
		var curve int
		if s.Arc {
			circle := d.add("IfcCircle", step.Ref(d.axis2(s.Center, geom.XAxis)), step.Real(s.Radius))
			curve = d.add("IfcTrimmedCurve", step.Ref(circle),
				step.List(step.Typed("IfcParameterValue", step.Real(s.Trim[0]))),
				step.List(step.Typed("IfcParameterValue", step.Real(s.Trim[1]))),
				step.Bool(true), step.Enum("PARAMETER"))
		} else {
			curve = d.polyline(s.Points)
		}
		ids = append(ids, d.add("IfcCompositeCurveSegment", step.Enum("CONTINUOUS"), step.Bool(s.SameSense), step.Ref(curve)))
	}
	cc := d.add("IfcCompositeCurve", refs(ids), step.Bool(false))
	profile := d.add("IfcArbitraryClosedProfileDef", step.Enum("AREA"), step.Null, step.Ref(cc))
	return d.extrude(profile, extrusion)
}

// AddFacetedBrep пишет одну замкнутую оболочку. Грань - список контуров,
// внешний контур первым.
func (d *Document) AddFacetedBrep(faces [][][]geom.Vector) int {
	fids := make([]int, 0, len(faces))
	for _, loops := range faces {
		var bounds []int
		for i, loop := range loops {
			pids := make([]int, len(loop))
			for j, p := range loop {
				pids[j] = d.point(p)
			}
			pl := d.add("IfcPolyLoop", refs(pids))
			typ := "IfcFaceBound"
			if i == 0 {
				typ = "IfcFaceOuterBound"
			}
			bounds = append(bounds, d.add(typ, step.Ref(pl), step.Bool(true)))
		}
		fids = append(fids, d.add("IfcFace", refs(bounds)))
	}
	shell := d.add("IfcClosedShell", refs(fids))
	id := d.add("IfcFacetedBrep", step.Ref(shell))
	d.itemKinds[id] = "Brep"
	return id
}

func (d *Document) representation(items []int) step.Value {
	if len(items) == 0 {
		return step.Null
	}
	kind := d.itemKinds[items[0]]
	if kind == "" {
		kind = "Brep"
	}
	rep := d.add("IfcShapeRepresentation", step.Ref(d.context), step.String("Body"), step.String(kind), refs(items))
	return step.Ref(d.add("IfcProductDefinitionShape", step.Null, step.Null, step.List(step.Ref(rep))))
}

// ============================================================
// Products
// ============================================================

func (d *Document) product(typ string, items []int, p Product) int {
	placement := p.Placement
	if placement == 0 {
		placement = d.AddPlacement(geom.Vector{}, geom.XAxis, geom.ZAxis)
	}
	args := []step.Value{
		step.String(NewGUID()), step.Ref(d.owner), str(p.Name), str(p.Description), step.Null,
		step.Ref(placement), d.representation(items), step.Null,
	}
	args = append(args, p.Extra...)
	id := d.add(typ, d.pad(typ, args)...)
	d.register(typ, p.Name, id)
	return id
}

// AddProduct пишет элемент, содержащийся в p.Storey.
func (d *Document) AddProduct(typ string, items []int, p Product) int {
	id := d.product(typ, items, p)
	storey := p.Storey
	if storey == 0 {
		storey = d.fallbackStorey()
	}
	if _, ok := d.contained[storey]; !ok {
		d.storeyOrder = append(d.storeyOrder, storey)
	}
	d.contained[storey] = append(d.contained[storey], id)
	return id
}

// AddOpening пишет IfcOpeningElement, вырезаемый из host. Геометрия проема
// ожидается в глобальных координатах.
func (d *Document) AddOpening(host int, items []int, name string) int {
	id := d.product("IfcOpeningElement", items, Product{Name: name})
	d.add("IfcRelVoidsElement", step.String(NewGUID()), step.Ref(d.owner), step.Null, step.Null,
		step.Ref(host), step.Ref(id))
	return id
}

func (d *Document) AddGroup(members []int, name string) int {
	id := d.add("IfcGroup", d.pad("IfcGroup", []step.Value{
		step.String(NewGUID()), step.Ref(d.owner), str(name), step.Null, step.Null,
	})...)
	d.add("IfcRelAssignsToGroup", step.String(NewGUID()), step.Ref(d.owner), step.Null, step.Null,
		refs(members), step.Null, step.Ref(id))
	d.register("IfcGroup", name, id)
	return id
}

// ============================================================
// Output
// ============================================================

func (d *Document) aggregate(parent int, children []int) {
	if len(children) == 0 {
		return
	}
	d.add("IfcRelAggregates", step.String(NewGUID()), step.Ref(d.owner), step.Null, step.Null,
		step.Ref(parent), refs(children))
}

func (d *Document) finalize() {
	if d.finalized {
		return
	}
	d.finalized = true
	d.aggregate(d.project, []int{d.site})
	d.aggregate(d.site, d.buildings)
	for _, b := range d.buildings {
		d.aggregate(b, d.storeys[b])
	}
	for _, s := range d.storeyOrder {
		d.add("IfcRelContainedInSpatialStructure", step.String(NewGUID()), step.Ref(d.owner), step.Null, step.Null,
			refs(d.contained[s]), step.Ref(s))
	}
}

// Model финализирует документ и возвращает структуру обмена.
// После этого ничего добавить нельзя.
func (d *Document) Model() *step.File {
	d.finalize()
	return d.file
}

func (d *Document) Encode(w io.Writer) error {
	return step.NewEncoder(w).Encode(d.Model())
}

// Write сохраняет документ в path.
func (d *Document) Write(path string) error {
	d.file.Header.Name = filepath.Base(path)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := d.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
