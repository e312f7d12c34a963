package importer

import "strings"

// Kind классифицирует IFC типы для импорта.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindWall
	KindWindow
	KindStructure
	KindRoof
	KindFurnishing
	KindSite
	KindStorey
	KindBuilding
	KindSpace
	KindProject
)

var kindNames = [...]string{
	KindUnrecognized: "unrecognized",
	KindWall:         "wall",
	KindWindow:       "window",
	KindStructure:    "structure",
	KindRoof:         "roof",
	KindFurnishing:   "furnishing",
	KindSite:         "site",
	KindStorey:       "storey",
	KindBuilding:     "building",
	KindSpace:        "space",
	KindProject:      "project",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnrecognized]
	}
	return kindNames[k]
}

// kindByType: ключ - имя типа в нижнем регистре.
var kindByType = map[string]Kind{
	"ifcwallstandardcase":  KindWall,
	"ifcwall":              KindWall,
	"ifcwindow":            KindWindow,
	"ifcdoor":              KindWindow,
	"ifcbeam":              KindStructure,
	"ifccolumn":            KindStructure,
	"ifcslab":              KindStructure,
	"ifcfooting":           KindStructure,
	"ifcroof":              KindRoof,
	"ifcfurnishingelement": KindFurnishing,
	"ifcsite":              KindSite,
	"ifcbuildingstorey":    KindStorey,
	"ifcbuilding":          KindBuilding,
	"ifcspace":             KindSpace,
	"ifcproject":           KindProject,
}

// KindOf классифицирует имя IFC типа без учета регистра.
func KindOf(ifcType string) Kind {
	return kindByType[strings.ToLower(ifcType)]
}

// structureRoles сопоставляет конструктивным типам роли элементов.
var structureRoles = map[string]string{
	"ifcbeam":    "Beam",
	"ifccolumn":  "Column",
	"ifcslab":    "Slab",
	"ifcfooting": "Foundation",
}

// subtractive типы вырезаются из родителя, а не добавляются в него.
var subtractiveTypes = map[string]bool{
	"ifcopeningelement": true,
}

func isSubtractive(ifcType string) bool {
	return subtractiveTypes[strings.ToLower(ifcType)]
}

// typeSet - множество имен типов без учета регистра.
type typeSet map[string]bool

func newTypeSet(types []string) typeSet {
	s := make(typeSet, len(types))
	for _, t := range types {
		if t = strings.TrimSpace(t); t != "" {
			s[strings.ToLower(t)] = true
		}
	}
	return s
}

func (s typeSet) has(t string) bool {
	return s[strings.ToLower(t)]
}
