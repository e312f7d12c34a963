package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ============================================================
// IFC Preferences
// ============================================================

// Preferences - настройки импорта и экспорта IFC. Ключи совпадают
// с именами параметров модуля Arch, старые файлы настроек читаются.
type Preferences struct {
	CreateGroups        bool     `yaml:"createIfcGroups"`
	ForceInternalParser bool     `yaml:"forceIfcPythonParser"`
	Debug               bool     `yaml:"ifcDebug"`
	SeparateOpenings    bool     `yaml:"ifcSeparateOpenings"`
	SeparatePlacements  bool     `yaml:"ifcSeparatePlacements"`
	PrefixNumbers       bool     `yaml:"ifcPrefixNumbers"`
	JoinSolids          bool     `yaml:"ifcJoinSolids"`
	AggregateWindows    bool     `yaml:"ifcAggregateWindows"`
	Skip                []string `yaml:"ifcSkip"`
	AsMesh              []string `yaml:"ifcAsMesh"`

	ScalingFactor float64 `yaml:"IfcScalingFactor"`
	ExportList    bool    `yaml:"IfcExportList"`
	ExportAsBrep  bool    `yaml:"ifcExportAsBrep"`
	// Tessellation - допуск хорды для кривых brep при экспорте.
	Tessellation float64 `yaml:"ifcTessellation"`

	CustomSchema   string `yaml:"CustomIfcSchema"`
	SchemaCacheDir string `yaml:"ifcSchemaCacheDir"`
	SchemaURL      string `yaml:"ifcSchemaURL"`
	// AllowCoreSchema разрешает внутреннему парсеру встроенное подмножество
	// схемы, если файл EXPRESS не найден.
	AllowCoreSchema bool `yaml:"ifcAllowCoreSchema"`

	Author  string `yaml:"author"`
	Company string `yaml:"company"`
}

// DefaultPreferences возвращает значения по умолчанию.
func DefaultPreferences() Preferences {
	return Preferences{
		Skip:            []string{"IfcBuildingElementProxy", "IfcFlowTerminal", "IfcFurnishingElement"},
		AsMesh:          []string{"IfcFurnishingElement"},
		ScalingFactor:   1.0,
		Tessellation:    1.0,
		AllowCoreSchema: true,
	}
}

// LoadPreferences читает .env (если есть), затем YAML по path (если path
// не пустой), затем переопределения из окружения ARCHIFC_*.
func LoadPreferences(path string) (Preferences, error) {
	_ = godotenv.Load()

	p := DefaultPreferences()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return p, fmt.Errorf("read preferences: %w", err)
		}
		if err := yaml.Unmarshal(data, &p); err != nil {
			return p, fmt.Errorf("parse preferences %s: %w", path, err)
		}
	}
	p.applyEnv()
	if p.ScalingFactor <= 0 {
		p.ScalingFactor = 1.0
	}
	if p.Tessellation <= 0 {
		p.Tessellation = 1.0
	}
	return p, nil
}

func (p *Preferences) applyEnv() {
	p.CreateGroups = getEnvAsBool("ARCHIFC_CREATE_GROUPS", p.CreateGroups)
	p.ForceInternalParser = getEnvAsBool("ARCHIFC_FORCE_INTERNAL_PARSER", p.ForceInternalParser)
	p.Debug = getEnvAsBool("ARCHIFC_DEBUG", p.Debug)
	p.SeparateOpenings = getEnvAsBool("ARCHIFC_SEPARATE_OPENINGS", p.SeparateOpenings)
	p.SeparatePlacements = getEnvAsBool("ARCHIFC_SEPARATE_PLACEMENTS", p.SeparatePlacements)
	p.PrefixNumbers = getEnvAsBool("ARCHIFC_PREFIX_NUMBERS", p.PrefixNumbers)
	p.JoinSolids = getEnvAsBool("ARCHIFC_JOIN_SOLIDS", p.JoinSolids)
	p.AggregateWindows = getEnvAsBool("ARCHIFC_AGGREGATE_WINDOWS", p.AggregateWindows)
	p.Skip = getEnvAsList("ARCHIFC_SKIP", p.Skip)
	p.AsMesh = getEnvAsList("ARCHIFC_AS_MESH", p.AsMesh)

	p.ScalingFactor = getEnvAsFloat("ARCHIFC_SCALING_FACTOR", p.ScalingFactor)
	p.ExportList = getEnvAsBool("ARCHIFC_EXPORT_LIST", p.ExportList)
	p.ExportAsBrep = getEnvAsBool("ARCHIFC_EXPORT_AS_BREP", p.ExportAsBrep)
	p.Tessellation = getEnvAsFloat("ARCHIFC_TESSELLATION", p.Tessellation)

	p.CustomSchema = getEnv("ARCHIFC_SCHEMA", p.CustomSchema)
	p.SchemaCacheDir = getEnv("ARCHIFC_SCHEMA_CACHE", p.SchemaCacheDir)
	p.SchemaURL = getEnv("ARCHIFC_SCHEMA_URL", p.SchemaURL)
	p.AllowCoreSchema = getEnvAsBool("ARCHIFC_ALLOW_CORE_SCHEMA", p.AllowCoreSchema)

	p.Author = getEnv("ARCHIFC_AUTHOR", p.Author)
	p.Company = getEnv("ARCHIFC_COMPANY", p.Company)
}
