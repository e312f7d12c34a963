package models

import (
	"time"

	"archifc/internal/geom"
)

// ============================================================
// Scene
// ============================================================

// Object - сетевое представление объекта документа. Связи задаются
// именами объектов.
type Object struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Kind        string `json:"kind"`
	Role        string `json:"role,omitempty"`
	Description string `json:"description,omitempty"`
	IfcType     string `json:"ifc_type,omitempty"`

	Host         string   `json:"host,omitempty"`
	Base         string   `json:"base,omitempty"`
	Group        []string `json:"group,omitempty"`
	Additions    []string `json:"additions,omitempty"`
	Subtractions []string `json:"subtractions,omitempty"`

	Extrusion *geom.Extrusion `json:"extrusion,omitempty"`
	Shape     *geom.Shape     `json:"shape,omitempty"`
	Mesh      *geom.Mesh      `json:"mesh,omitempty"`
	BoundBox  *geom.Box       `json:"bound_box,omitempty"`
	Width     float64         `json:"width,omitempty"`
	Height    float64         `json:"height,omitempty"`
	Hidden    bool            `json:"hidden,omitempty"`

	Attributes map[string]string `json:"attributes,omitempty"`
}

// Floor перечисляет объекты верхнего уровня одного этажа.
type Floor struct {
	Name     string   `json:"name"`
	Building string   `json:"building,omitempty"`
	Objects  []string `json:"objects"`
}

type Scene struct {
	Name      string         `json:"name"`
	Unit      string         `json:"unit"`
	CreatedBy string         `json:"created_by,omitempty"`
	Company   string         `json:"company,omitempty"`
	Floors    []Floor        `json:"floors"`
	Objects   []Object       `json:"objects"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// ============================================================
// Stored documents
// ============================================================

type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SourceFile string    `json:"source_file"`
	Backend    string    `json:"backend"`
	Objects    int       `json:"objects"`
	Skipped    int       `json:"skipped"`
	Duplicates int       `json:"duplicates"`
	CreatedAt  time.Time `json:"created_at"`
}

type Diagnostic struct {
	EntityID int    `json:"entity_id"`
	Type     string `json:"type,omitempty"`
	Message  string `json:"message"`
}

// ============================================================
// Requests / responses
// ============================================================

type ImportResponse struct {
	Document    Document     `json:"document"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	Scene       *Scene       `json:"scene,omitempty"`
}

// ExportRequest выбирает, что экспортировать: сохраненный документ или
// сцену в запросе. Objects ограничивает экспорт указанными объектами.
type ExportRequest struct {
	DocumentID string   `json:"document_id,omitempty"`
	Scene      *Scene   `json:"scene,omitempty"`
	Objects    []string `json:"objects,omitempty"`

	SeparateOpenings *bool    `json:"separate_openings,omitempty"`
	ExportAsBrep     *bool    `json:"export_as_brep,omitempty"`
	ScalingFactor    *float64 `json:"scaling_factor,omitempty"`
}
