package importer

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"archifc/internal/common/config"
	"archifc/internal/document"
	"archifc/internal/ifc/accessor"
	"archifc/internal/ifc/geometry"
	"archifc/internal/ifc/schema"
)

// ============================================================
// Entry points
// ============================================================

// Options - то, что не является пользовательской настройкой.
type Options struct {
	// SkipIDs - id сущностей, которые не импортируются.
	SkipIDs []int
	// Engine заменяет зарегистрированный геометрический движок.
	Engine accessor.Engine
	Kernel geometry.Kernel
	// LoadSchema заменяет SchemaLoader(prefs).
	LoadSchema func() (*schema.Schema, error)
}

// Report - итог одного импорта.
type Report struct {
	File        string        `json:"file"`
	Backend     string        `json:"backend"`
	Products    int           `json:"products"`
	Objects     int           `json:"objects"`
	Skipped     int           `json:"skipped"`
	Duplicates  int           `json:"duplicates"`
	Diagnostics []Diagnostic  `json:"diagnostics"`
	Duration    time.Duration `json:"duration"`
}

// Open импортирует path в новый документ с именем файла.
func Open(path string, prefs config.Preferences, opts Options) (*document.Document, *Report, error) {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	doc := document.New(name)
	rep, err := Import(path, doc, prefs, opts)
	if err != nil {
		return nil, nil, err
	}
	return doc, rep, nil
}

// Import читает path в doc. Ошибкой возвращаются только сбой открытия файла
// и отсутствие схемы; остальное попадает в отчет.
func Import(path string, doc *document.Document, prefs config.Preferences, opts Options) (*Report, error) {
	start := time.Now()
	load := opts.LoadSchema
	if load == nil {
		load = SchemaLoader(prefs)
	}
	f, err := accessor.Open(path, accessor.Options{
		ForceInternal: prefs.ForceInternalParser,
		Engine:        opts.Engine,
		LoadSchema:    load,
		Debug:         prefs.Debug,
	})
	if err != nil {
		return nil, err
	}
	defer f.Close()

	before := doc.Len()
	s := NewSession(f, doc, prefs, opts)
	s.Run()

	rep := &Report{
		File:        path,
		Backend:     f.Backend(),
		Products:    len(f.Products()),
		Objects:     doc.Len() - before,
		Skipped:     s.skipped,
		Duplicates:  s.duplicates,
		Diagnostics: s.Diagnostics(),
		Duration:    time.Since(start),
	}
	if prefs.Debug {
		log.Printf("[IMPORT] done processing %s in %s", path, rep.Duration)
	}
	return rep, nil
}

// SchemaLoader ищет EXPRESS схему для внутреннего парсера: свой путь,
// скачанная копия, новое скачивание. Встроенная core схема - последний
// вариант, если prefs это разрешают.
func SchemaLoader(prefs config.Preferences) func() (*schema.Schema, error) {
	return func() (*schema.Schema, error) {
		cache := prefs.SchemaCacheDir
		if cache == "" {
			if dir, err := os.UserCacheDir(); err == nil {
				cache = filepath.Join(dir, "archifc")
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		s, err := schema.LocateAndLoad(ctx, schema.LocateOptions{
			CustomPath: prefs.CustomSchema,
			CacheDir:   cache,
			URL:        prefs.SchemaURL,
			Debug:      prefs.Debug,
		})
		if err == nil {
			return s, nil
		}
		if prefs.AllowCoreSchema {
			log.Printf("[SCHEMA] %v, using the bundled core schema", err)
			return schema.Core(), nil
		}
		return nil, fmt.Errorf("locate schema: %w", err)
	}
}
