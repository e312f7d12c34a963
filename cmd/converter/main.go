package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"archifc/internal/common/config"
	"archifc/internal/common/middleware"
	"archifc/internal/converter/handlers"
	"archifc/internal/converter/repository"
	"archifc/internal/converter/service"
	"archifc/internal/exporter"
	"archifc/internal/importer"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

// ============================================================
// Converter Service
// ============================================================

const version = "0.1.0"

func main() {
	cfg := config.Load()

	prefs, err := config.LoadPreferences(cfg.PrefsPath)
	if err != nil {
		log.Fatalf("load preferences: %v", err)
	}

	db, err := repository.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	repo := repository.New(db)
	if err := repo.Init(context.Background(), cfg.MigrationsPath); err != nil {
		log.Fatalf("init db: %v", err)
	}

	docs := handlers.NewDocumentHandler(repo, service.NewFileStorage(cfg.StorageDir), prefs,
		importer.Options{},
		exporter.Options{Application: "archifc converter", Version: version})

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		BodyLimit:    cfg.BodyLimit * 1024 * 1024,
		AppName:      "Converter Service",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger(os.Stdout))
	app.Use(middleware.CORS(cfg.CORSOrigins))

	// ============================================================
	// Health Check Routes
	// ============================================================

	app.Get("/health/live", handlers.Liveness)
	app.Get("/health/ready", handlers.Readiness(repo))

	// ============================================================
	// Docs Routes
	// ============================================================

	app.Get("/docs", handlers.APIDocs)
	app.Get("/docs/openapi.yaml", handlers.APISpec(cfg.OpenAPIPath))

	// ============================================================
	// Converter Routes
	// ============================================================

	docs.Register(app)

	// ============================================================
	// Server Start
	// ============================================================

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("Starting Converter Service on %s (env: %s)", addr, cfg.Environment)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
