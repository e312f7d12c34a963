package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"archifc/internal/common/config"
	"archifc/internal/converter/mapper"
	"archifc/internal/converter/models"
	"archifc/internal/converter/repository"
	"archifc/internal/converter/service"
	"archifc/internal/exporter"
	"archifc/internal/ifc/accessor"
	"archifc/internal/ifc/schema"
	"archifc/internal/importer"
)

// ============================================================
// Document Handler
// ============================================================

type DocumentHandler struct {
	repo    *repository.Repository
	storage *service.FileStorage
	prefs   config.Preferences

	importOpts importer.Options
	exportOpts exporter.Options
}

func NewDocumentHandler(repo *repository.Repository, storage *service.FileStorage, prefs config.Preferences,
	importOpts importer.Options, exportOpts exporter.Options) *DocumentHandler {
	return &DocumentHandler{
		repo:       repo,
		storage:    storage,
		prefs:      prefs,
		importOpts: importOpts,
		exportOpts: exportOpts,
	}
}

// Register вешает маршруты конвертера на r.
func (h *DocumentHandler) Register(r fiber.Router) {
	r.Post("/import", h.Import)
	r.Post("/export", h.Export)
	r.Get("/documents", h.List)
	r.Get("/documents/:id", h.Get)
	r.Get("/documents/:id/scene", h.Scene)
	r.Get("/documents/:id/plan.svg", h.Plan)
	r.Delete("/documents/:id", h.Delete)
}

// ============================================================
// Import
// ============================================================

// Import принимает IFC файл (multipart, поле "file"), импортирует его и
// сохраняет полученную scene.
func (h *DocumentHandler) Import(c fiber.Ctx) error {
	log.Printf("[CONVERTER] Import request, Content-Length: %d", len(c.Body()))

	file, err := c.FormFile("file")
	if err != nil {
		log.Printf("[CONVERTER] FormFile error: %v", err)
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "file required in multipart/form-data"})
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".ifc") {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "only ifc allowed"})
	}

	f, err := file.Open()
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to open file"})
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read file"})
	}

	id := uuid.NewString()
	path, err := h.storage.SourcePath(id, file.Filename)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if err := h.storage.SaveFile(path, data); err != nil {
		log.Printf("[CONVERTER] Save error: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save file"})
	}

	prefs := h.prefs
	if v, err := strconv.ParseBool(c.Query("separate_openings")); err == nil {
		prefs.SeparateOpenings = v
	}
	if v, err := strconv.ParseBool(c.Query("prefix_numbers")); err == nil {
		prefs.PrefixNumbers = v
	}

	log.Printf("[CONVERTER] Importing %s (%d bytes) as %s", file.Filename, len(data), id)
	doc, rep, err := importer.Open(path, prefs, h.importOpts)
	if err != nil {
		log.Printf("[CONVERTER] Import error: %v", err)
		_ = h.storage.Remove(id)
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, accessor.ErrOpen):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, schema.ErrSchemaNotFound):
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	scene := mapper.FromDocument(doc)
	sceneJSON, err := json.Marshal(scene)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to encode scene"})
	}

	record := models.Document{
		ID:         id,
		Name:       doc.Name,
		SourceFile: filepath.Base(path),
		Backend:    rep.Backend,
		Objects:    rep.Objects,
		Skipped:    rep.Skipped,
		Duplicates: rep.Duplicates,
		CreatedAt:  time.Now().UTC(),
	}
	diags := make([]models.Diagnostic, 0, len(rep.Diagnostics))
	for _, d := range rep.Diagnostics {
		diags = append(diags, models.Diagnostic{EntityID: d.ID, Type: d.Type, Message: d.Message})
	}
	if err := h.repo.Create(context.Background(), record, sceneJSON, diags); err != nil {
		log.Printf("[CONVERTER] Store error: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to store document"})
	}

	log.Printf("[CONVERTER] Imported %s: %d objects, %d diagnostics", id, rep.Objects, len(diags))
	resp := models.ImportResponse{Document: record, Diagnostics: diags}
	if c.Query("scene") == "true" {
		resp.Scene = scene
	}
	return c.Status(http.StatusCreated).JSON(resp)
}

// ============================================================
// Export
// ============================================================

// Export пишет IFC из сохраненного документа или переданной scene и отдает
// файл.
func (h *DocumentHandler) Export(c fiber.Ctx) error {
	log.Printf("[CONVERTER] Export request, Content-Length: %d", len(c.Body()))

	if len(c.Body()) == 0 {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "body required"})
	}
	var req models.ExportRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON payload"})
	}

	scene := req.Scene
	docID := req.DocumentID
	// id становится каталогом в хранилище, принимаем только uuid
	if docID != "" {
		if _, err := uuid.Parse(docID); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid document_id"})
		}
	}
	switch {
	case scene != nil:
		if docID == "" {
			docID = uuid.NewString()
		}
	case docID != "":
		var err error
		if scene, err = h.loadScene(docID); err != nil {
			return h.storeError(c, err)
		}
	default:
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "document_id or scene required"})
	}

	doc, err := mapper.ToDocument(scene)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	objs, err := mapper.Select(doc, req.Objects)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	prefs := h.prefs
	if req.SeparateOpenings != nil {
		prefs.SeparateOpenings = *req.SeparateOpenings
	}
	if req.ExportAsBrep != nil {
		prefs.ExportAsBrep = *req.ExportAsBrep
	}
	if req.ScalingFactor != nil && *req.ScalingFactor > 0 {
		prefs.ScalingFactor = *req.ScalingFactor
	}

	path, err := h.storage.ExportPath(docID, doc.Name)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := h.storage.EnsureDir(filepath.Dir(path)); err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to prepare export dir"})
	}
	rep, err := exporter.New(doc, prefs, h.exportOpts).Export(objs, path)
	if err != nil {
		log.Printf("[CONVERTER] Export error: %v", err)
		status := http.StatusInternalServerError
		if errors.Is(err, exporter.ErrNoWriter) {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read export"})
	}

	log.Printf("[CONVERTER] Exported %d objects to %s", rep.Exported, path)
	c.Set("Content-Type", "application/x-step")
	c.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filepath.Base(path)))
	c.Set("X-Exported-Objects", strconv.Itoa(rep.Exported))
	c.Set("X-Unprocessed-Objects", strconv.Itoa(len(rep.Unprocessed)))
	return c.Send(data)
}

// ============================================================
// Stored documents
// ============================================================

func (h *DocumentHandler) List(c fiber.Ctx) error {
	docs, err := h.repo.List(context.Background())
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(docs)
}

func (h *DocumentHandler) Get(c fiber.Ctx) error {
	id := c.Params("id")
	doc, err := h.repo.GetByID(context.Background(), id)
	if err != nil {
		return h.storeError(c, err)
	}
	diags, err := h.repo.Diagnostics(context.Background(), id)
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(fiber.Map{"document": doc, "diagnostics": diags})
}

func (h *DocumentHandler) Scene(c fiber.Ctx) error {
	data, err := h.repo.Scene(context.Background(), c.Params("id"))
	if err != nil {
		return h.storeError(c, err)
	}
	c.Set("Content-Type", "application/json")
	return c.Send(data)
}

// Plan отдает вид сверху этажа (query "floor") в SVG.
func (h *DocumentHandler) Plan(c fiber.Ctx) error {
	scene, err := h.loadScene(c.Params("id"))
	if err != nil {
		return h.storeError(c, err)
	}
	svg, err := mapper.NewRenderer().Render(scene, c.Query("floor"))
	if err != nil {
		log.Printf("[RENDER] Render error: %v", err)
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	c.Set("Content-Type", "image/svg+xml")
	return c.SendString(svg)
}

func (h *DocumentHandler) Delete(c fiber.Ctx) error {
	id := c.Params("id")
	if err := h.repo.Delete(context.Background(), id); err != nil {
		return h.storeError(c, err)
	}
	if err := h.storage.Remove(id); err != nil {
		log.Printf("[CONVERTER] Remove files of %s: %v", id, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *DocumentHandler) loadScene(id string) (*models.Scene, error) {
	data, err := h.repo.Scene(context.Background(), id)
	if err != nil {
		return nil, err
	}
	var scene models.Scene
	if err := json.Unmarshal(data, &scene); err != nil {
		return nil, fmt.Errorf("decode scene %s: %w", id, err)
	}
	return &scene, nil
}

func (h *DocumentHandler) storeError(c fiber.Ctx, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "document not found"})
	}
	log.Printf("[CONVERTER] Store error: %v", err)
	return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
